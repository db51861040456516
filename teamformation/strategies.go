package teamformation

import (
	"sort"

	"github.com/coordmesh/core/types"
)

// DomainBuckets are the five capability categories the DIVERSITY strategy's
// greedy set-cover sweeps, always in this declared order.
var DomainBuckets = []string{
	"Reasoning",
	"Memory",
	"Perception",
	"Communication",
	"Domain Knowledge",
}

// assignByScore greedily fills task.RequiredRoles, highest-priority role
// first, each time picking the highest-scoring unassigned candidate under
// strategy. A role with no eligible candidate left unfilled is skipped, not
// fatal — FormTeam decides whether a partial team is acceptable.
func assignByScore(task *types.Task, candidates []*types.Agent, strategy Strategy, costCeiling float64) []*types.Agent {
	roles := append([]*types.Role(nil), task.RequiredRoles...)
	sort.SliceStable(roles, func(i, j int) bool { return roles[i].Priority > roles[j].Priority })

	used := map[string]bool{}
	assigned := make([]*types.Agent, 0, len(roles))

	for _, role := range roles {
		var best *types.Agent
		bestScore := -1.0
		for _, cand := range candidates {
			if used[cand.ID] {
				continue
			}
			s := ScoreAgent(cand, role, strategy, costCeiling)
			if s > bestScore {
				bestScore = s
				best = cand
			}
		}
		if best == nil {
			continue
		}
		role.Filled = true
		role.AssignedAgent = best.ID
		used[best.ID] = true
		assigned = append(assigned, best)
	}
	return assigned
}

// bucketMatch reports whether agent owns any capability tagged with the
// given domain bucket's Category. Categories are matched against the
// agent's Specialization and its capability set both, since either can
// plausibly carry the domain tag depending on how capabilities were
// registered.
func bucketMatch(agent *types.Agent, bucket string, capsByID map[string]*types.Capability) bool {
	if agent.Specialization == bucket {
		return true
	}
	for capID := range agent.Capabilities {
		if cap, ok := capsByID[capID]; ok && cap.Category == bucket {
			return true
		}
	}
	return false
}

// assignByDiversity implements the DIVERSITY strategy: a greedy set-cover
// over DomainBuckets in declared order. For each bucket not yet covered by
// the team, the highest-performing eligible, not-yet-used candidate
// matching that bucket is added; a bucket with no matching candidate is
// skipped, and the sweep stops once MaxTeamSize agents are selected. Agents
// picked in the sweep are not assigned to roles. Afterwards each role that
// is still unfilled takes the best capability match among candidates not
// picked in the sweep; a role stays unfilled when no such candidate remains.
func assignByDiversity(task *types.Task, candidates []*types.Agent, capsByID map[string]*types.Capability) []*types.Agent {
	used := map[string]bool{}
	var assigned []*types.Agent
	maxSize := task.MaxTeamSize
	if maxSize <= 0 {
		maxSize = len(task.RequiredRoles)
	}

	for _, bucket := range DomainBuckets {
		if len(assigned) >= maxSize {
			break
		}
		covered := false
		for _, a := range assigned {
			if bucketMatch(a, bucket, capsByID) {
				covered = true
				break
			}
		}
		if covered {
			continue
		}
		var best *types.Agent
		bestPerf := -1.0
		for _, cand := range candidates {
			if used[cand.ID] || !bucketMatch(cand, bucket, capsByID) {
				continue
			}
			if p := performanceScore(cand); p > bestPerf {
				bestPerf = p
				best = cand
			}
		}
		if best != nil {
			used[best.ID] = true
			assigned = append(assigned, best)
		}
	}

	// Fill any still-unfilled roles by capability match among the remainder.
	roles := append([]*types.Role(nil), task.RequiredRoles...)
	sort.SliceStable(roles, func(i, j int) bool { return roles[i].Priority > roles[j].Priority })
	for _, role := range roles {
		if role.Filled {
			continue
		}
		var best *types.Agent
		bestScore := -1.0
		for _, cand := range candidates {
			if used[cand.ID] {
				continue
			}
			s := capMatch(cand, role.RequiredCapSet())
			if s > bestScore {
				bestScore = s
				best = cand
			}
		}
		if best == nil {
			continue
		}
		role.Filled = true
		role.AssignedAgent = best.ID
		used[best.ID] = true
		assigned = append(assigned, best)
	}

	return assigned
}
