// Package negotiation implements the Negotiation Engine (C4): a round-based,
// multi-party protocol that converges on a single accepted Proposal, falling
// back to a pluggable conflict-resolution strategy when participants do not
// converge on their own before MaxRounds or Deadline.
package negotiation

import (
	"sort"

	"github.com/google/uuid"

	"github.com/coordmesh/core/types"
)

// resolveConflict synthesizes a final Proposal from a negotiation's full
// proposal history when rounds or the deadline run out before the
// participants converge on their own. priorities is only consulted by
// PRIORITY_BASED (agentID -> priority, computed by Engine.computePriorities).
func resolveConflict(n *types.Negotiation, cfg types.NegotiationConfig, priorities map[string]int) *types.Proposal {
	switch n.Strategy {
	case types.ResolutionPriorityBased:
		return resolvePriorityBased(n, priorities)
	case types.ResolutionVoting:
		return resolveVoting(n)
	case types.ResolutionOptimization:
		if cfg.ResourceOptimizationEnabled {
			return resolveOptimization(n)
		}
		return resolveCompromise(n, cfg)
	default:
		return resolveCompromise(n, cfg)
	}
}

// resolvePriorityBased returns the proposal of the highest-priority agent,
// ties broken by initiator-first then lowest AgentID. priorities is
// round(performanceRating*10), +5 for the initiator.
func resolvePriorityBased(n *types.Negotiation, priorities map[string]int) *types.Proposal {
	latest := latestProposalPerParticipant(n)
	if len(latest) == 0 {
		return nil
	}
	best := latest[0]
	bestPriority := priorities[best.ProposerID]
	for _, p := range latest[1:] {
		pr := priorities[p.ProposerID]
		if pr > bestPriority || (pr == bestPriority && priorityTieBreakWins(n, p, best)) {
			best, bestPriority = p, pr
		}
	}
	return best
}

// priorityTieBreakWins reports whether candidate should replace current on a
// priority tie: initiator wins outright, otherwise lowest AgentID wins.
func priorityTieBreakWins(n *types.Negotiation, candidate, current *types.Proposal) bool {
	candidateIsInitiator := candidate.ProposerID == n.InitiatorID
	currentIsInitiator := current.ProposerID == n.InitiatorID
	if candidateIsInitiator != currentIsInitiator {
		return candidateIsInitiator
	}
	return candidate.ProposerID < current.ProposerID
}

// resolveCompromise synthesizes a new Proposal from the union of keys across
// every participant's most recent proposal: numeric resource quantities are
// averaged (clamped to each resource's configured ceiling); term values are
// resolved per-key (numeric mean, boolean majority, else mode).
func resolveCompromise(n *types.Negotiation, cfg types.NegotiationConfig) *types.Proposal {
	latest := latestProposalPerParticipant(n)
	if len(latest) == 0 {
		return nil
	}
	sums := map[string]float64{}
	counts := map[string]int{}
	for _, p := range latest {
		for res, qty := range p.Resources {
			sums[res] += qty
			counts[res]++
		}
	}
	resources := make(map[string]float64, len(sums))
	for res, sum := range sums {
		avg := sum / float64(counts[res])
		if max := cfg.ResourceMax(res); avg > max {
			avg = max
		}
		resources[res] = avg
	}
	return &types.Proposal{
		ID:         uuid.NewString(),
		ProposerID: "",
		Terms:      mergeTermsByRule(latest, resolveCompromiseValues),
		Resources:  resources,
		Priority:   0,
	}
}

// resolveVoting treats each participant's latest proposal as a vote for its
// own structural content (Resources + Terms, compared by types.Equal rather
// than Proposal.ID) and returns the plurality winner, ties broken by
// earliest submission among the tied proposals.
func resolveVoting(n *types.Negotiation) *types.Proposal {
	latest := latestProposalPerParticipant(n)
	if len(latest) == 0 {
		return nil
	}
	type group struct {
		rep   *types.Proposal
		count int
	}
	var groups []*group
	for _, p := range latest {
		matched := false
		for _, g := range groups {
			if types.Equal(proposalContentValue(g.rep), proposalContentValue(p)) {
				g.count++
				if p.CreatedAt.Before(g.rep.CreatedAt) {
					g.rep = p
				}
				matched = true
				break
			}
		}
		if !matched {
			groups = append(groups, &group{rep: p, count: 1})
		}
	}
	best := groups[0]
	for _, g := range groups[1:] {
		if g.count > best.count || (g.count == best.count && g.rep.CreatedAt.Before(best.rep.CreatedAt)) {
			best = g
		}
	}
	return best.rep
}

// resolveOptimization chooses, per key, the value maximizing
// utility = 1 + support_count/total_proposals — equivalent to the most
// frequent exact value for that key (ties broken first-seen), since utility
// is monotonic in support_count.
func resolveOptimization(n *types.Negotiation) *types.Proposal {
	latest := latestProposalPerParticipant(n)
	if len(latest) == 0 {
		return nil
	}

	resourceKeys := map[string]struct{}{}
	for _, p := range latest {
		for k := range p.Resources {
			resourceKeys[k] = struct{}{}
		}
	}
	resources := make(map[string]float64, len(resourceKeys))
	for key := range resourceKeys {
		type counted struct {
			val   float64
			count int
		}
		var distinct []counted
		for _, p := range latest {
			v, ok := p.Resources[key]
			if !ok {
				continue
			}
			found := false
			for i := range distinct {
				if distinct[i].val == v {
					distinct[i].count++
					found = true
					break
				}
			}
			if !found {
				distinct = append(distinct, counted{val: v, count: 1})
			}
		}
		best := distinct[0]
		for _, c := range distinct[1:] {
			if c.count > best.count {
				best = c
			}
		}
		resources[key] = best.val
	}

	return &types.Proposal{
		ID:        uuid.NewString(),
		Terms:     mergeTermsByRule(latest, resolveModeValue),
		Resources: resources,
	}
}

// latestProposalPerParticipant returns, for each participant who proposed
// at least once, their most recent Proposal by CreatedAt.
func latestProposalPerParticipant(n *types.Negotiation) []*types.Proposal {
	byProposer := map[string]*types.Proposal{}
	for _, p := range n.Proposals {
		cur, ok := byProposer[p.ProposerID]
		if !ok || !p.CreatedAt.Before(cur.CreatedAt) {
			byProposer[p.ProposerID] = p
		}
	}
	out := make([]*types.Proposal, 0, len(byProposer))
	for _, p := range byProposer {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProposerID < out[j].ProposerID })
	return out
}

// proposalContentValue is the structural-equality view of a proposal used by
// VOTING and by Analyze's changed-keys report: its resource quantities and
// its terms, combined into one tree.
func proposalContentValue(p *types.Proposal) types.Value {
	resTree := make(map[string]types.Value, len(p.Resources))
	for k, v := range p.Resources {
		resTree[k] = types.NewScalar(v)
	}
	return types.NewTree(map[string]types.Value{
		"resources": types.NewTree(resTree),
		"terms":     p.Terms,
	})
}

// mergeTermsByRule folds every proposal's top-level Terms keys together,
// resolving each key's collected values via resolve.
func mergeTermsByRule(proposals []*types.Proposal, resolve func([]types.Value) types.Value) types.Value {
	keys := map[string]struct{}{}
	for _, p := range proposals {
		if p.Terms.Kind == types.KindTree {
			for k := range p.Terms.Tree {
				keys[k] = struct{}{}
			}
		}
	}
	if len(keys) == 0 {
		return types.NewTree(nil)
	}
	sorted := make([]string, 0, len(keys))
	for k := range keys {
		sorted = append(sorted, k)
	}
	sort.Strings(sorted)

	out := make(map[string]types.Value, len(sorted))
	for _, k := range sorted {
		var values []types.Value
		for _, p := range proposals {
			if p.Terms.Kind != types.KindTree {
				continue
			}
			if v, ok := p.Terms.Tree[k]; ok {
				values = append(values, v)
			}
		}
		out[k] = resolve(values)
	}
	return types.NewTree(out)
}

// resolveCompromiseValues implements COMPROMISE's per-key rule: arithmetic
// mean if every value is numeric, strict majority (ties = false) if every
// value is boolean, otherwise the most-frequent value (first-seen on ties).
func resolveCompromiseValues(values []types.Value) types.Value {
	if len(values) == 0 {
		return types.Absent
	}
	if allNumeric(values) {
		sum := 0.0
		for _, v := range values {
			sum += toFloat(v.Scalar)
		}
		return types.NewScalar(sum / float64(len(values)))
	}
	if allBool(values) {
		trueCount := 0
		for _, v := range values {
			if b, ok := v.Scalar.(bool); ok && b {
				trueCount++
			}
		}
		return types.NewScalar(trueCount*2 > len(values))
	}
	return resolveModeValue(values)
}

// resolveModeValue returns the most-frequent value by structural equality,
// first-seen order breaking ties — the rule OPTIMIZATION applies uniformly
// to every key, and the rule COMPROMISE falls back to for non-numeric,
// non-boolean keys.
func resolveModeValue(values []types.Value) types.Value {
	if len(values) == 0 {
		return types.Absent
	}
	type entry struct {
		val   types.Value
		count int
	}
	var order []entry
	for _, v := range values {
		found := false
		for i := range order {
			if types.Equal(order[i].val, v) {
				order[i].count++
				found = true
				break
			}
		}
		if !found {
			order = append(order, entry{val: v, count: 1})
		}
	}
	best := order[0]
	for _, e := range order[1:] {
		if e.count > best.count {
			best = e
		}
	}
	return best.val
}

func allNumeric(values []types.Value) bool {
	for _, v := range values {
		switch v.Scalar.(type) {
		case float64, float32, int, int64, int32:
		default:
			return false
		}
	}
	return true
}

func allBool(values []types.Value) bool {
	for _, v := range values {
		if _, ok := v.Scalar.(bool); !ok {
			return false
		}
	}
	return true
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case int32:
		return float64(n)
	default:
		return 0
	}
}
