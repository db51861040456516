// Package teamformation implements the Team Formation Engine (C3): matching
// agents against task requirements and roles under one of several scoring
// strategies, and tracking team-level performance over time.
package teamformation

import (
	"strings"

	"github.com/coordmesh/core/types"
)

// Strategy selects the scoring formula FormTeam and Recommend use to rank
// candidate agents against a role.
type Strategy string

const (
	StrategyCapability     Strategy = "CAPABILITY"
	StrategyPerformance    Strategy = "PERFORMANCE"
	StrategyCost           Strategy = "COST"
	StrategySpecialization Strategy = "SPECIALIZATION"
	StrategyBalanced       Strategy = "BALANCED"
	StrategyDiversity      Strategy = "DIVERSITY"
)

// AllStrategies is the complete, declared-order strategy list.
var AllStrategies = []Strategy{
	StrategyCapability, StrategyPerformance, StrategyCost,
	StrategySpecialization, StrategyBalanced, StrategyDiversity,
}

// capMatch returns the fraction of requiredCaps the agent holds, in [0,1].
// An empty requirement set trivially matches fully.
func capMatch(agent *types.Agent, requiredCaps []string) float64 {
	if len(requiredCaps) == 0 {
		return 1.0
	}
	hit := 0
	for _, c := range requiredCaps {
		if agent.HasCapability(c) {
			hit++
		}
	}
	return float64(hit) / float64(len(requiredCaps))
}

// specMatch scores how well an agent's declared specialization lines up
// with a role: 1.0 for an exact name match, 0.7 when one contains the
// other as a substring, 0.5 when the specialization is one of the role's
// category tags, and a 0.1 floor otherwise.
func specMatch(agent *types.Agent, role *types.Role) float64 {
	spec := agent.Specialization
	if role == nil {
		return 0.1
	}
	if spec == role.Name {
		return 1.0
	}
	if spec != "" && role.Name != "" && (strings.Contains(role.Name, spec) || strings.Contains(spec, role.Name)) {
		return 0.7
	}
	if _, ok := role.Categories[spec]; ok {
		return 0.5
	}
	return 0.1
}

// costScore maps CostPerToken into [0,1], higher being cheaper. ceiling is
// the cost at or above which an agent scores 0; ceiling <= 0 disables cost
// discrimination (every agent scores 1).
func costScore(agent *types.Agent, ceiling float64) float64 {
	if ceiling <= 0 {
		return 1.0
	}
	if agent.CostPerToken >= ceiling {
		return 0.0
	}
	return 1.0 - agent.CostPerToken/ceiling
}

// performanceScore maps the agent's 0-10 PerformanceRating into [0,1].
func performanceScore(agent *types.Agent) float64 {
	return agent.PerformanceRating / 10.0
}

// Each non-CAPABILITY, non-DIVERSITY strategy blends capMatch with its own
// headline factor; BALANCED blends all four factors at once. Weights sum to 1.
const (
	perfCapWeight = 0.3
	perfOwnWeight = 0.7
	costCapWeight = 0.3
	costOwnWeight = 0.7
	specCapWeight = 0.3
	specOwnWeight = 0.7

	balancedCapWeight  = 0.4
	balancedPerfWeight = 0.25
	balancedSpecWeight = 0.25
	balancedCostWeight = 0.1
)

// ScoreAgent scores a candidate agent against a role's requirements under
// strategy. costCeiling parameterizes COST/BALANCED.
func ScoreAgent(agent *types.Agent, role *types.Role, strategy Strategy, costCeiling float64) float64 {
	required := role.RequiredCapSet()
	capScore := capMatch(agent, required)
	switch strategy {
	case StrategyCapability:
		return capScore
	case StrategyPerformance:
		return perfCapWeight*capScore + perfOwnWeight*performanceScore(agent)
	case StrategyCost:
		return costCapWeight*capScore + costOwnWeight*costScore(agent, costCeiling)
	case StrategySpecialization:
		return specCapWeight*capScore + specOwnWeight*specMatch(agent, role)
	case StrategyBalanced:
		return balancedCapWeight*capScore +
			balancedPerfWeight*performanceScore(agent) +
			balancedSpecWeight*specMatch(agent, role) +
			balancedCostWeight*costScore(agent, costCeiling)
	case StrategyDiversity:
		// Diversity assignment is set-cover driven (see strategies.go) and
		// does not call ScoreAgent; a plain per-agent score falls back to
		// capability match so a caller scoring candidates generically still
		// gets a ranking signal.
		return capScore
	default:
		return capScore
	}
}

// TeamMetrics are the aggregate quality measures computed over a formed
// team's final membership.
type TeamMetrics struct {
	CapabilityCoverage float64
	PerformanceRating  float64
	CostEfficiency     float64
	Specialization     float64
	CompositeScore     float64
}

// ComputeTeamMetrics aggregates metrics over a task's requirements and the
// agents ultimately assigned to the team.
func ComputeTeamMetrics(task *types.Task, agents []*types.Agent, costCeiling float64) TeamMetrics {
	if len(agents) == 0 {
		return TeamMetrics{}
	}
	required := task.RequiredCapSet()
	covered := map[string]struct{}{}
	roleByAgent := make(map[string]*types.Role, len(task.RequiredRoles))
	for _, r := range task.RequiredRoles {
		if r.AssignedAgent != "" {
			roleByAgent[r.AssignedAgent] = r
		}
	}
	var perfSum, costSum, specSum float64
	for _, a := range agents {
		for _, c := range required {
			if a.HasCapability(c) {
				covered[c] = struct{}{}
			}
		}
		perfSum += performanceScore(a)
		costSum += costScore(a, costCeiling)
		specSum += specMatch(a, roleByAgent[a.ID])
	}
	n := float64(len(agents))
	coverage := 1.0
	if len(required) > 0 {
		coverage = float64(len(covered)) / float64(len(required))
	}
	m := TeamMetrics{
		CapabilityCoverage: coverage,
		PerformanceRating:  perfSum / n,
		CostEfficiency:     costSum / n,
		Specialization:     specSum / n,
	}
	m.CompositeScore = 0.4*m.CapabilityCoverage + 0.3*m.PerformanceRating + 0.2*m.Specialization + 0.1*m.CostEfficiency
	return m
}
