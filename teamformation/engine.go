package teamformation

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/coordmesh/core/store"
	"github.com/coordmesh/core/types"
)

// Engine is the Team Formation Engine. Guard is optional; leave nil to
// disable availability filtering entirely.
type Engine struct {
	repo        store.Repository
	cfg         types.TeamFormationConfig
	costCeiling float64
	guard       *AvailabilityGuard
	log         *zap.Logger
}

// New constructs an Engine. costCeiling parameterizes COST/BALANCED scoring
// (see scoring.go); pass 0 to disable cost discrimination.
func New(repo store.Repository, cfg types.TeamFormationConfig, costCeiling float64, guard *AvailabilityGuard, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{repo: repo, cfg: cfg, costCeiling: costCeiling, guard: guard, log: log}
}

// FormTeam assembles a Team for task using strategy, scoring every eligible
// candidate agent and greedily filling task.RequiredRoles highest-priority
// first (DIVERSITY instead runs its declared-order set-cover over
// DomainBuckets). The resulting Team is persisted via the Repository in
// COMPLETE status if every role is filled, PARTIAL if some role remains
// unfilled but at least one agent was selected, and FORMING otherwise.
func (e *Engine) FormTeam(ctx context.Context, task *types.Task, strategy Strategy) (*types.Team, error) {
	candidates, err := e.repo.FindAgentsByCapability(ctx, nil)
	if err != nil {
		return nil, err
	}
	candidates = filterAvailable(candidates, e.guard)
	if len(candidates) == 0 {
		return nil, types.NewError(types.NoAgentsAvailable, "no available agents to form team for task "+task.ID, nil)
	}

	var assigned []*types.Agent
	if strategy == StrategyDiversity {
		caps, err := e.repo.ListCapabilities(ctx)
		if err != nil {
			return nil, err
		}
		byID := make(map[string]*types.Capability, len(caps))
		for _, c := range caps {
			byID[c.ID] = c
		}
		assigned = assignByDiversity(task, candidates, byID)
	} else {
		assigned = assignByScore(task, candidates, strategy, e.costCeiling)
	}

	team := types.NewTeam(uuid.NewString(), task.Name+" team", task.ID, string(strategy))
	for _, a := range assigned {
		team.AddMember(a.ID, a.Capabilities)
	}
	team.Roles = task.RequiredRoles
	metrics := ComputeTeamMetrics(task, assigned, e.costCeiling)
	team.PerformanceMetrics = map[string]float64{
		"capability_coverage": metrics.CapabilityCoverage,
		"performance_rating":  metrics.PerformanceRating,
		"cost_efficiency":     metrics.CostEfficiency,
		"specialization":      metrics.Specialization,
		"composite_score":     metrics.CompositeScore,
	}
	if team.AllRolesFilled() {
		team.Status = types.TeamComplete
	} else if len(team.Agents) > 0 {
		team.Status = types.TeamPartial
	}

	if err := e.repo.CreateTeam(ctx, team); err != nil {
		return nil, err
	}
	e.log.Info("team formed",
		zap.String("task_id", task.ID), zap.String("team_id", team.ID),
		zap.String("strategy", string(strategy)), zap.String("status", string(team.Status)))
	return team, nil
}

// StrategyRecommendation pairs a strategy with the metrics FormTeam would
// have produced, so Recommend can be scored and ranked without persisting
// every candidate team.
type StrategyRecommendation struct {
	Strategy Strategy
	Agents   []*types.Agent
	Metrics  TeamMetrics
}

// recommendStrategies is the fixed 5-strategy sweep Recommend runs;
// BALANCED is intentionally excluded since it is already the engine's
// documented default elsewhere and Recommend exists specifically to compare
// the other, more specialized strategies against each other.
var recommendStrategies = []Strategy{
	StrategyCapability, StrategyPerformance, StrategyCost, StrategySpecialization, StrategyDiversity,
}

// Recommend scores task against each of the five non-default strategies and
// returns them ranked by composite score, best first.
func (e *Engine) Recommend(ctx context.Context, task *types.Task) ([]StrategyRecommendation, error) {
	candidates, err := e.repo.FindAgentsByCapability(ctx, nil)
	if err != nil {
		return nil, err
	}
	candidates = filterAvailable(candidates, e.guard)

	out := make([]StrategyRecommendation, 0, len(recommendStrategies))
	for _, s := range recommendStrategies {
		// Recommend simulates assignment without mutating role state, so it
		// scores against fresh role clones.
		simTask := *task
		simTask.RequiredRoles = make([]*types.Role, len(task.RequiredRoles))
		for i, r := range task.RequiredRoles {
			simTask.RequiredRoles[i] = r.Clone()
		}

		var assigned []*types.Agent
		if s == StrategyDiversity {
			caps, err := e.repo.ListCapabilities(ctx)
			if err != nil {
				return nil, err
			}
			byID := make(map[string]*types.Capability, len(caps))
			for _, c := range caps {
				byID[c.ID] = c
			}
			assigned = assignByDiversity(&simTask, candidates, byID)
		} else {
			assigned = assignByScore(&simTask, candidates, s, e.costCeiling)
		}

		out = append(out, StrategyRecommendation{
			Strategy: s,
			Agents:   assigned,
			Metrics:  ComputeTeamMetrics(&simTask, assigned, e.costCeiling),
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Metrics.CompositeScore > out[j].Metrics.CompositeScore
	})
	if len(out) > e.cfg.RecommendationCount && e.cfg.RecommendationCount > 0 {
		out = out[:e.cfg.RecommendationCount]
	}
	return out, nil
}

// UpdateCollaborationScores folds each observed per-task collaboration
// rating into the agent's running CollaborationScore via an exponential
// moving average: new = alpha*observed + (1-alpha)*old.
func (e *Engine) UpdateCollaborationScores(ctx context.Context, observations map[string]float64) error {
	alpha := e.cfg.CollaborationEMAAlpha
	if alpha <= 0 {
		alpha = 0.3
	}
	for agentID, observed := range observations {
		agent, err := e.repo.GetAgent(ctx, agentID)
		if err != nil {
			return err
		}
		agent.CollaborationScore = alpha*observed + (1-alpha)*agent.CollaborationScore
		if err := e.repo.UpdateAgent(ctx, agent); err != nil {
			return err
		}
	}
	return nil
}

// FindSuitableTeams returns existing teams already assigned to task,
// ordered by composite score descending — used to check whether a
// previously-formed team can be reused instead of forming a new one.
func (e *Engine) FindSuitableTeams(ctx context.Context, taskID string) ([]*types.Team, error) {
	teams, err := e.repo.FindTeamsByTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(teams, func(i, j int) bool {
		return teams[i].PerformanceMetrics["composite_score"] > teams[j].PerformanceMetrics["composite_score"]
	})
	return teams, nil
}
