package teamformation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coordmesh/core/clock"
	"github.com/coordmesh/core/store"
	"github.com/coordmesh/core/types"
)

func seedAgents(t *testing.T, repo store.Repository) {
	t.Helper()
	ctx := context.Background()
	agents := []*types.Agent{
		types.NewAgent("a-reason", "Reasoner", "Reasoning", []string{"analysis", "planning"}),
		types.NewAgent("a-memory", "Archivist", "Memory", []string{"retrieval"}),
		types.NewAgent("a-perc", "Sensor", "Perception", []string{"vision"}),
		types.NewAgent("a-comm", "Liaison", "Communication", []string{"translation"}),
		types.NewAgent("a-domain", "Expert", "Domain Knowledge", []string{"analysis", "domain-x"}),
	}
	agents[0].PerformanceRating = 9
	agents[1].PerformanceRating = 6
	agents[2].PerformanceRating = 7
	agents[3].PerformanceRating = 5
	agents[4].PerformanceRating = 8
	for _, a := range agents {
		require.NoError(t, repo.CreateAgent(ctx, a))
	}
}

func testTask() *types.Task {
	roles := []*types.Role{
		types.NewRole("role-lead", "Lead", []string{"analysis", "planning"}, 10, []string{"Reasoning"}),
		types.NewRole("role-support", "Support", []string{"retrieval"}, 5, []string{"Memory"}),
	}
	return types.NewTask("task-1", "Investigate anomaly", "", []string{"analysis", "planning", "retrieval"}, roles, 5, 5, 2, 4)
}

func TestFormTeam_CapabilityStrategy(t *testing.T) {
	repo := store.NewMemoryRepository(0)
	seedAgents(t, repo)
	eng := New(repo, types.TeamFormationConfig{}, 0, nil, nil)

	team, err := eng.FormTeam(context.Background(), testTask(), StrategyCapability)
	require.NoError(t, err)
	assert.Equal(t, types.TeamComplete, team.Status)
	assert.Contains(t, team.Agents, "a-reason")
	assert.Contains(t, team.Agents, "a-memory")
}

func TestFormTeam_DiversityCoversBucketsInOrder(t *testing.T) {
	repo := store.NewMemoryRepository(0)
	seedAgents(t, repo)
	eng := New(repo, types.TeamFormationConfig{}, 0, nil, nil)

	task := testTask()
	task.MaxTeamSize = 5
	team, err := eng.FormTeam(context.Background(), task, StrategyDiversity)
	require.NoError(t, err)

	for _, id := range []string{"a-reason", "a-memory", "a-perc", "a-comm", "a-domain"} {
		assert.Contains(t, team.Agents, id)
	}
}

func TestRecommend_RanksFiveStrategies(t *testing.T) {
	repo := store.NewMemoryRepository(0)
	seedAgents(t, repo)
	eng := New(repo, types.TeamFormationConfig{RecommendationCount: 5}, 0, nil, nil)

	recs, err := eng.Recommend(context.Background(), testTask())
	require.NoError(t, err)
	require.Len(t, recs, 5)
	for i := 1; i < len(recs); i++ {
		assert.GreaterOrEqual(t, recs[i-1].Metrics.CompositeScore, recs[i].Metrics.CompositeScore)
	}
}

func TestUpdateCollaborationScores_EMA(t *testing.T) {
	repo := store.NewMemoryRepository(0)
	seedAgents(t, repo)
	eng := New(repo, types.TeamFormationConfig{CollaborationEMAAlpha: 0.3}, 0, nil, nil)

	ctx := context.Background()
	require.NoError(t, eng.UpdateCollaborationScores(ctx, map[string]float64{"a-reason": 1.0}))
	agent, err := repo.GetAgent(ctx, "a-reason")
	require.NoError(t, err)
	assert.InDelta(t, 0.3, agent.CollaborationScore, 1e-9)

	require.NoError(t, eng.UpdateCollaborationScores(ctx, map[string]float64{"a-reason": 1.0}))
	agent, err = repo.GetAgent(ctx, "a-reason")
	require.NoError(t, err)
	assert.InDelta(t, 0.51, agent.CollaborationScore, 1e-9)
}

func TestAvailabilityGuard_ExcludesAfterThreshold(t *testing.T) {
	fake := clock.NewFake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	guard := NewAvailabilityGuard(2, 0, fake)
	guard.Enable()

	assert.True(t, guard.Allowed("a1"))
	guard.RecordFailure("a1")
	assert.True(t, guard.Allowed("a1"))
	guard.RecordFailure("a1")
	assert.False(t, guard.Allowed("a1"))
}

func TestAvailabilityGuard_DisabledNeverExcludes(t *testing.T) {
	guard := NewAvailabilityGuard(1, 0, nil)
	guard.RecordFailure("a1")
	guard.RecordFailure("a1")
	assert.True(t, guard.Allowed("a1"))
}
