package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coordmesh/core/types"
)

func TestMemoryRepository_AgentCRUD(t *testing.T) {
	r := NewMemoryRepository(0)
	ctx := context.Background()

	a := types.NewAgent("agent-1", "Scout", "reasoning", []string{"cap-a", "cap-b"})
	require.NoError(t, r.CreateAgent(ctx, a))

	got, err := r.GetAgent(ctx, "agent-1")
	require.NoError(t, err)
	assert.Equal(t, "Scout", got.Name)
	assert.True(t, got.HasCapability("cap-a"))

	// Mutating the returned clone must not affect stored state.
	got.Name = "Mutated"
	again, err := r.GetAgent(ctx, "agent-1")
	require.NoError(t, err)
	assert.Equal(t, "Scout", again.Name)

	got.Name = "Scout2"
	require.NoError(t, r.UpdateAgent(ctx, got))
	updated, err := r.GetAgent(ctx, "agent-1")
	require.NoError(t, err)
	assert.Equal(t, "Scout2", updated.Name)

	require.NoError(t, r.DeleteAgent(ctx, "agent-1"))
	_, err = r.GetAgent(ctx, "agent-1")
	assert.Equal(t, types.NotFound, types.KindOf(err))
}

func TestMemoryRepository_FindAgentsByCapability(t *testing.T) {
	r := NewMemoryRepository(0)
	ctx := context.Background()

	require.NoError(t, r.CreateAgent(ctx, types.NewAgent("a1", "A1", "x", []string{"c1", "c2"})))
	require.NoError(t, r.CreateAgent(ctx, types.NewAgent("a2", "A2", "x", []string{"c1"})))

	found, err := r.FindAgentsByCapability(ctx, []string{"c1", "c2"})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "a1", found[0].ID)
}

func TestMemoryRepository_TeamOptimisticConcurrency(t *testing.T) {
	r := NewMemoryRepository(0)
	ctx := context.Background()

	team := types.NewTeam("team-1", "Alpha", "task-1", "BALANCED")
	require.NoError(t, r.CreateTeam(ctx, team))

	cur, err := r.GetTeam(ctx, "team-1")
	require.NoError(t, err)
	assert.Equal(t, 1, cur.Version)

	require.NoError(t, r.UpdateTeam(ctx, cur, 1))

	// Stale caller retries with the old version and must fail retryably.
	stale := cur.Clone()
	err = r.UpdateTeam(ctx, stale, 1)
	require.Error(t, err)
	assert.Equal(t, types.StaleVersion, types.KindOf(err))
	var coordErr *types.Error
	require.ErrorAs(t, err, &coordErr)
	assert.True(t, coordErr.Retryable)
}

func TestMemoryRepository_ContextVersionsAppendOnly(t *testing.T) {
	r := NewMemoryRepository(0)
	ctx := context.Background()

	sc := types.NewSharedContext("ctx-1", "Scratchpad", "generic", "agent-1", types.NewTree(nil))
	require.NoError(t, r.CreateContext(ctx, sc))

	v1 := &types.ContextVersion{VersionID: "v1", ContextID: "ctx-1", Timestamp: time.Now()}
	v2 := &types.ContextVersion{VersionID: "v2", ContextID: "ctx-1", Timestamp: time.Now(), ParentVersionID: "v1"}
	require.NoError(t, r.AppendContextVersion(ctx, v1))
	require.NoError(t, r.AppendContextVersion(ctx, v2))

	all, err := r.ListContextVersions(ctx, "ctx-1")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "v1", all[0].VersionID)
	assert.Equal(t, "v2", all[1].VersionID)

	got, err := r.GetContextVersion(ctx, "ctx-1", "v2")
	require.NoError(t, err)
	assert.Equal(t, "v1", got.ParentVersionID)
}

func TestMemoryRepository_ReadCacheInvalidatesOnUpdate(t *testing.T) {
	r := NewMemoryRepository(50 * time.Millisecond)
	ctx := context.Background()

	a := types.NewAgent("agent-1", "Scout", "reasoning", nil)
	require.NoError(t, r.CreateAgent(ctx, a))

	first, err := r.GetAgent(ctx, "agent-1")
	require.NoError(t, err)
	first.Name = "Renamed"
	require.NoError(t, r.UpdateAgent(ctx, first))

	second, err := r.GetAgent(ctx, "agent-1")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", second.Name)
}
