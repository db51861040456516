package contextengine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coordmesh/core/clock"
	"github.com/coordmesh/core/sinks"
	"github.com/coordmesh/core/store"
	"github.com/coordmesh/core/types"
)

func newTestEngine() (*Engine, *sinks.MemoryNotificationSink, *sinks.MemoryArchivalSink) {
	repo := store.NewMemoryRepository(0)
	notify := sinks.NewMemoryNotificationSink(16)
	archive := sinks.NewMemoryArchivalSink()
	cfg := types.ContextConfig{ArchivalEveryNVersions: 2}
	eng := New(repo, notify, archive, nil, cfg, nil, clock.NewFake(time.Unix(0, 0)))
	return eng, notify, archive
}

func TestEngine_CreateAndGetContext(t *testing.T) {
	eng, _, _ := newTestEngine()
	ctx := context.Background()

	sc, err := eng.CreateContext(ctx, "scratch", "generic", "owner-1", types.NewTree(nil))
	require.NoError(t, err)
	assert.Equal(t, 1, sc.Version)

	got, err := eng.GetContext(ctx, sc.ID, "owner-1")
	require.NoError(t, err)
	assert.Equal(t, sc.ID, got.ID)

	_, err = eng.GetContext(ctx, sc.ID, "stranger")
	require.Error(t, err)
	assert.Equal(t, types.PermissionDenied, types.KindOf(err))
}

func TestEngine_UpdateContext_StaleVersionRetry(t *testing.T) {
	eng, _, _ := newTestEngine()
	ctx := context.Background()

	sc, err := eng.CreateContext(ctx, "scratch", "generic", "owner-1", types.NewTree(nil))
	require.NoError(t, err)

	_, err = eng.UpdateContext(ctx, sc.ID, "owner-1", []ChangeRequest{
		{Operation: types.ChangeUpdate, Path: "/plan", Value: types.NewScalar("draft")},
	}, sc.Version)
	require.NoError(t, err)

	// Reusing the original (now stale) expected version must fail retryably.
	_, err = eng.UpdateContext(ctx, sc.ID, "owner-1", []ChangeRequest{
		{Operation: types.ChangeUpdate, Path: "/plan", Value: types.NewScalar("final")},
	}, sc.Version)
	require.Error(t, err)
	assert.Equal(t, types.StaleVersion, types.KindOf(err))

	latest, err := eng.GetContext(ctx, sc.ID, "owner-1")
	require.NoError(t, err)
	v, ok := types.GetAtPath(latest.Content, "/plan")
	require.True(t, ok)
	assert.Equal(t, "draft", v.Scalar)
}

func TestEngine_AccessControlDeniesWrite(t *testing.T) {
	eng, _, _ := newTestEngine()
	ctx := context.Background()

	sc, err := eng.CreateContext(ctx, "scratch", "generic", "owner-1", types.NewTree(nil))
	require.NoError(t, err)

	require.NoError(t, eng.GrantAccess(ctx, sc.ID, "owner-1", "reader-1", types.AccessReadOnly, 0))

	_, err = eng.UpdateContext(ctx, sc.ID, "reader-1", []ChangeRequest{
		{Operation: types.ChangeUpdate, Path: "/x", Value: types.NewScalar(1)},
	}, sc.Version)
	require.Error(t, err)
	assert.Equal(t, types.PermissionDenied, types.KindOf(err))
}

func TestEngine_GrantAccessExpiry(t *testing.T) {
	eng, _, _ := newTestEngine()
	fake := eng.clk.(*clock.Fake)
	ctx := context.Background()

	sc, err := eng.CreateContext(ctx, "scratch", "generic", "owner-1", types.NewTree(nil))
	require.NoError(t, err)

	require.NoError(t, eng.GrantAccess(ctx, sc.ID, "owner-1", "temp-agent", types.AccessReadWrite, time.Minute))

	// GrantAccess saved the context, so re-read its current version.
	granted, err := eng.GetContext(ctx, sc.ID, "owner-1")
	require.NoError(t, err)
	_, err = eng.UpdateContext(ctx, sc.ID, "temp-agent", []ChangeRequest{
		{Operation: types.ChangeUpdate, Path: "/x", Value: types.NewScalar(1)},
	}, granted.Version)
	require.NoError(t, err)

	fake.Advance(2 * time.Minute)

	latest, err := eng.GetContext(ctx, sc.ID, "owner-1")
	require.NoError(t, err)
	_, err = eng.UpdateContext(ctx, sc.ID, "temp-agent", []ChangeRequest{
		{Operation: types.ChangeUpdate, Path: "/y", Value: types.NewScalar(2)},
	}, latest.Version)
	require.Error(t, err)
	assert.Equal(t, types.PermissionDenied, types.KindOf(err))
}

func TestEngine_MergeContexts(t *testing.T) {
	eng, _, _ := newTestEngine()
	ctx := context.Background()

	target, err := eng.CreateContext(ctx, "target", "generic", "owner-1", types.NewTree(map[string]types.Value{
		"a": types.NewScalar(1),
	}))
	require.NoError(t, err)
	source, err := eng.CreateContext(ctx, "source", "generic", "owner-1", types.NewTree(map[string]types.Value{
		"b": types.NewScalar(2),
	}))
	require.NoError(t, err)

	merged, err := eng.MergeContexts(ctx, target.ID, source.ID, "owner-1", ResolveSource)
	require.NoError(t, err)

	av, ok := types.GetAtPath(merged.Content, "/a")
	require.True(t, ok)
	assert.Equal(t, 1, av.Scalar)
	bv, ok := types.GetAtPath(merged.Content, "/b")
	require.True(t, ok)
	assert.Equal(t, 2, bv.Scalar)
}

func TestEngine_ForkContextIsIndependent(t *testing.T) {
	eng, _, _ := newTestEngine()
	ctx := context.Background()

	source, err := eng.CreateContext(ctx, "source", "generic", "owner-1", types.NewTree(map[string]types.Value{
		"a": types.NewScalar(1),
	}))
	require.NoError(t, err)
	require.NoError(t, eng.GrantAccess(ctx, source.ID, "owner-1", "owner-2", types.AccessReadOnly, 0))

	forked, err := eng.ForkContext(ctx, source.ID, "owner-2", "forked")
	require.NoError(t, err)
	assert.NotEqual(t, source.ID, forked.ID)

	_, err = eng.UpdateContext(ctx, forked.ID, "owner-2", []ChangeRequest{
		{Operation: types.ChangeUpdate, Path: "/a", Value: types.NewScalar(99)},
	}, forked.Version)
	require.NoError(t, err)

	original, err := eng.GetContext(ctx, source.ID, "owner-1")
	require.NoError(t, err)
	av, _ := types.GetAtPath(original.Content, "/a")
	assert.Equal(t, 1, av.Scalar)
}

func TestEngine_RevertToVersion(t *testing.T) {
	eng, _, _ := newTestEngine()
	ctx := context.Background()

	sc, err := eng.CreateContext(ctx, "scratch", "generic", "owner-1", types.NewTree(nil))
	require.NoError(t, err)
	firstVersion := sc.CurrentVersionID

	sc, err = eng.UpdateContext(ctx, sc.ID, "owner-1", []ChangeRequest{
		{Operation: types.ChangeUpdate, Path: "/x", Value: types.NewScalar(1)},
	}, sc.Version)
	require.NoError(t, err)

	reverted, err := eng.RevertToVersion(ctx, sc.ID, "owner-1", firstVersion, sc.Version)
	require.NoError(t, err)
	_, ok := types.GetAtPath(reverted.Content, "/x")
	assert.False(t, ok)
}

func TestEngine_CompareVersions(t *testing.T) {
	eng, _, _ := newTestEngine()
	ctx := context.Background()

	sc, err := eng.CreateContext(ctx, "scratch", "generic", "owner-1", types.NewTree(nil))
	require.NoError(t, err)
	v0 := sc.CurrentVersionID

	sc, err = eng.UpdateContext(ctx, sc.ID, "owner-1", []ChangeRequest{
		{Operation: types.ChangeUpdate, Path: "/x", Value: types.NewScalar(1)},
	}, sc.Version)
	require.NoError(t, err)

	diff, err := eng.CompareVersions(ctx, sc.ID, v0, sc.CurrentVersionID)
	require.NoError(t, err)
	_, added := diff.Added["/x"]
	assert.True(t, added)
}

func TestEngine_ArchivalFiresEveryNVersions(t *testing.T) {
	eng, _, archive := newTestEngine()
	ctx := context.Background()

	sc, err := eng.CreateContext(ctx, "scratch", "generic", "owner-1", types.NewTree(nil))
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		sc, err = eng.UpdateContext(ctx, sc.ID, "owner-1", []ChangeRequest{
			{Operation: types.ChangeUpdate, Path: "/x", Value: types.NewScalar(i)},
		}, sc.Version)
		require.NoError(t, err)
	}

	require.Eventually(t, func() bool {
		return archive.Count() >= 1
	}, time.Second, 10*time.Millisecond)
}

func TestEngine_MutatorOnlySubscriberGetsNoNotification(t *testing.T) {
	eng, notify, _ := newTestEngine()
	ctx := context.Background()

	sc, err := eng.CreateContext(ctx, "scratch", "generic", "owner-1", types.NewTree(nil))
	require.NoError(t, err)
	require.NoError(t, eng.Subscribe(ctx, sc.ID, "owner-1"))

	latest, err := eng.GetContext(ctx, sc.ID, "owner-1")
	require.NoError(t, err)
	_, err = eng.UpdateContext(ctx, sc.ID, "owner-1", []ChangeRequest{
		{Operation: types.ChangeUpdate, Path: "/x", Value: types.NewScalar(1)},
	}, latest.Version)
	require.NoError(t, err)

	assert.Empty(t, notify.Drain())
}

// TestEngine_SeedContentReplaysThroughVersionChain exercises the initial
// ContextVersion's CREATE-at-"/" change directly: non-empty seed content
// must reconstruct, diff, and revert correctly, not just the empty-tree
// case.
func TestEngine_SeedContentReplaysThroughVersionChain(t *testing.T) {
	eng, _, _ := newTestEngine()
	ctx := context.Background()

	seed := types.NewTree(map[string]types.Value{"x": types.NewScalar(1)})
	sc, err := eng.CreateContext(ctx, "scratch", "generic", "owner-1", seed)
	require.NoError(t, err)
	v0 := sc.CurrentVersionID

	seeded, err := eng.GetContextVersion(ctx, sc.ID, v0, "owner-1")
	require.NoError(t, err)
	xv, ok := types.GetAtPath(seeded, "/x")
	require.True(t, ok)
	assert.Equal(t, 1, xv.Scalar)

	sc, err = eng.UpdateContext(ctx, sc.ID, "owner-1", []ChangeRequest{
		{Operation: types.ChangeUpdate, Path: "/x", Value: types.NewScalar(2)},
	}, sc.Version)
	require.NoError(t, err)

	// S1: /x goes from 1 to 2 — a modification of a pre-existing key, not a
	// fresh addition.
	diff, err := eng.CompareVersions(ctx, sc.ID, v0, sc.CurrentVersionID)
	require.NoError(t, err)
	assert.NotContains(t, diff.Added, "/x")
	mod, ok := diff.Modified["/x"]
	require.True(t, ok)
	assert.Equal(t, 1, mod[0].Scalar)
	assert.Equal(t, 2, mod[1].Scalar)

	reverted, err := eng.RevertToVersion(ctx, sc.ID, "owner-1", v0, sc.Version)
	require.NoError(t, err)
	rx, ok := types.GetAtPath(reverted.Content, "/x")
	require.True(t, ok)
	assert.Equal(t, 1, rx.Scalar)
}

func TestEngine_GetContextVersionRequiresAccess(t *testing.T) {
	eng, _, _ := newTestEngine()
	ctx := context.Background()

	sc, err := eng.CreateContext(ctx, "scratch", "generic", "owner-1", types.NewTree(nil))
	require.NoError(t, err)

	_, err = eng.GetContextVersion(ctx, sc.ID, sc.CurrentVersionID, "stranger")
	require.Error(t, err)
	assert.Equal(t, types.PermissionDenied, types.KindOf(err))
}

func TestEngine_SubscribeReceivesNotification(t *testing.T) {
	eng, notify, _ := newTestEngine()
	ctx := context.Background()

	sc, err := eng.CreateContext(ctx, "scratch", "generic", "owner-1", types.NewTree(nil))
	require.NoError(t, err)
	require.NoError(t, eng.GrantAccess(ctx, sc.ID, "owner-1", "watcher-1", types.AccessReadOnly, 0))
	require.NoError(t, eng.Subscribe(ctx, sc.ID, "watcher-1"))

	latest, err := eng.GetContext(ctx, sc.ID, "owner-1")
	require.NoError(t, err)
	_, err = eng.UpdateContext(ctx, sc.ID, "owner-1", []ChangeRequest{
		{Operation: types.ChangeUpdate, Path: "/x", Value: types.NewScalar(1)},
	}, latest.Version)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return len(notify.Drain()) > 0
	}, time.Second, 10*time.Millisecond)
}
