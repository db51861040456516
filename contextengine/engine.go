// Package contextengine implements the Shared Context Engine (C2): a
// versioned, access-controlled content tree agents read and write
// concurrently, with merge, fork, diff, and revert support.
package contextengine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/coordmesh/core/clock"
	"github.com/coordmesh/core/sinks"
	"github.com/coordmesh/core/store"
	"github.com/coordmesh/core/types"
)

// Engine is the Shared Context Engine. All methods are safe for concurrent
// use; concurrency safety on a given context ultimately rests on the
// Repository's optimistic-concurrency check in UpdateContext.
type Engine struct {
	repo     store.Repository
	notify   sinks.NotificationSink
	archive  sinks.ArchivalSink
	compress sinks.CompressionSink
	cfg      types.ContextConfig
	log      *zap.Logger
	clk      clock.Clock
}

// New constructs an Engine. notify/archive/compress may be nil, in which
// case those hooks are skipped entirely.
func New(repo store.Repository, notify sinks.NotificationSink, archive sinks.ArchivalSink, compress sinks.CompressionSink, cfg types.ContextConfig, log *zap.Logger, clk clock.Clock) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	if clk == nil {
		clk = clock.Real{}
	}
	if compress == nil {
		compress = sinks.NoopCompressionSink{}
	}
	return &Engine{repo: repo, notify: notify, archive: archive, compress: compress, cfg: cfg, log: log, clk: clk}
}

// ChangeRequest is one path-scoped write within an UpdateContext call. All
// ChangeRequests in a call are applied atomically into a single
// ContextVersion.
type ChangeRequest struct {
	Operation types.ChangeOp
	Path      string
	Value     types.Value
}

// ═══════════════════════════════════════════════════════════════════════
// CREATE / READ
// ═══════════════════════════════════════════════════════════════════════

// CreateContext creates a new SharedContext owned by ownerID, seeded with
// initial content and an initial ContextVersion.
func (e *Engine) CreateContext(ctx context.Context, name, contextType, ownerID string, initial types.Value) (*types.SharedContext, error) {
	sc := types.NewSharedContext(uuid.NewString(), name, contextType, ownerID, initial)
	now := e.clk.Now()
	v := &types.ContextVersion{
		VersionID: uuid.NewString(),
		ContextID: sc.ID,
		Timestamp: now,
		AgentID:   ownerID,
		Changes: []types.ContextChange{{
			Operation: types.ChangeCreate,
			Path:      "/",
			NewValue:  initial,
			AgentID:   ownerID,
			Timestamp: now,
		}},
		ContentHash: hashContent(initial),
	}
	sc.CurrentVersionID = v.VersionID

	if err := e.repo.CreateContext(ctx, sc); err != nil {
		return nil, err
	}
	if err := e.repo.AppendContextVersion(ctx, v); err != nil {
		return nil, err
	}
	e.log.Info("context created", zap.String("context_id", sc.ID), zap.String("owner", ownerID))
	return sc, nil
}

// GetContext returns a context agentID has at least READ_ONLY access to.
func (e *Engine) GetContext(ctx context.Context, contextID, agentID string) (*types.SharedContext, error) {
	sc, err := e.repo.GetContext(ctx, contextID)
	if err != nil {
		return nil, err
	}
	if err := requireAccess(sc, agentID, types.AccessReadOnly, e.clk.Now()); err != nil {
		return nil, err
	}
	return sc, nil
}

// ═══════════════════════════════════════════════════════════════════════
// UPDATE
// ═══════════════════════════════════════════════════════════════════════

// UpdateContext applies a batch of ChangeRequests atomically as a single new
// ContextVersion, enforcing optimistic concurrency against expectedVersion.
// A stale write returns a retryable types.StaleVersion error; callers should
// re-fetch and retry per spec.md §7.
func (e *Engine) UpdateContext(ctx context.Context, contextID, agentID string, reqs []ChangeRequest, expectedVersion int) (*types.SharedContext, error) {
	sc, err := e.repo.GetContext(ctx, contextID)
	if err != nil {
		return nil, err
	}
	if err := requireAccess(sc, agentID, types.AccessReadWrite, e.clk.Now()); err != nil {
		return nil, err
	}
	if sc.Version != expectedVersion {
		return nil, types.NewError(types.StaleVersion,
			fmt.Sprintf("context %s: expected version %d, current version %d", contextID, expectedVersion, sc.Version), nil)
	}

	now := e.clk.Now()
	changes := make([]types.ContextChange, 0, len(reqs))
	content := sc.Content
	for _, r := range reqs {
		old, _ := types.GetAtPath(content, r.Path)
		switch r.Operation {
		case types.ChangeDelete:
			content = types.DeleteAtPath(content, r.Path)
		default:
			content = types.SetAtPath(content, r.Path, r.Value)
		}
		changes = append(changes, types.ContextChange{
			Operation: r.Operation,
			Path:      r.Path,
			OldValue:  old,
			NewValue:  r.Value,
			AgentID:   agentID,
			Timestamp: now,
		})
	}

	v := &types.ContextVersion{
		VersionID:       uuid.NewString(),
		ContextID:       contextID,
		Timestamp:       now,
		AgentID:         agentID,
		ParentVersionID: sc.CurrentVersionID,
		Changes:         changes,
		ContentHash:     hashContent(content),
	}

	sc.Content = content
	sc.CurrentVersionID = v.VersionID

	if err := e.repo.UpdateContext(ctx, sc, expectedVersion); err != nil {
		return nil, err
	}
	if err := e.repo.AppendContextVersion(ctx, v); err != nil {
		return nil, err
	}

	e.dispatchNotifications(ctx, sc, v, changes)
	e.maybeArchive(ctx, contextID, v.VersionID, content)

	return e.repo.GetContext(ctx, contextID)
}

// ═══════════════════════════════════════════════════════════════════════
// MERGE / FORK
// ═══════════════════════════════════════════════════════════════════════

// MergeContexts merges source's content into target, recording the merge as
// a single ContextVersion on target. The caller needs READ_WRITE on target
// and at least READ_ONLY on source.
func (e *Engine) MergeContexts(ctx context.Context, targetID, sourceID, agentID string, resolution MergeResolution) (*types.SharedContext, error) {
	now := e.clk.Now()

	target, err := e.repo.GetContext(ctx, targetID)
	if err != nil {
		return nil, err
	}
	if err := requireAccess(target, agentID, types.AccessReadWrite, now); err != nil {
		return nil, err
	}
	source, err := e.repo.GetContext(ctx, sourceID)
	if err != nil {
		return nil, err
	}
	if err := requireAccess(source, agentID, types.AccessReadOnly, now); err != nil {
		return nil, err
	}

	res := resolution
	if res == ResolveLatest {
		res = resolveLatestSide(target, source)
	}
	merged := mergeContents(target.Content, source.Content, res)

	v := &types.ContextVersion{
		VersionID:       uuid.NewString(),
		ContextID:       targetID,
		Timestamp:       now,
		AgentID:         agentID,
		ParentVersionID: target.CurrentVersionID,
		Changes: []types.ContextChange{{
			Operation: types.ChangeMerge,
			Path:      "/",
			OldValue:  target.Content,
			NewValue:  merged,
			AgentID:   agentID,
			Timestamp: now,
			Metadata:  map[string]string{"source_context_id": sourceID, "resolution": string(resolution)},
		}},
		ContentHash: hashContent(merged),
	}

	expected := target.Version
	target.Content = merged
	target.CurrentVersionID = v.VersionID

	if err := e.repo.UpdateContext(ctx, target, expected); err != nil {
		return nil, err
	}
	if err := e.repo.AppendContextVersion(ctx, v); err != nil {
		return nil, err
	}
	e.dispatchNotifications(ctx, target, v, v.Changes)
	e.maybeArchive(ctx, targetID, v.VersionID, merged)

	return e.repo.GetContext(ctx, targetID)
}

// ForkContext creates a new, independently-versioned context seeded with a
// deep copy of an existing one's content, owned by agentID.
func (e *Engine) ForkContext(ctx context.Context, contextID, agentID, newName string) (*types.SharedContext, error) {
	source, err := e.repo.GetContext(ctx, contextID)
	if err != nil {
		return nil, err
	}
	if err := requireAccess(source, agentID, types.AccessReadOnly, e.clk.Now()); err != nil {
		return nil, err
	}
	forked, err := e.CreateContext(ctx, newName, source.ContextType, agentID, types.DeepCopy(source.Content))
	if err != nil {
		return nil, err
	}
	forked.Metadata["forked_from"] = contextID
	forked.Metadata["forked_from_version"] = source.CurrentVersionID
	if err := e.repo.UpdateContext(ctx, forked, forked.Version); err != nil {
		return nil, err
	}
	return e.repo.GetContext(ctx, forked.ID)
}

// ═══════════════════════════════════════════════════════════════════════
// ACCESS CONTROL
// ═══════════════════════════════════════════════════════════════════════

// GrantAccess installs or replaces agentID's access grant on contextID.
// ttl <= 0 grants access with no expiry. Requires ADMIN on the part of
// granterID.
func (e *Engine) GrantAccess(ctx context.Context, contextID, granterID, agentID string, level types.AccessLevel, ttl time.Duration) error {
	now := e.clk.Now()
	sc, err := e.repo.GetContext(ctx, contextID)
	if err != nil {
		return err
	}
	if err := requireAccess(sc, granterID, types.AccessAdmin, now); err != nil {
		return err
	}
	var expiresAt *time.Time
	if ttl > 0 {
		t := now.Add(ttl)
		expiresAt = &t
	}
	grantAccess(sc, agentID, level, granterID, expiresAt, now)
	return e.repo.UpdateContext(ctx, sc, sc.Version)
}

// RevokeAccess removes agentID's grant on contextID. Requires ADMIN on the
// part of revokerID.
func (e *Engine) RevokeAccess(ctx context.Context, contextID, revokerID, agentID string) error {
	now := e.clk.Now()
	sc, err := e.repo.GetContext(ctx, contextID)
	if err != nil {
		return err
	}
	if err := requireAccess(sc, revokerID, types.AccessAdmin, now); err != nil {
		return err
	}
	revokeAccess(sc, agentID)
	return e.repo.UpdateContext(ctx, sc, sc.Version)
}

// ═══════════════════════════════════════════════════════════════════════
// SUBSCRIPTIONS
// ═══════════════════════════════════════════════════════════════════════

// Subscribe registers agentID to receive notifications on contextID's
// version commits. Requires at least READ_ONLY access.
func (e *Engine) Subscribe(ctx context.Context, contextID, agentID string) error {
	sc, err := e.repo.GetContext(ctx, contextID)
	if err != nil {
		return err
	}
	if err := requireAccess(sc, agentID, types.AccessReadOnly, e.clk.Now()); err != nil {
		return err
	}
	sc.Subscribers[agentID] = struct{}{}
	return e.repo.UpdateContext(ctx, sc, sc.Version)
}

// Unsubscribe removes agentID from contextID's subscriber set.
func (e *Engine) Unsubscribe(ctx context.Context, contextID, agentID string) error {
	sc, err := e.repo.GetContext(ctx, contextID)
	if err != nil {
		return err
	}
	delete(sc.Subscribers, agentID)
	return e.repo.UpdateContext(ctx, sc, sc.Version)
}

// ═══════════════════════════════════════════════════════════════════════
// VERSION HISTORY
// ═══════════════════════════════════════════════════════════════════════

// GetContextVersion reconstructs the content at versionID by replaying the
// context's stored versions in append order, from the initial version up to
// and including versionID. Requires READ.
func (e *Engine) GetContextVersion(ctx context.Context, contextID, versionID, agentID string) (types.Value, error) {
	sc, err := e.repo.GetContext(ctx, contextID)
	if err != nil {
		return types.Absent, err
	}
	if err := requireAccess(sc, agentID, types.AccessReadOnly, e.clk.Now()); err != nil {
		return types.Absent, err
	}
	versions, err := e.repo.ListContextVersions(ctx, contextID)
	if err != nil {
		return types.Absent, err
	}
	return reconstructAt(versions, versionID)
}

// CompareVersions diffs the reconstructed content at two versions in a
// context's history.
func (e *Engine) CompareVersions(ctx context.Context, contextID, fromVersionID, toVersionID string) (VersionDiff, error) {
	versions, err := e.repo.ListContextVersions(ctx, contextID)
	if err != nil {
		return VersionDiff{}, err
	}
	return compareVersions(versions, fromVersionID, toVersionID)
}

// RevertToVersion resets a context's content to match an earlier version,
// recorded as a new forward-moving ContextVersion (history is never
// rewritten, only appended to).
func (e *Engine) RevertToVersion(ctx context.Context, contextID, agentID, targetVersionID string, expectedVersion int) (*types.SharedContext, error) {
	versions, err := e.repo.ListContextVersions(ctx, contextID)
	if err != nil {
		return nil, err
	}
	reconstructed, err := reconstructAt(versions, targetVersionID)
	if err != nil {
		return nil, err
	}
	return e.UpdateContext(ctx, contextID, agentID, []ChangeRequest{{
		Operation: types.ChangeUpdate,
		Path:      "/",
		Value:     reconstructed,
	}}, expectedVersion)
}

// ═══════════════════════════════════════════════════════════════════════
// SEARCH
// ═══════════════════════════════════════════════════════════════════════

// SearchOptions filters SearchContexts results; zero-value fields match
// anything.
type SearchOptions struct {
	NameContains string
	ContextType  string
	OwnerID      string
}

// SearchContexts returns all contexts matching every non-zero SearchOptions
// field.
func (e *Engine) SearchContexts(ctx context.Context, opts SearchOptions) ([]*types.SharedContext, error) {
	return e.repo.SearchContexts(ctx, func(sc *types.SharedContext) bool {
		if opts.NameContains != "" && !strings.Contains(strings.ToLower(sc.Name), strings.ToLower(opts.NameContains)) {
			return false
		}
		if opts.ContextType != "" && sc.ContextType != opts.ContextType {
			return false
		}
		if opts.OwnerID != "" && sc.OwnerID != opts.OwnerID {
			return false
		}
		return true
	})
}

// ═══════════════════════════════════════════════════════════════════════
// INTERNAL HOOKS — notification dispatch, archival
// ═══════════════════════════════════════════════════════════════════════

func (e *Engine) dispatchNotifications(ctx context.Context, sc *types.SharedContext, v *types.ContextVersion, changes []types.ContextChange) {
	if e.notify == nil || len(sc.Subscribers) == 0 {
		return
	}
	subs := make([]string, 0, len(sc.Subscribers))
	for s := range sc.Subscribers {
		if s == v.AgentID {
			continue
		}
		subs = append(subs, s)
	}
	if len(subs) == 0 {
		return
	}
	paths := make([]string, len(changes))
	changeKind := types.ChangeUpdate
	for i, c := range changes {
		paths[i] = c.Path
		changeKind = c.Operation
	}
	n := sinks.Notification{
		ContextID:  sc.ID,
		VersionID:  v.VersionID,
		AgentID:    v.AgentID,
		ChangeKind: changeKind,
		Paths:      paths,
	}
	// Dispatch is best-effort and must never block the write path; the sink
	// itself owns the bounded-queue/drop-oldest behavior.
	go func() {
		if err := e.notify.Publish(context.Background(), subs, n); err != nil {
			e.log.Warn("notification dispatch failed", zap.String("context_id", sc.ID), zap.Error(err))
		}
	}()
}

func (e *Engine) maybeArchive(ctx context.Context, contextID, versionID string, content types.Value) {
	if e.archive == nil {
		return
	}
	every := e.cfg.ArchivalEveryNVersions
	if every <= 0 {
		return
	}
	versions, err := e.repo.ListContextVersions(ctx, contextID)
	if err != nil || len(versions)%every != 0 {
		return
	}
	compressed, err := e.compress.Compress(ctx, contextID, content)
	if err != nil {
		e.log.Warn("archival compression failed", zap.String("context_id", contextID), zap.Error(err))
		compressed = content
	}
	go func() {
		if err := e.archive.Archive(context.Background(), sinks.ArchivalRecord{
			ContextID: contextID, VersionID: versionID, Content: compressed,
		}); err != nil {
			e.log.Warn("archival dispatch failed", zap.String("context_id", contextID), zap.Error(err))
		}
	}()
}
