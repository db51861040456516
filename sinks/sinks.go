// Package sinks implements the Shared Context Engine's outbound hooks:
// change notifications, version archival, and (optionally) content
// compression, decoupled from the engine behind small interfaces so the
// backing transport — NATS in production, an in-memory queue in tests — is
// swappable.
package sinks

import (
	"context"

	"github.com/coordmesh/core/types"
)

// Notification is dispatched to a SharedContext's subscribers whenever a
// version is committed.
type Notification struct {
	ContextID  string
	VersionID  string
	AgentID    string
	ChangeKind types.ChangeOp
	Paths      []string
}

// NotificationSink delivers Notifications to subscribers. Publish must not
// block the caller for long — implementations bound their own queue and
// drop rather than stall the Shared Context Engine.
type NotificationSink interface {
	Publish(ctx context.Context, subscriberIDs []string, n Notification) error
}

// ArchivalRecord is a version snapshot handed to long-term storage once a
// context crosses its archival threshold (spec.md §6 archival hook).
type ArchivalRecord struct {
	ContextID string
	VersionID string
	Content   types.Value
}

// ArchivalSink persists ArchivalRecords outside the hot path.
type ArchivalSink interface {
	Archive(ctx context.Context, rec ArchivalRecord) error
}

// CompressionSink shrinks a context's content tree for storage; it is an
// external, opaque transform and is never required for correctness.
type CompressionSink interface {
	Compress(ctx context.Context, contextID string, content types.Value) (types.Value, error)
}

// NoopCompressionSink performs no compression, returning content unchanged.
type NoopCompressionSink struct{}

func (NoopCompressionSink) Compress(ctx context.Context, contextID string, content types.Value) (types.Value, error) {
	return content, nil
}
