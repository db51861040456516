package sinks

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/coordmesh/core/types"
)

// NATSNotificationSink publishes context-change notifications on subjects of
// the form "coordcore.notify.<subscriberID>". Publish never blocks on
// acknowledgement — NATS core pub/sub is fire-and-forget, matching the
// Shared Context Engine's requirement that notification dispatch never stall
// a write.
type NATSNotificationSink struct {
	conn *nats.Conn
	log  *zap.Logger
}

// NewNATSNotificationSink wraps an established NATS connection.
func NewNATSNotificationSink(conn *nats.Conn, log *zap.Logger) *NATSNotificationSink {
	if log == nil {
		log = zap.NewNop()
	}
	return &NATSNotificationSink{conn: conn, log: log}
}

func (s *NATSNotificationSink) Publish(ctx context.Context, subscriberIDs []string, n Notification) error {
	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	for _, sub := range subscriberIDs {
		subject := fmt.Sprintf("coordcore.notify.%s", sub)
		if err := s.conn.Publish(subject, data); err != nil {
			s.log.Warn("notification publish failed",
				zap.String("subject", subject),
				zap.String("context_id", n.ContextID),
				zap.Error(err))
			continue
		}
	}
	return nil
}

// NATSArchivalSink publishes archival snapshots on "coordcore.archive.<id>"
// for a downstream consumer (e.g. a durable-storage subscriber) to persist.
type NATSArchivalSink struct {
	conn *nats.Conn
	log  *zap.Logger
}

func NewNATSArchivalSink(conn *nats.Conn, log *zap.Logger) *NATSArchivalSink {
	if log == nil {
		log = zap.NewNop()
	}
	return &NATSArchivalSink{conn: conn, log: log}
}

type archivalWire struct {
	ContextID string     `json:"context_id"`
	VersionID string     `json:"version_id"`
	Content   types.Value `json:"content"`
}

func (s *NATSArchivalSink) Archive(ctx context.Context, rec ArchivalRecord) error {
	wire := archivalWire{ContextID: rec.ContextID, VersionID: rec.VersionID, Content: rec.Content}
	data, err := json.Marshal(wire)
	if err != nil {
		return fmt.Errorf("marshal archival record: %w", err)
	}
	subject := fmt.Sprintf("coordcore.archive.%s", rec.ContextID)
	if err := s.conn.Publish(subject, data); err != nil {
		s.log.Error("archival publish failed",
			zap.String("context_id", rec.ContextID),
			zap.String("version_id", rec.VersionID),
			zap.Error(err))
		return fmt.Errorf("publish archival record: %w", err)
	}
	return nil
}
