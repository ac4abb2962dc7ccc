// Package events publishes audit events for registry and credential
// mutations. Publishing is best-effort: the API response never waits on or
// surfaces a broker failure.
package events

import (
	"context"
	"time"

	"github.com/cidco-records/apiserver/types"
	"github.com/google/uuid"
)

// AuditChannel is the queue/topic audit events are published to.
const AuditChannel = "registry.audit"

// Publisher delivers audit events to a broker.
type Publisher interface {
	Publish(ctx context.Context, event types.RecordEvent) error
	Close() error
}

// NewEvent stamps an audit event with an ID and timestamp.
func NewEvent(eventType string) types.RecordEvent {
	return types.RecordEvent{
		ID:         uuid.NewString(),
		Type:       eventType,
		OccurredAt: time.Now().UTC(),
	}
}

// NoopPublisher discards events. Used when no broker is configured.
type NoopPublisher struct{}

func (NoopPublisher) Publish(ctx context.Context, event types.RecordEvent) error {
	return nil
}

func (NoopPublisher) Close() error {
	return nil
}
