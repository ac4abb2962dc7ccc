package types

import "time"

// Audit event types published to the registry.audit channel.
const (
	EventRecordUpdated       = "record.updated"
	EventUserCreated         = "user.created"
	EventUserPasswordChanged = "user.password_changed"
)

// RecordEvent is an audit event emitted after a successful mutation.
// Payloads never carry secrets or field values, only identifiers and the
// set of touched columns.
type RecordEvent struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	RecordID   string    `json:"record_id,omitempty"`
	Username   string    `json:"username,omitempty"`
	Columns    []string  `json:"columns,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}
