package types

import "time"

// EventType classifies audit events. One JSONL file exists per
// (event type, project, environment).
type EventType string

const (
	EventDeploy      EventType = "deploy"
	EventPromote     EventType = "promote"
	EventRollback    EventType = "rollback"
	EventCleanup     EventType = "cleanup"
	EventAuthzDenied EventType = "authz-denied"
	EventReconcile   EventType = "reconcile"
)

// AuditEvent is one line of the append-only audit log. Events are never
// rewritten; the log is the source of truth for change history.
type AuditEvent struct {
	ID          string      `json:"id"`
	Timestamp   time.Time   `json:"timestamp"`
	Type        EventType   `json:"event"`
	Project     string      `json:"project"`
	Environment Environment `json:"environment"`
	FromSlot    SlotName    `json:"from_slot,omitempty"`
	ToSlot      SlotName    `json:"to_slot,omitempty"`
	FromVersion string      `json:"from_version,omitempty"`
	ToVersion   string      `json:"to_version,omitempty"`
	Reason      string      `json:"reason,omitempty"`
	TokenID     string      `json:"token_id,omitempty"`
	TeamID      string      `json:"team_id,omitempty"`
	DurationMS  int64       `json:"duration_ms"`
	Success     bool        `json:"success"`
	Error       string      `json:"error,omitempty"`
}
