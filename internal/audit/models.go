package audit

import (
	"context"
	"time"
)

// Actions recorded by this subsystem. The high-priority set must reach the
// durable store synchronously; everything else rides the buffered path.
const (
	ActionSecurityViolation   = "SECURITY_VIOLATION"
	ActionUnauthorizedAccess  = "UNAUTHORIZED_ACCESS"
	ActionComplianceViolation = "COMPLIANCE_VIOLATION"

	ActionEmployeeAccess  = "EMPLOYEE_ACCESS"
	ActionEmployeeUpdated = "EMPLOYEE_UPDATED"
	ActionEmployeeDeleted = "EMPLOYEE_DELETED"
)

type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityNormal Priority = "normal"
)

// PriorityOf derives the routing priority from an action tag.
func PriorityOf(action string) Priority {
	switch action {
	case ActionSecurityViolation, ActionUnauthorizedAccess, ActionComplianceViolation:
		return PriorityHigh
	default:
		return PriorityNormal
	}
}

// Event is emitted from domain logic to capture key actions. Immutable once
// recorded; identity is assigned by the durable store.
type Event struct {
	SubjectID     string    `json:"subject_id"`
	Action        string    `json:"action"`
	Details       string    `json:"details"`
	UserID        string    `json:"user_id"`
	SessionID     string    `json:"session_id"`
	Source        string    `json:"source"`
	TransactionID string    `json:"transaction_id"`
	Priority      Priority  `json:"priority"`
	Timestamp     time.Time `json:"timestamp"`
}

// Store is the durable sink for audit events.
type Store interface {
	Append(ctx context.Context, e Event) error
}

// Sink receives high-priority events for fan-out beyond the durable store
// (e.g. a kafka topic feeding security monitoring). Best-effort.
type Sink interface {
	Publish(ctx context.Context, e Event)
}
