package models

import (
	"time"

	"empgate/internal/policy"
)

const (
	StatusActive   = "ACTIVE"
	StatusInactive = "INACTIVE"
)

// Employee is the subject record owned by the employee store.
type Employee struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Department    string    `json:"department"`
	Email         string    `json:"email"`
	Phone         string    `json:"phone"`
	ManagerID     string    `json:"manager_id,omitempty"`
	Status        string    `json:"status"`
	SecurityLevel string    `json:"security_level"`
	SalaryBand    string    `json:"salary_band,omitempty"`
	LocationCode  string    `json:"location_code,omitempty"`
	CostCenter    string    `json:"cost_center,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	LastModified  time.Time `json:"last_modified"`
	Version       int       `json:"version"`
}

// Clone returns a copy safe to hand to callers of the in-memory store.
func (e *Employee) Clone() *Employee {
	next := *e
	return &next
}

// Finding is a validation note attached to an aggregate.
type Finding struct {
	Field    string `json:"field"`
	Message  string `json:"message"`
	Severity string `json:"severity"` // "ERROR" or "WARNING"
	Source   string `json:"source"`
}

// AuthorizationSummary carries the decisions the requester's security
// context produced during assembly: effective rights on the subject, the
// derived permission list, and the compliance verdict.
type AuthorizationSummary struct {
	SecurityLevel string          `json:"security_level"`
	AccessRights  map[string]bool `json:"access_rights"`
	Permissions   []string        `json:"permissions"`
	Compliant     bool            `json:"compliant"`
}

// Aggregate is the assembled, authorization-checked view combining a subject
// record with its policy data. Cached per (subject id, security level); the
// same aggregate must never serve requesters at different levels.
type Aggregate struct {
	Employee      Employee             `json:"employee"`
	Policies      []policy.Policy      `json:"policies"`
	Authorization AuthorizationSummary `json:"authorization"`
	Findings      []Finding            `json:"findings,omitempty"`
	AssembledAt   time.Time            `json:"assembled_at"`
	TransactionID string               `json:"transaction_id"`
}

// UpdateEmployeeRequest carries the mutable employee fields.
type UpdateEmployeeRequest struct {
	Name       string `json:"name"`
	Department string `json:"department"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
}
