package models

import "time"

// Security levels gate access to sensitive data. The set is open: unknown
// levels are carried through and simply never pass the sensitive-data check.
const (
	LevelBasic   = "BASIC"
	LevelManager = "MANAGER"
	LevelAdmin   = "ADMIN"
)

const (
	PermissionRead  = "READ"
	PermissionWrite = "WRITE"
)

const ComplianceBasic = "BASIC"

// SecurityContext is a time-bounded authorization grant tied to a session id
// and user id. Instances held in the live session map are treated as
// immutable snapshots: mutations go through Clone and a map replace so
// concurrent readers never observe a torn composite state.
type SecurityContext struct {
	SessionID      string
	UserID         string
	SecurityLevel  string
	CreatedAt      time.Time
	LastAccessedAt time.Time
	ExpiresAt      time.Time
	Active         bool

	FailedAttempts int
	LockedUntil    *time.Time

	Permissions []string
	Roles       []string
	Attributes  map[string]string

	AuditRequired   bool
	ComplianceLevel string
}

// IsExpiredAt reports whether the context's expiry is at or before now.
// An expired context must be treated as inactive even when the stored
// Active flag has not been flushed yet.
func (c *SecurityContext) IsExpiredAt(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && !c.ExpiresAt.After(now)
}

// Clone returns a deep copy so the caller can mutate without racing readers
// of the original snapshot.
func (c *SecurityContext) Clone() *SecurityContext {
	next := *c
	next.Permissions = append([]string(nil), c.Permissions...)
	next.Roles = append([]string(nil), c.Roles...)
	if c.Attributes != nil {
		next.Attributes = make(map[string]string, len(c.Attributes))
		for k, v := range c.Attributes {
			next.Attributes[k] = v
		}
	}
	if c.LockedUntil != nil {
		until := *c.LockedUntil
		next.LockedUntil = &until
	}
	return &next
}
