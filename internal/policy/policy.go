// Package policy consumes the remote HR-policy service. The boundary is
// resilience-over-completeness: lookups that fail return an empty list to
// the aggregation layer rather than failing the whole fetch.
package policy

import (
	"context"
	"time"
)

const (
	CategoryMandatory = "MANDATORY"
	StatusActive      = "ACTIVE"
)

// Policy is one HR policy record as returned by the remote service.
type Policy struct {
	PolicyID              string     `json:"policyId"`
	Description           string     `json:"description"`
	Category              string     `json:"category"`
	Status                string     `json:"status"`
	RequiredSecurityLevel string     `json:"requiredSecurityLevel"`
	Version               string     `json:"version"`
	EffectiveDate         *time.Time `json:"effectiveDate,omitempty"`
	ExpiryDate            *time.Time `json:"expiryDate,omitempty"`
	ComplianceRequired    bool       `json:"complianceRequired"`
	PriorityLevel         int        `json:"priorityLevel"`
}

// Client fetches the policies applicable to a department. Implementations
// surface transport failures as errors; the aggregation layer degrades them
// to an empty list.
type Client interface {
	PoliciesForDepartment(ctx context.Context, department, sessionID string) ([]Policy, error)
}

// StaticClient serves a fixed policy set, keyed by department. Used in dev
// mode and tests.
type StaticClient struct {
	Policies map[string][]Policy
	Err      error
}

func (c *StaticClient) PoliciesForDepartment(_ context.Context, department, _ string) ([]Policy, error) {
	if c.Err != nil {
		return nil, c.Err
	}
	return c.Policies[department], nil
}
