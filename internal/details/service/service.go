// Package service assembles the authorized employee aggregate: subject
// record plus department policies, gated by the requester's security
// context and cached per (subject, security level).
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"empgate/internal/audit"
	"empgate/internal/details/cache"
	"empgate/internal/details/models"
	"empgate/internal/details/store"
	"empgate/internal/platform/metrics"
	"empgate/internal/policy"
	secmodels "empgate/internal/security/models"
	"empgate/internal/security/permissions"
	dErrors "empgate/pkg/domain-errors"
	"empgate/pkg/requestcontext"
	"empgate/pkg/sentinel"
)

// source tags audit events emitted from this layer.
const source = "details-service"

// systemActor is the recorded user for events with no resolvable requester.
const systemActor = "SYSTEM"

// Sessions is the slice of the session authority this service needs.
type Sessions interface {
	Validate(ctx context.Context, sessionID, requiredPermission string) bool
	Get(ctx context.Context, sessionID string) (*secmodels.SecurityContext, bool)
}

// Auditor accepts audit events. Recording never fails from the caller's
// point of view.
type Auditor interface {
	Record(ctx context.Context, e audit.Event)
}

// Service is the aggregation layer over the employee store, the policy
// client, and the response cache.
type Service struct {
	sessions  Sessions
	employees store.EmployeeStore
	policies  policy.Client
	cache     *cache.Cache
	auditor   Auditor
	logger    *slog.Logger
	metrics   *metrics.Metrics

	accessCounters sync.Map // subject id -> *atomic.Int64
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func New(sessions Sessions, employees store.EmployeeStore, policies policy.Client, c *cache.Cache, auditor Auditor, opts ...Option) (*Service, error) {
	if sessions == nil || employees == nil || policies == nil || c == nil || auditor == nil {
		return nil, errors.New("all collaborators are required")
	}
	s := &Service{
		sessions:  sessions,
		employees: employees,
		policies:  policies,
		cache:     c,
		auditor:   auditor,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// FetchAggregate returns the assembled view of the subject for the caller
// behind sessionID. The cache is consulted per (subject, security level);
// a fresh entry short-circuits everything, including authorization checks
// against the subject record itself.
func (s *Service) FetchAggregate(ctx context.Context, subjectID, sessionID string) (*models.Aggregate, error) {
	if !s.sessions.Validate(ctx, sessionID, secmodels.PermissionRead) {
		s.auditor.Record(ctx, audit.Event{
			SubjectID: subjectID,
			Action:    audit.ActionUnauthorizedAccess,
			Details:   "attempted to access employee " + subjectID,
			UserID:    systemActor,
			SessionID: sessionID,
			Source:    source,
		})
		return nil, dErrors.New(dErrors.CodeUnauthorized, "session not authorized for employee access")
	}

	sc, ok := s.sessions.Get(ctx, sessionID)
	if !ok {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid security context")
	}

	agg, cached, err := s.cache.GetOrCompute(ctx, subjectID, sc.SecurityLevel, func(ctx context.Context) (*models.Aggregate, error) {
		return s.assemble(ctx, subjectID, sessionID, sc)
	})
	if err != nil {
		return nil, err
	}

	s.bumpAccessCounter(subjectID)
	if !cached {
		s.auditor.Record(ctx, audit.Event{
			SubjectID: subjectID,
			Action:    audit.ActionEmployeeAccess,
			Details:   fmt.Sprintf("accessed employee %s with %d policies", subjectID, len(agg.Policies)),
			UserID:    sc.UserID,
			SessionID: sessionID,
			Source:    source,
		})
	}
	return agg, nil
}

func (s *Service) assemble(ctx context.Context, subjectID, sessionID string, sc *secmodels.SecurityContext) (*models.Aggregate, error) {
	emp, err := s.employees.FindByID(ctx, subjectID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Wrap(err, dErrors.CodeNotFound, "employee not found: "+subjectID)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeStoreFailure, "loading employee "+subjectID)
	}

	if emp.SecurityLevel == secmodels.LevelAdmin && !permissions.CanAccessSensitive(sc) {
		s.auditor.Record(ctx, audit.Event{
			SubjectID: subjectID,
			Action:    audit.ActionSecurityViolation,
			Details:   "attempted to access employee with insufficient security level: " + subjectID,
			UserID:    sc.UserID,
			SessionID: sessionID,
			Source:    source,
		})
		return nil, dErrors.New(dErrors.CodeUnauthorized, "insufficient security level for employee access")
	}

	pols := s.fetchPolicies(ctx, emp.Department, sessionID)

	agg := &models.Aggregate{
		Employee:      *emp,
		Policies:      pols,
		Authorization: buildAuthorization(sc, pols, emp),
		Findings:      buildFindings(emp, pols),
		AssembledAt:   requestcontext.Now(ctx),
		TransactionID: uuid.NewString(),
	}
	return agg, nil
}

// fetchPolicies degrades lookup failures to an empty list. The aggregate
// stays available when the policy service is down; the gap shows up as a
// warning finding instead.
func (s *Service) fetchPolicies(ctx context.Context, department, sessionID string) []policy.Policy {
	pols, err := s.policies.PoliciesForDepartment(ctx, department, sessionID)
	if err != nil {
		s.metrics.IncrementPolicyLookupFailures()
		s.logger.WarnContext(ctx, "policy lookup failed, continuing without policies",
			"department", department, "error", err)
		return nil
	}
	return pols
}

func buildAuthorization(sc *secmodels.SecurityContext, pols []policy.Policy, emp *models.Employee) models.AuthorizationSummary {
	sensitive := permissions.CanAccessSensitive(sc)

	rights := map[string]bool{
		"READ_EMPLOYEE":   true,
		"READ_POLICIES":   len(pols) > 0,
		"UPDATE_EMPLOYEE": sensitive,
		"DELETE_EMPLOYEE": sensitive,
	}

	perms := []string{"EMPLOYEE_READ", "POLICY_READ"}
	if sensitive {
		perms = append(perms, "EMPLOYEE_WRITE", "EMPLOYEE_DELETE")
	}

	compliant := emp.Status == models.StatusActive && anyMandatory(pols)

	return models.AuthorizationSummary{
		SecurityLevel: emp.SecurityLevel,
		AccessRights:  rights,
		Permissions:   perms,
		Compliant:     compliant,
	}
}

func anyMandatory(pols []policy.Policy) bool {
	for _, p := range pols {
		if p.Category == policy.CategoryMandatory {
			return true
		}
	}
	return false
}

func buildFindings(emp *models.Employee, pols []policy.Policy) []models.Finding {
	var findings []models.Finding
	if emp.Status != models.StatusActive {
		findings = append(findings, models.Finding{
			Field:    "EMPLOYEE_STATUS",
			Message:  "employee status is not active",
			Severity: "ERROR",
			Source:   source,
		})
	}
	if len(pols) == 0 {
		findings = append(findings, models.Finding{
			Field:    "POLICIES",
			Message:  "no policies found for department",
			Severity: "WARNING",
			Source:   "policy-client",
		})
	}
	return findings
}

// UpdateEmployee applies the mutable fields, bumps the record, and evicts
// every cached aggregate for the subject so the next read reassembles.
func (s *Service) UpdateEmployee(ctx context.Context, subjectID string, req models.UpdateEmployeeRequest, sessionID string) error {
	if !s.sessions.Validate(ctx, sessionID, secmodels.PermissionWrite) {
		return dErrors.New(dErrors.CodeUnauthorized, "session not authorized for employee update")
	}

	emp, err := s.employees.FindByID(ctx, subjectID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.Wrap(err, dErrors.CodeNotFound, "employee not found: "+subjectID)
		}
		return dErrors.Wrap(err, dErrors.CodeStoreFailure, "loading employee "+subjectID)
	}

	emp.Name = req.Name
	emp.Department = req.Department
	emp.Email = req.Email
	emp.Phone = req.Phone
	emp.LastModified = requestcontext.Now(ctx)

	if err := s.employees.Save(ctx, emp); err != nil {
		return dErrors.Wrap(err, dErrors.CodeStoreFailure, "saving employee "+subjectID)
	}

	s.auditor.Record(ctx, audit.Event{
		SubjectID: subjectID,
		Action:    audit.ActionEmployeeUpdated,
		Details:   "employee updated: " + subjectID,
		UserID:    systemActor,
		SessionID: sessionID,
		Source:    source,
	})
	s.cache.Invalidate(subjectID)
	return nil
}

// DeleteEmployee removes the record and evicts its cached aggregates.
func (s *Service) DeleteEmployee(ctx context.Context, subjectID, sessionID string) error {
	if !s.sessions.Validate(ctx, sessionID, secmodels.PermissionWrite) {
		return dErrors.New(dErrors.CodeUnauthorized, "session not authorized for employee delete")
	}

	if err := s.employees.Delete(ctx, subjectID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.Wrap(err, dErrors.CodeNotFound, "employee not found: "+subjectID)
		}
		return dErrors.Wrap(err, dErrors.CodeStoreFailure, "deleting employee "+subjectID)
	}

	s.auditor.Record(ctx, audit.Event{
		SubjectID: subjectID,
		Action:    audit.ActionEmployeeDeleted,
		Details:   "employee deleted: " + subjectID,
		UserID:    systemActor,
		SessionID: sessionID,
		Source:    source,
	})
	s.cache.Invalidate(subjectID)
	return nil
}

// InvalidateAggregate drops every cached aggregate for the subject across
// all security level variants. Returns the number of entries removed.
func (s *Service) InvalidateAggregate(subjectID string) int {
	return s.cache.Invalidate(subjectID)
}

func (s *Service) bumpAccessCounter(subjectID string) {
	v, _ := s.accessCounters.LoadOrStore(subjectID, new(atomic.Int64))
	v.(*atomic.Int64).Add(1)
}

// AccessCount reports how often the subject was fetched since the last
// counter reset.
func (s *Service) AccessCount(subjectID string) int64 {
	v, ok := s.accessCounters.Load(subjectID)
	if !ok {
		return 0
	}
	return v.(*atomic.Int64).Load()
}

// ResetAccessCounters clears the per-subject access counters. Run hourly by
// the janitor.
func (s *Service) ResetAccessCounters(ctx context.Context) error {
	n := 0
	s.accessCounters.Range(func(k, _ any) bool {
		s.accessCounters.Delete(k)
		n++
		return true
	})
	s.logger.DebugContext(ctx, "access counters reset", "cleared", n)
	return nil
}
