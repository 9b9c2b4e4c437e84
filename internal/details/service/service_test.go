package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"empgate/internal/audit"
	"empgate/internal/details/cache"
	"empgate/internal/details/models"
	"empgate/internal/details/store"
	"empgate/internal/policy"
	secmodels "empgate/internal/security/models"
	dErrors "empgate/pkg/domain-errors"
	"empgate/pkg/requestcontext"
)

// fakeSessions satisfies Sessions with canned answers per session id.
type fakeSessions struct {
	contexts map[string]*secmodels.SecurityContext
	granted  map[string][]string
}

func (f *fakeSessions) Validate(_ context.Context, sessionID, requiredPermission string) bool {
	perms, ok := f.granted[sessionID]
	if !ok {
		return false
	}
	if requiredPermission == "" {
		return true
	}
	for _, p := range perms {
		if p == requiredPermission {
			return true
		}
	}
	return false
}

func (f *fakeSessions) Get(_ context.Context, sessionID string) (*secmodels.SecurityContext, bool) {
	sc, ok := f.contexts[sessionID]
	return sc, ok
}

// capturingAuditor records every event handed to it.
type capturingAuditor struct {
	events []audit.Event
}

func (a *capturingAuditor) Record(_ context.Context, e audit.Event) {
	a.events = append(a.events, e)
}

func (a *capturingAuditor) actions() []string {
	out := make([]string, len(a.events))
	for i, e := range a.events {
		out[i] = e.Action
	}
	return out
}

type DetailsServiceSuite struct {
	suite.Suite
	sessions  *fakeSessions
	employees *store.InMemoryEmployeeStore
	policies  *policy.StaticClient
	cache     *cache.Cache
	auditor   *capturingAuditor
	service   *Service
	base      time.Time
}

func TestDetailsServiceSuite(t *testing.T) {
	suite.Run(t, new(DetailsServiceSuite))
}

const (
	managerSession = "sess-manager"
	basicSession   = "sess-basic"
)

func (s *DetailsServiceSuite) SetupTest() {
	s.base = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	s.sessions = &fakeSessions{
		contexts: map[string]*secmodels.SecurityContext{
			managerSession: {
				SessionID:     managerSession,
				UserID:        "mgr-1",
				SecurityLevel: secmodels.LevelManager,
				Active:        true,
			},
			basicSession: {
				SessionID:     basicSession,
				UserID:        "usr-1",
				SecurityLevel: secmodels.LevelBasic,
				Active:        true,
			},
		},
		granted: map[string][]string{
			managerSession: {secmodels.PermissionRead, secmodels.PermissionWrite},
			basicSession:   {secmodels.PermissionRead},
		},
	}
	s.employees = store.NewInMemoryEmployeeStore()
	s.policies = &policy.StaticClient{Policies: map[string][]policy.Policy{
		"Engineering": {
			{PolicyID: "pol-1", Category: policy.CategoryMandatory, Status: policy.StatusActive},
			{PolicyID: "pol-2", Category: "ADVISORY", Status: policy.StatusActive},
		},
	}}
	s.cache = cache.New(30*time.Minute, nil)
	s.auditor = &capturingAuditor{}

	svc, err := New(s.sessions, s.employees, s.policies, s.cache, s.auditor)
	s.Require().NoError(err)
	s.service = svc

	s.addEmployee("emp-1", secmodels.LevelBasic, models.StatusActive)
}

func (s *DetailsServiceSuite) addEmployee(id, level, status string) {
	s.Require().NoError(s.employees.Save(context.Background(), &models.Employee{
		ID:            id,
		Name:          "Dana Smith",
		Department:    "Engineering",
		Email:         "dana@example.com",
		Status:        status,
		SecurityLevel: level,
	}))
}

func (s *DetailsServiceSuite) at(offset time.Duration) context.Context {
	return requestcontext.WithTime(context.Background(), s.base.Add(offset))
}

func (s *DetailsServiceSuite) TestFetchAggregate() {
	s.Run("assembles employee, policies and authorization", func() {
		agg, err := s.service.FetchAggregate(s.at(0), "emp-1", managerSession)
		s.Require().NoError(err)

		s.Equal("emp-1", agg.Employee.ID)
		s.Len(agg.Policies, 2)
		s.True(agg.Authorization.Compliant)
		s.True(agg.Authorization.AccessRights["UPDATE_EMPLOYEE"])
		s.Contains(agg.Authorization.Permissions, "EMPLOYEE_WRITE")
		s.Empty(agg.Findings)
		s.Equal(s.base, agg.AssembledAt)
		s.NotEmpty(agg.TransactionID)
	})

	s.Run("basic requester gets read-only rights", func() {
		agg, err := s.service.FetchAggregate(s.at(0), "emp-1", basicSession)
		s.Require().NoError(err)

		s.False(agg.Authorization.AccessRights["UPDATE_EMPLOYEE"])
		s.NotContains(agg.Authorization.Permissions, "EMPLOYEE_WRITE")
	})

	s.Run("serves the cached aggregate without re-auditing", func() {
		first, err := s.service.FetchAggregate(s.at(0), "emp-1", managerSession)
		s.Require().NoError(err)
		audits := len(s.auditor.events)

		second, err := s.service.FetchAggregate(s.at(time.Minute), "emp-1", managerSession)
		s.Require().NoError(err)
		s.Same(first, second)
		s.Len(s.auditor.events, audits)
	})

	s.Run("unknown employee maps to not found", func() {
		_, err := s.service.FetchAggregate(s.at(0), "ghost", managerSession)
		s.True(dErrors.Is(err, dErrors.CodeNotFound))
	})
}

func (s *DetailsServiceSuite) TestFetchAggregateAuthorization() {
	s.Run("unauthorized session is rejected with a system audit event", func() {
		_, err := s.service.FetchAggregate(s.at(0), "emp-1", "no-such-session")
		s.True(dErrors.Is(err, dErrors.CodeUnauthorized))

		s.Require().Len(s.auditor.events, 1)
		e := s.auditor.events[0]
		s.Equal(audit.ActionUnauthorizedAccess, e.Action)
		s.Equal("SYSTEM", e.UserID)
		s.Equal("emp-1", e.SubjectID)
	})

	s.Run("basic requester cannot view an admin-level subject", func() {
		s.addEmployee("emp-admin", secmodels.LevelAdmin, models.StatusActive)

		_, err := s.service.FetchAggregate(s.at(0), "emp-admin", basicSession)
		s.True(dErrors.Is(err, dErrors.CodeUnauthorized))
		s.Contains(s.auditor.actions(), audit.ActionSecurityViolation)

		// The denial must not be cached.
		s.Equal(0, s.cache.Len())
	})

	s.Run("manager can view an admin-level subject", func() {
		s.addEmployee("emp-admin2", secmodels.LevelAdmin, models.StatusActive)

		agg, err := s.service.FetchAggregate(s.at(0), "emp-admin2", managerSession)
		s.Require().NoError(err)
		s.Equal(secmodels.LevelAdmin, agg.Authorization.SecurityLevel)
	})
}

func (s *DetailsServiceSuite) TestFetchAggregateDegradation() {
	s.Run("policy failure degrades to an empty list with a warning finding", func() {
		s.policies.Err = context.DeadlineExceeded

		agg, err := s.service.FetchAggregate(s.at(0), "emp-1", managerSession)
		s.Require().NoError(err)

		s.Empty(agg.Policies)
		s.False(agg.Authorization.Compliant)
		s.False(agg.Authorization.AccessRights["READ_POLICIES"])
		s.Require().Len(agg.Findings, 1)
		s.Equal("WARNING", agg.Findings[0].Severity)
	})

	s.Run("inactive employee carries an error finding", func() {
		s.addEmployee("emp-gone", secmodels.LevelBasic, models.StatusInactive)
		s.policies.Err = nil

		agg, err := s.service.FetchAggregate(s.at(0), "emp-gone", managerSession)
		s.Require().NoError(err)

		s.False(agg.Authorization.Compliant)
		s.Require().Len(agg.Findings, 1)
		s.Equal("ERROR", agg.Findings[0].Severity)
		s.Equal("EMPLOYEE_STATUS", agg.Findings[0].Field)
	})
}

func (s *DetailsServiceSuite) TestUpdateEmployee() {
	req := models.UpdateEmployeeRequest{
		Name:       "Dana Jones",
		Department: "Engineering",
		Email:      "dana.jones@example.com",
		Phone:      "555-0100",
	}

	s.Run("requires write permission", func() {
		err := s.service.UpdateEmployee(s.at(0), "emp-1", req, basicSession)
		s.True(dErrors.Is(err, dErrors.CodeUnauthorized))
	})

	s.Run("applies fields and evicts the cached aggregate", func() {
		_, err := s.service.FetchAggregate(s.at(0), "emp-1", managerSession)
		s.Require().NoError(err)
		s.Require().Equal(1, s.cache.Len())

		s.Require().NoError(s.service.UpdateEmployee(s.at(time.Minute), "emp-1", req, managerSession))
		s.Equal(0, s.cache.Len())

		stored, err := s.employees.FindByID(context.Background(), "emp-1")
		s.Require().NoError(err)
		s.Equal("Dana Jones", stored.Name)
		s.Equal(s.base.Add(time.Minute), stored.LastModified)
		s.Contains(s.auditor.actions(), audit.ActionEmployeeUpdated)
	})

	s.Run("unknown employee maps to not found", func() {
		err := s.service.UpdateEmployee(s.at(0), "ghost", req, managerSession)
		s.True(dErrors.Is(err, dErrors.CodeNotFound))
	})
}

func (s *DetailsServiceSuite) TestDeleteEmployee() {
	s.Run("requires write permission", func() {
		err := s.service.DeleteEmployee(s.at(0), "emp-1", basicSession)
		s.True(dErrors.Is(err, dErrors.CodeUnauthorized))
	})

	s.Run("removes the record and its cached aggregates", func() {
		_, err := s.service.FetchAggregate(s.at(0), "emp-1", managerSession)
		s.Require().NoError(err)

		s.Require().NoError(s.service.DeleteEmployee(s.at(0), "emp-1", managerSession))
		s.Equal(0, s.cache.Len())
		s.Contains(s.auditor.actions(), audit.ActionEmployeeDeleted)

		_, err = s.employees.FindByID(context.Background(), "emp-1")
		s.Error(err)
	})
}

func (s *DetailsServiceSuite) TestAccessCounters() {
	s.Require().Equal(int64(0), s.service.AccessCount("emp-1"))

	for i := 0; i < 3; i++ {
		_, err := s.service.FetchAggregate(s.at(time.Duration(i)*time.Second), "emp-1", managerSession)
		s.Require().NoError(err)
	}
	s.Equal(int64(3), s.service.AccessCount("emp-1"))

	s.Require().NoError(s.service.ResetAccessCounters(s.at(time.Hour)))
	s.Equal(int64(0), s.service.AccessCount("emp-1"))
}
