package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"empgate/internal/security/models"
	"empgate/internal/security/store"
	"empgate/pkg/requestcontext"
)

type SessionServiceSuite struct {
	suite.Suite
	repo    *store.InMemoryRepository
	service *Service
	base    time.Time
}

func TestSessionServiceSuite(t *testing.T) {
	suite.Run(t, new(SessionServiceSuite))
}

func (s *SessionServiceSuite) SetupTest() {
	s.repo = store.NewInMemoryRepository()
	svc, err := New(s.repo)
	s.Require().NoError(err)
	s.service = svc
	s.base = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
}

// at returns a context whose observed time is base+offset.
func (s *SessionServiceSuite) at(offset time.Duration) context.Context {
	return requestcontext.WithTime(context.Background(), s.base.Add(offset))
}

func (s *SessionServiceSuite) create(offset time.Duration) *models.SecurityContext {
	sc, err := s.service.Create(s.at(offset), "user-1", models.LevelManager, uuid.NewString())
	s.Require().NoError(err)
	return sc
}

func (s *SessionServiceSuite) TestCreate() {
	s.Run("grants default permissions", func() {
		sc := s.create(0)
		s.Equal([]string{models.PermissionWrite, models.PermissionRead}, sc.Permissions)
		s.True(sc.Active)
	})

	s.Run("sets the validity window from creation time", func() {
		sc := s.create(0)
		s.Equal(s.base.Add(8*time.Hour), sc.ExpiresAt)
		s.Equal(s.base, sc.CreatedAt)
		s.Equal(s.base, sc.LastAccessedAt)
	})

	s.Run("persists before going live", func() {
		sc := s.create(0)
		stored, err := s.repo.FindBySessionID(context.Background(), sc.SessionID)
		s.Require().NoError(err)
		s.Equal(sc.UserID, stored.UserID)
	})

	s.Run("leaves no session behind when persistence fails", func() {
		svc, err := New(&failingSaveRepo{InMemoryRepository: store.NewInMemoryRepository()})
		s.Require().NoError(err)

		_, err = svc.Create(s.at(0), "user-2", models.LevelBasic, "sess-broken")
		s.Require().Error(err)
		s.Equal(0, svc.LiveCount())
		s.False(svc.Validate(s.at(0), "sess-broken", ""))
	})
}

func (s *SessionServiceSuite) TestValidate() {
	s.Run("passes with a granted permission", func() {
		sc := s.create(0)
		s.True(s.service.Validate(s.at(time.Minute), sc.SessionID, models.PermissionRead))
	})

	s.Run("empty permission checks liveness only", func() {
		sc := s.create(0)
		s.True(s.service.Validate(s.at(time.Minute), sc.SessionID, ""))
	})

	s.Run("denies an ungranted permission", func() {
		sc := s.create(0)
		s.False(s.service.Validate(s.at(time.Minute), sc.SessionID, "DELETE"))
	})

	s.Run("denies an unknown session", func() {
		s.False(s.service.Validate(s.at(0), "no-such-session", models.PermissionRead))
	})

	s.Run("bumps last accessed on success", func() {
		sc := s.create(0)
		s.True(s.service.Validate(s.at(time.Hour), sc.SessionID, models.PermissionRead))

		got, ok := s.service.Get(s.at(time.Hour), sc.SessionID)
		s.Require().True(ok)
		s.Equal(s.base.Add(time.Hour), got.LastAccessedAt)
	})
}

func (s *SessionServiceSuite) TestExpiry() {
	s.Run("denies at the expiry boundary", func() {
		sc := s.create(0)
		s.False(s.service.Validate(s.at(8*time.Hour), sc.SessionID, models.PermissionRead))
	})

	s.Run("expiry is permanent even for readers with an earlier clock", func() {
		sc := s.create(0)
		s.False(s.service.Validate(s.at(9*time.Hour), sc.SessionID, ""))

		// A lagging reader must not resurrect the session.
		s.False(s.service.Validate(s.at(time.Minute), sc.SessionID, ""))
	})

	s.Run("persists the inactive transition", func() {
		sc := s.create(0)
		s.service.Validate(s.at(9*time.Hour), sc.SessionID, "")

		stored, err := s.repo.FindBySessionID(context.Background(), sc.SessionID)
		s.Require().NoError(err)
		s.False(stored.Active)
	})
}

func (s *SessionServiceSuite) TestGet() {
	s.Run("returns the live context", func() {
		sc := s.create(0)
		got, ok := s.service.Get(s.at(time.Minute), sc.SessionID)
		s.Require().True(ok)
		s.Equal(sc.SessionID, got.SessionID)
		s.Equal(models.LevelManager, got.SecurityLevel)
	})

	s.Run("treats expired as absent", func() {
		sc := s.create(0)
		_, ok := s.service.Get(s.at(9*time.Hour), sc.SessionID)
		s.False(ok)
	})

	s.Run("falls back to the repository and populates the live map", func() {
		sc := s.create(0)
		// New service instance with an empty live map over the same repo.
		svc, err := New(s.repo)
		s.Require().NoError(err)

		got, ok := svc.Get(s.at(time.Minute), sc.SessionID)
		s.Require().True(ok)
		s.Equal(sc.UserID, got.UserID)
		s.Equal(1, svc.LiveCount())
	})
}

func (s *SessionServiceSuite) TestInvalidate() {
	s.Run("evicts and deactivates", func() {
		sc := s.create(0)
		s.Require().NoError(s.service.Invalidate(s.at(time.Minute), sc.SessionID))

		s.False(s.service.Validate(s.at(time.Minute), sc.SessionID, ""))
		stored, err := s.repo.FindBySessionID(context.Background(), sc.SessionID)
		s.Require().NoError(err)
		s.False(stored.Active)
	})

	s.Run("tolerates unknown sessions", func() {
		s.NoError(s.service.Invalidate(s.at(0), "never-existed"))
	})
}

func (s *SessionServiceSuite) TestExpireIdle() {
	s.Run("evicts sessions idle past the validity window", func() {
		a := s.create(0)
		b := s.create(0)
		s.Require().Equal(2, s.service.LiveCount())

		s.Require().NoError(s.service.ExpireIdle(s.at(9 * time.Hour)))

		s.Equal(0, s.service.LiveCount())
		for _, id := range []string{a.SessionID, b.SessionID} {
			stored, err := s.repo.FindBySessionID(context.Background(), id)
			s.Require().NoError(err)
			s.False(stored.Active)
		}
	})

	s.Run("keeps recently touched sessions", func() {
		sc := s.create(0)
		s.True(s.service.Validate(s.at(7*time.Hour), sc.SessionID, ""))

		s.Require().NoError(s.service.ExpireIdle(s.at(7*time.Hour + 30*time.Minute)))
		s.Equal(1, s.service.LiveCount())
	})

	s.Run("deactivates durably expired sessions the live map never saw", func() {
		orphan := &models.SecurityContext{
			SessionID:      "orphan",
			UserID:         "user-9",
			SecurityLevel:  models.LevelBasic,
			CreatedAt:      s.base.Add(-10 * time.Hour),
			LastAccessedAt: s.base.Add(-10 * time.Hour),
			ExpiresAt:      s.base.Add(-2 * time.Hour),
			Active:         true,
		}
		s.Require().NoError(s.repo.Save(context.Background(), orphan))

		s.Require().NoError(s.service.ExpireIdle(s.at(0)))

		stored, err := s.repo.FindBySessionID(context.Background(), "orphan")
		s.Require().NoError(err)
		s.False(stored.Active)
	})
}

type failingSaveRepo struct {
	*store.InMemoryRepository
}

func (r *failingSaveRepo) Save(context.Context, *models.SecurityContext) error {
	return errors.New("disk on fire")
}
