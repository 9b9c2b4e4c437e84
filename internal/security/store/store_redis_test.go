package store

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"

	"empgate/internal/security/models"
	"empgate/pkg/sentinel"
)

type RedisRepositorySuite struct {
	suite.Suite
	mini   *miniredis.Miniredis
	client *redis.Client
	repo   *RedisRepository
	ctx    context.Context
	base   time.Time
}

func TestRedisRepositorySuite(t *testing.T) {
	suite.Run(t, new(RedisRepositorySuite))
}

func (s *RedisRepositorySuite) SetupTest() {
	mini, err := miniredis.Run()
	s.Require().NoError(err)
	s.mini = mini
	s.client = redis.NewClient(&redis.Options{Addr: mini.Addr()})
	s.repo = NewRedisRepository(s.client)
	s.ctx = context.Background()
	s.base = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
}

func (s *RedisRepositorySuite) TearDownTest() {
	_ = s.client.Close()
	s.mini.Close()
}

func (s *RedisRepositorySuite) newContext(sessionID, userID string) *models.SecurityContext {
	return &models.SecurityContext{
		SessionID:       sessionID,
		UserID:          userID,
		SecurityLevel:   models.LevelBasic,
		CreatedAt:       s.base,
		LastAccessedAt:  s.base,
		ExpiresAt:       s.base.Add(8 * time.Hour),
		Active:          true,
		Permissions:     []string{models.PermissionWrite, models.PermissionRead},
		ComplianceLevel: models.ComplianceBasic,
	}
}

func (s *RedisRepositorySuite) TestSaveAndFind() {
	s.Run("round-trips a context", func() {
		sc := s.newContext("sess-1", "user-1")
		s.Require().NoError(s.repo.Save(s.ctx, sc))

		found, err := s.repo.FindBySessionID(s.ctx, "sess-1")
		s.Require().NoError(err)
		s.Equal(sc.UserID, found.UserID)
		s.Equal(sc.Permissions, found.Permissions)
		s.True(found.ExpiresAt.Equal(sc.ExpiresAt))
	})

	s.Run("unknown session maps to ErrNotFound", func() {
		_, err := s.repo.FindBySessionID(s.ctx, "ghost")
		s.ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("indexes sessions per user", func() {
		s.Require().NoError(s.repo.Save(s.ctx, s.newContext("sess-a", "user-2")))
		s.Require().NoError(s.repo.Save(s.ctx, s.newContext("sess-b", "user-2")))

		sessions, err := s.repo.FindByUserID(s.ctx, "user-2")
		s.Require().NoError(err)
		s.Len(sessions, 2)
	})
}

func (s *RedisRepositorySuite) TestUpdateLastAccessed() {
	sc := s.newContext("sess-1", "user-1")
	s.Require().NoError(s.repo.Save(s.ctx, sc))

	at := s.base.Add(time.Hour)
	s.Require().NoError(s.repo.UpdateLastAccessed(s.ctx, "sess-1", at))

	found, err := s.repo.FindBySessionID(s.ctx, "sess-1")
	s.Require().NoError(err)
	s.True(found.LastAccessedAt.Equal(at))

	s.ErrorIs(s.repo.UpdateLastAccessed(s.ctx, "ghost", at), sentinel.ErrNotFound)
}

func (s *RedisRepositorySuite) TestDeactivate() {
	s.Run("soft-deletes a single session", func() {
		s.Require().NoError(s.repo.Save(s.ctx, s.newContext("sess-1", "user-1")))
		s.Require().NoError(s.repo.Deactivate(s.ctx, "sess-1"))

		found, err := s.repo.FindBySessionID(s.ctx, "sess-1")
		s.Require().NoError(err)
		s.False(found.Active)
	})

	s.Run("deactivates every session of a user", func() {
		s.Require().NoError(s.repo.Save(s.ctx, s.newContext("sess-c", "user-3")))
		s.Require().NoError(s.repo.Save(s.ctx, s.newContext("sess-d", "user-3")))

		n, err := s.repo.DeactivateByUserID(s.ctx, "user-3")
		s.Require().NoError(err)
		s.Equal(2, n)

		sessions, err := s.repo.FindByUserID(s.ctx, "user-3")
		s.Require().NoError(err)
		for _, sc := range sessions {
			s.False(sc.Active)
		}
	})
}

func (s *RedisRepositorySuite) TestFindExpired() {
	live := s.newContext("sess-live", "user-1")
	expired := s.newContext("sess-old", "user-1")
	expired.ExpiresAt = s.base.Add(-time.Hour)
	inactive := s.newContext("sess-off", "user-1")
	inactive.ExpiresAt = s.base.Add(-time.Hour)
	inactive.Active = false

	for _, sc := range []*models.SecurityContext{live, expired, inactive} {
		s.Require().NoError(s.repo.Save(s.ctx, sc))
	}

	found, err := s.repo.FindExpired(s.ctx, s.base)
	s.Require().NoError(err)
	s.Require().Len(found, 1)
	s.Equal("sess-old", found[0].SessionID)
}
