// Package service implements the session authority: an in-memory map of live
// security contexts layered over the durable repository.
package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"empgate/internal/platform/metrics"
	"empgate/internal/security/models"
	"empgate/internal/security/permissions"
	"empgate/internal/security/store"
	dErrors "empgate/pkg/domain-errors"
	"empgate/pkg/requestcontext"
	"empgate/pkg/sentinel"
)

// Service owns the live session map. Entries are immutable snapshots
// replaced wholesale on mutation (copy-on-replace over sync.Map), so
// concurrent readers of the same session id never observe a torn composite
// state. A lost last-accessed bump under contention is acceptable; the map
// is never locked as a whole.
type Service struct {
	repo     store.Repository
	logger   *slog.Logger
	metrics  *metrics.Metrics
	validity time.Duration

	live sync.Map // session id -> *models.SecurityContext
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithValidity overrides the default 8 hour session validity window.
func WithValidity(d time.Duration) Option {
	return func(s *Service) { s.validity = d }
}

func New(repo store.Repository, opts ...Option) (*Service, error) {
	if repo == nil {
		return nil, errors.New("session repository is required")
	}
	s := &Service{
		repo:     repo,
		logger:   slog.Default(),
		validity: 8 * time.Hour,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Create builds a new security context with the default grants, persists it,
// and only then inserts it into the live map. A durable-write failure means
// no session exists anywhere: no ghost sessions.
func (s *Service) Create(ctx context.Context, userID, securityLevel, sessionID string) (*models.SecurityContext, error) {
	now := requestcontext.Now(ctx)
	sc := &models.SecurityContext{
		SessionID:       sessionID,
		UserID:          userID,
		SecurityLevel:   securityLevel,
		CreatedAt:       now,
		LastAccessedAt:  now,
		ExpiresAt:       now.Add(s.validity),
		Active:          true,
		Permissions:     []string{models.PermissionWrite, models.PermissionRead},
		ComplianceLevel: models.ComplianceBasic,
		Attributes:      map[string]string{},
	}

	if err := s.repo.Save(ctx, sc); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeStoreFailure, "persist security context")
	}
	s.live.Store(sessionID, sc)
	s.metrics.IncrementSessionsCreated()

	s.logger.InfoContext(ctx, "security context created",
		"session_id", sessionID,
		"user_id", userID,
		"security_level", securityLevel,
	)
	return sc, nil
}

// Validate reports whether the session is live and, when requiredPermission
// is non-empty, whether the context grants it. An expired session is
// transitioned to inactive and evicted as a side effect; persistence of that
// transition is best-effort here with the janitor sweep as backstop.
func (s *Service) Validate(ctx context.Context, sessionID, requiredPermission string) bool {
	sc := s.resolve(ctx, sessionID)
	if sc == nil {
		s.metrics.IncrementValidation("absent")
		return false
	}
	if !sc.Active {
		s.metrics.IncrementValidation("denied")
		return false
	}

	now := requestcontext.Now(ctx)
	if sc.IsExpiredAt(now) {
		s.expire(ctx, sc)
		s.metrics.IncrementValidation("expired")
		return false
	}

	s.touch(ctx, sc, now)

	if requiredPermission == "" {
		s.metrics.IncrementValidation("ok")
		return true
	}
	if !permissions.Has(sc, requiredPermission) {
		s.metrics.IncrementValidation("denied")
		return false
	}
	s.metrics.IncrementValidation("ok")
	return true
}

// Get resolves the security context for a session id without a permission
// check. Expired sessions are treated as absent (and transitioned, same as
// Validate). The last-accessed time is bumped only for active contexts.
func (s *Service) Get(ctx context.Context, sessionID string) (*models.SecurityContext, bool) {
	sc := s.resolve(ctx, sessionID)
	if sc == nil {
		return nil, false
	}

	now := requestcontext.Now(ctx)
	if sc.IsExpiredAt(now) {
		s.expire(ctx, sc)
		return nil, false
	}
	if sc.Active {
		sc = s.touch(ctx, sc, now)
	}
	return sc, true
}

// Invalidate evicts the session from the live map and persists the inactive
// state. Unknown session ids are not an error.
func (s *Service) Invalidate(ctx context.Context, sessionID string) error {
	s.live.Delete(sessionID)
	if err := s.repo.Deactivate(ctx, sessionID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil
		}
		return dErrors.Wrap(err, dErrors.CodeStoreFailure, "deactivate security context")
	}
	return nil
}

// ExpireIdle is the janitor body: it deactivates and persists live sessions
// whose last-accessed time is older than the validity window, then sweeps
// durably-expired sessions the live map never saw. Per-session failures are
// logged and do not stop the pass.
func (s *Service) ExpireIdle(ctx context.Context) error {
	now := requestcontext.Now(ctx)
	cutoff := now.Add(-s.validity)

	evicted := 0
	s.live.Range(func(key, value any) bool {
		sc := value.(*models.SecurityContext)
		if sc.LastAccessedAt.After(cutoff) {
			return true
		}
		s.live.Delete(key)
		evicted++
		if err := s.repo.Deactivate(ctx, sc.SessionID); err != nil && !errors.Is(err, sentinel.ErrNotFound) {
			s.logger.WarnContext(ctx, "failed to persist idle session deactivation",
				"session_id", sc.SessionID, "error", err)
		}
		return true
	})

	expired, err := s.repo.FindExpired(ctx, now)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeStoreFailure, "query expired sessions")
	}
	for _, sc := range expired {
		s.live.Delete(sc.SessionID)
		if err := s.repo.Deactivate(ctx, sc.SessionID); err != nil && !errors.Is(err, sentinel.ErrNotFound) {
			s.logger.WarnContext(ctx, "failed to deactivate expired session",
				"session_id", sc.SessionID, "error", err)
		}
	}

	if evicted > 0 || len(expired) > 0 {
		s.logger.InfoContext(ctx, "session expiry sweep complete",
			"idle_evicted", evicted, "durably_expired", len(expired))
	}
	return nil
}

// LiveCount reports the number of sessions currently held in the live map.
func (s *Service) LiveCount() int {
	n := 0
	s.live.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// resolve returns the live snapshot for a session id, falling back to the
// repository and populating the live map on a miss (write-through cache).
func (s *Service) resolve(ctx context.Context, sessionID string) *models.SecurityContext {
	if v, ok := s.live.Load(sessionID); ok {
		return v.(*models.SecurityContext)
	}
	sc, err := s.repo.FindBySessionID(ctx, sessionID)
	if err != nil {
		if !errors.Is(err, sentinel.ErrNotFound) {
			s.logger.WarnContext(ctx, "session lookup failed", "session_id", sessionID, "error", err)
		}
		return nil
	}
	// Another goroutine may have populated the entry meanwhile; keep its
	// snapshot so late repository reads cannot resurrect older state.
	actual, _ := s.live.LoadOrStore(sessionID, sc)
	return actual.(*models.SecurityContext)
}

// expire transitions a context to inactive and evicts it. Persistence is
// best-effort: expiry is monotonic regardless, because the stored expiry
// time is already in the past for any later reader.
func (s *Service) expire(ctx context.Context, sc *models.SecurityContext) {
	s.live.Delete(sc.SessionID)
	if err := s.repo.Deactivate(ctx, sc.SessionID); err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		s.logger.WarnContext(ctx, "failed to persist session expiry",
			"session_id", sc.SessionID, "error", err)
	}
}

// touch bumps the last-accessed time via copy-on-replace. When a concurrent
// writer already replaced the snapshot the bump is dropped rather than
// clobbering newer state.
func (s *Service) touch(ctx context.Context, sc *models.SecurityContext, now time.Time) *models.SecurityContext {
	next := sc.Clone()
	next.LastAccessedAt = now
	if !s.live.CompareAndSwap(sc.SessionID, sc, next) {
		return sc
	}
	if err := s.repo.UpdateLastAccessed(ctx, sc.SessionID, now); err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		s.logger.DebugContext(ctx, "failed to persist last-accessed bump",
			"session_id", sc.SessionID, "error", err)
	}
	return next
}
