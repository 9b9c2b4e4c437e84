// Package lockout tracks failed authentication-relevant attempts per user
// and deactivates all of a user's sessions once the count passes the
// threshold. This is a coarse, eventually-consistent anti-abuse signal, not
// a precise authentication throttle.
//
// Known quirk, kept deliberately: the sweep does not reset a user's counter
// after deactivating their sessions. Until Clear is called the user trips
// every subsequent sweep. Flagged for product clarification rather than
// silently fixed.
package lockout

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"empgate/internal/platform/metrics"
	"empgate/internal/security/store"
)

const DefaultThreshold = 5

type Tracker struct {
	repo      store.Repository
	logger    *slog.Logger
	metrics   *metrics.Metrics
	threshold int64

	counters sync.Map // user id -> *atomic.Int64
}

type Option func(*Tracker)

func WithLogger(logger *slog.Logger) Option {
	return func(t *Tracker) { t.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(t *Tracker) { t.metrics = m }
}

func WithThreshold(n int) Option {
	return func(t *Tracker) { t.threshold = int64(n) }
}

func New(repo store.Repository, opts ...Option) (*Tracker, error) {
	if repo == nil {
		return nil, errors.New("session repository is required")
	}
	t := &Tracker{
		repo:      repo,
		logger:    slog.Default(),
		threshold: DefaultThreshold,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// RecordFailure increments the failure counter for a user and returns the
// new count. Counting is best-effort under race.
func (t *Tracker) RecordFailure(userID string) int64 {
	v, _ := t.counters.LoadOrStore(userID, new(atomic.Int64))
	return v.(*atomic.Int64).Add(1)
}

// Failures returns the current counter for a user.
func (t *Tracker) Failures(userID string) int64 {
	if v, ok := t.counters.Load(userID); ok {
		return v.(*atomic.Int64).Load()
	}
	return 0
}

// Sweep deactivates every session owned by users whose failure count
// exceeds the threshold. Per-user repository failures are logged and do not
// stop the pass. Counters are left untouched (see package comment).
func (t *Tracker) Sweep(ctx context.Context) error {
	t.counters.Range(func(key, value any) bool {
		userID := key.(string)
		count := value.(*atomic.Int64).Load()
		if count <= t.threshold {
			return true
		}
		n, err := t.repo.DeactivateByUserID(ctx, userID)
		if err != nil {
			t.logger.WarnContext(ctx, "lockout sweep failed for user",
				"user_id", userID, "failures", count, "error", err)
			return true
		}
		t.metrics.IncrementLockoutDeactivations()
		t.logger.InfoContext(ctx, "lockout sweep deactivated sessions",
			"user_id", userID, "failures", count, "sessions", n)
		return true
	})
	return nil
}

// Clear wipes all counters.
func (t *Tracker) Clear() {
	t.counters.Range(func(key, _ any) bool {
		t.counters.Delete(key)
		return true
	})
}
