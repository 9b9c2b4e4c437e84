package store

import (
	"context"
	"sync"
	"time"

	"empgate/internal/security/models"
	"empgate/pkg/sentinel"
)

// InMemoryRepository keeps the durable layer lightweight for dev mode and
// tests. It intentionally favors clarity over performance; the fine-grained
// concurrency requirements apply to the live session map, not to this fake
// of the system of record.
type InMemoryRepository struct {
	mu       sync.RWMutex
	sessions map[string]*models.SecurityContext
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{sessions: make(map[string]*models.SecurityContext)}
}

func (r *InMemoryRepository) FindBySessionID(_ context.Context, sessionID string) (*models.SecurityContext, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if sc, ok := r.sessions[sessionID]; ok {
		return sc.Clone(), nil
	}
	return nil, sentinel.ErrNotFound
}

func (r *InMemoryRepository) FindByUserID(_ context.Context, userID string) ([]*models.SecurityContext, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*models.SecurityContext
	for _, sc := range r.sessions {
		if sc.UserID == userID {
			out = append(out, sc.Clone())
		}
	}
	return out, nil
}

func (r *InMemoryRepository) Save(_ context.Context, sc *models.SecurityContext) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[sc.SessionID] = sc.Clone()
	return nil
}

func (r *InMemoryRepository) UpdateLastAccessed(_ context.Context, sessionID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	sc, ok := r.sessions[sessionID]
	if !ok {
		return sentinel.ErrNotFound
	}
	sc.LastAccessedAt = at
	return nil
}

func (r *InMemoryRepository) Deactivate(_ context.Context, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	sc, ok := r.sessions[sessionID]
	if !ok {
		return sentinel.ErrNotFound
	}
	sc.Active = false
	return nil
}

func (r *InMemoryRepository) DeactivateByUserID(_ context.Context, userID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, sc := range r.sessions {
		if sc.UserID == userID && sc.Active {
			sc.Active = false
			n++
		}
	}
	return n, nil
}

func (r *InMemoryRepository) FindExpired(_ context.Context, asOf time.Time) ([]*models.SecurityContext, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*models.SecurityContext
	for _, sc := range r.sessions {
		if sc.Active && sc.IsExpiredAt(asOf) {
			out = append(out, sc.Clone())
		}
	}
	return out, nil
}
