package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"empgate/internal/security/models"
	"empgate/pkg/sentinel"
)

const (
	sessionKeyPrefix = "session:"
	userIndexPrefix  = "user_sessions:"
)

// RedisRepository stores each security context as a JSON blob under
// session:<id> with a per-user index set for bulk operations. No TTLs are
// set: deactivation is a soft delete and records survive as the system of
// record, matching the postgres layout.
//
// Read-modify-write updates are not atomic across concurrent writers for the
// same session id; a lost last-accessed bump is tolerated by the service
// contract.
type RedisRepository struct {
	client *redis.Client
}

func NewRedisRepository(client *redis.Client) *RedisRepository {
	return &RedisRepository{client: client}
}

func (r *RedisRepository) FindBySessionID(ctx context.Context, sessionID string) (*models.SecurityContext, error) {
	raw, err := r.client.Get(ctx, sessionKeyPrefix+sessionID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get session %s: %w", sessionID, err)
	}
	var sc models.SecurityContext
	if err := json.Unmarshal(raw, &sc); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", sessionID, err)
	}
	return &sc, nil
}

func (r *RedisRepository) FindByUserID(ctx context.Context, userID string) ([]*models.SecurityContext, error) {
	ids, err := r.client.SMembers(ctx, userIndexPrefix+userID).Result()
	if err != nil {
		return nil, fmt.Errorf("list sessions for user %s: %w", userID, err)
	}
	out := make([]*models.SecurityContext, 0, len(ids))
	for _, id := range ids {
		sc, err := r.FindBySessionID(ctx, id)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				continue
			}
			return nil, err
		}
		out = append(out, sc)
	}
	return out, nil
}

func (r *RedisRepository) Save(ctx context.Context, sc *models.SecurityContext) error {
	raw, err := json.Marshal(sc)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", sc.SessionID, err)
	}
	pipe := r.client.TxPipeline()
	pipe.Set(ctx, sessionKeyPrefix+sc.SessionID, raw, 0)
	pipe.SAdd(ctx, userIndexPrefix+sc.UserID, sc.SessionID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save session %s: %w", sc.SessionID, err)
	}
	return nil
}

func (r *RedisRepository) UpdateLastAccessed(ctx context.Context, sessionID string, at time.Time) error {
	return r.update(ctx, sessionID, func(sc *models.SecurityContext) {
		sc.LastAccessedAt = at
	})
}

func (r *RedisRepository) Deactivate(ctx context.Context, sessionID string) error {
	return r.update(ctx, sessionID, func(sc *models.SecurityContext) {
		sc.Active = false
	})
}

func (r *RedisRepository) DeactivateByUserID(ctx context.Context, userID string) (int, error) {
	ids, err := r.client.SMembers(ctx, userIndexPrefix+userID).Result()
	if err != nil {
		return 0, fmt.Errorf("list sessions for user %s: %w", userID, err)
	}
	n := 0
	for _, id := range ids {
		if err := r.Deactivate(ctx, id); err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				continue
			}
			return n, err
		}
		n++
	}
	return n, nil
}

func (r *RedisRepository) FindExpired(ctx context.Context, asOf time.Time) ([]*models.SecurityContext, error) {
	var out []*models.SecurityContext
	iter := r.client.Scan(ctx, 0, sessionKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		raw, err := r.client.Get(ctx, iter.Val()).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			return nil, fmt.Errorf("scan sessions: %w", err)
		}
		var sc models.SecurityContext
		if err := json.Unmarshal(raw, &sc); err != nil {
			continue // skip corrupt blobs, the sweep must not stall
		}
		if sc.Active && sc.IsExpiredAt(asOf) {
			out = append(out, &sc)
		}
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan sessions: %w", err)
	}
	return out, nil
}

func (r *RedisRepository) update(ctx context.Context, sessionID string, mutate func(*models.SecurityContext)) error {
	sc, err := r.FindBySessionID(ctx, sessionID)
	if err != nil {
		return err
	}
	mutate(sc)
	raw, err := json.Marshal(sc)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", sessionID, err)
	}
	if err := r.client.Set(ctx, sessionKeyPrefix+sessionID, raw, 0).Err(); err != nil {
		return fmt.Errorf("update session %s: %w", sessionID, err)
	}
	return nil
}
