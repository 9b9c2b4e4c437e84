// Package store defines the durable session repository contract and its
// implementations. The repository is the system of record across restarts;
// the live in-memory session map belongs to the security service, not here.
package store

import (
	"context"
	"time"

	"empgate/internal/security/models"
)

// Repository is the durable store for security contexts. Implementations
// return sentinel.ErrNotFound when a session id is unknown. Deactivation is
// a soft delete: records are never removed by this subsystem.
type Repository interface {
	FindBySessionID(ctx context.Context, sessionID string) (*models.SecurityContext, error)
	FindByUserID(ctx context.Context, userID string) ([]*models.SecurityContext, error)
	Save(ctx context.Context, sc *models.SecurityContext) error
	UpdateLastAccessed(ctx context.Context, sessionID string, at time.Time) error
	Deactivate(ctx context.Context, sessionID string) error
	DeactivateByUserID(ctx context.Context, userID string) (int, error)
	FindExpired(ctx context.Context, asOf time.Time) ([]*models.SecurityContext, error)
}
