// Package store defines the employee record store contract and its
// implementations.
package store

import (
	"context"

	"empgate/internal/details/models"
)

// EmployeeStore is the durable store for employee records. Implementations
// return sentinel.ErrNotFound for unknown ids.
type EmployeeStore interface {
	FindByID(ctx context.Context, id string) (*models.Employee, error)
	Save(ctx context.Context, e *models.Employee) error
	Delete(ctx context.Context, id string) error
}
