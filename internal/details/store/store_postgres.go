package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"empgate/internal/details/models"
	"empgate/pkg/sentinel"
)

// PostgresEmployeeStore persists employee records in PostgreSQL. Pure I/O;
// authorization happens in the service layer before any call lands here.
type PostgresEmployeeStore struct {
	db *sql.DB
}

func NewPostgresEmployeeStore(db *sql.DB) *PostgresEmployeeStore {
	return &PostgresEmployeeStore{db: db}
}

const employeeColumns = `id, name, department, email, phone, manager_id, status, security_level,
	salary_band, location_code, cost_center, created_at, last_modified, version`

func (s *PostgresEmployeeStore) FindByID(ctx context.Context, id string) (*models.Employee, error) {
	query := `
		SELECT ` + employeeColumns + `
		FROM employees
		WHERE id = $1
	`
	var e models.Employee
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&e.ID, &e.Name, &e.Department, &e.Email, &e.Phone, &e.ManagerID, &e.Status, &e.SecurityLevel,
		&e.SalaryBand, &e.LocationCode, &e.CostCenter, &e.CreatedAt, &e.LastModified, &e.Version,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find employee: %w", err)
	}
	return &e, nil
}

func (s *PostgresEmployeeStore) Save(ctx context.Context, e *models.Employee) error {
	query := `
		INSERT INTO employees (` + employeeColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			department = EXCLUDED.department,
			email = EXCLUDED.email,
			phone = EXCLUDED.phone,
			manager_id = EXCLUDED.manager_id,
			status = EXCLUDED.status,
			security_level = EXCLUDED.security_level,
			salary_band = EXCLUDED.salary_band,
			location_code = EXCLUDED.location_code,
			cost_center = EXCLUDED.cost_center,
			last_modified = EXCLUDED.last_modified,
			version = employees.version + 1
	`
	_, err := s.db.ExecContext(ctx, query,
		e.ID, e.Name, e.Department, e.Email, e.Phone, e.ManagerID, e.Status, e.SecurityLevel,
		e.SalaryBand, e.LocationCode, e.CostCenter, e.CreatedAt, e.LastModified, e.Version,
	)
	if err != nil {
		return fmt.Errorf("save employee: %w", err)
	}
	return nil
}

func (s *PostgresEmployeeStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM employees WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete employee: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}
