package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"empgate/internal/security/models"
	"empgate/pkg/sentinel"
)

// PostgresRepository persists security contexts in PostgreSQL. Permissions,
// roles and attributes live in auxiliary keyed tables (one row per element)
// joined by session id. This store is pure I/O; expiry and permission logic
// belong to the service layer.
type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const contextColumns = `session_id, user_id, security_level, created_at, last_accessed, expires_at,
	active, failed_attempts, locked_until, audit_required, compliance_level`

func (r *PostgresRepository) FindBySessionID(ctx context.Context, sessionID string) (*models.SecurityContext, error) {
	query := `
		SELECT ` + contextColumns + `
		FROM security_contexts
		WHERE session_id = $1
	`
	sc, err := scanContext(r.db.QueryRowContext(ctx, query, sessionID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find security context: %w", err)
	}
	if err := r.loadCollections(ctx, sc); err != nil {
		return nil, err
	}
	return sc, nil
}

func (r *PostgresRepository) FindByUserID(ctx context.Context, userID string) ([]*models.SecurityContext, error) {
	query := `
		SELECT ` + contextColumns + `
		FROM security_contexts
		WHERE user_id = $1
	`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("find security contexts by user: %w", err)
	}
	defer rows.Close()

	out, err := collectContexts(rows)
	if err != nil {
		return nil, err
	}
	for _, sc := range out {
		if err := r.loadCollections(ctx, sc); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (r *PostgresRepository) Save(ctx context.Context, sc *models.SecurityContext) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("save security context: %w", err)
	}
	defer tx.Rollback()

	upsert := `
		INSERT INTO security_contexts (` + contextColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (session_id) DO UPDATE SET
			user_id = EXCLUDED.user_id,
			security_level = EXCLUDED.security_level,
			last_accessed = EXCLUDED.last_accessed,
			expires_at = EXCLUDED.expires_at,
			active = EXCLUDED.active,
			failed_attempts = EXCLUDED.failed_attempts,
			locked_until = EXCLUDED.locked_until,
			audit_required = EXCLUDED.audit_required,
			compliance_level = EXCLUDED.compliance_level
	`
	_, err = tx.ExecContext(ctx, upsert,
		sc.SessionID, sc.UserID, sc.SecurityLevel, sc.CreatedAt, sc.LastAccessedAt, sc.ExpiresAt,
		sc.Active, sc.FailedAttempts, sc.LockedUntil, sc.AuditRequired, sc.ComplianceLevel,
	)
	if err != nil {
		return fmt.Errorf("save security context: %w", err)
	}

	for _, stmt := range []string{
		`DELETE FROM security_permissions WHERE session_id = $1`,
		`DELETE FROM security_roles WHERE session_id = $1`,
		`DELETE FROM security_attributes WHERE session_id = $1`,
	} {
		if _, err := tx.ExecContext(ctx, stmt, sc.SessionID); err != nil {
			return fmt.Errorf("save security context collections: %w", err)
		}
	}
	for _, p := range sc.Permissions {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO security_permissions (session_id, permission) VALUES ($1, $2)`,
			sc.SessionID, p); err != nil {
			return fmt.Errorf("save security context permissions: %w", err)
		}
	}
	for _, role := range sc.Roles {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO security_roles (session_id, role) VALUES ($1, $2)`,
			sc.SessionID, role); err != nil {
			return fmt.Errorf("save security context roles: %w", err)
		}
	}
	for k, v := range sc.Attributes {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO security_attributes (session_id, attribute_key, attribute_value) VALUES ($1, $2, $3)`,
			sc.SessionID, k, v); err != nil {
			return fmt.Errorf("save security context attributes: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("save security context: %w", err)
	}
	return nil
}

func (r *PostgresRepository) UpdateLastAccessed(ctx context.Context, sessionID string, at time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE security_contexts SET last_accessed = $2 WHERE session_id = $1`,
		sessionID, at)
	if err != nil {
		return fmt.Errorf("update last accessed: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) Deactivate(ctx context.Context, sessionID string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE security_contexts SET active = FALSE WHERE session_id = $1`,
		sessionID)
	if err != nil {
		return fmt.Errorf("deactivate security context: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) DeactivateByUserID(ctx context.Context, userID string) (int, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE security_contexts SET active = FALSE WHERE user_id = $1 AND active`,
		userID)
	if err != nil {
		return 0, fmt.Errorf("deactivate security contexts by user: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("deactivate security contexts by user: %w", err)
	}
	return int(n), nil
}

func (r *PostgresRepository) FindExpired(ctx context.Context, asOf time.Time) ([]*models.SecurityContext, error) {
	query := `
		SELECT ` + contextColumns + `
		FROM security_contexts
		WHERE active AND expires_at <= $1
	`
	rows, err := r.db.QueryContext(ctx, query, asOf)
	if err != nil {
		return nil, fmt.Errorf("find expired security contexts: %w", err)
	}
	defer rows.Close()
	return collectContexts(rows)
}

func (r *PostgresRepository) loadCollections(ctx context.Context, sc *models.SecurityContext) error {
	rows, err := r.db.QueryContext(ctx,
		`SELECT permission FROM security_permissions WHERE session_id = $1`, sc.SessionID)
	if err != nil {
		return fmt.Errorf("load permissions: %w", err)
	}
	sc.Permissions, err = collectStrings(rows)
	if err != nil {
		return fmt.Errorf("load permissions: %w", err)
	}

	rows, err = r.db.QueryContext(ctx,
		`SELECT role FROM security_roles WHERE session_id = $1`, sc.SessionID)
	if err != nil {
		return fmt.Errorf("load roles: %w", err)
	}
	sc.Roles, err = collectStrings(rows)
	if err != nil {
		return fmt.Errorf("load roles: %w", err)
	}

	rows, err = r.db.QueryContext(ctx,
		`SELECT attribute_key, attribute_value FROM security_attributes WHERE session_id = $1`, sc.SessionID)
	if err != nil {
		return fmt.Errorf("load attributes: %w", err)
	}
	defer rows.Close()
	sc.Attributes = make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return fmt.Errorf("load attributes: %w", err)
		}
		sc.Attributes[k] = v
	}
	return rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanContext(row rowScanner) (*models.SecurityContext, error) {
	var sc models.SecurityContext
	var lockedUntil sql.NullTime
	err := row.Scan(
		&sc.SessionID, &sc.UserID, &sc.SecurityLevel, &sc.CreatedAt, &sc.LastAccessedAt, &sc.ExpiresAt,
		&sc.Active, &sc.FailedAttempts, &lockedUntil, &sc.AuditRequired, &sc.ComplianceLevel,
	)
	if err != nil {
		return nil, err
	}
	if lockedUntil.Valid {
		sc.LockedUntil = &lockedUntil.Time
	}
	return &sc, nil
}

func collectContexts(rows *sql.Rows) ([]*models.SecurityContext, error) {
	var out []*models.SecurityContext
	for rows.Next() {
		sc, err := scanContext(rows)
		if err != nil {
			return nil, fmt.Errorf("scan security context: %w", err)
		}
		out = append(out, sc)
	}
	return out, rows.Err()
}

func collectStrings(rows *sql.Rows) ([]string, error) {
	defer rows.Close()
	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
