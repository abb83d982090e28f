// Package repository provides tenant-scoped persistence over PostgreSQL.
// Every query is filtered by tenant_id; cross-tenant reads return
// ErrNotFound exactly as a genuinely missing row would.
package repository

import (
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
)

var (
	// ErrNotFound is returned when no row matches the scoped query.
	ErrNotFound = errors.New("not found")

	// ErrDuplicate is returned on unique-constraint violations.
	ErrDuplicate = errors.New("duplicate")
)

// Repositories bundles all repositories over one database handle.
type Repositories struct {
	Tenants    *TenantRepository
	Users      *UserRepository
	Projects   *ProjectRepository
	Documents  *DocumentRepository
	Executions *ExecutionRepository
	Exports    *ExportRepository
}

// New wires all repositories.
func New(db *sqlx.DB) *Repositories {
	return &Repositories{
		Tenants:    &TenantRepository{db: db},
		Users:      &UserRepository{db: db},
		Projects:   &ProjectRepository{db: db},
		Documents:  &DocumentRepository{db: db},
		Executions: &ExecutionRepository{db: db},
		Exports:    &ExportRepository{db: db},
	}
}

// isUniqueViolation reports whether err is a PostgreSQL unique violation,
// optionally on a specific constraint.
func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	if pgErr.Code != "23505" {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}

// notFound maps sql.ErrNoRows to ErrNotFound.
func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
