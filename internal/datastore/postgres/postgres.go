// Package postgres implements the inventory and budget repositories on
// PostgreSQL with squirrel-built statements and pgxscan row mapping.
package postgres

import (
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stockflow/stockflow/internal/budget"
	"github.com/stockflow/stockflow/internal/inventory"
	"github.com/stockflow/stockflow/internal/shared"
)

// Postgres SQLSTATE codes mapped onto shared sentinels.
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
	codeCheckViolation      = "23514"
)

// DB is the Postgres data store.
type DB struct {
	pool    *pgxpool.Pool
	builder squirrel.StatementBuilderType
	clock   func() time.Time
}

// New wraps pool. clock stamps created_at/updated_at and defaults to time.Now.
func New(pool *pgxpool.Pool, clock func() time.Time) *DB {
	if clock == nil {
		clock = time.Now
	}
	return &DB{
		pool:    pool,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
		clock:   clock,
	}
}

func (db *DB) now() time.Time {
	return db.clock().UTC()
}

// Inventory returns the inventory tables.
func (db *DB) Inventory() inventory.Repositories {
	return inventory.Repositories{
		Products:   productTable{db},
		Categories: categoryTable{db},
		Suppliers:  supplierTable{db},
		Movements:  movementTable{db},
	}
}

// Budget returns the budget request repository.
func (db *DB) Budget() budget.Repository {
	return budgetTable{db}
}

// mapErr translates driver errors into shared sentinels so callers can
// match with errors.Is.
func mapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if pgxscan.NotFound(err) || errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("postgres: %s: %w", op, shared.ErrNotFound)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeUniqueViolation:
			return fmt.Errorf("postgres: %s: %s: %w", op, pgErr.ConstraintName, shared.ErrDuplicate)
		case codeForeignKeyViolation:
			return fmt.Errorf("postgres: %s: %s: %w", op, pgErr.ConstraintName, shared.ErrConflict)
		case codeCheckViolation:
			return fmt.Errorf("postgres: %s: %s: %w", op, pgErr.ConstraintName, shared.ErrValidation)
		}
	}
	return fmt.Errorf("postgres: %s: %w: %w", op, shared.ErrUpstream, err)
}

func withLimit(q squirrel.SelectBuilder, limit int) squirrel.SelectBuilder {
	if limit > 0 {
		q = q.Limit(uint64(limit))
	}
	return q
}
