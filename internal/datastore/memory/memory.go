// Package memory is an in-process data store used by tests and by
// DATASTORE=memory deployments. It enforces the same uniqueness and
// referential rules as the Postgres schema.
package memory

import (
	"sync"
	"time"

	"github.com/stockflow/stockflow/internal/budget"
	"github.com/stockflow/stockflow/internal/inventory"
)

// DB holds all tables behind one lock.
type DB struct {
	mu    sync.Mutex
	clock func() time.Time
	fail  error

	products   []inventory.Product
	categories []inventory.Category
	suppliers  []inventory.Supplier
	movements  []inventory.StockMovement

	requests  []budget.Request
	approvals []budget.Approval
}

// New returns an empty DB. clock defaults to time.Now.
func New(clock func() time.Time) *DB {
	if clock == nil {
		clock = time.Now
	}
	return &DB{clock: clock}
}

// FailWith makes every following call return err until cleared with nil.
func (db *DB) FailWith(err error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.fail = err
}

func (db *DB) lock() (func(), error) {
	db.mu.Lock()
	if db.fail != nil {
		err := db.fail
		db.mu.Unlock()
		return func() {}, err
	}
	return db.mu.Unlock, nil
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

func limit[T any](rows []T, n int) []T {
	if n > 0 && len(rows) > n {
		return rows[:n]
	}
	return rows
}

func copyOf[T any](rows []T) []T {
	out := make([]T, len(rows))
	copy(out, rows)
	return out
}
