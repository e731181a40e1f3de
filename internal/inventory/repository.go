package inventory

import (
	"context"

	"github.com/google/uuid"
)

// ListQuery bounds a Select call. A zero Limit means no limit.
type ListQuery struct {
	Limit int
}

// MovementQuery narrows movement history. Rows come back newest first.
type MovementQuery struct {
	ProductID *uuid.UUID
	Limit     int
}

// ProductRepository is the data-store table for products.
type ProductRepository interface {
	Select(ctx context.Context, q ListQuery) ([]Product, error)
	Insert(ctx context.Context, in ProductInput) (Product, error)
	Update(ctx context.Context, id uuid.UUID, patch ProductPatch) (Product, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// CategoryRepository is the data-store table for categories.
type CategoryRepository interface {
	Select(ctx context.Context, q ListQuery) ([]Category, error)
	Insert(ctx context.Context, in CategoryInput) (Category, error)
	Update(ctx context.Context, id uuid.UUID, patch CategoryPatch) (Category, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// SupplierRepository is the data-store table for suppliers.
type SupplierRepository interface {
	Select(ctx context.Context, q ListQuery) ([]Supplier, error)
	Insert(ctx context.Context, in SupplierInput) (Supplier, error)
	Update(ctx context.Context, id uuid.UUID, patch SupplierPatch) (Supplier, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// MovementRepository is the append-only movement table. Insert applies the
// stock delta to the referenced product in the same request, clamping
// outbound movements at zero.
type MovementRepository interface {
	Select(ctx context.Context, q MovementQuery) ([]StockMovement, error)
	Insert(ctx context.Context, in MovementInput) (StockMovement, error)
}

// Repositories bundles the tables a Store talks to.
type Repositories struct {
	Products   ProductRepository
	Categories CategoryRepository
	Suppliers  SupplierRepository
	Movements  MovementRepository
}
