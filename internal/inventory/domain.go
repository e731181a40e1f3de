package inventory

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/stockflow/stockflow/internal/shared"
)

// MovementType enumerates supported stock movements.
type MovementType string

const (
	// MovementIn represents an inbound movement.
	MovementIn MovementType = "in"
	// MovementOut represents an outbound movement.
	MovementOut MovementType = "out"
)

// Valid reports whether t is a known movement direction.
func (t MovementType) Valid() bool {
	return t == MovementIn || t == MovementOut
}

// Product is a catalog item with its current stock.
type Product struct {
	ID           uuid.UUID       `json:"id" validate:"required"`
	Name         string          `json:"name" validate:"required"`
	SKU          string          `json:"sku" validate:"required"`
	Description  string          `json:"description"`
	CategoryID   *uuid.UUID      `json:"category_id"`
	SupplierID   *uuid.UUID      `json:"supplier_id"`
	CurrentStock int             `json:"current_stock" validate:"gte=0"`
	MinStock     int             `json:"min_stock" validate:"gte=0"`
	MaxStock     *int            `json:"max_stock"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	Barcode      string          `json:"barcode"`
	Location     string          `json:"location"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// Category groups products.
type Category struct {
	ID          uuid.UUID `json:"id" validate:"required"`
	Name        string    `json:"name" validate:"required"`
	Description string    `json:"description"`
	IsMedicine  bool      `json:"is_medicine"`
	CreatedAt   time.Time `json:"created_at"`
}

// Supplier is a vendor products may reference.
type Supplier struct {
	ID            uuid.UUID `json:"id" validate:"required"`
	Name          string    `json:"name" validate:"required"`
	ContactPerson string    `json:"contact_person"`
	Email         string    `json:"email"`
	Phone         string    `json:"phone"`
	Address       string    `json:"address"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// StockMovement is an immutable stock-in or stock-out record.
type StockMovement struct {
	ID        uuid.UUID    `json:"id" validate:"required"`
	ProductID uuid.UUID    `json:"product_id" validate:"required"`
	Type      MovementType `json:"type" validate:"oneof=in out"`
	Quantity  int          `json:"quantity" validate:"gt=0"`
	Reason    string       `json:"reason"`
	Reference string       `json:"reference"`
	Notes     string       `json:"notes"`
	CreatedAt time.Time    `json:"created_at"`
	CreatedBy string       `json:"created_by"`
}

// Apply returns the stock level after applying m to current. Outbound
// movements clamp at zero.
func (m StockMovement) Apply(current int) int {
	switch m.Type {
	case MovementIn:
		return current + m.Quantity
	case MovementOut:
		if m.Quantity >= current {
			return 0
		}
		return current - m.Quantity
	}
	return current
}

// ProductInput carries the fields accepted when creating a product.
type ProductInput struct {
	Name         string          `json:"name" validate:"required,max=200"`
	SKU          string          `json:"sku" validate:"required,max=64"`
	Description  string          `json:"description"`
	CategoryID   *uuid.UUID      `json:"category_id"`
	SupplierID   *uuid.UUID      `json:"supplier_id"`
	CurrentStock int             `json:"current_stock" validate:"gte=0"`
	MinStock     int             `json:"min_stock" validate:"gte=0"`
	MaxStock     *int            `json:"max_stock" validate:"omitempty,gte=0"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	Barcode      string          `json:"barcode" validate:"max=64"`
	Location     string          `json:"location"`
}

// ProductPatch carries a partial product update; nil fields are left as is.
type ProductPatch struct {
	Name         *string          `json:"name" validate:"omitempty,min=1,max=200"`
	SKU          *string          `json:"sku" validate:"omitempty,min=1,max=64"`
	Description  *string          `json:"description"`
	CategoryID   *uuid.UUID       `json:"category_id"`
	SupplierID   *uuid.UUID       `json:"supplier_id"`
	CurrentStock *int             `json:"current_stock" validate:"omitempty,gte=0"`
	MinStock     *int             `json:"min_stock" validate:"omitempty,gte=0"`
	MaxStock     *int             `json:"max_stock" validate:"omitempty,gte=0"`
	UnitPrice    *decimal.Decimal `json:"unit_price"`
	Barcode      *string          `json:"barcode" validate:"omitempty,max=64"`
	Location     *string          `json:"location"`
}

// CategoryInput carries the fields accepted when creating a category.
type CategoryInput struct {
	Name        string `json:"name" validate:"required,max=120"`
	Description string `json:"description"`
	IsMedicine  bool   `json:"is_medicine"`
}

// CategoryPatch carries a partial category update.
type CategoryPatch struct {
	Name        *string `json:"name" validate:"omitempty,min=1,max=120"`
	Description *string `json:"description"`
	IsMedicine  *bool   `json:"is_medicine"`
}

// SupplierInput carries the fields accepted when creating a supplier.
type SupplierInput struct {
	Name          string `json:"name" validate:"required,max=200"`
	ContactPerson string `json:"contact_person"`
	Email         string `json:"email" validate:"omitempty,email"`
	Phone         string `json:"phone"`
	Address       string `json:"address"`
}

// SupplierPatch carries a partial supplier update.
type SupplierPatch struct {
	Name          *string `json:"name" validate:"omitempty,min=1,max=200"`
	ContactPerson *string `json:"contact_person"`
	Email         *string `json:"email" validate:"omitempty,email"`
	Phone         *string `json:"phone"`
	Address       *string `json:"address"`
}

// MovementInput describes a stock movement to record.
type MovementInput struct {
	ProductID uuid.UUID    `json:"product_id" validate:"required"`
	Type      MovementType `json:"type" validate:"required,oneof=in out"`
	Quantity  int          `json:"quantity" validate:"gt=0"`
	Reason    string       `json:"reason" validate:"required"`
	Reference string       `json:"reference"`
	Notes     string       `json:"notes"`
	CreatedBy string       `json:"created_by"`
}

var (
	// ErrValidation indicates input rejected before reaching the data store.
	ErrValidation = fmt.Errorf("inventory: %w", shared.ErrValidation)
	// ErrCategoryInUse indicates a category still referenced by products.
	ErrCategoryInUse = fmt.Errorf("inventory: category in use: %w", shared.ErrConflict)
	// ErrStoreClosed is returned by a store after its session ended.
	ErrStoreClosed = fmt.Errorf("inventory: store closed: %w", shared.ErrConflict)
	// ErrMalformedRow indicates a data store row failed the ingress check.
	ErrMalformedRow = fmt.Errorf("inventory: malformed row: %w", shared.ErrUpstream)
)

// CategoryInUseError reports how many products block a category delete.
type CategoryInUseError struct {
	CategoryID uuid.UUID
	Count      int
}

func (e *CategoryInUseError) Error() string {
	return fmt.Sprintf("inventory: category %s is used by %d product(s)", e.CategoryID, e.Count)
}

func (e *CategoryInUseError) Unwrap() error { return ErrCategoryInUse }

// ProblemExtensions exposes the blocking product count to HTTP clients.
func (e *CategoryInUseError) ProblemExtensions() map[string]any {
	return map[string]any{"category_id": e.CategoryID, "count": e.Count}
}
