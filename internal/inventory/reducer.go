package inventory

import (
	"time"

	"github.com/google/uuid"
)

// State is the in-memory snapshot held by a Store.
type State struct {
	Products   []Product       `json:"products"`
	Categories []Category      `json:"categories"`
	Suppliers  []Supplier      `json:"suppliers"`
	Movements  []StockMovement `json:"movements"`
	Filter     ProductFilter   `json:"filter"`
	Loading    bool            `json:"loading"`
	Stats      Stats           `json:"stats"`
}

// Action is a state transition understood by Reduce. The set is closed.
type Action interface {
	action()
}

type (
	SetProducts   struct{ Products []Product }
	SetCategories struct{ Categories []Category }
	SetSuppliers  struct{ Suppliers []Supplier }
	SetMovements  struct{ Movements []StockMovement }

	AddProduct    struct{ Product Product }
	UpdateProduct struct{ Product Product }
	DeleteProduct struct{ ID uuid.UUID }

	// AddMovement prepends the movement to history and applies its stock
	// delta to the referenced product in the same step.
	AddMovement struct{ Movement StockMovement }

	AddCategory    struct{ Category Category }
	UpdateCategory struct{ Category Category }
	DeleteCategory struct{ ID uuid.UUID }

	AddSupplier    struct{ Supplier Supplier }
	UpdateSupplier struct{ Supplier Supplier }
	DeleteSupplier struct{ ID uuid.UUID }

	SetFilter  struct{ Filter ProductFilter }
	SetLoading struct{ Loading bool }

	// RecalculateStats recomputes Stats as of Now.
	RecalculateStats struct{ Now time.Time }
)

func (SetProducts) action()      {}
func (SetCategories) action()    {}
func (SetSuppliers) action()     {}
func (SetMovements) action()     {}
func (AddProduct) action()       {}
func (UpdateProduct) action()    {}
func (DeleteProduct) action()    {}
func (AddMovement) action()      {}
func (AddCategory) action()      {}
func (UpdateCategory) action()   {}
func (DeleteCategory) action()   {}
func (AddSupplier) action()      {}
func (UpdateSupplier) action()   {}
func (DeleteSupplier) action()   {}
func (SetFilter) action()        {}
func (SetLoading) action()       {}
func (RecalculateStats) action() {}

// Reduce applies a to s and returns the new state. Slices of s are never
// modified in place, so earlier snapshots stay valid.
func Reduce(s State, a Action) State {
	switch a := a.(type) {
	case SetProducts:
		s.Products = clone(a.Products)
	case SetCategories:
		s.Categories = clone(a.Categories)
	case SetSuppliers:
		s.Suppliers = clone(a.Suppliers)
	case SetMovements:
		s.Movements = clone(a.Movements)

	case AddProduct:
		s.Products = appendCopy(s.Products, a.Product)
	case UpdateProduct:
		s.Products = replaceByID(s.Products, a.Product, func(p Product) uuid.UUID { return p.ID })
	case DeleteProduct:
		s.Products = removeByID(s.Products, a.ID, func(p Product) uuid.UUID { return p.ID })

	case AddMovement:
		movements := make([]StockMovement, 0, len(s.Movements)+1)
		movements = append(movements, a.Movement)
		s.Movements = append(movements, s.Movements...)
		products := clone(s.Products)
		for i := range products {
			if products[i].ID == a.Movement.ProductID {
				products[i].CurrentStock = a.Movement.Apply(products[i].CurrentStock)
			}
		}
		s.Products = products

	case AddCategory:
		s.Categories = appendCopy(s.Categories, a.Category)
	case UpdateCategory:
		s.Categories = replaceByID(s.Categories, a.Category, func(c Category) uuid.UUID { return c.ID })
	case DeleteCategory:
		s.Categories = removeByID(s.Categories, a.ID, func(c Category) uuid.UUID { return c.ID })

	case AddSupplier:
		s.Suppliers = appendCopy(s.Suppliers, a.Supplier)
	case UpdateSupplier:
		s.Suppliers = replaceByID(s.Suppliers, a.Supplier, func(sp Supplier) uuid.UUID { return sp.ID })
	case DeleteSupplier:
		s.Suppliers = removeByID(s.Suppliers, a.ID, func(sp Supplier) uuid.UUID { return sp.ID })

	case SetFilter:
		s.Filter = a.Filter
	case SetLoading:
		s.Loading = a.Loading
	case RecalculateStats:
		s.Stats = CalculateStats(s.Products, s.Movements, a.Now)
	}
	return s
}

func clone[T any](items []T) []T {
	if items == nil {
		return nil
	}
	out := make([]T, len(items))
	copy(out, items)
	return out
}

func appendCopy[T any](items []T, item T) []T {
	out := make([]T, 0, len(items)+1)
	out = append(out, items...)
	return append(out, item)
}

func replaceByID[T any](items []T, item T, id func(T) uuid.UUID) []T {
	out := clone(items)
	for i := range out {
		if id(out[i]) == id(item) {
			out[i] = item
		}
	}
	return out
}

func removeByID[T any](items []T, target uuid.UUID, id func(T) uuid.UUID) []T {
	out := make([]T, 0, len(items))
	for _, it := range items {
		if id(it) != target {
			out = append(out, it)
		}
	}
	return out
}
