package memory

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/stockflow/stockflow/internal/inventory"
	"github.com/stockflow/stockflow/internal/shared"
)

type productTable struct{ db *DB }

func (t productTable) Select(_ context.Context, q inventory.ListQuery) ([]inventory.Product, error) {
	unlock, err := t.db.lock()
	defer unlock()
	if err != nil {
		return nil, err
	}
	return limit(copyOf(t.db.products), q.Limit), nil
}

func (t productTable) Insert(_ context.Context, in inventory.ProductInput) (inventory.Product, error) {
	unlock, err := t.db.lock()
	defer unlock()
	if err != nil {
		return inventory.Product{}, err
	}
	if t.db.skuTaken(in.SKU, uuid.Nil) {
		return inventory.Product{}, fmt.Errorf("product sku %q: %w", in.SKU, shared.ErrDuplicate)
	}
	if err := t.db.checkCategory(in.CategoryID); err != nil {
		return inventory.Product{}, err
	}
	now := t.db.now()
	p := inventory.Product{
		ID:           uuid.New(),
		Name:         in.Name,
		SKU:          in.SKU,
		Description:  in.Description,
		CategoryID:   in.CategoryID,
		SupplierID:   in.SupplierID,
		CurrentStock: in.CurrentStock,
		MinStock:     in.MinStock,
		MaxStock:     in.MaxStock,
		UnitPrice:    in.UnitPrice,
		Barcode:      in.Barcode,
		Location:     in.Location,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	t.db.products = append(t.db.products, p)
	return p, nil
}

func (t productTable) Update(_ context.Context, id uuid.UUID, patch inventory.ProductPatch) (inventory.Product, error) {
	unlock, err := t.db.lock()
	defer unlock()
	if err != nil {
		return inventory.Product{}, err
	}
	for i, p := range t.db.products {
		if p.ID != id {
			continue
		}
		if patch.SKU != nil && t.db.skuTaken(*patch.SKU, id) {
			return inventory.Product{}, fmt.Errorf("product sku %q: %w", *patch.SKU, shared.ErrDuplicate)
		}
		if err := t.db.checkCategory(patch.CategoryID); err != nil {
			return inventory.Product{}, err
		}
		t.db.products[i] = patch.Apply(p, t.db.now())
		return t.db.products[i], nil
	}
	return inventory.Product{}, fmt.Errorf("product %s: %w", id, shared.ErrNotFound)
}

func (t productTable) Delete(_ context.Context, id uuid.UUID) error {
	unlock, err := t.db.lock()
	defer unlock()
	if err != nil {
		return err
	}
	for i, p := range t.db.products {
		if p.ID == id {
			t.db.products = append(t.db.products[:i:i], t.db.products[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("product %s: %w", id, shared.ErrNotFound)
}

func (db *DB) skuTaken(sku string, except uuid.UUID) bool {
	for _, p := range db.products {
		if p.SKU == sku && p.ID != except {
			return true
		}
	}
	return false
}

func (db *DB) checkCategory(id *uuid.UUID) error {
	if id == nil {
		return nil
	}
	for _, c := range db.categories {
		if c.ID == *id {
			return nil
		}
	}
	return fmt.Errorf("category %s: %w", *id, shared.ErrConflict)
}

type categoryTable struct{ db *DB }

func (t categoryTable) Select(_ context.Context, q inventory.ListQuery) ([]inventory.Category, error) {
	unlock, err := t.db.lock()
	defer unlock()
	if err != nil {
		return nil, err
	}
	return limit(copyOf(t.db.categories), q.Limit), nil
}

func (t categoryTable) Insert(_ context.Context, in inventory.CategoryInput) (inventory.Category, error) {
	unlock, err := t.db.lock()
	defer unlock()
	if err != nil {
		return inventory.Category{}, err
	}
	if t.db.categoryNameTaken(in.Name, uuid.Nil) {
		return inventory.Category{}, fmt.Errorf("category %q: %w", in.Name, shared.ErrDuplicate)
	}
	c := inventory.Category{
		ID:          uuid.New(),
		Name:        in.Name,
		Description: in.Description,
		IsMedicine:  in.IsMedicine,
		CreatedAt:   t.db.now(),
	}
	t.db.categories = append(t.db.categories, c)
	return c, nil
}

func (t categoryTable) Update(_ context.Context, id uuid.UUID, patch inventory.CategoryPatch) (inventory.Category, error) {
	unlock, err := t.db.lock()
	defer unlock()
	if err != nil {
		return inventory.Category{}, err
	}
	for i, c := range t.db.categories {
		if c.ID != id {
			continue
		}
		if patch.Name != nil && t.db.categoryNameTaken(*patch.Name, id) {
			return inventory.Category{}, fmt.Errorf("category %q: %w", *patch.Name, shared.ErrDuplicate)
		}
		t.db.categories[i] = patch.Apply(c)
		return t.db.categories[i], nil
	}
	return inventory.Category{}, fmt.Errorf("category %s: %w", id, shared.ErrNotFound)
}

func (t categoryTable) Delete(_ context.Context, id uuid.UUID) error {
	unlock, err := t.db.lock()
	defer unlock()
	if err != nil {
		return err
	}
	for _, p := range t.db.products {
		if p.CategoryID != nil && *p.CategoryID == id {
			return fmt.Errorf("category %s referenced by products: %w", id, shared.ErrConflict)
		}
	}
	for i, c := range t.db.categories {
		if c.ID == id {
			t.db.categories = append(t.db.categories[:i:i], t.db.categories[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("category %s: %w", id, shared.ErrNotFound)
}

func (db *DB) categoryNameTaken(name string, except uuid.UUID) bool {
	for _, c := range db.categories {
		if strings.EqualFold(c.Name, name) && c.ID != except {
			return true
		}
	}
	return false
}

type supplierTable struct{ db *DB }

func (t supplierTable) Select(_ context.Context, q inventory.ListQuery) ([]inventory.Supplier, error) {
	unlock, err := t.db.lock()
	defer unlock()
	if err != nil {
		return nil, err
	}
	return limit(copyOf(t.db.suppliers), q.Limit), nil
}

func (t supplierTable) Insert(_ context.Context, in inventory.SupplierInput) (inventory.Supplier, error) {
	unlock, err := t.db.lock()
	defer unlock()
	if err != nil {
		return inventory.Supplier{}, err
	}
	now := t.db.now()
	s := inventory.Supplier{
		ID:            uuid.New(),
		Name:          in.Name,
		ContactPerson: in.ContactPerson,
		Email:         in.Email,
		Phone:         in.Phone,
		Address:       in.Address,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	t.db.suppliers = append(t.db.suppliers, s)
	return s, nil
}

func (t supplierTable) Update(_ context.Context, id uuid.UUID, patch inventory.SupplierPatch) (inventory.Supplier, error) {
	unlock, err := t.db.lock()
	defer unlock()
	if err != nil {
		return inventory.Supplier{}, err
	}
	for i, s := range t.db.suppliers {
		if s.ID == id {
			t.db.suppliers[i] = patch.Apply(s, t.db.now())
			return t.db.suppliers[i], nil
		}
	}
	return inventory.Supplier{}, fmt.Errorf("supplier %s: %w", id, shared.ErrNotFound)
}

func (t supplierTable) Delete(_ context.Context, id uuid.UUID) error {
	unlock, err := t.db.lock()
	defer unlock()
	if err != nil {
		return err
	}
	for i, s := range t.db.suppliers {
		if s.ID == id {
			t.db.suppliers = append(t.db.suppliers[:i:i], t.db.suppliers[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("supplier %s: %w", id, shared.ErrNotFound)
}

type movementTable struct{ db *DB }

func (t movementTable) Select(_ context.Context, q inventory.MovementQuery) ([]inventory.StockMovement, error) {
	unlock, err := t.db.lock()
	defer unlock()
	if err != nil {
		return nil, err
	}
	out := make([]inventory.StockMovement, 0, len(t.db.movements))
	for i := len(t.db.movements) - 1; i >= 0; i-- {
		m := t.db.movements[i]
		if q.ProductID != nil && m.ProductID != *q.ProductID {
			continue
		}
		out = append(out, m)
	}
	return limit(out, q.Limit), nil
}

func (t movementTable) Insert(_ context.Context, in inventory.MovementInput) (inventory.StockMovement, error) {
	unlock, err := t.db.lock()
	defer unlock()
	if err != nil {
		return inventory.StockMovement{}, err
	}
	idx := -1
	for i, p := range t.db.products {
		if p.ID == in.ProductID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return inventory.StockMovement{}, fmt.Errorf("product %s: %w", in.ProductID, shared.ErrNotFound)
	}
	now := t.db.now()
	m := inventory.StockMovement{
		ID:        uuid.New(),
		ProductID: in.ProductID,
		Type:      in.Type,
		Quantity:  in.Quantity,
		Reason:    in.Reason,
		Reference: in.Reference,
		Notes:     in.Notes,
		CreatedAt: now,
		CreatedBy: in.CreatedBy,
	}
	t.db.movements = append(t.db.movements, m)
	t.db.products[idx].CurrentStock = m.Apply(t.db.products[idx].CurrentStock)
	t.db.products[idx].UpdatedAt = now
	return m, nil
}
