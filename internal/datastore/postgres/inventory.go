package postgres

import (
	"context"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/stockflow/stockflow/internal/inventory"
	"github.com/stockflow/stockflow/internal/platform/db"
)

const productColumns = "id, name, sku, description, category_id, supplier_id, current_stock, " +
	"min_stock, max_stock, unit_price::text AS unit_price, barcode, location, created_at, updated_at"

type productRow struct {
	ID           uuid.UUID  `db:"id"`
	Name         string     `db:"name"`
	SKU          string     `db:"sku"`
	Description  string     `db:"description"`
	CategoryID   *uuid.UUID `db:"category_id"`
	SupplierID   *uuid.UUID `db:"supplier_id"`
	CurrentStock int        `db:"current_stock"`
	MinStock     int        `db:"min_stock"`
	MaxStock     *int       `db:"max_stock"`
	UnitPrice    string     `db:"unit_price"`
	Barcode      string     `db:"barcode"`
	Location     string     `db:"location"`
	CreatedAt    time.Time  `db:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at"`
}

func (r productRow) product() (inventory.Product, error) {
	price, err := decimal.NewFromString(r.UnitPrice)
	if err != nil {
		return inventory.Product{}, mapErr("decode unit_price", err)
	}
	return inventory.Product{
		ID:           r.ID,
		Name:         r.Name,
		SKU:          r.SKU,
		Description:  r.Description,
		CategoryID:   r.CategoryID,
		SupplierID:   r.SupplierID,
		CurrentStock: r.CurrentStock,
		MinStock:     r.MinStock,
		MaxStock:     r.MaxStock,
		UnitPrice:    price,
		Barcode:      r.Barcode,
		Location:     r.Location,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}, nil
}

func productValues(p inventory.Product) map[string]any {
	return map[string]any{
		"name":          p.Name,
		"sku":           p.SKU,
		"description":   p.Description,
		"category_id":   p.CategoryID,
		"supplier_id":   p.SupplierID,
		"current_stock": p.CurrentStock,
		"min_stock":     p.MinStock,
		"max_stock":     p.MaxStock,
		"unit_price":    p.UnitPrice.String(),
		"barcode":       p.Barcode,
		"location":      p.Location,
		"updated_at":    p.UpdatedAt,
	}
}

type productTable struct{ db *DB }

func (t productTable) Select(ctx context.Context, q inventory.ListQuery) ([]inventory.Product, error) {
	query, args, err := withLimit(t.db.builder.Select(productColumns).From("products").
		OrderBy("created_at", "id"), q.Limit).ToSql()
	if err != nil {
		return nil, mapErr("build select products", err)
	}
	var rows []productRow
	if err := pgxscan.Select(ctx, t.db.pool, &rows, query, args...); err != nil {
		return nil, mapErr("select products", err)
	}
	out := make([]inventory.Product, 0, len(rows))
	for _, r := range rows {
		p, err := r.product()
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func (t productTable) Insert(ctx context.Context, in inventory.ProductInput) (inventory.Product, error) {
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
		UpdatedAt:    now,
	}
	values := productValues(p)
	values["id"] = p.ID
	values["created_at"] = now
	query, args, err := t.db.builder.Insert("products").SetMap(values).
		Suffix("RETURNING " + productColumns).ToSql()
	if err != nil {
		return inventory.Product{}, mapErr("build insert product", err)
	}
	var row productRow
	if err := pgxscan.Get(ctx, t.db.pool, &row, query, args...); err != nil {
		return inventory.Product{}, mapErr("insert product", err)
	}
	return row.product()
}

func (t productTable) Update(ctx context.Context, id uuid.UUID, patch inventory.ProductPatch) (inventory.Product, error) {
	var out inventory.Product
	err := db.WithTx(ctx, t.db.pool, func(tx pgx.Tx) error {
		current, err := t.lock(ctx, tx, id)
		if err != nil {
			return err
		}
		next := patch.Apply(current, t.db.now())
		query, args, err := t.db.builder.Update("products").SetMap(productValues(next)).
			Where("id = ?", id).Suffix("RETURNING " + productColumns).ToSql()
		if err != nil {
			return mapErr("build update product", err)
		}
		var row productRow
		if err := pgxscan.Get(ctx, tx, &row, query, args...); err != nil {
			return mapErr("update product", err)
		}
		out, err = row.product()
		return err
	})
	return out, err
}

// lock reads product id and holds its row lock until tx ends.
func (t productTable) lock(ctx context.Context, tx pgx.Tx, id uuid.UUID) (inventory.Product, error) {
	query, args, err := t.db.builder.Select(productColumns).From("products").
		Where("id = ?", id).Suffix("FOR UPDATE").ToSql()
	if err != nil {
		return inventory.Product{}, mapErr("build lock product", err)
	}
	var row productRow
	if err := pgxscan.Get(ctx, tx, &row, query, args...); err != nil {
		return inventory.Product{}, mapErr("lock product "+id.String(), err)
	}
	return row.product()
}

func (t productTable) Delete(ctx context.Context, id uuid.UUID) error {
	return t.db.deleteByID(ctx, "products", id)
}

func (db *DB) deleteByID(ctx context.Context, table string, id uuid.UUID) error {
	query, args, err := db.builder.Delete(table).Where("id = ?", id).ToSql()
	if err != nil {
		return mapErr("build delete "+table, err)
	}
	tag, err := db.pool.Exec(ctx, query, args...)
	if err != nil {
		return mapErr("delete "+table, err)
	}
	if tag.RowsAffected() == 0 {
		return mapErr("delete "+table+" "+id.String(), pgx.ErrNoRows)
	}
	return nil
}

const categoryColumns = "id, name, description, is_medicine, created_at"

type categoryTable struct{ db *DB }

func (t categoryTable) Select(ctx context.Context, q inventory.ListQuery) ([]inventory.Category, error) {
	query, args, err := withLimit(t.db.builder.Select(categoryColumns).From("categories").
		OrderBy("created_at", "id"), q.Limit).ToSql()
	if err != nil {
		return nil, mapErr("build select categories", err)
	}
	var rows []inventory.Category
	if err := pgxscan.Select(ctx, t.db.pool, &rows, query, args...); err != nil {
		return nil, mapErr("select categories", err)
	}
	return rows, nil
}

func (t categoryTable) Insert(ctx context.Context, in inventory.CategoryInput) (inventory.Category, error) {
	query, args, err := t.db.builder.Insert("categories").SetMap(map[string]any{
		"id":          uuid.New(),
		"name":        in.Name,
		"description": in.Description,
		"is_medicine": in.IsMedicine,
		"created_at":  t.db.now(),
	}).Suffix("RETURNING " + categoryColumns).ToSql()
	if err != nil {
		return inventory.Category{}, mapErr("build insert category", err)
	}
	var c inventory.Category
	if err := pgxscan.Get(ctx, t.db.pool, &c, query, args...); err != nil {
		return inventory.Category{}, mapErr("insert category", err)
	}
	return c, nil
}

func (t categoryTable) Update(ctx context.Context, id uuid.UUID, patch inventory.CategoryPatch) (inventory.Category, error) {
	var out inventory.Category
	err := db.WithTx(ctx, t.db.pool, func(tx pgx.Tx) error {
		query, args, err := t.db.builder.Select(categoryColumns).From("categories").
			Where("id = ?", id).Suffix("FOR UPDATE").ToSql()
		if err != nil {
			return mapErr("build lock category", err)
		}
		var current inventory.Category
		if err := pgxscan.Get(ctx, tx, &current, query, args...); err != nil {
			return mapErr("lock category "+id.String(), err)
		}
		next := patch.Apply(current)
		query, args, err = t.db.builder.Update("categories").SetMap(map[string]any{
			"name":        next.Name,
			"description": next.Description,
			"is_medicine": next.IsMedicine,
		}).Where("id = ?", id).Suffix("RETURNING " + categoryColumns).ToSql()
		if err != nil {
			return mapErr("build update category", err)
		}
		if err := pgxscan.Get(ctx, tx, &out, query, args...); err != nil {
			return mapErr("update category", err)
		}
		return nil
	})
	return out, err
}

// Delete fails with shared.ErrConflict while products still reference the
// category.
func (t categoryTable) Delete(ctx context.Context, id uuid.UUID) error {
	return t.db.deleteByID(ctx, "categories", id)
}

const supplierColumns = "id, name, contact_person, email, phone, address, created_at, updated_at"

type supplierTable struct{ db *DB }

func (t supplierTable) Select(ctx context.Context, q inventory.ListQuery) ([]inventory.Supplier, error) {
	query, args, err := withLimit(t.db.builder.Select(supplierColumns).From("suppliers").
		OrderBy("created_at", "id"), q.Limit).ToSql()
	if err != nil {
		return nil, mapErr("build select suppliers", err)
	}
	var rows []inventory.Supplier
	if err := pgxscan.Select(ctx, t.db.pool, &rows, query, args...); err != nil {
		return nil, mapErr("select suppliers", err)
	}
	return rows, nil
}

func (t supplierTable) Insert(ctx context.Context, in inventory.SupplierInput) (inventory.Supplier, error) {
	now := t.db.now()
	query, args, err := t.db.builder.Insert("suppliers").SetMap(map[string]any{
		"id":             uuid.New(),
		"name":           in.Name,
		"contact_person": in.ContactPerson,
		"email":          in.Email,
		"phone":          in.Phone,
		"address":        in.Address,
		"created_at":     now,
		"updated_at":     now,
	}).Suffix("RETURNING " + supplierColumns).ToSql()
	if err != nil {
		return inventory.Supplier{}, mapErr("build insert supplier", err)
	}
	var s inventory.Supplier
	if err := pgxscan.Get(ctx, t.db.pool, &s, query, args...); err != nil {
		return inventory.Supplier{}, mapErr("insert supplier", err)
	}
	return s, nil
}

func (t supplierTable) Update(ctx context.Context, id uuid.UUID, patch inventory.SupplierPatch) (inventory.Supplier, error) {
	var out inventory.Supplier
	err := db.WithTx(ctx, t.db.pool, func(tx pgx.Tx) error {
		query, args, err := t.db.builder.Select(supplierColumns).From("suppliers").
			Where("id = ?", id).Suffix("FOR UPDATE").ToSql()
		if err != nil {
			return mapErr("build lock supplier", err)
		}
		var current inventory.Supplier
		if err := pgxscan.Get(ctx, tx, &current, query, args...); err != nil {
			return mapErr("lock supplier "+id.String(), err)
		}
		next := patch.Apply(current, t.db.now())
		query, args, err = t.db.builder.Update("suppliers").SetMap(map[string]any{
			"name":           next.Name,
			"contact_person": next.ContactPerson,
			"email":          next.Email,
			"phone":          next.Phone,
			"address":        next.Address,
			"updated_at":     next.UpdatedAt,
		}).Where("id = ?", id).Suffix("RETURNING " + supplierColumns).ToSql()
		if err != nil {
			return mapErr("build update supplier", err)
		}
		if err := pgxscan.Get(ctx, tx, &out, query, args...); err != nil {
			return mapErr("update supplier", err)
		}
		return nil
	})
	return out, err
}

// Delete leaves products pointing at the supplier untouched.
func (t supplierTable) Delete(ctx context.Context, id uuid.UUID) error {
	return t.db.deleteByID(ctx, "suppliers", id)
}

const movementColumns = "id, product_id, type, quantity, reason, reference, notes, created_by, created_at"

type movementTable struct{ db *DB }

func (t movementTable) Select(ctx context.Context, q inventory.MovementQuery) ([]inventory.StockMovement, error) {
	sb := t.db.builder.Select(movementColumns).From("stock_movements").
		OrderBy("created_at DESC", "id DESC")
	if q.ProductID != nil {
		sb = sb.Where("product_id = ?", *q.ProductID)
	}
	query, args, err := withLimit(sb, q.Limit).ToSql()
	if err != nil {
		return nil, mapErr("build select movements", err)
	}
	var rows []inventory.StockMovement
	if err := pgxscan.Select(ctx, t.db.pool, &rows, query, args...); err != nil {
		return nil, mapErr("select movements", err)
	}
	return rows, nil
}

// Insert appends the movement and applies its delta to the product under a
// row lock, so concurrent movements on one product serialize.
func (t movementTable) Insert(ctx context.Context, in inventory.MovementInput) (inventory.StockMovement, error) {
	now := t.db.now()
	m := inventory.StockMovement{
		ID:        uuid.New(),
		ProductID: in.ProductID,
		Type:      in.Type,
		Quantity:  in.Quantity,
		Reason:    in.Reason,
		Reference: in.Reference,
		Notes:     in.Notes,
		CreatedBy: in.CreatedBy,
		CreatedAt: now,
	}
	var out inventory.StockMovement
	err := db.WithTx(ctx, t.db.pool, func(tx pgx.Tx) error {
		product, err := productTable(t).lock(ctx, tx, in.ProductID)
		if err != nil {
			return err
		}
		query, args, err := t.db.builder.Update("products").
			Set("current_stock", m.Apply(product.CurrentStock)).
			Set("updated_at", now).
			Where("id = ?", in.ProductID).ToSql()
		if err != nil {
			return mapErr("build update stock", err)
		}
		if _, err := tx.Exec(ctx, query, args...); err != nil {
			return mapErr("update stock", err)
		}
		query, args, err = t.db.builder.Insert("stock_movements").SetMap(map[string]any{
			"id":         m.ID,
			"product_id": m.ProductID,
			"type":       string(m.Type),
			"quantity":   m.Quantity,
			"reason":     m.Reason,
			"reference":  m.Reference,
			"notes":      m.Notes,
			"created_by": m.CreatedBy,
			"created_at": m.CreatedAt,
		}).Suffix("RETURNING " + movementColumns).ToSql()
		if err != nil {
			return mapErr("build insert movement", err)
		}
		if err := pgxscan.Get(ctx, tx, &out, query, args...); err != nil {
			return mapErr("insert movement", err)
		}
		return nil
	})
	return out, err
}
