package inventory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Batch is a set of rows to import, typically read from an export file.
type Batch struct {
	Categories []Category
	Suppliers  []Supplier
	Products   []Product
	Movements  []StockMovement
}

// RowError describes one rejected import row.
type RowError struct {
	Entity string `json:"entity"`
	Row    int    `json:"row"`
	Error  string `json:"error"`
}

// ImportReport summarises an Import call.
type ImportReport struct {
	Categories       int        `json:"categories"`
	Suppliers        int        `json:"suppliers"`
	Products         int        `json:"products"`
	SkippedMovements int        `json:"skipped_movements"`
	Errors           []RowError `json:"errors,omitempty"`
}

// Import creates categories, suppliers and products through the regular
// create path. Product references to imported categories and suppliers are
// rewritten to the newly assigned ids. Row failures are collected in the
// report; movements are counted and skipped since product rows already carry
// their stock.
func (s *Store) Import(ctx context.Context, b Batch) (ImportReport, error) {
	if err := s.begin(); err != nil {
		return ImportReport{}, err
	}
	var report ImportReport
	categoryIDs := map[uuid.UUID]uuid.UUID{}
	supplierIDs := map[uuid.UUID]uuid.UUID{}

	for i, c := range b.Categories {
		created, err := s.CreateCategory(ctx, CategoryInput{Name: c.Name, Description: c.Description, IsMedicine: c.IsMedicine})
		if err != nil {
			report.Errors = append(report.Errors, RowError{Entity: "categories", Row: i + 1, Error: err.Error()})
			continue
		}
		if c.ID != uuid.Nil {
			categoryIDs[c.ID] = created.ID
		}
		report.Categories++
	}
	for i, sp := range b.Suppliers {
		created, err := s.CreateSupplier(ctx, SupplierInput{
			Name:          sp.Name,
			ContactPerson: sp.ContactPerson,
			Email:         sp.Email,
			Phone:         sp.Phone,
			Address:       sp.Address,
		})
		if err != nil {
			report.Errors = append(report.Errors, RowError{Entity: "suppliers", Row: i + 1, Error: err.Error()})
			continue
		}
		if sp.ID != uuid.Nil {
			supplierIDs[sp.ID] = created.ID
		}
		report.Suppliers++
	}
	for i, p := range b.Products {
		in := ProductInput{
			Name:         p.Name,
			SKU:          p.SKU,
			Description:  p.Description,
			CategoryID:   remap(p.CategoryID, categoryIDs),
			SupplierID:   remap(p.SupplierID, supplierIDs),
			CurrentStock: p.CurrentStock,
			MinStock:     p.MinStock,
			MaxStock:     p.MaxStock,
			UnitPrice:    p.UnitPrice,
			Barcode:      p.Barcode,
			Location:     p.Location,
		}
		if _, err := s.CreateProduct(ctx, in); err != nil {
			report.Errors = append(report.Errors, RowError{Entity: "products", Row: i + 1, Error: err.Error()})
			continue
		}
		report.Products++
	}
	report.SkippedMovements = len(b.Movements)

	s.logger.Info("inventory import finished",
		slog.Int("categories", report.Categories),
		slog.Int("suppliers", report.Suppliers),
		slog.Int("products", report.Products),
		slog.Int("skipped_movements", report.SkippedMovements),
		slog.Int("errors", len(report.Errors)))
	return report, nil
}

func remap(id *uuid.UUID, ids map[uuid.UUID]uuid.UUID) *uuid.UUID {
	if id == nil {
		return nil
	}
	if mapped, ok := ids[*id]; ok {
		return &mapped
	}
	v := *id
	return &v
}

// BatchFromRecords converts flat string records of one entity, as read from
// CSV, into a Batch. Rows that cannot be parsed are returned as RowErrors.
func BatchFromRecords(entity string, records []map[string]string) (Batch, []RowError, error) {
	var (
		b    Batch
		errs []RowError
	)
	for i, rec := range records {
		var err error
		switch entity {
		case "products":
			var p Product
			if p, err = productFromRecord(rec); err == nil {
				b.Products = append(b.Products, p)
			}
		case "categories":
			var c Category
			if c, err = categoryFromRecord(rec); err == nil {
				b.Categories = append(b.Categories, c)
			}
		case "suppliers":
			var sup Supplier
			if sup, err = supplierFromRecord(rec); err == nil {
				b.Suppliers = append(b.Suppliers, sup)
			}
		case "movements", "stock_movements":
			b.Movements = append(b.Movements, StockMovement{})
		default:
			return Batch{}, nil, fmt.Errorf("inventory: unknown import entity %q", entity)
		}
		if err != nil {
			errs = append(errs, RowError{Entity: entity, Row: i + 1, Error: err.Error()})
		}
	}
	return b, errs, nil
}

var errBadField = errors.New("bad field")

func field(rec map[string]string, key string) string {
	v := strings.TrimSpace(rec[key])
	if v == "null" {
		return ""
	}
	return v
}

func optionalUUID(rec map[string]string, key string) (*uuid.UUID, error) {
	v := field(rec, key)
	if v == "" {
		return nil, nil
	}
	id, err := uuid.Parse(v)
	if err != nil {
		return nil, fmt.Errorf("%w %s: %v", errBadField, key, err)
	}
	return &id, nil
}

func intField(rec map[string]string, key string) (int, error) {
	v := field(rec, key)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%w %s: %v", errBadField, key, err)
	}
	return n, nil
}

func productFromRecord(rec map[string]string) (Product, error) {
	var (
		p   Product
		err error
	)
	if p.ID, err = uuidOrNil(rec); err != nil {
		return Product{}, err
	}
	p.Name = field(rec, "name")
	p.SKU = field(rec, "sku")
	p.Description = field(rec, "description")
	p.Barcode = field(rec, "barcode")
	p.Location = field(rec, "location")
	if p.CategoryID, err = optionalUUID(rec, "category_id"); err != nil {
		return Product{}, err
	}
	if p.SupplierID, err = optionalUUID(rec, "supplier_id"); err != nil {
		return Product{}, err
	}
	if p.CurrentStock, err = intField(rec, "current_stock"); err != nil {
		return Product{}, err
	}
	if p.MinStock, err = intField(rec, "min_stock"); err != nil {
		return Product{}, err
	}
	if v := field(rec, "max_stock"); v != "" {
		n, err := intField(rec, "max_stock")
		if err != nil {
			return Product{}, err
		}
		p.MaxStock = &n
	}
	if v := field(rec, "unit_price"); v != "" {
		if p.UnitPrice, err = decimal.NewFromString(v); err != nil {
			return Product{}, fmt.Errorf("%w unit_price: %v", errBadField, err)
		}
	}
	return p, nil
}

func categoryFromRecord(rec map[string]string) (Category, error) {
	id, err := uuidOrNil(rec)
	if err != nil {
		return Category{}, err
	}
	c := Category{ID: id, Name: field(rec, "name"), Description: field(rec, "description")}
	if v := field(rec, "is_medicine"); v != "" {
		if c.IsMedicine, err = strconv.ParseBool(v); err != nil {
			return Category{}, fmt.Errorf("%w is_medicine: %v", errBadField, err)
		}
	}
	return c, nil
}

func supplierFromRecord(rec map[string]string) (Supplier, error) {
	id, err := uuidOrNil(rec)
	if err != nil {
		return Supplier{}, err
	}
	return Supplier{
		ID:            id,
		Name:          field(rec, "name"),
		ContactPerson: field(rec, "contact_person"),
		Email:         field(rec, "email"),
		Phone:         field(rec, "phone"),
		Address:       field(rec, "address"),
	}, nil
}

func uuidOrNil(rec map[string]string) (uuid.UUID, error) {
	id, err := optionalUUID(rec, "id")
	if err != nil || id == nil {
		return uuid.Nil, err
	}
	return *id, nil
}
