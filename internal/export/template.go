package export

import (
	"bytes"
	"fmt"
	"io"
	"strings"
)

// Entities that have an import template.
const (
	EntityProducts   = "products"
	EntityCategories = "categories"
	EntitySuppliers  = "suppliers"
)

type productTemplate struct {
	Name         string  `json:"name"`
	SKU          string  `json:"sku"`
	Description  string  `json:"description"`
	CategoryID   *string `json:"category_id"`
	SupplierID   *string `json:"supplier_id"`
	CurrentStock int     `json:"current_stock"`
	MinStock     int     `json:"min_stock"`
	MaxStock     *int    `json:"max_stock"`
	UnitPrice    float64 `json:"unit_price"`
	Barcode      string  `json:"barcode"`
	Location     string  `json:"location"`
}

type categoryTemplate struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	IsMedicine  bool   `json:"is_medicine"`
}

type supplierTemplate struct {
	Name          string `json:"name"`
	ContactPerson string `json:"contact_person"`
	Email         string `json:"email"`
	Phone         string `json:"phone"`
	Address       string `json:"address"`
}

func intPtr(n int) *int { return &n }

// templateRows holds one canonical example row per entity. The CSV header is
// derived from the row's fields.
var templateRows = map[string]any{
	EntityProducts: []productTemplate{{
		Name:         "Paracetamol 500mg",
		SKU:          "MED-001",
		Description:  "Tablet strip of 10",
		CurrentStock: 120,
		MinStock:     20,
		MaxStock:     intPtr(300),
		UnitPrice:    1.25,
		Barcode:      "8991234567890",
		Location:     "Shelf A1",
	}},
	EntityCategories: []categoryTemplate{{
		Name:        "Medicine",
		Description: "Over the counter medicine",
		IsMedicine:  true,
	}},
	EntitySuppliers: []supplierTemplate{{
		Name:          "PT Sumber Sehat",
		ContactPerson: "Budi Santoso",
		Email:         "sales@sumbersehat.example",
		Phone:         "+62 21 555 0101",
		Address:       "Jl. Merdeka 10 Jakarta",
	}},
}

// Template returns the CSV import template for entity: a header line and one
// example row.
func Template(entity string) (string, error) {
	rows, ok := templateRows[strings.ToLower(entity)]
	if !ok {
		return "", fmt.Errorf("export: no template for %q", entity)
	}
	records, err := Records(rows)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := WriteCSV(&buf, records); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// WriteTemplate writes Template(entity) to w.
func WriteTemplate(w io.Writer, entity string) error {
	t, err := Template(entity)
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, t)
	return err
}
