package inventory

import (
	"strings"

	"github.com/google/uuid"
)

// StockLevel buckets a product by current stock against its minimum.
type StockLevel string

const (
	StockLevelOut    StockLevel = "out"
	StockLevelLow    StockLevel = "low"
	StockLevelMedium StockLevel = "medium"
	StockLevelHigh   StockLevel = "high"
)

// ParseStockLevel accepts the bucket names, ignoring case. Empty input yields
// an empty level, which matches every product.
func ParseStockLevel(s string) (StockLevel, bool) {
	switch lvl := StockLevel(strings.ToLower(strings.TrimSpace(s))); lvl {
	case "", StockLevelOut, StockLevelLow, StockLevelMedium, StockLevelHigh:
		return lvl, true
	}
	return "", false
}

// LevelOf returns the bucket of p: out at zero, low up to min_stock, medium up
// to twice min_stock, high above.
func LevelOf(p Product) StockLevel {
	switch {
	case p.CurrentStock <= 0:
		return StockLevelOut
	case p.CurrentStock <= p.MinStock:
		return StockLevelLow
	case p.CurrentStock <= 2*p.MinStock:
		return StockLevelMedium
	default:
		return StockLevelHigh
	}
}

// ProductFilter narrows the product list. Zero-valued fields match everything;
// set fields are combined with AND.
type ProductFilter struct {
	Search     string     `json:"search,omitempty"`
	CategoryID *uuid.UUID `json:"category_id,omitempty"`
	SupplierID *uuid.UUID `json:"supplier_id,omitempty"`
	Level      StockLevel `json:"level,omitempty"`
}

// Match reports whether p satisfies every set predicate of f.
func (f ProductFilter) Match(p Product) bool {
	if q := strings.ToLower(strings.TrimSpace(f.Search)); q != "" {
		if !strings.Contains(strings.ToLower(p.Name), q) &&
			!strings.Contains(strings.ToLower(p.SKU), q) &&
			!strings.Contains(strings.ToLower(p.Description), q) {
			return false
		}
	}
	if f.CategoryID != nil && (p.CategoryID == nil || *p.CategoryID != *f.CategoryID) {
		return false
	}
	if f.SupplierID != nil && (p.SupplierID == nil || *p.SupplierID != *f.SupplierID) {
		return false
	}
	if f.Level != "" && LevelOf(p) != f.Level {
		return false
	}
	return true
}

// FilterProducts returns the products matching f, preserving order.
func FilterProducts(products []Product, f ProductFilter) []Product {
	out := make([]Product, 0, len(products))
	for _, p := range products {
		if f.Match(p) {
			out = append(out, p)
		}
	}
	return out
}
