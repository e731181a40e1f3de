package inventory

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestLevelOf(t *testing.T) {
	for _, tc := range []struct {
		stock, min int
		want       StockLevel
	}{
		{0, 5, StockLevelOut},
		{1, 5, StockLevelLow},
		{5, 5, StockLevelLow},
		{6, 5, StockLevelMedium},
		{10, 5, StockLevelMedium},
		{11, 5, StockLevelHigh},
		{1, 0, StockLevelHigh},
	} {
		assert.Equal(t, tc.want, LevelOf(Product{CurrentStock: tc.stock, MinStock: tc.min}), "stock %d min %d", tc.stock, tc.min)
	}
}

func TestFilterProductsIsConjunction(t *testing.T) {
	catA, catB := uuid.New(), uuid.New()
	supplier := uuid.New()
	products := []Product{
		{Name: "Paracetamol", SKU: "MED-1", CategoryID: &catA, SupplierID: &supplier, CurrentStock: 2, MinStock: 5},
		{Name: "Ibuprofen", SKU: "MED-2", CategoryID: &catA, CurrentStock: 50, MinStock: 5},
		{Name: "Bandage", SKU: "SUP-1", CategoryID: &catB, CurrentStock: 1, MinStock: 5, Description: "sterile gauze"},
		{Name: "Gloves", SKU: "SUP-2", CurrentStock: 0, MinStock: 5},
	}

	got := FilterProducts(products, ProductFilter{CategoryID: &catA, Level: StockLevelLow})
	if assert.Len(t, got, 1) {
		assert.Equal(t, "Paracetamol", got[0].Name)
	}

	got = FilterProducts(products, ProductFilter{Search: "GAUZE"})
	if assert.Len(t, got, 1) {
		assert.Equal(t, "Bandage", got[0].Name)
	}

	got = FilterProducts(products, ProductFilter{Search: "med-"})
	assert.Len(t, got, 2)

	got = FilterProducts(products, ProductFilter{SupplierID: &supplier})
	assert.Len(t, got, 1)

	assert.Len(t, FilterProducts(products, ProductFilter{}), 4)
	assert.Empty(t, FilterProducts(products, ProductFilter{CategoryID: &catB, Level: StockLevelOut}))
}

func TestParseStockLevel(t *testing.T) {
	lvl, ok := ParseStockLevel(" LOW ")
	assert.True(t, ok)
	assert.Equal(t, StockLevelLow, lvl)
	_, ok = ParseStockLevel("empty")
	assert.False(t, ok)
}

func TestParseFilter(t *testing.T) {
	id := uuid.New()
	f, err := ParseFilter(map[string][]string{"search": {"x"}, "category_id": {id.String()}, "level": {"high"}})
	assert.NoError(t, err)
	assert.Equal(t, "x", f.Search)
	assert.Equal(t, id, *f.CategoryID)
	assert.Equal(t, StockLevelHigh, f.Level)

	_, err = ParseFilter(map[string][]string{"supplier_id": {"nope"}, "level": {"huge"}})
	var verr *ValidationError
	if assert.ErrorAs(t, err, &verr) {
		assert.Contains(t, verr.Fields, "supplier_id")
		assert.Contains(t, verr.Fields, "level")
	}
	assert.ErrorIs(t, err, ErrValidation)
}
