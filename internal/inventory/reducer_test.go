package inventory

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

func product(stock, minStock int, price string) Product {
	return Product{
		ID:           uuid.New(),
		Name:         "item",
		SKU:          uuid.NewString()[:8],
		CurrentStock: stock,
		MinStock:     minStock,
		UnitPrice:    decimal.RequireFromString(price),
	}
}

func TestCalculateStats(t *testing.T) {
	products := []Product{
		product(0, 5, "10"),
		product(3, 5, "2.50"),
		product(5, 5, "1"),
		product(20, 5, "0.10"),
	}
	movements := []StockMovement{
		{CreatedAt: testNow.Add(-time.Hour)},
		{CreatedAt: testNow.Add(-RecentWindow)},
		{CreatedAt: testNow.Add(-RecentWindow - time.Second)},
	}

	stats := CalculateStats(products, movements, testNow)
	assert.Equal(t, 4, stats.TotalProducts)
	assert.True(t, decimal.RequireFromString("14.5").Equal(stats.TotalValue), stats.TotalValue.String())
	assert.Equal(t, 1, stats.OutOfStock)
	assert.Equal(t, 2, stats.LowStock)
	assert.Equal(t, 2, stats.RecentMovements)
}

func TestCalculateStatsEmpty(t *testing.T) {
	stats := CalculateStats(nil, nil, testNow)
	assert.Zero(t, stats.TotalProducts)
	assert.True(t, stats.TotalValue.IsZero())
}

func TestAddMovementOutClampsAtZero(t *testing.T) {
	for _, tc := range []struct {
		stock, qty, want int
	}{
		{stock: 10, qty: 3, want: 7},
		{stock: 3, qty: 3, want: 0},
		{stock: 2, qty: 9, want: 0},
		{stock: 0, qty: 1, want: 0},
	} {
		p := product(tc.stock, 1, "1")
		s := Reduce(State{}, SetProducts{Products: []Product{p}})
		s = Reduce(s, AddMovement{Movement: StockMovement{ID: uuid.New(), ProductID: p.ID, Type: MovementOut, Quantity: tc.qty}})
		require.Len(t, s.Products, 1)
		assert.Equal(t, tc.want, s.Products[0].CurrentStock, "stock %d out %d", tc.stock, tc.qty)
		require.Len(t, s.Movements, 1)
	}
}

func TestAddMovementPrependsAndLeavesInputUntouched(t *testing.T) {
	p := product(1, 1, "1")
	older := StockMovement{ID: uuid.New(), ProductID: p.ID, Type: MovementIn, Quantity: 1}
	before := Reduce(State{}, SetProducts{Products: []Product{p}})
	before = Reduce(before, SetMovements{Movements: []StockMovement{older}})

	newer := StockMovement{ID: uuid.New(), ProductID: p.ID, Type: MovementIn, Quantity: 4}
	after := Reduce(before, AddMovement{Movement: newer})

	assert.Equal(t, newer.ID, after.Movements[0].ID)
	assert.Equal(t, older.ID, after.Movements[1].ID)
	assert.Equal(t, 5, after.Products[0].CurrentStock)
	assert.Equal(t, 1, before.Products[0].CurrentStock)
	assert.Len(t, before.Movements, 1)
}

func TestSetProductsIsIdempotent(t *testing.T) {
	rows := []Product{product(1, 1, "1"), product(2, 1, "1")}
	once := Reduce(State{}, SetProducts{Products: rows})
	twice := Reduce(once, SetProducts{Products: rows})
	assert.Equal(t, once, twice)
}

func TestCRUDActions(t *testing.T) {
	p := product(1, 1, "1")
	s := Reduce(State{}, AddProduct{Product: p})
	p.Name = "renamed"
	s = Reduce(s, UpdateProduct{Product: p})
	require.Len(t, s.Products, 1)
	assert.Equal(t, "renamed", s.Products[0].Name)
	s = Reduce(s, DeleteProduct{ID: p.ID})
	assert.Empty(t, s.Products)

	c := Category{ID: uuid.New(), Name: "Medicine"}
	s = Reduce(s, AddCategory{Category: c})
	c.Name = "Drugs"
	s = Reduce(s, UpdateCategory{Category: c})
	assert.Equal(t, "Drugs", s.Categories[0].Name)
	s = Reduce(s, DeleteCategory{ID: c.ID})
	assert.Empty(t, s.Categories)

	sp := Supplier{ID: uuid.New(), Name: "Acme"}
	s = Reduce(s, AddSupplier{Supplier: sp})
	s = Reduce(s, DeleteSupplier{ID: sp.ID})
	assert.Empty(t, s.Suppliers)
}

func TestRecalculateStatsUsesCarriedClock(t *testing.T) {
	s := Reduce(State{}, SetMovements{Movements: []StockMovement{{CreatedAt: testNow}}})
	s = Reduce(s, RecalculateStats{Now: testNow})
	assert.Equal(t, 1, s.Stats.RecentMovements)
	s = Reduce(s, RecalculateStats{Now: testNow.Add(RecentWindow + time.Hour)})
	assert.Equal(t, 0, s.Stats.RecentMovements)
}
