package inventory_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stockflow/stockflow/internal/datastore/memory"
	"github.com/stockflow/stockflow/internal/inventory"
	"github.com/stockflow/stockflow/internal/shared"
)

var now = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

func clock() time.Time { return now }

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newStore(t *testing.T) (*inventory.Store, *memory.DB) {
	t.Helper()
	db := memory.New(clock)
	st := inventory.NewStore(db.Inventory(), quietLogger(), inventory.StoreConfig{Clock: clock})
	require.NoError(t, st.Load(context.Background()))
	return st, db
}

func TestStoreCreateUsesReturnedRow(t *testing.T) {
	st, _ := newStore(t)
	p, err := st.CreateProduct(context.Background(), inventory.ProductInput{
		Name: "Paracetamol", SKU: "MED-1", CurrentStock: 4, MinStock: 5, UnitPrice: decimal.NewFromInt(2),
	})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, p.ID)
	assert.Equal(t, now, p.CreatedAt)

	snap := st.Snapshot()
	require.Len(t, snap.Products, 1)
	assert.Equal(t, p, snap.Products[0])
	assert.Equal(t, 1, st.Stats().LowStock)
	assert.True(t, decimal.NewFromInt(8).Equal(st.Stats().TotalValue))
}

func TestStoreValidationRejectsBeforeDataStore(t *testing.T) {
	st, db := newStore(t)
	db.FailWith(errors.New("must not be called"))

	_, err := st.CreateProduct(context.Background(), inventory.ProductInput{SKU: "X", UnitPrice: decimal.NewFromInt(-1)})
	var verr *inventory.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "name")
	assert.Contains(t, verr.Fields, "unit_price")
	assert.ErrorIs(t, err, shared.ErrValidation)

	_, err = st.RecordMovement(context.Background(), inventory.MovementInput{ProductID: uuid.New(), Type: "sideways", Quantity: 0})
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "type")
	assert.Contains(t, verr.Fields, "quantity")
	assert.Contains(t, verr.Fields, "reason")
}

func TestStoreFailureLeavesStateUntouched(t *testing.T) {
	st, db := newStore(t)
	ctx := context.Background()
	p, err := st.CreateProduct(ctx, inventory.ProductInput{Name: "Mask", SKU: "M-1", CurrentStock: 10})
	require.NoError(t, err)
	before := st.Snapshot()

	db.FailWith(errors.New("connection refused"))
	_, err = st.RecordMovement(ctx, inventory.MovementInput{ProductID: p.ID, Type: inventory.MovementOut, Quantity: 3, Reason: "sale"})
	require.Error(t, err)
	require.Error(t, st.DeleteProduct(ctx, p.ID))
	require.Error(t, st.Load(ctx))

	after := st.Snapshot()
	assert.Equal(t, before.Products, after.Products)
	assert.Equal(t, before.Movements, after.Movements)
	assert.False(t, after.Loading)
}

func TestStoreRecordMovementMirrorsServerStock(t *testing.T) {
	st, _ := newStore(t)
	ctx := context.Background()
	p, err := st.CreateProduct(ctx, inventory.ProductInput{Name: "Mask", SKU: "M-1", CurrentStock: 2})
	require.NoError(t, err)

	_, err = st.RecordMovement(ctx, inventory.MovementInput{ProductID: p.ID, Type: inventory.MovementOut, Quantity: 5, Reason: "sale"})
	require.NoError(t, err)
	assert.Equal(t, 0, st.Snapshot().Products[0].CurrentStock)
	assert.Equal(t, 1, st.Stats().OutOfStock)
	assert.Equal(t, 1, st.Stats().RecentMovements)

	require.NoError(t, st.FetchProducts(ctx))
	assert.Equal(t, 0, st.Snapshot().Products[0].CurrentStock, "server and snapshot agree")
}

func TestStoreDeleteCategoryGuard(t *testing.T) {
	st, db := newStore(t)
	ctx := context.Background()
	c, err := st.CreateCategory(ctx, inventory.CategoryInput{Name: "Medicine", IsMedicine: true})
	require.NoError(t, err)
	for _, sku := range []string{"A", "B"} {
		_, err := st.CreateProduct(ctx, inventory.ProductInput{Name: sku, SKU: sku, CategoryID: &c.ID})
		require.NoError(t, err)
	}

	db.FailWith(errors.New("must not be called"))
	err = st.DeleteCategory(ctx, c.ID)
	var inUse *inventory.CategoryInUseError
	require.ErrorAs(t, err, &inUse)
	assert.Equal(t, 2, inUse.Count)
	assert.ErrorIs(t, err, inventory.ErrCategoryInUse)
	assert.Len(t, st.Snapshot().Categories, 1)
	db.FailWith(nil)

	empty, err := st.CreateCategory(ctx, inventory.CategoryInput{Name: "Empty"})
	require.NoError(t, err)
	require.NoError(t, st.DeleteCategory(ctx, empty.ID))
	assert.Len(t, st.Snapshot().Categories, 1)
}

func TestStoreFilterAndLookup(t *testing.T) {
	st, _ := newStore(t)
	ctx := context.Background()
	_, err := st.CreateProduct(ctx, inventory.ProductInput{Name: "Paracetamol", SKU: "MED-1", Barcode: "899100", CurrentStock: 1, MinStock: 5})
	require.NoError(t, err)
	_, err = st.CreateProduct(ctx, inventory.ProductInput{Name: "Gloves", SKU: "899100-G", CurrentStock: 50, MinStock: 5})
	require.NoError(t, err)

	st.SetFilter(inventory.ProductFilter{Level: inventory.StockLevelLow})
	got := st.FilteredProducts()
	require.Len(t, got, 1)
	assert.Equal(t, "Paracetamol", got[0].Name)

	other := st.ProductsMatching(inventory.ProductFilter{Search: "glov"})
	require.Len(t, other, 1)
	assert.Equal(t, "Gloves", other[0].Name)
	assert.Equal(t, inventory.StockLevelLow, st.Snapshot().Filter.Level)
	assert.Empty(t, st.Snapshot().Filter.Search)

	p, err := st.LookupBarcode("899100")
	require.NoError(t, err)
	assert.Equal(t, "MED-1", p.SKU)

	p, err = st.LookupBarcode("899100-G")
	require.NoError(t, err)
	assert.Equal(t, "Gloves", p.Name)

	_, err = st.LookupBarcode("000")
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestStoreClosed(t *testing.T) {
	st, _ := newStore(t)
	st.Close()
	_, err := st.CreateCategory(context.Background(), inventory.CategoryInput{Name: "x"})
	assert.ErrorIs(t, err, inventory.ErrStoreClosed)
	assert.ErrorIs(t, st.Load(context.Background()), inventory.ErrStoreClosed)
}

func TestStoreImportRemapsReferences(t *testing.T) {
	st, _ := newStore(t)
	oldCat := uuid.New()
	oldSup := uuid.New()
	report, err := st.Import(context.Background(), inventory.Batch{
		Categories: []inventory.Category{{ID: oldCat, Name: "Medicine"}},
		Suppliers:  []inventory.Supplier{{ID: oldSup, Name: "Acme", Email: "not-an-email"}, {Name: "Sehat"}},
		Products: []inventory.Product{
			{Name: "Paracetamol", SKU: "MED-1", CategoryID: &oldCat, CurrentStock: 7},
			{Name: "Duplicate", SKU: "MED-1"},
		},
		Movements: []inventory.StockMovement{{}, {}},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Categories)
	assert.Equal(t, 1, report.Suppliers)
	assert.Equal(t, 1, report.Products)
	assert.Equal(t, 2, report.SkippedMovements)
	assert.Len(t, report.Errors, 2)

	snap := st.Snapshot()
	require.Len(t, snap.Products, 1)
	require.NotNil(t, snap.Products[0].CategoryID)
	assert.Equal(t, snap.Categories[0].ID, *snap.Products[0].CategoryID)
	assert.Equal(t, 7, snap.Products[0].CurrentStock)
}

func TestStoreMalformedRowIsUpstreamFailure(t *testing.T) {
	db := memory.New(clock)
	ctx := context.Background()
	_, err := db.Inventory().Products.Insert(ctx, inventory.ProductInput{Name: "", SKU: "X"})
	require.NoError(t, err)

	st := inventory.NewStore(db.Inventory(), quietLogger(), inventory.StoreConfig{Clock: clock})
	err = st.Load(ctx)
	require.ErrorIs(t, err, inventory.ErrMalformedRow)
	assert.ErrorIs(t, err, shared.ErrUpstream)
	assert.Empty(t, st.Snapshot().Products)
}
