package inventory

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/stockflow/stockflow/internal/shared"
)

// DefaultMovementLimit caps the movement history loaded into a snapshot.
const DefaultMovementLimit = 500

// StoreConfig groups optional Store settings.
type StoreConfig struct {
	SessionID     string
	Clock         func() time.Time
	MovementLimit int
	Validator     *validator.Validate
}

// Store holds one session's snapshot and mirrors successful data-store
// writes into it through Reduce. The mutex is never held across a
// data-store call, so concurrent writes land in the order they resolve.
type Store struct {
	repos    Repositories
	logger   *slog.Logger
	validate *validator.Validate
	now      func() time.Time
	limit    int

	mu       sync.RWMutex
	state    State
	closed   bool
	lastUsed time.Time
}

// NewStore constructs an empty Store. Call Load to populate it.
func NewStore(repos Repositories, logger *slog.Logger, cfg StoreConfig) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.Validator == nil {
		cfg.Validator = NewValidator()
	}
	if cfg.MovementLimit <= 0 {
		cfg.MovementLimit = DefaultMovementLimit
	}
	if cfg.SessionID != "" {
		logger = logger.With(slog.String("session", cfg.SessionID))
	}
	return &Store{
		repos:    repos,
		logger:   logger,
		validate: cfg.Validator,
		now:      cfg.Clock,
		limit:    cfg.MovementLimit,
		lastUsed: cfg.Clock(),
	}
}

func (s *Store) dispatch(actions ...Action) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range actions {
		s.state = Reduce(s.state, a)
	}
	s.state = Reduce(s.state, RecalculateStats{Now: s.now()})
	s.lastUsed = s.now()
}

func (s *Store) begin() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	s.lastUsed = s.now()
	return nil
}

func (s *Store) fail(op string, err error, attrs ...any) error {
	attrs = append(attrs, slog.Any("error", err))
	s.logger.Error("inventory "+op+" failed", attrs...)
	return fmt.Errorf("inventory: %s: %w", op, err)
}

// Load fetches all four tables concurrently and replaces the snapshot.
// A failure leaves the previous snapshot in place.
func (s *Store) Load(ctx context.Context) error {
	if err := s.begin(); err != nil {
		return err
	}
	s.dispatch(SetLoading{Loading: true})
	defer s.dispatch(SetLoading{Loading: false})

	var (
		products   []Product
		categories []Category
		suppliers  []Supplier
		movements  []StockMovement
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		products, err = s.selectProducts(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		categories, err = s.selectCategories(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		suppliers, err = s.selectSuppliers(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		movements, err = s.selectMovements(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return s.fail("load", err)
	}
	s.dispatch(
		SetProducts{Products: products},
		SetCategories{Categories: categories},
		SetSuppliers{Suppliers: suppliers},
		SetMovements{Movements: movements},
	)
	return nil
}

func (s *Store) selectProducts(ctx context.Context) ([]Product, error) {
	rows, err := s.repos.Products.Select(ctx, ListQuery{})
	if err != nil {
		return nil, err
	}
	return rows, checkRows(s.validate, "products", rows)
}

func (s *Store) selectCategories(ctx context.Context) ([]Category, error) {
	rows, err := s.repos.Categories.Select(ctx, ListQuery{})
	if err != nil {
		return nil, err
	}
	return rows, checkRows(s.validate, "categories", rows)
}

func (s *Store) selectSuppliers(ctx context.Context) ([]Supplier, error) {
	rows, err := s.repos.Suppliers.Select(ctx, ListQuery{})
	if err != nil {
		return nil, err
	}
	return rows, checkRows(s.validate, "suppliers", rows)
}

func (s *Store) selectMovements(ctx context.Context) ([]StockMovement, error) {
	rows, err := s.repos.Movements.Select(ctx, MovementQuery{Limit: s.limit})
	if err != nil {
		return nil, err
	}
	return rows, checkRows(s.validate, "stock_movements", rows)
}

// FetchProducts replaces the product list with a fresh read.
func (s *Store) FetchProducts(ctx context.Context) error {
	if err := s.begin(); err != nil {
		return err
	}
	rows, err := s.selectProducts(ctx)
	if err != nil {
		return s.fail("fetch products", err)
	}
	s.dispatch(SetProducts{Products: rows})
	return nil
}

// FetchCategories replaces the category list with a fresh read.
func (s *Store) FetchCategories(ctx context.Context) error {
	if err := s.begin(); err != nil {
		return err
	}
	rows, err := s.selectCategories(ctx)
	if err != nil {
		return s.fail("fetch categories", err)
	}
	s.dispatch(SetCategories{Categories: rows})
	return nil
}

// FetchSuppliers replaces the supplier list with a fresh read.
func (s *Store) FetchSuppliers(ctx context.Context) error {
	if err := s.begin(); err != nil {
		return err
	}
	rows, err := s.selectSuppliers(ctx)
	if err != nil {
		return s.fail("fetch suppliers", err)
	}
	s.dispatch(SetSuppliers{Suppliers: rows})
	return nil
}

// FetchMovements replaces the movement history with a fresh read.
func (s *Store) FetchMovements(ctx context.Context) error {
	if err := s.begin(); err != nil {
		return err
	}
	rows, err := s.selectMovements(ctx)
	if err != nil {
		return s.fail("fetch movements", err)
	}
	s.dispatch(SetMovements{Movements: rows})
	return nil
}

// CreateProduct inserts a product and adds it to the snapshot.
func (s *Store) CreateProduct(ctx context.Context, in ProductInput) (Product, error) {
	if err := s.begin(); err != nil {
		return Product{}, err
	}
	if err := validateProductInput(s.validate, in); err != nil {
		return Product{}, err
	}
	p, err := s.repos.Products.Insert(ctx, in)
	if err == nil {
		err = checkRow(s.validate, "products", p)
	}
	if err != nil {
		return Product{}, s.fail("create product", err, slog.String("sku", in.SKU))
	}
	s.dispatch(AddProduct{Product: p})
	return p, nil
}

// UpdateProduct applies patch to product id.
func (s *Store) UpdateProduct(ctx context.Context, id uuid.UUID, patch ProductPatch) (Product, error) {
	if err := s.begin(); err != nil {
		return Product{}, err
	}
	if err := validateProductPatch(s.validate, patch); err != nil {
		return Product{}, err
	}
	p, err := s.repos.Products.Update(ctx, id, patch)
	if err == nil {
		err = checkRow(s.validate, "products", p)
	}
	if err != nil {
		return Product{}, s.fail("update product", err, slog.String("id", id.String()))
	}
	s.dispatch(UpdateProduct{Product: p})
	return p, nil
}

// DeleteProduct removes product id.
func (s *Store) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	if err := s.begin(); err != nil {
		return err
	}
	if err := s.repos.Products.Delete(ctx, id); err != nil {
		return s.fail("delete product", err, slog.String("id", id.String()))
	}
	s.dispatch(DeleteProduct{ID: id})
	return nil
}

// CreateCategory inserts a category.
func (s *Store) CreateCategory(ctx context.Context, in CategoryInput) (Category, error) {
	if err := s.begin(); err != nil {
		return Category{}, err
	}
	if err := validateInput(s.validate, in); err != nil {
		return Category{}, err
	}
	c, err := s.repos.Categories.Insert(ctx, in)
	if err == nil {
		err = checkRow(s.validate, "categories", c)
	}
	if err != nil {
		return Category{}, s.fail("create category", err, slog.String("name", in.Name))
	}
	s.dispatch(AddCategory{Category: c})
	return c, nil
}

// UpdateCategory applies patch to category id.
func (s *Store) UpdateCategory(ctx context.Context, id uuid.UUID, patch CategoryPatch) (Category, error) {
	if err := s.begin(); err != nil {
		return Category{}, err
	}
	if err := validateInput(s.validate, patch); err != nil {
		return Category{}, err
	}
	c, err := s.repos.Categories.Update(ctx, id, patch)
	if err == nil {
		err = checkRow(s.validate, "categories", c)
	}
	if err != nil {
		return Category{}, s.fail("update category", err, slog.String("id", id.String()))
	}
	s.dispatch(UpdateCategory{Category: c})
	return c, nil
}

// DeleteCategory removes category id unless products in the snapshot still
// reference it, in which case a *CategoryInUseError is returned and the data
// store is not contacted.
func (s *Store) DeleteCategory(ctx context.Context, id uuid.UUID) error {
	if err := s.begin(); err != nil {
		return err
	}
	if n := s.countCategoryUse(id); n > 0 {
		return &CategoryInUseError{CategoryID: id, Count: n}
	}
	if err := s.repos.Categories.Delete(ctx, id); err != nil {
		return s.fail("delete category", err, slog.String("id", id.String()))
	}
	s.dispatch(DeleteCategory{ID: id})
	return nil
}

func (s *Store) countCategoryUse(id uuid.UUID) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, p := range s.state.Products {
		if p.CategoryID != nil && *p.CategoryID == id {
			n++
		}
	}
	return n
}

// CreateSupplier inserts a supplier.
func (s *Store) CreateSupplier(ctx context.Context, in SupplierInput) (Supplier, error) {
	if err := s.begin(); err != nil {
		return Supplier{}, err
	}
	if err := validateInput(s.validate, in); err != nil {
		return Supplier{}, err
	}
	sp, err := s.repos.Suppliers.Insert(ctx, in)
	if err == nil {
		err = checkRow(s.validate, "suppliers", sp)
	}
	if err != nil {
		return Supplier{}, s.fail("create supplier", err, slog.String("name", in.Name))
	}
	s.dispatch(AddSupplier{Supplier: sp})
	return sp, nil
}

// UpdateSupplier applies patch to supplier id.
func (s *Store) UpdateSupplier(ctx context.Context, id uuid.UUID, patch SupplierPatch) (Supplier, error) {
	if err := s.begin(); err != nil {
		return Supplier{}, err
	}
	if err := validateInput(s.validate, patch); err != nil {
		return Supplier{}, err
	}
	sp, err := s.repos.Suppliers.Update(ctx, id, patch)
	if err == nil {
		err = checkRow(s.validate, "suppliers", sp)
	}
	if err != nil {
		return Supplier{}, s.fail("update supplier", err, slog.String("id", id.String()))
	}
	s.dispatch(UpdateSupplier{Supplier: sp})
	return sp, nil
}

// DeleteSupplier removes supplier id. Products keep their reference.
func (s *Store) DeleteSupplier(ctx context.Context, id uuid.UUID) error {
	if err := s.begin(); err != nil {
		return err
	}
	if err := s.repos.Suppliers.Delete(ctx, id); err != nil {
		return s.fail("delete supplier", err, slog.String("id", id.String()))
	}
	s.dispatch(DeleteSupplier{ID: id})
	return nil
}

// RecordMovement inserts a movement. The data store adjusts product stock in
// the same request; the snapshot mirrors it through AddMovement.
func (s *Store) RecordMovement(ctx context.Context, in MovementInput) (StockMovement, error) {
	if err := s.begin(); err != nil {
		return StockMovement{}, err
	}
	if err := validateInput(s.validate, in); err != nil {
		return StockMovement{}, err
	}
	m, err := s.repos.Movements.Insert(ctx, in)
	if err == nil {
		err = checkRow(s.validate, "stock_movements", m)
	}
	if err != nil {
		return StockMovement{}, s.fail("record movement", err,
			slog.String("product_id", in.ProductID.String()),
			slog.String("type", string(in.Type)),
			slog.Int("quantity", in.Quantity))
	}
	s.dispatch(AddMovement{Movement: m})
	return m, nil
}

// SetFilter replaces the active product filter.
func (s *Store) SetFilter(f ProductFilter) {
	s.dispatch(SetFilter{Filter: f})
}

// FilteredProducts applies the active filter to the snapshot.
func (s *Store) FilteredProducts() []Product {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return FilterProducts(s.state.Products, s.state.Filter)
}

// ProductsMatching applies f to the snapshot without touching the active
// filter.
func (s *Store) ProductsMatching(f ProductFilter) []Product {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return FilterProducts(s.state.Products, f)
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := s.state
	st.Products = clone(st.Products)
	st.Categories = clone(st.Categories)
	st.Suppliers = clone(st.Suppliers)
	st.Movements = clone(st.Movements)
	return st
}

// Stats returns the stats computed at the last state change.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Stats
}

// LookupBarcode finds a product whose barcode, or failing that whose SKU,
// equals code exactly.
func (s *Store) LookupBarcode(code string) (Product, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return Product{}, &ValidationError{Fields: map[string]string{"barcode": "is required"}}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.state.Products {
		if p.Barcode != "" && p.Barcode == code {
			return p, nil
		}
	}
	for _, p := range s.state.Products {
		if p.SKU == code {
			return p, nil
		}
	}
	return Product{}, fmt.Errorf("inventory: barcode %q: %w", code, shared.ErrNotFound)
}

// LastUsed reports when the store last served a call.
func (s *Store) LastUsed() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastUsed
}

// Close marks the store closed. Later mutations fail with ErrStoreClosed.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}

// Closed reports whether Close was called.
func (s *Store) Closed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}
