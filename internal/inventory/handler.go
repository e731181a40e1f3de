package inventory

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/stockflow/stockflow/internal/export"
	"github.com/stockflow/stockflow/internal/platform/httpx"
)

const maxImportBytes = 10 << 20

// ExportFile is the JSON backup document.
type ExportFile struct {
	ExportedAt time.Time       `json:"exported_at"`
	Products   []Product       `json:"products"`
	Categories []Category      `json:"categories"`
	Suppliers  []Supplier      `json:"suppliers"`
	Movements  []StockMovement `json:"movements"`
}

// ExportOf builds the backup document for a snapshot.
func ExportOf(st State, now time.Time) ExportFile {
	return ExportFile{
		ExportedAt: now.UTC(),
		Products:   st.Products,
		Categories: st.Categories,
		Suppliers:  st.Suppliers,
		Movements:  st.Movements,
	}
}

// Batch converts the backup document into an import batch.
func (f ExportFile) Batch() Batch {
	return Batch{Categories: f.Categories, Suppliers: f.Suppliers, Products: f.Products, Movements: f.Movements}
}

// EntityRows returns the rows of one entity of st for tabular export.
func EntityRows(st State, entity string) (any, error) {
	switch entity {
	case "products":
		return nonNil(st.Products), nil
	case "categories":
		return nonNil(st.Categories), nil
	case "suppliers":
		return nonNil(st.Suppliers), nil
	case "movements":
		return nonNil(st.Movements), nil
	}
	return nil, &ValidationError{Fields: map[string]string{"entity": "must be one of products categories suppliers movements"}}
}

func nonNil[T any](rows []T) []T {
	if rows == nil {
		return []T{}
	}
	return rows
}

type storeKey struct{}

// WithStore attaches the session store to ctx.
func WithStore(ctx context.Context, st *Store) context.Context {
	return context.WithValue(ctx, storeKey{}, st)
}

// StoreFromContext returns the store attached by WithStore, or nil.
func StoreFromContext(ctx context.Context) *Store {
	st, _ := ctx.Value(storeKey{}).(*Store)
	return st
}

// Handler wires the session-scoped inventory JSON API.
type Handler struct {
	logger *slog.Logger
	clock  func() time.Time
}

// NewHandler constructs inventory handler.
func NewHandler(logger *slog.Logger, clock func() time.Time) *Handler {
	if clock == nil {
		clock = time.Now
	}
	return &Handler{logger: logger, clock: clock}
}

// MountRoutes registers inventory routes. The router must attach a Store to
// each request context.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/snapshot", h.withStore(h.handleSnapshot))
	r.Post("/snapshot/refresh", h.withStore(h.handleRefresh))
	r.Get("/stats", h.withStore(h.handleStats))

	r.Route("/products", func(r chi.Router) {
		r.Get("/", h.withStore(h.listProducts))
		r.Get("/lookup", h.withStore(h.lookupProduct))
		r.Post("/", h.withStore(h.createProduct))
		r.Patch("/{id}", h.withStore(h.updateProduct))
		r.Delete("/{id}", h.withStore(h.deleteProduct))
	})
	r.Route("/categories", func(r chi.Router) {
		r.Get("/", h.withStore(h.listCategories))
		r.Post("/", h.withStore(h.createCategory))
		r.Patch("/{id}", h.withStore(h.updateCategory))
		r.Delete("/{id}", h.withStore(h.deleteCategory))
	})
	r.Route("/suppliers", func(r chi.Router) {
		r.Get("/", h.withStore(h.listSuppliers))
		r.Post("/", h.withStore(h.createSupplier))
		r.Patch("/{id}", h.withStore(h.updateSupplier))
		r.Delete("/{id}", h.withStore(h.deleteSupplier))
	})
	r.Get("/movements", h.withStore(h.listMovements))
	r.Post("/movements", h.withStore(h.recordMovement))

	r.Get("/export.json", h.withStore(h.exportJSON))
	r.Get("/export/{entity}.csv", h.withStore(h.exportCSV))
	r.Get("/export/{entity}.xlsx", h.withStore(h.exportXLSX))
	r.Post("/import", h.withStore(h.importBatch))
	r.Get("/templates/{entity}.csv", h.template)
}

type storeHandler func(http.ResponseWriter, *http.Request, *Store)

func (h *Handler) withStore(next storeHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st := StoreFromContext(r.Context())
		if st == nil {
			httpx.Problem(w, http.StatusServiceUnavailable, "Store Unavailable", "no inventory store for this session")
			return
		}
		next(w, r, st)
	}
}

func (h *Handler) respond(w http.ResponseWriter, r *http.Request, err error) {
	if status := httpx.StatusOf(err); status >= http.StatusInternalServerError {
		h.logger.Error("inventory request failed", slog.String("path", r.URL.Path), slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

func badRequest(w http.ResponseWriter, err error) {
	httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
}

func pathID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return uuid.Nil, &ValidationError{Fields: map[string]string{"id": "must be a UUID"}}
	}
	return id, nil
}

func (h *Handler) handleSnapshot(w http.ResponseWriter, _ *http.Request, st *Store) {
	httpx.JSON(w, http.StatusOK, st.Snapshot())
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request, st *Store) {
	if err := st.Load(r.Context()); err != nil {
		h.respond(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, st.Snapshot())
}

func (h *Handler) handleStats(w http.ResponseWriter, _ *http.Request, st *Store) {
	httpx.JSON(w, http.StatusOK, st.Stats())
}

// ParseFilter reads a ProductFilter from query parameters.
func ParseFilter(q map[string][]string) (ProductFilter, error) {
	get := func(k string) string {
		if v := q[k]; len(v) > 0 {
			return strings.TrimSpace(v[0])
		}
		return ""
	}
	f := ProductFilter{Search: get("search")}
	var verr *ValidationError
	for _, key := range []string{"category_id", "supplier_id"} {
		raw := get(key)
		if raw == "" {
			continue
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			verr = verr.add(key, "must be a UUID")
			continue
		}
		if key == "category_id" {
			f.CategoryID = &id
		} else {
			f.SupplierID = &id
		}
	}
	lvl, ok := ParseStockLevel(get("level"))
	if !ok {
		verr = verr.add("level", "must be one of out low medium high")
	}
	f.Level = lvl
	if verr != nil {
		return ProductFilter{}, verr
	}
	return f, nil
}

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request, st *Store) {
	f, err := ParseFilter(r.URL.Query())
	if err != nil {
		h.respond(w, r, err)
		return
	}
	st.SetFilter(f)
	httpx.JSON(w, http.StatusOK, nonNil(st.ProductsMatching(f)))
}

func (h *Handler) lookupProduct(w http.ResponseWriter, r *http.Request, st *Store) {
	p, err := st.LookupBarcode(r.URL.Query().Get("barcode"))
	if err != nil {
		h.respond(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

func (h *Handler) createProduct(w http.ResponseWriter, r *http.Request, st *Store) {
	var in ProductInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		badRequest(w, err)
		return
	}
	p, err := st.CreateProduct(r.Context(), in)
	if err != nil {
		h.respond(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, p)
}

func (h *Handler) updateProduct(w http.ResponseWriter, r *http.Request, st *Store) {
	id, err := pathID(r)
	if err != nil {
		h.respond(w, r, err)
		return
	}
	var patch ProductPatch
	if err := httpx.DecodeJSON(r, &patch); err != nil {
		badRequest(w, err)
		return
	}
	p, err := st.UpdateProduct(r.Context(), id, patch)
	if err != nil {
		h.respond(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

func (h *Handler) deleteProduct(w http.ResponseWriter, r *http.Request, st *Store) {
	id, err := pathID(r)
	if err == nil {
		err = st.DeleteProduct(r.Context(), id)
	}
	if err != nil {
		h.respond(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listCategories(w http.ResponseWriter, _ *http.Request, st *Store) {
	httpx.JSON(w, http.StatusOK, nonNil(st.Snapshot().Categories))
}

func (h *Handler) createCategory(w http.ResponseWriter, r *http.Request, st *Store) {
	var in CategoryInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		badRequest(w, err)
		return
	}
	c, err := st.CreateCategory(r.Context(), in)
	if err != nil {
		h.respond(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, c)
}

func (h *Handler) updateCategory(w http.ResponseWriter, r *http.Request, st *Store) {
	id, err := pathID(r)
	if err != nil {
		h.respond(w, r, err)
		return
	}
	var patch CategoryPatch
	if err := httpx.DecodeJSON(r, &patch); err != nil {
		badRequest(w, err)
		return
	}
	c, err := st.UpdateCategory(r.Context(), id, patch)
	if err != nil {
		h.respond(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, c)
}

func (h *Handler) deleteCategory(w http.ResponseWriter, r *http.Request, st *Store) {
	id, err := pathID(r)
	if err == nil {
		err = st.DeleteCategory(r.Context(), id)
	}
	if err != nil {
		h.respond(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listSuppliers(w http.ResponseWriter, _ *http.Request, st *Store) {
	httpx.JSON(w, http.StatusOK, nonNil(st.Snapshot().Suppliers))
}

func (h *Handler) createSupplier(w http.ResponseWriter, r *http.Request, st *Store) {
	var in SupplierInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		badRequest(w, err)
		return
	}
	sp, err := st.CreateSupplier(r.Context(), in)
	if err != nil {
		h.respond(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, sp)
}

func (h *Handler) updateSupplier(w http.ResponseWriter, r *http.Request, st *Store) {
	id, err := pathID(r)
	if err != nil {
		h.respond(w, r, err)
		return
	}
	var patch SupplierPatch
	if err := httpx.DecodeJSON(r, &patch); err != nil {
		badRequest(w, err)
		return
	}
	sp, err := st.UpdateSupplier(r.Context(), id, patch)
	if err != nil {
		h.respond(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, sp)
}

func (h *Handler) deleteSupplier(w http.ResponseWriter, r *http.Request, st *Store) {
	id, err := pathID(r)
	if err == nil {
		err = st.DeleteSupplier(r.Context(), id)
	}
	if err != nil {
		h.respond(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listMovements(w http.ResponseWriter, r *http.Request, st *Store) {
	movements := st.Snapshot().Movements
	if raw := r.URL.Query().Get("product_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			h.respond(w, r, &ValidationError{Fields: map[string]string{"product_id": "must be a UUID"}})
			return
		}
		filtered := movements[:0:0]
		for _, m := range movements {
			if m.ProductID == id {
				filtered = append(filtered, m)
			}
		}
		movements = filtered
	}
	httpx.JSON(w, http.StatusOK, nonNil(movements))
}

func (h *Handler) recordMovement(w http.ResponseWriter, r *http.Request, st *Store) {
	var in MovementInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		badRequest(w, err)
		return
	}
	m, err := st.RecordMovement(r.Context(), in)
	if err != nil {
		h.respond(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, m)
}

func attachment(w http.ResponseWriter, contentType, name string) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, name))
}

func (h *Handler) exportJSON(w http.ResponseWriter, r *http.Request, st *Store) {
	now := h.clock()
	var buf bytes.Buffer
	if err := export.WriteJSON(&buf, ExportOf(st.Snapshot(), now)); err != nil {
		h.respond(w, r, err)
		return
	}
	attachment(w, "application/json", "stockflow-"+now.Format("20060102")+".json")
	_, _ = buf.WriteTo(w)
}

func (h *Handler) tabular(w http.ResponseWriter, r *http.Request, st *Store) ([]export.Record, string, bool) {
	entity := chi.URLParam(r, "entity")
	rows, err := EntityRows(st.Snapshot(), entity)
	if err != nil {
		h.respond(w, r, err)
		return nil, "", false
	}
	records, err := export.Records(rows)
	if err != nil {
		h.respond(w, r, err)
		return nil, "", false
	}
	return records, entity, true
}

func (h *Handler) exportCSV(w http.ResponseWriter, r *http.Request, st *Store) {
	records, entity, ok := h.tabular(w, r, st)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := export.WriteCSV(&buf, records); err != nil {
		h.respond(w, r, err)
		return
	}
	attachment(w, "text/csv; charset=utf-8", entity+".csv")
	_, _ = buf.WriteTo(w)
}

func (h *Handler) exportXLSX(w http.ResponseWriter, r *http.Request, st *Store) {
	records, entity, ok := h.tabular(w, r, st)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := export.WriteXLSX(&buf, entity, records); err != nil {
		h.respond(w, r, err)
		return
	}
	attachment(w, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", entity+".xlsx")
	_, _ = buf.WriteTo(w)
}

func (h *Handler) importBatch(w http.ResponseWriter, r *http.Request, st *Store) {
	body := io.LimitReader(r.Body, maxImportBytes)
	var (
		batch     Batch
		rowErrors []RowError
	)
	switch format := r.URL.Query().Get("format"); format {
	case "", "json":
		var file ExportFile
		if err := export.ReadJSON(body, &file); err != nil {
			badRequest(w, err)
			return
		}
		batch = file.Batch()
	case "csv":
		records, err := export.ReadCSV(body)
		if err != nil {
			badRequest(w, err)
			return
		}
		batch, rowErrors, err = BatchFromRecords(r.URL.Query().Get("entity"), records)
		if err != nil {
			h.respond(w, r, &ValidationError{Fields: map[string]string{"entity": err.Error()}})
			return
		}
	default:
		h.respond(w, r, &ValidationError{Fields: map[string]string{"format": "must be json or csv"}})
		return
	}
	report, err := st.Import(r.Context(), batch)
	if err != nil {
		h.respond(w, r, err)
		return
	}
	report.Errors = append(rowErrors, report.Errors...)
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) template(w http.ResponseWriter, r *http.Request) {
	tpl, err := export.Template(chi.URLParam(r, "entity"))
	if err != nil {
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
		return
	}
	attachment(w, "text/csv; charset=utf-8", chi.URLParam(r, "entity")+"-template.csv")
	_, _ = io.WriteString(w, tpl)
}
