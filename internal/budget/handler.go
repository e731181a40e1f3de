package budget

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/stockflow/stockflow/internal/platform/httpx"
	"github.com/stockflow/stockflow/internal/shared"
)

// ResultTemplate is the view template shown after following a decision link.
const ResultTemplate = "pages/approval_result"

// PDFRenderer converts HTML into PDF.
type PDFRenderer interface {
	RenderHTML(ctx context.Context, html string) ([]byte, error)
}

// Handler wires HTTP endpoints for budget requests.
type Handler struct {
	logger  *slog.Logger
	service *Service
	pages   Renderer
	pdf     PDFRenderer
}

// NewHandler constructs the budget handler. pdf may be nil.
func NewHandler(logger *slog.Logger, service *Service, pages Renderer, pdf PDFRenderer) *Handler {
	return &Handler{logger: logger, service: service, pages: pages, pdf: pdf}
}

// MountRoutes registers the JSON API under the current router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/{id}", h.get)
	r.Patch("/{id}", h.update)
	r.Delete("/{id}", h.delete)
	r.Get("/{id}/print", h.print)
}

func (h *Handler) respond(w http.ResponseWriter, r *http.Request, err error) {
	if httpx.StatusOf(err) >= http.StatusInternalServerError {
		h.logger.Error("budget request failed", slog.String("path", r.URL.Path), slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

func pathID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return uuid.Nil, &FieldError{Fields: map[string]string{"id": "uuid"}}
	}
	return id, nil
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	rows, err := h.service.List(r.Context(), ListFilter{
		Status: Status(strings.ToUpper(q.Get("status"))),
		Search: q.Get("search"),
	})
	if err != nil {
		h.respond(w, r, err)
		return
	}
	page := shared.ParsePagination(q.Get("page"), q.Get("per_page"), len(rows))
	start, end := page.Bounds()
	rows = rows[start:end]
	if rows == nil {
		rows = []Request{}
	}
	w.Header().Set("X-Total-Count", strconv.Itoa(page.Total))
	w.Header().Set("X-Total-Pages", strconv.Itoa(page.TotalPages))
	httpx.JSON(w, http.StatusOK, rows)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var in RequestInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	req, _, err := h.service.Create(r.Context(), in)
	if err != nil {
		h.respond(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, req)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.respond(w, r, err)
		return
	}
	d, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respond(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, d)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.respond(w, r, err)
		return
	}
	var patch RequestPatch
	if err := httpx.DecodeJSON(r, &patch); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	req, err := h.service.Update(r.Context(), id, patch)
	if err != nil {
		h.respond(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, req)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err == nil {
		err = h.service.Delete(r.Context(), id)
	}
	if err != nil {
		h.respond(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) print(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.respond(w, r, err)
		return
	}
	html, err := h.service.PrintDocument(r.Context(), id, h.pages)
	if err != nil {
		h.respond(w, r, err)
		return
	}
	if r.URL.Query().Get("format") == "pdf" {
		if h.pdf == nil {
			httpx.Problem(w, http.StatusNotImplemented, "Not Implemented", "pdf rendering is not configured")
			return
		}
		pdf, err := h.pdf.RenderHTML(r.Context(), string(html))
		if err != nil {
			h.logger.Error("budget pdf render failed", slog.String("id", id.String()), slog.Any("error", err))
			httpx.Problem(w, http.StatusBadGateway, "Bad Gateway", "pdf rendering failed")
			return
		}
		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Content-Disposition", `inline; filename="budget-request-`+id.String()+`.pdf"`)
		_, _ = w.Write(pdf)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(html)
}

// DecisionPage feeds the decision result template.
type DecisionPage struct {
	Title   string
	Message string
	Detail  *Detail
}

// HandleDecision resolves a decision link:
// /approval?request_id=<id>&decision=APPROVE|REJECT[&token=].
func (h *Handler) HandleDecision(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	id, err := uuid.Parse(q.Get("request_id"))
	if err != nil {
		h.decisionPage(w, http.StatusBadRequest, DecisionPage{Title: "Invalid link", Message: "The request id in this link is not valid."})
		return
	}
	decision, err := ParseDecision(q.Get("decision"))
	if err != nil {
		h.decisionPage(w, http.StatusBadRequest, DecisionPage{Title: "Invalid link", Message: "The decision in this link is not valid."})
		return
	}
	if err := h.service.Links().Verify(id, decision, q.Get("token")); err != nil {
		h.logger.Warn("budget decision link rejected", slog.String("id", id.String()), slog.Any("error", err))
		h.decisionPage(w, http.StatusForbidden, DecisionPage{Title: "Invalid link", Message: "This decision link is invalid or has expired."})
		return
	}

	d, err := h.service.Decide(r.Context(), DecisionInput{RequestID: id, Decision: decision, Remark: q.Get("remark")})
	switch {
	case err == nil:
		verb := "approved"
		if decision == DecisionReject {
			verb = "rejected"
		}
		h.decisionPage(w, http.StatusOK, DecisionPage{Title: "Request " + verb, Message: "Budget request " + d.RequestNumber + " has been " + verb + ".", Detail: &d})
	case errors.Is(err, ErrAlreadyDecided):
		page := DecisionPage{Title: "Already decided", Message: "This budget request was already decided."}
		if current, gerr := h.service.Get(r.Context(), id); gerr == nil {
			page.Detail = &current
			page.Message = "Budget request " + current.RequestNumber + " was already " + strings.ToLower(string(current.Status)) + "."
		}
		h.decisionPage(w, http.StatusConflict, page)
	case IsNotFound(err):
		h.decisionPage(w, http.StatusNotFound, DecisionPage{Title: "Not found", Message: "The budget request no longer exists."})
	default:
		h.logger.Error("budget decision failed", slog.String("id", id.String()), slog.Any("error", err))
		h.decisionPage(w, httpx.StatusOf(err), DecisionPage{Title: "Something went wrong", Message: "The decision could not be recorded. Please try again later."})
	}
}

func (h *Handler) decisionPage(w http.ResponseWriter, status int, page DecisionPage) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := h.pages.Execute(w, ResultTemplate, page); err != nil {
		h.logger.Error("render decision page", slog.Any("error", err))
	}
}
