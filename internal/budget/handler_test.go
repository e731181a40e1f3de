package budget_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stockflow/stockflow/internal/budget"
)

type textPages struct{}

func (textPages) Execute(w io.Writer, name string, data any) error {
	switch v := data.(type) {
	case budget.DecisionPage:
		_, err := fmt.Fprintf(w, "%s|%s|%s", name, v.Title, v.Message)
		return err
	case budget.PrintData:
		_, err := fmt.Fprintf(w, "%s|%s|%s", name, v.RequestNumber, v.Amount)
		return err
	}
	return errors.New("unexpected data")
}

type stubPDF struct{ err error }

func (p stubPDF) RenderHTML(_ context.Context, html string) ([]byte, error) {
	if p.err != nil {
		return nil, p.err
	}
	return []byte("%PDF " + html), nil
}

func newRouter(f *fixture, pdf budget.PDFRenderer) http.Handler {
	h := budget.NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), f.service, textPages{}, pdf)
	r := chi.NewRouter()
	r.Route("/budget-requests", h.MountRoutes)
	r.Get("/approval", h.HandleDecision)
	return r
}

func serve(h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHandlerCreateAndList(t *testing.T) {
	f := newFixture(t)
	h := newRouter(f, nil)

	rec := serve(h, http.MethodPost, "/budget-requests", `{"requester":"Dana","account_code":"6100","amount":"250.5"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"status":"PENDING"`)

	rec = serve(h, http.MethodPost, "/budget-requests", `{"account_code":"6100","amount":"1"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "requester")

	rec = serve(h, http.MethodGet, "/budget-requests?status=pending", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"requester":"Dana"`)
	assert.Equal(t, "1", rec.Header().Get("X-Total-Count"))

	rec = serve(h, http.MethodGet, "/budget-requests?page=2&per_page=1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
	assert.Equal(t, "1", rec.Header().Get("X-Total-Pages"))

	rec = serve(h, http.MethodGet, "/budget-requests?status=approved", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = serve(h, http.MethodGet, "/budget-requests/not-a-uuid", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlerPrint(t *testing.T) {
	f := newFixture(t)
	req := f.create(t, validInput())

	rec := serve(newRouter(f, nil), http.MethodGet, "/budget-requests/"+req.ID.String()+"/print", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "pages/budget_print|"+req.RequestNumber+"|$ 1,500.00", rec.Body.String())

	rec = serve(newRouter(f, nil), http.MethodGet, "/budget-requests/"+req.ID.String()+"/print?format=pdf", "")
	assert.Equal(t, http.StatusNotImplemented, rec.Code)

	rec = serve(newRouter(f, stubPDF{}), http.MethodGet, "/budget-requests/"+req.ID.String()+"/print?format=pdf", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.True(t, strings.HasPrefix(rec.Body.String(), "%PDF "))

	rec = serve(newRouter(f, stubPDF{err: errors.New("boom")}), http.MethodGet, "/budget-requests/"+req.ID.String()+"/print?format=pdf", "")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestHandleDecisionLinks(t *testing.T) {
	f := newFixture(t)
	req := f.create(t, validInput())
	h := newRouter(f, nil)

	reject, err := url.Parse(f.sender.msgs[0].Params["reject_url"])
	require.NoError(t, err)

	rec := serve(h, http.MethodGet, "/approval?request_id=nope&decision=APPROVE", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(h, http.MethodGet, "/approval?request_id="+req.ID.String()+"&decision=APPROVE", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = serve(h, http.MethodGet, reject.RequestURI(), "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "pages/approval_result|Request rejected|Budget request "+req.RequestNumber+" has been rejected.", rec.Body.String())

	rec = serve(h, http.MethodGet, reject.RequestURI(), "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "was already rejected")

	rec = serve(h, http.MethodPatch, "/budget-requests/"+req.ID.String(), `{"note":"late"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
}
