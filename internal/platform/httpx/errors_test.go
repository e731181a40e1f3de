package httpx

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stockflow/stockflow/internal/shared"
)

type fieldErr struct{}

func (fieldErr) Error() string { return "bad input" }
func (fieldErr) Unwrap() error { return shared.ErrValidation }
func (fieldErr) FieldErrors() map[string]string { return map[string]string{"name": "required"} }
func (fieldErr) ProblemExtensions() map[string]any { return map[string]any{"row": 3, "status": 999} }

func TestStatusOf(t *testing.T) {
	cases := map[error]int{
		fmt.Errorf("x: %w", shared.ErrValidation):        http.StatusBadRequest,
		fmt.Errorf("x: %w", shared.ErrNotFound):          http.StatusNotFound,
		fmt.Errorf("x: %w", shared.ErrDuplicate):         http.StatusConflict,
		fmt.Errorf("x: %w", shared.ErrConflict):          http.StatusConflict,
		fmt.Errorf("x: %w", shared.ErrCSRFTokenMismatch): http.StatusForbidden,
		fmt.Errorf("x: %w", shared.ErrUpstream):          http.StatusBadGateway,
		errors.New("boom"):                               http.StatusInternalServerError,
	}
	for err, want := range cases {
		assert.Equal(t, want, StatusOf(err), err.Error())
	}
}

func TestRespondErrorIncludesFieldsAndExtensions(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondError(rec, fieldErr{})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"title":"Bad Request","status":400,"detail":"bad input","errors":{"name":"required"},"row":3}`, rec.Body.String())
}

func TestRespondErrorHidesInternalDetail(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondError(rec, errors.New("password=hunter2"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "hunter2")
}

func TestDecodeJSONRejectsUnknownFields(t *testing.T) {
	var target struct {
		Name string `json:"name"`
	}
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"a","extra":1}`))
	assert.Error(t, DecodeJSON(req, &target))

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"a"}`))
	require.NoError(t, DecodeJSON(req, &target))
	assert.Equal(t, "a", target.Name)
}
