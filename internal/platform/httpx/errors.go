// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"

	"github.com/stockflow/stockflow/internal/shared"
)

// fieldErrors is implemented by validation errors that name their fields.
type fieldErrors interface {
	FieldErrors() map[string]string
}

// problemExtender is implemented by errors carrying extra problem members.
type problemExtender interface {
	ProblemExtensions() map[string]any
}

// StatusOf maps a domain error onto an HTTP status code.
func StatusOf(err error) int {
	switch {
	case errors.Is(err, shared.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, shared.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, shared.ErrDuplicate), errors.Is(err, shared.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, shared.ErrCSRFTokenMissing), errors.Is(err, shared.ErrCSRFTokenMismatch):
		return http.StatusForbidden
	case errors.Is(err, shared.ErrUpstream):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// RespondError maps domain errors to HTTP responses using RFC7807.
func RespondError(w http.ResponseWriter, err error) {
	status := StatusOf(err)
	p := ProblemDetail{Title: http.StatusText(status), Status: status}
	if status != http.StatusInternalServerError {
		p.Detail = err.Error()
	}
	var fe fieldErrors
	if errors.As(err, &fe) {
		p.Errors = fe.FieldErrors()
	}
	var ext problemExtender
	if errors.As(err, &ext) {
		p.Extensions = ext.ProblemExtensions()
	}
	JSON(w, status, p)
}
