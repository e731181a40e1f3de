package shared

import "errors"

var (
	// ErrNotFound indicates the data store has no row for the given identity.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate indicates a unique constraint rejected the write.
	ErrDuplicate = errors.New("duplicate entry")
	// ErrConflict indicates the row exists but is not in a state that allows the write.
	ErrConflict = errors.New("conflict")
	// ErrValidation indicates input rejected before any data store request.
	ErrValidation = errors.New("validation failed")
	// ErrUpstream indicates the data store or another dependency failed.
	ErrUpstream = errors.New("upstream failure")
	// ErrCSRFTokenMissing occurs when CSRF token missing.
	ErrCSRFTokenMissing = errors.New("csrf token missing")
	// ErrCSRFTokenMismatch occurs when CSRF tokens do not match.
	ErrCSRFTokenMismatch = errors.New("csrf token mismatch")
)
