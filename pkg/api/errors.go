// api/errors.go
package api

import (
	"fmt"
	"net/http"
)

// Kind is the wire-level error code carried in the failure envelope.
type Kind string

const (
	KindNotFound             Kind = "NOT_FOUND"
	KindMethodNotAllowed     Kind = "METHOD_NOT_ALLOWED"
	KindMissingToken         Kind = "MISSING_TOKEN"
	KindInvalidToken         Kind = "INVALID_TOKEN"
	KindMissingAdminToken    Kind = "MISSING_ADMIN_TOKEN"
	KindInvalidAdminToken    Kind = "INVALID_ADMIN_TOKEN"
	KindMissingParameter     Kind = "MISSING_PARAMETER"
	KindInvalidParameter     Kind = "INVALID_PARAMETER"
	KindInvalidParameterType Kind = "INVALID_PARAMETER_TYPE"
	KindModuleLoadError      Kind = "MODULE_LOAD_ERROR"
	KindInternal             Kind = "INTERNAL_ERROR"
)

// Error is the single failure type crossing the dispatch boundary. It is both
// a Go error and the source of the wire envelope. Context keys are flattened
// alongside the fixed envelope fields.
type Error struct {
	Kind    Kind
	Message string
	Context map[string]any
}

func (e *Error) Error() string { return e.Message }

// Status maps an error kind to its HTTP status code. MODULE_LOAD_ERROR never
// reaches a client envelope directly (it only appears inside reload reports),
// but maps to 500 as a safety net.
func (e *Error) Status() int {
	switch e.Kind {
	case KindNotFound:
		return http.StatusNotFound
	case KindMethodNotAllowed:
		return http.StatusMethodNotAllowed
	case KindMissingToken, KindInvalidToken, KindMissingAdminToken, KindInvalidAdminToken:
		return http.StatusUnauthorized
	case KindMissingParameter, KindInvalidParameter, KindInvalidParameterType:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// With attaches a context field and returns the receiver for chaining.
func (e *Error) With(key string, value any) *Error {
	if e.Context == nil {
		e.Context = map[string]any{}
	}
	e.Context[key] = value
	return e
}

func NewError(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Internal wraps an arbitrary handler failure into the generic internal kind,
// keeping the message but never any stack or wrapped diagnostics.
func Internal(err error) *Error {
	return &Error{Kind: KindInternal, Message: err.Error()}
}
