package errs

import (
	"fmt"
	"sync"
)

// Code is a registered error code: a stable identifier, its kind, the HTTP
// status it maps to by default, and a human-readable message template.
type Code struct {
	Code       string
	Kind       Kind
	HTTPStatus int
	Message    string
}

// Registry holds the error codes owned by one package. Each package that
// raises errors constructs its own registry at init time with a short
// prefix so codes stay globally unambiguous without central coordination.
type Registry struct {
	prefix string

	mu    sync.RWMutex
	codes map[string]*Code
}

// NewRegistry creates a registry whose codes are namespaced under prefix.
func NewRegistry(prefix string) *Registry {
	return &Registry{prefix: prefix, codes: make(map[string]*Code)}
}

// Register records a new error code. Call it from package init or var
// declarations; it is not safe to call concurrently with New.
func (r *Registry) Register(code string, kind Kind, message string) *Code {
	r.mu.Lock()
	defer r.mu.Unlock()

	c := &Code{
		Code:       fmt.Sprintf("%s_%s", r.prefix, code),
		Kind:       kind,
		HTTPStatus: kind.defaultHTTPStatus(),
		Message:    message,
	}
	r.codes[code] = c
	return c
}

// New builds an Error from a registered code.
func (r *Registry) New(code *Code) *Error {
	return &Error{Code: code.Code, Kind: code.Kind, HTTPStatus: code.HTTPStatus, Message: code.Message}
}

// NewWithCause builds an Error from a registered code, wrapping cause for
// internal logging. The cause is never serialized to the HTTP response.
func (r *Registry) NewWithCause(code *Code, cause error) *Error {
	e := r.New(code)
	e.cause = cause
	return e
}
