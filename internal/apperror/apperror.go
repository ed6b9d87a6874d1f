// Package apperror defines the error type returned by the service layer and
// rendered by the HTTP layer. An Error is a tagged value: Kind selects the
// HTTP status and status string, Context carries details for the caller.
package apperror

import (
	"errors"
	"fmt"
	"net/http"

	pkgerrors "github.com/pkg/errors"
)

// Kind classifies an application error.
type Kind string

const (
	KindBadRequest         Kind = "bad_request"
	KindUnauthorized       Kind = "unauthorized"
	KindForbidden          Kind = "forbidden"
	KindNotFound           Kind = "not_found"
	KindMethodNotAllowed   Kind = "method_not_allowed"
	KindRequestTimeout     Kind = "request_timeout"
	KindConflict           Kind = "conflict"
	KindPreconditionFailed Kind = "precondition_failed"
	KindUnprocessable      Kind = "unprocessable"
	KindTooManyRequests    Kind = "too_many_requests"
	KindInternal           Kind = "internal"
	KindServiceUnavailable Kind = "service_unavailable"
	KindGatewayTimeout     Kind = "gateway_timeout"
)

type kindInfo struct {
	status  int
	code    string
	message string
}

var kinds = map[Kind]kindInfo{
	KindBadRequest:         {http.StatusBadRequest, "BAD_REQUEST", "Bad request"},
	KindUnauthorized:       {http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized"},
	KindForbidden:          {http.StatusForbidden, "FORBIDDEN", "Forbidden"},
	KindNotFound:           {http.StatusNotFound, "NOT_FOUND", "Not found"},
	KindMethodNotAllowed:   {http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed"},
	KindRequestTimeout:     {http.StatusRequestTimeout, "REQUEST_TIMEOUT", "Request timeout"},
	KindConflict:           {http.StatusConflict, "CONFLICT", "Conflict"},
	KindPreconditionFailed: {http.StatusPreconditionFailed, "PRECONDITION_FAILED", "Precondition failed"},
	KindUnprocessable:      {http.StatusUnprocessableEntity, "UNPROCESSABLE_ENTITY", "Unprocessable entity"},
	KindTooManyRequests:    {http.StatusTooManyRequests, "TOO_MANY_REQUESTS", "Too many requests"},
	KindInternal:           {http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "Internal server error"},
	KindServiceUnavailable: {http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "Service unavailable"},
	KindGatewayTimeout:     {http.StatusGatewayTimeout, "GATEWAY_TIMEOUT", "Gateway timeout"},
}

func (k Kind) info() kindInfo {
	if info, ok := kinds[k]; ok {
		return info
	}
	return kinds[KindInternal]
}

// Status returns the HTTP status code for the kind.
func (k Kind) Status() int { return k.info().status }

// Code returns the upper-case status string, e.g. "NOT_FOUND".
func (k Kind) Code() string { return k.info().code }

// Error is an application error.
type Error struct {
	Kind    Kind
	Message string
	Context map[string]any

	// Logging asks the HTTP layer to log the error with its cause.
	Logging bool

	cause error
}

// New creates an error of the given kind. An empty message takes the kind's
// default.
func New(kind Kind, message string) *Error {
	if message == "" {
		message = kind.info().message
	}
	return &Error{Kind: kind, Message: message}
}

// Wrap creates an error of the given kind caused by err. A stack trace is
// recorded at the call site.
func Wrap(kind Kind, err error, message string) *Error {
	e := New(kind, message)
	if err != nil {
		e.cause = pkgerrors.WithStack(err)
	}
	return e
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.cause
}

// Status returns the HTTP status code.
func (e *Error) Status() int {
	return e.Kind.Status()
}

// WithContext adds a detail entry and returns e.
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// WithLogging marks e to be logged by the HTTP layer and returns e.
func (e *Error) WithLogging() *Error {
	e.Logging = true
	return e
}

// Stack returns the cause with its recorded stack trace, or "" without one.
func (e *Error) Stack() string {
	if e.cause == nil {
		return ""
	}
	return fmt.Sprintf("%+v", e.cause)
}

// As returns the *Error in err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf returns the kind of err, or KindInternal for foreign errors.
func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return KindInternal
}

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	e, ok := As(err)
	return ok && e.Kind == kind
}

// Convenience constructors.

func BadRequest(message string) *Error    { return New(KindBadRequest, message) }
func NotFound(message string) *Error      { return New(KindNotFound, message) }
func Conflict(message string) *Error      { return New(KindConflict, message) }
func Forbidden(message string) *Error     { return New(KindForbidden, message) }
func Unprocessable(message string) *Error { return New(KindUnprocessable, message) }

// Internal wraps an unexpected failure. It is always logged.
func Internal(err error) *Error {
	return Wrap(KindInternal, err, "").WithLogging()
}
