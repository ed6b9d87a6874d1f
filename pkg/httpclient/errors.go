package httpclient

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"syscall"
)

// Error codes attached to failures that carry no HTTP response.
const (
	// CodeConnAborted marks a client-side timeout or abort. It is the only
	// code that is retried.
	CodeConnAborted = "ECONNABORTED"

	CodeCanceled        = "ERR_CANCELED"
	CodeConnRefused     = "ECONNREFUSED"
	CodeConnReset       = "ECONNRESET"
	CodeHostNotFound    = "ENOTFOUND"
	CodeNetUnreachable  = "ENETUNREACH"
	CodeHostUnreachable = "EHOSTUNREACH"
)

// ErrorClass represents a classification of outbound failures.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx client errors.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx server errors.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassRateLimit represents 429 Too Many Requests.
	ErrorClassRateLimit ErrorClass = "rate_limit"

	// ErrorClassTimeout represents client-side timeouts (ECONNABORTED).
	ErrorClassTimeout ErrorClass = "timeout"

	// ErrorClassNetwork represents connection-level failures.
	ErrorClassNetwork ErrorClass = "network"

	// ErrorClassRequest represents failures building the request itself.
	ErrorClassRequest ErrorClass = "request"
)

// Error is a failed attempt. Exactly one of the following holds:
// the server answered with a non-2xx status (response set), the transport
// failed after the request was built (request set), or the request could
// not be built at all (neither set).
type Error struct {
	StatusCode int
	ErrorClass ErrorClass
	Code       string
	Message    string
	Err        error

	request  *requestSnapshot
	response *responseSnapshot
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("HTTP %s error (status %d): %s: %v",
			e.ErrorClass, e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("HTTP %s error (status %d): %s",
		e.ErrorClass, e.StatusCode, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Err
}

// HasResponse reports whether the server answered.
func (e *Error) HasResponse() bool {
	return e.response != nil
}

// HasRequest reports whether the request was built and sent.
func (e *Error) HasRequest() bool {
	return e.request != nil
}

func newStatusError(req *requestSnapshot, resp *responseSnapshot) *Error {
	e := &Error{
		StatusCode: resp.StatusCode,
		Message:    fmt.Sprintf("%d %s", resp.StatusCode, http.StatusText(resp.StatusCode)),
		request:    req,
		response:   resp,
	}
	e.ErrorClass = classifyError(e)
	return e
}

func newTransportError(req *requestSnapshot, err error) *Error {
	e := &Error{
		Code:    errorCode(err),
		Message: err.Error(),
		Err:     withStack(err),
		request: req,
	}
	e.ErrorClass = classifyError(e)
	return e
}

func newBuildError(err error) *Error {
	return &Error{
		ErrorClass: ErrorClassRequest,
		Message:    err.Error(),
		Err:        withStack(err),
	}
}

// classifyError categorizes an error for observability and handling.
func classifyError(e *Error) ErrorClass {
	switch {
	case e.response == nil && e.request == nil:
		return ErrorClassRequest
	case e.response == nil && e.Code == CodeConnAborted:
		return ErrorClassTimeout
	case e.response == nil:
		return ErrorClassNetwork
	case e.StatusCode == http.StatusTooManyRequests:
		return ErrorClassRateLimit
	case e.StatusCode >= 400 && e.StatusCode < 500:
		return ErrorClassClient
	case e.StatusCode >= 500:
		return ErrorClassServer
	default:
		return ErrorClassClient
	}
}

// errorCode maps a transport error onto the errno-style code callers match on.
// Unknown failures yield an empty code.
func errorCode(err error) string {
	var dnsErr *net.DNSError
	var netErr net.Error

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return CodeConnAborted
	case errors.Is(err, context.Canceled):
		return CodeCanceled
	case errors.As(err, &dnsErr):
		if dnsErr.IsTimeout {
			return CodeConnAborted
		}
		return CodeHostNotFound
	case errors.Is(err, syscall.ECONNREFUSED):
		return CodeConnRefused
	case errors.Is(err, syscall.ECONNRESET):
		return CodeConnReset
	case errors.Is(err, syscall.ENETUNREACH):
		return CodeNetUnreachable
	case errors.Is(err, syscall.EHOSTUNREACH):
		return CodeHostUnreachable
	case errors.As(err, &netErr) && netErr.Timeout():
		return CodeConnAborted
	default:
		return ""
	}
}
