package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/Sternrassler/user-service/internal/apperror"
	"github.com/Sternrassler/user-service/pkg/logging"
)

// successBody is the envelope of every 2xx response.
type successBody struct {
	StatusCode int    `json:"statusCode"`
	Message    string `json:"message"`
	Data       any    `json:"data,omitempty"`
}

// errorBody is the envelope of every error response. Error is only filled
// in environments that expose details.
type errorBody struct {
	StatusCode int    `json:"statusCode"`
	Status     string `json:"status"`
	Message    string `json:"message"`
	Error      any    `json:"error,omitempty"`
	Timestamp  string `json:"timestamp"`
	Endpoint   string `json:"endpoint"`
	Method     string `json:"method"`
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Ctx(r.Context()).Warn().Err(err).Msg("Failed to write response")
	}
}

func writeSuccess(w http.ResponseWriter, r *http.Request, status int, data any) {
	writeJSON(w, r, status, successBody{
		StatusCode: status,
		Message:    "Success",
		Data:       data,
	})
}

// writeError renders err as an error envelope. Errors that are not
// *apperror.Error are treated as internal.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	appErr, ok := apperror.As(err)
	if !ok {
		appErr = apperror.Internal(err)
	}

	status := appErr.Status()
	logger := logging.Ctx(r.Context())
	if appErr.Logging || status >= http.StatusInternalServerError {
		logger.Error().
			Err(err).
			Str("stack", appErr.Stack()).
			Int("status", status).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Msg("Request failed")
	} else {
		logger.Debug().Err(err).Int("status", status).Msg("Request rejected")
	}

	body := errorBody{
		StatusCode: status,
		Status:     appErr.Kind.Code(),
		Message:    appErr.Message,
		Timestamp:  time.Now().UTC().Format(time.RFC3339Nano),
		Endpoint:   r.URL.Path,
		Method:     r.Method,
	}
	switch {
	case s.detailedErrors:
		body.Error = errorDetail(appErr)
	case appErr.Kind == apperror.KindUnprocessable && appErr.Context["issues"] != nil:
		// Field issues are part of the contract in every environment.
		body.Error = map[string]any{"issues": appErr.Context["issues"]}
	}

	writeJSON(w, r, status, body)
}

func errorDetail(e *apperror.Error) any {
	if len(e.Context) > 0 {
		return e.Context
	}
	if stack := e.Stack(); stack != "" {
		return stack
	}
	if cause := errors.Unwrap(e); cause != nil {
		return cause.Error()
	}
	return nil
}

func (s *Server) notFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusNotFound, map[string]any{
		"statusCode": http.StatusNotFound,
		"message":    "Not Found",
	})
}

func (s *Server) methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	s.writeError(w, r, apperror.New(apperror.KindMethodNotAllowed, "").
		WithContext("method", r.Method))
}
