package httpclient

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"

	pkgerrors "github.com/pkg/errors"
)

// Response is the uniform result of Fetch. Failures are represented as
// responses too: StatusCode is non-2xx and Data holds a synthesized body.
type Response struct {
	// StatusCode is the HTTP status, or the synthesized status of a failure.
	StatusCode int

	// Data is the decoded JSON body, the raw body as a string when it is not
	// JSON, or the error payload of a normalized failure.
	Data any

	// Header is the response header of a successful call.
	Header http.Header

	// Body is the raw body of a successful call.
	Body []byte

	// Attempts is the number of requests sent, including the first.
	Attempts int
}

// OK reports whether the call succeeded with a 2xx status.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Decode unmarshals the response into v. For normalized failures the
// synthesized payload is decoded instead of a body.
func (r *Response) Decode(v any) error {
	data := r.Body
	if data == nil {
		var err error
		if data, err = json.Marshal(r.Data); err != nil {
			return fmt.Errorf("marshal response data: %w", err)
		}
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

type responseSnapshot struct {
	StatusCode int
	Header     http.Header
	Data       any
}

func (s *responseSnapshot) serialize(req *requestSnapshot) map[string]any {
	out := map[string]any{
		"status":     s.StatusCode,
		"statusText": http.StatusText(s.StatusCode),
		"headers":    flattenHeader(s.Header),
		"data":       s.Data,
	}
	if req != nil {
		out["config"] = req.config()
	}
	return out
}

func decodeData(body []byte) any {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(body, &v); err != nil {
		return string(body)
	}
	return v
}

// normalize turns a terminal failure into a Response. The shapes are checked
// in priority order: HTTP response, coded transport error, bare request,
// anything else.
func normalize(e *Error, attempts int) *Response {
	resp := &Response{
		StatusCode: http.StatusNotFound,
		Attempts:   attempts,
	}

	switch {
	case e.response != nil:
		if e.response.StatusCode != 0 {
			resp.StatusCode = e.response.StatusCode
		}
		resp.Data = map[string]any{
			"message": e.response.serialize(e.request),
		}

	case e.Code != "" && e.Message != "":
		if e.Code == CodeConnAborted {
			resp.StatusCode = http.StatusRequestTimeout
		}
		resp.Data = map[string]any{
			"code":    e.Code,
			"message": e.Message,
			"stack":   stackPayload(e),
		}

	case e.request != nil:
		resp.Data = map[string]any{
			"message": e.request.config(),
		}

	default:
		resp.Data = map[string]any{
			"message": e.Message,
			"stack":   stackTrace(e.Err),
		}
	}

	return resp
}

func stackPayload(e *Error) map[string]any {
	out := map[string]any{
		"name":    "Error",
		"code":    e.Code,
		"message": e.Message,
		"stack":   stackTrace(e.Err),
	}
	if e.request != nil {
		out["config"] = e.request.config()
	}
	return out
}

func withStack(err error) error {
	return pkgerrors.WithStack(err)
}

func stackTrace(err error) string {
	if err == nil {
		return ""
	}
	return fmt.Sprintf("%+v", err)
}
