package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Content types sent by the client.
const (
	ContentTypeJSON = "application/json"
	ContentTypeForm = "application/x-www-form-urlencoded"

	acceptHeader = "application/json, text/plain, */*"
)

// BasicAuth holds credentials for HTTP basic authentication.
type BasicAuth struct {
	Username string
	Password string
}

// Request describes a single outbound call. It is built fresh for every
// attempt and never retained by the client.
type Request struct {
	// BaseURL is joined with Path unless Path is already absolute.
	BaseURL string

	// Path is the request path, or an absolute URL.
	Path string

	// Method defaults to GET.
	Method string

	// Headers override the client defaults.
	Headers map[string]string

	// Body is JSON-encoded, or form-encoded when IsForm is set. Form bodies
	// must be url.Values, map[string]string or map[string]any.
	Body any

	// Auth adds an Authorization: Basic header when set.
	Auth *BasicAuth

	// Query values are formatted with fmt.Sprint.
	Query map[string]any

	// IsForm selects application/x-www-form-urlencoded for Body.
	IsForm bool
}

// build creates the *http.Request for one attempt.
func (r Request) build(ctx context.Context) (*http.Request, error) {
	target, err := r.url()
	if err != nil {
		return nil, err
	}

	body, contentType, err := r.encodeBody()
	if err != nil {
		return nil, err
	}

	method := strings.ToUpper(r.Method)
	if method == "" {
		method = http.MethodGet
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", acceptHeader)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for key, value := range r.Headers {
		req.Header.Set(key, value)
	}
	if r.Auth != nil {
		req.SetBasicAuth(r.Auth.Username, r.Auth.Password)
	}

	return req, nil
}

func (r Request) url() (string, error) {
	full := joinURL(r.BaseURL, r.Path)

	u, err := url.Parse(full)
	if err != nil {
		return "", fmt.Errorf("parse request url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("invalid request url %q: scheme and host are required", full)
	}

	if len(r.Query) > 0 {
		q := u.Query()
		for key, value := range r.Query {
			q.Set(key, fmt.Sprint(value))
		}
		u.RawQuery = q.Encode()
	}

	return u.String(), nil
}

// joinURL combines base and path the way browsers resolve a relative path
// against a base, except that a single slash always separates the two.
func joinURL(base, path string) string {
	if path == "" {
		return base
	}
	if base == "" || isAbsoluteURL(path) {
		return path
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}

func isAbsoluteURL(s string) bool {
	u, err := url.Parse(s)
	return err == nil && u.IsAbs() && u.Host != ""
}

func (r Request) encodeBody() (io.Reader, string, error) {
	if r.Body == nil {
		return nil, "", nil
	}

	if r.IsForm {
		form, err := formValues(r.Body)
		if err != nil {
			return nil, "", err
		}
		return strings.NewReader(form.Encode()), ContentTypeForm, nil
	}

	data, err := json.Marshal(r.Body)
	if err != nil {
		return nil, "", fmt.Errorf("marshal request body: %w", err)
	}
	return bytes.NewReader(data), ContentTypeJSON, nil
}

func formValues(body any) (url.Values, error) {
	switch b := body.(type) {
	case url.Values:
		return b, nil
	case map[string]string:
		values := make(url.Values, len(b))
		for key, value := range b {
			values.Set(key, value)
		}
		return values, nil
	case map[string]any:
		values := make(url.Values, len(b))
		for key, value := range b {
			values.Set(key, fmt.Sprint(value))
		}
		return values, nil
	default:
		return nil, fmt.Errorf("form body must be a map, got %T", body)
	}
}

// requestSnapshot is the part of a sent request that survives into a
// normalized failure. Credentials are removed when it is serialized.
type requestSnapshot struct {
	Method  string
	URL     string
	Header  http.Header
	Timeout time.Duration
}

func snapshotRequest(req *http.Request, timeout time.Duration) *requestSnapshot {
	return &requestSnapshot{
		Method:  req.Method,
		URL:     req.URL.Redacted(),
		Header:  req.Header.Clone(),
		Timeout: timeout,
	}
}

// config renders the snapshot without the Authorization header.
func (s *requestSnapshot) config() map[string]any {
	return map[string]any{
		"method":  s.Method,
		"url":     s.URL,
		"headers": flattenHeader(s.Header, "Authorization"),
		"timeout": s.Timeout.Milliseconds(),
	}
}

func flattenHeader(h http.Header, omit ...string) map[string]string {
	skip := make(map[string]struct{}, len(omit))
	for _, key := range omit {
		skip[http.CanonicalHeaderKey(key)] = struct{}{}
	}

	out := make(map[string]string, len(h))
	for key, values := range h {
		if _, ok := skip[http.CanonicalHeaderKey(key)]; ok {
			continue
		}
		out[key] = strings.Join(values, ", ")
	}
	return out
}
