package httpclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/Sternrassler/user-service/internal/testutil"
	"github.com/Sternrassler/user-service/pkg/backoff"
)

// testConfig keeps the default retry policy but shrinks the waits.
func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Backoff = backoff.Linear{Base: time.Millisecond}
	cfg.Timeout = 2 * time.Second
	return cfg
}

func newTestClient(t *testing.T, cfg Config) *Client {
	t.Helper()
	c, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return c
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Timeout != 10*time.Second {
		t.Errorf("Timeout = %v, want 10s", cfg.Timeout)
	}
	if cfg.RetryCount != 3 {
		t.Errorf("RetryCount = %d, want 3", cfg.RetryCount)
	}
	if got := cfg.Backoff.Delay(2); got != 2*time.Second {
		t.Errorf("Backoff.Delay(2) = %v, want 2s", got)
	}

	want := map[int]bool{408: true, 429: true, 500: true, 401: true}
	if len(cfg.RetryableStatuses) != len(want) {
		t.Fatalf("RetryableStatuses = %v, want %d entries", cfg.RetryableStatuses, len(want))
	}
	for _, s := range cfg.RetryableStatuses {
		if !want[s] {
			t.Errorf("unexpected retryable status %d", s)
		}
	}
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name        string
		modify      func(*Config)
		expectError bool
		errorMsg    string
	}{
		{
			name:   "valid config",
			modify: func(*Config) {},
		},
		{
			name:        "zero timeout",
			modify:      func(c *Config) { c.Timeout = 0 },
			expectError: true,
			errorMsg:    "timeout must be positive",
		},
		{
			name:        "negative retry count",
			modify:      func(c *Config) { c.RetryCount = -1 },
			expectError: true,
			errorMsg:    "retry_count must be >= 0",
		},
		{
			name:        "nil backoff",
			modify:      func(c *Config) { c.Backoff = nil },
			expectError: true,
			errorMsg:    "backoff policy is required",
		},
		{
			name:        "invalid status",
			modify:      func(c *Config) { c.RetryableStatuses = []int{42} },
			expectError: true,
			errorMsg:    "invalid retryable status 42",
		},
		{
			name:   "no retries",
			modify: func(c *Config) { c.RetryCount = 0 },
		},
		{
			name:   "base url",
			modify: func(c *Config) { c.BaseURL = "https://api.example.com/v1" },
		},
		{
			name:        "relative base url",
			modify:      func(c *Config) { c.BaseURL = "/v1" },
			expectError: true,
			errorMsg:    "invalid base url",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(&cfg)

			_, err := New(cfg)
			if tt.expectError {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				if !strings.Contains(err.Error(), tt.errorMsg) {
					t.Errorf("error = %q, want it to contain %q", err.Error(), tt.errorMsg)
				}
				return
			}
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestFetch_Success(t *testing.T) {
	mock := testutil.NewMockServer()
	defer mock.Close()
	mock.SetResponse("/users/1", testutil.NewJSONResponse(http.StatusOK, `{"id": 1, "name": "Ada"}`))

	c := newTestClient(t, testConfig())
	resp := c.Fetch(context.Background(), Request{BaseURL: mock.URL(), Path: "/users/1"})

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("StatusCode = %d, want 200", resp.StatusCode)
	}
	if !resp.OK() {
		t.Error("OK() = false, want true")
	}
	if resp.Attempts != 1 {
		t.Errorf("Attempts = %d, want 1", resp.Attempts)
	}

	data, ok := resp.Data.(map[string]any)
	if !ok {
		t.Fatalf("Data = %T, want map", resp.Data)
	}
	if data["name"] != "Ada" {
		t.Errorf("name = %v, want Ada", data["name"])
	}

	var out struct {
		ID   int    `json:"id"`
		Name string `json:"name"`
	}
	if err := resp.Decode(&out); err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if out.ID != 1 {
		t.Errorf("ID = %d, want 1", out.ID)
	}

	req, _ := mock.LastRequest()
	if req.Method != http.MethodGet {
		t.Errorf("Method = %s, want GET", req.Method)
	}
	if got := req.Header.Get("Accept"); got != acceptHeader {
		t.Errorf("Accept = %q, want %q", got, acceptHeader)
	}
}

func TestFetch_PlainTextBody(t *testing.T) {
	mock := testutil.NewMockServer()
	defer mock.Close()
	mock.SetResponse("/ping", testutil.MockResponse{StatusCode: http.StatusOK, Body: "pong"})

	c := newTestClient(t, testConfig())
	resp := c.Get(context.Background(), mock.URL()+"/ping")

	if resp.Data != "pong" {
		t.Errorf("Data = %v, want pong", resp.Data)
	}
}

func TestFetch_DefaultBaseURL(t *testing.T) {
	mock := testutil.NewMockServer()
	defer mock.Close()

	cfg := testConfig()
	cfg.BaseURL = mock.URL() + "/api"
	c := newTestClient(t, cfg)

	resp := c.Fetch(context.Background(), Request{Path: "users", Query: map[string]any{"limit": 5}})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("StatusCode = %d, want 200", resp.StatusCode)
	}

	req, _ := mock.LastRequest()
	if req.Path != "/api/users" || req.Query != "limit=5" {
		t.Errorf("request = %s?%s, want /api/users?limit=5", req.Path, req.Query)
	}

	// A request's own base URL wins.
	other := testutil.NewMockServer()
	defer other.Close()
	c.Fetch(context.Background(), Request{BaseURL: other.URL(), Path: "/x"})
	if other.RequestCount() != 1 {
		t.Errorf("other.RequestCount() = %d, want 1", other.RequestCount())
	}
}

func TestFetch_RetryableStatuses(t *testing.T) {
	for _, status := range []int{408, 429, 500, 401} {
		t.Run(http.StatusText(status), func(t *testing.T) {
			mock := testutil.NewMockServer()
			defer mock.Close()
			mock.SetResponse("/r", testutil.NewJSONResponse(status, `{"error": "nope"}`))

			c := newTestClient(t, testConfig())
			resp := c.Fetch(context.Background(), Request{BaseURL: mock.URL(), Path: "/r"})

			if resp.StatusCode != status {
				t.Errorf("StatusCode = %d, want %d", resp.StatusCode, status)
			}
			if got := mock.RequestCount(); got != DefaultRetryCount+1 {
				t.Errorf("requests = %d, want %d", got, DefaultRetryCount+1)
			}
			if resp.Attempts != DefaultRetryCount+1 {
				t.Errorf("Attempts = %d, want %d", resp.Attempts, DefaultRetryCount+1)
			}
		})
	}
}

func TestFetch_NonRetryableStatuses(t *testing.T) {
	for _, status := range []int{400, 403, 404, 409, 502, 503} {
		t.Run(http.StatusText(status), func(t *testing.T) {
			mock := testutil.NewMockServer()
			defer mock.Close()
			mock.SetResponse("/r", testutil.NewJSONResponse(status, `{}`))

			c := newTestClient(t, testConfig())
			resp := c.Fetch(context.Background(), Request{BaseURL: mock.URL(), Path: "/r"})

			if resp.StatusCode != status {
				t.Errorf("StatusCode = %d, want %d", resp.StatusCode, status)
			}
			if got := mock.RequestCount(); got != 1 {
				t.Errorf("requests = %d, want 1", got)
			}
		})
	}
}

func TestFetch_RecoversAfterRetries(t *testing.T) {
	mock := testutil.NewMockServer()
	defer mock.Close()
	mock.SetSequence("/flaky",
		testutil.NewUnavailableResponse(),
		testutil.NewUnavailableResponse(),
		testutil.NewUnavailableResponse(),
		testutil.NewJSONResponse(http.StatusOK, `{"ok": true}`),
	)

	cfg := testConfig()
	cfg.RetryableStatuses = append(cfg.RetryableStatuses, http.StatusServiceUnavailable)
	c := newTestClient(t, cfg)

	resp := c.Fetch(context.Background(), Request{BaseURL: mock.URL(), Path: "/flaky"})

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("StatusCode = %d, want 200", resp.StatusCode)
	}
	if resp.Attempts != 4 {
		t.Errorf("Attempts = %d, want 4", resp.Attempts)
	}
	if got := mock.RequestCount(); got != 4 {
		t.Errorf("requests = %d, want 4", got)
	}
}

func TestFetch_RetryBudgetExhausted(t *testing.T) {
	mock := testutil.NewMockServer()
	defer mock.Close()
	mock.SetSequence("/busy",
		testutil.NewServerErrorResponse(),
		testutil.NewServerErrorResponse(),
		testutil.NewRateLimitResponse(),
	)

	cfg := testConfig()
	cfg.RetryCount = 2
	c := newTestClient(t, cfg)

	resp := c.Fetch(context.Background(), Request{BaseURL: mock.URL(), Path: "/busy"})

	if resp.StatusCode != http.StatusTooManyRequests {
		t.Errorf("StatusCode = %d, want 429 from the last attempt", resp.StatusCode)
	}
	if got := mock.RequestCount(); got != 3 {
		t.Errorf("requests = %d, want 3", got)
	}
}

func TestFetch_ResponseShapeStripsAuthorization(t *testing.T) {
	mock := testutil.NewMockServer()
	defer mock.Close()
	mock.SetResponse("/secure", testutil.NewJSONResponse(http.StatusBadRequest, `{"error": "bad"}`))

	c := newTestClient(t, testConfig())
	resp := c.Fetch(context.Background(), Request{
		BaseURL: mock.URL(),
		Path:    "/secure",
		Auth:    &BasicAuth{Username: "svc", Password: "secret"},
	})

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("StatusCode = %d, want 400", resp.StatusCode)
	}

	req, _ := mock.LastRequest()
	if req.Header.Get("Authorization") == "" {
		t.Error("Authorization header was not sent")
	}

	data := resp.Data.(map[string]any)
	message, ok := data["message"].(map[string]any)
	if !ok {
		t.Fatalf("message = %T, want serialized response", data["message"])
	}
	if message["status"] != http.StatusBadRequest {
		t.Errorf("status = %v, want 400", message["status"])
	}
	body := message["data"].(map[string]any)
	if body["error"] != "bad" {
		t.Errorf("data.error = %v, want bad", body["error"])
	}

	config := message["config"].(map[string]any)
	headers := config["headers"].(map[string]string)
	if _, exists := headers["Authorization"]; exists {
		t.Error("Authorization header leaked into normalized response")
	}
	if config["method"] != http.MethodGet {
		t.Errorf("config.method = %v, want GET", config["method"])
	}
}

func TestFetch_Timeout(t *testing.T) {
	mock := testutil.NewMockServer()
	defer mock.Close()
	mock.SetResponse("/slow", testutil.MockResponse{StatusCode: http.StatusOK, Delay: 500 * time.Millisecond})

	cfg := testConfig()
	cfg.Timeout = 50 * time.Millisecond
	cfg.RetryCount = 1
	c := newTestClient(t, cfg)

	resp := c.Fetch(context.Background(), Request{BaseURL: mock.URL(), Path: "/slow"})

	if resp.StatusCode != http.StatusRequestTimeout {
		t.Fatalf("StatusCode = %d, want 408", resp.StatusCode)
	}
	if resp.Attempts != 2 {
		t.Errorf("Attempts = %d, want 2 (timeouts are retried)", resp.Attempts)
	}

	data := resp.Data.(map[string]any)
	if data["code"] != CodeConnAborted {
		t.Errorf("code = %v, want %s", data["code"], CodeConnAborted)
	}
	if _, ok := data["stack"].(map[string]any); !ok {
		t.Errorf("stack = %T, want map", data["stack"])
	}
}

func TestFetch_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	c := newTestClient(t, testConfig())
	resp := c.Fetch(context.Background(), Request{
		BaseURL: addr,
		Path:    "/users",
		Auth:    &BasicAuth{Username: "svc", Password: "secret"},
	})

	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("StatusCode = %d, want 404", resp.StatusCode)
	}
	if resp.Attempts != 1 {
		t.Errorf("Attempts = %d, want 1", resp.Attempts)
	}

	data := resp.Data.(map[string]any)
	if data["code"] != CodeConnRefused {
		t.Errorf("code = %v, want %s", data["code"], CodeConnRefused)
	}
	if msg, _ := data["message"].(string); msg == "" {
		t.Error("message is empty")
	}

	stack := data["stack"].(map[string]any)
	config := stack["config"].(map[string]any)
	headers := config["headers"].(map[string]string)
	if _, exists := headers["Authorization"]; exists {
		t.Error("Authorization header leaked into normalized error")
	}
}

func TestFetch_BuildError(t *testing.T) {
	c := newTestClient(t, testConfig())
	resp := c.Fetch(context.Background(), Request{Path: "/relative/only"})

	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("StatusCode = %d, want 404", resp.StatusCode)
	}
	if resp.Attempts != 1 {
		t.Errorf("Attempts = %d, want 1", resp.Attempts)
	}

	data := resp.Data.(map[string]any)
	if msg, _ := data["message"].(string); !strings.Contains(msg, "scheme and host are required") {
		t.Errorf("message = %v", data["message"])
	}
	if _, ok := data["stack"].(string); !ok {
		t.Errorf("stack = %T, want string", data["stack"])
	}
	if _, exists := data["code"]; exists {
		t.Error("build failures carry no code")
	}
}

func TestFetch_ContextCancelledDuringBackoff(t *testing.T) {
	mock := testutil.NewMockServer()
	defer mock.Close()
	mock.SetResponse("/down", testutil.NewServerErrorResponse())

	cfg := testConfig()
	cfg.Backoff = backoff.Linear{Base: time.Hour}
	c := newTestClient(t, cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	resp := c.Fetch(ctx, Request{BaseURL: mock.URL(), Path: "/down"})

	if time.Since(start) > 5*time.Second {
		t.Fatal("Fetch did not stop waiting when the context ended")
	}
	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("StatusCode = %d, want 500", resp.StatusCode)
	}
	if got := mock.RequestCount(); got != 1 {
		t.Errorf("requests = %d, want 1", got)
	}
}

func TestFetch_JSONBody(t *testing.T) {
	mock := testutil.NewMockServer()
	defer mock.Close()

	c := newTestClient(t, testConfig())
	resp := c.Fetch(context.Background(), Request{
		BaseURL: mock.URL() + "/",
		Path:    "/events",
		Method:  "post",
		Headers: map[string]string{"X-Request-Id": "abc"},
		Query:   map[string]any{"limit": 10},
		Body:    map[string]any{"event": "user.created"},
	})
	if !resp.OK() {
		t.Fatalf("StatusCode = %d, want 2xx", resp.StatusCode)
	}

	req, _ := mock.LastRequest()
	if req.Method != http.MethodPost {
		t.Errorf("Method = %s, want POST", req.Method)
	}
	if req.Path != "/events" {
		t.Errorf("Path = %s, want /events", req.Path)
	}
	if req.Query != "limit=10" {
		t.Errorf("Query = %s, want limit=10", req.Query)
	}
	if got := req.Header.Get("Content-Type"); got != ContentTypeJSON {
		t.Errorf("Content-Type = %q, want %q", got, ContentTypeJSON)
	}
	if got := req.Header.Get("X-Request-Id"); got != "abc" {
		t.Errorf("X-Request-Id = %q, want abc", got)
	}
	if string(req.Body) != `{"event":"user.created"}` {
		t.Errorf("Body = %s", req.Body)
	}
}

func TestFetch_FormBody(t *testing.T) {
	mock := testutil.NewMockServer()
	defer mock.Close()

	c := newTestClient(t, testConfig())
	resp := c.Fetch(context.Background(), Request{
		BaseURL: mock.URL(),
		Path:    "/token",
		Method:  http.MethodPost,
		Body:    map[string]string{"grant_type": "client_credentials"},
		IsForm:  true,
	})
	if !resp.OK() {
		t.Fatalf("StatusCode = %d, want 2xx", resp.StatusCode)
	}

	req, _ := mock.LastRequest()
	if got := req.Header.Get("Content-Type"); got != ContentTypeForm {
		t.Errorf("Content-Type = %q, want %q", got, ContentTypeForm)
	}
	values, err := url.ParseQuery(string(req.Body))
	if err != nil {
		t.Fatalf("body is not form encoded: %v", err)
	}
	if values.Get("grant_type") != "client_credentials" {
		t.Errorf("grant_type = %q", values.Get("grant_type"))
	}
}

func TestFetch_FormBodyRejectsStructs(t *testing.T) {
	mock := testutil.NewMockServer()
	defer mock.Close()

	c := newTestClient(t, testConfig())
	resp := c.Fetch(context.Background(), Request{
		BaseURL: mock.URL(),
		Method:  http.MethodPost,
		Body:    struct{ A string }{A: "x"},
		IsForm:  true,
	})

	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("StatusCode = %d, want 404", resp.StatusCode)
	}
	if got := mock.RequestCount(); got != 0 {
		t.Errorf("requests = %d, want 0", got)
	}
}

func TestJoinURL(t *testing.T) {
	tests := []struct {
		base, path, want string
	}{
		{"http://a", "/b", "http://a/b"},
		{"http://a/", "b", "http://a/b"},
		{"http://a/", "/b", "http://a/b"},
		{"http://a", "", "http://a"},
		{"", "http://c/d", "http://c/d"},
		{"http://a", "http://c/d", "http://c/d"},
	}

	for _, tt := range tests {
		if got := joinURL(tt.base, tt.path); got != tt.want {
			t.Errorf("joinURL(%q, %q) = %q, want %q", tt.base, tt.path, got, tt.want)
		}
	}
}
