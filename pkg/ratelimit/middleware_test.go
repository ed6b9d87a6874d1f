package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestClientIP(t *testing.T) {
	tests := []struct {
		remote string
		want   string
	}{
		{"192.0.2.1:1234", "192.0.2.1"},
		{"[2001:db8::1]:80", "2001:db8::1"},
		{"192.0.2.1", "192.0.2.1"},
	}

	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.RemoteAddr = tt.remote
		if got := ClientIP(r); got != tt.want {
			t.Errorf("ClientIP(%q) = %q, want %q", tt.remote, got, tt.want)
		}
	}
}

func TestMiddleware(t *testing.T) {
	l := newTestLimiter(t, newMemCounter(), 2, time.Minute)

	var denied int
	handler := l.Middleware(nil, func(w http.ResponseWriter, r *http.Request, d Decision) {
		denied++
		w.WriteHeader(http.StatusTooManyRequests)
	})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	codes := make([]int, 0, 3)
	var last *httptest.ResponseRecorder
	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/users", nil)
		req.RemoteAddr = "198.51.100.7:5555"
		handler.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
		last = rec
	}

	want := []int{http.StatusNoContent, http.StatusNoContent, http.StatusTooManyRequests}
	for i := range want {
		if codes[i] != want[i] {
			t.Errorf("request %d: status = %d, want %d", i+1, codes[i], want[i])
		}
	}
	if denied != 1 {
		t.Errorf("deny called %d times, want 1", denied)
	}
	if last.Header().Get(HeaderRetryAfter) == "" {
		t.Error("Retry-After missing on rejected request")
	}
	if last.Header().Get(HeaderRemaining) != "0" {
		t.Errorf("Remaining = %q, want 0", last.Header().Get(HeaderRemaining))
	}
}

func TestMiddleware_DefaultDeny(t *testing.T) {
	l := newTestLimiter(t, newMemCounter(), 1, time.Minute)
	handler := l.Middleware(func(*http.Request) string { return "fixed" }, nil)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}),
	)

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429", rec.Code)
	}
}
