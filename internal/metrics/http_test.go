package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestHTTPMiddleware(t *testing.T) {
	m := New()

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := testutil.ToFloat64(m.HTTPRequestsInFlight); got != 1 {
			t.Errorf("in-flight during request = %f, want 1", got)
		}
		w.WriteHeader(http.StatusTooManyRequests)
	})
	wrapped := HTTPMiddleware(m, handler)

	rec := httptest.NewRecorder()
	wrapped.ServeHTTP(rec, httptest.NewRequest("POST", "/v1/rpc", nil))

	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("expected status 429, got %d", rec.Code)
	}
	if got := testutil.ToFloat64(m.HTTPRequests.WithLabelValues("post", "/v1/rpc", "429")); got != 1 {
		t.Errorf("expected one recorded request, got %f", got)
	}
	if got := testutil.ToFloat64(m.HTTPRequestsInFlight); got != 0 {
		t.Errorf("expected in-flight requests to be 0, got %f", got)
	}
}

func TestHTTPMiddlewareImplicit200(t *testing.T) {
	m := New()
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	wrapped := HTTPMiddleware(m, handler)
	wrapped.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/healthz", nil))
	wrapped.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/wp-login.php", nil))

	if got := testutil.ToFloat64(m.HTTPRequests.WithLabelValues("get", "/healthz", "200")); got != 1 {
		t.Errorf("expected 200 to be recorded, got %f", got)
	}
	if got := testutil.ToFloat64(m.HTTPRequests.WithLabelValues("get", "{other}", "200")); got != 1 {
		t.Errorf("expected unknown path under {other}, got %f", got)
	}
}

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "static root", input: "/", expected: "/"},
		{name: "health endpoint", input: "/healthz", expected: "/healthz"},
		{name: "rpc", input: "/v1/rpc", expected: "/v1/rpc"},
		{name: "languages", input: "/v1/languages", expected: "/v1/languages"},
		{name: "unknown versioned", input: "/v1/stores/default", expected: "/v1/{other}"},
		{name: "unknown", input: "/wp-login.php", expected: "{other}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := normalizePath(tt.input); got != tt.expected {
				t.Errorf("normalizePath(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}
