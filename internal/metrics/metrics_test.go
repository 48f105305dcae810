package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	apperrors "github.com/ricesearch/rice-syntax/internal/pkg/errors"
)

func TestTreeCacheMetrics(t *testing.T) {
	m := New()

	m.TreeCacheHit("go")
	m.TreeCacheHit("go")
	m.TreeCacheMiss("go")
	m.TreeCacheEvict("python")
	m.TreeCacheSize("go", 3)

	if got := testutil.ToFloat64(m.TreeCacheHits.WithLabelValues("go")); got != 2 {
		t.Errorf("hits = %f, want 2", got)
	}
	if got := testutil.ToFloat64(m.TreeCacheMisses.WithLabelValues("go")); got != 1 {
		t.Errorf("misses = %f, want 1", got)
	}
	if got := testutil.ToFloat64(m.TreeCacheEvictions.WithLabelValues("python")); got != 1 {
		t.Errorf("evictions = %f, want 1", got)
	}
	if got := testutil.ToFloat64(m.TreeCacheEntries.WithLabelValues("go")); got != 3 {
		t.Errorf("entries = %f, want 3", got)
	}
}

func TestRecordRequest(t *testing.T) {
	m := New()

	m.RequestStarted()
	m.RecordRequest("getStructure", "", 2*time.Millisecond)
	m.RequestStarted()
	m.RecordRequest("getStructure", "VALIDATION_ERROR", time.Millisecond)

	if got := testutil.ToFloat64(m.Requests.WithLabelValues("getStructure", "OK")); got != 1 {
		t.Errorf("ok requests = %f, want 1", got)
	}
	if got := testutil.ToFloat64(m.Requests.WithLabelValues("getStructure", "VALIDATION_ERROR")); got != 1 {
		t.Errorf("failed requests = %f, want 1", got)
	}
	if got := testutil.ToFloat64(m.RequestsInFlight); got != 0 {
		t.Errorf("in flight = %f, want 0", got)
	}
}

func TestRecordBusCall(t *testing.T) {
	m := New()

	m.RecordBusCall("request", "syntax.request", 4*time.Millisecond, nil)
	m.RecordBusCall("request", "syntax.request", time.Second, apperrors.TimeoutError("bus request"))
	m.RecordBusCall("publish", "syntax.request", time.Millisecond, errors.New("broker down"))

	if got := testutil.ToFloat64(m.BusCalls.WithLabelValues("request", "syntax.request")); got != 2 {
		t.Errorf("requests = %f, want 2", got)
	}
	if got := testutil.ToFloat64(m.BusErrors.WithLabelValues("request", "syntax.request", apperrors.CodeTimeout)); got != 1 {
		t.Errorf("request timeouts = %f, want 1", got)
	}
	if got := testutil.ToFloat64(m.BusErrors.WithLabelValues("publish", "syntax.request", apperrors.CodeInternal)); got != 1 {
		t.Errorf("publish errors = %f, want 1", got)
	}
}

func TestHandlerServesRegistry(t *testing.T) {
	m := New()
	m.QueryCompiled("typescript")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), `rice_syntax_queries_compiled_total{language="typescript"} 1`) {
		t.Errorf("metrics output missing compiled query counter:\n%s", body)
	}
}

func TestHandlerRejectsPost(t *testing.T) {
	m := New()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("POST", "/metrics", nil))

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
	if allow := rec.Header().Get("Allow"); allow != "GET, HEAD" {
		t.Errorf("Allow = %q", allow)
	}
}
