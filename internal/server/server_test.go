package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ricesearch/rice-syntax/internal/ast"
	"github.com/ricesearch/rice-syntax/internal/metrics"
	apperrors "github.com/ricesearch/rice-syntax/internal/pkg/errors"
	"github.com/ricesearch/rice-syntax/internal/pkg/logger"
	"github.com/ricesearch/rice-syntax/internal/worker"
)

type stubDispatcher struct {
	resp  worker.Response
	got   worker.Envelope
	reqID string
}

func (d *stubDispatcher) HandleEnvelope(ctx context.Context, env worker.Envelope) worker.Response {
	d.got = env
	d.reqID, _ = logger.RequestIDFrom(ctx)
	resp := d.resp
	resp.ID = env.ID
	return resp
}

func newTestServer(d Dispatcher, m *metrics.Metrics) *Server {
	cfg := DefaultConfig()
	return New(cfg, d, m, logger.Discard())
}

func post(t *testing.T, h http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/v1/rpc", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Host != "0.0.0.0" {
		t.Errorf("Host = %q, want %q", cfg.Host, "0.0.0.0")
	}
	if cfg.Port != 8090 {
		t.Errorf("Port = %d, want %d", cfg.Port, 8090)
	}
	if cfg.Version != "dev" {
		t.Errorf("Version = %q, want %q", cfg.Version, "dev")
	}
	if cfg.ReadTimeout == 0 || cfg.WriteTimeout == 0 || cfg.ShutdownTimeout == 0 {
		t.Error("timeouts should not be zero")
	}
	if cfg.MetricsPath != "/metrics" {
		t.Errorf("MetricsPath = %q", cfg.MetricsPath)
	}
}

func TestParseOrigins(t *testing.T) {
	got := ParseOrigins(" https://a.dev, ,https://b.dev ")
	if len(got) != 2 || got[0] != "https://a.dev" || got[1] != "https://b.dev" {
		t.Errorf("ParseOrigins() = %v", got)
	}
	if ParseOrigins("") != nil {
		t.Error("ParseOrigins(\"\") should be nil")
	}
}

func TestResponseWriter(t *testing.T) {
	rec := httptest.NewRecorder()
	w := &responseWriter{ResponseWriter: rec, status: http.StatusOK}

	w.WriteHeader(http.StatusNotFound)
	if w.status != http.StatusNotFound {
		t.Errorf("status after WriteHeader = %d, want %d", w.status, http.StatusNotFound)
	}

	w.WriteHeader(http.StatusOK)
	if w.status != http.StatusNotFound {
		t.Errorf("second WriteHeader changed status to %d", w.status)
	}
}

func TestRPCSuccess(t *testing.T) {
	d := &stubDispatcher{resp: worker.Response{Res: 2}}
	s := newTestServer(d, nil)

	rec := post(t, s.Handler(), `{"id": 7, "fn": "getParseErrorCount", "args": ["go", "package x"]}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d, body: %s", rec.Code, http.StatusOK, rec.Body.String())
	}
	if d.got.Fn != "getParseErrorCount" || len(d.got.Args) != 2 {
		t.Errorf("dispatcher got %+v", d.got)
	}

	var resp worker.RawResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if resp.ID != 7 || string(resp.Res) != "2" || resp.Err != nil {
		t.Errorf("response = %+v", resp)
	}
}

func TestRPCErrorStatus(t *testing.T) {
	tests := []struct {
		name   string
		err    *apperrors.AppError
		status int
	}{
		{"validation", apperrors.ValidationError("range out of bounds"), http.StatusBadRequest},
		{"unsupported language", apperrors.UnsupportedLanguageError("cobol"), http.StatusBadRequest},
		{"rate limited", apperrors.RateLimitedError(1), http.StatusTooManyRequests},
		{"internal", apperrors.InternalError("boom", nil), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(&stubDispatcher{resp: worker.Response{Err: tt.err}}, nil)
			rec := post(t, s.Handler(), `{"id": 1, "fn": "getStructure", "args": ["go", ""]}`)

			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d", rec.Code, tt.status)
			}
			var resp worker.RawResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("failed to unmarshal response: %v", err)
			}
			if resp.Err == nil || resp.Err.Code != tt.err.Code {
				t.Errorf("err = %+v, want code %s", resp.Err, tt.err.Code)
			}
		})
	}
}

func TestRPCMalformedBody(t *testing.T) {
	d := &stubDispatcher{}
	s := newTestServer(d, nil)

	rec := post(t, s.Handler(), `{"id": 1, "fn":`)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
	if !strings.Contains(rec.Body.String(), apperrors.CodeInvalidRequest) {
		t.Errorf("body = %s", rec.Body.String())
	}
	if d.got.Fn != "" {
		t.Error("dispatcher should not be called")
	}
}

func TestRPCMethodNotAllowed(t *testing.T) {
	s := newTestServer(&stubDispatcher{}, nil)
	req := httptest.NewRequest(http.MethodGet, "/v1/rpc", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusMethodNotAllowed)
	}
}

func TestRequestID(t *testing.T) {
	d := &stubDispatcher{resp: worker.Response{Res: 0}}
	s := newTestServer(d, nil)
	h := s.Handler()

	t.Run("kept", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/v1/rpc", strings.NewReader(`{"fn": "x"}`))
		req.Header.Set(RequestIDHeader, "abc-123")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		if got := rec.Header().Get(RequestIDHeader); got != "abc-123" {
			t.Errorf("response id = %q", got)
		}
		if d.reqID != "abc-123" {
			t.Errorf("context id = %q", d.reqID)
		}
	})

	t.Run("assigned", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/v1/rpc", strings.NewReader(`{"fn": "x"}`))
		req.Header.Set(RequestIDHeader, "bad\nid")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		got := rec.Header().Get(RequestIDHeader)
		if got == "" || got == "bad\nid" || len(got) != 36 {
			t.Errorf("response id = %q, want a fresh uuid", got)
		}
		if d.reqID != got {
			t.Errorf("context id = %q, want %q", d.reqID, got)
		}
	})
}

func TestCORS(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CORSOrigins = []string{"https://editor.dev"}
	s := New(cfg, &stubDispatcher{}, nil, logger.Discard())
	h := s.Handler()

	req := httptest.NewRequest(http.MethodOptions, "/v1/rpc", nil)
	req.Header.Set("Origin", "https://editor.dev")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("preflight status = %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://editor.dev" {
		t.Errorf("allow origin = %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Origin", "https://elsewhere.dev")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("unlisted origin allowed: %q", got)
	}
}

func TestLanguagesAndHealth(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Version = "1.2.3"
	s := New(cfg, &stubDispatcher{}, nil, logger.Discard())
	h := s.Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/languages", nil))
	var langs LanguagesResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &langs); err != nil {
		t.Fatalf("failed to unmarshal languages: %v", err)
	}
	if len(langs.Languages) != len(ast.SupportedLanguages) || langs.Languages[0] != "typescript" {
		t.Errorf("languages = %v", langs.Languages)
	}
	if len(langs.Functions) != len(worker.Functions()) {
		t.Errorf("functions = %v", langs.Functions)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	var health HealthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &health); err != nil {
		t.Fatalf("failed to unmarshal health: %v", err)
	}
	if health.Status != "ok" || health.Version != "1.2.3" {
		t.Errorf("health = %+v", health)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	m := metrics.New()
	s := newTestServer(&stubDispatcher{resp: worker.Response{Res: 1}}, m)
	h := s.Handler()

	post(t, h, `{"id": 1, "fn": "getParseErrorCount", "args": ["go", ""]}`)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `rice_syntax_http_requests_total{code="200",method="post",path="/v1/rpc"} 1`) {
		t.Errorf("metrics output missing rpc counter")
	}
}

func TestRateLimit(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RateLimit = 1
	s := New(cfg, &stubDispatcher{}, nil, logger.Discard())
	defer s.Stop(context.Background())
	h := s.Handler()

	limited := false
	for i := 0; i < 5; i++ {
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		req.RemoteAddr = "10.0.0.1:5555"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code == http.StatusTooManyRequests {
			limited = true
		}
	}
	if !limited {
		t.Error("expected a 429 after the burst")
	}
}

func TestRPCWithEngine(t *testing.T) {
	engine := ast.NewEngine(ast.EngineConfig{Logger: logger.Discard()})
	defer engine.Close()
	d := worker.NewDispatcher(engine, worker.Config{Concurrency: 2, Logger: logger.Discard()})
	s := newTestServer(d, nil)

	body, err := json.Marshal(map[string]any{
		"id":   3,
		"fn":   "getClassDeclarations",
		"args": []any{"python", "class A:\n    pass\n"},
	})
	if err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPost, "/v1/rpc", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		ID  uint64           `json:"id"`
		Res []ast.Definition `json:"res"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if resp.ID != 3 || len(resp.Res) != 1 || resp.Res[0].Identifier != "A" {
		t.Errorf("response = %+v", resp)
	}
}

func TestServeAndStop(t *testing.T) {
	s := newTestServer(&stubDispatcher{}, nil)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}

	done := make(chan error, 1)
	go func() { done <- s.Serve(ln) }()

	url := "http://" + ln.Addr().String() + "/healthz"
	deadline := time.Now().Add(2 * time.Second)
	for {
		resp, err := http.Get(url)
		if err == nil {
			resp.Body.Close()
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("server never came up: %v", err)
		}
		time.Sleep(10 * time.Millisecond)
	}
	if !s.Health() {
		t.Error("Health() = false while serving")
	}

	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if err := <-done; !errors.Is(err, http.ErrServerClosed) {
		t.Errorf("Serve() = %v, want ErrServerClosed", err)
	}
	if s.Health() {
		t.Error("Health() = true after Stop")
	}
}

type panicDispatcher struct{}

func (panicDispatcher) HandleEnvelope(context.Context, worker.Envelope) worker.Response {
	panic("dispatcher exploded")
}

func TestRecoveryMiddleware(t *testing.T) {
	s := newTestServer(panicDispatcher{}, nil)
	rec := post(t, s.Handler(), `{"id": 1, "fn": "getStructure", "args": ["go", ""]}`)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusInternalServerError)
	}
	if !strings.Contains(rec.Body.String(), apperrors.CodeInternal) {
		t.Errorf("body = %s", rec.Body.String())
	}
}
