package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ricesearch/rice-syntax/internal/ast"
	apperrors "github.com/ricesearch/rice-syntax/internal/pkg/errors"
	"github.com/ricesearch/rice-syntax/internal/worker"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.BaseURL != "http://localhost:8090" {
		t.Errorf("BaseURL = %q, want %q", cfg.BaseURL, "http://localhost:8090")
	}
	if cfg.Timeout != 30*time.Second {
		t.Errorf("Timeout = %v, want %v", cfg.Timeout, 30*time.Second)
	}
}

func TestClientNew(t *testing.T) {
	t.Run("default config", func(t *testing.T) {
		c := New(Config{})
		if c.baseURL != "http://localhost:8090" {
			t.Errorf("baseURL = %q, want %q", c.baseURL, "http://localhost:8090")
		}
		if c.Caller == nil {
			t.Error("Caller should be set")
		}
	})

	t.Run("custom config", func(t *testing.T) {
		c := New(Config{
			BaseURL: "http://custom:9000",
			Timeout: 60 * time.Second,
		})
		if c.baseURL != "http://custom:9000" {
			t.Errorf("baseURL = %q, want %q", c.baseURL, "http://custom:9000")
		}
		if c.httpClient.Timeout != 60*time.Second {
			t.Errorf("Timeout = %v", c.httpClient.Timeout)
		}
	})
}

func TestClientHealth(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/healthz" {
			t.Errorf("path = %q, want %q", r.URL.Path, "/healthz")
		}
		if r.Method != http.MethodGet {
			t.Errorf("method = %q, want %q", r.Method, http.MethodGet)
		}

		if err := json.NewEncoder(w).Encode(HealthResponse{
			Status:  "ok",
			Version: "1.0.0",
		}); err != nil {
			t.Errorf("failed to encode response: %v", err)
		}
	}))
	defer server.Close()

	c := New(Config{BaseURL: server.URL})
	resp, err := c.Health(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Status != "ok" || resp.Version != "1.0.0" {
		t.Errorf("health = %+v", resp)
	}
}

func TestClientLanguages(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/languages" {
			t.Errorf("path = %q", r.URL.Path)
		}
		w.Write([]byte(`{"languages": ["go", "rust"], "functions": ["getStructure"]}`))
	}))
	defer server.Close()

	resp, err := New(Config{BaseURL: server.URL}).Languages(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(resp.Languages) != 2 || resp.Functions[0] != "getStructure" {
		t.Errorf("languages = %+v", resp)
	}
}

func rpcServer(t *testing.T, reply func(env worker.Envelope) (int, any)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/rpc" || r.Method != http.MethodPost {
			t.Errorf("request = %s %s", r.Method, r.URL.Path)
		}
		var env worker.Envelope
		if err := json.NewDecoder(r.Body).Decode(&env); err != nil {
			t.Errorf("failed to decode envelope: %v", err)
		}
		status, body := reply(env)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(body)
	}))
}

func TestClientDo(t *testing.T) {
	server := rpcServer(t, func(env worker.Envelope) (int, any) {
		if env.Fn != worker.FnFunctionDefinitions || len(env.Args) != 2 {
			t.Errorf("envelope = %+v", env)
		}
		if string(env.Args[0]) != `"go"` {
			t.Errorf("language arg = %s", env.Args[0])
		}
		return http.StatusOK, worker.Response{ID: env.ID, Res: []ast.Definition{
			{Identifier: "main", Text: "func main() {}", StartIndex: 14, EndIndex: 28},
		}}
	})
	defer server.Close()

	c := New(Config{BaseURL: server.URL})
	var defs []ast.Definition
	call := &worker.FunctionDefinitionsCall{Source: worker.Source{Lang: ast.LangGo, Text: "package main\n\nfunc main() {}"}}
	if err := c.Do(context.Background(), call, &defs); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(defs) != 1 || defs[0].Identifier != "main" {
		t.Errorf("defs = %+v", defs)
	}
}

func TestClientEnvelopeError(t *testing.T) {
	server := rpcServer(t, func(env worker.Envelope) (int, any) {
		appErr := apperrors.UnsupportedLanguageError("cobol")
		return appErr.HTTPStatus(), worker.Response{ID: env.ID, Err: appErr}
	})
	defer server.Close()

	_, err := New(Config{BaseURL: server.URL}).Call(context.Background(), worker.FnStructure, "cobol", "")
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if code := apperrors.CodeOf(err); code != apperrors.CodeUnsupportedLanguage {
		t.Errorf("code = %q, want %q", code, apperrors.CodeUnsupportedLanguage)
	}
}

func TestClientMismatchedID(t *testing.T) {
	server := rpcServer(t, func(env worker.Envelope) (int, any) {
		return http.StatusOK, worker.Response{ID: env.ID + 100, Res: 1}
	})
	defer server.Close()

	if _, err := New(Config{BaseURL: server.URL}).Call(context.Background(), worker.FnParseErrorCount, "go", ""); err == nil {
		t.Fatal("expected error for mismatched reply id")
	}
}

func TestClientAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		apperrors.WriteErrorWithStatus(w, http.StatusTooManyRequests, apperrors.RateLimitedError(1))
	}))
	defer server.Close()

	_, err := New(Config{BaseURL: server.URL}).Call(context.Background(), worker.FnStructure, "go", "")
	if err == nil {
		t.Fatal("expected error, got nil")
	}

	apiErr, ok := err.(*APIError)
	if !ok {
		t.Fatalf("expected *APIError, got %T", err)
	}
	if apiErr.Code != apperrors.CodeRateLimited || apiErr.Status != http.StatusTooManyRequests {
		t.Errorf("apiErr = %+v", apiErr)
	}
}

func TestClientConnectionError(t *testing.T) {
	c := New(Config{
		BaseURL: "http://localhost:99999", // Invalid port
		Timeout: 1 * time.Second,
	})

	if _, err := c.Health(context.Background()); err == nil {
		t.Fatal("expected error, got nil")
	}
}

func TestAPIErrorString(t *testing.T) {
	err := &APIError{
		Code:    "TEST_ERROR",
		Message: "test message",
	}

	expected := "TEST_ERROR: test message"
	if err.Error() != expected {
		t.Errorf("Error() = %q, want %q", err.Error(), expected)
	}
}

func TestClientUserAgentAndTrailingSlash(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/healthz" {
			t.Errorf("path = %q, want %q", r.URL.Path, "/healthz")
		}
		if ua := r.Header.Get("User-Agent"); ua != "rice-syntax-test" {
			t.Errorf("User-Agent = %q", ua)
		}
		w.Write([]byte(`{"status": "ok"}`))
	}))
	defer server.Close()

	c := New(Config{BaseURL: server.URL + "/", UserAgent: "rice-syntax-test"})
	if _, err := c.Health(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
