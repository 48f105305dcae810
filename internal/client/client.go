// Package client provides an HTTP client for the rice-syntax server.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ricesearch/rice-syntax/internal/pkg/security"
	"github.com/ricesearch/rice-syntax/internal/worker"
)

const (
	rpcPath       = "/v1/rpc"
	healthPath    = "/healthz"
	languagesPath = "/v1/languages"
	jsonType      = "application/json"
)

// Client talks to a rice-syntax server. It implements worker.Sender, and the
// embedded Caller adds Call and Do on top.
type Client struct {
	*worker.Caller
	baseURL    string
	userAgent  string
	httpClient *http.Client
}

// Config configures the client.
type Config struct {
	// BaseURL is the server root, e.g. http://localhost:8090.
	BaseURL string

	// Timeout bounds each HTTP exchange.
	Timeout time.Duration

	// UserAgent is sent on every request when set.
	UserAgent string

	// Transport overrides the pooled default transport.
	Transport http.RoundTripper
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		BaseURL: "http://localhost:8090",
		Timeout: 30 * time.Second,
	}
}

// New creates a client. Zero fields take their defaults.
func New(cfg Config) *Client {
	def := DefaultConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.Transport == nil {
		t := http.DefaultTransport.(*http.Transport).Clone()
		t.MaxIdleConnsPerHost = 16
		cfg.Transport = t
	}

	c := &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		userAgent:  cfg.UserAgent,
		httpClient: &http.Client{Timeout: cfg.Timeout, Transport: cfg.Transport},
	}
	c.Caller = worker.NewCaller(c)
	return c
}

// HealthResponse is the /healthz body.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Uptime  string `json:"uptime,omitempty"`
}

// LanguagesResponse lists the languages and functions a server accepts.
type LanguagesResponse struct {
	Languages []string `json:"languages"`
	Functions []string `json:"functions"`
}

// APIError is an error the server answered with outside the envelope,
// such as a rate limit rejection.
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return e.Code + ": " + e.Message
}

// Health checks if the server is healthy.
func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	resp := new(HealthResponse)
	if err := c.getJSON(ctx, healthPath, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// Languages returns what the server accepts.
func (c *Client) Languages(ctx context.Context) (*LanguagesResponse, error) {
	resp := new(LanguagesResponse)
	if err := c.getJSON(ctx, languagesPath, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// Send posts env to the RPC endpoint and returns the raw result. A failed
// call returns the *apperrors.AppError carried by the reply envelope.
func (c *Client) Send(ctx context.Context, env worker.Envelope) (json.RawMessage, error) {
	payload, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("encoding envelope: %w", err)
	}
	status, body, err := c.exchange(ctx, http.MethodPost, rpcPath, payload)
	if err != nil {
		return nil, err
	}

	var reply worker.RawResponse
	decodeErr := json.Unmarshal(body, &reply)
	switch {
	case decodeErr != nil, reply.Err == nil && status >= http.StatusBadRequest:
		return nil, apiError(status, body)
	case reply.Err != nil:
		return nil, reply.Err
	case reply.ID != env.ID:
		return nil, fmt.Errorf("reply for request %d, want %d", reply.ID, env.ID)
	}
	return reply.Res, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	status, body, err := c.exchange(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	if status >= http.StatusBadRequest {
		return apiError(status, body)
	}
	if len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decoding %s: %w", path, err)
	}
	return nil
}

// exchange performs one request and reads at most MaxRequestSize bytes of
// the reply.
func (c *Client) exchange(ctx context.Context, method, path string, payload []byte) (int, []byte, error) {
	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return 0, nil, fmt.Errorf("building %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", jsonType)
	if payload != nil {
		req.Header.Set("Content-Type", jsonType)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, security.MaxRequestSize))
	if err != nil {
		return 0, nil, fmt.Errorf("reading %s reply: %w", path, err)
	}
	return resp.StatusCode, body, nil
}

func apiError(status int, body []byte) error {
	apiErr := &APIError{Status: status}
	if err := json.Unmarshal(body, apiErr); err != nil || apiErr.Code == "" {
		return fmt.Errorf("HTTP %d: %s", status, security.SanitizeForLog(string(body)))
	}
	return apiErr
}
