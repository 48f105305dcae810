// Package server exposes the syntax engine over HTTP.
package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/ricesearch/rice-syntax/internal/metrics"
	"github.com/ricesearch/rice-syntax/internal/pkg/logger"
	"github.com/ricesearch/rice-syntax/internal/pkg/middleware"
	"github.com/ricesearch/rice-syntax/internal/worker"
)

// Dispatcher handles one decoded envelope. *worker.Dispatcher implements it.
type Dispatcher interface {
	HandleEnvelope(ctx context.Context, env worker.Envelope) worker.Response
}

// Server serves the RPC endpoint plus health, language and metrics routes.
type Server struct {
	cfg        Config
	log        *logger.Logger
	dispatcher Dispatcher
	metrics    *metrics.Metrics
	limiter    *middleware.RateLimiter
	httpServer *http.Server
	startTime  time.Time

	mu      sync.RWMutex
	started bool
}

// Config configures the server.
type Config struct {
	// Host is the address to bind to.
	Host string

	// Port is the HTTP port.
	Port int

	// Version is reported by /healthz.
	Version string

	// ReadTimeout is the HTTP read timeout.
	ReadTimeout time.Duration

	// WriteTimeout is the HTTP write timeout.
	WriteTimeout time.Duration

	// ShutdownTimeout is the graceful shutdown timeout.
	ShutdownTimeout time.Duration

	// RateLimit is the per-client request rate. Zero disables limiting.
	RateLimit int

	// CORSOrigins lists allowed origins. "*" allows any.
	CORSOrigins []string

	// MetricsPath is where metrics are served when metrics are enabled.
	MetricsPath string
}

// DefaultConfig returns sensible server defaults.
func DefaultConfig() Config {
	return Config{
		Host:            "0.0.0.0",
		Port:            8090,
		Version:         "dev",
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    60 * time.Second,
		ShutdownTimeout: 30 * time.Second,
		CORSOrigins:     []string{"*"},
		MetricsPath:     "/metrics",
	}
}

// ParseOrigins splits a comma-separated origin list.
func ParseOrigins(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// New creates a server. m may be nil to disable metrics.
func New(cfg Config, d Dispatcher, m *metrics.Metrics, log *logger.Logger) *Server {
	if cfg.Port == 0 {
		cfg.Port = DefaultConfig().Port
	}
	if cfg.MetricsPath == "" {
		cfg.MetricsPath = DefaultConfig().MetricsPath
	}
	if log == nil {
		log = logger.Default()
	}

	s := &Server{
		cfg:        cfg,
		log:        log.WithComponent("server"),
		dispatcher: d,
		metrics:    m,
		startTime:  time.Now(),
	}
	if cfg.RateLimit > 0 {
		rl := middleware.DefaultRateLimiterConfig()
		rl.RequestsPerSecond = float64(cfg.RateLimit)
		rl.Burst = cfg.RateLimit * 2
		s.limiter = middleware.NewRateLimiter(rl)
	}
	return s
}

// Start listens on the configured address and serves until Stop.
// It returns http.ErrServerClosed after a graceful shutdown.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port))
	if err != nil {
		return fmt.Errorf("listening: %w", err)
	}
	return s.Serve(ln)
}

// Serve serves on ln until Stop.
func (s *Server) Serve(ln net.Listener) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		ln.Close()
		return fmt.Errorf("server already started")
	}
	s.started = true
	s.httpServer = &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}
	srv := s.httpServer
	s.mu.Unlock()

	s.log.Info("Starting HTTP server", "addr", ln.Addr().String())
	return srv.Serve(ln)
}

// Stop gracefully stops the server.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.limiter != nil {
		s.limiter.Stop()
	}
	if !s.started {
		return nil
	}

	s.log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(ctx, s.cfg.ShutdownTimeout)
	defer cancel()

	err := s.httpServer.Shutdown(shutdownCtx)
	if err != nil {
		s.log.Error("HTTP shutdown error", "error", err)
	}

	s.started = false
	s.log.Info("Server stopped")
	return err
}

// Handler returns the routed handler wrapped in the middleware chain.
// From the outside in: request id, recovery, logging, metrics, CORS, rate limit.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/rpc", s.handleRPC)
	mux.HandleFunc("GET /v1/languages", s.handleLanguages)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	if s.metrics != nil {
		mux.Handle("GET "+s.cfg.MetricsPath, s.metrics.Handler())
	}

	var h http.Handler = mux
	if s.limiter != nil {
		h = s.limiter.Middleware(h)
	}
	h = corsMiddleware(s.cfg.CORSOrigins, h)
	if s.metrics != nil {
		h = metrics.HTTPMiddleware(s.metrics, h)
	}
	h = loggingMiddleware(s.log, h)
	h = recoveryMiddleware(s.log, h)
	return requestIDMiddleware(h)
}

// Health reports whether the server is serving.
func (s *Server) Health() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.started
}
