// Package main provides the Rice Syntax server binary.
// The server answers engine envelopes over HTTP and, when a bus is
// configured, over the event bus.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ricesearch/rice-syntax/internal/app"
	"github.com/ricesearch/rice-syntax/internal/config"
	"github.com/ricesearch/rice-syntax/internal/metrics"
	"github.com/ricesearch/rice-syntax/internal/pkg/logger"
	"github.com/ricesearch/rice-syntax/internal/server"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "rice-syntax-server",
		Short: "Rice Syntax Server - syntax tree queries over HTTP and the event bus",
		Long: `Rice Syntax Server runs the parse engine behind a request/response
envelope.

The server exposes:
  - POST /v1/rpc for envelopes
  - GET /v1/languages, GET /healthz and GET /metrics
  - a bus worker on the configured topic (memory or kafka)

Examples:
  rice-syntax-server                      # Start with defaults
  rice-syntax-server --port 9000          # Custom HTTP port
  rice-syntax-server -c rice-syntax.yaml  # Load a config file`,
		RunE:         runServer,
		SilenceUsage: true,
	}

	// Server flags
	rootCmd.Flags().StringP("config", "c", "", "config file path")
	rootCmd.Flags().BoolP("verbose", "v", false, "verbose logging")
	rootCmd.Flags().Int("port", 8090, "HTTP server port")
	rootCmd.Flags().String("host", "0.0.0.0", "server host")
	rootCmd.Flags().String("bus", "", "event bus type (memory, kafka); overrides config")

	// Version command
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("rice-syntax-server %s\n", version)
			fmt.Printf("  commit: %s\n", commit)
			fmt.Printf("  built:  %s\n", date)
		},
	})

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runServer(cmd *cobra.Command, _ []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	verbose, _ := cmd.Flags().GetBool("verbose")
	port, _ := cmd.Flags().GetInt("port")
	host, _ := cmd.Flags().GetString("host")
	busType, _ := cmd.Flags().GetString("bus")

	// Load config
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Override from flags
	if cmd.Flags().Changed("port") {
		cfg.Port = port
	}
	if cmd.Flags().Changed("host") {
		cfg.Host = host
	}
	if busType != "" {
		cfg.Bus.Type = busType
	}
	if verbose {
		cfg.Log.Level = "debug"
	}

	log := logger.New(cfg.Log.Level, cfg.Log.Format)
	log.Info("Starting Rice Syntax Server",
		"version", version,
		"addr", cfg.Address(),
		"bus", cfg.Bus.Type,
	)

	a, err := app.New(cfg, log, app.Options{Bus: true})
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Warn("Error closing services", "error", err)
		}
	}()

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = a.Metrics
	}
	srvCfg := server.DefaultConfig()
	srvCfg.Host = cfg.Host
	srvCfg.Port = cfg.Port
	srvCfg.Version = version
	srvCfg.RateLimit = cfg.Security.RateLimit
	srvCfg.CORSOrigins = server.ParseOrigins(cfg.Security.CORSOrigins)
	srvCfg.MetricsPath = cfg.Metrics.Path
	srv := server.New(srvCfg, a.Dispatcher, m, log)

	// Wait for shutdown signal (platform-specific: Unix includes SIGQUIT, Windows does not)
	ctx, stop := signal.NotifyContext(cmd.Context(), shutdownSignals...)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), srvCfg.ShutdownTimeout+5*time.Second)
		defer cancel()
		return srv.Stop(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	log.Info("Server stopped cleanly")
	return nil
}
