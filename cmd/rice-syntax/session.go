package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/ricesearch/rice-syntax/internal/app"
	"github.com/ricesearch/rice-syntax/internal/client"
	"github.com/ricesearch/rice-syntax/internal/config"
	"github.com/ricesearch/rice-syntax/internal/pkg/logger"
	"github.com/ricesearch/rice-syntax/internal/worker"
)

// engineCaller is satisfied by both the in-process caller and the HTTP client.
type engineCaller interface {
	Do(ctx context.Context, call worker.Call, out any) error
	Call(ctx context.Context, fn string, args ...any) (json.RawMessage, error)
}

// session holds what every command needs: a caller, a logger and the
// output settings.
type session struct {
	cfg    *config.Config
	caller engineCaller
	log    *logger.Logger
	out    io.Writer
	format string
	server string

	app *app.App // nil when talking to a server
}

func openSession(cmd *cobra.Command) (*session, error) {
	configPath, _ := cmd.Flags().GetString("config")
	verbose, _ := cmd.Flags().GetBool("verbose")
	format, _ := cmd.Flags().GetString("format")
	server, _ := cmd.Flags().GetString("server")

	if format != "text" && format != "json" {
		return nil, fmt.Errorf("unknown format %q (want text or json)", format)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// Results go to stdout, so logs stay on stderr and quiet by default.
	logLevel := "warn"
	if verbose {
		logLevel = "debug"
	}
	log := logger.NewWithWriter(cmd.ErrOrStderr(), logLevel, cfg.Log.Format)

	s := &session{
		cfg:    cfg,
		log:    log,
		out:    cmd.OutOrStdout(),
		format: format,
		server: server,
	}

	if server != "" {
		s.caller = client.New(client.Config{BaseURL: server, UserAgent: "rice-syntax/" + version})
		log.Debug("Using remote engine", "server", server)
		return s, nil
	}

	a, err := app.New(cfg, log, app.Options{})
	if err != nil {
		return nil, err
	}
	s.app = a
	s.caller = a.Caller()
	return s, nil
}

func (s *session) Close() error {
	if s.app != nil {
		return s.app.Close()
	}
	return nil
}

// dispatcher returns the in-process dispatcher. Commands that need one
// refuse to run against a server.
func (s *session) dispatcher() (*worker.Dispatcher, error) {
	if s.app == nil {
		return nil, fmt.Errorf("this command runs in process only; drop --server")
	}
	return s.app.Dispatcher, nil
}

func (s *session) writeJSON(v any) error {
	enc := json.NewEncoder(s.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
