// Package app wires configuration into a running engine: the structure
// cache, the parse engine, the dispatcher and, when asked for, the bus
// worker.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/ricesearch/rice-syntax/internal/ast"
	"github.com/ricesearch/rice-syntax/internal/bus"
	"github.com/ricesearch/rice-syntax/internal/config"
	"github.com/ricesearch/rice-syntax/internal/metrics"
	"github.com/ricesearch/rice-syntax/internal/pkg/logger"
	"github.com/ricesearch/rice-syntax/internal/structcache"
	"github.com/ricesearch/rice-syntax/internal/worker"
)

// Options selects optional parts of the application.
type Options struct {
	// Bus starts a bus worker on cfg.Bus.Topic.
	Bus bool
}

// App owns every long-lived component built from a Config.
type App struct {
	Config     *config.Config
	Log        *logger.Logger
	Metrics    *metrics.Metrics
	Engine     *ast.Engine
	Dispatcher *worker.Dispatcher

	// Bus is nil unless Options.Bus was set.
	Bus bus.Bus

	structures structcache.Store
}

// New builds the application. The caller must Close it.
func New(cfg *config.Config, log *logger.Logger, opts Options) (*App, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if log == nil {
		log = logger.New(cfg.Log.Level, cfg.Log.Format)
	}

	a := &App{
		Config:  cfg,
		Log:     log,
		Metrics: metrics.New(),
	}

	store, err := structcache.New(cfg.StructureCache, log)
	if err != nil {
		return nil, fmt.Errorf("structure cache: %w", err)
	}
	a.structures = store
	log.Info("Structure cache ready", "backend", store.Name())

	a.Engine = ast.NewEngine(ast.EngineConfig{
		TreeCache: ast.TreeCacheConfig{
			Size:         cfg.Engine.TreeCacheSize,
			ParseTimeout: cfg.Engine.ParseTimeout(),
			Metrics:      a.Metrics,
		},
		Structures:   structcache.NewInstrumented(store, a.Metrics),
		QueryMetrics: a.Metrics,
		Logger:       log,
	})

	a.Dispatcher = worker.NewDispatcher(a.Engine, worker.Config{
		Concurrency: cfg.Worker.Concurrency,
		Timeout:     cfg.Worker.RequestTimeout(),
		RateLimit:   cfg.Worker.RateLimit,
		RateBurst:   cfg.Worker.RateBurst,
		Metrics:     a.Metrics,
		Logger:      log,
	})

	if opts.Bus {
		if err := a.startBus(context.Background()); err != nil {
			_ = a.Close()
			return nil, err
		}
	}
	return a, nil
}

func (a *App) startBus(ctx context.Context) error {
	b, err := bus.NewBus(a.Config.Bus, a.Log)
	if err != nil {
		return fmt.Errorf("event bus: %w", err)
	}
	a.Bus = bus.NewInstrumentedBus(b, a.Metrics)

	w := worker.NewBusWorker(a.Bus, a.Dispatcher, a.Config.Bus.Topic, a.Log)
	if err := w.Start(ctx); err != nil {
		return err
	}
	a.Log.Info("Event bus ready", "type", a.Config.Bus.Type, "topic", a.Config.Bus.Topic)
	return nil
}

// Caller returns a typed caller that runs requests in this process.
func (a *App) Caller() *worker.Caller {
	return worker.NewCaller(a.Dispatcher)
}

// Close releases the bus, the structure cache and the engine caches.
func (a *App) Close() error {
	var errs []error
	if a.Bus != nil {
		if err := a.Bus.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing bus: %w", err))
		}
	}
	if a.structures != nil {
		if err := a.structures.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing structure cache: %w", err))
		}
	}
	if a.Engine != nil {
		a.Engine.Close()
	}
	return errors.Join(errs...)
}
