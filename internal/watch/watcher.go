// Package watch reports parse health for a source tree as it changes.
// Changed files are debounced into batches, and each supported file is
// run through the parse-error count and the outline.
package watch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/sync/errgroup"

	"github.com/ricesearch/rice-syntax/internal/ast"
	"github.com/ricesearch/rice-syntax/internal/pkg/logger"
	"github.com/ricesearch/rice-syntax/internal/pkg/security"
	"github.com/ricesearch/rice-syntax/internal/worker"
)

// Analyzer runs typed engine calls. *worker.Caller, *client.Client and
// *worker.BusClient implement it.
type Analyzer interface {
	Do(ctx context.Context, call worker.Call, out any) error
}

// FileReport is the result for one file of a batch.
type FileReport struct {
	Path        string `json:"path"`
	Language    string `json:"language,omitempty"`
	ParseErrors int    `json:"parseErrors"`
	OutlineSize int    `json:"outlineSize"`
	Removed     bool   `json:"removed,omitempty"`
	Error       string `json:"error,omitempty"`
}

// Batch is one debounced set of reports, sorted by path.
type Batch struct {
	Files   []FileReport `json:"files"`
	At      time.Time    `json:"at"`
	Initial bool         `json:"initial,omitempty"`
}

// WatcherConfig configures a Watcher.
type WatcherConfig struct {
	Path        string
	Analyzer    Analyzer
	BatchDelay  time.Duration // Default: 500ms
	Concurrency int           // Default: 4
	InitialScan bool
	OnBatch     func(Batch)
	Logger      *logger.Logger
}

// Watcher watches a directory tree.
type Watcher struct {
	root        string
	analyzer    Analyzer
	ignore      *IgnoreFilter
	onBatch     func(Batch)
	concurrency int
	initialScan bool
	batchDelay  time.Duration

	pendingMu sync.Mutex
	pending   map[string]struct{}

	statsMu   sync.Mutex
	fileCount int
	lastSync  time.Time

	ready    chan struct{}
	done     chan struct{}
	stopOnce sync.Once
	log      *logger.Logger
}

// NewWatcher creates a watcher for cfg.Path.
func NewWatcher(cfg WatcherConfig) (*Watcher, error) {
	if cfg.Analyzer == nil {
		return nil, errors.New("watcher needs an analyzer")
	}
	if cfg.BatchDelay <= 0 {
		cfg.BatchDelay = 500 * time.Millisecond
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.OnBatch == nil {
		cfg.OnBatch = func(Batch) {}
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Default()
	}

	absPath, err := filepath.Abs(cfg.Path)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", cfg.Path)
	}

	ignore, err := NewIgnoreFilter(absPath)
	if err != nil {
		return nil, fmt.Errorf("loading ignore files: %w", err)
	}

	return &Watcher{
		root:        absPath,
		analyzer:    cfg.Analyzer,
		ignore:      ignore,
		onBatch:     cfg.OnBatch,
		concurrency: cfg.Concurrency,
		initialScan: cfg.InitialScan,
		batchDelay:  cfg.BatchDelay,
		pending:     make(map[string]struct{}),
		ready:       make(chan struct{}),
		done:        make(chan struct{}),
		log:         cfg.Logger.WithComponent("watcher"),
	}, nil
}

// Ready is closed once every directory is being watched.
func (w *Watcher) Ready() <-chan struct{} {
	return w.ready
}

// Start runs the optional initial scan, then reports batches until ctx is
// done or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	w.log.Info("Starting watcher", "path", w.root)

	if w.initialScan {
		if err := w.scan(ctx); err != nil {
			return fmt.Errorf("initial scan failed: %w", err)
		}
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fsWatcher.Close()

	if err := w.addTree(fsWatcher, w.root); err != nil {
		return err
	}
	close(w.ready)
	w.log.Info("Watching for changes", "path", w.root)

	timer := time.NewTimer(w.batchDelay)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.done:
			return nil
		case event, ok := <-fsWatcher.Events:
			if !ok {
				return nil
			}
			if w.handleEvent(event, fsWatcher) {
				timer.Reset(w.batchDelay)
			}
		case <-timer.C:
			w.flush(ctx)
		case err, ok := <-fsWatcher.Errors:
			if !ok {
				return nil
			}
			w.log.Error("Watcher error", "error", err)
		}
	}
}

func (w *Watcher) addTree(fsWatcher *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			w.log.Warn("Error walking path", "path", security.SanitizeForLog(path), "error", err)
			return filepath.SkipDir
		}
		if !d.IsDir() {
			return nil
		}
		if w.ignore.ShouldIgnore(path, true) {
			return filepath.SkipDir
		}
		return fsWatcher.Add(path)
	})
}

// handleEvent queues a supported file and reports whether it did.
func (w *Watcher) handleEvent(event fsnotify.Event, fsWatcher *fsnotify.Watcher) bool {
	path := event.Name
	if event.Op == fsnotify.Chmod {
		return false
	}

	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			if w.ignore.ShouldIgnore(path, true) {
				return false
			}
			if err := w.addTree(fsWatcher, path); err != nil {
				w.log.Warn("Failed to watch new directory", "path", security.SanitizeForLog(path), "error", err)
			}
			return false
		}
	}

	if _, ok := ast.LanguageForPath(path); !ok || w.ignore.ShouldIgnore(path, false) {
		return false
	}

	w.pendingMu.Lock()
	w.pending[path] = struct{}{}
	w.pendingMu.Unlock()
	return true
}

func (w *Watcher) flush(ctx context.Context) {
	w.pendingMu.Lock()
	files := make([]string, 0, len(w.pending))
	for path := range w.pending {
		files = append(files, path)
	}
	w.pending = make(map[string]struct{})
	w.pendingMu.Unlock()

	if len(files) == 0 {
		return
	}
	w.log.Info("Processing batch", "count", len(files))
	w.emit(ctx, files, false)
}

func (w *Watcher) scan(ctx context.Context) error {
	w.log.Info("Performing initial scan...")

	var files []string
	err := filepath.WalkDir(w.root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil // finish the walk even if some entries fail
		}
		if d.IsDir() {
			if w.ignore.ShouldIgnore(path, true) {
				return filepath.SkipDir
			}
			return nil
		}
		if _, ok := ast.LanguageForPath(path); ok && !w.ignore.ShouldIgnore(path, false) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if len(files) > 0 {
		w.emit(ctx, files, true)
	}
	w.log.Info("Initial scan finished", "files", len(files))
	return nil
}

// emit analyzes files concurrently and hands the batch to OnBatch.
func (w *Watcher) emit(ctx context.Context, files []string, initial bool) {
	slices.Sort(files)
	reports := make([]FileReport, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.concurrency)
	for i, path := range files {
		g.Go(func() error {
			reports[i] = w.analyze(gctx, path)
			return nil
		})
	}
	_ = g.Wait()

	analyzed := 0
	for _, r := range reports {
		if r.Error == "" && !r.Removed {
			analyzed++
		}
	}
	w.statsMu.Lock()
	w.fileCount += analyzed
	w.lastSync = time.Now()
	w.statsMu.Unlock()

	w.onBatch(Batch{Files: reports, At: time.Now(), Initial: initial})
}

func (w *Watcher) analyze(ctx context.Context, path string) FileReport {
	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		rel = path
	}
	report := FileReport{Path: filepath.ToSlash(rel)}

	if err := security.ValidateFilePath(report.Path); err != nil {
		report.Error = err.Error()
		return report
	}
	lang, _ := ast.LanguageForPath(path)
	report.Language = lang.String()

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		report.Removed = true
		return report
	}
	if err != nil {
		report.Error = err.Error()
		return report
	}
	if security.IsBinary(data) {
		report.Error = "binary file"
		return report
	}

	src := worker.Source{Lang: lang, Text: string(data)}
	if err := w.analyzer.Do(ctx, &worker.ParseErrorCountCall{Source: src}, &report.ParseErrors); err != nil {
		report.Error = err.Error()
		return report
	}
	var outline *ast.OverlayNode
	if err := w.analyzer.Do(ctx, &worker.StructureCall{Source: src}, &outline); err != nil {
		report.Error = err.Error()
		return report
	}
	report.OutlineSize = outline.Size()

	if report.ParseErrors > 0 {
		w.log.Debug("File has parse errors", "path", security.SanitizeForLog(report.Path), "errors", report.ParseErrors)
	}
	return report
}

// Stop ends Start. It is safe to call more than once.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() { close(w.done) })
}

// Stats returns the number of files analyzed and the time of the last batch.
func (w *Watcher) Stats() (int, time.Time) {
	w.statsMu.Lock()
	defer w.statsMu.Unlock()
	return w.fileCount, w.lastSync
}
