package structcache

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/ricesearch/rice-syntax/internal/ast"
	"github.com/ricesearch/rice-syntax/internal/pkg/logger"
)

// BadgerConfig configures the on-disk store.
type BadgerConfig struct {
	// Path is the database directory. Required unless InMemory is set.
	Path string

	// InMemory keeps the database in memory. Used by tests.
	InMemory bool

	// TTL expires entries. Zero keeps them forever.
	TTL time.Duration

	// Logger receives badger's internal logs. Nil silences them.
	Logger *logger.Logger
}

// Badger stores outlines in an embedded key-value database, so cached
// outlines survive restarts.
type Badger struct {
	db  *badger.DB
	ttl time.Duration
}

// NewBadger opens the database described by cfg.
func NewBadger(cfg BadgerConfig) (*Badger, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for persistent structure cache")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("create structure cache directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}

	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{log: cfg.Logger.WithComponent("badger")})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}
	return &Badger{db: db, ttl: cfg.TTL}, nil
}

func (b *Badger) Get(ctx context.Context, lang ast.Language, source string) (*ast.OverlayNode, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	var (
		node *ast.OverlayNode
		ok   bool
	)
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(storageKey(lang, source)))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			node, ok = decode(val)
			return nil
		})
	})
	if err != nil {
		return nil, false, fmt.Errorf("loading structure: %w", err)
	}
	return node, ok, nil
}

func (b *Badger) Set(ctx context.Context, lang ast.Language, source string, node *ast.OverlayNode) error {
	if node == nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := encode(node)
	if err != nil {
		return err
	}
	err = b.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry([]byte(storageKey(lang, source)), data)
		if b.ttl > 0 {
			e = e.WithTTL(b.ttl)
		}
		return txn.SetEntry(e)
	})
	if err != nil {
		return fmt.Errorf("saving structure: %w", err)
	}
	return nil
}

func (b *Badger) Name() string { return "badger" }

func (b *Badger) Close() error { return b.db.Close() }

// badgerLogger adapts the application logger to badger.Logger.
type badgerLogger struct {
	log *logger.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.log.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.log.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.log.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.log.Debug(fmt.Sprintf(format, args...))
}
