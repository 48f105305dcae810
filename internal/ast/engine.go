package ast

import (
	"context"
	"errors"

	"github.com/ricesearch/rice-syntax/internal/pkg/logger"

	apperrors "github.com/ricesearch/rice-syntax/internal/pkg/errors"
)

// EngineConfig wires the engine's collaborators. Zero values get defaults.
type EngineConfig struct {
	Grammars     GrammarLoader
	TreeCache    TreeCacheConfig
	Structures   StructureCache
	QueryMetrics QueryMetrics
	Logger       *logger.Logger
}

// Engine answers structural questions about source text. It is safe for
// concurrent use.
type Engine struct {
	trees      *TreeCache
	queries    *QueryCache
	structures StructureCache
	log        *logger.Logger
}

// NewEngine builds an engine with its own tree and query caches.
func NewEngine(cfg EngineConfig) *Engine {
	if cfg.Grammars == nil {
		cfg.Grammars = NewBuiltinGrammars()
	}
	if cfg.Structures == nil {
		cfg.Structures = nopStructureCache{}
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Default()
	}
	if cfg.TreeCache.Logger == nil {
		cfg.TreeCache.Logger = cfg.Logger
	}
	return &Engine{
		trees:      NewTreeCache(cfg.Grammars, cfg.TreeCache),
		queries:    NewQueryCache(cfg.Grammars, cfg.QueryMetrics),
		structures: cfg.Structures,
		log:        cfg.Logger.WithComponent("engine"),
	}
}

// Trees exposes the parse tree cache for stats.
func (e *Engine) Trees() *TreeCache { return e.trees }

// Close drops every cached tree and compiled query.
func (e *Engine) Close() {
	e.trees.Purge()
	e.queries.Close()
}

// withTree runs fn against the root of the tree for (lang, source). The tree
// reference is released on every exit path and a DISPOSED panic raised by a
// stale node becomes the returned error.
func (e *Engine) withTree(ctx context.Context, lang Language, source string, fn func(root Node) error) (err error) {
	ref, err := e.trees.Acquire(ctx, lang, source)
	if err != nil {
		return err
	}
	defer func() {
		if rerr := ref.Release(); rerr != nil {
			err = errors.Join(err, rerr)
		}
	}()
	defer func() {
		if r := recover(); r != nil {
			appErr, ok := r.(*apperrors.AppError)
			if !ok {
				panic(r)
			}
			err = appErr
		}
	}()

	tree := ref.Tree()
	tree.useMu.Lock()
	defer tree.useMu.Unlock()

	return fn(tree.Root())
}

// withMatches runs the queries of kind and hands the matches to fn while the
// tree is still held. A language without queries of that kind yields no
// matches.
func (e *Engine) withMatches(ctx context.Context, lang Language, source string, kind QueryKind, fn func(root Node, matches []Match) error) error {
	queries := Queries(kind, lang)
	return e.withTree(ctx, lang, source, func(root Node) error {
		if len(queries) == 0 {
			return fn(root, nil)
		}
		matches, err := e.queries.RunQueries(ctx, root, queries)
		if err != nil {
			return err
		}
		return fn(root, matches)
	})
}
