package ast

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/simplelru"
	sitter "github.com/smacker/go-tree-sitter"
	"golang.org/x/sync/singleflight"

	"github.com/ricesearch/rice-syntax/internal/pkg/hash"
	"github.com/ricesearch/rice-syntax/internal/pkg/logger"

	apperrors "github.com/ricesearch/rice-syntax/internal/pkg/errors"
)

// DefaultTreeCacheSize is the per-language capacity used when none is set.
const DefaultTreeCacheSize = 5

// CacheMetrics receives cache activity. Implementations must be safe for
// concurrent use.
type CacheMetrics interface {
	TreeCacheHit(lang string)
	TreeCacheMiss(lang string)
	TreeCacheEvict(lang string)
	TreeCacheSize(lang string, size int)
}

type nopCacheMetrics struct{}

func (nopCacheMetrics) TreeCacheHit(string)       {}
func (nopCacheMetrics) TreeCacheMiss(string)      {}
func (nopCacheMetrics) TreeCacheEvict(string)     {}
func (nopCacheMetrics) TreeCacheSize(string, int) {}

// TreeCacheConfig configures a TreeCache.
type TreeCacheConfig struct {
	// Size is the per-language capacity.
	Size int
	// ParseTimeout bounds a single parse. Zero disables the bound.
	ParseTimeout time.Duration
	Metrics      CacheMetrics
	Logger       *logger.Logger
}

// TreeCacheStats is a snapshot of cache activity.
type TreeCacheStats struct {
	Hits      int64          `json:"hits"`
	Misses    int64          `json:"misses"`
	Evictions int64          `json:"evictions"`
	Entries   map[string]int `json:"entries"`
}

// TreeCache shares parse trees between callers, keyed by language and exact
// source text. Each language has its own LRU.
type TreeCache struct {
	mu      sync.Mutex
	lrus    map[Language]*simplelru.LRU[string, *ParseTree]
	size    int
	loader  GrammarLoader
	timeout time.Duration
	metrics CacheMetrics
	log     *logger.Logger

	group  singleflight.Group
	nextID atomic.Uint64

	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
}

// NewTreeCache creates a cache that parses through loader.
func NewTreeCache(loader GrammarLoader, cfg TreeCacheConfig) *TreeCache {
	if cfg.Size < 1 {
		cfg.Size = DefaultTreeCacheSize
	}
	if cfg.Metrics == nil {
		cfg.Metrics = nopCacheMetrics{}
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Discard()
	}
	return &TreeCache{
		lrus:    make(map[Language]*simplelru.LRU[string, *ParseTree]),
		size:    cfg.Size,
		loader:  loader,
		timeout: cfg.ParseTimeout,
		metrics: cfg.Metrics,
		log:     cfg.Logger.WithComponent("treecache"),
	}
}

// lru returns the LRU for lang. Callers hold c.mu.
func (c *TreeCache) lru(lang Language) *simplelru.LRU[string, *ParseTree] {
	if l, ok := c.lrus[lang]; ok {
		return l
	}
	name := lang.String()
	l, err := simplelru.NewLRU[string, *ParseTree](c.size, func(_ string, t *ParseTree) {
		c.evictions.Add(1)
		c.metrics.TreeCacheEvict(name)
		if err := t.Deref(); err != nil {
			c.log.Error("Evicted tree was already disposed", "language", name, "tree", t.ID(), "error", err)
		}
	})
	if err != nil {
		// only returned for a non-positive size, which NewTreeCache rules out
		panic(err)
	}
	c.lrus[lang] = l
	return l
}

// Acquire returns a reference to the tree for (lang, source), parsing it on
// a miss. The caller must Release the reference exactly once.
func (c *TreeCache) Acquire(ctx context.Context, lang Language, source string) (*TreeRef, error) {
	if !lang.Valid() {
		return nil, apperrors.UnsupportedLanguageError(lang.String())
	}

	if ref, ok := c.lookup(lang, source); ok {
		c.hits.Add(1)
		c.metrics.TreeCacheHit(lang.String())
		return ref, nil
	}
	c.misses.Add(1)
	c.metrics.TreeCacheMiss(lang.String())

	key := hash.SourceKeyString(lang.String(), source)
	for attempt := 0; attempt < 3; attempt++ {
		v, err := c.loadShared(ctx, key, lang, source)
		if err != nil {
			return nil, err
		}
		tree := v.(*ParseTree)
		if tree.Source() != source {
			// key collision with a different source in flight
			return c.parseUncached(ctx, lang, source)
		}
		if err := tree.Ref(); err == nil {
			return newTreeRef(tree), nil
		}
		// evicted and destroyed between insertion and our claim
	}
	return c.parseUncached(ctx, lang, source)
}

// loadShared joins the in-flight load for key. The load runs detached from
// any one caller's cancellation, bounded by the parse timeout, and each
// caller stops waiting when its own ctx is done.
func (c *TreeCache) loadShared(ctx context.Context, key string, lang Language, source string) (any, error) {
	detached := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (any, error) {
		return c.load(detached, lang, source)
	})
	select {
	case res := <-ch:
		return res.Val, res.Err
	case <-ctx.Done():
		return nil, apperrors.Wrap(apperrors.CodeTimeout, "parse wait abandoned", ctx.Err()).
			WithDetail("language", lang.String())
	}
}

func (c *TreeCache) lookup(lang Language, source string) (*TreeRef, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	tree, ok := c.lru(lang).Get(source)
	if !ok {
		return nil, false
	}
	if err := tree.Ref(); err != nil {
		return nil, false
	}
	return newTreeRef(tree), true
}

func (c *TreeCache) peek(lang Language, source string) (*ParseTree, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru(lang).Get(source)
}

// load parses and inserts a tree, returning the cached entry. The returned
// tree carries only the cache's own reference.
func (c *TreeCache) load(ctx context.Context, lang Language, source string) (*ParseTree, error) {
	if tree, ok := c.peek(lang, source); ok {
		return tree, nil
	}

	grammar, err := c.loader.Load(lang)
	if err != nil {
		return nil, err
	}

	if tree, ok := c.peek(lang, source); ok {
		return tree, nil
	}

	fresh, err := c.parse(ctx, lang, grammar, source)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	l := c.lru(lang)
	if existing, ok := l.Get(source); ok {
		_ = fresh.Deref()
		return existing, nil
	}
	l.Add(source, fresh)
	c.metrics.TreeCacheSize(lang.String(), l.Len())
	return fresh, nil
}

func (c *TreeCache) parseUncached(ctx context.Context, lang Language, source string) (*TreeRef, error) {
	grammar, err := c.loader.Load(lang)
	if err != nil {
		return nil, err
	}
	tree, err := c.parse(ctx, lang, grammar, source)
	if err != nil {
		return nil, err
	}
	return newTreeRef(tree), nil
}

func (c *TreeCache) parse(ctx context.Context, lang Language, grammar *sitter.Language, source string) (*ParseTree, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(grammar)

	start := time.Now()
	raw, err := parser.ParseCtx(ctx, nil, []byte(source))
	if err != nil {
		if ctx.Err() != nil {
			return nil, apperrors.TimeoutError("parse").WithDetail("language", lang.String())
		}
		return nil, apperrors.ParseError("parse failed", err).WithDetail("language", lang.String())
	}
	if raw == nil {
		return nil, apperrors.ParseError("parser returned no tree", nil).WithDetail("language", lang.String())
	}

	id := c.nextID.Add(1)
	c.log.Debug("Parsed source",
		"language", lang.String(),
		"tree", id,
		"bytes", len(source),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return newParseTree(id, lang, source, raw), nil
}

// Len returns the number of cached trees for lang.
func (c *TreeCache) Len(lang Language) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if l, ok := c.lrus[lang]; ok {
		return l.Len()
	}
	return 0
}

// Stats returns a snapshot of cache counters and sizes.
func (c *TreeCache) Stats() TreeCacheStats {
	c.mu.Lock()
	entries := make(map[string]int, len(c.lrus))
	for lang, l := range c.lrus {
		entries[lang.String()] = l.Len()
	}
	c.mu.Unlock()

	return TreeCacheStats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
		Entries:   entries,
	}
}

// Purge drops the cache's reference to every tree. Trees still held by
// callers stay alive until released.
func (c *TreeCache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for lang, l := range c.lrus {
		l.Purge()
		c.metrics.TreeCacheSize(lang.String(), 0)
	}
}

func (c *TreeCache) String() string {
	s := c.Stats()
	return fmt.Sprintf("TreeCache{hits=%d misses=%d evictions=%d}", s.Hits, s.Misses, s.Evictions)
}
