package ast

import (
	"context"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"

	apperrors "github.com/ricesearch/rice-syntax/internal/pkg/errors"
)

// QueryMetrics is notified whenever a query is compiled.
type QueryMetrics interface {
	QueryCompiled(lang string)
}

type queryKey struct {
	lang   Language
	source string
}

// QueryCache compiles each (language, query source) pair once and keeps it
// for the life of the cache.
type QueryCache struct {
	mu       sync.Mutex
	compiled map[queryKey]*sitter.Query
	loader   GrammarLoader
	metrics  QueryMetrics
}

// NewQueryCache creates a query cache. metrics may be nil.
func NewQueryCache(loader GrammarLoader, metrics QueryMetrics) *QueryCache {
	return &QueryCache{
		compiled: make(map[queryKey]*sitter.Query),
		loader:   loader,
		metrics:  metrics,
	}
}

// Get returns the compiled form of source for lang.
func (c *QueryCache) Get(lang Language, source string) (*sitter.Query, error) {
	key := queryKey{lang: lang, source: source}

	c.mu.Lock()
	defer c.mu.Unlock()

	if q, ok := c.compiled[key]; ok {
		return q, nil
	}

	grammar, err := c.loader.Load(lang)
	if err != nil {
		return nil, err
	}
	q, err := sitter.NewQuery([]byte(source), grammar)
	if err != nil {
		return nil, apperrors.QueryError("query compilation failed", err).WithDetail("language", lang.String())
	}
	c.compiled[key] = q
	if c.metrics != nil {
		c.metrics.QueryCompiled(lang.String())
	}
	return q, nil
}

// Len returns the number of compiled queries.
func (c *QueryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.compiled)
}

// Close frees every compiled query.
func (c *QueryCache) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, q := range c.compiled {
		q.Close()
		delete(c.compiled, key)
	}
}

// Capture is a named node produced by a query match.
type Capture struct {
	Name string
	Node Node
}

// Match is one instantiation of a query pattern.
type Match struct {
	Pattern  int
	Captures []Capture
}

// Capture returns the first capture with the given name.
func (m Match) Capture(name string) (Node, bool) {
	for _, c := range m.Captures {
		if c.Name == name {
			return c.Node, true
		}
	}
	return Node{}, false
}

// RunQueries executes each query against root and concatenates the matches
// in query order, then engine order. Results are not sorted. Matches whose
// predicates fail are dropped.
func (c *QueryCache) RunQueries(ctx context.Context, root Node, queries []string) ([]Match, error) {
	var out []Match
	lang := root.tree.lang
	for _, source := range queries {
		q, err := c.Get(lang, source)
		if err != nil {
			return nil, err
		}
		matches, err := execQuery(ctx, q, root)
		if err != nil {
			return nil, err
		}
		out = append(out, matches...)
	}
	return out, nil
}

func execQuery(ctx context.Context, q *sitter.Query, root Node) ([]Match, error) {
	cursor := sitter.NewQueryCursor()
	defer cursor.Close()

	cursor.Exec(q, root.raw())

	var out []Match
	for i := 0; ; i++ {
		if i%64 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, apperrors.TimeoutError("query").WithDetail("cause", err.Error())
			}
		}
		m, ok := cursor.NextMatch()
		if !ok {
			break
		}
		m = cursor.FilterPredicates(m, root.tree.source)
		if len(m.Captures) == 0 {
			continue
		}
		match := Match{Pattern: int(m.PatternIndex), Captures: make([]Capture, 0, len(m.Captures))}
		for _, c := range m.Captures {
			match.Captures = append(match.Captures, Capture{
				Name: q.CaptureNameForId(c.Index),
				Node: root.wrap(c.Node),
			})
		}
		out = append(out, match)
	}
	return out, nil
}
