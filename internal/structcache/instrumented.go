package structcache

import (
	"context"

	"github.com/ricesearch/rice-syntax/internal/ast"
)

// LookupRecorder records cache lookups.
type LookupRecorder interface {
	RecordStructureLookup(backend string, hit bool)
}

// Instrumented counts hits and misses of the wrapped store.
type Instrumented struct {
	Store
	metrics LookupRecorder
}

// NewInstrumented wraps s. A nil recorder returns s unchanged.
func NewInstrumented(s Store, metrics LookupRecorder) Store {
	if metrics == nil {
		return s
	}
	return &Instrumented{Store: s, metrics: metrics}
}

func (i *Instrumented) Get(ctx context.Context, lang ast.Language, source string) (*ast.OverlayNode, bool, error) {
	node, ok, err := i.Store.Get(ctx, lang, source)
	i.metrics.RecordStructureLookup(i.Store.Name(), ok && err == nil)
	return node, ok, err
}
