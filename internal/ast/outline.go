package ast

import "context"

// Structure returns the outline of source, or nil for a language without
// atom queries. Results are served from the structure cache when present.
func (e *Engine) Structure(ctx context.Context, lang Language, source string) (*OverlayNode, error) {
	if err := validateLanguage(lang); err != nil {
		return nil, err
	}
	if len(Queries(QueryAtoms, lang)) == 0 {
		return nil, nil
	}

	cached, ok, err := e.structures.Get(ctx, lang, source)
	if err != nil {
		e.log.WithContext(ctx).Warn("Structure cache read failed", "language", lang.String(), "error", err)
	} else if ok && cached != nil {
		return cached, nil
	}

	var out *OverlayNode
	err = e.withTree(ctx, lang, source, func(root Node) error {
		var err error
		out, err = buildStructure(ctx, e.queries, root, lang)
		return err
	})
	if err != nil {
		return nil, err
	}

	if out != nil {
		if err := e.structures.Set(ctx, lang, source, out); err != nil {
			e.log.WithContext(ctx).Warn("Structure cache write failed", "language", lang.String(), "error", err)
		}
	}
	return out, nil
}

// SemanticChunkTree groups the semantic targets of source with their
// comments and bodies and nests them by containment.
func (e *Engine) SemanticChunkTree(ctx context.Context, lang Language, source string) (*QueryMatchTree, error) {
	if err := validateLanguage(lang); err != nil {
		return nil, err
	}
	var out *QueryMatchTree
	err := e.withMatches(ctx, lang, source, QuerySemanticTargets, func(root Node, matches []Match) error {
		out = FormQueryMatchTree(semanticGroups(lang, matches), chunkHeader(root))
		return nil
	})
	return out, err
}

// SemanticChunkNames is SemanticChunkTree with each group's name in place of
// its comments.
func (e *Engine) SemanticChunkNames(ctx context.Context, lang Language, source string) (*QueryMatchTree, error) {
	if err := validateLanguage(lang); err != nil {
		return nil, err
	}
	var out *QueryMatchTree
	err := e.withMatches(ctx, lang, source, QuerySemanticTargets, func(root Node, matches []Match) error {
		out = FormQueryMatchTree(blockNameGroups(lang, matches), chunkHeader(root))
		return nil
	})
	return out, err
}

// ParseErrorCount counts ERROR nodes in the tree for source.
func (e *Engine) ParseErrorCount(ctx context.Context, lang Language, source string) (int, error) {
	if err := validateLanguage(lang); err != nil {
		return 0, err
	}
	var count int
	err := e.withTree(ctx, lang, source, func(root Node) error {
		if root.HasError() {
			count = countErrors(root)
		}
		return nil
	})
	return count, err
}

func countErrors(n Node) int {
	count := 0
	if n.Type() == "ERROR" {
		count++
	}
	for _, c := range n.Children() {
		count += countErrors(c)
	}
	return count
}
