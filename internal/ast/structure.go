package ast

import (
	"context"
	"sort"
	"strings"
)

// StructureCache stores computed outlines keyed by language and exact source.
// Get reports a miss with ok == false; a non-nil error is treated as a miss
// by the engine.
type StructureCache interface {
	Get(ctx context.Context, lang Language, source string) (*OverlayNode, bool, error)
	Set(ctx context.Context, lang Language, source string, node *OverlayNode) error
}

type nopStructureCache struct{}

func (nopStructureCache) Get(context.Context, Language, string) (*OverlayNode, bool, error) {
	return nil, false, nil
}

func (nopStructureCache) Set(context.Context, Language, string, *OverlayNode) error { return nil }

var ambientParents = map[string]bool{
	"export_statement":    true,
	"ambient_declaration": true,
}

// buildStructure turns the atom captures of a tree into a nested outline.
// Each node is widened to swallow the whitespace that separates it from its
// siblings, so the outline covers the source without gaps where possible.
func buildStructure(ctx context.Context, qc *QueryCache, root Node, lang Language) (*OverlayNode, error) {
	queries := Queries(QueryAtoms, lang)
	if len(queries) == 0 {
		return nil, nil
	}

	matches, err := qc.RunQueries(ctx, root, queries)
	if err != nil {
		return nil, err
	}
	var captures []Capture
	for _, m := range matches {
		captures = append(captures, m.Captures...)
	}
	sort.SliceStable(captures, func(i, j int) bool {
		return CompareOffsets(captures[i].Node.Offsets(), captures[j].Node.Offsets()) < 0
	})

	excluded := make(map[OffsetRange]bool)
	for _, c := range captures {
		if strings.HasSuffix(c.Name, ".exclude_captures") {
			excluded[c.Node.Offsets()] = true
		}
	}

	source := root.tree.text
	top, err := NewOverlayNode(0, len(source), "root", nil)
	if err != nil {
		return nil, err
	}
	stack := []*OverlayNode{top}

	for _, c := range captures {
		node := c.Node
		r := node.Offsets()
		if excluded[r] {
			continue
		}

		var parent *OverlayNode
		for len(stack) > 0 {
			parent = stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if parent.contains(r) {
				break
			}
		}
		if parent == nil {
			// root spans the whole source, so this only happens on a corrupt stack
			parent = top
		}

		if ambientParents[parent.Kind] {
			parent.Kind = node.Type()
			stack = append(stack, parent)
			continue
		}

		start := r.StartIndex
		if prev := node.PrevSibling(); !prev.IsNull() {
			gap := source[prev.EndIndex():r.StartIndex]
			if nl := strings.IndexByte(gap, '\n'); nl == -1 {
				start = prev.EndIndex()
			} else {
				start = prev.EndIndex() + nl + 1
			}
		}

		end := r.EndIndex
		if next := node.NextSibling(); !next.IsNull() {
			if swallowsTrailing(lang) {
				for !next.IsNull() && isTrailingPunctuation(next, source, end) {
					excluded[next.Offsets()] = true
					end = next.EndIndex()
					next = next.NextSibling()
				}
			}
			if !next.IsNull() {
				gap := source[end:next.StartIndex()]
				if nl := strings.IndexByte(gap, '\n'); nl != -1 {
					end += nl + 1
				}
			}
		}

		child, err := NewOverlayNode(start, end, structureKind(node, lang), nil)
		if err != nil {
			return nil, err
		}
		parent.Children = append(parent.Children, child)
		stack = append(stack, parent, child)
	}
	return top, nil
}

func swallowsTrailing(lang Language) bool {
	return lang.isJSFamily() || lang == LangCpp
}

func isTrailingPunctuation(n Node, source string, end int) bool {
	switch n.Type() {
	case ";", ",":
		return true
	case "comment":
		return !strings.Contains(source[end:n.StartIndex()], "\n")
	}
	return false
}

func structureKind(n Node, lang Language) string {
	kind := n.Type()
	if lang.isJSFamily() && kind == "method_definition" {
		for _, c := range n.NamedChildren() {
			if c.Type() == "property_identifier" && c.Text() == "constructor" {
				return "constructor"
			}
		}
	}
	return kind
}
