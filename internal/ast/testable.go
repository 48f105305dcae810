package ast

import (
	"context"
	"sort"
	"strings"
)

// TestableIdentifier names a testable declaration.
type TestableIdentifier struct {
	Name  string      `json:"name"`
	Range OffsetRange `json:"range"`
}

// TestableNode is a declaration a test can be generated for.
type TestableNode struct {
	Identifier TestableIdentifier `json:"identifier"`
	Node       NodeInfo           `json:"node"`
}

// splitCapture splits "method.identifier" into its symbol kind and part.
func splitCapture(name string) (kind, part string, hasPart bool) {
	kind, part, hasPart = strings.Cut(name, ".")
	return kind, part, hasPart
}

func identsByKind(captures []Capture) map[string][]Capture {
	out := make(map[string][]Capture)
	for _, c := range captures {
		kind, part, _ := splitCapture(c.Name)
		if part == "identifier" {
			out[kind] = append(out[kind], c)
		}
	}
	return out
}

// identifierFor finds the identifier capture of kind inside decl.
func identifierFor(idents map[string][]Capture, kind string, decl Node) (Node, bool) {
	for _, id := range idents[kind] {
		if decl.Offsets().Contains(id.Node.Offsets()) {
			return id.Node, true
		}
	}
	return Node{}, false
}

func flatten(matches []Match) []Capture {
	var out []Capture
	for _, m := range matches {
		out = append(out, m.Captures...)
	}
	return out
}

func testableOf(ident, decl Node) *TestableNode {
	return &TestableNode{
		Identifier: TestableIdentifier{Name: ident.Text(), Range: ident.Offsets()},
		Node:       nodeInfo(decl),
	}
}

// TestableNode returns the smallest testable declaration containing r, or
// nil when there is none.
func (e *Engine) TestableNode(ctx context.Context, lang Language, source string, r OffsetRange) (*TestableNode, error) {
	if err := validateLanguage(lang); err != nil {
		return nil, err
	}
	if err := validateOffsets(source, r); err != nil {
		return nil, err
	}

	var best *TestableNode
	err := e.withMatches(ctx, lang, source, QueryTestableNodes, func(_ Node, matches []Match) error {
		captures := flatten(matches)
		idents := identsByKind(captures)

		bestLen := -1
		for _, c := range captures {
			kind, _, hasPart := splitCapture(c.Name)
			if hasPart || !c.Node.Offsets().Contains(r) {
				continue
			}
			if best != nil && bestLen < c.Node.Offsets().Len() {
				continue
			}
			ident, ok := identifierFor(idents, kind, c.Node)
			if !ok {
				e.log.Warn("Testable declaration has no identifier", "language", lang.String(), "kind", kind)
				best = nil
				return nil
			}
			best = testableOf(ident, c.Node)
			bestLen = c.Node.Offsets().Len()
		}
		return nil
	})
	return best, err
}

// TestableNodes lists every testable declaration in source.
func (e *Engine) TestableNodes(ctx context.Context, lang Language, source string) ([]TestableNode, error) {
	if err := validateLanguage(lang); err != nil {
		return nil, err
	}

	out := []TestableNode{}
	err := e.withMatches(ctx, lang, source, QueryTestableNodes, func(_ Node, matches []Match) error {
		var captures []Capture
		seen := make(map[OffsetRange]bool)
		for _, c := range flatten(matches) {
			r := c.Node.Offsets()
			if seen[r] {
				continue
			}
			seen[r] = true
			captures = append(captures, c)
		}
		idents := identsByKind(captures)

		for _, c := range captures {
			kind, _, hasPart := splitCapture(c.Name)
			if hasPart {
				continue
			}
			ident, ok := identifierFor(idents, kind, c.Node)
			if !ok {
				e.log.Warn("Testable declaration has no identifier", "language", lang.String(), "kind", kind)
				out = nil
				return nil
			}
			out = append(out, *testableOf(ident, c.Node))
		}
		return nil
	})
	return out, err
}

// FindLastTest returns the range of the test case that ends last, or nil.
func (e *Engine) FindLastTest(ctx context.Context, lang Language, source string) (*OffsetRange, error) {
	if err := validateLanguage(lang); err != nil {
		return nil, err
	}

	var last *OffsetRange
	err := e.withMatches(ctx, lang, source, QueryTestsInSuite, func(_ Node, matches []Match) error {
		captures := flatten(matches)
		sort.SliceStable(captures, func(i, j int) bool {
			return captures[i].Node.EndIndex() < captures[j].Node.EndIndex()
		})
		for _, c := range captures {
			if c.Name == "test" {
				r := c.Node.Offsets()
				last = &r
			}
		}
		return nil
	})
	return last, err
}
