package ast

import (
	"context"
	"slices"
)

// Definition is a named span of source found by a query.
type Definition struct {
	Identifier string `json:"identifier"`
	Text       string `json:"text"`
	StartIndex int    `json:"startIndex"`
	EndIndex   int    `json:"endIndex"`
}

func definitionOfNode(identifier string, n Node) Definition {
	return Definition{Identifier: identifier, Text: n.Text(), StartIndex: n.StartIndex(), EndIndex: n.EndIndex()}
}

// FunctionDefinitions lists every function, method and lambda with its name.
func (e *Engine) FunctionDefinitions(ctx context.Context, lang Language, source string) ([]Definition, error) {
	if err := validateLanguage(lang); err != nil {
		return nil, err
	}
	out := []Definition{}
	err := e.withMatches(ctx, lang, source, QueryFunctions, func(_ Node, matches []Match) error {
		for _, m := range matches {
			fn, ok := m.Capture("function")
			if !ok {
				continue
			}
			var name string
			if id, ok := m.Capture("identifier"); ok {
				name = id.Text()
			}
			out = append(out, definitionOfNode(name, fn))
		}
		return nil
	})
	return out, err
}

// FunctionBodies lists the body range of every function that has one.
func (e *Engine) FunctionBodies(ctx context.Context, lang Language, source string) ([]OffsetRange, error) {
	if err := validateLanguage(lang); err != nil {
		return nil, err
	}
	out := []OffsetRange{}
	err := e.withMatches(ctx, lang, source, QueryFunctions, func(_ Node, matches []Match) error {
		for _, m := range matches {
			if body, ok := m.Capture("body"); ok {
				out = append(out, body.Offsets())
			}
		}
		return nil
	})
	return out, err
}

var classNameKinds = []string{"type_identifier", "identifier", "constant"}

// ClassDeclarations lists class declarations named by their first
// identifier-like child.
func (e *Engine) ClassDeclarations(ctx context.Context, lang Language, source string) ([]Definition, error) {
	if err := validateLanguage(lang); err != nil {
		return nil, err
	}
	out := []Definition{}
	err := e.withMatches(ctx, lang, source, QueryClassDeclarations, func(_ Node, matches []Match) error {
		for _, m := range matches {
			cls, ok := m.Capture("class_declaration")
			if !ok {
				continue
			}
			var name string
			for _, c := range cls.Children() {
				if slices.Contains(classNameKinds, c.Type()) {
					name = c.Text()
					break
				}
			}
			out = append(out, definitionOfNode(name, cls))
		}
		return nil
	})
	return out, err
}

// TypeDeclarations lists interfaces, aliases, structs and similar.
func (e *Engine) TypeDeclarations(ctx context.Context, lang Language, source string) ([]Definition, error) {
	if err := validateLanguage(lang); err != nil {
		return nil, err
	}
	out := []Definition{}
	err := e.withMatches(ctx, lang, source, QueryTypeDeclarations, func(_ Node, matches []Match) error {
		for _, m := range matches {
			decl, ok := m.Capture("type_declaration")
			if !ok {
				continue
			}
			var name string
			if id, ok := m.Capture("type_identifier"); ok {
				name = id.Text()
			}
			if name == "" {
				for _, c := range decl.Children() {
					if c.Type() == "type_identifier" {
						name = c.Text()
						break
					}
				}
			}
			out = append(out, definitionOfNode(name, decl))
		}
		return nil
	})
	return out, err
}

// intersecting collects the capture named by capture from every match
// intersecting sel. The identifier is the node text.
func (e *Engine) intersecting(ctx context.Context, lang Language, source string, sel OffsetRange, kind QueryKind, capture string) ([]Definition, error) {
	if err := validateLanguage(lang); err != nil {
		return nil, err
	}
	if err := validateOffsets(source, sel); err != nil {
		return nil, err
	}
	out := []Definition{}
	err := e.withMatches(ctx, lang, source, kind, func(_ Node, matches []Match) error {
		for _, m := range matches {
			n, ok := m.Capture(capture)
			if !ok || !sel.Intersects(n.Offsets()) {
				continue
			}
			out = append(out, definitionOfNode(n.Text(), n))
		}
		return nil
	})
	return out, err
}

// TypeReferences lists the type identifiers intersecting sel.
func (e *Engine) TypeReferences(ctx context.Context, lang Language, source string, sel OffsetRange) ([]Definition, error) {
	return e.intersecting(ctx, lang, source, sel, QueryTypeReferences, "type_identifier")
}

// ClassReferences lists the instantiations intersecting sel.
func (e *Engine) ClassReferences(ctx context.Context, lang Language, source string, sel OffsetRange) ([]Definition, error) {
	return e.intersecting(ctx, lang, source, sel, QueryClassReferences, "new_expression")
}

// Symbols lists the identifiers intersecting sel.
func (e *Engine) Symbols(ctx context.Context, lang Language, source string, sel OffsetRange) ([]Definition, error) {
	return e.intersecting(ctx, lang, source, sel, QuerySymbols, "symbol")
}

// CallExpressions lists calls intersecting sel. The range is that of the
// callee identifier when the query captured one. For ruby `send :name` the
// identifier is the symbol without its colon.
func (e *Engine) CallExpressions(ctx context.Context, lang Language, source string, sel OffsetRange) ([]Definition, error) {
	if err := validateLanguage(lang); err != nil {
		return nil, err
	}
	if err := validateOffsets(source, sel); err != nil {
		return nil, err
	}
	out := []Definition{}
	err := e.withMatches(ctx, lang, source, QueryCallExpressions, func(_ Node, matches []Match) error {
		for _, m := range matches {
			call, ok := m.Capture("call_expression")
			if !ok || !sel.Intersects(call.Offsets()) {
				continue
			}

			var (
				name   string
				named  bool
				idNode Node
			)
			if lang == LangRuby {
				if sym, ok := m.Capture("symbol"); ok {
					idNode = sym
					if text := sym.Text(); len(text) > 0 {
						name = text[1:]
					}
					named = true
				}
			}
			if idNode.IsNull() {
				if id, ok := m.Capture("identifier"); ok {
					idNode = id
				}
			}
			if !named && !idNode.IsNull() {
				name = idNode.Text()
			}

			span := call
			if !idNode.IsNull() {
				span = idNode
			}
			out = append(out, Definition{
				Identifier: name,
				Text:       call.Text(),
				StartIndex: span.StartIndex(),
				EndIndex:   span.EndIndex(),
			})
		}
		return nil
	})
	return out, err
}
