package ast

import (
	"slices"
	"sort"
	"strings"
)

// ChunkHeaderInfo describes one block of source by both coordinate systems
// and carries its text.
type ChunkHeaderInfo struct {
	Range      PointRange `json:"range"`
	StartIndex int        `json:"startIndex"`
	Text       string     `json:"text"`
	EndIndex   int        `json:"endIndex"`
}

func chunkHeader(n Node) ChunkHeaderInfo {
	return ChunkHeaderInfo{
		Range:      n.Points(),
		StartIndex: n.StartIndex(),
		Text:       n.Text(),
		EndIndex:   n.EndIndex(),
	}
}

func chunkHeaders(nodes []Node) []ChunkHeaderInfo {
	out := make([]ChunkHeaderInfo, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, chunkHeader(n))
	}
	return out
}

// DetailBlocks are the parts of a semantic group besides its main block.
// Which fields are set depends on the language.
type DetailBlocks struct {
	Comments  []ChunkHeaderInfo `json:"comments,omitempty"`
	Docstring *ChunkHeaderInfo  `json:"docstring,omitempty"`
	Decorator *ChunkHeaderInfo  `json:"decorator,omitempty"`
	Body      ChunkHeaderInfo   `json:"body"`
	Name      *string           `json:"name,omitempty"`
}

// SemanticGroup is a definition and its detail blocks.
type SemanticGroup struct {
	MainBlock    ChunkHeaderInfo `json:"mainBlock"`
	DetailBlocks DetailBlocks    `json:"detailBlocks"`
}

// QueryMatchNode is a group nested under the group that contains it.
type QueryMatchNode struct {
	Info     SemanticGroup     `json:"info"`
	Children []*QueryMatchNode `json:"children"`
}

// QueryMatchTree nests semantic groups by containment.
type QueryMatchTree struct {
	Roots          []*QueryMatchNode `json:"roots"`
	SyntaxTreeRoot ChunkHeaderInfo   `json:"syntaxTreeRoot"`
}

// FormQueryMatchTree sorts groups in place and nests them. Overlapping
// groups are assumed to nest fully; a group with the same range as the
// current parent is dropped.
func FormQueryMatchTree(groups []SemanticGroup, syntaxRoot ChunkHeaderInfo) *QueryMatchTree {
	sort.SliceStable(groups, func(i, j int) bool {
		a, b := groups[i].MainBlock, groups[j].MainBlock
		if a.StartIndex != b.StartIndex {
			return a.StartIndex < b.StartIndex
		}
		return a.EndIndex < b.EndIndex
	})

	tree := &QueryMatchTree{Roots: []*QueryMatchNode{}, SyntaxTreeRoot: syntaxRoot}
	var stack []*QueryMatchNode
	peek := func() *QueryMatchNode {
		if len(stack) == 0 {
			return nil
		}
		return stack[len(stack)-1]
	}

	for _, g := range groups {
		node := &QueryMatchNode{Info: g, Children: []*QueryMatchNode{}}
		parent := peek()
		if parent == nil {
			tree.Roots = append(tree.Roots, node)
			stack = append(stack, node)
			continue
		}
		pm := parent.Info.MainBlock
		if pm.StartIndex == g.MainBlock.StartIndex && pm.EndIndex == g.MainBlock.EndIndex {
			continue
		}
		for parent != nil && !headerContains(parent.Info.MainBlock, g.MainBlock) {
			stack = stack[:len(stack)-1]
			parent = peek()
		}
		if parent != nil {
			parent.Children = append(parent.Children, node)
		} else {
			tree.Roots = append(tree.Roots, node)
		}
		stack = append(stack, node)
	}
	return tree
}

func headerContains(outer, inner ChunkHeaderInfo) bool {
	return outer.StartIndex <= inner.StartIndex && inner.EndIndex <= outer.EndIndex
}

// groupSet keeps the first group seen for each definition node.
type groupSet struct {
	seen   map[nodeKey]int
	groups []SemanticGroup
}

func newGroupSet() *groupSet {
	return &groupSet{seen: make(map[nodeKey]int)}
}

func (s *groupSet) add(def Node, g SemanticGroup) {
	k := def.key()
	if _, ok := s.seen[k]; ok {
		return
	}
	s.seen[k] = len(s.groups)
	s.groups = append(s.groups, g)
}

func definitionOf(m Match) (Node, bool) {
	return m.Capture("definition")
}

func semanticGroups(lang Language, matches []Match) []SemanticGroup {
	switch lang {
	case LangPython:
		return pythonGroups(matches)
	case LangRuby:
		return rubyGroups(matches)
	default:
		return genericGroups(lang, matches)
	}
}

func genericGroups(lang Language, matches []Match) []SemanticGroup {
	set := newGroupSet()
	for _, m := range matches {
		def, ok := definitionOf(m)
		if !ok {
			continue
		}
		body := def.ChildByField("body")
		if body.IsNull() {
			continue
		}

		var comments []Node
		switch lang {
		case LangTypeScript, LangJavaScript:
			def, comments = liftExport(def)
		case LangJava, LangRust:
			comments = precedingComments(def, "block_comment", "line_comment")
		default:
			comments = precedingComments(def, "comment")
		}

		set.add(def, SemanticGroup{
			MainBlock: chunkHeader(def),
			DetailBlocks: DetailBlocks{
				Comments: chunkHeaders(comments),
				Body:     chunkHeader(body),
			},
		})
	}
	return set.groups
}

func pythonGroups(matches []Match) []SemanticGroup {
	set := newGroupSet()
	for _, m := range matches {
		def, ok := definitionOf(m)
		if !ok {
			continue
		}
		body := def.ChildByField("body")
		if body.IsNull() {
			continue
		}

		details := DetailBlocks{Body: chunkHeader(body)}
		if doc, ok := docstring(body); ok {
			h := chunkHeader(doc)
			details.Docstring = &h
		}
		if prev := def.PrevNamedSibling(); !prev.IsNull() && prev.Type() == "decorator" {
			h := chunkHeader(prev)
			details.Decorator = &h
		}
		set.add(def, SemanticGroup{MainBlock: chunkHeader(def), DetailBlocks: details})
	}
	return set.groups
}

func docstring(body Node) (Node, bool) {
	first := body.FirstChild()
	if first.IsNull() || first.Type() != "expression_statement" {
		return Node{}, false
	}
	s := first.FirstChild()
	if s.IsNull() || s.Type() != "string" {
		return Node{}, false
	}
	return s, true
}

func rubyGroups(matches []Match) []SemanticGroup {
	set := newGroupSet()
	for _, m := range matches {
		def, ok := definitionOf(m)
		if !ok {
			continue
		}
		named := def.NamedChildren()
		first, ok := rubyBodyStart(named)
		if !ok {
			continue
		}
		last := named[len(named)-1]

		body := ChunkHeaderInfo{
			Range:      PointRange{StartPosition: first.StartPosition(), EndPosition: last.EndPosition()},
			StartIndex: first.StartIndex(),
			Text:       def.tree.text[first.StartIndex():last.EndIndex()],
			EndIndex:   last.EndIndex(),
		}
		set.add(def, SemanticGroup{
			MainBlock: chunkHeader(def),
			DetailBlocks: DetailBlocks{
				Comments: chunkHeaders(precedingComments(def, "comment")),
				Body:     body,
			},
		})
	}
	return set.groups
}

// rubyBodyStart skips the name and any parameter lists.
func rubyBodyStart(named []Node) (Node, bool) {
	for i := 1; i < len(named); i++ {
		if !strings.Contains(named[i].Type(), "parameters") {
			return named[i], true
		}
	}
	return Node{}, false
}

// precedingComments returns the run of comment siblings directly above def,
// in source order.
func precedingComments(def Node, kinds ...string) []Node {
	var out []Node
	for prev := def.PrevNamedSibling(); !prev.IsNull() && slices.Contains(kinds, prev.Type()); prev = prev.PrevNamedSibling() {
		out = append(out, prev)
	}
	slices.Reverse(out)
	return out
}

// liftExport widens a definition to its export statement, taking the
// comments above the export instead.
func liftExport(def Node) (Node, []Node) {
	if parent := def.Parent(); !parent.IsNull() && parent.Type() == "export_statement" {
		return parent, precedingComments(parent, "comment")
	}
	return def, precedingComments(def, "comment")
}

func blockNameGroups(lang Language, matches []Match) []SemanticGroup {
	set := newGroupSet()
	for _, m := range matches {
		def, ok := definitionOf(m)
		if !ok {
			continue
		}

		var name Node
		switch {
		case lang == LangCpp && def.Type() == "function_definition":
			if decl := def.ChildByField("declarator"); !decl.IsNull() {
				name = decl.ChildByField("declarator")
			}
		case lang == LangRust && def.Type() == "impl_item":
			name = def.ChildByField("trait")
		default:
			name = def.ChildByField("name")
		}

		body := def.ChildByField("body")
		if body.IsNull() {
			continue
		}
		if lang == LangTypeScript || lang == LangJavaScript {
			def, _ = liftExport(def)
		}

		details := DetailBlocks{Body: chunkHeader(body)}
		if !name.IsNull() {
			text := name.Text()
			details.Name = &text
		}
		set.add(def, SemanticGroup{MainBlock: chunkHeader(def), DetailBlocks: details})
	}
	return set.groups
}
