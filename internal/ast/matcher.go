package ast

import (
	"math"
	"regexp"
	"sort"
)

// NodePredicate selects candidate nodes during selection matching.
type NodePredicate func(n Node, lang Language) bool

var (
	jsDocumentable      = regexp.MustCompile(`definition|declaration|declarator|export_statement`)
	goDocumentable      = regexp.MustCompile(`definition|declaration|declarator|var_spec`)
	cppDocumentable     = regexp.MustCompile(`definition|declaration|class_specifier`)
	rubyDocumentable    = regexp.MustCompile(`module|class|method|assignment`)
	defaultDocumentable = regexp.MustCompile(`definition|declaration|declarator`)
	explainable         = regexp.MustCompile(`definition`)

	identifierKind     = regexp.MustCompile(`identifier`)
	specKind           = regexp.MustCompile(`spec`)
	declaratorKind     = regexp.MustCompile(`declarator`)
	rubyIdentifierKind = regexp.MustCompile(`constant|identifier`)
)

// IsDocumentable reports whether n is a declaration a doc comment can attach to.
func IsDocumentable(n Node, lang Language) bool {
	kind := n.Type()
	switch lang {
	case LangTypeScript, LangTSX, LangJavaScript:
		return jsDocumentable.MatchString(kind)
	case LangGo:
		return goDocumentable.MatchString(kind)
	case LangCpp:
		return cppDocumentable.MatchString(kind)
	case LangRuby:
		return rubyDocumentable.MatchString(kind)
	default:
		return defaultDocumentable.MatchString(kind)
	}
}

// IsExplainable reports whether n is a full definition.
func IsExplainable(n Node, _ Language) bool {
	return explainable.MatchString(n.Type())
}

// ExtractIdentifier returns the declared name of a documentable node, or ""
// when none is found.
func ExtractIdentifier(n Node, lang Language) string {
	switch lang {
	case LangPython, LangCSharp:
		if id, ok := findChild(n, identifierKind); ok {
			return id.Text()
		}
	case LangGo:
		if id, ok := findChild(n, identifierKind); ok {
			return id.Text()
		}
		if spec, ok := findChild(n, specKind); ok {
			if id, ok := findChild(spec, identifierKind); ok {
				return id.Text()
			}
		}
	case LangJavaScript, LangTypeScript, LangTSX, LangCpp:
		// A declarator without a direct identifier, such as a pointer
		// declarator, has no name here.
		if decl, ok := findChild(n, declaratorKind); ok {
			if id, ok := findChild(decl, identifierKind); ok {
				return id.Text()
			}
			return ""
		}
		if id, ok := findChild(n, identifierKind); ok {
			return id.Text()
		}
	case LangJava:
		for _, c := range n.Children() {
			if c.Type() == "identifier" {
				return c.Text()
			}
		}
	case LangRuby:
		if id, ok := findChild(n, rubyIdentifierKind); ok {
			return id.Text()
		}
	default:
		if id, ok := findChild(n, identifierKind); ok {
			return id.Text()
		}
	}
	return ""
}

func findChild(n Node, kind *regexp.Regexp) (Node, bool) {
	for _, c := range n.Children() {
		if kind.MatchString(c.Type()) {
			return c, true
		}
	}
	return Node{}, false
}

type scoredNode struct {
	node    Node
	overlap int
	score   float64
}

// MatchSelection walks the tree breadth first, scores every node overlapping
// sel and returns the best scoring node accepted by pred.
func MatchSelection(root Node, sel OffsetRange, lang Language, pred NodePredicate) (Node, bool) {
	var recorded []scoredNode
	frontier := []Node{root}

	for {
		candidates := make([]scoredNode, 0, len(frontier))
		for _, n := range frontier {
			overlap := n.Offsets().IntersectionSize(sel)
			if overlap > 0 {
				candidates = append(candidates, scoredNode{node: n, overlap: overlap})
			}
		}
		sort.SliceStable(candidates, func(i, j int) bool {
			return candidates[i].overlap > candidates[j].overlap
		})

		if len(candidates) == 0 {
			break
		}

		var next []Node
		for i := range candidates {
			c := &candidates[i]
			c.score = selectionScore(c.overlap, sel.Len(), c.node.Offsets().Len())
			if pred(c.node, lang) {
				recorded = append(recorded, *c)
			}
			next = append(next, c.node.Children()...)
		}
		frontier = next
	}

	if len(recorded) == 0 {
		return Node{}, false
	}
	best := recorded[0]
	for _, r := range recorded[1:] {
		if r.score > best.score {
			best = r
		}
	}
	return best.node, true
}

func selectionScore(overlap, selLen, nodeLen int) float64 {
	if nodeLen == 0 {
		return math.Inf(-1)
	}
	nonOverlap := selLen - overlap
	if nonOverlap < 0 {
		nonOverlap = -nonOverlap
	}
	return float64(overlap-nonOverlap) / float64(nodeLen)
}
