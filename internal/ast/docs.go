package ast

import (
	"context"
	"regexp"
)

// NodeInfo is the wire view of a syntax node.
type NodeInfo struct {
	Type       string `json:"type"`
	StartIndex int    `json:"startIndex"`
	EndIndex   int    `json:"endIndex"`
}

func nodeInfo(n Node) NodeInfo {
	return NodeInfo{Type: n.Type(), StartIndex: n.StartIndex(), EndIndex: n.EndIndex()}
}

// How NodeToDocument picked its node.
const (
	SelectionMatching = "matchingSelection"
	SelectionExpanded = "expanding"
)

// NodeToDocumentResult is the declaration a doc comment should attach to.
type NodeToDocumentResult struct {
	NodeIdentifier  string   `json:"nodeIdentifier"`
	NodeToDocument  NodeInfo `json:"nodeToDocument"`
	NodeSelectionBy string   `json:"nodeSelectionBy"`
}

// IdentifierResult names the identifier under a range and the declaration
// that owns it.
type IdentifierResult struct {
	Identifier string       `json:"identifier"`
	NodeRange  *OffsetRange `json:"nodeRange,omitempty"`
}

// NodeToExplainResult is the definition that best covers a selection.
type NodeToExplainResult struct {
	NodeIdentifier string   `json:"nodeIdentifier"`
	NodeToExplain  NodeInfo `json:"nodeToExplain"`
}

var identifierPattern = regexp.MustCompile(`identifier`)

// NodeToDocument finds the declaration best matching sel. A non-empty
// selection is matched by overlap score first; otherwise the smallest node
// around sel is climbed until a documentable ancestor or the root.
func (e *Engine) NodeToDocument(ctx context.Context, lang Language, source string, sel OffsetRange) (*NodeToDocumentResult, error) {
	if err := validateLanguage(lang); err != nil {
		return nil, err
	}
	if err := validateOffsets(source, sel); err != nil {
		return nil, err
	}

	var res *NodeToDocumentResult
	err := e.withTree(ctx, lang, source, func(root Node) error {
		if sel.Len() > 0 {
			if n, ok := MatchSelection(root, sel, lang, IsDocumentable); ok {
				res = &NodeToDocumentResult{
					NodeIdentifier:  ExtractIdentifier(n, lang),
					NodeToDocument:  nodeInfo(n),
					NodeSelectionBy: SelectionMatching,
				}
				return nil
			}
		}

		n := root.DescendantForRange(sel.StartIndex, sel.EndIndex)
		for !IsDocumentable(n, lang) {
			parent := n.Parent()
			if parent.IsNull() {
				break
			}
			n = parent
		}
		res = &NodeToDocumentResult{
			NodeIdentifier:  ExtractIdentifier(n, lang),
			NodeToDocument:  nodeInfo(n),
			NodeSelectionBy: SelectionExpanded,
		}
		return nil
	})
	return res, err
}

// DocumentableNodeIfOnIdentifier returns the identifier under r when it names
// a documentable declaration, or nil.
func (e *Engine) DocumentableNodeIfOnIdentifier(ctx context.Context, lang Language, source string, r OffsetRange) (*IdentifierResult, error) {
	if err := validateLanguage(lang); err != nil {
		return nil, err
	}
	if err := validateOffsets(source, r); err != nil {
		return nil, err
	}

	var res *IdentifierResult
	err := e.withTree(ctx, lang, source, func(root Node) error {
		n := root.DescendantForRange(r.StartIndex, r.EndIndex)
		if !identifierPattern.MatchString(n.Type()) {
			return nil
		}
		parent := n.Parent()
		if !parent.IsNull() && !IsDocumentable(parent, lang) {
			return nil
		}
		res = &IdentifierResult{Identifier: n.Text()}
		if !parent.IsNull() {
			pr := parent.Offsets()
			res.NodeRange = &pr
		}
		return nil
	})
	return res, err
}

// NodeToExplain returns the definition best covering sel together with the
// name of the declaration it matched, or nil for an empty selection.
func (e *Engine) NodeToExplain(ctx context.Context, lang Language, source string, sel OffsetRange) (*NodeToExplainResult, error) {
	if err := validateLanguage(lang); err != nil {
		return nil, err
	}
	if err := validateOffsets(source, sel); err != nil {
		return nil, err
	}
	if sel.Len() == 0 {
		return nil, nil
	}

	var res *NodeToExplainResult
	err := e.withTree(ctx, lang, source, func(root Node) error {
		ident, ok := MatchSelection(root, sel, lang, IsDocumentable)
		if !ok {
			return nil
		}
		def, ok := MatchSelection(root, sel, lang, IsExplainable)
		if !ok {
			return nil
		}
		res = &NodeToExplainResult{
			NodeIdentifier: ExtractIdentifier(ident, lang),
			NodeToExplain:  nodeInfo(def),
		}
		return nil
	})
	return res, err
}

// DocComments returns the ranges of the doc comments in source, in match
// order without duplicates.
func (e *Engine) DocComments(ctx context.Context, lang Language, source string) ([]OffsetRange, error) {
	if err := validateLanguage(lang); err != nil {
		return nil, err
	}

	out := []OffsetRange{}
	err := e.withMatches(ctx, lang, source, QueryDocComments, func(_ Node, matches []Match) error {
		seen := make(map[OffsetRange]bool)
		for _, m := range matches {
			n, ok := m.Capture("docComment")
			if !ok {
				continue
			}
			r := n.Offsets()
			if seen[r] {
				continue
			}
			seen[r] = true
			out = append(out, r)
		}
		return nil
	})
	return out, err
}
