package ast

import (
	"fmt"
	"strings"

	apperrors "github.com/ricesearch/rice-syntax/internal/pkg/errors"
)

// OverlayNode is one entry of a document outline. Children are ordered and
// never overlap, and every child lies inside its parent.
type OverlayNode struct {
	StartIndex int            `json:"startIndex"`
	EndIndex   int            `json:"endIndex"`
	Kind       string         `json:"kind"`
	Children   []*OverlayNode `json:"children"`
}

// NewOverlayNode builds a node and checks it against its direct children.
func NewOverlayNode(start, end int, kind string, children []*OverlayNode) (*OverlayNode, error) {
	n := &OverlayNode{StartIndex: start, EndIndex: end, Kind: kind, Children: children}
	if n.Children == nil {
		n.Children = []*OverlayNode{}
	}
	if err := n.check(); err != nil {
		return nil, err
	}
	return n, nil
}

func (n *OverlayNode) check() error {
	if n.StartIndex > n.EndIndex {
		return apperrors.BugError("overlay start index is after its end index").
			WithDetail("kind", n.Kind)
	}
	minStart := n.StartIndex
	for _, child := range n.Children {
		if child.StartIndex < minStart {
			return apperrors.BugError("invalid child start index").
				WithDetail("kind", child.Kind).
				WithDetail("start", fmt.Sprint(child.StartIndex))
		}
		if child.EndIndex > n.EndIndex {
			return apperrors.BugError("invalid child end index").
				WithDetail("kind", child.Kind).
				WithDetail("end", fmt.Sprint(child.EndIndex))
		}
		minStart = max(minStart, child.EndIndex)
	}
	return nil
}

// Validate checks the containment and ordering invariants on the whole subtree.
func (n *OverlayNode) Validate() error {
	if err := n.check(); err != nil {
		return err
	}
	for _, child := range n.Children {
		if err := child.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// contains uses the overlay's own, possibly widened, bounds.
func (n *OverlayNode) contains(r OffsetRange) bool {
	return n.StartIndex <= r.StartIndex && r.EndIndex <= n.EndIndex
}

// String renders one "kind [start, end]" line per node, children indented by
// four spaces.
func (n *OverlayNode) String() string {
	var lines []string
	var walk func(*OverlayNode, string)
	walk = func(node *OverlayNode, indent string) {
		lines = append(lines, fmt.Sprintf("%s%s [%d, %d]", indent, node.Kind, node.StartIndex, node.EndIndex))
		for _, child := range node.Children {
			walk(child, indent+"    ")
		}
	}
	walk(n, "")
	return strings.Join(lines, "\n")
}

// Size counts the nodes below n, n excluded.
func (n *OverlayNode) Size() int {
	if n == nil {
		return 0
	}
	total := len(n.Children)
	for _, child := range n.Children {
		total += child.Size()
	}
	return total
}
