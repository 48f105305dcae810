package ast

import (
	"fmt"
	"sync"
	"sync/atomic"

	sitter "github.com/smacker/go-tree-sitter"

	apperrors "github.com/ricesearch/rice-syntax/internal/pkg/errors"
)

// ParseTree owns a parsed syntax tree and the source it was parsed from.
// It is destroyed exactly when its reference count drops to zero.
type ParseTree struct {
	id     uint64
	lang   Language
	source []byte
	text   string
	tree   *sitter.Tree

	refMu sync.Mutex
	refs  int
	dead  atomic.Bool

	// The binding memoizes node wrappers in an unsynchronized per-tree map,
	// so every walk over the tree holds useMu.
	useMu sync.Mutex
}

func newParseTree(id uint64, lang Language, source string, tree *sitter.Tree) *ParseTree {
	return &ParseTree{
		id:     id,
		lang:   lang,
		source: []byte(source),
		text:   source,
		tree:   tree,
		refs:   1,
	}
}

// ID identifies the tree within its cache.
func (t *ParseTree) ID() uint64 { return t.id }

// Language returns the grammar the tree was parsed with.
func (t *ParseTree) Language() Language { return t.lang }

// Source returns the parsed text.
func (t *ParseTree) Source() string { return t.text }

// Alive reports whether the tree still has a holder.
func (t *ParseTree) Alive() bool { return !t.dead.Load() }

// Refs returns the current reference count.
func (t *ParseTree) Refs() int {
	t.refMu.Lock()
	defer t.refMu.Unlock()
	return t.refs
}

// Ref adds a holder.
func (t *ParseTree) Ref() error {
	t.refMu.Lock()
	defer t.refMu.Unlock()

	if t.refs <= 0 {
		return apperrors.DisposedError("cannot ref disposed tree").WithDetail("tree", fmt.Sprint(t.id))
	}
	t.refs++
	return nil
}

// Deref drops a holder and closes the tree when none remain.
func (t *ParseTree) Deref() error {
	t.refMu.Lock()
	defer t.refMu.Unlock()

	if t.refs <= 0 {
		return apperrors.DisposedError("cannot deref disposed tree").WithDetail("tree", fmt.Sprint(t.id))
	}
	t.refs--
	if t.refs == 0 {
		t.dead.Store(true)
		t.tree.Close()
	}
	return nil
}

// Root returns the root node.
func (t *ParseTree) Root() Node {
	t.mustBeAlive()
	return Node{tree: t, n: t.tree.RootNode()}
}

func (t *ParseTree) mustBeAlive() {
	if t.dead.Load() {
		panic(apperrors.DisposedError("syntax node used after its tree was disposed").
			WithDetail("tree", fmt.Sprint(t.id)))
	}
}

// TreeRef is one holder's claim on a ParseTree.
type TreeRef struct {
	tree     *ParseTree
	released atomic.Bool
}

func newTreeRef(t *ParseTree) *TreeRef {
	return &TreeRef{tree: t}
}

// Tree returns the referenced tree.
func (r *TreeRef) Tree() *ParseTree { return r.tree }

// Root returns the root node of the referenced tree.
func (r *TreeRef) Root() Node { return r.tree.Root() }

// Release drops this holder's reference. It must be called exactly once.
func (r *TreeRef) Release() error {
	if !r.released.CompareAndSwap(false, true) {
		return apperrors.DisposedError("tree reference released twice").WithDetail("tree", fmt.Sprint(r.tree.id))
	}
	return r.tree.Deref()
}

// Node is a handle into a live ParseTree. Every accessor checks that the tree
// is still alive and panics with a DISPOSED error otherwise. The zero Node is
// null.
type Node struct {
	tree *ParseTree
	n    *sitter.Node
}

func (n Node) wrap(raw *sitter.Node) Node {
	if raw == nil || raw.IsNull() {
		return Node{}
	}
	return Node{tree: n.tree, n: raw}
}

func (n Node) raw() *sitter.Node {
	n.tree.mustBeAlive()
	return n.n
}

// IsNull reports whether the handle points at nothing.
func (n Node) IsNull() bool { return n.n == nil }

// Type returns the grammar node kind.
func (n Node) Type() string { return n.raw().Type() }

// IsNamed reports whether the node is a named grammar rule.
func (n Node) IsNamed() bool { return n.raw().IsNamed() }

// StartIndex returns the first byte offset.
func (n Node) StartIndex() int { return int(n.raw().StartByte()) }

// EndIndex returns the byte offset just past the node.
func (n Node) EndIndex() int { return int(n.raw().EndByte()) }

// Offsets returns the byte range.
func (n Node) Offsets() OffsetRange {
	raw := n.raw()
	return OffsetRange{StartIndex: int(raw.StartByte()), EndIndex: int(raw.EndByte())}
}

// StartPosition returns the start point.
func (n Node) StartPosition() Point { return toPoint(n.raw().StartPoint()) }

// EndPosition returns the end point.
func (n Node) EndPosition() Point { return toPoint(n.raw().EndPoint()) }

// Points returns the line and column range.
func (n Node) Points() PointRange {
	raw := n.raw()
	return PointRange{StartPosition: toPoint(raw.StartPoint()), EndPosition: toPoint(raw.EndPoint())}
}

// Text returns the source covered by the node.
func (n Node) Text() string {
	raw := n.raw()
	return n.tree.text[raw.StartByte():raw.EndByte()]
}

// HasError reports whether the subtree contains syntax errors.
func (n Node) HasError() bool { return n.raw().HasError() }

// Parent returns the enclosing node, null at the root.
func (n Node) Parent() Node { return n.wrap(n.raw().Parent()) }

// ChildCount returns the number of children, named or not.
func (n Node) ChildCount() int { return int(n.raw().ChildCount()) }

// Child returns the i-th child, null when out of range.
func (n Node) Child(i int) Node { return n.wrap(n.raw().Child(i)) }

// Children returns all children in source order.
func (n Node) Children() []Node {
	raw := n.raw()
	count := int(raw.ChildCount())
	out := make([]Node, 0, count)
	for i := 0; i < count; i++ {
		if c := n.wrap(raw.Child(i)); !c.IsNull() {
			out = append(out, c)
		}
	}
	return out
}

// NamedChildren returns the named children in source order.
func (n Node) NamedChildren() []Node {
	raw := n.raw()
	count := int(raw.NamedChildCount())
	out := make([]Node, 0, count)
	for i := 0; i < count; i++ {
		if c := n.wrap(raw.NamedChild(i)); !c.IsNull() {
			out = append(out, c)
		}
	}
	return out
}

// FirstChild returns the first child, null for leaves.
func (n Node) FirstChild() Node { return n.Child(0) }

// ChildByField returns the child stored under a grammar field name.
func (n Node) ChildByField(name string) Node { return n.wrap(n.raw().ChildByFieldName(name)) }

// PrevSibling returns the preceding sibling.
func (n Node) PrevSibling() Node { return n.wrap(n.raw().PrevSibling()) }

// NextSibling returns the following sibling.
func (n Node) NextSibling() Node { return n.wrap(n.raw().NextSibling()) }

// PrevNamedSibling returns the preceding named sibling.
func (n Node) PrevNamedSibling() Node { return n.wrap(n.raw().PrevNamedSibling()) }

// key identifies a node within its tree for de-duplication.
func (n Node) key() nodeKey {
	raw := n.raw()
	return nodeKey{start: raw.StartByte(), end: raw.EndByte(), kind: raw.Type()}
}

type nodeKey struct {
	start, end uint32
	kind       string
}

func toPoint(p sitter.Point) Point {
	return Point{Row: int(p.Row), Column: int(p.Column)}
}

// DescendantForRange returns the smallest node spanning [start, end).
func (n Node) DescendantForRange(start, end int) Node {
	cur := n
	for {
		var next Node
		for _, child := range cur.Children() {
			cs, ce := child.StartIndex(), child.EndIndex()
			if ce < end || ce <= start {
				continue
			}
			if start < cs {
				break
			}
			next = child
			break
		}
		if next.IsNull() {
			return cur
		}
		cur = next
	}
}

// DescendantForPoints returns the smallest node spanning the point range.
func (n Node) DescendantForPoints(r PointRange) Node {
	cur := n
	for {
		var next Node
		for _, child := range cur.Children() {
			cs, ce := child.StartPosition(), child.EndPosition()
			if ce.Before(r.EndPosition) || ce.BeforeOrEqual(r.StartPosition) {
				continue
			}
			if r.StartPosition.Before(cs) {
				break
			}
			next = child
			break
		}
		if next.IsNull() {
			return cur
		}
		cur = next
	}
}
