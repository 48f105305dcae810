package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/ricesearch/rice-syntax/internal/ast"
	"github.com/ricesearch/rice-syntax/internal/worker"
)

// callSpec runs one engine call and prints its result.
type callSpec func(ctx context.Context, s *session, in sourceInput) error

// typed pairs a call with a text renderer for its result type. A nil
// render prints JSON in both formats.
func typed[T any](call worker.Call, render func(w io.Writer, v T, in sourceInput) error) callSpec {
	return func(ctx context.Context, s *session, in sourceInput) error {
		var out T
		if err := s.caller.Do(ctx, call, &out); err != nil {
			return err
		}
		if s.format == "json" || render == nil {
			return s.writeJSON(out)
		}
		return render(s.out, out, in)
	}
}

// position formats a byte offset as a one-based line:column.
func position(text string, offset int) string {
	offset = min(max(offset, 0), len(text))
	before := text[:offset]
	line := strings.Count(before, "\n") + 1
	col := offset - strings.LastIndexByte(before, '\n')
	return fmt.Sprintf("%d:%d", line, col)
}

func span(text string, r ast.OffsetRange) string {
	return position(text, r.StartIndex) + "-" + position(text, r.EndIndex)
}

func renderDefinitions(w io.Writer, defs []ast.Definition, in sourceInput) error {
	for _, d := range defs {
		r := ast.OffsetRange{StartIndex: d.StartIndex, EndIndex: d.EndIndex}
		if _, err := fmt.Fprintf(w, "%s\t%s\n", span(in.text, r), d.Identifier); err != nil {
			return err
		}
	}
	return nil
}

func renderRanges(w io.Writer, ranges []ast.OffsetRange, in sourceInput) error {
	for _, r := range ranges {
		if _, err := fmt.Fprintf(w, "%s\t[%d, %d)\n", span(in.text, r), r.StartIndex, r.EndIndex); err != nil {
			return err
		}
	}
	return nil
}

func renderOptionalRange(w io.Writer, r *ast.OffsetRange, in sourceInput) error {
	if r == nil {
		_, err := fmt.Fprintln(w, "none")
		return err
	}
	return renderRanges(w, []ast.OffsetRange{*r}, in)
}

func renderPointRange(w io.Writer, r ast.PointRange, _ sourceInput) error {
	_, err := fmt.Fprintf(w, "%d:%d-%d:%d\n",
		r.StartPosition.Row, r.StartPosition.Column, r.EndPosition.Row, r.EndPosition.Column)
	return err
}

func renderOutline(w io.Writer, root *ast.OverlayNode, in sourceInput) error {
	if root == nil {
		_, err := fmt.Fprintf(w, "no outline for %s\n", in.lang)
		return err
	}
	var walk func(n *ast.OverlayNode, depth int) error
	walk = func(n *ast.OverlayNode, depth int) error {
		r := ast.OffsetRange{StartIndex: n.StartIndex, EndIndex: n.EndIndex}
		if _, err := fmt.Fprintf(w, "%s%s %s\n", strings.Repeat("  ", depth), n.Kind, span(in.text, r)); err != nil {
			return err
		}
		for _, c := range n.Children {
			if err := walk(c, depth+1); err != nil {
				return err
			}
		}
		return nil
	}
	return walk(root, 0)
}

func renderChunkTree(w io.Writer, tree *ast.QueryMatchTree, in sourceInput) error {
	if tree == nil {
		return nil
	}
	var walk func(n *ast.QueryMatchNode, depth int) error
	walk = func(n *ast.QueryMatchNode, depth int) error {
		block := n.Info.MainBlock
		label := firstLine(block.Text)
		if name := n.Info.DetailBlocks.Name; name != nil {
			label = *name
		}
		r := ast.OffsetRange{StartIndex: block.StartIndex, EndIndex: block.EndIndex}
		if _, err := fmt.Fprintf(w, "%s%s\t%s\n", strings.Repeat("  ", depth), span(in.text, r), label); err != nil {
			return err
		}
		for _, c := range n.Children {
			if err := walk(c, depth+1); err != nil {
				return err
			}
		}
		return nil
	}
	for _, root := range tree.Roots {
		if err := walk(root, 0); err != nil {
			return err
		}
	}
	return nil
}

func renderTestable(w io.Writer, nodes []ast.TestableNode, in sourceInput) error {
	for _, n := range nodes {
		r := ast.OffsetRange{StartIndex: n.Node.StartIndex, EndIndex: n.Node.EndIndex}
		if _, err := fmt.Fprintf(w, "%s\t%s\t%s\n", span(in.text, r), n.Node.Type, n.Identifier.Name); err != nil {
			return err
		}
	}
	return nil
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	const maxLabel = 80
	if len(line) > maxLabel {
		line = line[:maxLabel] + "..."
	}
	return strings.TrimSpace(line)
}
