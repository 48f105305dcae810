package ast

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/ricesearch/rice-syntax/internal/pkg/errors"
)

func leaf(start, end int, kind string) *OverlayNode {
	return &OverlayNode{StartIndex: start, EndIndex: end, Kind: kind, Children: []*OverlayNode{}}
}

func TestNewOverlayNodeRejectsBadBounds(t *testing.T) {
	tests := []struct {
		name     string
		start    int
		end      int
		children []*OverlayNode
	}{
		{"start after end", 5, 2, nil},
		{"child before parent", 10, 20, []*OverlayNode{leaf(5, 12, "a")}},
		{"child past parent", 0, 10, []*OverlayNode{leaf(5, 12, "a")}},
		{"overlapping children", 0, 20, []*OverlayNode{leaf(0, 8, "a"), leaf(6, 10, "b")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewOverlayNode(tt.start, tt.end, "root", tt.children)
			require.Error(t, err)
			assert.Equal(t, apperrors.CodeBug, apperrors.CodeOf(err))
		})
	}
}

func TestNewOverlayNodeAcceptsAdjacentChildren(t *testing.T) {
	n, err := NewOverlayNode(0, 20, "root", []*OverlayNode{leaf(0, 8, "a"), leaf(8, 20, "b")})
	require.NoError(t, err)
	assert.NoError(t, n.Validate())
}

func TestOverlayValidateRecurses(t *testing.T) {
	bad := leaf(2, 8, "class")
	bad.Children = []*OverlayNode{leaf(1, 4, "method")}
	root := leaf(0, 10, "root")
	root.Children = []*OverlayNode{bad}

	require.NoError(t, root.check())
	assert.Error(t, root.Validate())
}

func TestOverlayString(t *testing.T) {
	method := leaf(12, 30, "method_definition")
	class := leaf(0, 32, "class_declaration")
	class.Children = []*OverlayNode{method}
	root := leaf(0, 32, "root")
	root.Children = []*OverlayNode{class}

	want := "root [0, 32]\n" +
		"    class_declaration [0, 32]\n" +
		"        method_definition [12, 30]"
	assert.Equal(t, want, root.String())
}

func TestOverlayNodeSize(t *testing.T) {
	inner := &OverlayNode{StartIndex: 2, EndIndex: 6, Kind: "b", Children: []*OverlayNode{leaf(3, 4, "c")}}
	root := &OverlayNode{StartIndex: 0, EndIndex: 10, Kind: "root", Children: []*OverlayNode{inner, leaf(7, 9, "d")}}

	assert.Equal(t, 3, root.Size())
	assert.Equal(t, 0, leaf(0, 1, "x").Size())

	var none *OverlayNode
	assert.Equal(t, 0, none.Size())
}
