package ast

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func group(start, end int) SemanticGroup {
	return SemanticGroup{MainBlock: ChunkHeaderInfo{StartIndex: start, EndIndex: end}}
}

func TestFormQueryMatchTreeNests(t *testing.T) {
	groups := []SemanticGroup{
		group(40, 60),
		group(0, 30),
		group(5, 10),
		group(12, 20),
	}
	tree := FormQueryMatchTree(groups, ChunkHeaderInfo{StartIndex: 0, EndIndex: 60})

	require.Len(t, tree.Roots, 2)
	first := tree.Roots[0]
	assert.Equal(t, 0, first.Info.MainBlock.StartIndex)
	require.Len(t, first.Children, 2)
	assert.Equal(t, 5, first.Children[0].Info.MainBlock.StartIndex)
	assert.Equal(t, 12, first.Children[1].Info.MainBlock.StartIndex)
	assert.Equal(t, 40, tree.Roots[1].Info.MainBlock.StartIndex)
	assert.Empty(t, tree.Roots[1].Children)
}

func TestFormQueryMatchTreeDropsEqualRange(t *testing.T) {
	tree := FormQueryMatchTree([]SemanticGroup{group(0, 10), group(0, 10)}, ChunkHeaderInfo{})
	require.Len(t, tree.Roots, 1)
	assert.Empty(t, tree.Roots[0].Children)
}

func TestFormQueryMatchTreeEmpty(t *testing.T) {
	tree := FormQueryMatchTree(nil, ChunkHeaderInfo{EndIndex: 3})
	assert.NotNil(t, tree.Roots)
	assert.Empty(t, tree.Roots)
	assert.Equal(t, 3, tree.SyntaxTreeRoot.EndIndex)
}
