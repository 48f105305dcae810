package ast

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractIdentifierCpp(t *testing.T) {
	e := newTestEngine(t)

	tests := []struct {
		name string
		src  string
		want string
	}{
		{"plain declarator", "int add(int a) { return a; }", "add"},
		{"pointer declarator has no direct name", "Foo* make() { return 0; }", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := e.NodeToDocument(context.Background(), LangCpp, tt.src, OffsetRange{StartIndex: 0, EndIndex: len(tt.src)})
			require.NoError(t, err)
			require.NotNil(t, res)
			assert.Equal(t, "function_definition", res.NodeToDocument.Type)
			assert.Equal(t, tt.want, res.NodeIdentifier)
		})
	}
}

func TestExtractIdentifierJavaScriptFallsBackWithoutDeclarator(t *testing.T) {
	e := newTestEngine(t)
	src := "class Foo {}"

	res, err := e.NodeToDocument(context.Background(), LangJavaScript, src, OffsetRange{StartIndex: 0, EndIndex: len(src)})
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, "Foo", res.NodeIdentifier)
}
