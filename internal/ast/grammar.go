package ast

import (
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/cpp"
	"github.com/smacker/go-tree-sitter/csharp"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/java"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/ruby"
	"github.com/smacker/go-tree-sitter/rust"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"

	apperrors "github.com/ricesearch/rice-syntax/internal/pkg/errors"
)

// GrammarLoader resolves the grammar for a language.
type GrammarLoader interface {
	Load(lang Language) (*sitter.Language, error)
}

// BuiltinGrammars serves the grammars linked into the binary and memoizes
// them per language.
type BuiltinGrammars struct {
	mu     sync.Mutex
	loaded map[Language]*sitter.Language
}

// NewBuiltinGrammars creates a loader for the linked grammars.
func NewBuiltinGrammars() *BuiltinGrammars {
	return &BuiltinGrammars{loaded: make(map[Language]*sitter.Language)}
}

// Load implements GrammarLoader.
func (g *BuiltinGrammars) Load(lang Language) (*sitter.Language, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if grammar, ok := g.loaded[lang]; ok {
		return grammar, nil
	}

	var grammar *sitter.Language
	switch lang {
	case LangTypeScript:
		grammar = typescript.GetLanguage()
	case LangTSX:
		grammar = tsx.GetLanguage()
	case LangJavaScript:
		grammar = javascript.GetLanguage()
	case LangPython:
		grammar = python.GetLanguage()
	case LangCSharp:
		grammar = csharp.GetLanguage()
	case LangGo:
		grammar = golang.GetLanguage()
	case LangJava:
		grammar = java.GetLanguage()
	case LangRuby:
		grammar = ruby.GetLanguage()
	case LangCpp:
		grammar = cpp.GetLanguage()
	case LangRust:
		grammar = rust.GetLanguage()
	default:
		return nil, apperrors.UnsupportedLanguageError(lang.String())
	}
	if grammar == nil {
		return nil, apperrors.InternalError("cannot load language", nil).WithDetail("grammar", lang.GrammarID())
	}

	g.loaded[lang] = grammar
	return grammar, nil
}
