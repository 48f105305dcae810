package ast

import (
	"path/filepath"
	"strings"

	apperrors "github.com/ricesearch/rice-syntax/internal/pkg/errors"
)

// Language is one of the grammars the engine understands.
type Language uint8

// Supported languages. The zero value is not a language.
const (
	LangUnknown Language = iota
	LangTypeScript
	LangTSX
	LangJavaScript
	LangPython
	LangCSharp
	LangGo
	LangJava
	LangRuby
	LangCpp
	LangRust
)

// SupportedLanguages lists every language in declaration order.
var SupportedLanguages = []Language{
	LangTypeScript,
	LangTSX,
	LangJavaScript,
	LangPython,
	LangCSharp,
	LangGo,
	LangJava,
	LangRuby,
	LangCpp,
	LangRust,
}

// String returns the wire id of the language.
func (l Language) String() string {
	switch l {
	case LangTypeScript:
		return "typescript"
	case LangTSX:
		return "tsx"
	case LangJavaScript:
		return "javascript"
	case LangPython:
		return "python"
	case LangCSharp:
		return "csharp"
	case LangGo:
		return "go"
	case LangJava:
		return "java"
	case LangRuby:
		return "ruby"
	case LangCpp:
		return "cpp"
	case LangRust:
		return "rust"
	default:
		return "unknown"
	}
}

// GrammarID is the tree-sitter grammar name, which differs from the wire id
// for C#.
func (l Language) GrammarID() string {
	if l == LangCSharp {
		return "c-sharp"
	}
	return l.String()
}

// Valid reports whether l is a supported language.
func (l Language) Valid() bool {
	return l >= LangTypeScript && l <= LangRust
}

func (l Language) isJSFamily() bool {
	return l == LangTypeScript || l == LangTSX || l == LangJavaScript
}

// MarshalText implements encoding.TextMarshaler.
func (l Language) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (l *Language) UnmarshalText(text []byte) error {
	parsed, err := ParseLanguage(string(text))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

var languageAliases = map[string]Language{
	"typescript":      LangTypeScript,
	"ts":              LangTypeScript,
	"tsx":             LangTSX,
	"typescriptreact": LangTSX,
	"javascript":      LangJavaScript,
	"js":              LangJavaScript,
	"javascriptreact": LangJavaScript,
	"jsx":             LangJavaScript,
	"python":          LangPython,
	"py":              LangPython,
	"csharp":          LangCSharp,
	"c-sharp":         LangCSharp,
	"c#":              LangCSharp,
	"go":              LangGo,
	"golang":          LangGo,
	"java":            LangJava,
	"ruby":            LangRuby,
	"rb":              LangRuby,
	"cpp":             LangCpp,
	"c++":             LangCpp,
	"rust":            LangRust,
	"rs":              LangRust,
}

// ParseLanguage resolves a language id or editor alias.
func ParseLanguage(id string) (Language, error) {
	if lang, ok := languageAliases[strings.ToLower(strings.TrimSpace(id))]; ok {
		return lang, nil
	}
	return LangUnknown, apperrors.UnsupportedLanguageError(id)
}

var languageExtensions = map[string]Language{
	".ts":   LangTypeScript,
	".mts":  LangTypeScript,
	".cts":  LangTypeScript,
	".tsx":  LangTSX,
	".js":   LangJavaScript,
	".mjs":  LangJavaScript,
	".cjs":  LangJavaScript,
	".jsx":  LangJavaScript,
	".py":   LangPython,
	".pyi":  LangPython,
	".cs":   LangCSharp,
	".go":   LangGo,
	".java": LangJava,
	".rb":   LangRuby,
	".cpp":  LangCpp,
	".cc":   LangCpp,
	".cxx":  LangCpp,
	".hpp":  LangCpp,
	".hh":   LangCpp,
	".h":    LangCpp,
	".rs":   LangRust,
}

// LanguageForPath detects the language from a file extension.
func LanguageForPath(path string) (Language, bool) {
	lang, ok := languageExtensions[strings.ToLower(filepath.Ext(path))]
	return lang, ok
}
