package worker

import (
	"sort"

	"github.com/ricesearch/rice-syntax/internal/ast"
)

// Function names accepted in Envelope.Fn.
const (
	FnStructure                      = "getStructure"
	FnNodeToDocument                 = "getNodeToDocument"
	FnDocumentableNodeIfOnIdentifier = "getDocumentableNodeIfOnIdentifier"
	FnNodeToExplain                  = "getNodeToExplain"
	FnFixSelectionOfInterest         = "getFixSelectionOfInterest"
	FnCoarseParentScope              = "getCoarseParentScope"
	FnFineScopes                     = "getFineScopes"
	FnFunctionDefinitions            = "getFunctionDefinitions"
	FnFunctionBodies                 = "getFunctionBodies"
	FnClassDeclarations              = "getClassDeclarations"
	FnTypeDeclarations               = "getTypeDeclarations"
	FnTypeReferences                 = "getTypeReferences"
	FnClassReferences                = "getClassReferences"
	FnCallExpressions                = "getCallExpressions"
	FnSymbols                        = "getSymbols"
	FnSemanticChunkTree              = "getSemanticChunkTree"
	FnSemanticChunkNames             = "getSemanticChunkNames"
	FnTestableNode                   = "getTestableNode"
	FnTestableNodes                  = "getTestableNodes"
	FnFindLastTest                   = "findLastTest"
	FnParseErrorCount                = "getParseErrorCount"
	FnDocComments                    = "getDocComments"
)

// Request is a decoded envelope.
type Request struct {
	ID   uint64
	Call Call
}

// Call is one engine operation with its arguments. The set of calls is
// closed; Dispatcher switches over every implementation.
type Call interface {
	// Fn returns the envelope function name.
	Fn() string
	// Language returns the language the call parses.
	Language() ast.Language
	// args returns pointers to the positional arguments in wire order.
	args() []any
	source() string
}

// Source is the language and text every call starts from.
type Source struct {
	Lang ast.Language
	Text string
}

func (s Source) Language() ast.Language { return s.Lang }

func (s Source) source() string { return s.Text }

func (s *Source) sourceArgs(rest ...any) []any {
	return append([]any{&s.Lang, &s.Text}, rest...)
}

type StructureCall struct{ Source }

type NodeToDocumentCall struct {
	Source
	Selection ast.OffsetRange
}

type DocumentableNodeIfOnIdentifierCall struct {
	Source
	Range ast.OffsetRange
}

type NodeToExplainCall struct {
	Source
	Selection ast.OffsetRange
}

type FixSelectionOfInterestCall struct {
	Source
	Range    ast.PointRange
	MaxLines int
}

type CoarseParentScopeCall struct {
	Source
	Range ast.PointRange
}

type FineScopesCall struct {
	Source
	Selection ast.OffsetRange
}

type FunctionDefinitionsCall struct{ Source }

type FunctionBodiesCall struct{ Source }

type ClassDeclarationsCall struct{ Source }

type TypeDeclarationsCall struct{ Source }

type TypeReferencesCall struct {
	Source
	Selection ast.OffsetRange
}

type ClassReferencesCall struct {
	Source
	Selection ast.OffsetRange
}

type CallExpressionsCall struct {
	Source
	Selection ast.OffsetRange
}

type SymbolsCall struct {
	Source
	Selection ast.OffsetRange
}

type SemanticChunkTreeCall struct{ Source }

type SemanticChunkNamesCall struct{ Source }

type TestableNodeCall struct {
	Source
	Range ast.OffsetRange
}

type TestableNodesCall struct{ Source }

type FindLastTestCall struct{ Source }

type ParseErrorCountCall struct{ Source }

type DocCommentsCall struct{ Source }

func (*StructureCall) Fn() string                      { return FnStructure }
func (*NodeToDocumentCall) Fn() string                 { return FnNodeToDocument }
func (*DocumentableNodeIfOnIdentifierCall) Fn() string { return FnDocumentableNodeIfOnIdentifier }
func (*NodeToExplainCall) Fn() string                  { return FnNodeToExplain }
func (*FixSelectionOfInterestCall) Fn() string         { return FnFixSelectionOfInterest }
func (*CoarseParentScopeCall) Fn() string              { return FnCoarseParentScope }
func (*FineScopesCall) Fn() string                     { return FnFineScopes }
func (*FunctionDefinitionsCall) Fn() string            { return FnFunctionDefinitions }
func (*FunctionBodiesCall) Fn() string                 { return FnFunctionBodies }
func (*ClassDeclarationsCall) Fn() string              { return FnClassDeclarations }
func (*TypeDeclarationsCall) Fn() string               { return FnTypeDeclarations }
func (*TypeReferencesCall) Fn() string                 { return FnTypeReferences }
func (*ClassReferencesCall) Fn() string                { return FnClassReferences }
func (*CallExpressionsCall) Fn() string                { return FnCallExpressions }
func (*SymbolsCall) Fn() string                        { return FnSymbols }
func (*SemanticChunkTreeCall) Fn() string              { return FnSemanticChunkTree }
func (*SemanticChunkNamesCall) Fn() string             { return FnSemanticChunkNames }
func (*TestableNodeCall) Fn() string                   { return FnTestableNode }
func (*TestableNodesCall) Fn() string                  { return FnTestableNodes }
func (*FindLastTestCall) Fn() string                   { return FnFindLastTest }
func (*ParseErrorCountCall) Fn() string                { return FnParseErrorCount }
func (*DocCommentsCall) Fn() string                    { return FnDocComments }

func (c *StructureCall) args() []any      { return c.sourceArgs() }
func (c *NodeToDocumentCall) args() []any { return c.sourceArgs(&c.Selection) }
func (c *DocumentableNodeIfOnIdentifierCall) args() []any {
	return c.sourceArgs(&c.Range)
}
func (c *NodeToExplainCall) args() []any { return c.sourceArgs(&c.Selection) }
func (c *FixSelectionOfInterestCall) args() []any {
	return c.sourceArgs(&c.Range, &c.MaxLines)
}
func (c *CoarseParentScopeCall) args() []any   { return c.sourceArgs(&c.Range) }
func (c *FineScopesCall) args() []any          { return c.sourceArgs(&c.Selection) }
func (c *FunctionDefinitionsCall) args() []any { return c.sourceArgs() }
func (c *FunctionBodiesCall) args() []any      { return c.sourceArgs() }
func (c *ClassDeclarationsCall) args() []any   { return c.sourceArgs() }
func (c *TypeDeclarationsCall) args() []any    { return c.sourceArgs() }
func (c *TypeReferencesCall) args() []any      { return c.sourceArgs(&c.Selection) }
func (c *ClassReferencesCall) args() []any     { return c.sourceArgs(&c.Selection) }
func (c *CallExpressionsCall) args() []any     { return c.sourceArgs(&c.Selection) }
func (c *SymbolsCall) args() []any             { return c.sourceArgs(&c.Selection) }
func (c *SemanticChunkTreeCall) args() []any   { return c.sourceArgs() }
func (c *SemanticChunkNamesCall) args() []any  { return c.sourceArgs() }
func (c *TestableNodeCall) args() []any        { return c.sourceArgs(&c.Range) }
func (c *TestableNodesCall) args() []any       { return c.sourceArgs() }
func (c *FindLastTestCall) args() []any        { return c.sourceArgs() }
func (c *ParseErrorCountCall) args() []any     { return c.sourceArgs() }
func (c *DocCommentsCall) args() []any         { return c.sourceArgs() }

var calls = map[string]func() Call{
	FnStructure:                      func() Call { return &StructureCall{} },
	FnNodeToDocument:                 func() Call { return &NodeToDocumentCall{} },
	FnDocumentableNodeIfOnIdentifier: func() Call { return &DocumentableNodeIfOnIdentifierCall{} },
	FnNodeToExplain:                  func() Call { return &NodeToExplainCall{} },
	FnFixSelectionOfInterest:         func() Call { return &FixSelectionOfInterestCall{} },
	FnCoarseParentScope:              func() Call { return &CoarseParentScopeCall{} },
	FnFineScopes:                     func() Call { return &FineScopesCall{} },
	FnFunctionDefinitions:            func() Call { return &FunctionDefinitionsCall{} },
	FnFunctionBodies:                 func() Call { return &FunctionBodiesCall{} },
	FnClassDeclarations:              func() Call { return &ClassDeclarationsCall{} },
	FnTypeDeclarations:               func() Call { return &TypeDeclarationsCall{} },
	FnTypeReferences:                 func() Call { return &TypeReferencesCall{} },
	FnClassReferences:                func() Call { return &ClassReferencesCall{} },
	FnCallExpressions:                func() Call { return &CallExpressionsCall{} },
	FnSymbols:                        func() Call { return &SymbolsCall{} },
	FnSemanticChunkTree:              func() Call { return &SemanticChunkTreeCall{} },
	FnSemanticChunkNames:             func() Call { return &SemanticChunkNamesCall{} },
	FnTestableNode:                   func() Call { return &TestableNodeCall{} },
	FnTestableNodes:                  func() Call { return &TestableNodesCall{} },
	FnFindLastTest:                   func() Call { return &FindLastTestCall{} },
	FnParseErrorCount:                func() Call { return &ParseErrorCountCall{} },
	FnDocComments:                    func() Call { return &DocCommentsCall{} },
}

// Functions returns every accepted function name, sorted.
func Functions() []string {
	names := make([]string, 0, len(calls))
	for name := range calls {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
