package ast

import "strings"

// QueryKind names one family of per-language queries.
type QueryKind uint8

const (
	QueryCallExpressions QueryKind = iota
	QueryClassDeclarations
	QueryTypeDeclarations
	QueryTypeReferences
	QueryClassReferences
	QueryFunctions
	QueryDocComments
	QueryTestableNodes
	QuerySymbols
	QueryAtoms
	QueryCoarseScopes
	QuerySemanticTargets
	QueryTestsInSuite
)

// Queries returns the query sources of a kind for lang. A nil slice means
// the language has no entry, which operations treat as an empty result.
func Queries(kind QueryKind, lang Language) []string {
	switch kind {
	case QueryCallExpressions:
		return callExpressionQueries(lang)
	case QueryClassDeclarations:
		return classDeclarationQueries(lang)
	case QueryTypeDeclarations:
		return typeDeclarationQueries(lang)
	case QueryTypeReferences:
		return typeReferenceQueries(lang)
	case QueryClassReferences:
		return classReferenceQueries(lang)
	case QueryFunctions:
		return functionQueries(lang)
	case QueryDocComments:
		return docCommentQueries(lang)
	case QueryTestableNodes:
		return testableNodeQueries(lang)
	case QuerySymbols:
		return symbolQueries(lang)
	case QueryAtoms:
		return atomQueries(lang)
	case QueryCoarseScopes:
		return coarseScopeQueries(lang)
	case QuerySemanticTargets:
		return semanticTargetQueries(lang)
	case QueryTestsInSuite:
		return testInSuiteQueries(lang)
	default:
		return nil
	}
}

// AllQueries lists every query source for lang.
func AllQueries(lang Language) []string {
	var out []string
	for kind := QueryCallExpressions; kind <= QueryTestsInSuite; kind++ {
		out = append(out, Queries(kind, lang)...)
	}
	return out
}

func callExpressionQueries(lang Language) []string {
	switch lang {
	case LangJavaScript, LangTypeScript, LangTSX:
		return []string{`[
	(call_expression
		function: (identifier) @identifier)
	(call_expression
		function: (member_expression
			(property_identifier) @identifier))
] @call_expression`}
	case LangPython:
		return []string{`[
	(call
		function: (identifier) @identifier)
	(call
		function: (attribute
			attribute: (identifier) @identifier))
] @call_expression`}
	case LangCSharp:
		return []string{`[
	(invocation_expression
		function: (identifier) @identifier)
	(invocation_expression
		function: (member_access_expression
			name: (identifier) @identifier))
] @call_expression`}
	case LangGo:
		return []string{`[
	(call_expression
		((selector_expression
			(field_identifier) @identifier)))
	(call_expression
		(identifier) @identifier)
] @call_expression`}
	case LangJava:
		return []string{`[
	(method_invocation
		name: (identifier) @identifier)
] @call_expression`}
	case LangRuby:
		// bare calls such as "say_hello" parse as plain identifiers and are not matched
		return []string{`[
	(call (identifier) @identifier
		(#not-match? @identifier "new|send|public_send|method"))
	(call
		receiver: (identifier)
		method: (identifier) @method
		(#match? @method "^(send|public_send|method)")
		arguments: (argument_list
			(simple_symbol) @symbol))
] @call_expression`}
	case LangCpp:
		return []string{`[
	(function_declarator
		(identifier) @identifier)
	(function_declarator
		(field_identifier) @identifier)
	(call_expression (identifier) @identifier)
	(call_expression
		(field_expression
			field: (field_identifier) @identifier))
	(call_expression
		(call_expression
			(primitive_type)
			(argument_list
				(pointer_expression
				(identifier) @identifier))))
] @call_expression`}
	case LangRust:
		return []string{`[
	(call_expression (identifier) @identifier)
	(call_expression (field_expression (identifier) (field_identifier) @identifier))
	(call_expression (scoped_identifier (identifier) (identifier) @identifier (#not-match? @identifier "new")))
] @call_expression`}
	default:
		return nil
	}
}

func classDeclarationQueries(lang Language) []string {
	switch lang {
	case LangJavaScript, LangTypeScript, LangTSX, LangJava, LangCSharp:
		return []string{`(class_declaration) @class_declaration`}
	case LangPython:
		return []string{`(class_definition) @class_declaration`}
	case LangCpp:
		return []string{`(class_specifier) @class_declaration`}
	case LangRuby:
		return []string{`(class) @class_declaration`}
	case LangGo:
		return []string{`(type_declaration
	(type_spec
		(type_identifier) @type_identifier)) @class_declaration`}
	case LangRust:
		return []string{`(impl_item (type_identifier) @type_identifier) @class_declaration`}
	default:
		return nil
	}
}

func typeDeclarationQueries(lang Language) []string {
	switch lang {
	case LangTypeScript:
		return []string{`[
	(interface_declaration)
	(type_alias_declaration)
] @type_declaration`}
	case LangCSharp, LangJava:
		return []string{`(interface_declaration
	(identifier) @type_identifier) @type_declaration`}
	case LangCpp:
		return []string{`[
	(struct_specifier
		(type_identifier) @type_identifier)
	(union_specifier
		(type_identifier) @type_identifier)
	(enum_specifier
		(type_identifier) @type_identifier)
] @type_declaration`}
	case LangGo:
		return []string{`(type_declaration
	(type_spec
		(type_identifier) @type_identifier)) @type_declaration`}
	case LangRuby:
		return []string{`((constant) @type_identifier) @type_declaration`}
	case LangPython:
		return []string{`(class_definition
	(identifier) @type_identifier) @type_declaration`}
	default:
		// javascript has no types; tsx and rust have no entry
		return nil
	}
}

func typeReferenceQueries(lang Language) []string {
	switch lang {
	case LangTypeScript, LangGo, LangCpp, LangJava:
		return []string{`(type_identifier) @type_identifier`}
	case LangRuby:
		return []string{`(constant) @type_identifier`}
	case LangCSharp:
		return []string{`[
	(base_list
		(identifier) @type_identifier)
	(variable_declaration
		(identifier) @type_identifier)
]`}
	case LangPython:
		return []string{`[
	(type (identifier) @type_identifier)
	(argument_list
		(identifier) @type_identifier)
]`}
	default:
		return nil
	}
}

func classReferenceQueries(lang Language) []string {
	switch lang {
	case LangJavaScript, LangTypeScript, LangTSX:
		return []string{`(new_expression
	constructor: (identifier) @new_expression)`}
	case LangPython:
		return []string{`(call
	function: (identifier) @new_expression)`}
	case LangCSharp:
		return []string{`(object_creation_expression
	(identifier) @new_expression)`}
	case LangJava:
		return []string{`(object_creation_expression
	(type_identifier) @new_expression)`}
	case LangCpp:
		return []string{`[
	(declaration
		(type_identifier) @new_expression)
	(class_specifier
		(type_identifier) @new_expression)
]`}
	case LangGo:
		return []string{`(composite_literal (type_identifier) @new_expression)`}
	case LangRuby:
		return []string{`((call
	receiver: ((constant) @new_expression)
	method: (identifier) @method)
		(#eq? @method "new"))`}
	case LangRust:
		return []string{`(call_expression
	(scoped_identifier
		(identifier) @new_expression
		(identifier) @identifier
		(#eq? @identifier "new")))`}
	default:
		return nil
	}
}

func functionQueries(lang Language) []string {
	switch lang {
	case LangPython:
		return []string{
			`[
	(function_definition
		name: (identifier) @identifier
		body: (block
				(expression_statement (string))? @docstring) @body)
	(assignment
		left: (identifier) @identifier
		right: (lambda) @body)
] @function`,
			// malformed defs without a body
			`(ERROR ("def" (identifier) (parameters))) @function`,
		}
	case LangJavaScript, LangTypeScript, LangTSX:
		return []string{`[
	(function_expression
		name: (identifier)? @identifier
		body: (statement_block) @body)
	(function_declaration
		name: (identifier)? @identifier
		body: (statement_block) @body)
	(generator_function
		name: (identifier)? @identifier
		body: (statement_block) @body)
	(generator_function_declaration
		name: (identifier)? @identifier
		body: (statement_block) @body)
	(method_definition
		name: (property_identifier)? @identifier
		body: (statement_block) @body)
	(arrow_function
		body: (statement_block) @body)
] @function`}
	case LangGo:
		return []string{`[
	(function_declaration
		name: (identifier) @identifier
		body: (block) @body)
	(method_declaration
		name: (field_identifier) @identifier
		body: (block) @body)
] @function`}
	case LangRuby:
		// @params keeps optional parameters out of @body
		return []string{`[
	(method
		name: (_) @identifier
		parameters: (method_parameters)? @params
		[(_)+ "end"] @body)
	(singleton_method
		name: (_) @identifier
		parameters: (method_parameters)? @params
		[(_)+ "end"] @body)
] @function`}
	case LangCSharp:
		return []string{`[
	(constructor_declaration
		(identifier) @identifier
		(block) @body)
	(destructor_declaration
		(identifier) @identifier
		(block) @body)
	(operator_declaration
		(block) @body)
	(method_declaration
		(identifier) @identifier
		(block) @body)
	(local_function_statement
		(identifier) @identifier
		(block) @body)
] @function`}
	case LangCpp:
		return []string{`[
	(function_definition
		(_
			(identifier) @identifier)
			(compound_statement) @body)
	(function_definition
		(function_declarator
			(qualified_identifier
				(identifier) @identifier))
			(compound_statement) @body)
] @function`}
	case LangJava:
		return []string{`[
	(constructor_declaration
		name: (identifier) @identifier
		body: (constructor_body) @body)
	(method_declaration
		name: (_) @identifier
		body: (block) @body)
	(lambda_expression
		body: (block) @body)
] @function`}
	case LangRust:
		return []string{`[
	(function_item (identifier) @identifier)
	(let_declaration (identifier) @identifier)
] @function`}
	default:
		return nil
	}
}

func docCommentQueries(lang Language) []string {
	switch lang {
	case LangJavaScript, LangTypeScript, LangTSX, LangCpp:
		return []string{`((comment) @comment
	(#match? @comment "^/\\*\\*")) @docComment`}
	case LangJava:
		return []string{`((block_comment) @block_comment
	(#match? @block_comment "^/\\*\\*")) @docComment`}
	case LangCSharp:
		return []string{`(
	((comment) @c
		(#match? @c "^///"))+
) @docComment`}
	case LangRust:
		return []string{`((line_comment) @comment
	(#match? @comment "^///|^//!"))+ @docComment`}
	case LangGo, LangRuby:
		// doc comments share the line comment prefix
		return []string{`((comment)+) @docComment`}
	case LangPython:
		return []string{`(expression_statement
	(string) @docComment)`}
	default:
		return nil
	}
}

func testableNodeQueries(lang Language) []string {
	switch lang {
	case LangJavaScript:
		return []string{`[
	(function_declaration
		(identifier) @function.identifier
	) @function

	(generator_function_declaration
		name: (identifier) @generator_function.identifier
	) @generator_function

	(class_declaration
		name: (identifier) @class.identifier
		body: (class_body
					(method_definition
						name: (property_identifier) @method.identifier
					) @method
				)
	) @class
]`}
	case LangTypeScript, LangTSX:
		return []string{`[
	(function_declaration
		(identifier) @function.identifier
	) @function

	(generator_function_declaration
		name: (identifier) @generator_function.identifier
	) @generator_function

	(class_declaration
		name: (type_identifier) @class.identifier
		body: (class_body
					(method_definition
						(accessibility_modifier)? @method.accessibility_modifier
						name: (property_identifier) @method.identifier
						(#not-eq? @method.accessibility_modifier "private")
					) @method
				)
	) @class
]`}
	case LangPython:
		return []string{`[
	(function_definition
		name: (identifier) @function.identifier
	) @function
]`}
	case LangGo:
		return []string{`[
	(function_declaration
		name: (identifier) @function.identifier
	) @function

	(method_declaration
		name: (field_identifier) @method.identifier
	) @method
]`}
	case LangRuby:
		return []string{`[
	(method
		name: (identifier) @method.identifier
	) @method

	(singleton_method
		name: (_) @singleton_method.identifier
	) @singleton_method
]`}
	case LangCSharp:
		return []string{`[
	(constructor_declaration
		(identifier) @constructor.identifier
	) @constructor

	(destructor_declaration
		(identifier) @destructor.identifier
	) @destructor

	(method_declaration
		(identifier) @method.identifier
	) @method

	(local_function_statement
		(identifier) @local_function.identifier
	) @local_function
]`}
	case LangCpp:
		// TODO: capture classes and methods, not only free functions.
		return []string{`[
	(function_definition
		(_
			(identifier) @identifier)
	) @function
]`}
	case LangJava:
		return []string{`(class_declaration
	name: (_) @class.identifier
	body: (_
				[
					(constructor_declaration
						(modifiers)? @constructor.modifiers
						(#not-eq? @constructor.modifiers "private")
						name: (identifier) @constructor.identifier
					) @constructor

					(method_declaration
						(modifiers)? @method.modifiers
						(#not-eq? @method.modifiers "private")
						name: (identifier) @method.identifier
					) @method
				]
			)
) @class`}
	case LangRust:
		return []string{`[
	(function_item
		(identifier) @function.identifier
	) @function
]`}
	default:
		return nil
	}
}

func symbolQueries(lang Language) []string {
	switch lang {
	case LangJavaScript:
		return []string{`[
	(identifier) @symbol
	(property_identifier) @symbol
	(private_property_identifier) @symbol
]`}
	case LangTypeScript, LangTSX:
		return []string{`[
	(identifier) @symbol
	(type_identifier) @symbol
	(property_identifier) @symbol
	(private_property_identifier) @symbol
]`}
	case LangCpp:
		return []string{`[
	(identifier) @symbol
	(type_identifier) @symbol
]`}
	case LangCSharp, LangGo, LangJava, LangPython, LangRuby, LangRust:
		return []string{`[
	(identifier) @symbol
]`}
	default:
		return nil
	}
}

const tsAtoms = `
	(comment) @comment

	(declaration) @declaration

	;; class declaration related
	(public_field_definition) @public_field_definition
	(method_definition) @method_definition
	(class_declaration (_ (method_signature) @method_signature))
	(abstract_method_signature) @abstract_method_signature

	;; enum declaration related
	(enum_assignment) @enum_assignment

	;; interface declaration related
	(interface_declaration (_ (method_signature) @method_signature))
	(interface_declaration (_ (property_signature) @property_signature))

	;; statements

	(import_statement) @import_statement
	(export_statement) @export_statement

	(expression_statement) @expression_statement

	(for_in_statement) @for_in_statement
	;; exclude any children found in the for loop condition
	(for_statement condition: (_) @for_statement.exclude_captures ) @for_statement
	(break_statement) @break_statement
	(continue_statement) @continue_statement
	(do_statement) @do_statement
	(if_statement) @if_statement
	(if_statement
		consequence: [
			(expression_statement)
			(if_statement)
		] @if_statement.exclude_captures)
	(else_clause
		[
			(expression_statement)
			(if_statement) ; for if-else chains
		] @else_clause.exclude_captures)
	(switch_statement) @switch_statement
	(switch_case) @switch_case
	(try_statement) @try_statement
	(throw_statement) @throw_statement
	(debugger_statement) @debugger_statement
	(return_statement) @return_statement
`

const tsxAtoms = `
	;; jsx
	(jsx_element) @jsx_element
	(jsx_element (_ (jsx_expression) @jsx_expression))
`

func atomQueries(lang Language) []string {
	switch lang {
	case LangTypeScript:
		return []string{"[" + tsAtoms + "]"}
	case LangTSX:
		return []string{"[" + tsAtoms + tsxAtoms + "]"}
	case LangPython:
		return []string{`[
	(comment) @comment

	;; simple statements
	(assert_statement) @assert_statement
	(break_statement) @break_statement
	(continue_statement) @continue_statement
	(delete_statement) @delete_statement
	(exec_statement) @exec_statement
	(expression_statement) @expression_statement
	(future_import_statement) @future_import_statement
	(global_statement) @global_statement
	(import_from_statement) @import_from_statement
	(import_statement) @import_statement
	(nonlocal_statement) @nonlocal_statement
	(pass_statement) @pass_statement
	(print_statement) @print_statement
	(raise_statement) @raise_statement
	(return_statement) @return_statement
	(type_alias_statement) @type_alias_statement

	;; compound statements
	(class_definition) @class_definition
	(decorated_definition) @decorated_definition
	(for_statement) @for_statement
	(function_definition) @function_definition
	(if_statement) @if_statement
	(try_statement) @try_statement
	(while_statement) @while_statement
	(with_statement) @with_statement

	;; expressions
	(expression_list) @expression_list
	(expression_statement) @expression_statement
]`}
	case LangJavaScript:
		return []string{`[
	(comment) @comment

	(declaration) @declaration

	;; class declaration related
	(field_definition) @field_definition
	(method_definition) @method_definition

	;; statements
	(import_statement) @import_statement
	(export_statement) @export_statement

	(expression_statement) @expression_statement

	(for_in_statement) @for_in_statement
	;; exclude any children found in the for loop condition
	(for_statement condition: (_) @for_statement.exclude_captures ) @for_statement
	(break_statement) @break_statement
	(continue_statement) @continue_statement
	(do_statement) @do_statement
	(if_statement) @if_statement
	(switch_statement) @switch_statement
	(switch_case) @switch_case
	(try_statement) @try_statement
	(throw_statement) @throw_statement
	(debugger_statement) @debugger_statement
	(return_statement) @return_statement
]`}
	case LangGo:
		return []string{`[
	(_statement) @statement
	(function_declaration) @function_declaration
	(import_declaration) @import_declaration
	(method_declaration) @method_declaration
	(package_clause) @package_clause

	(if_statement
		initializer: (_) @for_statement.exclude_captures) @for_statement

	(expression_case) @expression_case ;; e.g., case 0:
]`}
	case LangRuby:
		return []string{`[
	(comment) @comment
	(assignment) @assignment
	(if) @if
	(call) @call
	(case) @case
	(when) @when
	(while) @while
	(for) @for
	(method) @method
	(class) @class
	(module) @module
	(begin) @begin
]`}
	case LangCSharp:
		return []string{`[
	(comment) @comment

	(class_declaration) @class_declaration
	(constructor_declaration) @constructor_declaration
	(method_declaration) @method_declaration
	(delegate_declaration) @delegate_declaration
	(enum_declaration) @enum_declaration
	(extern_alias_directive) @extern_alias_directive
	(file_scoped_namespace_declaration) @file_scoped_namespace_declaration
	(global_attribute) @global_attribute
	(global_statement) @global_statement
	(interface_declaration) @interface_declaration
	(namespace_declaration) @namespace_declaration
	(record_declaration) @record_declaration
	(struct_declaration) @struct_declaration
	(using_directive) @using_directive

	(local_declaration_statement) @local_declaration_statement
	(expression_statement) @expression_statement
	(for_statement) @for_statement
	(foreach_statement) @foreach_statement
	(continue_statement) @continue_statement
	(break_statement) @break_statement
	(throw_statement) @throw_statement
	(return_statement) @return_statement
	(try_statement) @try_statement
]`}
	case LangCpp:
		return []string{`[
	(preproc_ifdef) @preproc_ifdef
	(preproc_call) @preproc_call
	(preproc_def) @preproc_def
	(type_definition) @type_definition
	(type_definition
		type:(_) @type_definition.exclude_captures) @type_definition

	(declaration) @declaration
	(expression_statement) @expression_statement
	(comment) @comment
	(preproc_include) @preproc_include
	(namespace_definition) @namespace_definition
	(enum_specifier) @enum_specifier
	(struct_specifier) @struct_specifier
	(template_declaration) @template_declaration
	(function_definition) @function_definition
	(return_statement) @return_statement
	(class_specifier) @class_specifier
	(try_statement) @try_statement
	(throw_statement) @throw_statement

	(for_statement) @for_statement
	(for_statement
		initializer:(_) @for_statement.exclude_captures) @for_statement

	(for_range_loop) @for_range_loop
	(while_statement) @while_statement
	(do_statement) @do_statement
	(if_statement) @if_statement
	(labeled_statement) @labeled_statement
	(goto_statement) @goto_statement
	(break_statement) @break_statement
]`}
	case LangJava:
		return []string{`[
	(statement) @statement ;; includes (declaration) but misses inner classes

	(line_comment) @line_comment
	(block_comment) @block_comment

	(for_statement
		init: (_) @for_statement.exclude_captures)

	(block) @block.exclude_captures

	(class_declaration) @class_declaration
	(constructor_declaration) @constructor_declaration
	(field_declaration) @field_declaration
	(method_declaration) @method_declaration
]`}
	default:
		// rust has no outline atoms
		return nil
	}
}

func coarseScopeQueries(lang Language) []string {
	kinds := coarseScopeKinds(lang)
	if len(kinds) == 0 {
		return nil
	}
	parts := make([]string, len(kinds))
	for i, k := range kinds {
		parts[i] = "(" + k + ") @scope"
	}
	return []string{strings.Join(parts, "\n")}
}

func semanticTargetQueries(lang Language) []string {
	kinds := semanticChunkKinds(lang)
	if len(kinds) == 0 {
		return nil
	}
	var b strings.Builder
	b.WriteString("[\n")
	for _, k := range kinds {
		b.WriteString("\t(" + k + ")\n")
	}
	b.WriteString("] @definition")
	return []string{b.String()}
}

func testInSuiteQueries(lang Language) []string {
	switch lang {
	case LangTypeScript, LangTSX:
		return []string{`[
	(expression_statement
		(call_expression
			function: (identifier) @fn
			(#match? @fn "^(test|it)$")
		)
	) @test
]`}
	case LangJavaScript:
		return []string{`[
	(call_expression
		function: (identifier) @fn
		(#match? @fn "^(test|it)$")
	) @test
]`}
	case LangPython:
		return []string{`[
	(function_definition
		name: (identifier) @fn
		(#match? @fn "^test_")
	) @test
]`}
	case LangJava:
		return []string{`[
	(method_declaration
		name: (identifier) @fn
		(#match? @fn "^test")
	) @test
]`}
	case LangGo:
		return []string{`[
	(function_declaration
		name: (identifier) @fn
		(#match? @fn "^Test")
	) @test
]`}
	default:
		return nil
	}
}
