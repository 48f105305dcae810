package ast

import "slices"

func coarseScopeKinds(lang Language) []string {
	switch lang {
	case LangTypeScript, LangTSX:
		return []string{
			"program",
			"interface_declaration",
			"class_declaration",
			"function_declaration",
			"function_expression",
			"type_alias_declaration",
			"method_definition",
		}
	case LangJavaScript:
		return []string{
			"program",
			"class_declaration",
			"function_declaration",
			"function_expression",
			"method_definition",
		}
	case LangJava:
		return []string{"program", "class_declaration", "interface_declaration", "method_declaration"}
	case LangCpp:
		return []string{"translation_unit", "class_specifier", "function_definition"}
	case LangCSharp:
		return []string{"compilation_unit", "class_declaration", "interface_declaration", "method_declaration"}
	case LangPython:
		return []string{"module", "class_definition", "function_definition"}
	case LangGo:
		return []string{"source_file", "type_declaration", "function_declaration", "method_declaration"}
	case LangRuby:
		return []string{"program", "method", "class"}
	case LangRust:
		return []string{"source_file", "function_item", "impl_item", "let_declaration"}
	default:
		return nil
	}
}

func fineScopeKinds(lang Language) []string {
	switch lang {
	case LangTypeScript, LangTSX, LangJavaScript:
		return []string{
			"for_in_statement",
			"for_statement",
			"if_statement",
			"while_statement",
			"do_statement",
			"try_statement",
			"switch_statement",
		}
	case LangJava:
		return []string{
			"for_statement",
			"enhanced_for_statement",
			"if_statement",
			"while_statement",
			"do_statement",
			"try_statement",
			"switch_expression",
		}
	case LangCpp:
		return []string{
			"for_statement",
			"for_range_loop",
			"if_statement",
			"while_statement",
			"do_statement",
			"try_statement",
			"switch_statement",
		}
	case LangCSharp:
		return []string{
			"for_statement",
			"for_each_statement",
			"if_statement",
			"while_statement",
			"do_statement",
			"try_statement",
			"switch_expression",
		}
	case LangPython:
		return []string{"for_statement", "if_statement", "while_statement", "try_statement"}
	case LangGo:
		return []string{"for_statement", "if_statement", "type_switch_statement"}
	case LangRuby:
		return []string{"while", "for", "if", "case"}
	case LangRust:
		return []string{"for_statement", "if_statement", "while_statement", "loop_statement", "match_expression"}
	default:
		return nil
	}
}

func statementKinds(lang Language) []string {
	switch lang {
	case LangTypeScript, LangTSX:
		return []string{"lexical_declaration", "expression_statement", "public_field_definition"}
	case LangJavaScript:
		return []string{"call_expression", "expression_statement", "variable_declaration", "public_field_definition"}
	case LangJava:
		return []string{"expression_statement", "local_variable_declaration", "field_declaration"}
	case LangCpp:
		return []string{"field_declaration", "expression_statement", "declaration"}
	case LangCSharp:
		return []string{"field_declaration", "expression_statement"}
	case LangPython:
		return []string{"expression_statement"}
	case LangGo:
		return []string{"short_var_declaration", "call_expression"}
	case LangRuby:
		return []string{"call", "assignment"}
	case LangRust:
		return []string{
			"expression_statement",
			"let_declaration",
			"use_declaration",
			"assignment_expression",
			"macro_definition",
			"extern_crate_declaration",
		}
	default:
		return nil
	}
}

func semanticChunkKinds(lang Language) []string {
	switch lang {
	case LangTypeScript, LangTSX:
		return []string{
			"class_declaration",
			"function_declaration",
			"generator_function_declaration",
			"interface_declaration",
			"internal_module",
			"method_definition",
			"abstract_class_declaration",
			"abstract_method_signature",
			"enum_declaration",
		}
	case LangJavaScript:
		return []string{"class_declaration", "function_declaration", "generator_function_declaration", "method_definition"}
	case LangJava:
		return []string{
			"class_declaration",
			"constructor_declaration",
			"enum_declaration",
			"interface_declaration",
			"method_declaration",
			"module_declaration",
		}
	case LangCpp:
		return []string{"class_specifier", "function_definition", "namespace_definition", "struct_specifier"}
	case LangCSharp:
		return []string{
			"class_declaration",
			"constructor_declaration",
			"destructor_declaration",
			"enum_declaration",
			"interface_declaration",
			"method_declaration",
			"namespace_declaration",
			"struct_declaration",
		}
	case LangPython:
		return []string{"function_definition", "class_definition"}
	case LangGo:
		return []string{"function_declaration", "method_declaration"}
	case LangRuby:
		return []string{"class", "method", "module"}
	case LangRust:
		return []string{"function_item", "impl_item", "mod_item", "struct_item", "trait_item", "union_item"}
	default:
		return nil
	}
}

// IsScope reports whether kind bounds a coarse or fine scope in lang.
func IsScope(lang Language, kind string) bool {
	return slices.Contains(coarseScopeKinds(lang), kind) || slices.Contains(fineScopeKinds(lang), kind)
}

// IsFineScope reports whether kind is a control-flow scope in lang.
func IsFineScope(lang Language, kind string) bool {
	return slices.Contains(fineScopeKinds(lang), kind)
}

// IsStatement reports whether kind is a statement in lang.
func IsStatement(lang Language, kind string) bool {
	return slices.Contains(statementKinds(lang), kind)
}
