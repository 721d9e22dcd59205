package treesitter

import (
	"sort"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
)

// cppOnlyKinds are tree-sitter-cpp node kinds that cannot occur in C.
// linkage_specification is missing on purpose: extern "C" guards are common
// in C headers.
var cppOnlyKinds = map[string]bool{
	"class_specifier":           true,
	"namespace_definition":      true,
	"template_declaration":      true,
	"template_function":         true,
	"template_type":             true,
	"access_specifier":          true,
	"using_declaration":         true,
	"alias_declaration":         true,
	"reference_declarator":      true,
	"qualified_identifier":      true,
	"lambda_expression":         true,
	"new_expression":            true,
	"delete_expression":         true,
	"operator_name":             true,
	"destructor_name":           true,
	"static_assert_declaration": true,
	"try_statement":             true,
	"throw_statement":           true,
	"field_initializer_list":    true,
	"concept_definition":        true,
}

// maxWalkDepth bounds recursion on pathological inputs.
const maxWalkDepth = 256

// cppFeatures lists the distinct C++-only node kinds under root, sorted.
// Subtrees that failed to parse are skipped.
func cppFeatures(root *tree_sitter.Node) []string {
	seen := make(map[string]bool)
	walkFeatures(root, seen, 0)
	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func walkFeatures(n *tree_sitter.Node, seen map[string]bool, depth int) {
	if n == nil || depth > maxWalkDepth || n.IsError() {
		return
	}
	if kind := n.Kind(); cppOnlyKinds[kind] {
		seen[kind] = true
	}
	for i := uint(0); i < n.NamedChildCount(); i++ {
		walkFeatures(n.NamedChild(i), seen, depth+1)
	}
}
