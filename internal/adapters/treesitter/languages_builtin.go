//go:build !lean

package treesitter

// This file registers the compiled-in C and C++ grammars. It is excluded
// when building with -tags lean, which loads them dynamically instead.

import (
	"unsafe"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	ts_c "github.com/tree-sitter/tree-sitter-c/bindings/go"
	ts_cpp "github.com/tree-sitter/tree-sitter-cpp/bindings/go"
)

// langPtr wraps a Language() call that returns unsafe.Pointer.
func langPtr(p unsafe.Pointer) *tree_sitter.Language {
	return tree_sitter.NewLanguage(p)
}

// registerBuiltinLanguages adds the compiled-in grammars to the detector.
func (d *Detector) registerBuiltinLanguages() {
	d.addLang(LangC, langPtr(ts_c.Language()))
	d.addLang(LangCPP, langPtr(ts_cpp.Language()))
}
