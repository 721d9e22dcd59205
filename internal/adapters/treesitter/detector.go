// Package treesitter decides whether an ambiguous header (.h) is C or C++ by
// parsing it with the tree-sitter C and C++ grammars.
//
// The C and C++ grammars are compiled in via CGo. Builds with -tags lean
// load them from .so/.dylib files through the DynamicLoader (purego).
package treesitter

import (
	"sync"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
)

// Grammar names.
const (
	LangC   = "c"
	LangCPP = "cpp"
)

// Verdict is the outcome of classifying one header.
type Verdict struct {
	Lang string // "c" or "c++"; "" when undecided
	// Features are the C++-only node kinds that decided the verdict.
	Features []string
}

// Detector implements ports.LangDetector.
type Detector struct {
	mu        sync.Mutex
	languages map[string]*tree_sitter.Language // grammar name -> language
	loader    *DynamicLoader                   // optional: loads grammars from .so/.dylib
}

// NewDetector creates a detector with the built-in grammars registered.
func NewDetector() *Detector {
	d := &Detector{languages: make(map[string]*tree_sitter.Language)}
	d.registerBuiltinLanguages()
	return d
}

// addLang registers a grammar by name.
func (d *Detector) addLang(name string, lang *tree_sitter.Language) {
	if lang != nil {
		d.languages[name] = lang
	}
}

// SetGrammarPaths enables dynamic grammar loading from the given folders.
// Project-local paths should come first, global paths last.
func (d *Detector) SetGrammarPaths(paths []string) {
	d.mu.Lock()
	d.loader = NewDynamicLoader(paths)
	d.mu.Unlock()
}

// Loader returns the dynamic grammar loader, or nil if not configured.
func (d *Detector) Loader() *DynamicLoader {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.loader
}

// HasLanguage reports whether a grammar is available, compiled-in or
// loadable.
func (d *Detector) HasLanguage(name string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.languages[name]; ok {
		return true
	}
	return d.loader != nil && d.loader.GrammarPath(name) != ""
}

func (d *Detector) language(name string) *tree_sitter.Language {
	d.mu.Lock()
	defer d.mu.Unlock()
	if lang, ok := d.languages[name]; ok {
		return lang
	}
	if d.loader == nil {
		return nil
	}
	lang, err := d.loader.LoadGrammar(name)
	if err != nil {
		return nil // degrade gracefully
	}
	d.languages[name] = lang
	return lang
}

// DetectHeader returns "c" or "c++" for source, and false when no grammar
// is available or the source is empty.
func (d *Detector) DetectHeader(_ string, source []byte) (string, bool) {
	v := d.Classify(source)
	return v.Lang, v.Lang != ""
}

// Classify parses source as C++ first. Any C++-only construct makes it C++.
// Otherwise the header is C when it parses cleanly as C, and C++ when only
// the C++ grammar accepts it.
func (d *Detector) Classify(source []byte) Verdict {
	if len(source) == 0 {
		return Verdict{}
	}
	cppErr, features, okCPP := d.parse(LangCPP, source)
	if okCPP && len(features) > 0 {
		return Verdict{Lang: "c++", Features: features}
	}
	cErr, _, okC := d.parse(LangC, source)
	switch {
	case okC && !cErr:
		return Verdict{Lang: "c"}
	case okCPP && !cppErr:
		return Verdict{Lang: "c++"}
	case okC:
		return Verdict{Lang: "c"}
	}
	return Verdict{}
}

// parse returns whether the tree has errors and the C++-only features found.
// ok is false when the grammar is unavailable.
func (d *Detector) parse(name string, source []byte) (hasError bool, features []string, ok bool) {
	lang := d.language(name)
	if lang == nil {
		return false, nil, false
	}
	parser := tree_sitter.NewParser()
	defer parser.Close()
	if err := parser.SetLanguage(lang); err != nil {
		return false, nil, false
	}
	tree := parser.Parse(source, nil)
	if tree == nil {
		return false, nil, false
	}
	defer tree.Close()

	root := tree.RootNode()
	if name == LangCPP {
		features = cppFeatures(root)
	}
	return root.HasError(), features, true
}
