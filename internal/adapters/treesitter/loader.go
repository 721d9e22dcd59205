package treesitter

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"unsafe"

	"github.com/ebitengine/purego"
	tree_sitter "github.com/tree-sitter/go-tree-sitter"
)

// DynamicLoader loads tree-sitter grammars from shared libraries (.so on Linux,
// .dylib on macOS) using purego. It searches configured paths for grammar files
// and caches loaded languages for reuse.
type DynamicLoader struct {
	searchPaths []string
	mu          sync.Mutex
	loaded      map[string]*tree_sitter.Language
	handles     []uintptr
}

// NewDynamicLoader creates a loader that searches the given paths for grammar
// shared libraries. Paths are searched in order; first match wins.
func NewDynamicLoader(searchPaths []string) *DynamicLoader {
	return &DynamicLoader{
		searchPaths: searchPaths,
		loaded:      make(map[string]*tree_sitter.Language),
	}
}

// DefaultGrammarPaths returns the default search paths for grammar shared libraries.
// Project-local (.ccflags/grammars/) is searched first, then global (~/.ccflags/grammars/).
func DefaultGrammarPaths(projectRoot string) []string {
	var paths []string
	if projectRoot != "" {
		paths = append(paths, filepath.Join(projectRoot, ".ccflags", "grammars"))
	}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".ccflags", "grammars"))
	}
	return paths
}

// LibExtension returns the shared library extension for the current platform.
func LibExtension() string {
	if runtime.GOOS == "darwin" {
		return ".dylib"
	}
	return ".so"
}

// CSymbolName returns the C function exporting a grammar: tree_sitter_{name}.
func CSymbolName(lang string) string {
	return "tree_sitter_" + strings.ReplaceAll(lang, "-", "_")
}

// libNames lists accepted file base names for a grammar, most specific first.
func libNames(lang string) []string {
	return []string{lang, "libtree-sitter-" + lang, "tree-sitter-" + lang}
}

// LoadGrammar loads a grammar from a shared library for the given language.
// Results are cached; subsequent calls for the same language return the cached value.
func (dl *DynamicLoader) LoadGrammar(lang string) (*tree_sitter.Language, error) {
	dl.mu.Lock()
	defer dl.mu.Unlock()

	if cached, ok := dl.loaded[lang]; ok {
		return cached, nil
	}

	soPath := dl.grammarPath(lang)
	if soPath == "" {
		return nil, fmt.Errorf("grammar %q: shared library not found in search paths", lang)
	}

	handle, err := purego.Dlopen(soPath, purego.RTLD_LAZY)
	if err != nil {
		return nil, fmt.Errorf("grammar %q: dlopen %s: %w", lang, soPath, err)
	}
	dl.handles = append(dl.handles, handle)

	symName := CSymbolName(lang)
	var langFunc func() uintptr
	purego.RegisterLibFunc(&langFunc, handle, symName)

	ptr := langFunc()
	if ptr == 0 {
		return nil, fmt.Errorf("grammar %q: %s() returned null", lang, symName)
	}

	// Convert uintptr from C (purego) to unsafe.Pointer without triggering go vet's
	// unsafeptr check. ptr is a static TSLanguage* owned by the grammar library.
	language := tree_sitter.NewLanguage(*(*unsafe.Pointer)(unsafe.Pointer(&ptr)))
	dl.loaded[lang] = language
	return language, nil
}

// GrammarPath returns the path to the shared library for a language, or "" if not found.
func (dl *DynamicLoader) GrammarPath(lang string) string {
	dl.mu.Lock()
	defer dl.mu.Unlock()
	return dl.grammarPath(lang)
}

func (dl *DynamicLoader) grammarPath(lang string) string {
	ext := LibExtension()
	for _, dir := range dl.searchPaths {
		for _, base := range libNames(lang) {
			candidate := filepath.Join(dir, base+ext)
			if _, err := os.Stat(candidate); err == nil {
				return candidate
			}
		}
	}
	return ""
}

// InstalledGrammars returns grammar names found as shared libraries in the
// search paths.
func (dl *DynamicLoader) InstalledGrammars() []string {
	ext := LibExtension()
	seen := make(map[string]bool)
	var names []string
	for _, dir := range dl.searchPaths {
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, e := range entries {
			name := e.Name()
			if e.IsDir() || !strings.HasSuffix(name, ext) {
				continue
			}
			lang := strings.TrimSuffix(name, ext)
			lang = strings.TrimPrefix(strings.TrimPrefix(lang, "lib"), "tree-sitter-")
			if !seen[lang] {
				seen[lang] = true
				names = append(names, lang)
			}
		}
	}
	return names
}

// Close drops cached grammars and dlopen handles.
func (dl *DynamicLoader) Close() {
	dl.mu.Lock()
	defer dl.mu.Unlock()
	dl.handles = nil
	dl.loaded = make(map[string]*tree_sitter.Language)
}

// SearchPaths returns the configured search paths.
func (dl *DynamicLoader) SearchPaths() []string {
	return dl.searchPaths
}
