package ports

import (
	"context"

	"github.com/corey/ccflags/internal/domain/flag"
)

// EngineKind identifies a completion engine variant.
type EngineKind string

const (
	EngineBinary   EngineKind = "bin" // clang binary in a subprocess
	EngineLibclang EngineKind = "lib" // libclang loaded in-process
)

// SourceView is the read-only view of an open file supplied by the editor.
type SourceView interface {
	FilePath() string
	Text() string
	// Cursor returns the 1-based (row, col) of the cursor.
	Cursor() (row, col int)
	// LangHint is the editor's language for the buffer ("c", "c++",
	// "objective-c", "objective-c++") or "" when unknown.
	LangHint() string
}

// CompletionEngine turns a file, its flags and a cursor position into
// completions and diagnostics. One engine instance belongs to one view
// config; it is rebuilt whenever the resolved flags change.
type CompletionEngine interface {
	// Kind names the variant.
	Kind() EngineKind

	// Init prepares the engine for flags. Called once per engine.
	Init(ctx context.Context, flags []flag.Flag) error

	// Complete returns completions at the cursor position (1-based).
	Complete(ctx context.Context, view SourceView, row, col int) ([]Completion, error)

	// Update re-parses the view's content and returns diagnostics.
	Update(ctx context.Context, view SourceView) ([]Diagnostic, error)

	// DeclarationLocation returns where the symbol under (row, col) is
	// declared. Returns nil, nil when the engine cannot tell.
	DeclarationLocation(ctx context.Context, view SourceView, row, col int) (*Location, error)

	// Close releases engine resources. Safe to call multiple times.
	Close() error
}

// Completion is one completion candidate.
type Completion struct {
	Trigger string `json:"trigger"` // text matched against what the user typed
	Hint    string `json:"hint"`    // human readable signature
	Snippet string `json:"snippet"` // insertion text with ${n:placeholder} fields
}

// Diagnostic is one compiler message attached to a location.
type Diagnostic struct {
	File     string `json:"file"`
	Line     int    `json:"line"`
	Col      int    `json:"col"`
	Severity string `json:"severity"` // "error", "warning", "note", "fatal error"
	Message  string `json:"message"`
}

// Location is a position in a file.
type Location struct {
	File string `json:"file"`
	Line int    `json:"line"`
	Col  int    `json:"col"`
}

// EngineOptions are the settings an engine factory needs.
type EngineOptions struct {
	UseLibclang  bool
	LibclangPath string
	ClangBinary  string
}

// EngineVariant describes what flags an engine kind expects.
type EngineVariant struct {
	Kind EngineKind
	// InitFlags are always passed first (e.g. -c -fsyntax-only).
	InitFlags []string
	// IncludePrefixes mark flags whose body is an include folder.
	IncludePrefixes []string
	// NeedLangFlags adds "-x <language>" to the language flags.
	NeedLangFlags bool
}

// EngineFactory selects and builds completion engines. Variant is cheap and
// decides once per resolution which kind to use, falling back from libclang
// to the binary when the library cannot be loaded.
type EngineFactory interface {
	Variant(opts EngineOptions) EngineVariant
	New(ctx context.Context, variant EngineVariant, opts EngineOptions) (CompletionEngine, error)
}
