//go:build darwin || linux

package libclang

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"unsafe"

	"github.com/corey/ccflags/internal/domain/flag"
	"github.com/corey/ccflags/internal/ports"
)

// codeCompleteIncludeMacros is CXCodeComplete_IncludeMacros.
const codeCompleteIncludeMacros = 0x01

var errNoTU = errors.New("libclang could not parse translation unit")

// Engine keeps one translation unit in-process and reparses it on update.
type Engine struct {
	lib *Library
	log *slog.Logger

	mu    sync.Mutex
	index unsafe.Pointer
	tu    unsafe.Pointer
	file  string
	args  []string
}

// NewEngine creates an engine on a loaded library.
func NewEngine(lib *Library, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{lib: lib, log: logger.With("engine", ports.EngineLibclang)}
}

// Kind returns ports.EngineLibclang.
func (e *Engine) Kind() ports.EngineKind { return ports.EngineLibclang }

// Init creates the index. The translation unit is parsed on first use.
func (e *Engine) Init(_ context.Context, flags []flag.Flag) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.args = flag.Strings(flags)
	if e.index == nil {
		e.index = e.lib.createIndex(0, 0)
		if e.index == nil {
			return fmt.Errorf("clang_createIndex failed")
		}
	}
	return nil
}

// Update parses or reparses the view and returns its diagnostics.
func (e *Engine) Update(_ context.Context, view ports.SourceView) ([]ports.Diagnostic, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.parse(view); err != nil {
		return nil, err
	}
	return e.diagnostics(), nil
}

// Complete returns completions at (row, col).
func (e *Engine) Complete(_ context.Context, view ports.SourceView, row, col int) ([]ports.Completion, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.tu == nil || e.file != view.FilePath() {
		if err := e.parse(view); err != nil {
			return nil, err
		}
	}
	u, n := unsavedFor(view)
	res := e.lib.codeCompleteAt(e.tu, view.FilePath(), uint32(row), uint32(col), u.ptr(), n, codeCompleteIncludeMacros)
	runtime.KeepAlive(u)
	if res == nil {
		return nil, nil
	}
	defer e.lib.disposeCodeCompleteResults(res)

	results := (*cxCodeCompleteResults)(res)
	if results.numResults == 0 {
		return nil, nil
	}
	items := unsafe.Slice((*cxCompletionResult)(results.results), results.numResults)
	out := make([]ports.Completion, 0, len(items))
	for _, it := range items {
		n := e.lib.getNumCompletionChunks(it.completionString)
		chunks := make([]Chunk, 0, n)
		for i := uint32(0); i < n; i++ {
			chunks = append(chunks, Chunk{
				Kind: ChunkKind(e.lib.getCompletionChunkKind(it.completionString, i)),
				Text: e.lib.str(e.lib.getCompletionChunkText(it.completionString, i)),
			})
		}
		if c := Completion(chunks); c.Trigger != "" {
			out = append(out, c)
		}
	}
	return out, nil
}

// DeclarationLocation follows the cursor at (row, col) to the entity it
// references.
func (e *Engine) DeclarationLocation(_ context.Context, view ports.SourceView, row, col int) (*ports.Location, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.tu == nil || e.file != view.FilePath() {
		if err := e.parse(view); err != nil {
			return nil, err
		}
	}
	f := e.lib.getFile(e.tu, view.FilePath())
	if f == nil {
		return nil, nil
	}
	cur := e.lib.getCursor(e.tu, e.lib.getLocation(e.tu, f, uint32(row), uint32(col)))
	ref := e.lib.getCursorReferenced(cur)
	if e.lib.cursorIsNull(ref) != 0 {
		return nil, nil
	}
	file, line, c := e.lib.spelling(e.lib.getCursorLocation(ref))
	if file == "" {
		return nil, nil
	}
	return &ports.Location{File: file, Line: line, Col: c}, nil
}

// Close disposes the translation unit and the index.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.tu != nil {
		e.lib.disposeTranslationUnit(e.tu)
		e.tu = nil
	}
	if e.index != nil {
		e.lib.disposeIndex(e.index)
		e.index = nil
	}
	return nil
}

// parse must be called with e.mu held.
func (e *Engine) parse(view ports.SourceView) error {
	if e.index == nil {
		return fmt.Errorf("libclang engine used before Init")
	}
	file := view.FilePath()
	u, n := unsavedFor(view)
	defer runtime.KeepAlive(u)

	if e.tu != nil && e.file == file {
		if rc := e.lib.reparseTranslationUnit(e.tu, n, u.ptr(), e.lib.defaultReparseOptions(e.tu)); rc == 0 {
			return nil
		}
		e.log.Debug("reparse failed, parsing from scratch", "file", file)
	}
	if e.tu != nil {
		e.lib.disposeTranslationUnit(e.tu)
		e.tu = nil
	}

	args := newCArray(e.args)
	e.tu = e.lib.parseTranslationUnit(e.index, file, args.ptr(), int32(len(e.args)), u.ptr(), n, e.lib.defaultEditingOptions())
	runtime.KeepAlive(args)
	if e.tu == nil {
		return fmt.Errorf("%s: %w", file, errNoTU)
	}
	e.file = file
	return nil
}

// unsavedFor returns the buffer content to hand to libclang. An empty view
// text means the file on disk is current.
func unsavedFor(view ports.SourceView) (*unsaved, uint32) {
	if view.Text() == "" {
		return nil, 0
	}
	return newUnsaved(view.FilePath(), view.Text()), 1
}

func (e *Engine) diagnostics() []ports.Diagnostic {
	n := e.lib.getNumDiagnostics(e.tu)
	out := make([]ports.Diagnostic, 0, n)
	for i := uint32(0); i < n; i++ {
		d := e.lib.getDiagnostic(e.tu, i)
		if d == nil {
			continue
		}
		sev := Severity(e.lib.getDiagnosticSeverity(d))
		if sev != "" {
			file, line, col := e.lib.spelling(e.lib.getDiagnosticLocation(d))
			out = append(out, ports.Diagnostic{
				File:     file,
				Line:     line,
				Col:      col,
				Severity: sev,
				Message:  e.lib.str(e.lib.getDiagnosticSpelling(d)),
			})
		}
		e.lib.disposeDiagnostic(d)
	}
	return out
}
