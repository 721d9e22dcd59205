//go:build darwin || linux

// Package libclang binds the libclang C API with purego, so the daemon can
// keep translation units in-process without cgo.
package libclang

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"unsafe"

	"github.com/ebitengine/purego"
)

// C layouts of the libclang value types passed across the boundary.
type (
	cxString struct {
		data  unsafe.Pointer
		flags uint32
	}
	cxSourceLocation struct {
		ptrData [2]unsafe.Pointer
		intData uint32
	}
	cxCursor struct {
		kind  int32
		xdata int32
		data  [3]unsafe.Pointer
	}
	cxUnsavedFile struct {
		filename *byte
		contents *byte
		length   uint64 // unsigned long
	}
	cxCodeCompleteResults struct {
		results    unsafe.Pointer
		numResults uint32
	}
	cxCompletionResult struct {
		cursorKind       int32
		completionString unsafe.Pointer
	}
)

// Library is a loaded libclang with the functions the engine needs.
type Library struct {
	Path   string
	handle uintptr

	createIndex                func(excludePCH, displayDiagnostics int32) unsafe.Pointer
	disposeIndex               func(index unsafe.Pointer)
	defaultEditingOptions      func() uint32
	parseTranslationUnit       func(index unsafe.Pointer, file string, args unsafe.Pointer, numArgs int32, unsaved unsafe.Pointer, numUnsaved uint32, options uint32) unsafe.Pointer
	reparseTranslationUnit     func(tu unsafe.Pointer, numUnsaved uint32, unsaved unsafe.Pointer, options uint32) int32
	defaultReparseOptions      func(tu unsafe.Pointer) uint32
	disposeTranslationUnit     func(tu unsafe.Pointer)
	getNumDiagnostics          func(tu unsafe.Pointer) uint32
	getDiagnostic              func(tu unsafe.Pointer, i uint32) unsafe.Pointer
	disposeDiagnostic          func(d unsafe.Pointer)
	getDiagnosticSeverity      func(d unsafe.Pointer) int32
	getDiagnosticSpelling      func(d unsafe.Pointer) cxString
	getDiagnosticLocation      func(d unsafe.Pointer) cxSourceLocation
	getSpellingLocation        func(loc cxSourceLocation, file *unsafe.Pointer, line, col, offset *uint32)
	getFileName                func(file unsafe.Pointer) cxString
	getCString                 func(s cxString) string
	disposeString              func(s cxString)
	getClangVersion            func() cxString
	codeCompleteAt             func(tu unsafe.Pointer, file string, line, col uint32, unsaved unsafe.Pointer, numUnsaved uint32, options uint32) unsafe.Pointer
	disposeCodeCompleteResults func(r unsafe.Pointer)
	getNumCompletionChunks     func(cs unsafe.Pointer) uint32
	getCompletionChunkKind     func(cs unsafe.Pointer, i uint32) int32
	getCompletionChunkText     func(cs unsafe.Pointer, i uint32) cxString
	getFile                    func(tu unsafe.Pointer, name string) unsafe.Pointer
	getLocation                func(tu unsafe.Pointer, file unsafe.Pointer, line, col uint32) cxSourceLocation
	getCursor                  func(tu unsafe.Pointer, loc cxSourceLocation) cxCursor
	getCursorReferenced        func(c cxCursor) cxCursor
	getCursorLocation          func(c cxCursor) cxSourceLocation
	cursorIsNull               func(c cxCursor) int32
}

// ErrNotFound is returned when no libclang shared library can be found.
var ErrNotFound = errors.New("libclang not found")

// Candidates lists where libclang is looked for when no path is configured.
func Candidates() []string {
	if runtime.GOOS == "darwin" {
		return []string{
			"/Library/Developer/CommandLineTools/usr/lib/libclang.dylib",
			"/Applications/Xcode.app/Contents/Developer/Toolchains/XcodeDefault.xctoolchain/usr/lib/libclang.dylib",
			"/opt/homebrew/opt/llvm/lib/libclang.dylib",
			"/usr/local/opt/llvm/lib/libclang.dylib",
			"libclang.dylib",
		}
	}
	out := []string{"libclang.so", "libclang.so.1"}
	for v := 20; v >= 10; v-- {
		out = append(out, fmt.Sprintf("libclang-%d.so", v), fmt.Sprintf("/usr/lib/llvm-%d/lib/libclang.so", v))
	}
	return out
}

// Load opens libclang. A configured path may name the library itself or a
// folder containing it; an empty path tries Candidates. Missing symbols make
// purego panic, which Load turns into an error.
func Load(path string) (lib *Library, err error) {
	var tries []string
	switch {
	case path == "":
		tries = Candidates()
	case isDir(path):
		name := "libclang.so"
		if runtime.GOOS == "darwin" {
			name = "libclang.dylib"
		}
		tries = []string{filepath.Join(path, name)}
	default:
		tries = []string{path}
	}

	var handle uintptr
	var used string
	for _, p := range tries {
		h, derr := purego.Dlopen(p, purego.RTLD_NOW|purego.RTLD_GLOBAL)
		if derr == nil {
			handle, used = h, p
			break
		}
	}
	if handle == 0 {
		return nil, fmt.Errorf("%w (tried %d locations)", ErrNotFound, len(tries))
	}

	defer func() {
		if p := recover(); p != nil {
			lib, err = nil, fmt.Errorf("libclang %s: %v", used, p)
		}
	}()
	lib = &Library{Path: used, handle: handle}
	lib.register()
	return lib, nil
}

func (l *Library) register() {
	reg := func(fn interface{}, name string) { purego.RegisterLibFunc(fn, l.handle, name) }
	reg(&l.createIndex, "clang_createIndex")
	reg(&l.disposeIndex, "clang_disposeIndex")
	reg(&l.defaultEditingOptions, "clang_defaultEditingTranslationUnitOptions")
	reg(&l.parseTranslationUnit, "clang_parseTranslationUnit")
	reg(&l.reparseTranslationUnit, "clang_reparseTranslationUnit")
	reg(&l.defaultReparseOptions, "clang_defaultReparseOptions")
	reg(&l.disposeTranslationUnit, "clang_disposeTranslationUnit")
	reg(&l.getNumDiagnostics, "clang_getNumDiagnostics")
	reg(&l.getDiagnostic, "clang_getDiagnostic")
	reg(&l.disposeDiagnostic, "clang_disposeDiagnostic")
	reg(&l.getDiagnosticSeverity, "clang_getDiagnosticSeverity")
	reg(&l.getDiagnosticSpelling, "clang_getDiagnosticSpelling")
	reg(&l.getDiagnosticLocation, "clang_getDiagnosticLocation")
	reg(&l.getSpellingLocation, "clang_getSpellingLocation")
	reg(&l.getFileName, "clang_getFileName")
	reg(&l.getCString, "clang_getCString")
	reg(&l.disposeString, "clang_disposeString")
	reg(&l.getClangVersion, "clang_getClangVersion")
	reg(&l.codeCompleteAt, "clang_codeCompleteAt")
	reg(&l.disposeCodeCompleteResults, "clang_disposeCodeCompleteResults")
	reg(&l.getNumCompletionChunks, "clang_getNumCompletionChunks")
	reg(&l.getCompletionChunkKind, "clang_getCompletionChunkKind")
	reg(&l.getCompletionChunkText, "clang_getCompletionChunkText")
	reg(&l.getFile, "clang_getFile")
	reg(&l.getLocation, "clang_getLocation")
	reg(&l.getCursor, "clang_getCursor")
	reg(&l.getCursorReferenced, "clang_getCursorReferenced")
	reg(&l.getCursorLocation, "clang_getCursorLocation")
	reg(&l.cursorIsNull, "clang_Cursor_isNull")
}

// Version returns libclang's version string, e.g. "clang version 17.0.6".
func (l *Library) Version() string {
	return l.str(l.getClangVersion())
}

// str copies and disposes a CXString.
func (l *Library) str(s cxString) string {
	out := l.getCString(s)
	l.disposeString(s)
	return out
}

func (l *Library) spelling(loc cxSourceLocation) (file string, line, col int) {
	var f unsafe.Pointer
	var ln, cl, off uint32
	l.getSpellingLocation(loc, &f, &ln, &cl, &off)
	if f != nil {
		file = l.str(l.getFileName(f))
	}
	return file, int(ln), int(cl)
}

// cArray is a NUL-terminated char*[] backed by Go memory. It must stay
// reachable (runtime.KeepAlive) until the C call returns.
type cArray struct {
	ptrs []*byte
	bufs [][]byte
}

func newCArray(args []string) *cArray {
	a := &cArray{ptrs: make([]*byte, len(args)), bufs: make([][]byte, len(args))}
	for i, s := range args {
		a.bufs[i] = append([]byte(s), 0)
		a.ptrs[i] = &a.bufs[i][0]
	}
	return a
}

func (a *cArray) ptr() unsafe.Pointer {
	if len(a.ptrs) == 0 {
		return nil
	}
	return unsafe.Pointer(&a.ptrs[0])
}

// unsaved is the in-memory content of one file handed to libclang.
type unsaved struct {
	file cxUnsavedFile
	name []byte
	body []byte
}

func newUnsaved(file, text string) *unsaved {
	u := &unsaved{name: append([]byte(file), 0), body: append([]byte(text), 0)}
	u.file = cxUnsavedFile{filename: &u.name[0], contents: &u.body[0], length: uint64(len(text))}
	return u
}

func (u *unsaved) ptr() unsafe.Pointer {
	if u == nil {
		return nil
	}
	return unsafe.Pointer(&u.file)
}

func isDir(p string) bool {
	info, err := os.Stat(p)
	return err == nil && info.IsDir()
}
