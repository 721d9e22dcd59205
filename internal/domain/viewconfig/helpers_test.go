package viewconfig

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/corey/ccflags/internal/domain/flag"
	"github.com/corey/ccflags/internal/domain/settings"
	"github.com/corey/ccflags/internal/ports"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func bump(t *testing.T, path string) {
	t.Helper()
	info, err := os.Stat(path)
	require.NoError(t, err)
	later := info.ModTime().Add(10 * time.Second)
	require.NoError(t, os.Chtimes(path, later, later))
}

// testSettings returns settings that only read .clang_complete and never
// run a compiler.
func testSettings(root string) settings.Settings {
	s := settings.Default()
	s.FlagsSources = []settings.SourceEntry{{File: ".clang_complete"}}
	s.CommonFlags = nil
	s.UseDefaultIncludes = false
	s.ProjectFolder = root
	return s
}

// =============================================================================
// Fake engine
// =============================================================================

type fakeEngine struct {
	kind ports.EngineKind
	// onKind runs once on the next Kind call.
	onKind func()

	mu      sync.Mutex
	flags   []flag.Flag
	inits   int
	updates int
	closed  int
}

func (e *fakeEngine) Kind() ports.EngineKind {
	if hook := e.onKind; hook != nil {
		e.onKind = nil
		hook()
	}
	return e.kind
}

func (e *fakeEngine) Init(_ context.Context, flags []flag.Flag) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.inits++
	e.flags = flags
	return nil
}

func (e *fakeEngine) Complete(_ context.Context, view ports.SourceView, row, col int) ([]ports.Completion, error) {
	return []ports.Completion{{Trigger: "push_back", Hint: "void push_back(T)", Snippet: "push_back(${1:T})"}}, nil
}

func (e *fakeEngine) Update(_ context.Context, view ports.SourceView) ([]ports.Diagnostic, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.updates++
	return []ports.Diagnostic{{File: view.FilePath(), Line: 1, Col: 1, Severity: "warning", Message: "fake"}}, nil
}

func (e *fakeEngine) DeclarationLocation(_ context.Context, view ports.SourceView, row, col int) (*ports.Location, error) {
	return &ports.Location{File: view.FilePath(), Line: row, Col: col}, nil
}

func (e *fakeEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed++
	return nil
}

func (e *fakeEngine) closedCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

type fakeFactory struct {
	mu      sync.Mutex
	kind    ports.EngineKind
	err     error
	engines []*fakeEngine
}

func newFakeFactory() *fakeFactory { return &fakeFactory{kind: ports.EngineBinary} }

func (f *fakeFactory) setKind(k ports.EngineKind) {
	f.mu.Lock()
	f.kind = k
	f.mu.Unlock()
}

func (f *fakeFactory) Variant(ports.EngineOptions) ports.EngineVariant {
	f.mu.Lock()
	defer f.mu.Unlock()
	v := ports.EngineVariant{Kind: f.kind, IncludePrefixes: flag.DefaultIncludePrefixes}
	if f.kind == ports.EngineBinary {
		v.InitFlags = []string{"-c", "-fsyntax-only"}
		v.NeedLangFlags = true
	}
	return v
}

func (f *fakeFactory) New(_ context.Context, v ports.EngineVariant, _ ports.EngineOptions) (ports.CompletionEngine, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	e := &fakeEngine{kind: v.Kind}
	f.engines = append(f.engines, e)
	return e, nil
}

func (f *fakeFactory) created() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.engines)
}

func (f *fakeFactory) engine(i int) *fakeEngine {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.engines[i]
}

var errFactory = errors.New("no engine")

// =============================================================================
// Fake runner
// =============================================================================

type fakeRunner struct {
	mu     sync.Mutex
	calls  []ports.Command
	output string
}

func (r *fakeRunner) Run(_ context.Context, cmd ports.Command) (ports.Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, cmd)
	return ports.Result{Output: []byte(r.output)}, nil
}

func (r *fakeRunner) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

type staticBuiltins []string

func (s staticBuiltins) BuiltinFlags(context.Context, []string, string) []string { return s }

// clock is a settable time source.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *clock { return &clock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)} }

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}
