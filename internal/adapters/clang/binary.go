package clang

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/corey/ccflags/internal/domain/flag"
	"github.com/corey/ccflags/internal/ports"
)

// BinaryInitFlags start every clang invocation of the binary engine.
var BinaryInitFlags = []string{"-c", "-fsyntax-only"}

// BinaryEngine runs the clang binary once per request. The view text is
// written to a private temp copy of the file so unsaved edits are seen.
type BinaryEngine struct {
	clang  string
	runner ports.Runner
	root   string
	log    *slog.Logger

	mu    sync.Mutex
	flags []flag.Flag
	dir   string
}

// NewBinaryEngine creates an engine for the clang binary. Temp copies live
// under tempDir.
func NewBinaryEngine(clang string, runner ports.Runner, tempDir string, logger *slog.Logger) *BinaryEngine {
	if clang == "" {
		clang = "clang++"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &BinaryEngine{
		clang:  clang,
		runner: runner,
		root:   tempDir,
		log:    logger.With("engine", ports.EngineBinary),
	}
}

// Kind returns ports.EngineBinary.
func (e *BinaryEngine) Kind() ports.EngineKind { return ports.EngineBinary }

// Init stores the flags used by every later call.
func (e *BinaryEngine) Init(_ context.Context, flags []flag.Flag) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.flags = flags
	return nil
}

// Complete runs clang with -code-completion-at and parses the result.
// clang often exits non-zero while still printing valid completions, so
// the exit code is logged and ignored.
func (e *BinaryEngine) Complete(ctx context.Context, view ports.SourceView, row, col int) ([]ports.Completion, error) {
	tmp, err := e.writeTemp(view)
	if err != nil {
		return nil, err
	}
	args := e.args()
	args = append(args, "-Xclang", fmt.Sprintf("-code-completion-at=%s:%d:%d", tmp, row, col), tmp)
	res, err := e.runner.Run(ctx, ports.Command{Name: e.clang, Args: args, Dir: filepath.Dir(view.FilePath())})
	if err != nil {
		return nil, fmt.Errorf("clang complete: %w", err)
	}
	if res.ExitCode != 0 {
		e.log.Debug("clang completion exited non-zero", "file", view.FilePath(), "code", res.ExitCode)
	}
	return ParseCompletions(string(res.Output)), nil
}

// Update compiles the view and returns its diagnostics.
func (e *BinaryEngine) Update(ctx context.Context, view ports.SourceView) ([]ports.Diagnostic, error) {
	tmp, err := e.writeTemp(view)
	if err != nil {
		return nil, err
	}
	args := append(e.args(), tmp)
	res, err := e.runner.Run(ctx, ports.Command{Name: e.clang, Args: args, Dir: filepath.Dir(view.FilePath())})
	if err != nil {
		return nil, fmt.Errorf("clang update: %w", err)
	}
	return ParseDiagnostics(string(res.Output), tmp, view.FilePath()), nil
}

// DeclarationLocation is not available from the binary.
func (e *BinaryEngine) DeclarationLocation(context.Context, ports.SourceView, int, int) (*ports.Location, error) {
	return nil, nil
}

// Close removes the temp copy.
func (e *BinaryEngine) Close() error {
	e.mu.Lock()
	dir := e.dir
	e.dir = ""
	e.mu.Unlock()
	if dir == "" {
		return nil
	}
	return os.RemoveAll(dir)
}

func (e *BinaryEngine) args() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return flag.Strings(e.flags)
}

// writeTemp copies the view text into the engine's temp dir. The base name
// is kept so clang picks the language from the extension.
func (e *BinaryEngine) writeTemp(view ports.SourceView) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.dir == "" {
		if err := os.MkdirAll(e.root, 0o755); err != nil {
			return "", fmt.Errorf("create temp root: %w", err)
		}
		dir, err := os.MkdirTemp(e.root, "view-*")
		if err != nil {
			return "", fmt.Errorf("create temp dir: %w", err)
		}
		e.dir = dir
	}
	tmp := filepath.Join(e.dir, filepath.Base(view.FilePath()))
	text := view.Text()
	if text == "" {
		if data, err := os.ReadFile(view.FilePath()); err == nil {
			text = string(data)
		}
	}
	if err := os.WriteFile(tmp, []byte(text), 0o644); err != nil {
		return "", fmt.Errorf("write temp copy: %w", err)
	}
	return tmp, nil
}
