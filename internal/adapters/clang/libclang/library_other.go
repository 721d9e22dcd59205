//go:build !darwin && !linux

package libclang

import (
	"context"
	"errors"
	"log/slog"

	"github.com/corey/ccflags/internal/domain/flag"
	"github.com/corey/ccflags/internal/ports"
)

// ErrNotFound is returned when no libclang shared library can be found.
var ErrNotFound = errors.New("libclang not found")

var errUnsupported = errors.New("libclang engine is not supported on this platform")

// Library is never loaded on this platform.
type Library struct{ Path string }

// Candidates is empty on this platform.
func Candidates() []string { return nil }

// Load always fails on this platform.
func Load(string) (*Library, error) { return nil, errUnsupported }

// Version returns "".
func (l *Library) Version() string { return "" }

// Engine is a placeholder that fails every call.
type Engine struct{}

// NewEngine returns a placeholder engine.
func NewEngine(*Library, *slog.Logger) *Engine { return &Engine{} }

func (e *Engine) Kind() ports.EngineKind                  { return ports.EngineLibclang }
func (e *Engine) Init(context.Context, []flag.Flag) error { return errUnsupported }
func (e *Engine) Complete(context.Context, ports.SourceView, int, int) ([]ports.Completion, error) {
	return nil, errUnsupported
}
func (e *Engine) Update(context.Context, ports.SourceView) ([]ports.Diagnostic, error) {
	return nil, errUnsupported
}
func (e *Engine) DeclarationLocation(context.Context, ports.SourceView, int, int) (*ports.Location, error) {
	return nil, errUnsupported
}
func (e *Engine) Close() error { return nil }
