// Package clang provides the completion engines: the clang binary run as a
// subprocess and libclang loaded in-process. Factory picks one per view,
// falling back to the binary whenever libclang cannot be loaded.
package clang

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/corey/ccflags/internal/adapters/clang/libclang"
	"github.com/corey/ccflags/internal/domain/flag"
	"github.com/corey/ccflags/internal/ports"
)

// LibraryLoader opens libclang. Tests replace it.
type LibraryLoader func(path string) (*libclang.Library, error)

// FactoryConfig configures a Factory.
type FactoryConfig struct {
	Runner  ports.Runner
	TempDir string
	Load    LibraryLoader
	Logger  *slog.Logger
}

// Factory implements ports.EngineFactory.
type Factory struct {
	cfg FactoryConfig
	log *slog.Logger

	mu   sync.Mutex
	libs map[string]loaded
}

type loaded struct {
	lib *libclang.Library
	err error
}

// NewFactory creates an engine factory.
func NewFactory(cfg FactoryConfig) *Factory {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Load == nil {
		cfg.Load = libclang.Load
	}
	if cfg.TempDir == "" {
		cfg.TempDir = filepath.Join(os.TempDir(), "ccflags")
	}
	return &Factory{
		cfg:  cfg,
		log:  cfg.Logger.With("component", "engines"),
		libs: make(map[string]loaded),
	}
}

// BinaryVariant is the flag shape of the clang binary engine.
func BinaryVariant() ports.EngineVariant {
	return ports.EngineVariant{
		Kind:            ports.EngineBinary,
		InitFlags:       BinaryInitFlags,
		IncludePrefixes: flag.DefaultIncludePrefixes,
		NeedLangFlags:   true,
	}
}

// LibclangVariant is the flag shape of the libclang engine.
func LibclangVariant() ports.EngineVariant {
	return ports.EngineVariant{
		Kind:            ports.EngineLibclang,
		IncludePrefixes: flag.DefaultIncludePrefixes,
		NeedLangFlags:   true,
	}
}

// Variant returns the libclang variant when it is requested and loadable,
// the binary variant otherwise.
func (f *Factory) Variant(opts ports.EngineOptions) ports.EngineVariant {
	if opts.UseLibclang {
		if _, err := f.library(opts.LibclangPath); err == nil {
			return LibclangVariant()
		}
	}
	return BinaryVariant()
}

// New builds an engine for variant. A libclang variant whose library went
// away since Variant falls back to the binary.
func (f *Factory) New(_ context.Context, variant ports.EngineVariant, opts ports.EngineOptions) (ports.CompletionEngine, error) {
	if variant.Kind == ports.EngineLibclang {
		lib, err := f.library(opts.LibclangPath)
		if err == nil {
			return libclang.NewEngine(lib, f.cfg.Logger), nil
		}
		f.log.Warn("libclang unavailable, using clang binary", "err", err)
	}
	if f.cfg.Runner == nil {
		return nil, fmt.Errorf("binary engine: no runner configured")
	}
	return NewBinaryEngine(opts.ClangBinary, f.cfg.Runner, f.cfg.TempDir, f.cfg.Logger), nil
}

// library loads libclang once per path. Load errors and panics are cached
// too, so a broken installation is reported once.
func (f *Factory) library(path string) (*libclang.Library, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if l, ok := f.libs[path]; ok {
		return l.lib, l.err
	}
	lib, err := f.load(path)
	if err != nil {
		f.log.Warn("cannot load libclang", "path", path, "err", err)
	} else {
		f.log.Info("loaded libclang", "path", lib.Path, "version", lib.Version())
	}
	f.libs[path] = loaded{lib: lib, err: err}
	return lib, err
}

func (f *Factory) load(path string) (lib *libclang.Library, err error) {
	defer func() {
		if p := recover(); p != nil {
			lib, err = nil, fmt.Errorf("libclang load panicked: %v", p)
		}
	}()
	return f.cfg.Load(path)
}
