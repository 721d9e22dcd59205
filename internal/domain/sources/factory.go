package sources

import (
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/time/rate"

	"github.com/corey/ccflags/internal/ports"
)

// ErrUnknownSource is returned by New for a file name no source understands.
var ErrUnknownSource = errors.New("unknown flags source")

// Known lists the build description file names New accepts.
var Known = []string{
	CMakeListsFile,
	CompilationDbFile,
	FlagsFileName,
	CCppPropertiesFile,
	CppPropertiesFile,
}

// Entry is one configured flags source.
type Entry struct {
	File string
	// PrefixPaths feed CMAKE_PREFIX_PATH (CMake only).
	PrefixPaths []string
	// Flags are extra cmake arguments (CMake only).
	Flags []string
}

// Deps are the collaborators shared by every source built by New.
type Deps struct {
	Caches          *Caches
	Runner          ports.Runner
	Store           ports.BuildStore
	ProjectID       string
	CMakeBinary     string
	TempDir         string
	HeaderToSource  []string
	Builtins        BuiltinsProvider
	Limiter         *rate.Limiter
	IncludePrefixes []string
	Logger          *slog.Logger
}

// New builds the source for entry.
func New(entry Entry, deps Deps) (ports.FlagsSource, error) {
	switch entry.File {
	case CompilationDbFile:
		return NewCompilationDb(CompilationDbConfig{
			Caches:         deps.Caches,
			HeaderToSource: deps.HeaderToSource,
			Builtins:       deps.Builtins,
			Logger:         deps.Logger,
		}), nil
	case CMakeListsFile:
		if deps.Runner == nil {
			return nil, fmt.Errorf("%s: no runner configured", entry.File)
		}
		return NewCMakeFile(CMakeConfig{
			Caches:         deps.Caches,
			Runner:         deps.Runner,
			Store:          deps.Store,
			ProjectID:      deps.ProjectID,
			Binary:         deps.CMakeBinary,
			Flags:          entry.Flags,
			PrefixPaths:    entry.PrefixPaths,
			TempDir:        deps.TempDir,
			HeaderToSource: deps.HeaderToSource,
			Builtins:       deps.Builtins,
			Limiter:        deps.Limiter,
			Logger:         deps.Logger,
		}), nil
	case FlagsFileName:
		return NewFlagsFile(FlagsFileConfig{
			Caches:          deps.Caches,
			IncludePrefixes: deps.IncludePrefixes,
			Logger:          deps.Logger,
		}), nil
	case CCppPropertiesFile, CppPropertiesFile:
		return NewProperties(PropertiesConfig{
			Caches:   deps.Caches,
			FileName: entry.File,
			Logger:   deps.Logger,
		}), nil
	}
	return nil, fmt.Errorf("%q: %w", entry.File, ErrUnknownSource)
}

// NewAll builds every entry in order. The first unknown entry aborts.
func NewAll(entries []Entry, deps Deps) ([]ports.FlagsSource, error) {
	out := make([]ports.FlagsSource, 0, len(entries))
	for _, e := range entries {
		s, err := New(e, deps)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}
