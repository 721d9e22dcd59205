package ports

import (
	"context"

	"github.com/corey/ccflags/internal/domain/buildfile"
	"github.com/corey/ccflags/internal/domain/flag"
)

// FlagsSource produces compiler flags for a file from one kind of build
// description (compile_commands.json, CMakeLists.txt, .clang_complete, ...).
//
// ok == false means no build description of this kind was found in scope, or
// the one found could not be used (parse error, cmake failure). ok == true
// with an empty slice means the description was found and yields no flags.
// Implementations never return errors: failures are logged and reported as
// ok == false so resolution can fall through to the next source.
type FlagsSource interface {
	// Flags returns the flags for file, searching for the build description
	// within scope. Implementations cache parses and re-read only when the
	// build description's mtime changes.
	Flags(ctx context.Context, file string, scope buildfile.SearchScope) (flags []flag.Flag, ok bool)

	// Name is the build description file name this source reads.
	Name() string
}

// Origin is implemented by sources that can report which build file the
// last successful lookup for a file came from. Used to invalidate cached
// view configs when that build file changes.
type Origin interface {
	OriginOf(file string) string
}
