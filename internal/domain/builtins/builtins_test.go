package builtins

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corey/ccflags/internal/ports"
)

const definesOutput = `#define __GNUC__ 13
#define __x86_64__ 1
#define __STDC_HOSTED__ 1
#define __cplusplus 201703L
#define __FLAT__
`

const includesOutput = `ignoring nonexistent directory "/usr/local/include/x86_64-linux-gnu"
#include "..." search starts here:
#include <...> search starts here:
 /usr/include/c++/13
 /usr/lib/gcc/x86_64-linux-gnu/13/include
 /System/Library/Frameworks (framework directory)
End of search list.
 /not/included
`

type fakeRunner struct {
	mu    sync.Mutex
	calls []ports.Command
	err   error
}

func (r *fakeRunner) Run(_ context.Context, cmd ports.Command) (ports.Result, error) {
	r.mu.Lock()
	r.calls = append(r.calls, cmd)
	r.mu.Unlock()
	if r.err != nil {
		return ports.Result{}, r.err
	}
	if strings.Contains(strings.Join(cmd.Args, " "), "-dM") {
		return ports.Result{Output: []byte(definesOutput)}, nil
	}
	return ports.Result{Output: []byte(includesOutput)}, nil
}

func (r *fakeRunner) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

// =============================================================================
// Query
// =============================================================================

func TestQuery_DefinesAndIncludes(t *testing.T) {
	runner := &fakeRunner{}
	q := New(Config{Runner: runner})

	r := q.Query(context.Background(), []string{"g++", "-std=c++17", "-c", "a.cpp"}, "a.cpp")
	assert.Equal(t, "g++", r.Compiler)
	assert.Equal(t, "c++17", r.Std)
	assert.Equal(t, "c++", r.Language)
	assert.Equal(t, []string{"-D__GNUC__=13", "-D__x86_64__=1", "-D__STDC_HOSTED__=1", "-D__cplusplus=201703L", "-D__FLAT__"}, r.Defines)
	assert.Equal(t, []string{"-I/usr/include/c++/13", "-I/usr/lib/gcc/x86_64-linux-gnu/13/include", "-I/System/Library/Frameworks"}, r.Includes)
	assert.Equal(t, append(append([]string{}, r.Defines...), r.Includes...), r.Flags())

	require.Equal(t, 2, runner.count())
	assert.Equal(t, []string{"-x", "c++", "-std=c++17", "-dM", "-E", "-"}, runner.calls[0].Args)
	assert.Equal(t, []string{"-x", "c++", "-std=c++17", "-Wp,-v", "-E", "-"}, runner.calls[1].Args)
	assert.Equal(t, "g++", runner.calls[0].Name)
}

func TestQuery_CachedPerConfiguration(t *testing.T) {
	runner := &fakeRunner{}
	q := New(Config{Runner: runner})
	ctx := context.Background()

	q.Query(ctx, []string{"gcc", "-c", "a.c"}, "a.c")
	q.Query(ctx, []string{"gcc", "-DX", "-c", "b.c"}, "b.c")
	assert.Equal(t, 2, runner.count())
	assert.Equal(t, 1, q.Len())

	q.Query(ctx, []string{"gcc", "-std=c11", "-c", "b.c"}, "b.c")
	assert.Equal(t, 4, runner.count())
	assert.Equal(t, 2, q.Len())

	q.Purge()
	assert.Equal(t, 0, q.Len())
}

func TestQuery_EmptyArgs(t *testing.T) {
	runner := &fakeRunner{}
	q := New(Config{Runner: runner})
	r := q.Query(context.Background(), nil, "a.cpp")
	assert.Empty(t, r.Flags())
	assert.Zero(t, runner.count())
}

func TestQuery_RunnerErrorNotCached(t *testing.T) {
	runner := &fakeRunner{err: errors.New("exec: not found")}
	q := New(Config{Runner: runner})

	r := q.Query(context.Background(), []string{"nocc", "-c", "a.c"}, "a.c")
	assert.Empty(t, r.Flags())
	assert.Equal(t, 0, q.Len())
}

func TestBuiltinFlags(t *testing.T) {
	q := New(Config{Runner: &fakeRunner{}})
	flags := q.BuiltinFlags(context.Background(), []string{"clang", "-c", "x.c"}, "x.c")
	assert.Contains(t, flags, "-D__FLAT__")
	assert.Contains(t, flags, "-I/usr/include/c++/13")
}

// =============================================================================
// Language guessing
// =============================================================================

func TestGuessLanguage(t *testing.T) {
	cases := []struct {
		name     string
		compiler string
		args     []string
		file     string
		want     string
	}{
		{"explicit -x", "gcc", []string{"gcc", "-x", "objective-c++", "a.c"}, "a.c", "objective-c++"},
		{"dangling -x", "gcc", []string{"gcc", "-x"}, "a.cpp", ""},
		{"cpp extension", "gcc", []string{"gcc"}, "a.cpp", "c++"},
		{"capital C", "gcc", []string{"gcc"}, "a.C", "c++"},
		{"objective-c", "clang", []string{"clang"}, "a.mm", "objective-c"},
		{"compiler name", "arm-none-eabi-g++", []string{"arm-none-eabi-g++"}, "a.h", "c++"},
		{"native", "gcc", []string{"gcc"}, "a.c", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, GuessLanguage(tc.compiler, tc.args, tc.file))
		})
	}
}

// =============================================================================
// Output parsing
// =============================================================================

func TestParseDefines_FunctionMacro(t *testing.T) {
	got := ParseDefines("#define __has_feature(x) 0\r\nnot a define\n")
	assert.Equal(t, []string{"-D__has_feature(x)=0"}, got)
}

func TestParseIncludes_NoHeader(t *testing.T) {
	assert.Empty(t, ParseIncludes(" /usr/include\nEnd of search list.\n"))
}
