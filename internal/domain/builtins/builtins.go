// Package builtins queries a compiler for its predefined macros and system
// include directories, so that flags taken from a build description for gcc
// (or a cross compiler) still describe the right target when the file is
// parsed by clang.
package builtins

import (
	"context"
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/corey/ccflags/internal/ports"
)

// DefaultCacheSize bounds the number of (compiler, std, language) results
// kept in memory.
const DefaultCacheSize = 32

// Result holds the built-ins of one compiler configuration.
type Result struct {
	Compiler string   `json:"compiler"`
	Std      string   `json:"std,omitempty"`
	Language string   `json:"language,omitempty"`
	Defines  []string `json:"defines"`
	Includes []string `json:"includes"`
}

// Flags returns defines followed by include flags.
func (r Result) Flags() []string {
	out := make([]string, 0, len(r.Defines)+len(r.Includes))
	out = append(out, r.Defines...)
	return append(out, r.Includes...)
}

type key struct {
	compiler, std, language string
}

// Config configures a Querier.
type Config struct {
	Runner    ports.Runner
	CacheSize int
	Logger    *slog.Logger
}

// Querier runs compilers and caches their built-ins per configuration.
type Querier struct {
	runner ports.Runner
	cache  *lru.Cache[key, Result]
	group  singleflight.Group
	log    *slog.Logger
}

// New creates a Querier.
func New(cfg Config) *Querier {
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = DefaultCacheSize
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	cache, _ := lru.New[key, Result](cfg.CacheSize)
	return &Querier{
		runner: cfg.Runner,
		cache:  cache,
		log:    cfg.Logger.With("component", "builtins"),
	}
}

// Query returns the built-ins of the compiler invoked by args (args[0] is the
// compiler). filename, when known, helps guess the language. Empty args give
// an empty result without running anything.
func (q *Querier) Query(ctx context.Context, args []string, filename string) Result {
	if len(args) == 0 || args[0] == "" {
		q.log.Debug("empty command line, cannot extract compiler")
		return Result{}
	}
	k := key{
		compiler: args[0],
		std:      guessStd(args[1:]),
		language: GuessLanguage(args[0], args, filename),
	}
	if r, ok := q.cache.Get(k); ok {
		return r
	}
	v, _, _ := q.group.Do(k.compiler+"\x00"+k.std+"\x00"+k.language, func() (interface{}, error) {
		if r, ok := q.cache.Get(k); ok {
			return r, nil
		}
		q.log.Debug("querying compiler for defaults", "compiler", k.compiler, "std", k.std, "lang", k.language)
		r := Result{Compiler: k.compiler, Std: k.std, Language: k.language}
		defines, okDefines := q.run(ctx, k, "-dM", "-E", "-")
		includes, okIncludes := q.run(ctx, k, "-Wp,-v", "-E", "-")
		r.Defines = ParseDefines(defines)
		r.Includes = ParseIncludes(includes)
		if okDefines && okIncludes {
			q.cache.Add(k, r)
		}
		return r, nil
	})
	return v.(Result)
}

// BuiltinFlags implements sources.BuiltinsProvider.
func (q *Querier) BuiltinFlags(ctx context.Context, args []string, file string) []string {
	return q.Query(ctx, args, file).Flags()
}

// Len returns the number of cached configurations.
func (q *Querier) Len() int { return q.cache.Len() }

// Purge drops every cached result.
func (q *Querier) Purge() { q.cache.Purge() }

func (q *Querier) run(ctx context.Context, k key, tail ...string) (string, bool) {
	if q.runner == nil {
		return "", false
	}
	var args []string
	if k.language != "" {
		args = append(args, "-x", k.language)
	}
	if k.std != "" {
		args = append(args, "-std="+k.std)
	}
	args = append(args, tail...)
	res, err := q.runner.Run(ctx, ports.Command{Name: k.compiler, Args: args, Stdin: []byte{}})
	if err != nil {
		q.log.Warn("cannot query compiler", "compiler", k.compiler, "err", err)
		return "", false
	}
	return string(res.Output), true
}

// guessStd returns the value of the last -std= argument.
func guessStd(args []string) string {
	std := ""
	for _, a := range args {
		if strings.HasPrefix(a, "-std=") {
			std = strings.TrimPrefix(a, "-std=")
		}
	}
	return std
}

// GuessLanguage picks the -x language for a compiler call: an explicit -x
// argument, else the file extension, else "c++" for compilers whose name
// ends in "++". Returns "" when nothing fits; the compiler then uses its
// native language.
func GuessLanguage(compiler string, args []string, filename string) string {
	for i, a := range args {
		if a != "-x" {
			continue
		}
		if i+1 < len(args) {
			return args[i+1]
		}
		return ""
	}
	if filename != "" {
		switch strings.TrimPrefix(filepath.Ext(filename), ".") {
		case "cc", "cpp", "cxx", "C", "c++":
			return "c++"
		case "m", "mm":
			return "objective-c"
		}
	}
	if strings.HasSuffix(compiler, "++") {
		return "c++"
	}
	return ""
}

var (
	defineWithValue = regexp.MustCompile(`#define ([\w()]+) (.+)`)
	defineBare      = regexp.MustCompile(`#define (\w+)`)
)

// ParseDefines converts `-dM -E` output into -D flags.
func ParseDefines(output string) []string {
	var out []string
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimRight(line, "\r")
		if m := defineWithValue.FindStringSubmatch(line); m != nil {
			out = append(out, "-D"+m[1]+"="+m[2])
			continue
		}
		if m := defineBare.FindStringSubmatch(line); m != nil {
			out = append(out, "-D"+m[1])
		}
	}
	return out
}

// ParseIncludes converts `-Wp,-v -E` output into -I flags: every line
// between a "search starts here:" header and "End of search list.".
func ParseIncludes(output string) []string {
	var out []string
	pick := false
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimRight(line, "\r")
		switch {
		case strings.Contains(line, "search starts here:"):
			pick = true
			continue
		case strings.Contains(line, "End of search list."):
			return out
		}
		if !pick {
			continue
		}
		path := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(line), "(framework directory)"))
		if path == "" {
			continue
		}
		out = append(out, "-I"+path)
	}
	return out
}
