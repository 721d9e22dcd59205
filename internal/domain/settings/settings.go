// Package settings holds the user configuration that drives flag resolution:
// which build descriptions to look for, per-language and common flags, the
// completion engine to use and cache lifetimes. Loading and layering live in
// the config adapter; this package only defines, validates and expands.
package settings

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/gobwas/glob"

	"github.com/corey/ccflags/internal/domain/flag"
	"github.com/corey/ccflags/internal/domain/sources"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid settings")

// StdPolicy decides which -std= survives when both the language flags and
// the flags source define one.
type StdPolicy string

const (
	PreferSource StdPolicy = "prefer_source"
	PreferLang   StdPolicy = "prefer_lang"
	KeepBoth     StdPolicy = "keep_both"
)

// SourceEntry is one item of flags_sources.
type SourceEntry struct {
	File        string   `mapstructure:"file" yaml:"file" json:"file"`
	SearchIn    string   `mapstructure:"search_in" yaml:"search_in,omitempty" json:"search_in,omitempty"`
	PrefixPaths []string `mapstructure:"prefix_paths" yaml:"prefix_paths,omitempty" json:"prefix_paths,omitempty"`
	Flags       []string `mapstructure:"flags" yaml:"flags,omitempty" json:"flags,omitempty"`
}

// Entry converts the settings entry to the sources factory form.
func (e SourceEntry) Entry() sources.Entry {
	return sources.Entry{File: e.File, PrefixPaths: e.PrefixPaths, Flags: e.Flags}
}

// Settings is the merged user configuration.
type Settings struct {
	FlagsSources              []SourceEntry     `mapstructure:"flags_sources" yaml:"flags_sources" json:"flags_sources"`
	CommonFlags               []string          `mapstructure:"common_flags" yaml:"common_flags" json:"common_flags"`
	LangFlags                 map[Lang][]string `mapstructure:"lang_flags" yaml:"lang_flags" json:"lang_flags"`
	TargetCompilers           map[Lang]string   `mapstructure:"target_compilers" yaml:"target_compilers" json:"target_compilers"`
	HeaderToSourceMapping     []string          `mapstructure:"header_to_source_mapping" yaml:"header_to_source_mapping" json:"header_to_source_mapping"`
	UseLibclang               bool              `mapstructure:"use_libclang" yaml:"use_libclang" json:"use_libclang"`
	LibclangPath              string            `mapstructure:"libclang_path" yaml:"libclang_path" json:"libclang_path"`
	ClangBinary               string            `mapstructure:"clang_binary" yaml:"clang_binary" json:"clang_binary"`
	CMakeBinary               string            `mapstructure:"cmake_binary" yaml:"cmake_binary" json:"cmake_binary"`
	MaxCacheAge               string            `mapstructure:"max_cache_age" yaml:"max_cache_age" json:"max_cache_age"`
	ReaperPeriod              string            `mapstructure:"reaper_period" yaml:"reaper_period" json:"reaper_period"`
	UseDefaultIncludes        bool              `mapstructure:"use_default_includes" yaml:"use_default_includes" json:"use_default_includes"`
	UseTargetCompilerBuiltins bool              `mapstructure:"use_target_compiler_builtins" yaml:"use_target_compiler_builtins" json:"use_target_compiler_builtins"`
	ProjectFolder             string            `mapstructure:"project_folder" yaml:"project_folder,omitempty" json:"project_folder,omitempty"`
	ProjectName               string            `mapstructure:"project_name" yaml:"project_name,omitempty" json:"project_name,omitempty"`
	IgnoreList                []string          `mapstructure:"ignore_list" yaml:"ignore_list" json:"ignore_list"`
	StdConflictPolicy         StdPolicy         `mapstructure:"std_conflict_policy" yaml:"std_conflict_policy" json:"std_conflict_policy"`
	Workers                   int               `mapstructure:"workers" yaml:"workers" json:"workers"`
	CMakeRate                 float64           `mapstructure:"cmake_rate" yaml:"cmake_rate" json:"cmake_rate"`
	Verbose                   bool              `mapstructure:"verbose" yaml:"verbose" json:"verbose"`

	// ClangVersion is filled in from `clang -v` when wildcards are expanded.
	ClangVersion string `mapstructure:"-" yaml:"-" json:"clang_version,omitempty"`
}

// Default returns the built-in settings.
func Default() Settings {
	return Settings{
		FlagsSources: []SourceEntry{
			{File: sources.CMakeListsFile, Flags: []string{"-DCMAKE_BUILD_TYPE=Debug"}},
			{File: sources.CompilationDbFile},
			{File: sources.FlagsFileName},
		},
		CommonFlags: []string{
			"-I/usr/include",
			"-I${project_base_path}/src",
		},
		LangFlags: map[Lang][]string{
			LangC:            {"-std=c11"},
			LangCPP:          {"-std=c++14"},
			LangObjectiveC:   {"-std=c11"},
			LangObjectiveCPP: {"-std=c++14"},
		},
		TargetCompilers: map[Lang]string{
			LangC:            "",
			LangCPP:          "",
			LangObjectiveC:   "",
			LangObjectiveCPP: "",
		},
		ClangBinary:        "clang++",
		CMakeBinary:        "cmake",
		MaxCacheAge:        "00:30:00",
		ReaperPeriod:       "30s",
		UseDefaultIncludes: true,
		StdConflictPolicy:  PreferSource,
	}
}

// Normalize rewrites language keys to their canonical tags and fills empty
// fields with defaults. Unknown language keys are kept for Validate to
// report.
func (s *Settings) Normalize() {
	d := Default()
	s.LangFlags = normalizeKeys(s.LangFlags)
	s.TargetCompilers = normalizeKeys(s.TargetCompilers)
	if s.ClangBinary == "" {
		s.ClangBinary = d.ClangBinary
	}
	if s.CMakeBinary == "" {
		s.CMakeBinary = d.CMakeBinary
	}
	if s.MaxCacheAge == "" {
		s.MaxCacheAge = d.MaxCacheAge
	}
	if s.ReaperPeriod == "" {
		s.ReaperPeriod = d.ReaperPeriod
	}
	if s.StdConflictPolicy == "" {
		s.StdConflictPolicy = PreferSource
	}
	if s.TargetCompilers == nil {
		s.TargetCompilers = make(map[Lang]string)
	}
	for _, l := range Langs {
		if _, ok := s.TargetCompilers[l]; !ok {
			s.TargetCompilers[l] = ""
		}
	}
}

func normalizeKeys[V any](m map[Lang]V) map[Lang]V {
	if m == nil {
		return nil
	}
	out := make(map[Lang]V, len(m))
	for k, v := range m {
		if l, ok := ParseLang(string(k)); ok {
			out[l] = v
			continue
		}
		out[k] = v
	}
	return out
}

// Validate reports the first problem found.
func (s Settings) Validate() error {
	for _, src := range s.FlagsSources {
		if src.File == "" {
			return fmt.Errorf("%w: no 'file' in flags source %+v", ErrInvalid, src)
		}
		if !knownSource(src.File) {
			return fmt.Errorf("%w: flags source %q is not one of %v", ErrInvalid, src.File, sources.Known)
		}
	}
	for _, l := range Langs {
		if _, ok := s.LangFlags[l]; !ok {
			return fmt.Errorf("%w: lang %q missing from lang_flags", ErrInvalid, l)
		}
	}
	for k := range s.LangFlags {
		if !k.Valid() {
			return fmt.Errorf("%w: unknown language %q in lang_flags", ErrInvalid, k)
		}
	}
	if _, err := SecondsFromString(s.MaxCacheAge); err != nil {
		return fmt.Errorf("%w: max_cache_age: %v", ErrInvalid, err)
	}
	if _, err := time.ParseDuration(s.ReaperPeriod); err != nil {
		return fmt.Errorf("%w: reaper_period: %v", ErrInvalid, err)
	}
	switch s.StdConflictPolicy {
	case PreferSource, PreferLang, KeepBoth:
	default:
		return fmt.Errorf("%w: std_conflict_policy %q is not one of %v", ErrInvalid,
			s.StdConflictPolicy, []StdPolicy{PreferSource, PreferLang, KeepBoth})
	}
	for _, g := range s.IgnoreList {
		if _, err := glob.Compile(g); err != nil {
			return fmt.Errorf("%w: ignore_list entry %q: %v", ErrInvalid, g, err)
		}
	}
	return nil
}

func knownSource(name string) bool {
	for _, k := range sources.Known {
		if k == name {
			return true
		}
	}
	return false
}

// MaxAge returns max_cache_age as a duration.
func (s Settings) MaxAge() time.Duration {
	secs, err := SecondsFromString(s.MaxCacheAge)
	if err != nil {
		secs, _ = SecondsFromString(Default().MaxCacheAge)
	}
	return time.Duration(secs) * time.Second
}

// Reaper returns reaper_period as a duration.
func (s Settings) Reaper() time.Duration {
	d, err := time.ParseDuration(s.ReaperPeriod)
	if err != nil || d <= 0 {
		d, _ = time.ParseDuration(Default().ReaperPeriod)
	}
	return d
}

// WorkerCount returns workers, or the number of CPUs when unset.
func (s Settings) WorkerCount() int {
	if s.Workers > 0 {
		return s.Workers
	}
	return runtime.NumCPU()
}

// SecondsFromString parses "HH:MM:SS".
func SecondsFromString(v string) (int, error) {
	parts := strings.Split(strings.TrimSpace(v), ":")
	if len(parts) != 3 {
		return 0, fmt.Errorf("%q is not HH:MM:SS", v)
	}
	total := 0
	for i, mult := range []int{3600, 60, 1} {
		n, err := strconv.Atoi(parts[i])
		if err != nil || n < 0 {
			return 0, fmt.Errorf("%q is not HH:MM:SS", v)
		}
		total += n * mult
	}
	return total, nil
}

// =============================================================================
// Wildcards
// =============================================================================

// Wildcard names usable as ${name} in paths and flags.
const (
	WildcardProjectPath  = "project_base_path"
	WildcardProjectName  = "project_name"
	WildcardClangVersion = "clang_version"
)

// Wildcards holds the values substituted by Expand.
type Wildcards struct {
	ProjectPath  string
	ProjectName  string
	ClangVersion string
}

// Vars returns the wildcard map.
func (w Wildcards) Vars() map[string]string {
	return map[string]string{
		WildcardProjectPath:  w.ProjectPath,
		WildcardProjectName:  w.ProjectName,
		WildcardClangVersion: w.ClangVersion,
	}
}

// Expand returns a copy with wildcards, ~ and environment variables
// substituted in common flags, flags source paths and flags, the ignore
// list and binary paths. search_in and prefix_paths are also made absolute
// and glob-expanded against the project path.
func (s Settings) Expand(w Wildcards) Settings {
	vars := w.Vars()
	out := s
	out.ProjectFolder = w.ProjectPath
	out.ProjectName = w.ProjectName
	out.ClangVersion = w.ClangVersion

	out.CommonFlags = expandStrings(s.CommonFlags, vars)
	out.IgnoreList = expandStrings(s.IgnoreList, vars)
	out.HeaderToSourceMapping = expandStrings(s.HeaderToSourceMapping, vars)
	out.LibclangPath = expandString(s.LibclangPath, vars)
	out.ClangBinary = expandString(s.ClangBinary, vars)
	out.CMakeBinary = expandString(s.CMakeBinary, vars)

	out.FlagsSources = make([]SourceEntry, len(s.FlagsSources))
	for i, src := range s.FlagsSources {
		e := src
		if src.SearchIn != "" {
			if paths := flag.ExpandAll(src.SearchIn, vars, w.ProjectPath); len(paths) > 0 {
				e.SearchIn = paths[0]
			}
		}
		e.PrefixPaths = nil
		for _, p := range src.PrefixPaths {
			e.PrefixPaths = append(e.PrefixPaths, flag.ExpandAll(p, vars, w.ProjectPath)...)
		}
		e.Flags = expandStrings(src.Flags, vars)
		out.FlagsSources[i] = e
	}
	return out
}

func expandStrings(items []string, vars map[string]string) []string {
	if items == nil {
		return nil
	}
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = expandString(it, vars)
	}
	return out
}

func expandString(s string, vars map[string]string) string {
	s = flag.ExpandVars(s, vars)
	if s == "~" || strings.HasPrefix(s, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			s = filepath.Join(home, s[1:])
		}
	}
	return s
}

// =============================================================================
// Ignore list
// =============================================================================

// IsIgnored reports whether path matches an ignore_list glob. Globs are
// compiled without separators, so '*' also matches '/'.
func (s Settings) IsIgnored(path string) bool {
	for _, p := range s.IgnoreList {
		g, err := glob.Compile(p)
		if err != nil {
			continue
		}
		if g.Match(path) {
			return true
		}
	}
	return false
}
