// Package viewconfig resolves the final compiler flags for an open file and
// keeps one completion engine per file alive while it is in use.
//
// Resolution merges four groups of flags in a fixed order:
//
//	init flags    engine invocation flags (-c -fsyntax-only for the binary)
//	lang flags    -x <lang>, lang_flags, clang default includes, target built-ins
//	common flags  common_flags from the settings
//	source flags  the first configured flags source that finds anything
//
// and reduces them to a duplicate-free list. The Manager caches the result
// per file and rebuilds the engine only when the engine kind or the flags
// change.
package viewconfig

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/corey/ccflags/internal/domain/buildfile"
	"github.com/corey/ccflags/internal/domain/flag"
	"github.com/corey/ccflags/internal/domain/settings"
	"github.com/corey/ccflags/internal/domain/sources"
	"github.com/corey/ccflags/internal/ports"
)

// Resolution is the outcome of resolving one file.
type Resolution struct {
	Engine         ports.EngineKind `json:"engine"`
	Lang           settings.Lang    `json:"lang"`
	Flags          []flag.Flag      `json:"-"`
	IncludeFolders []string         `json:"include_folders"`
	Warnings       []string         `json:"warnings,omitempty"`
	// Source is the flags source that produced the source flags ("" if none).
	Source string `json:"source,omitempty"`
	// Origin is the build file the source flags came from, when known.
	Origin string `json:"origin,omitempty"`
}

// Args returns the flags as argv entries.
func (r Resolution) Args() []string { return flag.Strings(r.Flags) }

// ResolverConfig configures a Resolver.
type ResolverConfig struct {
	// Deps are handed to sources.New for every configured flags source.
	Deps sources.Deps
	// Runner runs clang for its default include folders.
	Runner ports.Runner
	// Builtins queries target compilers. Optional.
	Builtins sources.BuiltinsProvider
	// Detector tells C headers from C++ headers. Optional.
	Detector ports.LangDetector
	// TempDir hosts the scratch file used to query default includes.
	TempDir string
	Logger  *slog.Logger
}

// Resolver computes Resolutions. It is safe for concurrent use.
type Resolver struct {
	cfg ResolverConfig
	log *slog.Logger

	mu       sync.Mutex
	includes map[string][]string // clang binary -> default include flags
}

// NewResolver creates a resolver.
func NewResolver(cfg ResolverConfig) *Resolver {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.TempDir == "" {
		cfg.TempDir = filepath.Join(os.TempDir(), "ccflags")
	}
	if cfg.Deps.Caches == nil {
		cfg.Deps.Caches = sources.NewCaches(0)
	}
	if cfg.Deps.Logger == nil {
		cfg.Deps.Logger = cfg.Logger
	}
	return &Resolver{
		cfg:      cfg,
		log:      cfg.Logger.With("component", "resolver"),
		includes: make(map[string][]string),
	}
}

// Caches returns the source caches shared by every resolution.
func (r *Resolver) Caches() *sources.Caches { return r.cfg.Deps.Caches }

// Resolve computes the flags for the file shown in view.
func (r *Resolver) Resolve(ctx context.Context, view ports.SourceView, s settings.Settings, v ports.EngineVariant) Resolution {
	file := flag.Canonical(view.FilePath(), "")
	var src []byte
	if text := view.Text(); text != "" {
		src = []byte(text)
	}
	lang := settings.LangFor(file, view.LangHint(), src, r.cfg.Detector)

	res := Resolution{Engine: v.Kind, Lang: lang}
	prefixes := v.IncludePrefixes
	if len(prefixes) == 0 {
		prefixes = flag.DefaultIncludePrefixes
	}

	initFlags := flag.Parse(v.InitFlags, "", nil)
	langFlags := r.langFlags(ctx, file, lang, s, v)
	commonFlags := flag.Parse(s.CommonFlags, homeDir(), nil)
	sourceFlags, name, origin := r.sourceFlags(ctx, file, s, prefixes)
	res.Source = name
	res.Origin = origin

	merged, warnings := Merge(initFlags, langFlags, commonFlags, sourceFlags, s.StdConflictPolicy)
	for _, w := range warnings {
		r.log.Warn(w, "file", file)
	}
	res.Warnings = warnings
	res.Flags = merged
	res.IncludeFolders = flag.IncludeFolders(merged, prefixes)
	return res
}

// Merge applies the -std= policy and concatenates init, lang, common and
// source flags into a duplicate-free list. The returned warnings describe
// ambiguous configurations; they never stop the merge.
func Merge(initFlags, langFlags, commonFlags, sourceFlags []flag.Flag, policy settings.StdPolicy) ([]flag.Flag, []string) {
	var warnings []string
	langStd := flag.StdIndices(langFlags)
	sourceStd := flag.StdIndices(sourceFlags)
	if len(langStd) > 1 {
		warnings = append(warnings, tooManyStd("lang_flags settings", langFlags, langStd))
	}
	if len(sourceStd) > 1 {
		warnings = append(warnings, tooManyStd("source generated settings", sourceFlags, sourceStd))
	}

	if len(langStd) > 0 && len(sourceStd) > 0 {
		switch policy {
		case settings.PreferLang:
			sourceFlags = without(sourceFlags, sourceStd[0])
		case settings.KeepBoth:
		default:
			langFlags = without(langFlags, langStd[0])
		}
	}

	var list flag.UniqueList
	list.Add(initFlags...)
	list.Add(langFlags...)
	list.Add(commonFlags...)
	list.Add(sourceFlags...)
	return list.Flags(), warnings
}

func tooManyStd(which string, flags []flag.Flag, idx []int) string {
	std := make([]string, 0, len(idx))
	for _, i := range idx {
		std = append(std, flags[i].String())
	}
	return fmt.Sprintf("your %s define too many std flags: [%s]", which, strings.Join(std, ", "))
}

func without(flags []flag.Flag, i int) []flag.Flag {
	out := make([]flag.Flag, 0, len(flags)-1)
	out = append(out, flags[:i]...)
	return append(out, flags[i+1:]...)
}

// langFlags returns -x, lang_flags, clang default includes and target
// compiler built-ins for lang, tokenized.
func (r *Resolver) langFlags(ctx context.Context, file string, lang settings.Lang, s settings.Settings, v ports.EngineVariant) []flag.Flag {
	var args []string
	if v.NeedLangFlags {
		args = append(args, "-x", lang.Name())
	}
	args = append(args, s.LangFlags[lang]...)
	if s.UseDefaultIncludes {
		args = append(args, r.defaultIncludes(ctx, s.ClangBinary)...)
	}
	if tc := s.TargetCompilers[lang]; tc != "" && r.cfg.Builtins != nil {
		present := make(map[string]bool, len(args))
		for _, a := range args {
			present[a] = true
		}
		for _, b := range r.cfg.Builtins.BuiltinFlags(ctx, []string{tc, "-x", lang.Name()}, "") {
			if !present[b] {
				args = append(args, b)
				present[b] = true
			}
		}
	}
	folder := s.ProjectFolder
	if folder == "" {
		folder = filepath.Dir(file)
	}
	return flag.Tokenize(args, folder)
}

// sourceFlags tries the configured sources in order and returns the flags
// of the first one that finds a non-empty result.
func (r *Resolver) sourceFlags(ctx context.Context, file string, s settings.Settings, prefixes []string) ([]flag.Flag, string, string) {
	deps := r.cfg.Deps
	deps.CMakeBinary = s.CMakeBinary
	deps.HeaderToSource = s.HeaderToSourceMapping
	deps.IncludePrefixes = prefixes
	deps.Builtins = nil
	if s.UseTargetCompilerBuiltins {
		deps.Builtins = r.cfg.Builtins
	}

	for _, entry := range s.FlagsSources {
		src, err := sources.New(entry.Entry(), deps)
		if err != nil {
			r.log.Error("cannot create flags source", "file", entry.File, "err", err)
			continue
		}
		scope := buildfile.NewSearchScope(filepath.Dir(file), s.ProjectFolder)
		if entry.SearchIn != "" {
			scope = buildfile.NewSearchScope(filepath.Clean(entry.SearchIn), "")
		}
		flags, ok := r.query(ctx, src, file, scope)
		if !ok || len(flags) == 0 {
			continue
		}
		r.log.Debug("flags generated", "source", entry.File, "file", file, "count", len(flags))
		origin := ""
		if o, ok := src.(ports.Origin); ok {
			origin = o.OriginOf(file)
		}
		return flags, entry.File, origin
	}
	return nil, "", ""
}

// query calls one source, demoting panics to "not found".
func (r *Resolver) query(ctx context.Context, src ports.FlagsSource, file string, scope buildfile.SearchScope) (flags []flag.Flag, ok bool) {
	defer func() {
		if p := recover(); p != nil {
			r.log.Error("flags source panicked", "source", src.Name(), "file", file, "panic", p)
			flags, ok = nil, false
		}
	}()
	return src.Flags(ctx, file, scope)
}

// defaultIncludes asks clang for its system include folders by compiling an
// empty file verbosely. Results are cached per binary.
func (r *Resolver) defaultIncludes(ctx context.Context, clang string) []string {
	if clang == "" || r.cfg.Runner == nil {
		return nil
	}
	r.mu.Lock()
	cached, ok := r.includes[clang]
	r.mu.Unlock()
	if ok {
		return cached
	}

	if err := os.MkdirAll(r.cfg.TempDir, 0o755); err != nil {
		r.log.Warn("cannot create temp dir", "dir", r.cfg.TempDir, "err", err)
		return nil
	}
	tmp := filepath.Join(r.cfg.TempDir, "temp.cc")
	if err := os.WriteFile(tmp, nil, 0o644); err != nil {
		r.log.Warn("cannot create temp file", "path", tmp, "err", err)
		return nil
	}
	res, err := r.cfg.Runner.Run(ctx, ports.Command{
		Name: clang,
		Args: []string{"-c", "temp.cc", "-v"},
		Dir:  r.cfg.TempDir,
	})
	if err != nil {
		r.log.Warn("cannot get default includes", "clang", clang, "err", err)
		return nil
	}
	includes := ParseDefaultIncludes(string(res.Output))
	r.mu.Lock()
	r.includes[clang] = includes
	r.mu.Unlock()
	return includes
}

// ParseDefaultIncludes extracts -I flags from `clang -v` output: the lines
// after "#include <...>" up to "End of search".
func ParseDefaultIncludes(output string) []string {
	lines := strings.Split(output, "\n")
	start, end := 0, 0
	for i, line := range lines {
		line = strings.TrimRight(line, "\r")
		switch {
		case strings.HasPrefix(line, "#include <...>"):
			start = i + 1
		case strings.HasPrefix(line, "End of search"):
			end = i
		}
	}
	var out []string
	for i := start; i < end; i++ {
		p := strings.TrimSpace(lines[i])
		p = strings.TrimSpace(strings.TrimSuffix(p, "(framework directory)"))
		if p == "" {
			continue
		}
		out = append(out, "-I"+filepath.Clean(p))
	}
	return out
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return home
}
