package sources

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/corey/ccflags/internal/domain/buildfile"
	"github.com/corey/ccflags/internal/domain/flag"
)

// FlagsFileName is the line-oriented flags file searched for by default.
const FlagsFileName = ".clang_complete"

// FlagsFileConfig configures a FlagsFile source.
type FlagsFileConfig struct {
	Caches *Caches
	// FileName overrides FlagsFileName.
	FileName        string
	IncludePrefixes []string
	Logger          *slog.Logger
}

// FlagsFile reads flags from a .clang_complete style file: one flag per
// line, '#' starts a comment line, relative include paths are resolved
// against the file's own folder.
type FlagsFile struct {
	caches   *Caches
	name     string
	prefixes []string
	log      *slog.Logger
}

// NewFlagsFile creates a flags file source.
func NewFlagsFile(cfg FlagsFileConfig) *FlagsFile {
	if cfg.Caches == nil {
		cfg.Caches = NewCaches(0)
	}
	if cfg.FileName == "" {
		cfg.FileName = FlagsFileName
	}
	if len(cfg.IncludePrefixes) == 0 {
		cfg.IncludePrefixes = flag.DefaultIncludePrefixes
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &FlagsFile{
		caches:   cfg.Caches,
		name:     cfg.FileName,
		prefixes: cfg.IncludePrefixes,
		log:      cfg.Logger.With("source", "flags_file"),
	}
}

// Name returns the flags file name.
func (f *FlagsFile) Name() string { return f.name }

// Flags returns the flags of the nearest flags file, re-reading it only when
// its mtime changed.
func (f *FlagsFile) Flags(_ context.Context, file string, scope buildfile.SearchScope) ([]flag.Flag, bool) {
	if !scope.Valid() {
		scope = buildfile.NewSearchScope(filepath.Dir(file), "")
	}
	rec, err := buildfile.Search(f.name, scope)
	if err != nil {
		f.log.Warn("search failed", "scope", scope.String(), "err", err)
		return nil, false
	}
	if rec == nil {
		return nil, false
	}
	if cached, ok := f.caches.FlagsFiles.Get(rec.FullPath); ok && f.caches.Tracker.Unchanged(rec.FullPath) {
		return cached, true
	}
	lines, err := rec.Lines()
	if err != nil {
		f.log.Error("cannot read flags file", "path", rec.FullPath, "err", err)
		f.caches.FlagsFiles.Remove(rec.FullPath)
		return nil, false
	}
	flags := flag.Tokenize(ParseLines(rec.Folder, lines, f.prefixes), rec.Folder)
	f.caches.FlagsFiles.Put(rec.FullPath, flags)
	f.caches.Tracker.Touch(rec.FullPath)
	f.log.Debug("parsed flags file", "path", rec.FullPath, "flags", len(flags))
	return flags, true
}

// ParseLines turns raw flag-file lines into argv entries. Blank and '#'
// lines are skipped. Entries starting with an include prefix get their path
// made absolute against folder and normalised.
func ParseLines(folder string, lines []string, includePrefixes []string) []string {
	var out []string
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, absoluteInclude(folder, line, includePrefixes))
	}
	return out
}

func absoluteInclude(folder, entry string, includePrefixes []string) string {
	for _, prefix := range longestFirst(includePrefixes) {
		if !strings.HasPrefix(entry, prefix) {
			continue
		}
		p := strings.TrimSpace(entry[len(prefix):])
		if p == "" {
			return entry
		}
		return prefix + flag.Canonical(p, folder)
	}
	return entry
}

// longestFirst orders prefixes so that "-isystem" is tried before "-I".
func longestFirst(prefixes []string) []string {
	out := make([]string, len(prefixes))
	copy(out, prefixes)
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && len(out[j]) > len(out[j-1]); j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}
