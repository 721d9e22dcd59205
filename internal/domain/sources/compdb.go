package sources

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/gobwas/glob"
	"github.com/google/shlex"

	"github.com/corey/ccflags/internal/domain/buildfile"
	"github.com/corey/ccflags/internal/domain/flag"
)

// CompilationDbFile is the name of a clang compilation database.
const CompilationDbFile = "compile_commands.json"

// ErrUnsupportedFormat marks a database entry with neither "command" nor
// "arguments".
var ErrUnsupportedFormat = errors.New("compilation database has unsupported format")

// DefaultTemplates are always tried, after user templates, when mapping a
// header to a source file.
var DefaultTemplates = []string{"{stamp}.*", "*.*"}

// BuiltinsProvider returns the built-in defines and include paths of the
// compiler invoked by args (args[0] is the compiler).
type BuiltinsProvider interface {
	BuiltinFlags(ctx context.Context, args []string, file string) []string
}

// CompilationDbConfig configures a CompilationDb source.
type CompilationDbConfig struct {
	Caches *Caches
	// HeaderToSource are templates mapping a file absent from the database
	// to a related file that is present (see Templates).
	HeaderToSource []string
	// Builtins, when set, appends target compiler built-ins to each entry.
	Builtins BuiltinsProvider
	Logger   *slog.Logger
}

// CompilationDb reads flags from compile_commands.json.
type CompilationDb struct {
	caches    *Caches
	templates []string
	builtins  BuiltinsProvider
	log       *slog.Logger
}

// NewCompilationDb creates a compilation database source.
func NewCompilationDb(cfg CompilationDbConfig) *CompilationDb {
	if cfg.Caches == nil {
		cfg.Caches = NewCaches(0)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &CompilationDb{
		caches:    cfg.Caches,
		templates: Templates(cfg.HeaderToSource),
		builtins:  cfg.Builtins,
		log:       cfg.Logger.With("source", "db"),
	}
}

// Name returns the database file name.
func (c *CompilationDb) Name() string { return CompilationDbFile }

// OriginOf returns the database path that last served file.
func (c *CompilationDb) OriginOf(file string) string {
	return c.caches.Databases.OriginOf(flag.Canonical(file, ""))
}

// Flags returns the flags for file. Files missing from the database are
// mapped to a related source file through the header-to-source templates;
// if none matches, the union of all flags in the database is returned.
// An empty file returns the union directly.
func (c *CompilationDb) Flags(ctx context.Context, file string, scope buildfile.SearchScope) ([]flag.Flag, bool) {
	if !scope.Valid() {
		scope = buildfile.NewSearchScope(filepath.Dir(file), "")
	}
	rec, err := buildfile.Search(CompilationDbFile, scope)
	if err != nil {
		c.log.Warn("search failed", "scope", scope.String(), "err", err)
		return nil, false
	}
	if rec == nil {
		return nil, false
	}
	db, err := c.load(ctx, rec)
	if err != nil {
		c.log.Error("cannot load compilation database", "path", rec.FullPath, "err", err)
		return nil, false
	}
	if file == "" {
		return db.All(), true
	}
	file = flag.Canonical(file, "")
	if f, ok := c.lookup(db, file); ok {
		return f, true
	}
	c.log.Debug("return entry for 'all'", "file", file)
	return db.All(), true
}

func (c *CompilationDb) lookup(db *Database, file string) ([]flag.Flag, bool) {
	if _, ok := db.Lookup(file); !ok {
		related := c.findRelated(file, db)
		if related == "" {
			return nil, false
		}
		c.log.Debug("header-to-source match", "file", file, "related", related)
		db.alias(file, related)
	}
	f, ok := db.Lookup(file)
	if ok {
		c.caches.Databases.setOrigin(file, db.Path)
	}
	return f, ok
}

// Load returns the parsed database at path, re-parsing when its mtime moved.
func (c *CompilationDb) Load(ctx context.Context, path string) (*Database, error) {
	rec, err := buildfile.NewRecord(path)
	if err != nil {
		return nil, err
	}
	return c.load(ctx, rec)
}

func (c *CompilationDb) load(ctx context.Context, rec *buildfile.Record) (*Database, error) {
	cache := c.caches.Databases
	if db, ok := cache.Get(rec.FullPath); ok {
		if c.caches.Tracker.Unchanged(rec.FullPath) {
			return db, nil
		}
		c.log.Debug("database changed, dropping cached parse", "path", rec.FullPath)
		cache.Remove(rec.FullPath)
	}
	v, err, _ := cache.group.Do(rec.FullPath, func() (interface{}, error) {
		if db, ok := cache.Get(rec.FullPath); ok {
			return db, nil
		}
		db, err := c.parse(ctx, rec)
		if err != nil {
			return nil, err
		}
		cache.dbs.Add(rec.FullPath, db)
		c.caches.Tracker.Touch(rec.FullPath)
		return db, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Database), nil
}

// dbEntry is one element of compile_commands.json.
type dbEntry struct {
	File      string   `json:"file"`
	Directory string   `json:"directory"`
	Command   string   `json:"command"`
	Arguments []string `json:"arguments"`
}

func (c *CompilationDb) parse(ctx context.Context, rec *buildfile.Record) (*Database, error) {
	data, err := os.ReadFile(rec.FullPath)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rec.FullPath, err)
	}
	var entries []dbEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse %s: %w", rec.FullPath, err)
	}

	db := newDatabase(rec.FullPath)
	all := flag.UniqueList{}
	for _, e := range entries {
		base := rec.Folder
		if e.Directory != "" {
			base = flag.Canonical(e.Directory, rec.Folder)
		}
		file := flag.Canonical(e.File, base)

		var args []string
		switch {
		case e.Command != "":
			args, err = shlex.Split(e.Command)
			if err != nil {
				return nil, fmt.Errorf("split command for %s: %w", file, err)
			}
		case e.Arguments != nil:
			args = e.Arguments
		default:
			return nil, fmt.Errorf("%s: entry for %q: %w", rec.FullPath, e.File, ErrUnsupportedFormat)
		}

		if c.builtins != nil && len(args) > 0 {
			extra := c.builtins.BuiltinFlags(ctx, args, file)
			withBuiltins := make([]string, 0, len(args)+len(extra))
			withBuiltins = append(withBuiltins, args[:len(args)-1]...)
			withBuiltins = append(withBuiltins, extra...)
			args = append(withBuiltins, args[len(args)-1])
		}

		flags := flag.Tokenize(FilterBadArguments(args), base)
		db.add(file, flags)
		all.Add(flags...)
	}
	db.all = all.Flags()
	c.log.Debug("parsed compilation database", "path", rec.FullPath, "entries", len(db.entries))
	return db, nil
}

// FilterBadArguments drops the compiler (first element), the compiled file
// (last element), "-c" and "-o <file>".
func FilterBadArguments(args []string) []string {
	out := make([]string, 0, len(args))
	skipNext := false
	for i, arg := range args {
		if skipNext {
			skipNext = false
			continue
		}
		if i == 0 || i == len(args)-1 {
			continue
		}
		if arg == "-c" {
			continue
		}
		if arg == "-o" {
			skipNext = true
			continue
		}
		out = append(out, arg)
	}
	return out
}

// Templates expands user header-to-source templates. Entries ending in a
// path separator are directories and become "<dir>{stamp}.*" and "<dir>*.*".
// The defaults are appended unless already present.
func Templates(user []string) []string {
	var out []string
	for _, t := range user {
		if strings.HasSuffix(t, "/") || strings.HasSuffix(t, `\`) {
			out = append(out, t+"{stamp}.*", t+"*.*")
			continue
		}
		out = append(out, t)
	}
	for _, d := range DefaultTemplates {
		if !contains(out, d) {
			out = append(out, d)
		}
	}
	return out
}

// findRelated returns the first database key, in database order, matching
// any template for file, or "". Templates are globs where '*' also matches
// path separators, so "*.*" finds sources in subdirectories.
func (c *CompilationDb) findRelated(file string, db *Database) string {
	dir := filepath.Dir(file)
	base := filepath.Base(file)
	ext := filepath.Ext(base)
	stamp := strings.TrimSuffix(base, ext)
	keys := db.Keys()
	for _, t := range c.templates {
		pattern := strings.NewReplacer(
			"{basename}", glob.QuoteMeta(base),
			"{stamp}", glob.QuoteMeta(stamp),
			"{ext}", glob.QuoteMeta(ext),
		).Replace(t)
		pattern = filepath.ToSlash(filepath.Clean(filepath.Join(dir, pattern)))
		g, err := glob.Compile(pattern)
		if err != nil {
			c.log.Warn("bad header-to-source template", "template", t, "err", err)
			continue
		}
		for _, key := range keys {
			if key == file {
				continue
			}
			if g.Match(filepath.ToSlash(key)) {
				return key
			}
		}
	}
	return ""
}

func contains(items []string, s string) bool {
	for _, it := range items {
		if it == s {
			return true
		}
	}
	return false
}
