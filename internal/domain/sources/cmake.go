package sources

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/zeebo/xxh3"
	"golang.org/x/time/rate"

	"github.com/corey/ccflags/internal/domain/buildfile"
	"github.com/corey/ccflags/internal/domain/flag"
	"github.com/corey/ccflags/internal/ports"
)

// CMakeListsFile is the CMake project file name.
const CMakeListsFile = "CMakeLists.txt"

// maxOutputTail bounds the cmake output kept in build records.
const maxOutputTail = 4096

// CMakeConfig configures a CMakeFile source.
type CMakeConfig struct {
	Caches *Caches
	Runner ports.Runner
	// Store persists build records across restarts. Optional.
	Store     ports.BuildStore
	ProjectID string
	// Binary is the cmake executable. Default "cmake".
	Binary string
	// Flags are extra arguments passed to cmake before the source folder.
	Flags []string
	// PrefixPaths are joined into CMAKE_PREFIX_PATH.
	PrefixPaths []string
	// TempDir holds generated build directories. Default <os temp>/ccflags.
	TempDir        string
	HeaderToSource []string
	Builtins       BuiltinsProvider
	// Limiter throttles cmake invocations. Optional.
	Limiter *rate.Limiter
	Logger  *slog.Logger
}

// CMakeFile generates a compilation database by configuring the nearest CMake
// project in a private build directory, then reads flags from it.
type CMakeFile struct {
	cfg CMakeConfig
	db  *CompilationDb
	log *slog.Logger
}

// NewCMakeFile creates a CMake source.
func NewCMakeFile(cfg CMakeConfig) *CMakeFile {
	if cfg.Caches == nil {
		cfg.Caches = NewCaches(0)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Binary == "" {
		cfg.Binary = "cmake"
	}
	if cfg.TempDir == "" {
		cfg.TempDir = filepath.Join(os.TempDir(), "ccflags")
	}
	return &CMakeFile{
		cfg: cfg,
		db: NewCompilationDb(CompilationDbConfig{
			Caches:         cfg.Caches,
			HeaderToSource: cfg.HeaderToSource,
			Builtins:       cfg.Builtins,
			Logger:         cfg.Logger,
		}),
		log: cfg.Logger.With("source", "cmake"),
	}
}

// Name returns the CMake project file name.
func (c *CMakeFile) Name() string { return CMakeListsFile }

// OriginOf returns the CMakeLists.txt that last served file.
func (c *CMakeFile) OriginOf(file string) string {
	p, _ := c.cfg.Caches.CMake.CMakeFor(flag.Canonical(file, ""))
	return p
}

// Flags returns flags for file from the CMake project enclosing it. The
// project is (re)configured when its CMakeLists.txt is new or changed. A
// failed configuration is not retried until CMakeLists.txt changes again.
func (c *CMakeFile) Flags(ctx context.Context, file string, scope buildfile.SearchScope) ([]flag.Flag, bool) {
	if !scope.Valid() {
		scope = buildfile.NewSearchScope(filepath.Dir(file), "")
	}
	file = flag.Canonical(file, "")
	rec, err := buildfile.Search(CMakeListsFile, scope, "project")
	if err != nil {
		c.log.Warn("search failed", "scope", scope.String(), "err", err)
		return nil, false
	}
	if rec == nil {
		return nil, false
	}

	dbPath, ok := c.database(ctx, file, rec)
	if !ok {
		return nil, false
	}
	c.cfg.Caches.CMake.rememberFile(file, rec.FullPath)
	return c.db.Flags(ctx, file, buildfile.NewSearchScope(filepath.Dir(dbPath), ""))
}

// Configure runs cmake for the project at cmakePath regardless of caches and
// returns the generated database path.
func (c *CMakeFile) Configure(ctx context.Context, cmakePath string) (*ports.CMakeBuild, error) {
	rec, err := buildfile.NewRecord(cmakePath)
	if err != nil {
		return nil, err
	}
	c.cfg.Caches.CMake.ForgetCMake(rec.FullPath)
	build := c.generate(ctx, "", rec)
	if !build.OK {
		return build, fmt.Errorf("cmake %s: no %s produced (exit %d)", rec.FullPath, CompilationDbFile, build.ExitCode)
	}
	return build, nil
}

// database returns the compilation database for the project, generating it
// when needed.
func (c *CMakeFile) database(ctx context.Context, file string, rec *buildfile.Record) (string, bool) {
	cache := c.cfg.Caches.CMake
	mtime := rec.ModTime.UnixNano()

	if dbPath, builtFrom, ok := cache.DBFor(rec.FullPath); ok && builtFrom == mtime && exists(dbPath) {
		c.log.Debug("unchanged, use existing db", "cmake", rec.FullPath)
		return dbPath, true
	}
	if failed, ok := cache.failedAt(rec.FullPath); ok && failed == mtime {
		c.log.Debug("cmake failed for this version before, not retrying", "cmake", rec.FullPath)
		return "", false
	}
	if build := c.restore(rec.FullPath, mtime); build != nil {
		if build.OK {
			cache.remember(file, rec.FullPath, build.DBPath, mtime)
			return build.DBPath, true
		}
		cache.markFailed(rec.FullPath, mtime)
		return "", false
	}

	v, _, _ := cache.running.Do(rec.FullPath, func() (interface{}, error) {
		return c.generate(ctx, file, rec), nil
	})
	build := v.(*ports.CMakeBuild)
	return build.DBPath, build.OK
}

// restore returns a persisted build record matching the current
// CMakeLists.txt version, or nil.
func (c *CMakeFile) restore(cmakePath string, mtime int64) *ports.CMakeBuild {
	if c.cfg.Store == nil {
		return nil
	}
	build, err := c.cfg.Store.LoadBuild(c.cfg.ProjectID, cmakePath)
	if err != nil {
		c.log.Warn("cannot load build record", "cmake", cmakePath, "err", err)
		return nil
	}
	if build == nil || build.CMakeMtime != mtime {
		return nil
	}
	if build.OK && !exists(build.DBPath) {
		return nil
	}
	c.log.Debug("reusing persisted build", "cmake", cmakePath, "build_dir", build.BuildDir)
	return build
}

func (c *CMakeFile) generate(ctx context.Context, file string, rec *buildfile.Record) *ports.CMakeBuild {
	cache := c.cfg.Caches.CMake
	mtime := rec.ModTime.UnixNano()
	buildDir := c.BuildDir(rec.FullPath)
	build := &ports.CMakeBuild{
		CMakePath:  rec.FullPath,
		BuildDir:   buildDir,
		CMakeMtime: mtime,
		BuiltAt:    time.Now(),
		ExitCode:   -1,
	}

	fail := func(output string) *ports.CMakeBuild {
		build.Output = tail(output, maxOutputTail)
		cache.markFailed(rec.FullPath, mtime)
		c.save(build)
		return build
	}

	// Always start from a clean build directory.
	if err := os.RemoveAll(buildDir); err != nil {
		c.log.Error("cannot clean build dir", "dir", buildDir, "err", err)
		return fail(err.Error())
	}
	if err := os.MkdirAll(buildDir, 0o755); err != nil {
		c.log.Error("cannot create build dir", "dir", buildDir, "err", err)
		return fail(err.Error())
	}
	if c.cfg.Limiter != nil {
		if err := c.cfg.Limiter.Wait(ctx); err != nil {
			return fail(err.Error())
		}
	}

	cmd := ports.Command{
		Name: c.cfg.Binary,
		Args: CMakeArgs(c.cfg.Flags, rec.Folder),
		Dir:  buildDir,
	}
	if len(c.cfg.PrefixPaths) > 0 {
		cmd.Env = []string{"CMAKE_PREFIX_PATH=" + JoinPrefixPaths(c.cfg.PrefixPaths)}
	}
	c.log.Info("running cmake", "cmd", cmd.Name+" "+strings.Join(cmd.Args, " "), "dir", buildDir)
	res, err := c.cfg.Runner.Run(ctx, cmd)
	if err != nil {
		c.log.Error("cmake did not run", "err", err)
		return fail(err.Error())
	}
	build.ExitCode = res.ExitCode
	output := string(res.Output)
	c.log.Info("cmake finished", "exit", res.ExitCode)
	c.log.Debug("cmake output", "output", output)

	dbPath := filepath.Join(buildDir, CompilationDbFile)
	if !exists(dbPath) {
		c.log.Error("cmake has finished, but no compilation database", "cmake", rec.FullPath)
		return fail(output)
	}
	if res.ExitCode != 0 {
		c.log.Warn("cmake exited non-zero but produced a compilation database", "cmake", rec.FullPath, "exit", res.ExitCode)
	}
	build.DBPath = dbPath
	build.OK = true
	build.Output = tail(output, maxOutputTail)
	cache.remember(file, rec.FullPath, dbPath, mtime)
	c.save(build)
	return build
}

func (c *CMakeFile) save(build *ports.CMakeBuild) {
	if c.cfg.Store == nil {
		return
	}
	if err := c.cfg.Store.SaveBuild(c.cfg.ProjectID, build); err != nil {
		c.log.Warn("cannot persist build record", "cmake", build.CMakePath, "err", err)
	}
}

// BuildDir is the private build directory for a CMakeLists.txt. The name is
// derived from the full path, so repeated runs reuse the same directory.
func (c *CMakeFile) BuildDir(cmakePath string) string {
	return filepath.Join(c.cfg.TempDir, "cmake_builds", BuildDirName(cmakePath))
}

// BuildDirName hashes a CMakeLists.txt path into a directory name.
func BuildDirName(cmakePath string) string {
	return fmt.Sprintf("%016x", xxh3.HashString(cmakePath))
}

// CMakeArgs builds the cmake argument list for configuring folder.
func CMakeArgs(extra []string, folder string) []string {
	args := make([]string, 0, len(extra)+2)
	args = append(args, extra...)
	args = append(args, "-DCMAKE_EXPORT_COMPILE_COMMANDS=ON", folder)
	return args
}

// JoinPrefixPaths joins CMAKE_PREFIX_PATH entries with the platform list
// separator (";" on Windows, ":" elsewhere).
func JoinPrefixPaths(paths []string) string {
	sep := ":"
	if runtime.GOOS == "windows" {
		sep = ";"
	}
	return strings.Join(paths, sep)
}

func exists(path string) bool {
	if path == "" {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
