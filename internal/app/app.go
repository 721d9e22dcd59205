// Package app wires together all adapters and domain logic.
// It provides lifecycle management for the ccflags daemon: create, start, stop.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/corey/ccflags/internal/adapters/bbolt"
	"github.com/corey/ccflags/internal/adapters/clang"
	"github.com/corey/ccflags/internal/adapters/exec"
	fsw "github.com/corey/ccflags/internal/adapters/fsnotify"
	"github.com/corey/ccflags/internal/adapters/socket"
	"github.com/corey/ccflags/internal/adapters/web"
	"github.com/corey/ccflags/internal/domain/builtins"
	"github.com/corey/ccflags/internal/domain/includes"
	"github.com/corey/ccflags/internal/domain/settings"
	"github.com/corey/ccflags/internal/domain/sources"
	"github.com/corey/ccflags/internal/domain/viewconfig"
	"github.com/corey/ccflags/internal/ports"
)

// versionTimeout bounds the `clang -v` call made while expanding settings.
const versionTimeout = 10 * time.Second

// App is the top-level container wiring all components together.
type App struct {
	Root      string // absolute project root
	ProjectID string
	Paths     *Paths

	Store     *bbolt.Store // nil when the database could not be opened
	Watcher   ports.Watcher
	Runner    ports.Runner
	Engines   ports.EngineFactory
	Builtins  *builtins.Querier
	Resolver  *viewconfig.Resolver
	Manager   *viewconfig.Manager
	Pool      *Pool
	Metrics   *Metrics
	Server    *socket.Server
	WebServer *web.Server

	log      *slog.Logger
	settings settings.Settings // expanded
	deps     sources.Deps
	httpPort int

	cancel   context.CancelFunc
	stopOnce sync.Once
}

// Config holds initialization parameters for the App.
type Config struct {
	ProjectRoot string
	ProjectID   string // default: base name of ProjectRoot
	// Settings are the merged settings before wildcard expansion. A zero
	// value uses settings.Default().
	Settings settings.Settings
	DBPath   string // path to bbolt file (default: .ccflags/ccflags.db)
	HTTPPort int    // preferred HTTP port (default: computed from project root)
	// Detector tells C headers from C++ ones. nil means headers are C++.
	Detector ports.LangDetector
	// Runner and Engines default to the os/exec runner and the clang
	// factory. Tests replace them.
	Runner   ports.Runner
	Engines  ports.EngineFactory
	Registry *prometheus.Registry
	Logger   *slog.Logger
}

// New creates an App with all dependencies wired. Does not start services.
func New(cfg Config) (*App, error) {
	if cfg.ProjectRoot == "" {
		return nil, fmt.Errorf("project root required")
	}
	root, err := filepath.Abs(cfg.ProjectRoot)
	if err != nil {
		return nil, fmt.Errorf("project root: %w", err)
	}
	if cfg.ProjectID == "" {
		cfg.ProjectID = filepath.Base(root)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Runner == nil {
		cfg.Runner = exec.New(cfg.Logger)
	}
	paths := NewPaths(root)
	if err := paths.EnsureDirs(); err != nil {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	if cfg.DBPath == "" {
		cfg.DBPath = paths.DB
	}
	if cfg.Engines == nil {
		cfg.Engines = clang.NewFactory(clang.FactoryConfig{
			Runner:  cfg.Runner,
			TempDir: paths.TempDir,
			Logger:  cfg.Logger,
		})
	}

	s := cfg.Settings
	if s.ClangBinary == "" && len(s.LangFlags) == 0 {
		s = settings.Default()
	}
	s.Normalize()
	if err := s.Validate(); err != nil {
		return nil, err
	}
	s = expandSettings(cfg.Runner, s, root, cfg.Logger)

	a := &App{
		Root:      root,
		ProjectID: cfg.ProjectID,
		Paths:     paths,
		Runner:    cfg.Runner,
		Engines:   cfg.Engines,
		log:       cfg.Logger.With("component", "app"),
		settings:  s,
		httpPort:  cfg.HTTPPort,
	}

	// The build index is an optimisation: without it cmake reruns once per
	// daemon start.
	store, err := bbolt.NewStore(cfg.DBPath)
	if err != nil {
		a.log.Warn("build index unavailable", "path", cfg.DBPath, "err", err)
	} else {
		a.Store = store
	}

	watcher, err := fsw.NewWatcher(sources.Known...)
	if err != nil {
		a.closeStore()
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	a.Watcher = watcher

	a.Builtins = builtins.New(builtins.Config{Runner: cfg.Runner, Logger: cfg.Logger})
	a.deps = sources.Deps{
		Caches:    sources.NewCaches(0),
		Runner:    cfg.Runner,
		ProjectID: cfg.ProjectID,
		TempDir:   paths.TempDir,
		Logger:    cfg.Logger,
	}
	if a.Store != nil {
		a.deps.Store = a.Store
	}
	if s.CMakeRate > 0 {
		a.deps.Limiter = rate.NewLimiter(rate.Limit(s.CMakeRate), 1)
	}
	a.Resolver = viewconfig.NewResolver(viewconfig.ResolverConfig{
		Deps:     a.deps,
		Runner:   cfg.Runner,
		Builtins: a.Builtins,
		Detector: cfg.Detector,
		TempDir:  paths.TempDir,
		Logger:   cfg.Logger,
	})

	a.Pool = NewPool(s.WorkerCount(), cfg.Logger)
	var mgr *viewconfig.Manager
	a.Metrics = NewMetrics(cfg.Registry,
		func() float64 { return float64(mgr.Stats().Entries) },
		func() float64 { return float64(a.Pool.Stats().Pending) },
	)
	mgr = viewconfig.NewManager(viewconfig.ManagerConfig{
		Resolver: a.Resolver,
		Engines:  cfg.Engines,
		MaxAge:   s.MaxAge(),
		Period:   s.Reaper(),
		Observer: a.Metrics,
		Logger:   cfg.Logger,
	})
	a.Manager = mgr

	a.Server = socket.NewServer(a, socket.SocketPath(root), cfg.Logger)
	a.WebServer = web.NewServer(a, a.Metrics.Handler(), paths.PortFile)
	return a, nil
}

// expandSettings substitutes the project wildcards. The clang version is
// best effort: without it ${clang_version} expands to "".
func expandSettings(runner ports.Runner, s settings.Settings, root string, log *slog.Logger) settings.Settings {
	ctx, cancel := context.WithTimeout(context.Background(), versionTimeout)
	defer cancel()
	version, err := clang.Version(ctx, runner, s.ClangBinary)
	if err != nil {
		log.Debug("clang version unknown", "clang", s.ClangBinary, "err", err)
	}
	name := s.ProjectName
	if name == "" {
		name = filepath.Base(root)
	}
	return s.Expand(settings.Wildcards{
		ProjectPath:  root,
		ProjectName:  name,
		ClangVersion: version,
	})
}

// Settings returns the expanded settings in use.
func (a *App) Settings() settings.Settings { return a.settings }

// Start begins serving on the socket and HTTP, watching build files and
// reaping idle configs. HTTP and the watcher are optional: their failures
// are logged.
func (a *App) Start(ctx context.Context) error {
	ctx, a.cancel = context.WithCancel(ctx)
	if err := a.Server.Start(); err != nil {
		a.cancel()
		return fmt.Errorf("start server: %w", err)
	}
	httpPort := a.httpPort
	if httpPort == 0 {
		httpPort = web.DefaultPort(a.Root)
	}
	if err := a.WebServer.Start(httpPort); err != nil {
		a.log.Warn("HTTP API unavailable", "port", httpPort, "err", err)
	}
	if err := a.Watcher.Watch(a.Root, a.onBuildFileChanged); err != nil {
		a.log.Warn("file watcher unavailable", "err", err)
	}
	a.Manager.Start(ctx)
	a.log.Info("daemon started", "root", a.Root, "socket", a.Server.Addr(),
		"workers", a.Pool.Stats().Workers, "max_age", a.Manager.MaxAge())
	return nil
}

// Stop gracefully shuts down all services and closes every engine. Safe to
// call more than once.
func (a *App) Stop() error {
	a.stopOnce.Do(func() {
		a.Watcher.Stop()
		a.WebServer.Stop()
		a.Server.Stop()
		a.Pool.Stop()
		if a.cancel != nil {
			a.cancel()
		}
		a.Manager.Stop()
		if n := a.Manager.Clear(); n > 0 {
			a.log.Debug("closed engines", "count", n)
		}
		a.closeStore()
		a.Paths.CleanEphemeral()
	})
	return nil
}

// Close releases what New acquired, for in-process use without Start.
func (a *App) Close() error {
	a.Watcher.Stop()
	a.Pool.Stop()
	a.Manager.Clear()
	a.closeStore()
	return nil
}

func (a *App) closeStore() {
	if a.Store != nil {
		a.Store.Close()
		a.Store = nil
	}
}

// =============================================================================
// In-process operations (CLI without a daemon)
// =============================================================================

// Resolve computes the flags for one file without creating an engine.
func (a *App) Resolve(ctx context.Context, file, lang string) (socket.FlagsResult, error) {
	v := newView(file, "", lang, 0, 0)
	if a.settings.IsIgnored(v.FilePath()) {
		return socket.FlagsResult{}, fmt.Errorf("%s: %w", v.FilePath(), viewconfig.ErrIgnored)
	}
	variant := a.Engines.Variant(a.engineOptions())
	res := a.Resolver.Resolve(ctx, v, a.settings, variant)
	return flagsResult(v.FilePath(), res), nil
}

// ResolveAll resolves files in parallel, bounded by the worker count.
// Results keep the order of files. The first error cancels the rest.
func (a *App) ResolveAll(ctx context.Context, files []string, lang string) ([]socket.FlagsResult, error) {
	out := make([]socket.FlagsResult, len(files))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(a.settings.WorkerCount())
	for i, f := range files {
		g.Go(func() error {
			r, err := a.Resolve(ctx, f, lang)
			if err != nil {
				return err
			}
			out[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Configure runs cmake for the project in dir and records the build.
func (a *App) Configure(ctx context.Context, dir string) (*ports.CMakeBuild, error) {
	s := a.settings
	var entry settings.SourceEntry
	for _, e := range s.FlagsSources {
		if e.File == sources.CMakeListsFile {
			entry = e
			break
		}
	}
	src := sources.NewCMakeFile(sources.CMakeConfig{
		Caches:      a.deps.Caches,
		Runner:      a.deps.Runner,
		Store:       a.deps.Store,
		ProjectID:   a.deps.ProjectID,
		Binary:      s.CMakeBinary,
		Flags:       entry.Flags,
		PrefixPaths: entry.PrefixPaths,
		TempDir:     a.deps.TempDir,
		Limiter:     a.deps.Limiter,
		Logger:      a.deps.Logger,
	})
	abs, err := filepath.Abs(filepath.Join(dir, sources.CMakeListsFile))
	if err != nil {
		return nil, err
	}
	return src.Configure(ctx, abs)
}

func (a *App) engineOptions() ports.EngineOptions {
	return ports.EngineOptions{
		UseLibclang:  a.settings.UseLibclang,
		LibclangPath: a.settings.LibclangPath,
		ClangBinary:  a.settings.ClangBinary,
	}
}

// =============================================================================
// socket.Service
// =============================================================================

// ProjectRoot returns the absolute project root.
func (a *App) ProjectRoot() string { return a.Root }

// Flags loads (or reuses) the view config of a file and reports its flags.
func (a *App) Flags(ctx context.Context, p socket.ViewParams) (socket.FlagsResult, error) {
	v := viewFromParams(p)
	o := a.Pool.Do(ctx, TagFlags, v.FilePath(), func(ctx context.Context) (interface{}, error) {
		return a.Manager.LoadForView(ctx, v, a.settings)
	})
	a.Metrics.Request(TagFlags, o.Err)
	if o.Err != nil {
		return socket.FlagsResult{}, o.Err
	}
	cfg := o.Value.(*viewconfig.ViewConfig)
	return flagsResult(cfg.Identity, cfg.Resolution), nil
}

// Complete returns completions at the cursor.
func (a *App) Complete(ctx context.Context, p socket.ViewParams) (socket.CompleteResult, error) {
	v := viewFromParams(p)
	o := a.Pool.Do(ctx, TagComplete, v.FilePath(), func(ctx context.Context) (interface{}, error) {
		if _, err := a.Manager.LoadForView(ctx, v, a.settings); err != nil {
			return nil, err
		}
		return a.Manager.Complete(ctx, v)
	})
	a.Metrics.Request(TagComplete, o.Err)
	if o.Err != nil {
		return socket.CompleteResult{}, o.Err
	}
	if o.Superseded {
		return socket.CompleteResult{Superseded: true}, nil
	}
	completions, _ := o.Value.([]ports.Completion)
	return socket.CompleteResult{
		Completions: completions,
		Count:       len(completions),
	}, nil
}

// Update re-parses the buffer and returns diagnostics. An empty buffer
// returns the diagnostics of the last parse.
func (a *App) Update(ctx context.Context, p socket.ViewParams) (socket.UpdateResult, error) {
	v := viewFromParams(p)
	o := a.Pool.Do(ctx, TagUpdate, v.FilePath(), func(ctx context.Context) (interface{}, error) {
		cfg, err := a.Manager.LoadForView(ctx, v, a.settings)
		if err != nil {
			return nil, err
		}
		if v.Text() == "" {
			return cfg.Diagnostics(), nil
		}
		return a.Manager.Update(ctx, v)
	})
	a.Metrics.Request(TagUpdate, o.Err)
	if o.Err != nil {
		return socket.UpdateResult{}, o.Err
	}
	if o.Superseded {
		return socket.UpdateResult{Superseded: true}, nil
	}
	diags, _ := o.Value.([]ports.Diagnostic)
	return socket.UpdateResult{
		Diagnostics: diags,
		Count:       len(diags),
	}, nil
}

// Declaration reports where the symbol under the cursor is declared.
func (a *App) Declaration(ctx context.Context, p socket.ViewParams) (socket.DeclarationResult, error) {
	v := viewFromParams(p)
	o := a.Pool.Do(ctx, TagDeclaration, v.FilePath(), func(ctx context.Context) (interface{}, error) {
		if _, err := a.Manager.LoadForView(ctx, v, a.settings); err != nil {
			return nil, err
		}
		return a.Manager.DeclarationLocation(ctx, v)
	})
	a.Metrics.Request(TagDeclaration, o.Err)
	if o.Err != nil {
		return socket.DeclarationResult{}, o.Err
	}
	loc, _ := o.Value.(*ports.Location)
	return socket.DeclarationResult{Location: loc}, nil
}

// Headers lists the headers in the include folders of a file, filtered by
// p.Prefix. A cached view config is used when present; otherwise the flags
// are resolved without creating an engine.
func (a *App) Headers(ctx context.Context, p socket.ViewParams) (socket.HeadersResult, error) {
	headers, err := a.headers(ctx, p)
	a.Metrics.Request(TagHeaders, err)
	if err != nil {
		return socket.HeadersResult{}, err
	}
	return socket.HeadersResult{Headers: headers, Count: len(headers)}, nil
}

func (a *App) headers(ctx context.Context, p socket.ViewParams) ([]includes.Header, error) {
	var folders []string
	if cfg := a.Manager.GetFromCache(newView(p.File, "", "", 0, 0).FilePath()); cfg != nil {
		folders = cfg.IncludeFolders
	} else {
		res, err := a.Resolve(ctx, p.File, p.Lang)
		if err != nil {
			return nil, err
		}
		folders = res.IncludeFolders
	}
	return includes.All(ctx, folders, p.Prefix)
}

// Clear drops the view config of a file. Pending work for the file is
// dropped first.
func (a *App) Clear(file string) socket.ClearResult {
	id := newView(file, "", "", 0, 0).FilePath()
	o := a.Pool.Do(context.Background(), TagClear, id, func(context.Context) (interface{}, error) {
		return a.Manager.ClearForView(id), nil
	})
	a.Metrics.Request(TagClear, o.Err)
	cleared, _ := o.Value.(bool)
	return socket.ClearResult{Cleared: cleared}
}

// Stats reports manager and pool counters.
func (a *App) Stats() socket.StatsResult {
	ms := a.Manager.Stats()
	ps := a.Pool.Stats()
	return socket.StatsResult{
		Entries:       ms.Entries,
		Hits:          ms.Hits,
		Builds:        ms.Builds,
		Evictions:     ms.Evictions,
		Clears:        ms.Clears,
		MaxAgeSeconds: ms.MaxAge.Seconds(),
		Workers:       ps.Workers,
		Pending:       ps.Pending,
		Running:       ps.Running,
		Superseded:    ps.Superseded,
		Files:         a.Manager.Identities(),
	}
}

func flagsResult(file string, res viewconfig.Resolution) socket.FlagsResult {
	return socket.FlagsResult{
		File:           file,
		Engine:         string(res.Engine),
		Lang:           res.Lang.Name(),
		Args:           res.Args(),
		IncludeFolders: res.IncludeFolders,
		Source:         res.Source,
		Origin:         res.Origin,
		Warnings:       res.Warnings,
	}
}
