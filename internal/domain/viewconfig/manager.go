package viewconfig

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/corey/ccflags/internal/domain/buildfile"
	"github.com/corey/ccflags/internal/domain/flag"
	"github.com/corey/ccflags/internal/domain/settings"
	"github.com/corey/ccflags/internal/ports"
)

var (
	// ErrNoConfig is returned by engine helpers for a file that has no
	// cached config yet.
	ErrNoConfig = errors.New("no view config for file")
	// ErrIgnored is returned by LoadForView for files on the ignore list.
	ErrIgnored = errors.New("file is ignored")
	// ErrCleared is returned when the config was cleared while being built.
	ErrCleared = errors.New("view config cleared during build")
)

// Observer receives manager events. Optional.
type Observer interface {
	ConfigBuilt(elapsed time.Duration)
	ConfigReused()
	ConfigsEvicted(n int)
}

// Stats is a snapshot of manager counters.
type Stats struct {
	Entries   int           `json:"entries"`
	Hits      int64         `json:"hits"`
	Builds    int64         `json:"builds"`
	Evictions int64         `json:"evictions"`
	Clears    int64         `json:"clears"`
	MaxAge    time.Duration `json:"max_age"`
}

// ManagerConfig configures a Manager.
type ManagerConfig struct {
	Resolver *Resolver
	Engines  ports.EngineFactory
	// MaxAge is the initial idle time after which configs are evicted.
	// LoadForView replaces it with the value from the settings.
	MaxAge time.Duration
	// Period is the reaper tick interval.
	Period   time.Duration
	Observer Observer
	Logger   *slog.Logger
	// Now overrides the clock. Tests only.
	Now func() time.Time
}

// Manager caches one ViewConfig per file identity and evicts idle ones.
type Manager struct {
	resolver *Resolver
	engines  ports.EngineFactory
	observer Observer
	log      *slog.Logger
	now      func() time.Time
	period   time.Duration
	files    *buildfile.Tracker
	group    singleflight.Group

	mu      sync.Mutex
	configs map[string]*ViewConfig
	gens    map[string]uint64 // bumped by ClearForView
	maxAge  time.Duration

	hits, builds, evictions, clears atomic.Int64

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
	started  atomic.Bool
}

// NewManager creates a manager. Call Start to run the reaper.
func NewManager(cfg ManagerConfig) *Manager {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = settings.Default().MaxAge()
	}
	if cfg.Period <= 0 {
		cfg.Period = settings.Default().Reaper()
	}
	return &Manager{
		resolver: cfg.Resolver,
		engines:  cfg.Engines,
		observer: cfg.Observer,
		log:      cfg.Logger.With("component", "viewconfig"),
		now:      cfg.Now,
		period:   cfg.Period,
		files:    buildfile.NewTracker(),
		configs:  make(map[string]*ViewConfig),
		gens:     make(map[string]uint64),
		maxAge:   cfg.MaxAge,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Identity is the cache key for a file path.
func Identity(path string) string { return flag.Canonical(path, "") }

// LoadForView returns the config for view, building it when missing or when
// the resolved engine kind or flags differ from the cached ones. Concurrent
// calls for the same file share one build.
func (m *Manager) LoadForView(ctx context.Context, view ports.SourceView, s settings.Settings) (*ViewConfig, error) {
	id := Identity(view.FilePath())
	if id == "" {
		return nil, fmt.Errorf("load view config: empty file path")
	}
	if s.IsIgnored(id) {
		return nil, ErrIgnored
	}
	v, err, _ := m.group.Do(id, func() (interface{}, error) {
		return m.load(ctx, id, view, s)
	})
	if err != nil {
		return nil, err
	}
	return v.(*ViewConfig), nil
}

func (m *Manager) load(ctx context.Context, id string, view ports.SourceView, s settings.Settings) (*ViewConfig, error) {
	start := m.now()
	opts := ports.EngineOptions{
		UseLibclang:  s.UseLibclang,
		LibclangPath: s.LibclangPath,
		ClangBinary:  s.ClangBinary,
	}
	variant := m.engines.Variant(opts)
	res := m.resolver.Resolve(ctx, view, s, variant)

	m.mu.Lock()
	existing := m.acquireLocked(id)
	gen := m.gens[id]
	m.maxAge = s.MaxAge()
	m.mu.Unlock()
	if existing != nil {
		defer m.release(existing)
	}

	if existing != nil && !existing.NeedsUpdate(res.Engine, res.Flags) {
		m.hits.Add(1)
		if m.observer != nil {
			m.observer.ConfigReused()
		}
		if !m.files.Unchanged(id) {
			m.log.Debug("config updates existing engine", "file", id)
			m.update(ctx, existing, view)
		}
		return existing, nil
	}

	m.log.Debug("building config", "file", id, "engine", res.Engine, "flags", len(res.Flags))
	engine, err := m.engines.New(ctx, variant, opts)
	if err != nil {
		return nil, fmt.Errorf("create %s engine: %w", variant.Kind, err)
	}
	if err := engine.Init(ctx, res.Flags); err != nil {
		engine.Close()
		return nil, fmt.Errorf("init %s engine: %w", variant.Kind, err)
	}
	cfg := newViewConfig(id, res, engine, m.now)
	m.update(ctx, cfg, view)
	m.files.Touch(id)

	m.mu.Lock()
	if m.gens[id] != gen {
		m.mu.Unlock()
		engine.Close()
		m.log.Debug("discarding config cleared during build", "file", id)
		return nil, ErrCleared
	}
	old := m.configs[id]
	m.configs[id] = cfg
	m.mu.Unlock()

	if old != nil {
		old.Engine.Close()
	}
	m.builds.Add(1)
	if m.observer != nil {
		m.observer.ConfigBuilt(m.now().Sub(start))
	}
	return cfg, nil
}

func (m *Manager) update(ctx context.Context, cfg *ViewConfig, view ports.SourceView) {
	diags, err := cfg.Engine.Update(ctx, view)
	if err != nil {
		m.log.Warn("engine update failed", "file", cfg.Identity, "err", err)
		return
	}
	cfg.setDiagnostics(diags)
}

// acquireLocked touches the cached config for id and marks it held so the
// reaper leaves it alone until release. m.mu must be held.
func (m *Manager) acquireLocked(id string) *ViewConfig {
	cfg := m.configs[id]
	if cfg != nil {
		cfg.Touch()
		cfg.holds++
	}
	return cfg
}

func (m *Manager) acquire(path string) *ViewConfig {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.acquireLocked(Identity(path))
}

func (m *Manager) release(cfg *ViewConfig) {
	m.mu.Lock()
	cfg.holds--
	m.mu.Unlock()
}

// GetFromCache returns the cached config for a file, touching it, or nil.
func (m *Manager) GetFromCache(path string) *ViewConfig {
	id := Identity(path)
	m.mu.Lock()
	cfg := m.configs[id]
	m.mu.Unlock()
	if cfg != nil {
		cfg.Touch()
	}
	return cfg
}

// ClearForView drops the config of a file. It returns false when there was
// none.
func (m *Manager) ClearForView(path string) bool {
	id := Identity(path)
	m.mu.Lock()
	cfg, ok := m.configs[id]
	delete(m.configs, id)
	m.gens[id]++
	m.mu.Unlock()
	m.files.Forget(id)
	if ok {
		m.clears.Add(1)
		cfg.Engine.Close()
		m.log.Debug("cleared config", "file", id)
	}
	return ok
}

// ClearOrigin drops every config whose source flags came from the build
// file at origin. It returns the cleared identities.
func (m *Manager) ClearOrigin(origin string) []string {
	var ids []string
	m.mu.Lock()
	for id, cfg := range m.configs {
		if cfg.Origin == origin {
			ids = append(ids, id)
		}
	}
	m.mu.Unlock()
	for _, id := range ids {
		m.ClearForView(id)
	}
	sort.Strings(ids)
	return ids
}

// Clear drops every config.
func (m *Manager) Clear() int {
	m.mu.Lock()
	ids := make([]string, 0, len(m.configs))
	for id := range m.configs {
		ids = append(ids, id)
	}
	m.mu.Unlock()
	for _, id := range ids {
		m.ClearForView(id)
	}
	return len(ids)
}

// Identities lists cached file identities, sorted.
func (m *Manager) Identities() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.configs))
	for id := range m.configs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// MaxAge returns the current eviction age.
func (m *Manager) MaxAge() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.maxAge
}

// SetMaxAge overrides the eviction age.
func (m *Manager) SetMaxAge(d time.Duration) {
	m.mu.Lock()
	m.maxAge = d
	m.mu.Unlock()
}

// Reap evicts configs idle longer than the max age and returns how many
// were removed. Configs held by an in-flight load or engine call are kept.
func (m *Manager) Reap() int {
	var evicted []*ViewConfig
	m.mu.Lock()
	for id, cfg := range m.configs {
		if cfg.holds == 0 && cfg.OlderThan(m.maxAge) {
			m.log.Debug("remove old config", "file", id, "age", cfg.Age())
			delete(m.configs, id)
			evicted = append(evicted, cfg)
		}
	}
	m.mu.Unlock()

	for _, cfg := range evicted {
		m.files.Forget(cfg.Identity)
		cfg.Engine.Close()
	}
	if n := len(evicted); n > 0 {
		m.evictions.Add(int64(n))
		if m.observer != nil {
			m.observer.ConfigsEvicted(n)
		}
	}
	return len(evicted)
}

// Start runs the reaper until ctx is done or Stop is called. Calling Start
// more than once has no effect.
func (m *Manager) Start(ctx context.Context) {
	if !m.started.CompareAndSwap(false, true) {
		return
	}
	go func() {
		defer close(m.done)
		ticker := time.NewTicker(m.period)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-m.stop:
				return
			case <-ticker.C:
				m.Reap()
			}
		}
	}()
}

// Stop halts the reaper and waits for it to exit.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() { close(m.stop) })
	if m.started.Load() {
		<-m.done
	}
}

// Stats returns a snapshot of the counters.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	entries := len(m.configs)
	maxAge := m.maxAge
	m.mu.Unlock()
	return Stats{
		Entries:   entries,
		Hits:      m.hits.Load(),
		Builds:    m.builds.Load(),
		Evictions: m.evictions.Load(),
		Clears:    m.clears.Load(),
		MaxAge:    maxAge,
	}
}

// =============================================================================
// Engine helpers
// =============================================================================

// Complete returns completions at the view's cursor from the cached engine.
func (m *Manager) Complete(ctx context.Context, view ports.SourceView) ([]ports.Completion, error) {
	cfg := m.acquire(view.FilePath())
	if cfg == nil {
		return nil, ErrNoConfig
	}
	defer m.release(cfg)
	row, col := view.Cursor()
	return cfg.Engine.Complete(ctx, view, row, col)
}

// Update re-parses the view with the cached engine and returns diagnostics.
func (m *Manager) Update(ctx context.Context, view ports.SourceView) ([]ports.Diagnostic, error) {
	cfg := m.acquire(view.FilePath())
	if cfg == nil {
		return nil, ErrNoConfig
	}
	defer m.release(cfg)
	diags, err := cfg.Engine.Update(ctx, view)
	if err != nil {
		return nil, err
	}
	cfg.setDiagnostics(diags)
	m.files.Touch(cfg.Identity)
	return diags, nil
}

// DeclarationLocation asks the cached engine where the symbol under the
// cursor is declared.
func (m *Manager) DeclarationLocation(ctx context.Context, view ports.SourceView) (*ports.Location, error) {
	cfg := m.acquire(view.FilePath())
	if cfg == nil {
		return nil, ErrNoConfig
	}
	defer m.release(cfg)
	row, col := view.Cursor()
	return cfg.Engine.DeclarationLocation(ctx, view, row, col)
}
