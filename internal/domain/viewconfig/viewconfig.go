package viewconfig

import (
	"sync"
	"time"

	"github.com/corey/ccflags/internal/domain/flag"
	"github.com/corey/ccflags/internal/ports"
)

// ViewConfig is the resolved state of one open file: the engine kind, the
// flags it was initialised with and the engine itself.
type ViewConfig struct {
	Identity string
	Resolution
	Engine ports.CompletionEngine

	now func() time.Time

	holds int // guarded by Manager.mu

	mu          sync.Mutex
	lastUsed    time.Time
	diagnostics []ports.Diagnostic
}

func newViewConfig(identity string, res Resolution, engine ports.CompletionEngine, now func() time.Time) *ViewConfig {
	return &ViewConfig{
		Identity:   identity,
		Resolution: res,
		Engine:     engine,
		now:        now,
		lastUsed:   now(),
	}
}

// Touch marks the config as used now.
func (c *ViewConfig) Touch() {
	c.mu.Lock()
	c.lastUsed = c.now()
	c.mu.Unlock()
}

// LastUsed returns when the config was last touched.
func (c *ViewConfig) LastUsed() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastUsed
}

// Age is the time since the last Touch.
func (c *ViewConfig) Age() time.Duration {
	return c.now().Sub(c.LastUsed())
}

// OlderThan reports whether the config has been idle longer than d.
func (c *ViewConfig) OlderThan(d time.Duration) bool {
	return c.Age() > d
}

// NeedsUpdate reports whether a config with the given engine kind and flags
// would differ from this one.
func (c *ViewConfig) NeedsUpdate(kind ports.EngineKind, flags []flag.Flag) bool {
	if c.Engine == nil {
		return true
	}
	if kind != c.Engine.Kind() || kind != c.Resolution.Engine {
		return true
	}
	return !flag.Equal(flags, c.Flags)
}

// Diagnostics returns the diagnostics of the last engine update.
func (c *ViewConfig) Diagnostics() []ports.Diagnostic {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.diagnostics
}

func (c *ViewConfig) setDiagnostics(d []ports.Diagnostic) {
	c.mu.Lock()
	c.diagnostics = d
	c.mu.Unlock()
}
