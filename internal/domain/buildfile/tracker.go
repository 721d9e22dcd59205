package buildfile

import (
	"os"
	"sync"
	"time"
)

// Tracker remembers the last seen modification time of files. It replaces a
// process-global mtime cache: one Tracker is built at startup and handed to
// every component that needs staleness checks.
type Tracker struct {
	mu    sync.Mutex
	mtime map[string]time.Time
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{mtime: make(map[string]time.Time)}
}

// Unchanged reports whether path has the same mtime as when it was last seen.
// A path seen for the first time, or one whose mtime moved, is reported as
// changed and its current mtime is stored. Missing files are always changed.
func (t *Tracker) Unchanged(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Forget(path)
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	prev, seen := t.mtime[path]
	t.mtime[path] = info.ModTime()
	return seen && prev.Equal(info.ModTime())
}

// Touch stores the current mtime of path.
func (t *Tracker) Touch(path string) {
	info, err := os.Stat(path)
	if err != nil {
		return
	}
	t.mu.Lock()
	t.mtime[path] = info.ModTime()
	t.mu.Unlock()
}

// Seen returns the stored mtime for path.
func (t *Tracker) Seen(path string) (time.Time, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	m, ok := t.mtime[path]
	return m, ok
}

// Forget drops the stored mtime so the next Unchanged call reports a change.
func (t *Tracker) Forget(path string) {
	t.mu.Lock()
	delete(t.mtime, path)
	t.mu.Unlock()
}

// Len returns the number of tracked paths.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.mtime)
}
