// Package fsnotify implements the ports.Watcher interface using github.com/fsnotify/fsnotify.
// It recursively watches a project directory and reports changes to build
// description files (compile_commands.json, CMakeLists.txt, ...). Rapid
// events are debounced since editors often write several times per save.
package fsnotify

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Directories to ignore when watching.
var ignoreDirs = map[string]bool{
	".git":         true,
	".hg":          true,
	".svn":         true,
	"node_modules": true,
	".idea":        true,
	".cache":       true,
	".ccflags":     true,
	"CMakeFiles":   true,
}

const debounceInterval = 50 * time.Millisecond

// Watcher implements ports.Watcher using fsnotify.
type Watcher struct {
	fw    *fsnotify.Watcher
	names map[string]bool // base names that trigger onChange; empty = all

	done    chan struct{}
	stopped bool
	mu      sync.Mutex
}

// NewWatcher creates a watcher reporting changes to files with the given
// base names. With no names every file outside ignored directories is
// reported.
func NewWatcher(names ...string) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		fw:    fw,
		names: make(map[string]bool, len(names)),
		done:  make(chan struct{}),
	}
	for _, n := range names {
		w.names[n] = true
	}
	return w, nil
}

// Watch starts monitoring projectPath recursively.
// onChange is called with the absolute path of each changed build file.
func (w *Watcher) Watch(projectPath string, onChange func(filePath string)) error {
	absPath, err := filepath.Abs(projectPath)
	if err != nil {
		return err
	}
	if _, err := os.Stat(absPath); err != nil {
		return err
	}

	err = filepath.WalkDir(absPath, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil // skip inaccessible paths
		}
		if d.IsDir() {
			if ignoreDirs[d.Name()] && path != absPath {
				return filepath.SkipDir
			}
			return w.fw.Add(path)
		}
		return nil
	})
	if err != nil {
		return err
	}

	go w.loop(onChange)
	return nil
}

func (w *Watcher) loop(onChange func(string)) {
	last := make(map[string]time.Time)
	for {
		select {
		case event, ok := <-w.fw.Events:
			if !ok {
				return
			}
			path := event.Name

			// New directories join the watch list.
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(path); err == nil && info.IsDir() {
					if !ignoreDirs[info.Name()] {
						w.fw.Add(path)
					}
					continue
				}
			}
			if !w.relevant(path) {
				continue
			}
			if !(event.Has(fsnotify.Write) || event.Has(fsnotify.Create) ||
				event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename)) {
				continue
			}

			now := time.Now()
			if t, seen := last[path]; seen && now.Sub(t) < debounceInterval {
				continue
			}
			last[path] = now

			select {
			case <-w.done:
				return
			default:
			}
			onChange(path)

		case _, ok := <-w.fw.Errors:
			if !ok {
				return
			}
			// fsnotify recovers on its own

		case <-w.done:
			return
		}
	}
}

// Stop ends monitoring and releases all resources.
// Safe to call multiple times.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return nil
	}
	w.stopped = true
	close(w.done)
	return w.fw.Close()
}

// relevant reports whether a change to path should be reported.
func (w *Watcher) relevant(path string) bool {
	for _, part := range strings.Split(filepath.Dir(path), string(filepath.Separator)) {
		if ignoreDirs[part] {
			return false
		}
	}
	base := filepath.Base(path)
	if len(w.names) == 0 {
		return !strings.HasSuffix(base, ".swp") && !strings.HasSuffix(base, "~")
	}
	return w.names[base]
}
