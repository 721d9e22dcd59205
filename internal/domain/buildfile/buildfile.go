// Package buildfile locates build-description files (compile_commands.json,
// CMakeLists.txt, .clang_complete, ...) by walking up the directory tree and
// tracks their modification times so cached parses can be invalidated.
package buildfile

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// SearchScope bounds an upward search: it starts in From and gives up after
// visiting To. Both default to the filesystem root.
type SearchScope struct {
	From string
	To   string
}

// NewSearchScope builds a scope, defaulting empty folders to the root.
func NewSearchScope(from, to string) SearchScope {
	root := Root()
	if from == "" {
		from = root
	}
	if to == "" {
		to = root
	}
	return SearchScope{From: filepath.Clean(from), To: filepath.Clean(to)}
}

// Valid reports whether both ends of the scope are set.
func (s SearchScope) Valid() bool {
	return s.From != "" && s.To != ""
}

func (s SearchScope) String() string {
	return fmt.Sprintf("%s -> %s", s.From, s.To)
}

// Root returns the filesystem root of the working directory's volume.
func Root() string {
	wd, err := os.Getwd()
	if err != nil {
		return string(filepath.Separator)
	}
	return filepath.VolumeName(wd) + string(filepath.Separator)
}

// Record describes a discovered build file.
type Record struct {
	FullPath string
	Folder   string
	ModTime  time.Time
	Loaded   bool
}

// NewRecord stats path and returns a loaded record for it.
func NewRecord(path string) (*Record, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("abs %s: %w", path, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", abs, err)
	}
	return &Record{
		FullPath: abs,
		Folder:   filepath.Dir(abs),
		ModTime:  info.ModTime(),
		Loaded:   true,
	}, nil
}

// Lines reads the file as a list of lines without trailing newlines.
func (r *Record) Lines() ([]string, error) {
	if r == nil || !r.Loaded {
		return nil, fmt.Errorf("record not loaded")
	}
	f, err := os.Open(r.FullPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	return lines, scanner.Err()
}

// Contains reports whether any line, lowercased and left-trimmed, starts
// with one of the queries.
func (r *Record) Contains(queries ...string) bool {
	lines, err := r.Lines()
	if err != nil {
		return false
	}
	for _, line := range lines {
		l := strings.ToLower(strings.TrimLeft(line, " \t"))
		for _, q := range queries {
			if strings.HasPrefix(l, q) {
				return true
			}
		}
	}
	return false
}

// Search looks for a file called name starting in scope.From and moving up
// until scope.To has been visited or the root is reached. If contentPrefixes
// are given, a candidate is only accepted when Contains(contentPrefixes...)
// holds; otherwise the search continues upward.
//
// Returns nil, nil when nothing is found or the start folder does not exist.
func Search(name string, scope SearchScope, contentPrefixes ...string) (*Record, error) {
	if !scope.Valid() {
		scope = NewSearchScope(scope.From, scope.To)
	}
	current := filepath.Clean(scope.From)
	if info, err := os.Stat(current); err != nil || !info.IsDir() {
		return nil, nil
	}
	stop := filepath.Clean(scope.To)
	for {
		candidate := filepath.Join(current, name)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			rec, err := NewRecord(candidate)
			if err != nil {
				return nil, err
			}
			if len(contentPrefixes) == 0 || rec.Contains(contentPrefixes...) {
				return rec, nil
			}
		}
		if current == stop {
			return nil, nil
		}
		parent := filepath.Dir(current)
		if parent == current {
			return nil, nil
		}
		current = parent
	}
}
