package sources

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/corey/ccflags/internal/domain/buildfile"
	"github.com/corey/ccflags/internal/ports"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func writeJSON(t *testing.T, path string, v any) {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	writeFile(t, path, string(data))
}

// bump moves a file's mtime forward so trackers see a change even on
// filesystems with coarse timestamps.
func bump(t *testing.T, path string) {
	t.Helper()
	info, err := os.Stat(path)
	require.NoError(t, err)
	later := info.ModTime().Add(10 * time.Second)
	require.NoError(t, os.Chtimes(path, later, later))
}

func scopeIn(root, from string) buildfile.SearchScope {
	return buildfile.NewSearchScope(from, root)
}

// fakeRunner records commands. When entries is non-nil it writes them as
// compile_commands.json into the command's working directory.
type fakeRunner struct {
	mu       sync.Mutex
	calls    []ports.Command
	entries  []map[string]any
	exitCode int
	output   string
}

func (r *fakeRunner) Run(_ context.Context, cmd ports.Command) (ports.Result, error) {
	r.mu.Lock()
	r.calls = append(r.calls, cmd)
	entries := r.entries
	r.mu.Unlock()
	if entries != nil {
		data, err := json.Marshal(entries)
		if err != nil {
			return ports.Result{}, err
		}
		if err := os.WriteFile(filepath.Join(cmd.Dir, CompilationDbFile), data, 0o644); err != nil {
			return ports.Result{}, err
		}
	}
	return ports.Result{Output: []byte(r.output), ExitCode: r.exitCode}, nil
}

func (r *fakeRunner) Calls() []ports.Command {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ports.Command, len(r.calls))
	copy(out, r.calls)
	return out
}

// memStore is an in-memory ports.BuildStore.
type memStore struct {
	mu     sync.Mutex
	builds map[string]*ports.CMakeBuild
}

func newMemStore() *memStore {
	return &memStore{builds: make(map[string]*ports.CMakeBuild)}
}

func (s *memStore) SaveBuild(projectID string, b *ports.CMakeBuild) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *b
	s.builds[projectID+"|"+b.CMakePath] = &cp
	return nil
}

func (s *memStore) LoadBuild(projectID, cmakePath string) (*ports.CMakeBuild, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.builds[projectID+"|"+cmakePath]
	if !ok {
		return nil, nil
	}
	cp := *b
	return &cp, nil
}

func (s *memStore) ListBuilds(projectID string) ([]*ports.CMakeBuild, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*ports.CMakeBuild
	for _, b := range s.builds {
		cp := *b
		out = append(out, &cp)
	}
	return out, nil
}

func (s *memStore) DeleteBuild(projectID, cmakePath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.builds, projectID+"|"+cmakePath)
	return nil
}

func (s *memStore) DeleteProject(projectID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.builds = make(map[string]*ports.CMakeBuild)
	return nil
}
