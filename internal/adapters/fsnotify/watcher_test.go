package fsnotify

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// waitForCallback waits up to timeout for the callback channel to receive a value.
func waitForCallback(ch <-chan string, timeout time.Duration) (string, bool) {
	select {
	case v := <-ch:
		return v, true
	case <-time.After(timeout):
		return "", false
	}
}

func startWatcher(t *testing.T, dir string, names ...string) <-chan string {
	t.Helper()
	w, err := NewWatcher(names...)
	require.NoError(t, err)
	t.Cleanup(func() { w.Stop() })

	changed := make(chan string, 32)
	require.NoError(t, w.Watch(dir, func(path string) { changed <- path }))
	time.Sleep(50 * time.Millisecond)
	return changed
}

func TestWatcher_DetectsBuildFileChange(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "compile_commands.json")
	require.NoError(t, os.WriteFile(db, []byte("[]"), 0644))

	changed := startWatcher(t, dir, "compile_commands.json")
	require.NoError(t, os.WriteFile(db, []byte(`[{"file":"a.c"}]`), 0644))

	path, ok := waitForCallback(changed, 2*time.Second)
	require.True(t, ok, "expected callback for build file change")
	assert.Equal(t, db, path)
}

func TestWatcher_DetectsNewBuildFileInNewDir(t *testing.T) {
	dir := t.TempDir()
	changed := startWatcher(t, dir, "CMakeLists.txt")

	sub := filepath.Join(dir, "lib")
	require.NoError(t, os.MkdirAll(sub, 0755))
	time.Sleep(100 * time.Millisecond)
	cml := filepath.Join(sub, "CMakeLists.txt")
	require.NoError(t, os.WriteFile(cml, []byte("project(x)"), 0644))

	path, ok := waitForCallback(changed, 2*time.Second)
	require.True(t, ok, "expected callback for new build file")
	assert.Equal(t, cml, path)
}

func TestWatcher_DetectsDeletedBuildFile(t *testing.T) {
	dir := t.TempDir()
	cc := filepath.Join(dir, ".clang_complete")
	require.NoError(t, os.WriteFile(cc, []byte("-Iinc"), 0644))

	changed := startWatcher(t, dir, ".clang_complete")
	require.NoError(t, os.Remove(cc))

	path, ok := waitForCallback(changed, 2*time.Second)
	require.True(t, ok, "expected callback for deleted build file")
	assert.Equal(t, cc, path)
}

func TestWatcher_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	gitDir := filepath.Join(dir, ".git")
	require.NoError(t, os.MkdirAll(gitDir, 0755))

	changed := startWatcher(t, dir, "compile_commands.json")

	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.cpp"), []byte("int main(){}"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(gitDir, "compile_commands.json"), []byte("[]"), 0644))

	_, ok := waitForCallback(changed, 500*time.Millisecond)
	assert.False(t, ok, "should not have received callback for unrelated files")

	db := filepath.Join(dir, "compile_commands.json")
	require.NoError(t, os.WriteFile(db, []byte("[]"), 0644))
	path, ok := waitForCallback(changed, 2*time.Second)
	require.True(t, ok, "expected callback for build file")
	assert.Equal(t, db, path)
}

func TestWatcher_WatchesVSCodeFolder(t *testing.T) {
	dir := t.TempDir()
	vscode := filepath.Join(dir, ".vscode")
	require.NoError(t, os.MkdirAll(vscode, 0755))

	changed := startWatcher(t, dir, "c_cpp_properties.json")
	props := filepath.Join(vscode, "c_cpp_properties.json")
	require.NoError(t, os.WriteFile(props, []byte(`{"configurations":[]}`), 0644))

	path, ok := waitForCallback(changed, 2*time.Second)
	require.True(t, ok)
	assert.Equal(t, props, path)
}

func TestWatcher_MissingDir(t *testing.T) {
	w, err := NewWatcher()
	require.NoError(t, err)
	defer w.Stop()
	assert.Error(t, w.Watch(filepath.Join(t.TempDir(), "nope"), func(string) {}))
}

func TestWatcher_Relevant(t *testing.T) {
	w := &Watcher{names: map[string]bool{"CMakeLists.txt": true}}
	assert.True(t, w.relevant("/p/CMakeLists.txt"))
	assert.False(t, w.relevant("/p/.ccflags/CMakeLists.txt"))
	assert.False(t, w.relevant("/p/main.cpp"))

	all := &Watcher{}
	assert.True(t, all.relevant("/p/main.cpp"))
	assert.False(t, all.relevant("/p/.main.cpp.swp"))
	assert.False(t, all.relevant("/p/.git/HEAD"))
}

func TestWatcher_StopCleanup(t *testing.T) {
	dir := t.TempDir()

	w, err := NewWatcher()
	require.NoError(t, err)

	callCount := 0
	var mu sync.Mutex
	err = w.Watch(dir, func(path string) {
		mu.Lock()
		callCount++
		mu.Unlock()
	})
	require.NoError(t, err)

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, w.Stop())

	mu.Lock()
	countAfterStop := callCount
	mu.Unlock()

	os.WriteFile(filepath.Join(dir, "after_stop.cpp"), []byte("// nope"), 0644)
	time.Sleep(200 * time.Millisecond)

	mu.Lock()
	countAfterWrite := callCount
	mu.Unlock()
	assert.Equal(t, countAfterStop, countAfterWrite, "callbacks fired after Stop()")

	assert.NoError(t, w.Stop())
}
