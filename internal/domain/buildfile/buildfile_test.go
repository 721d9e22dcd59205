package buildfile

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// =============================================================================
// SearchScope
// =============================================================================

func TestNewSearchScope_DefaultsToRoot(t *testing.T) {
	s := NewSearchScope("", "")
	assert.True(t, s.Valid())
	assert.Equal(t, Root(), s.From)
	assert.Equal(t, Root(), s.To)

	s = NewSearchScope("/a/b", "")
	assert.Equal(t, filepath.Clean("/a/b"), s.From)
	assert.Equal(t, Root(), s.To)
}

// =============================================================================
// Search
// =============================================================================

func TestSearch_FindsFileUpTheTree(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "compile_commands.json"), "[]")
	deep := filepath.Join(root, "src", "lib", "x")
	require.NoError(t, os.MkdirAll(deep, 0o755))

	rec, err := Search("compile_commands.json", NewSearchScope(deep, root))
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, filepath.Join(root, "compile_commands.json"), rec.FullPath)
	assert.Equal(t, root, rec.Folder)
	assert.True(t, rec.Loaded)
}

func TestSearch_NearestWins(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, ".clang_complete"), "-DROOT")
	writeFile(t, filepath.Join(root, "sub", ".clang_complete"), "-DSUB")

	rec, err := Search(".clang_complete", NewSearchScope(filepath.Join(root, "sub"), root))
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, filepath.Join(root, "sub"), rec.Folder)
}

func TestSearch_StopsAtScopeEnd(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "compile_commands.json"), "[]")
	sub := filepath.Join(root, "sub")
	deep := filepath.Join(sub, "deep")
	require.NoError(t, os.MkdirAll(deep, 0o755))

	rec, err := Search("compile_commands.json", NewSearchScope(deep, sub))
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestSearch_MissingStartFolder(t *testing.T) {
	rec, err := Search("CMakeLists.txt", NewSearchScope(filepath.Join(t.TempDir(), "nope"), ""))
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestSearch_ContentFilterSkipsSubprojects(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "CMakeLists.txt"), "cmake_minimum_required(VERSION 3.5)\nProject(top)\n")
	writeFile(t, filepath.Join(root, "lib", "CMakeLists.txt"), "add_library(liba a.cpp)\n")

	rec, err := Search("CMakeLists.txt", NewSearchScope(filepath.Join(root, "lib"), root), "project")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, filepath.Join(root, "CMakeLists.txt"), rec.FullPath)
}

func TestRecord_Lines(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".clang_complete")
	writeFile(t, path, "-Iinc\n-DFOO\n")
	rec, err := NewRecord(path)
	require.NoError(t, err)
	lines, err := rec.Lines()
	require.NoError(t, err)
	assert.Equal(t, []string{"-Iinc", "-DFOO"}, lines)

	var empty *Record
	_, err = empty.Lines()
	assert.Error(t, err)
}

// =============================================================================
// Tracker
// =============================================================================

func TestTracker_FirstSightIsChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "compile_commands.json")
	writeFile(t, path, "[]")
	tr := NewTracker()

	assert.False(t, tr.Unchanged(path), "first sight counts as a change")
	assert.True(t, tr.Unchanged(path))
	assert.Equal(t, 1, tr.Len())
}

func TestTracker_DetectsMtimeChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "compile_commands.json")
	writeFile(t, path, "[]")
	tr := NewTracker()
	tr.Touch(path)
	assert.True(t, tr.Unchanged(path))

	future := time.Now().Add(10 * time.Second)
	require.NoError(t, os.Chtimes(path, future, future))
	assert.False(t, tr.Unchanged(path))
	assert.True(t, tr.Unchanged(path))
}

func TestTracker_ForgetAndMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "CMakeLists.txt")
	writeFile(t, path, "project(x)")
	tr := NewTracker()
	tr.Touch(path)
	_, ok := tr.Seen(path)
	assert.True(t, ok)

	tr.Forget(path)
	assert.False(t, tr.Unchanged(path))

	require.NoError(t, os.Remove(path))
	assert.False(t, tr.Unchanged(path))
	_, ok = tr.Seen(path)
	assert.False(t, ok)
	assert.False(t, tr.Unchanged(""))
}
