package bbolt

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	bolt "go.etcd.io/bbolt"

	"github.com/corey/ccflags/internal/ports"
)

// =============================================================================
// Build index: persisted cmake outcomes survive a daemon restart
// =============================================================================

// newTestStore creates a temporary bbolt store for testing.
func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "test.db")
	store, err := NewStore(path)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store, path
}

// makeTestBuild creates a realistic successful build record.
func makeTestBuild(cmakePath string) *ports.CMakeBuild {
	return &ports.CMakeBuild{
		CMakePath:  cmakePath,
		BuildDir:   "/tmp/ccflags/cmake_builds/4f2a9c",
		DBPath:     "/tmp/ccflags/cmake_builds/4f2a9c/compile_commands.json",
		CMakeMtime: 1700000000123456789,
		OK:         true,
		Output:     "-- Configuring done\n-- Generating done",
		BuiltAt:    time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC),
	}
}

func assertSameBuild(t *testing.T, want, got *ports.CMakeBuild) {
	t.Helper()
	require.NotNil(t, got)
	assert.Equal(t, want.CMakePath, got.CMakePath)
	assert.Equal(t, want.BuildDir, got.BuildDir)
	assert.Equal(t, want.DBPath, got.DBPath)
	assert.Equal(t, want.CMakeMtime, got.CMakeMtime)
	assert.Equal(t, want.OK, got.OK)
	assert.Equal(t, want.Output, got.Output)
	assert.Equal(t, want.ExitCode, got.ExitCode)
	assert.True(t, want.BuiltAt.Equal(got.BuiltAt), "built_at %v != %v", want.BuiltAt, got.BuiltAt)
}

func TestStore_SaveLoadBuild_Roundtrip(t *testing.T) {
	store, _ := newTestStore(t)
	original := makeTestBuild("/src/proj/CMakeLists.txt")

	require.NoError(t, store.SaveBuild("proj-1", original))

	loaded, err := store.LoadBuild("proj-1", original.CMakePath)
	require.NoError(t, err)
	assertSameBuild(t, original, loaded)
}

func TestStore_FailedBuildRoundtrip(t *testing.T) {
	store, _ := newTestStore(t)
	failed := &ports.CMakeBuild{
		CMakePath:  "/src/proj/CMakeLists.txt",
		BuildDir:   "/tmp/b",
		CMakeMtime: 42,
		Output:     "CMake Error at CMakeLists.txt:3",
		ExitCode:   1,
		BuiltAt:    time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, store.SaveBuild("proj-1", failed))

	loaded, err := store.LoadBuild("proj-1", failed.CMakePath)
	require.NoError(t, err)
	assertSameBuild(t, failed, loaded)
	assert.False(t, loaded.OK)
	assert.Empty(t, loaded.DBPath)
}

func TestStore_LoadMissing(t *testing.T) {
	store, _ := newTestStore(t)

	build, err := store.LoadBuild("nope", "/src/CMakeLists.txt")
	require.NoError(t, err)
	assert.Nil(t, build)

	require.NoError(t, store.SaveBuild("proj-1", makeTestBuild("/a/CMakeLists.txt")))
	build, err = store.LoadBuild("proj-1", "/b/CMakeLists.txt")
	require.NoError(t, err)
	assert.Nil(t, build)
}

func TestStore_SaveOverwrites(t *testing.T) {
	store, _ := newTestStore(t)
	first := makeTestBuild("/src/CMakeLists.txt")
	require.NoError(t, store.SaveBuild("p", first))

	second := makeTestBuild("/src/CMakeLists.txt")
	second.CMakeMtime = first.CMakeMtime + 1
	second.BuildDir = "/tmp/other"
	require.NoError(t, store.SaveBuild("p", second))

	loaded, err := store.LoadBuild("p", "/src/CMakeLists.txt")
	require.NoError(t, err)
	assertSameBuild(t, second, loaded)

	all, err := store.ListBuilds("p")
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestStore_SaveRejectsInvalid(t *testing.T) {
	store, _ := newTestStore(t)
	assert.Error(t, store.SaveBuild("p", nil))
	assert.Error(t, store.SaveBuild("p", &ports.CMakeBuild{}))
}

func TestStore_ListBuildsOrdered(t *testing.T) {
	store, _ := newTestStore(t)
	for _, p := range []string{"/src/z/CMakeLists.txt", "/src/a/CMakeLists.txt", "/src/m/CMakeLists.txt"} {
		require.NoError(t, store.SaveBuild("p", makeTestBuild(p)))
	}

	all, err := store.ListBuilds("p")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "/src/a/CMakeLists.txt", all[0].CMakePath)
	assert.Equal(t, "/src/m/CMakeLists.txt", all[1].CMakePath)
	assert.Equal(t, "/src/z/CMakeLists.txt", all[2].CMakePath)

	empty, err := store.ListBuilds("other")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestStore_DeleteBuild(t *testing.T) {
	store, _ := newTestStore(t)
	require.NoError(t, store.SaveBuild("p", makeTestBuild("/a/CMakeLists.txt")))
	require.NoError(t, store.SaveBuild("p", makeTestBuild("/b/CMakeLists.txt")))

	require.NoError(t, store.DeleteBuild("p", "/a/CMakeLists.txt"))
	require.NoError(t, store.DeleteBuild("p", "/a/CMakeLists.txt"), "idempotent")
	require.NoError(t, store.DeleteBuild("missing-project", "/a/CMakeLists.txt"))

	all, err := store.ListBuilds("p")
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "/b/CMakeLists.txt", all[0].CMakePath)
}

func TestStore_CrashRecovery(t *testing.T) {
	// Data from the last committed transaction survives close and reopen.
	dir := t.TempDir()
	path := filepath.Join(dir, "crash.db")

	store, err := NewStore(path)
	require.NoError(t, err)
	build := makeTestBuild("/src/CMakeLists.txt")
	require.NoError(t, store.SaveBuild("proj-1", build))
	require.NoError(t, store.Close())

	store2, err := NewStore(path)
	require.NoError(t, err)
	defer store2.Close()

	loaded, err := store2.LoadBuild("proj-1", build.CMakePath)
	require.NoError(t, err)
	assertSameBuild(t, build, loaded)
}

func TestStore_ProjectScoped(t *testing.T) {
	store, _ := newTestStore(t)
	a := makeTestBuild("/shared/CMakeLists.txt")
	b := makeTestBuild("/shared/CMakeLists.txt")
	b.BuildDir = "/tmp/project-b"

	require.NoError(t, store.SaveBuild("proj-A", a))
	require.NoError(t, store.SaveBuild("proj-B", b))

	gotA, err := store.LoadBuild("proj-A", a.CMakePath)
	require.NoError(t, err)
	gotB, err := store.LoadBuild("proj-B", b.CMakePath)
	require.NoError(t, err)
	assert.Equal(t, a.BuildDir, gotA.BuildDir)
	assert.Equal(t, "/tmp/project-b", gotB.BuildDir)

	require.NoError(t, store.DeleteProject("proj-A"))
	gotA, err = store.LoadBuild("proj-A", a.CMakePath)
	require.NoError(t, err)
	assert.Nil(t, gotA)

	gotB, err = store.LoadBuild("proj-B", b.CMakePath)
	require.NoError(t, err)
	assert.NotNil(t, gotB, "deleting A must not touch B")
}

func TestStore_DeleteProjectIdempotent(t *testing.T) {
	store, _ := newTestStore(t)
	require.NoError(t, store.DeleteProject("never-existed"))
	require.NoError(t, store.DeleteProject("never-existed"))
}

func TestStore_ReadsLegacyJSON(t *testing.T) {
	store, _ := newTestStore(t)
	build := makeTestBuild("/src/CMakeLists.txt")
	data, err := json.Marshal(build)
	require.NoError(t, err)

	require.NoError(t, store.db.Update(func(tx *bolt.Tx) error {
		proj, err := tx.CreateBucketIfNotExists([]byte("p"))
		if err != nil {
			return err
		}
		bb, err := proj.CreateBucketIfNotExists(bucketBuilds)
		if err != nil {
			return err
		}
		return bb.Put([]byte(build.CMakePath), data)
	}))

	loaded, err := store.LoadBuild("p", build.CMakePath)
	require.NoError(t, err)
	assertSameBuild(t, build, loaded)
}

func TestStore_CorruptRecord(t *testing.T) {
	store, _ := newTestStore(t)
	require.NoError(t, store.db.Update(func(tx *bolt.Tx) error {
		proj, err := tx.CreateBucketIfNotExists([]byte("p"))
		if err != nil {
			return err
		}
		bb, err := proj.CreateBucketIfNotExists(bucketBuilds)
		if err != nil {
			return err
		}
		return bb.Put([]byte("/bad/CMakeLists.txt"), []byte{0x7f, 0x00})
	}))

	_, err := store.LoadBuild("p", "/bad/CMakeLists.txt")
	assert.Error(t, err)
	_, err = store.ListBuilds("p")
	assert.Error(t, err)
}

func TestStore_ConcurrentWrites(t *testing.T) {
	store, _ := newTestStore(t)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			b := makeTestBuild(fmt.Sprintf("/src/%02d/CMakeLists.txt", i))
			assert.NoError(t, store.SaveBuild("p", b))
		}(i)
	}
	wg.Wait()

	all, err := store.ListBuilds("p")
	require.NoError(t, err)
	assert.Len(t, all, 16)
}

func TestStore_DatabaseFileCreated(t *testing.T) {
	_, path := newTestStore(t)
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.False(t, info.IsDir())
}

// =============================================================================
// Encoding
// =============================================================================

func TestEncoding_Roundtrip(t *testing.T) {
	build := makeTestBuild("/src/CMakeLists.txt")
	data, err := encodeBuild(build)
	require.NoError(t, err)
	assert.Equal(t, formatV1, data[0])

	got, err := decodeBuild(data)
	require.NoError(t, err)
	assertSameBuild(t, build, got)
}

func TestEncoding_Errors(t *testing.T) {
	_, err := decodeBuild(nil)
	assert.Error(t, err)
	_, err = decodeBuild([]byte{formatV1, 0xff, 0xff})
	assert.Error(t, err)
	_, err = decodeBuild([]byte("{not json"))
	assert.Error(t, err)
}
