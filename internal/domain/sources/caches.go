package sources

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/corey/ccflags/internal/domain/buildfile"
	"github.com/corey/ccflags/internal/domain/flag"
)

// DefaultMaxDatabases bounds the number of parsed compilation databases kept
// in memory at once.
const DefaultMaxDatabases = 64

// Caches bundles every piece of state shared between flag sources. It is
// built once at startup and injected into each source, so tests can hand a
// fresh bundle to every case.
type Caches struct {
	Tracker    *buildfile.Tracker
	Databases  *DatabaseCache
	CMake      *CMakeCache
	FlagsFiles *LinesCache
	Properties *LinesCache
}

// NewCaches creates an empty cache bundle. maxDatabases <= 0 uses
// DefaultMaxDatabases.
func NewCaches(maxDatabases int) *Caches {
	return &Caches{
		Tracker:    buildfile.NewTracker(),
		Databases:  NewDatabaseCache(maxDatabases),
		CMake:      NewCMakeCache(),
		FlagsFiles: NewLinesCache(),
		Properties: NewLinesCache(),
	}
}

// Forget drops everything cached about one build file so the next lookup
// re-reads it.
func (c *Caches) Forget(path string) {
	c.Tracker.Forget(path)
	c.Databases.Remove(path)
	c.CMake.ForgetCMake(path)
	c.FlagsFiles.Remove(path)
	c.Properties.Remove(path)
}

// =============================================================================
// Compilation databases
// =============================================================================

// Database is a parsed compile_commands.json. Keys are canonical file paths.
type Database struct {
	Path string

	mu      sync.RWMutex
	entries map[string][]flag.Flag
	order   []string // keys in database order, aliases excluded
	all     []flag.Flag
}

func newDatabase(path string) *Database {
	return &Database{Path: path, entries: make(map[string][]flag.Flag)}
}

// Lookup returns the flags recorded for a canonical file path.
func (d *Database) Lookup(file string) ([]flag.Flag, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	f, ok := d.entries[file]
	return f, ok
}

// All returns the union of all per-file flags in first-seen order.
func (d *Database) All() []flag.Flag {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.all
}

// Keys returns the file paths in the order they appear in the database.
// Files added by header-to-source aliasing are not included.
func (d *Database) Keys() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]string(nil), d.order...)
}

func (d *Database) add(file string, flags []flag.Flag) {
	if _, ok := d.entries[file]; !ok {
		d.order = append(d.order, file)
	}
	d.entries[file] = flags
}

// Len returns the number of file entries.
func (d *Database) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.entries)
}

// alias makes file share the entry of related.
func (d *Database) alias(file, related string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if f, ok := d.entries[related]; ok {
		d.entries[file] = f
	}
}

// DatabaseCache holds parsed databases keyed by canonical db path, and the
// db path each queried file was last resolved through.
type DatabaseCache struct {
	dbs   *lru.Cache[string, *Database]
	group singleflight.Group

	mu     sync.Mutex
	origin map[string]string // file -> db path
}

// NewDatabaseCache creates a cache holding at most size databases.
func NewDatabaseCache(size int) *DatabaseCache {
	if size <= 0 {
		size = DefaultMaxDatabases
	}
	c, _ := lru.New[string, *Database](size)
	return &DatabaseCache{dbs: c, origin: make(map[string]string)}
}

// Get returns the cached database for a db path.
func (c *DatabaseCache) Get(path string) (*Database, bool) {
	return c.dbs.Get(path)
}

// Remove drops a database.
func (c *DatabaseCache) Remove(path string) {
	c.dbs.Remove(path)
}

// Len returns the number of cached databases.
func (c *DatabaseCache) Len() int {
	return c.dbs.Len()
}

func (c *DatabaseCache) setOrigin(file, dbPath string) {
	c.mu.Lock()
	c.origin[file] = dbPath
	c.mu.Unlock()
}

// OriginOf returns the db path file was last resolved through.
func (c *DatabaseCache) OriginOf(file string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.origin[file]
}

// =============================================================================
// CMake
// =============================================================================

// CMakeCache maps queried files to the CMakeLists.txt that served them, and
// each CMakeLists.txt to its generated compile_commands.json.
type CMakeCache struct {
	mu      sync.Mutex
	fileTo  map[string]string     // file -> CMakeLists.txt
	builds  map[string]cmakeBuild // CMakeLists.txt -> generated db
	failed  map[string]int64      // CMakeLists.txt -> mtime (UnixNano) of failed run
	running singleflight.Group
}

type cmakeBuild struct {
	dbPath string
	mtime  int64 // CMakeLists.txt mtime the db was generated from
}

// NewCMakeCache creates an empty CMake cache.
func NewCMakeCache() *CMakeCache {
	return &CMakeCache{
		fileTo: make(map[string]string),
		builds: make(map[string]cmakeBuild),
		failed: make(map[string]int64),
	}
}

// CMakeFor returns the CMakeLists.txt that last served file.
func (c *CMakeCache) CMakeFor(file string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.fileTo[file]
	return p, ok
}

// DBFor returns the generated database of a CMakeLists.txt and the
// CMakeLists.txt mtime it was generated from.
func (c *CMakeCache) DBFor(cmakePath string) (string, int64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.builds[cmakePath]
	return b.dbPath, b.mtime, ok
}

func (c *CMakeCache) remember(file, cmakePath, dbPath string, mtime int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if file != "" {
		c.fileTo[file] = cmakePath
	}
	c.builds[cmakePath] = cmakeBuild{dbPath: dbPath, mtime: mtime}
	delete(c.failed, cmakePath)
}

func (c *CMakeCache) rememberFile(file, cmakePath string) {
	if file == "" {
		return
	}
	c.mu.Lock()
	c.fileTo[file] = cmakePath
	c.mu.Unlock()
}

func (c *CMakeCache) markFailed(cmakePath string, mtime int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.builds, cmakePath)
	c.failed[cmakePath] = mtime
}

// failedAt returns the mtime of the CMakeLists.txt when cmake last failed.
func (c *CMakeCache) failedAt(cmakePath string) (int64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, ok := c.failed[cmakePath]
	return m, ok
}

// ForgetCMake drops everything known about a CMakeLists.txt.
func (c *CMakeCache) ForgetCMake(cmakePath string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.builds, cmakePath)
	delete(c.failed, cmakePath)
	for f, p := range c.fileTo {
		if p == cmakePath {
			delete(c.fileTo, f)
		}
	}
}

// =============================================================================
// Line-oriented flag files
// =============================================================================

// LinesCache stores flags parsed from small flag files, keyed by file path.
type LinesCache struct {
	mu    sync.Mutex
	flags map[string][]flag.Flag
}

// NewLinesCache creates an empty cache.
func NewLinesCache() *LinesCache {
	return &LinesCache{flags: make(map[string][]flag.Flag)}
}

// Get returns the cached flags for path.
func (c *LinesCache) Get(path string) ([]flag.Flag, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	f, ok := c.flags[path]
	return f, ok
}

// Put stores flags for path.
func (c *LinesCache) Put(path string, flags []flag.Flag) {
	c.mu.Lock()
	c.flags[path] = flags
	c.mu.Unlock()
}

// Remove drops path.
func (c *LinesCache) Remove(path string) {
	c.mu.Lock()
	delete(c.flags, path)
	c.mu.Unlock()
}
