// Package ports defines the interfaces (contracts) that adapters must implement.
// These are the boundaries of the hexagonal architecture. Domain logic depends
// only on these interfaces, never on concrete implementations.
package ports

import "time"

// BuildStore persists the index of generated CMake build directories.
// The backing store (bbolt) is project-scoped: each projectID gets its own
// namespace. Concurrent reads are safe; writes are serialized by the adapter.
//
// The store lets a restarted daemon reuse a build directory whose
// CMakeLists.txt has not changed instead of re-running cmake.
type BuildStore interface {
	// SaveBuild records the outcome of one cmake run. Overwrites any prior
	// record for the same CMakeLists.txt path.
	SaveBuild(projectID string, build *CMakeBuild) error

	// LoadBuild retrieves the record for a CMakeLists.txt path.
	// Returns nil, nil if no record exists.
	LoadBuild(projectID, cmakePath string) (*CMakeBuild, error)

	// ListBuilds returns all records for a project, ordered by CMake path.
	ListBuilds(projectID string) ([]*CMakeBuild, error)

	// DeleteBuild removes one record. Idempotent.
	DeleteBuild(projectID, cmakePath string) error

	// DeleteProject removes all records for a project.
	// Idempotent: deleting a nonexistent project is not an error.
	DeleteProject(projectID string) error
}

// CMakeBuild is the persisted outcome of configuring one CMake project.
type CMakeBuild struct {
	CMakePath  string    `json:"cmake_path"`
	BuildDir   string    `json:"build_dir"`
	DBPath     string    `json:"db_path"`          // generated compile_commands.json, "" on failure
	CMakeMtime int64     `json:"cmake_mtime"`      // UnixNano of CMakeLists.txt when configured
	OK         bool      `json:"ok"`               // compile_commands.json was produced
	Output     string    `json:"output,omitempty"` // tail of cmake output
	ExitCode   int       `json:"exit_code"`
	BuiltAt    time.Time `json:"built_at"`
}
