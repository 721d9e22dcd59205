// Package bbolt implements ports.BuildStore using bbolt (embedded B+ tree).
// Each project gets its own top-level bucket with a "builds" sub-bucket keyed
// by CMakeLists.txt path. Writes are transactional, so a crash mid-write
// cannot corrupt previously committed records.
package bbolt

import (
	"errors"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/corey/ccflags/internal/ports"
)

var bucketBuilds = []byte("builds")

// Store implements ports.BuildStore backed by bbolt.
type Store struct {
	db *bolt.DB
}

// NewStore opens (or creates) a bbolt database at the given path.
func NewStore(path string) (*Store, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("bbolt open: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying bbolt database.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveBuild persists the outcome of one cmake run.
func (s *Store) SaveBuild(projectID string, build *ports.CMakeBuild) error {
	if build == nil {
		return fmt.Errorf("nil build")
	}
	if build.CMakePath == "" {
		return fmt.Errorf("build has no cmake path")
	}
	data, err := encodeBuild(build)
	if err != nil {
		return fmt.Errorf("encode build: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		proj, err := tx.CreateBucketIfNotExists([]byte(projectID))
		if err != nil {
			return err
		}
		bb, err := proj.CreateBucketIfNotExists(bucketBuilds)
		if err != nil {
			return err
		}
		return bb.Put([]byte(build.CMakePath), data)
	})
}

// LoadBuild retrieves the record for a CMakeLists.txt path.
// Returns nil, nil if no record exists.
func (s *Store) LoadBuild(projectID, cmakePath string) (*ports.CMakeBuild, error) {
	var data []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		bb := builds(tx, projectID)
		if bb == nil {
			return nil
		}
		// Copy bytes out of the transaction (bbolt slices are only valid within tx)
		if v := bb.Get([]byte(cmakePath)); v != nil {
			data = make([]byte, len(v))
			copy(data, v)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, nil
	}
	build, err := decodeBuild(data)
	if err != nil {
		return nil, fmt.Errorf("decode build %q: %w", cmakePath, err)
	}
	return build, nil
}

// ListBuilds returns every record of a project ordered by CMake path.
func (s *Store) ListBuilds(projectID string) ([]*ports.CMakeBuild, error) {
	var out []*ports.CMakeBuild
	err := s.db.View(func(tx *bolt.Tx) error {
		bb := builds(tx, projectID)
		if bb == nil {
			return nil
		}
		// bbolt iterates keys in byte order.
		return bb.ForEach(func(k, v []byte) error {
			build, err := decodeBuild(v)
			if err != nil {
				return fmt.Errorf("decode build %q: %w", k, err)
			}
			out = append(out, build)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteBuild removes one record. Idempotent.
func (s *Store) DeleteBuild(projectID, cmakePath string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		bb := builds(tx, projectID)
		if bb == nil {
			return nil
		}
		return bb.Delete([]byte(cmakePath))
	})
}

// DeleteProject removes all records for a project.
// Idempotent: deleting a nonexistent project is not an error.
func (s *Store) DeleteProject(projectID string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket([]byte(projectID)); errors.Is(err, bolt.ErrBucketNotFound) {
			return nil // idempotent
		} else {
			return err
		}
	})
}

func builds(tx *bolt.Tx, projectID string) *bolt.Bucket {
	proj := tx.Bucket([]byte(projectID))
	if proj == nil {
		return nil
	}
	return proj.Bucket(bucketBuilds)
}
