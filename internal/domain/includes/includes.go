// Package includes lists the headers reachable from a set of include
// folders, as candidates for #include completion.
package includes

import (
	"context"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gobwas/glob"
)

// Header is one includable file. Include is the path to write between the
// angle brackets; Folder is the include folder it is relative to.
type Header struct {
	Include string `json:"include"`
	Folder  string `json:"folder"`
}

// headerName matches "foo.h", "foo.hpp", "foo.hxx" and the like. Names with
// no dot at all ("vector", "QString") are accepted separately.
var headerName = glob.MustCompile("*.h*")

// IsHeader reports whether a file name looks includable.
func IsHeader(name string) bool {
	return !strings.Contains(name, ".") || headerName.Match(name)
}

// All walks folders and returns every header whose include path starts with
// prefix. A directory that is itself one of the (longer) folders is listed
// only relative to that folder. Include paths always use forward slashes.
func All(ctx context.Context, folders []string, prefix string) ([]Header, error) {
	clean := make([]string, 0, len(folders))
	seen := make(map[string]bool, len(folders))
	for _, f := range folders {
		if f == "" {
			continue
		}
		f = filepath.Clean(f)
		if seen[f] {
			continue
		}
		seen[f] = true
		clean = append(clean, f)
	}
	sort.SliceStable(clean, func(i, j int) bool { return len(clean[i]) < len(clean[j]) })

	var out []Header
	for i, folder := range clean {
		longer := clean[i+1:]
		err := filepath.WalkDir(folder, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return nil // unreadable entries are skipped
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			if d.IsDir() {
				if path != folder && coveredBy(path, longer) {
					return filepath.SkipDir
				}
				return nil
			}
			if !IsHeader(d.Name()) {
				return nil
			}
			rel, err := filepath.Rel(folder, path)
			if err != nil {
				return nil
			}
			rel = filepath.ToSlash(rel)
			if !strings.HasPrefix(rel, prefix) {
				return nil
			}
			out = append(out, Header{Include: rel, Folder: folder})
			return nil
		})
		if err != nil {
			return out, err
		}
	}
	return out, nil
}

func coveredBy(dir string, folders []string) bool {
	for _, f := range folders {
		if dir == f {
			return true
		}
	}
	return false
}
