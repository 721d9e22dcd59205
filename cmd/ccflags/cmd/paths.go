package cmd

import (
	"path/filepath"
)

// absPath makes a command-line path absolute against the working directory,
// so the daemon sees the same file the user named.
func absPath(p string) string {
	abs, err := filepath.Abs(p)
	if err != nil {
		return p
	}
	return abs
}
