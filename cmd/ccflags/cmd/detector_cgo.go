//go:build cgo

package cmd

import (
	"github.com/corey/ccflags/internal/adapters/treesitter"
	"github.com/corey/ccflags/internal/ports"
)

// newDetector returns a tree-sitter header detector when CGo is available.
// If root is non-empty, configures dynamic grammar loading from
// project-local and global grammar directories.
func newDetector(root string) ports.LangDetector {
	d := treesitter.NewDetector()
	if root != "" {
		d.SetGrammarPaths(treesitter.DefaultGrammarPaths(root))
	}
	return d
}
