// ccflags resolves C/C++ compiler flags for files in a project and serves
// them, with clang completions, to editors.
package main

import (
	"os"

	"github.com/corey/ccflags/cmd/ccflags/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
