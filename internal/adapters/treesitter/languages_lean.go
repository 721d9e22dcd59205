//go:build lean

package treesitter

// This file is included only when building with -tags lean. Grammars are
// loaded from .so/.dylib files via the DynamicLoader (purego).
//
// Build with: go build -tags lean ./cmd/ccflags/

// registerBuiltinLanguages is a no-op in lean builds.
func (d *Detector) registerBuiltinLanguages() {}
