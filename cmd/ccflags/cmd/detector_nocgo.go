//go:build !cgo

package cmd

import "github.com/corey/ccflags/internal/ports"

// newDetector returns nil when CGo is unavailable (pure Go build).
// Ambiguous .h headers are then treated as C++.
func newDetector(_ string) ports.LangDetector {
	return nil
}
