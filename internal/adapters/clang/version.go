package clang

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/corey/ccflags/internal/ports"
)

var versionNumber = regexp.MustCompile(`\d+\.\d+\.*\d*`)

// appleToLLVM maps AppleClang major.minor to the LLVM release it tracks.
var appleToLLVM = map[string]string{
	"4.2":  "3.2",
	"5.0":  "3.3",
	"5.1":  "3.4",
	"6.0":  "3.5",
	"6.1":  "3.6",
	"7.0":  "3.7",
	"7.3":  "3.8",
	"8.0":  "3.8",
	"8.1":  "3.9",
	"8.2":  "3.9",
	"9.0":  "4.0",
	"9.1":  "4.0",
	"10.0": "6.0",
}

// Version runs `<binary> -v` and returns the LLVM version, e.g. "17.0.6".
func Version(ctx context.Context, runner ports.Runner, binary string) (string, error) {
	res, err := runner.Run(ctx, ports.Command{Name: binary, Args: []string{"-v"}})
	if err != nil {
		return "", fmt.Errorf("clang version: %w", err)
	}
	return ParseVersion(string(res.Output))
}

// ParseVersion extracts the version from `clang -v` output. AppleClang
// versions are translated through a fixed table.
func ParseVersion(output string) (string, error) {
	v := versionNumber.FindString(output)
	if v == "" {
		return "", fmt.Errorf("no clang version in output")
	}
	if !strings.Contains(output, "Apple") {
		return v, nil
	}
	parts := strings.Split(v, ".")
	if len(parts) > 2 {
		parts = parts[:len(parts)-1]
	}
	apple := strings.Join(parts, ".")
	llvm, ok := appleToLLVM[apple]
	if !ok {
		return "", fmt.Errorf("unsupported AppleClang version %s", apple)
	}
	return llvm, nil
}
