// Package flag models a single compiler argument and the tokenizer that turns
// raw argument lists (from compile_commands.json, flag files or settings) into
// ordered flags with absolute, glob-expanded paths.
//
// A Flag is an immutable (prefix, body) pair. "-I/usr/include" and the pair
// ["-I", "/usr/include"] both become Flag{Prefix: "-I", Body: "/usr/include"}
// and compare equal. Plain arguments such as "-Wall" have an empty prefix.
package flag

import (
	"strings"
)

// Flag is one compiler argument, optionally split into prefix and body.
// Separator only affects String(); equality ignores it.
type Flag struct {
	Prefix    string
	Body      string
	Separator string
}

// New creates a flag joined by a single space when printed.
func New(prefix, body string) Flag {
	return Flag{Prefix: prefix, Body: body, Separator: " "}
}

// NewWithSeparator creates a flag printed as prefix+sep+body.
func NewWithSeparator(prefix, body, sep string) Flag {
	return Flag{Prefix: prefix, Body: body, Separator: sep}
}

// Plain creates a prefix-less flag.
func Plain(body string) Flag {
	return New("", body)
}

// Key is the identity used for equality and deduplication.
func (f Flag) Key() string {
	if f.Prefix == "" {
		return f.Body
	}
	return f.Prefix + "\x00" + f.Body
}

// Equal reports whether two flags have the same prefix and body.
func (f Flag) Equal(other Flag) bool {
	return f.Prefix == other.Prefix && f.Body == other.Body
}

// AsList returns the flag as the argv entries it expands to.
func (f Flag) AsList() []string {
	if f.Prefix != "" {
		return []string{f.Prefix, f.Body}
	}
	return []string{f.Body}
}

// String renders the flag as it would be typed on a command line.
func (f Flag) String() string {
	if f.Prefix != "" {
		return f.Prefix + f.Separator + f.Body
	}
	return f.Body
}

// Joined renders the flag without a separator, e.g. "-I/usr/include".
func (f Flag) Joined() string {
	return f.Prefix + f.Body
}

// IsStd reports whether the flag selects a language standard (-std=...).
func (f Flag) IsStd() bool {
	return f.Prefix == "" && strings.HasPrefix(f.Body, "-std=")
}

// Strings flattens flags into an argv slice.
func Strings(flags []Flag) []string {
	out := make([]string, 0, len(flags)*2)
	for _, f := range flags {
		out = append(out, f.AsList()...)
	}
	return out
}

// Equal reports whether two flag slices are element-wise equal.
func Equal(a, b []Flag) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}

// StdIndices returns the positions of -std= flags in flags.
func StdIndices(flags []Flag) []int {
	var idx []int
	for i, f := range flags {
		if f.IsStd() {
			idx = append(idx, i)
		}
	}
	return idx
}

// IncludeFolders lists the directories named by include flags, in order.
// Both split flags (-I /x) and joined plain flags (-I/x) are recognised.
func IncludeFolders(flags []Flag, includePrefixes []string) []string {
	var folders []string
	for _, f := range flags {
		for _, prefix := range includePrefixes {
			if f.Prefix != "" && strings.HasPrefix(f.Prefix, prefix) {
				folders = append(folders, f.Body)
				break
			}
			if f.Prefix == "" && strings.HasPrefix(f.Body, prefix) {
				folders = append(folders, f.Body[len(prefix):])
				break
			}
		}
	}
	return folders
}
