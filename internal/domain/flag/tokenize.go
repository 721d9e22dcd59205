package flag

import (
	"strings"
)

// FromUnparsed splits a single argv chunk against the separable prefix table.
// The longest matching prefix wins; "-include-pch=x" splits on -include-pch,
// not -include. A chunk equal to a bare prefix, or one matching no prefix,
// becomes a plain flag.
func FromUnparsed(chunk string) Flag {
	chunk = strings.TrimSpace(chunk)
	prefix := separable.longest(chunk)
	if prefix == "" || len(prefix) == len(chunk) {
		return Plain(chunk)
	}
	return NewWithSeparator(prefix, chunk[len(prefix):], "")
}

// Tokenize converts argv-style entries into flags. An entry that is exactly a
// separable prefix consumes the following entry as its body. Entries starting
// with '#' are comments. Bodies of path-bearing prefixes are expanded against
// folder (see Expand). Output order follows input order.
func Tokenize(args []string, folder string) []Flag {
	return TokenizeWithVars(args, folder, nil)
}

// TokenizeWithVars is Tokenize with ${var} substitution in path bodies.
func TokenizeWithVars(args []string, folder string, vars map[string]string) []Flag {
	var flags []Flag
	skipNext := false
	for i, entry := range args {
		if skipNext {
			skipNext = false
			continue
		}
		if strings.HasPrefix(entry, "#") {
			continue
		}
		if IsSeparable(entry) && i+1 < len(args) {
			f := New(entry, strings.TrimSpace(args[i+1]))
			flags = append(flags, Expand(f, folder, vars)...)
			skipNext = true
			continue
		}
		if strings.TrimSpace(entry) == "" {
			continue
		}
		flags = append(flags, Expand(FromUnparsed(entry), folder, vars)...)
	}
	return flags
}

// Expand returns f with its body made absolute and glob-expanded when the
// prefix is path-bearing, or f unchanged otherwise.
func Expand(f Flag, folder string, vars map[string]string) []Flag {
	if !IsPathPrefix(f.Prefix) {
		return []Flag{f}
	}
	paths := ExpandAll(f.Body, vars, folder)
	out := make([]Flag, 0, len(paths))
	for _, p := range paths {
		out = append(out, NewWithSeparator(f.Prefix, p, f.Separator))
	}
	return out
}

// Parse tokenizes a list of user-supplied flag strings such as the
// common_flags setting. Each entry is split with FromUnparsed and expanded
// against folder.
func Parse(raw []string, folder string, vars map[string]string) []Flag {
	var flags []Flag
	for _, r := range raw {
		if strings.TrimSpace(r) == "" {
			continue
		}
		flags = append(flags, Expand(FromUnparsed(r), folder, vars)...)
	}
	return flags
}
