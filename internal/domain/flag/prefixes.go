package flag

import (
	aho "github.com/petar-dambovaliev/aho-corasick"
)

// PathPrefixes are prefixes whose body is a filesystem path. Bodies of these
// flags are made absolute and glob-expanded during tokenization.
var PathPrefixes = []string{
	"-isystem",
	"-I",
	"-isysroot",
	"/I",
	"-msvc",
	"/msvc",
	"-B",
	"--cuda-path",
	"-fmodules-cache-path",
	"-fmodules-user-build-path",
	"-fplugin",
	"-fprebuilt-module-path",
	"-fprofile-use",
	"-F",
	"-idirafter",
	"-iframework",
	"-iquote",
	"-iwithprefix",
	"-L",
	"-objcmt-whitelist-dir-path",
	"--ptxas-path",
}

// SeparablePrefixes may take their value as the next argv entry. Generated
// from `clang -help` entries of the form "-opt <arg>".
var SeparablePrefixes = []string{
	"-arcmt-migrate-report-output",
	"-cxx-isystem",
	"-dependency-dot",
	"-dependency-file",
	"-fmodules-user-build-path",
	"-F",
	"-idirafter",
	"-iframework",
	"-imacros",
	"-include-pch",
	"-include",
	"-iprefix",
	"-iquote",
	"-isysroot",
	"-isystem",
	"-ivfsoverlay",
	"-iwithprefixbefore",
	"-iwithprefix",
	"-iwithsysroot",
	"-I",
	"-meabi",
	"-MF",
	"-mllvm",
	"-Xclang",
	"-module-dependency-dir",
	"-MQ",
	"-mthread-model",
	"-MT",
	"-o",
	"-serialize-diagnostics",
	"-working-directory",
	"-Xanalyzer",
	"-Xassembler",
	"-Xlinker",
	"-Xpreprocessor",
	"-x",
	"-z",
	"/FI",
	"/I",
	"/link",
	"/Tc",
	"/Tp",
	"/U",
}

// DefaultIncludePrefixes are the include prefixes understood by clang.
var DefaultIncludePrefixes = []string{"-isystem", "-I", "-isysroot"}

var (
	pathSet      = toSet(PathPrefixes)
	separableSet = toSet(SeparablePrefixes)
	separable    = newPrefixMatcher(SeparablePrefixes)
)

func toSet(items []string) map[string]bool {
	m := make(map[string]bool, len(items))
	for _, s := range items {
		m[s] = true
	}
	return m
}

// IsPathPrefix reports whether bodies of this prefix are paths.
func IsPathPrefix(prefix string) bool {
	return pathSet[prefix]
}

// IsSeparable reports whether prefix may take its value as the next token.
func IsSeparable(prefix string) bool {
	return separableSet[prefix]
}

// prefixMatcher finds the longest known prefix at the start of a token.
type prefixMatcher struct {
	automaton aho.AhoCorasick
	patterns  []string
}

func newPrefixMatcher(patterns []string) *prefixMatcher {
	p := make([]string, len(patterns))
	copy(p, patterns)
	builder := aho.NewAhoCorasickBuilder(aho.Opts{
		MatchKind: aho.LeftMostLongestMatch,
		DFA:       true,
	})
	return &prefixMatcher{automaton: builder.Build(p), patterns: p}
}

// longest returns the longest pattern that token starts with, or "".
func (m *prefixMatcher) longest(token string) string {
	matches := m.automaton.FindAll(token)
	if len(matches) == 0 || matches[0].Start() != 0 {
		return ""
	}
	return m.patterns[matches[0].Pattern()]
}
