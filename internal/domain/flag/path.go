package flag

import (
	"os"
	"path/filepath"
	"strings"
)

// Canonical returns an absolute, normalised form of p. A leading "~" is
// replaced by the home directory and relative paths are joined to folder.
// Canonical is idempotent. An empty path stays empty.
func Canonical(p, folder string) string {
	if p == "" {
		return ""
	}
	p = expandHome(p)
	if !filepath.IsAbs(p) {
		p = filepath.Join(folder, p)
	}
	return filepath.Clean(p)
}

// ExpandAll substitutes ${var} and $var from vars (falling back to the
// environment), canonicalises the result against folder and expands glob
// patterns. It always returns at least one path: the canonical path itself
// when the glob has no matches.
func ExpandAll(p string, vars map[string]string, folder string) []string {
	expanded := ExpandVars(p, vars)
	expanded = Canonical(expanded, folder)
	if expanded == "" {
		return nil
	}
	if strings.ContainsAny(expanded, "*?[") {
		if matches, err := filepath.Glob(expanded); err == nil && len(matches) > 0 {
			return matches
		}
	}
	return []string{expanded}
}

// ExpandVars substitutes ${name} and $name. Unknown names are looked up in
// the environment; names missing from both are left untouched.
func ExpandVars(s string, vars map[string]string) string {
	if !strings.Contains(s, "$") {
		return s
	}
	return os.Expand(s, func(name string) string {
		if v, ok := vars[name]; ok {
			return v
		}
		if v, ok := os.LookupEnv(name); ok {
			return v
		}
		return "${" + name + "}"
	})
}

func expandHome(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") && !strings.HasPrefix(p, `~\`) {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, p[1:])
}
