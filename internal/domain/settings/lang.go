package settings

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/corey/ccflags/internal/ports"
)

// Lang is a language tag as used in lang_flags and target_compilers.
type Lang string

const (
	LangC            Lang = "C"
	LangCPP          Lang = "CPP"
	LangObjectiveC   Lang = "OBJECTIVE_C"
	LangObjectiveCPP Lang = "OBJECTIVE_CPP"
)

// Langs lists every tag in a stable order.
var Langs = []Lang{LangC, LangCPP, LangObjectiveC, LangObjectiveCPP}

var langNames = map[Lang]string{
	LangC:            "c",
	LangCPP:          "c++",
	LangObjectiveC:   "objective-c",
	LangObjectiveCPP: "objective-c++",
}

// Name is the compiler's name for the language, as passed to -x.
func (l Lang) Name() string { return langNames[l] }

// Valid reports whether l is one of Langs.
func (l Lang) Valid() bool {
	_, ok := langNames[l]
	return ok
}

// ParseLang accepts a tag ("CPP", "cpp") or a compiler name ("c++").
// Config keys arrive lowercased, so matching is case-insensitive.
func ParseLang(s string) (Lang, bool) {
	s = strings.TrimSpace(s)
	for _, l := range Langs {
		if strings.EqualFold(s, string(l)) || strings.EqualFold(s, l.Name()) {
			return l, true
		}
	}
	return "", false
}

// LangFor picks the language of a file. An editor hint wins; otherwise the
// extension decides. Headers (.h) are ambiguous: when a detector is given it
// inspects the file content (src, or the file on disk when src is nil).
// Everything else is C++.
func LangFor(path, hint string, src []byte, detector ports.LangDetector) Lang {
	if l, ok := ParseLang(hint); ok {
		return l
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".c":
		return LangC
	case ".m":
		return LangObjectiveC
	case ".mm":
		return LangObjectiveCPP
	case ".h":
		if detector == nil {
			return LangCPP
		}
		if src == nil {
			data, err := os.ReadFile(path)
			if err != nil {
				return LangCPP
			}
			src = data
		}
		if name, ok := detector.DetectHeader(path, src); ok {
			if l, ok := ParseLang(name); ok {
				return l
			}
		}
	}
	return LangCPP
}
