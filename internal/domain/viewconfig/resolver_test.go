package viewconfig

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corey/ccflags/internal/domain/buildfile"
	"github.com/corey/ccflags/internal/domain/flag"
	"github.com/corey/ccflags/internal/domain/settings"
	"github.com/corey/ccflags/internal/ports"
)

func joined(prefix, body string) flag.Flag {
	return flag.NewWithSeparator(prefix, body, "")
}

func binVariant() ports.EngineVariant {
	return newFakeFactory().Variant(ports.EngineOptions{})
}

// =============================================================================
// Merge
// =============================================================================

func TestMerge_SourceStdWins(t *testing.T) {
	lang := []flag.Flag{flag.Plain("-std=c++11")}
	source := []flag.Flag{flag.Plain("-std=c++17"), joined("-I", "/inc")}

	got, warnings := Merge(nil, lang, nil, source, settings.PreferSource)
	assert.Empty(t, warnings)
	assert.Equal(t, []flag.Flag{flag.Plain("-std=c++17"), joined("-I", "/inc")}, got)
}

func TestMerge_PreferLang(t *testing.T) {
	lang := []flag.Flag{flag.Plain("-std=c++11")}
	source := []flag.Flag{flag.Plain("-std=c++17"), joined("-I", "/inc")}

	got, _ := Merge(nil, lang, nil, source, settings.PreferLang)
	assert.Equal(t, []flag.Flag{flag.Plain("-std=c++11"), joined("-I", "/inc")}, got)
}

func TestMerge_KeepBoth(t *testing.T) {
	lang := []flag.Flag{flag.Plain("-std=c++11")}
	source := []flag.Flag{flag.Plain("-std=c++17")}

	got, _ := Merge(nil, lang, nil, source, settings.KeepBoth)
	assert.Equal(t, []flag.Flag{flag.Plain("-std=c++11"), flag.Plain("-std=c++17")}, got)
}

func TestMerge_TooManyStdWarns(t *testing.T) {
	lang := []flag.Flag{flag.Plain("-std=c11"), flag.Plain("-std=c99")}
	source := []flag.Flag{flag.Plain("-std=c++14"), flag.Plain("-std=c++17")}

	got, warnings := Merge(nil, lang, nil, source, settings.PreferSource)
	require.Len(t, warnings, 2)
	assert.Contains(t, warnings[0], "lang_flags")
	assert.Contains(t, warnings[0], "-std=c11")
	assert.Contains(t, warnings[1], "source generated")
	// Only the first lang std is dropped.
	assert.Equal(t, []flag.Flag{
		flag.Plain("-std=c99"),
		flag.Plain("-std=c++14"),
		flag.Plain("-std=c++17"),
	}, got)
}

func TestMerge_OrderAndDedup(t *testing.T) {
	a, b, c, d := flag.Plain("-c"), flag.Plain("-DA"), flag.Plain("-DB"), joined("-I", "/x")
	got, _ := Merge([]flag.Flag{a}, []flag.Flag{b, d}, []flag.Flag{c, b}, []flag.Flag{d, a}, settings.PreferSource)
	assert.Equal(t, []flag.Flag{a, b, d, c}, got)
}

func TestMerge_DoesNotMutateInputs(t *testing.T) {
	lang := []flag.Flag{flag.Plain("-std=c++11"), flag.Plain("-DL")}
	source := []flag.Flag{flag.Plain("-std=c++17")}
	Merge(nil, lang, nil, source, settings.PreferSource)
	assert.Equal(t, []flag.Flag{flag.Plain("-std=c++11"), flag.Plain("-DL")}, lang)
}

// =============================================================================
// Resolve
// =============================================================================

func TestResolve_FlagsFileProject(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, ".clang_complete"), "-Iinc\n-std=c++17\n-DFOO\n")
	file := filepath.Join(root, "src", "main.cpp")
	writeFile(t, file, "int main() {}\n")

	s := testSettings(root)
	s.FlagsSources = []settings.SourceEntry{{File: "compile_commands.json"}, {File: ".clang_complete"}}
	s.CommonFlags = []string{"-DCOMMON"}

	r := NewResolver(ResolverConfig{})
	res := r.Resolve(context.Background(), View{Path: file}, s, binVariant())

	assert.Equal(t, ports.EngineBinary, res.Engine)
	assert.Equal(t, settings.LangCPP, res.Lang)
	assert.Equal(t, ".clang_complete", res.Source)
	assert.Equal(t, []flag.Flag{
		flag.Plain("-c"),
		flag.Plain("-fsyntax-only"),
		flag.New("-x", "c++"),
		flag.Plain("-DCOMMON"),
		joined("-I", filepath.Join(root, "inc")),
		flag.Plain("-std=c++17"),
		flag.Plain("-DFOO"),
	}, res.Flags)
	assert.Equal(t, []string{filepath.Join(root, "inc")}, res.IncludeFolders)
	assert.Empty(t, res.Warnings)
}

func TestResolve_NoSourceKeepsLangAndCommon(t *testing.T) {
	root := t.TempDir()
	file := filepath.Join(root, "a.c")
	writeFile(t, file, "")

	s := testSettings(root)
	r := NewResolver(ResolverConfig{})
	res := r.Resolve(context.Background(), View{Path: file}, s, binVariant())

	assert.Equal(t, settings.LangC, res.Lang)
	assert.Equal(t, "", res.Source)
	assert.Equal(t, []flag.Flag{
		flag.Plain("-c"),
		flag.Plain("-fsyntax-only"),
		flag.New("-x", "c"),
		flag.Plain("-std=c11"),
	}, res.Flags)
}

func TestResolve_SearchInOverridesScope(t *testing.T) {
	root := t.TempDir()
	elsewhere := filepath.Join(root, "config")
	writeFile(t, filepath.Join(elsewhere, ".clang_complete"), "-DELSEWHERE\n")
	file := filepath.Join(root, "src", "main.cpp")
	writeFile(t, file, "")

	s := testSettings(filepath.Join(root, "src"))
	s.FlagsSources = []settings.SourceEntry{{File: ".clang_complete", SearchIn: elsewhere}}

	res := NewResolver(ResolverConfig{}).Resolve(context.Background(), View{Path: file}, s, binVariant())
	assert.Contains(t, res.Flags, flag.Plain("-DELSEWHERE"))
}

func TestResolve_EmptySourceFallsThrough(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "compile_commands.json"), "[]")
	writeFile(t, filepath.Join(root, ".clang_complete"), "-DFROM_FILE\n")
	file := filepath.Join(root, "main.cpp")
	writeFile(t, file, "")

	s := testSettings(root)
	s.FlagsSources = []settings.SourceEntry{{File: "compile_commands.json"}, {File: ".clang_complete"}}

	res := NewResolver(ResolverConfig{}).Resolve(context.Background(), View{Path: file}, s, binVariant())
	assert.Equal(t, ".clang_complete", res.Source)
	assert.Contains(t, res.Flags, flag.Plain("-DFROM_FILE"))
}

func TestResolve_OriginOfCompilationDb(t *testing.T) {
	root := t.TempDir()
	db := filepath.Join(root, "compile_commands.json")
	writeFile(t, db, `[{"directory": "`+root+`", "arguments": ["c++", "-DDB", "-c", "main.cpp"], "file": "main.cpp"}]`)
	file := filepath.Join(root, "main.cpp")
	writeFile(t, file, "")

	s := testSettings(root)
	s.FlagsSources = []settings.SourceEntry{{File: "compile_commands.json"}}

	res := NewResolver(ResolverConfig{}).Resolve(context.Background(), View{Path: file}, s, binVariant())
	assert.Equal(t, "compile_commands.json", res.Source)
	assert.Equal(t, db, res.Origin)
}

func TestResolve_DefaultIncludesCached(t *testing.T) {
	root := t.TempDir()
	file := filepath.Join(root, "main.cpp")
	writeFile(t, file, "")
	runner := &fakeRunner{output: "clang version 17.0.6\n#include \"...\" search starts here:\n#include <...> search starts here:\n /usr/include/c++/v1\n /usr/lib/clang/17/../17/include\nEnd of search list.\n"}

	s := testSettings(root)
	s.UseDefaultIncludes = true
	r := NewResolver(ResolverConfig{Runner: runner, TempDir: t.TempDir()})

	res := r.Resolve(context.Background(), View{Path: file}, s, binVariant())
	r.Resolve(context.Background(), View{Path: file}, s, binVariant())

	assert.Equal(t, 1, runner.count())
	assert.Contains(t, res.Flags, joined("-I", "/usr/include/c++/v1"))
	assert.Contains(t, res.Flags, joined("-I", "/usr/lib/clang/17/include"))
	assert.Equal(t, "clang++", runner.calls[0].Name)
	assert.Equal(t, []string{"-c", "temp.cc", "-v"}, runner.calls[0].Args)
}

func TestResolve_TargetCompilerBuiltins(t *testing.T) {
	root := t.TempDir()
	file := filepath.Join(root, "main.cpp")
	writeFile(t, file, "")

	s := testSettings(root)
	s.TargetCompilers[settings.LangCPP] = "arm-none-eabi-g++"
	r := NewResolver(ResolverConfig{Builtins: staticBuiltins{"-std=c++14", "-D__ARM_ARCH=7"}})

	res := r.Resolve(context.Background(), View{Path: file}, s, binVariant())
	assert.Equal(t, []flag.Flag{
		flag.Plain("-c"),
		flag.Plain("-fsyntax-only"),
		flag.New("-x", "c++"),
		flag.Plain("-std=c++14"),
		flag.Plain("-D__ARM_ARCH=7"),
	}, res.Flags)
}

func TestResolve_HintSelectsLanguage(t *testing.T) {
	root := t.TempDir()
	file := filepath.Join(root, "weird.inc")
	writeFile(t, file, "")

	res := NewResolver(ResolverConfig{}).Resolve(context.Background(), View{Path: file, Lang: "objective-c"}, testSettings(root), binVariant())
	assert.Equal(t, settings.LangObjectiveC, res.Lang)
	assert.Contains(t, res.Flags, flag.New("-x", "objective-c"))
}

type panickySource struct{}

func (panickySource) Name() string { return "boom" }
func (panickySource) Flags(context.Context, string, buildfile.SearchScope) ([]flag.Flag, bool) {
	panic("malformed")
}

func TestQuery_RecoversPanics(t *testing.T) {
	r := NewResolver(ResolverConfig{})
	flags, ok := r.query(context.Background(), panickySource{}, "/x.cpp", buildfile.NewSearchScope("/", "/"))
	assert.False(t, ok)
	assert.Nil(t, flags)
}

func TestParseDefaultIncludes(t *testing.T) {
	out := "#include <...> search starts here:\r\n /a/./b\r\n /Library/Frameworks (framework directory)\r\nEnd of search list.\r\n"
	assert.Equal(t, []string{"-I/a/b", "-I/Library/Frameworks"}, ParseDefaultIncludes(out))
	assert.Empty(t, ParseDefaultIncludes("no includes here"))
}
