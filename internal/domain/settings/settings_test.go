package settings

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Defaults and validation
// =============================================================================

func TestDefault_IsValid(t *testing.T) {
	s := Default()
	require.NoError(t, s.Validate())
	assert.Equal(t, 30*time.Minute, s.MaxAge())
	assert.Equal(t, 30*time.Second, s.Reaper())
	assert.Equal(t, PreferSource, s.StdConflictPolicy)
}

func TestValidate_Errors(t *testing.T) {
	cases := map[string]func(*Settings){
		"missing file":    func(s *Settings) { s.FlagsSources = []SourceEntry{{SearchIn: "/x"}} },
		"unknown source":  func(s *Settings) { s.FlagsSources = []SourceEntry{{File: "Makefile"}} },
		"missing lang":    func(s *Settings) { delete(s.LangFlags, LangObjectiveC) },
		"unknown lang":    func(s *Settings) { s.LangFlags["RUST"] = nil },
		"bad cache age":   func(s *Settings) { s.MaxCacheAge = "30 minutes" },
		"bad reaper":      func(s *Settings) { s.ReaperPeriod = "often" },
		"bad std policy":  func(s *Settings) { s.StdConflictPolicy = "newest" },
		"bad ignore glob": func(s *Settings) { s.IgnoreList = []string{"[a-"} },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			s := Default()
			mutate(&s)
			assert.ErrorIs(t, s.Validate(), ErrInvalid)
		})
	}
}

func TestNormalize_LowercasedKeys(t *testing.T) {
	s := Settings{
		LangFlags: map[Lang][]string{
			"c":             {"-std=c99"},
			"cpp":           {"-std=c++20"},
			"objective_c":   nil,
			"objective-c++": nil,
		},
	}
	s.Normalize()
	assert.Equal(t, []string{"-std=c99"}, s.LangFlags[LangC])
	assert.Equal(t, []string{"-std=c++20"}, s.LangFlags[LangCPP])
	assert.Contains(t, s.LangFlags, LangObjectiveC)
	assert.Contains(t, s.LangFlags, LangObjectiveCPP)
	assert.Equal(t, "clang++", s.ClangBinary)
	assert.Equal(t, "00:30:00", s.MaxCacheAge)
	assert.Len(t, s.TargetCompilers, 4)
}

func TestSecondsFromString(t *testing.T) {
	n, err := SecondsFromString("01:02:03")
	require.NoError(t, err)
	assert.Equal(t, 3723, n)

	n, err = SecondsFromString("00:00:02")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	for _, bad := range []string{"", "10", "1:2", "a:b:c", "00:-1:00"} {
		_, err := SecondsFromString(bad)
		assert.Error(t, err, bad)
	}
}

func TestWorkerCount(t *testing.T) {
	assert.Equal(t, 3, Settings{Workers: 3}.WorkerCount())
	assert.Positive(t, Settings{}.WorkerCount())
}

// =============================================================================
// Wildcards
// =============================================================================

func TestExpand(t *testing.T) {
	project := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(project, "deps", "a"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(project, "deps", "b"), 0o755))
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	s := Default()
	s.CommonFlags = []string{"-I${project_base_path}/src", "-I/usr/lib/clang/${clang_version}/include", "-I~/inc"}
	s.FlagsSources = []SourceEntry{{
		File:        "CMakeLists.txt",
		SearchIn:    "${project_base_path}/build",
		PrefixPaths: []string{"deps/*"},
		Flags:       []string{"-DNAME=${project_name}"},
	}}
	s.ClangBinary = "~/bin/clang++"

	out := s.Expand(Wildcards{ProjectPath: project, ProjectName: "demo", ClangVersion: "17.0.6"})
	assert.Equal(t, []string{
		"-I" + project + "/src",
		"-I/usr/lib/clang/17.0.6/include",
		"-I~/inc",
	}, out.CommonFlags)
	assert.Equal(t, filepath.Join(project, "build"), out.FlagsSources[0].SearchIn)
	assert.Equal(t, []string{filepath.Join(project, "deps", "a"), filepath.Join(project, "deps", "b")}, out.FlagsSources[0].PrefixPaths)
	assert.Equal(t, []string{"-DNAME=demo"}, out.FlagsSources[0].Flags)
	assert.Equal(t, filepath.Join(home, "bin", "clang++"), out.ClangBinary)
	assert.Equal(t, project, out.ProjectFolder)
	assert.Equal(t, "17.0.6", out.ClangVersion)

	// The receiver is untouched.
	assert.Equal(t, "${project_base_path}/build", s.FlagsSources[0].SearchIn)
}

// =============================================================================
// Ignore list
// =============================================================================

func TestIsIgnored(t *testing.T) {
	s := Settings{IgnoreList: []string{"/usr/*", "*/third_party/*", "*.pb.[ch]"}}
	assert.True(t, s.IsIgnored("/usr/include/stdio.h"))
	assert.True(t, s.IsIgnored("/home/u/p/third_party/x/y.cpp"))
	assert.True(t, s.IsIgnored("/p/msg.pb.h"))
	assert.False(t, s.IsIgnored("/p/msg.pb.cc"))
	assert.False(t, s.IsIgnored("/home/u/p/main.cpp"))
}

func TestIsIgnored_ClassesAndSingleChar(t *testing.T) {
	s := Settings{IgnoreList: []string{"/gen/v?/*", "*/[!a-m]*.c"}}
	assert.True(t, s.IsIgnored("/gen/v1/deep/a.cpp"))
	assert.False(t, s.IsIgnored("/gen/v12/a.cpp"))
	assert.True(t, s.IsIgnored("/lib/zeta.c"))
	assert.False(t, s.IsIgnored("/lib/beta.c"))
}

// =============================================================================
// Languages
// =============================================================================

type fakeDetector struct {
	lang string
	ok   bool
	seen []byte
}

func (d *fakeDetector) DetectHeader(_ string, src []byte) (string, bool) {
	d.seen = src
	return d.lang, d.ok
}

func TestParseLang(t *testing.T) {
	for in, want := range map[string]Lang{
		"C": LangC, "cpp": LangCPP, "c++": LangCPP,
		"objective-c": LangObjectiveC, "OBJECTIVE_CPP": LangObjectiveCPP,
	} {
		got, ok := ParseLang(in)
		require.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}
	_, ok := ParseLang("rust")
	assert.False(t, ok)
	assert.Equal(t, "objective-c++", LangObjectiveCPP.Name())
}

func TestLangFor(t *testing.T) {
	assert.Equal(t, LangC, LangFor("/p/a.c", "", nil, nil))
	assert.Equal(t, LangObjectiveC, LangFor("/p/a.m", "", nil, nil))
	assert.Equal(t, LangObjectiveCPP, LangFor("/p/a.mm", "", nil, nil))
	assert.Equal(t, LangCPP, LangFor("/p/a.cc", "", nil, nil))
	assert.Equal(t, LangC, LangFor("/p/a.cpp", "c", nil, nil), "hint wins")
	assert.Equal(t, LangCPP, LangFor("/p/a.h", "", nil, nil))
}

func TestLangFor_HeaderUsesDetector(t *testing.T) {
	det := &fakeDetector{lang: "c", ok: true}
	assert.Equal(t, LangC, LangFor("/p/a.h", "", []byte("int x;"), det))
	assert.Equal(t, []byte("int x;"), det.seen)

	header := filepath.Join(t.TempDir(), "b.h")
	require.NoError(t, os.WriteFile(header, []byte("class X {};"), 0o644))
	det = &fakeDetector{lang: "c++", ok: true}
	assert.Equal(t, LangCPP, LangFor(header, "", nil, det))
	assert.Equal(t, []byte("class X {};"), det.seen)

	det = &fakeDetector{ok: false}
	assert.Equal(t, LangCPP, LangFor("/p/c.h", "", []byte("?"), det))
}
