//go:build !lean

package treesitter

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify_PlainC(t *testing.T) {
	d := NewDetector()
	v := d.Classify([]byte(`
#ifndef LIST_H
#define LIST_H
struct node { int value; struct node *next; };
int list_len(const struct node *head);
#endif
`))
	assert.Equal(t, "c", v.Lang)
	assert.Empty(t, v.Features)
}

func TestClassify_ExternCGuardStaysC(t *testing.T) {
	d := NewDetector()
	v := d.Classify([]byte(`
#ifdef __cplusplus
extern "C" {
#endif
void lib_init(void);
#ifdef __cplusplus
}
#endif
`))
	assert.Equal(t, "c", v.Lang)
}

func TestClassify_Class(t *testing.T) {
	d := NewDetector()
	v := d.Classify([]byte(`
class Widget {
public:
  int size() const;
};
`))
	assert.Equal(t, "c++", v.Lang)
	assert.Contains(t, v.Features, "class_specifier")
}

func TestClassify_NamespaceAndTemplate(t *testing.T) {
	d := NewDetector()
	v := d.Classify([]byte(`
namespace util {
template <typename T> T twice(T v) { return v + v; }
}
`))
	assert.Equal(t, "c++", v.Lang)
	assert.Contains(t, v.Features, "namespace_definition")
	assert.Contains(t, v.Features, "template_declaration")
	assert.IsNonDecreasing(t, v.Features)
}

func TestClassify_Empty(t *testing.T) {
	d := NewDetector()
	assert.Equal(t, Verdict{}, d.Classify(nil))
	lang, ok := d.DetectHeader("empty.h", nil)
	assert.False(t, ok)
	assert.Empty(t, lang)
}

func TestDetectHeader(t *testing.T) {
	d := NewDetector()
	lang, ok := d.DetectHeader("vec.h", []byte("namespace v { struct P { int x; }; }\n"))
	require.True(t, ok)
	assert.Equal(t, "c++", lang)

	lang, ok = d.DetectHeader("vec.h", []byte("typedef struct { int x; } P;\n"))
	require.True(t, ok)
	assert.Equal(t, "c", lang)
}

func TestDetector_HasLanguage(t *testing.T) {
	d := NewDetector()
	assert.True(t, d.HasLanguage(LangC))
	assert.True(t, d.HasLanguage(LangCPP))
	assert.False(t, d.HasLanguage("objc"))
	assert.Nil(t, d.Loader())
}

func TestDetector_HasLanguage_WithLoader(t *testing.T) {
	dir := t.TempDir()
	f, err := os.Create(filepath.Join(dir, "objc"+LibExtension()))
	require.NoError(t, err)
	require.NoError(t, f.Close())

	d := NewDetector()
	d.SetGrammarPaths([]string{dir})
	require.NotNil(t, d.Loader())
	assert.Equal(t, []string{dir}, d.Loader().SearchPaths())
	assert.True(t, d.HasLanguage("objc"))
	assert.False(t, d.HasLanguage("nonexistent"))
}
