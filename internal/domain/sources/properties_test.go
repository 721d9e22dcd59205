package sources

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corey/ccflags/internal/domain/flag"
)

func TestProperties_VSCode(t *testing.T) {
	root := t.TempDir()
	writeJSON(t, filepath.Join(root, ".vscode", CCppPropertiesFile), map[string]any{
		"configurations": []map[string]any{
			{"name": "Other", "includePath": []string{"/wrong"}},
			{
				"name":         platformName(),
				"includePath":  []string{"${workspaceFolder}/include/**", "rel"},
				"defines":      []string{"FOO=1", "BAR"},
				"compilerArgs": []string{"-Wall"},
			},
		},
	})
	file := filepath.Join(root, "src", "main.cpp")
	writeFile(t, file, "")

	src := NewProperties(PropertiesConfig{})
	flags, ok := src.Flags(context.Background(), file, scopeIn(root, filepath.Dir(file)))
	require.True(t, ok)
	assert.Equal(t, []flag.Flag{
		joined("-I", filepath.Join(root, "include")),
		joined("-I", filepath.Join(root, "rel")),
		flag.Plain("-DFOO=1"),
		flag.Plain("-DBAR"),
		flag.Plain("-Wall"),
	}, flags)
}

func TestProperties_VisualStudioFirstConfiguration(t *testing.T) {
	root := t.TempDir()
	writeJSON(t, filepath.Join(root, CppPropertiesFile), map[string]any{
		"configurations": []map[string]any{
			{"name": "x64-Debug", "includePath": []string{"${projectRoot}/inc"}, "defines": []string{"_DEBUG"}},
		},
	})

	src := NewProperties(PropertiesConfig{FileName: CppPropertiesFile})
	assert.Equal(t, CppPropertiesFile, src.Name())
	flags, ok := src.Flags(context.Background(), filepath.Join(root, "a.cpp"), scopeIn(root, root))
	require.True(t, ok)
	assert.Equal(t, []flag.Flag{
		joined("-I", filepath.Join(root, "inc")),
		flag.Plain("-D_DEBUG"),
	}, flags)
}

func TestProperties_NoConfigurations(t *testing.T) {
	root := t.TempDir()
	writeJSON(t, filepath.Join(root, CppPropertiesFile), map[string]any{"configurations": []any{}})
	src := NewProperties(PropertiesConfig{FileName: CppPropertiesFile})
	_, ok := src.Flags(context.Background(), filepath.Join(root, "a.cpp"), scopeIn(root, root))
	assert.False(t, ok)
}

func TestPickConfiguration(t *testing.T) {
	cfgs := []propertiesConfig{{Name: "Linux"}, {Name: "Mac"}, {Name: "Win32"}}
	assert.Equal(t, "Mac", pickConfiguration(cfgs, "mac").Name)
	assert.Equal(t, "Linux", pickConfiguration(cfgs, "Haiku").Name)
}
