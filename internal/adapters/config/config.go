// Package config loads settings.Settings from layered sources with viper:
// built-in defaults, the user file (~/.config/ccflags/settings.yaml), the
// project file (<root>/.ccflags/settings.yaml) and CCFLAGS_* environment
// variables, in increasing priority. A .env file in the project root is
// loaded into the environment first.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/corey/ccflags/internal/domain/settings"
)

// EnvPrefix prefixes every environment override (CCFLAGS_CLANG_BINARY, ...).
const EnvPrefix = "CCFLAGS"

// FileName is the settings file name in both the user and project folders.
const FileName = "settings.yaml"

// UserFile returns the per-user settings path.
func UserFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		home, _ := os.UserHomeDir()
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "ccflags", FileName)
}

// ProjectFile returns the project settings path.
func ProjectFile(root string) string {
	return filepath.Join(root, ".ccflags", FileName)
}

// Loader reads and layers the settings of one project.
type Loader struct {
	v        *viper.Viper
	root     string
	userFile string
	read     []string
}

// Option customizes a Loader.
type Option func(*Loader)

// WithUserFile overrides the user settings path ("" disables it).
func WithUserFile(path string) Option {
	return func(l *Loader) { l.userFile = path }
}

// New creates a loader for the project at root.
func New(root string, opts ...Option) *Loader {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	l := &Loader{v: v, root: root, userFile: UserFile()}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Viper exposes the underlying instance so CLI flags can be bound to keys.
func (l *Loader) Viper() *viper.Viper { return l.v }

// Files lists the settings files read by the last Load, lowest priority
// first.
func (l *Loader) Files() []string { return l.read }

// Load merges every layer and returns normalized, validated settings.
// Wildcards are not expanded; see settings.Settings.Expand.
func (l *Loader) Load() (settings.Settings, error) {
	if l.root != "" {
		if err := godotenv.Load(filepath.Join(l.root, ".env")); err != nil && !errors.Is(err, os.ErrNotExist) {
			return settings.Settings{}, fmt.Errorf("load .env: %w", err)
		}
	}

	defaults, err := yaml.Marshal(settings.Default())
	if err != nil {
		return settings.Settings{}, fmt.Errorf("encode defaults: %w", err)
	}
	if err := l.v.ReadConfig(bytes.NewReader(defaults)); err != nil {
		return settings.Settings{}, fmt.Errorf("read defaults: %w", err)
	}

	l.read = nil
	files := []string{l.userFile}
	if l.root != "" {
		files = append(files, ProjectFile(l.root))
	}
	for _, path := range files {
		if path == "" {
			continue
		}
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := l.merge(path); err != nil {
			return settings.Settings{}, err
		}
		l.read = append(l.read, path)
	}

	var s settings.Settings
	if err := l.v.Unmarshal(&s); err != nil {
		return settings.Settings{}, fmt.Errorf("decode settings: %w", err)
	}
	s.Normalize()
	if err := s.Validate(); err != nil {
		return settings.Settings{}, err
	}
	return s, nil
}

func (l *Loader) merge(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := l.v.MergeConfig(bytes.NewReader(data)); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

// Marshal renders settings as YAML.
func Marshal(s settings.Settings) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(s); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteDefault writes the built-in settings to path. An existing file is
// kept unless force is set.
func WriteDefault(path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("%s already exists", path)
	}
	data, err := Marshal(settings.Default())
	if err != nil {
		return fmt.Errorf("encode defaults: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
