package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/corey/ccflags/internal/domain/buildfile"
	"github.com/corey/ccflags/internal/domain/flag"
)

// Editor project property files understood by Properties.
const (
	CCppPropertiesFile = "c_cpp_properties.json" // VS Code
	CppPropertiesFile  = "CppProperties.json"    // Visual Studio
)

// PropertiesConfig configures a Properties source.
type PropertiesConfig struct {
	Caches *Caches
	// FileName is CCppPropertiesFile or CppPropertiesFile.
	FileName string
	Logger   *slog.Logger
}

// Properties reads include paths and defines from an editor project file
// ({"configurations": [{"name", "includePath", "defines", "compilerArgs"}]}).
// The configuration named after the host platform is preferred, otherwise
// the first one is used.
type Properties struct {
	caches *Caches
	name   string
	log    *slog.Logger
}

// NewProperties creates a properties source.
func NewProperties(cfg PropertiesConfig) *Properties {
	if cfg.Caches == nil {
		cfg.Caches = NewCaches(0)
	}
	if cfg.FileName == "" {
		cfg.FileName = CCppPropertiesFile
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Properties{
		caches: cfg.Caches,
		name:   cfg.FileName,
		log:    cfg.Logger.With("source", "properties", "file", cfg.FileName),
	}
}

// Name returns the properties file name.
func (p *Properties) Name() string { return p.name }

// Flags returns flags from the nearest properties file.
func (p *Properties) Flags(_ context.Context, file string, scope buildfile.SearchScope) ([]flag.Flag, bool) {
	if !scope.Valid() {
		scope = buildfile.NewSearchScope(filepath.Dir(file), "")
	}
	rec := p.search(scope)
	if rec == nil {
		return nil, false
	}
	if cached, ok := p.caches.Properties.Get(rec.FullPath); ok && p.caches.Tracker.Unchanged(rec.FullPath) {
		return cached, true
	}
	flags, err := p.parse(rec)
	if err != nil {
		p.log.Error("cannot parse properties", "path", rec.FullPath, "err", err)
		p.caches.Properties.Remove(rec.FullPath)
		return nil, false
	}
	p.caches.Properties.Put(rec.FullPath, flags)
	p.caches.Tracker.Touch(rec.FullPath)
	return flags, true
}

// search finds the properties file. c_cpp_properties.json normally lives in
// a .vscode folder, which is tried first at every level.
func (p *Properties) search(scope buildfile.SearchScope) *buildfile.Record {
	names := []string{p.name}
	if p.name == CCppPropertiesFile {
		names = []string{filepath.Join(".vscode", p.name), p.name}
	}
	for _, name := range names {
		rec, err := buildfile.Search(name, scope)
		if err != nil {
			p.log.Warn("search failed", "scope", scope.String(), "err", err)
			continue
		}
		if rec != nil {
			return rec
		}
	}
	return nil
}

type propertiesFile struct {
	Configurations []propertiesConfig `json:"configurations"`
}

type propertiesConfig struct {
	Name         string   `json:"name"`
	IncludePath  []string `json:"includePath"`
	Defines      []string `json:"defines"`
	CompilerArgs []string `json:"compilerArgs"`
}

func (p *Properties) parse(rec *buildfile.Record) ([]flag.Flag, error) {
	data, err := os.ReadFile(rec.FullPath)
	if err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}
	var pf propertiesFile
	if err := json.Unmarshal(data, &pf); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if len(pf.Configurations) == 0 {
		return nil, fmt.Errorf("no configurations")
	}
	cfg := pickConfiguration(pf.Configurations, platformName())

	workspace := rec.Folder
	if filepath.Base(workspace) == ".vscode" {
		workspace = filepath.Dir(workspace)
	}
	vars := map[string]string{
		"workspaceFolder": workspace,
		"workspaceRoot":   workspace,
		"projectRoot":     workspace,
	}

	var args []string
	for _, inc := range cfg.IncludePath {
		inc = strings.TrimSuffix(strings.TrimSuffix(inc, "/**"), `\**`)
		args = append(args, "-I"+flag.ExpandVars(inc, vars))
	}
	for _, d := range cfg.Defines {
		args = append(args, "-D"+d)
	}
	args = append(args, cfg.CompilerArgs...)
	return flag.TokenizeWithVars(args, workspace, vars), nil
}

func pickConfiguration(cfgs []propertiesConfig, platform string) propertiesConfig {
	for _, c := range cfgs {
		if strings.EqualFold(c.Name, platform) {
			return c
		}
	}
	return cfgs[0]
}

func platformName() string {
	switch runtime.GOOS {
	case "darwin":
		return "Mac"
	case "windows":
		return "Win32"
	default:
		return "Linux"
	}
}
