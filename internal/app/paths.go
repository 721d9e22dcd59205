package app

import (
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
)

// Paths holds all resolved filesystem paths for the .ccflags/ project directory.
// All fields are pre-computed strings.
type Paths struct {
	Root     string // .ccflags/
	DB       string // .ccflags/ccflags.db
	Settings string // .ccflags/settings.yaml

	LogDir    string // .ccflags/log/
	DaemonLog string // .ccflags/log/daemon.log

	RunDir   string // .ccflags/run/
	PIDFile  string // .ccflags/run/daemon.pid
	PortFile string // .ccflags/run/http.port

	GrammarsDir string // .ccflags/grammars/

	// TempDir holds generated cmake build folders and engine scratch files.
	// It lives outside the project: <os temp>/ccflags/<hash of root>.
	TempDir string
}

// NewPaths constructs all resolved paths from a project root directory.
func NewPaths(projectRoot string) *Paths {
	root := filepath.Join(projectRoot, ".ccflags")
	h := sha256.Sum256([]byte(projectRoot))
	return &Paths{
		Root:     root,
		DB:       filepath.Join(root, "ccflags.db"),
		Settings: filepath.Join(root, "settings.yaml"),

		LogDir:    filepath.Join(root, "log"),
		DaemonLog: filepath.Join(root, "log", "daemon.log"),

		RunDir:   filepath.Join(root, "run"),
		PIDFile:  filepath.Join(root, "run", "daemon.pid"),
		PortFile: filepath.Join(root, "run", "http.port"),

		GrammarsDir: filepath.Join(root, "grammars"),

		TempDir: filepath.Join(os.TempDir(), "ccflags", fmt.Sprintf("%x", h[:6])),
	}
}

// EnsureDirs creates all subdirectories under .ccflags/ and the temp dir. Idempotent.
func (p *Paths) EnsureDirs() error {
	dirs := []string{
		p.Root,
		p.LogDir,
		p.RunDir,
		p.GrammarsDir,
		p.TempDir,
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0755); err != nil {
			return err
		}
	}
	return nil
}

// CleanEphemeral removes ephemeral runtime files (PID file and port file).
// Called on clean daemon shutdown.
func (p *Paths) CleanEphemeral() {
	os.Remove(p.PIDFile)
	os.Remove(p.PortFile)
}
