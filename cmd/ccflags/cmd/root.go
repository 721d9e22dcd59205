package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/corey/ccflags/internal/adapters/config"
	"github.com/corey/ccflags/internal/adapters/socket"
	"github.com/corey/ccflags/internal/app"
	"github.com/corey/ccflags/internal/domain/settings"
)

var (
	rootFlag    string
	verboseFlag bool
)

var rootCmd = &cobra.Command{
	Use:           "ccflags",
	Short:         "C/C++ compile flags for editors",
	Long:          "Finds the compiler flags of C, C++ and Objective-C files from compile_commands.json, CMake, .clang_complete or editor project files, and serves them with clang completions.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// projectRoot returns the project root (--root, or cwd by default).
func projectRoot() string {
	dir := rootFlag
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		dir = wd
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	return abs
}

// Execute runs the root command.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
	}
	return err
}

func init() {
	rootCmd.PersistentFlags().StringVar(&rootFlag, "root", "", "project root (default: current directory)")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(flagsCmd)
	rootCmd.AddCommand(cmakeCmd)
	rootCmd.AddCommand(completeCmd)
	rootCmd.AddCommand(headersCmd)
	rootCmd.AddCommand(builtinsCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(daemonCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(clearCmd)
	rootCmd.AddCommand(healthCmd)
}

// newLogger builds the process logger. Text goes to stderr for commands;
// the daemon writes JSON lines to its log file.
func newLogger(w io.Writer, verbose, json bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	if json {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// loadSettings merges defaults, the user file, the project file and the
// environment. --verbose overrides the verbose key.
func loadSettings(root string) (settings.Settings, error) {
	l := config.New(root)
	if err := l.Viper().BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose")); err != nil {
		return settings.Settings{}, err
	}
	return l.Load()
}

// daemonClient returns a client when a daemon serves root, otherwise nil.
func daemonClient(root string) *socket.Client {
	client := socket.NewClient(socket.SocketPath(root))
	if !client.Ping() {
		return nil
	}
	return client
}

// openApp wires an in-process app for commands run without a daemon.
// Callers must Close it.
func openApp(root string) (*app.App, error) {
	s, err := loadSettings(root)
	if err != nil {
		return nil, err
	}
	logger := newLogger(os.Stderr, s.Verbose, false)
	slog.SetDefault(logger)
	return app.New(app.Config{
		ProjectRoot: root,
		Settings:    s,
		Detector:    newDetector(root),
		Logger:      logger,
	})
}
