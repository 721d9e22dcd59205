package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/corey/ccflags/internal/adapters/socket"
	"github.com/corey/ccflags/internal/app"
)

var daemonHTTPPort int

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Manage the ccflags daemon",
}

var daemonStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the daemon in the foreground",
	Long:  "Serves flags, completions and diagnostics on a Unix socket and HTTP until stopped. Logs go to .ccflags/log/daemon.log.",
	RunE:  runDaemonStart,
}

var daemonStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the daemon",
	RunE:  runDaemonStop,
}

func init() {
	daemonStartCmd.Flags().IntVar(&daemonHTTPPort, "http-port", 0, "HTTP port (default: derived from the project root)")
	daemonCmd.AddCommand(daemonStartCmd)
	daemonCmd.AddCommand(daemonStopCmd)
}

func runDaemonStart(cmd *cobra.Command, args []string) error {
	root := projectRoot()
	sockPath := socket.SocketPath(root)

	// Check if already running
	if daemonClient(root) != nil {
		fmt.Println("⚡ daemon already running")
		return nil
	}

	s, err := loadSettings(root)
	if err != nil {
		return err
	}
	paths := app.NewPaths(root)
	if err := paths.EnsureDirs(); err != nil {
		return err
	}
	logFile, err := os.OpenFile(paths.DaemonLog, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open daemon log: %w", err)
	}
	defer logFile.Close()
	logger := newLogger(logFile, s.Verbose, true)
	slog.SetDefault(logger)

	a, err := app.New(app.Config{
		ProjectRoot: root,
		Settings:    s,
		HTTPPort:    daemonHTTPPort,
		Detector:    newDetector(root),
		Logger:      logger,
	})
	if err != nil {
		return fmt.Errorf("init: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := a.Start(ctx); err != nil {
		a.Close()
		return err
	}
	if err := os.WriteFile(paths.PIDFile, []byte(strconv.Itoa(os.Getpid())), 0o644); err != nil {
		logger.Warn("cannot write pid file", "path", paths.PIDFile, "err", err)
	}

	fmt.Printf("⚡ ccflags daemon started at %s\n", sockPath)
	if a.WebServer.Port() != 0 {
		fmt.Printf("  HTTP: %s\n", a.WebServer.URL())
	}

	// Wait for a signal or a remote shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigCh:
	case <-a.Server.ShutdownCh():
	}

	fmt.Println("\n⚡ shutting down...")
	return a.Stop()
}

func runDaemonStop(cmd *cobra.Command, args []string) error {
	root := projectRoot()
	client := daemonClient(root)
	if client == nil {
		fmt.Println("⚡ daemon is not running")
		return nil
	}
	if err := client.Shutdown(); err != nil {
		return err
	}
	fmt.Println("⚡ daemon stopped")
	return nil
}
