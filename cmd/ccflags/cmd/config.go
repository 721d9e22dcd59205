package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/corey/ccflags/internal/adapters/config"
	"github.com/corey/ccflags/internal/adapters/socket"
	"github.com/corey/ccflags/internal/app"
)

var (
	configInitUser  bool
	configInitForce bool
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or create configuration",
	Long:  "Shows project root, DB path, socket path, settings files and daemon status. No daemon required.",
	RunE:  runConfig,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the merged settings as YAML",
	RunE:  runConfigShow,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default settings file",
	Long:  "Writes the default settings to .ccflags/settings.yaml in the project (or the user file with --user).",
	RunE:  runConfigInit,
}

func init() {
	configInitCmd.Flags().BoolVar(&configInitUser, "user", false, "write the user settings file instead of the project one")
	configInitCmd.Flags().BoolVar(&configInitForce, "force", false, "overwrite an existing file")
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
}

func runConfig(cmd *cobra.Command, args []string) error {
	root := projectRoot()
	paths := app.NewPaths(root)
	sockPath := socket.SocketPath(root)

	client := socket.NewClient(sockPath)
	daemonRunning := client.Ping()
	daemonStatus := fmt.Sprintf("%s✗ not running%s", colorYellow, colorReset)
	if daemonRunning {
		daemonStatus = fmt.Sprintf("%s✓ running%s", colorGreen, colorReset)
	}

	fmt.Printf("%s⚡ ccflags config%s\n", colorBold, colorReset)
	fmt.Printf("  Root:       %s\n", root)
	fmt.Printf("  DB:         %s\n", paths.DB)
	fmt.Printf("  Socket:     %s\n", sockPath)
	fmt.Printf("  Settings:   %s\n", config.UserFile())
	fmt.Printf("              %s\n", config.ProjectFile(root))
	fmt.Printf("  Daemon:     %s\n", daemonStatus)

	if daemonRunning {
		if portData, err := os.ReadFile(paths.PortFile); err == nil {
			fmt.Printf("  HTTP:       http://localhost:%s\n", strings.TrimSpace(string(portData)))
		}
	}
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	root := projectRoot()
	l := config.New(root)
	s, err := l.Load()
	if err != nil {
		return err
	}
	data, err := config.Marshal(s)
	if err != nil {
		return err
	}
	for _, f := range l.Files() {
		fmt.Printf("# from %s\n", f)
	}
	fmt.Print(string(data))
	return nil
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := config.ProjectFile(projectRoot())
	if configInitUser {
		path = config.UserFile()
	}
	if err := config.WriteDefault(path, configInitForce); err != nil {
		return err
	}
	fmt.Printf("%s✓ wrote%s %s\n", colorGreen, colorReset, path)
	return nil
}
