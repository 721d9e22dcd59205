package cmd

import (
	"context"
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var cmakeCmd = &cobra.Command{
	Use:   "cmake [dir]",
	Short: "Configure a CMake project and generate compile_commands.json",
	Long:  "Runs cmake for the CMakeLists.txt in dir (default: project root) into a build folder outside the project, and records the result so later lookups reuse it.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runCMake,
}

func runCMake(cmd *cobra.Command, args []string) error {
	root := projectRoot()
	dir := root
	if len(args) == 1 {
		dir = absPath(args[0])
	}

	a, err := openApp(root)
	if err != nil {
		return err
	}
	defer a.Close()

	spinner := pterm.DefaultSpinner.WithStyle(pterm.NewStyle(pterm.FgCyan)).
		WithSequence("⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏").
		WithDelay(100).WithRemoveWhenDone(true)
	spinnerInstance, _ := spinner.Start("Running cmake...")

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	build, err := a.Configure(ctx, dir)
	spinnerInstance.Stop()
	fmt.Print("\r")
	if build != nil && !build.OK {
		fmt.Printf("%s✗ cmake failed%s (exit %d)\n", colorYellow, colorReset, build.ExitCode)
		if build.Output != "" {
			fmt.Println(build.Output)
		}
	}
	if err != nil {
		return err
	}
	fmt.Printf("%s✓ configured%s %s\n", colorGreen, colorReset, build.CMakePath)
	fmt.Printf("  build:    %s\n", build.BuildDir)
	fmt.Printf("  database: %s\n", build.DBPath)
	return nil
}
