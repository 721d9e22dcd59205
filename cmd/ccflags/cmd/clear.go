package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var clearCmd = &cobra.Command{
	Use:   "clear <file>...",
	Short: "Drop the cached configuration of files",
	Long:  "Makes the daemon forget the flags and engine of each file, so the next request resolves them again.",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runClear,
}

func runClear(cmd *cobra.Command, args []string) error {
	root := projectRoot()
	client := daemonClient(root)
	if client == nil {
		// Nothing is cached outside a daemon.
		fmt.Println("⚡ daemon is not running, nothing to clear")
		return nil
	}
	for _, f := range args {
		res, err := client.Clear(absPath(f))
		if err != nil {
			return err
		}
		if res.Cleared {
			fmt.Printf("%s✓ cleared%s %s\n", colorGreen, colorReset, f)
		} else {
			fmt.Printf("%s- not cached%s %s\n", colorGray, colorReset, f)
		}
	}
	return nil
}
