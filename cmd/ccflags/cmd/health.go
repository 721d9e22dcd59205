package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check daemon status",
	RunE:  runHealth,
}

func runHealth(cmd *cobra.Command, args []string) error {
	root := projectRoot()
	client := daemonClient(root)
	if client == nil {
		fmt.Println("⚡ ccflags daemon is not running")
		return nil
	}

	health, err := client.Health()
	if err != nil {
		return err
	}

	fmt.Print(formatHealth(health))
	return nil
}
