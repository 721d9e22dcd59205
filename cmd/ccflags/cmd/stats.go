package cmd

import (
	"fmt"
	"strconv"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var statsFiles bool

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show daemon cache statistics",
	RunE:  runStats,
}

func init() {
	statsCmd.Flags().BoolVar(&statsFiles, "files", false, "list cached files")
}

func runStats(cmd *cobra.Command, args []string) error {
	root := projectRoot()
	client := daemonClient(root)
	if client == nil {
		return fmt.Errorf("daemon not running. Start with: ccflags daemon start")
	}

	result, err := client.Stats()
	if err != nil {
		return err
	}

	maxAge := time.Duration(result.MaxAgeSeconds * float64(time.Second))
	data := pterm.TableData{
		{"view configs", "hits", "builds", "evictions", "clears", "max age"},
		{
			strconv.Itoa(result.Entries),
			strconv.FormatInt(result.Hits, 10),
			strconv.FormatInt(result.Builds, 10),
			strconv.FormatInt(result.Evictions, 10),
			strconv.FormatInt(result.Clears, 10),
			maxAge.String(),
		},
	}
	if err := pterm.DefaultTable.WithHasHeader().WithData(data).Render(); err != nil {
		return err
	}
	fmt.Printf("%sworkers %d │ pending %d │ running %d │ superseded %d%s\n",
		colorGray, result.Workers, result.Pending, result.Running, result.Superseded, colorReset)

	if statsFiles {
		for _, f := range result.Files {
			fmt.Println("  " + f)
		}
	}
	return nil
}
