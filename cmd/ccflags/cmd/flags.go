package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/corey/ccflags/internal/adapters/socket"
)

var (
	flagsJSON bool
	flagsLang string
)

var flagsCmd = &cobra.Command{
	Use:   "flags <file>...",
	Short: "Print the compiler flags of files",
	Long:  "Resolves the flags the completion engine would use for each file. Goes through the daemon when one is running, otherwise resolves in-process.",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runFlags,
}

func init() {
	flagsCmd.Flags().BoolVar(&flagsJSON, "json", false, "print JSON")
	flagsCmd.Flags().StringVar(&flagsLang, "lang", "", "language hint (c, c++, objective-c, objective-c++)")
}

func runFlags(cmd *cobra.Command, args []string) error {
	root := projectRoot()
	results, err := resolveFlags(cmd.Context(), root, args)
	if err != nil {
		return err
	}
	if flagsJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if len(results) == 1 {
			return enc.Encode(results[0])
		}
		return enc.Encode(results)
	}
	for i := range results {
		fmt.Print(formatFlags(&results[i]))
	}
	return nil
}

func resolveFlags(ctx context.Context, root string, files []string) ([]socket.FlagsResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if client := daemonClient(root); client != nil {
		out := make([]socket.FlagsResult, 0, len(files))
		for _, f := range files {
			r, err := client.Flags(socket.ViewParams{File: absPath(f), Lang: flagsLang})
			if err != nil {
				return nil, fmt.Errorf("%s: %w", f, err)
			}
			out = append(out, *r)
		}
		return out, nil
	}

	a, err := openApp(root)
	if err != nil {
		return nil, err
	}
	defer a.Close()
	return a.ResolveAll(ctx, files, flagsLang)
}
