package cmd

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/corey/ccflags/internal/adapters/socket"
)

var completeLang string

var completeCmd = &cobra.Command{
	Use:   "complete <file> <row> <col>",
	Short: "List clang completions at a position",
	Long:  "Asks the completion engine for candidates at row:col (1-based) of the file as saved on disk.",
	Args:  cobra.ExactArgs(3),
	RunE:  runComplete,
}

func init() {
	completeCmd.Flags().StringVar(&completeLang, "lang", "", "language hint (c, c++, objective-c, objective-c++)")
}

func runComplete(cmd *cobra.Command, args []string) error {
	row, err := strconv.Atoi(args[1])
	if err != nil || row < 1 {
		return fmt.Errorf("invalid row %q", args[1])
	}
	col, err := strconv.Atoi(args[2])
	if err != nil || col < 1 {
		return fmt.Errorf("invalid col %q", args[2])
	}
	root := projectRoot()
	p := socket.ViewParams{File: absPath(args[0]), Lang: completeLang, Row: row, Col: col}

	var res *socket.CompleteResult
	if client := daemonClient(root); client != nil {
		res, err = client.Complete(p)
		if err != nil {
			return err
		}
	} else {
		a, err := openApp(root)
		if err != nil {
			return err
		}
		defer a.Close()
		r, err := a.Complete(context.Background(), p)
		if err != nil {
			return err
		}
		res = &r
	}

	if res.Count == 0 {
		fmt.Printf("%sno completions%s\n", colorGray, colorReset)
		return nil
	}
	for _, c := range res.Completions {
		fmt.Printf("%s%s%s  %s\n", colorCyan, c.Hint, colorReset, c.Snippet)
	}
	return nil
}
