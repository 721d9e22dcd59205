package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/corey/ccflags/internal/adapters/exec"
	"github.com/corey/ccflags/internal/domain/builtins"
)

var builtinsJSON bool

var builtinsCmd = &cobra.Command{
	Use:   "builtins <compiler> [args...]",
	Short: "Show the predefined macros and include folders of a compiler",
	Long:  "Queries a compiler (gcc, a cross compiler, clang) for the -D and -isystem flags that make clang parse code the way that compiler would.",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runBuiltins,
}

func init() {
	builtinsCmd.Flags().BoolVar(&builtinsJSON, "json", false, "print JSON")
	builtinsCmd.Flags().SetInterspersed(false)
}

func runBuiltins(cmd *cobra.Command, args []string) error {
	logger := newLogger(os.Stderr, verboseFlag, false)
	q := builtins.New(builtins.Config{Runner: exec.New(logger), Logger: logger})
	res := q.Query(context.Background(), args, "")
	if len(res.Defines) == 0 && len(res.Includes) == 0 {
		return fmt.Errorf("no built-ins reported by %s", args[0])
	}
	if builtinsJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	fmt.Printf("%s%s%s", colorBold, res.Compiler, colorReset)
	if res.Std != "" {
		fmt.Printf("  %s", res.Std)
	}
	if res.Language != "" {
		fmt.Printf("  %s", res.Language)
	}
	fmt.Printf("  %s%d defines, %d includes%s\n", colorGray, len(res.Defines), len(res.Includes), colorReset)
	for _, f := range res.Flags() {
		fmt.Println("  " + f)
	}
	return nil
}
