package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/corey/ccflags/internal/adapters/socket"
)

var (
	headersLang   string
	headersPrefix string
)

var headersCmd = &cobra.Command{
	Use:   "headers <file>",
	Short: "List headers includable from a file",
	Long:  "Walks the include folders resolved for the file and prints every header, relative to its folder.",
	Args:  cobra.ExactArgs(1),
	RunE:  runHeaders,
}

func init() {
	headersCmd.Flags().StringVar(&headersLang, "lang", "", "language hint (c, c++, objective-c, objective-c++)")
	headersCmd.Flags().StringVar(&headersPrefix, "prefix", "", "only headers whose include path starts with this")
}

func runHeaders(cmd *cobra.Command, args []string) error {
	root := projectRoot()
	p := socket.ViewParams{File: absPath(args[0]), Lang: headersLang, Prefix: headersPrefix}

	var res *socket.HeadersResult
	if client := daemonClient(root); client != nil {
		r, err := client.Headers(p)
		if err != nil {
			return err
		}
		res = r
	} else {
		a, err := openApp(root)
		if err != nil {
			return err
		}
		defer a.Close()
		r, err := a.Headers(context.Background(), p)
		if err != nil {
			return err
		}
		res = &r
	}

	if res.Count == 0 {
		fmt.Printf("%sno headers%s\n", colorGray, colorReset)
		return nil
	}
	for _, h := range res.Headers {
		fmt.Printf("%s  %s%s%s\n", h.Include, colorGray, h.Folder, colorReset)
	}
	return nil
}
