package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sells-group/dataload/internal/format"
)

var detectCmd = &cobra.Command{
	Use:   "detect <path>...",
	Short: "Print the format inferred from each path's extension",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		formatDetect(os.Stdout, args)
		return nil
	},
}

func formatDetect(out io.Writer, paths []string) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "PATH\tFORMAT")
	for _, p := range paths {
		_, _ = fmt.Fprintf(w, "%s\t%s\n", p, format.Detect(p))
	}
	_ = w.Flush()
}

func init() {
	rootCmd.AddCommand(detectCmd)
}
