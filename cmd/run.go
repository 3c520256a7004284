package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/dataload/internal/config"
)

var runCmd = &cobra.Command{
	Use:   "run <dataset>",
	Short: "Load and filter a dataset named in config",
	Long:  "Loads a dataset from the datasets section of config.yaml and applies its filters. The built-in major_ions dataset reproduces the USGS major ion screening.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		ds, ok := cfg.Datasets[args[0]]
		if !ok {
			return eris.Errorf("run: unknown dataset %q (configured: %s)", args[0], strings.Join(cfg.DatasetNames(), ", "))
		}

		l, err := newLoader(cfg.Loader)
		if err != nil {
			return err
		}
		return runJob(ctx, os.Stdout, l, jobFromDataset(ds, cfg.Output))
	},
}

var datasetsCmd = &cobra.Command{
	Use:   "datasets",
	Short: "List datasets named in config",
	RunE: func(cmd *cobra.Command, _ []string) error {
		formatDatasets(os.Stdout, cfg)
		return nil
	},
}

// formatDatasets writes one line per configured dataset to out.
func formatDatasets(out io.Writer, c *config.Config) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "NAME\tZIPPED\tINNER_PATH\tFILTERS\tURL")
	for _, name := range c.DatasetNames() {
		ds := c.Datasets[name]
		inner := ds.InnerPath
		if inner == "" {
			inner = "-"
		}
		_, _ = fmt.Fprintf(w, "%s\t%t\t%s\t%d\t%s\n", name, ds.Zipped, inner, len(ds.Filters), ds.URL)
	}
	_ = w.Flush()
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(datasetsCmd)
}
