package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sells-group/dataload/internal/loader"
	"github.com/sells-group/dataload/internal/model"
)

var loadCmd = &cobra.Command{
	Use:   "load",
	Short: "Load a dataset from a URL",
	Long: `Fetch a dataset, decode it by file extension, and report row counts after each filter.

Examples:
  dataload load --url https://example.com/wells.csv --filter "TDS_mgL>=1000"
  dataload load --url https://example.com/ions.zip --zipped --inner-path Major_Ions.csv
  dataload load --url https://example.com/springs.zip --zipped --inner-path data/springs.shp --opt source_crs=EPSG:4269`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		url, _ := cmd.Flags().GetString("url")
		zipped, _ := cmd.Flags().GetBool("zipped")
		innerPath, _ := cmd.Flags().GetString("inner-path")
		optPairs, _ := cmd.Flags().GetStringArray("opt")
		filters, _ := cmd.Flags().GetStringArray("filter")
		latField, _ := cmd.Flags().GetString("lat-field")
		longField, _ := cmd.Flags().GetString("long-field")

		opts, err := model.ParseOptions(optPairs)
		if err != nil {
			return err
		}

		j := job{
			Resource: loader.Resource{
				URL:       url,
				Zipped:    zipped,
				InnerPath: innerPath,
				Options:   opts,
			},
			Filters:   filters,
			LatField:  latField,
			LongField: longField,
			HeadRows:  cfg.Output.HeadRows,
			HeadPath:  cfg.Output.HeadPath,
		}
		if cmd.Flags().Changed("head") {
			j.HeadRows, _ = cmd.Flags().GetInt("head")
		}
		if cmd.Flags().Changed("head-out") {
			j.HeadPath, _ = cmd.Flags().GetString("head-out")
		}

		l, err := newLoader(cfg.Loader)
		if err != nil {
			return err
		}
		return runJob(ctx, os.Stdout, l, j)
	},
}

func init() {
	loadCmd.Flags().String("url", "", "dataset URL (required)")
	loadCmd.Flags().Bool("zipped", false, "the URL serves a zip archive")
	loadCmd.Flags().String("inner-path", "", "path of the file to load inside the archive")
	loadCmd.Flags().StringArray("opt", nil, "decoder option as key=value (repeatable)")
	loadCmd.Flags().StringArray("filter", nil, `filter expression "column OP number" (repeatable, applied in order)`)
	loadCmd.Flags().Int("head", 5, "rows to preview and write to the head file")
	loadCmd.Flags().String("head-out", "data_head.csv", "CSV file for the first rows (empty to skip)")
	loadCmd.Flags().String("lat-field", "", "latitude column; converts a table to points")
	loadCmd.Flags().String("long-field", "", "longitude column; converts a table to points")
	_ = loadCmd.MarkFlagRequired("url")
	loadCmd.MarkFlagsRequiredTogether("lat-field", "long-field")
	rootCmd.AddCommand(loadCmd)
}
