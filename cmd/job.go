package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/dataload/internal/config"
	"github.com/sells-group/dataload/internal/crs"
	"github.com/sells-group/dataload/internal/fetcher"
	"github.com/sells-group/dataload/internal/filter"
	"github.com/sells-group/dataload/internal/loader"
	"github.com/sells-group/dataload/internal/model"
	"github.com/sells-group/dataload/internal/raster"
)

// job is one load-filter-report pass, built from flags or a named dataset.
type job struct {
	Resource  loader.Resource
	Filters   []string
	LatField  string
	LongField string
	HeadRows  int
	HeadPath  string
}

// jobFromDataset builds a job from a configured dataset.
func jobFromDataset(ds config.DatasetConfig, out config.OutputConfig) job {
	return job{
		Resource: loader.Resource{
			URL:       ds.URL,
			Zipped:    ds.Zipped,
			InnerPath: ds.InnerPath,
			Options:   model.Options(ds.Options),
		},
		Filters:   ds.Filters,
		LatField:  ds.LatField,
		LongField: ds.LongField,
		HeadRows:  out.HeadRows,
		HeadPath:  out.HeadPath,
	}
}

// newLoader wires an HTTP fetcher and the configured target CRS.
func newLoader(c config.LoaderConfig) (*loader.Loader, error) {
	target, err := crs.Parse(c.TargetCRS)
	if err != nil {
		return nil, err
	}
	f := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		UserAgent: c.UserAgent,
		Timeout:   time.Duration(c.TimeoutSecs) * time.Second,
	})
	return loader.New(f, loader.Config{TargetCRS: target, ScratchDir: c.ScratchDir}), nil
}

// runJob loads the resource, applies the filters and writes the report to out.
func runJob(ctx context.Context, out io.Writer, l *loader.Loader, j job) error {
	preds, err := filter.ParseAll(j.Filters)
	if err != nil {
		return err
	}

	ds, err := l.Load(ctx, j.Resource)
	if err != nil {
		return err
	}

	if j.LatField != "" || j.LongField != "" {
		t, ok := ds.(*model.Table)
		if !ok {
			return eris.Errorf("dataload: lat/long conversion needs a tabular dataset, got %s", ds.Kind())
		}
		if ds, err = l.PointsFromLatLong(t, j.LatField, j.LongField); err != nil {
			return err
		}
	}

	if h, ok := ds.(*raster.Handle); ok {
		if len(preds) > 0 {
			return eris.New("dataload: filters apply to tabular and vector datasets only")
		}
		formatRaster(out, h)
		return nil
	}

	head, err := writeHead(ds, j.HeadRows, j.HeadPath)
	if err != nil {
		return err
	}
	formatPreview(out, head)
	if j.HeadPath != "" && j.HeadRows > 0 {
		_, _ = fmt.Fprintf(out, "\nWrote first %d rows to %s\n", min(j.HeadRows, tableOf(ds).Len()), j.HeadPath)
	}

	res, err := filter.Apply(tableOf(ds), preds)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintln(out)
	formatStages(out, res)

	zap.L().Info("dataload: job complete",
		zap.String("url", j.Resource.URL),
		zap.Int("rows", res.Total),
		zap.Int("kept", len(res.Kept)),
	)
	return nil
}

func tableOf(ds model.Dataset) *model.Table {
	switch v := ds.(type) {
	case *model.Table:
		return v
	case *model.GeoTable:
		return &v.Table
	}
	return nil
}

// csvWriter is satisfied by Table and GeoTable.
type csvWriter interface {
	WriteCSV(w io.Writer) error
}

// writeHead writes the first n rows to path (skipped when path is empty or
// n is zero) and returns them for the preview.
func writeHead(ds model.Dataset, n int, path string) (*model.Table, error) {
	var head csvWriter
	var preview *model.Table
	switch v := ds.(type) {
	case *model.Table:
		t := v.Head(n)
		head, preview = t, t
	case *model.GeoTable:
		g := v.Head(n)
		head, preview = g, &g.Table
	default:
		return nil, eris.Errorf("dataload: no preview for %s datasets", ds.Kind())
	}
	if path == "" || n == 0 {
		return preview, nil
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, eris.Wrap(err, "dataload: create head file")
	}
	if err := head.WriteCSV(f); err != nil {
		_ = f.Close()
		return nil, err
	}
	if err := f.Close(); err != nil {
		return nil, eris.Wrap(err, "dataload: close head file")
	}
	return preview, nil
}

// formatPreview writes the rows of t as an aligned table.
func formatPreview(out io.Writer, t *model.Table) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, strings.Join(t.Columns, "\t"))
	for _, row := range t.Rows {
		_, _ = fmt.Fprintln(w, strings.Join(row, "\t"))
	}
	_ = w.Flush()
}

// formatStages writes the row counts before and after each filter.
func formatStages(out io.Writer, res filter.Result) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "STAGE\tFILTER\tBEFORE\tAFTER\tEXCLUDED")
	_, _ = fmt.Fprintf(w, "0\t(none)\t%d\t%d\t0\n", res.Total, res.Total)
	for i, s := range res.Stages {
		_, _ = fmt.Fprintf(w, "%d\t%s\t%d\t%d\t%d\n", i+1, s.Predicate, s.Before, s.After, s.Excluded)
	}
	_ = w.Flush()
}

func formatRaster(out io.Writer, h *raster.Handle) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Size:\t%d x %d\n", h.Width, h.Height)
	_, _ = fmt.Fprintf(w, "Bands:\t%d\n", h.Bands)
	_, _ = fmt.Fprintf(w, "Bits per sample:\t%d\n", h.BitsPerSample)
	crsName := h.CRS
	if crsName == "" {
		crsName = "(undeclared)"
	}
	_, _ = fmt.Fprintf(w, "CRS:\t%s\n", crsName)
	if minX, minY, maxX, maxY, ok := h.Bounds(); ok {
		_, _ = fmt.Fprintf(w, "Bounds:\t%.3f, %.3f, %.3f, %.3f\n", minX, minY, maxX, maxY)
	}
	if h.NoData != nil {
		_, _ = fmt.Fprintf(w, "NoData:\t%g\n", *h.NoData)
	}
	_ = w.Flush()
}
