// Package loader fetches a dataset and decodes it into a Table, GeoTable or
// raster Handle according to its file extension.
package loader

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/dataload/internal/crs"
	"github.com/sells-group/dataload/internal/fetcher"
	"github.com/sells-group/dataload/internal/format"
	"github.com/sells-group/dataload/internal/geo"
	"github.com/sells-group/dataload/internal/model"
	"github.com/sells-group/dataload/internal/raster"
)

// DefaultTargetCRS is NAD83 / Texas South Central (US survey feet).
const DefaultTargetCRS = "EPSG:2278"

// ErrMissingInnerPath is returned for a zipped resource without an inner path.
var ErrMissingInnerPath = eris.New("loader: zipped resource requires an inner path")

// UnsupportedFormatError is returned when a payload matches no decoder.
type UnsupportedFormatError struct {
	URL string
	Err error
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("loader: unable to determine the format of %s; check the URL points at a csv, txt, xls, xlsx, vector or raster file", e.URL)
}

func (e *UnsupportedFormatError) Unwrap() error { return e.Err }

// Resource describes one dataset to load.
type Resource struct {
	URL string
	// Zipped marks the payload as a zip archive; InnerPath names the member to load.
	Zipped    bool
	InnerPath string
	Options   model.Options
}

// Config holds loader settings.
type Config struct {
	// TargetCRS is the system vector output is reprojected into. The zero
	// value means DefaultTargetCRS.
	TargetCRS crs.CRS
	// ScratchDir is the parent of per-extraction directories. Empty means
	// the system temp directory.
	ScratchDir string
}

// Loader fetches and decodes resources.
type Loader struct {
	fetcher fetcher.Fetcher
	target  crs.CRS
	scratch string
}

// New creates a Loader.
func New(f fetcher.Fetcher, cfg Config) *Loader {
	target := cfg.TargetCRS
	if target.IsZero() {
		target, _ = crs.Parse(DefaultTargetCRS)
	}
	return &Loader{fetcher: f, target: target, scratch: cfg.ScratchDir}
}

// Target returns the CRS vector output is reprojected into.
func (l *Loader) Target() crs.CRS { return l.target }

// Load fetches res and decodes it.
func (l *Loader) Load(ctx context.Context, res Resource) (model.Dataset, error) {
	if res.Zipped && res.InnerPath == "" {
		return nil, ErrMissingInnerPath
	}

	log := zap.L().With(zap.String("component", "loader"))
	log.Info("loading dataset",
		zap.String("url", res.URL),
		zap.Bool("zipped", res.Zipped),
		zap.String("inner_path", res.InnerPath),
	)

	data, err := l.fetcher.Fetch(ctx, res.URL)
	if err != nil {
		return nil, err
	}

	var ds model.Dataset
	if res.Zipped {
		ds, err = l.LoadZipped(ctx, data, res)
	} else {
		ds, err = l.LoadPayload(ctx, data, res)
	}
	if err != nil {
		return nil, err
	}
	log.Info("dataset loaded", zap.String("kind", string(ds.Kind())))
	return ds, nil
}

// LoadPayload decodes an unzipped payload. The format comes from the URL path.
func (l *Loader) LoadPayload(ctx context.Context, data []byte, res Resource) (model.Dataset, error) {
	name := urlPath(res.URL)
	f := format.Detect(name)

	switch f {
	case format.Vector:
		if geo.NeedsFile(name) {
			return l.spillAndLoad(ctx, data, path.Base(name), res)
		}
		t, err := geo.Read(data, name, res.Options)
		if err != nil {
			return nil, err
		}
		return dataset(geo.Reproject(t, l.target))
	case format.Raster:
		return dataset(raster.Open(data))
	}
	return l.decodeTabular(f, data, res)
}

// LoadZipped decodes the member res.InnerPath of a zip archive. Tabular
// members are parsed from memory; vector and raster members, and tabular
// members the decoder rejects, are loaded from an extracted copy.
func (l *Loader) LoadZipped(ctx context.Context, data []byte, res Resource) (model.Dataset, error) {
	if res.InnerPath == "" {
		return nil, ErrMissingInnerPath
	}
	zr, err := fetcher.OpenZIP(data)
	if err != nil {
		return nil, err
	}
	if _, err := fetcher.FindZIPMember(zr, res.InnerPath); err != nil {
		return nil, err
	}

	f := format.Detect(res.InnerPath)
	if f.NeedsExtraction() {
		return l.extractAndLoad(ctx, zr, res)
	}

	member, err := fetcher.ReadZIPMember(zr, res.InnerPath)
	if err != nil {
		return nil, err
	}
	ds, err := l.decodeTabular(f, member, res)
	var pe *fetcher.ParseError
	if errors.As(err, &pe) || isUnsupported(err) {
		zap.L().Warn("loader: direct parse of archive member failed, extracting",
			zap.String("inner_path", res.InnerPath),
			zap.Error(err),
		)
		return l.extractAndLoad(ctx, zr, res)
	}
	return ds, err
}

// PointsFromLatLong converts latitude/longitude columns to points in the
// target CRS.
func (l *Loader) PointsFromLatLong(t *model.Table, latField, longField string) (*model.GeoTable, error) {
	return geo.PointsFromLatLong(t, latField, longField, l.target)
}

// decodeTabular parses in-memory tabular data. Unknown formats are tried
// as CSV.
func (l *Loader) decodeTabular(f format.Format, data []byte, res Resource) (model.Dataset, error) {
	switch f {
	case format.XLS:
		return dataset(fetcher.ReadXLS(data, res.Options))
	case format.XLSX:
		return dataset(fetcher.ReadXLSX(data, res.Options))
	case format.CSV, format.TXT:
		return dataset(fetcher.ReadCSV(bytes.NewReader(data), res.Options))
	}
	t, err := fetcher.ReadCSV(bytes.NewReader(data), res.Options)
	if err != nil {
		return nil, &UnsupportedFormatError{URL: res.URL, Err: err}
	}
	return t, nil
}

// loadFile decodes a file on disk.
func (l *Loader) loadFile(p string, res Resource) (model.Dataset, error) {
	switch format.Detect(p) {
	case format.Vector:
		t, err := geo.ReadFile(p, res.Options)
		if err != nil {
			return nil, err
		}
		return dataset(geo.Reproject(t, l.target))
	case format.Raster:
		return dataset(raster.OpenFile(p))
	case format.XLS:
		return dataset(fetcher.ReadXLSFile(p, res.Options))
	case format.XLSX:
		return dataset(fetcher.ReadXLSXFile(p, res.Options))
	}

	data, err := os.ReadFile(p)
	if err != nil {
		return nil, eris.Wrapf(err, "loader: read %s", filepath.Base(p))
	}
	return l.decodeTabular(format.Detect(p), data, res)
}

// dataset keeps a failed decode from returning a typed nil Dataset.
func dataset[T model.Dataset](v T, err error) (model.Dataset, error) {
	if err != nil {
		return nil, err
	}
	return v, nil
}

func isUnsupported(err error) bool {
	var ue *UnsupportedFormatError
	return errors.As(err, &ue)
}

// urlPath returns the path component of raw, without query or fragment.
func urlPath(raw string) string {
	if u, err := url.Parse(raw); err == nil && u.Path != "" {
		return u.Path
	}
	if i := strings.IndexAny(raw, "?#"); i >= 0 {
		return raw[:i]
	}
	return raw
}
