// Package geo decodes vector geospatial formats into GeoTables and
// reprojects them between coordinate reference systems.
package geo

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	gojson "github.com/goccy/go-json"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/dataload/internal/crs"
	"github.com/sells-group/dataload/internal/format"
	"github.com/sells-group/dataload/internal/model"
)

// ErrUnsupportedDriver is returned for vector extensions with no decoder.
var ErrUnsupportedDriver = eris.New("geo: unsupported vector format")

// NeedsFile reports whether the vector format named by name can only be
// decoded from a path on disk.
func NeedsFile(name string) bool {
	switch format.Ext(name) {
	case ".shp", ".gpkg":
		return true
	}
	return false
}

// Read decodes an in-memory vector payload. name supplies the extension.
// The result is in the source CRS; see Reproject.
func Read(data []byte, name string, opts model.Options) (*model.GeoTable, error) {
	var (
		t   *model.GeoTable
		err error
	)
	switch format.Ext(name) {
	case ".geojson", ".json":
		t, err = decodeGeoJSON(data)
	case ".kml":
		t, err = decodeKML(data)
	case ".shp", ".gpkg":
		return nil, eris.Errorf("geo: %s must be read from a file", name)
	default:
		return nil, eris.Wrapf(ErrUnsupportedDriver, "geo: %s", name)
	}
	if err != nil {
		return nil, err
	}
	return withSourceCRS(t, opts)
}

// ReadFile decodes a vector file on disk. Shapefile sidecars (.dbf, .prj)
// are read from the same directory.
func ReadFile(path string, opts model.Options) (*model.GeoTable, error) {
	var (
		t   *model.GeoTable
		err error
	)
	switch format.Ext(path) {
	case ".shp":
		t, err = readShapefile(path)
		if err == nil && !opts.Has("source_crs") {
			t.CRS, err = prjCRS(path)
		}
	case ".gpkg":
		layer, _ := opts.String("layer")
		t, err = readGeoPackage(path, layer)
	case ".geojson", ".json", ".kml":
		data, rerr := os.ReadFile(path)
		if rerr != nil {
			return nil, eris.Wrapf(rerr, "geo: read %s", filepath.Base(path))
		}
		return Read(data, path, opts)
	default:
		return nil, eris.Wrapf(ErrUnsupportedDriver, "geo: %s", filepath.Base(path))
	}
	if err != nil {
		return nil, err
	}
	return withSourceCRS(t, opts)
}

// withSourceCRS applies the source_crs option, which wins over anything the
// file declares, and defaults undeclared data to WGS84.
func withSourceCRS(t *model.GeoTable, opts model.Options) (*model.GeoTable, error) {
	if s, ok := opts.String("source_crs"); ok && s != "" {
		c, err := crs.Parse(s)
		if err != nil {
			return nil, err
		}
		t.CRS = c.String()
	}
	if t.CRS == "" {
		zap.L().Warn("geo: source declares no CRS, assuming WGS84",
			zap.Int("features", t.Len()),
		)
		t.CRS = crs.WGS84.String()
	}
	return t, nil
}

// formatValue renders an attribute value as a table cell.
func formatValue(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case int64:
		return strconv.FormatInt(v, 10)
	case int:
		return strconv.Itoa(v)
	case bool:
		return strconv.FormatBool(v)
	case time.Time:
		return v.Format(time.RFC3339)
	default:
		b, err := gojson.Marshal(v)
		if err != nil {
			return ""
		}
		return string(b)
	}
}
