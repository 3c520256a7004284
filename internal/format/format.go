// Package format maps file extensions to the logical formats the loader understands.
package format

import (
	"path"
	"strings"
)

// Format is the logical format of a resource, derived from its file extension.
type Format string

// Recognized formats. Unknown is a valid result, not a failure.
const (
	CSV     Format = "csv"
	TXT     Format = "txt"
	XLS     Format = "xls"
	XLSX    Format = "xlsx"
	Vector  Format = "vector"
	Raster  Format = "raster"
	Unknown Format = "unknown"
)

var byExt = map[string]Format{
	".csv":     CSV,
	".txt":     TXT,
	".xls":     XLS,
	".xlsx":    XLSX,
	".shp":     Vector,
	".geojson": Vector,
	".gpkg":    Vector,
	".json":    Vector,
	".kml":     Vector,
	".tif":     Raster,
	".tiff":    Raster,
}

// Detect returns the format for the extension of p's last path element.
func Detect(p string) Format {
	if f, ok := byExt[Ext(p)]; ok {
		return f
	}
	return Unknown
}

// Ext returns the lower-cased extension (including the dot) of p's last path element.
func Ext(p string) string {
	return strings.ToLower(path.Ext(strings.ReplaceAll(p, `\`, "/")))
}

// Tabular reports whether f decodes into a plain table.
func (f Format) Tabular() bool {
	switch f {
	case CSV, TXT, XLS, XLSX:
		return true
	}
	return false
}

// NeedsExtraction reports whether f can only be decoded from a file on disk
// when it arrives inside an archive.
func (f Format) NeedsExtraction() bool {
	return f == Vector || f == Raster
}
