package model

import (
	"encoding/csv"
	"io"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/wkt"
)

// GeometryColumn is the column name used for geometries when a GeoTable is exported.
const GeometryColumn = "geometry"

// GeoTable is a Table whose rows each carry a geometry in CRS.
// Geometries[i] belongs to Rows[i] and may be nil.
type GeoTable struct {
	Table
	Geometries []geom.T
	CRS        string
}

// Kind implements Dataset.
func (g *GeoTable) Kind() Kind { return KindGeo }

// Select returns a new GeoTable holding the given rows and their geometries.
func (g *GeoTable) Select(idx []int) *GeoTable {
	geoms := make([]geom.T, 0, len(idx))
	for _, i := range idx {
		geoms = append(geoms, g.Geometries[i])
	}
	return &GeoTable{Table: *g.Table.Select(idx), Geometries: geoms, CRS: g.CRS}
}

// Head returns the first n rows.
func (g *GeoTable) Head(n int) *GeoTable {
	return g.Select(headIndex(g.Len(), n))
}

// WriteCSV writes the attribute columns followed by a WKT geometry column.
func (g *GeoTable) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	header := append(append([]string{}, g.Columns...), GeometryColumn)
	if err := cw.Write(header); err != nil {
		return eris.Wrap(err, "geotable: write header")
	}
	for i, row := range g.Rows {
		var text string
		if i < len(g.Geometries) && g.Geometries[i] != nil {
			s, err := wkt.Marshal(g.Geometries[i])
			if err != nil {
				return eris.Wrapf(err, "geotable: encode geometry for row %d", i)
			}
			text = s
		}
		if err := cw.Write(append(append([]string{}, row...), text)); err != nil {
			return eris.Wrapf(err, "geotable: write row %d", i)
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "geotable: flush")
}
