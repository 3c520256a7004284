package geo

import (
	"math"
	"strconv"
	"strings"

	"github.com/twpayne/go-geom"

	"github.com/sells-group/dataload/internal/crs"
	"github.com/sells-group/dataload/internal/model"
)

// PointsFromLatLong builds one WGS84 point per row from the named latitude
// and longitude columns and reprojects the result into target.
func PointsFromLatLong(t *model.Table, latField, longField string, target crs.CRS) (*model.GeoTable, error) {
	latIdx, ok := t.ColumnIndex(latField)
	if !ok {
		return nil, &FieldNotFoundError{Field: latField, Row: -1}
	}
	lonIdx, ok := t.ColumnIndex(longField)
	if !ok {
		return nil, &FieldNotFoundError{Field: longField, Row: -1}
	}

	geoms := make([]geom.T, t.Len())
	for i, row := range t.Rows {
		lat, err := coordinate(row, latIdx, latField, i)
		if err != nil {
			return nil, err
		}
		lon, err := coordinate(row, lonIdx, longField, i)
		if err != nil {
			return nil, err
		}
		geoms[i] = geom.NewPointFlat(geom.XY, []float64{lon, lat})
	}

	points := &model.GeoTable{
		Table:      *t,
		Geometries: geoms,
		CRS:        crs.WGS84.String(),
	}
	return Reproject(points, target)
}

func coordinate(row []string, idx int, field string, n int) (float64, error) {
	if idx >= len(row) {
		return 0, &FieldNotFoundError{Field: field, Row: n}
	}
	raw := strings.TrimSpace(row[idx])
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, &InvalidCoordinateError{Field: field, Value: row[idx], Row: n}
	}
	return v, nil
}
