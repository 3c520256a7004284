package geo

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/sells-group/dataload/internal/crs"
	"github.com/sells-group/dataload/internal/model"
)

// readShapefile reads a .shp and its .dbf attributes. The CRS is left
// empty; see prjCRS.
func readShapefile(path string) (*model.GeoTable, error) {
	reader, err := shp.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "geo: open shapefile %s", path)
	}
	defer func() { _ = reader.Close() }()

	fields := reader.Fields()
	columns := make([]string, len(fields))
	for i, f := range fields {
		columns[i] = strings.TrimRight(f.String(), "\x00")
	}

	var (
		rows    [][]string
		geoms   []geom.T
		skipped int
	)
	for reader.Next() {
		n, shape := reader.Shape()

		row := make([]string, len(fields))
		for i := range fields {
			row[i] = strings.TrimSpace(strings.TrimRight(reader.Attribute(i), "\x00"))
		}

		g, err := shapeToGeom(shape)
		if err != nil {
			skipped++
			zap.L().Debug("geo: unreadable shapefile geometry",
				zap.Int("record", n),
				zap.Error(err),
			)
		}
		rows = append(rows, row)
		geoms = append(geoms, g)
	}
	if err := reader.Err(); err != nil {
		return nil, eris.Wrapf(err, "geo: read shapefile %s", path)
	}

	if skipped > 0 {
		zap.L().Warn("geo: shapefile records with unreadable geometry",
			zap.String("path", path),
			zap.Int("skipped", skipped),
		)
	}

	return &model.GeoTable{
		Table:      *model.NewTable(columns, rows),
		Geometries: geoms,
	}, nil
}

// prjCRS resolves the CRS declared by the .prj sidecar of a shapefile.
// A missing sidecar yields "".
func prjCRS(shpPath string) (string, error) {
	base := strings.TrimSuffix(shpPath, filepath.Ext(shpPath))
	for _, ext := range []string{".prj", ".PRJ"} {
		data, err := os.ReadFile(base + ext)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return "", eris.Wrapf(err, "geo: read %s", base+ext)
		}
		c, err := crs.FromWKT(string(data))
		if err != nil {
			return "", err
		}
		return c.String(), nil
	}
	return "", nil
}

// shapeToGeom converts a go-shp record. Null shapes become nil geometries.
func shapeToGeom(shape shp.Shape) (geom.T, error) {
	switch s := shape.(type) {
	case nil, *shp.Null:
		return nil, nil
	case *shp.Point:
		return geom.NewPointFlat(geom.XY, []float64{s.X, s.Y}), nil
	case *shp.PointZ:
		return geom.NewPointFlat(geom.XY, []float64{s.X, s.Y}), nil
	case *shp.PointM:
		return geom.NewPointFlat(geom.XY, []float64{s.X, s.Y}), nil
	case *shp.MultiPoint:
		return geom.NewMultiPointFlat(geom.XY, flatPoints(s.Points)), nil
	case *shp.MultiPointZ:
		return geom.NewMultiPointFlat(geom.XY, flatPoints(s.Points)), nil
	case *shp.MultiPointM:
		return geom.NewMultiPointFlat(geom.XY, flatPoints(s.Points)), nil
	case *shp.PolyLine:
		return partsToMultiLineString(s.Parts, s.Points)
	case *shp.PolyLineZ:
		return partsToMultiLineString(s.Parts, s.Points)
	case *shp.PolyLineM:
		return partsToMultiLineString(s.Parts, s.Points)
	case *shp.Polygon:
		return partsToMultiPolygon(s.Parts, s.Points)
	case *shp.PolygonZ:
		return partsToMultiPolygon(s.Parts, s.Points)
	case *shp.PolygonM:
		return partsToMultiPolygon(s.Parts, s.Points)
	}
	return nil, eris.Errorf("geo: unsupported shape type %T", shape)
}

// splitParts slices points into the flat XY coordinates of each part.
func splitParts(parts []int32, points []shp.Point) ([][]float64, error) {
	out := make([][]float64, 0, len(parts))
	for i, start := range parts {
		end := int32(len(points))
		if i+1 < len(parts) {
			end = parts[i+1]
		}
		if start < 0 || start > end || int(end) > len(points) {
			return nil, eris.Errorf("geo: part %d has bad bounds [%d, %d)", i, start, end)
		}
		out = append(out, flatPoints(points[start:end]))
	}
	return out, nil
}

func partsToMultiLineString(parts []int32, points []shp.Point) (geom.T, error) {
	lines, err := splitParts(parts, points)
	if err != nil {
		return nil, err
	}
	mls := geom.NewMultiLineString(geom.XY)
	for _, flat := range lines {
		if err := mls.Push(geom.NewLineStringFlat(geom.XY, flat)); err != nil {
			return nil, eris.Wrap(err, "geo: push linestring")
		}
	}
	return mls, nil
}

// partsToMultiPolygon groups rings into polygons. Clockwise rings are
// exteriors; each counter-clockwise ring is a hole in the preceding exterior.
func partsToMultiPolygon(parts []int32, points []shp.Point) (geom.T, error) {
	rings, err := splitParts(parts, points)
	if err != nil {
		return nil, err
	}
	mp := geom.NewMultiPolygon(geom.XY)
	var current *geom.Polygon
	flush := func() error {
		if current == nil {
			return nil
		}
		return mp.Push(current)
	}
	for _, flat := range rings {
		ring := geom.NewLinearRingFlat(geom.XY, flat)
		if current == nil || signedArea(flat) <= 0 {
			if err := flush(); err != nil {
				return nil, eris.Wrap(err, "geo: push polygon")
			}
			current = geom.NewPolygon(geom.XY)
		}
		if err := current.Push(ring); err != nil {
			return nil, eris.Wrap(err, "geo: push ring")
		}
	}
	if err := flush(); err != nil {
		return nil, eris.Wrap(err, "geo: push polygon")
	}
	return mp, nil
}

// signedArea is the shoelace area; negative for clockwise rings.
func signedArea(flat []float64) float64 {
	var sum float64
	n := len(flat) / 2
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		sum += flat[2*i]*flat[2*j+1] - flat[2*j]*flat[2*i+1]
	}
	return sum / 2
}

func flatPoints(points []shp.Point) []float64 {
	flat := make([]float64, 0, len(points)*2)
	for _, p := range points {
		flat = append(flat, p.X, p.Y)
	}
	return flat
}
