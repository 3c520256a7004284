package geo

import (
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"

	"github.com/sells-group/dataload/internal/crs"
	"github.com/sells-group/dataload/internal/model"
)

// Reproject returns a GeoTable in target. t itself is not modified, but the
// result shares t's rows, and when t is already in target it also shares
// t's geometries. Converted geometries are always new values.
func Reproject(t *model.GeoTable, target crs.CRS) (*model.GeoTable, error) {
	src, err := crs.Parse(t.CRS)
	if err != nil {
		return nil, err
	}

	out := &model.GeoTable{
		Table:      t.Table,
		Geometries: make([]geom.T, len(t.Geometries)),
		CRS:        target.String(),
	}
	if crs.Equal(src, target) {
		copy(out.Geometries, t.Geometries)
		return out, nil
	}

	tr, err := crs.NewTransformer(src, target)
	if err != nil {
		return nil, err
	}
	defer tr.Close()

	for i, g := range t.Geometries {
		pg, err := reprojectGeom(g, tr)
		if err != nil {
			return nil, eris.Wrapf(err, "geo: reproject feature %d", i)
		}
		out.Geometries[i] = pg
	}
	return out, nil
}

func reprojectGeom(g geom.T, tr *crs.Transformer) (geom.T, error) {
	var c geom.T
	switch g := g.(type) {
	case nil:
		return nil, nil
	case *geom.GeometryCollection:
		gc := geom.NewGeometryCollection()
		for _, part := range g.Geoms() {
			pg, err := reprojectGeom(part, tr)
			if err != nil {
				return nil, err
			}
			if err := gc.Push(pg); err != nil {
				return nil, eris.Wrap(err, "geo: push geometry")
			}
		}
		return gc, nil
	case *geom.Point:
		c = g.Clone()
	case *geom.LineString:
		c = g.Clone()
	case *geom.LinearRing:
		c = g.Clone()
	case *geom.Polygon:
		c = g.Clone()
	case *geom.MultiPoint:
		c = g.Clone()
	case *geom.MultiLineString:
		c = g.Clone()
	case *geom.MultiPolygon:
		c = g.Clone()
	default:
		return nil, eris.Errorf("geo: cannot reproject %T", g)
	}

	layout := c.Layout()
	if err := tr.TransformFlat(c.FlatCoords(), c.Stride(), layout.ZIndex(), layout.MIndex()); err != nil {
		return nil, err
	}
	return c, nil
}
