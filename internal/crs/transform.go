package crs

import (
	"math"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-proj/v10"
)

// Transformer converts coordinates from one system to another. It wraps a
// PROJ object and is not safe for concurrent use. Close releases it.
type Transformer struct {
	src, dst CRS
	pj       *proj.PJ
}

// NewTransformer prepares a src to dst conversion with (lon, lat) axis order
// for geographic systems.
func NewTransformer(src, dst CRS) (*Transformer, error) {
	if src.IsZero() || dst.IsZero() {
		return nil, eris.New("crs: transform with unresolved system")
	}
	pj, err := proj.NewCRSToCRS(src.def, dst.def, nil)
	if err != nil {
		return nil, eris.Wrapf(err, "crs: %s to %s", src, dst)
	}
	defer pj.Destroy()

	norm, err := pj.NormalizeForVisualization()
	if err != nil {
		return nil, eris.Wrapf(err, "crs: normalize %s to %s", src, dst)
	}
	return &Transformer{src: src, dst: dst, pj: norm}, nil
}

// Close releases the PROJ object.
func (t *Transformer) Close() {
	t.pj.Destroy()
}

// Transform converts a single (x, y).
func (t *Transformer) Transform(x, y float64) (float64, float64, error) {
	c, err := t.pj.Forward(proj.NewCoord(x, y, 0, 0))
	if err != nil || !finite(c.X(), c.Y()) {
		return 0, 0, eris.Errorf("crs: (%g, %g) cannot be projected from %s into %s", x, y, t.src, t.dst)
	}
	return c.X(), c.Y(), nil
}

// TransformFlat converts go-geom style flat coordinates in place. zIndex and
// mIndex are -1 when the layout has no such ordinate.
func (t *Transformer) TransformFlat(flat []float64, stride, zIndex, mIndex int) error {
	if err := t.pj.ForwardFlatCoords(flat, stride, zIndex, mIndex); err != nil {
		return eris.Wrapf(err, "crs: project %s into %s", t.src, t.dst)
	}
	for i := 0; i+1 < len(flat); i += stride {
		if !finite(flat[i], flat[i+1]) {
			return eris.Errorf("crs: coordinate %d cannot be projected from %s into %s", i/stride, t.src, t.dst)
		}
	}
	return nil
}

// Transform converts one (x, y) from src to dst. Geographic coordinates are
// (lon, lat). Use a Transformer for more than a handful of points.
func Transform(src, dst CRS, x, y float64) (float64, float64, error) {
	if Equal(src, dst) && !src.IsZero() {
		return x, y, nil
	}
	t, err := NewTransformer(src, dst)
	if err != nil {
		return 0, 0, err
	}
	defer t.Close()
	return t.Transform(x, y)
}

func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
