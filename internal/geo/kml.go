package geo

import (
	"bytes"
	"encoding/xml"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"golang.org/x/text/encoding/htmlindex"

	"github.com/sells-group/dataload/internal/crs"
	"github.com/sells-group/dataload/internal/model"
)

type kmlPlacemark struct {
	Name          string          `xml:"name"`
	Description   string          `xml:"description"`
	Data          []kmlData       `xml:"ExtendedData>Data"`
	SimpleData    []kmlSimpleData `xml:"ExtendedData>SchemaData>SimpleData"`
	Point         *kmlCoords      `xml:"Point"`
	LineString    *kmlCoords      `xml:"LineString"`
	Polygon       *kmlPolygon     `xml:"Polygon"`
	MultiGeometry *kmlMulti       `xml:"MultiGeometry"`
}

type kmlData struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value"`
}

type kmlSimpleData struct {
	Name  string `xml:"name,attr"`
	Value string `xml:",chardata"`
}

type kmlCoords struct {
	Coordinates string `xml:"coordinates"`
}

type kmlPolygon struct {
	Outer string   `xml:"outerBoundaryIs>LinearRing>coordinates"`
	Inner []string `xml:"innerBoundaryIs>LinearRing>coordinates"`
}

type kmlMulti struct {
	Points   []kmlCoords  `xml:"Point"`
	Lines    []kmlCoords  `xml:"LineString"`
	Polygons []kmlPolygon `xml:"Polygon"`
}

// decodeKML collects every Placemark in the document, at any folder depth.
// KML coordinates are always WGS84 lon,lat[,alt].
func decodeKML(data []byte) (*model.GeoTable, error) {
	decoder := xml.NewDecoder(bytes.NewReader(data))
	decoder.CharsetReader = func(charset string, input io.Reader) (io.Reader, error) {
		enc, err := htmlindex.Get(charset)
		if err != nil {
			return nil, eris.Wrapf(err, "kml: unsupported charset %q", charset)
		}
		return enc.NewDecoder().Reader(input), nil
	}

	var placemarks []kmlPlacemark
	sawRoot := false
	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrap(err, "kml: read token")
		}
		se, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		if !sawRoot {
			if se.Name.Local != "kml" {
				return nil, eris.Errorf("kml: unexpected root element %q", se.Name.Local)
			}
			sawRoot = true
			continue
		}
		if se.Name.Local != "Placemark" {
			continue
		}
		var pm kmlPlacemark
		if err := decoder.DecodeElement(&pm, &se); err != nil {
			return nil, eris.Wrap(err, "kml: decode placemark")
		}
		placemarks = append(placemarks, pm)
	}
	if !sawRoot {
		return nil, eris.New("kml: empty document")
	}

	extra := make(map[string]struct{})
	for _, pm := range placemarks {
		for _, d := range pm.Data {
			extra[d.Name] = struct{}{}
		}
		for _, d := range pm.SimpleData {
			extra[d.Name] = struct{}{}
		}
	}
	delete(extra, "name")
	delete(extra, "description")
	extraCols := make([]string, 0, len(extra))
	for k := range extra {
		extraCols = append(extraCols, k)
	}
	sort.Strings(extraCols)
	columns := append([]string{"name", "description"}, extraCols...)

	rows := make([][]string, 0, len(placemarks))
	geoms := make([]geom.T, 0, len(placemarks))
	for i, pm := range placemarks {
		values := map[string]string{
			"name":        strings.TrimSpace(pm.Name),
			"description": strings.TrimSpace(pm.Description),
		}
		for _, d := range pm.Data {
			values[d.Name] = strings.TrimSpace(d.Value)
		}
		for _, d := range pm.SimpleData {
			values[d.Name] = strings.TrimSpace(d.Value)
		}
		row := make([]string, len(columns))
		for j, c := range columns {
			row[j] = values[c]
		}

		g, err := pm.geometry()
		if err != nil {
			return nil, eris.Wrapf(err, "kml: placemark %d", i)
		}
		rows = append(rows, row)
		geoms = append(geoms, g)
	}

	return &model.GeoTable{
		Table:      *model.NewTable(columns, rows),
		Geometries: geoms,
		CRS:        crs.WGS84.String(),
	}, nil
}

func (pm kmlPlacemark) geometry() (geom.T, error) {
	switch {
	case pm.Point != nil:
		return kmlPoint(pm.Point.Coordinates)
	case pm.LineString != nil:
		return kmlLineString(pm.LineString.Coordinates)
	case pm.Polygon != nil:
		return kmlPolygonGeom(*pm.Polygon)
	case pm.MultiGeometry != nil:
		return pm.MultiGeometry.geometry()
	}
	return nil, nil
}

func (m kmlMulti) geometry() (geom.T, error) {
	var parts []geom.T
	for _, p := range m.Points {
		g, err := kmlPoint(p.Coordinates)
		if err != nil {
			return nil, err
		}
		parts = append(parts, g)
	}
	for _, l := range m.Lines {
		g, err := kmlLineString(l.Coordinates)
		if err != nil {
			return nil, err
		}
		parts = append(parts, g)
	}
	for _, p := range m.Polygons {
		g, err := kmlPolygonGeom(p)
		if err != nil {
			return nil, err
		}
		parts = append(parts, g)
	}

	switch {
	case len(parts) == 0:
		return nil, nil
	case len(m.Points) == len(parts):
		mp := geom.NewMultiPoint(geom.XY)
		for _, p := range parts {
			if err := mp.Push(p.(*geom.Point)); err != nil {
				return nil, err
			}
		}
		return mp, nil
	case len(m.Lines) == len(parts):
		mls := geom.NewMultiLineString(geom.XY)
		for _, l := range parts {
			if err := mls.Push(l.(*geom.LineString)); err != nil {
				return nil, err
			}
		}
		return mls, nil
	case len(m.Polygons) == len(parts):
		mp := geom.NewMultiPolygon(geom.XY)
		for _, p := range parts {
			if err := mp.Push(p.(*geom.Polygon)); err != nil {
				return nil, err
			}
		}
		return mp, nil
	}

	gc := geom.NewGeometryCollection()
	if err := gc.Push(parts...); err != nil {
		return nil, err
	}
	return gc, nil
}

func kmlPoint(text string) (geom.T, error) {
	flat, err := parseKMLCoords(text)
	if err != nil {
		return nil, err
	}
	if len(flat) != 2 {
		return nil, eris.Errorf("kml: point needs one coordinate, got %d", len(flat)/2)
	}
	return geom.NewPointFlat(geom.XY, flat), nil
}

func kmlLineString(text string) (geom.T, error) {
	flat, err := parseKMLCoords(text)
	if err != nil {
		return nil, err
	}
	return geom.NewLineStringFlat(geom.XY, flat), nil
}

func kmlPolygonGeom(p kmlPolygon) (geom.T, error) {
	flat, err := parseKMLCoords(p.Outer)
	if err != nil {
		return nil, err
	}
	ends := []int{len(flat)}
	for _, inner := range p.Inner {
		hole, err := parseKMLCoords(inner)
		if err != nil {
			return nil, err
		}
		flat = append(flat, hole...)
		ends = append(ends, len(flat))
	}
	return geom.NewPolygonFlat(geom.XY, flat, ends), nil
}

// parseKMLCoords parses whitespace-separated "lon,lat[,alt]" tuples into
// flat XY coordinates; altitude is dropped.
func parseKMLCoords(text string) ([]float64, error) {
	tuples := strings.Fields(text)
	flat := make([]float64, 0, len(tuples)*2)
	for _, tuple := range tuples {
		parts := strings.Split(tuple, ",")
		if len(parts) < 2 {
			return nil, eris.Errorf("kml: malformed coordinate %q", tuple)
		}
		lon, err := strconv.ParseFloat(parts[0], 64)
		if err != nil {
			return nil, eris.Wrapf(err, "kml: longitude in %q", tuple)
		}
		lat, err := strconv.ParseFloat(parts[1], 64)
		if err != nil {
			return nil, eris.Wrapf(err, "kml: latitude in %q", tuple)
		}
		flat = append(flat, lon, lat)
	}
	return flat, nil
}
