package geo

import (
	"bytes"
	"sort"
	"strconv"

	gojson "github.com/goccy/go-json"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/sells-group/dataload/internal/crs"
	"github.com/sells-group/dataload/internal/model"
)

type geoJSONDocument struct {
	Type       string            `json:"type"`
	Features   []geoJSONFeature  `json:"features"`
	CRS        *geoJSONCRS       `json:"crs"`
	ID         any               `json:"id"`
	Geometry   gojson.RawMessage `json:"geometry"`
	Properties map[string]any    `json:"properties"`
}

type geoJSONFeature struct {
	ID         any               `json:"id"`
	Geometry   gojson.RawMessage `json:"geometry"`
	Properties map[string]any    `json:"properties"`
}

// geoJSONCRS is the pre-RFC 7946 "crs" member, still written by many tools.
type geoJSONCRS struct {
	Type       string `json:"type"`
	Properties struct {
		Name string `json:"name"`
		Code int    `json:"code"`
	} `json:"properties"`
}

func (c *geoJSONCRS) id() string {
	if c == nil {
		return ""
	}
	if c.Properties.Name != "" {
		return c.Properties.Name
	}
	if c.Properties.Code != 0 {
		return "EPSG:" + strconv.Itoa(c.Properties.Code)
	}
	return ""
}

func decodeGeoJSON(data []byte) (*model.GeoTable, error) {
	var doc geoJSONDocument
	if err := gojson.Unmarshal(data, &doc); err != nil {
		return nil, eris.Wrap(err, "geojson: decode document")
	}

	var features []geoJSONFeature
	switch doc.Type {
	case "FeatureCollection":
		features = doc.Features
	case "Feature":
		features = []geoJSONFeature{{ID: doc.ID, Geometry: doc.Geometry, Properties: doc.Properties}}
	case "Point", "MultiPoint", "LineString", "MultiLineString", "Polygon", "MultiPolygon", "GeometryCollection":
		features = []geoJSONFeature{{Geometry: data}}
	default:
		return nil, eris.Errorf("geojson: unsupported document type %q", doc.Type)
	}

	sourceCRS := crs.WGS84.String()
	if id := doc.CRS.id(); id != "" {
		c, err := crs.Parse(id)
		if err != nil {
			return nil, err
		}
		sourceCRS = c.String()
	}

	columns := propertyColumns(features)
	rows := make([][]string, 0, len(features))
	geoms := make([]geom.T, 0, len(features))
	for i, f := range features {
		g, err := decodeGeoJSONGeometry(f.Geometry)
		if err != nil {
			return nil, eris.Wrapf(err, "geojson: feature %d", i)
		}
		row := make([]string, len(columns))
		for j, c := range columns {
			if c == "id" && j == 0 && f.ID != nil {
				row[j] = formatValue(f.ID)
				continue
			}
			row[j] = formatValue(f.Properties[c])
		}
		rows = append(rows, row)
		geoms = append(geoms, g)
	}

	return &model.GeoTable{
		Table:      *model.NewTable(columns, rows),
		Geometries: geoms,
		CRS:        sourceCRS,
	}, nil
}

func decodeGeoJSONGeometry(raw gojson.RawMessage) (geom.T, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}
	var g geom.T
	if err := geojson.Unmarshal(trimmed, &g); err != nil {
		return nil, err
	}
	return g, nil
}

// propertyColumns returns the sorted union of property keys, preceded by
// "id" when any feature carries a feature-level identifier.
func propertyColumns(features []geoJSONFeature) []string {
	keys := make(map[string]struct{})
	hasID := false
	for _, f := range features {
		if f.ID != nil {
			hasID = true
		}
		for k := range f.Properties {
			keys[k] = struct{}{}
		}
	}
	if hasID {
		delete(keys, "id")
	}

	columns := make([]string, 0, len(keys)+1)
	for k := range keys {
		columns = append(columns, k)
	}
	sort.Strings(columns)
	if hasID {
		columns = append([]string{"id"}, columns...)
	}
	return columns
}
