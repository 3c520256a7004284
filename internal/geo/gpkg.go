package geo

import (
	"database/sql"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/wkb"
	_ "modernc.org/sqlite"

	"github.com/sells-group/dataload/internal/crs"
	"github.com/sells-group/dataload/internal/model"
)

// gpkgEnvelopeSize maps the header envelope indicator to its byte length.
var gpkgEnvelopeSize = map[byte]int{0: 0, 1: 32, 2: 48, 3: 48, 4: 64}

// readGeoPackage reads one feature table of a GeoPackage. An empty layer
// selects the first feature table listed in gpkg_contents.
func readGeoPackage(path, layer string) (*model.GeoTable, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, eris.Wrap(err, "gpkg: open")
	}
	defer func() { _ = db.Close() }()

	if layer == "" {
		err := db.QueryRow(
			`SELECT table_name FROM gpkg_contents WHERE data_type = 'features' ORDER BY rowid LIMIT 1`,
		).Scan(&layer)
		if err == sql.ErrNoRows {
			return nil, eris.Errorf("gpkg: %s has no feature tables", path)
		}
		if err != nil {
			return nil, eris.Wrap(err, "gpkg: list layers")
		}
	}

	var (
		geomColumn string
		srsID      int
	)
	err = db.QueryRow(
		`SELECT column_name, srs_id FROM gpkg_geometry_columns WHERE table_name = ?`, layer,
	).Scan(&geomColumn, &srsID)
	if err == sql.ErrNoRows {
		return nil, eris.Errorf("gpkg: layer %q not found", layer)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "gpkg: geometry column of %s", layer)
	}

	declared, err := gpkgCRS(db, srsID)
	if err != nil {
		return nil, err
	}

	rows, err := db.Query(`SELECT * FROM "` + strings.ReplaceAll(layer, `"`, `""`) + `"`)
	if err != nil {
		return nil, eris.Wrapf(err, "gpkg: query %s", layer)
	}
	defer func() { _ = rows.Close() }()

	names, err := rows.Columns()
	if err != nil {
		return nil, eris.Wrap(err, "gpkg: columns")
	}
	geomIdx := -1
	var columns []string
	for i, n := range names {
		if strings.EqualFold(n, geomColumn) {
			geomIdx = i
			continue
		}
		columns = append(columns, n)
	}
	if geomIdx < 0 {
		return nil, eris.Errorf("gpkg: geometry column %q missing from %s", geomColumn, layer)
	}

	var (
		records [][]string
		geoms   []geom.T
	)
	values := make([]any, len(names))
	ptrs := make([]any, len(names))
	for i := range values {
		ptrs[i] = &values[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, eris.Wrap(err, "gpkg: scan")
		}
		row := make([]string, 0, len(columns))
		for i, v := range values {
			if i == geomIdx {
				continue
			}
			row = append(row, formatValue(v))
		}

		var blob []byte
		switch v := values[geomIdx].(type) {
		case []byte:
			blob = v
		case string:
			blob = []byte(v)
		}
		g, err := decodeGPKGGeometry(blob)
		if err != nil {
			return nil, eris.Wrapf(err, "gpkg: feature %d", len(records))
		}
		records = append(records, row)
		geoms = append(geoms, g)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "gpkg: iterate")
	}

	return &model.GeoTable{
		Table:      *model.NewTable(columns, records),
		Geometries: geoms,
		CRS:        declared,
	}, nil
}

// gpkgCRS resolves a gpkg_spatial_ref_sys entry. The reserved ids 0 and -1
// (undefined geographic and cartesian) yield "".
func gpkgCRS(db *sql.DB, srsID int) (string, error) {
	if srsID == 0 || srsID == -1 {
		return "", nil
	}
	var (
		org        string
		orgID      int
		definition string
	)
	err := db.QueryRow(
		`SELECT organization, organization_coordsys_id, definition FROM gpkg_spatial_ref_sys WHERE srs_id = ?`, srsID,
	).Scan(&org, &orgID, &definition)
	if err == sql.ErrNoRows {
		return "", eris.Errorf("gpkg: srs_id %d not in gpkg_spatial_ref_sys", srsID)
	}
	if err != nil {
		return "", eris.Wrap(err, "gpkg: spatial ref")
	}
	if strings.EqualFold(org, "EPSG") {
		c, err := crs.Lookup(orgID)
		if err != nil {
			return "", err
		}
		return c.String(), nil
	}
	c, err := crs.FromWKT(definition)
	if err != nil {
		return "", err
	}
	return c.String(), nil
}

// decodeGPKGGeometry strips the GeoPackage binary header and decodes the
// WKB body. Empty geometries decode to nil.
func decodeGPKGGeometry(blob []byte) (geom.T, error) {
	if len(blob) == 0 {
		return nil, nil
	}
	if len(blob) < 8 || blob[0] != 'G' || blob[1] != 'P' {
		return nil, eris.New("gpkg: bad geometry header magic")
	}
	if blob[2] != 0 {
		return nil, eris.Errorf("gpkg: unsupported geometry version %d", blob[2])
	}
	flags := blob[3]
	if flags&0x20 != 0 {
		return nil, eris.New("gpkg: extended geometry types are not supported")
	}
	envelope, ok := gpkgEnvelopeSize[(flags>>1)&0x07]
	if !ok {
		return nil, eris.Errorf("gpkg: bad envelope indicator in flags %#x", flags)
	}
	if flags&0x10 != 0 {
		return nil, nil
	}
	// Bytes 4-8 repeat the srs_id from gpkg_geometry_columns.
	start := 8 + envelope
	if len(blob) < start {
		return nil, eris.New("gpkg: truncated geometry envelope")
	}
	g, err := wkb.Unmarshal(blob[start:])
	if err != nil {
		return nil, eris.Wrap(err, "gpkg: decode wkb")
	}
	return g, nil
}
