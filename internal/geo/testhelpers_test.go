package geo

import (
	"database/sql"
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/jonas-p/go-shp"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/wkb"
	_ "modernc.org/sqlite"
)

const wgs84PRJ = `GEOGCS["GCS_WGS_1984",DATUM["D_WGS_1984",SPHEROID["WGS_1984",6378137.0,298.257223563]],PRIMEM["Greenwich",0.0],UNIT["Degree",0.0174532925199433]]`

// writePointShapefile writes wells.shp/.dbf (and .prj when prj is set) into
// dir and returns the .shp path.
func writePointShapefile(t *testing.T, dir, prj string) string {
	t.Helper()
	path := filepath.Join(dir, "wells.shp")
	w, err := shp.Create(path, shp.POINT)
	require.NoError(t, err)
	w.SetFields([]shp.Field{
		shp.StringField("NAME", 20),
		shp.NumberField("DEPTH", 8),
	})
	for i, p := range []struct {
		name  string
		depth int
		x, y  float64
	}{
		{"Edwards-1", 120, -98.4936, 29.4241},
		{"Trinity-2", 340, -97.7431, 30.2672},
	} {
		n := w.Write(&shp.Point{X: p.x, Y: p.y})
		require.Equal(t, int32(i), n)
		require.NoError(t, w.WriteAttribute(int(n), 0, p.name))
		require.NoError(t, w.WriteAttribute(int(n), 1, p.depth))
	}
	w.Close()

	if prj != "" {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "wells.prj"), []byte(prj), 0o644))
	}
	return path
}

// gpkgBlob wraps WKB in a little-endian GeoPackage header with an XY envelope.
func gpkgBlob(t *testing.T, g geom.T, srsID int32) []byte {
	t.Helper()
	body, err := wkb.Marshal(g, wkb.NDR)
	require.NoError(t, err)

	header := []byte{'G', 'P', 0, 0x03}
	header = binary.LittleEndian.AppendUint32(header, uint32(srsID))
	b := g.Bounds()
	for _, v := range []float64{b.Min(0), b.Max(0), b.Min(1), b.Max(1)} {
		header = binary.LittleEndian.AppendUint64(header, math.Float64bits(v))
	}
	return append(header, body...)
}

// writeGeoPackage creates a minimal GeoPackage holding a "wells" point layer
// in EPSG:4326 and an empty "roads" layer.
func writeGeoPackage(t *testing.T, path string) {
	t.Helper()
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()

	stmts := []string{
		`CREATE TABLE gpkg_spatial_ref_sys (srs_name TEXT NOT NULL, srs_id INTEGER PRIMARY KEY, organization TEXT NOT NULL, organization_coordsys_id INTEGER NOT NULL, definition TEXT NOT NULL, description TEXT)`,
		`CREATE TABLE gpkg_contents (table_name TEXT PRIMARY KEY, data_type TEXT NOT NULL, identifier TEXT, srs_id INTEGER)`,
		`CREATE TABLE gpkg_geometry_columns (table_name TEXT NOT NULL, column_name TEXT NOT NULL, geometry_type_name TEXT NOT NULL, srs_id INTEGER NOT NULL, z TINYINT NOT NULL, m TINYINT NOT NULL)`,
		`INSERT INTO gpkg_spatial_ref_sys VALUES ('WGS 84', 4326, 'EPSG', 4326, '` + wgs84PRJ + `', NULL)`,
		`INSERT INTO gpkg_contents VALUES ('wells', 'features', 'wells', 4326)`,
		`INSERT INTO gpkg_contents VALUES ('roads', 'features', 'roads', 4326)`,
		`INSERT INTO gpkg_geometry_columns VALUES ('wells', 'geom', 'POINT', 4326, 0, 0)`,
		`INSERT INTO gpkg_geometry_columns VALUES ('roads', 'shape', 'LINESTRING', 4326, 0, 0)`,
		`CREATE TABLE wells (fid INTEGER PRIMARY KEY, name TEXT, depth REAL, geom BLOB)`,
		`CREATE TABLE roads (fid INTEGER PRIMARY KEY, shape BLOB)`,
	}
	for _, s := range stmts {
		_, err := db.Exec(s)
		require.NoError(t, err, s)
	}

	p1 := geom.NewPointFlat(geom.XY, []float64{-98.4936, 29.4241})
	p2 := geom.NewPointFlat(geom.XY, []float64{-97.7431, 30.2672})
	_, err = db.Exec(`INSERT INTO wells VALUES (1, 'Edwards-1', 120.5, ?)`, gpkgBlob(t, p1, 4326))
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO wells VALUES (2, 'Trinity-2', 340, ?)`, gpkgBlob(t, p2, 4326))
	require.NoError(t, err)
}
