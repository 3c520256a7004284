package crs

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const epsg2278WKT = `PROJCS["NAD83 / Texas South Central (ftUS)",GEOGCS["NAD83",DATUM["North_American_Datum_1983",SPHEROID["GRS 1980",6378137,298.257222101,AUTHORITY["EPSG","7019"]],AUTHORITY["EPSG","6269"]],PRIMEM["Greenwich",0,AUTHORITY["EPSG","8901"]],UNIT["degree",0.0174532925199433,AUTHORITY["EPSG","9122"]],AUTHORITY["EPSG","4269"]],PROJECTION["Lambert_Conformal_Conic_2SP"],PARAMETER["standard_parallel_1",30.2833333333333],PARAMETER["standard_parallel_2",28.3833333333333],PARAMETER["latitude_of_origin",27.8333333333333],PARAMETER["central_meridian",-99],PARAMETER["false_easting",1968500],PARAMETER["false_northing",13123333.333],UNIT["US survey foot",0.304800609601219,AUTHORITY["EPSG","9003"]],AXIS["Easting",EAST],AXIS["Northing",NORTH],AUTHORITY["EPSG","2278"]]`

const esriTexasFeetWKT = `PROJCS["NAD_1983_StatePlane_Texas_South_Central_FIPS_4204_Feet",GEOGCS["GCS_North_American_1983",DATUM["D_North_American_1983",SPHEROID["GRS_1980",6378137.0,298.257222101]],PRIMEM["Greenwich",0.0],UNIT["Degree",0.0174532925199433]],PROJECTION["Lambert_Conformal_Conic"],PARAMETER["False_Easting",1968500.0],PARAMETER["False_Northing",13123333.33333333],PARAMETER["Central_Meridian",-99.0],PARAMETER["Standard_Parallel_1",28.38333333333333],PARAMETER["Standard_Parallel_2",30.28333333333334],PARAMETER["Latitude_Of_Origin",27.83333333333333],UNIT["Foot_US",0.3048006096012192]]`

const esriTexasCentricAlbersWKT = `PROJCS["NAD_1983_Texas_Centric_Mapping_System_Albers",GEOGCS["GCS_North_American_1983",DATUM["D_North_American_1983",SPHEROID["GRS_1980",6378137.0,298.257222101]],PRIMEM["Greenwich",0.0],UNIT["Degree",0.0174532925199433]],PROJECTION["Albers"],PARAMETER["False_Easting",1500000.0],PARAMETER["False_Northing",6000000.0],PARAMETER["Central_Meridian",-100.0],PARAMETER["Standard_Parallel_1",27.5],PARAMETER["Standard_Parallel_2",35.0],PARAMETER["Latitude_Of_Origin",18.0],UNIT["Meter",1.0]]`

func TestFromWKT_Authority(t *testing.T) {
	c, err := FromWKT(epsg2278WKT)
	require.NoError(t, err)
	assert.Equal(t, 2278, c.Code)

	c, err = FromWKT(`GEOGCRS["WGS 84",DATUM["World Geodetic System 1984",ELLIPSOID["WGS 84",6378137,298.257223563]],CS[ellipsoidal,2],AXIS["latitude",north],AXIS["longitude",east],ANGLEUNIT["degree",0.0174532925199433],ID["EPSG",4326]]`)
	require.NoError(t, err)
	assert.Equal(t, 4326, c.Code)
}

func TestFromWKT_ESRI(t *testing.T) {
	c, err := FromWKT(esriTexasFeetWKT)
	require.NoError(t, err)
	assert.Zero(t, c.Code)
	assert.Equal(t, esriTexasFeetWKT, c.String())

	tx, err := Lookup(2278)
	require.NoError(t, err)
	nad83, err := Lookup(4269)
	require.NoError(t, err)

	// The ESRI definition and EPSG:2278 describe the same grid.
	ex, ey, err := Transform(nad83, c, -98.4936, 29.4241)
	require.NoError(t, err)
	x, y, err := Transform(nad83, tx, -98.4936, 29.4241)
	require.NoError(t, err)
	assert.InDelta(t, x, ex, 0.01)
	assert.InDelta(t, y, ey, 0.01)
}

func TestFromWKT_TexasCentricAlbers(t *testing.T) {
	c, err := FromWKT(esriTexasCentricAlbersWKT)
	require.NoError(t, err)

	nad83, err := Lookup(4269)
	require.NoError(t, err)
	x, y, err := Transform(nad83, c, -100, 18)
	require.NoError(t, err)
	assert.InDelta(t, 1500000, x, 0.01)
	assert.InDelta(t, 6000000, y, 0.01)
}

func TestFromWKT_Unsupported(t *testing.T) {
	_, err := FromWKT(`PROJCS["Local_Grid"`)
	var ue *UnsupportedError
	require.True(t, errors.As(err, &ue))

	_, err = FromWKT("not wkt at all")
	require.True(t, errors.As(err, &ue))
	assert.Equal(t, "not wkt at all", ue.ID)
}
