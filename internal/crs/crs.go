// Package crs resolves coordinate reference system identifiers and converts
// coordinates between them through PROJ. Geographic systems use (lon, lat)
// degree order.
package crs

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/twpayne/go-proj/v10"
)

// CRS is a resolved coordinate reference system.
type CRS struct {
	// Code is the EPSG code, or 0 for systems known only by their definition.
	Code int
	def  string
}

// String returns "EPSG:<code>" for EPSG systems and the original definition
// otherwise. The result is always accepted by Parse.
func (c CRS) String() string {
	if c.Code != 0 {
		return "EPSG:" + strconv.Itoa(c.Code)
	}
	return c.def
}

// IsZero reports whether c is the zero value.
func (c CRS) IsZero() bool { return c.def == "" }

// Equal reports whether a and b are the same system.
func Equal(a, b CRS) bool {
	if a.Code != 0 || b.Code != 0 {
		return a.Code == b.Code
	}
	return a.def == b.def
}

// UnsupportedError is returned for identifiers PROJ cannot resolve.
type UnsupportedError struct {
	ID string
}

func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("crs: unsupported coordinate reference system %q", e.ID)
}

// WGS84 is the geographic system GPS coordinates and GeoJSON use.
var WGS84 = CRS{Code: 4326, def: "EPSG:4326"}

// aliases maps retired or vendor codes for Web Mercator onto EPSG:3857.
var aliases = map[int]int{
	900913: 3857,
	3785:   3857,
	102100: 3857,
	102113: 3857,
}

// Lookup resolves an EPSG code against the PROJ database.
func Lookup(code int) (CRS, error) {
	if alias, ok := aliases[code]; ok {
		code = alias
	}
	c := CRS{Code: code, def: "EPSG:" + strconv.Itoa(code)}
	if code <= 0 || !known(c.def) {
		return CRS{}, &UnsupportedError{ID: c.def}
	}
	return c, nil
}

// Parse resolves identifiers such as "EPSG:2278", "epsg:4326", "4326",
// "urn:ogc:def:crs:EPSG::3857", "urn:ogc:def:crs:OGC:1.3:CRS84", WKT, and
// any other definition PROJ accepts ("ESRI:102039", "+proj=...").
func Parse(id string) (CRS, error) {
	s := strings.TrimSpace(id)
	upper := strings.ToUpper(s)
	switch {
	case s == "":
		return CRS{}, &UnsupportedError{ID: id}
	case upper == "CRS84" || strings.HasSuffix(upper, ":CRS84") || upper == "WGS84":
		return WGS84, nil
	case headRe.MatchString(s):
		return FromWKT(s)
	}

	if code, ok := epsgCode(upper); ok {
		c, err := Lookup(code)
		if err != nil {
			return CRS{}, &UnsupportedError{ID: id}
		}
		return c, nil
	}
	if !known(s) {
		return CRS{}, &UnsupportedError{ID: id}
	}
	return CRS{def: s}, nil
}

// epsgCode extracts the code from "4326", "EPSG:4326" and
// "URN:OGC:DEF:CRS:EPSG::4326" style identifiers.
func epsgCode(upper string) (int, bool) {
	code := upper
	if i := strings.LastIndex(upper, ":"); i >= 0 {
		if !strings.HasPrefix(upper, "EPSG:") && !strings.Contains(upper, ":EPSG:") {
			return 0, false
		}
		code = upper[i+1:]
	}
	n, err := strconv.Atoi(code)
	return n, err == nil
}

// known reports whether PROJ can build a coordinate reference system from def.
func known(def string) bool {
	pj, err := proj.New(def)
	if err != nil {
		return false
	}
	defer pj.Destroy()
	return pj.IsCRS()
}
