package crs

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	authorityRe = regexp.MustCompile(`(?i)(?:AUTHORITY|ID)\[\s*"EPSG"\s*,\s*"?(\d+)"?\s*\]`)
	headRe      = regexp.MustCompile(`(?i)^\s*(PROJCS|GEOGCS|GEOCCS|COMPD_CS|PROJCRS|GEOGCRS|GEODCRS|BOUNDCRS|COMPOUNDCRS)\[`)
)

// FromWKT resolves the system described by a WKT string, such as the
// contents of a shapefile .prj sidecar. An EPSG authority on the outermost
// element yields an EPSG system; otherwise the WKT itself (OGC or ESRI
// dialect) is handed to PROJ.
func FromWKT(text string) (CRS, error) {
	text = strings.TrimSpace(text)
	if code, ok := topLevelAuthority(text); ok {
		if c, err := Lookup(code); err == nil {
			return c, nil
		}
	}
	if !headRe.MatchString(text) || !known(text) {
		return CRS{}, &UnsupportedError{ID: abbreviate(text)}
	}
	return CRS{def: text}, nil
}

// topLevelAuthority returns the EPSG code attached directly to the outermost element.
func topLevelAuthority(text string) (int, bool) {
	for _, loc := range authorityRe.FindAllStringSubmatchIndex(text, -1) {
		depth := strings.Count(text[:loc[0]], "[") - strings.Count(text[:loc[0]], "]")
		if depth != 1 {
			continue
		}
		code, err := strconv.Atoi(text[loc[2]:loc[3]])
		if err == nil {
			return code, true
		}
	}
	return 0, false
}

func abbreviate(s string) string {
	if len(s) > 40 {
		return s[:40] + "..."
	}
	return s
}
