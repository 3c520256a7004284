package model

// Kind identifies which variant of Dataset a load produced.
type Kind string

const (
	KindTable  Kind = "table"
	KindGeo    Kind = "geo"
	KindRaster Kind = "raster"
)

// Dataset is the result of loading a resource: a *Table, a *GeoTable, or a
// raster handle. Callers type-switch on the concrete value.
type Dataset interface {
	Kind() Kind
}
