package geo

import "fmt"

// FieldNotFoundError reports a coordinate column missing from a table or row.
type FieldNotFoundError struct {
	Field string
	Row   int // -1 when the column is absent from the header
}

func (e *FieldNotFoundError) Error() string {
	if e.Row < 0 {
		return fmt.Sprintf("geo: field %q not found", e.Field)
	}
	return fmt.Sprintf("geo: field %q missing from row %d", e.Field, e.Row)
}

// InvalidCoordinateError reports a coordinate value that is not a float.
type InvalidCoordinateError struct {
	Field string
	Value string
	Row   int
}

func (e *InvalidCoordinateError) Error() string {
	return fmt.Sprintf("geo: row %d: %s value %q is not a valid coordinate", e.Row, e.Field, e.Value)
}
