package model

import (
	"encoding/csv"
	"io"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// Table is an in-memory tabular frame. Every row has len(Columns) cells.
type Table struct {
	Columns []string
	Rows    [][]string
}

// NewTable builds a Table, padding or truncating rows to the column count.
func NewTable(columns []string, rows [][]string) *Table {
	for i, row := range rows {
		rows[i] = fitRow(row, len(columns))
	}
	return &Table{Columns: columns, Rows: rows}
}

func fitRow(row []string, n int) []string {
	switch {
	case len(row) == n:
		return row
	case len(row) > n:
		return row[:n]
	default:
		padded := make([]string, n)
		copy(padded, row)
		return padded
	}
}

// Kind implements Dataset.
func (t *Table) Kind() Kind { return KindTable }

// Len returns the number of data rows.
func (t *Table) Len() int { return len(t.Rows) }

// ColumnIndex returns the position of the named column.
func (t *Table) ColumnIndex(name string) (int, bool) {
	for i, c := range t.Columns {
		if c == name {
			return i, true
		}
	}
	return -1, false
}

// Value returns the cell at (row, col), or "" when out of range.
func (t *Table) Value(row, col int) string {
	if row < 0 || row >= len(t.Rows) || col < 0 || col >= len(t.Rows[row]) {
		return ""
	}
	return t.Rows[row][col]
}

// Float parses the cell at (row, col) as a float64.
func (t *Table) Float(row, col int) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(t.Value(row, col)), 64)
}

// Select returns a new table holding the given rows, in order.
func (t *Table) Select(idx []int) *Table {
	rows := make([][]string, 0, len(idx))
	for _, i := range idx {
		rows = append(rows, t.Rows[i])
	}
	return &Table{Columns: t.Columns, Rows: rows}
}

// Head returns the first n rows.
func (t *Table) Head(n int) *Table {
	return t.Select(headIndex(t.Len(), n))
}

func headIndex(total, n int) []int {
	if n > total {
		n = total
	}
	if n < 0 {
		n = 0
	}
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	return idx
}

// WriteCSV writes the header and all rows as CSV.
func (t *Table) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Columns); err != nil {
		return eris.Wrap(err, "table: write header")
	}
	if err := cw.WriteAll(t.Rows); err != nil {
		return eris.Wrap(err, "table: write rows")
	}
	return nil
}
