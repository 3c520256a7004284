package fetcher

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cast"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/dataload/internal/model"
)

// ReadXLSX parses an in-memory XLSX workbook into a Table.
// The sheet_name option selects a sheet by name or index (default 0).
func ReadXLSX(data []byte, opts model.Options) (*model.Table, error) {
	f, err := xlsx.OpenBinary(data)
	if err != nil {
		return nil, &ParseError{Format: "xlsx", Err: err}
	}
	return xlsxTable(f, opts)
}

// ReadXLSXFile parses an XLSX workbook on disk into a Table.
func ReadXLSXFile(path string, opts model.Options) (*model.Table, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, &ParseError{Format: "xlsx", Err: err}
	}
	return xlsxTable(f, opts)
}

func xlsxTable(f *xlsx.File, opts model.Options) (*model.Table, error) {
	layout, err := layoutFrom(opts)
	if err != nil {
		return nil, err
	}
	sheet, err := getSheet(f, opts)
	if err != nil {
		return nil, err
	}

	records := make([][]string, 0, len(sheet.Rows))
	for _, row := range sheet.Rows {
		if row == nil {
			records = append(records, nil)
			continue
		}
		records = append(records, rowToStrings(row))
	}
	return buildTable("xlsx", records, layout)
}

func getSheet(f *xlsx.File, opts model.Options) (*xlsx.Sheet, error) {
	if len(f.Sheets) == 0 {
		return nil, &ParseError{Format: "xlsx", Err: eris.New("workbook has no sheets")}
	}
	v, ok := opts["sheet_name"]
	if !ok {
		return f.Sheets[0], nil
	}

	if name, isStr := v.(string); isStr {
		if sheet, found := f.Sheet[name]; found {
			return sheet, nil
		}
	}
	idx, err := cast.ToIntE(v)
	if err != nil {
		return nil, eris.Errorf("xlsx: sheet %v not found", v)
	}
	if idx < 0 || idx >= len(f.Sheets) {
		return nil, eris.Errorf("xlsx: sheet index %d out of range (file has %d sheets)", idx, len(f.Sheets))
	}
	return f.Sheets[idx], nil
}

func rowToStrings(row *xlsx.Row) []string {
	cells := make([]string, len(row.Cells))
	for j, cell := range row.Cells {
		cells[j] = cell.String()
	}
	return cells
}
