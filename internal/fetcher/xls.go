package fetcher

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/extrame/xls"
	"github.com/rotisserie/eris"
	"github.com/spf13/cast"

	"github.com/sells-group/dataload/internal/model"
)

// ReadXLS parses an in-memory legacy BIFF (.xls) workbook into a Table.
// The sheet_name option selects a sheet by name or index (default 0).
func ReadXLS(data []byte, opts model.Options) (*model.Table, error) {
	return readXLS(bytes.NewReader(data), opts)
}

// ReadXLSFile parses a legacy .xls workbook on disk into a Table.
func ReadXLSFile(path string, opts model.Options) (*model.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "xls: open file")
	}
	defer f.Close() //nolint:errcheck
	return readXLS(f, opts)
}

func readXLS(r io.ReadSeeker, opts model.Options) (t *model.Table, err error) {
	layout, err := layoutFrom(opts)
	if err != nil {
		return nil, err
	}
	charset := "utf-8"
	if s, ok := opts.String("encoding"); ok {
		charset = s
	}

	// The BIFF reader panics on some malformed workbooks.
	defer func() {
		if p := recover(); p != nil {
			t, err = nil, &ParseError{Format: "xls", Err: fmt.Errorf("malformed workbook: %v", p)}
		}
	}()

	wb, err := xls.OpenReader(r, charset)
	if err != nil {
		return nil, &ParseError{Format: "xls", Err: err}
	}

	sheet, err := xlsSheet(wb, opts)
	if err != nil {
		return nil, err
	}

	var records [][]string
	if sheet.MaxRow > 0 || sheet.Row(0) != nil {
		for i := 0; i <= int(sheet.MaxRow); i++ {
			row := sheet.Row(i)
			if row == nil {
				records = append(records, nil)
				continue
			}
			cells := make([]string, 0, row.LastCol())
			for j := 0; j < row.LastCol(); j++ {
				cells = append(cells, row.Col(j))
			}
			records = append(records, cells)
		}
	}
	return buildTable("xls", records, layout)
}

func xlsSheet(wb *xls.WorkBook, opts model.Options) (*xls.WorkSheet, error) {
	if wb.NumSheets() == 0 {
		return nil, &ParseError{Format: "xls", Err: eris.New("workbook has no sheets")}
	}
	v, ok := opts["sheet_name"]
	if !ok {
		return wb.GetSheet(0), nil
	}

	if name, isStr := v.(string); isStr {
		for i := 0; i < wb.NumSheets(); i++ {
			if s := wb.GetSheet(i); s != nil && s.Name == name {
				return s, nil
			}
		}
	}
	idx, err := cast.ToIntE(v)
	if err != nil {
		return nil, eris.Errorf("xls: sheet %v not found", v)
	}
	sheet := wb.GetSheet(idx)
	if sheet == nil {
		return nil, eris.Errorf("xls: sheet index %d out of range (file has %d sheets)", idx, wb.NumSheets())
	}
	return sheet, nil
}
