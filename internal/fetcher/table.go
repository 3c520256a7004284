package fetcher

import (
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/dataload/internal/model"
)

// tableLayout holds the options shared by all tabular decoders.
type tableLayout struct {
	header   int // -1 when the data has no header row
	skipRows int
	nRows    int // -1 for all
	names    []string
}

func layoutFrom(opts model.Options) (tableLayout, error) {
	l := tableLayout{header: 0, nRows: -1}

	if s, ok := opts.String("header"); ok {
		switch strings.ToLower(strings.TrimSpace(s)) {
		case "none", "null", "false", "-1":
			l.header = -1
		default:
			n, err := strconv.Atoi(strings.TrimSpace(s))
			if err != nil || n < 0 {
				return l, eris.Errorf("options: header must be a row index or none, got %q", s)
			}
			l.header = n
		}
	}

	n, ok, err := opts.Int("skiprows")
	if err != nil {
		return l, err
	}
	if ok {
		l.skipRows = max(n, 0)
	}

	n, ok, err = opts.Int("nrows")
	if err != nil {
		return l, err
	}
	if ok {
		l.nRows = max(n, 0)
	}

	if names, ok := opts.Strings("names"); ok {
		l.names = names
		// Explicit names mean the data has no header row unless one is given.
		if !opts.Has("header") {
			l.header = -1
		}
	}
	return l, nil
}

// buildTable turns raw records into a Table: rows before the header are
// dropped, duplicate and blank column names are made unique, and rows
// wider than the header are rejected.
func buildTable(format string, records [][]string, l tableLayout) (*model.Table, error) {
	records = records[min(l.skipRows, len(records)):]

	var columns []string
	data := records
	if l.header >= 0 {
		if l.header >= len(records) {
			if len(l.names) == 0 {
				return nil, &ParseError{Format: format, Err: eris.New("no columns to parse")}
			}
			data = nil
		} else {
			columns = records[l.header]
			data = records[l.header+1:]
		}
	}
	if len(l.names) > 0 {
		columns = l.names
	}
	if columns == nil {
		width := 0
		for _, r := range data {
			width = max(width, len(r))
		}
		if width == 0 {
			return nil, &ParseError{Format: format, Err: eris.New("no columns to parse")}
		}
		columns = make([]string, width)
		for i := range columns {
			columns[i] = strconv.Itoa(i)
		}
	}

	if l.nRows >= 0 && l.nRows < len(data) {
		data = data[:l.nRows]
	}

	for i, r := range data {
		if len(r) > len(columns) && !blankTail(r[len(columns):]) {
			return nil, &ParseError{
				Format: format,
				Err:    eris.Errorf("row %d has %d fields, expected %d", i+1, len(r), len(columns)),
			}
		}
	}

	rows := make([][]string, len(data))
	copy(rows, data)
	return model.NewTable(uniqueColumns(columns), rows), nil
}

func blankTail(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func uniqueColumns(columns []string) []string {
	out := make([]string, len(columns))
	seen := make(map[string]int, len(columns))
	for i, c := range columns {
		c = strings.TrimSpace(c)
		if c == "" {
			c = "Unnamed: " + strconv.Itoa(i)
		}
		if n, dup := seen[c]; dup {
			seen[c] = n + 1
			c = c + "." + strconv.Itoa(n+1)
		} else {
			seen[c] = 0
		}
		out[i] = c
	}
	return out
}
