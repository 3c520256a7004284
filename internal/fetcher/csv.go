package fetcher

import (
	"encoding/csv"
	"io"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/sells-group/dataload/internal/model"
)

// CSVOptions configures the delimited-text parser.
type CSVOptions struct {
	Delimiter  rune   // default ','
	Comment    rune   // comment character (0 = none)
	Encoding   string // source charset, e.g. "latin1"; default UTF-8
	LazyQuotes bool
}

// CSVOptionsFrom reads delimiter/sep, comment, encoding and lazy_quotes from opts.
func CSVOptionsFrom(opts model.Options) (CSVOptions, error) {
	var o CSVOptions
	if s, ok := opts.String("delimiter", "sep"); ok {
		if s == `\t` {
			s = "\t"
		}
		r, size := utf8.DecodeRuneInString(s)
		if size == 0 || size != len(s) {
			return o, eris.Errorf("options: delimiter must be a single character, got %q", s)
		}
		o.Delimiter = r
	}
	if s, ok := opts.String("comment"); ok && s != "" {
		r, _ := utf8.DecodeRuneInString(s)
		o.Comment = r
	}
	if s, ok := opts.String("encoding"); ok {
		o.Encoding = s
	}
	lazy, err := opts.Bool("lazy_quotes")
	if err != nil {
		return o, err
	}
	o.LazyQuotes = lazy
	return o, nil
}

// ReadCSV parses delimited text into a Table. Header, skiprows, nrows and
// names options are honored; the first row is the header by default.
func ReadCSV(r io.Reader, opts model.Options) (*model.Table, error) {
	co, err := CSVOptionsFrom(opts)
	if err != nil {
		return nil, err
	}
	layout, err := layoutFrom(opts)
	if err != nil {
		return nil, err
	}

	decoded, err := decodeCharset(r, co.Encoding)
	if err != nil {
		return nil, err
	}

	reader := csv.NewReader(decoded)
	if co.Delimiter != 0 {
		reader.Comma = co.Delimiter
	}
	if co.Comment != 0 {
		reader.Comment = co.Comment
	}
	reader.LazyQuotes = co.LazyQuotes
	reader.FieldsPerRecord = -1 // allow variable fields

	records, err := reader.ReadAll()
	if err != nil {
		return nil, &ParseError{Format: "csv", Err: err}
	}
	return buildTable("csv", records, layout)
}

// decodeCharset strips a byte-order mark and converts the input to UTF-8.
func decodeCharset(r io.Reader, charset string) (io.Reader, error) {
	fallback := unicode.UTF8.NewDecoder()
	if charset != "" {
		enc, err := htmlindex.Get(charset)
		if err != nil {
			return nil, eris.Wrapf(err, "csv: unsupported encoding %q", charset)
		}
		fallback = enc.NewDecoder()
	}
	return transform.NewReader(r, unicode.BOMOverride(fallback)), nil
}
