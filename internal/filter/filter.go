// Package filter applies numeric threshold predicates to tables and reports
// how many rows each stage keeps.
package filter

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/dataload/internal/model"
)

// Op is a comparison operator.
type Op string

const (
	GE Op = ">="
	LE Op = "<="
	GT Op = ">"
	LT Op = "<"
	EQ Op = "=="
	NE Op = "!="
)

// exprPattern matches "column OP number". Two-character operators are
// listed first so ">=" is not read as ">" followed by "=1000".
var exprPattern = regexp.MustCompile(`^\s*(.+?)\s*(>=|<=|==|!=|>|<)\s*(\S+)\s*$`)

// Predicate is a parsed "column OP number" expression.
type Predicate struct {
	Column string
	Op     Op
	Value  float64
}

func (p Predicate) String() string {
	return p.Column + " " + string(p.Op) + " " + strconv.FormatFloat(p.Value, 'f', -1, 64)
}

// Match reports whether v satisfies the predicate.
func (p Predicate) Match(v float64) bool {
	switch p.Op {
	case GE:
		return v >= p.Value
	case LE:
		return v <= p.Value
	case GT:
		return v > p.Value
	case LT:
		return v < p.Value
	case EQ:
		return v == p.Value
	case NE:
		return v != p.Value
	}
	return false
}

// Parse parses an expression such as "TDS_mgL>=1000".
func Parse(expr string) (Predicate, error) {
	m := exprPattern.FindStringSubmatch(expr)
	if m == nil {
		return Predicate{}, eris.Errorf("filter: %q is not of the form \"column OP number\"", expr)
	}
	v, err := strconv.ParseFloat(m[3], 64)
	if err != nil {
		return Predicate{}, eris.Errorf("filter: %q: threshold %q is not a number", expr, m[3])
	}
	return Predicate{Column: m[1], Op: Op(m[2]), Value: v}, nil
}

// ParseAll parses each expression in order.
func ParseAll(exprs []string) ([]Predicate, error) {
	preds := make([]Predicate, 0, len(exprs))
	for _, e := range exprs {
		if strings.TrimSpace(e) == "" {
			continue
		}
		p, err := Parse(e)
		if err != nil {
			return nil, err
		}
		preds = append(preds, p)
	}
	return preds, nil
}

// MissingColumnError is returned when a predicate names a column the table lacks.
type MissingColumnError struct {
	Column string
}

func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("filter: column %q not found", e.Column)
}

// Stage records the row counts around one predicate.
type Stage struct {
	Predicate Predicate
	Before    int
	After     int
	Excluded  int
}

// Result is the outcome of Apply. Kept holds the surviving row indices in
// their original order.
type Result struct {
	Total  int
	Kept   []int
	Stages []Stage
}

// Apply runs the predicates in order. Empty or non-numeric cells never match.
// Every column is checked before any row is evaluated.
func Apply(t *model.Table, preds []Predicate) (Result, error) {
	cols := make([]int, len(preds))
	for i, p := range preds {
		idx, ok := t.ColumnIndex(p.Column)
		if !ok {
			return Result{}, &MissingColumnError{Column: p.Column}
		}
		cols[i] = idx
	}

	kept := make([]int, t.Len())
	for i := range kept {
		kept[i] = i
	}
	res := Result{Total: t.Len(), Stages: make([]Stage, 0, len(preds))}

	for i, p := range preds {
		before := len(kept)
		next := kept[:0:0]
		for _, row := range kept {
			v, err := t.Float(row, cols[i])
			if err != nil {
				continue
			}
			if p.Match(v) {
				next = append(next, row)
			}
		}
		kept = next
		res.Stages = append(res.Stages, Stage{
			Predicate: p,
			Before:    before,
			After:     len(kept),
			Excluded:  before - len(kept),
		})
		zap.L().Debug("filter: stage applied",
			zap.String("predicate", p.String()),
			zap.Int("before", before),
			zap.Int("after", len(kept)),
		)
	}
	res.Kept = kept
	return res, nil
}
