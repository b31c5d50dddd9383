package analysis

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Table is an ordered set of named columns of equal length. Cells hold the raw
// values handed over by a loader: nil, string, bool, any Go integer or float
// kind, or time.Time. A Table must not be mutated once passed to the pipeline.
type Table struct {
	Columns []Column `json:"columns"`
}

// Column is a named, ordered sequence of raw cells.
type Column struct {
	Name   string `json:"name"`
	Values []any  `json:"values"`
}

// NewTableFromRecords builds a Table from a header and text rows. Short rows
// are padded with empty cells; extra cells are dropped.
func NewTableFromRecords(header []string, rows [][]string) *Table {
	t := &Table{Columns: make([]Column, len(header))}
	for i, h := range header {
		t.Columns[i] = Column{Name: h, Values: make([]any, len(rows))}
	}
	for r, rec := range rows {
		for c := range header {
			if c < len(rec) {
				t.Columns[c].Values[r] = rec[c]
			} else {
				t.Columns[c].Values[r] = ""
			}
		}
	}
	return t
}

// Rows returns the number of rows (length of the first column).
func (t *Table) Rows() int {
	if t == nil || len(t.Columns) == 0 {
		return 0
	}
	return len(t.Columns[0].Values)
}

// Column returns the column with the given name.
func (t *Table) Column(name string) (Column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// Check verifies the structural contract of a Table: at least one column,
// unique non-empty names, equal lengths, and supported cell types.
func (t *Table) Check() error {
	if t == nil || len(t.Columns) == 0 {
		return &MalformedTableError{Reason: "table has no columns"}
	}
	n := len(t.Columns[0].Values)
	seen := make(map[string]struct{}, len(t.Columns))
	for i, c := range t.Columns {
		if strings.TrimSpace(c.Name) == "" {
			return &MalformedTableError{Column: fmt.Sprintf("#%d", i+1), Reason: "column name is empty"}
		}
		if _, dup := seen[c.Name]; dup {
			return &MalformedTableError{Column: c.Name, Reason: "duplicate column name"}
		}
		seen[c.Name] = struct{}{}
		if len(c.Values) != n {
			return &MalformedTableError{Column: c.Name, Reason: fmt.Sprintf("has %d values, expected %d", len(c.Values), n)}
		}
		for r, v := range c.Values {
			if !supportedCell(v) {
				return &MalformedTableError{Column: c.Name, Reason: fmt.Sprintf("row %d: unsupported cell type %T", r+1, v)}
			}
		}
	}
	return nil
}

func supportedCell(v any) bool {
	switch v.(type) {
	case nil, string, bool, time.Time,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return true
	}
	return false
}

// nullTokens are text values treated as missing.
var nullTokens = map[string]struct{}{
	"": {}, "null": {}, "NULL": {}, "Null": {}, "N/A": {}, "n/a": {}, "NA": {},
	"None": {}, "none": {}, "NaN": {}, "nan": {}, "-": {},
}

// cellText returns the trimmed textual form of a cell and whether it is null.
func cellText(v any) (string, bool) {
	switch x := v.(type) {
	case nil:
		return "", true
	case string:
		s := strings.TrimSpace(strings.ReplaceAll(x, "\u00A0", " "))
		if _, ok := nullTokens[s]; ok {
			return "", true
		}
		return s, false
	case time.Time:
		if x.IsZero() {
			return "", true
		}
		return x.Format(time.RFC3339), false
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64), false
	case float32:
		return strconv.FormatFloat(float64(x), 'g', -1, 32), false
	default:
		return fmt.Sprint(x), false
	}
}

// cellNumber coerces a cell to a number.
func cellNumber(v any) (float64, bool) {
	switch x := v.(type) {
	case nil, bool, time.Time:
		return 0, false
	case float64:
		return x, !isNaNOrInf(x)
	case float32:
		return float64(x), !isNaNOrInf(float64(x))
	case int:
		return float64(x), true
	case int8:
		return float64(x), true
	case int16:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case uint:
		return float64(x), true
	case uint8:
		return float64(x), true
	case uint16:
		return float64(x), true
	case uint32:
		return float64(x), true
	case uint64:
		return float64(x), true
	case string:
		s, null := cellText(x)
		if null {
			return 0, false
		}
		return parseNumeric(s)
	}
	return 0, false
}

// cellTime coerces a cell to a timestamp.
func cellTime(v any) (time.Time, bool) {
	switch x := v.(type) {
	case time.Time:
		return x, !x.IsZero()
	case string:
		s, null := cellText(x)
		if null {
			return time.Time{}, false
		}
		return parseTimeMaybe(s)
	}
	return time.Time{}, false
}

func isNaNOrInf(f float64) bool { return math.IsNaN(f) || math.IsInf(f, 0) }

// finite reports whether none of xs overflowed or went undefined.
func finite(xs ...float64) bool {
	for _, x := range xs {
		if isNaNOrInf(x) {
			return false
		}
	}
	return true
}

// parseNumeric parses numbers written with currency symbols, percent signs,
// and either '.' or ',' as decimal separator.
func parseNumeric(s string) (float64, bool) {
	raw := strings.TrimSpace(s)
	neg := false
	if strings.HasPrefix(raw, "(") && strings.HasSuffix(raw, ")") {
		neg = true
		raw = raw[1 : len(raw)-1]
	}
	if strings.HasPrefix(raw, "-") {
		neg = !neg
		raw = raw[1:]
	}
	raw = strings.TrimSuffix(raw, "%")
	for _, sym := range []string{"$", "€", "£", "¥"} {
		raw = strings.TrimPrefix(raw, sym)
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}
	cpos := strings.LastIndex(raw, ",")
	dpos := strings.LastIndex(raw, ".")
	dec := '.'
	if cpos >= 0 && dpos >= 0 {
		if cpos > dpos {
			dec = ','
		}
	} else if cpos >= 0 && strings.Count(raw, ",") == 1 && len(raw)-cpos-1 != 3 {
		// "0,5" is a decimal; "1,000" is a thousands group
		dec = ','
	}
	for _, sep := range []rune{',', '.', ' '} {
		if sep != dec {
			raw = strings.ReplaceAll(raw, string(sep), "")
		}
	}
	if dec != '.' {
		raw = strings.ReplaceAll(raw, string(dec), ".")
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || isNaNOrInf(f) {
		return 0, false
	}
	if neg {
		f = -f
	}
	return f, true
}

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02",
	"2006/01/02",
	"2006-01-02 15:04",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"01/02/2006",
	"02/01/2006",
	"1/2/2006",
	"1/2/2006 15:04",
	"1/2/2006 15:04:05",
	"01-02-2006",
	"2 Jan 2006",
	"02 Jan 2006",
	"Jan 2, 2006",
	"January 2, 2006",
	"Jan-2006",
	"January 2006",
	"2006-01",
}

func parseTimeMaybe(s string) (time.Time, bool) {
	for _, l := range timeLayouts {
		if t, err := time.Parse(l, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
