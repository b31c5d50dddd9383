package analysis

import (
	"errors"
	"math"
	"testing"
	"time"
)

func TestParseNumericFormats(t *testing.T) {
	cases := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"42", 42, true},
		{"-3.5", -3.5, true},
		{"1,000", 1000, true},
		{"0,5", 0.5, true},
		{"1.000,5", 1000.5, true},
		{"1,234.50", 1234.5, true},
		{"$1,234.50", 1234.5, true},
		{"€99", 99, true},
		{"(12)", -12, true},
		{"45%", 45, true},
		{"1 000", 1000, true},
		{"abc", 0, false},
		{"12abc", 0, false},
		{"", 0, false},
		{"$", 0, false},
	}
	for _, c := range cases {
		got, ok := parseNumeric(c.in)
		if ok != c.ok {
			t.Fatalf("parseNumeric(%q) ok=%v, want %v", c.in, ok, c.ok)
		}
		if ok && math.Abs(got-c.want) > 1e-9 {
			t.Fatalf("parseNumeric(%q)=%v, want %v", c.in, got, c.want)
		}
	}
}

func TestCellTextNullTokens(t *testing.T) {
	for _, v := range []any{nil, "", "  ", "NULL", "n/a", "NaN", "-", " "} {
		if _, null := cellText(v); !null {
			t.Fatalf("expected %q to be null", v)
		}
	}
	if s, null := cellText("  East "); null || s != "East" {
		t.Fatalf("got %q null=%v", s, null)
	}
	if s, _ := cellText(3.25); s != "3.25" {
		t.Fatalf("float text: %q", s)
	}
}

func TestCellNumberKinds(t *testing.T) {
	for _, v := range []any{int(3), int64(3), uint8(3), float32(3), 3.0, "3"} {
		x, ok := cellNumber(v)
		if !ok || x != 3 {
			t.Fatalf("cellNumber(%T)=%v,%v", v, x, ok)
		}
	}
	for _, v := range []any{nil, true, time.Now(), math.NaN(), math.Inf(1), "n/a"} {
		if _, ok := cellNumber(v); ok {
			t.Fatalf("cellNumber(%v) should fail", v)
		}
	}
}

func TestParseTimeLayouts(t *testing.T) {
	for _, s := range []string{"2024-03-01", "2024/03/01", "03/01/2024", "1 Mar 2024", "Mar 1, 2024", "2024-03-01T10:00:00Z", "2024-03"} {
		if _, ok := parseTimeMaybe(s); !ok {
			t.Fatalf("expected %q to parse as a date", s)
		}
	}
	for _, s := range []string{"2024", "East", "12.5"} {
		if _, ok := parseTimeMaybe(s); ok {
			t.Fatalf("did not expect %q to parse as a date", s)
		}
	}
}

func TestNewTableFromRecordsPads(t *testing.T) {
	tbl := NewTableFromRecords([]string{"a", "b"}, [][]string{{"1", "2"}, {"3"}})
	if tbl.Rows() != 2 {
		t.Fatalf("rows=%d", tbl.Rows())
	}
	b, ok := tbl.Column("b")
	if !ok || b.Values[1] != "" {
		t.Fatalf("expected padded empty cell, got %#v", b.Values)
	}
	if err := tbl.Check(); err != nil {
		t.Fatalf("check: %v", err)
	}
}

func TestCheckMalformed(t *testing.T) {
	cases := map[string]*Table{
		"no columns": {},
		"unequal": {Columns: []Column{
			{Name: "a", Values: []any{1, 2}},
			{Name: "b", Values: []any{1}},
		}},
		"unsupported": {Columns: []Column{
			{Name: "a", Values: []any{1, []int{2}}},
		}},
		"duplicate": {Columns: []Column{
			{Name: "a", Values: []any{1}},
			{Name: "a", Values: []any{2}},
		}},
		"empty name": {Columns: []Column{
			{Name: " ", Values: []any{1}},
		}},
	}
	for name, tbl := range cases {
		err := tbl.Check()
		var me *MalformedTableError
		if !errors.As(err, &me) {
			t.Fatalf("%s: expected MalformedTableError, got %v", name, err)
		}
	}

	err := cases["unequal"].Check()
	var me *MalformedTableError
	errors.As(err, &me)
	if me.Column != "b" {
		t.Fatalf("expected offending column b, got %q", me.Column)
	}
}
