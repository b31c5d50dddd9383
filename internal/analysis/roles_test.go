package analysis

import (
	"strings"
	"testing"
)

func salesTable() *Table {
	return NewTableFromRecords(
		[]string{"region", "sales", "visits", "note"},
		[][]string{
			{"A", "10", "100", "first note"},
			{"A", "10", "110", "second note"},
			{"A", "10", "90", "third note"},
			{"B", "100", "120", "fourth note"},
			{"B", "20", "80", "fifth note"},
			{"C", "30", "95", "sixth note"},
		},
	)
}

func TestDefaultMappingFollowsTypes(t *testing.T) {
	ps := ProfileColumns(salesTable(), DefaultOptions())
	m := DefaultMapping(ps)
	want := RoleMapping{"region": RoleDimension, "sales": RoleMetric, "visits": RoleMetric, "note": RoleIgnored}
	for k, v := range want {
		if m[k] != v {
			t.Fatalf("%s: role=%s, want %s", k, m[k], v)
		}
	}
}

func TestValidateSufficient(t *testing.T) {
	ps := ProfileColumns(salesTable(), DefaultOptions())
	v := Validate(ps, nil, DefaultOptions())
	if !v.Sufficient || len(v.Reasons) != 0 {
		t.Fatalf("expected sufficient, got %+v", v)
	}
}

func TestValidateOverrideApplied(t *testing.T) {
	ps := ProfileColumns(salesTable(), DefaultOptions())
	v := Validate(ps, RoleMapping{"visits": RoleIgnored}, DefaultOptions())
	if !v.Sufficient {
		t.Fatalf("unexpected reasons: %v", v.Reasons)
	}
	if v.Mapping["visits"] != RoleIgnored || v.Mapping["sales"] != RoleMetric {
		t.Fatalf("mapping: %v", v.Mapping)
	}
}

func TestValidateNoMetric(t *testing.T) {
	tbl := NewTableFromRecords([]string{"id"}, [][]string{{"a1"}, {"a2"}, {"a3"}, {"a4"}, {"a5"}})
	ps := ProfileColumns(tbl, DefaultOptions())
	v := Validate(ps, nil, DefaultOptions())
	if v.Sufficient {
		t.Fatalf("expected insufficient")
	}
	if v.Reasons[0] != "no metric column mapped" {
		t.Fatalf("first reason = %q", v.Reasons[0])
	}
	if len(v.Reasons) != len(v.RequiredActions) {
		t.Fatalf("reasons and actions out of step: %v / %v", v.Reasons, v.RequiredActions)
	}
}

func TestValidateRuleOrderAndHints(t *testing.T) {
	ps := ProfileColumns(salesTable(), DefaultOptions())
	override := RoleMapping{"sales": RoleIgnored, "visits": RoleIgnored, "region": RoleIgnored}
	v := Validate(ps, override, DefaultOptions())
	if len(v.Reasons) != 2 {
		t.Fatalf("expected 2 reasons, got %v", v.Reasons)
	}
	if v.Reasons[0] != "no metric column mapped" || !strings.Contains(v.Reasons[1], "no dimension or date column") {
		t.Fatalf("reasons out of order: %v", v.Reasons)
	}
	if v.RequiredActions[0] != `map column "sales" as metric` {
		t.Fatalf("metric hint = %q", v.RequiredActions[0])
	}
	if v.RequiredActions[1] != `map column "region" as dimension` {
		t.Fatalf("dimension hint = %q", v.RequiredActions[1])
	}
}

func TestValidateTooFewRows(t *testing.T) {
	tbl := NewTableFromRecords([]string{"g", "x"}, [][]string{{"a", "1"}, {"b", "2"}})
	ps := ProfileColumns(tbl, DefaultOptions())
	v := Validate(ps, RoleMapping{"g": RoleDimension}, DefaultOptions())
	if v.Sufficient || len(v.Reasons) != 1 || !strings.Contains(v.Reasons[0], "at least 5") {
		t.Fatalf("got %+v", v)
	}
}

func TestValidateNullMetric(t *testing.T) {
	tbl := NewTableFromRecords([]string{"g", "x"}, [][]string{
		{"a", "1"}, {"b", ""}, {"a", ""}, {"b", "4"}, {"a", ""}, {"b", ""},
	})
	ps := ProfileColumns(tbl, DefaultOptions())
	v := Validate(ps, RoleMapping{"x": RoleMetric, "g": RoleDimension}, DefaultOptions())
	if v.Sufficient {
		t.Fatalf("expected a mostly-null metric to fail validation")
	}
	if !strings.Contains(v.Reasons[0], `"x"`) {
		t.Fatalf("reason should name the column: %v", v.Reasons)
	}
}

func TestValidateUnknownColumnAndRole(t *testing.T) {
	ps := ProfileColumns(salesTable(), DefaultOptions())
	v := Validate(ps, RoleMapping{"nope": RoleMetric, "sales": Role("bogus")}, DefaultOptions())
	if v.Sufficient || len(v.Reasons) != 2 {
		t.Fatalf("got %+v", v)
	}
	if !strings.Contains(v.Reasons[0], "nope") || !strings.Contains(v.Reasons[1], "bogus") {
		t.Fatalf("reasons: %v", v.Reasons)
	}
}

func TestParseRole(t *testing.T) {
	for in, want := range map[string]Role{"Metric": RoleMetric, "dim": RoleDimension, " date ": RoleDate, "skip": RoleIgnored} {
		got, ok := ParseRole(in)
		if !ok || got != want {
			t.Fatalf("ParseRole(%q)=%s,%v", in, got, ok)
		}
	}
	if _, ok := ParseRole("weight"); ok {
		t.Fatalf("unexpected role")
	}
}
