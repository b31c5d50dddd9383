package parser_test

import (
	"bytes"
	"testing"
	"time"

	"github.com/KaramelBytes/insightloom/internal/analysis"
	"github.com/KaramelBytes/insightloom/internal/parser"
)

func TestSampleDeterministicAndAnalyzable(t *testing.T) {
	a, b := parser.Sample(200, 7), parser.Sample(200, 7)
	ca, err := parser.EncodeCSV(a.Table)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	cb, _ := parser.EncodeCSV(b.Table)
	if !bytes.Equal(ca, cb) {
		t.Fatalf("same seed should give the same table")
	}
	if other, _ := parser.EncodeCSV(parser.Sample(200, 8).Table); bytes.Equal(ca, other) {
		t.Fatalf("different seeds should differ")
	}
	if a.Name != parser.SampleName || a.Table.Rows() != 200 || len(a.Table.Columns) != 12 {
		t.Fatalf("sample shape: %s rows=%d cols=%d", a.Name, a.Table.Rows(), len(a.Table.Columns))
	}
	d, _ := a.Table.Column("date")
	for _, v := range d.Values {
		ts := v.(time.Time)
		if ts.Year() != 2023 {
			t.Fatalf("date outside 2023: %v", ts)
		}
	}

	res, err := analysis.Run(a.Table, nil, analysis.DefaultOptions())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !res.Sufficient() || len(res.Insights) == 0 {
		t.Fatalf("sample should be analyzable: %v", res.Validation.Reasons)
	}
	if res.Mapping["date"] != analysis.RoleDate || res.Mapping["spend"] != analysis.RoleMetric {
		t.Fatalf("mapping: %v", res.Mapping)
	}
}

func TestSampleCSVRoundTrip(t *testing.T) {
	body, err := parser.EncodeCSV(parser.Sample(20, 1).Table)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	p := writeFile(t, parser.SampleName, string(body))
	ds, err := parser.LoadFile(p, parser.LoadOptions{})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if ds.Table.Rows() != 20 || ds.Table.Columns[0].Name != "date" || ds.Table.Columns[11].Name != "roi" {
		t.Fatalf("reloaded: rows=%d cols=%v", ds.Table.Rows(), ds.Table.Columns[0].Name)
	}
}
