package analysis

import (
	"bytes"
	"errors"
	"fmt"
	"testing"

	json "github.com/goccy/go-json"
	"pgregory.net/rapid"
)

func scenarioOneTable() *Table {
	return &Table{Columns: []Column{
		{Name: "region", Values: []any{"A", "A", "A", "B"}},
		{Name: "sales", Values: []any{10, 10, 10, 100}},
	}}
}

func TestRunScenarioHighSegmentIsGood(t *testing.T) {
	opt := DefaultOptions()
	opt.MinRows = 4
	opt.AnomalyMinGroups = 2
	opt.AnomalyZThreshold = 0.9

	res, err := Run(scenarioOneTable(), RoleMapping{"region": RoleDimension}, opt)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !res.Sufficient() {
		t.Fatalf("insufficient: %v", res.Validation.Reasons)
	}
	var high *AnomalyFlag
	for i := range res.Anomalies {
		if res.Anomalies[i].DimensionValue == "B" {
			high = &res.Anomalies[i]
		}
	}
	if high == nil || high.Direction != DirectionHigh {
		t.Fatalf("B not flagged high: %+v", res.Anomalies)
	}
	good := byCategory(res.Insights, CategoryGood)
	if len(good) == 0 || good[0].Segment != "B" || good[0].Kind != KindAnomaly {
		t.Fatalf("B should lead the good points: %+v", good)
	}
}

func TestRunScenarioDefaultsTwoGroups(t *testing.T) {
	opt := DefaultOptions()
	opt.MinRows = 4
	res, err := Run(scenarioOneTable(), RoleMapping{"region": RoleDimension}, opt)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(res.Anomalies) != 0 {
		t.Fatalf("two groups are below anomaly_min_groups: %+v", res.Anomalies)
	}
	good := byCategory(res.Insights, CategoryGood)
	imp := byCategory(res.Insights, CategoryImprovement)
	if len(good) != 1 || good[0].Segment != "B" || len(imp) != 1 || imp[0].Segment != "A" {
		t.Fatalf("good=%+v improvement=%+v", good, imp)
	}
}

func TestRunNoMetricReturnsValidation(t *testing.T) {
	tbl := NewTableFromRecords([]string{"customer_id"}, [][]string{{"c-1"}, {"c-2"}, {"c-3"}, {"c-4"}, {"c-5"}, {"c-6"}})
	res, err := Run(tbl, nil, DefaultOptions())
	if err != nil {
		t.Fatalf("insufficiency is not an error: %v", err)
	}
	if res.Sufficient() || res.Validation.Reasons[0] != "no metric column mapped" {
		t.Fatalf("validation: %+v", res.Validation)
	}
	if res.Insights != nil || res.Aggregations != nil {
		t.Fatalf("nothing should be computed past validation")
	}
}

func TestRunZeroRevenueRatioOmitted(t *testing.T) {
	tbl := NewTableFromRecords([]string{"region", "profit", "revenue"}, [][]string{
		{"A", "10", "0"}, {"B", "10", "0"}, {"A", "10", "0"}, {"B", "10", "0"}, {"C", "10", "0"},
	})
	res, err := Run(tbl, RoleMapping{"region": RoleDimension}, DefaultOptions())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	for _, k := range res.KPIs {
		if k.Name == "profit / revenue" {
			t.Fatalf("zero-sum denominator must not produce a KPI")
		}
	}
}

func TestRunOverflowingSumsAreLeftOut(t *testing.T) {
	tbl := NewTableFromRecords([]string{"region", "sales", "units"}, [][]string{
		{"A", "1e308", "1"}, {"A", "1e308", "1"},
		{"B", "1", "1"}, {"C", "2", "1"}, {"D", "3", "1"},
		{"B", "1", "1"}, {"C", "2", "1"}, {"D", "3", "1"},
	})
	res, err := Run(tbl, RoleMapping{"region": RoleDimension}, DefaultOptions())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !res.Sufficient() {
		t.Fatalf("insufficient: %v", res.Validation.Reasons)
	}
	for _, a := range res.Aggregations {
		for _, r := range a.Rows {
			if a.Metric == "sales" && r.DimensionValue == "A" {
				t.Fatalf("overflowing group kept: %+v", r)
			}
		}
	}
	for _, k := range res.KPIs {
		switch k.Name {
		case "sales / units", "units / sales", "Total sales":
			t.Fatalf("KPI over an overflowing total kept: %+v", k)
		}
	}
	if _, ok := findKPI(res.KPIs, "Average sales"); !ok {
		t.Fatalf("average of large finite values should stay finite: %+v", res.KPIs)
	}
	if _, err := json.Marshal(res); err != nil {
		t.Fatalf("result must stay encodable: %v", err)
	}
}

func TestRunConfigurationError(t *testing.T) {
	opt := DefaultOptions()
	opt.TopK = -1
	_, err := Run(salesTable(), nil, opt)
	var ce *ConfigurationError
	if !errors.As(err, &ce) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
	if ce.Option != "top_k" {
		t.Fatalf("option = %q", ce.Option)
	}

	opt = DefaultOptions()
	opt.KPIChange.Issue = 0
	_, err = Run(salesTable(), nil, opt)
	if !errors.As(err, &ce) || ce.Option != "kpi_change_thresholds.issue" {
		t.Fatalf("expected threshold ordering error, got %v", err)
	}
}

func TestRunMalformedTable(t *testing.T) {
	tbl := &Table{Columns: []Column{
		{Name: "a", Values: []any{1, 2, 3}},
		{Name: "b", Values: []any{1, 2}},
	}}
	_, err := Run(tbl, nil, DefaultOptions())
	var me *MalformedTableError
	if !errors.As(err, &me) || me.Column != "b" {
		t.Fatalf("expected malformed error on b, got %v", err)
	}
}

// genTable draws a table with one dimension and two metrics.
func genTable(t *rapid.T) *Table {
	n := rapid.IntRange(5, 60).Draw(t, "rows")
	labels := rapid.SliceOfN(rapid.SampledFrom([]string{"north", "south", "east", "west", "central", "online"}), n, n).Draw(t, "labels")
	sales := rapid.SliceOfN(rapid.IntRange(-500, 5000), n, n).Draw(t, "sales")
	units := rapid.SliceOfN(rapid.IntRange(0, 300), n, n).Draw(t, "units")
	tbl := &Table{Columns: []Column{
		{Name: "region", Values: make([]any, n)},
		{Name: "sales", Values: make([]any, n)},
		{Name: "units", Values: make([]any, n)},
	}}
	for i := 0; i < n; i++ {
		tbl.Columns[0].Values[i] = labels[i]
		tbl.Columns[1].Values[i] = sales[i]
		tbl.Columns[2].Values[i] = units[i]
	}
	return tbl
}

var genMapping = RoleMapping{"region": RoleDimension, "sales": RoleMetric, "units": RoleMetric}

func TestPropertySufficientWhenMapped(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		tbl := genTable(t)
		v := Validate(ProfileColumns(tbl, DefaultOptions()), genMapping, DefaultOptions())
		if !v.Sufficient {
			t.Fatalf("expected sufficient, reasons: %v", v.Reasons)
		}
	})
}

func TestPropertyRanksContiguous(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		res, err := Run(genTable(t), genMapping, DefaultOptions())
		if err != nil {
			t.Fatalf("run: %v", err)
		}
		for _, a := range res.Aggregations {
			for i, r := range a.Rows {
				if r.Rank != i+1 {
					t.Fatalf("%s/%s: rank %d at position %d", a.Dimension, a.Metric, r.Rank, i)
				}
				if i > 0 && a.Rows[i-1].Value < r.Value {
					t.Fatalf("%s/%s not descending", a.Dimension, a.Metric)
				}
			}
		}
	})
}

func TestPropertyAnomalyMirror(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		vals := rapid.SliceOfN(rapid.IntRange(-1000, 1000), 3, 30).Draw(t, "values")
		pos := make([]float64, len(vals))
		neg := make([]float64, len(vals))
		for i, v := range vals {
			pos[i], neg[i] = float64(v), -float64(v)
		}
		a := DetectAnomalies([]Aggregation{aggregationOf(pos...)}, DefaultOptions())
		b := DetectAnomalies([]Aggregation{aggregationOf(neg...)}, DefaultOptions())
		if len(a) != len(b) {
			t.Fatalf("flag counts differ: %d vs %d", len(a), len(b))
		}
		for i := range a {
			if a[i].DimensionValue != b[i].DimensionValue || a[i].Direction == b[i].Direction || a[i].DeviationScore != -b[i].DeviationScore {
				t.Fatalf("not mirrored: %+v vs %+v", a[i], b[i])
			}
		}
	})
}

func TestPropertyIdempotent(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		tbl := genTable(t)
		r1, err := Run(tbl, genMapping, DefaultOptions())
		if err != nil {
			t.Fatalf("run: %v", err)
		}
		r2, _ := Run(tbl, genMapping, DefaultOptions())
		b1, _ := json.Marshal(r1.Insights)
		b2, _ := json.Marshal(r2.Insights)
		if !bytes.Equal(b1, b2) {
			t.Fatalf("runs differ")
		}
	})
}

func TestPropertyFactsTraceable(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		opt := DefaultOptions()
		opt.AnomalyZThreshold = rapid.Float64Range(0.5, 3).Draw(t, "z")
		res, err := Run(genTable(t), genMapping, opt)
		if err != nil {
			t.Fatalf("run: %v", err)
		}
		values := map[string][]float64{}
		for _, a := range res.Aggregations {
			for _, r := range a.Rows {
				values[r.ID] = []float64{r.Value, r.Sum, r.Mean, float64(r.Count), float64(r.Rank)}
			}
		}
		for _, f := range res.Anomalies {
			values[f.ID] = []float64{f.Observed, f.Expected, f.StdDev, f.DeviationScore}
		}
		for _, k := range res.KPIs {
			vs := []float64{k.Value}
			if k.Period != nil {
				vs = append(vs, k.Period.PreviousValue, k.Period.CurrentValue)
			}
			values[k.ID] = vs
		}
		for _, in := range res.Insights {
			for _, f := range in.Facts {
				if !contains(values[f.Source], f.Value) {
					t.Fatalf("fact %s=%v of %s not found in %s", f.Name, f.Value, in.ID, f.Source)
				}
			}
			for _, e := range in.Evidence {
				if _, ok := values[e.ID]; !ok {
					t.Fatalf("dangling evidence %s", fmt.Sprint(e))
				}
			}
		}
	})
}

func contains(xs []float64, v float64) bool {
	for _, x := range xs {
		if x == v {
			return true
		}
	}
	return false
}
