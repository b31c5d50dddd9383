package analysis

import (
	"math"
	"testing"
)

func kpisFor(t *testing.T, tbl *Table, opt Options) []KPIRecord {
	t.Helper()
	ps := ProfileColumns(tbl, opt)
	return DeriveKPIs(tbl, ps, DefaultMapping(ps), opt)
}

func findKPI(ks []KPIRecord, name string) (KPIRecord, bool) {
	for _, k := range ks {
		if k.Name == name {
			return k, true
		}
	}
	return KPIRecord{}, false
}

func TestRatioKPIZeroDenominatorOmitted(t *testing.T) {
	tbl := NewTableFromRecords([]string{"g", "profit", "revenue"}, [][]string{
		{"a", "10", "0"}, {"b", "10", "0"}, {"a", "10", "0"}, {"b", "10", "0"}, {"a", "10", "0"},
	})
	ks := kpisFor(t, tbl, DefaultOptions())
	if _, ok := findKPI(ks, "profit / revenue"); ok {
		t.Fatalf("ratio over a zero sum must be omitted")
	}
	k, ok := findKPI(ks, "revenue / profit")
	if !ok || k.Value != 0 || k.Kind != KPIRatio {
		t.Fatalf("revenue / profit: %+v ok=%v", k, ok)
	}
}

func TestMarketingKPIs(t *testing.T) {
	tbl := NewTableFromRecords(
		[]string{"campaign", "Spend ($)", "revenue", "clicks", "impressions", "conversions", "ctr"},
		[][]string{
			{"x", "60", "150", "30", "600", "6", "0.05"},
			{"y", "40", "100", "20", "400", "4", "0.05"},
		},
	)
	ks := kpisFor(t, tbl, DefaultOptions())
	want := map[string]float64{"ROI": 150, "CPA": 10, "CTR": 5, "CPC": 2}
	for name, v := range want {
		k, ok := findKPI(ks, name)
		if !ok {
			t.Fatalf("missing %s in %+v", name, ks)
		}
		if math.Abs(k.Value-v) > 1e-9 || k.Kind != KPIMarketing {
			t.Fatalf("%s = %+v, want %v", name, k, v)
		}
	}

	opt := DefaultOptions()
	opt.MarketingKPIs = false
	if _, ok := findKPI(kpisFor(t, tbl, opt), "ROI"); ok {
		t.Fatalf("marketing KPIs should be off")
	}
}

func TestPeriodKPIMonthly(t *testing.T) {
	tbl := NewTableFromRecords([]string{"date", "sales"}, [][]string{
		{"2024-01-01", "500"},
		{"2024-02-10", "100"},
		{"2024-03-05", "40"},
		{"2024-03-31", "30"},
	})
	k, ok := findKPI(kpisFor(t, tbl, DefaultOptions()), "sales month-over-month change")
	if !ok {
		t.Fatalf("missing monthly KPI")
	}
	p := k.Period
	if p.Granularity != GranularityMonth || p.Previous != "2024-02" || p.Current != "2024-03" {
		t.Fatalf("period: %+v", p)
	}
	if p.PreviousValue != 100 || p.CurrentValue != 70 || math.Abs(k.Value+30) > 1e-9 || k.Unit != "%" {
		t.Fatalf("kpi: %+v %+v", k, p)
	}
}

func TestPeriodKPISkipsIncompleteLatestMonth(t *testing.T) {
	tbl := NewTableFromRecords([]string{"date", "sales"}, [][]string{
		{"2024-01-01", "50"},
		{"2024-01-20", "50"},
		{"2024-02-14", "80"},
		{"2024-03-15", "999"},
	})
	k, ok := findKPI(kpisFor(t, tbl, DefaultOptions()), "sales month-over-month change")
	if !ok {
		t.Fatalf("missing monthly KPI")
	}
	if k.Period.Current != "2024-02" || k.Period.Previous != "2024-01" || math.Abs(k.Value+20) > 1e-9 {
		t.Fatalf("kpi: %+v %+v", k, k.Period)
	}
}

func TestPeriodKPIWeekly(t *testing.T) {
	tbl := NewTableFromRecords([]string{"date", "sales"}, [][]string{
		{"2024-03-04", "1"},
		{"2024-03-12", "10"},
		{"2024-03-17", "10"},
		{"2024-03-18", "30"},
		{"2024-03-24", "0"},
	})
	k, ok := findKPI(kpisFor(t, tbl, DefaultOptions()), "sales week-over-week change")
	if !ok {
		t.Fatalf("missing weekly KPI")
	}
	if k.Period.Previous != "2024-03-11" || k.Period.Current != "2024-03-18" || math.Abs(k.Value-50) > 1e-9 {
		t.Fatalf("kpi: %+v %+v", k, k.Period)
	}
}

func TestPeriodKPIEmptyBucketOmitted(t *testing.T) {
	tbl := NewTableFromRecords([]string{"date", "sales"}, [][]string{
		{"2024-03-01", "1"},
		{"2024-03-03", "2"},
		{"2024-03-05", "3"},
	})
	for _, k := range kpisFor(t, tbl, DefaultOptions()) {
		if k.Kind == KPIPeriodDelta {
			t.Fatalf("empty previous day should omit the KPI: %+v", k)
		}
	}
}

func TestPeriodKPIZeroPreviousOmitted(t *testing.T) {
	tbl := NewTableFromRecords([]string{"date", "sales"}, [][]string{
		{"2024-03-01", "1"},
		{"2024-03-02", "0"},
		{"2024-03-03", "5"},
	})
	for _, k := range kpisFor(t, tbl, DefaultOptions()) {
		if k.Kind == KPIPeriodDelta {
			t.Fatalf("zero previous value should omit the KPI: %+v", k)
		}
	}
}

func TestSummaryKPIs(t *testing.T) {
	tbl := NewTableFromRecords([]string{"g", "sales"}, [][]string{
		{"a", "10"}, {"b", "20"}, {"a", ""}, {"b", "30"},
	})
	ks := kpisFor(t, tbl, DefaultOptions())
	total, ok := findKPI(ks, "Total sales")
	if !ok || total.Value != 60 || total.Kind != KPITotal {
		t.Fatalf("total: %+v ok=%v", total, ok)
	}
	avg, ok := findKPI(ks, "Average sales")
	if !ok || avg.Value != 20 || avg.Kind != KPIMean {
		t.Fatalf("average: %+v ok=%v", avg, ok)
	}
}

func TestPeakPeriodKPI(t *testing.T) {
	tbl := NewTableFromRecords([]string{"date", "sales"}, [][]string{
		{"2024-03-04", "5"},
		{"2024-03-06", "5"},
		{"2024-03-12", "40"},
		{"2024-03-19", "40"},
		{"2024-03-20", "1"},
	})
	k, ok := findKPI(kpisFor(t, tbl, DefaultOptions()), "Highest sales week")
	if !ok {
		t.Fatalf("missing peak KPI")
	}
	if k.Kind != KPIPeak || k.Value != 41 || k.Period.Current != "2024-03-18" || k.Period.Granularity != GranularityWeek {
		t.Fatalf("peak: %+v %+v", k, k.Period)
	}

	tie := NewTableFromRecords([]string{"date", "sales"}, [][]string{
		{"2024-03-01", "7"}, {"2024-03-02", "7"}, {"2024-03-03", "3"},
	})
	k, ok = findKPI(kpisFor(t, tie, DefaultOptions()), "Highest sales day")
	if !ok || k.Period.Current != "2024-03-01" || k.Value != 7 {
		t.Fatalf("earliest period should win a tie: %+v", k)
	}

	single := NewTableFromRecords([]string{"date", "sales"}, [][]string{
		{"2024-03-01", "1"}, {"2024-03-01", "2"},
	})
	if _, ok := findKPI(kpisFor(t, single, DefaultOptions()), "Highest sales day"); ok {
		t.Fatalf("a single period has no peak")
	}
}

func TestDepthPresets(t *testing.T) {
	d, err := ParseDepth(" Detailed ")
	if err != nil || d != DepthDetailed {
		t.Fatalf("parse: %v %v", d, err)
	}
	opt := DefaultOptions().WithDepth(DepthBasic)
	if opt.TopK != 1 || opt.BottomK != 1 {
		t.Fatalf("basic: %+v", opt)
	}
	if opt := DefaultOptions().WithDepth(d); opt.TopK != 5 || opt.BottomK != 5 {
		t.Fatalf("detailed: %+v", opt)
	}
	if opt := DefaultOptions().WithDepth("deep"); opt.TopK != 3 {
		t.Fatalf("unknown depth must not change options: %+v", opt)
	}
	if _, err := ParseDepth("deep"); err == nil {
		t.Fatalf("expected error for unknown depth")
	}
}
