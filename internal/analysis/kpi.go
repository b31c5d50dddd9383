package analysis

import (
	"fmt"
	"math"
	"regexp"
	"slices"
	"strings"
	"time"

	"gonum.org/v1/gonum/floats"
)

// KPIKind distinguishes how a KPI was derived.
type KPIKind string

const (
	KPITotal       KPIKind = "total"
	KPIMean        KPIKind = "mean"
	KPIRatio       KPIKind = "ratio"
	KPIMarketing   KPIKind = "marketing"
	KPIPeriodDelta KPIKind = "period_change"
	KPIPeak        KPIKind = "peak_period"
)

// Granularity of period-over-period buckets.
type Granularity string

const (
	GranularityDay   Granularity = "day"
	GranularityWeek  Granularity = "week"
	GranularityMonth Granularity = "month"
)

// KPIRecord is a value derived from one or more metrics. For period_change
// KPIs Value is the percent change and Period carries both bucket values; for
// peak_period KPIs Period.Current names the winning bucket.
type KPIRecord struct {
	ID      string      `json:"id"`
	Name    string      `json:"name"`
	Kind    KPIKind     `json:"kind"`
	Formula string      `json:"formula_description"`
	Value   float64     `json:"value"`
	Unit    string      `json:"unit"`
	Metrics []string    `json:"metrics"`
	Period  *PeriodInfo `json:"period,omitempty"`
}

type PeriodInfo struct {
	DateColumn    string      `json:"date_column"`
	Granularity   Granularity `json:"granularity"`
	Previous      string      `json:"previous,omitempty"`
	Current       string      `json:"current"`
	PreviousValue float64     `json:"previous_value"`
	CurrentValue  float64     `json:"current_value"`
}

// DeriveKPIs computes the total and average of every metric, ratio KPIs for
// every ordered pair of metrics, the marketing presets when enabled, and, when
// a date column is mapped, period-over-period change and the peak period per
// metric. KPIs whose denominator is zero, whose buckets are empty, or whose
// value overflows are left out.
func DeriveKPIs(t *Table, profiles []ColumnProfile, m RoleMapping, opt Options) []KPIRecord {
	metrics := columnsWithRole(profiles, m, RoleMetric)
	totals := make(map[string]float64, len(metrics))
	var out []KPIRecord
	for _, name := range metrics {
		c, _ := t.Column(name)
		xs := numericValues(c)
		totals[name] = floats.Sum(xs)
		if len(xs) == 0 {
			continue
		}
		out = appendFinite(out, KPIRecord{
			ID:      evidenceID("kpi", "total", name),
			Name:    "Total " + name,
			Kind:    KPITotal,
			Formula: fmt.Sprintf("sum(%s)", name),
			Value:   totals[name],
			Metrics: []string{name},
		}, KPIRecord{
			ID:      evidenceID("kpi", "mean", name),
			Name:    "Average " + name,
			Kind:    KPIMean,
			Formula: fmt.Sprintf("mean(%s)", name),
			Value:   meanOf(xs),
			Metrics: []string{name},
		})
	}

	for _, a := range metrics {
		for _, b := range metrics {
			if a == b || totals[b] == 0 || !finite(totals[a], totals[b]) {
				continue
			}
			name := a + " / " + b
			out = appendFinite(out, KPIRecord{
				ID:      evidenceID("kpi", name),
				Name:    name,
				Kind:    KPIRatio,
				Formula: fmt.Sprintf("sum(%s) / sum(%s)", a, b),
				Value:   totals[a] / totals[b],
				Unit:    "ratio",
				Metrics: []string{a, b},
			})
		}
	}
	if opt.MarketingKPIs {
		out = append(out, marketingKPIs(metrics, totals)...)
	}
	if dates := columnsWithRole(profiles, m, RoleDate); len(dates) > 0 {
		days := rowDays(t, dates[0])
		out = append(out, periodKPIs(t, days, metrics, opt)...)
		out = append(out, peakKPIs(t, days, metrics, opt)...)
	}
	return out
}

// appendFinite appends the records whose value is a finite number.
func appendFinite(out []KPIRecord, ks ...KPIRecord) []KPIRecord {
	for _, k := range ks {
		if finite(k.Value) {
			out = append(out, k)
		}
	}
	return out
}

func numericValues(c Column) []float64 {
	xs := make([]float64, 0, len(c.Values))
	for _, v := range c.Values {
		if x, ok := cellNumber(v); ok {
			xs = append(xs, x)
		}
	}
	return xs
}

var (
	nonAlnum     = regexp.MustCompile(`[^a-z0-9]`)
	derivedName  = regexp.MustCompile(`cpc|ctr|roi|cpa|costper|rate`)
	spendName    = regexp.MustCompile(`spend|cost|investment|budget|expense`)
	revenueName  = regexp.MustCompile(`revenue|income|sales`)
	convName     = regexp.MustCompile(`conversion|convert`)
	clicksName   = regexp.MustCompile(`click`)
	impressionNm = regexp.MustCompile(`impression|views`)
)

// marketingKPIs derives ROI, CPA, CTR and CPC from metric columns recognized
// by name. Columns that already hold a derived rate are never used as inputs.
func marketingKPIs(metrics []string, totals map[string]float64) []KPIRecord {
	find := func(re *regexp.Regexp) string {
		for _, name := range metrics {
			n := nonAlnum.ReplaceAllString(strings.ToLower(name), "")
			if !derivedName.MatchString(n) && re.MatchString(n) {
				return name
			}
		}
		return ""
	}
	spend, revenue := find(spendName), find(revenueName)
	conv, clicks, impr := find(convName), find(clicksName), find(impressionNm)

	var out []KPIRecord
	add := func(name, formula, unit string, value float64, cols ...string) {
		out = appendFinite(out, KPIRecord{
			ID:      evidenceID("kpi", name),
			Name:    name,
			Kind:    KPIMarketing,
			Formula: formula,
			Value:   value,
			Unit:    unit,
			Metrics: cols,
		})
	}
	if spend != "" && revenue != "" && spend != revenue && totals[spend] != 0 {
		add("ROI", fmt.Sprintf("(sum(%s) - sum(%s)) / sum(%s) * 100", revenue, spend, spend), "%",
			(totals[revenue]-totals[spend])/totals[spend]*100, revenue, spend)
	}
	if spend != "" && conv != "" && totals[conv] != 0 {
		add("CPA", fmt.Sprintf("sum(%s) / sum(%s)", spend, conv), "per conversion",
			totals[spend]/totals[conv], spend, conv)
	}
	if clicks != "" && impr != "" && clicks != impr && totals[impr] != 0 {
		add("CTR", fmt.Sprintf("sum(%s) / sum(%s) * 100", clicks, impr), "%",
			totals[clicks]/totals[impr]*100, clicks, impr)
	}
	if spend != "" && clicks != "" && totals[clicks] != 0 {
		add("CPC", fmt.Sprintf("sum(%s) / sum(%s)", spend, clicks), "per click",
			totals[spend]/totals[clicks], spend, clicks)
	}
	return out
}

func dayOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// pickGranularity buckets by month when the data spans at least two months,
// by ISO week when it spans at least two weeks, and by day otherwise.
func pickGranularity(first, last time.Time) Granularity {
	switch {
	case !last.Before(first.AddDate(0, 2, 0)):
		return GranularityMonth
	case !last.Before(first.AddDate(0, 0, 14)):
		return GranularityWeek
	}
	return GranularityDay
}

func periodStart(t time.Time, g Granularity) time.Time {
	switch g {
	case GranularityMonth:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	case GranularityWeek:
		offset := (int(t.Weekday()) + 6) % 7
		return t.AddDate(0, 0, -offset)
	}
	return t
}

// periodShift moves a period start n periods forward (or back when n < 0).
func periodShift(start time.Time, g Granularity, n int) time.Time {
	switch g {
	case GranularityMonth:
		return start.AddDate(0, n, 0)
	case GranularityWeek:
		return start.AddDate(0, 0, 7*n)
	}
	return start.AddDate(0, 0, n)
}

func periodLabel(start time.Time, g Granularity) string {
	if g == GranularityMonth {
		return start.Format("2006-01")
	}
	return start.Format("2006-01-02")
}

// dayIndex holds the calendar day of every row of the date column.
type dayIndex struct {
	column      string
	days        []time.Time
	valid       []bool
	first, last time.Time
}

func rowDays(t *Table, dateCol string) dayIndex {
	dc, _ := t.Column(dateCol)
	ix := dayIndex{
		column: dateCol,
		days:   make([]time.Time, len(dc.Values)),
		valid:  make([]bool, len(dc.Values)),
	}
	for i, v := range dc.Values {
		ts, ok := cellTime(v)
		if !ok {
			continue
		}
		d := dayOf(ts)
		ix.days[i], ix.valid[i] = d, true
		if ix.first.IsZero() || d.Before(ix.first) {
			ix.first = d
		}
		if ix.last.IsZero() || d.After(ix.last) {
			ix.last = d
		}
	}
	return ix
}

// periodKPIs compares the two most recent complete periods. A period is
// complete when the data starts on or before its first day and reaches its
// last day.
func periodKPIs(t *Table, ix dayIndex, metrics []string, opt Options) []KPIRecord {
	if ix.first.IsZero() {
		return nil
	}
	first, last := ix.first, ix.last
	g := pickGranularity(first, last)
	cur := periodStart(last, g)
	if last.Before(periodShift(cur, g, 1).AddDate(0, 0, -1)) {
		cur = periodShift(cur, g, -1)
	}
	prev := periodShift(cur, g, -1)
	if prev.Before(first) {
		return nil
	}
	next := periodShift(cur, g, 1)

	var out []KPIRecord
	for _, name := range metrics {
		mc, _ := t.Column(name)
		var pv, cv []float64
		for i, v := range mc.Values {
			if !ix.valid[i] {
				continue
			}
			x, ok := cellNumber(v)
			if !ok {
				continue
			}
			switch d := ix.days[i]; {
			case !d.Before(cur) && d.Before(next):
				cv = append(cv, x)
			case !d.Before(prev) && d.Before(cur):
				pv = append(pv, x)
			}
		}
		if len(pv) == 0 || len(cv) == 0 {
			continue
		}
		p, c := reduce(pv, opt.RankBy), reduce(cv, opt.RankBy)
		if p == 0 || !finite(p, c) {
			continue
		}
		kname := fmt.Sprintf("%s %s-over-%s change", name, g, g)
		out = appendFinite(out, KPIRecord{
			ID:      evidenceID("kpi", kname),
			Name:    kname,
			Kind:    KPIPeriodDelta,
			Formula: fmt.Sprintf("(%s(%s) in %s - %s(%s) in %s) / |%s(%s) in %s| * 100", opt.RankBy, name, periodLabel(cur, g), opt.RankBy, name, periodLabel(prev, g), opt.RankBy, name, periodLabel(prev, g)),
			Value:   (c - p) / math.Abs(p) * 100,
			Unit:    "%",
			Metrics: []string{name},
			Period: &PeriodInfo{
				DateColumn:    ix.column,
				Granularity:   g,
				Previous:      periodLabel(prev, g),
				Current:       periodLabel(cur, g),
				PreviousValue: p,
				CurrentValue:  c,
			},
		})
	}
	return out
}

// peakKPIs finds, per metric, the period with the highest aggregate over the
// whole date span. The earliest period wins a tie. Spans covering a single
// period have no peak.
func peakKPIs(t *Table, ix dayIndex, metrics []string, opt Options) []KPIRecord {
	if ix.first.IsZero() {
		return nil
	}
	g := pickGranularity(ix.first, ix.last)

	var out []KPIRecord
	for _, name := range metrics {
		mc, _ := t.Column(name)
		buckets := map[time.Time][]float64{}
		for i, v := range mc.Values {
			if !ix.valid[i] {
				continue
			}
			if x, ok := cellNumber(v); ok {
				k := periodStart(ix.days[i], g)
				buckets[k] = append(buckets[k], x)
			}
		}
		if len(buckets) < 2 {
			continue
		}
		starts := make([]time.Time, 0, len(buckets))
		for k := range buckets {
			starts = append(starts, k)
		}
		slices.SortFunc(starts, func(a, b time.Time) int { return a.Compare(b) })

		var best time.Time
		bestV, found := 0.0, false
		for _, k := range starts {
			v := reduce(buckets[k], opt.RankBy)
			if !finite(v) {
				continue
			}
			if !found || v > bestV {
				best, bestV, found = k, v, true
			}
		}
		if !found {
			continue
		}
		kname := fmt.Sprintf("Highest %s %s", name, g)
		out = append(out, KPIRecord{
			ID:      evidenceID("kpi", kname),
			Name:    kname,
			Kind:    KPIPeak,
			Formula: fmt.Sprintf("max over %ss of %s(%s)", g, opt.RankBy, name),
			Value:   bestV,
			Metrics: []string{name},
			Period: &PeriodInfo{
				DateColumn:   ix.column,
				Granularity:  g,
				Current:      periodLabel(best, g),
				CurrentValue: bestV,
			},
		})
	}
	return out
}

func reduce(xs []float64, f AggregateFunc) float64 {
	switch f {
	case AggCount:
		return float64(len(xs))
	case AggMean:
		return meanOf(xs)
	}
	return floats.Sum(xs)
}
