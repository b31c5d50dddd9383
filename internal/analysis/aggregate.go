package analysis

import (
	"sort"
	"strings"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/floats"
)

// AggregateFunc names the aggregate used to rank segments.
type AggregateFunc string

const (
	AggSum   AggregateFunc = "sum"
	AggMean  AggregateFunc = "mean"
	AggCount AggregateFunc = "count"
)

// AggregateRow is one segment of a (dimension, metric) pair. Value holds the
// ranking aggregate named by Function; Sum, Mean and Count are all kept so
// reports can show them side by side.
type AggregateRow struct {
	ID             string        `json:"id"`
	Dimension      string        `json:"dimension"`
	DimensionValue string        `json:"dimension_value"`
	Metric         string        `json:"metric_name"`
	Function       AggregateFunc `json:"aggregate_function"`
	Value          float64       `json:"value"`
	Sum            float64       `json:"sum"`
	Mean           float64       `json:"mean"`
	Count          int           `json:"count"`
	Rank           int           `json:"rank_within_metric"`
}

// Aggregation is the full ranked distribution of one (dimension, metric)
// pair. Rows are ordered by Rank.
type Aggregation struct {
	Dimension string         `json:"dimension"`
	Metric    string         `json:"metric"`
	Function  AggregateFunc  `json:"aggregate_function"`
	Rows      []AggregateRow `json:"rows"`
	TopK      int            `json:"top_k"`
	BottomK   int            `json:"bottom_k"`
}

// Top returns the best TopK segments, best first.
func (a Aggregation) Top() []AggregateRow {
	return a.Rows[:a.TopK]
}

// Bottom returns the worst BottomK segments, worst first.
func (a Aggregation) Bottom() []AggregateRow {
	out := make([]AggregateRow, 0, a.BottomK)
	for i := len(a.Rows) - 1; i >= len(a.Rows)-a.BottomK; i-- {
		out = append(out, a.Rows[i])
	}
	return out
}

// evidenceSpace namespaces the name-based UUIDs given to computed objects so
// the same input always yields the same evidence ids.
var evidenceSpace = uuid.MustParse("8c1f5e0a-3b6d-4e29-a7f4-52d9c0b16e83")

func evidenceID(kind string, parts ...string) string {
	key := kind + "\x1f" + strings.Join(parts, "\x1f")
	return uuid.NewSHA1(evidenceSpace, []byte(key)).String()
}

// Aggregate groups every metric by every dimension and date column of the
// mapping. Rows with a null metric or null group value are skipped.
func Aggregate(t *Table, profiles []ColumnProfile, m RoleMapping, opt Options) []Aggregation {
	var out []Aggregation
	metrics := columnsWithRole(profiles, m, RoleMetric)
	for _, dim := range groupingColumns(profiles, m) {
		dcol, _ := t.Column(dim)
		labels := groupLabels(dcol, m[dim] == RoleDate)
		for _, metric := range metrics {
			mcol, _ := t.Column(metric)
			out = append(out, aggregatePair(dim, metric, labels, mcol, opt))
		}
	}
	return out
}

// groupLabels returns the group key of each row; "" marks a skipped row.
func groupLabels(c Column, isDate bool) []string {
	labels := make([]string, len(c.Values))
	for i, v := range c.Values {
		if isDate {
			if ts, ok := cellTime(v); ok {
				labels[i] = ts.Format("2006-01-02")
			}
			continue
		}
		if s, null := cellText(v); !null {
			labels[i] = s
		}
	}
	return labels
}

func aggregatePair(dim, metric string, labels []string, mcol Column, opt Options) Aggregation {
	groups := map[string][]float64{}
	for i, label := range labels {
		if label == "" {
			continue
		}
		x, ok := cellNumber(mcol.Values[i])
		if !ok {
			continue
		}
		groups[label] = append(groups[label], x)
	}

	rows := make([]AggregateRow, 0, len(groups))
	for label, xs := range groups {
		r := AggregateRow{
			ID:             evidenceID("aggregate", dim, metric, label),
			Dimension:      dim,
			DimensionValue: label,
			Metric:         metric,
			Function:       opt.RankBy,
			Sum:            floats.Sum(xs),
			Mean:           meanOf(xs),
			Count:          len(xs),
		}
		// A group whose sum overflows has no reportable value.
		if !finite(r.Sum, r.Mean) {
			continue
		}
		switch opt.RankBy {
		case AggMean:
			r.Value = r.Mean
		case AggCount:
			r.Value = float64(r.Count)
		default:
			r.Value = r.Sum
		}
		rows = append(rows, r)
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Value != rows[j].Value {
			return rows[i].Value > rows[j].Value
		}
		return rows[i].DimensionValue < rows[j].DimensionValue
	})
	for i := range rows {
		rows[i].Rank = i + 1
	}

	half := len(rows) / 2
	return Aggregation{
		Dimension: dim,
		Metric:    metric,
		Function:  opt.RankBy,
		Rows:      rows,
		TopK:      min(opt.TopK, half),
		BottomK:   min(opt.BottomK, half),
	}
}
