package analysis

import (
	"sort"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// ColumnType is the semantic type inferred for a column.
type ColumnType string

const (
	TypeNumeric     ColumnType = "numeric"
	TypeCategorical ColumnType = "categorical"
	TypeDate        ColumnType = "date"
	TypeText        ColumnType = "text"
)

// ColumnProfile summarizes one column of a Table.
type ColumnProfile struct {
	Name          string     `json:"name"`
	Type          ColumnType `json:"inferred_type"`
	Rows          int        `json:"rows"`
	NullCount     int        `json:"null_count"`
	DistinctCount int        `json:"distinct_count"`
	// NumericCount is the number of cells that coerce to a number.
	NumericCount int        `json:"numeric_count"`
	Numeric      *NumStats  `json:"numeric,omitempty"`
	Categories   []CatCount `json:"top_categories,omitempty"`
	Span         *DateSpan  `json:"date_span,omitempty"`
}

// NumStats are the sample statistics of a numeric column.
type NumStats struct {
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
	Mean float64 `json:"mean"`
}

type CatCount struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

type DateSpan struct {
	First time.Time `json:"first"`
	Last  time.Time `json:"last"`
}

// ProfileColumns infers a type for every column of t, in column order.
// Coercion is tried date first, then numeric, then categorical or text.
func ProfileColumns(t *Table, opt Options) []ColumnProfile {
	if t == nil {
		return nil
	}
	out := make([]ColumnProfile, 0, len(t.Columns))
	for _, c := range t.Columns {
		out = append(out, profileColumn(c, opt))
	}
	return out
}

func profileColumn(c Column, opt Options) ColumnProfile {
	p := ColumnProfile{Name: c.Name, Rows: len(c.Values)}
	counts := map[string]int{}
	var nums []float64
	var dates []time.Time
	nonNull := 0
	for _, v := range c.Values {
		s, null := cellText(v)
		if null {
			p.NullCount++
			continue
		}
		nonNull++
		counts[s]++
		if x, ok := cellNumber(v); ok {
			nums = append(nums, x)
		} else if ts, ok := cellTime(v); ok {
			dates = append(dates, ts)
		}
	}
	p.DistinctCount = len(counts)
	p.NumericCount = len(nums)

	switch {
	case nonNull == 0:
		p.Type = TypeText
	case ratio(len(dates), nonNull) >= opt.TypeMatchRatio:
		p.Type = TypeDate
		first, last := dates[0], dates[0]
		for _, d := range dates[1:] {
			if d.Before(first) {
				first = d
			}
			if d.After(last) {
				last = d
			}
		}
		p.Span = &DateSpan{First: first, Last: last}
	case ratio(len(nums), nonNull) >= opt.TypeMatchRatio:
		p.Type = TypeNumeric
		p.Numeric = &NumStats{
			Min:  floats.Min(nums),
			Max:  floats.Max(nums),
			Mean: meanOf(nums),
		}
	case ratio(p.DistinctCount, p.Rows) <= opt.CategoricalMaxDistinctRatio &&
		p.DistinctCount <= opt.CategoricalMaxDistinctCount:
		p.Type = TypeCategorical
		p.Categories = topCategories(counts, opt.TopCategories)
	default:
		p.Type = TypeText
	}
	return p
}

// meanOf falls back to a running mean when the plain sum overflows, so large
// but finite inputs keep a finite mean.
func meanOf(xs []float64) float64 {
	if m := stat.Mean(xs, nil); finite(m) {
		return m
	}
	var m float64
	for i, x := range xs {
		m += (x - m) / float64(i+1)
	}
	return m
}

func ratio(a, b int) float64 {
	if b == 0 {
		return 0
	}
	return float64(a) / float64(b)
}

func topCategories(counts map[string]int, n int) []CatCount {
	if n <= 0 {
		return nil
	}
	tops := make([]CatCount, 0, len(counts))
	for k, v := range counts {
		tops = append(tops, CatCount{Value: k, Count: v})
	}
	sort.Slice(tops, func(i, j int) bool {
		if tops[i].Count == tops[j].Count {
			return tops[i].Value < tops[j].Value
		}
		return tops[i].Count > tops[j].Count
	})
	if len(tops) > n {
		tops = tops[:n]
	}
	return tops
}
