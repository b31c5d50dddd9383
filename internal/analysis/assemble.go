package analysis

import (
	"fmt"
	"math"
	"sort"
)

// Category is the bucket an insight is reported under.
type Category string

const (
	CategoryGood        Category = "good"
	CategoryImprovement Category = "improvement"
	CategorySuggestion  Category = "suggestion"
	CategoryIssue       Category = "issue"
)

// Categories lists the categories in output order.
var Categories = []Category{CategoryGood, CategoryImprovement, CategorySuggestion, CategoryIssue}

// Insight kinds.
const (
	KindAnomaly       = "anomaly"
	KindTopSegment    = "top_segment"
	KindBottomSegment = "bottom_segment"
	KindKPIChange     = "kpi_change"
	KindSuggestion    = "suggestion"
)

// Evidence types.
const (
	EvidenceAggregate = "aggregate"
	EvidenceAnomaly   = "anomaly"
	EvidenceKPI       = "kpi"
)

// Fact is a literal number copied from the evidence object identified by
// Source.
type Fact struct {
	Name   string  `json:"name"`
	Value  float64 `json:"value"`
	Source string  `json:"source"`
}

type EvidenceRef struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// InsightRecord is one classified finding with the evidence behind it.
// Message is only set for suggestions, which carry no numbers.
type InsightRecord struct {
	ID        string        `json:"id"`
	Category  Category      `json:"category"`
	Kind      string        `json:"kind"`
	Dimension string        `json:"dimension,omitempty"`
	Metric    string        `json:"metric,omitempty"`
	Segment   string        `json:"segment,omitempty"`
	Facts     []Fact        `json:"summary_facts"`
	Evidence  []EvidenceRef `json:"evidence"`
	Message   string        `json:"message,omitempty"`
}

// EvidenceIDs returns the ids of all referenced evidence objects.
func (r InsightRecord) EvidenceIDs() []string {
	ids := make([]string, len(r.Evidence))
	for i, e := range r.Evidence {
		ids[i] = e.ID
	}
	return ids
}

type candidate struct {
	rec          InsightRecord
	significance float64
	pos          int
}

func aggregateFacts(r AggregateRow) []Fact {
	return []Fact{
		{Name: string(r.Function), Value: r.Value, Source: r.ID},
		{Name: "count", Value: float64(r.Count), Source: r.ID},
		{Name: "rank", Value: float64(r.Rank), Source: r.ID},
	}
}

// Assemble classifies every computed fact into categories and orders them.
// It copies numbers from its inputs and never derives new ones.
func Assemble(aggs []Aggregation, flags []AnomalyFlag, kpis []KPIRecord, opt Options) []InsightRecord {
	var cands []candidate
	add := func(c Category, kind string, sig float64, pos int, rec InsightRecord) {
		rec.Category, rec.Kind = c, kind
		rec.ID = evidenceID("insight", string(c), kind, rec.Evidence[0].ID)
		cands = append(cands, candidate{rec: rec, significance: sig, pos: pos})
	}

	rows := map[string]AggregateRow{}
	for _, a := range aggs {
		for _, r := range a.Rows {
			rows[r.ID] = r
		}
	}
	covered := map[string]bool{}
	flagged := map[string]bool{}

	for _, f := range flags {
		cat := CategoryGood
		if f.Direction == DirectionLow {
			cat = CategoryImprovement
			if f.DeviationScore <= -opt.IssueZThreshold {
				cat = CategoryIssue
			}
		}
		facts := []Fact{
			{Name: "observed_value", Value: f.Observed, Source: f.ID},
			{Name: "expected_value", Value: f.Expected, Source: f.ID},
			{Name: "deviation_score", Value: f.DeviationScore, Source: f.ID},
		}
		ev := []EvidenceRef{{Type: EvidenceAnomaly, ID: f.ID}}
		if r, ok := rows[f.AggregateID]; ok {
			facts = append(facts, Fact{Name: "rank", Value: float64(r.Rank), Source: r.ID})
			ev = append(ev, EvidenceRef{Type: EvidenceAggregate, ID: r.ID})
		}
		add(cat, KindAnomaly, math.Abs(f.DeviationScore), 0, InsightRecord{
			Dimension: f.Dimension,
			Metric:    f.Metric,
			Segment:   f.DimensionValue,
			Facts:     facts,
			Evidence:  ev,
		})
		covered[f.AggregateID] = true
		flagged[f.Metric] = true
	}

	for _, a := range aggs {
		for i, r := range a.Bottom() {
			if covered[r.ID] {
				continue
			}
			covered[r.ID] = true
			add(CategoryImprovement, KindBottomSegment, 0, i, segmentRecord(r))
		}
		for i, r := range a.Top() {
			if covered[r.ID] {
				continue
			}
			covered[r.ID] = true
			add(CategoryGood, KindTopSegment, 0, i, segmentRecord(r))
		}
	}

	for _, k := range kpis {
		if k.Kind != KPIPeriodDelta || k.Period == nil {
			continue
		}
		var cat Category
		switch {
		case k.Value <= opt.KPIChange.Issue:
			cat = CategoryIssue
		case k.Value < opt.KPIChange.Improvement:
			cat = CategoryImprovement
		case k.Value >= opt.KPIChange.Good:
			cat = CategoryGood
		default:
			continue
		}
		metric := ""
		if len(k.Metrics) > 0 {
			metric = k.Metrics[0]
		}
		add(cat, KindKPIChange, math.Abs(k.Value), 0, InsightRecord{
			Dimension: k.Period.DateColumn,
			Metric:    metric,
			Segment:   k.Period.Current,
			Facts: []Fact{
				{Name: "change_pct", Value: k.Value, Source: k.ID},
				{Name: "previous_value", Value: k.Period.PreviousValue, Source: k.ID},
				{Name: "current_value", Value: k.Period.CurrentValue, Source: k.ID},
			},
			Evidence: []EvidenceRef{{Type: EvidenceKPI, ID: k.ID}},
		})
	}

	seen := map[string]bool{}
	for _, a := range aggs {
		if flagged[a.Metric] || seen[a.Metric] || len(a.Rows) == 0 {
			continue
		}
		seen[a.Metric] = true
		ev := make([]EvidenceRef, 0, len(a.Rows))
		for _, r := range a.Rows {
			ev = append(ev, EvidenceRef{Type: EvidenceAggregate, ID: r.ID})
		}
		add(CategorySuggestion, KindSuggestion, 0, 0, InsightRecord{
			Metric:   a.Metric,
			Facts:    []Fact{},
			Evidence: ev,
			Message: fmt.Sprintf("No segment of %s stands out from the rest. Break %s down by further dimensions or a finer date grain to find where it varies.",
				a.Metric, a.Metric),
		})
	}

	return order(cands)
}

func segmentRecord(r AggregateRow) InsightRecord {
	return InsightRecord{
		Dimension: r.Dimension,
		Metric:    r.Metric,
		Segment:   r.DimensionValue,
		Facts:     aggregateFacts(r),
		Evidence:  []EvidenceRef{{Type: EvidenceAggregate, ID: r.ID}},
	}
}

var categoryRank = map[Category]int{
	CategoryGood: 0, CategoryImprovement: 1, CategorySuggestion: 2, CategoryIssue: 3,
}

var kindRank = map[string]int{
	KindAnomaly: 0, KindKPIChange: 1, KindTopSegment: 2, KindBottomSegment: 3, KindSuggestion: 4,
}

// order groups candidates by category, then sorts each group by
// significance descending with names breaking ties.
func order(cands []candidate) []InsightRecord {
	sort.SliceStable(cands, func(i, j int) bool {
		a, b := cands[i], cands[j]
		if a.rec.Category != b.rec.Category {
			return categoryRank[a.rec.Category] < categoryRank[b.rec.Category]
		}
		if a.significance != b.significance {
			return a.significance > b.significance
		}
		if a.rec.Dimension != b.rec.Dimension {
			return a.rec.Dimension < b.rec.Dimension
		}
		if a.rec.Metric != b.rec.Metric {
			return a.rec.Metric < b.rec.Metric
		}
		if a.rec.Kind != b.rec.Kind {
			return kindRank[a.rec.Kind] < kindRank[b.rec.Kind]
		}
		if a.pos != b.pos {
			return a.pos < b.pos
		}
		return a.rec.ID < b.rec.ID
	})
	out := make([]InsightRecord, len(cands))
	for i, c := range cands {
		out[i] = c.rec
	}
	return out
}
