package narrate

import (
	"context"
	"fmt"

	"github.com/KaramelBytes/insightloom/internal/analysis"
)

// TemplateNarrator writes a fixed sentence per insight kind using only the
// insight's own facts. Its output is deterministic.
type TemplateNarrator struct{}

func (TemplateNarrator) Narrate(_ context.Context, res *analysis.Result) ([]Narration, error) {
	if !res.Sufficient() {
		return nil, nil
	}
	out := make([]Narration, 0, len(res.Insights))
	for _, in := range res.Insights {
		out = append(out, Narration{
			InsightID: in.ID,
			Category:  in.Category,
			Text:      Sentence(in),
			Source:    SourceTemplate,
		})
	}
	return out, nil
}

// Sentence is the template sentence for one insight.
func Sentence(in analysis.InsightRecord) string {
	num := func(name string) string {
		v, _ := factValue(in, name)
		return formatNumber(v)
	}
	metric := humanize(in.Metric)
	switch in.Kind {
	case analysis.KindAnomaly:
		dir := "high"
		if z, _ := factValue(in, "deviation_score"); z < 0 {
			dir = "low"
		}
		return fmt.Sprintf("%s %q has an unusually %s %s of %s against a typical %s (deviation score %s).",
			humanize(in.Dimension), in.Segment, dir, metric, num("observed_value"), num("expected_value"), num("deviation_score"))
	case analysis.KindTopSegment, analysis.KindBottomSegment:
		verb := "leads"
		if in.Kind == analysis.KindBottomSegment {
			verb = "trails"
		}
		fn := "total"
		if len(in.Facts) > 0 {
			fn = in.Facts[0].Name
		}
		return fmt.Sprintf("%s %q %s on %s with a %s of %s over %s rows (rank %s).",
			humanize(in.Dimension), in.Segment, verb, metric, fn, num(fn), num("count"), num("rank"))
	case analysis.KindKPIChange:
		pct, _ := factValue(in, "change_pct")
		verb := "rose"
		if pct < 0 {
			verb = "fell"
		}
		return fmt.Sprintf("%s %s %s%% in period %s against the period before, from %s to %s.",
			capitalize(metric), verb, formatNumber(abs(pct)), in.Segment, num("previous_value"), num("current_value"))
	case analysis.KindSuggestion:
		return in.Message
	}
	return in.Message
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	if r[0] >= 'a' && r[0] <= 'z' {
		r[0] -= 'a' - 'A'
	}
	return string(r)
}
