package export

import (
	"fmt"
	"strings"

	"github.com/KaramelBytes/insightloom/internal/analysis"
	"github.com/KaramelBytes/insightloom/internal/narrate"
)

var categoryTitles = map[analysis.Category]string{
	analysis.CategoryGood:        "What is going well",
	analysis.CategoryImprovement: "Areas to improve",
	analysis.CategorySuggestion:  "Suggestions",
	analysis.CategoryIssue:       "Issues",
}

// Markdown renders a plain-text report with bracketed section headers.
func Markdown(rep Report) string {
	var b strings.Builder
	res := rep.Result

	b.WriteString("[DATASET SUMMARY]\n")
	if rep.Dataset != "" {
		fmt.Fprintf(&b, "File: %s\n", rep.Dataset)
	}
	if res != nil && len(res.Profiles) > 0 {
		fmt.Fprintf(&b, "Rows: %d\n", res.Profiles[0].Rows)
	}
	if res != nil {
		fmt.Fprintf(&b, "Columns: %d\n", len(res.Profiles))
	}
	for _, w := range rep.Warnings {
		fmt.Fprintf(&b, "⚠ %s\n", w)
	}
	if res == nil {
		return b.String()
	}

	b.WriteString("\n[ROLE MAPPING]\n")
	for _, p := range res.Profiles {
		fmt.Fprintf(&b, "- %s: %s (%s)\n", safeVal(p.Name), res.Mapping[p.Name], p.Type)
	}

	if !res.Sufficient() {
		b.WriteString("\n[INSUFFICIENT DATA]\n")
		for _, r := range res.Validation.Reasons {
			fmt.Fprintf(&b, "- %s\n", r)
		}
		if len(res.Validation.RequiredActions) > 0 {
			b.WriteString("\nTo continue:\n")
			for _, a := range res.Validation.RequiredActions {
				fmt.Fprintf(&b, "- %s\n", a)
			}
		}
		return b.String()
	}

	texts := narrate.ByInsight(rep.Narrations)
	counts := res.Counts()
	b.WriteString("\n[INSIGHTS]\n")
	for _, c := range analysis.Categories {
		if counts[c] == 0 {
			continue
		}
		fmt.Fprintf(&b, "\n%s (%d)\n", categoryTitles[c], counts[c])
		for _, in := range res.Insights {
			if in.Category != c {
				continue
			}
			text := texts[in.ID].Text
			if text == "" {
				text = narrate.Sentence(in)
			}
			fmt.Fprintf(&b, "- %s\n", safeVal(text))
			if len(in.Facts) > 0 {
				b.WriteString("  facts: ")
				for i, f := range in.Facts {
					if i > 0 {
						b.WriteString(", ")
					}
					fmt.Fprintf(&b, "%s=%.6g", f.Name, f.Value)
				}
				b.WriteString("\n")
			}
		}
	}

	if len(res.KPIs) > 0 {
		b.WriteString("\n[KPIS]\n")
		for _, k := range res.KPIs {
			fmt.Fprintf(&b, "- %s: %.6g %s (%s)\n", safeVal(k.Name), k.Value, k.Unit, k.Formula)
		}
	}

	if len(res.Anomalies) > 0 {
		b.WriteString("\n[ANOMALIES]\n")
		for _, a := range res.Anomalies {
			fmt.Fprintf(&b, "- %s=%s on %s: observed %.6g, expected %.6g, z=%.2f (%s)\n",
				safeVal(a.Dimension), safeVal(a.DimensionValue), safeVal(a.Metric), a.Observed, a.Expected, a.DeviationScore, a.Direction)
		}
	}

	b.WriteString("\n[SCHEMA]\n")
	for _, p := range res.Profiles {
		missPct := 0.0
		if p.Rows > 0 {
			missPct = float64(p.NullCount) * 100 / float64(p.Rows)
		}
		fmt.Fprintf(&b, "- %s: %s (distinct %d, missing %.1f%%)", safeVal(p.Name), p.Type, p.DistinctCount, missPct)
		switch {
		case p.Numeric != nil:
			fmt.Fprintf(&b, "; min %.4g, max %.4g, mean %.4g", p.Numeric.Min, p.Numeric.Max, p.Numeric.Mean)
		case p.Span != nil:
			fmt.Fprintf(&b, "; %s to %s", p.Span.First.Format("2006-01-02"), p.Span.Last.Format("2006-01-02"))
		case len(p.Categories) > 0:
			b.WriteString("; top: ")
			for i, kv := range p.Categories {
				if i > 0 {
					b.WriteString(", ")
				}
				fmt.Fprintf(&b, "%s(%d)", safeVal(kv.Value), kv.Count)
			}
		}
		b.WriteString("\n")
	}
	return b.String()
}

func safeVal(s string) string { return strings.ReplaceAll(strings.ReplaceAll(s, "\n", " "), "|", "/") }
