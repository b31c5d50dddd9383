// Package narrate turns assembled insights into one sentence each. Narration
// is presentation only: it reads a finished analysis.Result and never feeds
// back into it.
package narrate

import (
	"context"
	"math"
	"strconv"
	"strings"

	"github.com/KaramelBytes/insightloom/internal/analysis"
)

// Source values for Narration.Source.
const (
	SourceTemplate = "template"
	SourceModel    = "model"
)

// Narration is the sentence written for one insight.
type Narration struct {
	InsightID string            `json:"insight_id"`
	Category  analysis.Category `json:"category"`
	Text      string            `json:"text"`
	Source    string            `json:"source"`
}

// Narrator writes sentences for the insights of a sufficient Result.
type Narrator interface {
	Narrate(ctx context.Context, res *analysis.Result) ([]Narration, error)
}

// ByInsight indexes narrations by insight id.
func ByInsight(ns []Narration) map[string]Narration {
	out := make(map[string]Narration, len(ns))
	for _, n := range ns {
		out[n.InsightID] = n
	}
	return out
}

// factValue returns the named fact of an insight.
func factValue(in analysis.InsightRecord, name string) (float64, bool) {
	for _, f := range in.Facts {
		if f.Name == name {
			return f.Value, true
		}
	}
	return 0, false
}

// formatNumber renders v with at most two decimals and no trailing zeros.
func formatNumber(v float64) string {
	r := math.Round(v*100) / 100
	if r == 0 {
		r = 0 // drop negative zero
	}
	return strconv.FormatFloat(r, 'f', -1, 64)
}

func humanize(name string) string {
	return strings.ReplaceAll(name, "_", " ")
}
