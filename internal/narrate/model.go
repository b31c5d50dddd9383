package narrate

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"

	"github.com/KaramelBytes/insightloom/internal/ai"
	"github.com/KaramelBytes/insightloom/internal/analysis"
	"github.com/KaramelBytes/insightloom/internal/utils"
)

const systemPrompt = `You write one short business sentence per insight.
Each input line is a JSON object with an id, a category, names and a facts map.
Reply with exactly one line per insight in the form "<id>: <sentence>".
Use only the numbers present in that insight's facts, rounded to at most two decimals.
Do not compute new numbers, percentages or totals. Do not add advice beyond the facts.`

// ModelNarrator asks a text generation runtime to phrase the insights. Every
// returned sentence is checked against its insight: a sentence naming a
// number that is not one of the insight's facts is replaced by the template
// sentence, as is any insight the model skipped.
type ModelNarrator struct {
	Runtime     ai.Runtime
	Model       string
	MaxTokens   int
	Temperature float64
	// PromptBudget caps the estimated tokens of the insight lines sent;
	// insights past the budget keep their template sentence. Zero means 3000.
	PromptBudget int
	Logger       *slog.Logger
}

type promptLine struct {
	ID        string             `json:"id"`
	Category  analysis.Category  `json:"category"`
	Kind      string             `json:"kind"`
	Dimension string             `json:"dimension,omitempty"`
	Metric    string             `json:"metric,omitempty"`
	Segment   string             `json:"segment,omitempty"`
	Facts     map[string]float64 `json:"facts"`
}

// Narrate sends the insights in one request. When the runtime fails the
// template narrations are returned together with the error, so callers can
// warn and still print a report.
func (m ModelNarrator) Narrate(ctx context.Context, res *analysis.Result) ([]Narration, error) {
	fallback, _ := TemplateNarrator{}.Narrate(ctx, res)
	if len(fallback) == 0 {
		return fallback, nil
	}
	log := m.Logger
	if log == nil {
		log = slog.Default()
	}

	lines, err := promptLines(res.Insights)
	if err != nil {
		return fallback, err
	}
	budget := m.PromptBudget
	if budget <= 0 {
		budget = 3000
	}
	lines = utils.FitLines(lines, budget-utils.CountTokens(systemPrompt))
	user := strings.Join(lines, "\n")
	log.DebugContext(ctx, "narration prompt",
		"insights", len(res.Insights),
		"sent", len(lines),
		"tokens", utils.TokenBreakdown(map[string]string{"system": systemPrompt, "insights": user}))
	if len(lines) == 0 {
		return fallback, nil
	}

	resp, err := m.Runtime.Generate(ctx, ai.GenerateRequest{
		Model: m.Model,
		Messages: []ai.Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: user},
		},
		MaxTokens:   m.MaxTokens,
		Temperature: m.Temperature,
	})
	if err != nil {
		return fallback, fmt.Errorf("narrate: %w", err)
	}

	byID := make(map[string]analysis.InsightRecord, len(res.Insights))
	for _, in := range res.Insights {
		byID[in.ID] = in
	}
	written := parseReply(resp.Text())
	out := make([]Narration, len(fallback))
	rejected := 0
	for i, n := range fallback {
		out[i] = n
		text, ok := written[n.InsightID]
		if !ok {
			continue
		}
		if bad := untraceable(text, byID[n.InsightID]); bad != "" {
			rejected++
			log.DebugContext(ctx, "narration rejected", "insight_id", n.InsightID, "number", bad)
			continue
		}
		out[i].Text = text
		out[i].Source = SourceModel
	}
	log.InfoContext(ctx, "narration done", "model_sentences", len(written), "rejected", rejected, "request_id", resp.RequestID)
	return out, nil
}

func promptLines(insights []analysis.InsightRecord) ([]string, error) {
	lines := make([]string, 0, len(insights))
	for _, in := range insights {
		facts := make(map[string]float64, len(in.Facts))
		for _, f := range in.Facts {
			facts[f.Name] = f.Value
		}
		b, err := json.Marshal(promptLine{
			ID:        in.ID,
			Category:  in.Category,
			Kind:      in.Kind,
			Dimension: in.Dimension,
			Metric:    in.Metric,
			Segment:   in.Segment,
			Facts:     facts,
		})
		if err != nil {
			return nil, fmt.Errorf("encode insight %s: %w", in.ID, err)
		}
		lines = append(lines, string(b))
	}
	return lines, nil
}

var replyLine = regexp.MustCompile(`^\s*(?:[-*]|\d+[.)])?\s*\[?([0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12})\]?\s*[:\-]\s*(.+?)\s*$`)

// parseReply collects "<id>: <sentence>" lines, keeping the first sentence
// given for each id.
func parseReply(reply string) map[string]string {
	out := map[string]string{}
	for _, line := range strings.Split(reply, "\n") {
		m := replyLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		id := strings.ToLower(m[1])
		if _, dup := out[id]; !dup && m[2] != "" {
			out[id] = m[2]
		}
	}
	return out
}

var numberPattern = regexp.MustCompile(`\d[\d,]*(?:\.\d+)?`)

// untraceable returns the first number in text that does not match one of
// the insight's facts at the precision it was written with, or "" when every
// number traces back. Numbers inside the insight's own names are ignored.
func untraceable(text string, in analysis.InsightRecord) string {
	for _, name := range []string{in.Segment, in.Dimension, in.Metric, humanize(in.Dimension), humanize(in.Metric)} {
		if name != "" {
			text = strings.ReplaceAll(text, name, " ")
		}
	}
	for _, tok := range numberPattern.FindAllString(text, -1) {
		if !traceable(tok, in.Facts) {
			return tok
		}
	}
	return ""
}

func traceable(tok string, facts []analysis.Fact) bool {
	clean := strings.ReplaceAll(tok, ",", "")
	n, err := strconv.ParseFloat(clean, 64)
	if err != nil {
		return false
	}
	decimals := 0
	if i := strings.IndexByte(clean, '.'); i >= 0 {
		decimals = len(clean) - i - 1
	}
	tol := 0.5*math.Pow10(-decimals) + 1e-9
	for _, f := range facts {
		if math.Abs(math.Abs(f.Value)-n) <= tol {
			return true
		}
	}
	return false
}
