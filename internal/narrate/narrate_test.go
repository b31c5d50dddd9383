package narrate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/insightloom/internal/ai"
	"github.com/KaramelBytes/insightloom/internal/analysis"
)

const (
	idTop     = "11111111-1111-5111-8111-111111111111"
	idAnomaly = "22222222-2222-5222-8222-222222222222"
	idKPI     = "33333333-3333-5333-8333-333333333333"
	idSuggest = "44444444-4444-5444-8444-444444444444"
)

func sampleResult() *analysis.Result {
	return &analysis.Result{
		Validation: analysis.ValidationResult{Sufficient: true},
		Insights: []analysis.InsightRecord{
			{ID: idTop, Category: analysis.CategoryGood, Kind: analysis.KindTopSegment, Dimension: "region", Metric: "sales", Segment: "North",
				Facts: []analysis.Fact{{Name: "sum", Value: 1250.5}, {Name: "count", Value: 4}, {Name: "rank", Value: 1}}},
			{ID: idAnomaly, Category: analysis.CategoryIssue, Kind: analysis.KindAnomaly, Dimension: "store_id", Metric: "net_sales", Segment: "S-07",
				Facts: []analysis.Fact{{Name: "observed_value", Value: 12}, {Name: "expected_value", Value: 80.333}, {Name: "deviation_score", Value: -2.4567}, {Name: "rank", Value: 9}}},
			{ID: idKPI, Category: analysis.CategoryImprovement, Kind: analysis.KindKPIChange, Dimension: "date", Metric: "sales", Segment: "2024-05",
				Facts: []analysis.Fact{{Name: "change_pct", Value: -12.5}, {Name: "previous_value", Value: 400}, {Name: "current_value", Value: 350}}},
			{ID: idSuggest, Category: analysis.CategorySuggestion, Kind: analysis.KindSuggestion, Metric: "visits",
				Facts: []analysis.Fact{}, Message: "No segment of visits stands out from the rest."},
		},
	}
}

func TestTemplateSentences(t *testing.T) {
	ns, err := TemplateNarrator{}.Narrate(context.Background(), sampleResult())
	require.NoError(t, err)
	require.Len(t, ns, 4)

	by := ByInsight(ns)
	assert.Equal(t, `region "North" leads on sales with a sum of 1250.5 over 4 rows (rank 1).`, by[idTop].Text)
	assert.Equal(t, `store id "S-07" has an unusually low net sales of 12 against a typical 80.33 (deviation score -2.46).`, by[idAnomaly].Text)
	assert.Equal(t, "Sales fell 12.5% in period 2024-05 against the period before, from 400 to 350.", by[idKPI].Text)
	assert.Equal(t, "No segment of visits stands out from the rest.", by[idSuggest].Text)
	for _, n := range ns {
		assert.Equal(t, SourceTemplate, n.Source)
	}
}

func TestTemplateSentencesAreTraceable(t *testing.T) {
	res := sampleResult()
	for _, in := range res.Insights {
		assert.Empty(t, untraceable(Sentence(in), in), "template sentence for %s", in.Kind)
	}
}

func TestTemplateSkipsInsufficient(t *testing.T) {
	ns, err := TemplateNarrator{}.Narrate(context.Background(), &analysis.Result{})
	require.NoError(t, err)
	assert.Empty(t, ns)
}

type fakeRuntime struct {
	reply string
	err   error
	got   ai.GenerateRequest
}

func (f *fakeRuntime) Generate(_ context.Context, req ai.GenerateRequest) (*ai.GenerateResponse, error) {
	f.got = req
	if f.err != nil {
		return nil, f.err
	}
	return &ai.GenerateResponse{Choices: []ai.Choice{{Message: ai.Message{Role: "assistant", Content: f.reply}}}}, nil
}

func TestModelNarratorKeepsTraceableSentences(t *testing.T) {
	rt := &fakeRuntime{reply: strings.Join([]string{
		fmt.Sprintf("%s: North led sales with 1,250.5 across 4 rows.", idTop),
		fmt.Sprintf("- %s: Store S-07 sold 12 against roughly 80, a 3x shortfall.", idAnomaly),
		fmt.Sprintf("%s: Sales dropped 12.5%% from 400 to 350 in 2024-05.", idKPI),
		"some chatter the parser should ignore",
	}, "\n")}
	m := ModelNarrator{Runtime: rt, Model: "test-model", MaxTokens: 256}

	ns, err := m.Narrate(context.Background(), sampleResult())
	require.NoError(t, err)
	by := ByInsight(ns)

	assert.Equal(t, SourceModel, by[idTop].Source)
	assert.Equal(t, "North led sales with 1,250.5 across 4 rows.", by[idTop].Text)
	assert.Equal(t, SourceModel, by[idKPI].Source)

	// "3x" is not a fact of the anomaly
	assert.Equal(t, SourceTemplate, by[idAnomaly].Source)
	assert.Equal(t, Sentence(sampleResult().Insights[1]), by[idAnomaly].Text)
	// no reply line for the suggestion
	assert.Equal(t, SourceTemplate, by[idSuggest].Source)

	require.Len(t, rt.got.Messages, 2)
	assert.Equal(t, "test-model", rt.got.Model)
	assert.Contains(t, rt.got.Messages[1].Content, `"change_pct":-12.5`)
}

func TestModelNarratorFallsBackOnRuntimeError(t *testing.T) {
	m := ModelNarrator{Runtime: &fakeRuntime{err: errors.New("boom")}, Model: "m"}
	ns, err := m.Narrate(context.Background(), sampleResult())
	require.Error(t, err)
	require.Len(t, ns, 4)
	for _, n := range ns {
		assert.Equal(t, SourceTemplate, n.Source)
	}
}

func TestModelNarratorBudgetLimitsPrompt(t *testing.T) {
	rt := &fakeRuntime{reply: ""}
	m := ModelNarrator{Runtime: rt, Model: "m", PromptBudget: 1}
	ns, err := m.Narrate(context.Background(), sampleResult())
	require.NoError(t, err)
	assert.Len(t, ns, 4)
	assert.Empty(t, rt.got.Messages, "nothing fits the budget so no request is sent")
}

func TestTraceable(t *testing.T) {
	facts := []analysis.Fact{{Value: 123.456}, {Value: -7}}
	assert.True(t, traceable("123.46", facts))
	assert.True(t, traceable("123", facts))
	assert.True(t, traceable("7", facts))
	assert.False(t, traceable("123.4", facts))
	assert.False(t, traceable("8", facts))
}
