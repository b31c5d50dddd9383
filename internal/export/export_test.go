package export

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/KaramelBytes/insightloom/internal/analysis"
	"github.com/KaramelBytes/insightloom/internal/narrate"
)

func regionReport(t *testing.T) Report {
	t.Helper()
	tbl := analysis.NewTableFromRecords([]string{"region", "sales"}, [][]string{
		{"A", "10"}, {"B", "20"}, {"C", "30"},
		{"A", "10"}, {"B", "20"}, {"C", "30"},
	})
	res, err := analysis.Run(tbl, nil, analysis.DefaultOptions())
	require.NoError(t, err)
	require.True(t, res.Sufficient(), res.Validation.Reasons)
	return Report{Dataset: "regions.csv", Result: res}
}

func TestRecordsFollowInsightOrder(t *testing.T) {
	rep := regionReport(t)
	recs := Records(rep)
	require.Len(t, recs, 3)
	assert.Equal(t, analysis.CategoryGood, recs[0].Category)
	assert.Equal(t, "C", recs[0].Segment)
	assert.Equal(t, analysis.CategoryImprovement, recs[1].Category)
	assert.Equal(t, "A", recs[1].Segment)
	assert.Equal(t, analysis.CategorySuggestion, recs[2].Category)
	for _, r := range recs {
		assert.NotEmpty(t, r.EvidenceIDs)
		assert.NotNil(t, r.SummaryFacts)
	}
}

func TestJSONFlatAndFull(t *testing.T) {
	rep := regionReport(t)
	b, err := JSON(rep, false)
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(b, &doc))
	insights := doc["insights"].([]any)
	require.Len(t, insights, 3)
	first := insights[0].(map[string]any)
	assert.Equal(t, "good", first["category"])
	assert.Contains(t, first, "summary_facts")
	assert.Contains(t, first, "evidence_ids")
	assert.NotContains(t, doc, "aggregations")
	suggestion := insights[2].(map[string]any)
	assert.Equal(t, []any{}, suggestion["summary_facts"])

	rep.Full = true
	b, err = Render(rep, FormatJSON)
	require.NoError(t, err)
	doc = nil
	require.NoError(t, json.Unmarshal(b, &doc))
	assert.Contains(t, doc, "aggregations")
	assert.Contains(t, doc, "profiles")
}

func TestMarkdownUsesNarrationsAndSections(t *testing.T) {
	rep := regionReport(t)
	top := rep.Result.Insights[0]
	rep.Narrations = []narrate.Narration{{InsightID: top.ID, Text: "C | carried the quarter", Source: narrate.SourceModel}}
	md := Markdown(rep)

	assert.Contains(t, md, "[DATASET SUMMARY]\nFile: regions.csv\nRows: 6\nColumns: 2\n")
	assert.Contains(t, md, "[INSIGHTS]")
	assert.Contains(t, md, "What is going well (1)")
	assert.Contains(t, md, "- C / carried the quarter\n")
	assert.Contains(t, md, `region "A" trails on sales`)
	assert.Contains(t, md, "[SCHEMA]\n- region: categorical")
	assert.NotContains(t, md, "[ANOMALIES]")
}

func TestMarkdownInsufficient(t *testing.T) {
	tbl := analysis.NewTableFromRecords([]string{"note"}, [][]string{{"a"}, {"b"}})
	res, err := analysis.Run(tbl, nil, analysis.DefaultOptions())
	require.NoError(t, err)
	require.False(t, res.Sufficient())

	md := Markdown(Report{Result: res})
	assert.Contains(t, md, "[INSUFFICIENT DATA]")
	assert.Contains(t, md, "no metric column mapped")
	assert.Contains(t, md, "To continue:")
	assert.NotContains(t, md, "[INSIGHTS]")
}

func TestXLSXSheets(t *testing.T) {
	rep := regionReport(t)
	b, err := XLSX(rep)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(b))
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{SheetInsights, SheetAggregates, SheetAnomalies, SheetKPIs, SheetProfiles}, f.GetSheetList())

	rows, err := f.GetRows(SheetInsights)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, "category", rows[0][1])
	assert.Equal(t, "good", rows[1][1])

	aggRows, err := f.GetRows(SheetAggregates)
	require.NoError(t, err)
	assert.Len(t, aggRows, 4)
}

func TestWriteAndFormats(t *testing.T) {
	rep := regionReport(t)
	dir := t.TempDir()
	for _, name := range []string{"out.json", "out.md", "out.xlsx"} {
		p := filepath.Join(dir, name)
		require.NoError(t, Write(p, rep, FormatFromPath(p)))
		info, err := os.Stat(p)
		require.NoError(t, err)
		assert.Positive(t, info.Size())
	}

	f, err := ParseFormat("MD")
	require.NoError(t, err)
	assert.Equal(t, FormatMarkdown, f)
	_, err = ParseFormat("pdf")
	assert.Error(t, err)
}
