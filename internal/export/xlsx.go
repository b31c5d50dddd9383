package export

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/KaramelBytes/insightloom/internal/analysis"
)

// Workbook sheet names.
const (
	SheetInsights   = "Insights"
	SheetAggregates = "Aggregates"
	SheetAnomalies  = "Anomalies"
	SheetKPIs       = "KPIs"
	SheetProfiles   = "Profiles"
	SheetValidation = "Validation"
)

type sheet struct {
	name   string
	header []any
	rows   [][]any
}

// XLSX builds a workbook with one sheet per evidence kind and returns its
// bytes. An insufficient result gets Validation and Profiles sheets only.
func XLSX(rep Report) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheets := workbookSheets(rep)
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("xlsx style: %w", err)
	}
	for i, s := range sheets {
		if i == 0 {
			if err := f.SetSheetName("Sheet1", s.name); err != nil {
				return nil, fmt.Errorf("xlsx sheet %s: %w", s.name, err)
			}
		} else if _, err := f.NewSheet(s.name); err != nil {
			return nil, fmt.Errorf("xlsx sheet %s: %w", s.name, err)
		}
		if err := writeSheet(f, s, bold); err != nil {
			return nil, fmt.Errorf("xlsx sheet %s: %w", s.name, err)
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx encode: %w", err)
	}
	return buf.Bytes(), nil
}

func writeSheet(f *excelize.File, s sheet, headerStyle int) error {
	for i, row := range append([][]any{s.header}, s.rows...) {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(s.name, cell, &row); err != nil {
			return err
		}
	}
	if err := f.SetRowStyle(s.name, 1, 1, headerStyle); err != nil {
		return err
	}
	last, err := excelize.ColumnNumberToName(len(s.header))
	if err != nil {
		return err
	}
	if err := f.SetColWidth(s.name, "A", last, 18); err != nil {
		return err
	}
	return f.SetPanes(s.name, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})
}

func workbookSheets(rep Report) []sheet {
	res := rep.Result
	if res == nil {
		return []sheet{validationSheet(analysis.ValidationResult{})}
	}
	if !res.Sufficient() {
		return []sheet{validationSheet(res.Validation), profilesSheet(res)}
	}

	insights := sheet{name: SheetInsights, header: []any{"id", "category", "kind", "dimension", "metric", "segment", "narrative", "summary_facts", "evidence_ids"}}
	for _, r := range Records(rep) {
		facts := make([]string, len(r.SummaryFacts))
		for i, f := range r.SummaryFacts {
			facts[i] = fmt.Sprintf("%s=%g", f.Name, f.Value)
		}
		insights.rows = append(insights.rows, []any{
			r.ID, string(r.Category), r.Kind, r.Dimension, r.Metric, r.Segment, r.Narrative,
			strings.Join(facts, "; "), strings.Join(r.EvidenceIDs, " "),
		})
	}

	aggs := sheet{name: SheetAggregates, header: []any{"id", "dimension", "dimension_value", "metric", "function", "value", "sum", "mean", "count", "rank"}}
	for _, a := range res.Aggregations {
		for _, r := range a.Rows {
			aggs.rows = append(aggs.rows, []any{r.ID, r.Dimension, r.DimensionValue, r.Metric, string(r.Function), r.Value, r.Sum, r.Mean, r.Count, r.Rank})
		}
	}

	anomalies := sheet{name: SheetAnomalies, header: []any{"id", "dimension", "dimension_value", "metric", "observed", "expected", "std_dev", "deviation_score", "direction", "aggregate_id"}}
	for _, a := range res.Anomalies {
		anomalies.rows = append(anomalies.rows, []any{a.ID, a.Dimension, a.DimensionValue, a.Metric, a.Observed, a.Expected, a.StdDev, a.DeviationScore, string(a.Direction), a.AggregateID})
	}

	kpis := sheet{name: SheetKPIs, header: []any{"id", "name", "kind", "value", "unit", "formula", "metrics", "previous", "current"}}
	for _, k := range res.KPIs {
		prev, cur := "", ""
		if k.Period != nil {
			prev, cur = k.Period.Previous, k.Period.Current
		}
		kpis.rows = append(kpis.rows, []any{k.ID, k.Name, string(k.Kind), k.Value, k.Unit, k.Formula, strings.Join(k.Metrics, ", "), prev, cur})
	}

	return []sheet{insights, aggs, anomalies, kpis, profilesSheet(res)}
}

func profilesSheet(res *analysis.Result) sheet {
	s := sheet{name: SheetProfiles, header: []any{"column", "inferred_type", "role", "rows", "null_count", "distinct_count", "numeric_count", "min", "max", "mean"}}
	for _, p := range res.Profiles {
		row := []any{p.Name, string(p.Type), string(res.Mapping[p.Name]), p.Rows, p.NullCount, p.DistinctCount, p.NumericCount}
		if p.Numeric != nil {
			row = append(row, p.Numeric.Min, p.Numeric.Max, p.Numeric.Mean)
		}
		s.rows = append(s.rows, row)
	}
	return s
}

func validationSheet(v analysis.ValidationResult) sheet {
	s := sheet{name: SheetValidation, header: []any{"kind", "message"}}
	for _, r := range v.Reasons {
		s.rows = append(s.rows, []any{"reason", r})
	}
	for _, a := range v.RequiredActions {
		s.rows = append(s.rows, []any{"required_action", a})
	}
	return s
}
