package parser

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"math"
	"math/rand/v2"
	"strconv"
	"time"

	"github.com/KaramelBytes/insightloom/internal/analysis"
)

// SampleName is the dataset name the built-in marketing sample reports under.
const SampleName = "sample_marketing_data.csv"

var (
	sampleCampaigns = []string{"Spring_Sale", "Summer_Promo", "Fall_Campaign", "Winter_Offer"}
	sampleSources   = []string{"Google", "Facebook", "Instagram", "Twitter", "Email"}
	sampleMediums   = []string{"CPC", "Social", "Organic", "Display"}
)

// Sample generates a marketing campaign table with one row per ad placement
// over 2023. The same rows and seed always give the same table.
func Sample(rows int, seed uint64) *Dataset {
	r := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	start := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	names := []string{"date", "campaign", "source", "medium", "spend", "impressions", "clicks", "conversions", "revenue", "cpc", "ctr", "roi"}
	t := &analysis.Table{Columns: make([]analysis.Column, len(names))}
	for i, n := range names {
		t.Columns[i] = analysis.Column{Name: n, Values: make([]any, rows)}
	}
	for i := 0; i < rows; i++ {
		spend := round(50+r.Float64()*1950, 2)
		impressions := 1000 + r.IntN(49000)
		clicks := 10 + r.IntN(490)
		revenue := round(r.Float64()*5000, 2)
		cells := []any{
			start.AddDate(0, 0, r.IntN(365)),
			sampleCampaigns[r.IntN(len(sampleCampaigns))],
			sampleSources[r.IntN(len(sampleSources))],
			sampleMediums[r.IntN(len(sampleMediums))],
			spend,
			impressions,
			clicks,
			r.IntN(50),
			revenue,
			round(spend/float64(clicks), 4),
			round(float64(clicks)/float64(impressions), 4),
			round((revenue-spend)/spend, 4),
		}
		for c, v := range cells {
			t.Columns[c].Values[i] = v
		}
	}
	return &Dataset{Name: SampleName, Table: t, TotalRows: rows}
}

func round(x float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(x*p) / p
}

// EncodeCSV renders a table as comma separated text with a header row. Dates
// are written as YYYY-MM-DD so the CSV loader reads them back as dates.
func EncodeCSV(t *analysis.Table) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	header := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		header[i] = c.Name
	}
	if err := w.Write(header); err != nil {
		return nil, fmt.Errorf("write csv: %w", err)
	}
	rec := make([]string, len(t.Columns))
	for row := 0; row < t.Rows(); row++ {
		for i, c := range t.Columns {
			rec[i] = formatCell(c.Values[row])
		}
		if err := w.Write(rec); err != nil {
			return nil, fmt.Errorf("write csv: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("write csv: %w", err)
	}
	return buf.Bytes(), nil
}

func formatCell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case time.Time:
		if x.Hour() == 0 && x.Minute() == 0 && x.Second() == 0 {
			return x.Format("2006-01-02")
		}
		return x.Format(time.RFC3339)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int:
		return strconv.Itoa(x)
	}
	return fmt.Sprint(v)
}
