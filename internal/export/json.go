package export

import (
	"github.com/KaramelBytes/insightloom/internal/analysis"
	"github.com/KaramelBytes/insightloom/internal/utils"
)

type document struct {
	Dataset      string                    `json:"dataset,omitempty"`
	Warnings     []string                  `json:"warnings,omitempty"`
	Validation   analysis.ValidationResult `json:"validation"`
	Counts       map[analysis.Category]int `json:"counts,omitempty"`
	Insights     []Record                  `json:"insights"`
	Profiles     []analysis.ColumnProfile  `json:"profiles,omitempty"`
	Aggregations []analysis.Aggregation    `json:"aggregations,omitempty"`
	Anomalies    []analysis.AnomalyFlag    `json:"anomalies,omitempty"`
	KPIs         []analysis.KPIRecord      `json:"kpis,omitempty"`
}

// JSON encodes the flat insight records. With full set, profiles and every
// evidence object the records point at are included as well.
func JSON(rep Report, full bool) ([]byte, error) {
	doc := document{Dataset: rep.Dataset, Warnings: rep.Warnings, Insights: Records(rep)}
	if doc.Insights == nil {
		doc.Insights = []Record{}
	}
	if res := rep.Result; res != nil {
		doc.Validation = res.Validation
		if res.Sufficient() {
			doc.Counts = res.Counts()
		}
		if full {
			doc.Profiles = res.Profiles
			doc.Aggregations = res.Aggregations
			doc.Anomalies = res.Anomalies
			doc.KPIs = res.KPIs
		}
	}
	return utils.PrettyJSON(doc)
}
