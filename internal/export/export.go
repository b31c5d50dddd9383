// Package export renders an analysis result as JSON, Markdown or an XLSX
// workbook and writes it atomically.
package export

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/KaramelBytes/insightloom/internal/analysis"
	"github.com/KaramelBytes/insightloom/internal/narrate"
	"github.com/KaramelBytes/insightloom/internal/utils"
)

type Format string

const (
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
	FormatXLSX     Format = "xlsx"
)

// Ext is the file extension used for the format, without the dot.
func (f Format) Ext() string {
	if f == FormatMarkdown {
		return "md"
	}
	return string(f)
}

// ParseFormat accepts json, md/markdown and xlsx.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json":
		return FormatJSON, nil
	case "md", "markdown":
		return FormatMarkdown, nil
	case "xlsx", "excel":
		return FormatXLSX, nil
	}
	return "", fmt.Errorf("unknown format %q (use json, markdown or xlsx)", s)
}

// FormatFromPath picks a format from the output file extension, defaulting
// to Markdown.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON
	case ".xlsx":
		return FormatXLSX
	}
	return FormatMarkdown
}

// Report is everything an export needs about one run.
type Report struct {
	Dataset    string
	Warnings   []string
	Result     *analysis.Result
	Narrations []narrate.Narration
	// Full adds profiles and evidence objects to JSON output.
	Full bool
}

// Record is the flat, per-insight export shape.
type Record struct {
	ID           string            `json:"id"`
	Category     analysis.Category `json:"category"`
	Kind         string            `json:"kind"`
	Dimension    string            `json:"dimension,omitempty"`
	Metric       string            `json:"metric,omitempty"`
	Segment      string            `json:"segment,omitempty"`
	Narrative    string            `json:"narrative,omitempty"`
	SummaryFacts []analysis.Fact   `json:"summary_facts"`
	EvidenceIDs  []string          `json:"evidence_ids"`
}

// Records flattens the insights of rep in their assembled order.
func Records(rep Report) []Record {
	if rep.Result == nil {
		return nil
	}
	texts := narrate.ByInsight(rep.Narrations)
	out := make([]Record, 0, len(rep.Result.Insights))
	for _, in := range rep.Result.Insights {
		facts := in.Facts
		if facts == nil {
			facts = []analysis.Fact{}
		}
		out = append(out, Record{
			ID:           in.ID,
			Category:     in.Category,
			Kind:         in.Kind,
			Dimension:    in.Dimension,
			Metric:       in.Metric,
			Segment:      in.Segment,
			Narrative:    texts[in.ID].Text,
			SummaryFacts: facts,
			EvidenceIDs:  in.EvidenceIDs(),
		})
	}
	return out
}

// Render encodes rep in format f.
func Render(rep Report, f Format) ([]byte, error) {
	switch f {
	case FormatJSON:
		return JSON(rep, rep.Full)
	case FormatMarkdown:
		return []byte(Markdown(rep)), nil
	case FormatXLSX:
		return XLSX(rep)
	}
	return nil, fmt.Errorf("unknown format %q", f)
}

// Write renders rep and writes it to path via a temp file and rename.
func Write(path string, rep Report, f Format) error {
	b, err := Render(rep, f)
	if err != nil {
		return err
	}
	if err := utils.SafeWriteFile(path, b); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
