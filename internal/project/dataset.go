package project

import (
	"time"

	"github.com/KaramelBytes/insightloom/internal/analysis"
	"github.com/KaramelBytes/insightloom/internal/parser"
)

// DatasetRef records which table a project analyzes and how to load it.
type DatasetRef struct {
	Path       string    `json:"path"`
	Sheet      string    `json:"sheet,omitempty"`
	SheetIndex int       `json:"sheet_index,omitempty"`
	Delimiter  string    `json:"delimiter,omitempty"`
	AddedAt    time.Time `json:"added_at"`
}

// LoadOptions rebuilds the loader options the dataset was added with.
// maxRows comes from the caller's configuration.
func (d DatasetRef) LoadOptions(maxRows int) parser.LoadOptions {
	opt := parser.LoadOptions{Sheet: d.Sheet, SheetIndex: d.SheetIndex, MaxRows: maxRows}
	if r := []rune(d.Delimiter); len(r) == 1 {
		opt.Delimiter = r[0]
	}
	return opt
}

// Run summarizes one analysis of the project's dataset.
type Run struct {
	ID         string                    `json:"id"`
	At         time.Time                 `json:"at"`
	Dataset    string                    `json:"dataset,omitempty"`
	Sufficient bool                      `json:"sufficient"`
	Counts     map[analysis.Category]int `json:"counts,omitempty"`
	Reasons    []string                  `json:"reasons,omitempty"`
	Output     string                    `json:"output,omitempty"`
}

func delimiterString(r rune) string {
	if r == 0 {
		return ""
	}
	return string(r)
}
