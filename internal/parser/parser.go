package parser

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/KaramelBytes/insightloom/internal/analysis"
)

// LoadOptions tunes how a file is materialized into a table.
type LoadOptions struct {
	// Delimiter for CSV. If 0, sniffs among ',', ';', '\t'.
	Delimiter rune
	// Sheet selects an XLSX sheet by name; SheetIndex (1-based) is used when empty.
	Sheet      string
	SheetIndex int
	// MaxRows limits data rows loaded; 0 means unlimited.
	MaxRows int
}

// Dataset is a loaded table plus what the loader noticed on the way.
type Dataset struct {
	Name      string
	Table     *analysis.Table
	TotalRows int
	Warnings  []string
}

// Loader materializes one file format into a table.
type Loader interface {
	CanParse(filename string) bool
	Load(path string, opt LoadOptions) (*Dataset, error)
}

var registry []Loader

// Register adds a loader implementation to the registry.
func Register(l Loader) {
	registry = append(registry, l)
}

// LoadFile selects a loader based on filename and loads the table.
func LoadFile(path string, opt LoadOptions) (*Dataset, error) {
	for _, l := range registry {
		if l.CanParse(path) {
			ds, err := l.Load(path, opt)
			if err != nil {
				return nil, err
			}
			if ds.Name == "" {
				ds.Name = filepath.Base(path)
			}
			return ds, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupported, filepath.Ext(path))
}

// Supported reports whether some loader accepts the filename.
func Supported(path string) bool {
	for _, l := range registry {
		if l.CanParse(path) {
			return true
		}
	}
	return false
}

func init() {
	Register(csvLoader{})
	Register(xlsxLoader{})
	Register(jsonLoader{})
}

// ErrUnsupported indicates a format is not supported yet.
var ErrUnsupported = errors.New("unsupported dataset format")

// normalizeHeader trims names, fills blanks as column_N and suffixes
// duplicates so every column can be addressed by name. A suffix never takes
// a name that appears elsewhere in the header.
func normalizeHeader(header []string) []string {
	out := make([]string, len(header))
	taken := map[string]bool{}
	for i, h := range header {
		name := strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if name == "" {
			name = fmt.Sprintf("column_%d", i+1)
		}
		out[i] = name
		taken[name] = true
	}
	used := map[string]bool{}
	for i, name := range out {
		if used[name] {
			for k := 2; ; k++ {
				c := fmt.Sprintf("%s_%d", name, k)
				if !taken[c] && !used[c] {
					name = c
					break
				}
			}
			out[i] = name
		}
		used[name] = true
	}
	return out
}

// capRows applies MaxRows and records a warning when rows were dropped.
func capRows(ds *Dataset, rows [][]string, max int) [][]string {
	ds.TotalRows = len(rows)
	if max > 0 && len(rows) > max {
		ds.Warnings = append(ds.Warnings, fmt.Sprintf("loaded only %d/%d rows due to max rows", max, len(rows)))
		return rows[:max]
	}
	return rows
}
