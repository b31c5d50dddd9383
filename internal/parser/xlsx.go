package parser

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/KaramelBytes/insightloom/internal/analysis"
)

type xlsxLoader struct{}

func (xlsxLoader) CanParse(filename string) bool {
	name := strings.ToLower(filename)
	return strings.HasSuffix(name, ".xlsx") || strings.HasSuffix(name, ".xlsm")
}

// Load reads the selected sheet. With no sheet name and SheetIndex <= 0 it
// defaults to the first sheet. The first non-empty row is the header.
func (xlsxLoader) Load(path string, opt LoadOptions) (*Dataset, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook '%s' has no sheets", filepath.Base(path))
	}
	sheet := ""
	switch {
	case opt.Sheet != "":
		for _, s := range sheets {
			if strings.EqualFold(s, opt.Sheet) {
				sheet = s
				break
			}
		}
		if sheet == "" {
			return nil, fmt.Errorf("sheet '%s' not found in workbook '%s'.\nAvailable sheets: %s",
				opt.Sheet, filepath.Base(path), strings.Join(sheets, ", "))
		}
	case opt.SheetIndex > 0:
		if opt.SheetIndex > len(sheets) {
			return nil, fmt.Errorf("sheet index %d out of range: workbook '%s' has %d sheets",
				opt.SheetIndex, filepath.Base(path), len(sheets))
		}
		sheet = sheets[opt.SheetIndex-1]
	default:
		sheet = sheets[0]
	}

	all, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheet, err)
	}
	start := 0
	for start < len(all) && blankRecord(all[start]) {
		start++
	}
	if start == len(all) {
		return nil, fmt.Errorf("sheet %s is empty", sheet)
	}
	header := all[start]
	var rows [][]string
	for _, rec := range all[start+1:] {
		if !blankRecord(rec) {
			rows = append(rows, rec)
		}
	}
	ds := &Dataset{Name: fmt.Sprintf("%s (sheet: %s)", filepath.Base(path), sheet)}
	rows = capRows(ds, rows, opt.MaxRows)
	ds.Table = analysis.NewTableFromRecords(normalizeHeader(header), rows)
	return ds, nil
}
