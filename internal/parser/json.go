package parser

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	json "github.com/goccy/go-json"

	"github.com/KaramelBytes/insightloom/internal/analysis"
)

type jsonLoader struct{}

func (jsonLoader) CanParse(filename string) bool {
	return strings.HasSuffix(strings.ToLower(filename), ".json")
}

// Load reads an array of flat objects. Columns appear in the order their
// keys are first seen; keys missing from a record become nulls. Nested
// values are kept as their JSON text.
func (jsonLoader) Load(path string, opt LoadOptions) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open json: %w", err)
	}
	defer f.Close()
	return decodeRecords(f, opt)
}

func decodeRecords(r io.Reader, opt LoadOptions) (*Dataset, error) {
	dec := json.NewDecoder(r)
	if err := expectDelim(dec, '['); err != nil {
		return nil, err
	}
	var order []string
	index := map[string]int{}
	var records []map[string]any
	total := 0
	for dec.More() {
		if err := expectDelim(dec, '{'); err != nil {
			return nil, fmt.Errorf("record %d: %w", total+1, err)
		}
		rec := map[string]any{}
		for dec.More() {
			tok, err := dec.Token()
			if err != nil {
				return nil, fmt.Errorf("record %d: %w", total+1, err)
			}
			key, ok := tok.(string)
			if !ok {
				return nil, fmt.Errorf("record %d: expected key, got %v", total+1, tok)
			}
			var v any
			if err := dec.Decode(&v); err != nil {
				return nil, fmt.Errorf("record %d field %q: %w", total+1, key, err)
			}
			if _, seen := index[key]; !seen {
				index[key] = len(order)
				order = append(order, key)
			}
			rec[key] = flatten(v)
		}
		if err := expectDelim(dec, '}'); err != nil {
			return nil, fmt.Errorf("record %d: %w", total+1, err)
		}
		total++
		if opt.MaxRows <= 0 || len(records) < opt.MaxRows {
			records = append(records, rec)
		}
	}
	if err := expectDelim(dec, ']'); err != nil {
		return nil, err
	}
	if len(order) == 0 {
		return nil, errors.New("json dataset has no fields")
	}

	names := normalizeHeader(order)
	t := &analysis.Table{Columns: make([]analysis.Column, len(order))}
	for i, key := range order {
		vals := make([]any, len(records))
		for r, rec := range records {
			vals[r] = rec[key]
		}
		t.Columns[i] = analysis.Column{Name: names[i], Values: vals}
	}
	ds := &Dataset{Table: t, TotalRows: total}
	if len(records) < total {
		ds.Warnings = append(ds.Warnings, fmt.Sprintf("loaded only %d/%d rows due to max rows", len(records), total))
	}
	return ds, nil
}

func expectDelim(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("read json: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != want {
		return fmt.Errorf("expected %q, got %v", want, tok)
	}
	return nil
}

// flatten keeps primitives and re-encodes arrays and objects as text.
func flatten(v any) any {
	switch v.(type) {
	case nil, string, bool, float64:
		return v
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}
