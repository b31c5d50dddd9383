package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/KaramelBytes/insightloom/internal/ai"
	"github.com/KaramelBytes/insightloom/internal/analysis"
	"github.com/KaramelBytes/insightloom/internal/export"
	"github.com/KaramelBytes/insightloom/internal/narrate"
	"github.com/KaramelBytes/insightloom/internal/parser"
)

// loadFlags are the table loading flags shared by analyze, analyze-batch,
// profile and init.
type loadFlags struct {
	delimiter  string
	sheetName  string
	sheetIndex int
	maxRows    int
}

func (f *loadFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&f.delimiter, "delimiter", "", "CSV delimiter: ',' | ';' | 'tab' (sniffed if omitted)")
	fs.StringVar(&f.sheetName, "sheet-name", "", "XLSX: sheet name to analyze")
	fs.IntVar(&f.sheetIndex, "sheet-index", 1, "XLSX: 1-based sheet index (used if --sheet-name not provided)")
	fs.IntVar(&f.maxRows, "max-rows", 0, "maximum rows to load (0 = config max_rows)")
}

func (f *loadFlags) options() (parser.LoadOptions, error) {
	d, err := parseDelimiter(f.delimiter)
	if err != nil {
		return parser.LoadOptions{}, err
	}
	opt := parser.LoadOptions{
		Delimiter:  d,
		Sheet:      f.sheetName,
		SheetIndex: f.sheetIndex,
		MaxRows:    f.maxRows,
	}
	if opt.MaxRows <= 0 {
		opt.MaxRows = maxRowsFromConfig()
	}
	return opt, nil
}

func parseDelimiter(s string) (rune, error) {
	switch s {
	case "":
		return 0, nil
	case ",":
		return ',', nil
	case ";":
		return ';', nil
	case "\t", "tab", "\\t":
		return '\t', nil
	case "|", "pipe":
		return '|', nil
	}
	return 0, fmt.Errorf("unsupported --delimiter: %s", s)
}

// parseOverride turns --map col=role flags into a mapping override.
func parseOverride(assignments []string) (analysis.RoleMapping, error) {
	if len(assignments) == 0 {
		return nil, nil
	}
	m := analysis.RoleMapping{}
	for _, a := range assignments {
		col, val, ok := strings.Cut(a, "=")
		col = strings.TrimSpace(col)
		if !ok || col == "" {
			return nil, fmt.Errorf("invalid --map %q (want column=role)", a)
		}
		role, ok := analysis.ParseRole(val)
		if !ok {
			return nil, fmt.Errorf("invalid role %q for column %q (use metric, dimension, date or ignored)", val, col)
		}
		m[col] = role
	}
	return m, nil
}

// optionsForDepth applies a --depth preset on top of the configured options.
func optionsForDepth(depth string) (analysis.Options, error) {
	opt := analysisOptions()
	if depth == "" {
		return opt, nil
	}
	d, err := analysis.ParseDepth(depth)
	if err != nil {
		return opt, err
	}
	return opt.WithDepth(d), nil
}

func runtimeConfig() (string, ai.RuntimeConfig) {
	if cfg == nil {
		return ai.ProviderOpenRouter, ai.RuntimeConfig{}
	}
	rc := ai.RuntimeConfig{
		HTTPTimeout: time.Duration(cfg.HTTPTimeoutSec) * time.Second,
		RetryMax:    cfg.RetryMaxAttempts,
		BaseDelay:   time.Duration(cfg.RetryBaseDelayMs) * time.Millisecond,
		MaxDelay:    time.Duration(cfg.RetryMaxDelayMs) * time.Millisecond,
		APIKey:      cfg.APIKey,
	}
	if cfg.DefaultProvider == ai.ProviderOllama {
		rc.BaseURL = cfg.OllamaHost
		if cfg.OllamaTimeoutSec > 0 {
			rc.HTTPTimeout = time.Duration(cfg.OllamaTimeoutSec) * time.Second
		}
	}
	return cfg.DefaultProvider, rc
}

// newNarrator builds the narrator named by kind: template, model or none.
// A nil narrator means no narrative text.
func newNarrator(kind, model string) (narrate.Narrator, error) {
	if kind == "" {
		kind = "template"
		if cfg != nil && cfg.Narrator != "" {
			kind = cfg.Narrator
		}
	}
	switch strings.ToLower(kind) {
	case "template":
		return narrate.TemplateNarrator{}, nil
	case "none", "off":
		return nil, nil
	case "model", "ai":
	default:
		return nil, fmt.Errorf("unsupported --narrate: %s (use template, model or none)", kind)
	}
	provider, rc := runtimeConfig()
	rt, ok := ai.NewRuntime(provider, rc)
	if !ok {
		return nil, fmt.Errorf("unknown provider %q (use openrouter or ollama)", provider)
	}
	m := narrate.ModelNarrator{Runtime: rt, Model: model, Logger: logger}
	if cfg != nil {
		if m.Model == "" {
			m.Model = cfg.DefaultModel
		}
		m.MaxTokens = cfg.MaxTokens
		m.Temperature = cfg.Temperature
	}
	return m, nil
}

// analyzeDataset runs the pipeline over ds and narrates the result. A
// narration failure is logged and the fallback text kept; only table and
// option errors fail the run.
func analyzeDataset(ctx context.Context, ds *parser.Dataset, override analysis.RoleMapping, opt analysis.Options, n narrate.Narrator) (export.Report, error) {
	start := time.Now()
	res, err := analysis.Run(ds.Table, override, opt)
	if err != nil {
		return export.Report{}, err
	}
	logger.DebugContext(ctx, "pipeline finished",
		"dataset", ds.Name,
		"rows", ds.Table.Rows(),
		"columns", len(ds.Table.Columns),
		"sufficient", res.Sufficient(),
		"insights", len(res.Insights),
		"elapsed", time.Since(start))
	rep := export.Report{Dataset: ds.Name, Warnings: ds.Warnings, Result: res}
	if n == nil || !res.Sufficient() {
		return rep, nil
	}
	texts, err := n.Narrate(ctx, res)
	if err != nil {
		logger.WarnContext(ctx, "narration fell back to templates", "dataset", ds.Name, "error", err)
	}
	rep.Narrations = texts
	return rep, nil
}

// summaryLine is the one-line outcome printed after a run.
func summaryLine(rep export.Report) string {
	res := rep.Result
	if !res.Sufficient() {
		return fmt.Sprintf("⚠ %s: insufficient data (%s)", rep.Dataset, strings.Join(res.Validation.Reasons, "; "))
	}
	c := res.Counts()
	return fmt.Sprintf("✓ %s: %d insights (good %d, improvement %d, suggestion %d, issue %d)",
		rep.Dataset, len(res.Insights),
		c[analysis.CategoryGood], c[analysis.CategoryImprovement], c[analysis.CategorySuggestion], c[analysis.CategoryIssue])
}
