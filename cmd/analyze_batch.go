package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/KaramelBytes/insightloom/internal/export"
	"github.com/KaramelBytes/insightloom/internal/logging"
	"github.com/KaramelBytes/insightloom/internal/parser"
	"github.com/KaramelBytes/insightloom/internal/utils"
)

var (
	abOutDir    string
	abFormat    string
	abNarrate   string
	abModel     string
	abFull      bool
	abMap       []string
	abDepth     string
	abJobs      int
	abQuiet     bool
	abKeepGoing bool
	abLoad      loadFlags
)

type batchOutcome struct {
	path   string
	out    string
	report export.Report
	err    error
}

var analyzeBatchCmd = &cobra.Command{
	Use:   "analyze-batch <files...>",
	Short: "Analyze multiple CSV/TSV/XLSX/JSON files concurrently",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		files, err := expandInputs(args)
		if err != nil {
			return err
		}
		loadOpt, err := abLoad.options()
		if err != nil {
			return err
		}
		override, err := parseOverride(abMap)
		if err != nil {
			return err
		}
		format := export.FormatMarkdown
		if abFormat != "" {
			if format, err = export.ParseFormat(abFormat); err != nil {
				return err
			}
		}
		if abOutDir == "" {
			return errors.New("--out-dir is required")
		}
		if err := utils.EnsureDir(abOutDir); err != nil {
			return err
		}
		n, err := newNarrator(abNarrate, abModel)
		if err != nil {
			return err
		}
		opt, err := optionsForDepth(abDepth)
		if err != nil {
			return err
		}
		outNames := batchOutputNames(files, format)

		w := cmd.OutOrStdout()
		total := len(files)
		results := make([]batchOutcome, total)
		g, ctx := errgroup.WithContext(cmd.Context())
		jobs := abJobs
		if jobs <= 0 {
			jobs = runtime.NumCPU()
		}
		g.SetLimit(jobs)
		for i, path := range files {
			if !abQuiet {
				fmt.Fprintf(w, "[%d/%d] Processing %s...\n", i+1, total, filepath.Base(path))
			}
			g.Go(func() error {
				if ctx.Err() != nil {
					return nil
				}
				runCtx := logging.WithRunID(ctx, uuid.NewString())
				r := batchOutcome{path: path, out: filepath.Join(abOutDir, outNames[i])}
				defer func() { results[i] = r }()
				ds, err := parser.LoadFile(path, loadOpt)
				if err == nil {
					r.report, err = analyzeDataset(runCtx, ds, override, opt, n)
				}
				if err == nil {
					r.report.Full = abFull
					err = export.Write(r.out, r.report, format)
				}
				if err != nil {
					r.err = fmt.Errorf("%s: %w", path, err)
					logger.ErrorContext(runCtx, "batch item failed", "file", path, "error", err)
					if !abKeepGoing {
						return r.err
					}
				}
				return nil
			})
		}
		gerr := g.Wait()

		failed := 0
		for _, r := range results {
			switch {
			case r.err != nil:
				failed++
				if !abQuiet {
					fmt.Fprintf(w, "✗ %v\n", r.err)
				}
			case r.report.Result == nil:
				// cancelled before it ran
			default:
				if !abQuiet {
					fmt.Fprintln(w, summaryLine(r.report))
				}
			}
		}
		if gerr != nil {
			return gerr
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d files failed", failed, total)
		}
		fmt.Fprintf(w, "✓ Wrote %d %s reports to %s\n", total, format, abOutDir)
		return nil
	},
}

// expandInputs resolves globs and literal paths into a sorted, deduplicated
// file list.
func expandInputs(args []string) ([]string, error) {
	var files []string
	seen := map[string]struct{}{}
	for _, arg := range args {
		matches, _ := filepath.Glob(arg)
		if len(matches) == 0 {
			if _, err := os.Stat(arg); err == nil {
				matches = []string{arg}
			}
		}
		for _, m := range matches {
			if _, ok := seen[m]; ok {
				continue
			}
			seen[m] = struct{}{}
			files = append(files, m)
		}
	}
	if len(files) == 0 {
		return nil, errors.New("no input files matched")
	}
	sort.Strings(files)
	return files, nil
}

// batchOutputNames gives every input a report name in the output directory.
// Inputs sharing a base name get __2, __3... suffixes in input order; a
// suffix never reuses the stem of another input.
func batchOutputNames(files []string, f export.Format) []string {
	stems := make([]string, len(files))
	taken := map[string]bool{}
	for i, path := range files {
		base := filepath.Base(path)
		stems[i] = strings.TrimSuffix(base, filepath.Ext(base))
		taken[stems[i]] = true
	}
	names := make([]string, len(files))
	used := map[string]bool{}
	for i, stem := range stems {
		if used[stem] {
			for k := 2; ; k++ {
				c := fmt.Sprintf("%s__%d", stems[i], k)
				if !taken[c] && !used[c] {
					stem = c
					break
				}
			}
		}
		used[stem] = true
		names[i] = stem + ".insights." + f.Ext()
	}
	return names
}

func init() {
	rootCmd.AddCommand(analyzeBatchCmd)
	f := analyzeBatchCmd.Flags()
	f.StringVar(&abOutDir, "out-dir", "", "directory for per-file reports")
	f.StringVarP(&abFormat, "format", "f", "", "report format: markdown | json | xlsx")
	f.StringVar(&abNarrate, "narrate", "", "narration: template | model | none (default from config)")
	f.StringVar(&abModel, "model", "", "model for --narrate model (default from config)")
	f.BoolVar(&abFull, "full", false, "JSON: include profiles, aggregations, anomalies and KPIs")
	f.StringArrayVar(&abMap, "map", nil, "role correction column=role applied to every file (repeatable)")
	f.StringVar(&abDepth, "depth", "", "insight depth: basic | moderate | detailed (overrides top_k/bottom_k)")
	f.IntVarP(&abJobs, "jobs", "j", 0, "files analyzed in parallel (0 = number of CPUs)")
	f.BoolVar(&abQuiet, "quiet", false, "suppress progress and per-file summaries")
	f.BoolVar(&abKeepGoing, "keep-going", false, "continue with remaining files after a failure")
	abLoad.register(f)
}
