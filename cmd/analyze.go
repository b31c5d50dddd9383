package cmd

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/KaramelBytes/insightloom/internal/analysis"
	"github.com/KaramelBytes/insightloom/internal/export"
	"github.com/KaramelBytes/insightloom/internal/logging"
	"github.com/KaramelBytes/insightloom/internal/parser"
	"github.com/KaramelBytes/insightloom/internal/project"
	"github.com/KaramelBytes/insightloom/internal/utils"
)

var (
	anaProject    string
	anaOutputPath string
	anaFormat     string
	anaNarrate    string
	anaModel      string
	anaFull       bool
	anaMap        []string
	anaDepth      string
	anaSample     bool
	anaLoad       loadFlags
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [file]",
	Short: "Analyze a CSV/TSV/XLSX/JSON table and report categorized insights",
	Long: `Analyze a table and report categorized insights.

Pass a file directly, or -p to analyze a project's dataset with its saved
role corrections. Run without either inside a project directory to use that
project. With -p the run is recorded in the project history and the
report is written under the project directory unless -o is given.
--sample analyzes the built-in marketing sample instead of a file.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var p *project.Project
		if anaSample && (len(args) > 0 || anaProject != "") {
			return errors.New("--sample cannot be combined with a file or --project")
		}
		if len(args) == 0 && anaProject == "" && !anaSample {
			// Inside a project directory the project is implied.
			root, err := utils.FindProjectRoot("")
			if err != nil {
				return errors.New("a file argument or --project is required")
			}
			if p, err = project.LoadProject(root); err != nil {
				return err
			}
		}
		loadOpt, err := anaLoad.options()
		if err != nil {
			return err
		}
		override, err := parseOverride(anaMap)
		if err != nil {
			return err
		}

		var path string
		if len(args) == 1 {
			path = args[0]
		}
		if anaProject != "" {
			if p, err = loadProjectByName(anaProject); err != nil {
				return err
			}
		}
		if p != nil {
			if path == "" {
				if p.Dataset == nil {
					return fmt.Errorf("project '%s' has no dataset; run 'insightloom init %s --data <file>' or pass a file", p.Name, p.Name)
				}
				path = p.Dataset.Path
				loadOpt = p.Dataset.LoadOptions(loadOpt.MaxRows)
			}
			// Flag corrections win over the saved ones.
			saved := p.Override()
			if saved == nil {
				saved = analysis.RoleMapping{}
			}
			maps.Copy(saved, override)
			override = saved
		}

		format := export.FormatMarkdown
		if anaFormat != "" {
			if format, err = export.ParseFormat(anaFormat); err != nil {
				return err
			}
		} else if anaOutputPath != "" {
			format = export.FormatFromPath(anaOutputPath)
		}
		if format == export.FormatXLSX && anaOutputPath == "" && p == nil {
			return errors.New("xlsx output needs --output")
		}

		opt, err := optionsForDepth(anaDepth)
		if err != nil {
			return err
		}
		n, err := newNarrator(anaNarrate, anaModel)
		if err != nil {
			return err
		}

		runID := uuid.NewString()
		ctx := logging.WithRunID(cmd.Context(), runID)
		var ds *parser.Dataset
		if anaSample {
			ds = parser.Sample(defaultSampleRows, defaultSampleSeed)
		} else if ds, err = parser.LoadFile(path, loadOpt); err != nil {
			return err
		}
		rep, err := analyzeDataset(ctx, ds, override, opt, n)
		if err != nil {
			return err
		}
		rep.Full = anaFull

		out := anaOutputPath
		if out == "" && p != nil {
			out = filepath.Join(p.RootDir(), "reports", runID[:8]+"."+format.Ext())
		}
		w := cmd.OutOrStdout()
		if out == "" {
			b, err := export.Render(rep, format)
			if err != nil {
				return err
			}
			if _, err := w.Write(b); err != nil {
				return err
			}
		} else {
			if err := export.Write(out, rep, format); err != nil {
				return err
			}
		}

		if p != nil {
			p.RecordRun(runID, rep.Result, out)
			if err := p.Save(); err != nil {
				return err
			}
			logger.InfoContext(ctx, "run recorded", "project", p.Name)
		}
		if out != "" {
			fmt.Fprintln(w, summaryLine(rep))
			fmt.Fprintf(w, "✓ Wrote %s report to %s\n", format, out)
		} else if !rep.Result.Sufficient() {
			fmt.Fprintln(os.Stderr, summaryLine(rep))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
	f := analyzeCmd.Flags()
	f.StringVarP(&anaProject, "project", "p", "", "project whose dataset and role corrections to use")
	f.StringVarP(&anaOutputPath, "output", "o", "", "write the report to this path (format from extension unless --format)")
	f.StringVarP(&anaFormat, "format", "f", "", "report format: markdown | json | xlsx")
	f.StringVar(&anaNarrate, "narrate", "", "narration: template | model | none (default from config)")
	f.StringVar(&anaModel, "model", "", "model for --narrate model (default from config)")
	f.BoolVar(&anaFull, "full", false, "JSON: include profiles, aggregations, anomalies and KPIs")
	f.StringArrayVar(&anaMap, "map", nil, "role correction column=role (repeatable)")
	f.StringVar(&anaDepth, "depth", "", "insight depth: basic | moderate | detailed (overrides top_k/bottom_k)")
	f.BoolVar(&anaSample, "sample", false, "analyze the built-in marketing sample data")
	anaLoad.register(f)
}
