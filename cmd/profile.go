package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/insightloom/internal/analysis"
	"github.com/KaramelBytes/insightloom/internal/parser"
	"github.com/KaramelBytes/insightloom/internal/utils"
)

var (
	profJSON bool
	profLoad loadFlags
)

var profileCmd = &cobra.Command{
	Use:   "profile <file>",
	Short: "Show inferred column types and the default role mapping",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		loadOpt, err := profLoad.options()
		if err != nil {
			return err
		}
		ds, err := parser.LoadFile(args[0], loadOpt)
		if err != nil {
			return err
		}
		profiles, err := analysis.Profile(ds.Table, analysisOptions())
		if err != nil {
			return err
		}
		mapping := analysis.DefaultMapping(profiles)
		w := cmd.OutOrStdout()
		if profJSON {
			b, err := utils.PrettyJSON(map[string]any{
				"dataset":  ds.Name,
				"rows":     ds.Table.Rows(),
				"warnings": ds.Warnings,
				"profiles": profiles,
				"mapping":  mapping,
			})
			if err != nil {
				return err
			}
			_, err = w.Write(b)
			return err
		}

		fmt.Fprintf(w, "%s: %d rows, %d columns\n", ds.Name, ds.Table.Rows(), len(profiles))
		for _, warn := range ds.Warnings {
			fmt.Fprintf(w, "⚠ %s\n", warn)
		}
		for _, p := range profiles {
			fmt.Fprintf(w, "- %s: %s → %s (nulls %d, distinct %d)", p.Name, p.Type, mapping[p.Name], p.NullCount, p.DistinctCount)
			switch {
			case p.Numeric != nil:
				fmt.Fprintf(w, " min=%g max=%g mean=%.4g", p.Numeric.Min, p.Numeric.Max, p.Numeric.Mean)
			case p.Span != nil:
				fmt.Fprintf(w, " %s..%s", p.Span.First.Format("2006-01-02"), p.Span.Last.Format("2006-01-02"))
			case len(p.Categories) > 0:
				vals := make([]string, len(p.Categories))
				for i, c := range p.Categories {
					vals[i] = fmt.Sprintf("%s(%d)", c.Value, c.Count)
				}
				fmt.Fprintf(w, " top: %s", strings.Join(vals, ", "))
			}
			fmt.Fprintln(w)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(profileCmd)
	profileCmd.Flags().BoolVar(&profJSON, "json", false, "print profiles as JSON")
	profLoad.register(profileCmd.Flags())
}
