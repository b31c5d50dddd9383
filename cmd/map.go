package cmd

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/insightloom/internal/analysis"
	"github.com/KaramelBytes/insightloom/internal/parser"
	"github.com/KaramelBytes/insightloom/internal/project"
)

var mapProject string

var mapCmd = &cobra.Command{
	Use:   "map -p <project> [column=role...]",
	Short: "Correct the role of dataset columns and check the mapping",
	Long: `Save role corrections for a project's columns and show the resulting
mapping. Roles are metric, dimension, date and ignored; "auto" drops a
correction. Without assignments the current mapping is shown.

  insightloom map -p q3 region=dimension store_id=ignored`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if mapProject == "" {
			return fmt.Errorf("--project is required")
		}
		p, err := loadProjectByName(mapProject)
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		if len(args) > 0 {
			if err := p.SetRoles(args); err != nil {
				return err
			}
			if err := p.Save(); err != nil {
				return err
			}
			fmt.Fprintf(w, "✓ Saved %d role correction(s) for project '%s'\n", len(args), p.Name)
		}
		if p.Dataset == nil {
			if len(p.Roles) > 0 {
				fmt.Fprintf(w, "Role corrections: %s\n", formatMapping(p.Roles))
			}
			fmt.Fprintln(w, "⚠ No dataset set; the mapping will be checked on the next analyze")
			return nil
		}
		return checkProjectMapping(w, p)
	},
}

// checkProjectMapping profiles the project's dataset and prints the mapping
// its corrections produce together with the validation outcome.
func checkProjectMapping(w io.Writer, p *project.Project) error {
	ds, err := parser.LoadFile(p.Dataset.Path, p.Dataset.LoadOptions(maxRowsFromConfig()))
	if err != nil {
		return err
	}
	opt := analysisOptions()
	profiles, err := analysis.Profile(ds.Table, opt)
	if err != nil {
		return err
	}
	v := analysis.Validate(profiles, p.Override(), opt)
	fmt.Fprintln(w, "Mapping:")
	for _, prof := range profiles {
		mark := ""
		if _, ok := p.Roles[prof.Name]; ok {
			mark = " (corrected)"
		}
		fmt.Fprintf(w, "  %s: %s [%s]%s\n", prof.Name, v.Mapping[prof.Name], prof.Type, mark)
	}
	if v.Sufficient {
		fmt.Fprintln(w, "✓ Mapping is sufficient for analysis")
		return nil
	}
	fmt.Fprintln(w, "⚠ Insufficient for analysis:")
	for _, r := range v.Reasons {
		fmt.Fprintf(w, "  - %s\n", r)
	}
	for _, a := range v.RequiredActions {
		fmt.Fprintf(w, "  → %s\n", a)
	}
	return nil
}

func formatMapping(m analysis.RoleMapping) string {
	cols := make([]string, 0, len(m))
	for c := range m {
		cols = append(cols, c)
	}
	slices.Sort(cols)
	parts := make([]string, len(cols))
	for i, c := range cols {
		parts[i] = c + "=" + string(m[c])
	}
	return strings.Join(parts, ", ")
}

func init() {
	rootCmd.AddCommand(mapCmd)
	mapCmd.Flags().StringVarP(&mapProject, "project", "p", "", "project name")
}
