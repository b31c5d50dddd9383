package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/insightloom/internal/analysis"
	"github.com/KaramelBytes/insightloom/internal/project"
	"github.com/KaramelBytes/insightloom/internal/utils"
)

var (
	listProjName string
	listLimit    int
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List projects, or the run history of one project",
	RunE: func(cmd *cobra.Command, args []string) error {
		w := cmd.OutOrStdout()
		if listProjName == "" {
			return listAllProjects(w)
		}
		p, err := loadProjectByName(listProjName)
		if err != nil {
			return err
		}
		if p.Dataset != nil {
			fmt.Fprintf(w, "Dataset: %s\n", p.Dataset.Path)
		}
		if len(p.Roles) > 0 {
			fmt.Fprintf(w, "Role corrections: %s\n", formatMapping(p.Roles))
		}
		if len(p.Runs) == 0 {
			fmt.Fprintln(w, "(no runs)")
			return nil
		}
		runs := p.Runs
		if listLimit > 0 && len(runs) > listLimit {
			runs = runs[len(runs)-listLimit:]
		}
		for i := len(runs) - 1; i >= 0; i-- {
			r := runs[i]
			status := "insufficient: " + strings.Join(r.Reasons, "; ")
			if r.Sufficient {
				status = fmt.Sprintf("good %d, improvement %d, suggestion %d, issue %d",
					r.Counts[analysis.CategoryGood], r.Counts[analysis.CategoryImprovement],
					r.Counts[analysis.CategorySuggestion], r.Counts[analysis.CategoryIssue])
			}
			fmt.Fprintf(w, "- %s %s (%s)\n", r.ID[:min(8, len(r.ID))], r.At.Format("2006-01-02 15:04"), status)
		}
		return nil
	},
}

func listAllProjects(w io.Writer) error {
	root, err := defaultProjectsDir()
	if err != nil {
		return err
	}
	dirs, err := os.ReadDir(root)
	if err != nil {
		return err
	}
	found := false
	for _, e := range dirs {
		if !e.IsDir() {
			continue
		}
		dir := filepath.Join(root, e.Name())
		if _, err := os.Stat(filepath.Join(dir, utils.ProjectFile)); err != nil {
			continue
		}
		found = true
		p, err := project.LoadProject(dir)
		if err != nil {
			fmt.Fprintf(w, "- %s (unreadable: %v)\n", e.Name(), err)
			continue
		}
		last := "no runs"
		if r, ok := p.LastRun(); ok {
			last = "last run " + r.At.Format("2006-01-02 15:04")
			if !r.Sufficient {
				last += ", insufficient"
			}
		}
		fmt.Fprintf(w, "- %s (%s)\n", e.Name(), last)
	}
	if !found {
		fmt.Fprintln(w, "(no projects)")
	}
	return nil
}

func init() {
	rootCmd.AddCommand(listCmd)
	listCmd.Flags().StringVarP(&listProjName, "project", "p", "", "show the run history of this project")
	listCmd.Flags().IntVarP(&listLimit, "limit", "n", 10, "most recent runs to show (0 = all)")
}
