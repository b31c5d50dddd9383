package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/insightloom/internal/project"
	"github.com/KaramelBytes/insightloom/internal/utils"
)

var (
	initDescription string
	initData        string
	initLoad        loadFlags
)

var initCmd = &cobra.Command{
	Use:   "init <project-name>",
	Short: "Initialize a new InsightLoom project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		if strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
			return fmt.Errorf("invalid project name %q", name)
		}
		root, err := defaultProjectsDir()
		if err != nil {
			return err
		}
		projDir := filepath.Join(root, name)
		if err := checkFreshProjectDir(projDir); err != nil {
			return err
		}

		p := project.NewProject(name, initDescription, projDir)
		if initData != "" {
			opt, err := initLoad.options()
			if err != nil {
				return err
			}
			if err := p.SetDataset(initData, opt); err != nil {
				return err
			}
		}
		if err := utils.EnsureDir(projDir); err != nil {
			return err
		}
		if err := p.Save(); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Project initialized: %s\n", projDir)
		if p.Dataset != nil {
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Dataset: %s\n", p.Dataset.Path)
		}
		return nil
	},
}

// defaultProjectsDir returns the configured projects directory, creating it
// on first use. A leading ~ is expanded to the home directory.
func defaultProjectsDir() (string, error) {
	dir := filepath.Join("~", ".insightloom", "projects")
	if cfg != nil && cfg.ProjectsDir != "" {
		dir = cfg.ProjectsDir
	}
	dir, err := expandHome(dir)
	if err != nil {
		return "", err
	}
	if err := utils.EnsureDir(dir); err != nil {
		return "", err
	}
	return dir, nil
}

func expandHome(path string) (string, error) {
	rest, ok := strings.CutPrefix(path, "~")
	if !ok {
		return filepath.Clean(path), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, strings.TrimLeft(rest, `/\`)), nil
}

func resolveProjectDirByName(name string) (string, error) {
	if name == "" {
		return "", errors.New("project name is required")
	}
	root, err := defaultProjectsDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(root, name), nil
}

// checkFreshProjectDir refuses to initialize over an existing project or a
// non-empty directory.
func checkFreshProjectDir(dir string) error {
	entries, err := os.ReadDir(dir)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return nil
	case err != nil:
		return fmt.Errorf("inspect project directory: %w", err)
	}
	for _, e := range entries {
		if e.Name() == utils.ProjectFile {
			return fmt.Errorf("project already exists at %s", dir)
		}
	}
	if len(entries) > 0 {
		return fmt.Errorf("directory %s already exists and is not empty; refusing to initialize project", dir)
	}
	return nil
}

// loadProjectByName resolves and loads a project from the projects directory.
func loadProjectByName(name string) (*project.Project, error) {
	dir, err := resolveProjectDirByName(name)
	if err != nil {
		return nil, err
	}
	return project.LoadProject(dir)
}

func init() {
	rootCmd.AddCommand(initCmd)
	f := initCmd.Flags()
	f.StringVarP(&initDescription, "desc", "d", "", "project description")
	f.StringVar(&initData, "data", "", "dataset file the project analyzes (CSV/TSV/XLSX/JSON)")
	initLoad.register(f)
}
