package project

import (
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"github.com/KaramelBytes/insightloom/internal/analysis"
	"github.com/KaramelBytes/insightloom/internal/parser"
	"github.com/KaramelBytes/insightloom/internal/utils"
)

// MaxRuns bounds the run history kept in project.json; older runs are dropped.
const MaxRuns = 50

// Project is an analysis workspace persisted as project.json. It remembers
// the dataset, the role corrections the user made and what each run found.
type Project struct {
	Name        string               `json:"name"`
	Description string               `json:"description"`
	Dataset     *DatasetRef          `json:"dataset,omitempty"`
	Roles       analysis.RoleMapping `json:"roles,omitempty"`
	Runs        []Run                `json:"runs,omitempty"`
	CreatedAt   time.Time            `json:"created_at"`
	UpdatedAt   time.Time            `json:"updated_at"`

	// Not serialized: on-disk location of the project.json
	rootDir string `json:"-"`
}

// NewProject constructs an in-memory project. Call Save() to persist.
func NewProject(name, description, rootDir string) *Project {
	now := time.Now()
	return &Project{
		Name:        name,
		Description: description,
		Roles:       analysis.RoleMapping{},
		CreatedAt:   now,
		UpdatedAt:   now,
		rootDir:     rootDir,
	}
}

// LoadProject loads project.json from dir.
func LoadProject(dir string) (*Project, error) {
	path := filepath.Join(dir, utils.ProjectFile)
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("project not found at %s: %w", path, err)
		}
		return nil, fmt.Errorf("read project: %w", err)
	}
	var p Project
	if err := json.Unmarshal(b, &p); err != nil {
		return nil, fmt.Errorf("parse project: %w", err)
	}
	if p.Roles == nil {
		p.Roles = analysis.RoleMapping{}
	}
	p.rootDir = dir
	return &p, nil
}

// RootDir returns the on-disk project directory path.
func (p *Project) RootDir() string { return p.rootDir }

// Save writes project.json atomically.
func (p *Project) Save() error {
	if p.rootDir == "" {
		return errors.New("project root directory not set")
	}
	p.UpdatedAt = time.Now()
	data, err := utils.PrettyJSON(p)
	if err != nil {
		return err
	}
	return utils.SafeWriteFile(filepath.Join(p.rootDir, utils.ProjectFile), data)
}

// SetDataset points the project at a table file. The path is stored
// absolute so runs work from any directory.
func (p *Project) SetDataset(path string, opt parser.LoadOptions) error {
	if !parser.Supported(path) {
		return fmt.Errorf("%w: %s", parser.ErrUnsupported, filepath.Ext(path))
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve dataset path: %w", err)
	}
	if _, err := os.Stat(abs); err != nil {
		return fmt.Errorf("stat dataset: %w", err)
	}
	p.Dataset = &DatasetRef{
		Path:       abs,
		Sheet:      opt.Sheet,
		SheetIndex: opt.SheetIndex,
		Delimiter:  delimiterString(opt.Delimiter),
		AddedAt:    time.Now(),
	}
	p.UpdatedAt = time.Now()
	return nil
}

// Override returns a copy of the saved role corrections, suitable for
// analysis.Run.
func (p *Project) Override() analysis.RoleMapping {
	return maps.Clone(p.Roles)
}

// SetRoles applies "column=role" assignments. A role of "auto" removes the
// correction so the column falls back to its inferred role. Nothing is
// applied when any assignment is malformed.
func (p *Project) SetRoles(assignments []string) error {
	next := maps.Clone(p.Roles)
	if next == nil {
		next = analysis.RoleMapping{}
	}
	for _, a := range assignments {
		col, val, ok := strings.Cut(a, "=")
		col = strings.TrimSpace(col)
		if !ok || col == "" {
			return fmt.Errorf("invalid assignment %q (want column=role)", a)
		}
		if strings.EqualFold(strings.TrimSpace(val), "auto") {
			delete(next, col)
			continue
		}
		role, ok := analysis.ParseRole(val)
		if !ok {
			return fmt.Errorf("invalid role %q for column %q (use metric, dimension, date, ignored or auto)", val, col)
		}
		next[col] = role
	}
	p.Roles = next
	p.UpdatedAt = time.Now()
	return nil
}

// RecordRun appends a summary of res to the history and returns it.
func (p *Project) RecordRun(id string, res *analysis.Result, output string) Run {
	r := Run{
		ID:         id,
		At:         time.Now(),
		Sufficient: res.Sufficient(),
		Output:     output,
	}
	if p.Dataset != nil {
		r.Dataset = p.Dataset.Path
	}
	if r.Sufficient {
		r.Counts = res.Counts()
	} else {
		r.Reasons = append([]string(nil), res.Validation.Reasons...)
	}
	p.Runs = append(p.Runs, r)
	if len(p.Runs) > MaxRuns {
		p.Runs = append([]Run(nil), p.Runs[len(p.Runs)-MaxRuns:]...)
	}
	p.UpdatedAt = time.Now()
	return r
}

// LastRun returns the most recent run, if any.
func (p *Project) LastRun() (Run, bool) {
	if len(p.Runs) == 0 {
		return Run{}, false
	}
	return p.Runs[len(p.Runs)-1], true
}
