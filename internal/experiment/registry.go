package experiment

import (
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"labtable/internal/domain"
	"labtable/internal/normalizer"
)

//go:embed schemas/*.yaml
var builtin embed.FS

// PlotSpec derives one scatter series from two numeric columns of a table.
type PlotSpec struct {
	ID    string `yaml:"id" json:"id"`
	Title string `yaml:"title" json:"title"`
	Table string `yaml:"table" json:"table"`
	X     string `yaml:"x" json:"x"`
	Y     string `yaml:"y" json:"y"`
}

// Experiment bundles a schema with the extraction instructions and plot definitions.
type Experiment struct {
	domain.Schema `yaml:",inline"`
	Prompt        string     `yaml:"prompt"`
	Plots         []PlotSpec `yaml:"plots"`
}

// ExtractionPrompt returns the instructions followed by the JSON skeleton the
// model must fill in.
func (e *Experiment) ExtractionPrompt() (string, error) {
	skeleton, err := json.MarshalIndent(normalizer.Skeleton(&e.Schema), "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshaling skeleton: %w", err)
	}
	var b strings.Builder
	b.WriteString(strings.TrimSpace(e.Prompt))
	b.WriteString("\n\nReturn exactly this JSON skeleton. Use null for missing values and do not add fields:\n")
	b.Write(skeleton)
	return b.String(), nil
}

// Parse decodes and validates one experiment definition.
func Parse(data []byte) (*Experiment, error) {
	var e Experiment
	if err := yaml.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("decoding experiment: %w", err)
	}
	if err := e.Validate(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(e.Prompt) == "" {
		return nil, fmt.Errorf("experiment %s: prompt is required", e.ExpID)
	}
	for _, p := range e.Plots {
		if err := e.checkPlot(p); err != nil {
			return nil, err
		}
	}
	return &e, nil
}

func (e *Experiment) checkPlot(p PlotSpec) error {
	for _, t := range e.Tables {
		if t.ID != p.Table {
			continue
		}
		var hasX, hasY bool
		for _, c := range t.Columns {
			hasX = hasX || (c.ID == p.X && c.Type == domain.ColumnNumber)
			hasY = hasY || (c.ID == p.Y && c.Type == domain.ColumnNumber)
		}
		if !hasX || !hasY {
			return fmt.Errorf("experiment %s: plot %q needs numeric columns %q and %q", e.ExpID, p.ID, p.X, p.Y)
		}
		return nil
	}
	return fmt.Errorf("experiment %s: plot %q references unknown table %q", e.ExpID, p.ID, p.Table)
}

// Registry resolves experiments by id. It is immutable after construction.
type Registry struct {
	byID map[string]*Experiment
}

// NewRegistry builds a registry; later experiments replace earlier ones with the same id.
func NewRegistry(exps ...*Experiment) *Registry {
	r := &Registry{byID: make(map[string]*Experiment, len(exps))}
	for _, e := range exps {
		r.byID[e.ExpID] = e
	}
	return r
}

// Load returns the built-in experiments, overridden or extended by every
// *.yaml file in dir when dir is not empty.
func Load(dir string) (*Registry, error) {
	var exps []*Experiment

	entries, err := builtin.ReadDir("schemas")
	if err != nil {
		return nil, fmt.Errorf("reading built-in schemas: %w", err)
	}
	for _, entry := range entries {
		data, err := builtin.ReadFile("schemas/" + entry.Name())
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", entry.Name(), err)
		}
		e, err := Parse(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", entry.Name(), err)
		}
		exps = append(exps, e)
	}

	if dir != "" {
		files, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
		if err != nil {
			return nil, fmt.Errorf("listing %s: %w", dir, err)
		}
		sort.Strings(files)
		for _, f := range files {
			data, err := os.ReadFile(f)
			if err != nil {
				return nil, fmt.Errorf("reading %s: %w", f, err)
			}
			e, err := Parse(data)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", f, err)
			}
			exps = append(exps, e)
		}
	}
	return NewRegistry(exps...), nil
}

// Get returns the experiment for expID or domain.ErrUnknownExperiment.
func (r *Registry) Get(expID string) (*Experiment, error) {
	e, ok := r.byID[expID]
	if !ok {
		return nil, domain.ErrUnknownExperiment
	}
	return e, nil
}

// List returns all experiments ordered by id.
func (r *Registry) List() []*Experiment {
	out := make([]*Experiment, 0, len(r.byID))
	for _, e := range r.byID {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExpID < out[j].ExpID })
	return out
}
