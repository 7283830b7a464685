// Package plan defines the externally supplied change plan consumed by
// the task generator.
package plan

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"codeplan/internal/errors"
)

// StepKind classifies a plan step.
type StepKind string

const (
	KindAdd      StepKind = "add"
	KindEdit     StepKind = "edit"
	KindRefactor StepKind = "refactor"
	KindRemove   StepKind = "remove"
	KindReview   StepKind = "review"
	KindTest     StepKind = "test"
)

var knownKinds = map[StepKind]bool{
	KindAdd:      true,
	KindEdit:     true,
	KindRefactor: true,
	KindRemove:   true,
	KindReview:   true,
	KindTest:     true,
}

// Step is one ordered goal in a plan.
type Step struct {
	Order int      `json:"order" yaml:"order"`
	Goal  string   `json:"goal" yaml:"goal"`
	Kind  StepKind `json:"kind" yaml:"kind"`
	Hints []string `json:"hints,omitempty" yaml:"hints,omitempty"`
}

// Plan is the ordered goal decomposition supplied by an upstream
// planning collaborator.
type Plan struct {
	ID            string   `json:"id" yaml:"id"`
	Steps         []Step   `json:"steps" yaml:"steps"`
	AffectedPaths []string `json:"affected_paths,omitempty" yaml:"affected_paths,omitempty"`
	Rationale     string   `json:"rationale,omitempty" yaml:"rationale,omitempty"`
}

// Load reads a plan from a YAML or JSON file, by extension.
func Load(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.New(errors.PlanInvalid, "read plan file", err)
	}

	var p Plan
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = json.Unmarshal(data, &p)
	default:
		err = yaml.Unmarshal(data, &p)
	}
	if err != nil {
		return nil, errors.New(errors.PlanInvalid, "decode plan file", err)
	}

	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Validate checks structural soundness and normalizes step order.
func (p *Plan) Validate() error {
	if p.ID == "" {
		return errors.Newf(errors.PlanInvalid, "plan is missing an id")
	}
	if len(p.Steps) == 0 {
		return errors.Newf(errors.PlanInvalid, "plan %s has no steps", p.ID)
	}

	for i := range p.Steps {
		s := &p.Steps[i]
		if s.Goal == "" {
			return errors.Newf(errors.PlanInvalid, "plan %s step %d has no goal", p.ID, i+1)
		}
		if !knownKinds[s.Kind] {
			return errors.Newf(errors.PlanInvalid, "plan %s step %d has unknown kind %q", p.ID, i+1, s.Kind)
		}
		if s.Order == 0 {
			s.Order = i + 1
		}
	}

	// Steps execute in plan order regardless of input ordering.
	sort.SliceStable(p.Steps, func(i, j int) bool {
		return p.Steps[i].Order < p.Steps[j].Order
	})
	return nil
}
