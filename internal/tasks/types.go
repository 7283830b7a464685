// Package tasks compiles a change plan into a dependency-ordered bundle
// of concrete coding tasks with complexity estimates.
package tasks

import (
	"codeplan/internal/errors"
)

// ComplexityLabel buckets a task's estimated difficulty.
type ComplexityLabel string

const (
	Trivial  ComplexityLabel = "trivial"
	Moderate ComplexityLabel = "moderate"
	Complex  ComplexityLabel = "complex"
)

// Score thresholds and token bases for the label mapping.
const (
	trivialScoreLimit  = 10
	moderateScoreLimit = 50

	trivialTokenBase  = 500
	moderateTokenBase = 2000
	complexTokenBase  = 4000

	tokensPerFile     = 500
	tokensPerSkeleton = 200
)

// labelForScore maps a complexity score to its label.
func labelForScore(score int) ComplexityLabel {
	switch {
	case score < trivialScoreLimit:
		return Trivial
	case score < moderateScoreLimit:
		return Moderate
	default:
		return Complex
	}
}

// tokenBase returns the base token estimate for a label.
func tokenBase(label ComplexityLabel) int {
	switch label {
	case Trivial:
		return trivialTokenBase
	case Moderate:
		return moderateTokenBase
	default:
		return complexTokenBase
	}
}

// ExecutionStrategy tells the caller how to schedule a bundle.
type ExecutionStrategy string

const (
	// StrategyParallel: no dependency edges exist at all.
	StrategyParallel ExecutionStrategy = "parallel"
	// StrategySequential: each task depends only on its immediate
	// predecessor.
	StrategySequential ExecutionStrategy = "sequential"
	// StrategyTopological: anything else; positional order is not safe.
	StrategyTopological ExecutionStrategy = "topological"
)

// CodingTask is one concrete unit of work for a downstream code writer.
type CodingTask struct {
	ID              string            `json:"id"`
	Goal            string            `json:"goal"`
	StepNumber      int               `json:"step_number"`
	FilePaths       []string          `json:"file_paths"`
	ContextIDs      []string          `json:"context_ids,omitempty"`
	SkeletonPatches []string          `json:"skeleton_patches,omitempty"`
	DependsOn       []string          `json:"depends_on,omitempty"`
	Complexity      ComplexityLabel   `json:"complexity"`
	EstimatedTokens int               `json:"estimated_tokens"`
	BaseCommit      string            `json:"base_commit,omitempty"`
	Metadata        map[string]string `json:"metadata,omitempty"`
}

// TaskBundle is the ordered, dependency-annotated output of one
// Generate call. Never mutated after creation; a new plan produces a
// new bundle.
type TaskBundle struct {
	ID                string            `json:"id"`
	ParentPlanID      string            `json:"parent_plan_id"`
	Tasks             []CodingTask      `json:"tasks"`
	ExecutionStrategy ExecutionStrategy `json:"execution_strategy"`
}

// Validate runs the structural checks on a finished bundle. A failing
// bundle is a hard error; every other degradation (empty hints, empty
// symbols, even zero tasks) is valid output.
func (b *TaskBundle) Validate() error {
	ids := make(map[string]bool, len(b.Tasks))
	for i := range b.Tasks {
		t := &b.Tasks[i]
		if t.ID == "" {
			return errors.Newf(errors.ValidationFailure, "task %d has no id", i)
		}
		if t.Goal == "" {
			return errors.Newf(errors.ValidationFailure, "task %s has no goal", t.ID)
		}
		if ids[t.ID] {
			return errors.Newf(errors.ValidationFailure, "duplicate task id %s", t.ID)
		}
		ids[t.ID] = true
	}

	for i := range b.Tasks {
		for _, dep := range b.Tasks[i].DependsOn {
			if !ids[dep] {
				return errors.Newf(errors.ValidationFailure,
					"task %s depends on unknown task %s", b.Tasks[i].ID, dep)
			}
			if dep == b.Tasks[i].ID {
				return errors.Newf(errors.ValidationFailure,
					"task %s depends on itself", b.Tasks[i].ID)
			}
		}
	}
	return nil
}

// inferStrategy picks the weakest scheduling contract the dependency
// edges allow.
func inferStrategy(tasks []CodingTask) ExecutionStrategy {
	edges := 0
	for i := range tasks {
		edges += len(tasks[i].DependsOn)
	}
	if edges == 0 {
		return StrategyParallel
	}

	// Sequential means a pure chain: every task after the first depends
	// exactly on its immediate predecessor.
	for i := 1; i < len(tasks); i++ {
		deps := tasks[i].DependsOn
		if len(deps) != 1 || deps[0] != tasks[i-1].ID {
			return StrategyTopological
		}
	}
	if len(tasks[0].DependsOn) != 0 {
		return StrategyTopological
	}
	return StrategySequential
}
