package tasks

import (
	"testing"

	"codeplan/internal/errors"
)

func TestValidateAcceptsEmptyBundle(t *testing.T) {
	b := &TaskBundle{ID: "b1", ParentPlanID: "p1"}
	if err := b.Validate(); err != nil {
		t.Errorf("empty bundle should validate: %v", err)
	}
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name  string
		tasks []CodingTask
	}{
		{
			"missing id",
			[]CodingTask{{Goal: "g"}},
		},
		{
			"missing goal",
			[]CodingTask{{ID: "t1"}},
		},
		{
			"duplicate id",
			[]CodingTask{{ID: "t1", Goal: "g"}, {ID: "t1", Goal: "g"}},
		},
		{
			"unknown dependency",
			[]CodingTask{{ID: "t1", Goal: "g", DependsOn: []string{"ghost"}}},
		},
		{
			"self dependency",
			[]CodingTask{{ID: "t1", Goal: "g", DependsOn: []string{"t1"}}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := &TaskBundle{ID: "b", ParentPlanID: "p", Tasks: tt.tasks}
			err := b.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !errors.IsCode(err, errors.ValidationFailure) {
				t.Errorf("code = %s, want VALIDATION_FAILURE", errors.CodeOf(err))
			}
		})
	}
}

func TestValidateForwardDependency(t *testing.T) {
	// A dependency on a later sibling is structurally fine; ordering is
	// the execution strategy's concern.
	b := &TaskBundle{ID: "b", ParentPlanID: "p", Tasks: []CodingTask{
		{ID: "t1", Goal: "g", DependsOn: []string{"t2"}},
		{ID: "t2", Goal: "g"},
	}}
	if err := b.Validate(); err != nil {
		t.Errorf("forward dependency should validate: %v", err)
	}
}

func TestInferStrategy(t *testing.T) {
	tests := []struct {
		name  string
		tasks []CodingTask
		want  ExecutionStrategy
	}{
		{
			"no edges",
			[]CodingTask{{ID: "t1"}, {ID: "t2"}},
			StrategyParallel,
		},
		{
			"pure chain",
			[]CodingTask{
				{ID: "t1"},
				{ID: "t2", DependsOn: []string{"t1"}},
				{ID: "t3", DependsOn: []string{"t2"}},
			},
			StrategySequential,
		},
		{
			"fan in",
			[]CodingTask{
				{ID: "t1"},
				{ID: "t2"},
				{ID: "t3", DependsOn: []string{"t1", "t2"}},
			},
			StrategyTopological,
		},
		{
			"gap in chain",
			[]CodingTask{
				{ID: "t1"},
				{ID: "t2"},
				{ID: "t3", DependsOn: []string{"t2"}},
			},
			StrategyTopological,
		},
		{
			"skip link",
			[]CodingTask{
				{ID: "t1"},
				{ID: "t2", DependsOn: []string{"t1"}},
				{ID: "t3", DependsOn: []string{"t1"}},
			},
			StrategyTopological,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := inferStrategy(tt.tasks); got != tt.want {
				t.Errorf("inferStrategy = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestLabelForScore(t *testing.T) {
	tests := []struct {
		score int
		want  ComplexityLabel
	}{
		{0, Trivial},
		{9, Trivial},
		{10, Moderate},
		{49, Moderate},
		{50, Complex},
		{500, Complex},
	}
	for _, tt := range tests {
		if got := labelForScore(tt.score); got != tt.want {
			t.Errorf("labelForScore(%d) = %s, want %s", tt.score, got, tt.want)
		}
	}
}
