package errors

import (
	stderrors "errors"
	"fmt"
	"testing"
)

func TestCodeOf(t *testing.T) {
	cause := stderrors.New("disk full")
	err := New(CacheUnavailable, "open cache", cause)

	if CodeOf(err) != CacheUnavailable {
		t.Errorf("CodeOf = %s, want %s", CodeOf(err), CacheUnavailable)
	}
	if !IsCode(err, CacheUnavailable) {
		t.Error("IsCode should match the error's own code")
	}
	if IsCode(err, ParseFailure) {
		t.Error("IsCode should not match a different code")
	}
	if !stderrors.Is(err, cause) {
		t.Error("wrapped cause should survive errors.Is")
	}
}

func TestCodeOfWrapped(t *testing.T) {
	inner := Newf(PlanInvalid, "plan has no steps")
	wrapped := fmt.Errorf("loading plan: %w", inner)
	if CodeOf(wrapped) != PlanInvalid {
		t.Errorf("CodeOf through fmt wrap = %s, want %s", CodeOf(wrapped), PlanInvalid)
	}
}

func TestCodeOfPlainError(t *testing.T) {
	if CodeOf(stderrors.New("plain")) != InternalError {
		t.Error("plain errors should map to InternalError")
	}
}

func TestErrorString(t *testing.T) {
	tests := []struct {
		name string
		err  *PlanError
		want string
	}{
		{
			"no cause",
			Newf(ValidationFailure, "task %d has no id", 3),
			"[VALIDATION_FAILURE] task 3 has no id",
		},
		{
			"with cause",
			New(WorkerFailure, "read a.py", stderrors.New("permission denied")),
			"[WORKER_FAILURE] read a.py: permission denied",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Error() != tt.want {
				t.Errorf("Error() = %q, want %q", tt.err.Error(), tt.want)
			}
		})
	}
}

func TestWithDetails(t *testing.T) {
	err := New(WorkerFailure, "read file", nil).WithDetails(map[string]string{
		"path": "a.py",
	})
	details, ok := err.Details.(map[string]string)
	if !ok || details["path"] != "a.py" {
		t.Errorf("Details = %v", err.Details)
	}
}
