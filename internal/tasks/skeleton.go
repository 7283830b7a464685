package tasks

import (
	"fmt"

	"codeplan/internal/errors"
	"codeplan/internal/parser"
	"codeplan/internal/plan"
)

// skeletonPatch renders one unified-diff shaped hint for a file. The
// patches are starting points for a code writer, not appliable diffs.
// Any failure here skips the hint; it never fails the task.
func skeletonPatch(step *plan.Step, path string, fa *parser.FileAnalysis, matched []*parser.Symbol) (string, error) {
	switch step.Kind {
	case plan.KindRefactor:
		sym := anchorSymbol(path, matched)
		if sym == nil {
			return "", errors.Newf(errors.InternalError, "no symbol anchor in %s", path)
		}
		return fmt.Sprintf(
			"--- a/%s\n+++ b/%s\n@@ lines %d-%d: %s @@\n // refactor: %s\n",
			path, path, sym.StartLine, sym.EndLine, sym.Name, step.Goal), nil

	case plan.KindTest:
		return fmt.Sprintf(
			"--- /dev/null\n+++ b/%s\n@@ new test @@\n+// TODO: cover %s\n",
			path, step.Goal), nil

	default:
		return fmt.Sprintf(
			"--- a/%s\n+++ b/%s\n@@ %s @@\n+// TODO: %s\n",
			path, path, step.Kind, step.Goal), nil
	}
}

// anchorSymbol picks the first matched symbol defined in the file.
func anchorSymbol(path string, matched []*parser.Symbol) *parser.Symbol {
	for _, sym := range matched {
		if sym.Path == path {
			return sym
		}
	}
	return nil
}
