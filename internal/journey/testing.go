package journey

import (
	"context"
	"testing"
)

// RunT runs the scenario and reports each step as a subtest: failed
// steps fail, steps whose dependency did not pass are skipped.
func (r *Runner) RunT(t *testing.T, sc Scenario) *Result {
	t.Helper()

	res := r.Run(context.Background(), sc)
	if res.SetupErr != nil {
		t.Fatalf("%s: %v", sc.Name, res.SetupErr)
	}

	for _, step := range res.Steps {
		t.Run(step.Name, func(t *testing.T) {
			switch step.Outcome {
			case OutcomeSkipped:
				t.Skipf("not run: %s", step.SkipReason)
			case OutcomeFailed:
				t.Error(step.Err)
			default:
				t.Logf("passed in %s", step.Duration)
			}
		})
	}
	return res
}
