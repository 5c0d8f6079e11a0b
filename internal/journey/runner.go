// Package journey runs ordered, dependent API test steps and reports
// which passed, failed or never ran.
package journey

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/FairForge/userjourney/internal/logger"
	"github.com/FairForge/userjourney/internal/metrics"
)

// ErrSetup marks a scenario that could not start. No step runs after it.
var ErrSetup = errors.New("scenario setup failed")

// Outcome of a single step.
type Outcome string

const (
	OutcomePassed  Outcome = "passed"
	OutcomeFailed  Outcome = "failed"
	OutcomeSkipped Outcome = "skipped"
)

// Scenario is an ordered list of steps sharing one Session.
type Scenario struct {
	Name        string
	Description string
	Steps       []Step
	Setup       func(ctx context.Context, s *Session) error
	Teardown    func(ctx context.Context, s *Session, res *Result) error
	Timeout     time.Duration // 0 means no deadline beyond the caller's ctx
}

// Step is one node in the chain. A step with DependsOn set only runs if
// the named earlier step passed.
type Step struct {
	Name      string
	DependsOn string
	Action    func(ctx context.Context, s *Session) error
}

// StepError ties a failure to the step that produced it.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %q: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// StepResult records what happened to one step.
type StepResult struct {
	Name       string
	DependsOn  string
	Outcome    Outcome
	Err        error
	SkipReason string
	Duration   time.Duration
}

// Result of a scenario run.
type Result struct {
	Scenario   string
	StartedAt  time.Time
	FinishedAt time.Time
	SetupErr   error
	Steps      []StepResult
}

// Passed reports whether setup succeeded and no step failed or was skipped.
func (r *Result) Passed() bool {
	if r.SetupErr != nil {
		return false
	}
	for _, s := range r.Steps {
		if s.Outcome != OutcomePassed {
			return false
		}
	}
	return true
}

// Step looks up a step result by name.
func (r *Result) Step(name string) (StepResult, bool) {
	for _, s := range r.Steps {
		if s.Name == name {
			return s, true
		}
	}
	return StepResult{}, false
}

// Count returns how many steps ended with the given outcome.
func (r *Result) Count(o Outcome) int {
	n := 0
	for _, s := range r.Steps {
		if s.Outcome == o {
			n++
		}
	}
	return n
}

// Err joins the setup error and every step failure. Skipped steps are
// not errors on their own.
func (r *Result) Err() error {
	errs := []error{r.SetupErr}
	for _, s := range r.Steps {
		if s.Outcome == OutcomeFailed {
			errs = append(errs, s.Err)
		}
	}
	return errors.Join(errs...)
}

// Runner executes scenarios.
type Runner struct {
	logger  *zap.Logger
	metrics *metrics.Collector
}

// NewRunner creates a runner. Both arguments may be nil.
func NewRunner(l *zap.Logger, m *metrics.Collector) *Runner {
	return &Runner{logger: logger.OrNop(l), metrics: m}
}

// Validate checks step names are unique and dependencies point backwards.
func (sc Scenario) Validate() error {
	seen := make(map[string]bool, len(sc.Steps))
	for i, step := range sc.Steps {
		if step.Name == "" {
			return fmt.Errorf("step %d has no name", i+1)
		}
		if seen[step.Name] {
			return fmt.Errorf("duplicate step %q", step.Name)
		}
		if step.DependsOn != "" && !seen[step.DependsOn] {
			return fmt.Errorf("step %q depends on %q which does not run before it", step.Name, step.DependsOn)
		}
		if step.Action == nil {
			return fmt.Errorf("step %q has no action", step.Name)
		}
		seen[step.Name] = true
	}
	return nil
}

// Run executes the scenario steps in order, one at a time.
func (r *Runner) Run(ctx context.Context, sc Scenario) *Result {
	if sc.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, sc.Timeout)
		defer cancel()
	}

	log := r.logger.With(zap.String("scenario", sc.Name))
	res := &Result{Scenario: sc.Name, StartedAt: time.Now()}
	defer func() { res.FinishedAt = time.Now() }()

	log.Info("running scenario", zap.String("description", sc.Description), zap.Int("steps", len(sc.Steps)))

	session := &Session{}
	if err := sc.Validate(); err != nil {
		r.abort(log, res, sc, fmt.Errorf("%w: %v", ErrSetup, err))
		return res
	}
	if sc.Setup != nil {
		if err := sc.Setup(ctx, session); err != nil {
			r.abort(log, res, sc, fmt.Errorf("%w: %w", ErrSetup, err))
			return res
		}
	}

	if sc.Teardown != nil {
		defer func() {
			if err := sc.Teardown(ctx, session, res); err != nil {
				log.Warn("scenario teardown failed", zap.Error(err))
			}
		}()
	}

	outcomes := make(map[string]Outcome, len(sc.Steps))
	for i, step := range sc.Steps {
		sr := StepResult{Name: step.Name, DependsOn: step.DependsOn}
		stepLog := log.With(zap.String("step", step.Name), zap.Int("index", i+1))

		if step.DependsOn != "" && outcomes[step.DependsOn] != OutcomePassed {
			sr.Outcome = OutcomeSkipped
			sr.SkipReason = fmt.Sprintf("dependency %q %s", step.DependsOn, outcomes[step.DependsOn])
			stepLog.Warn("step skipped", zap.String("reason", sr.SkipReason))
		} else {
			start := time.Now()
			err := step.Action(ctx, session)
			sr.Duration = time.Since(start)
			if err != nil {
				sr.Outcome = OutcomeFailed
				sr.Err = &StepError{Step: step.Name, Err: err}
				stepLog.Error("step failed", zap.Duration("duration", sr.Duration), zap.Error(err))
			} else {
				sr.Outcome = OutcomePassed
				stepLog.Info("step passed", zap.Duration("duration", sr.Duration))
			}
		}

		outcomes[step.Name] = sr.Outcome
		r.metrics.RecordStep(step.Name, string(sr.Outcome), sr.Duration)
		res.Steps = append(res.Steps, sr)
	}

	log.Info("scenario finished",
		zap.Int("passed", res.Count(OutcomePassed)),
		zap.Int("failed", res.Count(OutcomeFailed)),
		zap.Int("skipped", res.Count(OutcomeSkipped)))
	return res
}

func (r *Runner) abort(log *zap.Logger, res *Result, sc Scenario, err error) {
	log.Error("scenario aborted", zap.Error(err))
	res.SetupErr = err
	for _, step := range sc.Steps {
		res.Steps = append(res.Steps, StepResult{
			Name:       step.Name,
			DependsOn:  step.DependsOn,
			Outcome:    OutcomeSkipped,
			SkipReason: "setup failed",
		})
		r.metrics.RecordStep(step.Name, string(OutcomeSkipped), 0)
	}
}
