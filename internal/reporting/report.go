// internal/reporting/report.go
package reporting

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/FairForge/userjourney/internal/journey"
)

// Export formats
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// Report is the persisted summary of one journey run
type Report struct {
	ID         string       `json:"id" yaml:"id"`
	Name       string       `json:"name" yaml:"name"`
	Target     string       `json:"target" yaml:"target"`
	StartedAt  time.Time    `json:"started_at" yaml:"started_at"`
	FinishedAt time.Time    `json:"finished_at" yaml:"finished_at"`
	Duration   string       `json:"duration" yaml:"duration"`
	Passed     bool         `json:"passed" yaml:"passed"`
	SetupError string       `json:"setup_error,omitempty" yaml:"setup_error,omitempty"`
	Summary    Summary      `json:"summary" yaml:"summary"`
	Steps      []StepReport `json:"steps" yaml:"steps"`
}

// Summary counts steps by outcome
type Summary struct {
	Passed  int `json:"passed" yaml:"passed"`
	Failed  int `json:"failed" yaml:"failed"`
	Skipped int `json:"skipped" yaml:"skipped"`
}

// StepReport describes one step
type StepReport struct {
	Name       string `json:"name" yaml:"name"`
	DependsOn  string `json:"depends_on,omitempty" yaml:"depends_on,omitempty"`
	Outcome    string `json:"outcome" yaml:"outcome"`
	Error      string `json:"error,omitempty" yaml:"error,omitempty"`
	SkipReason string `json:"skip_reason,omitempty" yaml:"skip_reason,omitempty"`
	DurationMS int64  `json:"duration_ms" yaml:"duration_ms"`
}

// FromResult builds a report from a journey result
func FromResult(res *journey.Result, target string) (*Report, error) {
	if res == nil {
		return nil, errors.New("report: result is required")
	}

	report := &Report{
		ID:         uuid.New().String(),
		Name:       res.Scenario,
		Target:     target,
		StartedAt:  res.StartedAt.UTC(),
		FinishedAt: res.FinishedAt.UTC(),
		Duration:   res.FinishedAt.Sub(res.StartedAt).String(),
		Passed:     res.Passed(),
		Summary: Summary{
			Passed:  res.Count(journey.OutcomePassed),
			Failed:  res.Count(journey.OutcomeFailed),
			Skipped: res.Count(journey.OutcomeSkipped),
		},
		Steps: make([]StepReport, 0, len(res.Steps)),
	}
	if res.SetupErr != nil {
		report.SetupError = res.SetupErr.Error()
	}

	for _, s := range res.Steps {
		sr := StepReport{
			Name:       s.Name,
			DependsOn:  s.DependsOn,
			Outcome:    string(s.Outcome),
			SkipReason: s.SkipReason,
			DurationMS: s.Duration.Milliseconds(),
		}
		if s.Err != nil {
			sr.Error = s.Err.Error()
		}
		report.Steps = append(report.Steps, sr)
	}

	return report, nil
}

// Export exports a report to the specified format
func (r *Report) Export(format string) ([]byte, error) {
	switch format {
	case FormatJSON, "":
		return json.MarshalIndent(r, "", "  ")
	case FormatYAML:
		return yaml.Marshal(r)
	default:
		return nil, fmt.Errorf("report: unsupported format %q", format)
	}
}

// Write exports the report and writes it to path, creating parent directories
func (r *Report) Write(path, format string) error {
	data, err := r.Export(format)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("create report directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}
