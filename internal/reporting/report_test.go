// internal/reporting/report_test.go
package reporting

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/FairForge/userjourney/internal/journey"
)

func sampleResult() *journey.Result {
	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	return &journey.Result{
		Scenario:   "user-journey",
		StartedAt:  start,
		FinishedAt: start.Add(1500 * time.Millisecond),
		Steps: []journey.StepResult{
			{Name: "create-user", Outcome: journey.OutcomePassed, Duration: 300 * time.Millisecond},
			{Name: "login-user", DependsOn: "create-user", Outcome: journey.OutcomeFailed,
				Err: &journey.StepError{Step: "login-user", Err: errors.New("status: expected 201, got 500")}},
			{Name: "update-user", DependsOn: "login-user", Outcome: journey.OutcomeSkipped, SkipReason: `dependency "login-user" failed`},
		},
	}
}

func TestFromResult(t *testing.T) {
	report, err := FromResult(sampleResult(), "https://reqres.in/api")
	require.NoError(t, err)

	assert.NotEmpty(t, report.ID)
	assert.Equal(t, "user-journey", report.Name)
	assert.Equal(t, "https://reqres.in/api", report.Target)
	assert.Equal(t, "1.5s", report.Duration)
	assert.False(t, report.Passed)
	assert.Equal(t, Summary{Passed: 1, Failed: 1, Skipped: 1}, report.Summary)

	require.Len(t, report.Steps, 3)
	assert.Equal(t, int64(300), report.Steps[0].DurationMS)
	assert.Contains(t, report.Steps[1].Error, "got 500")
	assert.Equal(t, "skipped", report.Steps[2].Outcome)
	assert.Empty(t, report.Steps[2].Error)
}

func TestFromResult_SetupError(t *testing.T) {
	res := &journey.Result{Scenario: "x", SetupErr: journey.ErrSetup}
	report, err := FromResult(res, "")
	require.NoError(t, err)
	assert.Equal(t, journey.ErrSetup.Error(), report.SetupError)
	assert.False(t, report.Passed)

	_, err = FromResult(nil, "")
	assert.Error(t, err)
}

func TestReport_Export(t *testing.T) {
	report, err := FromResult(sampleResult(), "t")
	require.NoError(t, err)

	t.Run("json", func(t *testing.T) {
		data, err := report.Export(FormatJSON)
		require.NoError(t, err)
		var decoded map[string]any
		require.NoError(t, json.Unmarshal(data, &decoded))
		assert.Equal(t, "user-journey", decoded["name"])
		assert.Equal(t, false, decoded["passed"])
	})

	t.Run("yaml", func(t *testing.T) {
		data, err := report.Export(FormatYAML)
		require.NoError(t, err)
		var decoded map[string]any
		require.NoError(t, yaml.Unmarshal(data, &decoded))
		assert.Equal(t, "user-journey", decoded["name"])
		steps, ok := decoded["steps"].([]any)
		require.True(t, ok)
		assert.Len(t, steps, 3)
	})

	t.Run("unsupported", func(t *testing.T) {
		_, err := report.Export("pdf")
		assert.Error(t, err)
	})
}

func TestReport_Write(t *testing.T) {
	report, err := FromResult(sampleResult(), "t")
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "nested", "report.json")
	require.NoError(t, report.Write(path, FormatJSON))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"name": "user-journey"`)
}
