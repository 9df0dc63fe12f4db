package runtime

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/pithecene-io/rpbridge/metrics"
)

// RunReport is the structured JSON report written by --report.
type RunReport struct {
	Launch     string        `json:"launch"`
	LaunchID   string        `json:"launch_id,omitempty"`
	Transport  string        `json:"transport"`
	Outcome    OutcomeStatus `json:"outcome"`
	Message    string        `json:"message"`
	ExitCode   int           `json:"exit_code"`
	DurationMs int64         `json:"duration_ms"`
	Events     int64         `json:"events"`
	Dropped    int64         `json:"dropped"`

	Tests   *ReportTests      `json:"tests"`
	Suites  int               `json:"suites"`
	Metrics *metrics.Snapshot `json:"metrics"`
}

// ReportTests holds test counts in the report.
type ReportTests struct {
	Total  int `json:"total"`
	Passed int `json:"passed"`
	Failed int `json:"failed"`
}

// BuildRunReport composes a RunReport from a Result and metrics snapshot.
func BuildRunReport(result *Result, snap metrics.Snapshot, transport string) *RunReport {
	return &RunReport{
		Launch:     result.Summary.Launch,
		LaunchID:   result.Summary.LaunchID,
		Transport:  transport,
		Outcome:    result.Outcome.Status,
		Message:    result.Outcome.Message,
		ExitCode:   result.Outcome.ExitCode(),
		DurationMs: result.Duration.Milliseconds(),
		Events:     result.Events,
		Dropped:    result.Dropped,
		Tests: &ReportTests{
			Total:  result.Summary.Tests,
			Passed: result.Summary.Passed,
			Failed: result.Summary.Failed,
		},
		Suites:  result.Summary.Suites,
		Metrics: &snap,
	}
}

// WriteRunReport writes the report as JSON to the specified path.
// If path is "-", writes to stderr.
func WriteRunReport(report *RunReport, path string) error {
	if path == "" {
		return errors.New("report path must not be empty")
	}

	if path == "-" {
		if err := writeRunReportTo(report, os.Stderr); err != nil {
			return fmt.Errorf("failed to write report to stderr: %w", err)
		}
		return nil
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to write report to %s: %w", path, err)
	}
	if err := writeRunReportTo(report, f); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write report to %s: %w", path, err)
	}
	return f.Close()
}

// writeRunReportTo writes report JSON to any writer.
func writeRunReportTo(report *RunReport, w io.Writer) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}

// ReadRunReport reads a report written by WriteRunReport.
func ReadRunReport(r io.Reader) (*RunReport, error) {
	var report RunReport
	if err := json.NewDecoder(r).Decode(&report); err != nil {
		return nil, fmt.Errorf("failed to decode report: %w", err)
	}
	return &report, nil
}
