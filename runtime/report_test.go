package runtime

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pithecene-io/rpbridge/bridge"
	"github.com/pithecene-io/rpbridge/iox"
	"github.com/pithecene-io/rpbridge/metrics"
)

func newTestResult() *Result {
	return &Result{
		Outcome: Outcome{Status: OutcomeFailed, Message: "1 of 3 tests failed"},
		Summary: bridge.Summary{
			Launch:   "nightly",
			LaunchID: "launch-1",
			State:    "ended",
			Suites:   2,
			Tests:    3,
			Passed:   2,
			Failed:   1,
			Logs:     12,
		},
		Duration: 5 * time.Second,
		Events:   14,
		Dropped:  1,
	}
}

func newTestSnapshot() metrics.Snapshot {
	return metrics.Snapshot{
		LaunchesStarted:   1,
		LaunchesFinished:  1,
		TestsStarted:      3,
		TestsFinished:     3,
		TestsPassed:       2,
		TestsFailed:       1,
		LogEntries:        12,
		RemoteCallSuccess: 20,
		Transport:         "portal",
		Project:           "qa",
		Launch:            "nightly",
		LaunchID:          "launch-1",
	}
}

func TestBuildRunReport(t *testing.T) {
	report := BuildRunReport(newTestResult(), newTestSnapshot(), "portal")

	if report.Launch != "nightly" {
		t.Errorf("Launch = %q, want %q", report.Launch, "nightly")
	}
	if report.LaunchID != "launch-1" {
		t.Errorf("LaunchID = %q, want %q", report.LaunchID, "launch-1")
	}
	if report.Transport != "portal" {
		t.Errorf("Transport = %q, want %q", report.Transport, "portal")
	}
	if report.Outcome != OutcomeFailed {
		t.Errorf("Outcome = %q, want %q", report.Outcome, OutcomeFailed)
	}
	if report.ExitCode != ExitCodeTestsFailed {
		t.Errorf("ExitCode = %d, want %d", report.ExitCode, ExitCodeTestsFailed)
	}
	if report.DurationMs != 5000 {
		t.Errorf("DurationMs = %d, want 5000", report.DurationMs)
	}
	if report.Events != 14 || report.Dropped != 1 {
		t.Errorf("Events/Dropped = %d/%d, want 14/1", report.Events, report.Dropped)
	}
	if report.Tests.Total != 3 || report.Tests.Passed != 2 || report.Tests.Failed != 1 {
		t.Errorf("Tests = %+v", report.Tests)
	}
	if report.Suites != 2 {
		t.Errorf("Suites = %d, want 2", report.Suites)
	}
	if report.Metrics.RemoteCallSuccess != 20 {
		t.Errorf("Metrics.RemoteCallSuccess = %d, want 20", report.Metrics.RemoteCallSuccess)
	}
}

func TestOutcome_ExitCode(t *testing.T) {
	tests := []struct {
		status OutcomeStatus
		want   int
	}{
		{OutcomePassed, ExitCodePassed},
		{OutcomeFailed, ExitCodeTestsFailed},
		{OutcomeRemoteError, ExitCodeRunError},
		{OutcomeStreamError, ExitCodeRunError},
	}
	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			if got := (Outcome{Status: tt.status}).ExitCode(); got != tt.want {
				t.Errorf("ExitCode() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestWriteRunReport_File(t *testing.T) {
	report := BuildRunReport(newTestResult(), newTestSnapshot(), "portal")
	path := filepath.Join(t.TempDir(), "report.json")

	if err := WriteRunReport(report, path); err != nil {
		t.Fatalf("WriteRunReport failed: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("failed to open report: %v", err)
	}
	defer iox.DiscardClose(f)

	decoded, err := ReadRunReport(f)
	if err != nil {
		t.Fatalf("ReadRunReport failed: %v", err)
	}
	if decoded.LaunchID != "launch-1" {
		t.Errorf("decoded LaunchID = %q, want %q", decoded.LaunchID, "launch-1")
	}
	if decoded.Outcome != OutcomeFailed {
		t.Errorf("decoded Outcome = %q, want %q", decoded.Outcome, OutcomeFailed)
	}
}

func TestWriteRunReport_EmptyPath(t *testing.T) {
	if err := WriteRunReport(&RunReport{}, ""); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestWriteRunReport_BadPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "report.json")
	if err := WriteRunReport(&RunReport{}, path); err == nil {
		t.Fatal("expected error for unwritable path")
	}
}

func TestRunReport_JSONFields(t *testing.T) {
	var buf bytes.Buffer
	if err := writeRunReportTo(BuildRunReport(newTestResult(), newTestSnapshot(), "portal"), &buf); err != nil {
		t.Fatalf("writeRunReportTo failed: %v", err)
	}

	var raw map[string]any
	if err := json.Unmarshal(buf.Bytes(), &raw); err != nil {
		t.Fatalf("failed to unmarshal: %v", err)
	}
	for _, key := range []string{"launch", "launch_id", "transport", "outcome", "message", "exit_code", "duration_ms", "tests", "suites", "metrics"} {
		if _, ok := raw[key]; !ok {
			t.Errorf("report missing %q", key)
		}
	}
	if raw["outcome"] != "failed" {
		t.Errorf("outcome = %v, want failed", raw["outcome"])
	}
}

func TestRunReport_OmitsEmptyLaunchID(t *testing.T) {
	result := newTestResult()
	result.Summary.LaunchID = ""

	var buf bytes.Buffer
	if err := writeRunReportTo(BuildRunReport(result, metrics.Snapshot{}, "stub"), &buf); err != nil {
		t.Fatal(err)
	}
	var raw map[string]any
	if err := json.Unmarshal(buf.Bytes(), &raw); err != nil {
		t.Fatal(err)
	}
	if _, exists := raw["launch_id"]; exists {
		t.Error("launch_id should be omitted when no launch was started")
	}
}

func TestWriteRunReport_Stderr(t *testing.T) {
	origStderr := os.Stderr
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("failed to create pipe: %v", err)
	}
	os.Stderr = w

	writeErr := WriteRunReport(BuildRunReport(newTestResult(), newTestSnapshot(), "portal"), "-")

	// Restore stderr before any assertions.
	iox.DiscardClose(w)
	os.Stderr = origStderr

	if writeErr != nil {
		t.Fatalf("WriteRunReport to stderr failed: %v", writeErr)
	}

	decoded, err := ReadRunReport(r)
	if err != nil {
		t.Fatalf("stderr output is not a report: %v", err)
	}
	if decoded.Launch != "nightly" {
		t.Errorf("decoded Launch = %q, want %q", decoded.Launch, "nightly")
	}
}
