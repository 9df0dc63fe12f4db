package reader

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/justapithecus/lode/lode"

	"github.com/pithecene-io/rpbridge/reporting/archive"
	"github.com/pithecene-io/rpbridge/runtime"
)

// ReadReport loads a run report. A path of "-" reads stdin.
func ReadReport(path string) (*runtime.RunReport, error) {
	if path == "-" {
		return runtime.ReadRunReport(os.Stdin)
	}
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("report not found: %s", path)
		}
		return nil, fmt.Errorf("cannot open report %q: %w", path, err)
	}
	defer func() { _ = f.Close() }()
	return runtime.ReadRunReport(f)
}

// InspectReport flattens a run report.
func InspectReport(report *runtime.RunReport) *ReportView {
	view := &ReportView{
		Launch:    report.Launch,
		LaunchID:  report.LaunchID,
		Transport: report.Transport,
		Outcome:   string(report.Outcome),
		Message:   report.Message,
		ExitCode:  report.ExitCode,
		Duration:  (time.Duration(report.DurationMs) * time.Millisecond).String(),
		Suites:    report.Suites,
		Events:    report.Events,
		Dropped:   report.Dropped,
	}
	if t := report.Tests; t != nil {
		view.Tests = t.Total
		view.Passed = t.Passed
		view.Failed = t.Failed
	}
	return view
}

// ReportMetrics lists the report's metric counters in a fixed order.
// Returns nil when the report carries no metrics.
func ReportMetrics(report *runtime.RunReport) []MetricRow {
	if report.Metrics == nil {
		return nil
	}
	s := report.Metrics
	return []MetricRow{
		{"launches_started", s.LaunchesStarted},
		{"launches_finished", s.LaunchesFinished},
		{"suites_started", s.SuitesStarted},
		{"suites_finished", s.SuitesFinished},
		{"tests_started", s.TestsStarted},
		{"tests_finished", s.TestsFinished},
		{"tests_passed", s.TestsPassed},
		{"tests_failed", s.TestsFailed},
		{"duplicate_finishes", s.DuplicateFinishes},
		{"log_entries", s.LogEntries},
		{"attachments", s.Attachments},
		{"metadata_entries", s.MetadataEntries},
		{"remote_call_success", s.RemoteCallSuccess},
		{"remote_call_failure", s.RemoteCallFailure},
		{"host_events", s.HostEvents},
		{"host_decode_errors", s.HostDecodeErrors},
		{"host_events_dropped", s.HostEventsDropped},
	}
}

// InspectReportDetail combines the flat report and its metrics.
func InspectReportDetail(report *runtime.RunReport) *ReportDetail {
	return &ReportDetail{
		Report:  InspectReport(report),
		Metrics: ReportMetrics(report),
	}
}

// LaunchRecords reads one launch from an archive dataset.
func LaunchRecords(ctx context.Context, ds lode.Dataset, launchID string) ([]RecordRow, error) {
	records, err := archive.LaunchRecords(ctx, ds, launchID)
	if err != nil {
		return nil, err
	}
	rows := make([]RecordRow, 0, len(records))
	for _, r := range records {
		rows = append(rows, recordRow(r))
	}
	return rows, nil
}

func recordRow(r map[string]any) RecordRow {
	kind := str(r["record_kind"])
	row := RecordRow{
		Kind:   kind,
		ItemID: str(r["item_id"]),
	}
	if seq, ok := r["seq"].(float64); ok {
		row.Seq = int64(seq)
	} else if seq, ok := r["seq"].(int64); ok {
		row.Seq = seq
	}

	switch kind {
	case archive.RecordKindLaunchStarted:
		row.Time = str(r["start_time"])
		row.Detail = str(r["name"])
	case archive.RecordKindItemStarted:
		row.Time = str(r["start_time"])
		row.Detail = strings.TrimSpace(str(r["type"]) + " " + str(r["name"]))
	case archive.RecordKindItemFinished:
		row.Time = str(r["end_time"])
		row.Detail = str(r["status"])
	case archive.RecordKindLaunchFinished:
		row.Time = str(r["end_time"])
	case archive.RecordKindLog:
		row.Time = str(r["time"])
		row.Detail = str(r["level"]) + ": " + firstLine(str(r["message"]))
		if name := str(r["attachment_name"]); name != "" {
			row.Detail += " [" + name + "]"
		}
	}
	return row
}

func str(v any) string {
	s, _ := v.(string)
	return s
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i] + " ..."
	}
	return s
}
