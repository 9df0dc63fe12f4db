// Package reader provides the read-side data access layer for the rpbridge CLI.
//
// Read-only commands go through this package exclusively. It loads run
// reports written by `rpbridge run --report` and launch records from the
// archive dataset, and flattens both into view types for rendering.
package reader

// ReportView is the flat form of a run report.
type ReportView struct {
	Launch    string `json:"launch"`
	LaunchID  string `json:"launch_id"`
	Transport string `json:"transport"`
	Outcome   string `json:"outcome"`
	Message   string `json:"message"`
	ExitCode  int    `json:"exit_code"`
	Duration  string `json:"duration"`
	Suites    int    `json:"suites"`
	Tests     int    `json:"tests"`
	Passed    int    `json:"passed"`
	Failed    int    `json:"failed"`
	Events    int64  `json:"events"`
	Dropped   int64  `json:"dropped"`
}

// MetricRow is one counter of the report's metrics snapshot.
type MetricRow struct {
	Name  string `json:"name"`
	Value int64  `json:"value"`
}

// ReportDetail is a report together with its metrics, as shown by the TUI.
type ReportDetail struct {
	Report  *ReportView `json:"report"`
	Metrics []MetricRow `json:"metrics"`
}

// RecordRow is one archived reporting operation.
type RecordRow struct {
	Seq    int64  `json:"seq"`
	Kind   string `json:"kind"`
	ItemID string `json:"item_id"`
	Time   string `json:"time"`
	Detail string `json:"detail"`
}
