package tui

import (
	"fmt"
	"slices"
)

// View types with a TUI.
const (
	ViewReport = "inspect_report"
	ViewLaunch = "inspect_launch"
)

// Run starts the TUI for the view type.
// Returns an error if the view type doesn't support TUI.
func Run(viewType string, data any) error {
	if !IsTUISupported(viewType) {
		return fmt.Errorf("TUI mode is not supported for %s", viewType)
	}
	return RunInspectTUI(viewType, data)
}

// IsTUISupported returns true if the view type supports TUI mode.
// Only inspect views do.
func IsTUISupported(viewType string) bool {
	return slices.Contains(SupportedTUIViews(), viewType)
}

// SupportedTUIViews returns the view types that support TUI.
func SupportedTUIViews() []string {
	return []string{ViewReport, ViewLaunch}
}
