// Package tui provides Bubble Tea TUI components for the rpbridge CLI.
//
// The TUI is opt-in (--tui) and read-only. It renders the same payloads as
// the json, yaml and table output; there is no TUI-only data.
package tui

import "github.com/charmbracelet/lipgloss"

// Color palette.
var (
	primaryColor = lipgloss.Color("#2563EB") // Blue
	successColor = lipgloss.Color("#16A34A") // Green
	warningColor = lipgloss.Color("#D97706") // Amber
	errorColor   = lipgloss.Color("#DC2626") // Red
	mutedColor   = lipgloss.Color("#6B7280") // Gray
)

// Styles for TUI components.
var (
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor).
			MarginBottom(1)

	LabelStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			Width(14)

	ValueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF"))

	SuccessStyle = lipgloss.NewStyle().
			Foreground(successColor)

	WarningStyle = lipgloss.NewStyle().
			Foreground(warningColor)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(errorColor)

	BoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(mutedColor).
			Padding(1, 2)

	HelpStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			MarginTop(1)

	// CountStyle renders the pass/fail counters.
	CountStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(primaryColor).
			Padding(0, 2).
			Width(14).
			Align(lipgloss.Center)
)

// OutcomeStyle returns the style for a run outcome or item status.
func OutcomeStyle(outcome string) lipgloss.Style {
	switch outcome {
	case "passed", "PASSED":
		return SuccessStyle
	case "failed", "FAILED":
		return ErrorStyle
	case "remote_error", "stream_error":
		return WarningStyle
	default:
		return ValueStyle
	}
}

// KindStyle returns the style for an archived record kind.
func KindStyle(kind string) lipgloss.Style {
	switch kind {
	case "launch_started", "launch_finished":
		return TitleStyle.MarginBottom(0)
	case "log":
		return LabelStyle.Width(0)
	default:
		return ValueStyle
	}
}
