// Package cmd provides CLI commands for the rpbridge binary.
package cmd

import (
	"os"
	"time"

	"github.com/urfave/cli/v2"
)

// Shared flags for read-only commands.
var (
	// OutputFlag selects output format: json, table, yaml.
	OutputFlag = &cli.StringFlag{
		Name:    "output",
		Aliases: []string{"o"},
		Usage:   "Output format: json, table, yaml",
	}

	// NoColorFlag disables colored output.
	NoColorFlag = &cli.BoolFlag{
		Name:  "no-color",
		Usage: "Disable colored output",
	}

	// TUIFlag enables Bubble Tea interactive mode.
	// Only inspect commands support it.
	TUIFlag = &cli.BoolFlag{
		Name:  "tui",
		Usage: "Enable interactive TUI mode (inspect only)",
	}

	// ConfigFlag points at an rpbridge.yaml file.
	ConfigFlag = &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to rpbridge.yaml",
		EnvVars: []string{"RPBRIDGE_CONFIG"},
	}
)

// ReadOnlyFlags returns the shared flags for all read-only commands.
// Includes --tui so that unsupported commands can reject it explicitly
// instead of failing with "flag not defined".
func ReadOnlyFlags() []cli.Flag {
	return []cli.Flag{
		OutputFlag,
		NoColorFlag,
		TUIFlag,
	}
}

// isStderrTTY reports whether stderr is a terminal.
func isStderrTTY() bool {
	info, err := os.Stderr.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}

// resolveString returns the flag value when set on the command line, then
// fallback when non-empty, then the flag default.
func resolveString(c *cli.Context, name, fallback string) string {
	if c.IsSet(name) {
		return c.String(name)
	}
	if fallback != "" {
		return fallback
	}
	return c.String(name)
}

// resolveDuration returns the flag value when set, otherwise fallback.
func resolveDuration(c *cli.Context, name string, fallback time.Duration) time.Duration {
	if c.IsSet(name) {
		return c.Duration(name)
	}
	return fallback
}
