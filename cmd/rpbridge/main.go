// Package main provides the rpbridge CLI entrypoint.
//
// Usage:
//
//	rpbridge <command> [subcommand] [options]
//
// Exit codes for `run`:
//   - 0: every test passed
//   - 1: at least one test failed
//   - 2: reporting or host stream failure
//   - 3: configuration error
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/rpbridge/cli/cmd"
	"github.com/pithecene-io/rpbridge/types"
)

// Commit is set via ldflags at build time.
var commit = "unknown"

// osExit is replaced in tests.
var osExit = os.Exit

func main() {
	if err := newApp().Run(os.Args); err != nil {
		// ExitErrHandler already exited for cli.ExitCoder errors.
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:           "rpbridge",
		Usage:          "Report host test runs to ReportPortal",
		Version:        fmt.Sprintf("%s (commit: %s)", types.Version, commit),
		ExitErrHandler: exitErrHandler,
		Commands: []*cli.Command{
			cmd.RunCommand(),
			cmd.ConfigCommand(),
			cmd.InspectCommand(),
			cmd.VersionCommand(commit),
		},
	}
}

// exitErrHandler preserves exit codes from cli.Exit so that `run` exit
// codes reach the shell.
func exitErrHandler(c *cli.Context, err error) {
	if err == nil {
		return
	}

	var stderr io.Writer = os.Stderr
	if c != nil && c.App != nil && c.App.ErrWriter != nil {
		stderr = c.App.ErrWriter
	}

	var exitCoder cli.ExitCoder
	if errors.As(err, &exitCoder) {
		code := exitCoder.ExitCode()
		msg := exitCoder.Error()

		// cli.Exit("", N).Error() is "exit status N"; print only real messages.
		if msg != "" && msg != fmt.Sprintf("exit status %d", code) {
			fmt.Fprintln(stderr, msg)
		}
		osExit(code)
		return
	}

	fmt.Fprintf(stderr, "Error: %v\n", err)
	osExit(1)
}
