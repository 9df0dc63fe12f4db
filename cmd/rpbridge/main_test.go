package main

import (
	"bytes"
	"errors"
	"flag"
	"strings"
	"testing"

	"github.com/urfave/cli/v2"
)

// captureExit replaces osExit and returns a pointer to the recorded code.
func captureExit(t *testing.T) *int {
	t.Helper()
	code := -1
	orig := osExit
	osExit = func(c int) { code = c }
	t.Cleanup(func() { osExit = orig })
	return &code
}

func testContext(errOut *bytes.Buffer) *cli.Context {
	app := cli.NewApp()
	app.ErrWriter = errOut
	return cli.NewContext(app, flag.NewFlagSet("test", flag.ContinueOnError), nil)
}

func TestExitErrHandler_NilError(t *testing.T) {
	code := captureExit(t)
	exitErrHandler(nil, nil)
	if *code != -1 {
		t.Errorf("nil error should not exit, got code %d", *code)
	}
}

func TestExitErrHandler_ExitCoder(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantMsg  string
	}{
		{"passed", cli.Exit("", 0), 0, ""},
		{"tests failed", cli.Exit("", 1), 1, ""},
		{"run error", cli.Exit("run failed: start run: boom", 2), 2, "run failed: start run: boom"},
		{"config error", cli.Exit("invalid configuration: missing launch.name", 3), 3, "missing launch.name"},
		{"wrapped", errors.Join(errors.New("context"), cli.Exit("inner", 42)), 42, "inner"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code := captureExit(t)
			var errOut bytes.Buffer

			exitErrHandler(testContext(&errOut), tt.err)

			if *code != tt.wantCode {
				t.Errorf("exit code = %d, want %d", *code, tt.wantCode)
			}
			if tt.wantMsg == "" {
				if errOut.Len() != 0 {
					t.Errorf("expected no output, got %q", errOut.String())
				}
			} else if !strings.Contains(errOut.String(), tt.wantMsg) {
				t.Errorf("stderr = %q, want it to contain %q", errOut.String(), tt.wantMsg)
			}
		})
	}
}

func TestExitErrHandler_RegularError(t *testing.T) {
	code := captureExit(t)
	var errOut bytes.Buffer

	exitErrHandler(testContext(&errOut), errors.New("regular error"))

	if *code != 1 {
		t.Errorf("exit code = %d, want 1", *code)
	}
	if !strings.Contains(errOut.String(), "Error: regular error") {
		t.Errorf("stderr = %q", errOut.String())
	}
}

func TestNewApp_Commands(t *testing.T) {
	app := newApp()
	want := []string{"run", "config", "inspect", "version"}
	if len(app.Commands) != len(want) {
		t.Fatalf("got %d commands, want %d", len(app.Commands), len(want))
	}
	for i, name := range want {
		if app.Commands[i].Name != name {
			t.Errorf("command %d = %q, want %q", i, app.Commands[i].Name, name)
		}
	}
}
