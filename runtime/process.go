package runtime

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"

	"github.com/pithecene-io/rpbridge/types"
)

// Environment variables passed to a host process.
const (
	EnvContractVersion = "RPBRIDGE_CONTRACT_VERSION"
	EnvLaunch          = "RPBRIDGE_LAUNCH"
)

// maxStderrTail bounds the host stderr kept for diagnostics.
const maxStderrTail = 64 * 1024

// ProcessConfig configures a host process.
type ProcessConfig struct {
	// Command is the executable and its arguments. Required.
	Command []string
	// Launch is exported to the child as RPBRIDGE_LAUNCH.
	Launch string
	// Stderr receives a copy of the child's stderr. Nil discards it.
	Stderr io.Writer
}

// ProcessResult is the exit state of a host process.
type ProcessResult struct {
	// ExitCode is the process exit code, or -1 if it was killed by a signal.
	ExitCode int
	// StderrTail is the last part of the child's stderr.
	StderrTail string
}

// Process runs a host framework whose stdout is the event stream, for
// example `go test -json ./...`.
type Process struct {
	config *ProcessConfig
	cmd    *exec.Cmd
	stdout io.ReadCloser
	stderr *tailBuffer
}

// NewProcess creates a host process. Returns an error if no command is given.
func NewProcess(config *ProcessConfig) (*Process, error) {
	if len(config.Command) == 0 {
		return nil, errors.New("host process: command is required")
	}
	return &Process{config: config, stderr: &tailBuffer{limit: maxStderrTail}}, nil
}

// Start starts the process. Stdout is exposed through Stdout.
func (p *Process) Start(ctx context.Context) error {
	p.cmd = exec.CommandContext(ctx, p.config.Command[0], p.config.Command[1:]...)
	p.cmd.Env = deduplicateEnv(append(os.Environ(),
		EnvContractVersion+"="+types.ContractVersion,
		EnvLaunch+"="+p.config.Launch,
	))

	stdout, err := p.cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	p.stdout = stdout

	if p.config.Stderr != nil {
		p.cmd.Stderr = io.MultiWriter(p.stderr, p.config.Stderr)
	} else {
		p.cmd.Stderr = p.stderr
	}

	if err := p.cmd.Start(); err != nil {
		return fmt.Errorf("failed to start host process: %w", err)
	}
	return nil
}

// Stdout returns the stdout reader. Valid after Start.
func (p *Process) Stdout() io.Reader {
	return p.stdout
}

// Wait waits for the process to exit. The stdout stream must be fully
// consumed first; Wait closes it.
func (p *Process) Wait() (*ProcessResult, error) {
	if p.cmd == nil {
		return nil, errors.New("host process not started")
	}

	err := p.cmd.Wait()
	result := &ProcessResult{StderrTail: p.stderr.String()}
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return nil, fmt.Errorf("host process wait failed: %w", err)
		}
		result.ExitCode = -1
		if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && !status.Signaled() {
			result.ExitCode = status.ExitStatus()
		}
	}
	return result, nil
}

// Kill terminates the process.
func (p *Process) Kill() error {
	if p.cmd != nil && p.cmd.Process != nil {
		return p.cmd.Process.Kill()
	}
	return nil
}

// ApplyHostExit folds a host exit code into the result. A host that exits
// non-zero after an otherwise passing run fails the run, which covers
// failures that never reached a test item (for example build errors).
func (r *Result) ApplyHostExit(code int) {
	if code == 0 || r.Outcome.Status != OutcomePassed {
		return
	}
	r.Outcome = Outcome{
		Status:  OutcomeFailed,
		Message: fmt.Sprintf("host exited with code %d", code),
	}
}

// deduplicateEnv keeps the last occurrence of each env var key so that
// appended values win over inherited ones.
func deduplicateEnv(env []string) []string {
	seen := make(map[string]int, len(env))
	for i, entry := range env {
		key, _, _ := strings.Cut(entry, "=")
		seen[key] = i
	}
	result := make([]string, 0, len(seen))
	for i, entry := range env {
		key, _, _ := strings.Cut(entry, "=")
		if seen[key] == i {
			result = append(result, entry)
		}
	}
	return result
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	mu    sync.Mutex
	buf   bytes.Buffer
	limit int
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := len(p)
	if n >= t.limit {
		t.buf.Reset()
		t.buf.Write(p[n-t.limit:])
		return n, nil
	}
	if over := t.buf.Len() + n - t.limit; over > 0 {
		t.buf.Next(over)
	}
	t.buf.Write(p)
	return n, nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.buf.String()
}
