package gotest

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/pithecene-io/rpbridge/log"
	"github.com/pithecene-io/rpbridge/types"
)

// MaxLineSize bounds a single input line.
const MaxLineSize = 4 * 1024 * 1024

// Host level names emitted by the source. They go through the bridge's
// level translation like any other host level.
const (
	LevelInfo    = "info"
	LevelError   = "error"
	LevelSuccess = "Success"
	LevelWarn    = "Warn"
	LevelFailure = "Failure"
)

// Log categories.
const (
	CategoryOutput = "output"
	CategoryResult = "result"
	CategoryBuild  = "build"
)

// Option configures a Source.
type Option func(*Source)

// WithLogger sets the logger for dropped lines. Defaults to a no-op logger.
func WithLogger(l *log.Logger) Option {
	return func(s *Source) { s.logger = l }
}

// WithLaunch announces launch attributes on run_start.
func WithLaunch(info *types.LaunchInfo) Option {
	return func(s *Source) { s.launch = info }
}

// Source translates `go test -json` lines into host events.
// It emits run_start first and run_end once the input is exhausted.
//
// Events of a top-level test are held until the test's own pass, fail or
// skip arrives and are then emitted together, so parallel tests whose
// output interleaves still reach the bridge one test at a time. Tests
// still open at end of input are emitted in the order they first appeared.
type Source struct {
	scanner *bufio.Scanner
	logger  *log.Logger
	launch  *types.LaunchInfo

	started bool
	ended   bool
	suite   string

	ready   []*types.HostEvent
	pending map[testKey][]*types.HostEvent
	order   []testKey
}

// testKey identifies a top-level test within its package.
type testKey struct {
	pkg  string
	test string
}

// NewSource creates a Source reading from r.
func NewSource(r io.Reader, opts ...Option) *Source {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), MaxLineSize)
	s := &Source{
		scanner: scanner,
		logger:  log.NewNop(),
		pending: make(map[testKey][]*types.HostEvent),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Next returns the next host event, or io.EOF after run_end.
func (s *Source) Next(ctx context.Context) (*types.HostEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !s.started {
		s.started = true
		return &types.HostEvent{Kind: types.HostRunStart, Launch: s.launch}, nil
	}

	for {
		if len(s.ready) > 0 {
			ev := s.ready[0]
			s.ready = s.ready[1:]
			return ev, nil
		}
		if s.ended {
			return nil, io.EOF
		}
		if !s.scanner.Scan() {
			if err := s.scanner.Err(); err != nil {
				return nil, fmt.Errorf("read go test output: %w", err)
			}
			for _, key := range s.order {
				s.ready = append(s.ready, s.pending[key]...)
			}
			s.order, s.pending = nil, nil
			s.ready = append(s.ready, &types.HostEvent{Kind: types.HostRunEnd})
			s.ended = true
			continue
		}
		s.route(s.scanner.Bytes())
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}
}

// route queues the event for one input line. Package and build events go
// out immediately; test events wait for their top-level test to finish.
func (s *Source) route(line []byte) {
	event, ok := ParseEvent(line)
	if !ok {
		s.emit(s.rawLine(line))
		return
	}

	ev := s.translate(event)
	if event.Test == "" {
		s.emit(ev)
		return
	}

	key := testKey{pkg: event.Package, test: TopLevel(event.Test)}
	if ev != nil {
		if _, open := s.pending[key]; !open {
			s.order = append(s.order, key)
		}
		s.pending[key] = append(s.pending[key], ev)
	}
	if event.Test == key.test && isResult(event.Action) {
		s.release(key)
	}
}

func (s *Source) emit(ev *types.HostEvent) {
	if ev != nil {
		s.ready = append(s.ready, ev)
	}
}

// release emits everything held for key.
func (s *Source) release(key testKey) {
	s.ready = append(s.ready, s.pending[key]...)
	delete(s.pending, key)
	for i, k := range s.order {
		if k == key {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

func isResult(action string) bool {
	return action == ActionPass || action == ActionFail || action == ActionSkip
}

func (s *Source) translate(event TestEvent) *types.HostEvent {
	switch event.Action {
	case ActionOutput:
		s.suite = event.Package
		return s.output(event)
	case ActionPass, ActionFail, ActionSkip:
		s.suite = event.Package
		return s.result(event)
	case ActionBuildOutput, ActionBuildFail:
		return s.build(event)
	default:
		// start, run, pause, cont and bench carry no log content.
		if event.Package != "" {
			s.suite = event.Package
		}
		return nil
	}
}

func (s *Source) output(event TestEvent) *types.HostEvent {
	text := strings.TrimRight(event.Output, "\r\n")
	if strings.TrimSpace(text) == "" || strings.HasPrefix(text, "=== ") {
		return nil
	}
	level := LevelInfo
	if strings.HasPrefix(strings.TrimSpace(text), "panic:") {
		level = LevelError
	}
	return &types.HostEvent{
		Kind:  types.HostLog,
		Suite: event.Package,
		Test:  TopLevel(event.Test),
		Log: &types.LogEvent{
			Level:    level,
			Category: CategoryOutput,
			Message:  text,
		},
	}
}

func (s *Source) result(event TestEvent) *types.HostEvent {
	var level, verb string
	switch event.Action {
	case ActionPass:
		level, verb = LevelSuccess, "PASS"
	case ActionSkip:
		level, verb = LevelWarn, "SKIP"
	default:
		level, verb = LevelFailure, "FAIL"
	}

	subject := event.Test
	if subject == "" {
		subject = event.Package
	}
	return &types.HostEvent{
		Kind:  types.HostLog,
		Suite: event.Package,
		Test:  TopLevel(event.Test),
		Log: &types.LogEvent{
			Level:    level,
			Category: CategoryResult,
			Message:  fmt.Sprintf("%s %s", verb, subject),
			Metadata: map[string]string{"elapsed": fmt.Sprintf("%.2fs", event.Elapsed)},
		},
	}
}

// build reports compiler output against the package being built. Build
// events name the package through ImportPath, possibly with a " [pkg.test]"
// suffix.
func (s *Source) build(event TestEvent) *types.HostEvent {
	suite, _, _ := strings.Cut(event.ImportPath, " ")
	if suite == "" {
		return nil
	}
	s.suite = suite

	level, text := LevelInfo, strings.TrimRight(event.Output, "\r\n")
	if event.Action == ActionBuildFail {
		level, text = LevelFailure, "build failed"
	}
	if strings.TrimSpace(text) == "" {
		return nil
	}
	return &types.HostEvent{
		Kind:  types.HostLog,
		Suite: suite,
		Log: &types.LogEvent{
			Level:    level,
			Category: CategoryBuild,
			Message:  text,
		},
	}
}

func (s *Source) rawLine(line []byte) *types.HostEvent {
	text := string(bytes.TrimRight(line, "\r\n"))
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if s.suite == "" {
		s.logger.Debug("dropping output before first package", map[string]any{"line": text})
		return nil
	}
	return &types.HostEvent{
		Kind:  types.HostLog,
		Suite: s.suite,
		Log: &types.LogEvent{
			Level:    LevelInfo,
			Category: CategoryOutput,
			Message:  text,
		},
	}
}

// TopLevel returns the top-level test of a possibly nested test name.
func TopLevel(test string) string {
	name, _, _ := strings.Cut(test, "/")
	return name
}
