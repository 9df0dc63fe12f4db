// Package bridge mirrors host test framework events into the remote
// reporting hierarchy: launch → suite → test → log entry.
//
// The host never signals the end of a test. A test is finished when a log
// event names a different test, or when the run ends. Status is therefore
// captured per log event and read lazily at finish time.
package bridge

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/pithecene-io/rpbridge/log"
	"github.com/pithecene-io/rpbridge/metrics"
	"github.com/pithecene-io/rpbridge/registry"
	"github.com/pithecene-io/rpbridge/reporting"
	"github.com/pithecene-io/rpbridge/status"
	"github.com/pithecene-io/rpbridge/types"
)

// Sentinel errors for lifecycle violations.
var (
	// ErrRunStarted is returned by OnRunStart after a successful start.
	ErrRunStarted = errors.New("bridge: run already started")
	// ErrRunNotActive is returned by event handlers outside an active run.
	ErrRunNotActive = errors.New("bridge: run not active")
	// ErrNoSuite is returned when the host reports no current suite.
	ErrNoSuite = errors.New("bridge: host has no current suite")
)

// Host exposes the host framework's notion of the current suite and test.
type Host interface {
	// CurrentSuiteName returns the active suite name, or "" if none.
	CurrentSuiteName() string
	// CurrentTestName returns the active test name. ok is false when no
	// test container is active.
	CurrentTestName() (name string, ok bool)
}

// Launch holds the attributes the launch is started with.
type Launch struct {
	Name        string
	Description string
	Attributes  []types.Attribute
	Mode        types.LaunchMode
}

// RunState is the global lifecycle state of a Bridge.
type RunState int

// Run states.
const (
	RunNotStarted RunState = iota
	RunActive
	RunEnded
)

// String returns the snake_case state name.
func (s RunState) String() string {
	switch s {
	case RunActive:
		return "active"
	case RunEnded:
		return "ended"
	default:
		return "not_started"
	}
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(l *log.Logger) Option {
	return func(b *Bridge) { b.logger = l }
}

// WithCollector sets the metrics collector. Nil is allowed.
func WithCollector(c *metrics.Collector) Option {
	return func(b *Bridge) { b.collector = c }
}

// WithFormat sets the log message format. Defaults to FormatMetadata.
func WithFormat(f Format) Option {
	return func(b *Bridge) { b.format = f }
}

// WithClock replaces time.Now for item and log timestamps.
func WithClock(now func() time.Time) Option {
	return func(b *Bridge) { b.now = now }
}

// Bridge is the event mapper for one launch.
// All entry points are serialized by an internal mutex.
type Bridge struct {
	mu sync.Mutex

	client    reporting.Client
	host      Host
	settings  Launch
	format    Format
	logger    *log.Logger
	collector *metrics.Collector
	now       func() time.Time

	state    RunState
	launch   *reporting.LaunchReporter
	registry *registry.Registry
	status   status.Tracker
	counts   Summary
}

// New creates a Bridge reporting through client and reading identity
// from host.
func New(client reporting.Client, host Host, launch Launch, opts ...Option) *Bridge {
	b := &Bridge{
		client:   client,
		host:     host,
		settings: launch,
		format:   FormatMetadata,
		logger:   log.NewNop(),
		now:      time.Now,
		registry: registry.New(),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.counts.Launch = launch.Name
	return b
}

// OnRunStart starts the launch. On failure the bridge stays not started
// and OnRunStart may be called again.
func (b *Bridge) OnRunStart(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != RunNotStarted {
		return ErrRunStarted
	}

	launch := reporting.NewLaunchReporter(b.client, &reporting.StartLaunchRequest{
		Name:        b.settings.Name,
		Description: b.settings.Description,
		StartTime:   b.now(),
		Attributes:  b.settings.Attributes,
		Mode:        b.settings.Mode,
	})
	if err := launch.Start(ctx); err != nil {
		return err
	}

	b.launch = launch
	b.state = RunActive
	b.counts.LaunchID = launch.ID()
	b.collector.IncLaunchStarted(launch.ID())
	b.logger.Info("launch started", map[string]any{"launch_id": launch.ID()})
	return nil
}

// OnLogEvent routes one host log call to the current suite or test,
// starting and finishing items as the host's current identity changes.
func (b *Bridge) OnLogEvent(ctx context.Context, ev *types.LogEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != RunActive {
		return ErrRunNotActive
	}

	suiteName := b.host.CurrentSuiteName()
	if suiteName == "" {
		return ErrNoSuite
	}
	active, err := b.suite(ctx, suiteName)
	if err != nil {
		return err
	}

	testName, inTest := b.host.CurrentTestName()
	inTest = inTest && testName != ""
	if inTest {
		test, err := b.test(ctx, active, testName)
		if err != nil {
			return err
		}
		active = test
	}

	if err := b.emit(ctx, active, ev); err != nil {
		return err
	}

	if inTest {
		b.status.Observe(ev.Level)
	}
	return nil
}

// OnTextLog handles a plain text log callback. escape is accepted for
// signature compatibility with host frameworks and ignored.
func (b *Bridge) OnTextLog(ctx context.Context, level, category, message string, escape bool, metadata map[string]string) error {
	return b.OnLogEvent(ctx, &types.LogEvent{
		Level:    level,
		Category: category,
		Message:  message,
		Metadata: metadata,
	})
}

// OnDataLog handles a log callback carrying binary data. A nil data is
// logged as text only.
func (b *Bridge) OnDataLog(ctx context.Context, level, category, message string, data *types.Attachment, metadata map[string]string) error {
	return b.OnLogEvent(ctx, &types.LogEvent{
		Level:      level,
		Category:   category,
		Message:    message,
		Attachment: data,
		Metadata:   metadata,
	})
}

// OnRunEnd finishes every open test, then every open suite, then the
// launch, and syncs the transport. Every finish is attempted even if an
// earlier one fails; the errors are joined. The bridge ends in either case.
func (b *Bridge) OnRunEnd(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != RunActive {
		return ErrRunNotActive
	}
	b.state = RunEnded

	var errs []error
	for _, e := range b.registry.Tests() {
		if err := b.finishTest(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	for _, e := range b.registry.Suites() {
		if err := b.finishSuite(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}

	if err := b.launch.Finish(ctx, &reporting.FinishLaunchRequest{EndTime: b.now()}); err != nil {
		errs = append(errs, err)
	} else {
		b.collector.IncLaunchFinished()
	}
	if err := b.launch.Sync(ctx); err != nil {
		errs = append(errs, err)
	}

	b.logger.Info("launch finished", map[string]any{
		"launch_id": b.launch.ID(),
		"tests":     b.counts.Tests,
		"failed":    b.counts.Failed,
		"errors":    len(errs),
	})
	return errors.Join(errs...)
}

// State returns the current run state.
func (b *Bridge) State() RunState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Summary returns counts of what has been reported so far.
func (b *Bridge) Summary() Summary {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := b.counts
	s.State = b.state.String()
	s.OpenSuites, s.OpenTests = b.registry.Len()
	return s
}
