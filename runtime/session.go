package runtime

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/pithecene-io/rpbridge/bridge"
	"github.com/pithecene-io/rpbridge/ipc"
	"github.com/pithecene-io/rpbridge/log"
	"github.com/pithecene-io/rpbridge/metrics"
	"github.com/pithecene-io/rpbridge/reporting"
	"github.com/pithecene-io/rpbridge/types"
)

// DefaultFinishTimeout bounds the best-effort run end after the input
// context is cancelled.
const DefaultFinishTimeout = 30 * time.Second

// Source yields host events until io.EOF.
type Source interface {
	Next(ctx context.Context) (*types.HostEvent, error)
}

// SessionErrorKind classifies session errors.
type SessionErrorKind int

const (
	// SessionErrorStream indicates a broken or cancelled host stream.
	SessionErrorStream SessionErrorKind = iota
	// SessionErrorRemote indicates a failed transport call.
	SessionErrorRemote
)

// SessionError is the error returned by Session.Run.
type SessionError struct {
	Kind SessionErrorKind
	Err  error
}

func (e *SessionError) Error() string {
	return e.Err.Error()
}

func (e *SessionError) Unwrap() error {
	return e.Err
}

// IsStreamError returns true if the error is a host stream error.
func IsStreamError(err error) bool {
	var sessErr *SessionError
	return errors.As(err, &sessErr) && sessErr.Kind == SessionErrorStream
}

// IsRemoteError returns true if the error is a transport error.
func IsRemoteError(err error) bool {
	var sessErr *SessionError
	return errors.As(err, &sessErr) && sessErr.Kind == SessionErrorRemote
}

// SessionConfig configures a reporting session.
type SessionConfig struct {
	// Client is the reporting transport. Required.
	Client reporting.Client
	// Source is the host event stream. Required.
	Source Source
	// Launch holds the configured launch attributes. Attributes announced by
	// the host on run_start only fill fields left empty here.
	Launch bridge.Launch
	// Format is the log message format.
	Format bridge.Format
	// Logger defaults to a no-op logger.
	Logger *log.Logger
	// Collector is optional; all Collector methods are nil-safe.
	Collector *metrics.Collector
	// Clock overrides time.Now for reported timestamps.
	Clock func() time.Time
	// FinishTimeout bounds the best-effort run end. Defaults to DefaultFinishTimeout.
	FinishTimeout time.Duration
}

// Result is the result of a session.
type Result struct {
	Outcome  Outcome
	Summary  bridge.Summary
	Duration time.Duration
	// Events is the number of host events read.
	Events int64
	// Dropped is the number of events that were skipped: undecodable
	// frames and log events without a suite.
	Dropped int64
}

// Session drives one launch from a host source into a bridge.
type Session struct {
	config *SessionConfig
	logger *log.Logger
	host   *HostState
	bridge *bridge.Bridge

	events  int64
	dropped int64
}

// NewSession creates a session. Returns an error if required fields are missing.
func NewSession(config *SessionConfig) (*Session, error) {
	if config.Client == nil {
		return nil, errors.New("session: client is required")
	}
	if config.Source == nil {
		return nil, errors.New("session: source is required")
	}
	logger := config.Logger
	if logger == nil {
		logger = log.NewNop()
	}
	return &Session{config: config, logger: logger, host: &HostState{}}, nil
}

// Run reads the source until run_end or EOF and reports every event.
// The result is always non-nil. The returned error is a *SessionError.
//
// Once the launch has started, the run is ended even when the stream
// breaks or ctx is cancelled, so that no remote item is left open.
func (s *Session) Run(ctx context.Context) (*Result, error) {
	start := time.Now()
	s.logger.Info("session started", nil)

	runErr := s.consume(ctx)

	if s.bridge != nil && s.bridge.State() == bridge.RunActive {
		if err := s.end(ctx); err != nil {
			if runErr == nil {
				runErr = &SessionError{Kind: SessionErrorRemote, Err: fmt.Errorf("end run: %w", err)}
			} else {
				s.logger.Warn("run end failed after earlier error", map[string]any{"error": err.Error()})
			}
		}
	}

	result := s.result(runErr, time.Since(start))
	s.logger.Info("session finished", map[string]any{
		"outcome":  result.Outcome.Status,
		"tests":    result.Summary.Tests,
		"failed":   result.Summary.Failed,
		"events":   result.Events,
		"dropped":  result.Dropped,
		"duration": result.Duration.String(),
	})
	if runErr != nil {
		return result, runErr
	}
	return result, nil
}

func (s *Session) consume(ctx context.Context) error {
	for {
		ev, err := s.config.Source.Next(ctx)
		if err == io.EOF {
			if s.bridge == nil {
				return &SessionError{Kind: SessionErrorStream, Err: errors.New("stream ended before run start")}
			}
			return nil
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return &SessionError{Kind: SessionErrorStream, Err: fmt.Errorf("input cancelled: %w", ctxErr)}
			}
			var frameErr *ipc.FrameError
			if errors.As(err, &frameErr) && !frameErr.IsFatal() {
				s.dropped++
				s.config.Collector.IncHostDecodeErrors()
				s.logger.Warn("skipping undecodable frame", map[string]any{"error": err.Error()})
				continue
			}
			return &SessionError{Kind: SessionErrorStream, Err: fmt.Errorf("read host stream: %w", err)}
		}

		s.events++
		s.config.Collector.IncHostEvent()

		switch ev.Kind {
		case types.HostRunStart:
			if s.bridge != nil {
				s.logger.Warn("ignoring repeated run start", nil)
				continue
			}
			if err := s.start(ctx, ev.Launch); err != nil {
				return err
			}
		case types.HostLog:
			if s.bridge == nil {
				if err := s.start(ctx, nil); err != nil {
					return err
				}
			}
			if err := s.log(ctx, ev); err != nil {
				return err
			}
		case types.HostRunEnd:
			if s.bridge == nil {
				return &SessionError{Kind: SessionErrorStream, Err: errors.New("run end before run start")}
			}
			return nil
		default:
			s.dropped++
			s.config.Collector.IncHostEventDropped()
			s.logger.Warn("ignoring unknown host event", map[string]any{"kind": string(ev.Kind)})
		}
	}
}

func (s *Session) start(ctx context.Context, announced *types.LaunchInfo) error {
	launch := mergeLaunch(s.config.Launch, announced)

	opts := []bridge.Option{
		bridge.WithLogger(s.logger),
		bridge.WithCollector(s.config.Collector),
		bridge.WithFormat(s.config.Format),
	}
	if s.config.Clock != nil {
		opts = append(opts, bridge.WithClock(s.config.Clock))
	}
	b := bridge.New(s.config.Client, s.host, launch, opts...)

	if err := b.OnRunStart(ctx); err != nil {
		return &SessionError{Kind: SessionErrorRemote, Err: fmt.Errorf("start run: %w", err)}
	}
	s.bridge = b
	return nil
}

func (s *Session) log(ctx context.Context, ev *types.HostEvent) error {
	if ev.Log == nil {
		s.dropped++
		s.config.Collector.IncHostEventDropped()
		return nil
	}
	s.host.Set(ev.Suite, ev.Test)

	err := s.bridge.OnLogEvent(ctx, ev.Log)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, bridge.ErrNoSuite):
		s.dropped++
		s.config.Collector.IncHostEventDropped()
		s.logger.Warn("dropping log event without suite", map[string]any{
			"category": ev.Log.Category,
			"level":    ev.Log.Level,
		})
		return nil
	case ctx.Err() != nil:
		return &SessionError{Kind: SessionErrorStream, Err: fmt.Errorf("input cancelled: %w", ctx.Err())}
	default:
		return &SessionError{Kind: SessionErrorRemote, Err: fmt.Errorf("report log event: %w", err)}
	}
}

func (s *Session) end(ctx context.Context) error {
	timeout := s.config.FinishTimeout
	if timeout <= 0 {
		timeout = DefaultFinishTimeout
	}
	endCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()
	return s.bridge.OnRunEnd(endCtx)
}

func (s *Session) result(runErr error, duration time.Duration) *Result {
	result := &Result{
		Duration: duration,
		Events:   s.events,
		Dropped:  s.dropped,
	}
	if s.bridge != nil {
		result.Summary = s.bridge.Summary()
	} else {
		result.Summary = bridge.Summary{Launch: s.config.Launch.Name, State: bridge.RunNotStarted.String()}
	}

	var sessErr *SessionError
	switch {
	case errors.As(runErr, &sessErr) && sessErr.Kind == SessionErrorRemote:
		result.Outcome = Outcome{Status: OutcomeRemoteError, Message: runErr.Error()}
	case runErr != nil:
		result.Outcome = Outcome{Status: OutcomeStreamError, Message: runErr.Error()}
	case result.Summary.Failed > 0:
		result.Outcome = Outcome{
			Status:  OutcomeFailed,
			Message: fmt.Sprintf("%d of %d tests failed", result.Summary.Failed, result.Summary.Tests),
		}
	default:
		result.Outcome = Outcome{
			Status:  OutcomePassed,
			Message: fmt.Sprintf("%d tests passed", result.Summary.Passed),
		}
	}
	return result
}

// mergeLaunch fills empty configured fields from the host announcement.
// Announced attributes are appended after configured ones.
func mergeLaunch(configured bridge.Launch, announced *types.LaunchInfo) bridge.Launch {
	if announced == nil {
		return configured
	}
	out := configured
	if out.Name == "" {
		out.Name = announced.Name
	}
	if out.Description == "" {
		out.Description = announced.Description
	}
	if out.Mode == "" {
		out.Mode = announced.Mode
	}
	if len(announced.Attributes) > 0 {
		out.Attributes = append(append([]types.Attribute(nil), configured.Attributes...), announced.Attributes...)
	}
	return out
}
