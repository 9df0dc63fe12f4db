// Package notify publishes a run-finished event to downstream systems once a
// reporting session ends.
//
// Notifications are best effort: a failed publish is logged by the caller
// and never changes the run's exit code.
package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pithecene-io/rpbridge/runtime"
	"github.com/pithecene-io/rpbridge/types"
)

// EventTypeRunFinished is the event_type of every published event.
const EventTypeRunFinished = "run_finished"

// Retry defaults shared by the notifiers.
const (
	DefaultRetries = 3
	DefaultBackoff = 500 * time.Millisecond
)

// RunFinishedEvent is the payload published when a run finishes.
type RunFinishedEvent struct {
	ContractVersion string `json:"contract_version"`
	EventType       string `json:"event_type"`
	Launch          string `json:"launch"`
	LaunchID        string `json:"launch_id,omitempty"`
	Project         string `json:"project,omitempty"`
	Transport       string `json:"transport"`
	Outcome         string `json:"outcome"`
	Message         string `json:"message"`
	ExitCode        int    `json:"exit_code"`
	Tests           int    `json:"tests"`
	Passed          int    `json:"passed"`
	Failed          int    `json:"failed"`
	Events          int64  `json:"events"`
	DurationMs      int64  `json:"duration_ms"`
	Timestamp       string `json:"timestamp"` // RFC 3339
}

// NewRunFinishedEvent builds the event for a finished run.
func NewRunFinishedEvent(report *runtime.RunReport, project string, at time.Time) *RunFinishedEvent {
	ev := &RunFinishedEvent{
		ContractVersion: types.ContractVersion,
		EventType:       EventTypeRunFinished,
		Launch:          report.Launch,
		LaunchID:        report.LaunchID,
		Project:         project,
		Transport:       report.Transport,
		Outcome:         string(report.Outcome),
		Message:         report.Message,
		ExitCode:        report.ExitCode,
		Events:          report.Events,
		DurationMs:      report.DurationMs,
		Timestamp:       at.UTC().Format(time.RFC3339),
	}
	if report.Tests != nil {
		ev.Tests = report.Tests.Total
		ev.Passed = report.Tests.Passed
		ev.Failed = report.Tests.Failed
	}
	return ev
}

// Notifier publishes run-finished events to one downstream system.
type Notifier interface {
	// Publish sends the event. Must respect context cancellation.
	Publish(ctx context.Context, event *RunFinishedEvent) error

	// Close releases notifier resources.
	Close() error
}

// PublishAll sends the event to every notifier and joins their errors.
func PublishAll(ctx context.Context, notifiers []Notifier, event *RunFinishedEvent) error {
	var errs []error
	for _, n := range notifiers {
		if err := n.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// CloseAll closes every notifier and joins their errors.
func CloseAll(notifiers []Notifier) error {
	var errs []error
	for _, n := range notifiers {
		if err := n.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Permanent marks an error that must not be retried.
type Permanent struct {
	Err error
}

func (e *Permanent) Error() string { return e.Err.Error() }

func (e *Permanent) Unwrap() error { return e.Err }

// Retry calls fn up to 1+retries times, doubling backoff between attempts.
// A *Permanent error stops immediately.
func Retry(ctx context.Context, retries int, backoff time.Duration, fn func(context.Context) error) error {
	var lastErr error
	attempts := 1 + retries

	for i := range attempts {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("context canceled: %w", err)
		}

		if i > 0 {
			wait := time.Duration(1<<uint(i-1)) * backoff
			select {
			case <-ctx.Done():
				return fmt.Errorf("context canceled during backoff: %w", ctx.Err())
			case <-time.After(wait):
			}
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}

		var perm *Permanent
		if errors.As(lastErr, &perm) {
			return fmt.Errorf("non-retriable error: %w", perm.Err)
		}
	}

	return fmt.Errorf("failed after %d attempts: %w", attempts, lastErr)
}
