package notify

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/pithecene-io/rpbridge/runtime"
	"github.com/pithecene-io/rpbridge/types"
)

type fakeNotifier struct {
	err       error
	published []*RunFinishedEvent
	closed    bool
}

func (f *fakeNotifier) Publish(_ context.Context, ev *RunFinishedEvent) error {
	f.published = append(f.published, ev)
	return f.err
}

func (f *fakeNotifier) Close() error {
	f.closed = true
	return f.err
}

func TestNewRunFinishedEvent(t *testing.T) {
	report := &runtime.RunReport{
		Launch:     "nightly",
		LaunchID:   "launch-1",
		Transport:  "portal",
		Outcome:    runtime.OutcomeFailed,
		Message:    "1 of 2 tests failed",
		ExitCode:   1,
		DurationMs: 1500,
		Events:     9,
		Tests:      &runtime.ReportTests{Total: 2, Passed: 1, Failed: 1},
	}
	at := time.Date(2026, 10, 15, 12, 0, 0, 0, time.FixedZone("CEST", 2*3600))

	ev := NewRunFinishedEvent(report, "shop", at)

	if ev.EventType != EventTypeRunFinished || ev.ContractVersion != types.ContractVersion {
		t.Errorf("unexpected envelope: %+v", ev)
	}
	if ev.Outcome != "failed" || ev.ExitCode != 1 || ev.Failed != 1 || ev.Tests != 2 {
		t.Errorf("unexpected result fields: %+v", ev)
	}
	if ev.Project != "shop" || ev.LaunchID != "launch-1" {
		t.Errorf("unexpected identity fields: %+v", ev)
	}
	if ev.Timestamp != "2026-10-15T10:00:00Z" {
		t.Errorf("Timestamp = %q, want UTC RFC 3339", ev.Timestamp)
	}
}

func TestNewRunFinishedEvent_NoTests(t *testing.T) {
	ev := NewRunFinishedEvent(&runtime.RunReport{Launch: "n"}, "", time.Now())
	if ev.Tests != 0 || ev.Passed != 0 {
		t.Errorf("expected zero counts, got %+v", ev)
	}
}

func TestPublishAll_JoinsErrors(t *testing.T) {
	ok := &fakeNotifier{}
	bad := &fakeNotifier{err: errors.New("down")}
	ev := &RunFinishedEvent{Launch: "n"}

	err := PublishAll(t.Context(), []Notifier{bad, ok}, ev)
	if err == nil || !strings.Contains(err.Error(), "down") {
		t.Fatalf("expected joined error, got %v", err)
	}
	if len(ok.published) != 1 {
		t.Error("later notifiers should still be called after a failure")
	}
}

func TestCloseAll(t *testing.T) {
	a, b := &fakeNotifier{}, &fakeNotifier{}
	if err := CloseAll([]Notifier{a, b}); err != nil {
		t.Fatalf("CloseAll: %v", err)
	}
	if !a.closed || !b.closed {
		t.Error("every notifier should be closed")
	}
}

func TestRetry_SucceedsAfterFailures(t *testing.T) {
	calls := 0
	err := Retry(t.Context(), 3, time.Millisecond, func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Retry: %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestRetry_Exhausted(t *testing.T) {
	calls := 0
	err := Retry(t.Context(), 2, time.Millisecond, func(context.Context) error {
		calls++
		return errors.New("transient")
	})
	if err == nil || !strings.Contains(err.Error(), "failed after 3 attempts") {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestRetry_PermanentStops(t *testing.T) {
	calls := 0
	cause := errors.New("bad request")
	err := Retry(t.Context(), 5, time.Millisecond, func(context.Context) error {
		calls++
		return &Permanent{Err: cause}
	})
	if !errors.Is(err, cause) {
		t.Fatalf("expected wrapped cause, got %v", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestRetry_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	calls := 0
	err := Retry(ctx, 3, time.Millisecond, func(context.Context) error {
		calls++
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if calls != 0 {
		t.Errorf("calls = %d, want 0", calls)
	}
}
