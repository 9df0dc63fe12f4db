package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pithecene-io/rpbridge/iox"
	"github.com/pithecene-io/rpbridge/notify"
)

func testEvent() *notify.RunFinishedEvent {
	return &notify.RunFinishedEvent{
		ContractVersion: "1.0",
		EventType:       notify.EventTypeRunFinished,
		Launch:          "nightly",
		LaunchID:        "launch-1",
		Transport:       "portal",
		Outcome:         "passed",
		Tests:           4,
		Passed:          4,
		DurationMs:      1500,
		Timestamp:       "2026-10-15T12:00:00Z",
	}
}

// newNotifier uses a short backoff so retry tests stay fast.
func newNotifier(t *testing.T, cfg Config) *Notifier {
	t.Helper()
	cfg.Backoff = time.Millisecond
	n, err := New(cfg)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	t.Cleanup(func() { iox.DiscardClose(n) })
	return n
}

func TestPublish_Success(t *testing.T) {
	var received notify.RunFinishedEvent
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("expected application/json, got %s", ct)
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &received); err != nil {
			t.Errorf("unmarshal: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer ts.Close()

	n := newNotifier(t, Config{URL: ts.URL})
	if err := n.Publish(t.Context(), testEvent()); err != nil {
		t.Fatalf("publish: %v", err)
	}

	if received.LaunchID != "launch-1" || received.EventType != "run_finished" || received.Passed != 4 {
		t.Errorf("unexpected payload: %+v", received)
	}
}

func TestPublish_CustomHeaders(t *testing.T) {
	var auth string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	n := newNotifier(t, Config{URL: ts.URL, Headers: map[string]string{"Authorization": "Bearer hook"}})
	if err := n.Publish(t.Context(), testEvent()); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if auth != "Bearer hook" {
		t.Errorf("Authorization = %q", auth)
	}
}

func TestPublish_StatusHandling(t *testing.T) {
	tests := []struct {
		name         string
		failures     int32 // responses with code before a 200
		code         int
		retries      int
		wantErr      bool
		wantAttempts int32
	}{
		{"recovers from 500", 2, http.StatusInternalServerError, 3, false, 3},
		{"exhausts on 503", 10, http.StatusServiceUnavailable, 2, true, 3},
		{"400 is not retried", 10, http.StatusBadRequest, 3, true, 1},
		{"401 is not retried", 10, http.StatusUnauthorized, 3, true, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var attempts atomic.Int32
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				if attempts.Add(1) <= tt.failures {
					w.WriteHeader(tt.code)
					return
				}
				w.WriteHeader(http.StatusOK)
			}))
			defer ts.Close()

			n := newNotifier(t, Config{URL: ts.URL, Retries: tt.retries})
			err := n.Publish(t.Context(), testEvent())

			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got := attempts.Load(); got != tt.wantAttempts {
				t.Errorf("attempts = %d, want %d", got, tt.wantAttempts)
			}
			if tt.wantErr {
				var statusErr *StatusError
				if !errors.As(err, &statusErr) || statusErr.Code != tt.code {
					t.Errorf("expected StatusError %d, got %v", tt.code, err)
				}
			}
		})
	}
}

func TestPublish_ContextCanceled(t *testing.T) {
	release := make(chan struct{})
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		<-release
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()
	defer close(release)

	n := newNotifier(t, Config{URL: ts.URL})
	ctx, cancel := context.WithTimeout(t.Context(), 50*time.Millisecond)
	defer cancel()

	if err := n.Publish(ctx, testEvent()); err == nil {
		t.Fatal("expected error on canceled context")
	}
}

func TestNew(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Error("expected error for empty URL")
	}
	if _, err := New(Config{URL: "http://example.com", Retries: -1}); err == nil {
		t.Error("expected error for negative retries")
	}

	n, err := New(Config{URL: "http://example.com"})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if n.config.Timeout != DefaultTimeout || n.config.Backoff != notify.DefaultBackoff {
		t.Errorf("defaults not applied: %+v", n.config)
	}
}
