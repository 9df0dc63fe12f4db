package status

import (
	"testing"

	"github.com/pithecene-io/rpbridge/types"
)

func TestFromLevel(t *testing.T) {
	tests := []struct {
		level string
		want  State
	}{
		{"Failure", Failed},
		{"failure", Failed},
		{"FAILURE", Failed},
		{"Error", Errored},
		{"error", Errored},
		{"info", Passed},
		{"Success", Passed},
		{"warn", Passed},
		{"", Passed},
	}

	for _, tt := range tests {
		if got := FromLevel(tt.level); got != tt.want {
			t.Errorf("FromLevel(%q) = %v, want %v", tt.level, got, tt.want)
		}
	}
}

func TestTracker_LastEventWins(t *testing.T) {
	tests := []struct {
		name   string
		levels []string
		want   types.Status
	}{
		{"no events", nil, types.StatusPassed},
		{"single info", []string{"info"}, types.StatusPassed},
		{"single failure", []string{"Failure"}, types.StatusFailed},
		{"single error", []string{"error"}, types.StatusFailed},
		{"failure then info", []string{"failure", "info"}, types.StatusPassed},
		{"info then failure", []string{"info", "failure"}, types.StatusFailed},
		{"error then warn", []string{"ERROR", "warn"}, types.StatusPassed},
		{"warn then error", []string{"warn", "Error"}, types.StatusFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var tr Tracker
			for _, l := range tt.levels {
				tr.Observe(l)
			}
			if got := tr.FinishStatus(); got != tt.want {
				t.Errorf("FinishStatus() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTracker_Reset(t *testing.T) {
	var tr Tracker
	tr.Observe("failure")
	if tr.State() != Failed {
		t.Fatalf("State() = %v, want failed", tr.State())
	}

	tr.Reset()
	if tr.State() != Unset {
		t.Errorf("State() after Reset = %v, want unset", tr.State())
	}
	if tr.FinishStatus() != types.StatusPassed {
		t.Errorf("FinishStatus() after Reset = %q, want PASSED", tr.FinishStatus())
	}
}

func TestState_String(t *testing.T) {
	want := map[State]string{Unset: "unset", Passed: "passed", Failed: "failed", Errored: "error"}
	for s, name := range want {
		if s.String() != name {
			t.Errorf("%d.String() = %q, want %q", s, s.String(), name)
		}
	}
}
