// Package status tracks the pass/fail state of the test currently being
// reported.
//
// State is derived from the host level name of each log event. The last
// event observed wins; a later "info" entry after a "failure" entry leaves
// the test passed.
package status

import (
	"strings"

	"github.com/pithecene-io/rpbridge/types"
)

// State is the observed state of the active test.
type State int

const (
	// Unset means no log event has been observed since the last reset.
	Unset State = iota
	// Passed means the last event had a non-failing level.
	Passed
	// Failed means the last event had level "failure".
	Failed
	// Errored means the last event had level "error".
	Errored
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case Passed:
		return "passed"
	case Failed:
		return "failed"
	case Errored:
		return "error"
	default:
		return "unset"
	}
}

// FromLevel classifies a host level name, ignoring case.
func FromLevel(level string) State {
	switch strings.ToLower(level) {
	case "failure":
		return Failed
	case "error":
		return Errored
	default:
		return Passed
	}
}

// Tracker holds the state of one test at a time.
// Not safe for concurrent use; the bridge serializes access.
type Tracker struct {
	state State
}

// Reset returns the tracker to Unset. Called on every test boundary.
func (t *Tracker) Reset() {
	t.state = Unset
}

// Observe records the state implied by a host level name, replacing
// whatever was observed before.
func (t *Tracker) Observe(level string) {
	t.state = FromLevel(level)
}

// State returns the current state.
func (t *Tracker) State() State {
	return t.state
}

// FinishStatus returns the remote status for the current state.
// Failed and Errored map to StatusFailed; Passed and Unset map to StatusPassed.
func (t *Tracker) FinishStatus() types.Status {
	switch t.state {
	case Failed, Errored:
		return types.StatusFailed
	default:
		return types.StatusPassed
	}
}
