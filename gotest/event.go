// Package gotest reads `go test -json` output as a host event stream.
//
// Each package is a suite and each top-level test is a test. Subtests fold
// into their parent so that a failing subtest fails the parent item.
package gotest

import (
	"encoding/json"
	"time"
)

// Test2JSON actions.
const (
	ActionStart       = "start"
	ActionRun         = "run"
	ActionPause       = "pause"
	ActionCont        = "cont"
	ActionOutput      = "output"
	ActionPass        = "pass"
	ActionFail        = "fail"
	ActionSkip        = "skip"
	ActionBench       = "bench"
	ActionBuildOutput = "build-output"
	ActionBuildFail   = "build-fail"
)

// TestEvent is a single event from `go test -json` output.
type TestEvent struct {
	Time       time.Time `json:"Time"`
	Action     string    `json:"Action"`
	Package    string    `json:"Package"`
	Test       string    `json:"Test,omitempty"`
	Output     string    `json:"Output,omitempty"`
	Elapsed    float64   `json:"Elapsed,omitempty"`
	ImportPath string    `json:"ImportPath,omitempty"`
}

// ParseEvent parses a single line of `go test -json` output.
// A line without an Action is not a test event.
func ParseEvent(line []byte) (TestEvent, bool) {
	var event TestEvent
	if err := json.Unmarshal(line, &event); err != nil || event.Action == "" {
		return TestEvent{}, false
	}
	return event, true
}
