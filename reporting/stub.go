package reporting

import (
	"context"
	"fmt"
	"sync"
)

// Op names a Client method in a recorded Call.
type Op string

// Recorded operations.
const (
	OpStartLaunch  Op = "start_launch"
	OpFinishLaunch Op = "finish_launch"
	OpStartItem    Op = "start_item"
	OpFinishItem   Op = "finish_item"
	OpAddLog       Op = "add_log"
	OpSync         Op = "sync"
)

// Call is one recorded StubClient invocation.
// Exactly one of the request fields is set, matching Op.
type Call struct {
	Op       Op
	LaunchID string
	ParentID string
	ItemID   string

	StartLaunch  *StartLaunchRequest
	FinishLaunch *FinishLaunchRequest
	StartItem    *StartItemRequest
	FinishItem   *FinishItemRequest
	Log          *LogRequest
}

// StubClient is an in-memory Client that records every call.
// IDs are sequential ("launch-1", "item-1", ...). Finishing an item twice
// returns ErrAlreadyFinished, like the real service.
//
// Used by tests and by dry runs (transport type "stub").
type StubClient struct {
	mu       sync.Mutex
	calls    []Call
	launches int
	items    int
	names    map[string]string
	finished map[string]bool
	failures map[Op]error
	closed   bool
}

// NewStubClient creates an empty StubClient.
func NewStubClient() *StubClient {
	return &StubClient{
		names:    make(map[string]string),
		finished: make(map[string]bool),
		failures: make(map[Op]error),
	}
}

// FailOn makes every subsequent call of op return err.
// A nil err clears the failure.
func (s *StubClient) FailOn(op Op, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failures, op)
		return
	}
	s.failures[op] = err
}

// Calls returns a copy of all recorded calls in order.
func (s *StubClient) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Call, len(s.calls))
	copy(out, s.calls)
	return out
}

// CallsOf returns the recorded calls of one operation, in order.
func (s *StubClient) CallsOf(op Op) []Call {
	var out []Call
	for _, c := range s.Calls() {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

// ItemName returns the name an item was started with.
func (s *StubClient) ItemName(itemID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.names[itemID]
}

// Closed reports whether Close was called.
func (s *StubClient) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *StubClient) record(c Call) error {
	s.calls = append(s.calls, c)
	return s.failures[c.Op]
}

// StartLaunch implements Client.
func (s *StubClient) StartLaunch(_ context.Context, req *StartLaunchRequest) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record(Call{Op: OpStartLaunch, StartLaunch: req}); err != nil {
		return "", err
	}
	s.launches++
	return fmt.Sprintf("launch-%d", s.launches), nil
}

// FinishLaunch implements Client.
func (s *StubClient) FinishLaunch(_ context.Context, launchID string, req *FinishLaunchRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.record(Call{Op: OpFinishLaunch, LaunchID: launchID, FinishLaunch: req})
}

// StartItem implements Client.
func (s *StubClient) StartItem(_ context.Context, launchID, parentID string, req *StartItemRequest) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record(Call{Op: OpStartItem, LaunchID: launchID, ParentID: parentID, StartItem: req}); err != nil {
		return "", err
	}
	s.items++
	id := fmt.Sprintf("item-%d", s.items)
	s.names[id] = req.Name
	return id, nil
}

// FinishItem implements Client.
func (s *StubClient) FinishItem(_ context.Context, launchID, itemID string, req *FinishItemRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record(Call{Op: OpFinishItem, LaunchID: launchID, ItemID: itemID, FinishItem: req}); err != nil {
		return err
	}
	if s.finished[itemID] {
		return fmt.Errorf("item %s: %w", itemID, ErrAlreadyFinished)
	}
	s.finished[itemID] = true
	return nil
}

// AddLog implements Client.
func (s *StubClient) AddLog(_ context.Context, launchID, itemID string, req *LogRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.record(Call{Op: OpAddLog, LaunchID: launchID, ItemID: itemID, Log: req})
}

// Sync implements Client.
func (s *StubClient) Sync(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.record(Call{Op: OpSync})
}

// Close implements Client.
func (s *StubClient) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

var _ Client = (*StubClient)(nil)
