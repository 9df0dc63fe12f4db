package runtime

import (
	"sync"

	"github.com/pithecene-io/rpbridge/bridge"
)

// HostState is the mutable host identity fed by a host source.
// It implements bridge.Host.
type HostState struct {
	mu    sync.RWMutex
	suite string
	test  string
}

var _ bridge.Host = (*HostState)(nil)

// Set replaces the current suite and test. An empty test means no test is
// active.
func (h *HostState) Set(suite, test string) {
	h.mu.Lock()
	h.suite, h.test = suite, test
	h.mu.Unlock()
}

// CurrentSuiteName implements bridge.Host.
func (h *HostState) CurrentSuiteName() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.suite
}

// CurrentTestName implements bridge.Host.
func (h *HostState) CurrentTestName() (string, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.test, h.test != ""
}
