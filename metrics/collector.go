// Package metrics provides per-launch metrics collection.
//
// The Collector accumulates counters during a single reporting session. It is
// a leaf package with no internal dependencies; the Prometheus exporter in
// prometheus.go reads Snapshot values and never touches the counters directly.
package metrics

import "sync"

// Snapshot is an immutable point-in-time view of all session metrics.
// Returned by Collector.Snapshot(). Safe to read concurrently after creation.
type Snapshot struct {
	// Launch lifecycle
	LaunchesStarted  int64 `json:"launches_started"`
	LaunchesFinished int64 `json:"launches_finished"`

	// Items
	SuitesStarted  int64 `json:"suites_started"`
	SuitesFinished int64 `json:"suites_finished"`
	TestsStarted   int64 `json:"tests_started"`
	TestsFinished  int64 `json:"tests_finished"`
	TestsPassed    int64 `json:"tests_passed"`
	TestsFailed    int64 `json:"tests_failed"`

	// Duplicate finishes swallowed by the bridge
	DuplicateFinishes int64 `json:"duplicate_finishes"`

	// Log entries
	LogEntries      int64 `json:"log_entries"`
	Attachments     int64 `json:"attachments"`
	MetadataEntries int64 `json:"metadata_entries"`

	// Transport (per call, not per record)
	RemoteCallSuccess int64 `json:"remote_call_success"`
	RemoteCallFailure int64 `json:"remote_call_failure"`

	// Host stream
	HostEvents        int64 `json:"host_events"`
	HostDecodeErrors  int64 `json:"host_decode_errors"`
	HostEventsDropped int64 `json:"host_events_dropped"`

	// Dimensions (informational)
	Transport string `json:"transport"`
	Project   string `json:"project,omitempty"`
	Launch    string `json:"launch"`
	LaunchID  string `json:"launch_id,omitempty"`
}

// Collector accumulates metrics during a single session.
// Thread-safe via sync.Mutex. All methods are nil-receiver safe.
type Collector struct {
	mu sync.Mutex

	launchesStarted  int64
	launchesFinished int64

	suitesStarted     int64
	suitesFinished    int64
	testsStarted      int64
	testsFinished     int64
	testsPassed       int64
	testsFailed       int64
	duplicateFinishes int64

	logEntries      int64
	attachments     int64
	metadataEntries int64

	remoteCallSuccess int64
	remoteCallFailure int64

	hostEvents        int64
	hostDecodeErrors  int64
	hostEventsDropped int64

	// Dimensions
	transport string
	project   string
	launch    string
	launchID  string
}

// NewCollector creates a Collector with dimension labels.
// transport and launch are required; project is empty for transports
// that have no project concept.
func NewCollector(transport, project, launch string) *Collector {
	return &Collector{
		transport: transport,
		project:   project,
		launch:    launch,
	}
}

func (c *Collector) add(counter *int64, n int64) {
	c.mu.Lock()
	*counter += n
	c.mu.Unlock()
}

// --- Launch lifecycle ---

// IncLaunchStarted records a launch start and its remote ID.
func (c *Collector) IncLaunchStarted(launchID string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.launchesStarted++
	c.launchID = launchID
	c.mu.Unlock()
}

// IncLaunchFinished records a launch finish.
func (c *Collector) IncLaunchFinished() {
	if c == nil {
		return
	}
	c.add(&c.launchesFinished, 1)
}

// --- Items ---

// IncSuiteStarted records a suite item start.
func (c *Collector) IncSuiteStarted() {
	if c == nil {
		return
	}
	c.add(&c.suitesStarted, 1)
}

// IncSuiteFinished records a suite item finish.
func (c *Collector) IncSuiteFinished() {
	if c == nil {
		return
	}
	c.add(&c.suitesFinished, 1)
}

// IncTestStarted records a test item start.
func (c *Collector) IncTestStarted() {
	if c == nil {
		return
	}
	c.add(&c.testsStarted, 1)
}

// IncTestFinished records a test item finish with its outcome.
func (c *Collector) IncTestFinished(passed bool) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.testsFinished++
	if passed {
		c.testsPassed++
	} else {
		c.testsFailed++
	}
	c.mu.Unlock()
}

// IncDuplicateFinish records a finish rejected as already finished.
func (c *Collector) IncDuplicateFinish() {
	if c == nil {
		return
	}
	c.add(&c.duplicateFinishes, 1)
}

// --- Log entries ---

// IncLogEntry records one log entry sent to the transport.
func (c *Collector) IncLogEntry() {
	if c == nil {
		return
	}
	c.add(&c.logEntries, 1)
}

// IncAttachment records one attachment sent with a log entry.
func (c *Collector) IncAttachment() {
	if c == nil {
		return
	}
	c.add(&c.attachments, 1)
}

// AddMetadataEntries records n metadata pairs rendered into log entries.
func (c *Collector) AddMetadataEntries(n int) {
	if c == nil || n <= 0 {
		return
	}
	c.add(&c.metadataEntries, int64(n))
}

// --- Transport ---
// Transport counters are per call. A log entry with metadata is two
// AddLog calls and therefore two successes.

// IncRemoteCallSuccess records a successful transport call.
func (c *Collector) IncRemoteCallSuccess() {
	if c == nil {
		return
	}
	c.add(&c.remoteCallSuccess, 1)
}

// IncRemoteCallFailure records a failed transport call.
func (c *Collector) IncRemoteCallFailure() {
	if c == nil {
		return
	}
	c.add(&c.remoteCallFailure, 1)
}

// --- Host stream ---

// IncHostEvent records one event read from the host source.
func (c *Collector) IncHostEvent() {
	if c == nil {
		return
	}
	c.add(&c.hostEvents, 1)
}

// IncHostDecodeErrors records a host stream decode error.
func (c *Collector) IncHostDecodeErrors() {
	if c == nil {
		return
	}
	c.add(&c.hostDecodeErrors, 1)
}

// IncHostEventDropped records a host event that could not be routed.
func (c *Collector) IncHostEventDropped() {
	if c == nil {
		return
	}
	c.add(&c.hostEventsDropped, 1)
}

// --- Snapshot ---

// Snapshot returns an immutable point-in-time view of all metrics.
// The returned Snapshot is safe to read concurrently; the Collector can
// continue to be mutated independently.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	return Snapshot{
		LaunchesStarted:  c.launchesStarted,
		LaunchesFinished: c.launchesFinished,

		SuitesStarted:     c.suitesStarted,
		SuitesFinished:    c.suitesFinished,
		TestsStarted:      c.testsStarted,
		TestsFinished:     c.testsFinished,
		TestsPassed:       c.testsPassed,
		TestsFailed:       c.testsFailed,
		DuplicateFinishes: c.duplicateFinishes,

		LogEntries:      c.logEntries,
		Attachments:     c.attachments,
		MetadataEntries: c.metadataEntries,

		RemoteCallSuccess: c.remoteCallSuccess,
		RemoteCallFailure: c.remoteCallFailure,

		HostEvents:        c.hostEvents,
		HostDecodeErrors:  c.hostDecodeErrors,
		HostEventsDropped: c.hostEventsDropped,

		Transport: c.transport,
		Project:   c.project,
		Launch:    c.launch,
		LaunchID:  c.launchID,
	}
}
