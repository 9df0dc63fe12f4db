package types

// HostEventKind discriminates events produced by a host source.
type HostEventKind string

// Host event kinds.
const (
	HostRunStart HostEventKind = "run_start"
	HostLog      HostEventKind = "log"
	HostRunEnd   HostEventKind = "run_end"
)

// LaunchInfo carries launch attributes announced by the host.
// Empty fields defer to configuration.
type LaunchInfo struct {
	Name        string
	Description string
	Attributes  []Attribute
	Mode        LaunchMode
}

// HostEvent is one event pulled from a host source.
type HostEvent struct {
	Kind HostEventKind
	// Launch is set on run_start when the host announces launch attributes.
	Launch *LaunchInfo
	// Suite and Test identify the host's current containers for a log event.
	// An empty Test means no test is active.
	Suite string
	Test  string
	// Log is the log call for a log event.
	Log *LogEvent
}
