package types

// LogLevel is the remote service's fixed log level enumeration.
type LogLevel string

// Remote log levels.
const (
	LogLevelTrace   LogLevel = "Trace"
	LogLevelDebug   LogLevel = "Debug"
	LogLevelInfo    LogLevel = "Info"
	LogLevelWarning LogLevel = "Warning"
	LogLevelError   LogLevel = "Error"
	LogLevelFatal   LogLevel = "Fatal"
)

// LogLevels returns the remote levels in severity order.
func LogLevels() []LogLevel {
	return []LogLevel{
		LogLevelTrace,
		LogLevelDebug,
		LogLevelInfo,
		LogLevelWarning,
		LogLevelError,
		LogLevelFatal,
	}
}

// ItemType is the kind of a remote test item.
type ItemType string

// Item types.
const (
	ItemTypeSuite ItemType = "SUITE"
	ItemTypeTest  ItemType = "TEST"
)

// Status is the final status of a remote test item.
// The zero value leaves the status to the remote service.
type Status string

// Item statuses.
const (
	StatusPassed Status = "PASSED"
	StatusFailed Status = "FAILED"
)

// LaunchMode is the launch visibility mode on the remote service.
type LaunchMode string

// Launch modes.
const (
	LaunchModeDefault LaunchMode = "DEFAULT"
	LaunchModeDebug   LaunchMode = "DEBUG"
)

// Attribute is a key/value label attached to a launch.
type Attribute struct {
	Key   string `json:"key,omitempty" yaml:"key"`
	Value string `json:"value" yaml:"value"`
}
