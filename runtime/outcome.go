package runtime

// OutcomeStatus classifies how a session ended.
type OutcomeStatus string

// Session outcomes.
const (
	// OutcomePassed: the launch was reported and no test failed.
	OutcomePassed OutcomeStatus = "passed"
	// OutcomeFailed: the launch was reported and at least one test failed.
	OutcomeFailed OutcomeStatus = "failed"
	// OutcomeRemoteError: a transport call failed.
	OutcomeRemoteError OutcomeStatus = "remote_error"
	// OutcomeStreamError: the host stream was broken or cancelled.
	OutcomeStreamError OutcomeStatus = "stream_error"
)

// Process exit codes for the run command.
const (
	ExitCodePassed      = 0
	ExitCodeTestsFailed = 1
	ExitCodeRunError    = 2
	ExitCodeConfigError = 3
)

// Outcome is the final status of a session with a human-readable message.
type Outcome struct {
	Status  OutcomeStatus `json:"status"`
	Message string        `json:"message"`
}

// ExitCode maps the outcome to a process exit code.
func (o Outcome) ExitCode() int {
	switch o.Status {
	case OutcomePassed:
		return ExitCodePassed
	case OutcomeFailed:
		return ExitCodeTestsFailed
	default:
		return ExitCodeRunError
	}
}
