package bridge

// Summary counts what a Bridge has reported.
type Summary struct {
	Launch   string `json:"launch"`
	LaunchID string `json:"launch_id,omitempty"`
	State    string `json:"state"`

	Suites int `json:"suites"`
	Tests  int `json:"tests"`
	Passed int `json:"passed"`
	Failed int `json:"failed"`
	Logs   int `json:"logs"`

	OpenSuites int `json:"open_suites"`
	OpenTests  int `json:"open_tests"`
}

// AllPassed reports whether every finished test passed.
func (s Summary) AllPassed() bool {
	return s.Failed == 0
}
