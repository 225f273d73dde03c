package types

// ProcessResult is the result of a completed marimo invocation.
type ProcessResult struct {
	ExitCode int    `json:"exitCode"`
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
}

// Message is the text to report for a failed run: stderr, or stdout when
// stderr is empty.
func (r *ProcessResult) Message() string {
	if r.Stderr != "" {
		return r.Stderr
	}
	return r.Stdout
}
