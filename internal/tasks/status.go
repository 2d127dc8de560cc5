package tasks

import "strings"

// Status is the outcome of the most recent run.
type Status string

const (
	StatusSuccess Status = "success"
	StatusRunning Status = "running"
	StatusFailed  Status = "failed"
	StatusUnknown Status = "unknown"
)

// ParseStatus maps s to a Status. Anything unrecognised is StatusUnknown.
func ParseStatus(s string) Status {
	switch Status(strings.ToLower(strings.TrimSpace(s))) {
	case StatusSuccess:
		return StatusSuccess
	case StatusRunning:
		return StatusRunning
	case StatusFailed:
		return StatusFailed
	default:
		return StatusUnknown
	}
}

// Label renders the status for display.
func (s Status) Label() string {
	switch ParseStatus(string(s)) {
	case StatusSuccess:
		return "Success"
	case StatusRunning:
		return "Running"
	case StatusFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}
