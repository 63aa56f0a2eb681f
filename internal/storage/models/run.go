package models

import "time"

// Run records one backend process lifetime
type Run struct {
	ID          string     `json:"id"`
	ProfileName string     `json:"profile_name"`
	Server      string     `json:"server"`
	BackendType string     `json:"backend_type"`
	BackendPath string     `json:"backend_path"`
	PID         int        `json:"pid"`
	StartedAt   time.Time  `json:"started_at"`
	StoppedAt   *time.Time `json:"stopped_at,omitempty"`
	ExitCode    *int       `json:"exit_code,omitempty"`
	Requested   bool       `json:"requested"` // false when the backend exited on its own
	Error       string     `json:"error,omitempty"`
}

// Running reports whether the run has no recorded stop yet.
func (r *Run) Running() bool {
	return r.StoppedAt == nil
}
