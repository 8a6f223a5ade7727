package domain

import (
	"fmt"
	"time"
)

type RunStatus string

const (
	RunPending        RunStatus = "pending"
	RunRunning        RunStatus = "running"
	RunSuccess        RunStatus = "success"
	RunFailed         RunStatus = "failed"
	RunPartialSuccess RunStatus = "partial_success"
)

// Terminal reports whether a run in this status may no longer change.
func (s RunStatus) Terminal() bool {
	switch s {
	case RunSuccess, RunFailed, RunPartialSuccess:
		return true
	}
	return false
}

func ParseRunStatus(s string) (RunStatus, error) {
	switch RunStatus(s) {
	case RunPending, RunRunning, RunSuccess, RunFailed, RunPartialSuccess:
		return RunStatus(s), nil
	}
	return "", fmt.Errorf("unknown run status %q", s)
}

// IngestRun is the audit record of one pipeline invocation.
type IngestRun struct {
	ID          int64      `json:"id"`
	Source      string     `json:"source"`
	Keywords    string     `json:"keywords"`
	Location    *string    `json:"location"`
	StartedAt   time.Time  `json:"startedAt"`
	CompletedAt *time.Time `json:"completedAt"`
	Status      RunStatus  `json:"status"`

	JobsFound   int `json:"jobsFound"`
	JobsNew     int `json:"jobsNew"`
	JobsUpdated int `json:"jobsUpdated"`
	JobsDeduped int `json:"jobsDeduped"`

	ErrorMessage *string `json:"errorMessage"`
	ErrorDetail  *string `json:"errorDetail"`
	Metadata     *string `json:"metadata"` // JSON
}
