package execution

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/KNIGHTPROJEKS-0/LANCELOTT/internal/types"
)

// ExecutionStatus represents the lifecycle state of a single supervised
// process run.
type ExecutionStatus string

const (
	// StatusQueued means the request was accepted but the process has not
	// started yet.
	StatusQueued ExecutionStatus = "queued"
	// StatusRunning means the process is alive.
	StatusRunning ExecutionStatus = "running"
	// StatusCompleted means the process exited with code zero.
	StatusCompleted ExecutionStatus = "completed"
	// StatusFailed means the process exited non-zero or could not be
	// spawned at all.
	StatusFailed ExecutionStatus = "failed"
	// StatusTimedOut means the run exceeded its deadline and was
	// terminated by the engine.
	StatusTimedOut ExecutionStatus = "timed_out"
	// StatusCancelled means a caller requested termination before the
	// process finished on its own.
	StatusCancelled ExecutionStatus = "cancelled"
)

// String returns the string representation of the execution status.
func (s ExecutionStatus) String() string {
	return string(s)
}

// IsValid checks if the execution status is valid.
func (s ExecutionStatus) IsValid() bool {
	switch s {
	case StatusQueued, StatusRunning, StatusCompleted, StatusFailed, StatusTimedOut, StatusCancelled:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether the status is final. Terminal records never
// change again.
func (s ExecutionStatus) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusTimedOut, StatusCancelled:
		return true
	default:
		return false
	}
}

// MarshalJSON implements json.Marshaler.
func (s ExecutionStatus) MarshalJSON() ([]byte, error) {
	if !s.IsValid() {
		return nil, fmt.Errorf("invalid execution status: %s", string(s))
	}
	return json.Marshal(string(s))
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *ExecutionStatus) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	status := ExecutionStatus(str)
	if !status.IsValid() {
		return fmt.Errorf("invalid execution status: %s", str)
	}
	*s = status
	return nil
}

// AllExecutionStatuses returns all valid execution statuses.
func AllExecutionStatuses() []ExecutionStatus {
	return []ExecutionStatus{
		StatusQueued,
		StatusRunning,
		StatusCompleted,
		StatusFailed,
		StatusTimedOut,
		StatusCancelled,
	}
}

// ExecutionRecord is the observable outcome of one process run. The engine
// hands out value snapshots; a record whose Status is terminal is immutable.
type ExecutionRecord struct {
	ExecutionID types.ID        `json:"execution_id"`
	ToolName    string          `json:"tool_name"`
	Command     []string        `json:"command"`
	WorkDir     string          `json:"work_dir,omitempty"`
	Status      ExecutionStatus `json:"status"`
	PID         int             `json:"pid,omitempty"`
	StartedAt   time.Time       `json:"started_at,omitempty"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
	ExitCode    int             `json:"exit_code"`
	StdoutTail  string          `json:"stdout_tail,omitempty"`
	StderrTail  string          `json:"stderr_tail,omitempty"`
	Error       string          `json:"error,omitempty"`
}

// Duration returns the wall-clock time the process ran, or zero if it never
// started or is still running.
func (r ExecutionRecord) Duration() time.Duration {
	if r.StartedAt.IsZero() || r.CompletedAt == nil {
		return 0
	}
	return r.CompletedAt.Sub(r.StartedAt)
}

// Succeeded reports whether the run finished on its own with exit code zero.
func (r ExecutionRecord) Succeeded() bool {
	return r.Status == StatusCompleted
}

// Clone returns a deep copy of the record.
func (r ExecutionRecord) Clone() ExecutionRecord {
	out := r
	if r.Command != nil {
		out.Command = append([]string(nil), r.Command...)
	}
	if r.CompletedAt != nil {
		t := *r.CompletedAt
		out.CompletedAt = &t
	}
	return out
}
