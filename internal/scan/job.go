package scan

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/KNIGHTPROJEKS-0/LANCELOTT/internal/execution"
	"github.com/KNIGHTPROJEKS-0/LANCELOTT/internal/types"
)

// JobStatus represents the lifecycle state of a scan job.
type JobStatus string

const (
	// JobPending means the job was accepted but no tool has launched yet.
	JobPending JobStatus = "pending"
	// JobRunning means at least one per-tool execution is in flight.
	JobRunning JobStatus = "running"
	// JobCompleted means every requested tool finished with exit code zero.
	JobCompleted JobStatus = "completed"
	// JobPartiallyFailed means at least one tool succeeded and at least one
	// did not. This is a legitimate outcome, not an error.
	JobPartiallyFailed JobStatus = "partially_failed"
	// JobFailed means every requested tool finished without success.
	JobFailed JobStatus = "failed"
	// JobCancelled means the caller cancelled the job before it finished.
	JobCancelled JobStatus = "cancelled"
)

// String returns the string representation of the job status.
func (s JobStatus) String() string {
	return string(s)
}

// IsValid checks if the job status is valid.
func (s JobStatus) IsValid() bool {
	switch s {
	case JobPending, JobRunning, JobCompleted, JobPartiallyFailed, JobFailed, JobCancelled:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether the status is a sink state.
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobCompleted, JobPartiallyFailed, JobFailed, JobCancelled:
		return true
	default:
		return false
	}
}

// MarshalJSON implements json.Marshaler.
func (s JobStatus) MarshalJSON() ([]byte, error) {
	if !s.IsValid() {
		return nil, fmt.Errorf("invalid job status: %s", string(s))
	}
	return json.Marshal(string(s))
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *JobStatus) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	status := JobStatus(str)
	if !status.IsValid() {
		return fmt.Errorf("invalid job status: %s", str)
	}
	*s = status
	return nil
}

// AllJobStatuses returns all valid job statuses.
func AllJobStatuses() []JobStatus {
	return []JobStatus{
		JobPending,
		JobRunning,
		JobCompleted,
		JobPartiallyFailed,
		JobFailed,
		JobCancelled,
	}
}

// ScanJob is a point-in-time summary of one scan. The orchestrator owns the
// live state; callers always receive value copies.
type ScanJob struct {
	JobID               types.ID                             `json:"job_id"`
	Target              string                               `json:"target"`
	RequestedTools      []string                             `json:"requested_tools"`
	PerToolExecutionIDs map[string]types.ID                  `json:"per_tool_execution_ids,omitempty"`
	Executions          map[string]execution.ExecutionRecord `json:"executions,omitempty"`
	Status              JobStatus                            `json:"status"`
	CreatedAt           time.Time                            `json:"created_at"`
	FinishedAt          *time.Time                           `json:"finished_at,omitempty"`
}

// Duration returns how long the job ran, or zero while it is still active.
func (j ScanJob) Duration() time.Duration {
	if j.FinishedAt == nil {
		return 0
	}
	return j.FinishedAt.Sub(j.CreatedAt)
}

// Succeeded reports whether every requested tool completed successfully.
func (j ScanJob) Succeeded() bool {
	return j.Status == JobCompleted
}

// computeTerminal derives the job's terminal status from its per-tool
// records. Cancellation intent wins the label even when some tools had
// already completed.
func computeTerminal(records map[string]execution.ExecutionRecord, cancelled bool) JobStatus {
	if cancelled {
		return JobCancelled
	}

	succeeded := 0
	for _, record := range records {
		if record.Succeeded() {
			succeeded++
		}
	}
	switch {
	case succeeded == len(records):
		return JobCompleted
	case succeeded == 0:
		return JobFailed
	default:
		return JobPartiallyFailed
	}
}
