package health

import (
	"encoding/json"
	"fmt"
	"time"
)

// HealthLevel represents the probed health of a tool.
type HealthLevel string

const (
	// HealthUnknown means the tool has not produced a health signal yet.
	HealthUnknown HealthLevel = "unknown"

	// HealthHealthy means the last probe succeeded.
	HealthHealthy HealthLevel = "healthy"

	// HealthUnhealthy means probes kept failing past the threshold.
	HealthUnhealthy HealthLevel = "unhealthy"
)

// String returns the string representation of the health level.
func (l HealthLevel) String() string {
	return string(l)
}

// IsValid checks if the health level is valid.
func (l HealthLevel) IsValid() bool {
	switch l {
	case HealthUnknown, HealthHealthy, HealthUnhealthy:
		return true
	default:
		return false
	}
}

// MarshalJSON implements json.Marshaler.
func (l HealthLevel) MarshalJSON() ([]byte, error) {
	if !l.IsValid() {
		return nil, fmt.Errorf("invalid health level: %s", string(l))
	}
	return json.Marshal(string(l))
}

// UnmarshalJSON implements json.Unmarshaler.
func (l *HealthLevel) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	level := HealthLevel(str)
	if !level.IsValid() {
		return fmt.Errorf("invalid health level: %s", str)
	}
	*l = level
	return nil
}

// AllHealthLevels returns all valid health levels.
func AllHealthLevels() []HealthLevel {
	return []HealthLevel{HealthUnknown, HealthHealthy, HealthUnhealthy}
}

// HealthState is the monitor's view of one tool. An unknown state never
// blocks anything; it only means no probe has produced a signal yet.
type HealthState struct {
	ToolName            string      `json:"tool_name"`
	Level               HealthLevel `json:"level"`
	LastCheckedAt       time.Time   `json:"last_checked_at,omitempty"`
	ConsecutiveFailures int         `json:"consecutive_failures"`
	Detail              string      `json:"detail,omitempty"`
}

// Healthy reports whether the tool is affirmatively healthy.
func (s HealthState) Healthy() bool {
	return s.Level == HealthHealthy
}

// Blocking reports whether the state should count against aggregate
// readiness. Only a confirmed unhealthy state blocks.
func (s HealthState) Blocking() bool {
	return s.Level == HealthUnhealthy
}
