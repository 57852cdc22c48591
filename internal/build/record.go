package build

import (
	"encoding/json"
	"fmt"
	"time"
)

// BuildStatus represents the build state of a tool.
type BuildStatus string

const (
	// BuildStatusNotBuilt means no build has been attempted.
	BuildStatusNotBuilt BuildStatus = "not_built"
	// BuildStatusBuilding means a build is in flight.
	BuildStatusBuilding BuildStatus = "building"
	// BuildStatusBuilt means the last build succeeded.
	BuildStatusBuilt BuildStatus = "built"
	// BuildStatusFailed means the last build failed.
	BuildStatusFailed BuildStatus = "failed"
)

// String returns the string representation of the build status.
func (s BuildStatus) String() string {
	return string(s)
}

// IsValid checks if the build status is valid.
func (s BuildStatus) IsValid() bool {
	switch s {
	case BuildStatusNotBuilt, BuildStatusBuilding, BuildStatusBuilt, BuildStatusFailed:
		return true
	default:
		return false
	}
}

// MarshalJSON implements json.Marshaler.
func (s BuildStatus) MarshalJSON() ([]byte, error) {
	if !s.IsValid() {
		return nil, fmt.Errorf("invalid build status: %s", string(s))
	}
	return json.Marshal(string(s))
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *BuildStatus) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	status := BuildStatus(str)
	if !status.IsValid() {
		return fmt.Errorf("invalid build status: %s", str)
	}
	*s = status
	return nil
}

// AllBuildStatuses returns all valid build statuses.
func AllBuildStatuses() []BuildStatus {
	return []BuildStatus{
		BuildStatusNotBuilt,
		BuildStatusBuilding,
		BuildStatusBuilt,
		BuildStatusFailed,
	}
}

// BuildRecord is the observable build state of one tool. The manager is the
// only writer; callers receive value copies.
type BuildRecord struct {
	ToolName      string        `json:"tool_name"`
	Status        BuildStatus   `json:"status"`
	LastBuildTime *time.Time    `json:"last_build_time,omitempty"`
	Duration      time.Duration `json:"duration,omitempty"`
	LogTail       string        `json:"log_tail,omitempty"`
	ArtifactPath  string        `json:"artifact_path,omitempty"`
	Fingerprint   string        `json:"fingerprint,omitempty"`
	Error         string        `json:"error,omitempty"`
}

// Built reports whether the tool currently has a successful build.
func (r BuildRecord) Built() bool {
	return r.Status == BuildStatusBuilt
}
