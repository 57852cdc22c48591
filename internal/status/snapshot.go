// Package status assembles read-only, point-in-time views of the whole
// engine: registry contents, build outcomes, health levels, execution
// history, active port leases and scan jobs. Nothing in this package
// mutates the stores it reads from.
package status

import (
	"encoding/json"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/KNIGHTPROJEKS-0/LANCELOTT/internal/build"
	"github.com/KNIGHTPROJEKS-0/LANCELOTT/internal/execution"
	"github.com/KNIGHTPROJEKS-0/LANCELOTT/internal/health"
	"github.com/KNIGHTPROJEKS-0/LANCELOTT/internal/portalloc"
	"github.com/KNIGHTPROJEKS-0/LANCELOTT/internal/scan"
	"github.com/KNIGHTPROJEKS-0/LANCELOTT/internal/tool"
)

// ToolStatus is one tool's consolidated row: descriptor identity plus
// the latest build, health and execution observations.
type ToolStatus struct {
	Name            string                     `json:"name"`
	Enabled         bool                       `json:"enabled"`
	Optional        bool                       `json:"optional"`
	BuildType       tool.BuildType             `json:"build_type"`
	DefaultPort     int                        `json:"default_port,omitempty"`
	Build           build.BuildRecord          `json:"build"`
	Health          health.HealthState         `json:"health"`
	LatestExecution *execution.ExecutionRecord `json:"latest_execution,omitempty"`
}

// Runnable reports whether the tool could be launched right now: it is
// enabled and its build, if one is required, has succeeded.
func (t ToolStatus) Runnable() bool {
	return t.Enabled && t.Build.Status == build.BuildStatusBuilt
}

// Summary holds the aggregate counters rendered at the top of a status
// listing.
type Summary struct {
	ToolsTotal     int `json:"tools_total"`
	ToolsEnabled   int `json:"tools_enabled"`
	ToolsBuilt     int `json:"tools_built"`
	ToolsHealthy   int `json:"tools_healthy"`
	ToolsUnhealthy int `json:"tools_unhealthy"`
	JobsActive     int `json:"jobs_active"`
	JobsTotal      int `json:"jobs_total"`
	ActiveLeases   int `json:"active_leases"`
}

// Snapshot is an immutable point-in-time view of the engine. The
// structure is the contract; rendering it as JSON, YAML or a table is a
// presentation concern.
type Snapshot struct {
	GeneratedAt time.Time         `json:"generated_at"`
	Ready       bool              `json:"ready"`
	Summary     Summary           `json:"summary"`
	Tools       []ToolStatus      `json:"tools"`
	Jobs        []scan.ScanJob    `json:"jobs,omitempty"`
	Leases      []portalloc.Lease `json:"active_leases,omitempty"`
}

// Tool returns the row for the named tool.
func (s Snapshot) Tool(name string) (ToolStatus, bool) {
	for _, t := range s.Tools {
		if t.Name == name {
			return t, true
		}
	}
	return ToolStatus{}, false
}

// JSON renders the snapshot in its machine-readable form.
func (s Snapshot) JSON() ([]byte, error) {
	return json.MarshalIndent(s, "", "  ")
}

// YAML renders the snapshot for human consumption. The snapshot goes
// through its JSON form first so the YAML keys match the json struct
// tags instead of Go field names.
func (s Snapshot) YAML() ([]byte, error) {
	raw, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encoding snapshot: %w", err)
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decoding snapshot: %w", err)
	}
	return yaml.Marshal(doc)
}
