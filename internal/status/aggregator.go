package status

import (
	"time"

	"github.com/KNIGHTPROJEKS-0/LANCELOTT/internal/build"
	"github.com/KNIGHTPROJEKS-0/LANCELOTT/internal/execution"
	"github.com/KNIGHTPROJEKS-0/LANCELOTT/internal/health"
	"github.com/KNIGHTPROJEKS-0/LANCELOTT/internal/portalloc"
	"github.com/KNIGHTPROJEKS-0/LANCELOTT/internal/scan"
	"github.com/KNIGHTPROJEKS-0/LANCELOTT/internal/tool"
)

// Aggregator produces consolidated snapshots of the engine state.
type Aggregator interface {
	// Snapshot returns a point-in-time view across every component.
	Snapshot() Snapshot

	// ToolStatus returns the consolidated row for a single tool.
	ToolStatus(name string) (ToolStatus, error)
}

// DefaultAggregator assembles snapshots from the live components. It
// holds no state of its own, so every method is safe for concurrent
// use as long as the underlying stores are.
type DefaultAggregator struct {
	registry tool.ToolRegistry
	builds   build.BuildManager
	monitor  health.HealthMonitor
	orch     scan.Orchestrator
	history  *execution.History
	ports    portalloc.PortAllocator
}

// NewAggregator creates an aggregator over the given components.
func NewAggregator(
	registry tool.ToolRegistry,
	builds build.BuildManager,
	monitor health.HealthMonitor,
	orch scan.Orchestrator,
	history *execution.History,
	ports portalloc.PortAllocator,
) *DefaultAggregator {
	return &DefaultAggregator{
		registry: registry,
		builds:   builds,
		monitor:  monitor,
		orch:     orch,
		history:  history,
		ports:    ports,
	}
}

// Snapshot returns a point-in-time view across every component. Ready
// is true when every enabled, non-optional tool has a successful
// build; optional tools never hold readiness back.
func (a *DefaultAggregator) Snapshot() Snapshot {
	descs := a.registry.ListAll()

	snap := Snapshot{
		GeneratedAt: time.Now().UTC(),
		Ready:       true,
		Tools:       make([]ToolStatus, 0, len(descs)),
	}

	for _, desc := range descs {
		row := a.toolRow(desc)
		snap.Tools = append(snap.Tools, row)

		snap.Summary.ToolsTotal++
		if row.Enabled {
			snap.Summary.ToolsEnabled++
		}
		if row.Build.Status == build.BuildStatusBuilt {
			snap.Summary.ToolsBuilt++
		}
		switch row.Health.Level {
		case health.HealthHealthy:
			snap.Summary.ToolsHealthy++
		case health.HealthUnhealthy:
			snap.Summary.ToolsUnhealthy++
		}
		if row.Enabled && !row.Optional && !row.Runnable() {
			snap.Ready = false
		}
	}

	snap.Jobs = a.orch.Jobs()
	snap.Summary.JobsTotal = len(snap.Jobs)
	for _, job := range snap.Jobs {
		if !job.Status.IsTerminal() {
			snap.Summary.JobsActive++
		}
	}

	snap.Leases = a.ports.ActiveLeases()
	snap.Summary.ActiveLeases = len(snap.Leases)

	return snap
}

// ToolStatus returns the consolidated row for a single tool, or an
// UnknownToolError if the name is not registered.
func (a *DefaultAggregator) ToolStatus(name string) (ToolStatus, error) {
	desc, err := a.registry.Get(name)
	if err != nil {
		return ToolStatus{}, err
	}
	return a.toolRow(desc), nil
}

func (a *DefaultAggregator) toolRow(desc tool.ToolDescriptor) ToolStatus {
	row := ToolStatus{
		Name:        desc.Name,
		Enabled:     desc.Enabled,
		Optional:    desc.Optional,
		BuildType:   desc.BuildType,
		DefaultPort: desc.DefaultPort,
		Build:       build.BuildRecord{ToolName: desc.Name, Status: build.BuildStatusNotBuilt},
		Health:      a.monitor.GetHealth(desc.Name),
	}
	if rec, ok := a.builds.Record(desc.Name); ok {
		row.Build = rec
	}
	if rec, ok := a.history.Latest(desc.Name); ok {
		row.LatestExecution = &rec
	}
	return row
}
