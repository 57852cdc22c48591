// Package engine wires the tool registry, port allocator, execution
// engine, build manager, health monitor, scan orchestrator and status
// aggregator into one operational surface. The CLI and any embedding
// layer (an HTTP API, a daemon) talk to this facade instead of the
// individual components.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/KNIGHTPROJEKS-0/LANCELOTT/internal/build"
	"github.com/KNIGHTPROJEKS-0/LANCELOTT/internal/config"
	"github.com/KNIGHTPROJEKS-0/LANCELOTT/internal/execution"
	"github.com/KNIGHTPROJEKS-0/LANCELOTT/internal/health"
	"github.com/KNIGHTPROJEKS-0/LANCELOTT/internal/portalloc"
	"github.com/KNIGHTPROJEKS-0/LANCELOTT/internal/scan"
	"github.com/KNIGHTPROJEKS-0/LANCELOTT/internal/status"
	"github.com/KNIGHTPROJEKS-0/LANCELOTT/internal/tool"
	"github.com/KNIGHTPROJEKS-0/LANCELOTT/internal/types"
)

// Engine is the complete orchestration surface.
type Engine interface {
	// Start brings up the background services (currently the health
	// monitor). It fails if the engine is already running.
	Start(ctx context.Context) error

	// Stop halts background services and cancels in-flight jobs,
	// waiting up to the context deadline for them to settle.
	Stop(ctx context.Context) error

	// SubmitScan validates the request and launches one execution per
	// requested tool. An empty tool list means every enabled tool.
	SubmitScan(ctx context.Context, target string, toolNames []string) (scan.ScanJob, error)

	// GetJobStatus returns the current job snapshot.
	GetJobStatus(jobID types.ID) (scan.ScanJob, error)

	// CancelJob requests cancellation of all in-flight executions of a
	// job. Cancelling a terminal job is an acknowledged no-op.
	CancelJob(ctx context.Context, jobID types.ID) (scan.ScanJob, error)

	// WaitForJob blocks until the job settles or the context expires.
	WaitForJob(ctx context.Context, jobID types.ID) (scan.ScanJob, error)

	// ListJobs returns snapshots of all retained jobs, oldest first.
	ListJobs() []scan.ScanJob

	// BuildTool builds one tool, reusing a cached build unless force
	// is set or the tool's fingerprint changed.
	BuildTool(ctx context.Context, toolName string, force bool) (build.BuildRecord, error)

	// BuildAll builds the enabled tools, continuing past individual
	// failures.
	BuildAll(ctx context.Context, opts build.BuildAllOptions) ([]build.BuildRecord, error)

	// GetHealth returns the current health state for one tool.
	GetHealth(toolName string) (health.HealthState, error)

	// ListHealth returns the health state of every registered tool.
	ListHealth() []health.HealthState

	// CheckHealth probes one tool immediately, outside the sweep
	// schedule, and returns the updated state.
	CheckHealth(ctx context.Context, toolName string) (health.HealthState, error)

	// OnHealthChange registers a callback fired on health transitions.
	OnHealthChange(cb health.StatusChangeCallback)

	// GetSnapshot returns a consolidated point-in-time view.
	GetSnapshot() status.Snapshot

	// GetToolStatus returns the consolidated row for one tool.
	GetToolStatus(toolName string) (status.ToolStatus, error)

	// SetToolEnabled flips a tool's enabled flag.
	SetToolEnabled(toolName string, enabled bool) error

	// Registry exposes the tool registry for listing and inspection.
	Registry() tool.ToolRegistry
}

// DefaultEngine is the concrete Engine wiring.
type DefaultEngine struct {
	cfg    *config.Config
	logger *slog.Logger

	registry *tool.DefaultToolRegistry
	ports    *portalloc.DefaultPortAllocator
	exec     *execution.DefaultExecutionEngine
	builds   *build.DefaultBuildManager
	monitor  *health.DefaultHealthMonitor
	orch     *scan.DefaultOrchestrator
	agg      *status.DefaultAggregator

	mu      sync.Mutex
	started bool
}

// Option configures the engine.
type Option func(*DefaultEngine)

// WithLogger sets the logger the engine and its components report
// through.
func WithLogger(logger *slog.Logger) Option {
	return func(e *DefaultEngine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// New assembles an engine from the configuration: it registers the
// configured tool catalog and wires every component with the
// configured limits. No background work starts until Start is called.
func New(cfg *config.Config, opts ...Option) (*DefaultEngine, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	e := &DefaultEngine{
		cfg:    cfg,
		logger: slog.Default().With("component", "engine"),
	}
	for _, opt := range opts {
		opt(e)
	}

	e.registry = tool.NewToolRegistry()
	for _, desc := range cfg.Catalog() {
		if err := e.registry.Register(desc); err != nil {
			return nil, fmt.Errorf("registering tool %s: %w", desc.Name, err)
		}
	}

	e.exec = execution.NewExecutionEngine(
		execution.WithGracePeriod(cfg.Execution.GracePeriod),
		execution.WithTailBytes(cfg.Execution.OutputTailBytes),
		execution.WithHistoryDepth(cfg.Execution.HistoryDepth),
		execution.WithLogger(e.logger.With("component", "execution")),
	)
	e.ports = portalloc.NewPortAllocator(e.registry,
		portalloc.WithRange(cfg.Ports.Base, cfg.Ports.Window),
	)
	e.builds = build.NewBuildManager(e.registry, e.exec,
		build.WithTimeout(cfg.Build.Timeout),
		build.WithLogger(e.logger.With("component", "build")),
	)
	e.monitor = health.NewHealthMonitor(e.registry, health.NewProber(e.exec.History()),
		health.WithInterval(cfg.Health.Interval),
		health.WithProbeTimeout(cfg.Health.ProbeTimeout),
		health.WithFailureThreshold(cfg.Health.FailureThreshold),
		health.WithMonitorLogger(e.logger.With("component", "health")),
	)
	e.orch = scan.NewOrchestrator(e.registry, e.ports, e.exec,
		scan.WithMaxConcurrent(cfg.Core.MaxConcurrentScans),
		scan.WithScanTimeout(cfg.Core.ScanTimeout),
		scan.WithRetention(cfg.Core.JobRetention),
		scan.WithOrchestratorLogger(e.logger.With("component", "scan")),
	)
	e.agg = status.NewAggregator(e.registry, e.builds, e.monitor, e.orch, e.exec.History(), e.ports)

	return e, nil
}

// Start brings up the health monitor. The engine is usable for scans
// and builds without Start; only background probing needs it.
func (e *DefaultEngine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.started {
		return fmt.Errorf("engine already started")
	}
	if err := e.monitor.Start(ctx); err != nil {
		return fmt.Errorf("starting health monitor: %w", err)
	}
	e.started = true

	e.logger.Info("engine started",
		"tools", e.registry.Count(),
		"max_concurrent_scans", e.cfg.Core.MaxConcurrentScans,
		"port_base", e.cfg.Ports.Base,
	)
	return nil
}

// Stop halts the health monitor and shuts the orchestrator down,
// cancelling in-flight jobs and waiting for them to settle within the
// context deadline.
func (e *DefaultEngine) Stop(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.started {
		return types.NewNotRunningError("engine")
	}
	e.started = false

	if err := e.monitor.Stop(); err != nil {
		e.logger.Warn("health monitor stop failed", "error", err)
	}
	if err := e.orch.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down orchestrator: %w", err)
	}

	e.logger.Info("engine stopped")
	return nil
}

func (e *DefaultEngine) SubmitScan(ctx context.Context, target string, toolNames []string) (scan.ScanJob, error) {
	return e.orch.Submit(ctx, target, toolNames)
}

func (e *DefaultEngine) GetJobStatus(jobID types.ID) (scan.ScanJob, error) {
	return e.orch.Status(jobID)
}

func (e *DefaultEngine) CancelJob(ctx context.Context, jobID types.ID) (scan.ScanJob, error) {
	return e.orch.Cancel(ctx, jobID)
}

func (e *DefaultEngine) WaitForJob(ctx context.Context, jobID types.ID) (scan.ScanJob, error) {
	return e.orch.Wait(ctx, jobID)
}

func (e *DefaultEngine) ListJobs() []scan.ScanJob {
	return e.orch.Jobs()
}

func (e *DefaultEngine) BuildTool(ctx context.Context, toolName string, force bool) (build.BuildRecord, error) {
	return e.builds.Build(ctx, toolName, force)
}

func (e *DefaultEngine) BuildAll(ctx context.Context, opts build.BuildAllOptions) ([]build.BuildRecord, error) {
	return e.builds.BuildAll(ctx, opts)
}

// GetHealth returns the current health state for a registered tool; a
// never-probed tool reports HealthUnknown.
func (e *DefaultEngine) GetHealth(toolName string) (health.HealthState, error) {
	if _, err := e.registry.Get(toolName); err != nil {
		return health.HealthState{}, err
	}
	return e.monitor.GetHealth(toolName), nil
}

// ListHealth returns one state per registered tool, ordered by name.
func (e *DefaultEngine) ListHealth() []health.HealthState {
	descs := e.registry.ListAll()
	out := make([]health.HealthState, 0, len(descs))
	for _, desc := range descs {
		out = append(out, e.monitor.GetHealth(desc.Name))
	}
	return out
}

func (e *DefaultEngine) CheckHealth(ctx context.Context, toolName string) (health.HealthState, error) {
	return e.monitor.CheckTool(ctx, toolName)
}

func (e *DefaultEngine) OnHealthChange(cb health.StatusChangeCallback) {
	e.monitor.OnStatusChange(cb)
}

func (e *DefaultEngine) GetSnapshot() status.Snapshot {
	return e.agg.Snapshot()
}

func (e *DefaultEngine) GetToolStatus(toolName string) (status.ToolStatus, error) {
	return e.agg.ToolStatus(toolName)
}

func (e *DefaultEngine) SetToolEnabled(toolName string, enabled bool) error {
	return e.registry.SetEnabled(toolName, enabled)
}

func (e *DefaultEngine) Registry() tool.ToolRegistry {
	return e.registry
}
