// Package health watches registered tools in the background and keeps a
// per-tool HealthState. Probes are strictly read-only: the monitor never
// restarts, rebuilds, or otherwise touches a tool.
package health

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/KNIGHTPROJEKS-0/LANCELOTT/internal/tool"
	"github.com/KNIGHTPROJEKS-0/LANCELOTT/internal/types"
)

const (
	// DefaultInterval is the sweep period.
	DefaultInterval = 30 * time.Second

	// DefaultProbeTimeout bounds a single probe.
	DefaultProbeTimeout = 5 * time.Second

	// DefaultFailureThreshold is how many consecutive failures flip a tool
	// to unhealthy.
	DefaultFailureThreshold = 3

	// sweepParallelism bounds concurrent probes within one sweep.
	sweepParallelism = 8

	stopWait = 5 * time.Second
)

// Span names for health operations.
const (
	SpanHealthSweep = "lancelott.health.sweep"
	SpanHealthProbe = "lancelott.health.probe"
)

// StatusChangeCallback is invoked when a tool's health level changes.
type StatusChangeCallback func(toolName string, oldLevel, newLevel HealthLevel)

// HealthMonitor probes enabled tools on an interval and aggregates their
// states.
type HealthMonitor interface {
	// Start begins the background sweep loop.
	Start(ctx context.Context) error

	// Stop halts the loop and waits for it to finish.
	Stop() error

	// GetHealth returns the state for one tool; never-probed tools come
	// back as unknown.
	GetHealth(name string) HealthState

	// States returns a copy of all tracked states keyed by tool name.
	States() map[string]HealthState

	// CheckTool probes one tool immediately and returns the updated state.
	CheckTool(ctx context.Context, name string) (HealthState, error)

	// OnStatusChange registers a callback for level transitions.
	OnStatusChange(callback StatusChangeCallback)
}

// DefaultHealthMonitor is the standard HealthMonitor implementation. Enabled
// tools are discovered from the registry on every sweep, so newly registered
// or re-enabled tools get probed without any extra bookkeeping.
type DefaultHealthMonitor struct {
	registry     tool.ToolRegistry
	prober       Prober
	logger       *slog.Logger
	tracer       trace.Tracer
	interval     time.Duration
	probeTimeout time.Duration
	threshold    int

	mu        sync.RWMutex
	states    map[string]*HealthState
	callbacks []StatusChangeCallback
	stopCh    chan struct{}
	stoppedCh chan struct{}
	running   bool
}

// MonitorOption configures a DefaultHealthMonitor.
type MonitorOption func(*DefaultHealthMonitor)

// WithInterval sets the sweep period.
func WithInterval(d time.Duration) MonitorOption {
	return func(m *DefaultHealthMonitor) {
		if d > 0 {
			m.interval = d
		}
	}
}

// WithProbeTimeout bounds each probe.
func WithProbeTimeout(d time.Duration) MonitorOption {
	return func(m *DefaultHealthMonitor) {
		if d > 0 {
			m.probeTimeout = d
		}
	}
}

// WithFailureThreshold sets how many consecutive failures mark a tool
// unhealthy.
func WithFailureThreshold(n int) MonitorOption {
	return func(m *DefaultHealthMonitor) {
		if n > 0 {
			m.threshold = n
		}
	}
}

// WithMonitorLogger sets the monitor logger.
func WithMonitorLogger(logger *slog.Logger) MonitorOption {
	return func(m *DefaultHealthMonitor) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// NewHealthMonitor creates a health monitor over the given registry and
// prober.
func NewHealthMonitor(registry tool.ToolRegistry, prober Prober, opts ...MonitorOption) *DefaultHealthMonitor {
	m := &DefaultHealthMonitor{
		registry:     registry,
		prober:       prober,
		logger:       slog.Default().With("component", "health"),
		tracer:       otel.GetTracerProvider().Tracer("lancelott.health"),
		interval:     DefaultInterval,
		probeTimeout: DefaultProbeTimeout,
		threshold:    DefaultFailureThreshold,
		states:       make(map[string]*HealthState),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start begins the background sweep loop. The first sweep runs immediately.
func (m *DefaultHealthMonitor) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return fmt.Errorf("health monitor already running")
	}
	m.running = true
	m.stopCh = make(chan struct{})
	m.stoppedCh = make(chan struct{})
	m.mu.Unlock()

	m.logger.Info("health monitor started",
		"interval", m.interval,
		"probe_timeout", m.probeTimeout,
		"failure_threshold", m.threshold)

	go m.loop(ctx)
	return nil
}

// Stop halts the sweep loop and waits for it to exit.
func (m *DefaultHealthMonitor) Stop() error {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return types.NewNotRunningError("health monitor")
	}
	stopCh := m.stopCh
	stoppedCh := m.stoppedCh
	m.mu.Unlock()

	close(stopCh)

	select {
	case <-stoppedCh:
	case <-time.After(stopWait):
		return fmt.Errorf("timeout waiting for health monitor to stop")
	}

	m.mu.Lock()
	m.running = false
	m.mu.Unlock()

	m.logger.Info("health monitor stopped")
	return nil
}

func (m *DefaultHealthMonitor) loop(ctx context.Context) {
	defer close(m.stoppedCh)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.sweep(ctx)
		}
	}
}

// sweep probes every enabled tool with bounded parallelism.
func (m *DefaultHealthMonitor) sweep(ctx context.Context) {
	ctx, span := m.tracer.Start(ctx, SpanHealthSweep)
	defer span.End()

	descs := m.registry.ListEnabled()
	span.SetAttributes(attribute.Int("lancelott.health.targets", len(descs)))

	var g errgroup.Group
	g.SetLimit(sweepParallelism)
	for _, desc := range descs {
		g.Go(func() error {
			m.probeOne(ctx, desc)
			return nil
		})
	}
	_ = g.Wait()
}

func (m *DefaultHealthMonitor) probeOne(ctx context.Context, desc tool.ToolDescriptor) {
	ctx, span := m.tracer.Start(ctx, SpanHealthProbe)
	defer span.End()
	span.SetAttributes(attribute.String("lancelott.tool.name", desc.Name))

	probeCtx, cancel := probeDeadline(ctx, m.probeTimeout)
	defer cancel()

	err := m.prober.Probe(probeCtx, desc)
	if err != nil && !errors.Is(err, errNoObservation) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	m.apply(desc.Name, err)
}

// apply folds one probe result into the tool's state and fires callbacks on
// level transitions.
func (m *DefaultHealthMonitor) apply(name string, probeErr error) {
	now := time.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.states[name]
	if !ok {
		state = &HealthState{ToolName: name, Level: HealthUnknown}
		m.states[name] = state
	}
	old := state.Level
	state.LastCheckedAt = now

	switch {
	case errors.Is(probeErr, errNoObservation):
		// Nothing to judge by; keep the previous level.
		return
	case probeErr != nil:
		state.ConsecutiveFailures++
		state.Detail = probeErr.Error()
		if state.ConsecutiveFailures >= m.threshold && state.Level != HealthUnhealthy {
			state.Level = HealthUnhealthy
			m.logger.Warn("tool unhealthy",
				"tool", name,
				"failures", state.ConsecutiveFailures,
				"detail", state.Detail)
			m.notify(name, old, HealthUnhealthy)
		}
	default:
		state.ConsecutiveFailures = 0
		state.Detail = ""
		if state.Level != HealthHealthy {
			state.Level = HealthHealthy
			m.logger.Info("tool healthy", "tool", name)
			m.notify(name, old, HealthHealthy)
		}
	}
}

// notify invokes callbacks in goroutines so a slow callback cannot stall a
// sweep. Must be called with the lock held.
func (m *DefaultHealthMonitor) notify(name string, oldLevel, newLevel HealthLevel) {
	for _, callback := range m.callbacks {
		go func(cb StatusChangeCallback) {
			cb(name, oldLevel, newLevel)
		}(callback)
	}
}

// GetHealth returns the current state for one tool. Tools never probed come
// back as unknown.
func (m *DefaultHealthMonitor) GetHealth(name string) HealthState {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if state, ok := m.states[name]; ok {
		return *state
	}
	return HealthState{ToolName: name, Level: HealthUnknown}
}

// States returns a copy of all tracked states keyed by tool name.
func (m *DefaultHealthMonitor) States() map[string]HealthState {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]HealthState, len(m.states))
	for name, state := range m.states {
		out[name] = *state
	}
	return out
}

// CheckTool probes one tool immediately, outside the sweep schedule. The
// result feeds the same state and callbacks as a scheduled probe.
func (m *DefaultHealthMonitor) CheckTool(ctx context.Context, name string) (HealthState, error) {
	desc, err := m.registry.Get(name)
	if err != nil {
		return HealthState{}, err
	}

	m.probeOne(ctx, desc)
	return m.GetHealth(name), nil
}

// OnStatusChange registers a callback for level transitions.
func (m *DefaultHealthMonitor) OnStatusChange(callback StatusChangeCallback) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.callbacks = append(m.callbacks, callback)
}
