package health

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KNIGHTPROJEKS-0/LANCELOTT/internal/tool"
	"github.com/KNIGHTPROJEKS-0/LANCELOTT/internal/types"
)

type stubProber struct {
	mu      sync.Mutex
	results map[string]error
	calls   map[string]int
}

func newStubProber() *stubProber {
	return &stubProber{
		results: make(map[string]error),
		calls:   make(map[string]int),
	}
}

func (p *stubProber) set(name string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.results[name] = err
}

func (p *stubProber) callCount(name string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[name]
}

func (p *stubProber) Probe(_ context.Context, desc tool.ToolDescriptor) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls[desc.Name]++
	return p.results[desc.Name]
}

func healthDescriptor(name string, enabled bool) tool.ToolDescriptor {
	return tool.ToolDescriptor{
		Name:           name,
		BuildType:      tool.BuildTypeInterpretedDeps,
		ExecutablePath: "/opt/lancelott/" + name + "/" + name + ".py",
		Enabled:        enabled,
	}
}

func testMonitor(t *testing.T, prober Prober, opts ...MonitorOption) (*DefaultHealthMonitor, tool.ToolRegistry) {
	t.Helper()
	registry := tool.NewToolRegistry()
	base := []MonitorOption{
		WithInterval(10 * time.Millisecond),
		WithProbeTimeout(time.Second),
	}
	return NewHealthMonitor(registry, prober, append(base, opts...)...), registry
}

func TestGetHealthNeverProbed(t *testing.T) {
	monitor, _ := testMonitor(t, newStubProber())

	state := monitor.GetHealth("nmap")
	assert.Equal(t, "nmap", state.ToolName)
	assert.Equal(t, HealthUnknown, state.Level)
	assert.False(t, state.Healthy())
	assert.False(t, state.Blocking())
}

func TestCheckToolMarksHealthy(t *testing.T) {
	prober := newStubProber()
	monitor, registry := testMonitor(t, prober)
	require.NoError(t, registry.Register(healthDescriptor("nmap", true)))

	state, err := monitor.CheckTool(context.Background(), "nmap")
	require.NoError(t, err)

	assert.Equal(t, HealthHealthy, state.Level)
	assert.True(t, state.Healthy())
	assert.Zero(t, state.ConsecutiveFailures)
	assert.False(t, state.LastCheckedAt.IsZero())
}

func TestCheckToolUnknownTool(t *testing.T) {
	monitor, _ := testMonitor(t, newStubProber())

	_, err := monitor.CheckTool(context.Background(), "ghost")
	require.Error(t, err)
	assert.True(t, types.IsUnknownTool(err))
}

func TestUnhealthyOnlyAfterThreshold(t *testing.T) {
	prober := newStubProber()
	prober.set("argus", errors.New("connection refused"))
	monitor, registry := testMonitor(t, prober, WithFailureThreshold(3))
	require.NoError(t, registry.Register(healthDescriptor("argus", true)))

	for i := 1; i <= 2; i++ {
		state, err := monitor.CheckTool(context.Background(), "argus")
		require.NoError(t, err)
		assert.Equal(t, HealthUnknown, state.Level, "probe %d must not flip the level yet", i)
		assert.Equal(t, i, state.ConsecutiveFailures)
	}

	state, err := monitor.CheckTool(context.Background(), "argus")
	require.NoError(t, err)
	assert.Equal(t, HealthUnhealthy, state.Level)
	assert.Equal(t, 3, state.ConsecutiveFailures)
	assert.Contains(t, state.Detail, "connection refused")
	assert.True(t, state.Blocking())
}

func TestRecoveryResetsFailures(t *testing.T) {
	prober := newStubProber()
	prober.set("argus", errors.New("down"))
	monitor, registry := testMonitor(t, prober, WithFailureThreshold(2))
	require.NoError(t, registry.Register(healthDescriptor("argus", true)))

	for i := 0; i < 2; i++ {
		_, err := monitor.CheckTool(context.Background(), "argus")
		require.NoError(t, err)
	}
	assert.Equal(t, HealthUnhealthy, monitor.GetHealth("argus").Level)

	prober.set("argus", nil)
	state, err := monitor.CheckTool(context.Background(), "argus")
	require.NoError(t, err)

	assert.Equal(t, HealthHealthy, state.Level)
	assert.Zero(t, state.ConsecutiveFailures)
	assert.Empty(t, state.Detail)
}

func TestNoObservationKeepsLevel(t *testing.T) {
	prober := newStubProber()
	prober.set("sherlock", errNoObservation)
	monitor, registry := testMonitor(t, prober, WithFailureThreshold(1))
	require.NoError(t, registry.Register(healthDescriptor("sherlock", true)))

	state, err := monitor.CheckTool(context.Background(), "sherlock")
	require.NoError(t, err)

	assert.Equal(t, HealthUnknown, state.Level)
	assert.Zero(t, state.ConsecutiveFailures)
	assert.False(t, state.LastCheckedAt.IsZero())
}

func TestStatusChangeCallbacks(t *testing.T) {
	type transition struct {
		tool     string
		from, to HealthLevel
	}

	prober := newStubProber()
	prober.set("vajra", errors.New("down"))
	monitor, registry := testMonitor(t, prober, WithFailureThreshold(1))
	require.NoError(t, registry.Register(healthDescriptor("vajra", true)))

	events := make(chan transition, 4)
	monitor.OnStatusChange(func(name string, from, to HealthLevel) {
		events <- transition{name, from, to}
	})

	_, err := monitor.CheckTool(context.Background(), "vajra")
	require.NoError(t, err)

	select {
	case event := <-events:
		assert.Equal(t, transition{"vajra", HealthUnknown, HealthUnhealthy}, event)
	case <-time.After(2 * time.Second):
		t.Fatal("no callback for unknown->unhealthy")
	}

	prober.set("vajra", nil)
	_, err = monitor.CheckTool(context.Background(), "vajra")
	require.NoError(t, err)

	select {
	case event := <-events:
		assert.Equal(t, transition{"vajra", HealthUnhealthy, HealthHealthy}, event)
	case <-time.After(2 * time.Second):
		t.Fatal("no callback for unhealthy->healthy")
	}

	// Steady state repeats do not fire callbacks.
	_, err = monitor.CheckTool(context.Background(), "vajra")
	require.NoError(t, err)
	select {
	case event := <-events:
		t.Fatalf("unexpected callback %+v", event)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBackgroundSweepProbesEnabledOnly(t *testing.T) {
	prober := newStubProber()
	monitor, registry := testMonitor(t, prober)
	require.NoError(t, registry.Register(healthDescriptor("enabled_tool", true)))
	require.NoError(t, registry.Register(healthDescriptor("disabled_tool", false)))

	require.NoError(t, monitor.Start(context.Background()))
	defer func() { _ = monitor.Stop() }()

	require.Eventually(t, func() bool {
		return prober.callCount("enabled_tool") >= 2
	}, 5*time.Second, 5*time.Millisecond)

	assert.Zero(t, prober.callCount("disabled_tool"))
	assert.Equal(t, HealthHealthy, monitor.GetHealth("enabled_tool").Level)
}

func TestStartStopLifecycle(t *testing.T) {
	monitor, _ := testMonitor(t, newStubProber())

	require.NoError(t, monitor.Start(context.Background()))
	assert.Error(t, monitor.Start(context.Background()), "double start must fail")

	require.NoError(t, monitor.Stop())

	err := monitor.Stop()
	require.Error(t, err)
	assert.Equal(t, types.ErrCodeNotRunning, types.ErrorCode(err))

	// Restartable after a clean stop.
	require.NoError(t, monitor.Start(context.Background()))
	require.NoError(t, monitor.Stop())
}

func TestStatesSnapshot(t *testing.T) {
	prober := newStubProber()
	monitor, registry := testMonitor(t, prober)
	require.NoError(t, registry.Register(healthDescriptor("alpha", true)))
	require.NoError(t, registry.Register(healthDescriptor("beta", true)))

	_, err := monitor.CheckTool(context.Background(), "alpha")
	require.NoError(t, err)

	states := monitor.States()
	require.Len(t, states, 1)
	require.Contains(t, states, "alpha")

	states["alpha"] = HealthState{ToolName: "alpha", Level: HealthUnhealthy}
	assert.Equal(t, HealthHealthy, monitor.GetHealth("alpha").Level)
}
