package engine

import (
	"context"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KNIGHTPROJEKS-0/LANCELOTT/internal/build"
	"github.com/KNIGHTPROJEKS-0/LANCELOTT/internal/config"
	"github.com/KNIGHTPROJEKS-0/LANCELOTT/internal/health"
	"github.com/KNIGHTPROJEKS-0/LANCELOTT/internal/scan"
	"github.com/KNIGHTPROJEKS-0/LANCELOTT/internal/tool"
	"github.com/KNIGHTPROJEKS-0/LANCELOTT/internal/types"
)

func binPath(t *testing.T, name string) string {
	t.Helper()
	path, err := exec.LookPath(name)
	require.NoError(t, err, "%s not found in PATH", name)
	return path
}

func testConfig(t *testing.T, descs ...tool.ToolDescriptor) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Core.HomeDir = t.TempDir()
	cfg.Core.ToolsDir = cfg.Core.HomeDir
	cfg.Execution.GracePeriod = 200 * time.Millisecond
	cfg.Build.Timeout = 30 * time.Second
	cfg.Tools = descs
	return cfg
}

func quickTool(name, exe string) tool.ToolDescriptor {
	return tool.ToolDescriptor{
		Name:           name,
		BuildType:      tool.BuildTypeScripted,
		ExecutablePath: exe,
		Enabled:        true,
	}
}

func TestNewRegistersCatalog(t *testing.T) {
	exe := binPath(t, "true")
	eng, err := New(testConfig(t, quickTool("argus", exe), quickTool("sherlock", exe)))
	require.NoError(t, err)

	assert.Equal(t, 2, eng.Registry().Count())
	_, err = eng.Registry().Get("argus")
	assert.NoError(t, err)
}

func TestNewRejectsNilConfig(t *testing.T) {
	_, err := New(nil)
	require.Error(t, err)
}

func TestNewRejectsConflictingCatalog(t *testing.T) {
	exe := binPath(t, "true")
	clash := quickTool("kraken", exe)
	clash.DefaultPort = 7002
	clashToo := quickTool("argus", exe)
	clashToo.DefaultPort = 7002

	_, err := New(testConfig(t, clash, clashToo))
	require.Error(t, err)
	assert.True(t, types.IsDuplicateTool(err))
}

func TestScanRoundTrip(t *testing.T) {
	eng, err := New(testConfig(t,
		quickTool("good", binPath(t, "true")),
		quickTool("bad", binPath(t, "false"))))
	require.NoError(t, err)

	job, err := eng.SubmitScan(context.Background(), "example.com", nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	final, err := eng.WaitForJob(ctx, job.JobID)
	require.NoError(t, err)
	assert.Equal(t, scan.JobPartiallyFailed, final.Status)

	fetched, err := eng.GetJobStatus(job.JobID)
	require.NoError(t, err)
	assert.Equal(t, final.Status, fetched.Status)

	jobs := eng.ListJobs()
	require.Len(t, jobs, 1)

	snap := eng.GetSnapshot()
	require.Len(t, snap.Jobs, 1)
	row, ok := snap.Tool("good")
	require.True(t, ok)
	require.NotNil(t, row.LatestExecution)
}

func TestCancelJob(t *testing.T) {
	eng, err := New(testConfig(t, quickTool("slow", binPath(t, "sleep"))))
	require.NoError(t, err)

	job, err := eng.SubmitScan(context.Background(), "30", nil)
	require.NoError(t, err)

	_, err = eng.CancelJob(context.Background(), job.JobID)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	final, err := eng.WaitForJob(ctx, job.JobID)
	require.NoError(t, err)
	assert.Equal(t, scan.JobCancelled, final.Status)
}

func TestBuildFlow(t *testing.T) {
	eng, err := New(testConfig(t, quickTool("argus", binPath(t, "true"))))
	require.NoError(t, err)

	record, err := eng.BuildTool(context.Background(), "argus", false)
	require.NoError(t, err)
	assert.Equal(t, build.BuildStatusBuilt, record.Status)

	records, err := eng.BuildAll(context.Background(), build.BuildAllOptions{})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, build.BuildStatusBuilt, records[0].Status)

	_, err = eng.BuildTool(context.Background(), "ghost", false)
	require.Error(t, err)
	assert.True(t, types.IsUnknownTool(err))
}

func TestHealthSurface(t *testing.T) {
	eng, err := New(testConfig(t, quickTool("argus", binPath(t, "true"))))
	require.NoError(t, err)

	state, err := eng.GetHealth("argus")
	require.NoError(t, err)
	assert.Equal(t, health.HealthUnknown, state.Level)

	_, err = eng.GetHealth("ghost")
	require.Error(t, err)
	assert.True(t, types.IsUnknownTool(err))

	states := eng.ListHealth()
	require.Len(t, states, 1)
	assert.Equal(t, "argus", states[0].ToolName)

	// Give the prober an execution outcome, then force a probe.
	job, err := eng.SubmitScan(context.Background(), "example.com", nil)
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_, err = eng.WaitForJob(ctx, job.JobID)
	require.NoError(t, err)

	checked, err := eng.CheckHealth(context.Background(), "argus")
	require.NoError(t, err)
	assert.Equal(t, health.HealthHealthy, checked.Level)
}

func TestStartStopLifecycle(t *testing.T) {
	eng, err := New(testConfig(t, quickTool("argus", binPath(t, "true"))))
	require.NoError(t, err)

	require.NoError(t, eng.Start(context.Background()))
	assert.Error(t, eng.Start(context.Background()), "second start must fail")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, eng.Stop(ctx))

	err = eng.Stop(ctx)
	require.Error(t, err)
	assert.Equal(t, types.ErrCodeNotRunning, types.ErrorCode(err))

	// The engine is restartable after a clean stop.
	require.NoError(t, eng.Start(context.Background()))
	require.NoError(t, eng.Stop(ctx))
}

func TestSetToolEnabledFlowsToScans(t *testing.T) {
	eng, err := New(testConfig(t,
		quickTool("argus", binPath(t, "true")),
		quickTool("sherlock", binPath(t, "true"))))
	require.NoError(t, err)

	require.NoError(t, eng.SetToolEnabled("sherlock", false))

	_, err = eng.SubmitScan(context.Background(), "example.com", []string{"sherlock"})
	require.Error(t, err)
	assert.Equal(t, types.ErrCodeInvalidRequest, types.ErrorCode(err))

	job, err := eng.SubmitScan(context.Background(), "example.com", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"argus"}, job.RequestedTools)
}

func TestGetToolStatus(t *testing.T) {
	eng, err := New(testConfig(t, quickTool("argus", binPath(t, "true"))))
	require.NoError(t, err)

	row, err := eng.GetToolStatus("argus")
	require.NoError(t, err)
	assert.Equal(t, "argus", row.Name)
	assert.Equal(t, build.BuildStatusNotBuilt, row.Build.Status)

	_, err = eng.GetToolStatus("ghost")
	require.Error(t, err)
	assert.True(t, types.IsUnknownTool(err))
}
