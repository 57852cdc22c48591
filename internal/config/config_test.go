package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KNIGHTPROJEKS-0/LANCELOTT/internal/tool"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	// Core defaults
	assert.NotEmpty(t, cfg.Core.HomeDir)
	assert.Equal(t, filepath.Join(cfg.Core.HomeDir, "tools"), cfg.Core.ToolsDir)
	assert.Equal(t, 8, cfg.Core.MaxConcurrentScans)
	assert.Equal(t, time.Hour, cfg.Core.ScanTimeout)
	assert.Equal(t, time.Hour, cfg.Core.JobRetention)
	assert.False(t, cfg.Core.Debug)

	// Execution defaults
	assert.Equal(t, 5*time.Second, cfg.Execution.GracePeriod)
	assert.Equal(t, 64*1024, cfg.Execution.OutputTailBytes)
	assert.Equal(t, 16, cfg.Execution.HistoryDepth)

	// Build defaults
	assert.Equal(t, 10*time.Minute, cfg.Build.Timeout)
	assert.Equal(t, 2, cfg.Build.Parallelism)

	// Port allocation defaults
	assert.Equal(t, 7001, cfg.Ports.Base)
	assert.Equal(t, 1000, cfg.Ports.Window)

	// Health defaults
	assert.Equal(t, 30*time.Second, cfg.Health.Interval)
	assert.Equal(t, 5*time.Second, cfg.Health.ProbeTimeout)
	assert.Equal(t, 3, cfg.Health.FailureThreshold)

	// Logging and tracing defaults
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.False(t, cfg.Tracing.Enabled)

	require.NoError(t, NewValidator().Validate(cfg))
}

func TestDefaultHomeDirHonorsEnv(t *testing.T) {
	t.Setenv("LANCELOTT_HOME", "/opt/lancelott-home")
	assert.Equal(t, "/opt/lancelott-home", DefaultHomeDir())
}

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadPartialConfigKeepsDefaults(t *testing.T) {
	path := writeConfigFile(t, `
core:
  max_concurrent_scans: 4
  scan_timeout: 30m
health:
  failure_threshold: 5
`)

	cfg, err := NewConfigLoader(NewValidator()).Load(path)
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.Core.MaxConcurrentScans)
	assert.Equal(t, 30*time.Minute, cfg.Core.ScanTimeout)
	assert.Equal(t, 5, cfg.Health.FailureThreshold)

	// Untouched sections keep their defaults.
	assert.Equal(t, 7001, cfg.Ports.Base)
	assert.Equal(t, 5*time.Second, cfg.Execution.GracePeriod)
	assert.Equal(t, 10*time.Minute, cfg.Build.Timeout)
}

func TestLoadInterpolatesEnvVars(t *testing.T) {
	t.Setenv("LANCELOTT_TEST_TOOLS", "/srv/lancelott/tools")
	path := writeConfigFile(t, `
core:
  tools_dir: ${LANCELOTT_TEST_TOOLS}
`)

	cfg, err := NewConfigLoader(NewValidator()).Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/srv/lancelott/tools", cfg.Core.ToolsDir)
}

func TestLoadLeavesUnresolvedReferences(t *testing.T) {
	path := writeConfigFile(t, `
core:
  tools_dir: ${LANCELOTT_NO_SUCH_VAR}
`)

	cfg, err := NewConfigLoader(NewValidator()).Load(path)
	require.NoError(t, err)
	assert.Equal(t, "${LANCELOTT_NO_SUCH_VAR}", cfg.Core.ToolsDir)
}

func TestLoadEnvVarOverridesFile(t *testing.T) {
	t.Setenv("LANCELOTT_PORTS_WINDOW", "500")
	path := writeConfigFile(t, `
ports:
  base: 7001
  window: 100
`)

	cfg, err := NewConfigLoader(NewValidator()).Load(path)
	require.NoError(t, err)
	assert.Equal(t, 500, cfg.Ports.Window)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	path := writeConfigFile(t, `
core:
  max_concurrent_scans: 0
`)

	_, err := NewConfigLoader(NewValidator()).Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "core.max_concurrent_scans")
}

func TestLoadRejectsBadLogLevel(t *testing.T) {
	path := writeConfigFile(t, `
logging:
  level: loud
`)

	_, err := NewConfigLoader(NewValidator()).Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "logging.level")
}

func TestLoadMissingFile(t *testing.T) {
	loader := NewConfigLoader(NewValidator())

	_, err := loader.Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)

	cfg, err := loader.LoadWithDefaults(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.Core.MaxConcurrentScans)
}

func TestLoadToolsSection(t *testing.T) {
	path := writeConfigFile(t, `
tools:
  - name: argus
    build_type: interpreted-deps
    build_command: [pip, install, -r, requirements.txt]
    executable_path: /srv/tools/Argus/argus.py
    default_port: 7002
    enabled: true
  - name: metabigor
    build_type: compiled
    build_command: [go, build, -o, metabigor, "."]
    executable_path: /srv/tools/Metabigor/metabigor
    default_port: 7004
    enabled: true
`)

	cfg, err := NewConfigLoader(NewValidator()).Load(path)
	require.NoError(t, err)

	require.Len(t, cfg.Tools, 2)
	assert.Equal(t, "argus", cfg.Tools[0].Name)
	assert.Equal(t, tool.BuildTypeInterpretedDeps, cfg.Tools[0].BuildType)
	assert.Equal(t, 7002, cfg.Tools[0].DefaultPort)
	assert.Equal(t, []string{"go", "build", "-o", "metabigor", "."}, cfg.Tools[1].BuildCommand)

	catalog := cfg.Catalog()
	require.Len(t, catalog, 2, "configured tools replace the default catalog")
}

func TestValidateRejectsDuplicateToolPorts(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Tools = []tool.ToolDescriptor{
		{Name: "argus", BuildType: tool.BuildTypeInterpretedDeps, ExecutablePath: "/x/argus.py", DefaultPort: 7002, Enabled: true},
		{Name: "kraken", BuildType: tool.BuildTypeInterpretedDeps, ExecutablePath: "/x/kraken.py", DefaultPort: 7002, Enabled: true},
	}

	err := NewValidator().Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "share default port")
}

func TestValidateRejectsDuplicateToolNames(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Tools = []tool.ToolDescriptor{
		{Name: "argus", BuildType: tool.BuildTypeInterpretedDeps, ExecutablePath: "/x/a.py", Enabled: true},
		{Name: "argus", BuildType: tool.BuildTypeInterpretedDeps, ExecutablePath: "/x/b.py", Enabled: true},
	}

	err := NewValidator().Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate tool name")
}

func TestValidateRejectsPortOutsideWindow(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Tools = []tool.ToolDescriptor{
		{Name: "argus", BuildType: tool.BuildTypeInterpretedDeps, ExecutablePath: "/x/argus.py", DefaultPort: 6000, Enabled: true},
	}

	err := NewValidator().Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "outside the allocation window")
}

func TestCatalogOverrideIsCloned(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Tools = []tool.ToolDescriptor{
		{Name: "argus", BuildType: tool.BuildTypeInterpretedDeps, ExecutablePath: "/x/argus.py", DefaultPort: 7002, Enabled: true},
	}

	catalog := cfg.Catalog()
	catalog[0].Name = "mutated"
	assert.Equal(t, "argus", cfg.Tools[0].Name)
}

func TestDefaultCatalog(t *testing.T) {
	catalog := DefaultCatalog("/srv/lancelott/tools")
	require.Len(t, catalog, 17)

	names := make(map[string]struct{}, len(catalog))
	ports := make(map[int]struct{}, len(catalog))
	for _, d := range catalog {
		require.NoError(t, d.Validate(), "catalog entry %s", d.Name)
		assert.True(t, d.Enabled, "catalog entry %s starts enabled", d.Name)
		assert.True(t, strings.HasPrefix(d.ExecutablePath, "/srv/lancelott/tools/"), "catalog entry %s is rooted under the tools dir", d.Name)

		_, dupName := names[d.Name]
		require.False(t, dupName, "duplicate catalog name %s", d.Name)
		names[d.Name] = struct{}{}

		require.True(t, d.HasPort(), "catalog entry %s reserves a port", d.Name)
		_, dupPort := ports[d.DefaultPort]
		require.False(t, dupPort, "duplicate catalog port %d", d.DefaultPort)
		ports[d.DefaultPort] = struct{}{}
		assert.GreaterOrEqual(t, d.DefaultPort, 7001)
		assert.LessOrEqual(t, d.DefaultPort, 7017)
	}

	// The whole catalog passes the cross-descriptor validation.
	cfg := DefaultConfig()
	cfg.Core.ToolsDir = "/srv/lancelott/tools"
	require.NoError(t, NewValidator().Validate(cfg))

	// Spot checks on build contracts.
	byName := func(name string) tool.ToolDescriptor {
		for _, d := range catalog {
			if d.Name == name {
				return d
			}
		}
		t.Fatalf("catalog entry %s not found", name)
		return tool.ToolDescriptor{}
	}
	assert.Equal(t, tool.BuildTypeCompiled, byName("thc_hydra").BuildType)
	assert.Equal(t, []string{"./configure", "&&", "make"}, byName("thc_hydra").BuildCommand)
	assert.Equal(t, tool.BuildTypeScripted, byName("web_check").BuildType)
	assert.True(t, byName("web_check").Optional)
	assert.Equal(t, "http://localhost:7006/", byName("spiderfoot").HealthURL)
}
