package config

import (
	"os"
	"path/filepath"
	"time"
)

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() *Config {
	homeDir := DefaultHomeDir()

	return &Config{
		Core: CoreConfig{
			HomeDir:            homeDir,
			ToolsDir:           filepath.Join(homeDir, "tools"),
			MaxConcurrentScans: 8,
			ScanTimeout:        time.Hour,
			JobRetention:       time.Hour,
			Debug:              false,
		},
		Execution: ExecutionConfig{
			GracePeriod:     5 * time.Second,
			OutputTailBytes: 64 * 1024,
			HistoryDepth:    16,
		},
		Build: BuildConfig{
			Timeout:     10 * time.Minute,
			Parallelism: 2,
		},
		Ports: PortsConfig{
			Base:   7001,
			Window: 1000,
		},
		Health: HealthConfig{
			Interval:         30 * time.Second,
			ProbeTimeout:     5 * time.Second,
			FailureThreshold: 3,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Tracing: TracingConfig{
			Enabled:    false,
			Endpoint:   "",
			SampleRate: 1.0,
		},
	}
}

// DefaultHomeDir returns the default LANCELOTT home directory. It
// honors the LANCELOTT_HOME environment variable, then ~/.lancelott,
// falling back to a temporary directory if the user home cannot be
// determined.
func DefaultHomeDir() string {
	if env := os.Getenv("LANCELOTT_HOME"); env != "" {
		return env
	}
	userHome, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".lancelott")
	}
	return filepath.Join(userHome, ".lancelott")
}

// DefaultConfigPath returns the default config file path for a given
// home directory.
func DefaultConfigPath(homeDir string) string {
	return filepath.Join(homeDir, "config.yaml")
}
