package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/spf13/viper"
)

// ConfigLoader handles loading configuration from files.
type ConfigLoader interface {
	Load(path string) (*Config, error)
	LoadWithDefaults(path string) (*Config, error)
}

// viperConfigLoader implements ConfigLoader using Viper.
type viperConfigLoader struct {
	validator ConfigValidator
}

// NewConfigLoader creates a new ConfigLoader instance.
func NewConfigLoader(validator ConfigValidator) ConfigLoader {
	return &viperConfigLoader{
		validator: validator,
	}
}

// Load loads configuration from the specified file path. Values absent
// from the file fall back to DefaultConfig; strings may reference
// environment variables with ${VAR_NAME} syntax; LANCELOTT_* variables
// override individual keys (for example LANCELOTT_PORTS_BASE).
func (l *viperConfigLoader) Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("LANCELOTT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Interpolate ${VAR_NAME} references before decoding so the struct
	// only ever sees resolved values.
	interpolated, ok := interpolateEnvVars(v.AllSettings()).(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("unexpected config structure in %s", path)
	}
	if err := v.MergeConfigMap(interpolated); err != nil {
		return nil, fmt.Errorf("failed to merge interpolated config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := l.validator.Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// LoadWithDefaults loads configuration from the specified file path.
// If the file doesn't exist, returns default configuration.
func (l *viperConfigLoader) LoadWithDefaults(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := DefaultConfig()
		if err := l.validator.Validate(cfg); err != nil {
			return nil, fmt.Errorf("default configuration validation failed: %w", err)
		}
		return cfg, nil
	}

	return l.Load(path)
}

// setDefaults seeds a viper instance with every leaf of DefaultConfig
// so partial config files stay valid.
func setDefaults(v *viper.Viper) {
	def := DefaultConfig()

	v.SetDefault("core.home_dir", def.Core.HomeDir)
	v.SetDefault("core.tools_dir", def.Core.ToolsDir)
	v.SetDefault("core.max_concurrent_scans", def.Core.MaxConcurrentScans)
	v.SetDefault("core.scan_timeout", def.Core.ScanTimeout)
	v.SetDefault("core.job_retention", def.Core.JobRetention)
	v.SetDefault("core.debug", def.Core.Debug)

	v.SetDefault("execution.grace_period", def.Execution.GracePeriod)
	v.SetDefault("execution.output_tail_bytes", def.Execution.OutputTailBytes)
	v.SetDefault("execution.history_depth", def.Execution.HistoryDepth)

	v.SetDefault("build.timeout", def.Build.Timeout)
	v.SetDefault("build.parallelism", def.Build.Parallelism)

	v.SetDefault("ports.base", def.Ports.Base)
	v.SetDefault("ports.window", def.Ports.Window)

	v.SetDefault("health.interval", def.Health.Interval)
	v.SetDefault("health.probe_timeout", def.Health.ProbeTimeout)
	v.SetDefault("health.failure_threshold", def.Health.FailureThreshold)

	v.SetDefault("logging.level", def.Logging.Level)
	v.SetDefault("logging.format", def.Logging.Format)

	v.SetDefault("tracing.enabled", def.Tracing.Enabled)
	v.SetDefault("tracing.endpoint", def.Tracing.Endpoint)
	v.SetDefault("tracing.sample_rate", def.Tracing.SampleRate)
	v.SetDefault("tracing.insecure", def.Tracing.Insecure)
}

// interpolateEnvVars recursively interpolates environment variables in
// the config map. Supports ${VAR_NAME} syntax.
func interpolateEnvVars(data interface{}) interface{} {
	switch v := data.(type) {
	case map[string]interface{}:
		result := make(map[string]interface{})
		for key, value := range v {
			result[key] = interpolateEnvVars(value)
		}
		return result
	case []interface{}:
		result := make([]interface{}, len(v))
		for i, value := range v {
			result[i] = interpolateEnvVars(value)
		}
		return result
	case string:
		return interpolateString(v)
	default:
		return v
	}
}

// interpolateString replaces ${VAR_NAME} with environment variable values.
func interpolateString(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := strings.TrimSuffix(strings.TrimPrefix(match, "${"), "}")

		if envValue := os.Getenv(varName); envValue != "" {
			return envValue
		}

		// Leave unresolved references visible rather than silently
		// collapsing them to empty strings.
		return match
	})
}
