// Package config loads, validates and defaults the engine
// configuration: scan orchestration limits, process supervision knobs,
// build and health settings, the port allocation window, and the tool
// catalog itself.
package config

import (
	"time"

	"github.com/KNIGHTPROJEKS-0/LANCELOTT/internal/tool"
)

// Config is the root configuration for the LANCELOTT engine.
type Config struct {
	Core      CoreConfig            `mapstructure:"core" yaml:"core" validate:"required"`
	Execution ExecutionConfig       `mapstructure:"execution" yaml:"execution"`
	Build     BuildConfig           `mapstructure:"build" yaml:"build"`
	Ports     PortsConfig           `mapstructure:"ports" yaml:"ports"`
	Health    HealthConfig          `mapstructure:"health" yaml:"health"`
	Logging   LoggingConfig         `mapstructure:"logging" yaml:"logging"`
	Tracing   TracingConfig         `mapstructure:"tracing" yaml:"tracing"`
	Tools     []tool.ToolDescriptor `mapstructure:"tools" yaml:"tools,omitempty"`
}

// CoreConfig contains the scan orchestration settings.
type CoreConfig struct {
	HomeDir            string        `mapstructure:"home_dir" yaml:"home_dir"`
	ToolsDir           string        `mapstructure:"tools_dir" yaml:"tools_dir"`
	MaxConcurrentScans int           `mapstructure:"max_concurrent_scans" yaml:"max_concurrent_scans" validate:"min=1,max=100"`
	ScanTimeout        time.Duration `mapstructure:"scan_timeout" yaml:"scan_timeout" validate:"min=1s"`
	JobRetention       time.Duration `mapstructure:"job_retention" yaml:"job_retention" validate:"min=1m"`
	Debug              bool          `mapstructure:"debug" yaml:"debug"`
}

// ExecutionConfig contains process supervision settings.
type ExecutionConfig struct {
	// GracePeriod is how long a process gets between the termination
	// signal and the forced kill.
	GracePeriod time.Duration `mapstructure:"grace_period" yaml:"grace_period" validate:"min=100ms"`

	// OutputTailBytes bounds the stdout/stderr tail retained per
	// execution record.
	OutputTailBytes int `mapstructure:"output_tail_bytes" yaml:"output_tail_bytes" validate:"min=1024"`

	// HistoryDepth is how many finished records are kept per tool.
	HistoryDepth int `mapstructure:"history_depth" yaml:"history_depth" validate:"min=1"`
}

// BuildConfig contains build manager settings.
type BuildConfig struct {
	Timeout     time.Duration `mapstructure:"timeout" yaml:"timeout" validate:"min=1s"`
	Parallelism int           `mapstructure:"parallelism" yaml:"parallelism" validate:"min=1,max=32"`
}

// PortsConfig describes the port allocation window.
type PortsConfig struct {
	Base   int `mapstructure:"base" yaml:"base" validate:"min=1024,max=65535"`
	Window int `mapstructure:"window" yaml:"window" validate:"min=1,max=10000"`
}

// HealthConfig contains health monitor settings.
type HealthConfig struct {
	Interval         time.Duration `mapstructure:"interval" yaml:"interval" validate:"min=1s"`
	ProbeTimeout     time.Duration `mapstructure:"probe_timeout" yaml:"probe_timeout" validate:"min=100ms"`
	FailureThreshold int           `mapstructure:"failure_threshold" yaml:"failure_threshold" validate:"min=1,max=20"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" yaml:"format" validate:"oneof=json text"`
}

// TracingConfig contains distributed tracing configuration.
type TracingConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Endpoint is the OTLP gRPC collector address, host:port.
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`

	// SampleRate is the trace sampling ratio in [0, 1].
	SampleRate float64 `mapstructure:"sample_rate" yaml:"sample_rate" validate:"min=0,max=1"`

	// Insecure disables TLS on the exporter connection. Only honored
	// when no certificate file is configured.
	Insecure bool `mapstructure:"insecure" yaml:"insecure"`

	// TLSCertFile is an optional certificate for the collector
	// connection.
	TLSCertFile string `mapstructure:"tls_cert_file" yaml:"tls_cert_file,omitempty"`
}

// Catalog returns the effective tool catalog: the configured tools when
// any are present, otherwise the built-in defaults rooted at the
// configured tools directory.
func (c *Config) Catalog() []tool.ToolDescriptor {
	if len(c.Tools) > 0 {
		out := make([]tool.ToolDescriptor, len(c.Tools))
		for i, d := range c.Tools {
			out[i] = d.Clone()
		}
		return out
	}
	return DefaultCatalog(c.Core.ToolsDir)
}
