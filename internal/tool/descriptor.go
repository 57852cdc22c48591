package tool

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
)

// BuildType represents how a tool's runnable artifact is produced.
type BuildType string

const (
	// BuildTypeCompiled covers tools built to a native binary (go build,
	// configure+make).
	BuildTypeCompiled BuildType = "compiled"

	// BuildTypeInterpretedDeps covers interpreted tools whose build step
	// installs runtime dependencies (pip install).
	BuildTypeInterpretedDeps BuildType = "interpreted-deps"

	// BuildTypeScripted covers tools driven by a script runtime with its own
	// packaging step (npm install / npm run build).
	BuildTypeScripted BuildType = "scripted"
)

// String returns the string representation of the BuildType.
func (b BuildType) String() string {
	return string(b)
}

// IsValid checks if the BuildType is a valid enum value.
func (b BuildType) IsValid() bool {
	switch b {
	case BuildTypeCompiled, BuildTypeInterpretedDeps, BuildTypeScripted:
		return true
	default:
		return false
	}
}

// MarshalJSON implements the json.Marshaler interface.
func (b BuildType) MarshalJSON() ([]byte, error) {
	if !b.IsValid() {
		return nil, fmt.Errorf("invalid build type: %s", b)
	}
	return json.Marshal(string(b))
}

// UnmarshalJSON implements the json.Unmarshaler interface.
func (b *BuildType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	parsed, err := ParseBuildType(s)
	if err != nil {
		return err
	}

	*b = parsed
	return nil
}

// AllBuildTypes returns a slice containing all valid BuildType values.
func AllBuildTypes() []BuildType {
	return []BuildType{
		BuildTypeCompiled,
		BuildTypeInterpretedDeps,
		BuildTypeScripted,
	}
}

// ParseBuildType parses a string into a BuildType, returning an error if invalid.
func ParseBuildType(s string) (BuildType, error) {
	bt := BuildType(s)
	if !bt.IsValid() {
		return "", fmt.Errorf("invalid build type: %s", s)
	}
	return bt, nil
}

// ToolDescriptor is the identity and build/runtime contract for one external
// tool. Descriptors are created at startup from configuration and are
// immutable after registration; the enabled flag is the only field the
// registry mutates afterwards.
type ToolDescriptor struct {
	Name           string    `json:"name" yaml:"name" mapstructure:"name"`
	BuildType      BuildType `json:"build_type" yaml:"build_type" mapstructure:"build_type"`
	BuildCommand   []string  `json:"build_command,omitempty" yaml:"build_command,omitempty" mapstructure:"build_command"`
	ExecutablePath string    `json:"executable_path" yaml:"executable_path" mapstructure:"executable_path"`
	RunCommand     []string  `json:"run_command,omitempty" yaml:"run_command,omitempty" mapstructure:"run_command"`
	WorkDir        string    `json:"work_dir,omitempty" yaml:"work_dir,omitempty" mapstructure:"work_dir"`
	DefaultPort    int       `json:"default_port,omitempty" yaml:"default_port,omitempty" mapstructure:"default_port"`
	HealthURL      string    `json:"health_url,omitempty" yaml:"health_url,omitempty" mapstructure:"health_url"`
	Enabled        bool      `json:"enabled" yaml:"enabled" mapstructure:"enabled"`
	Optional       bool      `json:"optional" yaml:"optional" mapstructure:"optional"`
	Dependencies   []string  `json:"dependencies,omitempty" yaml:"dependencies,omitempty" mapstructure:"dependencies"`
}

// Validate validates the ToolDescriptor fields.
// Returns an error if required fields are missing or values are invalid.
func (d *ToolDescriptor) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("tool name is required")
	}

	if strings.ContainsAny(d.Name, " \t\n") {
		return fmt.Errorf("tool name must not contain whitespace: %q", d.Name)
	}

	if !d.BuildType.IsValid() {
		return fmt.Errorf("invalid build type for tool %s: %s", d.Name, d.BuildType)
	}

	if d.ExecutablePath == "" {
		return fmt.Errorf("executable path is required for tool %s", d.Name)
	}

	if d.DefaultPort != 0 && (d.DefaultPort < 1 || d.DefaultPort > 65535) {
		return fmt.Errorf("invalid default port for tool %s: %d (must be between 1 and 65535)", d.Name, d.DefaultPort)
	}

	for _, dep := range d.Dependencies {
		if dep == "" {
			return fmt.Errorf("tool %s has an empty dependency entry", d.Name)
		}
	}

	return nil
}

// HasPort reports whether the descriptor reserves a default port.
func (d *ToolDescriptor) HasPort() bool {
	return d.DefaultPort != 0
}

/// ResolveWorkDir returns the directory builds and launches run in: WorkDir
// when set, otherwise the directory of the executable path.
func (d *ToolDescriptor) ResolveWorkDir() string {
	if d.WorkDir != "" {
		return d.WorkDir
	}
	return filepath.Dir(d.ExecutablePath)
}

// Clone returns a deep copy of the descriptor. The registry hands out clones
// so callers can never mutate registered state.
func (d *ToolDescriptor) Clone() ToolDescriptor {
	out := *d
	if d.BuildCommand != nil {
		out.BuildCommand = append([]string(nil), d.BuildCommand...)
	}
	if d.RunCommand != nil {
		out.RunCommand = append([]string(nil), d.RunCommand...)
	}
	if d.Dependencies != nil {
		out.Dependencies = append([]string(nil), d.Dependencies...)
	}
	return out
}
