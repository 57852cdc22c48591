package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/KNIGHTPROJEKS-0/LANCELOTT/internal/tool"
)

// ConfigValidator validates configuration values.
type ConfigValidator interface {
	Validate(cfg *Config) error
}

// validatorImpl implements ConfigValidator using go-playground/validator.
type validatorImpl struct {
	validate *validator.Validate
}

// NewValidator creates a new ConfigValidator instance.
func NewValidator() ConfigValidator {
	return &validatorImpl{
		validate: validator.New(),
	}
}

// Validate validates the configuration and returns detailed error messages.
func (v *validatorImpl) Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("configuration is nil")
	}

	if err := v.validate.Struct(cfg); err != nil {
		validationErrs, ok := err.(validator.ValidationErrors)
		if !ok {
			return fmt.Errorf("validation error: %w", err)
		}

		var errorMessages []string
		for _, e := range validationErrs {
			errorMessages = append(errorMessages, formatValidationError(e))
		}

		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errorMessages, "\n  - "))
	}

	return validateCatalog(cfg.Catalog(), cfg.Ports)
}

// validateCatalog applies the cross-descriptor rules the struct tags
// cannot express: unique names, unique default ports, ports inside the
// allocation window, and per-descriptor field validity.
func validateCatalog(catalog []tool.ToolDescriptor, ports PortsConfig) error {
	seenNames := make(map[string]struct{}, len(catalog))
	seenPorts := make(map[int]string, len(catalog))

	for i := range catalog {
		d := &catalog[i]
		if err := d.Validate(); err != nil {
			return fmt.Errorf("configuration validation failed:\n  - tools[%d]: %v", i, err)
		}

		if _, dup := seenNames[d.Name]; dup {
			return fmt.Errorf("configuration validation failed:\n  - duplicate tool name %q", d.Name)
		}
		seenNames[d.Name] = struct{}{}

		if !d.HasPort() {
			continue
		}
		if owner, dup := seenPorts[d.DefaultPort]; dup {
			return fmt.Errorf("configuration validation failed:\n  - tools %s and %s share default port %d", owner, d.Name, d.DefaultPort)
		}
		seenPorts[d.DefaultPort] = d.Name
		if d.DefaultPort < ports.Base || d.DefaultPort >= ports.Base+ports.Window {
			return fmt.Errorf("configuration validation failed:\n  - tool %s default port %d is outside the allocation window [%d, %d)",
				d.Name, d.DefaultPort, ports.Base, ports.Base+ports.Window)
		}
	}

	return nil
}

// formatValidationError formats a single validation error with field
// path and details.
func formatValidationError(e validator.FieldError) string {
	fieldPath := formatFieldPath(e.Namespace())

	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fieldPath)
	case "min":
		return fmt.Sprintf("%s must be at least %s (got: %v)", fieldPath, e.Param(), e.Value())
	case "max":
		return fmt.Sprintf("%s must be at most %s (got: %v)", fieldPath, e.Param(), e.Value())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s] (got: %v)", fieldPath, e.Param(), e.Value())
	default:
		return fmt.Sprintf("%s failed validation '%s' (got: %v)", fieldPath, e.Tag(), e.Value())
	}
}

// formatFieldPath converts validator namespace to a config key path.
// Example: "Config.Core.MaxConcurrentScans" -> "core.max_concurrent_scans"
func formatFieldPath(namespace string) string {
	parts := strings.Split(namespace, ".")
	if len(parts) <= 1 {
		return namespace
	}

	result := make([]string, 0, len(parts)-1)
	for i := 1; i < len(parts); i++ {
		result = append(result, camelToSnake(parts[i]))
	}

	return strings.Join(result, ".")
}

// camelToSnake converts CamelCase to snake_case.
func camelToSnake(s string) string {
	var result strings.Builder
	for i, r := range s {
		if i > 0 && r >= 'A' && r <= 'Z' {
			result.WriteRune('_')
		}
		result.WriteRune(r)
	}
	return strings.ToLower(result.String())
}
