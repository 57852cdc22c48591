package types

import (
	"errors"
	"fmt"
	"time"
)

// EngineErrorCode represents specific error codes for orchestration engine
// operations.
type EngineErrorCode string

// Engine error codes
const (
	ErrCodeDuplicateTool     EngineErrorCode = "DUPLICATE_TOOL"
	ErrCodeUnknownTool       EngineErrorCode = "UNKNOWN_TOOL"
	ErrCodePortExhaustion    EngineErrorCode = "PORT_EXHAUSTION"
	ErrCodeBuildFailed       EngineErrorCode = "BUILD_FAILED"
	ErrCodeExecutionTimeout  EngineErrorCode = "EXECUTION_TIMEOUT"
	ErrCodeJobNotFound       EngineErrorCode = "JOB_NOT_FOUND"
	ErrCodeInvalidRequest    EngineErrorCode = "INVALID_REQUEST"
	ErrCodeInvalidDescriptor EngineErrorCode = "INVALID_DESCRIPTOR"
	ErrCodeInvalidConfig     EngineErrorCode = "INVALID_CONFIG"
	ErrCodeLaunchFailed      EngineErrorCode = "LAUNCH_FAILED"
	ErrCodeNotRunning        EngineErrorCode = "NOT_RUNNING"
	ErrCodeInternal          EngineErrorCode = "INTERNAL"
)

// EngineError represents a structured error for orchestration engine
// operations. It includes error code, message, underlying cause, the tool the
// error relates to, and additional context for debugging and error handling.
type EngineError struct {
	Code      EngineErrorCode // Error code for programmatic handling
	Message   string          // Human-readable error message
	Cause     error           // Underlying error (if any)
	Tool      string          // Tool name the error relates to
	Context   map[string]any  // Additional context for debugging
	Retryable bool            // Whether the operation can be retried
}

// Error implements the error interface, returning a formatted error message.
// Format: "[CODE] tool=name message" or "[CODE] tool=name message: cause".
func (e *EngineError) Error() string {
	msg := fmt.Sprintf("[%s]", e.Code)

	if e.Tool != "" {
		msg += fmt.Sprintf(" tool=%s", e.Tool)
	}

	msg += fmt.Sprintf(" %s", e.Message)

	if e.Cause != nil {
		msg += fmt.Sprintf(": %v", e.Cause)
	}

	return msg
}

// Unwrap returns the underlying cause error for error unwrapping chains.
// This enables using errors.Is() and errors.As() with wrapped errors.
func (e *EngineError) Unwrap() error {
	return e.Cause
}

// Is checks if the target error matches this error by error code.
// Returns true if target is an EngineError with the same Code.
func (e *EngineError) Is(target error) bool {
	var engErr *EngineError
	if errors.As(target, &engErr) {
		return e.Code == engErr.Code
	}
	return false
}

// WithContext adds additional context to the error for debugging.
// Returns the error for method chaining.
func (e *EngineError) WithContext(key string, value any) *EngineError {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// WithTool adds the tool name the error relates to.
// Returns the error for method chaining.
func (e *EngineError) WithTool(tool string) *EngineError {
	e.Tool = tool
	return e
}

// NewEngineError creates a new non-retryable EngineError with the given code and message.
func NewEngineError(code EngineErrorCode, message string) *EngineError {
	return &EngineError{
		Code:      code,
		Message:   message,
		Context:   make(map[string]any),
		Retryable: false,
	}
}

// WrapEngineError creates a new EngineError that wraps an existing error.
// The wrapped error is accessible via Unwrap() for error chain inspection.
func WrapEngineError(code EngineErrorCode, message string, cause error) *EngineError {
	return &EngineError{
		Code:      code,
		Message:   message,
		Cause:     cause,
		Context:   make(map[string]any),
		Retryable: false,
	}
}

// Helper constructors for common error scenarios

// NewDuplicateToolError creates a duplicate registration error.
// The reason distinguishes a name collision from a reserved-port collision.
func NewDuplicateToolError(name string, reason string) *EngineError {
	return &EngineError{
		Code:    ErrCodeDuplicateTool,
		Message: fmt.Sprintf("tool already registered: %s (%s)", name, reason),
		Tool:    name,
		Context: map[string]any{
			"tool":   name,
			"reason": reason,
		},
		Retryable: false,
	}
}

// NewUnknownToolError creates an unknown tool error.
// This is non-retryable as retrying won't make the tool exist.
func NewUnknownToolError(name string) *EngineError {
	return &EngineError{
		Code:    ErrCodeUnknownTool,
		Message: fmt.Sprintf("unknown tool: %s", name),
		Tool:    name,
		Context: map[string]any{
			"tool": name,
		},
		Retryable: false,
	}
}

// NewPortExhaustionError creates a port exhaustion error.
// This is retryable since leases held by finishing jobs free ports over time.
func NewPortExhaustionError(tool string, base, window int) *EngineError {
	return &EngineError{
		Code:    ErrCodePortExhaustion,
		Message: fmt.Sprintf("no free port in range [%d, %d)", base, base+window),
		Tool:    tool,
		Context: map[string]any{
			"tool":   tool,
			"base":   base,
			"window": window,
		},
		Retryable: true,
	}
}

// NewBuildFailedError creates a build failure error.
// Batch callers record this per tool rather than aborting.
func NewBuildFailedError(tool string, cause error) *EngineError {
	return &EngineError{
		Code:    ErrCodeBuildFailed,
		Message: fmt.Sprintf("build failed for tool: %s", tool),
		Cause:   cause,
		Tool:    tool,
		Context: map[string]any{
			"tool": tool,
		},
		Retryable: false,
	}
}

// NewExecutionTimeoutError creates an execution timeout error.
// Recorded on the execution record; never raised to scan callers.
func NewExecutionTimeoutError(tool string, timeout time.Duration) *EngineError {
	return &EngineError{
		Code:    ErrCodeExecutionTimeout,
		Message: fmt.Sprintf("execution exceeded timeout of %s", timeout),
		Tool:    tool,
		Context: map[string]any{
			"tool":    tool,
			"timeout": timeout.String(),
		},
		Retryable: true,
	}
}

// NewJobNotFoundError creates a job not found error.
// Covers both unknown job IDs and jobs expired out of retention.
func NewJobNotFoundError(jobID ID) *EngineError {
	return &EngineError{
		Code:    ErrCodeJobNotFound,
		Message: fmt.Sprintf("job not found: %s", jobID),
		Context: map[string]any{
			"job_id": jobID.String(),
		},
		Retryable: false,
	}
}

// NewInvalidRequestError creates an invalid request error for malformed
// caller input, surfaced before any process is spawned.
func NewInvalidRequestError(message string, cause error) *EngineError {
	return &EngineError{
		Code:      ErrCodeInvalidRequest,
		Message:   message,
		Cause:     cause,
		Context:   make(map[string]any),
		Retryable: false,
	}
}

// NewInvalidDescriptorError creates an invalid descriptor error.
// This is non-retryable as the descriptor needs to be fixed.
func NewInvalidDescriptorError(message string, cause error) *EngineError {
	return &EngineError{
		Code:      ErrCodeInvalidDescriptor,
		Message:   message,
		Cause:     cause,
		Context:   make(map[string]any),
		Retryable: false,
	}
}

// NewInvalidConfigError creates a configuration validation error.
// This is non-retryable as the configuration needs to be fixed.
func NewInvalidConfigError(message string, cause error) *EngineError {
	return &EngineError{
		Code:      ErrCodeInvalidConfig,
		Message:   message,
		Cause:     cause,
		Context:   make(map[string]any),
		Retryable: false,
	}
}

// NewLaunchFailedError creates a process launch failure error.
// This covers spawn failures (missing binary, permissions), not non-zero
// exits of a started process.
func NewLaunchFailedError(tool string, cause error) *EngineError {
	return &EngineError{
		Code:    ErrCodeLaunchFailed,
		Message: fmt.Sprintf("failed to launch process for tool: %s", tool),
		Cause:   cause,
		Tool:    tool,
		Context: map[string]any{
			"tool": tool,
		},
		Retryable: false,
	}
}

// NewNotRunningError creates a not running error.
// This is non-retryable as the engine needs to be started first.
func NewNotRunningError(component string) *EngineError {
	return &EngineError{
		Code:    ErrCodeNotRunning,
		Message: fmt.Sprintf("%s is not running", component),
		Context: map[string]any{
			"component": component,
		},
		Retryable: false,
	}
}

// Code inspection helpers built on errors.As, for callers that branch on the
// failure class without constructing a template error.

// ErrorCode extracts the EngineErrorCode from err, or "" if err is not an
// EngineError.
func ErrorCode(err error) EngineErrorCode {
	var engErr *EngineError
	if errors.As(err, &engErr) {
		return engErr.Code
	}
	return ""
}

// IsDuplicateTool reports whether err is an EngineError with code DUPLICATE_TOOL.
func IsDuplicateTool(err error) bool {
	return ErrorCode(err) == ErrCodeDuplicateTool
}

// IsUnknownTool reports whether err is an EngineError with code UNKNOWN_TOOL.
func IsUnknownTool(err error) bool {
	return ErrorCode(err) == ErrCodeUnknownTool
}

// IsPortExhaustion reports whether err is an EngineError with code PORT_EXHAUSTION.
func IsPortExhaustion(err error) bool {
	return ErrorCode(err) == ErrCodePortExhaustion
}

// IsJobNotFound reports whether err is an EngineError with code JOB_NOT_FOUND.
func IsJobNotFound(err error) bool {
	return ErrorCode(err) == ErrCodeJobNotFound
}

// IsBuildFailed reports whether err is an EngineError with code BUILD_FAILED.
func IsBuildFailed(err error) bool {
	return ErrorCode(err) == ErrCodeBuildFailed
}
