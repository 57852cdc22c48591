package internal

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/spf13/cobra"

	"github.com/KNIGHTPROJEKS-0/LANCELOTT/internal/types"
)

func TestCLIError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *CLIError
		expected string
	}{
		{
			name: "error without cause",
			err: &CLIError{
				Code:    ExitError,
				Message: "something went wrong",
			},
			expected: "something went wrong",
		},
		{
			name: "error with cause",
			err: &CLIError{
				Code:    ExitError,
				Message: "operation failed",
				Cause:   errors.New("underlying error"),
			},
			expected: "operation failed: underlying error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Error() != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, tt.err.Error())
			}
		})
	}
}

func TestCLIError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := WrapError(ExitConfigError, "wrapper", cause)

	if unwrapped := err.Unwrap(); unwrapped != cause {
		t.Errorf("expected unwrapped error to be %v, got %v", cause, unwrapped)
	}
	if err.Code != ExitConfigError {
		t.Errorf("expected code %d, got %d", ExitConfigError, err.Code)
	}

	noCause := NewCLIError(ExitError, "no cause")
	if noCause.Unwrap() != nil {
		t.Error("expected Unwrap to return nil for error without cause")
	}
}

func newTestCommand() (*cobra.Command, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	cmd := &cobra.Command{Use: "test"}
	cmd.SetErr(buf)
	cmd.SetOut(buf)
	return cmd, buf
}

func TestHandleError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{
			name:     "nil error",
			err:      nil,
			expected: ExitSuccess,
		},
		{
			name:     "context cancelled",
			err:      context.Canceled,
			expected: ExitCancelled,
		},
		{
			name:     "context deadline exceeded",
			err:      context.DeadlineExceeded,
			expected: ExitTimeout,
		},
		{
			name:     "CLI error carries its own code",
			err:      NewCLIError(ExitToolFailures, "2 of 3 tools failed"),
			expected: ExitToolFailures,
		},
		{
			name:     "unknown tool maps to engine error",
			err:      types.NewUnknownToolError("ghost"),
			expected: ExitEngineError,
		},
		{
			name:     "build failure maps to engine error",
			err:      types.NewBuildFailedError("nmap", errors.New("make: not found")),
			expected: ExitEngineError,
		},
		{
			name:     "execution timeout maps to timeout",
			err:      types.NewExecutionTimeoutError("argus", 0),
			expected: ExitTimeout,
		},
		{
			name:     "invalid config maps to config error",
			err:      types.NewInvalidConfigError("bad yaml", nil),
			expected: ExitConfigError,
		},
		{
			name:     "job not found is a general error",
			err:      types.NewJobNotFoundError(types.NewID()),
			expected: ExitError,
		},
		{
			name:     "generic error",
			err:      errors.New("boom"),
			expected: ExitError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, _ := newTestCommand()
			if got := HandleError(cmd, tt.err); got != tt.expected {
				t.Errorf("expected exit code %d, got %d", tt.expected, got)
			}
		})
	}
}

func TestHandleError_WrappedEngineError(t *testing.T) {
	cmd, buf := newTestCommand()

	wrapped := errors.Join(errors.New("scan aborted"), types.NewUnknownToolError("ghost"))
	if got := HandleError(cmd, wrapped); got != ExitEngineError {
		t.Errorf("expected exit code %d, got %d", ExitEngineError, got)
	}
	if !bytes.Contains(buf.Bytes(), []byte("unknown tool")) {
		t.Errorf("expected error output to mention the unknown tool, got %q", buf.String())
	}
}
