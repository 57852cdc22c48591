// Package execution launches external tool processes and supervises them to
// completion. Every run is capped by a deadline, asked to exit with SIGTERM
// before being killed, and summarized in a bounded ExecutionRecord that
// survives the process.
package execution

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"syscall"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/KNIGHTPROJEKS-0/LANCELOTT/internal/types"
)

const (
	// DefaultTimeout caps an execution that did not specify its own deadline.
	DefaultTimeout = time.Hour

	// DefaultGracePeriod is how long a process gets between SIGTERM and
	// SIGKILL.
	DefaultGracePeriod = 5 * time.Second

	// DefaultTailBytes is the per-stream capture limit.
	DefaultTailBytes = 64 * 1024
)

// Span names for execution operations.
const (
	SpanExecutionLaunch = "lancelott.execution.launch"
)

// LaunchSpec describes a single process run. Command is a plain argument
// vector; nothing is ever passed through a shell.
type LaunchSpec struct {
	ToolName string
	Command  []string
	WorkDir  string
	// Env holds KEY=VALUE pairs appended to the inherited environment.
	Env     []string
	Timeout time.Duration
}

// ExecutionEngine launches tool processes and supervises them to completion.
type ExecutionEngine interface {
	// Launch starts the process described by spec and returns a Handle for
	// it. The returned error covers request validation only; runtime
	// failures of the spawned tool, including a binary that cannot be
	// started, are recorded on the handle instead of raised.
	Launch(ctx context.Context, spec LaunchSpec) (*Handle, error)

	// History returns the engine's bounded per-tool execution history.
	History() *History
}

// DefaultExecutionEngine is the standard ExecutionEngine implementation.
type DefaultExecutionEngine struct {
	logger    *slog.Logger
	tracer    trace.Tracer
	grace     time.Duration
	tailBytes int
	history   *History
}

// EngineOption configures a DefaultExecutionEngine.
type EngineOption func(*DefaultExecutionEngine)

// WithGracePeriod sets the SIGTERM-to-SIGKILL window.
func WithGracePeriod(d time.Duration) EngineOption {
	return func(e *DefaultExecutionEngine) {
		if d > 0 {
			e.grace = d
		}
	}
}

// WithTailBytes sets the per-stream output capture limit.
func WithTailBytes(n int) EngineOption {
	return func(e *DefaultExecutionEngine) {
		if n > 0 {
			e.tailBytes = n
		}
	}
}

// WithHistoryDepth sets how many records are retained per tool.
func WithHistoryDepth(n int) EngineOption {
	return func(e *DefaultExecutionEngine) {
		e.history = NewHistory(n)
	}
}

// WithLogger sets the engine logger.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *DefaultExecutionEngine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewExecutionEngine creates an execution engine with the given options.
func NewExecutionEngine(opts ...EngineOption) *DefaultExecutionEngine {
	e := &DefaultExecutionEngine{
		logger:    slog.Default().With("component", "execution"),
		tracer:    otel.GetTracerProvider().Tracer("lancelott.execution"),
		grace:     DefaultGracePeriod,
		tailBytes: DefaultTailBytes,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.history == nil {
		e.history = NewHistory(DefaultHistoryDepth)
	}
	return e
}

// History returns the engine's execution history.
func (e *DefaultExecutionEngine) History() *History {
	return e.history
}

// Launch starts the process described by spec and supervises it in the
// background. Cancelling ctx, calling Handle.Cancel, or hitting the timeout
// all trigger the same SIGTERM, grace, SIGKILL sequence; only the recorded
// terminal status differs.
func (e *DefaultExecutionEngine) Launch(ctx context.Context, spec LaunchSpec) (*Handle, error) {
	ctx, span := e.tracer.Start(ctx, SpanExecutionLaunch)

	if spec.ToolName == "" {
		err := types.NewLaunchFailedError(spec.ToolName, fmt.Errorf("tool name is required"))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.End()
		return nil, err
	}
	if len(spec.Command) == 0 || spec.Command[0] == "" {
		err := types.NewLaunchFailedError(spec.ToolName, fmt.Errorf("command is empty"))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.End()
		return nil, err
	}

	timeout := spec.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	record := ExecutionRecord{
		ExecutionID: types.NewID(),
		ToolName:    spec.ToolName,
		Command:     append([]string(nil), spec.Command...),
		WorkDir:     spec.WorkDir,
		Status:      StatusQueued,
		ExitCode:    -1,
	}
	handle := newHandle(record)

	span.SetAttributes(
		attribute.String("lancelott.tool.name", spec.ToolName),
		attribute.String("lancelott.execution.id", record.ExecutionID.String()),
		attribute.String("lancelott.execution.binary", spec.Command[0]),
		attribute.Int64("lancelott.execution.timeout_ms", timeout.Milliseconds()),
	)

	// exec.Command rather than exec.CommandContext: context cancellation
	// must go through the graceful terminate sequence, not an immediate
	// kill.
	cmd := exec.Command(spec.Command[0], spec.Command[1:]...)
	cmd.Dir = spec.WorkDir
	env := os.Environ()
	env = append(env, spec.Env...)
	cmd.Env = env

	// New process group so signals aimed at the tool do not leak to the
	// engine and vice versa.
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true,
	}

	stdout := newTailBuffer(e.tailBytes)
	stderr := newTailBuffer(e.tailBytes)
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		// A binary that cannot be spawned is a failed execution, not a
		// launch error: callers treat it like any other tool failure.
		now := time.Now()
		handle.update(func(r *ExecutionRecord) {
			r.Status = StatusFailed
			r.CompletedAt = &now
			r.Error = err.Error()
		})
		close(handle.done)
		e.history.add(handle)

		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.String("lancelott.execution.status", StatusFailed.String()))
		span.End()

		e.logger.Warn("execution spawn failed",
			"tool", spec.ToolName,
			"execution_id", record.ExecutionID,
			"binary", spec.Command[0],
			"error", err)
		return handle, nil
	}

	started := time.Now()
	handle.update(func(r *ExecutionRecord) {
		r.Status = StatusRunning
		r.PID = cmd.Process.Pid
		r.StartedAt = started
	})
	e.history.add(handle)

	span.SetAttributes(attribute.Int("lancelott.execution.pid", cmd.Process.Pid))
	e.logger.Info("execution started",
		"tool", spec.ToolName,
		"execution_id", record.ExecutionID,
		"pid", cmd.Process.Pid,
		"timeout", timeout)

	go e.supervise(ctx, span, cmd, handle, timeout, stdout, stderr)

	return handle, nil
}

// supervise waits for the process to exit on its own, or terminates it on
// timeout, handle cancellation, or context cancellation.
func (e *DefaultExecutionEngine) supervise(ctx context.Context, span trace.Span, cmd *exec.Cmd, handle *Handle, timeout time.Duration, stdout, stderr *tailBuffer) {
	waitCh := make(chan error, 1)
	go func() {
		waitCh <- cmd.Wait()
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var (
		final   ExecutionStatus
		waitErr error
	)

	select {
	case waitErr = <-waitCh:
		if waitErr == nil {
			final = StatusCompleted
		} else {
			final = StatusFailed
		}
	case <-timer.C:
		waitErr = e.terminate(cmd.Process, waitCh)
		final = StatusTimedOut
	case <-handle.cancelCh:
		waitErr = e.terminate(cmd.Process, waitCh)
		final = StatusCancelled
	case <-ctx.Done():
		waitErr = e.terminate(cmd.Process, waitCh)
		final = StatusCancelled
	}

	exitCode := exitCodeFromError(waitErr)
	now := time.Now()

	handle.update(func(r *ExecutionRecord) {
		r.Status = final
		r.CompletedAt = &now
		r.ExitCode = exitCode
		r.StdoutTail = stdout.String()
		r.StderrTail = stderr.String()
		if final == StatusFailed && waitErr != nil {
			r.Error = waitErr.Error()
		}
	})
	record := handle.Record()
	close(handle.done)

	span.SetAttributes(
		attribute.String("lancelott.execution.status", final.String()),
		attribute.Int("lancelott.execution.exit_code", exitCode),
		attribute.Int64("lancelott.execution.duration_ms", record.Duration().Milliseconds()),
	)
	if final != StatusCompleted {
		span.SetStatus(codes.Error, fmt.Sprintf("execution %s", final))
	}
	span.End()

	if final == StatusCompleted {
		e.logger.Info("execution completed",
			"tool", record.ToolName,
			"execution_id", record.ExecutionID,
			"duration", record.Duration())
	} else {
		e.logger.Warn("execution finished",
			"tool", record.ToolName,
			"execution_id", record.ExecutionID,
			"status", final,
			"exit_code", exitCode,
			"duration", record.Duration())
	}
}

// terminate asks the process to exit with SIGTERM, waits up to the grace
// period, then kills it. It always returns the result of the process wait.
func (e *DefaultExecutionEngine) terminate(proc *os.Process, waitCh <-chan error) error {
	if err := proc.Signal(syscall.SIGTERM); err != nil && !errors.Is(err, os.ErrProcessDone) {
		e.logger.Warn("failed to signal process", "pid", proc.Pid, "error", err)
	}

	select {
	case err := <-waitCh:
		return err
	case <-time.After(e.grace):
	}

	if err := proc.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		e.logger.Warn("failed to kill process", "pid", proc.Pid, "error", err)
	}
	return <-waitCh
}

// exitCodeFromError maps a process wait error to a conventional exit code.
// Signal deaths map to 128 plus the signal number, matching shell behavior.
func exitCodeFromError(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && status.Signaled() {
			return 128 + int(status.Signal())
		}
		return exitErr.ExitCode()
	}
	return -1
}
