// Package build turns tool descriptors into runnable artifacts. Builds run
// through the execution engine as ordered argv stages, are cached by input
// fingerprint, and record their outcome instead of leaving partial state.
package build

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/KNIGHTPROJEKS-0/LANCELOTT/internal/execution"
	"github.com/KNIGHTPROJEKS-0/LANCELOTT/internal/tool"
	"github.com/KNIGHTPROJEKS-0/LANCELOTT/internal/types"
)

const (
	// DefaultBuildTimeout caps a single tool build across all its stages.
	DefaultBuildTimeout = 10 * time.Minute

	// DefaultBuildParallelism bounds how many tools BuildAll compiles at
	// once.
	DefaultBuildParallelism = 2

	// logTailBytes caps the retained build log.
	logTailBytes = 64 * 1024
)

// Span names for build operations.
const (
	SpanBuildTool = "lancelott.build.tool"
	SpanBuildAll  = "lancelott.build.all"
)

// BuildAllOptions filters and tunes a BuildAll pass.
type BuildAllOptions struct {
	// Force rebuilds tools even when their cached build is current.
	Force bool
	// BuildType limits the pass to one build type when non-empty.
	BuildType tool.BuildType
	// SkipOptional leaves optional tools out of the pass.
	SkipOptional bool
	// Parallelism bounds concurrent builds; zero means the default.
	Parallelism int
}

// BuildManager builds tools and tracks their build state.
type BuildManager interface {
	// Build builds one tool. The returned record always reflects the
	// outcome; the error is an UnknownToolError for unregistered names or
	// a BuildFailedError mirroring a Failed record.
	Build(ctx context.Context, name string, force bool) (BuildRecord, error)

	// BuildAll builds every enabled tool matching opts, continuing past
	// individual failures. Records come back in tool-name order.
	BuildAll(ctx context.Context, opts BuildAllOptions) ([]BuildRecord, error)

	// Record returns the build record for a tool, if any build was
	// attempted.
	Record(name string) (BuildRecord, bool)

	// Records returns a copy of all build records keyed by tool name.
	Records() map[string]BuildRecord
}

// DefaultBuildManager is the standard BuildManager implementation.
type DefaultBuildManager struct {
	registry tool.ToolRegistry
	exec     execution.ExecutionEngine
	logger   *slog.Logger
	tracer   trace.Tracer
	timeout  time.Duration

	mu       sync.Mutex
	records  map[string]BuildRecord
	inflight map[string]*inflightBuild
}

// inflightBuild coalesces concurrent Build calls for the same tool. record
// and err are set before done is closed.
type inflightBuild struct {
	done   chan struct{}
	record BuildRecord
	err    error
}

// ManagerOption configures a DefaultBuildManager.
type ManagerOption func(*DefaultBuildManager)

// WithTimeout sets the per-tool build timeout.
func WithTimeout(d time.Duration) ManagerOption {
	return func(m *DefaultBuildManager) {
		if d > 0 {
			m.timeout = d
		}
	}
}

// WithLogger sets the manager logger.
func WithLogger(logger *slog.Logger) ManagerOption {
	return func(m *DefaultBuildManager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// NewBuildManager creates a build manager on top of the given registry and
// execution engine.
func NewBuildManager(registry tool.ToolRegistry, exec execution.ExecutionEngine, opts ...ManagerOption) *DefaultBuildManager {
	m := &DefaultBuildManager{
		registry: registry,
		exec:     exec,
		logger:   slog.Default().With("component", "build"),
		tracer:   otel.GetTracerProvider().Tracer("lancelott.build"),
		timeout:  DefaultBuildTimeout,
		records:  make(map[string]BuildRecord),
		inflight: make(map[string]*inflightBuild),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Build builds one tool, reusing a current cached build unless force is set.
// Concurrent calls for the same tool share a single build.
func (m *DefaultBuildManager) Build(ctx context.Context, name string, force bool) (BuildRecord, error) {
	ctx, span := m.tracer.Start(ctx, SpanBuildTool)
	defer span.End()
	span.SetAttributes(
		attribute.String("lancelott.tool.name", name),
		attribute.Bool("lancelott.build.force", force),
	)

	desc, err := m.registry.Get(name)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return BuildRecord{}, err
	}

	fingerprint := Fingerprint(desc)

	m.mu.Lock()
	if call, ok := m.inflight[name]; ok {
		m.mu.Unlock()
		span.SetAttributes(attribute.Bool("lancelott.build.joined", true))
		select {
		case <-call.done:
			return call.record, call.err
		case <-ctx.Done():
			record, _ := m.Record(name)
			return record, ctx.Err()
		}
	}

	prior, hasPrior := m.records[name]
	if !force && hasPrior && prior.Status == BuildStatusBuilt && prior.Fingerprint == fingerprint {
		m.mu.Unlock()
		span.SetAttributes(attribute.Bool("lancelott.build.cached", true))
		m.logger.Debug("build cache hit", "tool", name, "fingerprint", fingerprint[:12])
		return prior, nil
	}

	call := &inflightBuild{done: make(chan struct{})}
	m.inflight[name] = call

	building := BuildRecord{
		ToolName:    name,
		Status:      BuildStatusBuilding,
		Fingerprint: fingerprint,
	}
	if hasPrior {
		building.LastBuildTime = prior.LastBuildTime
	}
	m.records[name] = building
	m.mu.Unlock()

	record, buildErr := m.runBuild(ctx, desc, fingerprint)

	m.mu.Lock()
	m.records[name] = record
	delete(m.inflight, name)
	m.mu.Unlock()

	call.record = record
	call.err = buildErr
	close(call.done)

	if buildErr != nil {
		span.RecordError(buildErr)
		span.SetStatus(codes.Error, buildErr.Error())
		m.logger.Warn("build failed",
			"tool", name,
			"duration", record.Duration,
			"error", buildErr)
	} else {
		m.logger.Info("build succeeded",
			"tool", name,
			"duration", record.Duration,
			"artifact", record.ArtifactPath)
	}
	return record, buildErr
}

// runBuild executes the tool's build stages in order and produces the final
// record. It never leaves a record in Building.
func (m *DefaultBuildManager) runBuild(ctx context.Context, desc tool.ToolDescriptor, fingerprint string) (BuildRecord, error) {
	start := time.Now()
	now := time.Now()
	record := BuildRecord{
		ToolName:      desc.Name,
		Fingerprint:   fingerprint,
		LastBuildTime: &now,
	}

	stages := desc.BuildStages()
	if len(stages) == 0 {
		record.Status = BuildStatusBuilt
		record.LogTail = "no build step\n"
		record.ArtifactPath = desc.ExecutablePath
		record.Duration = time.Since(start)
		return record, nil
	}

	deadline := start.Add(m.timeout)
	workDir := desc.ResolveWorkDir()

	var log strings.Builder
	for i, stage := range stages {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return m.failBuild(record, start, &log,
				types.NewBuildFailedError(desc.Name, fmt.Errorf("build timed out after %s", m.timeout)))
		}

		fmt.Fprintf(&log, "$ %s\n", strings.Join(stage, " "))

		handle, err := m.exec.Launch(ctx, execution.LaunchSpec{
			ToolName: desc.Name,
			Command:  stage,
			WorkDir:  workDir,
			Timeout:  remaining,
		})
		if err != nil {
			return m.failBuild(record, start, &log, types.NewBuildFailedError(desc.Name, err))
		}

		result, waitErr := handle.Wait(ctx)
		appendStageOutput(&log, result)
		if waitErr != nil {
			handle.Cancel()
			return m.failBuild(record, start, &log,
				types.NewBuildFailedError(desc.Name, fmt.Errorf("build interrupted: %w", waitErr)))
		}
		if result.Status != execution.StatusCompleted {
			detail := fmt.Errorf("stage %d/%d %q: %s (exit %d)",
				i+1, len(stages), stage[0], result.Status, result.ExitCode)
			return m.failBuild(record, start, &log, types.NewBuildFailedError(desc.Name, detail))
		}
	}

	// Compiled tools must leave a binary behind; for interpreted and
	// scripted tools the executable is the source file itself.
	if desc.BuildType == tool.BuildTypeCompiled {
		if _, err := os.Stat(desc.ExecutablePath); err != nil {
			return m.failBuild(record, start, &log,
				types.NewBuildFailedError(desc.Name, fmt.Errorf("artifact not found at %s", desc.ExecutablePath)))
		}
	}

	record.Status = BuildStatusBuilt
	record.ArtifactPath = desc.ExecutablePath
	record.LogTail = tailString(log.String(), logTailBytes)
	record.Duration = time.Since(start)
	return record, nil
}

func (m *DefaultBuildManager) failBuild(record BuildRecord, start time.Time, log *strings.Builder, err error) (BuildRecord, error) {
	record.Status = BuildStatusFailed
	record.Error = err.Error()
	record.LogTail = tailString(log.String(), logTailBytes)
	record.Duration = time.Since(start)
	return record, err
}

// BuildAll builds every enabled tool matching opts with bounded parallelism.
// Individual failures are captured in their records; the only returned error
// is context cancellation.
func (m *DefaultBuildManager) BuildAll(ctx context.Context, opts BuildAllOptions) ([]BuildRecord, error) {
	ctx, span := m.tracer.Start(ctx, SpanBuildAll)
	defer span.End()

	var targets []tool.ToolDescriptor
	for _, desc := range m.registry.ListEnabled() {
		if opts.BuildType != "" && desc.BuildType != opts.BuildType {
			continue
		}
		if opts.SkipOptional && desc.Optional {
			continue
		}
		targets = append(targets, desc)
	}

	span.SetAttributes(attribute.Int("lancelott.build.targets", len(targets)))
	m.logger.Info("building tools", "count", len(targets), "force", opts.Force)

	parallelism := opts.Parallelism
	if parallelism <= 0 {
		parallelism = DefaultBuildParallelism
	}

	results := make([]BuildRecord, len(targets))
	var g errgroup.Group
	g.SetLimit(parallelism)
	for i, desc := range targets {
		g.Go(func() error {
			record, err := m.Build(ctx, desc.Name, opts.Force)
			if record.ToolName == "" {
				record = BuildRecord{ToolName: desc.Name, Status: BuildStatusFailed}
				if err != nil {
					record.Error = err.Error()
				}
			}
			results[i] = record
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for _, record := range results {
		if record.Status != BuildStatusBuilt {
			failed++
		}
	}
	span.SetAttributes(attribute.Int("lancelott.build.failed", failed))
	if failed > 0 {
		span.SetStatus(codes.Error, fmt.Sprintf("%d of %d builds failed", failed, len(results)))
	}

	if err := ctx.Err(); err != nil {
		return results, err
	}
	return results, nil
}

// Record returns the build record for a tool, if one exists.
func (m *DefaultBuildManager) Record(name string) (BuildRecord, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	record, ok := m.records[name]
	return record, ok
}

// Records returns a copy of all build records keyed by tool name.
func (m *DefaultBuildManager) Records() map[string]BuildRecord {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]BuildRecord, len(m.records))
	for name, record := range m.records {
		out[name] = record
	}
	return out
}

// tailString keeps the last max bytes of s.
func tailString(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[len(s)-max:]
}

func appendStageOutput(log *strings.Builder, result execution.ExecutionRecord) {
	for _, chunk := range []string{result.StdoutTail, result.StderrTail} {
		if chunk == "" {
			continue
		}
		log.WriteString(chunk)
		if !strings.HasSuffix(chunk, "\n") {
			log.WriteString("\n")
		}
	}
}
