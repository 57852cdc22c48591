// Package scan fans a target out across multiple security tools and tracks
// each request as a single job with an aggregate terminal state. One failing
// tool never halts its siblings; the job label reflects how many succeeded.
package scan

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/KNIGHTPROJEKS-0/LANCELOTT/internal/execution"
	"github.com/KNIGHTPROJEKS-0/LANCELOTT/internal/portalloc"
	"github.com/KNIGHTPROJEKS-0/LANCELOTT/internal/tool"
	"github.com/KNIGHTPROJEKS-0/LANCELOTT/internal/types"
)

const (
	// DefaultMaxConcurrent bounds in-flight tool executions across all jobs.
	DefaultMaxConcurrent = 8

	// DefaultScanTimeout caps each per-tool execution within a job.
	DefaultScanTimeout = time.Hour

	// DefaultRetention is how long terminal jobs stay queryable.
	DefaultRetention = time.Hour
)

// Span names for scan operations.
const (
	SpanScanSubmit = "lancelott.scan.submit"
	SpanScanCancel = "lancelott.scan.cancel"
)

// Orchestrator accepts scan requests and drives them to a terminal state.
type Orchestrator interface {
	// Submit validates the request and starts the job. Validation covers
	// the target and every tool name; nothing launches if any name is
	// unknown.
	Submit(ctx context.Context, target string, toolNames []string) (ScanJob, error)

	// Status returns the current job summary.
	Status(jobID types.ID) (ScanJob, error)

	// Cancel requests job cancellation and acknowledges immediately. It is
	// a no-op on terminal jobs.
	Cancel(ctx context.Context, jobID types.ID) (ScanJob, error)

	// Wait blocks until the job reaches a terminal state or ctx is done.
	Wait(ctx context.Context, jobID types.ID) (ScanJob, error)

	// Jobs returns summaries of all retained jobs, oldest first.
	Jobs() []ScanJob

	// Shutdown cancels every active job and waits for them to settle.
	Shutdown(ctx context.Context) error
}

// DefaultOrchestrator is the standard Orchestrator implementation.
type DefaultOrchestrator struct {
	registry tool.ToolRegistry
	ports    portalloc.PortAllocator
	exec     execution.ExecutionEngine
	logger   *slog.Logger
	tracer   trace.Tracer

	scanTimeout time.Duration
	retention   time.Duration

	// sem bounds concurrent tool executions across all jobs.
	sem chan struct{}

	mu   sync.Mutex
	jobs map[types.ID]*jobState
}

// jobState is the orchestrator's live view of one job. job.Target,
// job.RequestedTools, and job.CreatedAt are immutable after creation.
type jobState struct {
	mu        sync.Mutex
	job       ScanJob
	records   map[string]execution.ExecutionRecord
	handles   map[string]*execution.Handle
	cancelled bool
	cancel    context.CancelFunc
	done      chan struct{}
}

// OrchestratorOption configures a DefaultOrchestrator.
type OrchestratorOption func(*DefaultOrchestrator)

// WithMaxConcurrent bounds in-flight tool executions across all jobs.
func WithMaxConcurrent(n int) OrchestratorOption {
	return func(o *DefaultOrchestrator) {
		if n > 0 {
			o.sem = make(chan struct{}, n)
		}
	}
}

// WithScanTimeout caps each per-tool execution.
func WithScanTimeout(d time.Duration) OrchestratorOption {
	return func(o *DefaultOrchestrator) {
		if d > 0 {
			o.scanTimeout = d
		}
	}
}

// WithRetention sets how long terminal jobs stay queryable.
func WithRetention(d time.Duration) OrchestratorOption {
	return func(o *DefaultOrchestrator) {
		if d > 0 {
			o.retention = d
		}
	}
}

// WithOrchestratorLogger sets the orchestrator logger.
func WithOrchestratorLogger(logger *slog.Logger) OrchestratorOption {
	return func(o *DefaultOrchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// NewOrchestrator creates an orchestrator over the given registry, port
// allocator, and execution engine.
func NewOrchestrator(registry tool.ToolRegistry, ports portalloc.PortAllocator, exec execution.ExecutionEngine, opts ...OrchestratorOption) *DefaultOrchestrator {
	o := &DefaultOrchestrator{
		registry:    registry,
		ports:       ports,
		exec:        exec,
		logger:      slog.Default().With("component", "orchestrator"),
		tracer:      otel.GetTracerProvider().Tracer("lancelott.scan"),
		scanTimeout: DefaultScanTimeout,
		retention:   DefaultRetention,
		sem:         make(chan struct{}, DefaultMaxConcurrent),
		jobs:        make(map[types.ID]*jobState),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Submit validates the request, registers the job, and launches it in the
// background. An empty tool list means every enabled tool.
func (o *DefaultOrchestrator) Submit(ctx context.Context, target string, toolNames []string) (ScanJob, error) {
	_, span := o.tracer.Start(ctx, SpanScanSubmit)
	defer span.End()
	span.SetAttributes(attribute.String("lancelott.scan.target", target))

	if err := tool.ValidateTarget(target); err != nil {
		reqErr := types.NewInvalidRequestError("invalid scan target", err)
		span.RecordError(reqErr)
		span.SetStatus(codes.Error, reqErr.Error())
		return ScanJob{}, reqErr
	}

	names := dedupe(toolNames)
	if len(names) == 0 {
		for _, desc := range o.registry.ListEnabled() {
			names = append(names, desc.Name)
		}
	}
	if len(names) == 0 {
		err := types.NewInvalidRequestError("no tools requested and none enabled", nil)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return ScanJob{}, err
	}

	// The all-or-nothing validation point: every name must resolve before
	// anything launches.
	descs := make([]tool.ToolDescriptor, 0, len(names))
	for _, name := range names {
		desc, err := o.registry.Get(name)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return ScanJob{}, err
		}
		if !desc.Enabled {
			err := types.NewInvalidRequestError(fmt.Sprintf("tool %s is disabled", name), nil)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return ScanJob{}, err
		}
		descs = append(descs, desc)
	}

	jobCtx, cancel := context.WithCancel(context.Background())
	state := &jobState{
		job: ScanJob{
			JobID:          types.NewID(),
			Target:         target,
			RequestedTools: names,
			Status:         JobPending,
			CreatedAt:      time.Now(),
		},
		records: make(map[string]execution.ExecutionRecord),
		handles: make(map[string]*execution.Handle),
		cancel:  cancel,
		done:    make(chan struct{}),
	}

	o.mu.Lock()
	o.sweepExpiredLocked()
	o.jobs[state.job.JobID] = state
	o.mu.Unlock()

	span.SetAttributes(
		attribute.String("lancelott.scan.job_id", state.job.JobID.String()),
		attribute.Int("lancelott.scan.tools", len(descs)),
	)
	o.logger.Info("scan job accepted",
		"job_id", state.job.JobID,
		"target", target,
		"tools", names)

	go o.run(jobCtx, state, descs)

	return state.snapshot(), nil
}

// run drives one job: fan out, join, derive the terminal status.
func (o *DefaultOrchestrator) run(ctx context.Context, state *jobState, descs []tool.ToolDescriptor) {
	state.mu.Lock()
	state.job.Status = JobRunning
	state.mu.Unlock()

	var wg sync.WaitGroup
	for _, desc := range descs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			select {
			case o.sem <- struct{}{}:
				defer func() { <-o.sem }()
			case <-ctx.Done():
				state.recordSynthetic(desc.Name, execution.StatusCancelled, "cancelled before launch")
				return
			}
			o.runTool(ctx, state, desc)
		}()
	}
	wg.Wait()

	state.mu.Lock()
	records := state.collectLocked()
	status := computeTerminal(records, state.cancelled)
	now := time.Now()
	state.job.Status = status
	state.job.FinishedAt = &now
	jobID := state.job.JobID
	state.mu.Unlock()
	close(state.done)

	if status == JobCompleted {
		o.logger.Info("scan job completed", "job_id", jobID, "tools", len(records))
	} else {
		o.logger.Warn("scan job finished", "job_id", jobID, "status", status)
	}
}

// runTool leases a port if the tool needs one, launches the execution, and
// waits for it to settle. Failures stay local to this tool.
func (o *DefaultOrchestrator) runTool(ctx context.Context, state *jobState, desc tool.ToolDescriptor) {
	var env []string
	if desc.HasPort() {
		lease, err := o.ports.Acquire(desc.Name, desc.DefaultPort)
		if err != nil {
			o.logger.Warn("port lease failed", "job_id", state.job.JobID, "tool", desc.Name, "error", err)
			state.recordSynthetic(desc.Name, execution.StatusFailed, err.Error())
			return
		}
		defer o.ports.Release(lease.LeaseID)
		env = append(env, fmt.Sprintf("LANCELOTT_PORT=%d", lease.Port))
	}

	command, err := desc.LaunchCommand(state.job.Target)
	if err != nil {
		state.recordSynthetic(desc.Name, execution.StatusFailed, err.Error())
		return
	}

	handle, err := o.exec.Launch(ctx, execution.LaunchSpec{
		ToolName: desc.Name,
		Command:  command,
		WorkDir:  desc.ResolveWorkDir(),
		Env:      env,
		Timeout:  o.scanTimeout,
	})
	if err != nil {
		state.recordSynthetic(desc.Name, execution.StatusFailed, err.Error())
		return
	}

	state.mu.Lock()
	state.handles[desc.Name] = handle
	state.mu.Unlock()

	<-handle.Done()
}

// Status returns the current summary for one job.
func (o *DefaultOrchestrator) Status(jobID types.ID) (ScanJob, error) {
	state, err := o.lookup(jobID)
	if err != nil {
		return ScanJob{}, err
	}
	return state.snapshot(), nil
}

// Cancel requests cancellation of a job. Completed per-tool results are
// retained; still-running executions terminate as Cancelled.
func (o *DefaultOrchestrator) Cancel(ctx context.Context, jobID types.ID) (ScanJob, error) {
	_, span := o.tracer.Start(ctx, SpanScanCancel)
	defer span.End()
	span.SetAttributes(attribute.String("lancelott.scan.job_id", jobID.String()))

	state, err := o.lookup(jobID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return ScanJob{}, err
	}

	state.mu.Lock()
	if state.job.Status.IsTerminal() {
		state.mu.Unlock()
		span.SetAttributes(attribute.Bool("lancelott.scan.already_terminal", true))
		return state.snapshot(), nil
	}
	state.cancelled = true
	handles := make([]*execution.Handle, 0, len(state.handles))
	for _, handle := range state.handles {
		handles = append(handles, handle)
	}
	state.mu.Unlock()

	state.cancel()
	for _, handle := range handles {
		handle.Cancel()
	}

	o.logger.Info("scan job cancelled", "job_id", jobID)
	return state.snapshot(), nil
}

// Wait blocks until the job settles or ctx expires.
func (o *DefaultOrchestrator) Wait(ctx context.Context, jobID types.ID) (ScanJob, error) {
	state, err := o.lookup(jobID)
	if err != nil {
		return ScanJob{}, err
	}

	select {
	case <-state.done:
		return state.snapshot(), nil
	case <-ctx.Done():
		return state.snapshot(), ctx.Err()
	}
}

// Jobs returns all retained job summaries, oldest first.
func (o *DefaultOrchestrator) Jobs() []ScanJob {
	o.mu.Lock()
	o.sweepExpiredLocked()
	states := make([]*jobState, 0, len(o.jobs))
	for _, state := range o.jobs {
		states = append(states, state)
	}
	o.mu.Unlock()

	jobs := make([]ScanJob, 0, len(states))
	for _, state := range states {
		jobs = append(jobs, state.snapshot())
	}
	sort.Slice(jobs, func(i, j int) bool {
		if !jobs[i].CreatedAt.Equal(jobs[j].CreatedAt) {
			return jobs[i].CreatedAt.Before(jobs[j].CreatedAt)
		}
		return jobs[i].JobID < jobs[j].JobID
	})
	return jobs
}

// Shutdown cancels all active jobs and waits for them to settle.
func (o *DefaultOrchestrator) Shutdown(ctx context.Context) error {
	o.mu.Lock()
	states := make([]*jobState, 0, len(o.jobs))
	for _, state := range o.jobs {
		states = append(states, state)
	}
	o.mu.Unlock()

	for _, state := range states {
		state.mu.Lock()
		terminal := state.job.Status.IsTerminal()
		if !terminal {
			state.cancelled = true
		}
		handles := make([]*execution.Handle, 0, len(state.handles))
		for _, handle := range state.handles {
			handles = append(handles, handle)
		}
		state.mu.Unlock()

		if !terminal {
			state.cancel()
			for _, handle := range handles {
				handle.Cancel()
			}
		}
	}

	for _, state := range states {
		select {
		case <-state.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// lookup finds a retained job, sweeping expired ones first.
func (o *DefaultOrchestrator) lookup(jobID types.ID) (*jobState, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.sweepExpiredLocked()
	state, ok := o.jobs[jobID]
	if !ok {
		return nil, types.NewJobNotFoundError(jobID)
	}
	return state, nil
}

// sweepExpiredLocked drops terminal jobs past retention. Caller holds o.mu.
func (o *DefaultOrchestrator) sweepExpiredLocked() {
	cutoff := time.Now().Add(-o.retention)
	for id, state := range o.jobs {
		state.mu.Lock()
		expired := state.job.Status.IsTerminal() &&
			state.job.FinishedAt != nil &&
			state.job.FinishedAt.Before(cutoff)
		state.mu.Unlock()
		if expired {
			delete(o.jobs, id)
		}
	}
}

// recordSynthetic stores a terminal record for a tool that never reached the
// execution engine, such as a port lease failure.
func (s *jobState) recordSynthetic(toolName string, status execution.ExecutionStatus, detail string) {
	now := time.Now()
	record := execution.ExecutionRecord{
		ExecutionID: types.NewID(),
		ToolName:    toolName,
		Status:      status,
		CompletedAt: &now,
		ExitCode:    -1,
		Error:       detail,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[toolName] = record
}

// collectLocked merges synthesized and live records. Caller holds s.mu.
func (s *jobState) collectLocked() map[string]execution.ExecutionRecord {
	out := make(map[string]execution.ExecutionRecord, len(s.records)+len(s.handles))
	for name, record := range s.records {
		out[name] = record.Clone()
	}
	for name, handle := range s.handles {
		out[name] = handle.Record()
	}
	return out
}

// snapshot produces an independent summary of the job.
func (s *jobState) snapshot() ScanJob {
	s.mu.Lock()
	defer s.mu.Unlock()

	job := s.job
	job.RequestedTools = append([]string(nil), s.job.RequestedTools...)
	if s.job.FinishedAt != nil {
		t := *s.job.FinishedAt
		job.FinishedAt = &t
	}

	executions := s.collectLocked()
	job.Executions = executions
	ids := make(map[string]types.ID, len(executions))
	for name, record := range executions {
		ids[name] = record.ExecutionID
	}
	job.PerToolExecutionIDs = ids
	return job
}

// dedupe keeps the first occurrence of each name, preserving request order.
func dedupe(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, name := range names {
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}
