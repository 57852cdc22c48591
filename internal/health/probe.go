package health

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"syscall"
	"time"

	"github.com/KNIGHTPROJEKS-0/LANCELOTT/internal/execution"
	"github.com/KNIGHTPROJEKS-0/LANCELOTT/internal/tool"
)

// errNoObservation means the probe found nothing to judge the tool by. The
// monitor keeps the previous level and does not count a failure.
var errNoObservation = errors.New("no recent execution to observe")

// Prober checks whether one tool is currently healthy. A nil return means
// healthy; errNoObservation means no signal either way.
type Prober interface {
	Probe(ctx context.Context, desc tool.ToolDescriptor) error
}

// DefaultProber picks the strongest available signal per tool: an HTTP
// health endpoint when the descriptor names one, else a TCP connect against
// the default port, else the outcome of the tool's most recent execution.
type DefaultProber struct {
	client  *http.Client
	history *execution.History
}

// NewProber creates a prober reading process state from history.
func NewProber(history *execution.History) *DefaultProber {
	return &DefaultProber{
		client: &http.Client{
			// Redirect targets of a health endpoint are not health
			// signals.
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		history: history,
	}
}

// Probe checks the tool. The deadline comes from ctx.
func (p *DefaultProber) Probe(ctx context.Context, desc tool.ToolDescriptor) error {
	switch {
	case desc.HealthURL != "":
		return p.probeHTTP(ctx, desc.HealthURL)
	case desc.HasPort():
		return p.probeTCP(ctx, desc.DefaultPort)
	default:
		return p.probeProcess(desc.Name)
	}
}

func (p *DefaultProber) probeHTTP(ctx context.Context, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("health endpoint request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("health endpoint unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("health endpoint returned status %d", resp.StatusCode)
	}
	return nil
}

func (p *DefaultProber) probeTCP(ctx context.Context, port int) error {
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", fmt.Sprintf("localhost:%d", port))
	if err != nil {
		return fmt.Errorf("port %d not accepting connections: %w", port, err)
	}
	_ = conn.Close()
	return nil
}

// probeProcess judges a portless tool by its latest execution: a running
// process must be alive, a finished one must have succeeded. Cancelled runs
// say nothing about the tool and are skipped.
func (p *DefaultProber) probeProcess(name string) error {
	if p.history == nil {
		return errNoObservation
	}

	record, ok := p.history.Latest(name)
	if !ok {
		return errNoObservation
	}

	switch record.Status {
	case execution.StatusRunning:
		if record.PID > 0 && isProcessAlive(record.PID) {
			return nil
		}
		return fmt.Errorf("process %d is gone", record.PID)
	case execution.StatusCompleted:
		return nil
	case execution.StatusFailed:
		return fmt.Errorf("last execution failed with exit %d", record.ExitCode)
	case execution.StatusTimedOut:
		return fmt.Errorf("last execution timed out")
	case execution.StatusCancelled, execution.StatusQueued:
		return errNoObservation
	default:
		return errNoObservation
	}
}

// isProcessAlive checks process existence with a null signal. EPERM still
// means the process exists.
func isProcessAlive(pid int) bool {
	err := syscall.Kill(pid, 0)
	if err == nil {
		return true
	}
	return errors.Is(err, syscall.EPERM)
}

// probeDeadline derives a bounded context for one probe.
func probeDeadline(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	return context.WithTimeout(ctx, timeout)
}
