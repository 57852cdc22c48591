package health

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KNIGHTPROJEKS-0/LANCELOTT/internal/execution"
	"github.com/KNIGHTPROJEKS-0/LANCELOTT/internal/tool"
)

func probeCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestProbeHTTPHealthy(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	prober := NewProber(nil)
	desc := tool.ToolDescriptor{Name: "web_check", HealthURL: server.URL}

	assert.NoError(t, prober.Probe(probeCtx(t), desc))
}

func TestProbeHTTPServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	prober := NewProber(nil)
	desc := tool.ToolDescriptor{Name: "web_check", HealthURL: server.URL}

	err := prober.Probe(probeCtx(t), desc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")
}

func TestProbeHTTPUnreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	url := server.URL
	server.Close()

	prober := NewProber(nil)
	desc := tool.ToolDescriptor{Name: "web_check", HealthURL: url}

	assert.Error(t, prober.Probe(probeCtx(t), desc))
}

func TestProbeHTTPRedirectIsNotHealthy(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/login", http.StatusFound)
	}))
	defer server.Close()

	prober := NewProber(nil)
	desc := tool.ToolDescriptor{Name: "vajra", HealthURL: server.URL}

	err := prober.Probe(probeCtx(t), desc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 302")
}

func TestProbeTCP(t *testing.T) {
	listener, err := net.Listen("tcp", "localhost:0")
	require.NoError(t, err)
	defer listener.Close()
	port := listener.Addr().(*net.TCPAddr).Port

	prober := NewProber(nil)
	desc := tool.ToolDescriptor{Name: "argus", DefaultPort: port}

	assert.NoError(t, prober.Probe(probeCtx(t), desc))

	require.NoError(t, listener.Close())
	assert.Error(t, prober.Probe(probeCtx(t), desc))
}

func TestProbeHTTPPreferredOverPort(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	// Nothing listens on the default port; a passing probe proves the
	// health URL took precedence.
	prober := NewProber(nil)
	desc := tool.ToolDescriptor{Name: "ui_tars", HealthURL: server.URL, DefaultPort: 1}

	assert.NoError(t, prober.Probe(probeCtx(t), desc))
}

func TestProbeProcessOutcomes(t *testing.T) {
	engine := execution.NewExecutionEngine(execution.WithGracePeriod(200 * time.Millisecond))
	prober := NewProber(engine.History())

	run := func(toolName string, command ...string) execution.ExecutionRecord {
		handle, err := engine.Launch(context.Background(), execution.LaunchSpec{
			ToolName: toolName,
			Command:  command,
		})
		require.NoError(t, err)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		record, err := handle.Wait(ctx)
		require.NoError(t, err)
		return record
	}

	t.Run("never ran", func(t *testing.T) {
		err := prober.Probe(probeCtx(t), tool.ToolDescriptor{Name: "sherlock"})
		assert.ErrorIs(t, err, errNoObservation)
	})

	t.Run("completed run is healthy", func(t *testing.T) {
		run("sherlock", "echo", "scan done")
		assert.NoError(t, prober.Probe(probeCtx(t), tool.ToolDescriptor{Name: "sherlock"}))
	})

	t.Run("failed run is unhealthy", func(t *testing.T) {
		run("kraken", "false")
		err := prober.Probe(probeCtx(t), tool.ToolDescriptor{Name: "kraken"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "last execution failed")
	})

	t.Run("running process is healthy", func(t *testing.T) {
		handle, err := engine.Launch(context.Background(), execution.LaunchSpec{
			ToolName: "spiderfoot",
			Command:  []string{"sleep", "30"},
			Timeout:  time.Minute,
		})
		require.NoError(t, err)

		assert.NoError(t, prober.Probe(probeCtx(t), tool.ToolDescriptor{Name: "spiderfoot"}))

		handle.Cancel()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_, err = handle.Wait(ctx)
		require.NoError(t, err)

		// A cancelled run carries no health signal.
		assert.ErrorIs(t, prober.Probe(probeCtx(t), tool.ToolDescriptor{Name: "spiderfoot"}), errNoObservation)
	})
}

func TestIsProcessAlive(t *testing.T) {
	assert.True(t, isProcessAlive(os.Getpid()))
}
