package observability

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/KNIGHTPROJEKS-0/LANCELOTT/internal/config"
)

func TestInitLoggingJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := InitLogging(config.LoggingConfig{Level: "info", Format: "json"}, &buf)

	logger.Info("engine ready", "tools", 17)

	out := buf.String()
	assert.Contains(t, out, `"msg":"engine ready"`)
	assert.Contains(t, out, `"tools":17`)
}

func TestInitLoggingTextFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := InitLogging(config.LoggingConfig{Level: "info", Format: "text"}, &buf)

	logger.Info("engine ready")

	assert.Contains(t, buf.String(), "msg=\"engine ready\"")
}

func TestInitLoggingLevelFilters(t *testing.T) {
	var buf bytes.Buffer
	logger := InitLogging(config.LoggingConfig{Level: "warn", Format: "json"}, &buf)

	logger.Info("quiet")
	logger.Warn("loud")

	out := buf.String()
	assert.NotContains(t, out, "quiet")
	assert.Contains(t, out, "loud")
}

func TestInitLoggingUnknownLevelDefaultsToInfo(t *testing.T) {
	var buf bytes.Buffer
	logger := InitLogging(config.LoggingConfig{Level: "shouting", Format: "json"}, &buf)

	logger.Debug("hidden")
	logger.Info("shown")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "shown")
}

func TestWithTraceContextNoSpan(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	traced := WithTraceContext(context.Background(), logger)
	traced.Info("plain")

	assert.NotContains(t, buf.String(), "trace_id")
}

func TestWithTraceContextActiveSpan(t *testing.T) {
	tp := sdktrace.NewTracerProvider()
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	ctx, span := tp.Tracer("test").Start(context.Background(), "operation")
	defer span.End()

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	WithTraceContext(ctx, logger).Info("correlated")

	out := buf.String()
	assert.Contains(t, out, "trace_id")
	assert.Contains(t, out, "span_id")
}

func TestInitTracingDisabled(t *testing.T) {
	tp, err := InitTracing(context.Background(), config.TracingConfig{Enabled: false})
	require.NoError(t, err)
	require.NotNil(t, tp)

	_, span := tp.Tracer("test").Start(context.Background(), "noop")
	span.End()

	require.NoError(t, ShutdownTracing(context.Background(), tp))
}

func TestShutdownTracingNilProvider(t *testing.T) {
	assert.NoError(t, ShutdownTracing(context.Background(), nil))
}
