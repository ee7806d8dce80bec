package observability

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
)

func TestTracingConfigFromEnvDefaults(t *testing.T) {
	t.Setenv("ROCKVIZ_TRACING_ENABLED", "")
	t.Setenv("ROCKVIZ_TRACING_EXPORTER", "")
	t.Setenv("ROCKVIZ_TRACING_SERVICE_NAME", "")
	t.Setenv("ROCKVIZ_TRACING_SAMPLE_RATIO", "")
	t.Setenv("ROCKVIZ_OTLP_ENDPOINT", "")

	cfg := TracingConfigFromEnv()
	if cfg.Enabled {
		t.Error("tracing should default to disabled")
	}
	if cfg.Exporter != "stdout" {
		t.Errorf("default exporter = %q, want stdout", cfg.Exporter)
	}
	if cfg.ServiceName != "rockviz" {
		t.Errorf("default service name = %q, want rockviz", cfg.ServiceName)
	}
	if cfg.SampleRatio != 1.0 {
		t.Errorf("default sample ratio = %v, want 1.0", cfg.SampleRatio)
	}
}

func TestTracingConfigFromEnvOverrides(t *testing.T) {
	t.Setenv("ROCKVIZ_TRACING_ENABLED", "TRUE")
	t.Setenv("ROCKVIZ_TRACING_EXPORTER", "OTLP")
	t.Setenv("ROCKVIZ_TRACING_SERVICE_NAME", "rockviz-e2e")
	t.Setenv("ROCKVIZ_TRACING_SAMPLE_RATIO", "0.25")
	t.Setenv("ROCKVIZ_OTLP_ENDPOINT", "collector:4317")

	cfg := TracingConfigFromEnv()
	if !cfg.Enabled {
		t.Error("tracing should be enabled")
	}
	if cfg.Exporter != "otlp" {
		t.Errorf("exporter = %q, want otlp", cfg.Exporter)
	}
	if cfg.ServiceName != "rockviz-e2e" {
		t.Errorf("service name = %q, want rockviz-e2e", cfg.ServiceName)
	}
	if cfg.SampleRatio != 0.25 {
		t.Errorf("sample ratio = %v, want 0.25", cfg.SampleRatio)
	}
	if cfg.Endpoint != "collector:4317" {
		t.Errorf("endpoint = %q, want collector:4317", cfg.Endpoint)
	}
}

func TestTracingConfigFromEnvRejectsBadRatio(t *testing.T) {
	for _, raw := range []string{"2.5", "-1", "abc"} {
		t.Setenv("ROCKVIZ_TRACING_SAMPLE_RATIO", raw)
		if cfg := TracingConfigFromEnv(); cfg.SampleRatio != 1.0 {
			t.Errorf("ratio %q accepted as %v, want fallback 1.0", raw, cfg.SampleRatio)
		}
	}
}

func TestInitTracingDisabledIsNoop(t *testing.T) {
	ctx := context.Background()

	shutdown, err := InitTracing(ctx, TracingConfig{Enabled: false}, nil)
	if err != nil {
		t.Fatalf("InitTracing: %v", err)
	}
	if shutdown == nil {
		t.Fatal("shutdown func should not be nil")
	}
	if err := shutdown(ctx); err != nil {
		t.Errorf("noop shutdown returned %v", err)
	}

	_, span := otel.Tracer("test").Start(ctx, "op")
	defer span.End()
	if span.IsRecording() {
		t.Error("noop provider should not record spans")
	}
}

func TestInitTracingStdoutExporter(t *testing.T) {
	ctx := context.Background()

	shutdown, err := InitTracing(ctx, TracingConfig{
		Enabled:     true,
		ServiceName: "rockviz-test",
		Exporter:    "stdout",
		SampleRatio: 1,
	}, nil)
	if err != nil {
		t.Fatalf("InitTracing: %v", err)
	}

	_, span := otel.Tracer("test").Start(ctx, "op")
	if !span.IsRecording() {
		t.Error("stdout provider should record spans")
	}
	span.End()

	ShutdownWithTimeout(ctx, shutdown, nil)
}

func TestInitTracingUnsupportedExporter(t *testing.T) {
	_, err := InitTracing(context.Background(), TracingConfig{
		Enabled:  true,
		Exporter: "jaeger",
	}, nil)
	if err == nil {
		t.Fatal("expected an error for an unsupported exporter")
	}
	if !strings.Contains(err.Error(), "unsupported tracing exporter") {
		t.Errorf("error = %v, want unsupported exporter", err)
	}
}

func TestShutdownWithTimeout(t *testing.T) {
	// Nil shutdown must be a no-op.
	ShutdownWithTimeout(context.Background(), nil, nil)

	called := false
	ShutdownWithTimeout(context.Background(), func(ctx context.Context) error {
		called = true
		if _, ok := ctx.Deadline(); !ok {
			t.Error("shutdown context should carry a deadline")
		}
		return errors.New("flush failed")
	}, nil)
	if !called {
		t.Error("shutdown func was not invoked")
	}
}
