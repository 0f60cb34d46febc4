package observe

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// useTracerProvider installs an in-memory TracerProvider as the global one
// for the duration of the test.
func useTracerProvider(t *testing.T) *tracetest.InMemoryExporter {
	t.Helper()
	exp := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
	orig := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(orig)
		_ = tp.Shutdown(context.Background())
	})
	return exp
}

// captureDefaultLogger routes slog.Default into a buffer.
func captureDefaultLogger(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	orig := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	t.Cleanup(func() { slog.SetDefault(orig) })
	return &buf
}

func TestCorrelationID(t *testing.T) {
	if got := CorrelationID(context.Background()); got != "" {
		t.Errorf("CorrelationID(background) = %q, want empty", got)
	}

	useTracerProvider(t)
	ctx, span := StartSpan(context.Background(), "pipeline.turn")
	defer span.End()

	cid := CorrelationID(ctx)
	if len(cid) != 32 {
		t.Fatalf("correlation ID %q, want 32 hex chars", cid)
	}
	if strings.Trim(cid, "0123456789abcdef") != "" {
		t.Errorf("correlation ID %q is not lowercase hex", cid)
	}
}

func TestStartSpan_RecordsName(t *testing.T) {
	exp := useTracerProvider(t)

	_, span := StartSpan(context.Background(), "pipeline.validator")
	span.End()

	spans := exp.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("recorded %d spans, want 1", len(spans))
	}
	if spans[0].Name != "pipeline.validator" {
		t.Errorf("span name = %q", spans[0].Name)
	}
	if got := spans[0].InstrumentationScope.Name; got != tracerName {
		t.Errorf("instrumentation scope = %q, want %q", got, tracerName)
	}
}

func TestLogger_TraceFields(t *testing.T) {
	useTracerProvider(t)
	buf := captureDefaultLogger(t)

	Logger(context.Background()).Info("no span")
	if strings.Contains(buf.String(), "trace_id") {
		t.Errorf("log without a span carries trace_id: %s", buf.String())
	}
	buf.Reset()

	ctx, span := StartSpan(context.Background(), "pipeline.turn")
	defer span.End()
	Logger(ctx).Info("turn complete")

	out := buf.String()
	if !strings.Contains(out, "trace_id="+CorrelationID(ctx)) {
		t.Errorf("log missing trace_id: %s", out)
	}
	if !strings.Contains(out, "span_id=") {
		t.Errorf("log missing span_id: %s", out)
	}
}

func TestLogger_WithLogAttrs(t *testing.T) {
	buf := captureDefaultLogger(t)

	base := WithLogAttrs(context.Background(), "turn_id", "t-1")
	child := WithLogAttrs(base, "stage", "tts")

	Logger(child).Info("child")
	Logger(base).Info("base")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("lines = %q", lines)
	}
	if !strings.Contains(lines[0], "turn_id=t-1") || !strings.Contains(lines[0], "stage=tts") {
		t.Errorf("child line = %q", lines[0])
	}
	if !strings.Contains(lines[1], "turn_id=t-1") || strings.Contains(lines[1], "stage=") {
		t.Errorf("base line = %q, want only turn_id", lines[1])
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNewLogger_FollowsLevelVar(t *testing.T) {
	var buf bytes.Buffer
	var lvl slog.LevelVar
	lvl.Set(slog.LevelWarn)
	l := NewLogger(&buf, &lvl)

	l.Info("hidden")
	if buf.Len() != 0 {
		t.Fatalf("INFO written at WARN level: %s", buf.String())
	}

	lvl.Set(slog.LevelDebug)
	l.Debug("shown")
	if !strings.Contains(buf.String(), "msg=shown") {
		t.Errorf("DEBUG not written after lowering the level: %s", buf.String())
	}
}
