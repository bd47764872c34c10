package observe

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// newTestTracerProvider returns a TracerProvider backed by an in-memory
// exporter so tests can inspect recorded spans.
func newTestTracerProvider(t *testing.T) (*sdktrace.TracerProvider, *tracetest.InMemoryExporter) {
	t.Helper()
	exp := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return tp, exp
}

func TestCorrelationID(t *testing.T) {
	if got := CorrelationID(context.Background()); got != "" {
		t.Errorf("CorrelationID without a span = %q, want empty", got)
	}

	tp, _ := newTestTracerProvider(t)
	ctx, span := tp.Tracer("test").Start(context.Background(), "call-span")
	defer span.End()

	cid := CorrelationID(ctx)
	if len(cid) != 32 {
		t.Fatalf("correlation ID %q has length %d, want 32 hex chars", cid, len(cid))
	}
	for _, c := range cid {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			t.Fatalf("correlation ID %q contains non-hex character %q", cid, c)
		}
	}
}

func TestStartSpanUsesGlobalProvider(t *testing.T) {
	tp, exp := newTestTracerProvider(t)

	orig := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(orig) })

	ctx, span := StartSpan(context.Background(), "handle call")
	if CorrelationID(ctx) == "" {
		t.Error("StartSpan did not produce a span with a trace ID")
	}
	span.End()

	spans := exp.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("recorded %d spans, want 1", len(spans))
	}
	if spans[0].Name != "handle call" {
		t.Errorf("span name = %q, want %q", spans[0].Name, "handle call")
	}
}

func TestLoggerCarriesSpanIDs(t *testing.T) {
	tp, _ := newTestTracerProvider(t)

	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })

	ctx, span := tp.Tracer("test").Start(context.Background(), "log-span")
	defer span.End()

	Logger(ctx).Info("call answered")

	out := buf.String()
	if !bytes.Contains([]byte(out), []byte("trace_id=")) {
		t.Errorf("log output missing trace_id: %s", out)
	}
	if !bytes.Contains([]byte(out), []byte("span_id=")) {
		t.Errorf("log output missing span_id: %s", out)
	}

	buf.Reset()
	Logger(context.Background()).Info("no span here")
	if bytes.Contains(buf.Bytes(), []byte("trace_id")) {
		t.Errorf("log output should not carry trace_id without a span: %s", buf.String())
	}
}
