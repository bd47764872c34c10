// Package observe provides observability primitives for the payphone:
// OpenTelemetry metrics, tracing, structured logging, and HTTP middleware
// that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API and exported
// via the Prometheus bridge set up by [InitProvider], so they can be scraped
// from the health server's /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name for all payphone metrics.
const meterName = "github.com/MrWong99/payphone"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms per pipeline stage ---

	// STTDuration tracks speech-to-text transcription latency.
	STTDuration metric.Float64Histogram

	// LLMDuration tracks LLM time-to-first-token latency.
	LLMDuration metric.Float64Histogram

	// TTSDuration tracks text-to-speech synthesis latency.
	TTSDuration metric.Float64Histogram

	// CallDuration tracks whole-call duration.
	CallDuration metric.Float64Histogram

	// --- Counters ---

	// Calls counts completed calls. Use with attribute:
	//   attribute.String("feature", ...)
	Calls metric.Int64Counter

	// BargeIns counts interrupted TTS playbacks.
	BargeIns metric.Int64Counter

	// DTMFDigits counts keypad digits received.
	DTMFDigits metric.Int64Counter

	// ProviderErrors counts provider errors. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...)
	ProviderErrors metric.Int64Counter

	// --- Gauges ---

	// ActiveCalls tracks the number of live calls.
	ActiveCalls metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with
	// attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) optimised
// for voice-pipeline latencies.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// callBuckets defines bucket boundaries (in seconds) for whole-call
// durations.
var callBuckets = []float64{
	5, 15, 30, 60, 120, 300, 600, 1200, 1800,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.STTDuration, err = m.Float64Histogram("payphone.stt.duration",
		metric.WithDescription("Latency of speech-to-text transcription."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.LLMDuration, err = m.Float64Histogram("payphone.llm.duration",
		metric.WithDescription("Latency of LLM inference."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.TTSDuration, err = m.Float64Histogram("payphone.tts.duration",
		metric.WithDescription("Latency of text-to-speech synthesis."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.CallDuration, err = m.Float64Histogram("payphone.call.duration",
		metric.WithDescription("Duration of completed calls."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(callBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.Calls, err = m.Int64Counter("payphone.calls",
		metric.WithDescription("Total completed calls by initial feature."),
	); err != nil {
		return nil, err
	}
	if met.BargeIns, err = m.Int64Counter("payphone.barge_ins",
		metric.WithDescription("Total interrupted TTS playbacks."),
	); err != nil {
		return nil, err
	}
	if met.DTMFDigits, err = m.Int64Counter("payphone.dtmf.digits",
		metric.WithDescription("Total keypad digits received."),
	); err != nil {
		return nil, err
	}
	if met.ProviderErrors, err = m.Int64Counter("payphone.provider.errors",
		metric.WithDescription("Total provider errors by provider and kind."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveCalls, err = m.Int64UpDownCounter("payphone.active_calls",
		metric.WithDescription("Number of live calls."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("payphone.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordCall records a completed call with its duration and the feature the
// call started on.
func (m *Metrics) RecordCall(ctx context.Context, feature string, duration time.Duration) {
	m.Calls.Add(ctx, 1,
		metric.WithAttributes(attribute.String("feature", feature)),
	)
	m.CallDuration.Record(ctx, duration.Seconds())
}

// RecordProviderError records a provider error counter increment.
func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
		),
	)
}

// PipelineObserver adapts Metrics to the voice pipeline's observation
// callbacks.
type PipelineObserver struct {
	m *Metrics
}

// NewPipelineObserver wraps m for use by the voice pipeline.
func NewPipelineObserver(m *Metrics) *PipelineObserver {
	return &PipelineObserver{m: m}
}

// ObserveSTT records one transcription round trip.
func (o *PipelineObserver) ObserveSTT(d time.Duration) {
	o.m.STTDuration.Record(context.Background(), d.Seconds())
}

// ObserveTTS records one synthesis round trip.
func (o *PipelineObserver) ObserveTTS(d time.Duration) {
	o.m.TTSDuration.Record(context.Background(), d.Seconds())
}

// CountBargeIn records an interrupted playback.
func (o *PipelineObserver) CountBargeIn() {
	o.m.BargeIns.Add(context.Background(), 1)
}
