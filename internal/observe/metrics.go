// Package observe provides application-wide observability primitives for the
// diarization pipeline: OpenTelemetry metrics, tracing, and structured
// logging helpers that tie the two together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can be
// scraped from a /metrics endpoint. A package-level default [Metrics]
// instance ([DefaultMetrics]) is provided for convenience; tests should use
// [NewMetrics] with a custom [metric.MeterProvider] to avoid cross-test
// pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all pipeline metrics.
const meterName = "github.com/psdwizzard/Meeting-Buddy-Pro"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// StageDuration tracks wall-clock time per pipeline stage. Use with
	// attribute:
	//   attribute.String("stage", ...)
	StageDuration metric.Float64Histogram

	// AudioDuration tracks the duration of the audio processed per run, in
	// seconds of audio (not wall-clock time).
	AudioDuration metric.Float64Histogram

	// ProviderRequests counts model-backend calls. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("op", ...), attribute.String("status", ...)
	ProviderRequests metric.Int64Counter

	// ProviderErrors counts model-backend errors. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("op", ...)
	ProviderErrors metric.Int64Counter

	// Runs counts completed pipeline runs. Use with attribute:
	//   attribute.String("status", ...)
	Runs metric.Int64Counter

	// SpeakersDetected tracks the number of distinct speakers found per run.
	SpeakersDetected metric.Int64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) sized for
// batch inference stages, which run from sub-second to many minutes.
var latencyBuckets = []float64{
	0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.StageDuration, err = m.Float64Histogram("meetingbuddy.stage.duration",
		metric.WithDescription("Wall-clock duration of each pipeline stage."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.AudioDuration, err = m.Float64Histogram("meetingbuddy.audio.duration",
		metric.WithDescription("Duration of the audio processed per run."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(30, 60, 300, 600, 1800, 3600, 7200),
	); err != nil {
		return nil, err
	}
	if met.ProviderRequests, err = m.Int64Counter("meetingbuddy.provider.requests",
		metric.WithDescription("Total model-backend requests by provider, op, and status."),
	); err != nil {
		return nil, err
	}
	if met.ProviderErrors, err = m.Int64Counter("meetingbuddy.provider.errors",
		metric.WithDescription("Total model-backend errors by provider and op."),
	); err != nil {
		return nil, err
	}
	if met.Runs, err = m.Int64Counter("meetingbuddy.runs",
		metric.WithDescription("Total pipeline runs by final status."),
	); err != nil {
		return nil, err
	}
	if met.SpeakersDetected, err = m.Int64Histogram("meetingbuddy.speakers.detected",
		metric.WithDescription("Distinct speakers detected per run."),
		metric.WithExplicitBucketBoundaries(1, 2, 3, 4, 6, 8, 12),
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

// RecordStageDuration records the wall-clock duration of one pipeline stage.
func (m *Metrics) RecordStageDuration(ctx context.Context, stage string, seconds float64) {
	m.StageDuration.Record(ctx, seconds,
		metric.WithAttributes(attribute.String("stage", stage)),
	)
}

// RecordProviderRequest records a model-backend request with the standard
// attribute set.
func (m *Metrics) RecordProviderRequest(ctx context.Context, provider, op, status string) {
	m.ProviderRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("op", op),
			attribute.String("status", status),
		),
	)
}

// RecordProviderError records a model-backend error with the standard
// attribute set.
func (m *Metrics) RecordProviderError(ctx context.Context, provider, op string) {
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("op", op),
		),
	)
}

// RecordRun records the final status of one pipeline run.
func (m *Metrics) RecordRun(ctx context.Context, status string) {
	m.Runs.Add(ctx, 1,
		metric.WithAttributes(attribute.String("status", status)),
	)
}
