// Package observe provides the observability primitives for rafiq:
// OpenTelemetry metrics and traces, a trace-aware slog logger, and HTTP
// middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API and scraped via
// the Prometheus exporter bridge installed by [InitProvider]. A package-level
// [DefaultMetrics] instance is provided for convenience; tests should use
// [NewMetrics] with their own [metric.MeterProvider] to avoid cross-test
// pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope for all rafiq metrics.
const meterName = "github.com/rafiqhealth/rafiq"

// Stage names used as the "stage" attribute and in span names.
const (
	StageSTT          = "stt"
	StageLLM          = "llm"
	StageValidator    = "validator"
	StageRegeneration = "regeneration"
	StageTTS          = "tts"
)

// Metrics holds every instrument the service records. All fields are safe
// for concurrent use.
type Metrics struct {
	// Per-stage latency.
	STTDuration          metric.Float64Histogram
	LLMDuration          metric.Float64Histogram
	ValidatorDuration    metric.Float64Histogram
	RegenerationDuration metric.Float64Histogram
	TTSDuration          metric.Float64Histogram

	// TurnDuration covers one chat turn end to end.
	TurnDuration metric.Float64Histogram

	// ProviderRequests is labelled provider, kind, status.
	ProviderRequests metric.Int64Counter

	// ProviderErrors is labelled provider, kind.
	ProviderErrors metric.Int64Counter

	// SafetyOutcomes counts decision-engine outcomes, labelled outcome.
	SafetyOutcomes metric.Int64Counter

	// ValidatorFailures is labelled kind (PARSE_ERROR, CALL_ERROR).
	ValidatorFailures metric.Int64Counter

	CrisisInterventions metric.Int64Counter

	// AuditErrors counts safety events that no recorder accepted.
	AuditErrors metric.Int64Counter

	// ActiveTurns is the number of turns in flight.
	ActiveTurns metric.Int64UpDownCounter

	// HTTPRequestDuration is labelled method, path.
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets (seconds) span a fast validator call up to a slow
// regenerate-then-synthesise turn.
var latencyBuckets = []float64{
	0.05, 0.1, 0.25, 0.5, 1, 2, 4, 8, 15, 30,
}

// NewMetrics creates every instrument from mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	met := &Metrics{}

	histograms := []struct {
		dst  *metric.Float64Histogram
		name string
		desc string
	}{
		{&met.STTDuration, "rafiq.stt.duration", "Latency of speech-to-text transcription."},
		{&met.LLMDuration, "rafiq.llm.duration", "Latency of the conversation model call."},
		{&met.ValidatorDuration, "rafiq.validator.duration", "Latency of the safety validator call."},
		{&met.RegenerationDuration, "rafiq.regeneration.duration", "Latency of corrective regeneration."},
		{&met.TTSDuration, "rafiq.tts.duration", "Latency of speech synthesis including voice fallback."},
		{&met.TurnDuration, "rafiq.turn.duration", "End-to-end latency of one chat turn."},
	}
	for _, h := range histograms {
		var err error
		if *h.dst, err = m.Float64Histogram(h.name,
			metric.WithDescription(h.desc),
			metric.WithUnit("s"),
			metric.WithExplicitBucketBoundaries(latencyBuckets...),
		); err != nil {
			return nil, err
		}
	}

	counters := []struct {
		dst  *metric.Int64Counter
		name string
		desc string
	}{
		{&met.ProviderRequests, "rafiq.provider.requests", "Provider API requests by provider, kind, and status."},
		{&met.ProviderErrors, "rafiq.provider.errors", "Provider errors by provider and kind."},
		{&met.SafetyOutcomes, "rafiq.safety.outcomes", "Decision engine outcomes."},
		{&met.ValidatorFailures, "rafiq.safety.validator_failures", "Validator calls that produced no verdict, by failure kind."},
		{&met.CrisisInterventions, "rafiq.safety.crisis_interventions", "Replies replaced by the crisis template."},
		{&met.AuditErrors, "rafiq.audit.errors", "Safety events that failed to record."},
	}
	for _, c := range counters {
		var err error
		if *c.dst, err = m.Int64Counter(c.name, metric.WithDescription(c.desc)); err != nil {
			return nil, err
		}
	}

	var err error
	if met.ActiveTurns, err = m.Int64UpDownCounter("rafiq.active_turns",
		metric.WithDescription("Chat turns currently in flight."),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("rafiq.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}
	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics], created on first call
// from [otel.GetMeterProvider]. Panics if instrument creation fails.
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

// Attr is shorthand for [attribute.String].
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordProviderRequest increments the provider request counter.
func (m *Metrics) RecordProviderRequest(ctx context.Context, provider, kind, status string) {
	m.ProviderRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
			attribute.String("status", status),
		),
	)
}

// RecordProviderError increments the provider error counter.
func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
		),
	)
}

// RecordOutcome counts one decision-engine outcome.
func (m *Metrics) RecordOutcome(ctx context.Context, outcome string) {
	m.SafetyOutcomes.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// RecordValidatorFailure counts one validator call that yielded no verdict.
func (m *Metrics) RecordValidatorFailure(ctx context.Context, kind string) {
	m.ValidatorFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}
