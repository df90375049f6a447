// Package observe provides the observability primitives of the recitation
// analyzer: OpenTelemetry metrics, tracing, trace-aware logging and the HTTP
// middleware that ties them together.
//
// Metrics go through the OpenTelemetry Metrics API and are scraped from the
// Prometheus bridge installed by [InitProvider]. [DefaultMetrics] returns a
// package-level instance; tests use [NewMetrics] with their own
// [metric.MeterProvider] to stay isolated.
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope for every instrument.
const meterName = "github.com/KarimEG45/CoranBuilding"

// Provider kinds used as the "kind" attribute.
const (
	KindSTT       = "stt"
	KindLLM       = "llm"
	KindReference = "reference"
	KindHistory   = "history"
)

// Metrics holds all metric instruments. The underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// AnalysisDuration is the wall time of one full recitation analysis.
	// Attributes: level, status.
	AnalysisDuration metric.Float64Histogram

	// ProviderDuration is the latency of an external call. Attributes:
	// provider, kind.
	ProviderDuration metric.Float64Histogram

	// ProviderRequests counts external calls. Attributes: provider, kind, status.
	ProviderRequests metric.Int64Counter

	// ProviderErrors counts failed external calls. Attributes: provider, kind.
	ProviderErrors metric.Int64Counter

	// Words counts analysed words. Attribute: valid.
	Words metric.Int64Counter

	// RuleChecks counts Tajweed rule verifications. Attributes: rule, status.
	RuleChecks metric.Int64Counter

	// ActiveAnalyses is the number of analyses in flight.
	ActiveAnalyses metric.Int64UpDownCounter

	// HTTPRequestDuration is the API latency. Attributes: method, route, status.
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets covers everything from a local rule preview to a long
// page transcription.
var latencyBuckets = []float64{
	0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120,
}

// NewMetrics creates every instrument on the given [metric.MeterProvider].
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.AnalysisDuration, err = m.Float64Histogram("coranbuilding.analysis.duration",
		metric.WithDescription("Duration of a complete recitation analysis."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ProviderDuration, err = m.Float64Histogram("coranbuilding.provider.duration",
		metric.WithDescription("Latency of speech recognition, LLM, reference and history calls."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ProviderRequests, err = m.Int64Counter("coranbuilding.provider.requests",
		metric.WithDescription("External calls by provider, kind and status."),
	); err != nil {
		return nil, err
	}
	if met.ProviderErrors, err = m.Int64Counter("coranbuilding.provider.errors",
		metric.WithDescription("Failed external calls by provider and kind."),
	); err != nil {
		return nil, err
	}
	if met.Words, err = m.Int64Counter("coranbuilding.words",
		metric.WithDescription("Analysed reference words by validity."),
	); err != nil {
		return nil, err
	}
	if met.RuleChecks, err = m.Int64Counter("coranbuilding.rule.checks",
		metric.WithDescription("Tajweed rule verifications by rule and outcome."),
	); err != nil {
		return nil, err
	}
	if met.ActiveAnalyses, err = m.Int64UpDownCounter("coranbuilding.analysis.active",
		metric.WithDescription("Number of analyses in flight."),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("coranbuilding.http.request.duration",
		metric.WithDescription("HTTP request latency by method, route and status."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics], created on first use
// from [otel.GetMeterProvider]. Call it after [InitProvider] so the
// instruments bind to the Prometheus bridge.
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

// RecordProviderCall records latency, request count and, for a non-nil err,
// the error counter of one external call.
func (m *Metrics) RecordProviderCall(ctx context.Context, provider, kind string, d time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
		m.ProviderErrors.Add(ctx, 1, metric.WithAttributes(Attr("provider", provider), Attr("kind", kind)))
	}
	m.ProviderDuration.Record(ctx, d.Seconds(), metric.WithAttributes(Attr("provider", provider), Attr("kind", kind)))
	m.ProviderRequests.Add(ctx, 1, metric.WithAttributes(
		Attr("provider", provider),
		Attr("kind", kind),
		Attr("status", status),
	))
}

// RecordWord counts one analysed word.
func (m *Metrics) RecordWord(ctx context.Context, valid bool) {
	m.Words.Add(ctx, 1, metric.WithAttributes(attribute.Bool("valid", valid)))
}

// RecordRuleCheck counts one rule verification.
func (m *Metrics) RecordRuleCheck(ctx context.Context, rule, status string) {
	m.RuleChecks.Add(ctx, 1, metric.WithAttributes(Attr("rule", rule), Attr("status", status)))
}

// RecordAnalysis records the duration of a finished analysis.
func (m *Metrics) RecordAnalysis(ctx context.Context, level int, d time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.AnalysisDuration.Record(ctx, d.Seconds(), metric.WithAttributes(
		attribute.Int("level", level),
		Attr("status", status),
	))
}
