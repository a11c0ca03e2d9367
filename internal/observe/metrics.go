// Package observe provides sonara's observability primitives:
// OpenTelemetry metric instruments for the speech pipeline, tracing
// helpers, and the SDK provider setup with a Prometheus exporter bridge
// so metrics remain scrapeable via /metrics.
//
// Tests should construct their own [Metrics] with [NewMetrics] and a
// private MeterProvider to avoid cross-test pollution.
package observe

import (
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name for all sonara metrics.
const meterName = "github.com/nvaldezz/sonara"

// Metrics holds the metric instruments for the speech pipeline. The
// underlying OTel types are safe for concurrent use.
type Metrics struct {
	// SynthesisDuration tracks per-backend synthesis latency. Attribute:
	//   attribute.String("backend", "remote"|"local")
	SynthesisDuration metric.Float64Histogram

	// SpeakRequests counts Speak calls by final outcome. Attributes:
	//   attribute.String("backend", ...), attribute.String("status", ...)
	SpeakRequests metric.Int64Counter

	// FallbackAttempts counts how often the local fallback ran.
	FallbackAttempts metric.Int64Counter

	// BackendErrors counts backend failures. Attribute:
	//   attribute.String("backend", ...)
	BackendErrors metric.Int64Counter

	// ActiveSessions tracks live playback sessions; in practice 0 or 1
	// because the session is single-flight.
	ActiveSessions metric.Int64UpDownCounter
}

// latencyBuckets are histogram boundaries (seconds) sized for synthesis
// round trips.
var latencyBuckets = []float64{
	0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 20,
}

// NewMetrics creates the instruments on the given MeterProvider.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.SynthesisDuration, err = m.Float64Histogram("sonara.synthesis.duration",
		metric.WithDescription("Latency of one synthesis attempt."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.SpeakRequests, err = m.Int64Counter("sonara.speak.requests",
		metric.WithDescription("Speak calls by backend and status."),
	); err != nil {
		return nil, err
	}
	if met.FallbackAttempts, err = m.Int64Counter("sonara.speak.fallbacks",
		metric.WithDescription("Local fallback attempts."),
	); err != nil {
		return nil, err
	}
	if met.BackendErrors, err = m.Int64Counter("sonara.backend.errors",
		metric.WithDescription("Backend failures by backend."),
	); err != nil {
		return nil, err
	}
	if met.ActiveSessions, err = m.Int64UpDownCounter("sonara.sessions.active",
		metric.WithDescription("Live playback sessions."),
	); err != nil {
		return nil, err
	}
	return met, nil
}
