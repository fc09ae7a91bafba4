// Package observe holds the OpenTelemetry instruments recorded by the
// gateway and the pipeline state machine.
//
// Instruments are created from a [metric.MeterProvider]; production code uses
// the global provider (a no-op unless the host installs an SDK), tests pass a
// provider backed by a ManualReader.
package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "pdf-audio"

// Metrics groups the client-side instruments.
type Metrics struct {
	// GatewayRequests counts backend calls by operation and status ("ok", "error").
	GatewayRequests metric.Int64Counter

	// GatewayDuration tracks backend call latency in seconds by operation.
	GatewayDuration metric.Float64Histogram

	// Transitions counts applied state machine transitions by resulting stage.
	Transitions metric.Int64Counter

	// RejectedActions counts guard rejections by action.
	RejectedActions metric.Int64Counter
}

// Extraction and synthesis of long documents take tens of seconds.
var latencyBuckets = []float64{
	0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300,
}

// NewMetrics creates all instruments from mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	met := &Metrics{}
	var err error

	if met.GatewayRequests, err = m.Int64Counter("pdfaudio.gateway.requests",
		metric.WithDescription("Backend requests by operation and status."),
	); err != nil {
		return nil, err
	}
	if met.GatewayDuration, err = m.Float64Histogram("pdfaudio.gateway.duration",
		metric.WithDescription("Latency of backend requests."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.Transitions, err = m.Int64Counter("pdfaudio.pipeline.transitions",
		metric.WithDescription("Applied pipeline transitions by resulting stage."),
	); err != nil {
		return nil, err
	}
	if met.RejectedActions, err = m.Int64Counter("pdfaudio.pipeline.rejected",
		metric.WithDescription("User actions rejected by a guard."),
	); err != nil {
		return nil, err
	}
	return met, nil
}

// Default returns instruments bound to the global meter provider. Creation
// against the global provider does not fail in practice; on error a set
// backed by a fresh no-op provider is returned.
func Default() *Metrics {
	met, err := NewMetrics(otel.GetMeterProvider())
	if err != nil {
		met, _ = NewMetrics(noopProvider())
	}
	return met
}

// RecordRequest records one backend call outcome.
func (m *Metrics) RecordRequest(ctx context.Context, op string, started time.Time, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.GatewayRequests.Add(ctx, 1, metric.WithAttributes(
		attribute.String("op", op),
		attribute.String("status", status),
	))
	m.GatewayDuration.Record(ctx, time.Since(started).Seconds(), metric.WithAttributes(
		attribute.String("op", op),
	))
}

// RecordTransition counts a transition into stage.
func (m *Metrics) RecordTransition(ctx context.Context, stage string) {
	if m == nil {
		return
	}
	m.Transitions.Add(ctx, 1, metric.WithAttributes(attribute.String("stage", stage)))
}

// RecordRejected counts a guard rejection for action.
func (m *Metrics) RecordRejected(ctx context.Context, action string) {
	if m == nil {
		return
	}
	m.RejectedActions.Add(ctx, 1, metric.WithAttributes(attribute.String("action", action)))
}
