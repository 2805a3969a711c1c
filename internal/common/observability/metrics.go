package observability

import (
	"context"
	"log"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/trace"
)

// Observability bundles the OpenTelemetry meter and tracer. All methods are
// safe on a nil receiver so callers can leave it unset in tests.
type Observability struct {
	meterProvider   *metric.MeterProvider
	tracing         *tracing
	meter           otelmetric.Meter
	tracer          trace.Tracer
	sessionCounter  otelmetric.Int64Counter
	sessionDuration otelmetric.Float64Histogram
	commitCounter   otelmetric.Int64Counter
}

// New wires the prometheus exporter and, when jaegerEndpoint is set, a jaeger
// span exporter.
func New(serviceName, jaegerEndpoint string) *Observability {
	o := &Observability{}

	if jaegerEndpoint != "" {
		t, err := newTracing(jaegerEndpoint)
		if err != nil {
			log.Printf("Failed to create Jaeger exporter: %v", err)
		} else {
			o.tracing = t
		}
	}
	o.tracer = otel.Tracer(serviceName)

	exporter, err := prometheus.New()
	if err != nil {
		log.Printf("Failed to create Prometheus exporter: %v", err)
		return o
	}

	provider := metric.NewMeterProvider(metric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	meter := provider.Meter(serviceName)

	sessionCounter, _ := meter.Int64Counter(
		"assignment.sessions",
		otelmetric.WithDescription("Recommendation sessions finished"),
	)
	sessionDuration, _ := meter.Float64Histogram(
		"assignment.session.duration",
		otelmetric.WithDescription("Time from session open to last estimate"),
		otelmetric.WithUnit("ms"),
	)
	commitCounter, _ := meter.Int64Counter(
		"assignment.commits",
		otelmetric.WithDescription("Assignment commits"),
	)

	o.meterProvider = provider
	o.meter = meter
	o.sessionCounter = sessionCounter
	o.sessionDuration = sessionDuration
	o.commitCounter = commitCounter
	return o
}

// StartSpan starts a span on the service tracer.
func (o *Observability) StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if o == nil || o.tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return o.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func (o *Observability) RecordSession(ctx context.Context, state string, duration time.Duration) {
	if o == nil {
		return
	}
	attrs := otelmetric.WithAttributes(attribute.String("state", state))
	if o.sessionCounter != nil {
		o.sessionCounter.Add(ctx, 1, attrs)
	}
	if o.sessionDuration != nil {
		o.sessionDuration.Record(ctx, float64(duration.Milliseconds()), attrs)
	}
}

func (o *Observability) RecordCommit(ctx context.Context, action, result string) {
	if o == nil || o.commitCounter == nil {
		return
	}
	o.commitCounter.Add(ctx, 1, otelmetric.WithAttributes(
		attribute.String("action", action),
		attribute.String("result", result),
	))
}

func (o *Observability) Shutdown() {
	if o == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if o.meterProvider != nil {
		_ = o.meterProvider.Shutdown(ctx)
	}
	if o.tracing != nil {
		_ = o.tracing.shutdown(ctx)
	}
}
