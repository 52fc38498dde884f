// Package telemetry bootstraps distributed tracing for the delivery
// service. Spans cover the HTTP surface (stream, concat and manifest
// requests via otelhttp) and metadata-store calls (via otelmongo).
package telemetry

import (
	"context"
	"os"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

const (
	envEndpoint   = "OTEL_EXPORTER_OTLP_ENDPOINT"
	envSampleRate = "OTEL_TRACE_SAMPLE_RATE"

	defaultSampleRate = 0.1
	exportTimeout     = 3 * time.Second
	setupTimeout      = 5 * time.Second
)

// A noop shutdown keeps the caller's defer unconditional when tracing is
// off or the exporter could not be built.
func noopShutdown(context.Context) error { return nil }

// Init wires the global trace provider and propagators. Tracing is
// opt-in: without OTEL_EXPORTER_OTLP_ENDPOINT set, nothing is exported
// and the returned shutdown does nothing. An exporter that fails to
// come up is treated the same way, so the service always starts.
func Init(ctx context.Context, serviceName string) (shutdown func(context.Context) error, err error) {
	endpoint := strings.TrimSpace(os.Getenv(envEndpoint))
	if endpoint == "" {
		return noopShutdown, nil
	}

	setupCtx, cancel := context.WithTimeout(ctx, setupTimeout)
	defer cancel()

	exporter, err := newExporter(setupCtx, endpoint)
	if err != nil {
		return noopShutdown, nil
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceName(serviceName)),
	)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(sampleRate()))),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return tp.Shutdown, nil
}

func newExporter(ctx context.Context, endpoint string) (sdktrace.SpanExporter, error) {
	endpoint = strings.TrimPrefix(strings.TrimPrefix(endpoint, "http://"), "https://")
	return otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(endpoint),
		otlptracehttp.WithInsecure(),
		otlptracehttp.WithTimeout(exportTimeout),
		otlptracehttp.WithRetry(otlptracehttp.RetryConfig{Enabled: false}),
	)
}

// sampleRate reads OTEL_TRACE_SAMPLE_RATE, clamping to the default for
// anything outside [0,1]. Streaming handlers are hot, so full sampling
// is never the default.
func sampleRate() float64 {
	raw := strings.TrimSpace(os.Getenv(envSampleRate))
	if raw == "" {
		return defaultSampleRate
	}
	rate, err := strconv.ParseFloat(raw, 64)
	if err != nil || rate < 0 || rate > 1 {
		return defaultSampleRate
	}
	return rate
}
