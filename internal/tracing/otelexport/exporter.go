package otelexport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

const defaultServiceName = "agentgate"

var ErrNoEndpoint = errors.New("OTLP endpoint is required")

// Config configures the OpenTelemetry OTLP exporter.
type Config struct {
	Endpoint    string            // OTLP endpoint (e.g. "localhost:4317")
	Protocol    string            // "grpc" (default) or "http"
	Insecure    bool              // skip TLS for local dev
	ServiceName string            // OTEL service name (default "agentgate")
	Headers     map[string]string // extra headers (auth tokens, etc.)
	Version     string
}

// Exporter owns the SDK tracer provider installed as the global provider.
type Exporter struct {
	provider *sdktrace.TracerProvider
}

// New creates an OTLP exporter and installs its tracer provider globally, so
// spans started through otel.Tracer anywhere in the process are exported.
func New(ctx context.Context, cfg Config) (*Exporter, error) {
	if cfg.Endpoint == "" {
		return nil, ErrNoEndpoint
	}

	spanExp, err := newSpanExporter(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("otel exporter: %w", err)
	}

	version := cfg.Version
	if version == "" {
		version = "dev"
	}
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName(cfg)),
			semconv.ServiceVersion(version),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("otel resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(spanExp,
			sdktrace.WithMaxExportBatchSize(100),
			sdktrace.WithBatchTimeout(5*time.Second),
		),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	slog.Info("otel export enabled", "endpoint", cfg.Endpoint, "protocol", protocol(cfg))
	return &Exporter{provider: tp}, nil
}

func newSpanExporter(ctx context.Context, cfg Config) (sdktrace.SpanExporter, error) {
	if protocol(cfg) == "http" {
		opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(cfg.Endpoint)}
		if cfg.Insecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		if len(cfg.Headers) > 0 {
			opts = append(opts, otlptracehttp.WithHeaders(cfg.Headers))
		}
		return otlptracehttp.New(ctx, opts...)
	}

	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	if len(cfg.Headers) > 0 {
		opts = append(opts, otlptracegrpc.WithHeaders(cfg.Headers))
	}
	return otlptracegrpc.New(ctx, opts...)
}

func serviceName(cfg Config) string {
	if cfg.ServiceName == "" {
		return defaultServiceName
	}
	return cfg.ServiceName
}

func protocol(cfg Config) string {
	if cfg.Protocol == "http" {
		return "http"
	}
	return "grpc"
}

// Shutdown flushes remaining spans. Safe on a nil Exporter.
func (e *Exporter) Shutdown(ctx context.Context) error {
	if e == nil {
		return nil
	}
	slog.Info("otel exporter shutting down")
	return e.provider.Shutdown(ctx)
}
