// Package tracing installs the OpenTelemetry tracer provider used by the
// scheduling pipeline and the Redis cache.
package tracing

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Config selects the OTLP/HTTP collector. An empty endpoint keeps the
// no-op provider.
type Config struct {
	Endpoint     string  `json:"endpoint"`
	Insecure     bool    `json:"insecure"`
	ServiceName  string  `json:"service_name"`
	SamplingRate float64 `json:"sampling_rate"`
}

// Enabled reports whether spans are exported.
func (c Config) Enabled() bool { return c.Endpoint != "" }

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.ServiceName == "" {
		c.ServiceName = "yds"
	}
	if c.SamplingRate <= 0 {
		c.SamplingRate = 1
	}
}

// Validate checks mandatory fields.
func (c Config) Validate() error {
	if c.SamplingRate > 1 {
		return fmt.Errorf("tracing sampling rate %g above 1", c.SamplingRate)
	}
	return nil
}

// ShutdownFunc flushes and stops the provider.
type ShutdownFunc func(context.Context) error

// Init installs a batching OTLP/HTTP tracer provider as the global provider.
// The returned function must be called on exit.
func Init(ctx context.Context, cfg Config) (ShutdownFunc, error) {
	if !cfg.Enabled() {
		return func(context.Context) error { return nil }, nil
	}
	cfg.SetDefaults()

	opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	exp, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("otlp exporter: %w", err)
	}

	res := resource.NewSchemaless(attribute.String("service.name", cfg.ServiceName))
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SamplingRate))),
	)
	otel.SetTracerProvider(tp)
	return tp.Shutdown, nil
}
