// Package telemetry installs the OpenTelemetry tracer provider.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

const defaultServiceName = "tgplug"

// Config is the telemetry section of the configuration file.
type Config struct {
	// OTLPEndpoint is the OTLP/HTTP collector, either host:port or a full
	// URL. Tracing is disabled when empty.
	OTLPEndpoint string `yaml:"otlp_endpoint"`
	// Insecure disables TLS for a host:port endpoint.
	Insecure bool `yaml:"insecure"`
	// ServiceName overrides the service.name resource attribute.
	ServiceName string `yaml:"service_name"`
	// SampleRatio is the fraction of root traces kept. Zero means all.
	SampleRatio float64 `yaml:"sample_ratio"`
}

// Validate checks the configured values.
func (c Config) Validate() error {
	if c.SampleRatio < 0 || c.SampleRatio > 1 {
		return fmt.Errorf("telemetry: sample_ratio must be between 0 and 1, got %v", c.SampleRatio)
	}
	return nil
}

// Shutdown flushes and stops the installed provider.
type Shutdown func(ctx context.Context) error

// Setup installs a batching OTLP tracer provider as the global provider.
// With no endpoint configured it leaves the global no-op provider in place
// and returns a no-op Shutdown.
func Setup(ctx context.Context, cfg Config, version string) (Shutdown, error) {
	if cfg.OTLPEndpoint == "" {
		return func(context.Context) error { return nil }, nil
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var opts []otlptracehttp.Option
	if strings.Contains(cfg.OTLPEndpoint, "://") {
		opts = append(opts, otlptracehttp.WithEndpointURL(cfg.OTLPEndpoint))
	} else {
		opts = append(opts, otlptracehttp.WithEndpoint(cfg.OTLPEndpoint))
		if cfg.Insecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
	}

	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("telemetry: creating exporter: %w", err)
	}

	name := cfg.ServiceName
	if name == "" {
		name = defaultServiceName
	}
	res := resource.NewSchemaless(
		attribute.String("service.name", name),
		attribute.String("service.version", version),
	)

	ratio := cfg.SampleRatio
	if ratio == 0 {
		ratio = 1
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))),
	)
	otel.SetTracerProvider(tp)

	return func(ctx context.Context) error {
		return errors.Join(tp.ForceFlush(ctx), tp.Shutdown(ctx))
	}, nil
}
