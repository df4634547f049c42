package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.27.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/milan604/restfetch/pkg/logger"
	"github.com/milan604/restfetch/pkg/version"
)

// Settings configures the OTLP trace pipeline.
type Settings struct {
	Enabled        bool    `mapstructure:"enabled"`
	ServiceName    string  `mapstructure:"service_name"`
	ServiceVersion string  `mapstructure:"service_version"`
	Endpoint       string  `mapstructure:"endpoint"` // host:port of an OTLP/HTTP collector
	Insecure       bool    `mapstructure:"insecure"`
	SampleRatio    float64 `mapstructure:"sample_ratio" validate:"gte=0,lte=1"`
}

// Observability owns the tracer provider installed by Setup.
type Observability struct {
	tracerProvider *sdktrace.TracerProvider
	tracer         trace.Tracer
	log            logger.LogManager
}

// Setup installs a global tracer provider that exports spans over OTLP/HTTP.
func Setup(ctx context.Context, log logger.LogManager, s Settings) (*Observability, error) {
	if log == nil {
		log = logger.Nop()
	}
	if s.ServiceName == "" {
		s.ServiceName = "restfetch"
	}
	if s.ServiceVersion == "" {
		s.ServiceVersion = version.Version
	}
	if s.Endpoint == "" {
		s.Endpoint = "localhost:4318"
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(s.ServiceName),
			semconv.ServiceVersionKey.String(s.ServiceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	exporterOpts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(s.Endpoint)}
	if s.Insecure {
		exporterOpts = append(exporterOpts, otlptracehttp.WithInsecure())
	}
	exporter, err := otlptracehttp.New(ctx, exporterOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
	}

	sampler := sdktrace.AlwaysSample()
	if s.SampleRatio > 0 && s.SampleRatio < 1 {
		sampler = sdktrace.ParentBased(sdktrace.TraceIDRatioBased(s.SampleRatio))
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	log.InfoF("tracing initialized: service=%s, version=%s, endpoint=%s",
		s.ServiceName, s.ServiceVersion, s.Endpoint)

	return &Observability{
		tracerProvider: tp,
		tracer:         tp.Tracer(instrumentationName, trace.WithInstrumentationVersion(version.Version)),
		log:            log,
	}, nil
}

// TracerProvider returns the installed provider, for NewTracer.
func (o *Observability) TracerProvider() trace.TracerProvider {
	return o.tracerProvider
}

// Shutdown flushes pending spans.
func (o *Observability) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := o.tracerProvider.Shutdown(ctx); err != nil {
		o.log.ErrorF("failed to shutdown tracer provider: %v", err)
		return err
	}
	o.log.InfoF("tracing shutdown completed")
	return nil
}
