package observability

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/milan604/restfetch/pkg/fetch"
	"github.com/milan604/restfetch/pkg/logger"
	"github.com/milan604/restfetch/pkg/version"
)

// Tracer is a fetch.Observer that opens one client span per attempt and
// counts auth retries.
type Tracer struct {
	tracer      trace.Tracer
	authRetries metric.Int64Counter
}

// TracerOption configures a Tracer.
type TracerOption func(*tracerConfig)

type tracerConfig struct {
	tp trace.TracerProvider
	mp metric.MeterProvider
}

// WithTracerProvider overrides the global tracer provider.
func WithTracerProvider(tp trace.TracerProvider) TracerOption {
	return func(c *tracerConfig) { c.tp = tp }
}

// WithMeterProvider overrides the global meter provider.
func WithMeterProvider(mp metric.MeterProvider) TracerOption {
	return func(c *tracerConfig) { c.mp = mp }
}

func NewTracer(opts ...TracerOption) (*Tracer, error) {
	cfg := tracerConfig{tp: otel.GetTracerProvider(), mp: otel.GetMeterProvider()}
	for _, opt := range opts {
		opt(&cfg)
	}

	meter := cfg.mp.Meter(instrumentationName, metric.WithInstrumentationVersion(version.Version))
	retries, err := meter.Int64Counter(
		"restfetch.auth_retries",
		metric.WithDescription("Calls that received 401, by handler outcome"),
	)
	if err != nil {
		return nil, err
	}

	return &Tracer{
		tracer:      cfg.tp.Tracer(instrumentationName, trace.WithInstrumentationVersion(version.Version)),
		authRetries: retries,
	}, nil
}

func (t *Tracer) StartCall(ctx context.Context, info fetch.CallInfo) (context.Context, func(int, error)) {
	attrs := []attribute.KeyValue{
		AttrHTTPMethod.String(info.Method),
		AttrHTTPURL.String(info.URI),
		AttrAttempt.Int(info.Attempt),
	}
	if id := logger.RequestIDFromContext(ctx); id != "" {
		attrs = append(attrs, AttrRequestID.String(id))
	}

	ctx, span := t.tracer.Start(ctx, "restfetch."+strings.ToLower(info.Method),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attrs...),
	)
	return ctx, func(status int, err error) {
		defer span.End()
		if status > 0 {
			span.SetAttributes(AttrHTTPStatusCode.Int(status))
		}
		if err != nil {
			if fe, ok := fetch.IsError(err); ok {
				span.SetAttributes(AttrErrorType.String(fe.ErrorType.String()))
			}
			RecordSpanError(ctx, err)
			return
		}
		span.SetStatus(codes.Ok, "")
	}
}

// AuthRetry adds an event to the span in ctx, which is the caller's span:
// the rejected attempt's span has already ended.
func (t *Tracer) AuthRetry(ctx context.Context, info fetch.CallInfo, outcome fetch.AuthRetryOutcome) {
	AddSpanEvent(ctx, "restfetch.auth_retry",
		AttrHTTPMethod.String(info.Method),
		AttrAuthOutcome.String(string(outcome)),
	)
	t.authRetries.Add(ctx, 1, metric.WithAttributes(
		AttrHTTPMethod.String(info.Method),
		AttrAuthOutcome.String(string(outcome)),
	))
}

var _ fetch.Observer = (*Tracer)(nil)
