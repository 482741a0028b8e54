package telemetry

import (
	"context"
	"errors"
	"time"

	"github.com/pitabwire/util"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

//nolint:gochecknoglobals // attribute keys are shared by every span and measurement
var (
	AttrOperationKey = attribute.Key("translatable_operation")
	AttrModelKey     = attribute.Key("translatable_model")
	AttrLocaleKey    = attribute.Key("translatable_locale")
	AttrStatusKey    = attribute.Key("translatable_status")
)

type contextKey string

const (
	startTimeContextKey contextKey = "spanStartTime"
	operationContextKey contextKey = "spanOperation"
)

type tracer struct {
	name    string
	tracer  trace.Tracer
	latency metric.Float64Histogram
}

// NewTracer returns a Tracer on the global OpenTelemetry providers.
func NewTracer(name string, options ...trace.TracerOption) Tracer {
	return NewProviderTracer(otel.GetTracerProvider(), name, options...)
}

// NewProviderTracer returns a Tracer whose spans go to provider.
func NewProviderTracer(provider trace.TracerProvider, name string, options ...trace.TracerOption) Tracer {
	return &tracer{
		name:    name,
		tracer:  provider.Tracer(name, options...),
		latency: LatencyMeasure(name),
	}
}

//nolint:spancheck // the caller ends the span through End
func (t *tracer) Start(
	ctx context.Context,
	operation string,
	options ...trace.SpanStartOption,
) (context.Context, trace.Span) {
	options = append(options, trace.WithAttributes(AttrOperationKey.String(operation)))

	sCtx, span := t.tracer.Start(ctx, t.name+"/"+operation, options...)
	sCtx = context.WithValue(sCtx, startTimeContextKey, time.Now())
	return context.WithValue(sCtx, operationContextKey, operation), span
}

func (t *tracer) End(ctx context.Context, span trace.Span, err error, options ...trace.SpanEndOption) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End(options...)

	startTime, ok := ctx.Value(startTimeContextKey).(time.Time)
	if !ok {
		util.Log(ctx).Warn("span context was not started by this tracer")
		return
	}
	operation, _ := ctx.Value(operationContextKey).(string)

	t.latency.Record(ctx, float64(time.Since(startTime).Milliseconds()),
		metric.WithAttributes(
			AttrStatusKey.String(ErrorCode(err)),
			AttrOperationKey.String(operation),
		),
	)
}

// ErrorCode maps err to the status attribute of a measurement.
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, context.DeadlineExceeded):
		return "deadline exceeded"
	default:
		return "err"
	}
}
