package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/trace"
)

// Tracer starts and ends spans around storage work, recording call latency as it goes.
type Tracer interface {
	Start(ctx context.Context, operation string, options ...trace.SpanStartOption) (context.Context, trace.Span)
	End(ctx context.Context, span trace.Span, err error, options ...trace.SpanEndOption)
}
