package telemetry_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/pitabwire/translatable/telemetry"
)

func TestErrorCode(t *testing.T) {
	testCases := []struct {
		name string
		err  error
		want string
	}{
		{name: "nil", err: nil, want: "ok"},
		{name: "canceled", err: context.Canceled, want: "canceled"},
		{name: "wrapped deadline", err: errors.Join(errors.New("load"), context.DeadlineExceeded), want: "deadline exceeded"},
		{name: "other", err: errors.New("boom"), want: "err"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, telemetry.ErrorCode(tc.err))
		})
	}
}

func TestTracerRecordsSpans(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	tracer := telemetry.NewProviderTracer(provider, "translatable")

	ctx, span := tracer.Start(context.Background(), "LazyLoad")
	require.True(t, span.SpanContext().IsValid())
	tracer.End(ctx, span, errors.New("boom"))

	ctx, span = tracer.Start(context.Background(), "SaveTranslations")
	tracer.End(ctx, span, nil)

	spans := exporter.GetSpans()
	require.Len(t, spans, 2)
	require.Equal(t, "translatable/LazyLoad", spans[0].Name)
	require.Equal(t, codes.Error, spans[0].Status.Code)
	require.Equal(t, "translatable/SaveTranslations", spans[1].Name)
	require.Equal(t, codes.Ok, spans[1].Status.Code)
}

func TestEndWithForeignContextStillEndsSpan(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	tracer := telemetry.NewProviderTracer(provider, "translatable")
	_, span := tracer.Start(context.Background(), "EagerLoad")
	tracer.End(context.Background(), span, nil)

	require.Len(t, exporter.GetSpans(), 1)
}
