package telemetry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	semconv "go.opentelemetry.io/otel/semconv/v1.12.0"

	"github.com/zhangwei5095/metasfresh/pkg/telemetry/mocks"
)

func TestTracing(t *testing.T) {
	options := []TracerOption{
		WithAttributes(
			semconv.ServiceNameKey.String("servicename"),
			semconv.ServiceVersionKey.String("0.0.0"),
		),
		WithSamplingRatio(1),
	}

	tp := MustNewTracerProvider(options...)
	t.Cleanup(func() {
		require.NoError(t, tp.Close(context.Background()))
	})

	spanRecorder := tracetest.NewSpanRecorder()
	tp.RegisterSpanProcessor(spanRecorder)

	_, span := tp.Tracer("").Start(context.Background(), "test")
	span.End()

	spans := spanRecorder.Ended()
	require.Len(t, spans, 1)
	require.Equal(t, "test", spans[0].Name())
}

func TestExportToOTLPEndpoint(t *testing.T) {
	ctx := context.Background()
	otlpServer := mocks.NewMockTracingServer(t)

	tp := MustNewTracerProvider(
		WithOTLPEndpoint(otlpServer.Addr()),
		WithOTLPInsecure(),
		WithSamplingRatio(1),
	)

	_, span := tp.Tracer("").Start(ctx, "CreatePartition")
	span.End()

	// flushes the batcher
	require.NoError(t, tp.Close(ctx))

	require.Eventually(t, func() bool {
		return otlpServer.GetExportCount() > 0
	}, 5*time.Second, 50*time.Millisecond)
	require.Equal(t, []string{"CreatePartition"}, otlpServer.SpanNames())
}

func TestTraceError(t *testing.T) {
	tp := MustNewTracerProvider(WithSamplingRatio(1))
	t.Cleanup(func() {
		require.NoError(t, tp.Close(context.Background()))
	})

	spanRecorder := tracetest.NewSpanRecorder()
	tp.RegisterSpanProcessor(spanRecorder)

	_, span := tp.Tracer("").Start(context.Background(), "failing")
	TraceError(span, errors.New("boom"))
	span.End()

	spans := spanRecorder.Ended()
	require.Len(t, spans, 1)
	require.Equal(t, codes.Error, spans[0].Status().Code)
	require.Equal(t, "boom", spans[0].Status().Description)
}

func TestCloseTwice(t *testing.T) {
	tp := MustNewTracerProvider()
	require.NoError(t, tp.Close(context.Background()))
	require.NoError(t, tp.Close(context.Background()))
}

func TestNoop(t *testing.T) {
	tp := Noop()
	_, span := tp.Tracer("").Start(context.Background(), "test")
	span.End()
	require.False(t, span.SpanContext().IsValid())
	require.NoError(t, tp.Close(context.Background()))
}
