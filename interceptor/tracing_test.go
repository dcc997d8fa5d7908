package interceptor_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/nodalrpc/nodal/interceptor"
)

func TestUnaryServerTracingRecordsSpan(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	tracer := tp.Tracer("test")

	unary := interceptor.UnaryServerTracing(tracer)
	_, err := unary(context.Background(), "req", &interceptor.UnaryServerInfo{FullMethod: "/x/Y"},
		func(ctx context.Context, req any) (any, error) { return "resp", nil })
	require.NoError(t, err)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "/x/Y", spans[0].Name())
}

func TestUnaryClientTracingRecordsSpan(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	tracer := tp.Tracer("test")

	client := interceptor.UnaryClientTracing(tracer)
	_, err := client(context.Background(), "req", &interceptor.UnaryCallInfo{FullMethod: "/x/Y"},
		func(ctx context.Context, req any) (any, error) { return "resp", nil })
	require.NoError(t, err)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "/x/Y", spans[0].Name())
}
