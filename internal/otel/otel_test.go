package otel

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestInitTracer_NoEndpoint(t *testing.T) {
	shutdown, err := InitTracer("")
	require.NoError(t, err)
	assert.NotPanics(t, shutdown)
}

func TestInitTracer_Endpoint(t *testing.T) {
	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	for _, endpoint := range []string{"localhost:4318", "http://localhost:4318/v1/traces"} {
		shutdown, err := InitTracer(endpoint)
		require.NoError(t, err, endpoint)
		shutdown()
	}
}

func TestStartAndRecordError(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)))
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	ctx, span := Start(context.Background(), "chain.Call", attribute.String("method", "ptpPerSec"))
	RecordError(ctx, nil)
	RecordError(ctx, errors.New("execution reverted"))
	span.End()

	ended := recorder.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, "chain.Call", ended[0].Name())
	assert.Contains(t, ended[0].Attributes(), attribute.String("method", "ptpPerSec"))
	assert.Equal(t, codes.Error, ended[0].Status().Code)
	assert.Equal(t, "execution reverted", ended[0].Status().Description)
	assert.Len(t, ended[0].Events(), 1, "only the non-nil error is recorded")
}
