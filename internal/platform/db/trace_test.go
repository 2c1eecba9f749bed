package db

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

func TestExecuteAndTrace(t *testing.T) {
	spans := tracetest.NewSpanRecorder()
	tracer := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spans)).Tracer("test")
	attrs := []attribute.KeyValue{attribute.String("id", "42")}

	require.NoError(t, ExecuteAndTrace(context.Background(), tracer, "ok", attrs, func(context.Context) error {
		return nil
	}))
	boom := errors.New("boom")
	err := ExecuteAndTrace(context.Background(), tracer, "fails", attrs, func(context.Context) error {
		return boom
	})
	assert.ErrorIs(t, err, boom)

	ended := spans.Ended()
	require.Len(t, ended, 2)
	assert.Equal(t, "ok", ended[0].Name())
	assert.Equal(t, trace.SpanKindClient, ended[0].SpanKind())
	assert.Equal(t, codes.Unset, ended[0].Status().Code)
	assert.Contains(t, ended[0].Attributes(), attribute.String("id", "42"))
	assert.Equal(t, codes.Error, ended[1].Status().Code)
	assert.Equal(t, "boom", ended[1].Status().Description)
	assert.Len(t, ended[1].Events(), 1)
}
