package telemetry

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
)

func TestInitTracing_Disabled(t *testing.T) {
	tp, err := InitTracing(context.Background(), TracingConfig{})
	require.NoError(t, err)
	require.NotNil(t, tp.Tracer())
	assert.NoError(t, tp.Shutdown(context.Background()))
}

func TestStartSpan_RecordsStatus(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	tp := NewTracerProvider(provider, "test")
	defer func() { _ = tp.Shutdown(context.Background()) }()

	_, ok := StartSpan(context.Background(), tp.Tracer(), "engine.Save", "/saves/a.sav", attribute.Bool("backup", true))
	EndSpan(ok, nil)

	_, failed := StartSpan(context.Background(), tp.Tracer(), "engine.Load", "/saves/a.sav")
	EndSpan(failed, errors.New("corrupt"))

	spans := recorder.Ended()
	require.Len(t, spans, 2)

	assert.Equal(t, "engine.Save", spans[0].Name())
	assert.Equal(t, codes.Ok, spans[0].Status().Code)
	assert.Contains(t, spans[0].Attributes(), attribute.String("savekit.path", "/saves/a.sav"))
	assert.Contains(t, spans[0].Attributes(), attribute.Bool("backup", true))

	assert.Equal(t, "engine.Load", spans[1].Name())
	assert.Equal(t, codes.Error, spans[1].Status().Code)
	assert.Equal(t, "corrupt", spans[1].Status().Description)
	assert.Len(t, spans[1].Events(), 1)
}
