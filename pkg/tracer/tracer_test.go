package tracer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func restoreGlobalProvider(t *testing.T) {
	t.Helper()
	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })
}

func TestInitWithoutEndpointKeepsGlobalProvider(t *testing.T) {
	restoreGlobalProvider(t)
	before := otel.GetTracerProvider()

	shutdown, err := Init(context.Background(), Config{ServiceName: "clinic-api"})
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
	assert.Same(t, before, otel.GetTracerProvider())
	assert.Contains(t, otel.GetTextMapPropagator().Fields(), "traceparent")
}

func TestInitInstallsProvider(t *testing.T) {
	restoreGlobalProvider(t)

	shutdown, err := Init(context.Background(), Config{ServiceName: "clinic-api", Endpoint: "127.0.0.1:4317", SampleRatio: 1})
	require.NoError(t, err)
	assert.IsType(t, &sdktrace.TracerProvider{}, otel.GetTracerProvider())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, shutdown(ctx))
}

func TestNewProviderTagsServiceName(t *testing.T) {
	exp := tracetest.NewInMemoryExporter()
	tp, err := NewProvider(context.Background(), Config{ServiceName: "clinic-api"}, sdktrace.WithSyncer(exp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	_, span := tp.Tracer("test").Start(context.Background(), "appointment.create")
	span.End()

	spans := exp.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "appointment.create", spans[0].Name)
	assert.Contains(t, spans[0].Resource.Attributes(), attribute.String("service.name", "clinic-api"))
}
