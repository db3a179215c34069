package appointment

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func newTracedFixture(t *testing.T) (*fixture, *tracetest.SpanRecorder) {
	t.Helper()
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return newFixture(t, WithTracerProvider(tp)), rec
}

func exceptionMessage(span sdktrace.ReadOnlySpan) string {
	for _, ev := range span.Events() {
		if ev.Name != "exception" {
			continue
		}
		for _, kv := range ev.Attributes {
			if kv.Key == "exception.message" {
				return kv.Value.AsString()
			}
		}
	}
	return ""
}

func TestCreateAppointmentSpan(t *testing.T) {
	f, rec := newTracedFixture(t)

	f.book(t, alice, drSmith, tuesday, clock(10, 0))

	spans := rec.Ended()
	require.Len(t, spans, 1)
	span := spans[0]
	assert.Equal(t, "appointment.create", span.Name())
	assert.Equal(t, tracerName, span.InstrumentationScope().Name)
	assert.Contains(t, span.Attributes(), attribute.Int64("clinic.patient_id", alice))
	assert.Contains(t, span.Attributes(), attribute.Int64("clinic.doctor_id", drSmith))
	assert.Contains(t, span.Attributes(), attribute.String("clinic.slot", "2025-06-10T10:00:00"))
	assert.Empty(t, span.Events())
	assert.Equal(t, codes.Unset, span.Status().Code)
}

func TestCreateAppointmentSpanRecordsError(t *testing.T) {
	f, rec := newTracedFixture(t)

	_, err := f.svc.CreateAppointment(context.Background(), bob, drSmith, tuesday, clock(10, 15))
	requireKind(t, err, KindValidation, "appointment time must be on a 30-minute boundary")

	spans := rec.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "appointment.create", spans[0].Name())
	assert.Equal(t, "appointment time must be on a 30-minute boundary", exceptionMessage(spans[0]))
	// domain failures are expected outcomes and leave the status unset
	assert.Equal(t, codes.Unset, spans[0].Status().Code)
}

func TestSlotsSpanAttributes(t *testing.T) {
	f, rec := newTracedFixture(t)

	_, err := f.svc.GetAvailableSlots(context.Background(), drSmith, tuesday, 45)
	require.NoError(t, err)

	spans := rec.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "appointment.slots", spans[0].Name())
	assert.Contains(t, spans[0].Attributes(), attribute.Int("clinic.duration_minutes", 45))
	assert.Contains(t, spans[0].Attributes(), attribute.String("clinic.date", "2025-06-10"))
}
