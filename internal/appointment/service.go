package appointment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/hackgods/clinic-appointment-scheduling/internal/observability/metrics"
	redisclient "github.com/hackgods/clinic-appointment-scheduling/internal/redis"
)

const (
	EventAppointmentCreated     = "APPOINTMENT_CREATED"
	EventAppointmentCancelled   = "APPOINTMENT_CANCELLED"
	EventAppointmentCompleted   = "APPOINTMENT_COMPLETED"
	EventAppointmentRescheduled = "APPOINTMENT_RESCHEDULED"
	EventAppointmentDeleted     = "APPOINTMENT_DELETED"
)

const tracerName = "clinic.internal.appointment"

type Service struct {
	store     Store
	directory Directory
	locker    redisclient.Locker
	policy    Policy
	schedule  func(civil.Date) WorkingSchedule
	metrics   *metrics.SchedulingMetrics
	logger    *zap.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

type Option func(*Service)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithPolicy(p Policy) Option {
	return func(s *Service) { s.policy = p }
}

func WithWorkingSchedule(fn func(civil.Date) WorkingSchedule) Option {
	return func(s *Service) { s.schedule = fn }
}

func WithMetrics(m *metrics.SchedulingMetrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithTracerProvider overrides the global otel provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Service) { s.tracer = tp.Tracer(tracerName) }
}

func NewService(store Store, directory Directory, locker redisclient.Locker, opts ...Option) *Service {
	if store == nil || directory == nil {
		panic("appointment: store and directory required")
	}
	if locker == nil {
		locker = redisclient.NewLocalLocker()
	}
	s := &Service{
		store:     store,
		directory: directory,
		locker:    locker,
		policy:    DefaultPolicy(),
		schedule:  DefaultSchedule,
		logger:    zap.NewNop(),
		tracer:    otel.Tracer(tracerName),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateAppointment books a slot for a patient with a doctor.
// The conflict checks and the insert run under the doctor-day and patient-day locks so
// two concurrent bookings cannot both pass validation.
func (s *Service) CreateAppointment(ctx context.Context, patientID, doctorID int64, d civil.Date, t civil.Time) (created *Appointment, err error) {
	ctx, span := s.tracer.Start(ctx, "appointment.create")
	defer s.finish(span, "create", time.Now(), &err)
	span.SetAttributes(
		attribute.Int64("clinic.patient_id", patientID),
		attribute.Int64("clinic.doctor_id", doctorID),
		attribute.String("clinic.slot", civil.DateTime{Date: d, Time: t}.String()),
	)

	if _, err := s.directory.FindPatientByID(ctx, patientID); err != nil {
		return nil, wrap("load patient", err)
	}
	if _, err := s.directory.FindDoctorByID(ctx, doctorID); err != nil {
		return nil, wrap("load doctor", err)
	}

	candidate, err := NewAppointment(s.policy, patientID, doctorID, d, t, s.now())
	if err != nil {
		return nil, err
	}

	keys := []string{doctorDayKey(doctorID, d), patientDayKey(patientID, d)}
	err = s.withLock(ctx, keys, func(lockCtx context.Context) error {
		if err := s.checkConflicts(lockCtx, candidate); err != nil {
			return err
		}

		saved, err := s.store.Save(lockCtx, candidate)
		if err != nil {
			return fmt.Errorf("save appointment: %w", err)
		}
		created = saved

		s.logEvent(lockCtx, saved.ID, EventAppointmentCreated, map[string]any{
			"patient_id": patientID,
			"doctor_id":  doctorID,
			"date":       d.String(),
			"time":       hhmm(t),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("appointment created",
		zap.Int64("appointment_id", created.ID),
		zap.Int64("patient_id", patientID),
		zap.Int64("doctor_id", doctorID),
	)
	return created, nil
}

// checkConflicts runs the store-backed booking rules against a candidate, first failure wins.
func (s *Service) checkConflicts(ctx context.Context, c Appointment) error {
	_, err := s.store.FindExact(ctx, c.DoctorID, c.PatientID, c.Date, c.Time)
	switch {
	case err == nil:
		return errorf(KindConflict, "appointment already exists")
	case !errors.Is(err, ErrAppointmentNotFound):
		return fmt.Errorf("check existing appointment: %w", err)
	}

	sameDay, err := s.store.FindByPatientAndDate(ctx, c.PatientID, c.Date)
	if err != nil {
		return fmt.Errorf("load patient appointments: %w", err)
	}
	for _, a := range sameDay {
		if a.Time == c.Time {
			return errorf(KindConflict, "patient already booked at this time")
		}
	}
	if len(sameDay) > 0 {
		return errorf(KindConflict, "patient may have only one appointment per day")
	}

	// Any status counts, cancelled and completed visits included.
	booked, err := s.store.FindByDoctorAndDate(ctx, c.DoctorID, c.Date)
	if err != nil {
		return fmt.Errorf("load doctor appointments: %w", err)
	}
	for _, a := range booked {
		if s.policy.withinBuffer(a.StartsAt(), c.StartsAt()) {
			return errorf(KindConflict, "doctor unavailable within %d minutes of an existing appointment",
				int(s.policy.DoctorBuffer.Minutes()))
		}
	}
	return nil
}

// CancelAppointment cancels a patient's own appointment. reason is optional.
func (s *Service) CancelAppointment(ctx context.Context, id, patientID int64, reason string) (updated *Appointment, err error) {
	ctx, span := s.tracer.Start(ctx, "appointment.cancel")
	defer s.finish(span, "cancel", time.Now(), &err)
	span.SetAttributes(
		attribute.Int64("clinic.appointment_id", id),
		attribute.Int64("clinic.patient_id", patientID),
	)

	err = s.withLock(ctx, []string{appointmentKey(id)}, func(lockCtx context.Context) error {
		appt, err := s.store.FindByID(lockCtx, id)
		if err != nil {
			return wrap("load appointment", err)
		}
		if appt.PatientID != patientID {
			return errorf(KindUnauthorized, "only the patient can cancel this appointment")
		}
		if err := appt.Cancel(reason, s.now()); err != nil {
			return err
		}

		saved, err := s.store.Save(lockCtx, *appt)
		if err != nil {
			return fmt.Errorf("cancel appointment: %w", err)
		}
		updated = saved

		s.logEvent(lockCtx, saved.ID, EventAppointmentCancelled, map[string]any{
			"patient_id": patientID,
			"reason":     reason,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("appointment cancelled", zap.Int64("appointment_id", id), zap.Int64("patient_id", patientID))
	return updated, nil
}

// CompleteAppointment marks a doctor's own appointment as completed.
func (s *Service) CompleteAppointment(ctx context.Context, id, doctorID int64) (updated *Appointment, err error) {
	ctx, span := s.tracer.Start(ctx, "appointment.complete")
	defer s.finish(span, "complete", time.Now(), &err)
	span.SetAttributes(
		attribute.Int64("clinic.appointment_id", id),
		attribute.Int64("clinic.doctor_id", doctorID),
	)

	err = s.withLock(ctx, []string{appointmentKey(id)}, func(lockCtx context.Context) error {
		appt, err := s.store.FindByID(lockCtx, id)
		if err != nil {
			return wrap("load appointment", err)
		}
		if appt.DoctorID != doctorID {
			return errorf(KindUnauthorized, "only the doctor can complete this appointment")
		}
		if err := appt.Complete(s.now()); err != nil {
			return err
		}

		saved, err := s.store.Save(lockCtx, *appt)
		if err != nil {
			return fmt.Errorf("complete appointment: %w", err)
		}
		updated = saved

		s.logEvent(lockCtx, saved.ID, EventAppointmentCompleted, map[string]any{
			"doctor_id": doctorID,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("appointment completed", zap.Int64("appointment_id", id), zap.Int64("doctor_id", doctorID))
	return updated, nil
}

// RescheduleAppointment moves an appointment to a new slot. Either party may reschedule,
// provided the current slot is at least the notice period away. The buffer and per-day
// rules are not re-applied to the destination.
func (s *Service) RescheduleAppointment(ctx context.Context, id int64, newDate civil.Date, newTime civil.Time, reason string, requestingUserID int64) (moved *Appointment, err error) {
	ctx, span := s.tracer.Start(ctx, "appointment.reschedule")
	defer s.finish(span, "reschedule", time.Now(), &err)
	span.SetAttributes(
		attribute.Int64("clinic.appointment_id", id),
		attribute.Int64("clinic.requested_by", requestingUserID),
		attribute.String("clinic.slot", civil.DateTime{Date: newDate, Time: newTime}.String()),
	)

	switch {
	case !newDate.IsValid():
		return nil, errorf(KindValidation, "new date is required")
	case !newTime.IsValid():
		return nil, errorf(KindValidation, "new time is required")
	case requestingUserID == 0:
		return nil, errorf(KindValidation, "requesting user is required")
	case instant(newDate, newTime).Before(naive(s.now())):
		return nil, errorf(KindValidation, "cannot reschedule to a past date or time")
	}

	// The lock set depends on where the appointment currently sits, so read it once first.
	current, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, wrap("load appointment", err)
	}

	keys := []string{
		appointmentKey(id),
		doctorDayKey(current.DoctorID, current.Date),
		patientDayKey(current.PatientID, current.Date),
		doctorDayKey(current.DoctorID, newDate),
		patientDayKey(current.PatientID, newDate),
	}
	err = s.withLock(ctx, keys, func(lockCtx context.Context) error {
		appt, err := s.store.FindByID(lockCtx, id)
		if err != nil {
			return wrap("load appointment", err)
		}
		if appt.Date != current.Date {
			return ErrSlotBusy
		}
		if appt.PatientID != requestingUserID && appt.DoctorID != requestingUserID {
			return errorf(KindUnauthorized, "only the patient or the doctor can reschedule this appointment")
		}

		next, err := appt.Rescheduled(s.policy, newDate, newTime, reason, s.now())
		if err != nil {
			return err
		}

		saved, err := s.store.Save(lockCtx, next)
		if err != nil {
			return fmt.Errorf("reschedule appointment: %w", err)
		}
		moved = saved

		s.logEvent(lockCtx, saved.ID, EventAppointmentRescheduled, map[string]any{
			"requested_by": requestingUserID,
			"from_date":    appt.Date.String(),
			"from_time":    hhmm(appt.Time),
			"to_date":      saved.Date.String(),
			"to_time":      hhmm(saved.Time),
			"reason":       reason,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("appointment rescheduled",
		zap.Int64("appointment_id", id),
		zap.Int64("requested_by", requestingUserID),
		zap.Stringer("from", current.StartsAt()),
		zap.Stringer("to", moved.StartsAt()),
	)
	return moved, nil
}

// DeleteAppointment removes an appointment. Admins may delete anything; otherwise the
// requester must be the patient or the doctor, and a patient may only delete a
// scheduled appointment dated after today.
func (s *Service) DeleteAppointment(ctx context.Context, id, requestingUserID int64, isAdmin bool, reason string) (err error) {
	ctx, span := s.tracer.Start(ctx, "appointment.delete")
	defer s.finish(span, "delete", time.Now(), &err)
	span.SetAttributes(
		attribute.Int64("clinic.appointment_id", id),
		attribute.Int64("clinic.requested_by", requestingUserID),
		attribute.Bool("clinic.admin", isAdmin),
	)

	current, err := s.store.FindByID(ctx, id)
	if err != nil {
		return wrap("load appointment", err)
	}

	keys := []string{
		appointmentKey(id),
		doctorDayKey(current.DoctorID, current.Date),
		patientDayKey(current.PatientID, current.Date),
	}
	err = s.withLock(ctx, keys, func(lockCtx context.Context) error {
		appt, err := s.store.FindByID(lockCtx, id)
		if err != nil {
			return wrap("load appointment", err)
		}
		if appt.Date != current.Date {
			return ErrSlotBusy
		}
		if !isAdmin {
			if err := s.authorizeDelete(*appt, requestingUserID); err != nil {
				return err
			}
		}

		if err := s.store.Delete(lockCtx, id); err != nil {
			return wrap("delete appointment", err)
		}

		s.logEvent(lockCtx, id, EventAppointmentDeleted, map[string]any{
			"requested_by": requestingUserID,
			"admin":        isAdmin,
			"status":       appt.Status.String(),
			"reason":       reason,
		})
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("appointment deleted",
		zap.Int64("appointment_id", id),
		zap.Int64("requested_by", requestingUserID),
		zap.Bool("admin", isAdmin),
		zap.String("reason", reason),
	)
	return nil
}

func (s *Service) authorizeDelete(a Appointment, requestingUserID int64) error {
	switch requestingUserID {
	case a.PatientID:
		today := civil.DateOf(s.now())
		if a.Status != StatusScheduled || !a.Date.After(today) {
			return errorf(KindBusinessRule, "patients can only delete scheduled appointments dated after today")
		}
		return nil
	case a.DoctorID:
		return nil
	}
	return errorf(KindUnauthorized, "only the patient, the doctor or an admin can delete this appointment")
}

// GetAvailableSlots lists the free windows of durationMinutes on a doctor's calendar.
func (s *Service) GetAvailableSlots(ctx context.Context, doctorID int64, d civil.Date, durationMinutes int) (slots []TimeSlot, err error) {
	ctx, span := s.tracer.Start(ctx, "appointment.slots")
	defer s.finish(span, "slots", time.Now(), &err)
	span.SetAttributes(
		attribute.Int64("clinic.doctor_id", doctorID),
		attribute.String("clinic.date", d.String()),
		attribute.Int("clinic.duration_minutes", durationMinutes),
	)

	switch {
	case !d.IsValid():
		return nil, errorf(KindValidation, "date is required")
	case d.Before(civil.DateOf(s.now())):
		return nil, errorf(KindValidation, "cannot query availability for a past date")
	case isWeekend(d):
		return nil, errorf(KindBusinessRule, "no availability on weekends")
	case durationMinutes <= 0:
		return nil, errorf(KindValidation, "duration must be positive")
	}

	schedule := s.schedule(d)
	if durationMinutes > minuteOfDay(schedule.End)-minuteOfDay(schedule.Start) {
		return nil, errorf(KindValidation, "duration cannot exceed the working day")
	}

	if _, err := s.directory.FindDoctorByID(ctx, doctorID); err != nil {
		return nil, wrap("load doctor", err)
	}

	booked, err := s.store.FindByDoctorAndDate(ctx, doctorID, d)
	if err != nil {
		return nil, fmt.Errorf("load doctor appointments: %w", err)
	}

	slots = ComputeSlots(schedule, booked, durationMinutes)
	if slots == nil {
		slots = []TimeSlot{}
	}
	return slots, nil
}

// withLock runs fn under the given lock keys. A lock held elsewhere surfaces as ErrSlotBusy.
func (s *Service) withLock(ctx context.Context, keys []string, fn func(ctx context.Context) error) error {
	err := s.locker.WithLock(ctx, keys, fn)
	if errors.Is(err, redisclient.ErrLockNotAcquired) {
		return ErrSlotBusy
	}
	return err
}

// finish closes the span and records the operation outcome.
func (s *Service) finish(span trace.Span, operation string, started time.Time, errp *error) {
	outcome := "ok"
	if err := *errp; err != nil {
		outcome = KindOf(err).String()
		span.RecordError(err)
		if KindOf(err) == KindUnknown {
			span.SetStatus(codes.Error, err.Error())
		}
	}
	span.End()
	s.metrics.ObserveOperation(operation, outcome, time.Since(started).Seconds())
}

// logEvent records an audit row. Failures are logged and never fail the operation.
func (s *Service) logEvent(ctx context.Context, appointmentID int64, eventType string, payload map[string]any) {
	var raw []byte
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			s.logger.Warn("marshal event payload", zap.String("event_type", eventType), zap.Error(err))
		} else {
			raw = b
		}
	}

	id := appointmentID
	ev := EventLog{
		EventType:     eventType,
		AppointmentID: &id,
		Payload:       raw,
		CreatedAt:     s.now(),
	}
	if err := s.store.InsertEvent(ctx, ev); err != nil {
		s.logger.Error("insert event log",
			zap.String("event_type", eventType),
			zap.Int64("appointment_id", appointmentID),
			zap.Error(err),
		)
	}
}

// wrap keeps classified errors as they are and annotates infrastructure failures.
func wrap(msg string, err error) error {
	if KindOf(err) != KindUnknown {
		return err
	}
	return fmt.Errorf("%s: %w", msg, err)
}

func appointmentKey(id int64) string {
	return fmt.Sprintf("appointment:%d", id)
}

func doctorDayKey(doctorID int64, d civil.Date) string {
	return fmt.Sprintf("doctor:%d:%s", doctorID, d)
}

func patientDayKey(patientID int64, d civil.Date) string {
	return fmt.Sprintf("patient:%d:%s", patientID, d)
}
