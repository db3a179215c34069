package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/hackgods/clinic-appointment-scheduling/internal/appointment"
)

type handlers struct {
	svc    *appointment.Service
	logger *zap.Logger
}

func (h *handlers) createAppointment(w http.ResponseWriter, r *http.Request) {
	caller, _ := GetIdentity(r.Context())

	var req CreateAppointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return
	}

	if req.PatientID == 0 && caller.Role == RolePatient {
		req.PatientID = caller.UserID
	}
	if !caller.IsAdmin() && req.PatientID != caller.UserID {
		writeError(w, http.StatusForbidden, "unauthorized", "patients can only book for themselves")
		return
	}

	d, err := parseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_date", err.Error())
		return
	}
	t, err := parseClock(req.Time)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_time", err.Error())
		return
	}

	appt, err := h.svc.CreateAppointment(r.Context(), req.PatientID, req.DoctorID, d, t)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, toAppointmentResponse(*appt))
}

func (h *handlers) listAppointments(w http.ResponseWriter, r *http.Request) {
	caller, _ := GetIdentity(r.Context())
	if !caller.IsAdmin() {
		writeError(w, http.StatusForbidden, "unauthorized", "admin role required")
		return
	}

	filter, err := listFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_query", err.Error())
		return
	}

	appts, err := h.svc.ListAllAppointments(r.Context(), filter)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, toAppointmentResponses(appts))
}

func (h *handlers) getAppointment(w http.ResponseWriter, r *http.Request) {
	caller, _ := GetIdentity(r.Context())
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_appointment_id", err.Error())
		return
	}

	appt, err := h.svc.GetAppointment(r.Context(), id, caller.UserID, caller.IsAdmin())
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, toAppointmentResponse(*appt))
}

func (h *handlers) cancelAppointment(w http.ResponseWriter, r *http.Request) {
	caller, _ := GetIdentity(r.Context())
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_appointment_id", err.Error())
		return
	}

	var req CancelAppointmentRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
	}

	appt, err := h.svc.CancelAppointment(r.Context(), id, caller.UserID, req.Reason)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, toAppointmentResponse(*appt))
}

func (h *handlers) completeAppointment(w http.ResponseWriter, r *http.Request) {
	caller, _ := GetIdentity(r.Context())
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_appointment_id", err.Error())
		return
	}

	appt, err := h.svc.CompleteAppointment(r.Context(), id, caller.UserID)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, toAppointmentResponse(*appt))
}

func (h *handlers) rescheduleAppointment(w http.ResponseWriter, r *http.Request) {
	caller, _ := GetIdentity(r.Context())
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_appointment_id", err.Error())
		return
	}

	var req RescheduleAppointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return
	}
	d, err := parseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_date", err.Error())
		return
	}
	t, err := parseClock(req.Time)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_time", err.Error())
		return
	}

	appt, err := h.svc.RescheduleAppointment(r.Context(), id, d, t, req.Reason, caller.UserID)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, toAppointmentResponse(*appt))
}

func (h *handlers) deleteAppointment(w http.ResponseWriter, r *http.Request) {
	caller, _ := GetIdentity(r.Context())
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_appointment_id", err.Error())
		return
	}

	reason := r.URL.Query().Get("reason")
	if err := h.svc.DeleteAppointment(r.Context(), id, caller.UserID, caller.IsAdmin(), reason); err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) listPatientAppointments(w http.ResponseWriter, r *http.Request) {
	caller, _ := GetIdentity(r.Context())
	patientID, err := idParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_patient_id", err.Error())
		return
	}

	filter, err := listFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_query", err.Error())
		return
	}

	appts, err := h.svc.ListPatientAppointments(r.Context(), patientID, caller.UserID, caller.IsAdmin(), filter)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, toAppointmentResponses(appts))
}

func (h *handlers) getDoctorAppointments(w http.ResponseWriter, r *http.Request) {
	caller, _ := GetIdentity(r.Context())
	doctorID, err := idParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_doctor_id", err.Error())
		return
	}
	d, err := parseDate(r.URL.Query().Get("date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_date", err.Error())
		return
	}

	appts, err := h.svc.GetDoctorAppointments(r.Context(), doctorID, d, caller.UserID)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, toAppointmentResponses(appts))
}

func (h *handlers) getAvailableSlots(w http.ResponseWriter, r *http.Request) {
	doctorID, err := idParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_doctor_id", err.Error())
		return
	}
	d, err := parseDate(r.URL.Query().Get("date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_date", err.Error())
		return
	}

	duration := appointment.DefaultDurationMinutes
	if raw := r.URL.Query().Get("duration"); raw != "" {
		duration, err = strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_duration", "duration must be an integer number of minutes")
			return
		}
	}

	slots, err := h.svc.GetAvailableSlots(r.Context(), doctorID, d, duration)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, toSlotResponses(slots))
}

func (h *handlers) listDoctors(w http.ResponseWriter, r *http.Request) {
	doctors, err := h.svc.ListDoctorsBySpecialty(r.Context(), r.URL.Query().Get("specialty"))
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, toDoctorResponses(doctors))
}
