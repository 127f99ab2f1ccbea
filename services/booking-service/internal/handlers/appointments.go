package handlers

import (
	"net/http"
	"strings"

	"github.com/md-rashed-zaman/instructorbook/services/booking-service/internal/identity"
	"github.com/md-rashed-zaman/instructorbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/instructorbook/services/booking-service/internal/service"
)

const idempotencyHeader = "Idempotency-Key"

// Appointments serves GET (list, or one appointment with ?id=) and POST (book) on
// /api/v1/appointments.
func (h *Handler) Appointments(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		if id := queryParam(r, "id"); id != "" {
			h.getAppointment(w, r, id)
			return
		}
		h.listAppointments(w, r)
	case http.MethodPost:
		h.createAppointment(w, r)
	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPost)
	}
}

func (h *Handler) createAppointment(w http.ResponseWriter, r *http.Request) {
	var req createAppointmentRequest
	if err := h.decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	appt, err := h.svc.Bookings.CreateAppointment(r.Context(), identity.FromContext(r.Context()), service.CreateAppointmentInput{
		InstructorID:      strings.TrimSpace(req.InstructorID),
		Date:              req.Date,
		StartTime:         req.StartTime,
		DurationMinutes:   req.DurationMinutes,
		AppointmentTypeID: strings.TrimSpace(req.AppointmentTypeID),
		IdempotencyKey:    strings.TrimSpace(r.Header.Get(idempotencyHeader)),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toAppointmentResponse(appt))
}

func (h *Handler) getAppointment(w http.ResponseWriter, r *http.Request, id string) {
	appt, err := h.svc.Bookings.GetAppointment(r.Context(), identity.FromContext(r.Context()), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
}

func (h *Handler) listAppointments(w http.ResponseWriter, r *http.Request) {
	limit, _, err := intParam(r, "limit")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	q := service.ListAppointmentsQuery{
		InstructorID: queryParam(r, "instructor_id"),
		From:         queryParam(r, "from"),
		To:           queryParam(r, "to"),
		Limit:        limit,
	}
	for _, s := range strings.Split(queryParam(r, "status"), ",") {
		if s = strings.TrimSpace(s); s != "" {
			q.Statuses = append(q.Statuses, model.Status(strings.ToLower(s)))
		}
	}
	list, err := h.svc.Bookings.ListAppointments(r.Context(), identity.FromContext(r.Context()), q)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"appointments": toAppointmentResponses(list)})
}

// Cancel serves POST /api/v1/appointments/cancel.
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	var req cancelAppointmentRequest
	if err := h.decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	appt, err := h.svc.Bookings.CancelAppointment(r.Context(), identity.FromContext(r.Context()),
		strings.TrimSpace(req.AppointmentID), strings.TrimSpace(req.Reason))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
}
