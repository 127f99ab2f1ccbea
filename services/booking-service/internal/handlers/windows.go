package handlers

import (
	"net/http"

	"github.com/md-rashed-zaman/instructorbook/services/booking-service/internal/apperr"
	"github.com/md-rashed-zaman/instructorbook/services/booking-service/internal/identity"
	"github.com/md-rashed-zaman/instructorbook/services/booking-service/internal/service"
)

// Windows serves /api/v1/availability-windows: GET lists an instructor's windows
// (or returns one with ?id=), POST creates, PATCH and DELETE act on ?id=.
func (h *Handler) Windows(w http.ResponseWriter, r *http.Request) {
	p := identity.FromContext(r.Context())
	id := queryParam(r, "id")
	switch r.Method {
	case http.MethodGet:
		if id != "" {
			win, err := h.svc.Windows.GetWindow(r.Context(), p, id)
			if err != nil {
				h.writeError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, toWindowResponse(win))
			return
		}
		list, err := h.svc.Windows.ListWindows(r.Context(), p, queryParam(r, "instructor_id"))
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		out := make([]windowResponse, 0, len(list))
		for _, win := range list {
			out = append(out, toWindowResponse(win))
		}
		writeJSON(w, http.StatusOK, map[string]any{"windows": out})
	case http.MethodPost:
		var req createWindowRequest
		if err := h.decode(r, &req); err != nil {
			h.writeError(w, r, err)
			return
		}
		win, err := h.svc.Windows.CreateWindow(r.Context(), p, service.WindowInput{
			InstructorID:      req.InstructorID,
			Weekday:           *req.Weekday,
			StartTime:         req.StartTime,
			EndTime:           req.EndTime,
			BufferMinutes:     req.BufferMinutes,
			MaxBookingsPerDay: req.MaxBookingsPerDay,
			IsAvailable:       req.IsAvailable,
		})
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, toWindowResponse(win))
	case http.MethodPatch:
		if id == "" {
			h.writeError(w, r, apperr.ErrValidation.Withf("id is required"))
			return
		}
		var req patchWindowRequest
		if err := h.decode(r, &req); err != nil {
			h.writeError(w, r, err)
			return
		}
		win, err := h.svc.Windows.UpdateWindow(r.Context(), p, id, service.WindowPatchInput{
			Weekday:           req.Weekday,
			StartTime:         req.StartTime,
			EndTime:           req.EndTime,
			BufferMinutes:     req.BufferMinutes,
			MaxBookingsPerDay: req.MaxBookingsPerDay,
			IsAvailable:       req.IsAvailable,
		})
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toWindowResponse(win))
	case http.MethodDelete:
		if id == "" {
			h.writeError(w, r, apperr.ErrValidation.Withf("id is required"))
			return
		}
		if err := h.svc.Windows.DeleteWindow(r.Context(), p, id); err != nil {
			h.writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete)
	}
}

