package handlers

import (
	"net/http"

	"github.com/md-rashed-zaman/instructorbook/services/booking-service/internal/apperr"
	"github.com/md-rashed-zaman/instructorbook/services/booking-service/internal/identity"
	"github.com/md-rashed-zaman/instructorbook/services/booking-service/internal/service"
)

// Blocks serves /api/v1/blocked-periods: GET ?instructor_id&date, POST, DELETE ?id=.
func (h *Handler) Blocks(w http.ResponseWriter, r *http.Request) {
	p := identity.FromContext(r.Context())
	switch r.Method {
	case http.MethodGet:
		list, err := h.svc.Blocks.ListBlocks(r.Context(), p, queryParam(r, "instructor_id"), queryParam(r, "date"))
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		out := make([]blockResponse, 0, len(list))
		for _, b := range list {
			out = append(out, toBlockResponse(b))
		}
		writeJSON(w, http.StatusOK, map[string]any{"blocked_periods": out})
	case http.MethodPost:
		var req createBlockRequest
		if err := h.decode(r, &req); err != nil {
			h.writeError(w, r, err)
			return
		}
		b, err := h.svc.Blocks.CreateBlock(r.Context(), p, service.BlockInput{
			InstructorID: req.InstructorID,
			Date:         req.Date,
			StartTime:    req.StartTime,
			EndTime:      req.EndTime,
			Reason:       req.Reason,
		})
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, toBlockResponse(b))
	case http.MethodDelete:
		id := queryParam(r, "id")
		if id == "" {
			h.writeError(w, r, apperr.ErrValidation.Withf("id is required"))
			return
		}
		if err := h.svc.Blocks.DeleteBlock(r.Context(), p, id); err != nil {
			h.writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPost, http.MethodDelete)
	}
}
