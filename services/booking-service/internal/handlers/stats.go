package handlers

import (
	"net/http"

	"github.com/md-rashed-zaman/instructorbook/services/booking-service/internal/identity"
	"github.com/md-rashed-zaman/instructorbook/services/booking-service/internal/service"
)

// Stats serves GET /api/v1/stats?instructor_id&from&to.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	stats, err := h.svc.Stats.Summarize(r.Context(), identity.FromContext(r.Context()), service.StatsQuery{
		InstructorID: queryParam(r, "instructor_id"),
		From:         queryParam(r, "from"),
		To:           queryParam(r, "to"),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toStatsResponse(stats))
}
