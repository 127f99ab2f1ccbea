package handlers

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/md-rashed-zaman/instructorbook/services/booking-service/internal/apperr"
	"github.com/md-rashed-zaman/instructorbook/services/booking-service/internal/service"
)

// Availability serves GET /api/v1/availability?instructor_id&date&duration_minutes.
// Responses carry a weak ETag over the body and honour If-None-Match.
func (h *Handler) Availability(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	duration, ok, err := intParam(r, "duration_minutes")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if !ok {
		h.writeError(w, r, apperr.ErrValidation.Withf("duration_minutes is required"))
		return
	}
	q := service.AvailabilityQuery{
		InstructorID:    queryParam(r, "instructor_id"),
		Date:            queryParam(r, "date"),
		DurationMinutes: duration,
	}
	if q.Date == "" {
		h.writeError(w, r, apperr.ErrValidation.Withf("date is required"))
		return
	}

	res, err := h.svc.Availability.GetAvailability(r.Context(), q)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	body, err := json.Marshal(toAvailabilityResponse(res))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	tag := etag(body)
	w.Header().Set("ETag", tag)
	w.Header().Set("Cache-Control", fmt.Sprintf("private, max-age=%d", int(h.cacheMaxAge.Seconds())))
	if etagMatches(r.Header.Get("If-None-Match"), tag) {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func etag(body []byte) string {
	sum := sha256.Sum256(body)
	return `W/"` + hex.EncodeToString(sum[:16]) + `"`
}

func etagMatches(header, tag string) bool {
	if header == "" {
		return false
	}
	bare := strings.TrimPrefix(tag, "W/")
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimSpace(candidate)
		if candidate == "*" || strings.TrimPrefix(candidate, "W/") == bare {
			return true
		}
	}
	return false
}
