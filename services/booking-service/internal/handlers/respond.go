package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/md-rashed-zaman/instructorbook/libs/httpx"
	otelx "github.com/md-rashed-zaman/instructorbook/libs/otel"
	"github.com/md-rashed-zaman/instructorbook/services/booking-service/internal/apperr"
)

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "failed to build response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	e := apperr.From(err)
	status := apperr.HTTPStatus(e)
	msg := e.Message
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed",
			"request_id", httpx.RequestIDFromContext(r.Context()),
			"trace_id", otelx.TraceID(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"code", string(e.Kind),
			"err", err,
		)
		if e.Kind == apperr.KindInternal {
			msg = "internal error"
		}
	}
	retryable := apperr.Retryable(e)
	if retryable {
		w.Header().Set("Retry-After", "1")
	}
	writeJSON(w, status, errorBody{Error: errorDetail{Code: string(e.Kind), Message: msg, Retryable: retryable}})
}

func methodNotAllowed(w http.ResponseWriter, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeJSON(w, http.StatusMethodNotAllowed, errorBody{Error: errorDetail{Code: "method_not_allowed", Message: "method not allowed"}})
}

// decode reads a JSON body into dst and runs its validate tags.
func (h *Handler) decode(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return apperr.ErrFormat.Withf("invalid json body")
	}
	if err := h.validate.Struct(dst); err != nil {
		return validationError(err)
	}
	return nil
}

func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return apperr.ErrValidation.Wrap(err)
	}
	fe := verrs[0]
	switch fe.Tag() {
	case "hhmm":
		return apperr.ErrFormat.Withf("%s must be a time of day in HH:MM format", fe.Field())
	case "ymd":
		return apperr.ErrFormat.Withf("%s must be a date in YYYY-MM-DD format", fe.Field())
	case "required":
		return apperr.ErrValidation.Withf("%s is required", fe.Field())
	case "min", "gte":
		return apperr.ErrValidation.Withf("%s must be at least %s", fe.Field(), fe.Param())
	case "max", "lte":
		return apperr.ErrValidation.Withf("%s must be at most %s", fe.Field(), fe.Param())
	}
	return apperr.ErrValidation.Withf("%s is invalid", fe.Field())
}

// intParam parses an optional integer query parameter.
func intParam(r *http.Request, name string) (int, bool, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return 0, false, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false, apperr.ErrFormat.Withf("%s must be an integer", name)
	}
	return n, true, nil
}

func queryParam(r *http.Request, name string) string {
	return strings.TrimSpace(r.URL.Query().Get(name))
}
