// Package handlers exposes the booking engine over HTTP/JSON.
package handlers

import (
	"log/slog"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/md-rashed-zaman/instructorbook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/instructorbook/services/booking-service/internal/service"
)

const defaultCacheMaxAge = 5 * time.Minute

// Services are the use cases the handlers delegate to.
type Services struct {
	Availability *service.AvailabilityService
	Bookings     *service.BookingService
	Windows      *service.WindowService
	Blocks       *service.BlockService
	Stats        *service.StatsService
}

type Handler struct {
	svc         Services
	validate    *validator.Validate
	logger      *slog.Logger
	cacheMaxAge time.Duration
}

// New builds the HTTP handlers. cacheMaxAge is advertised on availability responses.
func New(svc Services, logger *slog.Logger, cacheMaxAge time.Duration) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if cacheMaxAge <= 0 {
		cacheMaxAge = defaultCacheMaxAge
	}
	return &Handler{
		svc:         svc,
		validate:    newValidator(),
		logger:      logger,
		cacheMaxAge: cacheMaxAge,
	}
}

// Register mounts every API route on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/v1/availability", h.Availability)
	mux.HandleFunc("/api/v1/appointments", h.Appointments)
	mux.HandleFunc("/api/v1/appointments/cancel", h.Cancel)
	mux.HandleFunc("/api/v1/availability-windows", h.Windows)
	mux.HandleFunc("/api/v1/blocked-periods", h.Blocks)
	mux.HandleFunc("/api/v1/stats", h.Stats)
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("hhmm", func(fl validator.FieldLevel) bool {
		_, err := availability.ToMinutes(fl.Field().String())
		return err == nil
	})
	_ = v.RegisterValidation("ymd", func(fl validator.FieldLevel) bool {
		_, err := availability.ParseDate(fl.Field().String())
		return err == nil
	})
	return v
}
