package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/md-rashed-zaman/instructorbook/libs/cache"
	"github.com/md-rashed-zaman/instructorbook/services/booking-service/internal/apperr"
	"github.com/md-rashed-zaman/instructorbook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/instructorbook/services/booking-service/internal/model"
)

type AvailabilityQuery struct {
	InstructorID    string
	Date            string
	DurationMinutes int
}

type AvailabilityService struct {
	Deps
}

func NewAvailabilityService(deps Deps) *AvailabilityService {
	return &AvailabilityService{Deps: deps.withDefaults()}
}

// GetAvailability returns the bookable slots of one instructor on one date. Results
// are cached per (instructor, date, duration) until the TTL or the next write.
func (s *AvailabilityService) GetAvailability(ctx context.Context, q AvailabilityQuery) (model.AvailabilityResult, error) {
	instructorID := strings.TrimSpace(q.InstructorID)
	if instructorID == "" {
		return model.AvailabilityResult{}, apperr.ErrValidation.Withf("instructor_id is required")
	}
	if err := s.Validator.CheckDuration(q.DurationMinutes); err != nil {
		return model.AvailabilityResult{}, err
	}
	date, err := availability.ParseDate(strings.TrimSpace(q.Date))
	if err != nil {
		return model.AvailabilityResult{}, err
	}

	key := availabilityKey(instructorID, date, q.DurationMinutes)
	if s.Cache != nil {
		var cached model.AvailabilityResult
		start := time.Now()
		err := s.Cache.Get(ctx, key, &cached)
		s.Metrics.RecordCacheOperation(err == nil, time.Since(start))
		if err == nil {
			return cached, nil
		}
		if !errors.Is(err, cache.ErrMiss) {
			s.Logger.Warn("availability cache read failed", "err", err, "key", key)
		}
	}

	var (
		windows      []model.AvailabilityWindow
		appointments []model.Appointment
		blocks       []model.BlockedPeriod
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.timed("list_active_windows", func() error {
			var err error
			windows, err = s.Store.ListActiveWindows(gctx, instructorID, availability.Weekday(date))
			return err
		})
	})
	g.Go(func() error {
		return s.timed("list_active_appointments", func() error {
			var err error
			appointments, err = s.Store.ListActiveAppointments(gctx, instructorID, date)
			return err
		})
	})
	g.Go(func() error {
		return s.timed("list_blocks", func() error {
			var err error
			blocks, err = s.Store.ListBlocks(gctx, instructorID, date)
			return err
		})
	})
	if err := g.Wait(); err != nil {
		return model.AvailabilityResult{}, err
	}

	slots := availability.Compute(availability.OpenWindows(windows, appointments), appointments, blocks, q.DurationMinutes)
	if slots == nil {
		slots = []model.TimeSlot{}
	}
	result := model.AvailabilityResult{
		Date:            date,
		InstructorID:    instructorID,
		DurationMinutes: q.DurationMinutes,
		Slots:           slots,
		TotalAvailable:  availability.CountAvailable(slots),
		WorkingHours:    availability.WorkingHours(windows),
	}
	s.Metrics.ObserveSlots(len(slots), result.TotalAvailable)

	if s.Cache != nil {
		if err := s.Cache.Set(ctx, key, result, s.CacheTTL); err != nil {
			s.Logger.Warn("availability cache write failed", "err", err, "key", key)
		}
	}
	return result, nil
}
