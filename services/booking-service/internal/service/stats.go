package service

import (
	"context"
	"sort"
	"strings"

	"github.com/md-rashed-zaman/instructorbook/services/booking-service/internal/apperr"
	"github.com/md-rashed-zaman/instructorbook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/instructorbook/services/booking-service/internal/identity"
	"github.com/md-rashed-zaman/instructorbook/services/booking-service/internal/model"
)

const (
	maxStatsDays     = 366
	maxStatsRows     = 100000
	popularTimesSize = 10
)

type StatsQuery struct {
	InstructorID string
	From         string
	To           string
}

type StatsService struct {
	Deps
	// MaxRows caps the appointments one summary reads; a range holding more is
	// rejected rather than summarized partially.
	MaxRows int
}

func NewStatsService(deps Deps) *StatsService {
	return &StatsService{Deps: deps.withDefaults(), MaxRows: maxStatsRows}
}

// Summarize reduces the appointments in [From, To] into counts, revenue and popular
// start times. Without an instructor id it covers everyone and needs an admin.
func (s *StatsService) Summarize(ctx context.Context, p identity.Principal, q StatsQuery) (model.Stats, error) {
	instructorID := strings.TrimSpace(q.InstructorID)
	if err := p.Require(p.CanViewStats(instructorID)); err != nil {
		return model.Stats{}, err
	}
	from, err := availability.ParseDate(strings.TrimSpace(q.From))
	if err != nil {
		return model.Stats{}, err
	}
	to, err := availability.ParseDate(strings.TrimSpace(q.To))
	if err != nil {
		return model.Stats{}, err
	}
	if to.Before(from) {
		return model.Stats{}, apperr.ErrValidation.Withf("to must not be before from")
	}
	if days := availability.DaysBetween(from, to) + 1; days > maxStatsDays {
		return model.Stats{}, apperr.ErrValidation.Withf("date range spans %d days, at most %d allowed", days, maxStatsDays)
	}

	maxRows := s.MaxRows
	if maxRows <= 0 {
		maxRows = maxStatsRows
	}
	var appts []model.Appointment
	err = s.timed("stats", func() error {
		var err error
		appts, err = s.Store.ListAppointments(ctx, model.AppointmentFilter{
			InstructorID: instructorID,
			From:         from,
			To:           to,
			Limit:        maxRows + 1,
		})
		return err
	})
	if err != nil {
		return model.Stats{}, err
	}
	if len(appts) > maxRows {
		return model.Stats{}, apperr.ErrValidation.Withf("more than %d appointments between %s and %s, narrow the range",
			maxRows, availability.FormatDate(from), availability.FormatDate(to))
	}

	stats := Aggregate(appts)
	stats.InstructorID = instructorID
	stats.From = from
	stats.To = to
	return stats, nil
}

// Aggregate computes the stats of appts. Revenue counts confirmed and completed
// appointments. Completion rate is completed over concluded (completed, no-show and
// cancelled). Popular times and weekdays ignore cancelled appointments.
func Aggregate(appts []model.Appointment) model.Stats {
	stats := model.Stats{
		ByStatus:     make(map[model.Status]int, len(model.AllStatuses)),
		PopularTimes: []model.TimeCount{},
	}
	for _, st := range model.AllStatuses {
		stats.ByStatus[st] = 0
	}

	byTime := map[int]int{}
	for _, a := range appts {
		stats.Total++
		stats.ByStatus[a.Status]++
		if a.Status == model.StatusConfirmed || a.Status == model.StatusCompleted {
			stats.RevenueCents += a.PriceCents
		}
		if a.Status == model.StatusCancelled {
			continue
		}
		byTime[a.StartMinute]++
		stats.ByWeekday[a.Date.Weekday()]++
	}

	concluded := stats.ByStatus[model.StatusCompleted] + stats.ByStatus[model.StatusNoShow] + stats.ByStatus[model.StatusCancelled]
	if concluded > 0 {
		stats.CompletionRate = float64(stats.ByStatus[model.StatusCompleted]) / float64(concluded)
	}

	minutes := make([]int, 0, len(byTime))
	for m := range byTime {
		minutes = append(minutes, m)
	}
	sort.Slice(minutes, func(i, j int) bool {
		if byTime[minutes[i]] != byTime[minutes[j]] {
			return byTime[minutes[i]] > byTime[minutes[j]]
		}
		return minutes[i] < minutes[j]
	})
	if len(minutes) > popularTimesSize {
		minutes = minutes[:popularTimesSize]
	}
	for _, m := range minutes {
		stats.PopularTimes = append(stats.PopularTimes, model.TimeCount{Time: availability.ToTimeString(m), Count: byTime[m]})
	}
	return stats
}
