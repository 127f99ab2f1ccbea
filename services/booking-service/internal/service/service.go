// Package service holds the booking engine's use cases: availability reads,
// booking writes, window and blocked-period management, and stats.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/md-rashed-zaman/instructorbook/libs/cache"
	"github.com/md-rashed-zaman/instructorbook/libs/metrics"
	"github.com/md-rashed-zaman/instructorbook/services/booking-service/internal/policy"
	"github.com/md-rashed-zaman/instructorbook/services/booking-service/internal/storage"
)

const defaultCacheTTL = 5 * time.Minute

// Deps are shared by every service. Cache and Metrics may be nil.
type Deps struct {
	Store     storage.Store
	Types     policy.TypeProvider
	Validator *policy.Validator
	Cache     cache.Store
	Metrics   *metrics.Metrics
	Logger    *slog.Logger
	CacheTTL  time.Duration
}

func (d Deps) withDefaults() Deps {
	if d.Types == nil {
		d.Types = d.Store
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.CacheTTL <= 0 {
		d.CacheTTL = defaultCacheTTL
	}
	return d
}

// now is the current instant in the booking location.
func (d Deps) now() time.Time {
	return d.Validator.Now().In(d.Validator.Location())
}

func availabilityKey(instructorID string, date time.Time, duration int) string {
	return fmt.Sprintf("availability:%s:%s:%d", instructorID, date.Format("2006-01-02"), duration)
}

func availabilityPattern(instructorID string) string {
	return fmt.Sprintf("availability:%s:*", instructorID)
}

// invalidate drops every cached availability view of the instructor. A failure is
// logged; stale entries still expire after the TTL.
func (d Deps) invalidate(ctx context.Context, instructorID string) {
	if d.Cache == nil {
		return
	}
	if err := d.Cache.DeleteByPattern(ctx, availabilityPattern(instructorID)); err != nil {
		d.Logger.Warn("availability cache invalidation failed", "err", err, "instructor_id", instructorID)
	}
}

// timed records the storage latency of op.
func (d Deps) timed(op string, fn func() error) error {
	start := time.Now()
	err := fn()
	d.Metrics.ObserveStorage(op, time.Since(start))
	return err
}
