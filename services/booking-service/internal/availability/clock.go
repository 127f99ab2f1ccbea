package availability

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/md-rashed-zaman/instructorbook/services/booking-service/internal/apperr"
)

const (
	MinutesPerDay = 24 * 60
	dateLayout    = "2006-01-02"
)

var clockPattern = regexp.MustCompile(`^([01][0-9]|2[0-3]):([0-5][0-9])$`)

// ToMinutes parses a 24-hour HH:MM string into minutes since midnight.
func ToMinutes(s string) (int, error) {
	m := clockPattern.FindStringSubmatch(s)
	if m == nil {
		return 0, apperr.ErrFormat.Withf("invalid time %q, expected HH:MM between 00:00 and 23:59", s)
	}
	h, _ := strconv.Atoi(m[1])
	min, _ := strconv.Atoi(m[2])
	return h*60 + min, nil
}

// ToTimeString renders minutes since midnight as zero-padded HH:MM.
func ToTimeString(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// Overlaps is the half-open test [startA,endA) ∩ [startB,endB) ≠ ∅.
// An empty interval overlaps nothing, itself included.
func Overlaps(startA, endA, startB, endB int) bool {
	if startA >= endA || startB >= endB {
		return false
	}
	return startA < endB && startB < endA
}

// ParseDate parses a strict YYYY-MM-DD calendar date into midnight UTC.
func ParseDate(s string) (time.Time, error) {
	d, err := time.ParseInLocation(dateLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, apperr.ErrFormat.Withf("invalid date %q, expected YYYY-MM-DD", s)
	}
	return d, nil
}

func FormatDate(d time.Time) string {
	return d.Format(dateLayout)
}

// DateOf returns the calendar date of t as observed in loc, as midnight UTC.
func DateOf(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// At is the instant the wall clock in loc reads minute on date. On a day with a
// DST transition this differs from midnight plus minute.
func At(date time.Time, minute int, loc *time.Location) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(), minute/60, minute%60, 0, 0, loc)
}

// MinuteOf is the wall-clock minute of the day of t in loc.
func MinuteOf(t time.Time, loc *time.Location) int {
	t = t.In(loc)
	return t.Hour()*60 + t.Minute()
}

// DaysBetween counts calendar days from a to b; both must be dates from ParseDate or DateOf.
func DaysBetween(a, b time.Time) int {
	return int(b.Sub(a).Hours() / 24)
}

func Weekday(date time.Time) int {
	return int(date.Weekday())
}
