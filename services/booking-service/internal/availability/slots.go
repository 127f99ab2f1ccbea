package availability

import (
	"sort"

	"github.com/md-rashed-zaman/instructorbook/services/booking-service/internal/model"
)

// Interval is a busy [Start, End) range in minutes since midnight.
type Interval struct {
	Start int
	End   int
}

// GenerateSlots tiles each active window greedily: a slot starts at the window start,
// and each next one starts duration+buffer later while it still ends by the window end.
// Candidates from all windows are concatenated in input order.
func GenerateSlots(windows []model.AvailabilityWindow, duration int) []model.TimeSlot {
	if duration <= 0 {
		return nil
	}
	var slots []model.TimeSlot
	for _, w := range windows {
		if !w.Active() || w.EndMinute <= w.StartMinute {
			continue
		}
		buffer := max(w.BufferMinutes, 0)
		for cursor := w.StartMinute; cursor+duration <= w.EndMinute; cursor += duration + buffer {
			slots = append(slots, model.TimeSlot{
				Start:        cursor,
				End:          cursor + duration,
				BufferBefore: buffer,
				BufferAfter:  buffer,
			})
		}
	}
	return slots
}

// Busy collects the intervals that block slots: active appointments and every block.
func Busy(appointments []model.Appointment, blocks []model.BlockedPeriod) []Interval {
	busy := make([]Interval, 0, len(appointments)+len(blocks))
	for _, a := range appointments {
		if a.Status.Active() {
			busy = append(busy, Interval{Start: a.StartMinute, End: a.EndMinute})
		}
	}
	for _, b := range blocks {
		busy = append(busy, Interval{Start: b.StartMinute, End: b.EndMinute})
	}
	return busy
}

// ResolveConflicts returns a copy of slots with Available set to false for every slot
// that overlaps a busy interval and true otherwise.
func ResolveConflicts(slots []model.TimeSlot, busy []Interval) []model.TimeSlot {
	out := make([]model.TimeSlot, len(slots))
	for i, s := range slots {
		s.Available = !overlapsAny(s.Start, s.End, busy)
		out[i] = s
	}
	return out
}

func overlapsAny(start, end int, busy []Interval) bool {
	for _, b := range busy {
		if Overlaps(start, end, b.Start, b.End) {
			return true
		}
	}
	return false
}

// Dedupe sorts by start (stable) and keeps the first slot for each (start, end) pair.
func Dedupe(slots []model.TimeSlot) []model.TimeSlot {
	sorted := make([]model.TimeSlot, len(slots))
	copy(sorted, slots)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })

	type key struct{ start, end int }
	seen := make(map[key]struct{}, len(sorted))
	out := sorted[:0]
	for _, s := range sorted {
		k := key{s.Start, s.End}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, s)
	}
	return out
}

// Compute runs the full read pipeline for one date: generate, resolve, dedupe.
func Compute(windows []model.AvailabilityWindow, appointments []model.Appointment, blocks []model.BlockedPeriod, duration int) []model.TimeSlot {
	slots := GenerateSlots(windows, duration)
	slots = ResolveConflicts(slots, Busy(appointments, blocks))
	return Dedupe(slots)
}

func CountAvailable(slots []model.TimeSlot) int {
	n := 0
	for _, s := range slots {
		if s.Available {
			n++
		}
	}
	return n
}

// WorkingHours spans the earliest start and latest end of the active windows, or nil.
func WorkingHours(windows []model.AvailabilityWindow) *model.WorkingHours {
	var wh *model.WorkingHours
	for _, w := range windows {
		if !w.Active() {
			continue
		}
		if wh == nil {
			wh = &model.WorkingHours{Start: w.StartMinute, End: w.EndMinute}
			continue
		}
		wh.Start = min(wh.Start, w.StartMinute)
		wh.End = max(wh.End, w.EndMinute)
	}
	return wh
}

// ContainingWindow finds the active window that fully contains [start, end).
func ContainingWindow(windows []model.AvailabilityWindow, start, end int) (model.AvailabilityWindow, bool) {
	for _, w := range windows {
		if w.Active() && w.Contains(start, end) {
			return w, true
		}
	}
	return model.AvailabilityWindow{}, false
}

// CountInWindow counts active appointments whose start falls inside w.
func CountInWindow(w model.AvailabilityWindow, appointments []model.Appointment) int {
	n := 0
	for _, a := range appointments {
		if a.Status.Active() && a.StartMinute >= w.StartMinute && a.StartMinute < w.EndMinute {
			n++
		}
	}
	return n
}

// OpenWindows drops windows whose daily booking cap is already reached.
func OpenWindows(windows []model.AvailabilityWindow, appointments []model.Appointment) []model.AvailabilityWindow {
	out := make([]model.AvailabilityWindow, 0, len(windows))
	for _, w := range windows {
		if w.MaxBookingsPerDay > 0 && CountInWindow(w, appointments) >= w.MaxBookingsPerDay {
			continue
		}
		out = append(out, w)
	}
	return out
}
