package scheduler

import (
	"sort"
	"time"
)

// Status mirrors the reservation lifecycle as seen by the scheduling core.
type Status string

const (
	// StatusActive counts against capacity.
	StatusActive Status = "active"
	// StatusCancelled was withdrawn by its owner.
	StatusCancelled Status = "cancelled"
	// StatusCompleted has elapsed.
	StatusCompleted Status = "completed"
)

// Interval is a reservation reduced to the fields the scheduling core reasons about.
// It occupies the half-open range [Start, End).
type Interval struct {
	ID         string
	UserID     string
	ResourceID string
	Start      time.Time
	End        time.Time
	Status     Status
}

// IntervalsOf maps stored reservation records to intervals with of. It is
// shared by the store admission checks and the index rebuild.
func IntervalsOf[T any](records []T, of func(T) Interval) []Interval {
	out := make([]Interval, 0, len(records))
	for _, r := range records {
		out = append(out, of(r))
	}
	return out
}

// Active reports whether the interval counts against capacity.
func (i Interval) Active() bool {
	return i.Status == StatusActive || i.Status == ""
}

// Overlaps reports whether the interval intersects [start, end). Touching
// endpoints do not overlap.
func (i Interval) Overlaps(start, end time.Time) bool {
	return i.Start.Before(end) && start.Before(i.End)
}

// Duration returns the length of the interval.
func (i Interval) Duration() time.Duration {
	return i.End.Sub(i.Start)
}

type event struct {
	at    time.Time
	delta int
}

// sortEvents orders events by time with ends before starts at the same instant,
// which keeps back-to-back intervals from being counted as concurrent.
func sortEvents(events []event) {
	sort.Slice(events, func(i, j int) bool {
		if events[i].at.Equal(events[j].at) {
			return events[i].delta < events[j].delta
		}
		return events[i].at.Before(events[j].at)
	})
}

// clippedEvents returns start/end events for active intervals clipped to [start, end).
func clippedEvents(intervals []Interval, start, end time.Time, excludeID string) []event {
	events := make([]event, 0, len(intervals)*2)
	for _, interval := range intervals {
		if !interval.Active() || (excludeID != "" && interval.ID == excludeID) {
			continue
		}
		if !interval.Overlaps(start, end) {
			continue
		}
		s, e := interval.Start, interval.End
		if s.Before(start) {
			s = start
		}
		if e.After(end) {
			e = end
		}
		events = append(events, event{at: s, delta: 1}, event{at: e, delta: -1})
	}
	sortEvents(events)
	return events
}

// PeakConcurrency returns the largest number of active intervals covering any
// single instant of [start, end), ignoring the interval whose ID is excludeID.
func PeakConcurrency(intervals []Interval, start, end time.Time, excludeID string) int {
	peak, current := 0, 0
	for _, ev := range clippedEvents(intervals, start, end, excludeID) {
		current += ev.delta
		if current > peak {
			peak = current
		}
	}
	return peak
}

// CountOverlapping returns how many active intervals intersect [start, end).
func CountOverlapping(intervals []Interval, start, end time.Time, excludeID string) int {
	count := 0
	for _, interval := range intervals {
		if !interval.Active() || (excludeID != "" && interval.ID == excludeID) {
			continue
		}
		if interval.Overlaps(start, end) {
			count++
		}
	}
	return count
}

// SortByStart orders intervals by start time, then ID, in place.
func SortByStart(intervals []Interval) {
	sort.SliceStable(intervals, func(i, j int) bool {
		if intervals[i].Start.Equal(intervals[j].Start) {
			return intervals[i].ID < intervals[j].ID
		}
		return intervals[i].Start.Before(intervals[j].Start)
	})
}
