package scheduler

import "time"

// HourBuckets returns the starts of the hour buckets covering the window. The
// first bucket starts at the window start truncated to the hour.
func HourBuckets(window Window) []time.Time {
	if window.Empty() {
		return nil
	}
	start := window.Start
	start = time.Date(start.Year(), start.Month(), start.Day(), start.Hour(), 0, 0, 0, start.Location())

	var buckets []time.Time
	for h := start; h.Before(window.End); h = h.Add(time.Hour) {
		buckets = append(buckets, h)
	}
	return buckets
}

// HourlyOccupancy counts, for each wall-clock hour of the window, the active
// intervals overlapping it. Every hour is present, with zero when empty. When a
// daylight-saving fall-back repeats an hour, both occurrences form one bucket,
// so an interval spanning them is counted once.
func HourlyOccupancy(intervals []Interval, window Window) map[int]int {
	spans := make(map[int]Window)
	for _, h := range HourBuckets(window) {
		span, seen := spans[h.Hour()]
		if !seen {
			span.Start = h
		}
		span.End = h.Add(time.Hour)
		spans[h.Hour()] = span
	}

	counts := make(map[int]int, len(spans))
	for hour, span := range spans {
		counts[hour] = CountOverlapping(intervals, span.Start, span.End, "")
	}
	return counts
}
