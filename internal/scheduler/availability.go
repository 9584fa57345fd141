package scheduler

import (
	"sort"
	"time"
)

// FreeSlot is a sub-interval of the day window where a resource still has room.
type FreeSlot struct {
	ResourceID        string
	Start             time.Time
	End               time.Time
	RemainingCapacity int
}

// Duration returns the length of the slot.
func (s FreeSlot) Duration() time.Duration {
	return s.End.Sub(s.Start)
}

// segment is a stretch of the window with a constant number of concurrent intervals.
type segment struct {
	start time.Time
	end   time.Time
	count int
}

// segments sweeps the intervals across the window and returns consecutive
// segments covering it, merging neighbours with equal concurrency.
func segments(intervals []Interval, window Window) []segment {
	if window.Empty() {
		return nil
	}
	events := clippedEvents(intervals, window.Start, window.End, "")

	out := make([]segment, 0, len(events)+1)
	push := func(start, end time.Time, count int) {
		if !start.Before(end) {
			return
		}
		if n := len(out); n > 0 && out[n-1].count == count && out[n-1].end.Equal(start) {
			out[n-1].end = end
			return
		}
		out = append(out, segment{start: start, end: end, count: count})
	}

	cursor, count := window.Start, 0
	for i := 0; i < len(events); {
		at := events[i].at
		push(cursor, at, count)
		for i < len(events) && events[i].at.Equal(at) {
			count += events[i].delta
			i++
		}
		cursor = at
	}
	push(cursor, window.End, count)
	return out
}

// FreeSlots enumerates the free sub-intervals of the window for one resource.
//
// A span is busy only where the concurrency of active intervals reaches
// capacity. The remaining free space is reported as runs of constant remaining
// capacity; runs shorter than minDuration are dropped, except that neighbouring
// dropped runs inside the same free stretch are joined and emitted with their
// minimum remaining capacity when the union is long enough. Every window of
// minDuration that stays below capacity therefore intersects a returned slot,
// and every sub-interval of a returned slot is admissible.
func FreeSlots(resourceID string, capacity int, intervals []Interval, window Window, minDuration time.Duration) []FreeSlot {
	if capacity <= 0 || window.Empty() {
		return nil
	}
	if minDuration <= 0 {
		minDuration = time.Minute
	}

	var (
		slots   []FreeSlot
		pending []segment
	)
	flush := func() {
		if len(pending) == 0 {
			return
		}
		start, end := pending[0].start, pending[len(pending)-1].end
		if end.Sub(start) >= minDuration {
			peak := 0
			for _, seg := range pending {
				if seg.count > peak {
					peak = seg.count
				}
			}
			slots = append(slots, FreeSlot{ResourceID: resourceID, Start: start, End: end, RemainingCapacity: capacity - peak})
		}
		pending = pending[:0]
	}

	for _, seg := range segments(intervals, window) {
		if seg.count >= capacity {
			flush()
			continue
		}
		if seg.end.Sub(seg.start) >= minDuration {
			flush()
			slots = append(slots, FreeSlot{ResourceID: resourceID, Start: seg.start, End: seg.end, RemainingCapacity: capacity - seg.count})
			continue
		}
		pending = append(pending, seg)
	}
	flush()

	return slots
}

// SortFreeSlots orders slots by start time, then resource ID.
func SortFreeSlots(slots []FreeSlot) {
	sort.SliceStable(slots, func(i, j int) bool {
		if slots[i].Start.Equal(slots[j].Start) {
			return slots[i].ResourceID < slots[j].ResourceID
		}
		return slots[i].Start.Before(slots[j].Start)
	})
}
