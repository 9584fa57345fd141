package scheduler

import (
	"sort"
	"sync"
	"time"
)

// Index holds the active intervals of every resource in start order. It never
// owns canonical records and can be rebuilt from the store at any time with
// Load. Index is safe for concurrent use.
type Index struct {
	mu         sync.RWMutex
	byResource map[string][]Interval
	byUser     map[string][]Interval
	byID       map[string]Interval
}

// NewIndex returns an empty index.
func NewIndex() *Index {
	return &Index{
		byResource: make(map[string][]Interval),
		byUser:     make(map[string][]Interval),
		byID:       make(map[string]Interval),
	}
}

// Load replaces the index content with the active intervals provided.
func (x *Index) Load(intervals []Interval) {
	x.mu.Lock()
	defer x.mu.Unlock()

	x.byResource = make(map[string][]Interval)
	x.byUser = make(map[string][]Interval)
	x.byID = make(map[string]Interval)
	for _, interval := range intervals {
		x.insertLocked(interval)
	}
}

// ReloadResource replaces the intervals of a single resource.
func (x *Index) ReloadResource(resourceID string, intervals []Interval) {
	x.mu.Lock()
	defer x.mu.Unlock()

	for _, interval := range x.byResource[resourceID] {
		x.removeLocked(interval.ID)
	}
	for _, interval := range intervals {
		if interval.ResourceID == resourceID {
			x.insertLocked(interval)
		}
	}
}

// Insert adds an admitted interval. Inactive intervals are ignored.
func (x *Index) Insert(interval Interval) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.insertLocked(interval)
}

// Replace swaps the interval with the same ID for the provided one.
func (x *Index) Replace(interval Interval) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.removeLocked(interval.ID)
	x.insertLocked(interval)
}

// MarkCancelled stops counting the interval. It reports whether the interval was active.
func (x *Index) MarkCancelled(id string) bool {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.removeLocked(id)
}

// MarkCompleted stops counting the interval. It reports whether the interval was active.
func (x *Index) MarkCompleted(id string) bool {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.removeLocked(id)
}

// Get returns the active interval with the given ID.
func (x *Index) Get(id string) (Interval, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	interval, ok := x.byID[id]
	return interval, ok
}

// Len returns the number of active intervals.
func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.byID)
}

// CountOverlapping returns the number of active intervals of the resource that
// intersect [start, end).
func (x *Index) CountOverlapping(resourceID string, start, end time.Time) int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return CountOverlapping(x.overlappingLocked(resourceID, start, end), start, end, "")
}

// PeakOverlap returns the largest number of active intervals of the resource
// covering a single instant of [start, end), ignoring excludeID. Capacity is
// gated on this rather than CountOverlapping: two back-to-back bookings inside
// a long window never share an instant, and counting both would reject
// windows that FreeSlots reports as free.
func (x *Index) PeakOverlap(resourceID string, start, end time.Time, excludeID string) int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return PeakConcurrency(x.overlappingLocked(resourceID, start, end), start, end, excludeID)
}

// OverlapsForUser lists the user's active intervals on any resource that
// intersect [start, end), ignoring excludeID.
func (x *Index) OverlapsForUser(userID string, start, end time.Time, excludeID string) []Interval {
	x.mu.RLock()
	defer x.mu.RUnlock()

	var out []Interval
	for _, interval := range x.byUser[userID] {
		if excludeID != "" && interval.ID == excludeID {
			continue
		}
		if interval.Overlaps(start, end) {
			out = append(out, interval)
		}
	}
	return out
}

// ActiveOn lists the resource's active intervals intersecting [start, end) in start order.
func (x *Index) ActiveOn(resourceID string, start, end time.Time) []Interval {
	x.mu.RLock()
	defer x.mu.RUnlock()
	found := x.overlappingLocked(resourceID, start, end)
	out := make([]Interval, len(found))
	copy(out, found)
	return out
}

// Elapsed lists active intervals that ended at or before the reference time.
func (x *Index) Elapsed(reference time.Time) []Interval {
	x.mu.RLock()
	defer x.mu.RUnlock()

	var out []Interval
	for _, interval := range x.byID {
		if !interval.End.After(reference) {
			out = append(out, interval)
		}
	}
	SortByStart(out)
	return out
}

// overlappingLocked returns the intervals of the resource intersecting
// [start, end). The result aliases internal storage.
func (x *Index) overlappingLocked(resourceID string, start, end time.Time) []Interval {
	list := x.byResource[resourceID]
	// Intervals starting at or after end cannot overlap.
	upper := sort.Search(len(list), func(i int) bool { return !list[i].Start.Before(end) })
	var out []Interval
	for _, interval := range list[:upper] {
		if interval.End.After(start) {
			out = append(out, interval)
		}
	}
	return out
}

func (x *Index) insertLocked(interval Interval) {
	if !interval.Active() {
		return
	}
	if _, exists := x.byID[interval.ID]; exists {
		x.removeLocked(interval.ID)
	}
	interval.Status = StatusActive
	x.byID[interval.ID] = interval
	x.byResource[interval.ResourceID] = insertSorted(x.byResource[interval.ResourceID], interval)
	x.byUser[interval.UserID] = insertSorted(x.byUser[interval.UserID], interval)
}

func (x *Index) removeLocked(id string) bool {
	interval, ok := x.byID[id]
	if !ok {
		return false
	}
	delete(x.byID, id)
	x.byResource[interval.ResourceID] = removeByID(x.byResource[interval.ResourceID], id)
	if len(x.byResource[interval.ResourceID]) == 0 {
		delete(x.byResource, interval.ResourceID)
	}
	x.byUser[interval.UserID] = removeByID(x.byUser[interval.UserID], id)
	if len(x.byUser[interval.UserID]) == 0 {
		delete(x.byUser, interval.UserID)
	}
	return true
}

func insertSorted(list []Interval, interval Interval) []Interval {
	pos := sort.Search(len(list), func(i int) bool {
		if list[i].Start.Equal(interval.Start) {
			return list[i].ID >= interval.ID
		}
		return list[i].Start.After(interval.Start)
	})
	list = append(list, Interval{})
	copy(list[pos+1:], list[pos:])
	list[pos] = interval
	return list
}

func removeByID(list []Interval, id string) []Interval {
	for i, interval := range list {
		if interval.ID == id {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}
