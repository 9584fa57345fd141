package scheduler

import "time"

// ConflictType describes why a candidate interval cannot be admitted.
type ConflictType string

const (
	// ConflictTypeUser indicates the user already holds an overlapping interval.
	ConflictTypeUser ConflictType = "user"
	// ConflictTypeCapacity indicates the resource is full for part of the window.
	ConflictTypeCapacity ConflictType = "capacity"
)

// Conflict details a rejected admission so callers can present it to users.
type Conflict struct {
	Type            ConflictType
	WithIntervalIDs []string
	Capacity        int
	Peak            int
}

// Candidate is an interval requested for admission. ReplacesID names the
// interval being moved, if any, so it never conflicts with itself.
type Candidate struct {
	UserID     string
	ResourceID string
	Start      time.Time
	End        time.Time
	ReplacesID string
}

// CheckAdmission evaluates the two-tier gate for a candidate. userIntervals are
// the user's intervals on any resource; resourceIntervals are the intervals of
// the candidate's resource. The user check always runs before the capacity
// check. A nil result means the candidate may be admitted.
func CheckAdmission(candidate Candidate, userIntervals, resourceIntervals []Interval, capacity int) *Conflict {
	var clashing []string
	for _, interval := range userIntervals {
		if candidate.ignores(interval) || interval.UserID != candidate.UserID {
			continue
		}
		if interval.Overlaps(candidate.Start, candidate.End) {
			clashing = append(clashing, interval.ID)
		}
	}
	if len(clashing) > 0 {
		return &Conflict{Type: ConflictTypeUser, WithIntervalIDs: clashing}
	}

	// Peak, not overlap count; see Index.PeakOverlap.
	peak := PeakConcurrency(resourceIntervals, candidate.Start, candidate.End, candidate.ReplacesID)
	if peak >= capacity {
		ids := make([]string, 0)
		for _, interval := range resourceIntervals {
			if !candidate.ignores(interval) && interval.Overlaps(candidate.Start, candidate.End) {
				ids = append(ids, interval.ID)
			}
		}
		return &Conflict{Type: ConflictTypeCapacity, WithIntervalIDs: ids, Capacity: capacity, Peak: peak}
	}

	return nil
}

func (c Candidate) ignores(interval Interval) bool {
	if !interval.Active() {
		return true
	}
	return c.ReplacesID != "" && interval.ID == c.ReplacesID
}
