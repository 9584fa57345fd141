package persistence

import (
	"fmt"
	"strings"

	"github.com/example/studyspace/internal/scheduler"
)

// ToInterval reduces a reservation to its scheduling interval.
func ToInterval(r Reservation) scheduler.Interval {
	return scheduler.Interval{
		ID:         r.ID,
		UserID:     r.UserID,
		ResourceID: r.ResourceID,
		Start:      r.Start,
		End:        r.End,
		Status:     scheduler.Status(r.Status),
	}
}

// CheckAdmission runs the admission gate for a conditional write against the
// stored user and resource reservations. The reservation ID is excluded, so the
// same check serves inserts and moves.
func CheckAdmission(candidate Reservation, userRows, resourceRows []Reservation, capacity int) error {
	conflict := scheduler.CheckAdmission(scheduler.Candidate{
		UserID:     candidate.UserID,
		ResourceID: candidate.ResourceID,
		Start:      candidate.Start,
		End:        candidate.End,
		ReplacesID: candidate.ID,
	}, scheduler.IntervalsOf(userRows, ToInterval), scheduler.IntervalsOf(resourceRows, ToInterval), capacity)
	if conflict == nil {
		return nil
	}

	ids := strings.Join(conflict.WithIntervalIDs, ",")
	if conflict.Type == scheduler.ConflictTypeUser {
		return fmt.Errorf("%w: overlaps %s", ErrUserOverlap, ids)
	}
	return fmt.Errorf("%w: %d of %d in use", ErrCapacityExceeded, conflict.Peak, conflict.Capacity)
}

// MatchReservation reports whether the reservation satisfies the filter.
func MatchReservation(r Reservation, filter ReservationFilter) bool {
	if filter.UserID != "" && r.UserID != filter.UserID {
		return false
	}
	if filter.ResourceID != "" && r.ResourceID != filter.ResourceID {
		return false
	}
	if len(filter.Statuses) > 0 {
		matched := false
		for _, status := range filter.Statuses {
			if r.Status == status {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	if filter.EndsAfter != nil && !r.End.After(*filter.EndsAfter) {
		return false
	}
	if filter.StartsBefore != nil && !r.Start.Before(*filter.StartsBefore) {
		return false
	}
	return true
}
