package scheduler

import (
	"fmt"
	"time"
)

// TimeOfDay is a wall-clock time without a date.
type TimeOfDay struct {
	Hour   int
	Minute int
}

// ParseTimeOfDay parses "HH:MM".
func ParseTimeOfDay(value string) (TimeOfDay, error) {
	t, err := time.Parse("15:04", value)
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("scheduler: invalid time of day %q: %w", value, err)
	}
	return TimeOfDay{Hour: t.Hour(), Minute: t.Minute()}, nil
}

// String formats the time as "HH:MM".
func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

func (t TimeOfDay) minutes() int {
	return t.Hour*60 + t.Minute
}

// Before reports whether t is earlier in the day than other.
func (t TimeOfDay) Before(other TimeOfDay) bool {
	return t.minutes() < other.minutes()
}

// Window is a half-open time range.
type Window struct {
	Start time.Time
	End   time.Time
}

// Empty reports whether the window contains no instants.
func (w Window) Empty() bool {
	return !w.Start.Before(w.End)
}

// Contains reports whether [start, end) lies fully inside the window.
func (w Window) Contains(start, end time.Time) bool {
	return !start.Before(w.Start) && !end.After(w.End)
}

// ClipStart moves the window start forward to at, keeping End unchanged.
func (w Window) ClipStart(at time.Time) Window {
	if at.After(w.Start) {
		w.Start = at
	}
	return w
}

// DayWindow describes the bookable hours of every day.
type DayWindow struct {
	Open     TimeOfDay
	Close    TimeOfDay
	Location *time.Location
}

// DefaultDayWindow opens at 08:00 and closes at 22:00 UTC.
func DefaultDayWindow() DayWindow {
	return DayWindow{
		Open:     TimeOfDay{Hour: 8},
		Close:    TimeOfDay{Hour: 22},
		Location: time.UTC,
	}
}

func (d DayWindow) location() *time.Location {
	if d.Location == nil {
		return time.UTC
	}
	return d.Location
}

// On returns the window for the calendar day containing date, evaluated in the
// day window's location.
func (d DayWindow) On(date time.Time) Window {
	loc := d.location()
	local := date.In(loc)
	y, m, day := local.Date()
	return Window{
		Start: time.Date(y, m, day, d.Open.Hour, d.Open.Minute, 0, 0, loc),
		End:   time.Date(y, m, day, d.Close.Hour, d.Close.Minute, 0, 0, loc),
	}
}

// StartOfDay returns local midnight of the day containing date.
func (d DayWindow) StartOfDay(date time.Time) time.Time {
	loc := d.location()
	local := date.In(loc)
	y, m, day := local.Date()
	return time.Date(y, m, day, 0, 0, 0, 0, loc)
}
