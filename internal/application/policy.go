package application

import (
	"time"

	"github.com/example/studyspace/internal/scheduler"
)

// Policy holds the tunable rules applied by the services.
type Policy struct {
	// MaxDuration bounds the length of a single reservation.
	MaxDuration time.Duration
	// DayWindow is the bookable part of every day.
	DayWindow scheduler.DayWindow
	// MinScore and MaxScore bound the productivity score recorded on StopSession.
	MinScore int
	MaxScore int
	// AdmissionRetries caps retries after the store reports a lost race.
	AdmissionRetries int
	// RetryInitialInterval is the first backoff delay between retries.
	RetryInitialInterval time.Duration
}

// DefaultPolicy returns the rules used when nothing is configured.
func DefaultPolicy() Policy {
	return Policy{
		MaxDuration:          4 * time.Hour,
		DayWindow:            scheduler.DefaultDayWindow(),
		MinScore:             1,
		MaxScore:             10,
		AdmissionRetries:     5,
		RetryInitialInterval: 20 * time.Millisecond,
	}
}

// normalized fills zero fields from DefaultPolicy.
func (p Policy) normalized() Policy {
	def := DefaultPolicy()
	if p.MaxDuration <= 0 {
		p.MaxDuration = def.MaxDuration
	}
	if p.DayWindow.Open == p.DayWindow.Close {
		p.DayWindow.Open, p.DayWindow.Close = def.DayWindow.Open, def.DayWindow.Close
	}
	if p.DayWindow.Location == nil {
		p.DayWindow.Location = def.DayWindow.Location
	}
	if p.MinScore == 0 && p.MaxScore == 0 {
		p.MinScore, p.MaxScore = def.MinScore, def.MaxScore
	}
	if p.AdmissionRetries < 0 {
		p.AdmissionRetries = 0
	}
	if p.RetryInitialInterval <= 0 {
		p.RetryInitialInterval = def.RetryInitialInterval
	}
	return p
}

// window returns the bookable window of the day containing date, clipped to
// now (rounded up to the minute) when that day has already started.
func (p Policy) window(date, now time.Time) scheduler.Window {
	window := p.DayWindow.On(date)
	return window.ClipStart(ceilMinute(now))
}

func ceilMinute(t time.Time) time.Time {
	truncated := t.Truncate(time.Minute)
	if truncated.Equal(t) {
		return t
	}
	return truncated.Add(time.Minute)
}
