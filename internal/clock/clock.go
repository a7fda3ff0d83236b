// Package clock is the single source of "now" and the rules for comparing
// stored instants. Every instant leaving this package is in UTC.
package clock

import (
	"math"
	"sync"
	"time"
)

const Day = 24 * time.Hour

type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func System() Clock {
	return systemClock{}
}

func (systemClock) Now() time.Time {
	return time.Now().UTC()
}

// Fixed is a settable clock for tests and tooling.
type Fixed struct {
	mu  sync.Mutex
	now time.Time
}

func NewFixed(t time.Time) *Fixed {
	return &Fixed{now: t.UTC()}
}

func (f *Fixed) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *Fixed) Set(t time.Time) {
	f.mu.Lock()
	f.now = t.UTC()
	f.mu.Unlock()
}

func (f *Fixed) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

// UTC normalizes an instant crossing the store boundary. The driver hands
// timestamptz values back in the session zone and keeps microseconds only,
// so values are truncated to match what a round trip returns.
func UTC(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

func UTCPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := UTC(*t)
	return &u
}

// DaysUntil returns the whole days from now until deadline, rounded down.
// It is negative once the deadline has passed.
func DaysUntil(deadline, now time.Time) int {
	return int(math.Floor(float64(deadline.Sub(now)) / float64(Day)))
}

func AddDays(t time.Time, days int) time.Time {
	return t.Add(time.Duration(days) * Day)
}

// StartOfDay returns, in UTC, the midnight that begins the calendar day
// containing t in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc).UTC()
}

// Later returns the later of a and b.
func Later(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}
