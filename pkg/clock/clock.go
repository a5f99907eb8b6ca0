package clock

import "time"

// Clock supplies the current instant to time-sensitive services.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

// Real returns a Clock backed by time.Now.
func Real() Clock {
	return realClock{}
}

func (realClock) Now() time.Time {
	return time.Now()
}

// Fixed is a Clock that always reports the same instant. Tests move it with Advance.
type Fixed struct {
	At time.Time
}

func NewFixed(at time.Time) *Fixed {
	return &Fixed{At: at}
}

func (f *Fixed) Now() time.Time {
	return f.At
}

func (f *Fixed) Advance(d time.Duration) {
	f.At = f.At.Add(d)
}

type zoned struct {
	base Clock
	loc  *time.Location
}

// In reports base's instants in loc. Shift windows are wall-clock ranges,
// so the API clock runs in the ward's zone.
func In(base Clock, loc *time.Location) Clock {
	if loc == nil {
		return base
	}
	return zoned{base: base, loc: loc}
}

func (z zoned) Now() time.Time {
	return z.base.Now().In(z.loc)
}
