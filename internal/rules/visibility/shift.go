// Package visibility partitions the patient list by a caregiver's floor
// assignment and reports whether the caregiver is inside an assigned shift.
package visibility

import (
	"fmt"
	"time"

	"github.com/jwalitptl/nursing-api/internal/model"
)

const day = 24 * time.Hour

// ShiftWindow is a daily clock range [Start, End) measured from midnight.
// A window whose End is not after its Start wraps past midnight.
type ShiftWindow struct {
	Name  model.ShiftName
	Start time.Duration
	End   time.Duration
}

func (w ShiftWindow) contains(offset time.Duration) bool {
	if w.Start < w.End {
		return offset >= w.Start && offset < w.End
	}
	return offset >= w.Start || offset < w.End
}

func (w ShiftWindow) length() time.Duration {
	if w.Start < w.End {
		return w.End - w.Start
	}
	return day - w.Start + w.End
}

// Schedule is a set of non-overlapping windows covering the whole day.
type Schedule struct {
	windows []ShiftWindow
}

func DefaultSchedule() Schedule {
	return Schedule{windows: []ShiftWindow{
		{Name: model.ShiftMorning, Start: 7 * time.Hour, End: 15 * time.Hour},
		{Name: model.ShiftAfternoon, Start: 15 * time.Hour, End: 23 * time.Hour},
		{Name: model.ShiftNight, Start: 23 * time.Hour, End: 7 * time.Hour},
	}}
}

// NewSchedule validates that windows tile the day exactly once.
func NewSchedule(windows []ShiftWindow) (Schedule, error) {
	var total time.Duration
	names := make(map[model.ShiftName]struct{}, len(windows))
	for _, w := range windows {
		if !w.Name.Valid() {
			return Schedule{}, fmt.Errorf("unknown shift %q", w.Name)
		}
		if _, dup := names[w.Name]; dup {
			return Schedule{}, fmt.Errorf("shift %q defined twice", w.Name)
		}
		names[w.Name] = struct{}{}
		if w.Start < 0 || w.Start >= day || w.End < 0 || w.End >= day || w.Start == w.End {
			return Schedule{}, fmt.Errorf("shift %q has an invalid range", w.Name)
		}
		total += w.length()
	}
	s := Schedule{windows: append([]ShiftWindow(nil), windows...)}
	if total != day {
		return Schedule{}, fmt.Errorf("shifts cover %s of the day, want 24h", total)
	}
	// Of two overlapping windows, one starts inside the other.
	for i, a := range s.windows {
		for j, b := range s.windows {
			if i != j && b.contains(a.Start) {
				return Schedule{}, fmt.Errorf("shift %q overlaps %q", a.Name, b.Name)
			}
		}
	}
	return s, nil
}

func (s Schedule) Windows() []ShiftWindow {
	return append([]ShiftWindow(nil), s.windows...)
}

// CurrentShift returns the shift containing now's wall-clock time in now's
// own location. A boundary instant belongs to the shift starting there.
func (s Schedule) CurrentShift(now time.Time) model.ShiftName {
	offset := sinceMidnight(now)
	for _, w := range s.windows {
		if w.contains(offset) {
			return w.Name
		}
	}
	return ""
}

func sinceMidnight(t time.Time) time.Duration {
	h, m, sec := t.Clock()
	return time.Duration(h)*time.Hour +
		time.Duration(m)*time.Minute +
		time.Duration(sec)*time.Second +
		time.Duration(t.Nanosecond())
}
