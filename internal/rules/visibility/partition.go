package visibility

import (
	"fmt"
	"time"

	"github.com/samber/lo"

	"github.com/jwalitptl/nursing-api/internal/model"
)

// OffShiftPolicy decides what a caregiver outside every assigned shift
// sees in the live patient list.
type OffShiftPolicy string

const (
	// OffShiftWarn keeps the assignment-based list and flags the caregiver.
	OffShiftWarn OffShiftPolicy = "warn"
	// OffShiftRestrict hides the list until the caregiver is on shift.
	OffShiftRestrict OffShiftPolicy = "restrict"
)

func ParseOffShiftPolicy(s string) (OffShiftPolicy, error) {
	switch OffShiftPolicy(s) {
	case "", OffShiftWarn:
		return OffShiftWarn, nil
	case OffShiftRestrict:
		return OffShiftRestrict, nil
	}
	return "", fmt.Errorf("unknown off-shift policy %q", s)
}

type Partitioner struct {
	schedule Schedule
	policy   OffShiftPolicy
}

func NewPartitioner(schedule Schedule, policy OffShiftPolicy) *Partitioner {
	if policy == "" {
		policy = OffShiftWarn
	}
	return &Partitioner{schedule: schedule, policy: policy}
}

func (p *Partitioner) Schedule() Schedule     { return p.schedule }
func (p *Partitioner) Policy() OffShiftPolicy { return p.policy }

// FilterPatients returns the patients the caregiver is assigned to by
// floor, independent of the clock. No floor assignment means every floor.
func (p *Partitioner) FilterPatients(patients []model.Patient, c model.Caregiver, idx *LocationIndex) []model.Patient {
	if len(c.Floors) == 0 {
		return append([]model.Patient{}, patients...)
	}
	return lo.Filter(patients, func(pt model.Patient, _ int) bool {
		return lo.Contains(c.Floors, idx.Locate(pt).Floor)
	})
}

type Stats struct {
	Assigned int `json:"assigned"`
	Total    int `json:"total"`
}

func (p *Partitioner) AccessStats(c model.Caregiver, patients []model.Patient, idx *LocationIndex) Stats {
	return Stats{
		Assigned: len(p.FilterPatients(patients, c, idx)),
		Total:    len(patients),
	}
}

type ShiftStatus struct {
	InShift  bool              `json:"in_shift"`
	Current  model.ShiftName   `json:"current"`
	Assigned []model.ShiftName `json:"assigned,omitempty"`
	Message  string            `json:"message,omitempty"`
}

// CheckShiftStatus reports whether now falls inside one of the caregiver's
// assigned shifts. A caregiver without assigned shifts is always on shift.
func (p *Partitioner) CheckShiftStatus(c model.Caregiver, now time.Time) ShiftStatus {
	current := p.schedule.CurrentShift(now)
	st := ShiftStatus{Current: current, Assigned: c.Shifts}
	switch {
	case len(c.Shifts) == 0:
		st.InShift = true
	case lo.Contains(c.Shifts, current):
		st.InShift = true
		st.Message = fmt.Sprintf("on %s shift", current)
	default:
		st.Message = fmt.Sprintf("outside assigned shifts %v; current shift is %s", c.Shifts, current)
	}
	return st
}

// View is the live patient list for a caregiver.
type View struct {
	Patients   []model.Patient `json:"patients"`
	Stats      Stats           `json:"stats"`
	Shift      ShiftStatus     `json:"shift"`
	Restricted bool            `json:"restricted"`
}

// VisibleNow combines the assignment filter with the live shift status
// under the configured off-shift policy.
func (p *Partitioner) VisibleNow(patients []model.Patient, c model.Caregiver, idx *LocationIndex, now time.Time) View {
	assigned := p.FilterPatients(patients, c, idx)
	v := View{
		Patients: assigned,
		Stats:    Stats{Assigned: len(assigned), Total: len(patients)},
		Shift:    p.CheckShiftStatus(c, now),
	}
	if !v.Shift.InShift && p.policy == OffShiftRestrict {
		v.Patients = []model.Patient{}
		v.Restricted = true
	}
	return v
}
