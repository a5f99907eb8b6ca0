package visibility

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/nursing-api/internal/model"
)

func at(hour, min int) time.Time {
	return time.Date(2024, 3, 10, hour, min, 0, 0, time.UTC)
}

func TestCurrentShift(t *testing.T) {
	s := DefaultSchedule()
	tests := []struct {
		now  time.Time
		want model.ShiftName
	}{
		{at(7, 0), model.ShiftMorning},
		{at(14, 59), model.ShiftMorning},
		{at(15, 0), model.ShiftAfternoon},
		{at(22, 59), model.ShiftAfternoon},
		{at(23, 0), model.ShiftNight},
		{at(0, 0), model.ShiftNight},
		{at(6, 59), model.ShiftNight},
		{at(6, 59).Add(59*time.Second + 999*time.Millisecond), model.ShiftNight},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, s.CurrentShift(tt.now), tt.now.Format("15:04:05.000"))
	}
}

func TestCurrentShift_UsesTimeLocation(t *testing.T) {
	s := DefaultSchedule()
	madrid := time.FixedZone("CET", 3600)
	now := time.Date(2024, 3, 10, 6, 30, 0, 0, time.UTC).In(madrid) // 07:30 local
	assert.Equal(t, model.ShiftMorning, s.CurrentShift(now))
}

func TestNewSchedule(t *testing.T) {
	_, err := NewSchedule(DefaultSchedule().Windows())
	require.NoError(t, err)

	_, err = NewSchedule([]ShiftWindow{
		{Name: model.ShiftMorning, Start: 7 * time.Hour, End: 15 * time.Hour},
		{Name: model.ShiftAfternoon, Start: 15 * time.Hour, End: 23 * time.Hour},
	})
	assert.Error(t, err, "gap")

	_, err = NewSchedule([]ShiftWindow{
		{Name: model.ShiftMorning, Start: 5 * time.Hour, End: 15 * time.Hour},
		{Name: model.ShiftAfternoon, Start: 0, End: 10 * time.Hour},
		{Name: model.ShiftNight, Start: 15 * time.Hour, End: 19 * time.Hour},
	})
	assert.Error(t, err, "overlap with equal total")

	_, err = NewSchedule([]ShiftWindow{
		{Name: model.ShiftMorning, Start: 0, End: 12 * time.Hour},
		{Name: model.ShiftMorning, Start: 12 * time.Hour, End: 0},
	})
	assert.Error(t, err, "duplicate")
}

func loc(floor int, room string) model.Location {
	return model.Location{Floor: floor, Area: "A", Room: room, Bed: "1"}
}

func fixture() ([]model.Patient, *LocationIndex) {
	p1 := model.Patient{ID: uuid.New(), Name: "p1", Location: loc(3, "301")}
	p2 := model.Patient{ID: uuid.New(), Name: "p2", Location: loc(2, "201")}
	p3 := model.Patient{ID: uuid.New(), Name: "p3", Location: loc(3, "302")}
	p4 := model.Patient{ID: uuid.New(), Name: "p4", Location: loc(4, "401")}

	t0 := at(8, 0)
	transfers := []model.Transfer{
		// p2 moves up to floor 3.
		{PatientID: p2.ID, From: loc(2, "201"), To: loc(3, "305"), Timestamp: t0},
		// p3 moved down, then a later move to floor 4.
		{PatientID: p3.ID, From: loc(3, "302"), To: loc(1, "101"), Timestamp: t0},
		{PatientID: p3.ID, From: loc(1, "101"), To: loc(4, "402"), Timestamp: t0.Add(time.Hour)},
	}
	return []model.Patient{p1, p2, p3, p4}, NewLocationIndex(transfers)
}

func TestLocationIndex(t *testing.T) {
	patients, idx := fixture()
	assert.Equal(t, 3, idx.Locate(patients[0]).Floor)
	assert.Equal(t, "305", idx.Locate(patients[1]).Room)
	assert.Equal(t, "402", idx.Locate(patients[2]).Room)

	// Out-of-order input still resolves to the latest entry.
	p := patients[0]
	later := model.Transfer{PatientID: p.ID, To: loc(5, "501"), Timestamp: at(12, 0)}
	earlier := model.Transfer{PatientID: p.ID, To: loc(6, "601"), Timestamp: at(9, 0)}
	assert.Equal(t, 5, NewLocationIndex([]model.Transfer{later, earlier}).Locate(p).Floor)

	// Equal timestamps resolve to the later element.
	tie := model.Transfer{PatientID: p.ID, To: loc(7, "701"), Timestamp: at(12, 0)}
	assert.Equal(t, 7, NewLocationIndex([]model.Transfer{later, tie}).Locate(p).Floor)

	var nilIdx *LocationIndex
	assert.Equal(t, p.Location, nilIdx.Locate(p))
}

func TestFilterPatients(t *testing.T) {
	patients, idx := fixture()
	part := NewPartitioner(DefaultSchedule(), OffShiftWarn)

	all := part.FilterPatients(patients, model.Caregiver{}, idx)
	assert.Len(t, all, len(patients))

	floor3 := part.FilterPatients(patients, model.Caregiver{Floors: []int{3}}, idx)
	require.Len(t, floor3, 2)
	for _, p := range floor3 {
		assert.Equal(t, 3, idx.Locate(p).Floor)
	}
	assert.Equal(t, "p1", floor3[0].Name)
	assert.Equal(t, "p2", floor3[1].Name)

	stats := part.AccessStats(model.Caregiver{Floors: []int{3, 4}}, patients, idx)
	assert.Equal(t, Stats{Assigned: 4, Total: 4}, stats)

	none := part.FilterPatients(patients, model.Caregiver{Floors: []int{9}}, idx)
	assert.Empty(t, none)
	assert.NotNil(t, none)
}

func TestCheckShiftStatus(t *testing.T) {
	part := NewPartitioner(DefaultSchedule(), "")
	assert.Equal(t, OffShiftWarn, part.Policy())

	st := part.CheckShiftStatus(model.Caregiver{}, at(3, 0))
	assert.True(t, st.InShift)
	assert.Equal(t, model.ShiftNight, st.Current)

	nurse := model.Caregiver{Shifts: []model.ShiftName{model.ShiftMorning}}
	st = part.CheckShiftStatus(nurse, at(10, 0))
	assert.True(t, st.InShift)

	st = part.CheckShiftStatus(nurse, at(16, 0))
	assert.False(t, st.InShift)
	assert.Equal(t, model.ShiftAfternoon, st.Current)
	assert.Contains(t, st.Message, "afternoon")
}

func TestVisibleNow(t *testing.T) {
	patients, idx := fixture()
	nurse := model.Caregiver{Shifts: []model.ShiftName{model.ShiftNight}, Floors: []int{3}}

	warn := NewPartitioner(DefaultSchedule(), OffShiftWarn).VisibleNow(patients, nurse, idx, at(10, 0))
	assert.False(t, warn.Shift.InShift)
	assert.False(t, warn.Restricted)
	assert.Len(t, warn.Patients, 2)

	restrict := NewPartitioner(DefaultSchedule(), OffShiftRestrict).VisibleNow(patients, nurse, idx, at(10, 0))
	assert.True(t, restrict.Restricted)
	assert.Empty(t, restrict.Patients)
	assert.Equal(t, 2, restrict.Stats.Assigned)

	onShift := NewPartitioner(DefaultSchedule(), OffShiftRestrict).VisibleNow(patients, nurse, idx, at(23, 30))
	assert.False(t, onShift.Restricted)
	assert.Len(t, onShift.Patients, 2)
}

func TestParseOffShiftPolicy(t *testing.T) {
	p, err := ParseOffShiftPolicy("restrict")
	require.NoError(t, err)
	assert.Equal(t, OffShiftRestrict, p)

	p, err = ParseOffShiftPolicy("")
	require.NoError(t, err)
	assert.Equal(t, OffShiftWarn, p)

	_, err = ParseOffShiftPolicy("block")
	assert.Error(t, err)
}

func TestNewTransfer(t *testing.T) {
	patients, idx := fixture()
	p := patients[1]
	nurse := uuid.New()
	now := at(12, 0)

	tr, err := NewTransfer(p, idx, loc(2, "210"), "  isolation ", nurse, now)
	require.NoError(t, err)
	assert.Equal(t, "305", tr.From.Room)
	assert.Equal(t, "210", tr.To.Room)
	assert.Equal(t, "isolation", tr.Reason)
	assert.Equal(t, now, tr.Timestamp)
	assert.Equal(t, loc(2, "201"), p.Location, "admission location untouched")

	_, err = NewTransfer(p, idx, loc(3, "305"), "x", nurse, now)
	assert.ErrorIs(t, err, ErrSameLocation)
	_, err = NewTransfer(p, idx, loc(2, "210"), " ", nurse, now)
	assert.ErrorIs(t, err, ErrTransferReasonRequired)
	_, err = NewTransfer(p, idx, loc(2, "210"), "x", uuid.Nil, now)
	assert.ErrorIs(t, err, ErrTransferCaregiverRequired)
	_, err = NewTransfer(p, idx, model.Location{Floor: 2}, "x", nurse, now)
	assert.ErrorIs(t, err, ErrIncompleteLocation)
}
