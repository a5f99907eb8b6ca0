package visibility

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/nursing-api/internal/model"
)

var (
	ErrSameLocation              = errors.New("transfer destination equals the current location")
	ErrTransferReasonRequired    = errors.New("transfer reason is required")
	ErrTransferCaregiverRequired = errors.New("transfer must name the registering caregiver")
	ErrIncompleteLocation        = errors.New("destination must name a room and a bed")
)

// LocationIndex resolves a patient's current location from the admission
// location and the append-only transfer history.
type LocationIndex struct {
	latest map[uuid.UUID]model.Transfer
}

// NewLocationIndex keeps the most recent transfer per patient. Transfers
// with equal timestamps resolve to the one appearing later in the slice.
func NewLocationIndex(transfers []model.Transfer) *LocationIndex {
	idx := &LocationIndex{latest: make(map[uuid.UUID]model.Transfer)}
	for _, t := range transfers {
		idx.Add(t)
	}
	return idx
}

// Add records one more transfer.
func (idx *LocationIndex) Add(t model.Transfer) {
	cur, ok := idx.latest[t.PatientID]
	if !ok || !t.Timestamp.Before(cur.Timestamp) {
		idx.latest[t.PatientID] = t
	}
}

// Locate returns the destination of the patient's latest transfer, or the
// admission location when there is none. A nil index always yields the
// admission location.
func (idx *LocationIndex) Locate(p model.Patient) model.Location {
	if idx != nil {
		if t, ok := idx.latest[p.ID]; ok {
			return t.To
		}
	}
	return p.Location
}

// NewTransfer builds the history entry moving a patient from its current
// location to to. It never modifies the patient.
func NewTransfer(p model.Patient, idx *LocationIndex, to model.Location, reason string, caregiverID uuid.UUID, now time.Time) (model.Transfer, error) {
	from := idx.Locate(p)
	reason = strings.TrimSpace(reason)
	switch {
	case strings.TrimSpace(to.Room) == "" || strings.TrimSpace(to.Bed) == "":
		return model.Transfer{}, ErrIncompleteLocation
	case to == from:
		return model.Transfer{}, ErrSameLocation
	case reason == "":
		return model.Transfer{}, ErrTransferReasonRequired
	case caregiverID == uuid.Nil:
		return model.Transfer{}, ErrTransferCaregiverRequired
	}
	return model.Transfer{
		ID:          uuid.New(),
		PatientID:   p.ID,
		From:        from,
		To:          to,
		Reason:      reason,
		CaregiverID: caregiverID,
		Timestamp:   now,
	}, nil
}
