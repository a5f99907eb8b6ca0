package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Location is a bed position inside the hospital.
type Location struct {
	Floor int    `json:"floor"`
	Area  string `json:"area"`
	Room  string `json:"room"`
	Bed   string `json:"bed"`
}

func (l Location) String() string {
	return fmt.Sprintf("floor %d / %s / room %s / bed %s", l.Floor, l.Area, l.Room, l.Bed)
}

func (l Location) Value() (driver.Value, error) {
	return json.Marshal(l)
}

func (l *Location) Scan(src interface{}) error {
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, l)
	case string:
		return json.Unmarshal([]byte(v), l)
	case nil:
		*l = Location{}
		return nil
	}
	return fmt.Errorf("cannot scan %T into Location", src)
}

type Patient struct {
	ID         uuid.UUID `json:"id" db:"id"`
	Name       string    `json:"name" db:"name"`
	Allergies  string    `json:"allergies" db:"allergies"`
	Location   Location  `json:"admission_location" db:"admission_location"`
	AdmittedAt time.Time `json:"admitted_at" db:"admitted_at"`
}

// Transfer is an append-only change of a patient's bed.
type Transfer struct {
	ID          uuid.UUID `json:"id" db:"id"`
	PatientID   uuid.UUID `json:"patient_id" db:"patient_id"`
	From        Location  `json:"from_location" db:"from_location"`
	To          Location  `json:"to_location" db:"to_location"`
	Reason      string    `json:"reason" db:"reason"`
	CaregiverID uuid.UUID `json:"caregiver_id" db:"caregiver_id"`
	Timestamp   time.Time `json:"timestamp" db:"timestamp"`
}
