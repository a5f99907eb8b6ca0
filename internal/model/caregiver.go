package model

import (
	"github.com/google/uuid"
)

type Role string

const (
	RoleNurse      Role = "nurse"
	RoleAuxiliary  Role = "auxiliary"
	RolePhysician  Role = "physician"
	RoleAdmin      Role = "admin"
	RolePharmacist Role = "pharmacist"
)

func (r Role) Valid() bool {
	switch r {
	case RoleNurse, RoleAuxiliary, RolePhysician, RoleAdmin, RolePharmacist:
		return true
	}
	return false
}

type ShiftName string

const (
	ShiftMorning   ShiftName = "morning"
	ShiftAfternoon ShiftName = "afternoon"
	ShiftNight     ShiftName = "night"
)

func (s ShiftName) Valid() bool {
	switch s {
	case ShiftMorning, ShiftAfternoon, ShiftNight:
		return true
	}
	return false
}

// Caregiver is a member of the ward staff. Empty Shifts or Floors means
// the caregiver is unrestricted on that axis.
type Caregiver struct {
	ID     uuid.UUID   `json:"id" db:"id"`
	Name   string      `json:"name" db:"name"`
	Role   Role        `json:"role" db:"role"`
	Shifts []ShiftName `json:"shifts,omitempty" db:"-"`
	Floors []int       `json:"floors,omitempty" db:"-"`
}

// Actor identifies who performs an operation.
type Actor struct {
	ID   uuid.UUID `json:"id"`
	Role Role      `json:"role"`
}
