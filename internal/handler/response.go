package handler

import (
	"github.com/jwalitptl/nursing-api/internal/model"
)

// LocationBody is a bed position as submitted by the station.
type LocationBody struct {
	Floor int    `json:"floor" binding:"required,min=1"`
	Area  string `json:"area"`
	Room  string `json:"room" binding:"required"`
	Bed   string `json:"bed" binding:"required"`
}

func (b LocationBody) Model() model.Location {
	return model.Location{Floor: b.Floor, Area: b.Area, Room: b.Room, Bed: b.Bed}
}

// PatientResponse is a patient with the bed they occupy now.
type PatientResponse struct {
	*model.Patient
	CurrentLocation model.Location `json:"current_location"`
}
