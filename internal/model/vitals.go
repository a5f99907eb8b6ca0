package model

import (
	"time"

	"github.com/google/uuid"
)

type Acknowledgement string

const (
	AckNone     Acknowledgement = ""
	AckWarnings Acknowledgement = "warnings"
	AckCritical Acknowledgement = "critical"
)

// VitalReading is one submission; nil fields were not measured.
type VitalReading struct {
	ID              uuid.UUID       `json:"id" db:"id"`
	PatientID       uuid.UUID       `json:"patient_id" db:"patient_id"`
	RecordedBy      uuid.UUID       `json:"recorded_by" db:"recorded_by"`
	RecordedAt      time.Time       `json:"recorded_at" db:"recorded_at"`
	Temperature     *float64        `json:"temperature,omitempty" db:"temperature"`
	Systolic        *float64        `json:"systolic,omitempty" db:"systolic"`
	Diastolic       *float64        `json:"diastolic,omitempty" db:"diastolic"`
	HeartRate       *float64        `json:"heart_rate,omitempty" db:"heart_rate"`
	RespiratoryRate *float64        `json:"respiratory_rate,omitempty" db:"respiratory_rate"`
	SpO2            *float64        `json:"spo2,omitempty" db:"spo2"`
	Glucose         *float64        `json:"glucose,omitempty" db:"glucose"`
	Pain            *float64        `json:"pain,omitempty" db:"pain"`
	Acknowledged    Acknowledgement `json:"acknowledged,omitempty" db:"acknowledged"`
}
