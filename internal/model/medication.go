package model

import (
	"time"

	"github.com/google/uuid"
)

type MedicationAdministration struct {
	ID                 uuid.UUID  `json:"id" db:"id"`
	PatientID          uuid.UUID  `json:"patient_id" db:"patient_id"`
	Medication         string     `json:"medication" db:"medication"`
	Dose               string     `json:"dose,omitempty" db:"dose"`
	Route              string     `json:"route,omitempty" db:"route"`
	AdministeredBy     uuid.UUID  `json:"administered_by" db:"administered_by"`
	AdministeredByRole Role       `json:"administered_by_role" db:"administered_by_role"`
	AdministeredAt     time.Time  `json:"administered_at" db:"administered_at"`
	AllergyAlertID     *uuid.UUID `json:"allergy_alert_id,omitempty" db:"allergy_alert_id"`
}

// AllergyAlert records a contraindicated medication attempt. Rows are never
// updated; an override produces a second row.
type AllergyAlert struct {
	ID              uuid.UUID `json:"id" db:"id"`
	PatientID       uuid.UUID `json:"patient_id" db:"patient_id"`
	Medication      string    `json:"medication" db:"medication"`
	MatchedRule     string    `json:"matched_rule" db:"matched_rule"`
	Severity        string    `json:"severity" db:"severity"`
	AttemptedBy     uuid.UUID `json:"attempted_by" db:"attempted_by"`
	AttemptedByRole Role      `json:"attempted_by_role" db:"attempted_by_role"`
	WasOverridden   bool      `json:"was_overridden" db:"was_overridden"`
	OverrideReason  *string   `json:"override_reason,omitempty" db:"override_reason"`
	Timestamp       time.Time `json:"timestamp" db:"timestamp"`
}
