package model

import (
	"time"

	"github.com/google/uuid"
)

// ClinicalNote has an immutable core (ID, PatientID, AuthorID, CreatedAt,
// OriginalText) and an audited overlay changed only through guarded edits.
type ClinicalNote struct {
	ID           uuid.UUID  `json:"id" db:"id"`
	PatientID    uuid.UUID  `json:"patient_id" db:"patient_id"`
	AuthorID     uuid.UUID  `json:"author_id" db:"author_id"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
	OriginalText string     `json:"original_text" db:"original_text"`
	CurrentText  string     `json:"current_text" db:"current_text"`
	EditCount    int        `json:"edit_count" db:"edit_count"`
	LastEditAt   *time.Time `json:"last_edit_at,omitempty" db:"last_edit_at"`
	Edits        []NoteEdit `json:"edits,omitempty" db:"-"`
}

type NoteEdit struct {
	ID           uuid.UUID     `json:"id" db:"id"`
	NoteID       uuid.UUID     `json:"note_id" db:"note_id"`
	EditorID     uuid.UUID     `json:"editor_id" db:"editor_id"`
	EditorRole   Role          `json:"editor_role" db:"editor_role"`
	Timestamp    time.Time     `json:"timestamp" db:"timestamp"`
	Reason       string        `json:"reason,omitempty" db:"reason"`
	PreviousText string        `json:"previous_text" db:"previous_text"`
	NewText      string        `json:"new_text" db:"new_text"`
	NoteAge      time.Duration `json:"-" db:"-"`
	NoteAgeHours float64       `json:"note_age_hours" db:"note_age_hours"`
}
