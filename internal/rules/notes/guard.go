// Package notes enforces the write-once-then-lock lifecycle of clinical
// notes and produces the audit entry for every permitted edit.
package notes

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/nursing-api/internal/model"
)

// EditWindow is how long a note stays editable after creation. It is a
// compliance constraint and is not configurable.
const EditWindow = 24 * time.Hour

var (
	ErrEditWindowExpired = errors.New("edit window has expired")
	ErrEmptyText         = errors.New("note text is required")
	ErrNoChange          = errors.New("new text is identical to the current text")
	ErrEditorRequired    = errors.New("edit must name the editor and a valid role")
	ErrBrokenTrail       = errors.New("edit history does not match the note")
)

type State int

const (
	StateCreated State = iota
	StateEditable
	StateLocked
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateEditable:
		return "editable"
	default:
		return "locked"
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Editability is rendered with whole-second durations for workstation
// clients; Remaining and Age keep full precision for callers in process.
type Editability struct {
	Editable         bool          `json:"editable"`
	Remaining        time.Duration `json:"-"`
	Age              time.Duration `json:"-"`
	RemainingSeconds int64         `json:"remaining_seconds"`
	AgeSeconds       int64         `json:"age_seconds"`
	State            State         `json:"state"`
	LocksAt          time.Time     `json:"locks_at"`
}

// Guard measures every note against one fixed window counted from
// creation. Later edits never extend it.
type Guard struct {
	window time.Duration
}

func NewGuard() *Guard {
	return &Guard{window: EditWindow}
}

func (g *Guard) Window() time.Duration {
	return g.window
}

// IsEditable reports the note's position in its lifecycle at now. A now
// earlier than creation counts as age zero.
func (g *Guard) IsEditable(note model.ClinicalNote, now time.Time) Editability {
	age := now.Sub(note.CreatedAt)
	if age < 0 {
		age = 0
	}
	remaining := g.window - age
	if remaining < 0 {
		remaining = 0
	}
	e := Editability{
		Editable:         remaining > 0,
		Remaining:        remaining,
		Age:              age,
		RemainingSeconds: int64(remaining / time.Second),
		AgeSeconds:       int64(age / time.Second),
		LocksAt:          note.CreatedAt.Add(g.window),
	}
	switch {
	case !e.Editable:
		e.State = StateLocked
	case age == 0:
		e.State = StateCreated
	default:
		e.State = StateEditable
	}
	return e
}

// NewNote creates a note whose original and current text are both text.
func NewNote(patientID, authorID uuid.UUID, text string, now time.Time) (model.ClinicalNote, error) {
	if strings.TrimSpace(text) == "" {
		return model.ClinicalNote{}, ErrEmptyText
	}
	if authorID == uuid.Nil {
		return model.ClinicalNote{}, ErrEditorRequired
	}
	return model.ClinicalNote{
		ID:           uuid.New(),
		PatientID:    patientID,
		AuthorID:     authorID,
		CreatedAt:    now,
		OriginalText: text,
		CurrentText:  text,
		Edits:        []model.NoteEdit{},
	}, nil
}

type EditRequest struct {
	Text       string
	EditorID   uuid.UUID
	EditorRole model.Role
	Reason     string
}

// ApplyEdit returns the edited copy of note together with the audit entry
// it appended. The input note, including its Edits slice, is left intact.
// After the window closes the edit is rejected with ErrEditWindowExpired.
func (g *Guard) ApplyEdit(note model.ClinicalNote, req EditRequest, now time.Time) (model.ClinicalNote, model.NoteEdit, error) {
	ed := g.IsEditable(note, now)
	if !ed.Editable {
		return note, model.NoteEdit{}, fmt.Errorf("%w: note %s locked at %s",
			ErrEditWindowExpired, note.ID, ed.LocksAt.Format(time.RFC3339))
	}
	if strings.TrimSpace(req.Text) == "" {
		return note, model.NoteEdit{}, ErrEmptyText
	}
	if req.Text == note.CurrentText {
		return note, model.NoteEdit{}, ErrNoChange
	}
	if req.EditorID == uuid.Nil || !req.EditorRole.Valid() {
		return note, model.NoteEdit{}, ErrEditorRequired
	}

	edit := model.NoteEdit{
		ID:           uuid.New(),
		NoteID:       note.ID,
		EditorID:     req.EditorID,
		EditorRole:   req.EditorRole,
		Timestamp:    now,
		Reason:       strings.TrimSpace(req.Reason),
		PreviousText: note.CurrentText,
		NewText:      req.Text,
		NoteAge:      ed.Age,
		NoteAgeHours: ed.Age.Hours(),
	}

	out := note
	if out.OriginalText == "" && note.EditCount == 0 {
		out.OriginalText = note.CurrentText
	}
	out.Edits = make([]model.NoteEdit, 0, len(note.Edits)+1)
	out.Edits = append(out.Edits, note.Edits...)
	out.Edits = append(out.Edits, edit)
	out.CurrentText = req.Text
	out.EditCount = note.EditCount + 1
	editedAt := now
	out.LastEditAt = &editedAt
	return out, edit, nil
}

// VerifyTrail checks that the edit history chains from the original text to
// the current text with one entry per counted edit.
func VerifyTrail(note model.ClinicalNote) error {
	if len(note.Edits) != note.EditCount {
		return fmt.Errorf("%w: %d entries for %d edits", ErrBrokenTrail, len(note.Edits), note.EditCount)
	}
	prev := note.OriginalText
	for i, e := range note.Edits {
		if e.PreviousText != prev {
			return fmt.Errorf("%w: entry %d does not follow its predecessor", ErrBrokenTrail, i)
		}
		prev = e.NewText
	}
	if prev != note.CurrentText {
		return fmt.Errorf("%w: current text differs from last entry", ErrBrokenTrail)
	}
	return nil
}
