package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/nursing-api/internal/model"
	"github.com/jwalitptl/nursing-api/internal/repository"
)

type noteRepository struct {
	BaseRepository
}

func NewNoteRepository(base BaseRepository) repository.NoteRepository {
	return &noteRepository{base}
}

const noteColumns = `id, patient_id, author_id, created_at, original_text, current_text, edit_count, last_edit_at`

const editColumns = `id, note_id, editor_id, editor_role, timestamp, reason, previous_text, new_text, note_age_hours`

func (r *noteRepository) Create(ctx context.Context, note *model.ClinicalNote) error {
	query := `
		INSERT INTO clinical_notes (` + noteColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.GetDB().ExecContext(ctx, query,
		note.ID,
		note.PatientID,
		note.AuthorID,
		note.CreatedAt,
		note.OriginalText,
		note.CurrentText,
		note.EditCount,
		note.LastEditAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create clinical note: %w", err)
	}
	return nil
}

// Get loads the note together with its full edit history.
func (r *noteRepository) Get(ctx context.Context, id uuid.UUID) (*model.ClinicalNote, error) {
	query := `SELECT ` + noteColumns + ` FROM clinical_notes WHERE id = $1`
	var note model.ClinicalNote
	if err := r.GetDB().GetContext(ctx, &note, query, id); err != nil {
		return nil, notFound(err, "clinical note")
	}
	edits, err := r.ListEdits(ctx, id)
	if err != nil {
		return nil, err
	}
	note.Edits = edits
	return &note, nil
}

func (r *noteRepository) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*model.ClinicalNote, error) {
	query := `SELECT ` + noteColumns + ` FROM clinical_notes WHERE patient_id = $1 ORDER BY created_at DESC`
	var notes []*model.ClinicalNote
	if err := r.GetDB().SelectContext(ctx, &notes, query, patientID); err != nil {
		return nil, fmt.Errorf("failed to list clinical notes: %w", err)
	}
	return notes, nil
}

func (r *noteRepository) ListEdits(ctx context.Context, noteID uuid.UUID) ([]model.NoteEdit, error) {
	query := `SELECT ` + editColumns + ` FROM clinical_note_edits WHERE note_id = $1 ORDER BY timestamp, id`
	edits := []model.NoteEdit{}
	if err := r.GetDB().SelectContext(ctx, &edits, query, noteID); err != nil {
		return nil, fmt.Errorf("failed to list note edits: %w", err)
	}
	for i := range edits {
		edits[i].NoteAge = time.Duration(edits[i].NoteAgeHours * float64(time.Hour))
	}
	return edits, nil
}

// SaveEdit compares-and-swaps on edit_count so that of two concurrent
// edits starting from the same version exactly one wins; the loser gets
// repository.ErrEditConflict and nothing is written.
func (r *noteRepository) SaveEdit(ctx context.Context, note *model.ClinicalNote, edit *model.NoteEdit, expectedEditCount int) error {
	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		update := `
			UPDATE clinical_notes
			SET current_text = $1, edit_count = $2, last_edit_at = $3
			WHERE id = $4 AND edit_count = $5
		`
		result, err := tx.ExecContext(ctx, update,
			note.CurrentText,
			note.EditCount,
			note.LastEditAt,
			note.ID,
			expectedEditCount,
		)
		if err != nil {
			return fmt.Errorf("failed to update clinical note: %w", err)
		}

		rows, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if rows == 0 {
			return repository.ErrEditConflict
		}

		insert := `
			INSERT INTO clinical_note_edits (` + editColumns + `)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`
		_, err = tx.ExecContext(ctx, insert,
			edit.ID,
			edit.NoteID,
			edit.EditorID,
			edit.EditorRole,
			edit.Timestamp,
			edit.Reason,
			edit.PreviousText,
			edit.NewText,
			edit.NoteAgeHours,
		)
		if err != nil {
			return fmt.Errorf("failed to append note edit: %w", err)
		}
		return nil
	})
}
