package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/nursing-api/internal/model"
)

var (
	ErrNotFound = errors.New("record not found")
	// ErrEditConflict is returned when a note changed between read and write.
	ErrEditConflict = errors.New("note was edited concurrently")
)

// Clinical records are append-only: no repository exposes a delete, and
// the only update is the guarded note edit.
type (
	PatientRepository interface {
		Create(ctx context.Context, patient *model.Patient) error
		Get(ctx context.Context, id uuid.UUID) (*model.Patient, error)
		List(ctx context.Context) ([]*model.Patient, error)
	}

	CaregiverRepository interface {
		Get(ctx context.Context, id uuid.UUID) (*model.Caregiver, error)
	}

	TransferRepository interface {
		Create(ctx context.Context, transfer *model.Transfer) error
		ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*model.Transfer, error)
		ListAll(ctx context.Context) ([]*model.Transfer, error)
	}

	VitalsRepository interface {
		Create(ctx context.Context, reading *model.VitalReading) error
		ListByPatient(ctx context.Context, patientID uuid.UUID, limit int) ([]*model.VitalReading, error)
	}

	NoteRepository interface {
		Create(ctx context.Context, note *model.ClinicalNote) error
		Get(ctx context.Context, id uuid.UUID) (*model.ClinicalNote, error)
		ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*model.ClinicalNote, error)
		ListEdits(ctx context.Context, noteID uuid.UUID) ([]model.NoteEdit, error)
		// SaveEdit stores the edited overlay and appends edit atomically,
		// provided the stored edit count still equals expectedEditCount.
		SaveEdit(ctx context.Context, note *model.ClinicalNote, edit *model.NoteEdit, expectedEditCount int) error
	}

	MedicationRepository interface {
		// Create persists med. A non-nil alert is written first in the same
		// transaction and linked from med.
		Create(ctx context.Context, med *model.MedicationAdministration, alert *model.AllergyAlert) error
		ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*model.MedicationAdministration, error)
	}

	AllergyAlertRepository interface {
		Create(ctx context.Context, alert *model.AllergyAlert) error
		ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*model.AllergyAlert, error)
	}

	AuditRepository interface {
		Create(ctx context.Context, log *model.AuditLog) error
		List(ctx context.Context, filters AuditFilters) ([]*model.AuditLog, int64, error)
	}

	OutboxRepository interface {
		Create(ctx context.Context, event *model.OutboxEvent) error
		GetPendingEventsWithLock(ctx context.Context, tx *sql.Tx, limit int) ([]*model.OutboxEvent, error)
		BeginTx(ctx context.Context) (*sql.Tx, error)
		UpdateStatusTx(ctx context.Context, tx *sql.Tx, id uuid.UUID, status model.OutboxStatus, errorMessage *string, retryAt *time.Time) error
		CountPending(ctx context.Context) (int, error)
		// DeleteProcessedBefore purges relayed events older than cutoff.
		DeleteProcessedBefore(ctx context.Context, cutoff time.Time) (int64, error)
	}
)

type AuditFilters struct {
	ActorID    *uuid.UUID
	EntityType string
	EntityID   *uuid.UUID
	Action     string
	Range      model.TimeRange
	Limit      int
	Offset     int
}
