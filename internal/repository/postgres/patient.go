package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/jwalitptl/nursing-api/internal/model"
	"github.com/jwalitptl/nursing-api/internal/repository"
)

type patientRepository struct {
	db *sqlx.DB
}

func NewPatientRepository(db *sqlx.DB) repository.PatientRepository {
	return &patientRepository{db: db}
}

const patientColumns = `id, name, allergies, admission_location, admitted_at`

func (r *patientRepository) Create(ctx context.Context, patient *model.Patient) error {
	query := `
		INSERT INTO patients (id, name, allergies, admission_location, admitted_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := r.db.ExecContext(ctx, query,
		patient.ID,
		patient.Name,
		patient.Allergies,
		patient.Location,
		patient.AdmittedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create patient: %w", err)
	}
	return nil
}

func (r *patientRepository) Get(ctx context.Context, id uuid.UUID) (*model.Patient, error) {
	query := `SELECT ` + patientColumns + ` FROM patients WHERE id = $1`
	var patient model.Patient
	if err := r.db.GetContext(ctx, &patient, query, id); err != nil {
		return nil, notFound(err, "patient")
	}
	return &patient, nil
}

func (r *patientRepository) List(ctx context.Context) ([]*model.Patient, error) {
	query := `SELECT ` + patientColumns + ` FROM patients ORDER BY name, id`
	var patients []*model.Patient
	if err := r.db.SelectContext(ctx, &patients, query); err != nil {
		return nil, fmt.Errorf("failed to list patients: %w", err)
	}
	return patients, nil
}

type caregiverRepository struct {
	db *sqlx.DB
}

func NewCaregiverRepository(db *sqlx.DB) repository.CaregiverRepository {
	return &caregiverRepository{db: db}
}

type caregiverRow struct {
	ID     uuid.UUID      `db:"id"`
	Name   string         `db:"name"`
	Role   model.Role     `db:"role"`
	Shifts pq.StringArray `db:"shifts"`
	Floors pq.Int64Array  `db:"floors"`
}

func (row caregiverRow) toModel() *model.Caregiver {
	c := &model.Caregiver{ID: row.ID, Name: row.Name, Role: row.Role}
	for _, s := range row.Shifts {
		c.Shifts = append(c.Shifts, model.ShiftName(s))
	}
	for _, f := range row.Floors {
		c.Floors = append(c.Floors, int(f))
	}
	return c
}

func (r *caregiverRepository) Get(ctx context.Context, id uuid.UUID) (*model.Caregiver, error) {
	query := `SELECT id, name, role, shifts, floors FROM caregivers WHERE id = $1`
	var row caregiverRow
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		return nil, notFound(err, "caregiver")
	}
	return row.toModel(), nil
}

type transferRepository struct {
	db *sqlx.DB
}

func NewTransferRepository(db *sqlx.DB) repository.TransferRepository {
	return &transferRepository{db: db}
}

const transferColumns = `id, patient_id, from_location, to_location, reason, caregiver_id, timestamp`

func (r *transferRepository) Create(ctx context.Context, t *model.Transfer) error {
	query := `
		INSERT INTO transfers (` + transferColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.db.ExecContext(ctx, query,
		t.ID,
		t.PatientID,
		t.From,
		t.To,
		t.Reason,
		t.CaregiverID,
		t.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to create transfer: %w", err)
	}
	return nil
}

func (r *transferRepository) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*model.Transfer, error) {
	query := `SELECT ` + transferColumns + ` FROM transfers WHERE patient_id = $1 ORDER BY timestamp, id`
	var transfers []*model.Transfer
	if err := r.db.SelectContext(ctx, &transfers, query, patientID); err != nil {
		return nil, fmt.Errorf("failed to list transfers: %w", err)
	}
	return transfers, nil
}

// ListAll returns the full history in chronological order, which is the
// order the location index expects for tie-breaking.
func (r *transferRepository) ListAll(ctx context.Context) ([]*model.Transfer, error) {
	query := `SELECT ` + transferColumns + ` FROM transfers ORDER BY timestamp, id`
	var transfers []*model.Transfer
	if err := r.db.SelectContext(ctx, &transfers, query); err != nil {
		return nil, fmt.Errorf("failed to list transfers: %w", err)
	}
	return transfers, nil
}
