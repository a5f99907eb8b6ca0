package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/nursing-api/internal/model"
	"github.com/jwalitptl/nursing-api/internal/repository"
)

type vitalsRepository struct {
	db *sqlx.DB
}

func NewVitalsRepository(db *sqlx.DB) repository.VitalsRepository {
	return &vitalsRepository{db: db}
}

func (r *vitalsRepository) Create(ctx context.Context, v *model.VitalReading) error {
	query := `
		INSERT INTO vital_readings (
			id, patient_id, recorded_by, recorded_at,
			temperature, systolic, diastolic, heart_rate,
			respiratory_rate, spo2, glucose, pain, acknowledged
		) VALUES (
			:id, :patient_id, :recorded_by, :recorded_at,
			:temperature, :systolic, :diastolic, :heart_rate,
			:respiratory_rate, :spo2, :glucose, :pain, :acknowledged
		)
	`
	if _, err := r.db.NamedExecContext(ctx, query, v); err != nil {
		return fmt.Errorf("failed to create vital reading: %w", err)
	}
	return nil
}

func (r *vitalsRepository) ListByPatient(ctx context.Context, patientID uuid.UUID, limit int) ([]*model.VitalReading, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT id, patient_id, recorded_by, recorded_at,
		       temperature, systolic, diastolic, heart_rate,
		       respiratory_rate, spo2, glucose, pain, acknowledged
		FROM vital_readings
		WHERE patient_id = $1
		ORDER BY recorded_at DESC
		LIMIT $2
	`
	var readings []*model.VitalReading
	if err := r.db.SelectContext(ctx, &readings, query, patientID, limit); err != nil {
		return nil, fmt.Errorf("failed to list vital readings: %w", err)
	}
	return readings, nil
}
