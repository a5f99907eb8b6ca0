package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/nursing-api/internal/model"
	"github.com/jwalitptl/nursing-api/internal/repository"
)

const insertAllergyAlert = `
	INSERT INTO allergy_alerts (
		id, patient_id, medication, matched_rule, severity,
		attempted_by, attempted_by_role, was_overridden, override_reason, timestamp
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
`

func allergyAlertArgs(a *model.AllergyAlert) []interface{} {
	return []interface{}{
		a.ID,
		a.PatientID,
		a.Medication,
		a.MatchedRule,
		a.Severity,
		a.AttemptedBy,
		a.AttemptedByRole,
		a.WasOverridden,
		a.OverrideReason,
		a.Timestamp,
	}
}

type medicationRepository struct {
	BaseRepository
}

func NewMedicationRepository(base BaseRepository) repository.MedicationRepository {
	return &medicationRepository{base}
}

func (r *medicationRepository) Create(ctx context.Context, med *model.MedicationAdministration, alert *model.AllergyAlert) error {
	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		if alert != nil {
			if _, err := tx.ExecContext(ctx, insertAllergyAlert, allergyAlertArgs(alert)...); err != nil {
				return fmt.Errorf("failed to log allergy alert: %w", err)
			}
			id := alert.ID
			med.AllergyAlertID = &id
		}

		query := `
			INSERT INTO medication_administrations (
				id, patient_id, medication, dose, route,
				administered_by, administered_by_role, administered_at, allergy_alert_id
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`
		_, err := tx.ExecContext(ctx, query,
			med.ID,
			med.PatientID,
			med.Medication,
			med.Dose,
			med.Route,
			med.AdministeredBy,
			med.AdministeredByRole,
			med.AdministeredAt,
			med.AllergyAlertID,
		)
		if err != nil {
			return fmt.Errorf("failed to create medication administration: %w", err)
		}
		return nil
	})
}

func (r *medicationRepository) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*model.MedicationAdministration, error) {
	query := `
		SELECT id, patient_id, medication, dose, route,
		       administered_by, administered_by_role, administered_at, allergy_alert_id
		FROM medication_administrations
		WHERE patient_id = $1
		ORDER BY administered_at DESC
	`
	var meds []*model.MedicationAdministration
	if err := r.GetDB().SelectContext(ctx, &meds, query, patientID); err != nil {
		return nil, fmt.Errorf("failed to list medication administrations: %w", err)
	}
	return meds, nil
}

type allergyAlertRepository struct {
	db *sqlx.DB
}

func NewAllergyAlertRepository(db *sqlx.DB) repository.AllergyAlertRepository {
	return &allergyAlertRepository{db: db}
}

func (r *allergyAlertRepository) Create(ctx context.Context, alert *model.AllergyAlert) error {
	if _, err := r.db.ExecContext(ctx, insertAllergyAlert, allergyAlertArgs(alert)...); err != nil {
		return fmt.Errorf("failed to log allergy alert: %w", err)
	}
	return nil
}

func (r *allergyAlertRepository) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*model.AllergyAlert, error) {
	query := `
		SELECT id, patient_id, medication, matched_rule, severity,
		       attempted_by, attempted_by_role, was_overridden, override_reason, timestamp
		FROM allergy_alerts
		WHERE patient_id = $1
		ORDER BY timestamp DESC
	`
	var alerts []*model.AllergyAlert
	if err := r.db.SelectContext(ctx, &alerts, query, patientID); err != nil {
		return nil, fmt.Errorf("failed to list allergy alerts: %w", err)
	}
	return alerts, nil
}
