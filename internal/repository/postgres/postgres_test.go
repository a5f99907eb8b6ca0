package postgres

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"testing/fstest"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/nursing-api/internal/model"
	"github.com/jwalitptl/nursing-api/internal/repository"
	"github.com/jwalitptl/nursing-api/pkg/logger"
)

func newMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return sqlx.NewDb(db, "sqlmock"), mock
}

func editedNote() (*model.ClinicalNote, *model.NoteEdit) {
	now := time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)
	note := &model.ClinicalNote{
		ID:           uuid.New(),
		PatientID:    uuid.New(),
		AuthorID:     uuid.New(),
		CreatedAt:    now.Add(-4 * time.Hour),
		OriginalText: "v1",
		CurrentText:  "v2",
		EditCount:    1,
		LastEditAt:   &now,
	}
	edit := &model.NoteEdit{
		ID:           uuid.New(),
		NoteID:       note.ID,
		EditorID:     note.AuthorID,
		EditorRole:   model.RoleNurse,
		Timestamp:    now,
		PreviousText: "v1",
		NewText:      "v2",
		NoteAgeHours: 4,
	}
	return note, edit
}

func TestNoteSaveEdit(t *testing.T) {
	db, mock := newMock(t)
	repo := NewNoteRepository(NewBaseRepository(db))
	note, edit := editedNote()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE clinical_notes").
		WithArgs("v2", 1, sqlmock.AnyArg(), note.ID, 0).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO clinical_note_edits").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := repo.SaveEdit(context.Background(), note, edit, 0)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNoteSaveEditConflict(t *testing.T) {
	db, mock := newMock(t)
	repo := NewNoteRepository(NewBaseRepository(db))
	note, edit := editedNote()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE clinical_notes").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.SaveEdit(context.Background(), note, edit, 0)
	assert.ErrorIs(t, err, repository.ErrEditConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNoteGetLoadsEdits(t *testing.T) {
	db, mock := newMock(t)
	repo := NewNoteRepository(NewBaseRepository(db))
	note, edit := editedNote()

	mock.ExpectQuery("FROM clinical_notes WHERE id = ").
		WithArgs(note.ID).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "patient_id", "author_id", "created_at", "original_text", "current_text", "edit_count", "last_edit_at",
		}).AddRow(
			note.ID.String(), note.PatientID.String(), note.AuthorID.String(), note.CreatedAt, "v1", "v2", 1, *note.LastEditAt,
		))
	mock.ExpectQuery("FROM clinical_note_edits WHERE note_id = ").
		WithArgs(note.ID).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "note_id", "editor_id", "editor_role", "timestamp", "reason", "previous_text", "new_text", "note_age_hours",
		}).AddRow(
			edit.ID.String(), note.ID.String(), edit.EditorID.String(), "nurse", edit.Timestamp, "", "v1", "v2", 1.5,
		))

	got, err := repo.Get(context.Background(), note.ID)
	require.NoError(t, err)
	assert.Equal(t, "v2", got.CurrentText)
	require.Len(t, got.Edits, 1)
	assert.Equal(t, model.RoleNurse, got.Edits[0].EditorRole)
	assert.Equal(t, 90*time.Minute, got.Edits[0].NoteAge)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNoteGetNotFound(t *testing.T) {
	db, mock := newMock(t)
	repo := NewNoteRepository(NewBaseRepository(db))

	mock.ExpectQuery("FROM clinical_notes").WillReturnError(sql.ErrNoRows)

	_, err := repo.Get(context.Background(), uuid.New())
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMedicationCreateLinksAlert(t *testing.T) {
	db, mock := newMock(t)
	repo := NewMedicationRepository(NewBaseRepository(db))
	reason := "benefit outweighs risk"
	alert := &model.AllergyAlert{
		ID:             uuid.New(),
		PatientID:      uuid.New(),
		Medication:     "Amoxicilina",
		MatchedRule:    "cross-class",
		Severity:       "medium",
		WasOverridden:  true,
		OverrideReason: &reason,
	}
	med := &model.MedicationAdministration{ID: uuid.New(), PatientID: alert.PatientID, Medication: "Amoxicilina"}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO allergy_alerts").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO medication_administrations").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Create(context.Background(), med, alert))
	require.NotNil(t, med.AllergyAlertID)
	assert.Equal(t, alert.ID, *med.AllergyAlertID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMedicationCreateRollsBack(t *testing.T) {
	db, mock := newMock(t)
	repo := NewMedicationRepository(NewBaseRepository(db))

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO medication_administrations").WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err := repo.Create(context.Background(), &model.MedicationAdministration{ID: uuid.New()}, nil)
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCaregiverGetScansArrays(t *testing.T) {
	db, mock := newMock(t)
	repo := NewCaregiverRepository(db)
	id := uuid.New()

	mock.ExpectQuery("FROM caregivers WHERE id = ").
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "role", "shifts", "floors"}).
			AddRow(id.String(), "Marta", "nurse", "{morning,night}", "{2,3}"))

	c, err := repo.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, []model.ShiftName{model.ShiftMorning, model.ShiftNight}, c.Shifts)
	assert.Equal(t, []int{2, 3}, c.Floors)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditListBuildsFilters(t *testing.T) {
	db, mock := newMock(t)
	repo := NewAuditRepository(NewBaseRepository(db))

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM audit_logs WHERE 1=1 AND entity_type = $1 AND action = $2")).
		WithArgs(model.AuditEntityNote, model.AuditActionRead).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY created_at DESC LIMIT $3 OFFSET $4")).
		WithArgs(model.AuditEntityNote, model.AuditActionRead, 50, 0).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "actor_id", "actor_role", "action", "entity_type", "entity_id",
			"changes", "metadata", "ip_address", "user_agent", "created_at",
		}).AddRow(
			uuid.NewString(), uuid.NewString(), "nurse", "read", "clinical_note", uuid.NewString(),
			[]byte(`null`), []byte(`{"history":true}`), "10.0.0.1", "curl", time.Now(),
		))

	logs, total, err := repo.List(context.Background(), repository.AuditFilters{
		EntityType: model.AuditEntityNote,
		Action:     model.AuditActionRead,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, logs, 1)
	assert.JSONEq(t, `{"history":true}`, string(logs[0].Metadata))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOutboxClaimAndUpdate(t *testing.T) {
	db, mock := newMock(t)
	repo := NewOutboxRepository(NewBaseRepository(db))
	ctx := context.Background()
	id := uuid.New()
	retryAt := time.Now().Add(time.Minute)
	msg := "broker unavailable"

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE SKIP LOCKED").
		WithArgs(model.OutboxStatusPending, 10).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "event_type", "payload", "status", "error_message", "retry_count", "retry_at",
			"created_at", "updated_at", "processed_at",
		}).AddRow(id.String(), model.EventVitalsCritical, []byte(`{}`), "PENDING", nil, 0, nil, time.Now(), time.Now(), nil))
	mock.ExpectExec("UPDATE outbox_events").
		WithArgs(model.OutboxStatusPending, msg, retryAt, id).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	tx, err := repo.BeginTx(ctx)
	require.NoError(t, err)
	events, err := repo.GetPendingEventsWithLock(ctx, tx, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, id, events[0].ID)
	assert.Nil(t, events[0].ErrorMessage)

	require.NoError(t, repo.UpdateStatusTx(ctx, tx, id, model.OutboxStatusPending, &msg, &retryAt))
	require.NoError(t, tx.Commit())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOutboxCreateRejectsEmptyPayload(t *testing.T) {
	db, _ := newMock(t)
	repo := NewOutboxRepository(NewBaseRepository(db))
	assert.Error(t, repo.Create(context.Background(), &model.OutboxEvent{EventType: "x"}))
	assert.Error(t, repo.Create(context.Background(), nil))
}

func migrationFiles() fstest.MapFS {
	return fstest.MapFS{
		"0002_alerts.sql": {Data: []byte("CREATE TABLE alerts (id INT);")},
		"0001_init.sql":   {Data: []byte("CREATE TABLE patients (id INT);")},
		"README.md":       {Data: []byte("docs")},
		"seed.sql":        {Data: []byte("INSERT INTO nothing;")},
	}
}

func TestMigratorLoadSortsByVersion(t *testing.T) {
	m := NewMigrator(nil, migrationFiles(), nil)
	migrations, err := m.Load()
	require.NoError(t, err)
	require.Len(t, migrations, 2)
	assert.Equal(t, 1, migrations[0].Version)
	assert.Equal(t, "0002_alerts.sql", migrations[1].Name)
}

func TestMigratorUpSkipsApplied(t *testing.T) {
	db, mock := newMock(t)
	m := NewMigrator(db, migrationFiles(), logger.Nop())

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS _migrations").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT version FROM _migrations").
		WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow(1))
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE alerts (id INT);")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO _migrations").
		WithArgs(2, "0002_alerts.sql").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	n, err := m.Up(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
