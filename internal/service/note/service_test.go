package note

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/nursing-api/internal/model"
	"github.com/jwalitptl/nursing-api/internal/repository"
	"github.com/jwalitptl/nursing-api/internal/repository/memory"
	"github.com/jwalitptl/nursing-api/internal/rules/notes"
	"github.com/jwalitptl/nursing-api/internal/service/audit"
	"github.com/jwalitptl/nursing-api/internal/service/event"
	"github.com/jwalitptl/nursing-api/pkg/clock"
	"github.com/jwalitptl/nursing-api/pkg/errors"
	"github.com/jwalitptl/nursing-api/pkg/metrics"
)

// racingRepo lets a test slip a competing write in between read and save.
type racingRepo struct {
	repository.NoteRepository
	beforeSave func()
}

func (r *racingRepo) SaveEdit(ctx context.Context, n *model.ClinicalNote, e *model.NoteEdit, expected int) error {
	if r.beforeSave != nil {
		hook := r.beforeSave
		r.beforeSave = nil
		hook()
	}
	return r.NoteRepository.SaveEdit(ctx, n, e, expected)
}

type fixture struct {
	store   *memory.Store
	repo    *racingRepo
	clock   *clock.Fixed
	svc     *Service
	patient *model.Patient
	author  model.Actor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewStore()
	clk := clock.NewFixed(time.Date(2026, 2, 10, 8, 0, 0, 0, time.UTC))
	p := &model.Patient{ID: uuid.New(), Name: "Elena"}
	require.NoError(t, store.Patients().Create(context.Background(), p))

	repo := &racingRepo{NoteRepository: store.Notes()}
	svc := NewService(
		repo,
		store.Patients(),
		notes.NewGuard(),
		audit.NewAuditLogger(audit.NewService(store.Audit(), clk), nil),
		event.NewService(store.Outbox(), clk, nil),
		clk,
		nil,
		metrics.New("test"),
	)
	return &fixture{store: store, repo: repo, clock: clk, svc: svc, patient: p, author: model.Actor{ID: uuid.New(), Role: model.RoleNurse}}
}

func TestEditWithinWindow(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	created, err := f.svc.Create(ctx, f.patient.ID, "Patient slept well.", f.author)
	require.NoError(t, err)
	assert.Equal(t, notes.StateCreated, created.Editability.State)

	f.clock.Advance(23*time.Hour + 59*time.Minute)
	edited, err := f.svc.Edit(ctx, created.Note.ID, "Patient slept well, woke at 05:00.", "detail", f.author)
	require.NoError(t, err)
	assert.Equal(t, 1, edited.Note.EditCount)
	assert.Equal(t, "Patient slept well.", edited.Note.OriginalText)
	assert.Equal(t, time.Minute, edited.Editability.Remaining)

	history, err := f.svc.History(ctx, created.Note.ID, f.author)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "Patient slept well.", history[0].PreviousText)
	assert.InDelta(t, 23.983, history[0].NoteAgeHours, 0.001)

	events := f.store.Events()
	require.Len(t, events, 1)
	assert.Equal(t, model.EventNoteEdited, events[0].EventType)
}

func TestEditAfterWindowIsLocked(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	created, err := f.svc.Create(ctx, f.patient.ID, "Initial assessment.", f.author)
	require.NoError(t, err)

	f.clock.Advance(24 * time.Hour)
	_, err = f.svc.Edit(ctx, created.Note.ID, "Changed.", "", f.author)
	require.Error(t, err)
	appErr, ok := errors.As(err)
	require.True(t, ok)
	assert.Equal(t, errors.ErrLocked, appErr.Code)
	assert.ErrorIs(t, err, notes.ErrEditWindowExpired)
	assert.Contains(t, appErr.Details, "locked_at")

	view, err := f.svc.Get(ctx, created.Note.ID, f.author)
	require.NoError(t, err)
	assert.Equal(t, "Initial assessment.", view.Note.CurrentText)
	assert.Equal(t, notes.StateLocked, view.Editability.State)
	assert.Empty(t, f.store.Events())
}

func TestEditConflict(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	created, err := f.svc.Create(ctx, f.patient.ID, "v1", f.author)
	require.NoError(t, err)

	other := model.Actor{ID: uuid.New(), Role: model.RoleNurse}
	f.repo.beforeSave = func() {
		_, err := f.svc.Edit(ctx, created.Note.ID, "v2 from colleague", "", other)
		require.NoError(t, err)
	}

	_, err = f.svc.Edit(ctx, created.Note.ID, "v2 from author", "", f.author)
	assert.True(t, errors.IsCode(err, errors.ErrConflict))
	assert.ErrorIs(t, err, repository.ErrEditConflict)

	history, err := f.svc.History(ctx, created.Note.ID, f.author)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "v2 from colleague", history[0].NewText)
}

func TestEditInputErrors(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	created, err := f.svc.Create(ctx, f.patient.ID, "same", f.author)
	require.NoError(t, err)

	_, err = f.svc.Edit(ctx, created.Note.ID, "  ", "", f.author)
	assert.True(t, errors.IsCode(err, errors.ErrBadRequest))
	_, err = f.svc.Edit(ctx, created.Note.ID, "same", "", f.author)
	assert.True(t, errors.IsCode(err, errors.ErrBadRequest))
	_, err = f.svc.Edit(ctx, uuid.New(), "x", "", f.author)
	assert.True(t, errors.IsCode(err, errors.ErrNotFound))

	_, err = f.svc.Create(ctx, f.patient.ID, "", f.author)
	assert.True(t, errors.IsCode(err, errors.ErrBadRequest))
	_, err = f.svc.Create(ctx, uuid.New(), "text", f.author)
	assert.True(t, errors.IsCode(err, errors.ErrNotFound))
}
