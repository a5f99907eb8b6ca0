package note

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/nursing-api/internal/model"
	"github.com/jwalitptl/nursing-api/internal/repository"
	"github.com/jwalitptl/nursing-api/internal/rules/notes"
	"github.com/jwalitptl/nursing-api/internal/service/audit"
	"github.com/jwalitptl/nursing-api/internal/service/event"
	"github.com/jwalitptl/nursing-api/pkg/clock"
	"github.com/jwalitptl/nursing-api/pkg/errors"
	"github.com/jwalitptl/nursing-api/pkg/logger"
	"github.com/jwalitptl/nursing-api/pkg/metrics"
)

type Service struct {
	repo     repository.NoteRepository
	patients repository.PatientRepository
	guard    *notes.Guard
	auditor  *audit.AuditLogger
	events   event.Emitter
	clock    clock.Clock
	logger   *logger.Logger
	metrics  *metrics.Metrics
}

func NewService(
	repo repository.NoteRepository,
	patients repository.PatientRepository,
	guard *notes.Guard,
	auditor *audit.AuditLogger,
	events event.Emitter,
	clk clock.Clock,
	log *logger.Logger,
	m *metrics.Metrics,
) *Service {
	if guard == nil {
		guard = notes.NewGuard()
	}
	if clk == nil {
		clk = clock.Real()
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		repo:     repo,
		patients: patients,
		guard:    guard,
		auditor:  auditor,
		events:   events,
		clock:    clk,
		logger:   log,
		metrics:  m,
	}
}

// View is a note with its editability at the time it was read.
type View struct {
	Note        *model.ClinicalNote `json:"note"`
	Editability notes.Editability   `json:"editability"`
}

// EditedEvent is the payload of a note.edited event.
type EditedEvent struct {
	NoteID    uuid.UUID      `json:"note_id"`
	PatientID uuid.UUID      `json:"patient_id"`
	EditCount int            `json:"edit_count"`
	Edit      model.NoteEdit `json:"edit"`
}

func (s *Service) Create(ctx context.Context, patientID uuid.UUID, text string, actor model.Actor) (*View, error) {
	if _, err := s.patients.Get(ctx, patientID); err != nil {
		if stderrors.Is(err, repository.ErrNotFound) {
			return nil, errors.NotFound("patient", err)
		}
		return nil, errors.Internal(err)
	}
	n, err := notes.NewNote(patientID, actor.ID, text, s.clock.Now())
	if err != nil {
		return nil, errors.BadRequest(err.Error(), err)
	}
	if err := s.repo.Create(ctx, &n); err != nil {
		return nil, errors.Internal(err)
	}
	if s.auditor != nil {
		s.auditor.Log(ctx, actor, model.AuditActionCreate, model.AuditEntityNote, n.ID, nil)
	}
	return &View{Note: &n, Editability: s.guard.IsEditable(n, s.clock.Now())}, nil
}

func (s *Service) get(ctx context.Context, id uuid.UUID) (*model.ClinicalNote, error) {
	n, err := s.repo.Get(ctx, id)
	if stderrors.Is(err, repository.ErrNotFound) {
		return nil, errors.NotFound("clinical note", err)
	}
	if err != nil {
		return nil, errors.Internal(err)
	}
	return n, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID, actor model.Actor) (*View, error) {
	n, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.auditor != nil {
		s.auditor.Log(ctx, actor, model.AuditActionRead, model.AuditEntityNote, n.ID, nil)
	}
	return &View{Note: n, Editability: s.guard.IsEditable(*n, s.clock.Now())}, nil
}

func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*model.ClinicalNote, error) {
	ns, err := s.repo.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, errors.Internal(err)
	}
	return ns, nil
}

// Edit applies one guarded edit. The write succeeds only if nobody else
// edited the note since it was read.
func (s *Service) Edit(ctx context.Context, id uuid.UUID, text, reason string, actor model.Actor) (*View, error) {
	n, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	expected := n.EditCount
	edited, edit, err := s.guard.ApplyEdit(*n, notes.EditRequest{
		Text:       text,
		EditorID:   actor.ID,
		EditorRole: actor.Role,
		Reason:     reason,
	}, now)
	if err != nil {
		s.countEdit(outcomeOf(err))
		return nil, s.editError(n, now, err)
	}

	if err := s.repo.SaveEdit(ctx, &edited, &edit, expected); err != nil {
		if stderrors.Is(err, repository.ErrEditConflict) {
			s.countEdit("conflict")
			return nil, errors.Conflict("note was edited by someone else; reload and retry", err)
		}
		return nil, errors.Internal(err)
	}
	s.countEdit("applied")

	s.logger.WithContext(ctx).Info("Clinical note edited",
		"note_id", n.ID.String(),
		"edit_count", edited.EditCount,
		"note_age_hours", edit.NoteAgeHours)
	event.EmitBestEffort(ctx, s.events, s.logger, model.EventNoteEdited, EditedEvent{
		NoteID:    edited.ID,
		PatientID: edited.PatientID,
		EditCount: edited.EditCount,
		Edit:      edit,
	})
	if s.auditor != nil {
		s.auditor.Log(ctx, actor, model.AuditActionEdit, model.AuditEntityNote, n.ID, &audit.LogOptions{
			Changes: map[string]interface{}{"edit_id": edit.ID, "edit_count": edited.EditCount},
		})
	}
	return &View{Note: &edited, Editability: s.guard.IsEditable(edited, now)}, nil
}

func (s *Service) editError(n *model.ClinicalNote, now time.Time, err error) error {
	switch {
	case stderrors.Is(err, notes.ErrEditWindowExpired):
		ed := s.guard.IsEditable(*n, now)
		return errors.Locked("note can no longer be edited", err).WithDetails(map[string]interface{}{
			"locked_at": ed.LocksAt,
			"age":       ed.Age.String(),
		})
	case stderrors.Is(err, notes.ErrEmptyText), stderrors.Is(err, notes.ErrNoChange), stderrors.Is(err, notes.ErrEditorRequired):
		return errors.BadRequest(err.Error(), err)
	default:
		return errors.Internal(err)
	}
}

func outcomeOf(err error) string {
	if stderrors.Is(err, notes.ErrEditWindowExpired) {
		return "locked"
	}
	return "rejected"
}

// History returns the edit trail, oldest first. A trail that does not
// chain from the original text is reported as an internal error.
func (s *Service) History(ctx context.Context, id uuid.UUID, actor model.Actor) ([]model.NoteEdit, error) {
	n, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := notes.VerifyTrail(*n); err != nil {
		s.logger.WithContext(ctx).Error(err, "Clinical note trail is broken", "note_id", n.ID.String())
		return nil, errors.Internal(err)
	}
	if s.auditor != nil {
		s.auditor.Log(ctx, actor, model.AuditActionRead, model.AuditEntityNote, n.ID, &audit.LogOptions{
			Metadata: map[string]interface{}{"history": true, "edits": len(n.Edits)},
		})
	}
	return n.Edits, nil
}

func (s *Service) countEdit(outcome string) {
	if s.metrics != nil {
		s.metrics.NoteEdits.WithLabelValues(outcome).Inc()
	}
}
