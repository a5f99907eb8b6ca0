// Package memory implements the repositories in process. Service tests use
// it; it keeps the same append-only and edit-count rules as PostgreSQL.
package memory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/nursing-api/internal/model"
	"github.com/jwalitptl/nursing-api/internal/repository"
)

var errNoTx = errors.New("memory outbox does not support transactions")

// Store holds every table. The typed repositories below share it.
type Store struct {
	mu          sync.RWMutex
	patients    map[uuid.UUID]model.Patient
	caregivers  map[uuid.UUID]model.Caregiver
	transfers   []model.Transfer
	vitals      []model.VitalReading
	notes       map[uuid.UUID]model.ClinicalNote
	edits       []model.NoteEdit
	medications []model.MedicationAdministration
	alerts      []model.AllergyAlert
	audit       []model.AuditLog
	outbox      []model.OutboxEvent

	// FailNext, when set, is returned by the next write and then cleared.
	FailNext error
}

func NewStore() *Store {
	return &Store{
		patients:   make(map[uuid.UUID]model.Patient),
		caregivers: make(map[uuid.UUID]model.Caregiver),
		notes:      make(map[uuid.UUID]model.ClinicalNote),
	}
}

func (s *Store) failure() error {
	err := s.FailNext
	s.FailNext = nil
	return err
}

// PutCaregiver seeds a caregiver; caregivers are managed outside this service.
func (s *Store) PutCaregiver(c model.Caregiver) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.caregivers[c.ID] = c
}

func (s *Store) Patients() repository.PatientRepository       { return patientRepo{s} }
func (s *Store) Caregivers() repository.CaregiverRepository   { return caregiverRepo{s} }
func (s *Store) Transfers() repository.TransferRepository     { return transferRepo{s} }
func (s *Store) Vitals() repository.VitalsRepository          { return vitalsRepo{s} }
func (s *Store) Notes() repository.NoteRepository             { return noteRepo{s} }
func (s *Store) Medications() repository.MedicationRepository { return medicationRepo{s} }
func (s *Store) Alerts() repository.AllergyAlertRepository    { return alertRepo{s} }
func (s *Store) Audit() repository.AuditRepository            { return auditRepo{s} }
func (s *Store) Outbox() repository.OutboxRepository          { return outboxRepo{s} }

// Events returns the queued outbox events in insertion order.
func (s *Store) Events() []model.OutboxEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.OutboxEvent(nil), s.outbox...)
}

// AuditEntries returns every audit entry in insertion order.
func (s *Store) AuditEntries() []model.AuditLog {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.AuditLog(nil), s.audit...)
}

type patientRepo struct{ s *Store }

func (r patientRepo) Create(ctx context.Context, p *model.Patient) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure(); err != nil {
		return err
	}
	if _, ok := r.s.patients[p.ID]; ok {
		return fmt.Errorf("patient %s already exists", p.ID)
	}
	r.s.patients[p.ID] = *p
	return nil
}

func (r patientRepo) Get(ctx context.Context, id uuid.UUID) (*model.Patient, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	p, ok := r.s.patients[id]
	if !ok {
		return nil, fmt.Errorf("patient: %w", repository.ErrNotFound)
	}
	return &p, nil
}

func (r patientRepo) List(ctx context.Context) ([]*model.Patient, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]*model.Patient, 0, len(r.s.patients))
	for _, p := range r.s.patients {
		p := p
		out = append(out, &p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

type caregiverRepo struct{ s *Store }

func (r caregiverRepo) Get(ctx context.Context, id uuid.UUID) (*model.Caregiver, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	c, ok := r.s.caregivers[id]
	if !ok {
		return nil, fmt.Errorf("caregiver: %w", repository.ErrNotFound)
	}
	return &c, nil
}

type transferRepo struct{ s *Store }

func (r transferRepo) Create(ctx context.Context, t *model.Transfer) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure(); err != nil {
		return err
	}
	r.s.transfers = append(r.s.transfers, *t)
	return nil
}

func (r transferRepo) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*model.Transfer, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []*model.Transfer
	for i := len(r.s.transfers) - 1; i >= 0; i-- {
		if t := r.s.transfers[i]; t.PatientID == patientID {
			out = append(out, &t)
		}
	}
	return out, nil
}

func (r transferRepo) ListAll(ctx context.Context) ([]*model.Transfer, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]*model.Transfer, 0, len(r.s.transfers))
	for i := range r.s.transfers {
		t := r.s.transfers[i]
		out = append(out, &t)
	}
	return out, nil
}

type vitalsRepo struct{ s *Store }

func (r vitalsRepo) Create(ctx context.Context, v *model.VitalReading) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure(); err != nil {
		return err
	}
	r.s.vitals = append(r.s.vitals, *v)
	return nil
}

func (r vitalsRepo) ListByPatient(ctx context.Context, patientID uuid.UUID, limit int) ([]*model.VitalReading, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []*model.VitalReading
	for i := len(r.s.vitals) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		if v := r.s.vitals[i]; v.PatientID == patientID {
			out = append(out, &v)
		}
	}
	return out, nil
}

type noteRepo struct{ s *Store }

func (r noteRepo) Create(ctx context.Context, n *model.ClinicalNote) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure(); err != nil {
		return err
	}
	stored := *n
	stored.Edits = nil
	r.s.notes[n.ID] = stored
	return nil
}

func (r noteRepo) Get(ctx context.Context, id uuid.UUID) (*model.ClinicalNote, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	n, ok := r.s.notes[id]
	if !ok {
		return nil, fmt.Errorf("clinical note: %w", repository.ErrNotFound)
	}
	n.Edits = r.s.editsOf(id)
	return &n, nil
}

func (r noteRepo) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*model.ClinicalNote, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []*model.ClinicalNote
	for _, n := range r.s.notes {
		if n.PatientID == patientID {
			n := n
			out = append(out, &n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r noteRepo) ListEdits(ctx context.Context, noteID uuid.UUID) ([]model.NoteEdit, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.s.editsOf(noteID), nil
}

func (s *Store) editsOf(noteID uuid.UUID) []model.NoteEdit {
	out := []model.NoteEdit{}
	for _, e := range s.edits {
		if e.NoteID == noteID {
			out = append(out, e)
		}
	}
	return out
}

func (r noteRepo) SaveEdit(ctx context.Context, n *model.ClinicalNote, edit *model.NoteEdit, expectedEditCount int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure(); err != nil {
		return err
	}
	stored, ok := r.s.notes[n.ID]
	if !ok {
		return fmt.Errorf("clinical note: %w", repository.ErrNotFound)
	}
	if stored.EditCount != expectedEditCount {
		return repository.ErrEditConflict
	}
	if n.EditCount != stored.EditCount+1 {
		return fmt.Errorf("edit_count must advance by one")
	}
	stored.CurrentText = n.CurrentText
	stored.EditCount = n.EditCount
	stored.LastEditAt = n.LastEditAt
	if stored.OriginalText == "" {
		stored.OriginalText = n.OriginalText
	}
	r.s.notes[n.ID] = stored
	r.s.edits = append(r.s.edits, *edit)
	return nil
}

type medicationRepo struct{ s *Store }

func (r medicationRepo) Create(ctx context.Context, med *model.MedicationAdministration, alert *model.AllergyAlert) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure(); err != nil {
		return err
	}
	if alert != nil {
		r.s.alerts = append(r.s.alerts, *alert)
		id := alert.ID
		med.AllergyAlertID = &id
	}
	r.s.medications = append(r.s.medications, *med)
	return nil
}

func (r medicationRepo) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*model.MedicationAdministration, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []*model.MedicationAdministration
	for i := len(r.s.medications) - 1; i >= 0; i-- {
		if m := r.s.medications[i]; m.PatientID == patientID {
			out = append(out, &m)
		}
	}
	return out, nil
}

type alertRepo struct{ s *Store }

func (r alertRepo) Create(ctx context.Context, a *model.AllergyAlert) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure(); err != nil {
		return err
	}
	r.s.alerts = append(r.s.alerts, *a)
	return nil
}

func (r alertRepo) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*model.AllergyAlert, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []*model.AllergyAlert
	for i := len(r.s.alerts) - 1; i >= 0; i-- {
		if a := r.s.alerts[i]; a.PatientID == patientID {
			out = append(out, &a)
		}
	}
	return out, nil
}

type auditRepo struct{ s *Store }

func (r auditRepo) Create(ctx context.Context, l *model.AuditLog) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure(); err != nil {
		return err
	}
	r.s.audit = append(r.s.audit, *l)
	return nil
}

func (r auditRepo) List(ctx context.Context, f repository.AuditFilters) ([]*model.AuditLog, int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var matched []*model.AuditLog
	for i := len(r.s.audit) - 1; i >= 0; i-- {
		l := r.s.audit[i]
		switch {
		case f.ActorID != nil && l.ActorID != *f.ActorID,
			f.EntityType != "" && l.EntityType != f.EntityType,
			f.EntityID != nil && l.EntityID != *f.EntityID,
			f.Action != "" && l.Action != f.Action,
			!f.Range.From.IsZero() && l.CreatedAt.Before(f.Range.From),
			!f.Range.To.IsZero() && l.CreatedAt.After(f.Range.To):
			continue
		}
		matched = append(matched, &l)
	}
	total := int64(len(matched))
	if f.Offset >= len(matched) {
		return []*model.AuditLog{}, total, nil
	}
	matched = matched[f.Offset:]
	if f.Limit > 0 && len(matched) > f.Limit {
		matched = matched[:f.Limit]
	}
	return matched, total, nil
}

type outboxRepo struct{ s *Store }

func (r outboxRepo) Create(ctx context.Context, e *model.OutboxEvent) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure(); err != nil {
		return err
	}
	r.s.outbox = append(r.s.outbox, *e)
	return nil
}

func (r outboxRepo) GetPendingEventsWithLock(ctx context.Context, tx *sql.Tx, limit int) ([]*model.OutboxEvent, error) {
	return nil, errNoTx
}

func (r outboxRepo) BeginTx(ctx context.Context) (*sql.Tx, error) {
	return nil, errNoTx
}

func (r outboxRepo) UpdateStatusTx(ctx context.Context, tx *sql.Tx, id uuid.UUID, status model.OutboxStatus, errorMessage *string, retryAt *time.Time) error {
	return errNoTx
}

func (r outboxRepo) CountPending(ctx context.Context) (int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	n := 0
	for _, e := range r.s.outbox {
		if e.Status == model.OutboxStatusPending {
			n++
		}
	}
	return n, nil
}

func (r outboxRepo) DeleteProcessedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	kept := r.s.outbox[:0]
	var n int64
	for _, e := range r.s.outbox {
		if e.Status == model.OutboxStatusProcessed && e.ProcessedAt != nil && e.ProcessedAt.Before(cutoff) {
			n++
			continue
		}
		kept = append(kept, e)
	}
	r.s.outbox = kept
	return n, nil
}
