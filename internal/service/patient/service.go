package patient

import (
	"context"
	stderrors "errors"
	"strings"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
	"github.com/samber/lo"

	"github.com/jwalitptl/nursing-api/internal/model"
	"github.com/jwalitptl/nursing-api/internal/repository"
	"github.com/jwalitptl/nursing-api/internal/rules/visibility"
	"github.com/jwalitptl/nursing-api/internal/service/audit"
	"github.com/jwalitptl/nursing-api/internal/service/event"
	"github.com/jwalitptl/nursing-api/pkg/clock"
	"github.com/jwalitptl/nursing-api/pkg/errors"
	"github.com/jwalitptl/nursing-api/pkg/logger"
	"github.com/jwalitptl/nursing-api/pkg/metrics"
)

type Service struct {
	repo        repository.PatientRepository
	caregivers  repository.CaregiverRepository
	transfers   repository.TransferRepository
	partitioner *visibility.Partitioner
	cache       *gocache.Cache
	auditor     *audit.AuditLogger
	events      event.Emitter
	clock       clock.Clock
	logger      *logger.Logger
	metrics     *metrics.Metrics
}

type Deps struct {
	Patients    repository.PatientRepository
	Caregivers  repository.CaregiverRepository
	Transfers   repository.TransferRepository
	Partitioner *visibility.Partitioner
	// CaregiverTTL is how long assignments are cached; zero disables caching.
	CaregiverTTL time.Duration
	Auditor      *audit.AuditLogger
	Events       event.Emitter
	Clock        clock.Clock
	Logger       *logger.Logger
	Metrics      *metrics.Metrics
}

func NewService(d Deps) *Service {
	if d.Partitioner == nil {
		d.Partitioner = visibility.NewPartitioner(visibility.DefaultSchedule(), visibility.OffShiftWarn)
	}
	if d.Clock == nil {
		d.Clock = clock.Real()
	}
	if d.Logger == nil {
		d.Logger = logger.Nop()
	}
	s := &Service{
		repo:        d.Patients,
		caregivers:  d.Caregivers,
		transfers:   d.Transfers,
		partitioner: d.Partitioner,
		auditor:     d.Auditor,
		events:      d.Events,
		clock:       d.Clock,
		logger:      d.Logger,
		metrics:     d.Metrics,
	}
	if d.CaregiverTTL > 0 {
		s.cache = gocache.New(d.CaregiverTTL, 2*d.CaregiverTTL)
	}
	return s
}

func notFoundOr(err error, what string) error {
	if stderrors.Is(err, repository.ErrNotFound) {
		return errors.NotFound(what, err)
	}
	return errors.Internal(err)
}

// AdmitRequest creates a patient at an admission location.
type AdmitRequest struct {
	Name      string
	Allergies string
	Location  model.Location
}

func (s *Service) Admit(ctx context.Context, req AdmitRequest, actor model.Actor) (*model.Patient, error) {
	if strings.TrimSpace(req.Name) == "" {
		return nil, errors.BadRequest("patient name is required", nil)
	}
	if req.Location.Room == "" || req.Location.Bed == "" {
		return nil, errors.BadRequest(visibility.ErrIncompleteLocation.Error(), visibility.ErrIncompleteLocation)
	}
	p := &model.Patient{
		ID:         uuid.New(),
		Name:       strings.TrimSpace(req.Name),
		Allergies:  req.Allergies,
		Location:   req.Location,
		AdmittedAt: s.clock.Now(),
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, errors.Internal(err)
	}
	if s.auditor != nil {
		s.auditor.Log(ctx, actor, model.AuditActionCreate, model.AuditEntityPatient, p.ID, &audit.LogOptions{Changes: p})
	}
	return p, nil
}

// Get returns the patient with its current location resolved from the
// transfer log.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*model.Patient, model.Location, error) {
	p, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, model.Location{}, notFoundOr(err, "patient")
	}
	idx, err := s.patientIndex(ctx, id)
	if err != nil {
		return nil, model.Location{}, err
	}
	return p, idx.Locate(*p), nil
}

// Caregiver loads an assignment, served from cache while fresh.
func (s *Service) Caregiver(ctx context.Context, id uuid.UUID) (*model.Caregiver, error) {
	key := id.String()
	if s.cache != nil {
		if c, ok := s.cache.Get(key); ok {
			return c.(*model.Caregiver), nil
		}
	}
	c, err := s.caregivers.Get(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "caregiver")
	}
	if s.cache != nil {
		s.cache.SetDefault(key, c)
	}
	return c, nil
}

// Visible returns the live patient list for the acting caregiver.
func (s *Service) Visible(ctx context.Context, actor model.Actor) (*visibility.View, error) {
	c, err := s.Caregiver(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	patients, err := s.repo.List(ctx)
	if err != nil {
		return nil, errors.Internal(err)
	}
	transfers, err := s.transfers.ListAll(ctx)
	if err != nil {
		return nil, errors.Internal(err)
	}

	idx := visibility.NewLocationIndex(derefTransfers(transfers))
	all := lo.Map(patients, func(p *model.Patient, _ int) model.Patient { return *p })
	view := s.partitioner.VisibleNow(all, *c, idx, s.clock.Now())

	if s.metrics != nil {
		s.metrics.VisibilityQueries.WithLabelValues(boolLabel(view.Shift.InShift)).Inc()
	}
	if !view.Shift.InShift {
		s.logger.WithContext(ctx).Warn("Patient list requested off shift",
			"caregiver_id", c.ID.String(),
			"shift", string(view.Shift.Current),
			"restricted", view.Restricted)
	}
	if s.auditor != nil {
		s.auditor.Log(ctx, actor, model.AuditActionList, model.AuditEntityPatient, c.ID, &audit.LogOptions{
			Metadata: map[string]interface{}{
				"assigned":   view.Stats.Assigned,
				"total":      view.Stats.Total,
				"in_shift":   view.Shift.InShift,
				"restricted": view.Restricted,
			},
		})
	}
	return &view, nil
}

// TransferRequest moves a patient to a new bed.
type TransferRequest struct {
	PatientID uuid.UUID
	To        model.Location
	Reason    string
}

func (s *Service) Transfer(ctx context.Context, req TransferRequest, actor model.Actor) (*model.Transfer, error) {
	p, err := s.repo.Get(ctx, req.PatientID)
	if err != nil {
		return nil, notFoundOr(err, "patient")
	}
	idx, err := s.patientIndex(ctx, p.ID)
	if err != nil {
		return nil, err
	}

	t, err := visibility.NewTransfer(*p, idx, req.To, req.Reason, actor.ID, s.clock.Now())
	if err != nil {
		return nil, errors.BadRequest(err.Error(), err)
	}
	if err := s.transfers.Create(ctx, &t); err != nil {
		return nil, errors.Internal(err)
	}

	s.logger.WithContext(ctx).Info("Patient transferred",
		"patient_id", p.ID.String(),
		"from", t.From.String(),
		"to", t.To.String())
	event.EmitBestEffort(ctx, s.events, s.logger, model.EventPatientTransferred, t)
	if s.auditor != nil {
		s.auditor.Log(ctx, actor, model.AuditActionTransfer, model.AuditEntityTransfer, t.ID, &audit.LogOptions{Changes: t})
	}
	return &t, nil
}

func (s *Service) Transfers(ctx context.Context, patientID uuid.UUID) ([]*model.Transfer, error) {
	if _, err := s.repo.Get(ctx, patientID); err != nil {
		return nil, notFoundOr(err, "patient")
	}
	ts, err := s.transfers.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, errors.Internal(err)
	}
	return ts, nil
}

// ShiftStatus reports the acting caregiver's shift at the current time.
func (s *Service) ShiftStatus(ctx context.Context, actor model.Actor) (visibility.ShiftStatus, error) {
	c, err := s.Caregiver(ctx, actor.ID)
	if err != nil {
		return visibility.ShiftStatus{}, err
	}
	return s.partitioner.CheckShiftStatus(*c, s.clock.Now()), nil
}

func (s *Service) patientIndex(ctx context.Context, patientID uuid.UUID) (*visibility.LocationIndex, error) {
	ts, err := s.transfers.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, errors.Internal(err)
	}
	return visibility.NewLocationIndex(derefTransfers(ts)), nil
}

func derefTransfers(ts []*model.Transfer) []model.Transfer {
	return lo.Map(ts, func(t *model.Transfer, _ int) model.Transfer { return *t })
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
