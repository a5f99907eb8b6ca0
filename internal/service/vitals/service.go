package vitals

import (
	"context"
	stderrors "errors"

	"github.com/google/uuid"

	"github.com/jwalitptl/nursing-api/internal/model"
	"github.com/jwalitptl/nursing-api/internal/repository"
	"github.com/jwalitptl/nursing-api/internal/rules/vitals"
	"github.com/jwalitptl/nursing-api/internal/service/audit"
	"github.com/jwalitptl/nursing-api/internal/service/event"
	"github.com/jwalitptl/nursing-api/pkg/clock"
	"github.com/jwalitptl/nursing-api/pkg/errors"
	"github.com/jwalitptl/nursing-api/pkg/logger"
	"github.com/jwalitptl/nursing-api/pkg/metrics"
)

type Service struct {
	patients   repository.PatientRepository
	readings   repository.VitalsRepository
	classifier *vitals.Classifier
	auditor    *audit.AuditLogger
	events     event.Emitter
	clock      clock.Clock
	logger     *logger.Logger
	metrics    *metrics.Metrics
}

func NewService(
	patients repository.PatientRepository,
	readings repository.VitalsRepository,
	classifier *vitals.Classifier,
	auditor *audit.AuditLogger,
	events event.Emitter,
	clk clock.Clock,
	log *logger.Logger,
	m *metrics.Metrics,
) *Service {
	if classifier == nil {
		classifier = vitals.Default()
	}
	if clk == nil {
		clk = clock.Real()
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		patients:   patients,
		readings:   readings,
		classifier: classifier,
		auditor:    auditor,
		events:     events,
		clock:      clk,
		logger:     log,
		metrics:    m,
	}
}

// Request is a raw vitals form. Values are keyed by parameter name.
type Request struct {
	PatientID uuid.UUID
	Values    map[string]string
	Actor     model.Actor
	Ack       model.Acknowledgement
}

// Outcome is the classification and, when the write was authorized, the
// stored reading. Saved=false with a nil error means the caller must
// acknowledge Required and resubmit.
type Outcome struct {
	Summary  vitals.Summary      `json:"summary"`
	Required vitals.Confirmation `json:"required_confirmation"`
	Saved    bool                `json:"saved"`
	Message  string              `json:"message,omitempty"`
	Reading  *model.VitalReading `json:"reading,omitempty"`
}

// CriticalAlert is the payload of a vitals.critical event.
type CriticalAlert struct {
	PatientID   uuid.UUID            `json:"patient_id"`
	PatientName string               `json:"patient_name"`
	ReadingID   uuid.UUID            `json:"reading_id"`
	RecordedBy  uuid.UUID            `json:"recorded_by"`
	Criticals   []vitals.FieldResult `json:"criticals"`
}

// Classify parses and classifies a form without storing it.
func (s *Service) Classify(raw map[string]string) (vitals.Summary, error) {
	b, err := vitals.ParseBundle(raw)
	if err != nil {
		return vitals.Summary{}, errors.BadRequest(err.Error(), err)
	}
	if b.Empty() {
		return vitals.Summary{}, errors.BadRequest(vitals.ErrEmptyBundle.Error(), vitals.ErrEmptyBundle)
	}
	return s.classifier.ValidateAll(b), nil
}

// Record classifies req and stores it once the required acknowledgement
// is present. Out-of-bounds values are rejected whatever the ack.
func (s *Service) Record(ctx context.Context, req Request) (*Outcome, error) {
	b, err := vitals.ParseBundle(req.Values)
	if err != nil {
		return nil, errors.BadRequest(err.Error(), err)
	}
	if b.Empty() {
		return nil, errors.BadRequest(vitals.ErrEmptyBundle.Error(), vitals.ErrEmptyBundle)
	}

	p, err := s.patients.Get(ctx, req.PatientID)
	if stderrors.Is(err, repository.ErrNotFound) {
		return nil, errors.NotFound("patient", err)
	}
	if err != nil {
		return nil, errors.Internal(err)
	}

	summary := s.classifier.ValidateAll(b)
	s.count(summary)
	out := &Outcome{Summary: summary, Required: summary.RequiredConfirmation()}

	if err := summary.AuthorizeWrite(req.Ack); err != nil {
		if stderrors.Is(err, vitals.ErrInvalidReading) {
			return nil, errors.BadRequest(err.Error(), err).WithDetails(summary)
		}
		out.Message = err.Error()
		return out, nil
	}

	reading := &model.VitalReading{
		ID:           uuid.New(),
		PatientID:    p.ID,
		RecordedBy:   req.Actor.ID,
		RecordedAt:   s.clock.Now(),
		Acknowledged: req.Ack,
	}
	b.Apply(reading)
	if err := s.readings.Create(ctx, reading); err != nil {
		return nil, errors.Internal(err)
	}
	out.Saved = true
	out.Reading = reading

	event.EmitBestEffort(ctx, s.events, s.logger, model.EventVitalsRecorded, reading)
	if len(summary.Criticals) > 0 {
		s.logger.WithContext(ctx).Warn("Critical vital signs recorded",
			"patient_id", p.ID.String(),
			"reading_id", reading.ID.String(),
			"criticals", len(summary.Criticals))
		event.EmitBestEffort(ctx, s.events, s.logger, model.EventVitalsCritical, CriticalAlert{
			PatientID:   p.ID,
			PatientName: p.Name,
			ReadingID:   reading.ID,
			RecordedBy:  req.Actor.ID,
			Criticals:   summary.Criticals,
		})
	}
	if s.auditor != nil {
		s.auditor.Log(ctx, req.Actor, model.AuditActionCreate, model.AuditEntityVitals, reading.ID, &audit.LogOptions{
			Changes:  reading,
			Metadata: map[string]interface{}{"confirmation": out.Required.String()},
		})
	}
	return out, nil
}

// History returns the latest readings, newest first.
func (s *Service) History(ctx context.Context, patientID uuid.UUID, limit int) ([]*model.VitalReading, error) {
	readings, err := s.readings.ListByPatient(ctx, patientID, limit)
	if err != nil {
		return nil, errors.Internal(err)
	}
	return readings, nil
}

func (s *Service) count(summary vitals.Summary) {
	if s.metrics == nil {
		return
	}
	for _, f := range summary.Fields {
		s.metrics.VitalsClassified.WithLabelValues(string(f.Parameter), f.Zone.String()).Inc()
	}
}
