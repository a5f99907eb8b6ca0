package medication

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/jwalitptl/nursing-api/internal/model"
	"github.com/jwalitptl/nursing-api/internal/repository"
	"github.com/jwalitptl/nursing-api/internal/rules/allergy"
	"github.com/jwalitptl/nursing-api/internal/service/audit"
	"github.com/jwalitptl/nursing-api/internal/service/event"
	"github.com/jwalitptl/nursing-api/pkg/clock"
	"github.com/jwalitptl/nursing-api/pkg/errors"
	"github.com/jwalitptl/nursing-api/pkg/logger"
	"github.com/jwalitptl/nursing-api/pkg/metrics"
)

type Service struct {
	patients repository.PatientRepository
	meds     repository.MedicationRepository
	alerts   repository.AllergyAlertRepository
	matcher  *allergy.Matcher
	policy   allergy.Policy
	auditor  *audit.AuditLogger
	events   event.Emitter
	clock    clock.Clock
	logger   *logger.Logger
	metrics  *metrics.Metrics
}

type Deps struct {
	Patients repository.PatientRepository
	Meds     repository.MedicationRepository
	Alerts   repository.AllergyAlertRepository
	Matcher  *allergy.Matcher
	Policy   allergy.Policy
	Auditor  *audit.AuditLogger
	Events   event.Emitter
	Clock    clock.Clock
	Logger   *logger.Logger
	Metrics  *metrics.Metrics
}

func NewService(d Deps) *Service {
	if d.Matcher == nil {
		d.Matcher = allergy.NewMatcher(nil)
	}
	if len(d.Policy.OverrideRoles) == 0 {
		d.Policy = allergy.DefaultPolicy()
	}
	if d.Clock == nil {
		d.Clock = clock.Real()
	}
	if d.Logger == nil {
		d.Logger = logger.Nop()
	}
	return &Service{
		patients: d.Patients,
		meds:     d.Meds,
		alerts:   d.Alerts,
		matcher:  d.Matcher,
		policy:   d.Policy,
		auditor:  d.Auditor,
		events:   d.Events,
		clock:    d.Clock,
		logger:   d.Logger,
		metrics:  d.Metrics,
	}
}

// Request is one medication submission. Confirmed answers a previous
// warning; Override with OverrideReason asks to bypass a block.
type Request struct {
	PatientID      uuid.UUID
	Medication     string
	Dose           string
	Route          string
	Actor          model.Actor
	Confirmed      bool
	Override       bool
	OverrideReason string
}

// Outcome reports the gate the submission reached. Administration is set
// only when Gate is Proceed.
type Outcome struct {
	Gate           allergy.Gate                    `json:"gate"`
	Result         allergy.Result                  `json:"result"`
	Message        string                          `json:"message,omitempty"`
	Administration *model.MedicationAdministration `json:"administration,omitempty"`
	Alert          *model.AllergyAlert             `json:"alert,omitempty"`
}

func (s *Service) patient(ctx context.Context, id uuid.UUID) (*model.Patient, error) {
	p, err := s.patients.Get(ctx, id)
	if stderrors.Is(err, repository.ErrNotFound) {
		return nil, errors.NotFound("patient", err)
	}
	if err != nil {
		return nil, errors.Internal(err)
	}
	return p, nil
}

// Check runs the allergy match without recording anything.
func (s *Service) Check(ctx context.Context, patientID uuid.UUID, medication string) (allergy.Validation, error) {
	if strings.TrimSpace(medication) == "" {
		return allergy.Validation{}, errors.BadRequest("medication is required", nil)
	}
	p, err := s.patient(ctx, patientID)
	if err != nil {
		return allergy.Validation{}, err
	}
	v := s.matcher.ValidateMedicationForPatient(medication, p)
	s.countVerdict(v.Result.Verdict)
	return v, nil
}

// Administer gates req through the allergy policy and records the
// administration once the gate opens. Blocks and pending confirmations are
// returned as outcomes, not errors.
func (s *Service) Administer(ctx context.Context, req Request) (*Outcome, error) {
	if strings.TrimSpace(req.Medication) == "" {
		return nil, errors.BadRequest("medication is required", nil)
	}
	p, err := s.patient(ctx, req.PatientID)
	if err != nil {
		return nil, err
	}

	result := s.matcher.CheckMedication(req.Medication, allergy.ParseAllergies(p.Allergies))
	s.countVerdict(result.Verdict)

	var res allergy.Resolution
	res.Confirmed = req.Confirmed
	if req.Override || req.OverrideReason != "" {
		res.Override = &allergy.Override{Role: req.Actor.Role, Reason: req.OverrideReason}
	}
	decision := s.policy.Resolve(result, res)

	log := s.logger.WithContext(ctx)
	out := &Outcome{Gate: decision.Gate, Result: result}
	now := s.clock.Now()

	switch decision.Gate {
	case allergy.GatePendingConfirmation:
		out.Message = fmt.Sprintf("%s: %s needs confirmation: %s", p.Name, req.Medication, result.Reasons())
		return out, nil

	case allergy.GatePendingOverride, allergy.GateOverrideRejected:
		alert := s.newAlert(p, req, result, false, nil)
		if err := s.alerts.Create(ctx, alert); err != nil {
			return nil, errors.Internal(err)
		}
		out.Alert = alert
		out.Message = fmt.Sprintf("%s: %s is contraindicated: %s", p.Name, req.Medication, result.Reasons())
		if decision.Gate == allergy.GateOverrideRejected {
			out.Message = fmt.Sprintf("%s (override rejected: %v)", out.Message, decision.Err)
			s.countOverride("rejected")
		}
		log.Warn("Medication blocked by allergy check",
			"patient_id", p.ID.String(),
			"medication", req.Medication,
			"rule", alert.MatchedRule,
			"severity", alert.Severity,
			"gate", decision.Gate.String())
		event.EmitBestEffort(ctx, s.events, s.logger, model.EventAllergyBlocked, alert)
		return out, nil
	}

	med := &model.MedicationAdministration{
		ID:                 uuid.New(),
		PatientID:          p.ID,
		Medication:         strings.TrimSpace(req.Medication),
		Dose:               req.Dose,
		Route:              req.Route,
		AdministeredBy:     req.Actor.ID,
		AdministeredByRole: req.Actor.Role,
		AdministeredAt:     now,
	}

	var alert *model.AllergyAlert
	if decision.Overridden {
		reason := strings.TrimSpace(req.OverrideReason)
		alert = s.newAlert(p, req, result, true, &reason)
	}
	if err := s.meds.Create(ctx, med, alert); err != nil {
		return nil, errors.Internal(err)
	}
	out.Administration = med
	out.Alert = alert

	if alert != nil {
		s.countOverride("accepted")
		log.Warn("Allergy block overridden",
			"patient_id", p.ID.String(),
			"medication", med.Medication,
			"rule", alert.MatchedRule,
			"role", string(req.Actor.Role))
		event.EmitBestEffort(ctx, s.events, s.logger, model.EventAllergyOverride, alert)
	}
	event.EmitBestEffort(ctx, s.events, s.logger, model.EventMedicationGiven, med)

	if s.auditor != nil {
		action := model.AuditActionCreate
		if alert != nil {
			action = model.AuditActionOverride
		}
		s.auditor.Log(ctx, req.Actor, action, model.AuditEntityMedication, med.ID, &audit.LogOptions{
			Changes:  med,
			Metadata: map[string]interface{}{"verdict": result.Verdict.String(), "rules": result.Rules()},
		})
	}
	return out, nil
}

func (s *Service) newAlert(p *model.Patient, req Request, result allergy.Result, overridden bool, reason *string) *model.AllergyAlert {
	return &model.AllergyAlert{
		ID:              uuid.New(),
		PatientID:       p.ID,
		Medication:      strings.TrimSpace(req.Medication),
		MatchedRule:     strings.Join(result.Rules(), "; "),
		Severity:        result.Severity().String(),
		AttemptedBy:     req.Actor.ID,
		AttemptedByRole: req.Actor.Role,
		WasOverridden:   overridden,
		OverrideReason:  reason,
		Timestamp:       s.clock.Now(),
	}
}

func (s *Service) History(ctx context.Context, patientID uuid.UUID) ([]*model.MedicationAdministration, error) {
	if _, err := s.patient(ctx, patientID); err != nil {
		return nil, err
	}
	meds, err := s.meds.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, errors.Internal(err)
	}
	return meds, nil
}

func (s *Service) Alerts(ctx context.Context, patientID uuid.UUID) ([]*model.AllergyAlert, error) {
	if _, err := s.patient(ctx, patientID); err != nil {
		return nil, err
	}
	alerts, err := s.alerts.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, errors.Internal(err)
	}
	return alerts, nil
}

func (s *Service) countVerdict(v allergy.Verdict) {
	if s.metrics != nil {
		s.metrics.AllergyChecks.WithLabelValues(v.String()).Inc()
	}
}

func (s *Service) countOverride(outcome string) {
	if s.metrics != nil {
		s.metrics.AllergyOverrides.WithLabelValues(outcome).Inc()
	}
}
