package medication

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/nursing-api/internal/model"
	"github.com/jwalitptl/nursing-api/internal/repository/memory"
	"github.com/jwalitptl/nursing-api/internal/rules/allergy"
	"github.com/jwalitptl/nursing-api/internal/service/audit"
	"github.com/jwalitptl/nursing-api/internal/service/event"
	"github.com/jwalitptl/nursing-api/pkg/clock"
	"github.com/jwalitptl/nursing-api/pkg/errors"
	"github.com/jwalitptl/nursing-api/pkg/metrics"
)

var now = time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC)

type fixture struct {
	store   *memory.Store
	svc     *Service
	patient *model.Patient
	nurse   model.Actor
	doctor  model.Actor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewStore()
	clk := clock.NewFixed(now)
	auditSvc := audit.NewService(store.Audit(), clk)

	f := &fixture{
		store:   store,
		patient: &model.Patient{ID: uuid.New(), Name: "Ana Ruiz", Allergies: "Penicilina, Látex"},
		nurse:   model.Actor{ID: uuid.New(), Role: model.RoleNurse},
		doctor:  model.Actor{ID: uuid.New(), Role: model.RolePhysician},
	}
	require.NoError(t, store.Patients().Create(context.Background(), f.patient))

	f.svc = NewService(Deps{
		Patients: store.Patients(),
		Meds:     store.Medications(),
		Alerts:   store.Alerts(),
		Auditor:  audit.NewAuditLogger(auditSvc, nil),
		Events:   event.NewService(store.Outbox(), clk, nil),
		Clock:    clk,
		Metrics:  metrics.New("test"),
	})
	return f
}

func (f *fixture) eventTypes() []string {
	var out []string
	for _, e := range f.store.Events() {
		out = append(out, e.EventType)
	}
	return out
}

func TestAdministerOverrideScenario(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	req := Request{PatientID: f.patient.ID, Medication: "Amoxicilina 500mg", Dose: "500mg", Route: "oral", Actor: f.nurse}

	// First attempt is blocked and logged.
	out, err := f.svc.Administer(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, allergy.GatePendingOverride, out.Gate)
	assert.Equal(t, allergy.VerdictBlocked, out.Result.Verdict)
	assert.Nil(t, out.Administration)
	require.NotNil(t, out.Alert)
	assert.Equal(t, "class:penicillins", out.Alert.MatchedRule)
	assert.Equal(t, "high", out.Alert.Severity)
	assert.False(t, out.Alert.WasOverridden)
	assert.Contains(t, out.Message, "Ana Ruiz")
	assert.Contains(t, out.Message, "penicilina")

	// A nurse cannot override.
	req.Override = true
	req.OverrideReason = "physician asked verbally"
	out, err = f.svc.Administer(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, allergy.GateOverrideRejected, out.Gate)
	assert.Contains(t, out.Message, "not authorized")

	// A physician must give a reason.
	req.Actor = f.doctor
	req.OverrideReason = "  "
	out, err = f.svc.Administer(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, allergy.GateOverrideRejected, out.Gate)
	assert.Contains(t, out.Message, "reason is required")

	// An authorized override goes through and links its alert.
	req.OverrideReason = "desensitization protocol in place"
	out, err = f.svc.Administer(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, allergy.GateProceed, out.Gate)
	require.NotNil(t, out.Administration)
	require.NotNil(t, out.Alert)
	assert.True(t, out.Alert.WasOverridden)
	require.NotNil(t, out.Alert.OverrideReason)
	assert.Equal(t, "desensitization protocol in place", *out.Alert.OverrideReason)
	require.NotNil(t, out.Administration.AllergyAlertID)
	assert.Equal(t, out.Alert.ID, *out.Administration.AllergyAlertID)
	assert.Equal(t, now, out.Administration.AdministeredAt)
	assert.Equal(t, model.RolePhysician, out.Administration.AdministeredByRole)

	alerts, err := f.svc.Alerts(ctx, f.patient.ID)
	require.NoError(t, err)
	assert.Len(t, alerts, 4)

	meds, err := f.svc.History(ctx, f.patient.ID)
	require.NoError(t, err)
	assert.Len(t, meds, 1)

	assert.Equal(t, []string{
		model.EventAllergyBlocked,
		model.EventAllergyBlocked,
		model.EventAllergyBlocked,
		model.EventAllergyOverride,
		model.EventMedicationGiven,
	}, f.eventTypes())

	entries := f.store.AuditEntries()
	require.Len(t, entries, 1)
	assert.Equal(t, model.AuditActionOverride, entries[0].Action)
	assert.Equal(t, f.doctor.ID, entries[0].ActorID)
}

func TestAdministerCrossReactivityNeedsConfirmation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	req := Request{PatientID: f.patient.ID, Medication: "Cefalexina", Actor: f.nurse}

	out, err := f.svc.Administer(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, allergy.GatePendingConfirmation, out.Gate)
	assert.Equal(t, allergy.VerdictWarnAndConfirm, out.Result.Verdict)
	assert.Nil(t, out.Administration)
	assert.Empty(t, f.store.Events())

	req.Confirmed = true
	out, err = f.svc.Administer(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, allergy.GateProceed, out.Gate)
	require.NotNil(t, out.Administration)
	assert.Nil(t, out.Administration.AllergyAlertID)
	assert.Nil(t, out.Alert)
}

func TestAdministerClear(t *testing.T) {
	f := newFixture(t)
	out, err := f.svc.Administer(context.Background(), Request{PatientID: f.patient.ID, Medication: "Paracetamol 1g", Actor: f.nurse})
	require.NoError(t, err)
	assert.Equal(t, allergy.GateProceed, out.Gate)
	assert.Equal(t, allergy.VerdictClear, out.Result.Verdict)
	assert.Equal(t, []string{model.EventMedicationGiven}, f.eventTypes())
	assert.Equal(t, model.AuditActionCreate, f.store.AuditEntries()[0].Action)
}

func TestAdministerInputErrors(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.svc.Administer(ctx, Request{PatientID: f.patient.ID, Medication: " ", Actor: f.nurse})
	assert.True(t, errors.IsCode(err, errors.ErrBadRequest))

	_, err = f.svc.Administer(ctx, Request{PatientID: uuid.New(), Medication: "Ibuprofeno", Actor: f.nurse})
	assert.True(t, errors.IsCode(err, errors.ErrNotFound))

	f.store.FailNext = assert.AnError
	_, err = f.svc.Administer(ctx, Request{PatientID: f.patient.ID, Medication: "Paracetamol", Actor: f.nurse})
	assert.True(t, errors.IsCode(err, errors.ErrInternal))
}

func TestCheck(t *testing.T) {
	f := newFixture(t)
	v, err := f.svc.Check(context.Background(), f.patient.ID, "Látex gloves")
	require.NoError(t, err)
	assert.False(t, v.Valid)
	assert.Equal(t, allergy.VerdictBlocked, v.Result.Verdict)
	assert.Empty(t, f.store.Events())
}
