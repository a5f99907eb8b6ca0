package email

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/gomail.v2"

	"github.com/jwalitptl/nursing-api/internal/model"
	"github.com/jwalitptl/nursing-api/internal/rules/vitals"
	vitalsvc "github.com/jwalitptl/nursing-api/internal/service/vitals"
)

type fakeDialer struct {
	sent []*gomail.Message
	err  error
}

func (d *fakeDialer) DialAndSend(m ...*gomail.Message) error {
	if d.err != nil {
		return d.err
	}
	d.sent = append(d.sent, m...)
	return nil
}

type recorder struct {
	subjects []string
	bodies   []string
}

func (r *recorder) Send(ctx context.Context, subject, body string) error {
	r.subjects = append(r.subjects, subject)
	r.bodies = append(r.bodies, body)
	return nil
}

func TestSMTPServiceSend(t *testing.T) {
	d := &fakeDialer{}
	svc := newService(d, "ward@hospital.test", []string{"supervisor@hospital.test"})

	require.NoError(t, svc.Send(context.Background(), "hello", "body"))
	require.Len(t, d.sent, 1)
	assert.Equal(t, []string{"hello"}, d.sent[0].GetHeader("Subject"))
	assert.Equal(t, []string{"supervisor@hospital.test"}, d.sent[0].GetHeader("To"))
}

func TestSMTPServiceErrors(t *testing.T) {
	svc := newService(&fakeDialer{}, "ward@hospital.test", nil)
	assert.ErrorIs(t, svc.Send(context.Background(), "s", "b"), ErrNoRecipients)

	boom := errors.New("connection refused")
	svc = newService(&fakeDialer{err: boom}, "ward@hospital.test", []string{"a@b.test"})
	assert.ErrorIs(t, svc.Send(context.Background(), "s", "b"), boom)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, svc.Send(ctx, "s", "b"), context.Canceled)
}

func TestHandleVitalsCritical(t *testing.T) {
	rec := &recorder{}
	n := NewNotifier(rec, nil)
	spo2 := 84.0
	payload, err := json.Marshal(vitalsvc.CriticalAlert{
		PatientID:   uuid.New(),
		PatientName: "Elena",
		ReadingID:   uuid.New(),
		RecordedBy:  uuid.New(),
		Criticals: []vitals.FieldResult{
			{Parameter: vitals.SpO2, Value: &spo2, Zone: vitals.ZoneCriticalLow, Message: "SpO2 84 below 90"},
		},
	})
	require.NoError(t, err)

	require.NoError(t, n.Handlers()[model.EventVitalsCritical](payload))
	require.Len(t, rec.subjects, 1)
	assert.Equal(t, "[CRITICAL] vital signs for Elena", rec.subjects[0])
	assert.Contains(t, rec.bodies[0], "SpO2 84 below 90")
}

func TestHandleAllergyOverride(t *testing.T) {
	rec := &recorder{}
	n := NewNotifier(rec, nil)
	reason := "no alternative available"
	payload, err := json.Marshal(model.AllergyAlert{
		ID:              uuid.New(),
		PatientID:       uuid.New(),
		Medication:      "Amoxicilina",
		MatchedRule:     "direct",
		Severity:        "high",
		AttemptedByRole: model.RolePhysician,
		WasOverridden:   true,
		OverrideReason:  &reason,
		Timestamp:       time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	require.NoError(t, n.HandleAllergyOverride(payload))
	assert.Equal(t, "[ALLERGY OVERRIDE] Amoxicilina", rec.subjects[0])
	assert.Contains(t, rec.bodies[0], "Reason: no alternative available")
	assert.Contains(t, rec.bodies[0], "2026-02-10T09:00:00Z")
}

func TestHandleMalformedPayload(t *testing.T) {
	n := NewNotifier(&recorder{}, nil)
	assert.Error(t, n.HandleVitalsCritical([]byte("{")))
	assert.Error(t, n.HandleAllergyOverride([]byte("not json")))
}
