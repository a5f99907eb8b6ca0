package email

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jwalitptl/nursing-api/internal/model"
	"github.com/jwalitptl/nursing-api/internal/service/vitals"
	"github.com/jwalitptl/nursing-api/pkg/logger"
)

// Notifier turns broker events into emails for the ward supervisors.
type Notifier struct {
	svc     Service
	logger  *logger.Logger
	timeout time.Duration
}

func NewNotifier(svc Service, log *logger.Logger) *Notifier {
	if log == nil {
		log = logger.Nop()
	}
	return &Notifier{svc: svc, logger: log, timeout: 10 * time.Second}
}

// Handlers maps each subscribed topic to its handler.
func (n *Notifier) Handlers() map[string]func([]byte) error {
	return map[string]func([]byte) error{
		model.EventVitalsCritical:  n.HandleVitalsCritical,
		model.EventAllergyOverride: n.HandleAllergyOverride,
	}
}

func (n *Notifier) HandleVitalsCritical(payload []byte) error {
	var alert vitals.CriticalAlert
	if err := json.Unmarshal(payload, &alert); err != nil {
		return fmt.Errorf("decode %s: %w", model.EventVitalsCritical, err)
	}
	subject, body := formatCritical(alert)
	return n.send(model.EventVitalsCritical, subject, body)
}

func (n *Notifier) HandleAllergyOverride(payload []byte) error {
	var alert model.AllergyAlert
	if err := json.Unmarshal(payload, &alert); err != nil {
		return fmt.Errorf("decode %s: %w", model.EventAllergyOverride, err)
	}
	subject, body := formatOverride(alert)
	return n.send(model.EventAllergyOverride, subject, body)
}

func (n *Notifier) send(topic, subject, body string) error {
	ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
	defer cancel()
	if err := n.svc.Send(ctx, subject, body); err != nil {
		n.logger.Error(err, "Failed to send notification", "topic", topic)
		return err
	}
	n.logger.Info("Notification sent", "topic", topic, "subject", subject)
	return nil
}

func formatCritical(a vitals.CriticalAlert) (string, string) {
	name := a.PatientName
	if name == "" {
		name = a.PatientID.String()
	}
	subject := fmt.Sprintf("[CRITICAL] vital signs for %s", name)

	var b strings.Builder
	fmt.Fprintf(&b, "Critical vital signs recorded for %s (patient %s).\n\n", name, a.PatientID)
	for _, f := range a.Criticals {
		fmt.Fprintf(&b, "- %s: %s\n", f.Parameter, f.Message)
	}
	fmt.Fprintf(&b, "\nReading %s recorded by %s.\n", a.ReadingID, a.RecordedBy)
	return subject, b.String()
}

func formatOverride(a model.AllergyAlert) (string, string) {
	subject := fmt.Sprintf("[ALLERGY OVERRIDE] %s", a.Medication)

	var b strings.Builder
	fmt.Fprintf(&b, "An allergy warning was overridden for patient %s.\n\n", a.PatientID)
	fmt.Fprintf(&b, "Medication: %s\n", a.Medication)
	fmt.Fprintf(&b, "Rule: %s (severity %s)\n", a.MatchedRule, a.Severity)
	fmt.Fprintf(&b, "By: %s (%s)\n", a.AttemptedBy, a.AttemptedByRole)
	if a.OverrideReason != nil {
		fmt.Fprintf(&b, "Reason: %s\n", *a.OverrideReason)
	}
	fmt.Fprintf(&b, "At: %s\n", a.Timestamp.Format(time.RFC3339))
	return subject, b.String()
}
