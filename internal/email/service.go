package email

import (
	"context"
	"errors"

	"gopkg.in/gomail.v2"

	"github.com/jwalitptl/nursing-api/internal/config"
)

var ErrNoRecipients = errors.New("email: no recipients configured")

// Service delivers ward notifications to the configured recipients.
type Service interface {
	Send(ctx context.Context, subject, body string) error
}

type dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

type smtpService struct {
	dialer     dialer
	from       string
	recipients []string
}

func NewSMTPService(cfg config.NotifyConfig) Service {
	d := gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.Username, cfg.Password)
	return newService(d, cfg.From, cfg.Recipients)
}

func newService(d dialer, from string, recipients []string) *smtpService {
	return &smtpService{dialer: d, from: from, recipients: recipients}
}

func (s *smtpService) Send(ctx context.Context, subject, body string) error {
	if len(s.recipients) == 0 {
		return ErrNoRecipients
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", s.recipients...)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)
	return s.dialer.DialAndSend(m)
}
