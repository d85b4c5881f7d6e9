package notification

import (
	"context"
	"fmt"

	"gopkg.in/gomail.v2"

	"github.com/clinicore/booking-api/internal/model"
)

// Service sends booking lifecycle notifications. Failures are the caller's
// to log; a notification must never fail a booking.
type Service interface {
	SendBookingConfirmation(ctx context.Context, patient *model.Patient, doctor *model.Doctor, apt *model.Appointment) error
	SendCancellation(ctx context.Context, patient *model.Patient, apt *model.Appointment, reason string) error
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

type emailService struct {
	dialer *gomail.Dialer
	from   string
}

func NewEmailService(cfg SMTPConfig) Service {
	return &emailService{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   cfg.From,
	}
}

func (s *emailService) SendBookingConfirmation(ctx context.Context, patient *model.Patient, doctor *model.Doctor, apt *model.Appointment) error {
	body := fmt.Sprintf(
		"Dear %s,\n\nYour appointment with Dr. %s is confirmed for %s to %s.\n\nReason: %s\n",
		patient.Name,
		doctor.Name,
		apt.ScheduledStart.Format("Mon, 02 Jan 2006 15:04"),
		apt.ScheduledEnd.Format("15:04"),
		apt.Reason,
	)
	return s.send(patient.Email, "Appointment confirmed", body)
}

func (s *emailService) SendCancellation(ctx context.Context, patient *model.Patient, apt *model.Appointment, reason string) error {
	body := fmt.Sprintf(
		"Dear %s,\n\nYour appointment on %s has been cancelled.\n\nReason: %s\n",
		patient.Name,
		apt.ScheduledStart.Format("Mon, 02 Jan 2006 15:04"),
		reason,
	)
	return s.send(patient.Email, "Appointment cancelled", body)
}

func (s *emailService) send(to, subject, body string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

// NoopService discards notifications; used when SMTP is not configured.
type NoopService struct{}

func (NoopService) SendBookingConfirmation(context.Context, *model.Patient, *model.Doctor, *model.Appointment) error {
	return nil
}

func (NoopService) SendCancellation(context.Context, *model.Patient, *model.Appointment, string) error {
	return nil
}
