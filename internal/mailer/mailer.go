// Package mailer delivers HTML emails over SMTP.
package mailer

import (
	"context"
	"errors"

	"github.com/sbilibin2017/gw-users/internal/logger"
	"gopkg.in/gomail.v2"
)

// ErrNoRecipient is returned when an email has no recipient.
var ErrNoRecipient = errors.New("no recipients specified")

// Sender abstracts the SMTP transport. *gomail.Dialer satisfies it.
type Sender interface {
	DialAndSend(m ...*gomail.Message) error
}

// Mailer sends emails from a fixed sender address.
type Mailer struct {
	sender Sender
	from   string
}

// New creates a Mailer backed by an SMTP dialer.
func New(host string, port int, username, password, from string) *Mailer {
	return NewWithSender(gomail.NewDialer(host, port, username, password), from)
}

// NewWithSender creates a Mailer with a custom transport.
func NewWithSender(sender Sender, from string) *Mailer {
	return &Mailer{sender: sender, from: from}
}

// SendHTML sends a single HTML email to one recipient.
func (m *Mailer) SendHTML(ctx context.Context, to, subject, htmlBody string) error {
	if to == "" {
		return ErrNoRecipient
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", htmlBody)

	if err := m.sender.DialAndSend(msg); err != nil {
		logger.Log.Errorw("failed to send email", "to", to, "subject", subject, "error", err)
		return err
	}

	logger.Log.Infow("email sent", "to", to, "subject", subject)
	return nil
}
