package mailer

import (
	"context"  // Cancellation of dial and send
	"fmt"      // Error wrapping
	"net/mail" // Address validation

	"github.com/sirupsen/logrus"         // Logrus for structured logging
	gomail "github.com/wneessen/go-mail" // SMTP client and MIME message building
)

// Mailer delivers a plain text mail
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// SMTPMailer sends mails through an SMTP relay
type SMTPMailer struct {
	client *gomail.Client // Dials a fresh connection per send
	from   string         // Envelope and header sender
}

// NewSMTPMailer creates a mailer for host:port. Port 465 uses implicit TLS, any other port STARTTLS.
// TLS is mandatory when credentials are configured; unauthenticated relays may fall back to plain text.
func NewSMTPMailer(host string, port int, username, password, from string) (*SMTPMailer, error) {
	opts := []gomail.Option{gomail.WithPort(port)}
	switch {
	case port == 465:
		opts = append(opts, gomail.WithSSL())
	case username != "":
		opts = append(opts, gomail.WithTLSPolicy(gomail.TLSMandatory))
	default:
		opts = append(opts, gomail.WithTLSPolicy(gomail.TLSOpportunistic))
	}
	if username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(username),
			gomail.WithPassword(password),
		)
	}
	client, err := gomail.NewClient(host, opts...)
	if err != nil {
		return nil, fmt.Errorf("smtp client: %w", err)
	}
	if _, err := mail.ParseAddress(from); err != nil {
		return nil, fmt.Errorf("invalid sender %q: %w", from, err)
	}
	return &SMTPMailer{client: client, from: from}, nil
}

// Send validates the recipient and delivers the message
func (m *SMTPMailer) Send(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg, err := m.message(to, subject, body)
	if err != nil {
		return err
	}
	if err := m.client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

// message builds the MIME message; header values are encoded by go-mail, so a subject cannot inject headers
func (m *SMTPMailer) message(to, subject, body string) (*gomail.Msg, error) {
	msg := gomail.NewMsg()
	if err := msg.From(m.from); err != nil {
		return nil, fmt.Errorf("invalid sender %q: %w", m.from, err)
	}
	if err := msg.To(to); err != nil {
		return nil, fmt.Errorf("invalid recipient %q: %w", to, err)
	}
	msg.Subject(subject)
	msg.SetDate()
	msg.SetMessageID()
	msg.SetBodyString(gomail.TypeTextPlain, body)
	return msg, nil
}

// LogMailer writes mails to the log instead of sending them, for local development
type LogMailer struct{}

// Send logs the mail
func (LogMailer) Send(ctx context.Context, to, subject, body string) error {
	if _, err := mail.ParseAddress(to); err != nil {
		return fmt.Errorf("invalid recipient %q: %w", to, err)
	}
	logrus.WithFields(logrus.Fields{
		"to":      to,      // Recipient
		"subject": subject, // Subject line
	}).Info(body)
	return nil
}
