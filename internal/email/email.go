// Package email builds and delivers outbound mail for the send_email
// tool. Messages are composed as multipart/alternative MIME with the
// markdown body rendered to both plain text and HTML.
package email

import (
	"context"
	"fmt"
	"log/slog"
)

// SMTPConfig holds SMTP delivery settings.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	// StartTLS selects plain-then-upgrade (port 587). When false the
	// connection is implicit TLS (port 465).
	StartTLS bool
}

// Sender composes and delivers messages through a single SMTP account.
type Sender struct {
	logger *slog.Logger
	cfg    SMTPConfig
	from   string
}

// NewSender creates a sender. The from address may be bare or in
// "Name <addr>" form.
func NewSender(logger *slog.Logger, cfg SMTPConfig, from string) *Sender {
	return &Sender{logger: logger, cfg: cfg, from: from}
}

// Send composes a message from the options and delivers it. The From
// field of opts is overridden by the sender's configured address.
func (s *Sender) Send(ctx context.Context, opts ComposeOptions) error {
	opts.From = s.from

	if len(opts.To) == 0 {
		return fmt.Errorf("no recipients")
	}

	msg, err := ComposeMessage(opts)
	if err != nil {
		return fmt.Errorf("compose: %w", err)
	}

	recipients := collectRecipients(opts.To, opts.Cc, opts.Bcc)
	if len(recipients) == 0 {
		return fmt.Errorf("no valid recipient addresses")
	}

	s.logger.Info("sending email",
		"to", opts.To,
		"subject", opts.Subject,
		"bytes", len(msg),
	)

	if err := SendMail(ctx, s.cfg, extractAddress(s.from), recipients, msg); err != nil {
		return fmt.Errorf("deliver: %w", err)
	}
	return nil
}
