package notify

import (
	"context"
	"fmt"

	"github.com/wneessen/go-mail"

	"crosplit/internal/apperr"
	"crosplit/internal/config"
	"crosplit/internal/logger"
)

// Mailer hands messages to an SMTP relay.
type Mailer struct {
	host     string
	port     int
	username string
	password string
	from     string
	logger   *logger.Logger
}

func NewMailer(cfg *config.Config, logger *logger.Logger) *Mailer {
	return &Mailer{
		host:     cfg.SMTPHost,
		port:     cfg.SMTPPort,
		username: cfg.SMTPUsername,
		password: cfg.SMTPPassword,
		from:     cfg.MailFrom,
		logger:   logger,
	}
}

// Build converts a Message into a go-mail message.
func (m *Mailer) Build(msg Message) (*mail.Msg, error) {
	if len(msg.To) == 0 {
		return nil, apperr.UserInput("message %q has no recipients", msg.Subject)
	}
	out := mail.NewMsg()
	if err := out.From(m.from); err != nil {
		return nil, apperr.Configuration("invalid MAIL_FROM %q: %v", m.from, err)
	}
	if err := out.To(msg.To...); err != nil {
		return nil, apperr.UserInput("invalid recipient: %v", err)
	}
	out.Subject(msg.Subject)
	out.SetBodyString(mail.TypeTextHTML, msg.HTML)
	return out, nil
}

func (m *Mailer) Send(ctx context.Context, msg Message) error {
	if m.host == "" {
		return apperr.Configuration("SMTP_HOST is not configured")
	}

	out, err := m.Build(msg)
	if err != nil {
		return err
	}

	opts := []mail.Option{
		mail.WithPort(m.port),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	}
	if m.username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(m.username),
			mail.WithPassword(m.password),
		)
	}

	client, err := mail.NewClient(m.host, opts...)
	if err != nil {
		return fmt.Errorf("failed to create smtp client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, out); err != nil {
		return fmt.Errorf("failed to send %q: %w", msg.Subject, err)
	}

	m.logger.Info("sent %s email to %v", msg.Kind, msg.To)
	return nil
}
