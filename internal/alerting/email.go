package alerting

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/wneessen/go-mail"
)

const implicitTLSPort = 465

// EmailOptions parameterise SMTP delivery.
type EmailOptions struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       []string
	Timeout  time.Duration
}

// EmailNotifier sends alerts over SMTP. Port 465 uses implicit TLS; other
// ports upgrade with STARTTLS when the server offers it.
type EmailNotifier struct {
	opts   EmailOptions
	logger zerolog.Logger
}

// NewEmailNotifier constructs an SMTP notifier.
func NewEmailNotifier(opts EmailOptions, logger zerolog.Logger) *EmailNotifier {
	if opts.Port == 0 {
		opts.Port = implicitTLSPort
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.From == "" {
		opts.From = opts.Username
	}
	if len(opts.To) == 0 && opts.From != "" {
		opts.To = []string{opts.From}
	}
	return &EmailNotifier{opts: opts, logger: logger.With().Str("component", "alert_email").Logger()}
}

// Notify delivers one message to every recipient.
func (e *EmailNotifier) Notify(ctx context.Context, note Notification) error {
	if len(e.opts.To) == 0 {
		return fmt.Errorf("email: no recipients configured")
	}

	msg := mail.NewMsg()
	if err := msg.From(e.opts.From); err != nil {
		return fmt.Errorf("email: sender %q: %w", e.opts.From, err)
	}
	if err := msg.To(e.opts.To...); err != nil {
		return fmt.Errorf("email: recipients: %w", err)
	}
	msg.Subject(note.Subject())
	msg.SetBodyString(mail.TypeTextPlain, renderMessage(note))

	client, err := mail.NewClient(e.opts.Host, e.clientOptions()...)
	if err != nil {
		return fmt.Errorf("email: client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("email: send via %s:%d: %w", e.opts.Host, e.opts.Port, err)
	}

	e.logger.Info().Str("run_id", note.RunID).Strs("to", e.opts.To).Msg("alert sent (email)")
	return nil
}

func (e *EmailNotifier) clientOptions() []mail.Option {
	opts := []mail.Option{mail.WithTimeout(e.opts.Timeout)}
	if e.opts.Port == implicitTLSPort {
		opts = append(opts, mail.WithSSL())
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSOpportunistic))
	}
	// the port goes after the TLS options, which may reset it
	opts = append(opts, mail.WithPort(e.opts.Port))
	if e.opts.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(e.opts.Username),
			mail.WithPassword(e.opts.Password),
		)
	}
	return opts
}

var _ Notifier = (*EmailNotifier)(nil)
