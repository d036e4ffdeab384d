package mail

import (
	"context"
	"fmt"
	"time"

	"github.com/GurgoSoft/MIND-sub001/config"
	gomail "github.com/wneessen/go-mail"
)

const smtpTimeout = 15 * time.Second

// smtpSender is the part of the go-mail client SMTPMailer uses.
type smtpSender interface {
	DialAndSendWithContext(ctx context.Context, messages ...*gomail.Msg) error
}

// SMTPMailer delivers mail through go-mail. STARTTLS is used when the server
// offers it; port 465 switches to implicit TLS.
type SMTPMailer struct {
	host   string
	from   string
	client smtpSender
	now    func() time.Time
}

func NewSMTPMailer(cfg config.MailConfig) (*SMTPMailer, error) {
	opts := []gomail.Option{
		gomail.WithPort(cfg.SMTPPort),
		gomail.WithTimeout(smtpTimeout),
		gomail.WithTLSPolicy(gomail.TLSOpportunistic),
	}
	if cfg.SMTPPort == 465 {
		opts = append(opts, gomail.WithSSL())
	}
	if cfg.SMTPUser != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(cfg.SMTPUser),
			gomail.WithPassword(cfg.SMTPPassword),
		)
	}
	client, err := gomail.NewClient(cfg.SMTPHost, opts...)
	if err != nil {
		return nil, fmt.Errorf("smtp client for %s: %w", cfg.SMTPHost, err)
	}
	return &SMTPMailer{host: cfg.SMTPHost, from: cfg.From, client: client, now: time.Now}, nil
}

// Send delivers msg. Dialing and the SMTP exchange stop when ctx is done.
func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	if err := msg.validate(); err != nil {
		return err
	}
	out, err := m.render(msg)
	if err != nil {
		return err
	}
	if err := m.client.DialAndSendWithContext(ctx, out); err != nil {
		return fmt.Errorf("smtp send to %s: %w", m.host, err)
	}
	return nil
}

func (m *SMTPMailer) render(msg Message) (*gomail.Msg, error) {
	out := gomail.NewMsg()
	if err := out.From(m.from); err != nil {
		return nil, fmt.Errorf("mail sender %q: %w", m.from, err)
	}
	if err := out.To(msg.To); err != nil {
		return nil, fmt.Errorf("mail recipient %q: %w", msg.To, err)
	}
	out.Subject(msg.Subject)
	out.SetDateWithValue(m.now().UTC())
	out.SetMessageID()
	out.SetBodyString(gomail.TypeTextPlain, msg.Body)
	return out, nil
}
