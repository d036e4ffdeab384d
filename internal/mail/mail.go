// Package mail sends outbound email either directly over SMTP or through the
// message broker, where `mind mailer` picks it up.
package mail

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/GurgoSoft/MIND-sub001/config"
	"github.com/GurgoSoft/MIND-sub001/internal/mq"
	"go.uber.org/zap"
)

const (
	TransportSMTP  = "smtp"
	TransportQueue = "queue"
	TransportNone  = "none"
)

// Message is a plain-text email. It is also the JSON body of queued mail.
type Message struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

func (m Message) validate() error {
	if strings.TrimSpace(m.To) == "" {
		return errors.New("mail recipient is required")
	}
	if strings.ContainsAny(m.To+m.Subject, "\r\n") {
		return errors.New("mail headers must not contain line breaks")
	}
	return nil
}

type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// VerificationMessage renders the email carrying a verification code.
func VerificationMessage(to, code string, ttl time.Duration) Message {
	return Message{
		To:      to,
		Subject: "MIND verification code",
		Body: fmt.Sprintf("Your verification code is %s.\r\nIt expires in %d minutes.\r\n",
			code, int(ttl.Minutes())),
	}
}

// New builds the mailer selected by cfg.Mail.Transport. The returned close
// func releases the broker connection for the queue transport.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (Mailer, func() error, error) {
	noClose := func() error { return nil }
	switch strings.ToLower(strings.TrimSpace(cfg.Mail.Transport)) {
	case TransportSMTP, "":
		if cfg.Mail.SMTPHost == "" {
			logger.Warn("SMTP_HOST not set, outbound mail disabled")
			return NoopMailer{logger: logger}, noClose, nil
		}
		m, err := NewSMTPMailer(cfg.Mail)
		if err != nil {
			return nil, nil, err
		}
		return m, noClose, nil
	case TransportQueue:
		q, err := mq.Open(ctx, cfg.MQ)
		if err != nil {
			return nil, nil, err
		}
		return NewQueueMailer(q, cfg.Mail.Queue), q.Close, nil
	case TransportNone:
		return NoopMailer{logger: logger}, noClose, nil
	default:
		return nil, nil, fmt.Errorf("unknown MAIL_TRANSPORT %q", cfg.Mail.Transport)
	}
}

// NoopMailer drops messages.
type NoopMailer struct {
	logger *zap.Logger
}

func (n NoopMailer) Send(ctx context.Context, msg Message) error {
	if n.logger != nil {
		n.logger.Debug("mail dropped", zap.String("to", msg.To), zap.String("subject", msg.Subject))
	}
	return nil
}
