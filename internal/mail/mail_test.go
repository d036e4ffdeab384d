package mail

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/GurgoSoft/MIND-sub001/config"
	"github.com/GurgoSoft/MIND-sub001/internal/mq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gomail "github.com/wneessen/go-mail"
	"go.uber.org/zap"
)

type recordingMailer struct {
	mu   sync.Mutex
	sent []Message
	err  error
}

func (r *recordingMailer) Send(ctx context.Context, msg Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, msg)
	return r.err
}

func (r *recordingMailer) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sent)
}

type capturingSender struct {
	sent []*gomail.Msg
	err  error
}

func (c *capturingSender) DialAndSendWithContext(ctx context.Context, messages ...*gomail.Msg) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.sent = append(c.sent, messages...)
	return c.err
}

func newTestSMTPMailer(t *testing.T, sender smtpSender) *SMTPMailer {
	t.Helper()
	m, err := NewSMTPMailer(config.MailConfig{
		From:         "no-reply@mind.local",
		SMTPHost:     "smtp.example.com",
		SMTPPort:     2525,
		SMTPUser:     "mind",
		SMTPPassword: "secret",
	})
	require.NoError(t, err)
	m.client = sender
	m.now = func() time.Time { return time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC) }
	return m
}

func TestSMTPMailerRendersMessage(t *testing.T) {
	sender := &capturingSender{}
	m := newTestSMTPMailer(t, sender)

	require.NoError(t, m.Send(context.Background(), VerificationMessage("ana@example.com", "123456", 15*time.Minute)))
	require.Len(t, sender.sent, 1)

	var buf bytes.Buffer
	_, err := sender.sent[0].WriteTo(&buf)
	require.NoError(t, err)
	raw := buf.String()
	assert.Contains(t, raw, "Subject: MIND verification code")
	assert.Contains(t, raw, "<ana@example.com>")
	assert.Contains(t, raw, "123456")
	assert.Contains(t, raw, "15 minutes")
}

func TestSMTPMailerEncodesNonASCIISubject(t *testing.T) {
	sender := &capturingSender{}
	m := newTestSMTPMailer(t, sender)

	require.NoError(t, m.Send(context.Background(), Message{To: "ana@example.com", Subject: "Código de verificación", Body: "hola"}))
	require.Len(t, sender.sent, 1)

	var buf bytes.Buffer
	_, err := sender.sent[0].WriteTo(&buf)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Subject: =?UTF-8?q?")
	assert.NotContains(t, buf.String(), "Subject: Código")
}

func TestSMTPMailerHonoursContext(t *testing.T) {
	sender := &capturingSender{}
	m := newTestSMTPMailer(t, sender)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := m.Send(ctx, Message{To: "ana@example.com", Subject: "s"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, sender.sent)
}

func TestSMTPMailerRejectsHeaderInjection(t *testing.T) {
	sender := &capturingSender{}
	m := newTestSMTPMailer(t, sender)

	err := m.Send(context.Background(), Message{To: "a@b.co\r\nBcc: x@y.z", Subject: "s"})
	require.Error(t, err)
	assert.Empty(t, sender.sent)

	err = m.Send(context.Background(), Message{To: "not an address", Subject: "s"})
	require.Error(t, err)
	assert.Empty(t, sender.sent)
}

func TestNewSelectsTransport(t *testing.T) {
	logger := zap.NewNop()

	mailer, closeFn, err := New(context.Background(), config.Config{Mail: config.MailConfig{Transport: "none"}}, logger)
	require.NoError(t, err)
	assert.IsType(t, NoopMailer{}, mailer)
	require.NoError(t, closeFn())

	mailer, _, err = New(context.Background(), config.Config{Mail: config.MailConfig{Transport: "smtp"}}, logger)
	require.NoError(t, err)
	assert.IsType(t, NoopMailer{}, mailer, "no SMTP host configured")

	_, _, err = New(context.Background(), config.Config{Mail: config.MailConfig{Transport: "pigeon"}}, logger)
	require.Error(t, err)
}

func TestQueueMailerAndWorker(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	q := mq.New(mq.NewMemoryBackend())
	require.NoError(t, NewQueueMailer(q, "mail").Send(ctx, Message{To: "a@b.co", Subject: "hi", Body: "x"}))

	direct := &recordingMailer{}
	go func() { _ = NewWorker(q, "mail", direct, zap.NewNop()).Run(ctx) }()

	require.Eventually(t, func() bool { return direct.count() == 1 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, "a@b.co", direct.sent[0].To)
}

func TestWorkerRetriesFailedDeliveryOnce(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	q := mq.New(mq.NewMemoryBackend())
	require.NoError(t, NewQueueMailer(q, "mail").Send(ctx, Message{To: "a@b.co"}))

	direct := &recordingMailer{err: errors.New("smtp down")}
	go func() { _ = NewWorker(q, "mail", direct, zap.NewNop()).Run(ctx) }()

	require.Eventually(t, func() bool { return direct.count() == 2 }, time.Second, 10*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 2, direct.count())
}

func TestWorkerAcksMalformedJobs(t *testing.T) {
	w := NewWorker(nil, "mail", &recordingMailer{}, zap.NewNop())
	err := w.handle(context.Background(), mq.Message{ID: "1", Data: []byte("{")})
	assert.NoError(t, err)
	assert.True(t, strings.HasPrefix(VerificationMessage("a", "1", time.Minute).Subject, "MIND"))
}
