package mail

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/GurgoSoft/MIND-sub001/internal/metrics"
	"github.com/GurgoSoft/MIND-sub001/internal/mq"
	"go.uber.org/zap"
)

// QueueMailer publishes messages to the broker instead of sending them.
type QueueMailer struct {
	queue   *mq.MQ
	channel string
}

func NewQueueMailer(queue *mq.MQ, channel string) *QueueMailer {
	return &QueueMailer{queue: queue, channel: channel}
}

func (q *QueueMailer) Send(ctx context.Context, msg Message) error {
	if err := msg.validate(); err != nil {
		return err
	}
	if _, err := q.queue.PublishJSON(ctx, q.channel, msg, nil); err != nil {
		return fmt.Errorf("enqueue mail: %w", err)
	}
	return nil
}

// Worker drains the mail queue into a direct mailer.
type Worker struct {
	queue   *mq.MQ
	channel string
	mailer  Mailer
	logger  *zap.Logger
}

func NewWorker(queue *mq.MQ, channel string, mailer Mailer, logger *zap.Logger) *Worker {
	return &Worker{queue: queue, channel: channel, mailer: mailer, logger: logger}
}

// Run blocks until ctx is cancelled or the broker subscription fails.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("mail worker started", zap.String("queue", w.channel))
	return w.queue.Subscribe(ctx, w.channel, w.handle)
}

func (w *Worker) handle(ctx context.Context, m mq.Message) error {
	var msg Message
	if err := json.Unmarshal(m.Data, &msg); err != nil {
		// Malformed payloads can never succeed; ack them.
		w.logger.Error("discarding malformed mail job", zap.String("id", m.ID), zap.Error(err))
		return nil
	}
	if err := w.mailer.Send(ctx, msg); err != nil {
		metrics.MailFailed(TransportSMTP)
		w.logger.Warn("mail delivery failed",
			zap.String("id", m.ID),
			zap.String("to", msg.To),
			zap.Bool("redelivered", m.Redelivered),
			zap.Error(err),
		)
		return err
	}
	w.logger.Debug("mail delivered", zap.String("id", m.ID), zap.String("to", msg.To))
	return nil
}
