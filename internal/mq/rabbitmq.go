package mq

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/GurgoSoft/MIND-sub001/config"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// rabbitBackend publishes to and consumes from named queues on the default
// exchange. Queues are declared on first use.
type rabbitBackend struct {
	conn *amqp.Connection

	mu       sync.Mutex // guards ch and declared
	ch       *amqp.Channel
	declared map[string]bool

	durable    bool
	autoDelete bool
}

func newRabbitBackend(cfg config.RabbitMQConfig) (*rabbitBackend, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, errors.New("RABBITMQ_URL is required")
	}
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if cfg.PrefetchCount > 0 {
		if err := ch.Qos(cfg.PrefetchCount, 0, false); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("set prefetch: %w", err)
		}
	}
	return &rabbitBackend{
		conn:       conn,
		ch:         ch,
		declared:   make(map[string]bool),
		durable:    cfg.QueueDurable,
		autoDelete: cfg.QueueAutoDelete,
	}, nil
}

func (b *rabbitBackend) Publish(ctx context.Context, queue string, data []byte, attrs map[string]string) (string, error) {
	if strings.TrimSpace(queue) == "" {
		return "", errNoChannel
	}
	msg := b.publishing(data, attrs)

	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.declareLocked(queue); err != nil {
		return "", err
	}
	if err := b.ch.PublishWithContext(ctx, "", queue, false, false, msg); err != nil {
		return "", fmt.Errorf("publish to %s: %w", queue, err)
	}
	return msg.MessageId, nil
}

// publishing moves the content-type attribute into the AMQP property and the
// rest into headers. Messages survive a broker restart on durable queues.
func (b *rabbitBackend) publishing(data []byte, attrs map[string]string) amqp.Publishing {
	msg := amqp.Publishing{
		ContentType:  "application/octet-stream",
		DeliveryMode: amqp.Transient,
		MessageId:    uuid.NewString(),
		Headers:      amqp.Table{},
		Body:         data,
	}
	if b.durable {
		msg.DeliveryMode = amqp.Persistent
	}
	for key, value := range attrs {
		if strings.EqualFold(key, attrContentType) {
			msg.ContentType = value
			continue
		}
		msg.Headers[key] = value
	}
	return msg
}

func (b *rabbitBackend) Subscribe(ctx context.Context, queue string, handler Handler) error {
	if strings.TrimSpace(queue) == "" {
		return errNoChannel
	}

	tag := "mind-" + uuid.NewString()
	b.mu.Lock()
	err := b.declareLocked(queue)
	var deliveries <-chan amqp.Delivery
	if err == nil {
		deliveries, err = b.ch.Consume(queue, tag, false, false, false, false, nil)
	}
	b.mu.Unlock()
	if err != nil {
		return fmt.Errorf("consume %s: %w", queue, err)
	}
	defer func() {
		b.mu.Lock()
		_ = b.ch.Cancel(tag, false)
		b.mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("rabbitmq closed the delivery stream")
			}
			msg := deliveryMessage(d)
			switch settle(handler(ctx, msg), msg.Redelivered) {
			case outcomeAck:
				_ = d.Ack(false)
			case outcomeRetry:
				_ = d.Nack(false, true)
			case outcomeDrop:
				_ = d.Nack(false, false)
			}
		}
	}
}

func (b *rabbitBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.ch != nil {
		_ = b.ch.Close()
	}
	return b.conn.Close()
}

func (b *rabbitBackend) declareLocked(queue string) error {
	if b.declared[queue] {
		return nil
	}
	if _, err := b.ch.QueueDeclare(queue, b.durable, b.autoDelete, false, false, nil); err != nil {
		return fmt.Errorf("declare queue %s: %w", queue, err)
	}
	b.declared[queue] = true
	return nil
}

func deliveryMessage(d amqp.Delivery) Message {
	attrs := headersToAttributes(d.Headers)
	if d.ContentType != "" {
		if attrs == nil {
			attrs = make(map[string]string, 1)
		}
		attrs[attrContentType] = d.ContentType
	}
	return Message{ID: d.MessageId, Data: d.Body, Attributes: attrs, Redelivered: d.Redelivered}
}

// headersToAttributes flattens AMQP header values to strings.
func headersToAttributes(headers amqp.Table) map[string]string {
	if len(headers) == 0 {
		return nil
	}
	attrs := make(map[string]string, len(headers))
	for key, value := range headers {
		switch v := value.(type) {
		case string:
			attrs[key] = v
		case []byte:
			attrs[key] = string(v)
		default:
			attrs[key] = fmt.Sprint(v)
		}
	}
	return attrs
}
