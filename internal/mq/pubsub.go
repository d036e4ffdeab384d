package mq

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/GurgoSoft/MIND-sub001/config"
	"google.golang.org/api/option"
)

const pubsubAckDeadline = 30 * time.Second

// pubsubBackend maps each channel to a topic of the same name and one shared
// subscription named channel+suffix, so several mailer replicas split the
// work. Topics and subscriptions are created when missing.
type pubsubBackend struct {
	client *pubsub.Client
	suffix string

	mu     sync.Mutex
	topics map[string]*pubsub.Topic
}

func newPubSubBackend(ctx context.Context, cfg config.PubSubConfig) (*pubsubBackend, error) {
	if strings.TrimSpace(cfg.ProjectID) == "" {
		return nil, errors.New("PUBSUB_PROJECT_ID is required")
	}
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	client, err := pubsub.NewClient(ctx, cfg.ProjectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("client: %w", err)
	}
	return &pubsubBackend{
		client: client,
		suffix: cfg.SubscriptionSuffix,
		topics: make(map[string]*pubsub.Topic),
	}, nil
}

func (b *pubsubBackend) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	if strings.TrimSpace(channel) == "" {
		return "", errNoChannel
	}
	topic, err := b.topic(ctx, channel)
	if err != nil {
		return "", err
	}
	id, err := topic.Publish(ctx, &pubsub.Message{Data: data, Attributes: attrs}).Get(ctx)
	if err != nil {
		return "", fmt.Errorf("publish to %s: %w", channel, err)
	}
	return id, nil
}

func (b *pubsubBackend) Subscribe(ctx context.Context, channel string, handler Handler) error {
	if strings.TrimSpace(channel) == "" {
		return errNoChannel
	}
	topic, err := b.topic(ctx, channel)
	if err != nil {
		return err
	}
	sub, err := b.subscription(ctx, channel, topic)
	if err != nil {
		return err
	}

	return sub.Receive(ctx, func(ctx context.Context, m *pubsub.Message) {
		msg := Message{
			ID:          m.ID,
			Data:        m.Data,
			Attributes:  m.Attributes,
			Redelivered: m.DeliveryAttempt != nil && *m.DeliveryAttempt > 1,
		}
		if settle(handler(ctx, msg), msg.Redelivered) == outcomeRetry {
			m.Nack()
			return
		}
		m.Ack()
	})
}

// Close flushes pending publishes before closing the client.
func (b *pubsubBackend) Close() error {
	b.mu.Lock()
	for _, t := range b.topics {
		t.Stop()
	}
	b.topics = map[string]*pubsub.Topic{}
	b.mu.Unlock()
	return b.client.Close()
}

func (b *pubsubBackend) topic(ctx context.Context, name string) (*pubsub.Topic, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if t, ok := b.topics[name]; ok {
		return t, nil
	}

	t := b.client.Topic(name)
	exists, err := t.Exists(ctx)
	if err != nil {
		return nil, fmt.Errorf("check topic %s: %w", name, err)
	}
	if !exists {
		if t, err = b.client.CreateTopic(ctx, name); err != nil {
			return nil, fmt.Errorf("create topic %s: %w", name, err)
		}
	}
	b.topics[name] = t
	return t, nil
}

func (b *pubsubBackend) subscription(ctx context.Context, channel string, topic *pubsub.Topic) (*pubsub.Subscription, error) {
	name := channel + b.suffix
	sub := b.client.Subscription(name)
	exists, err := sub.Exists(ctx)
	if err != nil {
		return nil, fmt.Errorf("check subscription %s: %w", name, err)
	}
	if exists {
		return sub, nil
	}
	sub, err = b.client.CreateSubscription(ctx, name, pubsub.SubscriptionConfig{
		Topic:       topic,
		AckDeadline: pubsubAckDeadline,
	})
	if err != nil {
		return nil, fmt.Errorf("create subscription %s: %w", name, err)
	}
	return sub, nil
}
