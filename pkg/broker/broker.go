package broker

import (
	"context"
	"errors"
	"fmt"

	"webauth/pkg/envelope"

	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// DefaultChannel is the redis channel and kafka topic auth events go to.
const DefaultChannel = "auth.events"

// Publisher fans auth events out to other services.
type Publisher interface {
	Publish(ctx context.Context, env envelope.Envelope) error
	Close() error
}

type Redis struct {
	rdb     *redis.Client
	channel string
}

// NewRedis publishes on channel using an existing client. Close does not
// close the client.
func NewRedis(rdb *redis.Client, channel string) *Redis {
	return &Redis{rdb: rdb, channel: channel}
}

func (b *Redis) Publish(ctx context.Context, env envelope.Envelope) error {
	data, err := env.Marshal()
	if err != nil {
		return err
	}
	if err := b.rdb.Publish(ctx, b.channel, data).Err(); err != nil {
		return fmt.Errorf("redis publish %s: %w", env.Action, err)
	}
	return nil
}

func (b *Redis) Close() error { return nil }

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Kafka struct {
	w     messageWriter
	topic string
}

func NewKafka(brokers []string, topic string) *Kafka {
	return &Kafka{
		w: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			AllowAutoTopicCreation: true,
		},
		topic: topic,
	}
}

// Publish keys messages by username so one user's events stay ordered.
func (k *Kafka) Publish(ctx context.Context, env envelope.Envelope) error {
	data, err := env.Marshal()
	if err != nil {
		return err
	}
	msg := kafka.Message{
		Key:   []byte(env.Username),
		Value: data,
		Headers: []kafka.Header{
			{Key: "action", Value: []byte(env.Action)},
		},
	}
	if err := k.w.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka write %s: %w", k.topic, err)
	}
	return nil
}

func (k *Kafka) Close() error { return k.w.Close() }

// Nop drops every event.
type Nop struct{}

func (Nop) Publish(context.Context, envelope.Envelope) error { return nil }

func (Nop) Close() error { return nil }

// Fanout publishes every event to each publisher in turn.
type Fanout []Publisher

func (f Fanout) Publish(ctx context.Context, env envelope.Envelope) error {
	var errs []error
	for _, p := range f {
		if err := p.Publish(ctx, env); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f Fanout) Close() error {
	var errs []error
	for _, p := range f {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Logged wraps a publisher so failures are logged and never reach the caller.
type Logged struct {
	next Publisher
	log  *zap.Logger
}

func NewLogged(next Publisher, log *zap.Logger) *Logged {
	if log == nil {
		log = zap.NewNop()
	}
	return &Logged{next: next, log: log.With(zap.String("component", "broker"))}
}

func (l *Logged) Publish(ctx context.Context, env envelope.Envelope) error {
	if err := l.next.Publish(ctx, env); err != nil {
		l.log.Warn("event publish failed",
			zap.String("action", env.Action),
			zap.String("id", env.ID),
			zap.Error(err),
		)
		return nil
	}
	l.log.Debug("event published", zap.String("action", env.Action), zap.String("id", env.ID))
	return nil
}

func (l *Logged) Close() error { return l.next.Close() }
