// Package eventbus publishes points domain events through watermill, either
// in-process over a gochannel or across services over NATS.
package eventbus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Black-And-White-Club/points-ledger/app/shared/attr"
	"github.com/ThreeDotsLabs/watermill"
	wmnats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	nc "github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

const (
	TransportMemory = "memory"
	TransportNATS   = "nats"

	// MetadataCorrelationID carries the request correlation id on every message.
	MetadataCorrelationID = "correlation_id"
	// MetadataTopic repeats the topic so consumers behind a wildcard can route.
	MetadataTopic = "topic"
)

type Config struct {
	Transport string
	NATSURL   string
	JetStream bool
	// Stream and Subjects describe the JetStream stream provisioned at startup.
	Stream   string
	Subjects []string
	// QueueGroup names the NATS queue group used by subscribers.
	QueueGroup string
}

// EventBus owns a watermill publisher and subscriber pair.
type EventBus struct {
	publisher  message.Publisher
	subscriber message.Subscriber
	conn       *nc.Conn
	logger     *slog.Logger
}

// New builds an EventBus for cfg.Transport. An empty transport selects the
// in-process gochannel.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*EventBus, error) {
	if logger == nil {
		logger = slog.Default()
	}
	wmLogger := watermill.NewSlogLogger(logger)

	switch cfg.Transport {
	case "", TransportMemory:
		ch := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 64}, wmLogger)
		return &EventBus{publisher: ch, subscriber: ch, logger: logger}, nil
	case TransportNATS:
		return newNATSBus(ctx, cfg, logger, wmLogger)
	default:
		return nil, fmt.Errorf("unknown event transport %q", cfg.Transport)
	}
}

// NewWithPubSub wraps an existing publisher and subscriber.
func NewWithPubSub(pub message.Publisher, sub message.Subscriber, logger *slog.Logger) *EventBus {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventBus{publisher: pub, subscriber: sub, logger: logger}
}

func newNATSBus(ctx context.Context, cfg Config, logger *slog.Logger, wmLogger watermill.LoggerAdapter) (*EventBus, error) {
	options := []nc.Option{
		nc.RetryOnFailedConnect(true),
		nc.Timeout(30 * time.Second),
		nc.ReconnectWait(time.Second),
	}

	conn, err := nc.Connect(cfg.NATSURL, options...)
	if err != nil {
		logger.Error("Failed to connect to NATS", attr.Error(err))
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	if cfg.JetStream {
		js, err := jetstream.New(conn)
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to initialize JetStream: %w", err)
		}
		if err := EnsureStream(ctx, js, cfg.Stream, cfg.Subjects, logger); err != nil {
			conn.Close()
			return nil, err
		}
	}

	jsConfig := wmnats.JetStreamConfig{
		Disabled:      !cfg.JetStream,
		AutoProvision: false,
	}
	marshaler := &wmnats.NATSMarshaler{}

	publisher, err := wmnats.NewPublisher(
		wmnats.PublisherConfig{
			URL:               cfg.NATSURL,
			NatsOptions:       options,
			Marshaler:         marshaler,
			JetStream:         jsConfig,
			SubjectCalculator: wmnats.DefaultSubjectCalculator,
		},
		wmLogger,
	)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create NATS publisher: %w", err)
	}

	subscriber, err := wmnats.NewSubscriber(
		wmnats.SubscriberConfig{
			URL:               cfg.NATSURL,
			QueueGroupPrefix:  cfg.QueueGroup,
			CloseTimeout:      30 * time.Second,
			AckWaitTimeout:    30 * time.Second,
			NatsOptions:       options,
			Unmarshaler:       marshaler,
			JetStream:         jsConfig,
			SubjectCalculator: wmnats.DefaultSubjectCalculator,
		},
		wmLogger,
	)
	if err != nil {
		_ = publisher.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to create NATS subscriber: %w", err)
	}

	return &EventBus{
		publisher:  publisher,
		subscriber: subscriber,
		conn:       conn,
		logger:     logger,
	}, nil
}

// Publish marshals payload as JSON and publishes it on topic.
func (b *EventBus) Publish(ctx context.Context, topic string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s payload: %w", topic, err)
	}

	msg := message.NewMessage(watermill.NewUUID(), data)
	msg.Metadata.Set(MetadataTopic, topic)
	if id := attr.CorrelationIDFromContext(ctx); id != "" {
		msg.Metadata.Set(MetadataCorrelationID, id)
	}
	msg.SetContext(ctx)

	if err := b.publisher.Publish(topic, msg); err != nil {
		return fmt.Errorf("failed to publish %s: %w", topic, err)
	}

	b.logger.DebugContext(ctx, "Event published",
		attr.String("topic", topic),
		attr.String("message_uuid", msg.UUID),
		attr.ExtractCorrelationID(ctx),
	)
	return nil
}

func (b *EventBus) Subscriber() message.Subscriber {
	return b.subscriber
}

func (b *EventBus) Close() error {
	var errs []error
	if err := b.publisher.Close(); err != nil {
		errs = append(errs, err)
	}
	// gochannel is both publisher and subscriber.
	if any(b.subscriber) != any(b.publisher) {
		if err := b.subscriber.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if b.conn != nil {
		b.conn.Close()
	}
	return errors.Join(errs...)
}
