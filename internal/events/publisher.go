package events

import (
	"context"

	"tradelens/internal/adapters/kafka"
	"tradelens/internal/metrics"
	"tradelens/pkg/errors"
	"tradelens/pkg/logger"
)

// Publisher emits activity events. Publishing is best-effort: callers log
// failures and carry on.
type Publisher interface {
	PublishActivity(ctx context.Context, event ActivityEvent) error
}

// KafkaPublisher publishes activity events as JSON to a Kafka topic
type KafkaPublisher struct {
	producer *kafka.Producer
	topic    string
	log      *logger.Logger
}

var _ Publisher = (*KafkaPublisher)(nil)

// NewKafkaPublisher creates a publisher writing to topic
func NewKafkaPublisher(producer *kafka.Producer, topic string, log *logger.Logger) *KafkaPublisher {
	if log == nil {
		log = logger.Get()
	}
	return &KafkaPublisher{
		producer: producer,
		topic:    topic,
		log:      log.With("component", "activity_publisher", "topic", topic),
	}
}

// PublishActivity validates and sends the event
func (p *KafkaPublisher) PublishActivity(ctx context.Context, event ActivityEvent) error {
	if err := event.Validate(); err != nil {
		metrics.RecordActivity("published", err)
		return err
	}

	if err := p.producer.Publish(ctx, p.topic, event.Key(), event); err != nil {
		metrics.RecordActivity("published", err)
		return errors.Wrap(err, "send to kafka")
	}

	metrics.RecordActivity("published", nil)
	p.log.Debugw("Activity event published",
		"type", event.Type,
		"event_id", event.ID,
	)
	return nil
}

// NoopPublisher discards events. Used when Kafka is disabled.
type NoopPublisher struct{}

var _ Publisher = NoopPublisher{}

func (NoopPublisher) PublishActivity(context.Context, ActivityEvent) error { return nil }

// ActivityStore persists activity events, typically buffered
type ActivityStore interface {
	Store(ctx context.Context, event ActivityEvent) error
}

// StorePublisher writes events straight to an ActivityStore. Used when
// Kafka is disabled but the analytics store is available.
type StorePublisher struct {
	store ActivityStore
}

var _ Publisher = (*StorePublisher)(nil)

// NewStorePublisher creates a publisher over store
func NewStorePublisher(store ActivityStore) *StorePublisher {
	return &StorePublisher{store: store}
}

// PublishActivity validates and stores the event
func (p *StorePublisher) PublishActivity(ctx context.Context, event ActivityEvent) error {
	if err := event.Validate(); err != nil {
		metrics.RecordActivity("published", err)
		return err
	}
	err := p.store.Store(ctx, event)
	metrics.RecordActivity("published", err)
	return err
}
