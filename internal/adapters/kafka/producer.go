package kafka

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"tradelens/pkg/errors"
	"tradelens/pkg/logger"
)

// Producer handles Kafka message publishing with one writer per topic
type Producer struct {
	writers map[string]*kafka.Writer
	brokers []string
	timeout time.Duration
	mu      sync.Mutex
	log     *logger.Logger
}

// ProducerConfig holds producer configuration
type ProducerConfig struct {
	Brokers []string

	// WriteTimeout bounds a single WriteMessages call; zero means 5s
	WriteTimeout time.Duration
}

// NewProducer creates a new Kafka producer
func NewProducer(cfg ProducerConfig) *Producer {
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}
	return &Producer{
		writers: make(map[string]*kafka.Writer),
		brokers: cfg.Brokers,
		timeout: cfg.WriteTimeout,
		log:     logger.Get().With("component", "kafka_producer"),
	}
}

// getWriter returns or creates a writer for a topic
func (p *Producer) getWriter(topic string) *kafka.Writer {
	p.mu.Lock()
	defer p.mu.Unlock()

	if w, ok := p.writers[topic]; ok {
		return w
	}

	w := &kafka.Writer{
		Addr:         kafka.TCP(p.brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: p.timeout,
		RequiredAcks: kafka.RequireOne,
	}

	p.writers[topic] = w
	return w
}

// Publish JSON-encodes event and sends it keyed by key
func (p *Producer) Publish(ctx context.Context, topic string, key string, event interface{}) error {
	data, err := json.Marshal(event)
	if err != nil {
		return errors.Wrap(err, "encode event")
	}

	return p.PublishBinary(ctx, topic, []byte(key), data)
}

// PublishBinary sends raw bytes to a topic
func (p *Producer) PublishBinary(ctx context.Context, topic string, key, value []byte) error {
	msg := kafka.Message{
		Key:   key,
		Value: value,
	}

	if err := p.getWriter(topic).WriteMessages(ctx, msg); err != nil {
		p.log.Errorw("Failed to publish", "topic", topic, "error", err)
		return err
	}

	p.log.Debugw("Published", "topic", topic, "key", string(key), "size_bytes", len(value))
	return nil
}

// Close closes all writers
func (p *Producer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var errs errors.MultiError
	for topic, w := range p.writers {
		if err := w.Close(); err != nil {
			p.log.Errorw("Failed to close writer", "topic", topic, "error", err)
			errs.Add(err)
		}
	}
	return errs.ToError()
}
