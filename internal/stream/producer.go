// Package stream publishes anchored lifecycle events to Kafka so downstream
// consumers (dashboards, notification fan-out) see the timeline without
// polling the store.
package stream

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/CropCred/cropcred/internal/canonical"
)

// Envelope is the message body for one recorded event. Hash is the anchored
// canonical digest; Anchored is false when the ledger write failed and the
// event is awaiting re-anchor.
type Envelope struct {
	EventID       string `json:"eventId"`
	BatchID       string `json:"batchId"`
	CertificateID string `json:"certificateID"`
	EventType     string `json:"eventType"`
	Actor         string `json:"actor"`
	Hash          string `json:"hash"`
	Anchored      bool   `json:"anchored"`
	CreatedAt     int64  `json:"createdAt"`
}

// Publisher is implemented by Producer and by test doubles.
type Publisher interface {
	Publish(ctx context.Context, env Envelope) error
	Close() error
}

type ProducerConfig struct {
	Brokers []string
	Topic   string
	// MaxAttempts defaults to 3, WriteTimeout to 10s.
	MaxAttempts  int
	WriteTimeout time.Duration
}

// Producer wraps a kafka-go Writer with bounded retries. Messages are keyed
// by batchId so one batch's events stay ordered within a partition.
type Producer struct {
	writer      *kafka.Writer
	maxAttempts int
}

func NewProducer(cfg ProducerConfig) (*Producer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka: at least one broker required")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("kafka: topic required")
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	w := kafka.NewWriter(kafka.WriterConfig{
		Brokers:      cfg.Brokers,
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: cfg.WriteTimeout,
		Async:        false,
	})
	return &Producer{writer: w, maxAttempts: cfg.MaxAttempts}, nil
}

func (p *Producer) Publish(ctx context.Context, env Envelope) error {
	// Canonical bytes let consumers digest or dedupe messages byte-for-byte.
	value, err := canonical.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(env.BatchID),
		Value: value,
		Time:  time.Now().UTC(),
	}

	backoff := 100 * time.Millisecond
	var lastErr error
	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := p.writer.WriteMessages(attemptCtx, msg)
		cancel()
		if err == nil {
			return nil
		}
		lastErr = err
		time.Sleep(backoff)
		if backoff < 2*time.Second {
			backoff *= 2
		}
	}
	return fmt.Errorf("publish failed after %d attempts: %w", p.maxAttempts, lastErr)
}

func (p *Producer) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
