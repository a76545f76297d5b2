// Package relay drains the audit outbox into Kafka. Events are written to
// audit_events in the same transaction as their state change; the relay
// publishes committed rows in commit order and stamps them published.
package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	"selfid/internal/audit"
	"selfid/internal/platform/config"
)

const batchSize = 200

// Outbox is the slice of the audit store the relay needs.
type Outbox interface {
	ListPending(ctx context.Context, limit int) ([]audit.PendingEntry, error)
	MarkPublished(ctx context.Context, ids []uuid.UUID) error
}

// Relay polls the outbox and publishes pending events to a Kafka topic.
// Records are keyed by caller address so per-principal ordering survives
// partitioning.
type Relay struct {
	outbox   Outbox
	client   *kgo.Client
	topic    string
	interval time.Duration
	logger   *slog.Logger
}

// New connects to Kafka, ensures the audit topic exists, and returns a relay
// ready to Run.
func New(cfg config.KafkaConfig, outbox Outbox, logger *slog.Logger) (*Relay, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.DefaultProduceTopic(cfg.Topic),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}

	if err := ensureTopic(client, cfg.Topic); err != nil {
		client.Close()
		return nil, err
	}

	interval := cfg.PollInterval
	if interval <= 0 {
		interval = time.Second
	}
	return &Relay{
		outbox:   outbox,
		client:   client,
		topic:    cfg.Topic,
		interval: interval,
		logger:   logger,
	}, nil
}

func ensureTopic(client *kgo.Client, topic string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	adm := kadm.NewClient(client)
	resp, err := adm.CreateTopic(ctx, 1, 1, nil, topic)
	if err != nil {
		return fmt.Errorf("create audit topic: %w", err)
	}
	// An existing topic is fine; anything else is not.
	if resp.Err != nil && !errors.Is(resp.Err, kerr.TopicAlreadyExists) {
		return fmt.Errorf("create audit topic %s: %w", topic, resp.Err)
	}
	return nil
}

// Run drains the outbox until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	defer r.client.Close()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := r.drain(ctx); err != nil {
				// Leave rows unpublished and retry next tick; the outbox is
				// the source of truth until Kafka acknowledges.
				r.logger.WarnContext(ctx, "audit relay drain failed", "error", err)
			}
		}
	}
}

func (r *Relay) drain(ctx context.Context) error {
	for {
		pending, err := r.outbox.ListPending(ctx, batchSize)
		if err != nil {
			return fmt.Errorf("list pending: %w", err)
		}
		if len(pending) == 0 {
			return nil
		}

		published := make([]uuid.UUID, 0, len(pending))
		for _, entry := range pending {
			record := &kgo.Record{
				Topic: r.topic,
				Key:   []byte(entry.Key.String()),
				Value: entry.Payload,
			}
			if err := r.client.ProduceSync(ctx, record).FirstErr(); err != nil {
				return fmt.Errorf("produce audit event %s: %w", entry.ID, err)
			}
			published = append(published, entry.ID)
		}

		if err := r.outbox.MarkPublished(ctx, published); err != nil {
			return fmt.Errorf("mark published: %w", err)
		}
		if len(pending) < batchSize {
			return nil
		}
	}
}
