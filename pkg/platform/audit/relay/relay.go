// Package relay publishes committed audit outbox rows to Kafka.
package relay

import (
	"context"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	"arsenal/pkg/platform/audit/store/postgres"
)

const defaultBatchSize = 100

// Outbox hands out pending rows; see postgres.Store.ClaimPending.
type Outbox interface {
	ClaimPending(ctx context.Context, limit int, publish func(ctx context.Context, rows []postgres.Pending) error) (int, error)
}

// Producer is satisfied by *kgo.Client.
type Producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
}

type Relay struct {
	outbox   Outbox
	producer Producer
	topic    string
	interval time.Duration
	batch    int
	logger   *slog.Logger
}

type Option func(*Relay)

func WithInterval(d time.Duration) Option {
	return func(r *Relay) {
		if d > 0 {
			r.interval = d
		}
	}
}

func WithBatchSize(n int) Option {
	return func(r *Relay) {
		if n > 0 {
			r.batch = n
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(r *Relay) {
		r.logger = logger
	}
}

func New(outbox Outbox, producer Producer, topic string, opts ...Option) *Relay {
	r := &Relay{
		outbox:   outbox,
		producer: producer,
		topic:    topic,
		interval: time.Second,
		batch:    defaultBatchSize,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run polls until ctx is cancelled. A failed batch stays unpublished and is
// retried on the next tick.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			for {
				n, err := r.Flush(ctx)
				if err != nil {
					r.logger.WarnContext(ctx, "audit relay batch failed", "error", err)
					break
				}
				if n < r.batch {
					break
				}
			}
		}
	}
}

// Flush relays one batch and returns how many rows were published.
func (r *Relay) Flush(ctx context.Context) (int, error) {
	return r.outbox.ClaimPending(ctx, r.batch, func(ctx context.Context, rows []postgres.Pending) error {
		records := make([]*kgo.Record, len(rows))
		for i, row := range rows {
			records[i] = &kgo.Record{
				Topic: r.topic,
				Key:   []byte(row.Key),
				Value: row.Payload,
				Headers: []kgo.RecordHeader{
					{Key: "event_id", Value: []byte(row.ID.String())},
				},
			}
		}
		return r.producer.ProduceSync(ctx, records...).FirstErr()
	})
}
