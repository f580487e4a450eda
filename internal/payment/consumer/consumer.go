// Package consumer feeds payment completed events from Kafka into the
// settlement service.
package consumer

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	"arsenal/internal/payment/metrics"
	"arsenal/internal/payment/models"
	resmodels "arsenal/internal/reservation/models"
	dErrors "arsenal/pkg/domain-errors"
)

const defaultMaxAttempts = 5

// Client is satisfied by a *kgo.Client consuming in a group with autocommit
// disabled.
type Client interface {
	PollFetches(ctx context.Context) kgo.Fetches
	CommitRecords(ctx context.Context, rs ...*kgo.Record) error
}

type Settler interface {
	Settle(ctx context.Context, st *models.Settlement) (*resmodels.Reservation, error)
}

type Consumer struct {
	client      Client
	settler     Settler
	maxAttempts int
	backoff     time.Duration
	logger      *slog.Logger
	metrics     *metrics.Metrics
}

type Option func(*Consumer)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Consumer) {
		c.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Consumer) {
		c.metrics = m
	}
}

// WithRetry bounds how often an infrastructure failure is retried before the
// event is skipped.
func WithRetry(attempts int, backoff time.Duration) Option {
	return func(c *Consumer) {
		if attempts > 0 {
			c.maxAttempts = attempts
		}
		c.backoff = backoff
	}
}

func New(client Client, settler Settler, opts ...Option) *Consumer {
	c := &Consumer{
		client:      client,
		settler:     settler,
		maxAttempts: defaultMaxAttempts,
		backoff:     200 * time.Millisecond,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run polls until ctx is cancelled or the client is closed.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		if err := c.Poll(ctx); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, kgo.ErrClientClosed) {
				return nil
			}
			return err
		}
	}
}

// Poll handles one fetch round and commits every record it finished with.
// Malformed and rejected events are committed too; they would never succeed.
func (c *Consumer) Poll(ctx context.Context) error {
	fetches := c.client.PollFetches(ctx)
	if fetches.IsClientClosed() {
		return kgo.ErrClientClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	fetches.EachError(func(topic string, partition int32, err error) {
		c.logger.WarnContext(ctx, "payment fetch error", "topic", topic, "partition", partition, "error", err)
	})

	var done []*kgo.Record
	fetches.EachRecord(func(rec *kgo.Record) {
		if ctx.Err() != nil {
			return
		}
		c.handle(ctx, rec)
		if ctx.Err() == nil {
			done = append(done, rec)
		}
	})
	if len(done) == 0 {
		return nil
	}
	if err := c.client.CommitRecords(ctx, done...); err != nil {
		c.logger.WarnContext(ctx, "failed to commit payment offsets", "records", len(done), "error", err)
	}
	return nil
}

func (c *Consumer) handle(ctx context.Context, rec *kgo.Record) {
	st, err := models.ParseSettlement(rec.Value)
	if err != nil {
		c.metrics.IncrementEvent("malformed")
		c.logger.WarnContext(ctx, "skipping malformed payment event",
			"partition", rec.Partition,
			"offset", rec.Offset,
			"error", err,
		)
		return
	}

	for attempt := 1; ; attempt++ {
		_, err = c.settler.Settle(ctx, st)
		if err == nil {
			c.metrics.IncrementEvent("settled")
			return
		}
		if !retryable(err) {
			c.metrics.IncrementEvent("skipped")
			c.logger.WarnContext(ctx, "payment event rejected",
				"reservation_id", st.ReservationID.String(),
				"offset", rec.Offset,
				"error", err,
			)
			return
		}
		if attempt >= c.maxAttempts || !c.sleep(ctx, attempt) {
			break
		}
	}
	c.metrics.IncrementEvent("failed")
	c.logger.ErrorContext(ctx, "payment event dropped after retries",
		"reservation_id", st.ReservationID.String(),
		"offset", rec.Offset,
		"attempts", c.maxAttempts,
		"error", err,
	)
}

func (c *Consumer) sleep(ctx context.Context, attempt int) bool {
	if c.backoff <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(c.backoff * time.Duration(attempt))
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func retryable(err error) bool {
	code := dErrors.CodeOf(err)
	return code == dErrors.CodeInternal || code == dErrors.CodeTimeout
}
