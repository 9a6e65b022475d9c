package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	"armory/internal/intel/metrics"
	"armory/internal/intel/models"
)

// Refresher rebuilds the intelligence cache.
type Refresher interface {
	Refresh(ctx context.Context) (models.CacheStatus, error)
}

// Config locates the topic and consumer group.
type Config struct {
	Brokers []string
	Topic   string
	GroupID string
}

// Consumer turns catalog-change messages into cache refreshes.
type Consumer struct {
	client    *kgo.Client
	topic     string
	refresher Refresher
	writer    Writer
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

// Option configures a Consumer.
type Option func(*Consumer)

// WithWriter applies upserts and deletes to w before refreshing.
func WithWriter(w Writer) Option {
	return func(c *Consumer) {
		c.writer = w
	}
}

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

// NewConsumer creates a group consumer. No connection is made until Run.
func NewConsumer(cfg Config, refresher Refresher, opts ...Option) (*Consumer, error) {
	if refresher == nil {
		return nil, fmt.Errorf("refresher is required")
	}
	if len(cfg.Brokers) == 0 || cfg.Topic == "" || cfg.GroupID == "" {
		return nil, fmt.Errorf("brokers, topic and group id are required")
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ConsumerGroup(cfg.GroupID),
		kgo.ConsumeTopics(cfg.Topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka consumer: %w", err)
	}

	c := &Consumer{
		client:    client,
		topic:     cfg.Topic,
		refresher: refresher,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// EnsureTopic creates the consumed topic if it is missing.
func (c *Consumer) EnsureTopic(ctx context.Context, partitions int32) error {
	return EnsureTopic(ctx, c.client, c.topic, partitions)
}

// Run polls until ctx is cancelled. Each fetched batch triggers at most one
// refresh.
func (c *Consumer) Run(ctx context.Context) error {
	defer c.client.Close()
	for {
		fetches := c.client.PollFetches(ctx)
		if fetches.IsClientClosed() || ctx.Err() != nil {
			return nil
		}
		fetches.EachError(func(topic string, partition int32, err error) {
			if errors.Is(err, context.Canceled) {
				return
			}
			c.logger.WarnContext(ctx, "catalog event fetch failed",
				"topic", topic,
				"partition", partition,
				"error", err,
			)
		})
		c.process(ctx, fetches.Records())
	}
}

// process applies a batch and refreshes once if anything in it was valid.
func (c *Consumer) process(ctx context.Context, records []*kgo.Record) {
	if len(records) == 0 {
		return
	}

	applied := 0
	for _, rec := range records {
		ev, err := Decode(rec.Value)
		if err != nil {
			c.metrics.IncrementCatalogEvent("invalid")
			c.logger.WarnContext(ctx, "dropping invalid catalog event",
				"partition", rec.Partition,
				"offset", rec.Offset,
				"error", err,
			)
			continue
		}
		if c.writer != nil {
			ev.Apply(c.writer)
		}
		c.metrics.IncrementCatalogEvent("applied")
		applied++
	}
	if applied == 0 {
		return
	}

	start := time.Now()
	status, err := c.refresher.Refresh(ctx)
	if err != nil {
		c.metrics.IncrementCatalogEvent("refresh_error")
		c.logger.ErrorContext(ctx, "catalog event refresh failed",
			"events", applied,
			"error", err,
		)
		return
	}
	c.metrics.IncrementCatalogEvent("refreshed")
	c.logger.InfoContext(ctx, "intelligence cache refreshed from catalog events",
		"events", applied,
		"size", status.Size,
		"generation", status.Generation,
		"duration_ms", time.Since(start).Milliseconds(),
	)
}
