package events

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
)

// Publisher writes catalog-change events to a topic.
type Publisher struct {
	client *kgo.Client
	topic  string
}

// NewPublisher creates a producer for topic.
func NewPublisher(brokers []string, topic string) (*Publisher, error) {
	if len(brokers) == 0 || topic == "" {
		return nil, fmt.Errorf("brokers and topic are required")
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}
	return &Publisher{client: client, topic: topic}, nil
}

// Publish sends ev and waits for the broker to acknowledge it.
func (p *Publisher) Publish(ctx context.Context, ev Event) error {
	value, err := ev.Encode()
	if err != nil {
		return err
	}
	rec := &kgo.Record{Topic: p.topic, Key: partitionKey(ev), Value: value}
	if err := p.client.ProduceSync(ctx, rec).FirstErr(); err != nil {
		return fmt.Errorf("publish catalog event: %w", err)
	}
	return nil
}

// Client exposes the underlying client for topic administration.
func (p *Publisher) Client() *kgo.Client { return p.client }

func (p *Publisher) Close() {
	p.client.Close()
}

// partitionKey keeps changes to one product ordered.
func partitionKey(ev Event) []byte {
	switch {
	case len(ev.Records) == 1:
		return []byte(strconv.FormatInt(int64(ev.Records[0].ID), 10))
	case len(ev.ProductIDs) == 1:
		return []byte(strconv.FormatInt(int64(ev.ProductIDs[0]), 10))
	default:
		return nil
	}
}

// EnsureTopic creates topic if it does not exist yet.
func EnsureTopic(ctx context.Context, client *kgo.Client, topic string, partitions int32) error {
	adm := kadm.NewClient(client)
	resp, err := adm.CreateTopics(ctx, partitions, -1, nil, topic)
	if err != nil {
		return fmt.Errorf("create topic %s: %w", topic, err)
	}
	for _, r := range resp {
		if r.Err != nil && !errors.Is(r.Err, kerr.TopicAlreadyExists) {
			return fmt.Errorf("create topic %s: %w", r.Topic, r.Err)
		}
	}
	return nil
}
