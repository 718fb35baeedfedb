// Package kafka mirrors every bus event onto a Kafka topic for downstream consumers.
package kafka

import (
	"context"
	"fmt"

	jsoniter "github.com/json-iterator/go"
	"github.com/twmb/franz-go/pkg/kgo"
	"go.uber.org/zap"

	"github.com/fastygo/exportflow/domain"
	"github.com/fastygo/exportflow/internal/eventbus"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Producer is the part of *kgo.Client the mirror uses.
type Producer interface {
	Produce(ctx context.Context, r *kgo.Record, promise func(*kgo.Record, error))
	Flush(ctx context.Context) error
	Close()
}

// Subscriber is the part of the event bus the mirror registers on.
type Subscriber interface {
	Subscribe(eventType domain.EventType, handler eventbus.Handler, opts ...eventbus.Option) eventbus.SubscriptionID
}

// Mirror produces one record per event, keyed by business so a business's events stay ordered
// within a partition.
type Mirror struct {
	producer Producer
	topic    string
	logger   *zap.Logger
}

// NewClient connects a franz-go producer that writes to topic by default.
func NewClient(brokers []string, topic string) (*kgo.Client, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.AllowAutoTopicCreation(),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka client: %w", err)
	}
	return client, nil
}

func NewMirror(producer Producer, topic string, logger *zap.Logger) *Mirror {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Mirror{
		producer: producer,
		topic:    topic,
		logger:   logger.Named("kafka_mirror"),
	}
}

// Register subscribes the mirror to every event type.
func (m *Mirror) Register(sub Subscriber) {
	for _, t := range domain.EventTypes() {
		sub.Subscribe(t, m.handle)
	}
}

func (m *Mirror) handle(ctx context.Context, event domain.Event) error {
	record, err := m.record(event)
	if err != nil {
		return err
	}
	// Produce is asynchronous; the bus does not wait on the broker.
	m.producer.Produce(context.WithoutCancel(ctx), record, func(r *kgo.Record, err error) {
		if err != nil {
			m.logger.Error("failed to mirror event",
				zap.String("event_id", event.ID),
				zap.String("event_type", string(event.Type)),
				zap.Error(err))
		}
	})
	return nil
}

func (m *Mirror) record(event domain.Event) (*kgo.Record, error) {
	value, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("encode event %s: %w", event.ID, err)
	}
	key := event.BusinessID
	if key == "" {
		key = event.ID
	}
	return &kgo.Record{
		Topic: m.topic,
		Key:   []byte(key),
		Value: value,
		Headers: []kgo.RecordHeader{
			{Key: "event_id", Value: []byte(event.ID)},
			{Key: "event_type", Value: []byte(event.Type)},
			{Key: "priority", Value: []byte(event.Priority)},
		},
		Timestamp: event.Timestamp,
	}, nil
}

// Close flushes buffered records and closes the producer.
func (m *Mirror) Close(ctx context.Context) error {
	err := m.producer.Flush(ctx)
	m.producer.Close()
	return err
}
