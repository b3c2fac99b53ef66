// Package kafka plugs the event stream into a Kafka cluster.
package kafka

import (
	"chat-search/contract"
	"chat-search/domain/event"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

var (
	_ contract.EventPublisher  = (*Publisher)(nil)
	_ contract.EventSubscriber = (*Subscriber)(nil)
)

// Publisher writes MessageCreated events keyed by conversation id.
// WriteMessages returns once every in-sync replica acknowledged.
type Publisher struct {
	writer  *kafka.Writer
	brokers []string
	log     *slog.Logger
}

func NewPublisher(log *slog.Logger, brokers []string) *Publisher {
	return &Publisher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireAll,
			AllowAutoTopicCreation: true,
			BatchTimeout:           10 * time.Millisecond,
		},
		brokers: brokers,
		log:     log,
	}
}

func (p *Publisher) Publish(ctx context.Context, topic string, evt event.MessageCreated) error {
	payload, err := evt.Encode()
	if err != nil {
		return fmt.Errorf("encode %s: %w", evt.ID, err)
	}
	err = p.writer.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   evt.Key(),
		Value: payload,
		Time:  time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("write %s to %s: %w", evt.ID, topic, err)
	}
	return nil
}

// Ping dials the first reachable broker.
func (p *Publisher) Ping(ctx context.Context) error {
	return ping(ctx, p.brokers)
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

// Subscriber is a consumer group member. Offsets are committed synchronously.
type Subscriber struct {
	reader  *kafka.Reader
	brokers []string
}

func NewSubscriber(brokers []string, topic, groupID string) *Subscriber {
	return &Subscriber{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:        brokers,
			GroupID:        groupID,
			Topic:          topic,
			MinBytes:       1,
			MaxBytes:       10e6,
			MaxWait:        500 * time.Millisecond,
			StartOffset:    kafka.FirstOffset,
			CommitInterval: 0,
		}),
		brokers: brokers,
	}
}

func (s *Subscriber) Fetch(ctx context.Context) (contract.Delivery, error) {
	m, err := s.reader.FetchMessage(ctx)
	if err != nil {
		return contract.Delivery{}, err
	}
	return contract.Delivery{
		Topic:     m.Topic,
		Partition: m.Partition,
		Offset:    m.Offset,
		Key:       m.Key,
		Value:     m.Value,
	}, nil
}

func (s *Subscriber) Commit(ctx context.Context, delivery contract.Delivery) error {
	return s.reader.CommitMessages(ctx, kafka.Message{
		Topic:     delivery.Topic,
		Partition: delivery.Partition,
		Offset:    delivery.Offset,
	})
}

func (s *Subscriber) Ping(ctx context.Context) error {
	return ping(ctx, s.brokers)
}

func (s *Subscriber) Close() error {
	return s.reader.Close()
}

func ping(ctx context.Context, brokers []string) error {
	var errs []error
	for _, address := range brokers {
		conn, err := kafka.DialContext(ctx, "tcp", address)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		return conn.Close()
	}
	if len(errs) == 0 {
		return fmt.Errorf("no kafka broker configured")
	}
	return errors.Join(errs...)
}
