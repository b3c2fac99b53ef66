//go:build integration

package kafka

import (
	"chat-search/domain"
	"chat-search/domain/event"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"
)

func TestKafka_Publish_Then_Fetch_And_Commit(t *testing.T) {
	req := require.New(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	container, err := tckafka.Run(ctx, "confluentinc/confluent-local:7.5.0", tckafka.WithClusterID("chat-search"))
	testcontainers.CleanupContainer(t, container)
	req.NoError(err)

	brokers, err := container.Brokers(ctx)
	req.NoError(err)

	publisher := NewPublisher(slog.Default(), brokers)
	defer publisher.Close()
	req.NoError(publisher.Ping(ctx))

	// Given: one published event
	evt := event.NewMessageCreated(domain.Message{
		ID:             "m1",
		ConversationID: "c1",
		SenderID:       "u1",
		Content:        "hello kafka",
		Timestamp:      time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	req.NoError(publisher.Publish(ctx, event.TopicMessageCreated, evt))

	// When: a group member fetches it
	subscriber := NewSubscriber(brokers, event.TopicMessageCreated, "indexer")
	defer subscriber.Close()
	delivery, err := subscriber.Fetch(ctx)
	req.NoError(err)

	// Then: the payload round trips and the offset can be committed
	decoded, err := event.Decode(delivery.Value)
	req.NoError(err)
	req.Equal(evt, decoded)
	req.Equal([]byte("c1"), delivery.Key)
	req.NoError(subscriber.Commit(ctx, delivery))
}
