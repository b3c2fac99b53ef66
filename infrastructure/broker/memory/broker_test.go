package memory

import (
	"chat-search/contract"
	"chat-search/domain"
	"chat-search/domain/event"
	"chat-search/errors"
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const testTopic = event.TopicMessageCreated

func newEvent(id, conversationID string) event.MessageCreated {
	return event.NewMessageCreated(domain.Message{
		ID:             id,
		ConversationID: conversationID,
		SenderID:       "u1",
		Content:        "hello " + id,
		Timestamp:      time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	})
}

func fetch(t *testing.T, s *Subscriber) contract.Delivery {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	d, err := s.Fetch(ctx)
	require.NoError(t, err)
	return d
}

func TestBroker_Same_Key_Same_Partition(t *testing.T) {
	req := require.New(t)
	b := NewBroker(slog.Default(), 8)

	for i := 0; i < 20; i++ {
		key := []byte(fmt.Sprintf("conversation-%d", i))
		req.Equal(b.Partition(key), b.Partition(key))
		req.GreaterOrEqual(b.Partition(key), 0)
		req.Less(b.Partition(key), 8)
	}
}

func TestBroker_Preserves_Order_Within_Conversation(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	b := NewBroker(slog.Default(), 4)
	s := b.Subscribe(testTopic, "indexer")

	// Given: three events of the same conversation
	for _, id := range []string{"m1", "m2", "m3"} {
		req.NoError(b.Publish(ctx, testTopic, newEvent(id, "c1")))
	}

	// Then: they come back in publish order with increasing offsets
	for i, id := range []string{"m1", "m2", "m3"} {
		d := fetch(t, s)
		evt, err := event.Decode(d.Value)
		req.NoError(err)
		req.Equal(id, evt.ID)
		req.Equal(int64(i), d.Offset)
		req.Equal([]byte("c1"), d.Key)
	}
}

func TestBroker_Group_Members_Split_Partitions(t *testing.T) {
	req := require.New(t)
	b := NewBroker(slog.Default(), 4)

	s1 := b.Subscribe(testTopic, "indexer")
	s2 := b.Subscribe(testTopic, "indexer")
	other := b.Subscribe(testTopic, "audit")

	req.Equal([]int{0, 1}, s1.Assigned())
	req.Equal([]int{2, 3}, s2.Assigned())
	req.Equal([]int{0, 1, 2, 3}, other.Assigned())

	req.NoError(s2.Close())
	req.Equal([]int{0, 1, 2, 3}, s1.Assigned())
}

func TestBroker_Every_Group_Receives_Every_Event(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	b := NewBroker(slog.Default(), 2)
	indexer := b.Subscribe(testTopic, "indexer")
	audit := b.Subscribe(testTopic, "audit")

	req.NoError(b.Publish(ctx, testTopic, newEvent("m1", "c1")))

	req.Equal(fetch(t, indexer).Value, fetch(t, audit).Value)
}

func TestBroker_Redelivers_Uncommitted_After_Rebalance(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	b := NewBroker(slog.Default(), 1)

	// Given: a member fetched two events but only committed the first
	crashing := b.Subscribe(testTopic, "indexer")
	req.NoError(b.Publish(ctx, testTopic, newEvent("m1", "c1")))
	req.NoError(b.Publish(ctx, testTopic, newEvent("m2", "c1")))
	req.NoError(crashing.Commit(ctx, fetch(t, crashing)))
	_ = fetch(t, crashing)

	// When: it leaves and another member takes over
	req.NoError(crashing.Close())
	survivor := b.Subscribe(testTopic, "indexer")

	// Then: the uncommitted event is delivered again
	d := fetch(t, survivor)
	evt, err := event.Decode(d.Value)
	req.NoError(err)
	req.Equal("m2", evt.ID)
	req.Equal(int64(1), b.Lag(testTopic, "indexer"))

	req.NoError(survivor.Commit(ctx, d))
	req.Zero(b.Lag(testTopic, "indexer"))
}

func TestBroker_Fetch_Blocks_Until_Publish(t *testing.T) {
	req := require.New(t)
	b := NewBroker(slog.Default(), 2)
	s := b.Subscribe(testTopic, "indexer")

	go func() {
		time.Sleep(20 * time.Millisecond)
		_ = b.Publish(context.Background(), testTopic, newEvent("late", "c9"))
	}()

	evt, err := event.Decode(fetch(t, s).Value)
	req.NoError(err)
	req.Equal("late", evt.ID)
}

func TestBroker_Fetch_Returns_On_Context_Done(t *testing.T) {
	req := require.New(t)
	b := NewBroker(slog.Default(), 2)
	s := b.Subscribe(testTopic, "indexer")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := s.Fetch(ctx)
	req.ErrorIs(err, context.DeadlineExceeded)
}

func TestBroker_Closed(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	b := NewBroker(slog.Default(), 2)
	s := b.Subscribe(testTopic, "indexer")

	req.NoError(b.Close())

	err := b.Publish(ctx, testTopic, newEvent("m1", "c1"))
	req.ErrorIs(err, errors.ErrBrokerClosed)
	req.NotErrorIs(err, errors.ErrSubscriberClosed)
	_, err = s.Fetch(ctx)
	req.ErrorIs(err, errors.ErrSubscriberClosed)
	req.ErrorIs(b.Ping(ctx), errors.ErrBrokerClosed)
}

func TestSubscriber_Commit_Foreign_Partition(t *testing.T) {
	req := require.New(t)
	b := NewBroker(slog.Default(), 2)
	s1 := b.Subscribe(testTopic, "indexer")
	_ = b.Subscribe(testTopic, "indexer")

	err := s1.Commit(context.Background(), contract.Delivery{Topic: testTopic, Partition: 1, Offset: 0})
	req.ErrorIs(err, errors.ErrNotAssigned)
}
