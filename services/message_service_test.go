package services

import (
	"chat-search/domain"
	"chat-search/domain/event"
	apperrors "chat-search/errors"
	"chat-search/mocks"
	"chat-search/observability"
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type messageServiceFixture struct {
	store     *mocks.MockRecordStore
	outbox    *mocks.MockOutbox
	publisher *mocks.MockEventPublisher
	metrics   *observability.Metrics
	service   *MessageService
}

func newMessageServiceFixture(t *testing.T) messageServiceFixture {
	ctrl := gomock.NewController(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	f := messageServiceFixture{
		store:     mocks.NewMockRecordStore(ctrl),
		outbox:    mocks.NewMockOutbox(ctrl),
		publisher: mocks.NewMockEventPublisher(ctrl),
		metrics:   observability.NewMetrics(log),
	}
	f.service = NewMessageService(log, f.store, f.outbox, f.publisher, f.metrics, event.TopicMessageCreated, time.Second)
	return f
}

func submitCommand() domain.SubmitMessageCommand {
	return domain.SubmitMessageCommand{
		ConversationID: "c1",
		SenderID:       "u1",
		Content:        "hello",
		Timestamp:      time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
	}
}

// persisted returns what the record store would: the input plus CreatedAt.
func persisted(_ context.Context, m domain.Message) (domain.Message, error) {
	m.CreatedAt = time.Now().UTC()
	return m, nil
}

func TestMessageService_Submit_Published(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newMessageServiceFixture(t)

	// Given a healthy store and broker
	var published event.MessageCreated
	gomock.InOrder(
		f.store.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(persisted),
		f.publisher.EXPECT().Publish(gomock.Any(), event.TopicMessageCreated, gomock.Any()).
			DoAndReturn(func(_ context.Context, _ string, evt event.MessageCreated) error {
				published = evt
				return nil
			}),
		f.outbox.EXPECT().MarkPublished(gomock.Any(), gomock.Any()).Return(nil),
	)

	// When a message without id is submitted
	stored, err := f.service.Submit(ctx, submitCommand())

	// Then an id is assigned and the event carries it
	req.NoError(err)
	req.Equal(domain.StatePublished, stored.State)
	req.NoError(stored.PublishErr)
	req.False(stored.Pending())
	_, parseErr := uuid.Parse(stored.Message.ID)
	req.NoError(parseErr)
	req.Equal(stored.Message.ID, published.ID)
	req.Equal("c1", published.ConversationID)
	req.Equal("2024-01-01T12:00:00Z", published.Timestamp)
	req.Equal(map[string]any{}, published.Metadata)
	req.Equal(uint64(1), f.metrics.Snapshot().PublishSucceeded)
}

func TestMessageService_Submit_Keeps_Supplied_ID(t *testing.T) {
	req := require.New(t)
	f := newMessageServiceFixture(t)

	f.store.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(persisted)
	f.publisher.EXPECT().Publish(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)
	f.outbox.EXPECT().MarkPublished(gomock.Any(), gomock.Any()).Return(nil)

	cmd := submitCommand()
	cmd.ID = "client-chosen"
	stored, err := f.service.Submit(context.Background(), cmd)

	req.NoError(err)
	req.Equal("client-chosen", stored.Message.ID)
}

func TestMessageService_Submit_Persistence_Failure_Publishes_Nothing(t *testing.T) {
	req := require.New(t)
	f := newMessageServiceFixture(t)

	// Given a failing store, the publisher must never be called
	f.store.EXPECT().Create(gomock.Any(), gomock.Any()).Return(domain.Message{}, fmt.Errorf("disk full"))

	_, err := f.service.Submit(context.Background(), submitCommand())

	req.ErrorIs(err, apperrors.ErrPersistence)
	req.NotErrorIs(err, apperrors.ErrPublish)
	req.Equal(uint64(1), f.metrics.Snapshot().PersistenceErrors)
}

func TestMessageService_Submit_Duplicate(t *testing.T) {
	req := require.New(t)
	f := newMessageServiceFixture(t)

	f.store.EXPECT().Create(gomock.Any(), gomock.Any()).
		Return(domain.Message{}, fmt.Errorf("%w: m1", apperrors.ErrDuplicateMessage))

	cmd := submitCommand()
	cmd.ID = "m1"
	_, err := f.service.Submit(context.Background(), cmd)

	req.ErrorIs(err, apperrors.ErrPersistence)
	req.ErrorIs(err, apperrors.ErrDuplicateMessage)
}

func TestMessageService_Submit_Publish_Failure_Is_Not_Fatal(t *testing.T) {
	req := require.New(t)
	f := newMessageServiceFixture(t)

	// Given a broker outage, the outbox marker must stay in place
	f.store.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(persisted)
	f.publisher.EXPECT().Publish(gomock.Any(), gomock.Any(), gomock.Any()).Return(fmt.Errorf("broker unreachable"))
	f.outbox.EXPECT().MarkPublished(gomock.Any(), gomock.Any()).Times(0)

	stored, err := f.service.Submit(context.Background(), submitCommand())

	// Then the call succeeds with a distinguishable pending state
	req.NoError(err)
	req.Equal(domain.StateCreated, stored.State)
	req.True(stored.Pending())
	req.ErrorIs(stored.PublishErr, apperrors.ErrPublish)
	req.NotEmpty(stored.Message.ID)
	req.Equal(uint64(1), f.metrics.Snapshot().PublishFailures)
	req.Equal(uint64(1), f.metrics.Snapshot().MessagesPersisted)
}

func TestMessageService_Submit_Publish_Timeout(t *testing.T) {
	req := require.New(t)
	f := newMessageServiceFixture(t)
	f.service.publishTimeout = 10 * time.Millisecond

	f.store.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(persisted)
	f.publisher.EXPECT().Publish(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, _ string, _ event.MessageCreated) error {
			<-ctx.Done()
			return ctx.Err()
		})

	stored, err := f.service.Submit(context.Background(), submitCommand())

	req.NoError(err)
	req.ErrorIs(stored.PublishErr, context.DeadlineExceeded)
}

func TestMessageService_FindByConversation(t *testing.T) {
	req := require.New(t)
	f := newMessageServiceFixture(t)
	page := domain.NewPage(2, 10, 100)
	expected := []domain.Message{{ID: "m1", ConversationID: "c1"}}

	f.store.EXPECT().FindByConversation(gomock.Any(), "c1", page).Return(expected, nil)

	messages, err := f.service.FindByConversation(context.Background(), domain.FindMessagesCommand{ConversationID: "c1", Page: page})
	req.NoError(err)
	req.Equal(expected, messages)
}
