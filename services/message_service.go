package services

import (
	"chat-search/contract"
	"chat-search/domain"
	"chat-search/domain/event"
	apperrors "chat-search/errors"
	"chat-search/observability"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

type IMessageService interface {
	Submit(ctx context.Context, cmd domain.SubmitMessageCommand) (domain.StoredMessage, error)
	FindByConversation(ctx context.Context, cmd domain.FindMessagesCommand) ([]domain.Message, error)
}

// MessageService persists first, then publishes.
// The record store is authoritative: a publish failure leaves the outbox
// marker in place for the relay and never fails the call.
type MessageService struct {
	log            *slog.Logger
	store          contract.RecordStore
	outbox         contract.Outbox
	publisher      contract.EventPublisher
	metrics        *observability.Metrics
	topic          string
	publishTimeout time.Duration
}

func NewMessageService(
	log *slog.Logger,
	store contract.RecordStore,
	outbox contract.Outbox,
	publisher contract.EventPublisher,
	metrics *observability.Metrics,
	topic string,
	publishTimeout time.Duration,
) *MessageService {
	return &MessageService{
		log:            log,
		store:          store,
		outbox:         outbox,
		publisher:      publisher,
		metrics:        metrics,
		topic:          topic,
		publishTimeout: publishTimeout,
	}
}

func (s *MessageService) Submit(ctx context.Context, cmd domain.SubmitMessageCommand) (domain.StoredMessage, error) {
	id := cmd.ID
	if id == "" {
		id = uuid.NewString()
	}
	stored, err := s.store.Create(ctx, cmd.ToMessage(id))
	if err != nil {
		s.metrics.IncrPersistenceErrors()
		if errors.Is(err, apperrors.ErrDuplicateMessage) {
			s.log.Info("Message id already used", "id", id)
		} else {
			s.log.Error("Message not persisted", "id", id, "conversation_id", cmd.ConversationID, "error", err)
		}
		return domain.StoredMessage{}, fmt.Errorf("%w: %w", apperrors.ErrPersistence, err)
	}
	s.metrics.IncrMessagesPersisted()

	if err := s.publish(ctx, stored); err != nil {
		s.metrics.IncrPublishFailures()
		s.log.Warn("Message persisted but its event is pending",
			"id", stored.ID, "conversation_id", stored.ConversationID, "error", err)
		return domain.StoredMessage{
			Message:    stored,
			State:      domain.StateCreated,
			PublishErr: fmt.Errorf("%w: %w", apperrors.ErrPublish, err),
		}, nil
	}
	s.metrics.IncrPublishSucceeded()
	return domain.StoredMessage{Message: stored, State: domain.StatePublished}, nil
}

// publish is bounded by publishTimeout. Once acknowledged, the outbox marker
// is cleared; failing to clear it only costs a duplicate event later.
func (s *MessageService) publish(ctx context.Context, message domain.Message) error {
	publishCtx, cancel := context.WithTimeout(ctx, s.publishTimeout)
	defer cancel()
	if err := s.publisher.Publish(publishCtx, s.topic, event.NewMessageCreated(message)); err != nil {
		return err
	}
	if err := s.outbox.MarkPublished(context.WithoutCancel(ctx), message); err != nil {
		s.log.Warn("Outbox marker not cleared", "id", message.ID, "error", err)
	}
	return nil
}

func (s *MessageService) FindByConversation(ctx context.Context, cmd domain.FindMessagesCommand) ([]domain.Message, error) {
	messages, err := s.store.FindByConversation(ctx, cmd.ConversationID, cmd.Page)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrPersistence, err)
	}
	return messages, nil
}
