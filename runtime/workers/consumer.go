package workers

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
)

// ConsumerWorker is one consumer group member feeding the indexer.
// Every delivery is committed once handled, whatever the outcome:
// malformed payloads and invalid candidates are dropped, backend failures
// are retried maxAttempts times then moved to the dead letter store.
type ConsumerWorker struct {
	log         *slog.Logger
	subscriber  contract.EventSubscriber
	indexer     contract.MessageIndexer
	deadLetters contract.DeadLetterStore
	metrics     *observability.Metrics
	maxAttempts int
	backoff     time.Duration
}

func NewConsumerWorker(
	log *slog.Logger,
	subscriber contract.EventSubscriber,
	indexer contract.MessageIndexer,
	deadLetters contract.DeadLetterStore,
	metrics *observability.Metrics,
	maxAttempts int,
	backoff time.Duration,
) *ConsumerWorker {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &ConsumerWorker{
		log:         log,
		subscriber:  subscriber,
		indexer:     indexer,
		deadLetters: deadLetters,
		metrics:     metrics,
		maxAttempts: maxAttempts,
		backoff:     backoff,
	}
}

// Run stops fetching as soon as ctx is done. A delivery already fetched is
// finished and committed with a context detached from the cancellation.
func (w *ConsumerWorker) Run(ctx context.Context) error {
	for {
		delivery, err := w.subscriber.Fetch(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, apperrors.ErrSubscriberClosed) {
				w.log.Debug("Consumer stopped", "reason", err)
				return nil
			}
			return fmt.Errorf("fetch: %w", err)
		}
		w.metrics.IncrEventsConsumed()

		if !w.handle(ctx, delivery) {
			w.log.Info("Delivery left uncommitted for redelivery", "partition", delivery.Partition, "offset", delivery.Offset)
			return nil
		}
		if err := w.subscriber.Commit(context.WithoutCancel(ctx), delivery); err != nil {
			return fmt.Errorf("commit partition %d offset %d: %w", delivery.Partition, delivery.Offset, err)
		}
	}
}

// handle reports whether the delivery can be committed.
// It only refuses when shutdown interrupts a retry backoff.
func (w *ConsumerWorker) handle(ctx context.Context, delivery contract.Delivery) bool {
	evt, err := event.Decode(delivery.Value)
	if err == nil {
		var candidate domain.Message
		candidate, err = evt.ToMessage()
		if err == nil {
			return w.index(ctx, delivery, candidate)
		}
	}
	w.metrics.IncrMalformedEvents()
	w.log.Warn("Malformed event dropped",
		"partition", delivery.Partition, "offset", delivery.Offset, "error", err)
	return true
}

func (w *ConsumerWorker) index(ctx context.Context, delivery contract.Delivery, candidate domain.Message) bool {
	detached := context.WithoutCancel(ctx)
	var outcome domain.IndexOutcome
	for attempt := 1; attempt <= w.maxAttempts; attempt++ {
		outcome = w.indexer.Index(detached, candidate)
		if !outcome.Retryable() {
			return true
		}
		if attempt == w.maxAttempts {
			break
		}
		w.metrics.IncrIndexRetries()
		select {
		case <-ctx.Done():
			return false
		case <-time.After(time.Duration(attempt) * w.backoff):
		}
	}

	letter := domain.DeadLetter{
		MessageID: candidate.ID,
		Topic:     delivery.Topic,
		Partition: delivery.Partition,
		Offset:    delivery.Offset,
		Payload:   delivery.Value,
		Reason:    outcome.Err.Error(),
		Attempts:  w.maxAttempts,
		At:        time.Now().UTC(),
	}
	if err := w.deadLetters.StoreDeadLetter(detached, letter); err != nil {
		w.log.Error("Dead letter lost", "id", candidate.ID, "offset", delivery.Offset, "error", err)
		return true
	}
	w.metrics.IncrDeadLettered()
	w.log.Warn("Event moved to dead letters", "id", candidate.ID, "attempts", w.maxAttempts, "reason", letter.Reason)
	return true
}
