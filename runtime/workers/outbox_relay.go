package workers

import (
	"chat-search/contract"
	"chat-search/domain/event"
	"chat-search/observability"
	"context"
	"log/slog"
	"time"
)

// OutboxRelayWorker republishes messages whose event was never acknowledged.
// Only markers older than gracePeriod are picked, so a Submit still
// publishing is left alone. Duplicates are harmless, indexing is an upsert.
type OutboxRelayWorker struct {
	log            *slog.Logger
	outbox         contract.Outbox
	publisher      contract.EventPublisher
	metrics        *observability.Metrics
	topic          string
	interval       time.Duration
	gracePeriod    time.Duration
	batchSize      int
	publishTimeout time.Duration
}

func NewOutboxRelayWorker(
	log *slog.Logger,
	outbox contract.Outbox,
	publisher contract.EventPublisher,
	metrics *observability.Metrics,
	topic string,
	interval, gracePeriod time.Duration,
	batchSize int,
	publishTimeout time.Duration,
) *OutboxRelayWorker {
	return &OutboxRelayWorker{
		log:            log,
		outbox:         outbox,
		publisher:      publisher,
		metrics:        metrics,
		topic:          topic,
		interval:       interval,
		gracePeriod:    gracePeriod,
		batchSize:      batchSize,
		publishTimeout: publishTimeout,
	}
}

func (w *OutboxRelayWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping outbox relay")
			return nil
		case <-ticker.C:
			w.RelayOnce(ctx)
		}
	}
}

// RelayOnce publishes one batch and returns how many markers were cleared.
// The batch stops at the first publish failure, the broker is likely down.
func (w *OutboxRelayWorker) RelayOnce(ctx context.Context) int {
	pending, err := w.outbox.PendingPublish(ctx, time.Now().UTC().Add(-w.gracePeriod), w.batchSize)
	if err != nil {
		w.log.Error("Outbox scan failed", "error", err)
		return 0
	}
	relayed := 0
	for _, message := range pending {
		publishCtx, cancel := context.WithTimeout(ctx, w.publishTimeout)
		err := w.publisher.Publish(publishCtx, w.topic, event.NewMessageCreated(message))
		cancel()
		if err != nil {
			w.metrics.IncrPublishFailures()
			w.log.Warn("Outbox relay publish failed", "id", message.ID, "pending", len(pending)-relayed, "error", err)
			break
		}
		if err := w.outbox.MarkPublished(ctx, message); err != nil {
			w.log.Warn("Outbox marker not cleared", "id", message.ID, "error", err)
			continue
		}
		w.metrics.IncrOutboxRepublished()
		relayed++
	}
	if relayed > 0 {
		w.log.Info("Outbox relayed", "count", relayed)
	}
	return relayed
}
