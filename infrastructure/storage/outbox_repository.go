package storage

import (
	"chat-search/contract"
	"chat-search/domain"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
)

var _ contract.Outbox = (*OutboxRepository)(nil)

// OutboxRepository reads the pending-publish markers written by MessageRepository.Create.
// A marker survives until its event has been acknowledged, so a broker outage
// never loses the searchability of a durable message.
type OutboxRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewOutboxRepository(db *badger.DB, log *slog.Logger) *OutboxRepository {
	return &OutboxRepository{
		db:  db,
		log: log,
	}
}

// PendingPublish retrieves at most limit pending messages created before createdBefore, oldest first.
func (o OutboxRepository) PendingPublish(ctx context.Context, createdBefore time.Time, limit int) ([]domain.Message, error) {
	var messages []domain.Message
	prefix := []byte(outboxPrefix)
	upperBound := sortableInstant(createdBefore)

	err := o.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchSize = limit
		opts.Prefix = prefix

		it := txn.NewIterator(opts)
		defer it.Close()

		// Keys are ordered by creation instant, we stop at the first one too recent
		for it.Seek(prefix); it.ValidForPrefix(prefix) && len(messages) < limit; it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			instant, ok := instantFromKey(item.Key(), outboxPrefix)
			if !ok {
				o.log.Warn("Skipping unreadable outbox key", "key", string(item.Key()))
				continue
			}
			if instant >= upperBound {
				break
			}
			id, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			message, err := getMessage(txn, string(id))
			if err != nil {
				return fmt.Errorf("outbox entry without record: %w", err)
			}
			messages = append(messages, message)
		}
		return nil
	})

	if err != nil {
		return nil, fmt.Errorf("error during outbox fetch: %w", err)
	}

	return messages, nil
}

// MarkPublished clears the marker, it is a no-op when already cleared.
func (o OutboxRepository) MarkPublished(ctx context.Context, message domain.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return o.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(outboxKey(message))
	})
}

// CountPending counts the markers still waiting for an acknowledgment.
func (o OutboxRepository) CountPending() (int, error) {
	count := 0
	prefix := []byte(outboxPrefix)
	err := o.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			count++
		}
		return nil
	})
	return count, err
}
