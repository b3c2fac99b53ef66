package storage

import (
	"chat-search/contract"
	"chat-search/domain"
	apperrors "chat-search/errors"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
)

var _ contract.RecordStore = (*MessageRepository)(nil)

type MessageRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewMessageRepository(db *badger.DB, log *slog.Logger) *MessageRepository {
	return &MessageRepository{db: db, log: log}
}

// Create persists a message in BadgerDB.
// Within a single transaction it writes:
//  1. the record under its id, rejecting an id that already exists,
//  2. the conversation ordering entry, keyed by padded timestamp so a reverse scan is timestamp desc,
//  3. the outbox marker, cleared once the event has been acknowledged by the broker.
//
// Only CreatedAt is assigned here, business fields are stored as given.
func (m MessageRepository) Create(ctx context.Context, message domain.Message) (domain.Message, error) {
	if err := ctx.Err(); err != nil {
		return domain.Message{}, err
	}
	message.Timestamp = message.Timestamp.UTC()
	message.CreatedAt = time.Now().UTC()

	bytes, err := marshalMessage(message)
	if err != nil {
		return domain.Message{}, err
	}
	err = m.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(messageKey(message.ID))
		switch {
		case err == nil:
			return fmt.Errorf("%w: %s", apperrors.ErrDuplicateMessage, message.ID)
		case !errors.Is(err, badger.ErrKeyNotFound):
			return err
		}
		if err := txn.Set(messageKey(message.ID), bytes); err != nil {
			return err
		}
		if err := txn.Set(conversationKey(message), []byte(message.ID)); err != nil {
			return err
		}
		return txn.Set(outboxKey(message), []byte(message.ID))
	})
	if err != nil {
		return domain.Message{}, err
	}
	m.log.Debug("Message stored", "id", message.ID, "conversation_id", message.ConversationID)
	return message, nil
}

// FindByConversation scans the conversation index backwards, newest first,
// skipping page.Skip() entries and collecting at most page.Limit messages.
func (m MessageRepository) FindByConversation(ctx context.Context, conversationID string, page domain.Page) ([]domain.Message, error) {
	var messages []domain.Message
	err := m.db.View(func(txn *badger.Txn) error {
		prefix := conversationScanPrefix(conversationID)
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		options.Prefix = prefix
		it := txn.NewIterator(options)
		defer it.Close()

		skipped := 0
		for it.Seek(reverseSeekKey(prefix)); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			if skipped < page.Skip() {
				skipped++
				continue
			}
			if len(messages) == page.Limit {
				break
			}
			id, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			message, err := getMessage(txn, string(id))
			if err != nil {
				return err
			}
			messages = append(messages, message)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return messages, nil
}

// Get returns the message stored under id.
func (m MessageRepository) Get(ctx context.Context, id string) (domain.Message, error) {
	if err := ctx.Err(); err != nil {
		return domain.Message{}, err
	}
	var message domain.Message
	err := m.db.View(func(txn *badger.Txn) error {
		var err error
		message, err = getMessage(txn, id)
		return err
	})
	return message, err
}

// Ping fails once the database has been closed.
func (m MessageRepository) Ping(_ context.Context) error {
	if m.db.IsClosed() {
		return fmt.Errorf("badger is closed")
	}
	return m.db.View(func(txn *badger.Txn) error { return nil })
}

func getMessage(txn *badger.Txn, id string) (domain.Message, error) {
	item, err := txn.Get(messageKey(id))
	if err != nil {
		return domain.Message{}, fmt.Errorf("message %s: %w", id, err)
	}
	var message domain.Message
	err = item.Value(func(value []byte) error {
		message, err = unmarshalMessage(value)
		return err
	})
	return message, err
}
