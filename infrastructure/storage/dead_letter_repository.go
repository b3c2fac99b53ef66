package storage

import (
	"chat-search/contract"
	"chat-search/domain"
	"context"
	"log/slog"

	"github.com/dgraph-io/badger/v4"
)

var _ contract.DeadLetterStore = (*DeadLetterRepository)(nil)

// DeadLetterRepository keeps events whose indexing kept failing, for manual inspection.
type DeadLetterRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewDeadLetterRepository(db *badger.DB, log *slog.Logger) *DeadLetterRepository {
	return &DeadLetterRepository{db: db, log: log}
}

func (d DeadLetterRepository) StoreDeadLetter(ctx context.Context, letter domain.DeadLetter) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return d.db.Update(func(txn *badger.Txn) error {
		return txn.Set(deadLetterKey(letter), marshalDeadLetter(letter))
	})
}

// ListDeadLetters returns the most recent dead letters first.
func (d DeadLetterRepository) ListDeadLetters(ctx context.Context, limit int) ([]domain.DeadLetter, error) {
	var letters []domain.DeadLetter
	prefix := []byte(deadLetterPrefix)
	err := d.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(reverseSeekKey(prefix)); it.ValidForPrefix(prefix) && len(letters) < limit; it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			err := it.Item().Value(func(value []byte) error {
				letter, err := unmarshalDeadLetter(value)
				if err != nil {
					return err
				}
				letters = append(letters, letter)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	return letters, err
}
