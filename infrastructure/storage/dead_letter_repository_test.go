package storage

import (
	"chat-search/domain"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDeadLetterRepository_Store_And_List(t *testing.T) {
	req := require.New(t)
	db, cleanup := SetupTestDB(t)
	defer cleanup()
	ctx := context.Background()
	repository := NewDeadLetterRepository(db, slog.Default())

	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	older := domain.DeadLetter{
		MessageID: "m1",
		Topic:     "message.created",
		Partition: 3,
		Offset:    42,
		Payload:   []byte(`{"id":"m1"}`),
		Reason:    "search index upsert failure: disk full",
		Attempts:  3,
		At:        at,
	}
	newer := older
	newer.MessageID = "m2"
	newer.At = at.Add(time.Minute)

	req.NoError(repository.StoreDeadLetter(ctx, older))
	req.NoError(repository.StoreDeadLetter(ctx, newer))

	letters, err := repository.ListDeadLetters(ctx, 10)
	req.NoError(err)
	req.Len(letters, 2)
	req.Equal(newer, letters[0])
	req.Equal(older, letters[1])

	letters, err = repository.ListDeadLetters(ctx, 1)
	req.NoError(err)
	req.Len(letters, 1)
}
