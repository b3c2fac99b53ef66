package storage

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestOutboxRepository_Pending_Until_Published(t *testing.T) {
	req := require.New(t)
	db, cleanup := SetupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	messages := NewMessageRepository(db, logger)
	outbox := NewOutboxRepository(db, logger)

	// --- Scenario 1: every created message starts pending ---
	first, err := messages.Create(ctx, newMessage("c1", time.Now().UTC(), "first"))
	req.NoError(err)
	time.Sleep(time.Millisecond)
	second, err := messages.Create(ctx, newMessage("c1", time.Now().UTC(), "second"))
	req.NoError(err)

	pending, err := outbox.PendingPublish(ctx, time.Now().Add(time.Second), 10)
	req.NoError(err)
	req.Len(pending, 2)
	req.Equal(first.ID, pending[0].ID)
	req.Equal(second.ID, pending[1].ID)

	// --- Scenario 2: acknowledged messages leave the outbox ---
	req.NoError(outbox.MarkPublished(ctx, first))
	pending, err = outbox.PendingPublish(ctx, time.Now().Add(time.Second), 10)
	req.NoError(err)
	req.Len(pending, 1)
	req.Equal(second.ID, pending[0].ID)

	// Marking twice is harmless
	req.NoError(outbox.MarkPublished(ctx, first))

	count, err := outbox.CountPending()
	req.NoError(err)
	req.Equal(1, count)
}

func TestOutboxRepository_Respects_Grace_Period_And_Limit(t *testing.T) {
	req := require.New(t)
	db, cleanup := SetupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	messages := NewMessageRepository(db, slog.Default())
	outbox := NewOutboxRepository(db, slog.Default())

	for i := 0; i < 3; i++ {
		_, err := messages.Create(ctx, newMessage("c1", time.Now().UTC(), "m"))
		req.NoError(err)
	}

	// Nothing was created an hour ago
	pending, err := outbox.PendingPublish(ctx, time.Now().Add(-time.Hour), 10)
	req.NoError(err)
	req.Empty(pending)

	// Batch size is honored
	pending, err = outbox.PendingPublish(ctx, time.Now().Add(time.Second), 2)
	req.NoError(err)
	req.Len(pending, 2)
}
