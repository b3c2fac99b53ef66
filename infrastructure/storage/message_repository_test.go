package storage

import (
	"chat-search/domain"
	apperrors "chat-search/errors"
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func newMessage(conversationID string, at time.Time, content string) domain.Message {
	return domain.Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		SenderID:       "u1",
		Content:        content,
		Timestamp:      at,
	}
}

func TestMessageRepository_Create_And_Get(t *testing.T) {
	req := require.New(t)
	db, cleanup := SetupTestDB(t)
	defer cleanup()
	ctx := context.Background()
	repository := NewMessageRepository(db, slog.Default())

	// Given a message with metadata
	message := newMessage("c1", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), "hello")
	message.Metadata = map[string]any{"delivered": true, "retries": float64(2), "tags": []any{"a", "b"}}

	// When it is created
	stored, err := repository.Create(ctx, message)
	req.NoError(err)

	// Then storage metadata is assigned but business fields are untouched
	req.False(stored.CreatedAt.IsZero())
	req.Equal(message.ID, stored.ID)
	req.Equal(message.Content, stored.Content)
	req.True(message.Timestamp.Equal(stored.Timestamp))

	fetched, err := repository.Get(ctx, message.ID)
	req.NoError(err)
	req.Equal(stored, fetched)
}

func TestMessageRepository_Create_Rejects_Duplicate_ID(t *testing.T) {
	req := require.New(t)
	db, cleanup := SetupTestDB(t)
	defer cleanup()
	ctx := context.Background()
	repository := NewMessageRepository(db, slog.Default())

	message := newMessage("c1", time.Now().UTC(), "first")
	_, err := repository.Create(ctx, message)
	req.NoError(err)

	message.Content = "second"
	_, err = repository.Create(ctx, message)
	req.ErrorIs(err, apperrors.ErrDuplicateMessage)

	// The first write is never overwritten
	fetched, err := repository.Get(ctx, message.ID)
	req.NoError(err)
	req.Equal("first", fetched.Content)
}

func TestMessageRepository_FindByConversation_Newest_First(t *testing.T) {
	req := require.New(t)
	db, cleanup := SetupTestDB(t)
	defer cleanup()
	ctx := context.Background()
	repository := NewMessageRepository(db, slog.Default())

	t1 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Minute)

	// Given T1 written before T2
	older := newMessage("c1", t1, "older")
	newer := newMessage("c1", t2, "newer")
	_, err := repository.Create(ctx, older)
	req.NoError(err)
	_, err = repository.Create(ctx, newer)
	req.NoError(err)

	// And a message in another conversation
	_, err = repository.Create(ctx, newMessage("c2", t2, "elsewhere"))
	req.NoError(err)

	messages, err := repository.FindByConversation(ctx, "c1", domain.NewPage(1, 20, 100))
	req.NoError(err)
	req.Len(messages, 2)
	req.Equal(newer.ID, messages[0].ID)
	req.Equal(older.ID, messages[1].ID)
}

func TestMessageRepository_FindByConversation_Pagination(t *testing.T) {
	req := require.New(t)
	db, cleanup := SetupTestDB(t)
	defer cleanup()
	ctx := context.Background()
	repository := NewMessageRepository(db, slog.Default())

	// Given 25 messages, one minute apart, inserted in a shuffled order
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var all []domain.Message
	for i := 0; i < 25; i++ {
		all = append(all, newMessage("c1", base.Add(time.Duration(i)*time.Minute), fmt.Sprintf("message %d", i)))
	}
	for i := range all {
		_, err := repository.Create(ctx, all[(i*7)%len(all)])
		req.NoError(err)
	}

	// When fetching the second page of ten
	page2, err := repository.FindByConversation(ctx, "c1", domain.NewPage(2, 10, 100))
	req.NoError(err)

	// Then the ten newest are skipped: messages 14 down to 5
	req.Len(page2, 10)
	for i, message := range page2 {
		req.Equal(fmt.Sprintf("message %d", 14-i), message.Content)
	}

	page3, err := repository.FindByConversation(ctx, "c1", domain.NewPage(3, 10, 100))
	req.NoError(err)
	req.Len(page3, 5)
	req.Equal("message 0", page3[4].Content)

	page4, err := repository.FindByConversation(ctx, "c1", domain.NewPage(4, 10, 100))
	req.NoError(err)
	req.Empty(page4)
}

func TestMessageRepository_Conversation_Prefixes_Do_Not_Overlap(t *testing.T) {
	req := require.New(t)
	db, cleanup := SetupTestDB(t)
	defer cleanup()
	ctx := context.Background()
	repository := NewMessageRepository(db, slog.Default())

	at := time.Now().UTC()
	_, err := repository.Create(ctx, newMessage("a", at, "in a"))
	req.NoError(err)
	_, err = repository.Create(ctx, newMessage("a:b", at, "in a:b"))
	req.NoError(err)

	messages, err := repository.FindByConversation(ctx, "a", domain.NewPage(1, 20, 100))
	req.NoError(err)
	req.Len(messages, 1)
	req.Equal("in a", messages[0].Content)
}

func TestMessageRepository_Timestamps_Before_Epoch_Sort_First(t *testing.T) {
	req := require.New(t)
	db, cleanup := SetupTestDB(t)
	defer cleanup()
	ctx := context.Background()
	repository := NewMessageRepository(db, slog.Default())

	old := newMessage("c1", time.Date(1960, 1, 1, 0, 0, 0, 0, time.UTC), "old")
	recent := newMessage("c1", time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), "recent")
	_, err := repository.Create(ctx, recent)
	req.NoError(err)
	_, err = repository.Create(ctx, old)
	req.NoError(err)

	messages, err := repository.FindByConversation(ctx, "c1", domain.NewPage(1, 20, 100))
	req.NoError(err)
	req.Len(messages, 2)
	req.Equal("recent", messages[0].Content)
	req.Equal("old", messages[1].Content)
	req.True(old.Timestamp.Equal(messages[1].Timestamp))
}

func TestMessageRepository_Ping(t *testing.T) {
	req := require.New(t)
	db, cleanup := SetupTestDB(t)
	repository := NewMessageRepository(db, slog.Default())

	req.NoError(repository.Ping(context.Background()))
	cleanup()
	req.Error(repository.Ping(context.Background()))
}
