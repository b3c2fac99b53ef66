package services

import (
	"chat-search/domain"
	apperrors "chat-search/errors"
	"chat-search/mocks"
	"chat-search/moderation"
	"chat-search/observability"
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func newIndexer(t *testing.T) (*IndexerService, *mocks.MockSearchIndex, *observability.Metrics) {
	ctrl := gomock.NewController(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	index := mocks.NewMockSearchIndex(ctrl)
	metrics := observability.NewMetrics(log)
	return NewIndexerService(log, index, moderation.NewSanitizer(nil, log), metrics, time.Second), index, metrics
}

func candidate() domain.Message {
	return domain.Message{
		ID:             "m1",
		ConversationID: "c1",
		SenderID:       "u1",
		Content:        "<script>alert(1)</script>hello",
		Timestamp:      time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestIndexerService_Index_Sanitizes_Before_Upsert(t *testing.T) {
	req := require.New(t)
	indexer, index, metrics := newIndexer(t)

	index.EXPECT().Upsert(gomock.Any(), domain.IndexDocument{
		ID:             "m1",
		ConversationID: "c1",
		Content:        "hello",
		Timestamp:      time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		SenderID:       "u1",
	}).Return(nil)

	outcome := indexer.Index(context.Background(), candidate())

	req.Equal(domain.IndexStatusIndexed, outcome.Status)
	req.NoError(outcome.Err)
	req.Equal(uint64(1), metrics.Snapshot().Indexed)
}

func TestIndexerService_Index_Drops_Invalid_Candidates(t *testing.T) {
	req := require.New(t)

	tests := []struct {
		name   string
		modify func(m *domain.Message)
	}{
		{"missing id", func(m *domain.Message) { m.ID = "" }},
		{"missing content", func(m *domain.Message) { m.Content = "" }},
		{"missing conversation", func(m *domain.Message) { m.ConversationID = "" }},
		{"missing timestamp", func(m *domain.Message) { m.Timestamp = time.Time{} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			indexer, index, metrics := newIndexer(t)
			index.EXPECT().Upsert(gomock.Any(), gomock.Any()).Times(0)

			m := candidate()
			tt.modify(&m)
			outcome := indexer.Index(context.Background(), m)

			req.Equal(domain.IndexStatusInvalid, outcome.Status)
			req.False(outcome.Retryable())
			req.ErrorIs(outcome.Err, apperrors.ErrInvalidCandidate)
			req.Equal(uint64(1), metrics.Snapshot().ValidationDrops)
		})
	}
}

func TestIndexerService_Index_Backend_Failure_Is_Absorbed(t *testing.T) {
	req := require.New(t)
	indexer, index, metrics := newIndexer(t)

	index.EXPECT().Upsert(gomock.Any(), gomock.Any()).Return(fmt.Errorf("connection refused"))

	outcome := indexer.Index(context.Background(), candidate())

	req.Equal(domain.IndexStatusBackendFailure, outcome.Status)
	req.True(outcome.Retryable())
	req.ErrorIs(outcome.Err, apperrors.ErrIndexingBackend)
	req.Equal(uint64(1), metrics.Snapshot().IndexFailures)
}
