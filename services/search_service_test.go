package services

import (
	"chat-search/domain"
	"chat-search/domain/search"
	"chat-search/mocks"
	"chat-search/observability"
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func newSearchService(t *testing.T) (*SearchService, *mocks.MockSearchIndex, *observability.Metrics) {
	ctrl := gomock.NewController(t)
	index := mocks.NewMockSearchIndex(ctrl)
	metrics := observability.NewMetrics(slog.Default())
	return NewSearchService(slog.Default(), index, metrics, time.Second), index, metrics
}

func TestSearchService_Search_Maps_Documents(t *testing.T) {
	req := require.New(t)
	service, index, _ := newSearchService(t)
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	query := search.NewQuery("c1", "hello", domain.NewPage(1, 20, 100))

	index.EXPECT().Search(gomock.Any(), query).Return([]domain.IndexDocument{
		{ID: "m2", ConversationID: "c1", Content: "hello again", Timestamp: at.Add(time.Minute), SenderID: "u2"},
		{ID: "m1", ConversationID: "c1", Content: "hello", Timestamp: at, SenderID: "u1"},
	}, nil)

	results := service.Search(context.Background(), query)

	req.Len(results, 2)
	req.Equal("m2", results[0].ID)
	req.Equal("u2", results[0].SenderID)
	req.Equal(at, results[1].Timestamp)
}

func TestSearchService_Search_Degrades_To_Empty(t *testing.T) {
	req := require.New(t)
	service, index, metrics := newSearchService(t)

	// Given an unreachable index
	index.EXPECT().Search(gomock.Any(), gomock.Any()).Return(nil, fmt.Errorf("connection refused"))

	// When searching
	results := service.Search(context.Background(), search.NewQuery("c1", "anything", domain.NewPage(1, 20, 100)))

	// Then the caller gets an empty list, not an error
	req.NotNil(results)
	req.Empty(results)
	req.Equal(uint64(1), metrics.Snapshot().SearchFailures)
}

func TestSearchService_Search_Empty_Terms_Skips_Index(t *testing.T) {
	req := require.New(t)
	service, index, _ := newSearchService(t)
	index.EXPECT().Search(gomock.Any(), gomock.Any()).Times(0)

	results := service.Search(context.Background(), search.NewQuery("c1", "  ", domain.NewPage(1, 20, 100)))

	req.Empty(results)
}
