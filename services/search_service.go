package services

import (
	"chat-search/contract"
	"chat-search/domain"
	"chat-search/domain/search"
	apperrors "chat-search/errors"
	"chat-search/observability"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/samber/lo"
)

type ISearchService interface {
	Search(ctx context.Context, query search.Query) []domain.Message
}

// SearchService never fails: a backend error degrades to an empty result,
// so "no match" and "index unavailable" look the same to the caller.
// Both are told apart by the warning log and the search_failures counter.
type SearchService struct {
	log           *slog.Logger
	index         contract.SearchIndex
	metrics       *observability.Metrics
	searchTimeout time.Duration
}

func NewSearchService(
	log *slog.Logger,
	index contract.SearchIndex,
	metrics *observability.Metrics,
	searchTimeout time.Duration,
) *SearchService {
	return &SearchService{log: log, index: index, metrics: metrics, searchTimeout: searchTimeout}
}

func (s *SearchService) Search(ctx context.Context, query search.Query) []domain.Message {
	s.metrics.IncrSearches()
	if query.Empty() {
		return []domain.Message{}
	}
	searchCtx, cancel := context.WithTimeout(ctx, s.searchTimeout)
	defer cancel()

	docs, err := s.index.Search(searchCtx, query)
	if err != nil {
		s.metrics.IncrSearchFailures()
		s.log.Warn("Search degraded to empty result",
			"conversation_id", query.ConversationID, "terms", query.Terms,
			"error", fmt.Errorf("%w: %w", apperrors.ErrSearchBackend, err))
		return []domain.Message{}
	}
	return lo.Map(docs, func(doc domain.IndexDocument, _ int) domain.Message {
		return doc.ToMessage()
	})
}
