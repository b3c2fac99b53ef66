package services

import (
	"chat-search/contract"
	"chat-search/domain"
	apperrors "chat-search/errors"
	"chat-search/observability"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// ContentSanitizer removes anything executable from user content.
type ContentSanitizer interface {
	Sanitize(content string) string
}

// IndexerService validates, sanitizes and upserts one candidate.
// It never returns an error, every failure is reported in the outcome,
// logged and counted.
type IndexerService struct {
	log          *slog.Logger
	index        contract.SearchIndex
	sanitizer    ContentSanitizer
	metrics      *observability.Metrics
	indexTimeout time.Duration
}

var _ contract.MessageIndexer = (*IndexerService)(nil)

func NewIndexerService(
	log *slog.Logger,
	index contract.SearchIndex,
	sanitizer ContentSanitizer,
	metrics *observability.Metrics,
	indexTimeout time.Duration,
) *IndexerService {
	return &IndexerService{
		log:          log,
		index:        index,
		sanitizer:    sanitizer,
		metrics:      metrics,
		indexTimeout: indexTimeout,
	}
}

func (s *IndexerService) Index(ctx context.Context, candidate domain.Message) domain.IndexOutcome {
	if missing := candidate.MissingIndexFields(); len(missing) > 0 {
		s.metrics.IncrValidationDrops()
		s.log.Warn("Index candidate dropped", "id", candidate.ID, "missing", strings.Join(missing, ","))
		return domain.IndexOutcome{
			ID:     candidate.ID,
			Status: domain.IndexStatusInvalid,
			Err:    fmt.Errorf("%w: %s", apperrors.ErrInvalidCandidate, strings.Join(missing, ", ")),
		}
	}

	doc := candidate.ToIndexDocument(s.sanitizer.Sanitize(candidate.Content))

	indexCtx, cancel := context.WithTimeout(ctx, s.indexTimeout)
	defer cancel()
	if err := s.index.Upsert(indexCtx, doc); err != nil {
		s.metrics.IncrIndexFailures()
		s.log.Error("Index upsert failed", "id", doc.ID, "conversation_id", doc.ConversationID, "error", err)
		return domain.IndexOutcome{
			ID:     doc.ID,
			Status: domain.IndexStatusBackendFailure,
			Err:    fmt.Errorf("%w: %w", apperrors.ErrIndexingBackend, err),
		}
	}
	s.metrics.IncrIndexed()
	s.log.Debug("Message indexed", "id", doc.ID, "conversation_id", doc.ConversationID)
	return domain.IndexOutcome{ID: doc.ID, Status: domain.IndexStatusIndexed}
}
