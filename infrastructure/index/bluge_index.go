// Package index stores IndexDocuments in a Bluge full-text index.
package index

import (
	"chat-search/contract"
	"chat-search/domain"
	"chat-search/domain/search"
	"context"
	"fmt"
	"log/slog"

	"github.com/blugelabs/bluge"
)

const (
	// Name of the index directory under BLUGE_FILEPATH.
	Name = "messages"

	fieldID             = "_id"
	fieldConversationID = "conversationId"
	fieldContent        = "content"
	fieldTimestamp      = "timestamp"
	fieldSenderID       = "senderId"
)

var _ contract.SearchIndex = (*BlugeIndex)(nil)

// BlugeIndex owns nothing: the writer is opened and closed by the process.
type BlugeIndex struct {
	writer *bluge.Writer
	log    *slog.Logger
}

func NewBlugeIndex(writer *bluge.Writer, log *slog.Logger) *BlugeIndex {
	return &BlugeIndex{writer: writer, log: log}
}

// Upsert replaces any document with the same id, so a redelivered event never duplicates.
func (b *BlugeIndex) Upsert(ctx context.Context, doc domain.IndexDocument) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	document := toBlugeDocument(doc)
	if err := b.writer.Update(document.ID(), document); err != nil {
		return fmt.Errorf("upsert %s: %w", doc.ID, err)
	}
	return nil
}

// Search filters on the exact conversation id, matches the terms on content,
// and sorts by timestamp desc with offset pagination.
func (b *BlugeIndex) Search(ctx context.Context, query search.Query) ([]domain.IndexDocument, error) {
	if query.Empty() {
		return nil, nil
	}
	reader, err := b.writer.Reader()
	if err != nil {
		return nil, fmt.Errorf("open reader: %w", err)
	}
	defer func() {
		if err := reader.Close(); err != nil {
			b.log.Warn("Failed to close bluge reader", "error", err)
		}
	}()
	return SearchReader(ctx, reader, query)
}

// Lookup returns every document stored under id. More than one would break the upsert invariant.
func (b *BlugeIndex) Lookup(ctx context.Context, id string) ([]domain.IndexDocument, error) {
	reader, err := b.writer.Reader()
	if err != nil {
		return nil, fmt.Errorf("open reader: %w", err)
	}
	defer reader.Close()

	request := bluge.NewTopNSearch(10, bluge.NewTermQuery(id).SetField(fieldID))
	return collect(ctx, reader, request)
}

// Count is the number of documents in the index.
func (b *BlugeIndex) Count() (uint64, error) {
	reader, err := b.writer.Reader()
	if err != nil {
		return 0, err
	}
	defer reader.Close()
	return reader.Count()
}

// Ping opens and releases a reader snapshot.
func (b *BlugeIndex) Ping(_ context.Context) error {
	reader, err := b.writer.Reader()
	if err != nil {
		return err
	}
	return reader.Close()
}

// SearchReader runs a conversation query against any reader, including a read-only one.
func SearchReader(ctx context.Context, reader *bluge.Reader, query search.Query) ([]domain.IndexDocument, error) {
	q := bluge.NewBooleanQuery().
		AddMust(bluge.NewTermQuery(query.ConversationID).SetField(fieldConversationID)).
		AddMust(bluge.NewMatchQuery(query.Terms).SetField(fieldContent))

	request := bluge.NewTopNSearch(query.Page.Limit, q).
		SetFrom(query.Page.Skip()).
		SortBy([]string{"-" + fieldTimestamp})
	return collect(ctx, reader, request)
}

func collect(ctx context.Context, reader *bluge.Reader, request bluge.SearchRequest) ([]domain.IndexDocument, error) {
	iterator, err := reader.Search(ctx, request)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	var docs []domain.IndexDocument
	match, err := iterator.Next()
	for err == nil && match != nil {
		var doc domain.IndexDocument
		var decodeErr error
		err = match.VisitStoredFields(func(field string, value []byte) bool {
			switch field {
			case fieldID:
				doc.ID = string(value)
			case fieldConversationID:
				doc.ConversationID = string(value)
			case fieldContent:
				doc.Content = string(value)
			case fieldSenderID:
				doc.SenderID = string(value)
			case fieldTimestamp:
				doc.Timestamp, decodeErr = bluge.DecodeDateTime(value)
				if decodeErr != nil {
					return false
				}
				doc.Timestamp = doc.Timestamp.UTC()
			}
			return true
		})
		if err != nil {
			return nil, err
		}
		if decodeErr != nil {
			return nil, fmt.Errorf("decode timestamp of %s: %w", doc.ID, decodeErr)
		}
		docs = append(docs, doc)
		match, err = iterator.Next()
	}
	if err != nil {
		return nil, err
	}
	return docs, nil
}

func toBlugeDocument(doc domain.IndexDocument) *bluge.Document {
	document := bluge.NewDocument(doc.ID).
		AddField(bluge.NewKeywordField(fieldConversationID, doc.ConversationID).StoreValue()).
		AddField(bluge.NewTextField(fieldContent, doc.Content).StoreValue()).
		AddField(bluge.NewDateTimeField(fieldTimestamp, doc.Timestamp).StoreValue().Sortable())
	if doc.SenderID != "" {
		document.AddField(bluge.NewKeywordField(fieldSenderID, doc.SenderID).StoreValue())
	}
	return document
}
