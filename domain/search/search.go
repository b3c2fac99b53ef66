package search

import (
	"chat-search/domain"
	"strings"
)

// Query represents the structured parameters of a conversation search.
// It decouples the raw request from what the index engine needs.
type Query struct {
	ConversationID string      // Exact match filter
	Terms          string      // Full-text match on content
	Page           domain.Page // Offset pagination, sorted by timestamp desc
}

// NewQuery trims the terms, pagination is expected to be clamped already.
func NewQuery(conversationID, terms string, page domain.Page) Query {
	return Query{
		ConversationID: conversationID,
		Terms:          strings.TrimSpace(terms),
		Page:           page,
	}
}

// Empty reports a query that cannot match anything.
func (q Query) Empty() bool {
	return q.ConversationID == "" || q.Terms == ""
}
