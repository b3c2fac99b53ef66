// Package domain contains core concepts of the messaging system.
// This file defines Message and its search projection.
// Messages are immutable once persisted.
package domain

import (
	"time"
)

// Message represents an immutable conversation entry.
type Message struct {
	ID             string         `json:"id"`
	ConversationID string         `json:"conversationId"`
	SenderID       string         `json:"senderId"`
	Content        string         `json:"content"`
	Timestamp      time.Time      `json:"timestamp"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	// CreatedAt is assigned by the record store, never by clients.
	CreatedAt time.Time `json:"createdAt,omitzero"`
}

// IndexDocument is the part of a Message stored in the search index, keyed by ID.
type IndexDocument struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversationId"`
	Content        string    `json:"content"`
	Timestamp      time.Time `json:"timestamp"`
	SenderID       string    `json:"senderId"`
}

// ToIndexDocument projects the message with an already sanitized content.
func (m Message) ToIndexDocument(sanitizedContent string) IndexDocument {
	return IndexDocument{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		Content:        sanitizedContent,
		Timestamp:      m.Timestamp.UTC(),
		SenderID:       m.SenderID,
	}
}

// ToMessage turns a search hit back into a Message-like value.
// Metadata is not part of the index and stays empty.
func (d IndexDocument) ToMessage() Message {
	return Message{
		ID:             d.ID,
		ConversationID: d.ConversationID,
		SenderID:       d.SenderID,
		Content:        d.Content,
		Timestamp:      d.Timestamp,
	}
}

// MissingIndexFields lists the required index fields absent from the message.
func (m Message) MissingIndexFields() []string {
	var missing []string
	if m.ID == "" {
		missing = append(missing, "id")
	}
	if m.Content == "" {
		missing = append(missing, "content")
	}
	if m.ConversationID == "" {
		missing = append(missing, "conversationId")
	}
	if m.Timestamp.IsZero() {
		missing = append(missing, "timestamp")
	}
	return missing
}
