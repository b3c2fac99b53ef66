package domain

import (
	"time"
)

// SubmitMessageCommand carries a validated write request.
// ID is optional, the writer generates one when empty.
type SubmitMessageCommand struct {
	ID             string
	ConversationID string
	SenderID       string
	Content        string
	Timestamp      time.Time
	Metadata       map[string]any
}

// ToMessage builds the message to persist with the given identifier.
func (c SubmitMessageCommand) ToMessage(id string) Message {
	return Message{
		ID:             id,
		ConversationID: c.ConversationID,
		SenderID:       c.SenderID,
		Content:        c.Content,
		Timestamp:      c.Timestamp.UTC(),
		Metadata:       c.Metadata,
	}
}

// FindMessagesCommand reads a conversation page by page.
type FindMessagesCommand struct {
	ConversationID string
	Page           Page
}
