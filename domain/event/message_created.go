// Package event holds the wire format exchanged over the event stream.
package event

import (
	"chat-search/domain"
	"chat-search/errors"
	"encoding/json"
	"fmt"
	"time"
)

// TopicMessageCreated is the default topic carrying MessageCreated events.
const TopicMessageCreated = "message.created"

// MessageCreated is emitted once a message is persisted.
// Consumers may receive it more than once.
type MessageCreated struct {
	ID             string         `json:"id"`
	ConversationID string         `json:"conversationId"`
	SenderID       string         `json:"senderId"`
	Content        string         `json:"content"`
	Timestamp      string         `json:"timestamp"`
	Metadata       map[string]any `json:"metadata"`
}

func NewMessageCreated(m domain.Message) MessageCreated {
	metadata := m.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	return MessageCreated{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		Content:        m.Content,
		Timestamp:      m.Timestamp.UTC().Format(time.RFC3339Nano),
		Metadata:       metadata,
	}
}

// Key routes every event of a conversation to the same partition.
func (e MessageCreated) Key() []byte {
	return []byte(e.ConversationID)
}

func (e MessageCreated) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// Decode parses a raw payload. Anything that is not a JSON object of the
// expected shape is reported as errors.ErrMalformedEvent.
func Decode(payload []byte) (MessageCreated, error) {
	if len(payload) == 0 {
		return MessageCreated{}, fmt.Errorf("%w: empty payload", errors.ErrMalformedEvent)
	}
	var evt MessageCreated
	if err := json.Unmarshal(payload, &evt); err != nil {
		return MessageCreated{}, fmt.Errorf("%w: %w", errors.ErrMalformedEvent, err)
	}
	return evt, nil
}

// ToMessage converts the event into an index candidate.
// A missing timestamp yields a zero time, left to the indexer's validation.
func (e MessageCreated) ToMessage() (domain.Message, error) {
	var at time.Time
	if e.Timestamp != "" {
		parsed, err := time.Parse(time.RFC3339Nano, e.Timestamp)
		if err != nil {
			return domain.Message{}, fmt.Errorf("%w: timestamp %q: %w", errors.ErrMalformedEvent, e.Timestamp, err)
		}
		at = parsed.UTC()
	}
	return domain.Message{
		ID:             e.ID,
		ConversationID: e.ConversationID,
		SenderID:       e.SenderID,
		Content:        e.Content,
		Timestamp:      at,
		Metadata:       e.Metadata,
	}, nil
}
