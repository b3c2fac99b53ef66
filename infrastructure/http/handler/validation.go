package handler

import (
	"chat-search/domain"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

type SubmitMessageRequest struct {
	ID             string         `json:"id" validate:"omitempty,max=128"`
	ConversationID string         `json:"conversationId" validate:"required,max=256"`
	SenderID       string         `json:"senderId" validate:"required,max=256"`
	Content        string         `json:"content" validate:"required,max=20000"`
	Timestamp      string         `json:"timestamp" validate:"required"`
	Metadata       map[string]any `json:"metadata"`
}

// ToCommand validates the request and parses its ISO-8601 timestamp.
func (r SubmitMessageRequest) ToCommand() (domain.SubmitMessageCommand, error) {
	if err := validate.Struct(r); err != nil {
		return domain.SubmitMessageCommand{}, describe(err)
	}
	at, err := time.Parse(time.RFC3339Nano, r.Timestamp)
	if err != nil {
		return domain.SubmitMessageCommand{}, fmt.Errorf("timestamp must be ISO-8601, got %q", r.Timestamp)
	}
	return domain.SubmitMessageCommand{
		ID:             r.ID,
		ConversationID: r.ConversationID,
		SenderID:       r.SenderID,
		Content:        r.Content,
		Timestamp:      at.UTC(),
		Metadata:       r.Metadata,
	}, nil
}

// describe turns validator errors into a client message naming the json fields.
func describe(err error) error {
	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}
	messages := make([]string, 0, len(validationErrors))
	for _, fe := range validationErrors {
		messages = append(messages, fmt.Sprintf("%s: %s", jsonName(fe.Field()), fe.Tag()))
	}
	return fmt.Errorf("invalid request: %s", strings.Join(messages, ", "))
}

func jsonName(field string) string {
	switch field {
	case "ID":
		return "id"
	case "ConversationID":
		return "conversationId"
	case "SenderID":
		return "senderId"
	}
	return strings.ToLower(field[:1]) + field[1:]
}
