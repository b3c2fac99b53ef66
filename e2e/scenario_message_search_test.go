//go:build e2e

package e2e

import (
	"context"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

type message struct {
	ID             string         `json:"id"`
	ConversationID string         `json:"conversationId"`
	SenderID       string         `json:"senderId"`
	Content        string         `json:"content"`
	Timestamp      time.Time      `json:"timestamp"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

type testMessageSearchSuite struct {
	BaseSuite
}

func TestMessageSearchSuite(t *testing.T) {
	suite.Run(t, &testMessageSearchSuite{})
}

func (s *testMessageSearchSuite) TestSubmitThenSearchFlow() {
	conversationID := "e2e-" + uuid.NewString()
	messageID := uuid.NewString()
	sentAt := time.Now().UTC().Truncate(time.Millisecond)

	// --- STEP 0: DEPENDENCIES ARE SERVING ---
	s.Run("Step 0: Health reports serving", func() {
		s.WithHealth("Overall health check", func(ctx context.Context, client healthpb.HealthClient) {
			s.Require().Eventually(func() bool {
				resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{})
				return err == nil && resp.Status == healthpb.HealthCheckResponse_SERVING
			}, 8*time.Second, 250*time.Millisecond)
		})
	})

	// --- STEP 1: WRITE PATH ---
	s.Run("Step 1: Submit a message with markup", func() {
		var stored message
		response := s.Call("Submit message", http.MethodPost, "/api/messages", map[string]any{
			"id":             messageID,
			"conversationId": conversationID,
			"senderId":       "alice",
			"content":        "<b>Quarterly</b> report is ready<script>alert(1)</script>",
			"timestamp":      sentAt.Format(time.RFC3339Nano),
			"metadata":       map[string]any{"client": "e2e"},
		}, &stored)
		s.Require().Contains([]int{http.StatusCreated, http.StatusAccepted}, response.StatusCode)
		s.Require().Equal(messageID, stored.ID)
	})

	// --- STEP 2: DUPLICATE ---
	s.Run("Step 2: Same id is rejected", func() {
		response := s.Call("Submit duplicate", http.MethodPost, "/api/messages", map[string]any{
			"id":             messageID,
			"conversationId": conversationID,
			"senderId":       "alice",
			"content":        "again",
			"timestamp":      sentAt.Format(time.RFC3339Nano),
		}, nil)
		s.Require().Equal(http.StatusConflict, response.StatusCode)
	})

	// --- STEP 3: READ PATH ---
	s.Run("Step 3: Conversation is readable right away", func() {
		var messages []message
		response := s.Call("Read conversation", http.MethodGet, "/api/messages/conversations/"+url.PathEscape(conversationID), nil, &messages)
		s.Require().Equal(http.StatusOK, response.StatusCode)
		s.Require().Len(messages, 1)
		s.Require().Contains(messages[0].Content, "<script>")
	})

	// --- STEP 4: SEARCH PATH ---
	s.Run("Step 4: Message becomes searchable and sanitized", func() {
		path := "/api/messages/conversations/" + url.PathEscape(conversationID) + "/search?q=quarterly"
		var hits []message
		s.Require().Eventually(func() bool {
			hits = nil
			response := s.Call("Search conversation", http.MethodGet, path, nil, &hits)
			return response.StatusCode == http.StatusOK && len(hits) == 1
		}, s.indexWait, 500*time.Millisecond)
		s.Require().Equal(messageID, hits[0].ID)
		s.Require().Equal("Quarterly report is ready", hits[0].Content)
	})
}
