// Package handler exposes the write, read and search paths over HTTP.
package handler

import (
	"chat-search/domain"
	"chat-search/domain/search"
	apperrors "chat-search/errors"
	"chat-search/observability"
	"chat-search/services"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// PublishStateHeader tells a client whether the event of its message is still pending.
const PublishStateHeader = "X-Publish-State"

type MetricsProvider func() observability.MetricsSnapshot

type Handler struct {
	log          *slog.Logger
	messages     services.IMessageService
	search       services.ISearchService
	metrics      MetricsProvider
	maxPageLimit int
}

func New(log *slog.Logger, messages services.IMessageService, search services.ISearchService,
	metrics MetricsProvider, maxPageLimit int) *Handler {
	return &Handler{log: log, messages: messages, search: search, metrics: metrics, maxPageLimit: maxPageLimit}
}

// NewRouter mounts every route under /api.
func (h *Handler) NewRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(h.logRequests)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(api chi.Router) {
		api.Post("/messages", h.handleSubmit)
		api.Get("/messages/conversations/{conversationId}", h.handleFindByConversation)
		api.Get("/messages/conversations/{conversationId}/search", h.handleSearch)
		api.Get("/metrics", h.handleMetrics)
	})
	return r
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var payload SubmitMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	cmd, err := payload.ToCommand()
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	stored, err := h.messages.Submit(r.Context(), cmd)
	switch {
	case errors.Is(err, apperrors.ErrDuplicateMessage):
		respondError(w, http.StatusConflict, fmt.Sprintf("message %s already exists", cmd.ID))
		return
	case err != nil:
		respondError(w, http.StatusServiceUnavailable, "message could not be stored")
		return
	}

	if stored.Pending() {
		w.Header().Set(PublishStateHeader, "pending")
		respondJSON(w, http.StatusAccepted, stored.Message)
		return
	}
	w.Header().Set(PublishStateHeader, "published")
	respondJSON(w, http.StatusCreated, stored.Message)
}

func (h *Handler) handleFindByConversation(w http.ResponseWriter, r *http.Request) {
	page, err := h.page(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	messages, err := h.messages.FindByConversation(r.Context(), domain.FindMessagesCommand{
		ConversationID: chi.URLParam(r, "conversationId"),
		Page:           page,
	})
	if err != nil {
		respondError(w, http.StatusServiceUnavailable, "messages could not be read")
		return
	}
	respondJSON(w, http.StatusOK, nonNil(messages))
}

func (h *Handler) handleSearch(w http.ResponseWriter, r *http.Request) {
	terms := r.URL.Query().Get("q")
	if terms == "" {
		respondError(w, http.StatusBadRequest, "q query parameter is required")
		return
	}
	page, err := h.page(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	results := h.search.Search(r.Context(), search.NewQuery(chi.URLParam(r, "conversationId"), terms, page))
	respondJSON(w, http.StatusOK, nonNil(results))
}

func (h *Handler) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, h.metrics())
}

// page reads page and limit, absent values fall back to the defaults
// and out of range values are clamped.
func (h *Handler) page(r *http.Request) (domain.Page, error) {
	number, err := intParam(r, "page", domain.DefaultPage)
	if err != nil {
		return domain.Page{}, err
	}
	limit, err := intParam(r, "limit", domain.DefaultLimit)
	if err != nil {
		return domain.Page{}, err
	}
	return domain.NewPage(number, limit, h.maxPageLimit), nil
}

func intParam(r *http.Request, name string, fallback int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", name, raw)
	}
	return v, nil
}

func (h *Handler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		h.log.Debug("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()))
	})
}

func nonNil(messages []domain.Message) []domain.Message {
	if messages == nil {
		return []domain.Message{}
	}
	return messages
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
