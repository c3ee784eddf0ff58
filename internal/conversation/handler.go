package conversation

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/kopainglay2025/relay/internal/channel"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

// Handler exposes the admin-facing REST API for chats.
type Handler struct {
	store      Store
	dispatcher *Dispatcher
}

func NewHandler(store Store, dispatcher *Dispatcher) *Handler {
	return &Handler{store: store, dispatcher: dispatcher}
}

// ListChats handles GET /api/chats?channel=
func (h *Handler) ListChats(w http.ResponseWriter, r *http.Request) {
	var ch channel.Channel
	if name := r.URL.Query().Get("channel"); name != "" {
		parsed, err := channel.Parse(name)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		ch = parsed
	}

	chats, err := h.store.ListChats(r.Context(), ch)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if chats == nil {
		chats = []*Chat{}
	}
	writeJSON(w, http.StatusOK, chats)
}

type historyResponse struct {
	Messages   []*Message `json:"messages"`
	NextCursor string     `json:"next_cursor,omitempty"`
}

// GetHistory handles GET /api/chats/{id}/history?limit=&cursor=
func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	chatID := chi.URLParam(r, "id")

	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	messages, next, err := h.store.ListMessages(r.Context(), chatID, limit, r.URL.Query().Get("cursor"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if messages == nil {
		messages = []*Message{}
	}
	writeJSON(w, http.StatusOK, historyResponse{Messages: messages, NextCursor: next})
}

type replyRequest struct {
	Text  string         `json:"text"`
	Media *channel.Media `json:"media"`
}

type replyError struct {
	Error     string `json:"error"`
	Kind      string `json:"kind,omitempty"`
	Transient bool   `json:"transient,omitempty"`
}

// Reply handles POST /api/chats/{id}/reply
func (h *Handler) Reply(w http.ResponseWriter, r *http.Request) {
	chatID := chi.URLParam(r, "id")

	var req replyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	result, err := h.dispatcher.Reply(r.Context(), chatID, channel.Content{Text: req.Text, Media: req.Media})
	if err != nil {
		var sendErr *channel.SendError
		switch {
		case errors.Is(err, ErrUnknownChat):
			writeJSON(w, http.StatusNotFound, replyError{Error: err.Error()})
		case errors.Is(err, ErrEmptyContent):
			writeJSON(w, http.StatusBadRequest, replyError{Error: err.Error()})
		case errors.As(err, &sendErr):
			writeJSON(w, http.StatusBadGateway, replyError{
				Error:     sendErr.Error(),
				Kind:      string(sendErr.Kind),
				Transient: sendErr.Transient(),
			})
		default:
			writeJSON(w, http.StatusInternalServerError, replyError{Error: err.Error()})
		}
		return
	}

	writeJSON(w, http.StatusOK, EventPayload{Chat: result.Chat, Message: result.Message})
}

// MarkRead handles PUT /api/chats/{id}/read
func (h *Handler) MarkRead(w http.ResponseWriter, r *http.Request) {
	chatID := chi.URLParam(r, "id")

	chat, err := h.dispatcher.MarkRead(r.Context(), chatID)
	if err != nil {
		if errors.Is(err, ErrUnknownChat) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, chat)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
