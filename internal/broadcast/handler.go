package broadcast

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/kopainglay2025/relay/internal/channel"
)

type Handler struct {
	coordinator *Coordinator
}

func NewHandler(c *Coordinator) *Handler {
	return &Handler{coordinator: c}
}

type startRequest struct {
	Channel    string   `json:"channel"`
	Text       string   `json:"text"`
	Recipients []string `json:"recipients,omitempty"`
}

type startResponse struct {
	JobID string `json:"job_id"`
}

// Start handles POST /api/broadcast
func (h *Handler) Start(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		http.Error(w, "text is required", http.StatusBadRequest)
		return
	}
	ch, err := channel.Parse(req.Channel)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	jobID, err := h.coordinator.Start(r.Context(), ch, req.Text, req.Recipients)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(startResponse{JobID: jobID})
}

// Get handles GET /api/broadcast/{id}
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	job, err := h.coordinator.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, ErrJobNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(job)
}
