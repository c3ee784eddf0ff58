package webhook

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	chn "github.com/kopainglay2025/relay/internal/channel"
	"github.com/kopainglay2025/relay/internal/conversation"
)

// Handler is the inbound edge: one webhook endpoint per channel feeding the
// unification engine.
type Handler struct {
	registry    *chn.Registry
	engine      *conversation.Engine
	dispatcher  *conversation.Dispatcher
	welcomeText string
}

func NewHandler(registry *chn.Registry, engine *conversation.Engine, dispatcher *conversation.Dispatcher, welcomeText string) *Handler {
	return &Handler{
		registry:    registry,
		engine:      engine,
		dispatcher:  dispatcher,
		welcomeText: welcomeText,
	}
}

// Receive handles POST /webhook/{channel}.
//
// A store failure answers 500 without acking, so the platform retries per
// its own policy. Unsupported content is acked and dropped: the platform
// delivered it, the relay just chose not to persist it.
func (h *Handler) Receive(w http.ResponseWriter, r *http.Request) {
	connector, ok := h.connectorFromURL(w, r)
	if !ok {
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "read body", http.StatusBadRequest)
		return
	}

	events, err := connector.ParseEvents(body)
	if err != nil {
		// Malformed payload: log, drop, ack. Retrying cannot fix it.
		log.Printf("[Webhook] %s: unparseable payload: %v", connector.Channel(), err)
		w.WriteHeader(http.StatusOK)
		return
	}

	for _, evt := range events {
		result, err := h.engine.Ingest(r.Context(), evt)
		if err != nil {
			if errors.Is(err, conversation.ErrUnsupportedContent) {
				continue
			}
			http.Error(w, "ingest failed", http.StatusInternalServerError)
			return
		}
		h.maybeWelcome(evt, result)
	}
	w.WriteHeader(http.StatusOK)
}

// maybeWelcome answers a first-contact command with the configured welcome
// text. The reply runs through the same dispatch path as an admin send.
func (h *Handler) maybeWelcome(evt chn.InboundEvent, result *conversation.IngestResult) {
	if h.welcomeText == "" || strings.TrimSpace(evt.Text) != "/start" {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if _, err := h.dispatcher.Reply(ctx, result.Chat.ID, chn.Content{Text: h.welcomeText}); err != nil {
			log.Printf("[Webhook] welcome reply to %s failed: %v", result.Chat.ID, err)
		}
	}()
}

// Verify handles GET /webhook/{channel}: the Meta subscription handshake
// for platforms that perform one.
func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	connector, ok := h.connectorFromURL(w, r)
	if !ok {
		return
	}

	verifier, ok := connector.(chn.Verifier)
	if !ok {
		w.WriteHeader(http.StatusOK)
		return
	}

	q := r.URL.Query()
	challenge, ok := verifier.VerifyWebhook(q.Get("hub.mode"), q.Get("hub.verify_token"), q.Get("hub.challenge"))
	if !ok {
		http.Error(w, "verification failed", http.StatusForbidden)
		return
	}
	w.Write([]byte(challenge))
}

func (h *Handler) connectorFromURL(w http.ResponseWriter, r *http.Request) (chn.Connector, bool) {
	ch, err := chn.Parse(chi.URLParam(r, "channel"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return nil, false
	}
	connector, err := h.registry.Get(ch)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return nil, false
	}
	return connector, true
}
