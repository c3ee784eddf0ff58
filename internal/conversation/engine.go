package conversation

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/kopainglay2025/relay/internal/channel"
	"github.com/kopainglay2025/relay/internal/notify"
)

// ErrUnsupportedContent marks inbound events with neither text nor media
// (stickers, reactions). They are dropped by policy, not failed: the
// platform delivered them and must not retry.
var ErrUnsupportedContent = errors.New("unsupported content")

// EventPayload is the payload shape for new_message and message_sent
// notifications.
type EventPayload struct {
	Chat    *Chat    `json:"chat"`
	Message *Message `json:"message"`
}

// ChatPayload is the payload shape for chat_read notifications.
type ChatPayload struct {
	Chat *Chat `json:"chat"`
}

// Engine is the unification engine: it maps connector-normalized inbound
// events into the canonical chat/message model. It holds no mutable state
// of its own.
type Engine struct {
	store Store
	bus   notify.Publisher
}

func NewEngine(store Store, bus notify.Publisher) *Engine {
	return &Engine{store: store, bus: bus}
}

type IngestResult struct {
	Chat    *Chat
	Message *Message
}

// Ingest persists one inbound event and notifies connected admins. The
// publish is best effort: once the transaction commits the message is
// durable regardless of who was watching.
func (e *Engine) Ingest(ctx context.Context, evt channel.InboundEvent) (*IngestResult, error) {
	text := strings.TrimSpace(evt.Text)
	if text == "" && evt.Media == nil {
		log.Printf("[Ingest] dropping contentless event from %s user %s", evt.Channel, evt.ExternalUserID)
		return nil, ErrUnsupportedContent
	}

	chatID := channel.MakeChatID(evt.Channel, evt.ExternalUserID)

	lastTime := evt.Timestamp
	if lastTime.IsZero() {
		lastTime = time.Now().UTC()
	}
	upsert := ChatUpsert{
		ChatID:          chatID,
		Channel:         evt.Channel,
		ExternalUserID:  evt.ExternalUserID,
		DisplayName:     strings.TrimSpace(evt.DisplayName),
		LastMessageText: previewText(NewMessage{Text: text, Media: evt.Media}),
		LastMessageTime: lastTime,
	}

	chat, message, err := e.store.IngestUserMessage(ctx, upsert, NewMessage{
		Sender: SenderUser,
		Text:   text,
		Media:  evt.Media,
	})
	if err != nil {
		return nil, fmt.Errorf("persist inbound message: %w", err)
	}

	e.bus.Publish(notify.NewEvent(notify.TypeNewMessage, EventPayload{Chat: chat, Message: message}))
	return &IngestResult{Chat: chat, Message: message}, nil
}
