package conversation

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/kopainglay2025/relay/internal/channel"
	"github.com/kopainglay2025/relay/internal/notify"
)

// ErrEmptyContent rejects replies that carry neither text nor media.
var ErrEmptyContent = errors.New("empty content")

// Dispatcher routes admin replies back to the originating platform. A send
// is attempted exactly once per call; retry decisions belong to the
// console, never to the engine.
type Dispatcher struct {
	store       Store
	registry    *channel.Registry
	bus         notify.Publisher
	sendTimeout time.Duration
}

func NewDispatcher(store Store, registry *channel.Registry, bus notify.Publisher, sendTimeout time.Duration) *Dispatcher {
	if sendTimeout <= 0 {
		sendTimeout = 15 * time.Second
	}
	return &Dispatcher{store: store, registry: registry, bus: bus, sendTimeout: sendTimeout}
}

type DispatchResult struct {
	Chat    *Chat
	Message *Message
}

// Reply sends content to the external user behind chatID. The message is
// persisted only after the connector accepted it; a failed or timed-out
// send leaves no trace in history.
func (d *Dispatcher) Reply(ctx context.Context, chatID string, content channel.Content) (*DispatchResult, error) {
	if content.Empty() {
		return nil, ErrEmptyContent
	}

	chat, err := d.store.GetChat(ctx, chatID)
	if err != nil {
		return nil, err
	}

	connector, err := d.registry.Get(chat.Channel)
	if err != nil {
		return nil, err
	}

	sendCtx, cancel := context.WithTimeout(ctx, d.sendTimeout)
	defer cancel()
	if err := connector.Send(sendCtx, chat.ExternalUserID, content); err != nil {
		log.Printf("[Dispatch] send to %s failed: %v", chatID, err)
		return nil, err
	}

	chat, message, err := d.store.AppendAdminMessage(ctx, chatID, NewMessage{
		Sender: SenderAdmin,
		Text:   content.Text,
		Media:  content.Media,
	})
	if err != nil {
		// The user received the message but the record is gone; surface
		// loudly so the operator reconciles.
		return nil, fmt.Errorf("sent but not recorded: %w", err)
	}

	d.bus.Publish(notify.NewEvent(notify.TypeMessageSent, EventPayload{Chat: chat, Message: message}))
	return &DispatchResult{Chat: chat, Message: message}, nil
}

// MarkRead resets a chat's unread counter and notifies other sessions.
func (d *Dispatcher) MarkRead(ctx context.Context, chatID string) (*Chat, error) {
	chat, err := d.store.ResetUnread(ctx, chatID)
	if err != nil {
		return nil, err
	}
	d.bus.Publish(notify.NewEvent(notify.TypeChatRead, ChatPayload{Chat: chat}))
	return chat, nil
}
