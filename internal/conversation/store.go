package conversation

import (
	"context"
	"errors"
	"time"

	"github.com/kopainglay2025/relay/internal/channel"
)

// ErrUnknownChat is returned for operations addressing a chat that no
// inbound event has ever established. The engines never create a chat from
// an outbound-only reference.
var ErrUnknownChat = errors.New("unknown chat")

// ChatUpsert carries the merge patch applied to a chat on ingest. An empty
// DisplayName never blanks an existing name.
type ChatUpsert struct {
	ChatID          string
	Channel         channel.Channel
	ExternalUserID  string
	DisplayName     string
	LastMessageText string
	LastMessageTime time.Time
}

// NewMessage is an unpersisted message; the store assigns id and timestamp.
type NewMessage struct {
	Sender Sender
	Text   string
	Media  *channel.Media
}

// Store is the narrow repository interface the engines consume. All
// durable state lives behind it, keeping the engines stateless.
//
// Concurrency contract: IngestUserMessage applies the chat upsert (with a
// store-level atomic unread increment) and the message append in one
// transaction; concurrent ingests for the same chat serialize there, never
// in the engine. AppendAdminMessage likewise couples the append with the
// last-message update and unread reset.
type Store interface {
	IngestUserMessage(ctx context.Context, upsert ChatUpsert, msg NewMessage) (*Chat, *Message, error)
	AppendAdminMessage(ctx context.Context, chatID string, msg NewMessage) (*Chat, *Message, error)
	GetChat(ctx context.Context, chatID string) (*Chat, error)
	ListChats(ctx context.Context, ch channel.Channel) ([]*Chat, error)
	ListMessages(ctx context.Context, chatID string, limit int, cursor string) ([]*Message, string, error)
	ResetUnread(ctx context.Context, chatID string) (*Chat, error)
}
