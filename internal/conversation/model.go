package conversation

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kopainglay2025/relay/internal/channel"
)

// Chat is one conversation thread between an external end-user on one
// channel and the admin pool. The last-message fields are denormalized for
// list ordering.
type Chat struct {
	ID              string          `json:"id"`
	Channel         channel.Channel `json:"channel"`
	ExternalUserID  string          `json:"external_user_id"`
	DisplayName     string          `json:"display_name"`
	LastMessageText string          `json:"last_message_text"`
	LastMessageTime time.Time       `json:"last_message_time"`
	UnreadCount     int             `json:"unread_count"`
	CreatedAt       time.Time       `json:"created_at"`
}

type Sender string

const (
	SenderUser  Sender = "user"
	SenderAdmin Sender = "admin"
)

// Message is one entry in a chat's append-only log. Media is a reference
// only; the relay never stores payloads inline.
type Message struct {
	ID        int64          `json:"id"`
	ChatID    string         `json:"chat_id"`
	Sender    Sender         `json:"sender"`
	Text      string         `json:"text,omitempty"`
	Media     *channel.Media `json:"media,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// EncodeCursor builds an opaque history cursor from the (timestamp, id)
// position of the last returned message. Cursor pagination keeps page cost
// flat regardless of history depth.
func EncodeCursor(t time.Time, id int64) string {
	raw := fmt.Sprintf("%d|%d", t.UnixNano(), id)
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

func DecodeCursor(cursor string) (time.Time, int64, error) {
	raw, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return time.Time{}, 0, fmt.Errorf("bad cursor: %w", err)
	}
	nanosStr, idStr, ok := strings.Cut(string(raw), "|")
	if !ok {
		return time.Time{}, 0, fmt.Errorf("bad cursor %q", cursor)
	}
	nanos, err := strconv.ParseInt(nanosStr, 10, 64)
	if err != nil {
		return time.Time{}, 0, fmt.Errorf("bad cursor %q", cursor)
	}
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		return time.Time{}, 0, fmt.Errorf("bad cursor %q", cursor)
	}
	return time.Unix(0, nanos).UTC(), id, nil
}
