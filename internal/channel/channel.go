package channel

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Channel identifies one external messaging platform.
type Channel string

const (
	Telegram Channel = "telegram"
	Facebook Channel = "facebook"
	Viber    Channel = "viber"
	WhatsApp Channel = "whatsapp"
)

var ErrUnknownChannel = errors.New("unknown channel")

// Parse maps a channel name (e.g. from a webhook URL) to a Channel.
func Parse(name string) (Channel, error) {
	switch Channel(strings.ToLower(name)) {
	case Telegram:
		return Telegram, nil
	case Facebook:
		return Facebook, nil
	case Viber:
		return Viber, nil
	case WhatsApp:
		return WhatsApp, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownChannel, name)
}

// MakeChatID builds the canonical chat key for a (channel, external user)
// pair, e.g. "telegram:123456". This is the only key scheme in the system;
// connectors and store never invent their own.
func MakeChatID(ch Channel, externalUserID string) string {
	return string(ch) + ":" + externalUserID
}

// SplitChatID reverses MakeChatID.
func SplitChatID(chatID string) (Channel, string, error) {
	name, userID, ok := strings.Cut(chatID, ":")
	if !ok || userID == "" {
		return "", "", fmt.Errorf("malformed chat id %q", chatID)
	}
	ch, err := Parse(name)
	if err != nil {
		return "", "", err
	}
	return ch, userID, nil
}

// MediaKind distinguishes the platform send path for attachments.
type MediaKind string

const (
	MediaPhoto    MediaKind = "photo"
	MediaDocument MediaKind = "document"
)

// Media is a reference to externally stored binary content. The relay never
// carries the payload itself, only the platform file id or blob pointer.
type Media struct {
	Kind     MediaKind `json:"kind"`
	Ref      string    `json:"ref"`
	Filename string    `json:"filename,omitempty"`
}

// Content is a normalized outbound message body.
type Content struct {
	Text  string `json:"text,omitempty"`
	Media *Media `json:"media,omitempty"`
}

// Empty reports whether the content carries neither text nor media.
func (c Content) Empty() bool {
	return strings.TrimSpace(c.Text) == "" && c.Media == nil
}

// InboundEvent is a connector-normalized inbound platform event.
type InboundEvent struct {
	Channel        Channel
	ExternalUserID string
	DisplayName    string
	Text           string
	Media          *Media
	Timestamp      time.Time // platform timestamp, zero if the platform gave none
}

// Connector adapts one platform's native protocol to the unified model.
type Connector interface {
	Channel() Channel

	// ParseEvents normalizes a raw webhook body into zero or more inbound
	// events. Platforms batch (Facebook/WhatsApp entry arrays), hence the
	// slice.
	ParseEvents(body []byte) ([]InboundEvent, error)

	// Send delivers content to one external user. Errors are *SendError
	// where the failure could be classified.
	Send(ctx context.Context, externalUserID string, content Content) error
}

// Verifier is implemented by connectors whose platform performs a
// subscription handshake on the webhook URL (Meta's hub.challenge flow).
type Verifier interface {
	VerifyWebhook(mode, token, challenge string) (string, bool)
}
