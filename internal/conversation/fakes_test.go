package conversation

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/kopainglay2025/relay/internal/channel"
	"github.com/kopainglay2025/relay/internal/notify"
)

// fakeStore is an in-memory Store honoring the same atomicity contract as
// the SQL repository: upsert+append and update+append each run under one
// lock acquisition.
type fakeStore struct {
	mu       sync.Mutex
	chats    map[string]*Chat
	messages map[string][]*Message
	nextID   int64
	now      time.Time

	failAppend error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		chats:    make(map[string]*Chat),
		messages: make(map[string][]*Message),
		now:      time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func (s *fakeStore) tick() time.Time {
	s.now = s.now.Add(time.Millisecond)
	return s.now
}

func (s *fakeStore) IngestUserMessage(_ context.Context, up ChatUpsert, msg NewMessage) (*Chat, *Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	chat, ok := s.chats[up.ChatID]
	if !ok {
		chat = &Chat{
			ID:             up.ChatID,
			Channel:        up.Channel,
			ExternalUserID: up.ExternalUserID,
			CreatedAt:      s.tick(),
		}
		s.chats[up.ChatID] = chat
	}
	if up.DisplayName != "" {
		chat.DisplayName = up.DisplayName
	}
	chat.LastMessageText = up.LastMessageText
	chat.LastMessageTime = up.LastMessageTime
	chat.UnreadCount++

	message := s.append(up.ChatID, msg)
	return copyChat(chat), message, nil
}

func (s *fakeStore) AppendAdminMessage(_ context.Context, chatID string, msg NewMessage) (*Chat, *Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failAppend != nil {
		return nil, nil, s.failAppend
	}
	chat, ok := s.chats[chatID]
	if !ok {
		return nil, nil, ErrUnknownChat
	}
	chat.LastMessageText = previewText(msg)
	chat.LastMessageTime = s.tick()
	chat.UnreadCount = 0

	message := s.append(chatID, msg)
	return copyChat(chat), message, nil
}

func (s *fakeStore) append(chatID string, msg NewMessage) *Message {
	s.nextID++
	message := &Message{
		ID:        s.nextID,
		ChatID:    chatID,
		Sender:    msg.Sender,
		Text:      msg.Text,
		Media:     msg.Media,
		Timestamp: s.tick(),
	}
	s.messages[chatID] = append(s.messages[chatID], message)
	return message
}

func (s *fakeStore) GetChat(_ context.Context, chatID string) (*Chat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	chat, ok := s.chats[chatID]
	if !ok {
		return nil, ErrUnknownChat
	}
	return copyChat(chat), nil
}

func (s *fakeStore) ListChats(_ context.Context, ch channel.Channel) ([]*Chat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Chat
	for _, chat := range s.chats {
		if ch == "" || chat.Channel == ch {
			out = append(out, copyChat(chat))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastMessageTime.After(out[j].LastMessageTime) })
	return out, nil
}

func (s *fakeStore) ListMessages(_ context.Context, chatID string, limit int, cursor string) ([]*Message, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	afterID := int64(0)
	if cursor != "" {
		_, id, err := DecodeCursor(cursor)
		if err != nil {
			return nil, "", err
		}
		afterID = id
	}

	var out []*Message
	for _, m := range s.messages[chatID] {
		if m.ID > afterID {
			out = append(out, m)
		}
		if len(out) == limit {
			break
		}
	}
	next := ""
	if len(out) == limit {
		last := out[len(out)-1]
		next = EncodeCursor(last.Timestamp, last.ID)
	}
	return out, next, nil
}

func (s *fakeStore) ResetUnread(_ context.Context, chatID string) (*Chat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	chat, ok := s.chats[chatID]
	if !ok {
		return nil, ErrUnknownChat
	}
	chat.UnreadCount = 0
	return copyChat(chat), nil
}

func copyChat(c *Chat) *Chat {
	out := *c
	return &out
}

// fakeBus records published events.
type fakeBus struct {
	mu     sync.Mutex
	events []notify.Event
}

func (b *fakeBus) Publish(event notify.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, event)
}

func (b *fakeBus) byType(eventType string) []notify.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []notify.Event
	for _, e := range b.events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

// fakeConnector records sends and fails on demand.
type fakeConnector struct {
	mu      sync.Mutex
	ch      channel.Channel
	sends   []fakeSend
	sendErr error
}

type fakeSend struct {
	ExternalUserID string
	Content        channel.Content
}

func (c *fakeConnector) Channel() channel.Channel { return c.ch }

func (c *fakeConnector) ParseEvents([]byte) ([]channel.InboundEvent, error) { return nil, nil }

func (c *fakeConnector) Send(_ context.Context, externalUserID string, content channel.Content) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sendErr != nil {
		return c.sendErr
	}
	c.sends = append(c.sends, fakeSend{ExternalUserID: externalUserID, Content: content})
	return nil
}
