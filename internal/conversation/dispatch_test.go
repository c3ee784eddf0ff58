package conversation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kopainglay2025/relay/internal/channel"
	"github.com/kopainglay2025/relay/internal/notify"
)

func newDispatchFixture(t *testing.T) (*fakeStore, *fakeBus, *fakeConnector, *Dispatcher) {
	t.Helper()
	store := newFakeStore()
	bus := &fakeBus{}
	connector := &fakeConnector{ch: channel.Telegram}
	registry := channel.NewRegistry(connector)
	dispatcher := NewDispatcher(store, registry, bus, 5*time.Second)
	return store, bus, connector, dispatcher
}

func ingestOne(t *testing.T, store *fakeStore, bus *fakeBus, userID, text string) *Chat {
	t.Helper()
	engine := NewEngine(store, bus)
	result, err := engine.Ingest(context.Background(), channel.InboundEvent{
		Channel: channel.Telegram, ExternalUserID: userID, Text: text,
	})
	if err != nil {
		t.Fatal(err)
	}
	return result.Chat
}

func TestReplyResetsUnreadAndAppends(t *testing.T) {
	store, bus, connector, dispatcher := newDispatchFixture(t)
	chat := ingestOne(t, store, bus, "555", "hi")
	if chat.UnreadCount != 1 {
		t.Fatalf("precondition: unread = %d, want 1", chat.UnreadCount)
	}

	result, err := dispatcher.Reply(context.Background(), "telegram:555", channel.Content{Text: "hello"})
	if err != nil {
		t.Fatalf("Reply: %v", err)
	}

	if result.Chat.UnreadCount != 0 {
		t.Errorf("unread = %d, want 0", result.Chat.UnreadCount)
	}
	if result.Message.Sender != SenderAdmin {
		t.Errorf("sender = %q, want admin", result.Message.Sender)
	}
	if len(connector.sends) != 1 || connector.sends[0].ExternalUserID != "555" {
		t.Fatalf("connector sends = %+v, want one send to 555", connector.sends)
	}
	if connector.sends[0].Content.Text != "hello" {
		t.Errorf("sent text = %q, want hello", connector.sends[0].Content.Text)
	}

	// History orders the admin reply after the user's message.
	msgs, _, err := store.ListMessages(context.Background(), "telegram:555", 10, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 2 || msgs[0].Sender != SenderUser || msgs[1].Sender != SenderAdmin {
		t.Errorf("history = %+v, want user then admin", msgs)
	}

	if got := len(bus.byType(notify.TypeMessageSent)); got != 1 {
		t.Errorf("message_sent events = %d, want 1", got)
	}
}

func TestReplyUnknownChatCreatesNothing(t *testing.T) {
	store, _, connector, dispatcher := newDispatchFixture(t)

	_, err := dispatcher.Reply(context.Background(), "telegram:ghost", channel.Content{Text: "boo"})
	if !errors.Is(err, ErrUnknownChat) {
		t.Fatalf("err = %v, want ErrUnknownChat", err)
	}
	if len(store.chats) != 0 || len(connector.sends) != 0 {
		t.Error("failed reply must create no chat and send nothing")
	}
}

func TestReplySendFailureIsNotPersisted(t *testing.T) {
	store, bus, connector, dispatcher := newDispatchFixture(t)
	ingestOne(t, store, bus, "555", "hi")

	connector.sendErr = &channel.SendError{Channel: channel.Telegram, Kind: channel.RateLimited, Err: errors.New("429")}
	_, err := dispatcher.Reply(context.Background(), "telegram:555", channel.Content{Text: "hello"})

	var sendErr *channel.SendError
	if !errors.As(err, &sendErr) {
		t.Fatalf("err = %v, want *SendError", err)
	}
	if !sendErr.Transient() {
		t.Error("rate limit should be transient")
	}

	msgs, _, _ := store.ListMessages(context.Background(), "telegram:555", 10, "")
	if len(msgs) != 1 {
		t.Errorf("history has %d messages, want 1 (failed send never recorded)", len(msgs))
	}
	chat, _ := store.GetChat(context.Background(), "telegram:555")
	if chat.UnreadCount != 1 {
		t.Errorf("unread = %d, want 1 (failed reply must not reset)", chat.UnreadCount)
	}
	if got := len(bus.byType(notify.TypeMessageSent)); got != 0 {
		t.Errorf("message_sent events = %d, want 0", got)
	}
}

func TestReplyEmptyContentRejected(t *testing.T) {
	_, _, _, dispatcher := newDispatchFixture(t)
	_, err := dispatcher.Reply(context.Background(), "telegram:555", channel.Content{})
	if !errors.Is(err, ErrEmptyContent) {
		t.Fatalf("err = %v, want ErrEmptyContent", err)
	}
}

func TestReplyMediaReachesConnector(t *testing.T) {
	store, bus, connector, dispatcher := newDispatchFixture(t)
	ingestOne(t, store, bus, "555", "hi")

	media := &channel.Media{Kind: channel.MediaDocument, Ref: "blob-9", Filename: "report.pdf"}
	result, err := dispatcher.Reply(context.Background(), "telegram:555", channel.Content{Media: media})
	if err != nil {
		t.Fatalf("Reply: %v", err)
	}
	if got := connector.sends[0].Content.Media; got == nil || got.Ref != "blob-9" {
		t.Errorf("connector got media %+v, want blob-9", got)
	}
	if result.Chat.LastMessageText != "[document]" {
		t.Errorf("preview = %q, want [document]", result.Chat.LastMessageText)
	}
}

func TestInboundAfterReplyCountsFromZero(t *testing.T) {
	store, bus, _, dispatcher := newDispatchFixture(t)
	ingestOne(t, store, bus, "555", "first")
	ingestOne(t, store, bus, "555", "second")

	if _, err := dispatcher.Reply(context.Background(), "telegram:555", channel.Content{Text: "ack"}); err != nil {
		t.Fatal(err)
	}
	chat := ingestOne(t, store, bus, "555", "third")
	if chat.UnreadCount != 1 {
		t.Errorf("unread = %d, want 1 (counting restarts after reset)", chat.UnreadCount)
	}
}

func TestMarkReadPublishesChatRead(t *testing.T) {
	store, bus, _, dispatcher := newDispatchFixture(t)
	ingestOne(t, store, bus, "555", "hi")

	chat, err := dispatcher.MarkRead(context.Background(), "telegram:555")
	if err != nil {
		t.Fatal(err)
	}
	if chat.UnreadCount != 0 {
		t.Errorf("unread = %d, want 0", chat.UnreadCount)
	}
	if got := len(bus.byType(notify.TypeChatRead)); got != 1 {
		t.Errorf("chat_read events = %d, want 1", got)
	}

	if _, err := dispatcher.MarkRead(context.Background(), "viber:none"); !errors.Is(err, ErrUnknownChat) {
		t.Errorf("err = %v, want ErrUnknownChat", err)
	}
}
