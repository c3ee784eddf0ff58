package notify

import (
	"encoding/json"
	"testing"
	"time"
)

func newTestClient(hub *Hub) *Client {
	return &Client{Hub: hub, Send: make(chan []byte, 8), SessionID: "test"}
}

func receive(t *testing.T, c *Client) Event {
	t.Helper()
	select {
	case raw := <-c.Send:
		var evt Event
		if err := json.Unmarshal(raw, &evt); err != nil {
			t.Fatalf("unmarshal event: %v", err)
		}
		return evt
	case <-time.After(time.Second):
		t.Fatal("no event received")
		return Event{}
	}
}

func TestHubFansOutToAllSessions(t *testing.T) {
	hub := NewHub(nil)
	go hub.Run()

	a := newTestClient(hub)
	b := newTestClient(hub)
	hub.Register <- a
	hub.Register <- b

	hub.Publish(NewEvent(TypeNewMessage, map[string]string{"chat_id": "telegram:1"}))

	for _, c := range []*Client{a, b} {
		evt := receive(t, c)
		if evt.Type != TypeNewMessage {
			t.Errorf("event type = %q, want new_message", evt.Type)
		}
		if _, err := time.Parse(time.RFC3339, evt.Timestamp); err != nil {
			t.Errorf("timestamp %q is not RFC3339: %v", evt.Timestamp, err)
		}
	}
}

func TestHubUnregisterStopsDelivery(t *testing.T) {
	hub := NewHub(nil)
	go hub.Run()

	c := newTestClient(hub)
	hub.Register <- c
	hub.Unregister <- c

	// The hub closes Send on unregister.
	select {
	case _, ok := <-c.Send:
		if ok {
			t.Error("expected closed channel, got event")
		}
	case <-time.After(time.Second):
		t.Fatal("Send channel not closed")
	}
}

func TestHubDropsSlowConsumer(t *testing.T) {
	hub := NewHub(nil)
	go hub.Run()

	slow := &Client{Hub: hub, Send: make(chan []byte)} // no buffer, never read
	ok := newTestClient(hub)
	hub.Register <- slow
	hub.Register <- ok

	hub.Publish(NewEvent(TypeChatRead, nil))
	hub.Publish(NewEvent(TypeChatRead, nil))

	// The healthy session keeps receiving.
	receive(t, ok)
	receive(t, ok)
}
