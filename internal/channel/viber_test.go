package channel

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestViberParseMessageCallback(t *testing.T) {
	body := []byte(`{
		"event": "message",
		"timestamp": 1717243200000,
		"sender": {"id": "vb-01", "name": "Nina"},
		"message": {"type": "text", "text": "zdravo"}
	}`)

	events, err := NewViberConnector("t", "").ParseEvents(body)
	if err != nil {
		t.Fatalf("ParseEvents: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	evt := events[0]
	if evt.ExternalUserID != "vb-01" || evt.DisplayName != "Nina" || evt.Text != "zdravo" {
		t.Errorf("event = %+v", evt)
	}
}

func TestViberIgnoresDeliveryCallbacks(t *testing.T) {
	for _, event := range []string{"delivered", "seen", "subscribed"} {
		body := []byte(`{"event": "` + event + `"}`)
		events, err := NewViberConnector("t", "").ParseEvents(body)
		if err != nil {
			t.Fatal(err)
		}
		if len(events) != 0 {
			t.Errorf("%s callback produced %d events, want 0", event, len(events))
		}
	}
}

func TestViberSendReportsAPIStatusFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("X-Viber-Auth-Token"); got != "tok" {
			t.Errorf("auth header = %q", got)
		}
		json.NewEncoder(w).Encode(map[string]any{"status": 6, "status_message": "notSubscribed"})
	}))
	defer srv.Close()

	conn := NewViberConnector("tok", "Agent")
	conn.baseURL = srv.URL

	err := conn.Send(context.Background(), "vb-01", Content{Text: "hi"})
	sendErr, ok := err.(*SendError)
	if !ok || sendErr.Kind != Blocked {
		t.Errorf("viber status 6 gave %v, want Blocked SendError", err)
	}
}
