package notify

import "time"

// Event types pushed to connected admin sessions.
const (
	TypeNewMessage  = "new_message"
	TypeMessageSent = "message_sent"
	TypeChatRead    = "chat_read"
)

// Event is the JSON envelope every admin session receives.
type Event struct {
	Type      string `json:"type"`
	Timestamp string `json:"timestamp"`
	Payload   any    `json:"payload"`
}

func NewEvent(eventType string, payload any) Event {
	return Event{
		Type:      eventType,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   payload,
	}
}

// Publisher is what the engines see of the notification layer. Delivery is
// best effort; a failed publish never affects persistence.
type Publisher interface {
	Publish(event Event)
}

// Fanout multiplexes one publish across several sinks (local hub, AMQP
// mirror).
type Fanout []Publisher

func (f Fanout) Publish(event Event) {
	for _, p := range f {
		p.Publish(event)
	}
}
