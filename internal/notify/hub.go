package notify

import (
	"context"
	"encoding/json"
	"log"

	"github.com/redis/go-redis/v9"
)

// redisChannel is the pub/sub channel shared by every relay instance.
const redisChannel = "relay:events"

// Hub fans events out to the admin sessions connected to this process.
// With Redis configured, Publish goes through pub/sub so that every relay
// instance (including this one) forwards the event to its own local
// sessions; without Redis the hub broadcasts directly and the deployment
// is single-instance.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	Register   chan *Client
	Unregister chan *Client
	redis      *redis.Client
}

func NewHub(redisClient *redis.Client) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 64),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		redis:      redisClient,
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.Register:
			h.clients[client] = true

		case client := <-h.Unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.Send)
			}

		case message := <-h.broadcast:
			for client := range h.clients {
				select {
				case client.Send <- message:
				default:
					// Slow consumer; drop the session rather than the hub.
					close(client.Send)
					delete(h.clients, client)
				}
			}
		}
	}
}

// Publish implements Publisher. Failures are logged and swallowed: a
// message that nobody saw live is still recoverable from history.
func (h *Hub) Publish(event Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		log.Printf("[Hub] marshal event: %v", err)
		return
	}

	if h.redis != nil {
		if err := h.redis.Publish(context.Background(), redisChannel, payload).Err(); err != nil {
			log.Printf("[Hub] redis publish failed, falling back to local fan-out: %v", err)
			h.broadcast <- payload
		}
		return
	}
	h.broadcast <- payload
}

// SubscribeToRedis pipes events published by any relay instance into the
// local broadcast loop. No-op when Redis is not configured.
func (h *Hub) SubscribeToRedis(ctx context.Context) {
	if h.redis == nil {
		return
	}
	pubsub := h.redis.Subscribe(ctx, redisChannel)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			h.broadcast <- []byte(msg.Payload)
		}
	}
}
