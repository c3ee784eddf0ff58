package notify

import (
	"log"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/kopainglay2025/relay/internal/middleware"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // The admin console may be served from a different origin.
	},
}

type Handler struct {
	hub *Hub
}

func NewHandler(hub *Hub) *Handler {
	return &Handler{hub: hub}
}

// ServeWS upgrades an authenticated admin request to a persistent event
// stream. A session that connects mid-stream reconciles via the REST
// history endpoints; missed events are not replayed.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	adminID, ok := r.Context().Value(middleware.AdminKey).(int)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println(err)
		return
	}

	client := &Client{
		Hub:       h.hub,
		Conn:      conn,
		Send:      make(chan []byte, 256),
		SessionID: uuid.NewString(),
		AdminID:   adminID,
	}
	client.Hub.Register <- client

	go client.WritePump()
	go client.ReadPump()
}
