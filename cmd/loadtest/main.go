// Command loadtest hammers a running relay with concurrent webhook bursts
// and admin replies to shake out per-chat serialization bugs (lost unread
// increments, interleaved history). Point it at a dev instance with a
// telegram connector configured; the bot token is never used because sends
// will fail fast, which is fine for the write-path numbers we care about.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var (
	baseURL  = flag.String("base", "http://localhost:8080", "relay base URL")
	wsURL    = flag.String("ws", "ws://localhost:8080/ws", "relay websocket URL")
	users    = flag.Int("users", 200, "simulated external users")
	messages = flag.Int("messages", 10, "inbound messages per user")
	username = flag.String("admin", "admin", "admin username")
	password = flag.String("password", "", "admin password")
)

type loginResponse struct {
	Token string `json:"access_token"`
}

func main() {
	flag.Parse()
	log.Printf("🔥 STARTING LOAD TEST: %d users × %d messages", *users, *messages)

	token := login()
	go watchEvents(token)

	start := time.Now()
	var wg sync.WaitGroup
	for i := 0; i < *users; i++ {
		wg.Add(1)
		go func(userID int) {
			defer wg.Done()
			spamWebhook(userID)
		}(i)
	}
	wg.Wait()

	log.Printf("✅ LOAD TEST COMPLETE: %d events in %s", *users**messages, time.Since(start))
	verifyUnreadCounts(token)
}

func login() string {
	body, _ := json.Marshal(map[string]string{"username": *username, "password": *password})
	resp, err := http.Post(*baseURL+"/login", "application/json", bytes.NewReader(body))
	if err != nil {
		log.Fatalf("login: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		log.Fatalf("login: status %d", resp.StatusCode)
	}
	var lr loginResponse
	json.NewDecoder(resp.Body).Decode(&lr)
	return lr.Token
}

// watchEvents counts live pushes so a stalled hub shows up immediately.
func watchEvents(token string) {
	conn, _, err := websocket.DefaultDialer.Dial(*wsURL+"?token="+token, nil)
	if err != nil {
		log.Printf("⚠️ websocket dial failed: %v", err)
		return
	}
	defer conn.Close()

	count := 0
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			log.Printf("websocket closed after %d events", count)
			return
		}
		count++
		if count%500 == 0 {
			log.Printf("… %d live events received", count)
		}
	}
}

// spamWebhook posts Bot API updates for one fake telegram user.
func spamWebhook(userID int) {
	chatID := 100000 + userID
	for i := 0; i < *messages; i++ {
		update := map[string]any{
			"message": map[string]any{
				"chat": map[string]any{
					"id":         chatID,
					"first_name": fmt.Sprintf("loadtest-%d", userID),
				},
				"date": time.Now().Unix(),
				"text": fmt.Sprintf("msg %d from user %d", i, userID),
			},
		}
		body, _ := json.Marshal(update)
		resp, err := http.Post(*baseURL+"/webhook/telegram", "application/json", bytes.NewReader(body))
		if err != nil {
			log.Printf("user %d: webhook post failed: %v", userID, err)
			return
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			log.Printf("user %d: webhook status %d", userID, resp.StatusCode)
		}
	}
}

// verifyUnreadCounts checks that no increment was lost under concurrency.
func verifyUnreadCounts(token string) {
	req, _ := http.NewRequest(http.MethodGet, *baseURL+"/api/chats?channel=telegram", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Fatalf("list chats: %v", err)
	}
	defer resp.Body.Close()

	var chats []struct {
		ID          string `json:"id"`
		UnreadCount int    `json:"unread_count"`
	}
	json.NewDecoder(resp.Body).Decode(&chats)

	bad := 0
	for _, c := range chats {
		if c.UnreadCount < *messages {
			log.Printf("❌ %s: unread %d < %d (lost increment)", c.ID, c.UnreadCount, *messages)
			bad++
		}
	}
	if bad == 0 {
		log.Printf("✅ unread counts consistent across %d chats", len(chats))
	}
}
