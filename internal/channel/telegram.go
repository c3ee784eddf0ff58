package channel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

const telegramAPIBase = "https://api.telegram.org"

// TelegramConnector talks to the Telegram Bot API over HTTPS.
type TelegramConnector struct {
	token   string
	baseURL string
	client  *http.Client
}

func NewTelegramConnector(token string) *TelegramConnector {
	return &TelegramConnector{
		token:   token,
		baseURL: telegramAPIBase,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (t *TelegramConnector) Channel() Channel { return Telegram }

// telegramUpdate mirrors the subset of the Bot API Update object the relay
// cares about.
type telegramUpdate struct {
	Message *struct {
		From *struct {
			IsBot     bool   `json:"is_bot"`
			Username  string `json:"username"`
			FirstName string `json:"first_name"`
		} `json:"from"`
		Chat struct {
			ID        int64  `json:"id"`
			Username  string `json:"username"`
			FirstName string `json:"first_name"`
		} `json:"chat"`
		Date    int64  `json:"date"`
		Text    string `json:"text"`
		Caption string `json:"caption"`
		Photo   []struct {
			FileID string `json:"file_id"`
		} `json:"photo"`
		Document *struct {
			FileID   string `json:"file_id"`
			FileName string `json:"file_name"`
		} `json:"document"`
	} `json:"message"`
}

func (t *TelegramConnector) ParseEvents(body []byte) ([]InboundEvent, error) {
	var upd telegramUpdate
	if err := json.Unmarshal(body, &upd); err != nil {
		return nil, fmt.Errorf("telegram update: %w", err)
	}
	msg := upd.Message
	if msg == nil {
		// Edited messages, callbacks etc. are not relayed.
		return nil, nil
	}
	if msg.From != nil && msg.From.IsBot {
		// The bot's own outbound traffic loops back on some setups; never
		// re-ingest it as a user message.
		return nil, nil
	}

	evt := InboundEvent{
		Channel:        Telegram,
		ExternalUserID: strconv.FormatInt(msg.Chat.ID, 10),
		Text:           msg.Text,
	}
	if evt.Text == "" {
		evt.Text = msg.Caption
	}
	if msg.Chat.Username != "" {
		evt.DisplayName = msg.Chat.Username
	} else {
		evt.DisplayName = msg.Chat.FirstName
	}
	if msg.Date > 0 {
		evt.Timestamp = time.Unix(msg.Date, 0).UTC()
	}
	if len(msg.Photo) > 0 {
		// Telegram sends several resolutions; the last entry is the largest.
		evt.Media = &Media{Kind: MediaPhoto, Ref: msg.Photo[len(msg.Photo)-1].FileID}
	} else if msg.Document != nil {
		evt.Media = &Media{Kind: MediaDocument, Ref: msg.Document.FileID, Filename: msg.Document.FileName}
	}
	return []InboundEvent{evt}, nil
}

func (t *TelegramConnector) Send(ctx context.Context, externalUserID string, content Content) error {
	method := "sendMessage"
	payload := map[string]any{"chat_id": externalUserID}

	if content.Media != nil {
		switch content.Media.Kind {
		case MediaPhoto:
			method = "sendPhoto"
			payload["photo"] = content.Media.Ref
		default:
			method = "sendDocument"
			payload["document"] = content.Media.Ref
		}
		if content.Text != "" {
			payload["caption"] = content.Text
		}
	} else {
		payload["text"] = content.Text
	}

	url := fmt.Sprintf("%s/bot%s/%s", t.baseURL, t.token, method)
	return t.post(ctx, url, payload)
}

func (t *TelegramConnector) post(ctx context.Context, url string, payload map[string]any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return classifySendError(Telegram, 0, err)
	}
	defer resp.Body.Close()
	return classifySendError(Telegram, resp.StatusCode, nil)
}
