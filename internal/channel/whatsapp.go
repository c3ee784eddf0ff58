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

// WhatsAppConnector talks to the WhatsApp Cloud API (Graph).
type WhatsAppConnector struct {
	accessToken   string
	phoneNumberID string
	verifyToken   string
	baseURL       string
	client        *http.Client
}

func NewWhatsAppConnector(accessToken, phoneNumberID, verifyToken string) *WhatsAppConnector {
	return &WhatsAppConnector{
		accessToken:   accessToken,
		phoneNumberID: phoneNumberID,
		verifyToken:   verifyToken,
		baseURL:       graphAPIBase,
		client:        &http.Client{Timeout: 30 * time.Second},
	}
}

func (w *WhatsAppConnector) Channel() Channel { return WhatsApp }

type whatsAppWebhook struct {
	Object string `json:"object"`
	Entry  []struct {
		Changes []struct {
			Field string `json:"field"`
			Value struct {
				Contacts []struct {
					WaID    string `json:"wa_id"`
					Profile struct {
						Name string `json:"name"`
					} `json:"profile"`
				} `json:"contacts"`
				Messages []struct {
					From      string `json:"from"`
					Timestamp string `json:"timestamp"` // unix seconds as string
					Type      string `json:"type"`
					Text      *struct {
						Body string `json:"body"`
					} `json:"text"`
					Image *struct {
						ID      string `json:"id"`
						Caption string `json:"caption"`
					} `json:"image"`
					Document *struct {
						ID       string `json:"id"`
						Caption  string `json:"caption"`
						Filename string `json:"filename"`
					} `json:"document"`
				} `json:"messages"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

func (w *WhatsAppConnector) ParseEvents(body []byte) ([]InboundEvent, error) {
	var hook whatsAppWebhook
	if err := json.Unmarshal(body, &hook); err != nil {
		return nil, fmt.Errorf("whatsapp webhook: %w", err)
	}

	var events []InboundEvent
	for _, entry := range hook.Entry {
		for _, change := range entry.Changes {
			if change.Field != "messages" {
				continue
			}
			names := make(map[string]string, len(change.Value.Contacts))
			for _, c := range change.Value.Contacts {
				names[c.WaID] = c.Profile.Name
			}
			for _, m := range change.Value.Messages {
				evt := InboundEvent{
					Channel:        WhatsApp,
					ExternalUserID: m.From,
					DisplayName:    names[m.From],
				}
				if secs, err := strconv.ParseInt(m.Timestamp, 10, 64); err == nil && secs > 0 {
					evt.Timestamp = time.Unix(secs, 0).UTC()
				}
				switch {
				case m.Text != nil:
					evt.Text = m.Text.Body
				case m.Image != nil:
					evt.Text = m.Image.Caption
					evt.Media = &Media{Kind: MediaPhoto, Ref: m.Image.ID}
				case m.Document != nil:
					evt.Text = m.Document.Caption
					evt.Media = &Media{Kind: MediaDocument, Ref: m.Document.ID, Filename: m.Document.Filename}
				}
				events = append(events, evt)
			}
		}
	}
	return events, nil
}

// VerifyWebhook implements Meta's subscription handshake.
func (w *WhatsAppConnector) VerifyWebhook(mode, token, challenge string) (string, bool) {
	if mode == "subscribe" && token == w.verifyToken && w.verifyToken != "" {
		return challenge, true
	}
	return "", false
}

func (w *WhatsAppConnector) Send(ctx context.Context, externalUserID string, content Content) error {
	payload := map[string]any{
		"messaging_product": "whatsapp",
		"to":                externalUserID,
	}
	if content.Media != nil {
		switch content.Media.Kind {
		case MediaPhoto:
			payload["type"] = "image"
			img := map[string]any{"id": content.Media.Ref}
			if content.Text != "" {
				img["caption"] = content.Text
			}
			payload["image"] = img
		default:
			payload["type"] = "document"
			doc := map[string]any{"id": content.Media.Ref}
			if content.Media.Filename != "" {
				doc["filename"] = content.Media.Filename
			}
			payload["document"] = doc
		}
	} else {
		payload["type"] = "text"
		payload["text"] = map[string]any{"body": content.Text}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	url := fmt.Sprintf("%s/%s/messages", w.baseURL, w.phoneNumberID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+w.accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return classifySendError(WhatsApp, 0, err)
	}
	defer resp.Body.Close()
	return classifySendError(WhatsApp, resp.StatusCode, nil)
}
