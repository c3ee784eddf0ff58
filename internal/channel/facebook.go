package channel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const graphAPIBase = "https://graph.facebook.com/v20.0"

// FacebookConnector talks to the Messenger Send API and parses page
// messaging webhooks.
type FacebookConnector struct {
	pageToken   string
	verifyToken string
	baseURL     string
	client      *http.Client
}

func NewFacebookConnector(pageToken, verifyToken string) *FacebookConnector {
	return &FacebookConnector{
		pageToken:   pageToken,
		verifyToken: verifyToken,
		baseURL:     graphAPIBase,
		client:      &http.Client{Timeout: 30 * time.Second},
	}
}

func (f *FacebookConnector) Channel() Channel { return Facebook }

type facebookWebhook struct {
	Object string `json:"object"`
	Entry  []struct {
		Messaging []struct {
			Sender struct {
				ID string `json:"id"`
			} `json:"sender"`
			Timestamp int64 `json:"timestamp"` // milliseconds
			Message   *struct {
				Text        string `json:"text"`
				Attachments []struct {
					Type    string `json:"type"`
					Payload struct {
						URL string `json:"url"`
					} `json:"payload"`
				} `json:"attachments"`
			} `json:"message"`
		} `json:"messaging"`
	} `json:"entry"`
}

func (f *FacebookConnector) ParseEvents(body []byte) ([]InboundEvent, error) {
	var hook facebookWebhook
	if err := json.Unmarshal(body, &hook); err != nil {
		return nil, fmt.Errorf("facebook webhook: %w", err)
	}
	if hook.Object != "page" {
		return nil, nil
	}

	var events []InboundEvent
	for _, entry := range hook.Entry {
		for _, m := range entry.Messaging {
			if m.Message == nil || m.Sender.ID == "" {
				continue // delivery receipts, postbacks
			}
			evt := InboundEvent{
				Channel:        Facebook,
				ExternalUserID: m.Sender.ID,
				Text:           m.Message.Text,
			}
			if m.Timestamp > 0 {
				evt.Timestamp = time.UnixMilli(m.Timestamp).UTC()
			}
			for _, att := range m.Message.Attachments {
				kind := MediaDocument
				if att.Type == "image" {
					kind = MediaPhoto
				}
				evt.Media = &Media{Kind: kind, Ref: att.Payload.URL}
				break
			}
			events = append(events, evt)
		}
	}
	return events, nil
}

// VerifyWebhook implements Meta's subscription handshake.
func (f *FacebookConnector) VerifyWebhook(mode, token, challenge string) (string, bool) {
	if mode == "subscribe" && token == f.verifyToken && f.verifyToken != "" {
		return challenge, true
	}
	return "", false
}

func (f *FacebookConnector) Send(ctx context.Context, externalUserID string, content Content) error {
	message := map[string]any{}
	if content.Media != nil {
		attType := "file"
		if content.Media.Kind == MediaPhoto {
			attType = "image"
		}
		message["attachment"] = map[string]any{
			"type":    attType,
			"payload": map[string]any{"url": content.Media.Ref},
		}
	} else {
		message["text"] = content.Text
	}

	payload := map[string]any{
		"recipient":      map[string]string{"id": externalUserID},
		"messaging_type": "RESPONSE",
		"message":        message,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/me/messages?access_token=%s", f.baseURL, f.pageToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return classifySendError(Facebook, 0, err)
	}
	defer resp.Body.Close()
	return classifySendError(Facebook, resp.StatusCode, nil)
}
