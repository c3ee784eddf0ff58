package channel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const viberAPIBase = "https://chatapi.viber.com/pa"

// ViberConnector talks to the Viber REST API for public accounts.
type ViberConnector struct {
	authToken  string
	senderName string
	baseURL    string
	client     *http.Client
}

func NewViberConnector(authToken, senderName string) *ViberConnector {
	if senderName == "" {
		senderName = "Admin"
	}
	return &ViberConnector{
		authToken:  authToken,
		senderName: senderName,
		baseURL:    viberAPIBase,
		client:     &http.Client{Timeout: 30 * time.Second},
	}
}

func (v *ViberConnector) Channel() Channel { return Viber }

type viberCallback struct {
	Event     string `json:"event"`
	Timestamp int64  `json:"timestamp"` // milliseconds
	Sender    *struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"sender"`
	Message *struct {
		Type     string `json:"type"`
		Text     string `json:"text"`
		Media    string `json:"media"`
		FileName string `json:"file_name"`
	} `json:"message"`
}

func (v *ViberConnector) ParseEvents(body []byte) ([]InboundEvent, error) {
	var cb viberCallback
	if err := json.Unmarshal(body, &cb); err != nil {
		return nil, fmt.Errorf("viber callback: %w", err)
	}
	// "delivered", "seen", "subscribed" etc. carry no relayable content.
	if cb.Event != "message" || cb.Sender == nil || cb.Message == nil {
		return nil, nil
	}

	evt := InboundEvent{
		Channel:        Viber,
		ExternalUserID: cb.Sender.ID,
		DisplayName:    cb.Sender.Name,
		Text:           cb.Message.Text,
	}
	if cb.Timestamp > 0 {
		evt.Timestamp = time.UnixMilli(cb.Timestamp).UTC()
	}
	switch cb.Message.Type {
	case "picture":
		evt.Media = &Media{Kind: MediaPhoto, Ref: cb.Message.Media}
	case "file":
		evt.Media = &Media{Kind: MediaDocument, Ref: cb.Message.Media, Filename: cb.Message.FileName}
	}
	return []InboundEvent{evt}, nil
}

func (v *ViberConnector) Send(ctx context.Context, externalUserID string, content Content) error {
	payload := map[string]any{
		"receiver":        externalUserID,
		"min_api_version": 1,
		"sender":          map[string]string{"name": v.senderName},
	}
	if content.Media != nil {
		switch content.Media.Kind {
		case MediaPhoto:
			payload["type"] = "picture"
			payload["media"] = content.Media.Ref
			payload["text"] = content.Text
		default:
			payload["type"] = "file"
			payload["media"] = content.Media.Ref
			payload["file_name"] = content.Media.Filename
		}
	} else {
		payload["type"] = "text"
		payload["text"] = content.Text
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.baseURL+"/send_message", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Viber-Auth-Token", v.authToken)

	resp, err := v.client.Do(req)
	if err != nil {
		return classifySendError(Viber, 0, err)
	}
	defer resp.Body.Close()

	// Viber reports failures with HTTP 200 plus a non-zero status field.
	var result struct {
		Status        int    `json:"status"`
		StatusMessage string `json:"status_message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err == nil && result.Status != 0 {
		kind := Network
		switch result.Status {
		case 5: // receiverNotRegistered
			kind = InvalidRecipient
		case 6: // receiverNotSubscribed
			kind = Blocked
		case 12: // tooManyRequests
			kind = RateLimited
		}
		return &SendError{Channel: Viber, Kind: kind, Err: fmt.Errorf("viber status %d: %s", result.Status, result.StatusMessage)}
	}
	return classifySendError(Viber, resp.StatusCode, nil)
}
