package channel

import "testing"

func TestWhatsAppParseMessagesChange(t *testing.T) {
	body := []byte(`{
		"object": "whatsapp_business_account",
		"entry": [{
			"changes": [{
				"field": "messages",
				"value": {
					"contacts": [{"wa_id": "491700000000", "profile": {"name": "Mia"}}],
					"messages": [
						{"from": "491700000000", "timestamp": "1717243200", "type": "text", "text": {"body": "hallo"}},
						{"from": "491700000000", "timestamp": "1717243201", "type": "document",
						 "document": {"id": "media-7", "filename": "invoice.pdf", "caption": "here"}}
					]
				}
			}]
		}]
	}`)

	events, err := NewWhatsAppConnector("t", "pn", "v").ParseEvents(body)
	if err != nil {
		t.Fatalf("ParseEvents: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}

	if events[0].Text != "hallo" || events[0].DisplayName != "Mia" || events[0].ExternalUserID != "491700000000" {
		t.Errorf("text event = %+v", events[0])
	}
	doc := events[1]
	if doc.Media == nil || doc.Media.Kind != MediaDocument || doc.Media.Ref != "media-7" || doc.Media.Filename != "invoice.pdf" {
		t.Errorf("document media = %+v", doc.Media)
	}
	if doc.Text != "here" {
		t.Errorf("caption %q not mapped", doc.Text)
	}
}

func TestWhatsAppIgnoresStatusChanges(t *testing.T) {
	body := []byte(`{"object": "whatsapp_business_account", "entry": [{"changes": [{"field": "statuses", "value": {}}]}]}`)
	events, err := NewWhatsAppConnector("t", "pn", "v").ParseEvents(body)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 0 {
		t.Errorf("status change produced %d events, want 0", len(events))
	}
}

func TestWhatsAppVerifyWebhook(t *testing.T) {
	conn := NewWhatsAppConnector("t", "pn", "expected")

	challenge, ok := conn.VerifyWebhook("subscribe", "expected", "12345")
	if !ok || challenge != "12345" {
		t.Errorf("valid handshake rejected: (%q, %v)", challenge, ok)
	}
	if _, ok := conn.VerifyWebhook("subscribe", "wrong", "12345"); ok {
		t.Error("wrong verify token accepted")
	}
	if _, ok := NewWhatsAppConnector("t", "pn", "").VerifyWebhook("subscribe", "", "x"); ok {
		t.Error("empty configured token must never verify")
	}
}
