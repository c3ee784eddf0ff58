package channel

import (
	"errors"
	"testing"
)

func TestMakeAndSplitChatID(t *testing.T) {
	chatID := MakeChatID(Telegram, "123456")
	if chatID != "telegram:123456" {
		t.Fatalf("chat id = %q, want telegram:123456", chatID)
	}

	ch, userID, err := SplitChatID(chatID)
	if err != nil {
		t.Fatalf("SplitChatID: %v", err)
	}
	if ch != Telegram || userID != "123456" {
		t.Errorf("split = (%s, %s), want (telegram, 123456)", ch, userID)
	}
}

func TestChatIDsNeverCollideAcrossChannels(t *testing.T) {
	seen := map[string]bool{}
	for _, ch := range []Channel{Telegram, Facebook, Viber, WhatsApp} {
		id := MakeChatID(ch, "same-user")
		if seen[id] {
			t.Fatalf("duplicate chat id %q", id)
		}
		seen[id] = true
	}
}

func TestSplitChatIDRejectsMalformed(t *testing.T) {
	for _, bad := range []string{"", "telegram", "telegram:", "smoke-signal:1"} {
		if _, _, err := SplitChatID(bad); err == nil {
			t.Errorf("SplitChatID(%q) succeeded, want error", bad)
		}
	}
}

func TestParseChannelIsCaseInsensitive(t *testing.T) {
	ch, err := Parse("Telegram")
	if err != nil || ch != Telegram {
		t.Errorf("Parse(Telegram) = (%v, %v)", ch, err)
	}
	if _, err := Parse("icq"); !errors.Is(err, ErrUnknownChannel) {
		t.Errorf("Parse(icq) err = %v, want ErrUnknownChannel", err)
	}
}

func TestClassifySendError(t *testing.T) {
	tests := []struct {
		status    int
		kind      ErrorKind
		transient bool
	}{
		{429, RateLimited, true},
		{403, Blocked, false},
		{400, InvalidRecipient, false},
		{404, InvalidRecipient, false},
		{500, Network, true},
	}
	for _, tt := range tests {
		err := classifySendError(Telegram, tt.status, nil)
		var sendErr *SendError
		if !errors.As(err, &sendErr) {
			t.Fatalf("status %d: err = %v, want *SendError", tt.status, err)
		}
		if sendErr.Kind != tt.kind || sendErr.Transient() != tt.transient {
			t.Errorf("status %d: kind=%s transient=%v, want %s/%v",
				tt.status, sendErr.Kind, sendErr.Transient(), tt.kind, tt.transient)
		}
	}

	if err := classifySendError(Telegram, 200, nil); err != nil {
		t.Errorf("status 200: err = %v, want nil", err)
	}
	err := classifySendError(Viber, 0, errors.New("connection refused"))
	var sendErr *SendError
	if !errors.As(err, &sendErr) || sendErr.Kind != Network || !sendErr.Transient() {
		t.Errorf("transport error: %v, want transient network SendError", err)
	}
}
