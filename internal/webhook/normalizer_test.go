package webhook

import (
	"io"
	"log/slog"
	"testing"
)

func testNormalizer() *Normalizer {
	return New(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestNormalizeStructuredText(t *testing.T) {
	raw := []byte(`{
		"event": "messages.upsert",
		"instance": "main",
		"data": {
			"key": {"remoteJid": "5511999999999@s.whatsapp.net", "fromMe": false, "id": "ABC123"},
			"pushName": "Maria",
			"message": {"conversation": "gastei 50 no mercado"},
			"messageType": "conversation",
			"messageTimestamp": 1700000000
		}
	}`)

	msg := testNormalizer().Normalize(raw)

	if msg.Data.Key.RemoteJid != "5511999999999@s.whatsapp.net" {
		t.Fatalf("remoteJid = %q", msg.Data.Key.RemoteJid)
	}
	if msg.Data.Message.Conversation != "gastei 50 no mercado" {
		t.Fatalf("conversation = %q", msg.Data.Message.Conversation)
	}
	if msg.Phone() != "5511999999999" {
		t.Fatalf("phone = %q", msg.Phone())
	}
	if msg.ContentType() != TypeText {
		t.Fatalf("content type = %q", msg.ContentType())
	}
	if msg.Data.Key.ID != "ABC123" {
		t.Fatalf("id = %q", msg.Data.Key.ID)
	}
}

func TestNormalizeLegacyMatchesStructured(t *testing.T) {
	structured := []byte(`{
		"event": "messages.upsert",
		"data": {
			"key": {"remoteJid": "5511999999999@s.whatsapp.net", "fromMe": false, "id": "A1"},
			"message": {"conversation": "gastei 50 no mercado"}
		}
	}`)
	legacy := []byte(`{
		"event": "onmessage",
		"chatId": "5511999999999@c.us",
		"body": "gastei 50 no mercado",
		"id": "A1",
		"fromMe": false
	}`)

	n := testNormalizer()
	a := n.Normalize(structured)
	b := n.Normalize(legacy)

	if a.Data.Message.Conversation != b.Data.Message.Conversation {
		t.Fatalf("conversation mismatch: %q vs %q", a.Data.Message.Conversation, b.Data.Message.Conversation)
	}
	if a.Phone() != b.Phone() {
		t.Fatalf("phone mismatch: %q vs %q", a.Phone(), b.Phone())
	}
	if b.Data.Key.RemoteJid != "5511999999999@s.whatsapp.net" {
		t.Fatalf("legacy remoteJid = %q", b.Data.Key.RemoteJid)
	}
}

func TestNormalizeLegacyPhoneCandidateOrder(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{
			name: "chatid wins",
			raw:  `{"chatId": "551188887777@c.us", "sender": {"id": "551100000000@c.us"}, "body": "oi"}`,
			want: "551188887777",
		},
		{
			name: "sender object",
			raw:  `{"sender": {"id": "551188887777@c.us"}, "body": "oi"}`,
			want: "551188887777",
		},
		{
			name: "chat jid",
			raw:  `{"chat": {"jid": "551188887777@s.whatsapp.net"}, "body": "oi"}`,
			want: "551188887777",
		},
		{
			name: "owner fallback",
			raw:  `{"owner": "551188887777", "body": "oi"}`,
			want: "551188887777",
		},
		{
			name: "lid chatid skipped for sender",
			raw:  `{"chatId": "123456789012345678901@lid", "sender": {"id": "551188887777@c.us"}, "body": "oi"}`,
			want: "551188887777",
		},
	}

	n := testNormalizer()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := n.Normalize([]byte(tt.raw))
			if got := msg.Phone(); got != tt.want {
				t.Errorf("phone = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNormalizeLegacyMediaRouting(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		wantType string
	}{
		{
			name:     "ptt routes to audio",
			raw:      `{"chatId": "5511@c.us", "type": "ptt", "mediaUrl": "https://cdn/x.enc", "mediaKey": "abc"}`,
			wantType: TypeAudio,
		},
		{
			name:     "image",
			raw:      `{"chatId": "5511@c.us", "type": "image", "mediaUrl": "https://cdn/x.enc", "mediaKey": "abc", "caption": "recibo"}`,
			wantType: TypeImage,
		},
		{
			name:     "pdf routes to document",
			raw:      `{"chatId": "5511@c.us", "mimetype": "application/pdf", "mediaUrl": "https://cdn/x.enc", "fileName": "nota.pdf"}`,
			wantType: TypeDocument,
		},
		{
			name:     "plain body stays text",
			raw:      `{"chatId": "5511@c.us", "body": "gastei 10"}`,
			wantType: TypeText,
		},
	}

	n := testNormalizer()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := n.Normalize([]byte(tt.raw))
			if got := msg.ContentType(); got != tt.wantType {
				t.Errorf("content type = %q, want %q", got, tt.wantType)
			}
		})
	}
}

func TestShouldProcess(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want bool
	}{
		{"own echo structured", `{"event": "messages.upsert", "data": {"key": {"fromMe": true}, "message": {"conversation": "x"}}}`, false},
		{"own echo legacy", `{"event": "onmessage", "fromMe": true, "body": "x"}`, false},
		{"group flag", `{"event": "onmessage", "isGroupMsg": true, "body": "x"}`, false},
		{"group jid", `{"event": "messages.upsert", "data": {"key": {"remoteJid": "12036314@g.us"}, "message": {"conversation": "x"}}}`, false},
		{"recognized event", `{"event": "messages.upsert", "data": {"key": {"remoteJid": "5511@s.whatsapp.net"}}}`, true},
		{"unknown event with body", `{"event": "presence", "body": "oi"}`, true},
		{"unknown event no content", `{"event": "presence"}`, false},
		{"not json", `not json`, false},
	}

	n := testNormalizer()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := n.ShouldProcess([]byte(tt.raw)); got != tt.want {
				t.Errorf("ShouldProcess = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestExtractPhone(t *testing.T) {
	tests := []struct {
		jid  string
		want string
	}{
		{"5511999999999@s.whatsapp.net", "5511999999999"},
		{"5511999999999@c.us", "5511999999999"},
		{"5511999999999", "5511999999999"},
		{"  5511999999999@c.us", "5511999999999"},
		{"123456789012345678901@lid", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := ExtractPhone(tt.jid); got != tt.want {
			t.Errorf("ExtractPhone(%q) = %q, want %q", tt.jid, got, tt.want)
		}
	}
}
