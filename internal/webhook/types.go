package webhook

import "strings"

// EventMessagesUpsert is the canonical inbound-message event.
const EventMessagesUpsert = "messages.upsert"

// jidSuffix is the domain suffix every canonical remoteJid carries.
const jidSuffix = "@s.whatsapp.net"

// InboundMessage is the canonical payload every provider shape is mapped
// into. Downstream components depend only on this type, never on raw
// provider fields.
type InboundMessage struct {
	Event    string
	Instance string
	Data     MessageData
}

// MessageData mirrors the provider's structured message envelope.
type MessageData struct {
	Key              MessageKey
	PushName         string
	Message          MessageContent
	MessageType      string
	MessageTimestamp int64
}

// MessageKey identifies one message within a chat.
type MessageKey struct {
	RemoteJid string
	FromMe    bool
	ID        string
}

// MessageContent holds exactly one populated content variant.
type MessageContent struct {
	Conversation    string
	ImageMessage    *MediaContent
	AudioMessage    *MediaContent
	DocumentMessage *MediaContent
}

// MediaContent describes an encrypted media attachment.
type MediaContent struct {
	URL      string
	MediaKey string
	Mimetype string
	Caption  string
	FileName string
}

// Content type labels routed by the processor.
const (
	TypeText     = "text"
	TypeAudio    = "audio"
	TypeImage    = "image"
	TypeDocument = "document"
)

// ContentType reports which content variant is populated.
func (m *InboundMessage) ContentType() string {
	switch {
	case m.Data.Message.AudioMessage != nil:
		return TypeAudio
	case m.Data.Message.ImageMessage != nil:
		return TypeImage
	case m.Data.Message.DocumentMessage != nil:
		return TypeDocument
	case m.Data.Message.Conversation != "":
		return TypeText
	default:
		return ""
	}
}

// Phone extracts the sender's phone from the canonical remoteJid.
func (m *InboundMessage) Phone() string {
	return ExtractPhone(m.Data.Key.RemoteJid)
}

// maxPhoneLen rejects opaque LID identifiers some provider variants emit in
// place of a phone number.
const maxPhoneLen = 15

// ExtractPhone strips the domain suffix from a JID, leaving the bare phone.
// Overlong identifiers are rejected as non-phone LIDs and map to "".
func ExtractPhone(jid string) string {
	phone := jid
	if idx := strings.Index(phone, "@"); idx >= 0 {
		phone = phone[:idx]
	}
	phone = strings.TrimSpace(phone)
	if len(phone) > maxPhoneLen {
		return ""
	}
	return phone
}
