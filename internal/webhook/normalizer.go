package webhook

import (
	"encoding/json"
	"log/slog"
	"strconv"
	"strings"
)

// Normalizer maps raw provider webhook payloads into the canonical
// InboundMessage. It supports the structured shape and the legacy flat shape
// and never fails: missing fields degrade to empty values which downstream
// stages treat as an unprocessable message.
type Normalizer struct {
	logger *slog.Logger
}

// New creates a Normalizer.
func New(logger *slog.Logger) *Normalizer {
	return &Normalizer{logger: logger.With("component", "webhook")}
}

// recognized message events across both provider shapes.
var messageEvents = map[string]bool{
	"messages.upsert": true,
	"message":         true,
	"onmessage":       true,
	"chat":            true,
}

// ShouldProcess filters out echoes of the bot's own sends, group chats and
// events that carry no decodable message content.
func (n *Normalizer) ShouldProcess(raw []byte) bool {
	root := decodeLoose(raw)
	if root == nil {
		return false
	}

	data := subObject(root, "data")
	fields := root
	if data != nil {
		fields = data
	}

	key := subObject(fields, "key")
	if readBool(key, "fromme") || readBool(fields, "fromme") {
		return false
	}
	if readBool(fields, "isgroupmsg", "isgroup") || readBool(root, "isgroupmsg", "isgroup") {
		return false
	}
	if jid := readString(key, "remotejid"); strings.HasSuffix(jid, "@g.us") {
		return false
	}

	event := strings.ToLower(readString(root, "event", "eventtype", "type"))
	if messageEvents[event] {
		return true
	}

	// Unrecognized event: accept only when a text or media hint is present.
	if readString(fields, "body", "content", "text") != "" {
		return true
	}
	if readString(fields, "messagetype", "mimetype", "mediatype") != "" {
		return true
	}
	return subObject(fields, "message") != nil
}

// Normalize maps either provider shape into the canonical InboundMessage.
// It is a pure mapping with no side effects and never raises; the worst case
// is a message with empty phone and content.
func (n *Normalizer) Normalize(raw []byte) InboundMessage {
	root := decodeLoose(raw)
	if root == nil {
		return InboundMessage{}
	}
	if data := subObject(root, "data"); data != nil {
		return n.normalizeStructured(root, data)
	}
	return n.normalizeLegacy(root)
}

func (n *Normalizer) normalizeStructured(root, data map[string]json.RawMessage) InboundMessage {
	key := subObject(data, "key")
	msg := subObject(data, "message")

	content := MessageContent{
		Conversation: readString(msg, "conversation"),
	}
	if content.Conversation == "" {
		if ext := subObject(msg, "extendedtextmessage"); ext != nil {
			content.Conversation = readString(ext, "text")
		}
	}

	messageType := readString(data, "messagetype")
	if media := subObject(msg, "imagemessage"); media != nil {
		content.ImageMessage = decodeMedia(media)
	}
	if media := subObject(msg, "audiomessage"); media != nil {
		content.AudioMessage = decodeMedia(media)
	}
	if media := subObject(msg, "documentmessage"); media != nil {
		content.DocumentMessage = decodeMedia(media)
	}

	return InboundMessage{
		Event:    firstNonEmpty(readString(root, "event"), EventMessagesUpsert),
		Instance: readString(root, "instance"),
		Data: MessageData{
			Key: MessageKey{
				RemoteJid: readString(key, "remotejid"),
				FromMe:    readBool(key, "fromme"),
				ID:        readString(key, "id"),
			},
			PushName:         readString(data, "pushname"),
			Message:          content,
			MessageType:      messageType,
			MessageTimestamp: readInt64(data, "messagetimestamp", "timestamp"),
		},
	}
}

// phoneCandidates is the explicit priority order for recovering the sender
// identity from a legacy payload. Evaluation stops at the first extractor
// that yields a usable phone.
var phoneCandidates = []struct {
	name    string
	extract func(root map[string]json.RawMessage) string
}{
	{"chatid", func(root map[string]json.RawMessage) string {
		return readString(root, "chatid")
	}},
	{"sender", func(root map[string]json.RawMessage) string {
		if sender := subObject(root, "sender"); sender != nil {
			return readString(sender, "id", "_serialized")
		}
		return readString(root, "sender")
	}},
	{"chat.jid", func(root map[string]json.RawMessage) string {
		if chat := subObject(root, "chat"); chat != nil {
			return readString(chat, "jid", "id")
		}
		return ""
	}},
	{"owner", func(root map[string]json.RawMessage) string {
		return readString(root, "owner")
	}},
}

func (n *Normalizer) normalizeLegacy(root map[string]json.RawMessage) InboundMessage {
	var phone string
	for _, candidate := range phoneCandidates {
		if extracted := ExtractPhone(candidate.extract(root)); extracted != "" {
			phone = extracted
			break
		}
	}

	remoteJid := ""
	if phone != "" {
		remoteJid = phone + jidSuffix
	}

	body := readString(root, "body", "content", "text")
	caption := readString(root, "caption")
	mimetype := readString(root, "mimetype", "mediatype")
	mediaURL := readString(root, "mediaurl", "clienturl", "deprecatedmms3url", "url")
	mediaKey := readString(root, "mediakey")
	fileName := readString(root, "filename")
	messageType := firstNonEmpty(readString(root, "type", "messagetype"), mimetype)

	content := MessageContent{}
	media := &MediaContent{
		URL:      mediaURL,
		MediaKey: mediaKey,
		Mimetype: mimetype,
		Caption:  caption,
		FileName: fileName,
	}
	lowered := strings.ToLower(messageType)
	switch {
	case strings.Contains(lowered, "audio") || strings.Contains(lowered, "ptt"):
		content.AudioMessage = media
	case strings.Contains(lowered, "image"):
		content.ImageMessage = media
	case strings.Contains(lowered, "document") || strings.Contains(lowered, "pdf"):
		content.DocumentMessage = media
	default:
		content.Conversation = body
	}

	return InboundMessage{
		Event:    EventMessagesUpsert,
		Instance: readString(root, "session", "instance"),
		Data: MessageData{
			Key: MessageKey{
				RemoteJid: remoteJid,
				FromMe:    readBool(root, "fromme"),
				ID:        readString(root, "id", "messageid"),
			},
			PushName:         readString(root, "notifyname", "pushname", "sendername"),
			Message:          content,
			MessageType:      messageType,
			MessageTimestamp: readInt64(root, "timestamp", "t"),
		},
	}
}

func decodeMedia(media map[string]json.RawMessage) *MediaContent {
	return &MediaContent{
		URL:      readString(media, "url"),
		MediaKey: readString(media, "mediakey"),
		Mimetype: readString(media, "mimetype"),
		Caption:  readString(media, "caption"),
		FileName: readString(media, "filename", "title"),
	}
}

// decodeLoose parses a JSON object with keys lowered, so the legacy
// uppercase-field shape and the structured camelCase shape read identically.
func decodeLoose(raw []byte) map[string]json.RawMessage {
	var direct map[string]json.RawMessage
	if err := json.Unmarshal(raw, &direct); err != nil {
		return nil
	}
	lowered := make(map[string]json.RawMessage, len(direct))
	for key, val := range direct {
		lowered[strings.ToLower(key)] = val
	}
	return lowered
}

func subObject(m map[string]json.RawMessage, keys ...string) map[string]json.RawMessage {
	if m == nil {
		return nil
	}
	for _, key := range keys {
		if raw, ok := m[key]; ok {
			if nested := decodeLoose(raw); nested != nil {
				return nested
			}
		}
	}
	return nil
}

func readString(m map[string]json.RawMessage, keys ...string) string {
	if m == nil {
		return ""
	}
	for _, key := range keys {
		raw, ok := m[key]
		if !ok {
			continue
		}
		var str string
		if err := json.Unmarshal(raw, &str); err == nil {
			if str = strings.TrimSpace(str); str != "" {
				return str
			}
			continue
		}
		var number float64
		if err := json.Unmarshal(raw, &number); err == nil && number != 0 {
			return strconv.FormatFloat(number, 'f', -1, 64)
		}
	}
	return ""
}

func readBool(m map[string]json.RawMessage, keys ...string) bool {
	if m == nil {
		return false
	}
	for _, key := range keys {
		raw, ok := m[key]
		if !ok {
			continue
		}
		var val bool
		if err := json.Unmarshal(raw, &val); err == nil {
			return val
		}
		var str string
		if err := json.Unmarshal(raw, &str); err == nil {
			return strings.EqualFold(str, "true") || str == "1"
		}
	}
	return false
}

func readInt64(m map[string]json.RawMessage, keys ...string) int64 {
	if m == nil {
		return 0
	}
	for _, key := range keys {
		raw, ok := m[key]
		if !ok {
			continue
		}
		var val int64
		if err := json.Unmarshal(raw, &val); err == nil {
			return val
		}
		var str string
		if err := json.Unmarshal(raw, &str); err == nil {
			if parsed, err := strconv.ParseInt(strings.TrimSpace(str), 10, 64); err == nil {
				return parsed
			}
		}
	}
	return 0
}

func firstNonEmpty(values ...string) string {
	for _, val := range values {
		if val != "" {
			return val
		}
	}
	return ""
}
