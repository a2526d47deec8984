package handlers

import (
	"bytes"
	"context"
	"strings"

	"github.com/ledongthuc/pdf"

	"pixzen-bot/internal/repo"
	"pixzen-bot/internal/templates"
	"pixzen-bot/internal/webhook"
)

// minPDFTextLen below which an uploaded PDF is treated as a scan with no
// extractable text layer.
const minPDFTextLen = 10

// HandleAudio transcribes a voice note and feeds the text pipeline.
func (h *Handler) HandleAudio(ctx context.Context, user *repo.WhatsAppUser, msg *webhook.InboundMessage) {
	media := msg.Data.Message.AudioMessage
	h.reply(ctx, user.Phone, templates.KeyProcessing, nil)

	data := h.fetchMedia(ctx, media, webhook.TypeAudio)
	if len(data) == 0 {
		h.reply(ctx, user.Phone, templates.KeyDownloadFailed, nil)
		return
	}

	filename := "voice." + audioExtension(media.Mimetype)
	text, err := h.analyzer.TranscribeAudio(ctx, data, filename, user.UserID)
	if err != nil || strings.TrimSpace(text) == "" {
		h.logger.Error("audio transcription failed", "phone", user.Phone, "error", err)
		h.reply(ctx, user.Phone, templates.KeyNotUnderstood, nil)
		return
	}

	h.extractAndSave(ctx, user, text, repo.UsageAudio)
}

// HandleImage runs a receipt photo through vision extraction.
func (h *Handler) HandleImage(ctx context.Context, user *repo.WhatsAppUser, msg *webhook.InboundMessage) {
	media := msg.Data.Message.ImageMessage
	h.reply(ctx, user.Phone, templates.KeyProcessing, nil)

	data := h.fetchMedia(ctx, media, webhook.TypeImage)
	if len(data) == 0 {
		h.reply(ctx, user.Phone, templates.KeyDownloadFailed, nil)
		return
	}

	tx, err := h.analyzer.AnalyzeImage(ctx, data, media.Caption, sniffImageMime(data), user.UserID)
	if err != nil {
		h.logger.Error("image analysis failed", "phone", user.Phone, "error", err)
		h.reply(ctx, user.Phone, templates.KeyNotUnderstood, nil)
		return
	}

	h.saveAndConfirm(ctx, user, tx, repo.UsageImage)
}

// HandleDocument extracts the text layer of a PDF and feeds the text
// pipeline. Non-PDF documents are rejected.
func (h *Handler) HandleDocument(ctx context.Context, user *repo.WhatsAppUser, msg *webhook.InboundMessage) {
	media := msg.Data.Message.DocumentMessage
	if !isPDF(media) {
		h.reply(ctx, user.Phone, templates.KeyUnsupportedType, nil)
		return
	}

	h.reply(ctx, user.Phone, templates.KeyProcessing, nil)

	data := h.fetchMedia(ctx, media, webhook.TypeDocument)
	if len(data) == 0 {
		h.reply(ctx, user.Phone, templates.KeyDownloadFailed, nil)
		return
	}

	text, err := extractPDFText(data)
	if err != nil {
		h.logger.Warn("pdf text extraction failed", "phone", user.Phone, "error", err)
		h.reply(ctx, user.Phone, templates.KeyScannedPDF, nil)
		return
	}
	if len(strings.TrimSpace(text)) < minPDFTextLen {
		h.reply(ctx, user.Phone, templates.KeyScannedPDF, nil)
		return
	}

	h.extractAndSave(ctx, user, pdfPrompt(media.Caption, text), repo.UsageMessage)
}

// pdfMarker tells the extraction prompt the text came from a document, not
// a typed message.
const pdfMarker = "Documento PDF:"

func pdfPrompt(caption, text string) string {
	prompt := pdfMarker + "\n" + text
	if caption != "" {
		prompt = caption + "\n" + prompt
	}
	return prompt
}

// fetchMedia prefers the encrypted CDN path and falls back to a plain
// download when decryption is unavailable or fails.
func (h *Handler) fetchMedia(ctx context.Context, media *webhook.MediaContent, mediaType string) []byte {
	if media == nil || media.URL == "" {
		return nil
	}
	if media.MediaKey != "" {
		if data := h.media.FetchEncrypted(ctx, media.URL, media.MediaKey, mediaType); len(data) > 0 {
			return data
		}
	}
	data, err := h.media.Download(ctx, media.URL)
	if err != nil {
		h.logger.Warn("media download failed", "media_type", mediaType, "error", err)
		return nil
	}
	return data
}

func isPDF(media *webhook.MediaContent) bool {
	if media == nil {
		return false
	}
	if strings.Contains(strings.ToLower(media.Mimetype), "pdf") {
		return true
	}
	return strings.HasSuffix(strings.ToLower(media.FileName), ".pdf")
}

func extractPDFText(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}
	content, err := reader.GetPlainText()
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(content); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// audioExtensions maps mimetype fragments to container extensions in
// priority order; voice notes usually arrive as audio/ogg; codecs=opus.
var audioExtensions = []struct {
	fragment  string
	extension string
}{
	{"ogg", "ogg"},
	{"opus", "ogg"},
	{"ptt", "ogg"},
	{"mpeg", "mp3"},
	{"mp3", "mp3"},
	{"mp4", "m4a"},
	{"m4a", "m4a"},
	{"aac", "m4a"},
	{"wav", "wav"},
	{"webm", "webm"},
	{"flac", "flac"},
}

func audioExtension(mimetype string) string {
	lowered := strings.ToLower(mimetype)
	for _, entry := range audioExtensions {
		if strings.Contains(lowered, entry.fragment) {
			return entry.extension
		}
	}
	return "ogg"
}

// sniffImageMime detects the image format from magic bytes, defaulting to
// JPEG which is what the provider re-encodes camera uploads to.
func sniffImageMime(data []byte) string {
	switch {
	case len(data) >= 3 && bytes.HasPrefix(data, []byte{0xFF, 0xD8, 0xFF}):
		return "image/jpeg"
	case len(data) >= 8 && bytes.HasPrefix(data, []byte{0x89, 0x50, 0x4E, 0x47}):
		return "image/png"
	case len(data) >= 6 && bytes.HasPrefix(data, []byte("GIF8")):
		return "image/gif"
	case len(data) >= 12 && bytes.HasPrefix(data, []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WEBP")):
		return "image/webp"
	default:
		return "image/jpeg"
	}
}
