package storage

import "time"

// EventWriter receives one event per moderated text.
// Write() must NEVER block the caller.
type EventWriter interface {
	Write(event *ModerationEvent)
	Close()
}

// ModerationEvent describes a single moderation decision. It is emitted to
// the log stream only; moderation history is not stored.
type ModerationEvent struct {
	RequestID         string
	ClientID          string
	Timestamp         time.Time
	Operation         string // "moderate", "batch", "profanity"
	Verdict           string
	IsShadow          bool
	Reason            string
	FlaggedCategories []string
	ConfidenceScore   float64
	PayloadPreview    string // First PayloadPreviewLength runes
	PayloadSize       int
	BatchIndex        int // -1 outside a batch
	UserID            string
	ContentID         string
	LatencyMs         float64
}

// PayloadPreviewLength is the max runes kept in PayloadPreview.
const PayloadPreviewLength = 200

// TruncatePayload returns the first N characters (runes) of a payload for
// preview. It never splits a multi-byte UTF-8 character.
func TruncatePayload(payload string, maxLen int) string {
	runes := []rune(payload)
	if len(runes) <= maxLen {
		return payload
	}
	return string(runes[:maxLen])
}
