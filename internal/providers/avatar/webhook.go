package avatar

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"carecast/internal/domain"
)

// SignatureHeader carries the hex-encoded HMAC-SHA256 of the raw request body.
const SignatureHeader = "X-Webhook-Signature"

// EventType enumerates the callback event kinds the provider delivers.
type EventType string

const (
	EventCompleted EventType = "completed"
	EventFailed    EventType = "failed"
)

// CallbackEvent is one decoded webhook delivery. It is processed and
// discarded; nothing here is persisted beyond the job transition it causes.
type CallbackEvent struct {
	EventType       EventType `json:"event_type"`
	CorrelationID   string    `json:"video_id"`
	VideoURL        string    `json:"video_url"`
	ThumbnailURL    string    `json:"thumbnail_url"`
	DurationSeconds int       `json:"duration_seconds"`
	Error           string    `json:"error"`
	CallbackToken   string    `json:"callback_token"`
}

// Sign computes the webhook signature for a body. The provider computes the
// same value on delivery; tests and local simulators use this to produce
// valid callbacks.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature authenticates a webhook delivery. The MAC is computed over
// the exact raw bytes of the request body; verifying a re-serialized payload
// would break on any byte-level difference, so callers must pass the body
// untouched. Returns false, never an error, on any mismatch.
func VerifySignature(body []byte, signature, secret string) bool {
	if secret == "" {
		return false
	}
	expected := Sign(secret, body)
	return hmac.Equal([]byte(expected), []byte(strings.TrimSpace(signature)))
}

// ParseEvent decodes a verified webhook body.
func ParseEvent(body []byte) (*CallbackEvent, error) {
	var event CallbackEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return nil, fmt.Errorf("avatar: %w: %v", domain.ErrMalformedPayload, err)
	}
	if event.EventType != EventCompleted && event.EventType != EventFailed {
		return nil, fmt.Errorf("avatar: %w: unknown event type %q", domain.ErrMalformedPayload, event.EventType)
	}
	if strings.TrimSpace(event.CorrelationID) == "" {
		return nil, fmt.Errorf("avatar: %w: missing video_id", domain.ErrMalformedPayload)
	}
	return &event, nil
}
