// Package message defines the request and result types exchanged between
// the transports and the dispatcher.
package message

import (
	"encoding/base64"
	"time"

	"github.com/google/uuid"
)

// Request is one synthesis request from any transport.
type Request struct {
	// ID is a unique identifier for this request (UUID).
	ID string `json:"id"`

	// Source identifies the entry point ("http", "grpc", "nats", "cli").
	Source string `json:"source"`

	// Text is the text to speak.
	Text string `json:"text"`

	// Voice is a backend voice ID or display name. Empty selects by gender
	// or the backend default.
	Voice string `json:"voice,omitempty"`

	// Gender filters the voice catalog ("male", "female").
	Gender string `json:"gender,omitempty"`

	// Language is an ISO-639-1 code for backends keyed by language.
	Language string `json:"language,omitempty"`

	// Rate is "slow", "normal" or "fast".
	Rate string `json:"rate,omitempty"`

	// Password is checked by the password gate when it is enabled.
	Password string `json:"password,omitempty"`

	// Publish uploads the finished audio to object storage and returns its URL.
	Publish bool `json:"publish,omitempty"`

	// Timestamp is when the request was received.
	Timestamp time.Time `json:"timestamp"`
}

// NewRequest returns a request with a fresh ID and timestamp.
func NewRequest(source string) *Request {
	return &Request{
		ID:        uuid.NewString(),
		Source:    source,
		Timestamp: time.Now().UTC(),
	}
}

// EnsureID fills ID and Timestamp when a transport decoded a request
// without them.
func (r *Request) EnsureID() {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.Timestamp.IsZero() {
		r.Timestamp = time.Now().UTC()
	}
}

// Result is the outcome of one request.
type Result struct {
	// RequestID is the original request ID.
	RequestID string `json:"request_id"`

	// Audio holds the raw assembled audio. Transports that cannot carry
	// binary bodies use AudioBase64 instead.
	Audio []byte `json:"-"`

	// AudioBase64 is Audio as a base64 string.
	AudioBase64 string `json:"audio,omitempty"`

	// ContentType is the MIME type of the audio ("audio/wav", "audio/mp3").
	ContentType string `json:"content_type,omitempty"`

	// Filename is the suggested download name.
	Filename string `json:"filename,omitempty"`

	// Backend is the speech backend that produced the audio.
	Backend string `json:"backend,omitempty"`

	// Voice and Language are the values actually used after fallback.
	Voice    string `json:"voice,omitempty"`
	Language string `json:"language,omitempty"`

	Chunks     int `json:"chunks,omitempty"`
	Words      int `json:"words,omitempty"`
	Characters int `json:"characters,omitempty"`

	// Notices are soft, user-visible warnings (voice fallback, long text).
	Notices []string `json:"notices,omitempty"`

	// URL is the published object location when Publish was requested.
	URL string `json:"url,omitempty"`

	// Error is the user-facing error message. ErrorKind classifies it.
	Error     string `json:"error,omitempty"`
	ErrorKind string `json:"error_kind,omitempty"`

	DurationMS int64 `json:"duration_ms"`
}

// OK reports whether audio was produced.
func (r *Result) OK() bool { return r.Error == "" && len(r.Audio) > 0 }

// EncodeAudio copies Audio into AudioBase64 for JSON transports.
func (r *Result) EncodeAudio() {
	if len(r.Audio) > 0 {
		r.AudioBase64 = base64.StdEncoding.EncodeToString(r.Audio)
	}
}
