// Package live defines the Provider interface for upstream bidirectional
// live-generation sessions.
//
// A live provider wraps a streaming multimodal model API (e.g., Gemini Live)
// behind a narrow shape: connect once per conversation, push user text and
// realtime audio in, receive an ordered stream of assistant audio, text, and
// turn boundaries out.
//
// Implementors must be safe for concurrent use. The events channel returned
// by a session must be closed by the implementation when the session ends.
package live

import "context"

// SessionConfig carries everything needed to open an upstream session.
type SessionConfig struct {
	// Modality selects the assistant's response medium: "audio" or "text".
	Modality string

	// Voice is the provider voice name for audio responses. Empty selects
	// the provider default.
	Voice string

	// Instructions is the system instruction injected at session start
	// (role-play scenario plus teaching rules).
	Instructions string
}

// Event is one item of the assistant's output stream. Exactly one of Audio
// and Text is set on content events; TurnComplete may accompany either or
// arrive on its own.
type Event struct {
	// Audio is a raw PCM chunk (24 kHz, s16le, mono) of synthesised speech.
	Audio []byte

	// Text is an assistant text fragment.
	Text string

	// TurnComplete marks the end of the assistant's current turn.
	TurnComplete bool
}

// SessionHandle is one live upstream conversation.
type SessionHandle interface {
	// SendText delivers a user text input. endOfTurn signals that the model
	// should respond now.
	SendText(text string, endOfTurn bool) error

	// SendAudio delivers a realtime user audio chunk. mimeType declares the
	// encoding and sample rate (e.g. "audio/pcm;rate=16000").
	SendAudio(chunk []byte, mimeType string) error

	// Events returns the assistant output stream. The channel is closed
	// when the session ends; Err reports why.
	Events() <-chan Event

	// Err returns the first error that terminated the session, or nil
	// after a clean close.
	Err() error

	// Close terminates the session and releases resources. Idempotent.
	Close() error
}

// Provider opens live sessions.
type Provider interface {
	// Connect establishes a session. Implementations must respect ctx for
	// the dial and setup phase; the returned session outlives ctx.
	Connect(ctx context.Context, cfg SessionConfig) (SessionHandle, error)
}
