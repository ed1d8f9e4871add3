// Package tts defines the Provider interface for text-to-speech backends.
//
// Synthesis in multivox is per-utterance rather than streaming: the
// step-by-step enrichment task synthesises one assistant reply at a time and
// publishes the finished clip as a single audio message.
package tts

import "context"

// Request describes one synthesis call.
type Request struct {
	// Text is the utterance to synthesise.
	Text string

	// LanguageCode is the BCP-47 locale ("ja-JP").
	LanguageCode string

	// Voice is the provider voice name for the locale.
	Voice string
}

// Audio is a finished synthesis result.
type Audio struct {
	// Text echoes the synthesised utterance.
	Text string

	// Data is the encoded audio payload.
	Data []byte

	// MimeType describes the encoding, e.g. "audio/mp3".
	MimeType string
}

// Provider is the abstraction over a TTS backend.
//
// Implementations must be safe for concurrent use and should propagate
// context cancellation promptly.
type Provider interface {
	// Synthesize renders req.Text as speech. Implementations return an
	// error for empty text or an unsupported locale/voice combination.
	Synthesize(ctx context.Context, req Request) (*Audio, error)
}
