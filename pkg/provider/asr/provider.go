// Package asr defines the Provider interface for batch speech recognition.
//
// Recognition in multivox is per-turn: the enrichment layer hands over one
// finished utterance and waits for its text. Streaming partials are not part
// of the contract; turn boundaries are decided upstream by the session layer.
package asr

import "context"

// Request describes one recognition call.
type Request struct {
	// PCM is the utterance as mono 16-bit little-endian PCM.
	PCM []byte

	// SampleRate is the PCM sample rate in Hz.
	SampleRate int

	// Language is the expected ISO-639-1 language code. Empty lets the
	// backend auto-detect.
	Language string
}

// Provider is the abstraction over a speech recognition backend.
//
// Implementations must be safe for concurrent use.
type Provider interface {
	// Transcribe recognises the utterance and returns its text. An empty
	// string with a nil error means no speech was recognised.
	Transcribe(ctx context.Context, req Request) (string, error)
}
