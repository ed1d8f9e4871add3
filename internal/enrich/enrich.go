// Package enrich turns raw conversation turns into study material. Every
// operation is a single prompt-in, JSON-out model call (plus speech
// recognition where audio is involved) that yields translations, per-phrase
// dictionaries, and suggested learner replies.
package enrich

import (
	"context"

	"github.com/rjpio/multivox/internal/chat"
)

// TranslateRequest asks for a structured translation of text.
type TranslateRequest struct {
	Text   string
	Source chat.Language
	Target chat.Language
}

// TranslateResponse is a translation with phrase alignment. Chunked splits
// SourceText into phrases; Dictionary maps those phrases to glosses.
type TranslateResponse struct {
	SourceText     string                          `json:"source_text"`
	TranslatedText string                          `json:"translated_text"`
	Chunked        []string                        `json:"chunked"`
	Dictionary     map[string]chat.DictionaryEntry `json:"dictionary"`
}

// TranscribeRequest asks for recognition plus translation of one utterance.
type TranscribeRequest struct {
	// PCM is mono 16-bit little-endian audio.
	PCM []byte

	// MimeType carries the sample rate, e.g. "audio/pcm;rate=16000".
	MimeType string

	Source chat.Language
	Target chat.Language
}

// TranscribeResponse is the recognised text with the same alignment
// structure as a translation. SourceText holds the transcription.
type TranscribeResponse struct {
	SourceText     string                          `json:"source_text"`
	TranslatedText string                          `json:"translated_text"`
	Chunked        []string                        `json:"chunked"`
	Dictionary     map[string]chat.DictionaryEntry `json:"dictionary"`
}

// HintRequest asks for suggested learner replies to a conversation.
type HintRequest struct {
	// History is the conversation so far, one "role: text" line per turn.
	History string

	// Scenario is the role-play description guiding the suggestions.
	Scenario string

	Source chat.Language
	Target chat.Language
}

// HintResponse carries the suggested replies.
type HintResponse struct {
	Hints []chat.HintOption `json:"hints"`
}

// TranscribeAndHintRequest drives step-by-step mode: one call that
// transcribes the learner's utterance, writes the tutor's reply, and
// suggests follow-ups.
type TranscribeAndHintRequest struct {
	Scenario string
	History  string

	// PCM is the learner's utterance; empty for the opening turn.
	PCM      []byte
	MimeType string

	Source chat.Language
	Target chat.Language
}

// TranscribeAndHintResponse is the combined result of one step-by-step call.
type TranscribeAndHintResponse struct {
	// Transcription of the learner audio; empty when no speech was sent.
	Transcription string `json:"transcription"`

	// ResponseText is the tutor's reply in the practice language.
	ResponseText string `json:"response_text"`

	// TranslatedText, Chunked, and Dictionary annotate ResponseText.
	TranslatedText string                          `json:"translated_text"`
	Chunked        []string                        `json:"chunked"`
	Dictionary     map[string]chat.DictionaryEntry `json:"dictionary"`

	Hints []chat.HintOption `json:"hints"`
}

// Service is the enrichment contract consumed by the session layer and the
// HTTP handlers. Implementations must be safe for concurrent use.
type Service interface {
	Translate(ctx context.Context, req TranslateRequest) (*TranslateResponse, error)
	Transcribe(ctx context.Context, req TranscribeRequest) (*TranscribeResponse, error)
	Hints(ctx context.Context, req HintRequest) (*HintResponse, error)
	TranscribeAndHint(ctx context.Context, req TranscribeAndHintRequest) (*TranscribeAndHintResponse, error)
}
