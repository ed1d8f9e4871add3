// Package chat defines the multivox message model and the per-session
// publish/subscribe bus.
//
// Every frame exchanged with the client and every event flowing through a
// session is a [Message]: a tagged union keyed by the Kind field with a
// shared envelope (role, end-of-turn flag, bus-assigned timestamp) and
// kind-specific payload fields.
package chat

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Role identifies the originator of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"

	// RoleSystem is reserved for processing and error messages emitted by
	// the mediator itself.
	RoleSystem Role = "system"
)

// IsValid reports whether r is a recognised role.
func (r Role) IsValid() bool {
	return r == RoleUser || r == RoleAssistant || r == RoleSystem
}

// Kind discriminates the message union. The set is closed; frames with an
// unknown kind are protocol errors.
type Kind string

const (
	KindInitialize    Kind = "initialize"
	KindText          Kind = "text"
	KindAudio         Kind = "audio"
	KindTranscription Kind = "transcription"
	KindTranslation   Kind = "translation"
	KindHint          Kind = "hint"
	KindError         Kind = "error"
	KindProcessing    Kind = "processing"
)

// IsValid reports whether k is a recognised message kind.
func (k Kind) IsValid() bool {
	switch k {
	case KindInitialize, KindText, KindAudio, KindTranscription,
		KindTranslation, KindHint, KindError, KindProcessing:
		return true
	}
	return false
}

// IsDerived reports whether k is produced by enrichment rather than by a
// conversation peer. Derived kinds are never fed back into enrichment.
func (k Kind) IsDerived() bool {
	switch k {
	case KindTranscription, KindTranslation, KindHint, KindError, KindProcessing:
		return true
	}
	return false
}

// DictionaryEntry is one vocabulary item attached to a transcription or
// translation.
type DictionaryEntry struct {
	// SourceText is the term in the practice language.
	SourceText string `json:"source_text"`

	// TranslatedText is the meaning in the learner's native language.
	TranslatedText string `json:"translated_text"`

	// Notes holds usage notes in the native language.
	Notes string `json:"notes,omitempty"`

	// Reading is the phonetic reading for symbolic scripts (hiragana,
	// pinyin); empty for alphabetic languages.
	Reading string `json:"reading,omitempty"`
}

// HintOption is one suggested learner reply.
type HintOption struct {
	SourceText     string `json:"source_text"`
	TranslatedText string `json:"translated_text"`
}

// ErrUnknownKind is returned by [ParseMessage] for frames whose type is not
// in the closed kind set. Callers treat it as a protocol error.
var ErrUnknownKind = errors.New("chat: unknown message type")

// Message is the wire and bus envelope. Kind selects which payload fields
// are meaningful; unused fields stay at their zero value and are omitted
// from JSON.
type Message struct {
	Kind      Kind `json:"type"`
	Role      Role `json:"role"`
	EndOfTurn bool `json:"end_of_turn"`

	// Timestamp is a monotonic sequence number assigned by the bus when the
	// message is accepted into history. Zero until published.
	Timestamp int64 `json:"timestamp,omitempty"`

	// Text carries the payload for initialize, text, and error messages,
	// and the status line for processing messages.
	Text string `json:"text,omitempty"`

	// Audio is the raw payload of audio messages. encoding/json transports
	// it as base64.
	Audio    []byte `json:"audio,omitempty"`
	MimeType string `json:"mime_type,omitempty"`

	// Transcription and translation payload.
	SourceText     string                     `json:"source_text,omitempty"`
	TranslatedText string                     `json:"translated_text,omitempty"`
	Chunked        []string                   `json:"chunked,omitempty"`
	Dictionary     map[string]DictionaryEntry `json:"dictionary,omitempty"`

	// Hint payload.
	Hints []HintOption `json:"hints,omitempty"`
}

// ParseMessage decodes a JSON frame into a Message and validates the
// envelope. Unknown kinds return [ErrUnknownKind]; other malformed frames
// return a descriptive error.
func ParseMessage(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("chat: decode message: %w", err)
	}
	if !msg.Kind.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, msg.Kind)
	}
	if !msg.Role.IsValid() {
		return nil, fmt.Errorf("chat: invalid role %q", msg.Role)
	}
	return &msg, nil
}

// Encode serialises the message as a JSON text frame.
func (m *Message) Encode() ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("chat: encode message: %w", err)
	}
	return data, nil
}

// NewTextMessage builds a plain text utterance fragment.
func NewTextMessage(role Role, text string, endOfTurn bool) *Message {
	return &Message{Kind: KindText, Role: role, Text: text, EndOfTurn: endOfTurn}
}

// NewAudioMessage builds an audio chunk message. The mime type carries the
// sample rate for raw PCM payloads.
func NewAudioMessage(role Role, data []byte, mimeType string, endOfTurn bool) *Message {
	return &Message{Kind: KindAudio, Role: role, Audio: data, MimeType: mimeType, EndOfTurn: endOfTurn}
}

// NewErrorMessage builds a system-attributed error notice for the client.
func NewErrorMessage(role Role, text string) *Message {
	return &Message{Kind: KindError, Role: role, Text: text}
}

// NewProcessingMessage builds a status notice shown while enrichment runs.
func NewProcessingMessage(status string) *Message {
	return &Message{Kind: KindProcessing, Role: RoleSystem, Text: status}
}
