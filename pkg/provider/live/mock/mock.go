// Package mock provides a recording fake for the live.Provider interface,
// used in session orchestrator tests.
package mock

import (
	"context"
	"sync"

	"github.com/rjpio/multivox/pkg/provider/live"
)

// Compile-time assertions.
var _ live.Provider = (*Provider)(nil)
var _ live.SessionHandle = (*Session)(nil)

// TextInput records one SendText call.
type TextInput struct {
	Text      string
	EndOfTurn bool
}

// AudioInput records one SendAudio call.
type AudioInput struct {
	Chunk    []byte
	MimeType string
}

// Provider implements live.Provider. Without a ConnectFunc override, Connect
// returns a fresh [Session] and records the config.
type Provider struct {
	// ConnectFunc, when set, replaces the default Connect behaviour.
	ConnectFunc func(ctx context.Context, cfg live.SessionConfig) (live.SessionHandle, error)

	mu       sync.Mutex
	configs  []live.SessionConfig
	sessions []*Session
}

// Connect implements live.Provider.
func (p *Provider) Connect(ctx context.Context, cfg live.SessionConfig) (live.SessionHandle, error) {
	p.mu.Lock()
	p.configs = append(p.configs, cfg)
	p.mu.Unlock()

	if p.ConnectFunc != nil {
		return p.ConnectFunc(ctx, cfg)
	}

	sess := NewSession()
	p.mu.Lock()
	p.sessions = append(p.sessions, sess)
	p.mu.Unlock()
	return sess, nil
}

// Configs returns the recorded Connect configs.
func (p *Provider) Configs() []live.SessionConfig {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]live.SessionConfig, len(p.configs))
	copy(out, p.configs)
	return out
}

// Sessions returns the sessions created by the default Connect behaviour.
func (p *Provider) Sessions() []*Session {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*Session, len(p.sessions))
	copy(out, p.sessions)
	return out
}

// Session implements live.SessionHandle, recording inputs and letting the
// test script assistant output through the Emit helpers.
type Session struct {
	events chan live.Event

	mu         sync.Mutex
	texts      []TextInput
	audio      []AudioInput
	err        error
	closed     bool
	closeCalls int
}

// NewSession creates a ready Session with a buffered event stream.
func NewSession() *Session {
	return &Session{events: make(chan live.Event, 64)}
}

// SendText implements live.SessionHandle.
func (s *Session) SendText(text string, endOfTurn bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.texts = append(s.texts, TextInput{Text: text, EndOfTurn: endOfTurn})
	return nil
}

// SendAudio implements live.SessionHandle.
func (s *Session) SendAudio(chunk []byte, mimeType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := make([]byte, len(chunk))
	copy(c, chunk)
	s.audio = append(s.audio, AudioInput{Chunk: c, MimeType: mimeType})
	return nil
}

// Events implements live.SessionHandle.
func (s *Session) Events() <-chan live.Event { return s.events }

// Err implements live.SessionHandle.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close implements live.SessionHandle. The event stream ends on first call.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeCalls++
	if !s.closed {
		s.closed = true
		close(s.events)
	}
	return nil
}

// EmitAudio scripts an assistant audio chunk.
func (s *Session) EmitAudio(chunk []byte) { s.emit(live.Event{Audio: chunk}) }

// EmitText scripts an assistant text fragment.
func (s *Session) EmitText(text string) { s.emit(live.Event{Text: text}) }

// EmitTurnComplete scripts a turn boundary.
func (s *Session) EmitTurnComplete() { s.emit(live.Event{TurnComplete: true}) }

// End closes the event stream without marking the session closed by the
// consumer, simulating an upstream-initiated close.
func (s *Session) End() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.events)
	}
}

// SetErr scripts the terminal error reported by Err.
func (s *Session) SetErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func (s *Session) emit(ev live.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.events <- ev
}

// Texts returns the recorded SendText calls.
func (s *Session) Texts() []TextInput {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]TextInput, len(s.texts))
	copy(out, s.texts)
	return out
}

// Audio returns the recorded SendAudio calls.
func (s *Session) Audio() []AudioInput {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]AudioInput, len(s.audio))
	copy(out, s.audio)
	return out
}

// CloseCalls returns how many times Close was invoked.
func (s *Session) CloseCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeCalls
}

// Closed reports whether the session has ended.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
