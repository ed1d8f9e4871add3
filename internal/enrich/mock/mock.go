// Package mock provides a scriptable fake for the enrich.Service interface.
package mock

import (
	"context"
	"sync"

	"github.com/rjpio/multivox/internal/enrich"
)

// Compile-time assertion.
var _ enrich.Service = (*Service)(nil)

// Service implements enrich.Service. Each XxxFunc scripts the corresponding
// operation; when nil an empty response is returned. All calls are recorded.
type Service struct {
	TranslateFunc         func(ctx context.Context, req enrich.TranslateRequest) (*enrich.TranslateResponse, error)
	TranscribeFunc        func(ctx context.Context, req enrich.TranscribeRequest) (*enrich.TranscribeResponse, error)
	HintsFunc             func(ctx context.Context, req enrich.HintRequest) (*enrich.HintResponse, error)
	TranscribeAndHintFunc func(ctx context.Context, req enrich.TranscribeAndHintRequest) (*enrich.TranscribeAndHintResponse, error)

	mu                     sync.Mutex
	translateCalls         []enrich.TranslateRequest
	transcribeCalls        []enrich.TranscribeRequest
	hintCalls              []enrich.HintRequest
	transcribeAndHintCalls []enrich.TranscribeAndHintRequest
}

// Translate implements enrich.Service.
func (s *Service) Translate(ctx context.Context, req enrich.TranslateRequest) (*enrich.TranslateResponse, error) {
	s.mu.Lock()
	s.translateCalls = append(s.translateCalls, req)
	s.mu.Unlock()

	if s.TranslateFunc != nil {
		return s.TranslateFunc(ctx, req)
	}
	return &enrich.TranslateResponse{SourceText: req.Text}, nil
}

// Transcribe implements enrich.Service.
func (s *Service) Transcribe(ctx context.Context, req enrich.TranscribeRequest) (*enrich.TranscribeResponse, error) {
	s.mu.Lock()
	s.transcribeCalls = append(s.transcribeCalls, req)
	s.mu.Unlock()

	if s.TranscribeFunc != nil {
		return s.TranscribeFunc(ctx, req)
	}
	return &enrich.TranscribeResponse{}, nil
}

// Hints implements enrich.Service.
func (s *Service) Hints(ctx context.Context, req enrich.HintRequest) (*enrich.HintResponse, error) {
	s.mu.Lock()
	s.hintCalls = append(s.hintCalls, req)
	s.mu.Unlock()

	if s.HintsFunc != nil {
		return s.HintsFunc(ctx, req)
	}
	return &enrich.HintResponse{}, nil
}

// TranscribeAndHint implements enrich.Service.
func (s *Service) TranscribeAndHint(ctx context.Context, req enrich.TranscribeAndHintRequest) (*enrich.TranscribeAndHintResponse, error) {
	s.mu.Lock()
	s.transcribeAndHintCalls = append(s.transcribeAndHintCalls, req)
	s.mu.Unlock()

	if s.TranscribeAndHintFunc != nil {
		return s.TranscribeAndHintFunc(ctx, req)
	}
	return &enrich.TranscribeAndHintResponse{}, nil
}

// TranslateCalls returns the recorded Translate requests.
func (s *Service) TranslateCalls() []enrich.TranslateRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]enrich.TranslateRequest, len(s.translateCalls))
	copy(out, s.translateCalls)
	return out
}

// TranscribeCalls returns the recorded Transcribe requests.
func (s *Service) TranscribeCalls() []enrich.TranscribeRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]enrich.TranscribeRequest, len(s.transcribeCalls))
	copy(out, s.transcribeCalls)
	return out
}

// HintCalls returns the recorded Hints requests.
func (s *Service) HintCalls() []enrich.HintRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]enrich.HintRequest, len(s.hintCalls))
	copy(out, s.hintCalls)
	return out
}

// TranscribeAndHintCalls returns the recorded TranscribeAndHint requests.
func (s *Service) TranscribeAndHintCalls() []enrich.TranscribeAndHintRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]enrich.TranscribeAndHintRequest, len(s.transcribeAndHintCalls))
	copy(out, s.transcribeAndHintCalls)
	return out
}
