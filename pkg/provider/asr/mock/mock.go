// Package mock provides a scriptable fake for the asr.Provider interface.
package mock

import (
	"context"
	"sync"

	"github.com/rjpio/multivox/pkg/provider/asr"
)

// Compile-time assertion.
var _ asr.Provider = (*Provider)(nil)

// Provider implements asr.Provider. TranscribeFunc scripts the result; when
// nil an empty transcription is returned.
type Provider struct {
	TranscribeFunc func(ctx context.Context, req asr.Request) (string, error)

	mu    sync.Mutex
	calls []asr.Request
}

// Transcribe implements asr.Provider.
func (p *Provider) Transcribe(ctx context.Context, req asr.Request) (string, error) {
	p.mu.Lock()
	p.calls = append(p.calls, req)
	p.mu.Unlock()

	if p.TranscribeFunc != nil {
		return p.TranscribeFunc(ctx, req)
	}
	return "", nil
}

// Calls returns the recorded transcription requests.
func (p *Provider) Calls() []asr.Request {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]asr.Request, len(p.calls))
	copy(out, p.calls)
	return out
}
