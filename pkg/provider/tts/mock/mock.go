// Package mock provides a recording fake for the tts.Provider interface.
package mock

import (
	"context"
	"sync"

	"github.com/rjpio/multivox/pkg/provider/tts"
)

// Compile-time assertion.
var _ tts.Provider = (*Provider)(nil)

// Provider implements tts.Provider. SynthesizeFunc scripts the result; when
// nil a canned MP3 payload echoing the text is returned.
type Provider struct {
	SynthesizeFunc func(ctx context.Context, req tts.Request) (*tts.Audio, error)

	mu    sync.Mutex
	calls []tts.Request
}

// Synthesize implements tts.Provider.
func (p *Provider) Synthesize(ctx context.Context, req tts.Request) (*tts.Audio, error) {
	p.mu.Lock()
	p.calls = append(p.calls, req)
	p.mu.Unlock()

	if p.SynthesizeFunc != nil {
		return p.SynthesizeFunc(ctx, req)
	}
	return &tts.Audio{
		Text:     req.Text,
		Data:     []byte("mp3:" + req.Text),
		MimeType: "audio/mp3",
	}, nil
}

// Calls returns the recorded synthesis requests.
func (p *Provider) Calls() []tts.Request {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]tts.Request, len(p.calls))
	copy(out, p.calls)
	return out
}
