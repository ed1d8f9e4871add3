// Package mock provides a scriptable fake for the llm.Provider interface.
package mock

import (
	"context"
	"sync"

	"github.com/rjpio/multivox/pkg/provider/llm"
)

// Compile-time assertion.
var _ llm.Provider = (*Provider)(nil)

// Provider implements llm.Provider. CompleteFunc scripts the result; when
// nil an empty response is returned.
type Provider struct {
	CompleteFunc func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error)

	mu    sync.Mutex
	calls []llm.CompletionRequest
}

// Complete implements llm.Provider.
func (p *Provider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	p.mu.Lock()
	p.calls = append(p.calls, req)
	p.mu.Unlock()

	if p.CompleteFunc != nil {
		return p.CompleteFunc(ctx, req)
	}
	return &llm.CompletionResponse{}, nil
}

// Calls returns the recorded completion requests.
func (p *Provider) Calls() []llm.CompletionRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]llm.CompletionRequest, len(p.calls))
	copy(out, p.calls)
	return out
}
