package resilience

import (
	"context"

	"github.com/rjpio/multivox/pkg/provider/llm"
)

// LLMFallback wraps multiple [llm.Provider] instances with failover. It
// implements llm.Provider itself, so enrichment and journal analysis can use
// it transparently.
type LLMFallback struct {
	group *FallbackGroup[llm.Provider]
}

// Compile-time assertion.
var _ llm.Provider = (*LLMFallback)(nil)

// NewLLMFallback creates an LLM failover group with primary as the first entry.
func NewLLMFallback(primary llm.Provider, primaryName string, cfg FallbackConfig) *LLMFallback {
	return &LLMFallback{group: NewFallbackGroup(primary, primaryName, cfg)}
}

// AddFallback appends a fallback LLM provider.
func (f *LLMFallback) AddFallback(name string, provider llm.Provider) {
	f.group.AddFallback(name, provider)
}

// Complete implements llm.Provider with failover.
func (f *LLMFallback) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	return ExecuteWithResult(f.group, func(p llm.Provider) (*llm.CompletionResponse, error) {
		return p.Complete(ctx, req)
	})
}
