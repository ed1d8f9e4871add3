package resilience

import (
	"context"

	"github.com/rjpio/multivox/pkg/provider/tts"
)

// TTSFallback wraps multiple [tts.Provider] instances with failover. It
// implements tts.Provider itself.
type TTSFallback struct {
	group *FallbackGroup[tts.Provider]
}

// Compile-time assertion.
var _ tts.Provider = (*TTSFallback)(nil)

// NewTTSFallback creates a synthesis failover group with primary as the first
// entry.
func NewTTSFallback(primary tts.Provider, primaryName string, cfg FallbackConfig) *TTSFallback {
	return &TTSFallback{group: NewFallbackGroup(primary, primaryName, cfg)}
}

// AddFallback appends a fallback synthesis provider.
func (f *TTSFallback) AddFallback(name string, provider tts.Provider) {
	f.group.AddFallback(name, provider)
}

// Synthesize implements tts.Provider with failover.
func (f *TTSFallback) Synthesize(ctx context.Context, req tts.Request) (*tts.Audio, error) {
	return ExecuteWithResult(f.group, func(p tts.Provider) (*tts.Audio, error) {
		return p.Synthesize(ctx, req)
	})
}
