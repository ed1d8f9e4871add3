package resilience

import (
	"context"

	"github.com/rjpio/multivox/pkg/provider/asr"
)

// ASRFallback wraps multiple [asr.Provider] instances with failover, e.g. the
// Whisper API backed by a local whisper.cpp model. It implements asr.Provider
// itself.
type ASRFallback struct {
	group *FallbackGroup[asr.Provider]
}

// Compile-time assertion.
var _ asr.Provider = (*ASRFallback)(nil)

// NewASRFallback creates a speech recognition failover group with primary as
// the first entry.
func NewASRFallback(primary asr.Provider, primaryName string, cfg FallbackConfig) *ASRFallback {
	return &ASRFallback{group: NewFallbackGroup(primary, primaryName, cfg)}
}

// AddFallback appends a fallback recognition provider.
func (f *ASRFallback) AddFallback(name string, provider asr.Provider) {
	f.group.AddFallback(name, provider)
}

// Transcribe implements asr.Provider with failover.
func (f *ASRFallback) Transcribe(ctx context.Context, req asr.Request) (string, error) {
	return ExecuteWithResult(f.group, func(p asr.Provider) (string, error) {
		return p.Transcribe(ctx, req)
	})
}
