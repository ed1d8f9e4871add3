// Package mock provides a scriptable fake for the vad.Detector interface.
package mock

import (
	"sync"

	"github.com/rjpio/multivox/pkg/provider/vad"
)

// Compile-time assertion.
var _ vad.Detector = (*Detector)(nil)

// Call records one DetectSpeech invocation.
type Call struct {
	PCMLen     int
	SampleRate int
}

// Detector implements vad.Detector. DetectFunc scripts the result; when nil
// every call reports no speech.
type Detector struct {
	DetectFunc func(pcm []byte, sampleRate int) ([]vad.Segment, error)

	mu     sync.Mutex
	calls  []Call
	closed bool
}

// DetectSpeech implements vad.Detector.
func (d *Detector) DetectSpeech(pcm []byte, sampleRate int) ([]vad.Segment, error) {
	d.mu.Lock()
	d.calls = append(d.calls, Call{PCMLen: len(pcm), SampleRate: sampleRate})
	d.mu.Unlock()

	if d.DetectFunc != nil {
		return d.DetectFunc(pcm, sampleRate)
	}
	return nil, nil
}

// Close implements vad.Detector.
func (d *Detector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

// Calls returns the recorded invocations.
func (d *Detector) Calls() []Call {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Call, len(d.calls))
	copy(out, d.calls)
	return out
}

// Closed reports whether Close was called.
func (d *Detector) Closed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}
