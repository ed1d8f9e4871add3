// Package silero implements the vad.Detector interface using the Silero VAD
// ONNX model via github.com/streamer45/silero-vad-go.
//
// The ONNX runtime shared library must be available at load time; the model
// file path is supplied at construction.
package silero

import (
	"fmt"
	"sync"

	"github.com/streamer45/silero-vad-go/speech"

	"github.com/rjpio/multivox/pkg/audio"
	"github.com/rjpio/multivox/pkg/provider/vad"
)

// Compile-time assertion that Detector satisfies vad.Detector.
var _ vad.Detector = (*Detector)(nil)

const (
	// modelSampleRate is the only rate the Silero model accepts. Input at
	// other rates is resampled before detection.
	modelSampleRate = 16000

	defaultThreshold            = 0.5
	defaultMinSilenceDurationMs = 250
	defaultSpeechPadMs          = 30
)

// Option is a functional option for configuring a Detector.
type Option func(*Detector)

// WithThreshold sets the speech probability threshold in (0, 1).
func WithThreshold(t float32) Option {
	return func(d *Detector) { d.threshold = t }
}

// WithMinSilenceDurationMs sets the minimum silence gap (ms) that separates
// two speech segments.
func WithMinSilenceDurationMs(ms int) Option {
	return func(d *Detector) { d.minSilenceMs = ms }
}

// Detector implements vad.Detector with a single shared Silero detector.
// The underlying speech.Detector is stateful and not safe for concurrent
// use, so calls are serialised with a mutex; batch detection over buffered
// turns is infrequent enough that contention is not a concern.
type Detector struct {
	threshold    float32
	minSilenceMs int

	mu  sync.Mutex
	det *speech.Detector
}

// New loads the Silero model from modelPath and returns a ready Detector.
// The caller must call Close when the detector is no longer needed.
func New(modelPath string, opts ...Option) (*Detector, error) {
	if modelPath == "" {
		return nil, fmt.Errorf("silero: modelPath must not be empty")
	}

	d := &Detector{
		threshold:    defaultThreshold,
		minSilenceMs: defaultMinSilenceDurationMs,
	}
	for _, o := range opts {
		o(d)
	}

	det, err := speech.NewDetector(speech.DetectorConfig{
		ModelPath:            modelPath,
		SampleRate:           modelSampleRate,
		Threshold:            d.threshold,
		MinSilenceDurationMs: d.minSilenceMs,
		SpeechPadMs:          defaultSpeechPadMs,
	})
	if err != nil {
		return nil, fmt.Errorf("silero: create detector: %w", err)
	}
	d.det = det
	return d, nil
}

// DetectSpeech implements vad.Detector.
func (d *Detector) DetectSpeech(pcm []byte, sampleRate int) ([]vad.Segment, error) {
	if sampleRate != modelSampleRate {
		pcm = audio.ResampleMono(pcm, sampleRate, modelSampleRate)
	}
	samples := audio.PCMToFloat32(pcm)
	if len(samples) == 0 {
		return nil, nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	// Each buffer is analysed from a clean state.
	if err := d.det.Reset(); err != nil {
		return nil, fmt.Errorf("silero: reset: %w", err)
	}
	raw, err := d.det.Detect(samples)
	if err != nil {
		return nil, fmt.Errorf("silero: detect: %w", err)
	}

	return convertSegments(raw, sampleRate), nil
}

// convertSegments maps model-time segments (seconds at 16 kHz) back to
// sample offsets at the caller's rate. A zero SpeechEndAt means the segment
// was still open at the end of the buffer.
func convertSegments(raw []speech.Segment, sampleRate int) []vad.Segment {
	out := make([]vad.Segment, 0, len(raw))
	for _, seg := range raw {
		s := vad.Segment{
			StartSample: int(seg.SpeechStartAt * float64(sampleRate)),
		}
		if seg.SpeechEndAt > 0 {
			s.EndSample = int(seg.SpeechEndAt * float64(sampleRate))
		} else {
			s.EndSample = -1
		}
		out = append(out, s)
	}
	return out
}

// Close implements vad.Detector.
func (d *Detector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.det == nil {
		return nil
	}
	if err := d.det.Destroy(); err != nil {
		return fmt.Errorf("silero: destroy: %w", err)
	}
	d.det = nil
	return nil
}
