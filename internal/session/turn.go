package session

import (
	"fmt"

	"github.com/rjpio/multivox/pkg/audio"
	"github.com/rjpio/multivox/pkg/provider/vad"
)

// turnDetector decides when a stream of user audio without an explicit
// end-of-turn marker has trailed off into silence.
type turnDetector struct {
	detector   vad.Detector
	sampleRate int
}

// turnEnded reports whether the buffered utterance should be treated as
// complete: the buffer holds more than a second of audio and the last closed
// speech segment ended more than a second before the end of the buffer.
// Buffers with no speech at all keep accumulating; background noise alone
// never triggers a turn.
func (d *turnDetector) turnEnded(pcm []byte) (bool, error) {
	total := audio.SampleCount(pcm)
	if total <= d.sampleRate {
		return false, nil
	}

	segments, err := d.detector.DetectSpeech(pcm, d.sampleRate)
	if err != nil {
		return false, fmt.Errorf("session: detect speech: %w", err)
	}

	lastEnd := -1
	for _, seg := range segments {
		if seg.EndSample < 0 {
			// Speech still running at the end of the buffer.
			return false, nil
		}
		if seg.EndSample > lastEnd {
			lastEnd = seg.EndSample
		}
	}
	if lastEnd < 0 {
		return false, nil
	}
	return lastEnd < total-d.sampleRate, nil
}
