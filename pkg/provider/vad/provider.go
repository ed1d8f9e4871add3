// Package vad defines the Detector interface for voice activity detection.
//
// The session layer uses batch detection over an accumulated buffer to
// decide whether a user turn has trailed off into silence, rather than
// streaming frame-by-frame classification.
package vad

// Segment is one detected span of speech, in sample offsets relative to the
// start of the analysed buffer. An EndSample of -1 means the speech was
// still running at the end of the buffer.
type Segment struct {
	StartSample int
	EndSample   int
}

// Detector analyses a PCM buffer and reports speech segments.
//
// Implementations must be safe for concurrent use.
type Detector interface {
	// DetectSpeech runs detection over mono 16-bit little-endian PCM at the
	// given sample rate and returns the speech segments in order. An empty
	// slice means no speech was found.
	DetectSpeech(pcm []byte, sampleRate int) ([]Segment, error)

	// Close releases model resources.
	Close() error
}
