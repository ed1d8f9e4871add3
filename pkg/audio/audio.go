// Package audio provides small PCM utilities shared by the multivox
// pipeline: WAV containering, mime-type sample-rate extraction, and
// conversions between raw 16-bit PCM and float32 samples.
//
// All functions assume mono, 16-bit little-endian signed PCM unless stated
// otherwise. That matches both the client capture format (16 kHz) and the
// upstream synthesis format (24 kHz).
package audio

import (
	"encoding/binary"
	"strconv"
	"strings"
)

const (
	// ClientSampleRate is the capture rate of audio arriving from the client.
	ClientSampleRate = 16000

	// ServerSampleRate is the rate of audio produced by the upstream model.
	ServerSampleRate = 24000

	bytesPerSample = 2
)

// SampleRateFromMime extracts the sample rate from a mime type of the form
// "audio/pcm;rate=16000". It returns def when the mime type carries no
// parseable rate parameter.
func SampleRateFromMime(mime string, def int) int {
	_, params, ok := strings.Cut(mime, ";")
	if !ok {
		return def
	}
	for part := range strings.SplitSeq(params, ";") {
		key, val, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok || key != "rate" {
			continue
		}
		rate, err := strconv.Atoi(val)
		if err != nil || rate <= 0 {
			return def
		}
		return rate
	}
	return def
}

// PCMMime returns the mime type describing raw mono 16-bit PCM at the given
// sample rate, e.g. "audio/pcm;rate=24000".
func PCMMime(sampleRate int) string {
	return "audio/pcm;rate=" + strconv.Itoa(sampleRate)
}

// EncodeWAV wraps raw mono 16-bit PCM in a RIFF/WAVE container with the
// declared sample rate. Services that reject bare PCM (Whisper, audio-capable
// chat models) receive their input through this.
func EncodeWAV(pcm []byte, sampleRate int) []byte {
	const headerSize = 44
	dataSize := len(pcm)
	byteRate := sampleRate * bytesPerSample

	buf := make([]byte, headerSize+dataSize)
	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+dataSize))
	copy(buf[8:12], "WAVE")
	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16) // PCM fmt chunk size
	binary.LittleEndian.PutUint16(buf[20:22], 1)  // PCM format
	binary.LittleEndian.PutUint16(buf[22:24], 1)  // mono
	binary.LittleEndian.PutUint32(buf[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(buf[32:34], bytesPerSample) // block align
	binary.LittleEndian.PutUint16(buf[34:36], 16)             // bits per sample
	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataSize))
	copy(buf[headerSize:], pcm)
	return buf
}

// PCMToFloat32 converts 16-bit little-endian signed PCM to normalised
// float32 samples in [-1, 1]. A trailing odd byte is ignored.
func PCMToFloat32(pcm []byte) []float32 {
	n := len(pcm) / bytesPerSample
	samples := make([]float32, n)
	for i := range n {
		s := int16(binary.LittleEndian.Uint16(pcm[i*bytesPerSample:]))
		samples[i] = float32(s) / 32768.0
	}
	return samples
}

// Float32ToPCM converts normalised float32 samples to 16-bit little-endian
// signed PCM, clamping out-of-range values.
func Float32ToPCM(samples []float32) []byte {
	pcm := make([]byte, len(samples)*bytesPerSample)
	for i, f := range samples {
		if f > 1 {
			f = 1
		} else if f < -1 {
			f = -1
		}
		binary.LittleEndian.PutUint16(pcm[i*bytesPerSample:], uint16(int16(f*32767)))
	}
	return pcm
}

// SampleCount returns the number of 16-bit mono samples in pcm.
func SampleCount(pcm []byte) int {
	return len(pcm) / bytesPerSample
}

// DurationMs returns the duration in milliseconds of mono 16-bit PCM at the
// given sample rate.
func DurationMs(pcm []byte, sampleRate int) int {
	if sampleRate <= 0 {
		return 0
	}
	return SampleCount(pcm) * 1000 / sampleRate
}

// ResampleMono converts mono 16-bit PCM between sample rates using linear
// interpolation. Sufficient for speech audio fed to VAD and ASR; not meant
// for playback-quality conversion.
func ResampleMono(pcm []byte, fromRate, toRate int) []byte {
	if fromRate == toRate || fromRate <= 0 || toRate <= 0 {
		return pcm
	}
	in := PCMToFloat32(pcm)
	if len(in) == 0 {
		return nil
	}

	outLen := int(int64(len(in)) * int64(toRate) / int64(fromRate))
	out := make([]float32, outLen)
	ratio := float64(fromRate) / float64(toRate)
	for i := range outLen {
		pos := float64(i) * ratio
		idx := int(pos)
		if idx >= len(in)-1 {
			out[i] = in[len(in)-1]
			continue
		}
		frac := float32(pos - float64(idx))
		out[i] = in[idx]*(1-frac) + in[idx+1]*frac
	}
	return Float32ToPCM(out)
}
