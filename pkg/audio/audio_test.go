package audio

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func TestSampleRateFromMime(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		mime string
		def  int
		want int
	}{
		{"pcm with rate", "audio/pcm;rate=16000", 8000, 16000},
		{"pcm server rate", "audio/pcm;rate=24000", 8000, 24000},
		{"no params", "audio/pcm", 16000, 16000},
		{"unrelated param", "audio/pcm;channels=1", 16000, 16000},
		{"rate after other param", "audio/pcm;channels=1;rate=22050", 8000, 22050},
		{"garbage rate", "audio/pcm;rate=abc", 16000, 16000},
		{"negative rate", "audio/pcm;rate=-1", 16000, 16000},
		{"mp3", "audio/mp3", 24000, 24000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := SampleRateFromMime(tt.mime, tt.def); got != tt.want {
				t.Errorf("SampleRateFromMime(%q) = %d, want %d", tt.mime, got, tt.want)
			}
		})
	}
}

func TestEncodeWAV(t *testing.T) {
	t.Parallel()

	pcm := make([]byte, 3200) // 100 ms at 16 kHz
	wav := EncodeWAV(pcm, 16000)

	if len(wav) != 44+len(pcm) {
		t.Fatalf("wav length = %d, want %d", len(wav), 44+len(pcm))
	}
	if !bytes.Equal(wav[0:4], []byte("RIFF")) || !bytes.Equal(wav[8:12], []byte("WAVE")) {
		t.Errorf("missing RIFF/WAVE magic: %q %q", wav[0:4], wav[8:12])
	}
	if ch := binary.LittleEndian.Uint16(wav[22:24]); ch != 1 {
		t.Errorf("channels = %d, want 1", ch)
	}
	if rate := binary.LittleEndian.Uint32(wav[24:28]); rate != 16000 {
		t.Errorf("sample rate = %d, want 16000", rate)
	}
	if bits := binary.LittleEndian.Uint16(wav[34:36]); bits != 16 {
		t.Errorf("bits per sample = %d, want 16", bits)
	}
	if size := binary.LittleEndian.Uint32(wav[40:44]); int(size) != len(pcm) {
		t.Errorf("data size = %d, want %d", size, len(pcm))
	}
}

func TestPCMFloat32RoundTrip(t *testing.T) {
	t.Parallel()

	pcm := make([]byte, 8)
	binary.LittleEndian.PutUint16(pcm[0:], uint16(int16(0)))
	binary.LittleEndian.PutUint16(pcm[2:], uint16(int16(16384)))
	neg := int16(-16384)
	binary.LittleEndian.PutUint16(pcm[4:], uint16(neg))
	binary.LittleEndian.PutUint16(pcm[6:], uint16(int16(32767)))

	samples := PCMToFloat32(pcm)
	if len(samples) != 4 {
		t.Fatalf("sample count = %d, want 4", len(samples))
	}
	if samples[0] != 0 {
		t.Errorf("samples[0] = %f, want 0", samples[0])
	}
	if samples[1] < 0.49 || samples[1] > 0.51 {
		t.Errorf("samples[1] = %f, want ~0.5", samples[1])
	}
	if samples[2] > -0.49 || samples[2] < -0.51 {
		t.Errorf("samples[2] = %f, want ~-0.5", samples[2])
	}

	back := Float32ToPCM(samples)
	rt := PCMToFloat32(back)
	for i := range samples {
		diff := samples[i] - rt[i]
		if diff < 0 {
			diff = -diff
		}
		if diff > 0.001 {
			t.Errorf("round trip sample %d: %f vs %f", i, samples[i], rt[i])
		}
	}
}

func TestDurationMs(t *testing.T) {
	t.Parallel()

	// 1 second at 16 kHz mono 16-bit.
	pcm := make([]byte, 32000)
	if got := DurationMs(pcm, 16000); got != 1000 {
		t.Errorf("DurationMs = %d, want 1000", got)
	}
	if got := SampleCount(pcm); got != 16000 {
		t.Errorf("SampleCount = %d, want 16000", got)
	}
}

func TestResampleMono(t *testing.T) {
	t.Parallel()

	// 24 kHz → 16 kHz should shrink by 2/3.
	in := make([]byte, 2400*2)
	out := ResampleMono(in, 24000, 16000)
	if got, want := len(out)/2, 1600; got != want {
		t.Errorf("resampled sample count = %d, want %d", got, want)
	}

	// Same rate passes through untouched.
	if got := ResampleMono(in, 16000, 16000); len(got) != len(in) {
		t.Errorf("same-rate resample changed length: %d != %d", len(got), len(in))
	}
}
