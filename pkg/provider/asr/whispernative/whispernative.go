// Package whispernative implements the asr.Provider interface with the
// whisper.cpp CGO bindings. The whisper.cpp static library (libwhisper.a)
// and headers (whisper.h) must be available at link time via LIBRARY_PATH
// and C_INCLUDE_PATH environment variables.
package whispernative

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"github.com/rjpio/multivox/pkg/audio"
	"github.com/rjpio/multivox/pkg/provider/asr"
)

// Compile-time assertion that Provider satisfies asr.Provider.
var _ asr.Provider = (*Provider)(nil)

// whisper.cpp only accepts 16 kHz input.
const modelSampleRate = 16000

// Provider implements asr.Provider using whisper.cpp Go bindings (CGO),
// eliminating HTTP overhead entirely. The model is loaded once at startup
// and shared across all sessions; each Transcribe call gets its own context.
type Provider struct {
	model  whisperlib.Model
	logger *slog.Logger
}

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithLogger sets the logger used for non-fatal warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Provider) { p.logger = logger }
}

// New creates a Provider that loads the whisper.cpp model from the given
// file path. The caller must call Close when the provider is no longer
// needed.
func New(modelPath string, opts ...Option) (*Provider, error) {
	if modelPath == "" {
		return nil, errors.New("whispernative: modelPath must not be empty")
	}
	model, err := whisperlib.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("whispernative: load model %q: %w", modelPath, err)
	}

	p := &Provider{model: model, logger: slog.Default()}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Close releases the whisper model. Must be called when the provider is no
// longer needed.
func (p *Provider) Close() error {
	if p.model != nil {
		return p.model.Close()
	}
	return nil
}

// Transcribe implements asr.Provider. Each call creates a fresh whisper
// context from the shared model; contexts are not thread-safe but the model
// can be shared across goroutines.
func (p *Provider) Transcribe(ctx context.Context, req asr.Request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("whispernative: context already cancelled: %w", err)
	}
	if len(req.PCM) == 0 {
		return "", nil
	}

	rate := req.SampleRate
	if rate <= 0 {
		rate = audio.ClientSampleRate
	}
	samples := audio.PCMToFloat32(req.PCM)
	if rate != modelSampleRate {
		samples = audio.ResampleMono(samples, rate, modelSampleRate)
	}

	wctx, err := p.model.NewContext()
	if err != nil {
		return "", fmt.Errorf("whispernative: create context: %w", err)
	}

	if req.Language != "" {
		if err := wctx.SetLanguage(req.Language); err != nil {
			p.logger.Warn("whisper: failed to set language, using default",
				"language", req.Language, "error", err)
		}
	}

	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return "", fmt.Errorf("whispernative: process audio: %w", err)
	}

	var parts []string
	for {
		segment, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("whispernative: read segment: %w", err)
		}
		text := strings.TrimSpace(segment.Text)
		if text != "" {
			parts = append(parts, text)
		}
	}

	return strings.Join(parts, " "), nil
}
