// Package whisperapi implements the asr.Provider interface using the OpenAI
// Whisper transcription API.
package whisperapi

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"

	"github.com/rjpio/multivox/pkg/audio"
	"github.com/rjpio/multivox/pkg/provider/asr"
)

// Compile-time assertion that Provider satisfies asr.Provider.
var _ asr.Provider = (*Provider)(nil)

const defaultModel = "whisper-1"

// Option is a functional option for Provider.
type Option func(*Provider)

// WithModel overrides the transcription model.
func WithModel(model string) Option {
	return func(p *Provider) { p.model = model }
}

// WithBaseURL overrides the default OpenAI API base URL.
func WithBaseURL(url string) Option {
	return func(p *Provider) { p.baseURL = url }
}

// Provider implements asr.Provider using the OpenAI API.
type Provider struct {
	client  oai.Client
	model   string
	baseURL string
}

// New constructs a Whisper API provider.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("whisperapi: apiKey must not be empty")
	}
	p := &Provider{model: defaultModel}
	for _, o := range opts {
		o(p)
	}

	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if p.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(p.baseURL))
	}
	p.client = oai.NewClient(reqOpts...)
	return p, nil
}

// Transcribe implements asr.Provider. The PCM utterance is wrapped in a WAV
// container before upload; the API rejects bare PCM.
func (p *Provider) Transcribe(ctx context.Context, req asr.Request) (string, error) {
	if len(req.PCM) == 0 {
		return "", nil
	}
	rate := req.SampleRate
	if rate <= 0 {
		rate = audio.ClientSampleRate
	}
	wav := audio.EncodeWAV(req.PCM, rate)

	params := oai.AudioTranscriptionNewParams{
		File:  oai.File(bytes.NewReader(wav), "audio.wav", "audio/wav"),
		Model: oai.AudioModel(p.model),
	}
	if req.Language != "" {
		params.Language = param.NewOpt(req.Language)
	}

	resp, err := p.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("whisperapi: transcription: %w", err)
	}
	return strings.TrimSpace(resp.Text), nil
}
