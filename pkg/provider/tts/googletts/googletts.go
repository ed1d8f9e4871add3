// Package googletts implements the tts.Provider interface against the
// Google Cloud Text-to-Speech REST API.
//
// Requests use API-key authentication and MP3 output at a slightly reduced
// speaking rate, which suits language learners.
package googletts

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rjpio/multivox/pkg/provider/tts"
)

// Compile-time assertion that Provider satisfies tts.Provider.
var _ tts.Provider = (*Provider)(nil)

const (
	defaultBaseURL = "https://texttospeech.googleapis.com/v1"

	// speakingRate slows playback for learner comprehension.
	speakingRate = 0.8
)

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithBaseURL overrides the API base URL. Primarily used in tests.
func WithBaseURL(url string) Option {
	return func(p *Provider) { p.baseURL = url }
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) { p.httpClient = c }
}

// Provider implements tts.Provider using Google Cloud TTS.
type Provider struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// New creates a Google Cloud TTS provider with the given API key.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("googletts: apiKey must not be empty")
	}
	p := &Provider{
		apiKey:     apiKey,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// ── REST payload types ─────────────────────────────────────────────────────────

type synthesizeRequest struct {
	Input       synthesisInput  `json:"input"`
	Voice       voiceSelection  `json:"voice"`
	AudioConfig audioConfigSpec `json:"audioConfig"`
}

type synthesisInput struct {
	Text string `json:"text"`
}

type voiceSelection struct {
	LanguageCode string `json:"languageCode"`
	Name         string `json:"name,omitempty"`
}

type audioConfigSpec struct {
	AudioEncoding string  `json:"audioEncoding"`
	SpeakingRate  float64 `json:"speakingRate,omitempty"`
	Pitch         float64 `json:"pitch,omitempty"`
}

type synthesizeResponse struct {
	AudioContent string `json:"audioContent"` // base64-encoded
}

type errorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// Synthesize implements tts.Provider.
func (p *Provider) Synthesize(ctx context.Context, req tts.Request) (*tts.Audio, error) {
	if req.Text == "" {
		return nil, fmt.Errorf("googletts: text must not be empty")
	}
	if req.LanguageCode == "" {
		return nil, fmt.Errorf("googletts: languageCode must not be empty")
	}

	body, err := json.Marshal(synthesizeRequest{
		Input: synthesisInput{Text: req.Text},
		Voice: voiceSelection{LanguageCode: req.LanguageCode, Name: req.Voice},
		AudioConfig: audioConfigSpec{
			AudioEncoding: "MP3",
			SpeakingRate:  speakingRate,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("googletts: marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/text:synthesize?key=%s", p.baseURL, p.apiKey)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("googletts: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("googletts: request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("googletts: read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr errorResponse
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error.Message != "" {
			return nil, fmt.Errorf("googletts: synthesize: %s (HTTP %d)", apiErr.Error.Message, resp.StatusCode)
		}
		return nil, fmt.Errorf("googletts: synthesize: HTTP %d", resp.StatusCode)
	}

	var out synthesizeResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("googletts: decode response: %w", err)
	}
	audio, err := base64.StdEncoding.DecodeString(out.AudioContent)
	if err != nil {
		return nil, fmt.Errorf("googletts: decode audio: %w", err)
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("googletts: empty audio in response")
	}

	return &tts.Audio{Text: req.Text, Data: audio, MimeType: "audio/mp3"}, nil
}
