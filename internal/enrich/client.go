package enrich

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/shared"

	"github.com/rjpio/multivox/internal/cache"
	"github.com/rjpio/multivox/internal/chat"
	"github.com/rjpio/multivox/pkg/audio"
	"github.com/rjpio/multivox/pkg/provider/asr"
	"github.com/rjpio/multivox/pkg/provider/llm"
)

// Compile-time assertion that Client satisfies Service.
var _ Service = (*Client)(nil)

const defaultAudioModel = "gpt-4o-audio-preview"

// ErrNoRecognizer is returned by Transcribe when the client was built
// without a speech recognition provider.
var ErrNoRecognizer = errors.New("enrich: no speech recognition provider configured")

// ErrNoAudioModel is returned by TranscribeAndHint when no audio-capable
// chat client was configured.
var ErrNoAudioModel = errors.New("enrich: no audio chat model configured")

// Option is a functional option for Client.
type Option func(*Client)

// WithRecognizer sets the speech recognition backend used by Transcribe.
func WithRecognizer(r asr.Provider) Option {
	return func(c *Client) { c.recognizer = r }
}

// WithAudioClient sets the OpenAI-compatible client and model used for the
// combined transcribe-and-hint call, which needs audio input support.
func WithAudioClient(client oai.Client, model string) Option {
	return func(c *Client) {
		c.audioClient = &client
		if model != "" {
			c.audioModel = model
		}
	}
}

// WithCache sets the result cache. Defaults to cache.Null.
func WithCache(store cache.Store) Option {
	return func(c *Client) { c.store = store }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithClock overrides the time source used in prompts.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// Client implements Service. Text-only enrichment goes through the llm
// provider; the combined step-by-step call goes through an audio-capable
// chat completions endpoint.
type Client struct {
	text       llm.Provider
	recognizer asr.Provider

	audioClient *oai.Client
	audioModel  string

	store  cache.Store
	logger *slog.Logger
	now    func() time.Time
}

// NewClient builds an enrichment client on top of the given text LLM.
func NewClient(text llm.Provider, opts ...Option) (*Client, error) {
	if text == nil {
		return nil, errors.New("enrich: text provider must not be nil")
	}
	c := &Client{
		text:       text,
		audioModel: defaultAudioModel,
		store:      cache.Null{},
		logger:     slog.Default(),
		now:        time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// Translate implements Service. Results are cached by language pair and
// input text.
func (c *Client) Translate(ctx context.Context, req TranslateRequest) (*TranslateResponse, error) {
	key := cache.Key("translate", req.Source.Abbreviation, req.Target.Abbreviation, req.Text)
	if data, err := c.store.Get(key); err == nil {
		var resp TranslateResponse
		if err := json.Unmarshal(data, &resp); err == nil {
			return &resp, nil
		}
		c.logger.Warn("discarding unreadable cache entry", "key", key)
	}

	vars := map[string]string{
		"source_language": req.Source.Name,
		"target_language": req.Target.Name,
	}
	completion, err := c.text.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: render(translationSystemPrompt, vars),
		Messages: []llm.Message{{
			Role:    "user",
			Content: render(translationPrompt, vars) + "\n<input>" + req.Text + "</input>",
		}},
	})
	if err != nil {
		return nil, fmt.Errorf("enrich: translate: %w", err)
	}

	var resp TranslateResponse
	if err := decodeJSON(completion.Content, &resp); err != nil {
		return nil, fmt.Errorf("enrich: translate: %w", err)
	}
	c.checkAlignment("translate", resp.SourceText, resp.Chunked, resp.Dictionary)

	if data, err := json.Marshal(&resp); err == nil {
		if err := c.store.Put(key, data); err != nil {
			c.logger.Warn("cache write failed", "key", key, "error", err)
		}
	}
	return &resp, nil
}

// Transcribe implements Service. The utterance is recognised first, then the
// transcription is translated and chunked with a second call.
func (c *Client) Transcribe(ctx context.Context, req TranscribeRequest) (*TranscribeResponse, error) {
	if c.recognizer == nil {
		return nil, ErrNoRecognizer
	}

	rate := audio.SampleRateFromMime(req.MimeType, audio.ClientSampleRate)
	text, err := c.recognizer.Transcribe(ctx, asr.Request{
		PCM:        req.PCM,
		SampleRate: rate,
		Language:   req.Source.Abbreviation,
	})
	if err != nil {
		return nil, fmt.Errorf("enrich: transcribe: %w", err)
	}
	if text == "" {
		return &TranscribeResponse{}, nil
	}

	translated, err := c.Translate(ctx, TranslateRequest{
		Text:   text,
		Source: req.Source,
		Target: req.Target,
	})
	if err != nil {
		return nil, err
	}

	return &TranscribeResponse{
		SourceText:     text,
		TranslatedText: translated.TranslatedText,
		Chunked:        translated.Chunked,
		Dictionary:     translated.Dictionary,
	}, nil
}

// Hints implements Service.
func (c *Client) Hints(ctx context.Context, req HintRequest) (*HintResponse, error) {
	system := render(hintPrompt, map[string]string{
		"source_language": req.Source.Name,
		"target_language": req.Target.Name,
		"scenario":        req.Scenario,
	})
	completion, err := c.text.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: system,
		Messages:     []llm.Message{{Role: "user", Content: req.History}},
	})
	if err != nil {
		return nil, fmt.Errorf("enrich: hints: %w", err)
	}

	var resp HintResponse
	if err := decodeJSON(completion.Content, &resp); err != nil {
		return nil, fmt.Errorf("enrich: hints: %w", err)
	}
	return &resp, nil
}

// TranscribeAndHint implements Service. Scenario, history, and the learner
// utterance go out in one request so the reply and hints stay consistent
// with what was actually said.
func (c *Client) TranscribeAndHint(ctx context.Context, req TranscribeAndHintRequest) (*TranscribeAndHintResponse, error) {
	if c.audioClient == nil {
		return nil, ErrNoAudioModel
	}

	system := LiveInstructions(req.Source, c.now()) + render(transcribeAndHintPrompt, map[string]string{
		"source_language": req.Source.Name,
		"target_language": req.Target.Name,
		"today":           c.now().Format("2006-01-02"),
	})

	parts := []oai.ChatCompletionContentPartUnionParam{
		oai.TextContentPart("<SCENARIO>\n" + req.Scenario + "\n</SCENARIO>"),
		oai.TextContentPart("<HISTORY>\n" + req.History + "\n</HISTORY>"),
	}
	if len(req.PCM) > 0 {
		rate := audio.SampleRateFromMime(req.MimeType, audio.ClientSampleRate)
		wav := audio.EncodeWAV(req.PCM, rate)
		parts = append(parts, oai.InputAudioContentPart(oai.ChatCompletionContentPartInputAudioInputAudioParam{
			Data:   base64.StdEncoding.EncodeToString(wav),
			Format: "wav",
		}))
	}

	completion, err := c.audioClient.Chat.Completions.New(ctx, oai.ChatCompletionNewParams{
		Model: shared.ChatModel(c.audioModel),
		Messages: []oai.ChatCompletionMessageParamUnion{
			oai.SystemMessage(system),
			oai.UserMessage(parts),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("enrich: transcribe and hint: %w", err)
	}
	if len(completion.Choices) == 0 {
		return nil, errors.New("enrich: transcribe and hint: empty choices in response")
	}

	var resp TranscribeAndHintResponse
	if err := decodeJSON(completion.Choices[0].Message.Content, &resp); err != nil {
		return nil, fmt.Errorf("enrich: transcribe and hint: %w", err)
	}
	c.checkAlignment("transcribe_and_hint", resp.ResponseText, resp.Chunked, resp.Dictionary)
	return &resp, nil
}

func (c *Client) checkAlignment(op, source string, chunked []string, dict map[string]chat.DictionaryEntry) {
	if err := ValidateChunks(source, chunked); err != nil {
		c.logger.Warn("chunked text diverges from source", "op", op, "error", err)
	}
	if missing := UncoveredChunks(chunked, dict); len(missing) > 0 {
		c.logger.Debug("chunks without dictionary entries", "op", op, "chunks", missing)
	}
}

// decodeJSON unmarshals a model reply, tolerating a markdown code fence
// around the JSON body.
func decodeJSON(content string, v any) error {
	trimmed := strings.TrimSpace(content)
	if after, ok := strings.CutPrefix(trimmed, "```json"); ok {
		trimmed = after
	} else if after, ok := strings.CutPrefix(trimmed, "```"); ok {
		trimmed = after
	}
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")

	if err := json.Unmarshal([]byte(trimmed), v); err != nil {
		snippet := trimmed
		if len(snippet) > 200 {
			snippet = snippet[:200] + "..."
		}
		return fmt.Errorf("parse model response %q: %w", snippet, err)
	}
	return nil
}
