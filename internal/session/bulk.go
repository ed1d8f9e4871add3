package session

import (
	"context"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/rjpio/multivox/internal/chat"
	"github.com/rjpio/multivox/internal/enrich"
	"github.com/rjpio/multivox/internal/vocab"
	"github.com/rjpio/multivox/pkg/audio"
)

// enrichmentFailureText is shown to the learner when a single turn could not
// be enriched. The session itself keeps going.
const enrichmentFailureText = "Sorry, I couldn't process that turn."

// bulkEnrichment annotates completed turns in live mode. It buffers each
// role's audio and text between turn boundaries; when the assistant's turn
// closes it transcribes or translates the turn, publishes the transcription,
// and follows up with reply hints. User turns are only enriched when user
// transcription is enabled, and never receive hints.
type bulkEnrichment struct {
	baseTask

	bus      *chat.Bus
	enricher enrich.Service
	words    vocab.Store
	practice chat.Language
	native   chat.Language
	logger   *slog.Logger

	transcribeUser bool
	buffers        map[chat.Role]*chat.MessageBuffer
}

func newBulkEnrichment(bus *chat.Bus, enricher enrich.Service, words vocab.Store,
	practice, native chat.Language, transcribeUser bool, logger *slog.Logger) *bulkEnrichment {
	return &bulkEnrichment{
		bus:            bus,
		enricher:       enricher,
		words:          words,
		practice:       practice,
		native:         native,
		logger:         logger,
		transcribeUser: transcribeUser,
		buffers:        make(map[chat.Role]*chat.MessageBuffer),
	}
}

func (t *bulkEnrichment) Name() string { return "bulk_enrichment" }

func (t *bulkEnrichment) Start(context.Context, *errgroup.Group) {}

func (t *bulkEnrichment) HandleMessage(ctx context.Context, msg *chat.Message) error {
	if !t.running() {
		return nil
	}
	if msg.Kind.IsDerived() || msg.Kind == chat.KindInitialize {
		return nil
	}
	if msg.Role == chat.RoleUser && !t.transcribeUser {
		return nil
	}

	buf := t.buffer(msg.Role)
	switch msg.Kind {
	case chat.KindAudio:
		buf.AddAudio(msg.Audio)
		if msg.EndOfTurn {
			buf.MarkTurnComplete()
		}
	case chat.KindText:
		buf.AddText(msg.Text, msg.EndOfTurn)
	default:
		return nil
	}
	if !buf.TurnComplete() {
		return nil
	}
	return t.enrichTurn(ctx, msg.Role, buf)
}

func (t *bulkEnrichment) buffer(role chat.Role) *chat.MessageBuffer {
	buf, ok := t.buffers[role]
	if !ok {
		buf = &chat.MessageBuffer{}
		t.buffers[role] = buf
	}
	return buf
}

// enrichTurn drains one role's completed turn, publishes its transcription,
// and, for assistant turns, reply hints.
func (t *bulkEnrichment) enrichTurn(ctx context.Context, role chat.Role, buf *chat.MessageBuffer) error {
	pcm, text := buf.EndTurn()
	if len(pcm) == 0 && strings.TrimSpace(text) == "" {
		return nil
	}

	transcription, err := t.transcribeTurn(ctx, role, pcm, text)
	if err != nil {
		t.logger.Error("session: turn enrichment failed", "role", role, "err", err)
		t.publish(chat.NewErrorMessage(role, enrichmentFailureText))
		return nil
	}
	t.publish(transcription)
	t.harvest(ctx, transcription.Dictionary)

	if role != chat.RoleAssistant {
		return nil
	}

	scenario, transcript := promptContext(t.bus.History())
	hints, err := t.enricher.Hints(ctx, enrich.HintRequest{
		History:  transcript,
		Scenario: scenario,
		Source:   t.practice,
		Target:   t.native,
	})
	if err != nil {
		t.logger.Error("session: hint generation failed", "err", err)
		t.publish(chat.NewErrorMessage(role, enrichmentFailureText))
		return nil
	}
	t.publish(&chat.Message{
		Kind:  chat.KindHint,
		Role:  role,
		Hints: hints.Hints,
	})
	return nil
}

// transcribeTurn turns raw turn content into a transcription message. Audio
// turns go through speech recognition; text turns only need translation.
func (t *bulkEnrichment) transcribeTurn(ctx context.Context, role chat.Role, pcm []byte, text string) (*chat.Message, error) {
	msg := &chat.Message{Kind: chat.KindTranscription, Role: role, EndOfTurn: true}

	if len(pcm) > 0 {
		rate := audio.ClientSampleRate
		if role == chat.RoleAssistant {
			rate = audio.ServerSampleRate
		}
		resp, err := t.enricher.Transcribe(ctx, enrich.TranscribeRequest{
			PCM:      pcm,
			MimeType: audio.PCMMime(rate),
			Source:   t.practice,
			Target:   t.native,
		})
		if err != nil {
			return nil, err
		}
		msg.SourceText = resp.SourceText
		msg.TranslatedText = resp.TranslatedText
		msg.Chunked = resp.Chunked
		msg.Dictionary = resp.Dictionary
		return msg, nil
	}

	resp, err := t.enricher.Translate(ctx, enrich.TranslateRequest{
		Text:   text,
		Source: t.practice,
		Target: t.native,
	})
	if err != nil {
		return nil, err
	}
	msg.SourceText = resp.SourceText
	msg.TranslatedText = resp.TranslatedText
	msg.Chunked = resp.Chunked
	msg.Dictionary = resp.Dictionary
	return msg, nil
}

func (t *bulkEnrichment) publish(msg *chat.Message) {
	if err := t.bus.Publish(msg); err != nil {
		t.logger.Debug("session: publish after close dropped", "kind", msg.Kind)
	}
}

func (t *bulkEnrichment) harvest(ctx context.Context, dict map[string]chat.DictionaryEntry) {
	if t.words == nil || len(dict) == 0 {
		return
	}
	if err := vocab.Harvest(ctx, t.words, dict, t.practice.Abbreviation, ModeLive); err != nil {
		t.logger.Warn("session: vocabulary harvest failed", "err", err)
	}
}
