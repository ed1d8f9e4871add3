package session

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/rjpio/multivox/internal/chat"
	"github.com/rjpio/multivox/internal/enrich"
	"github.com/rjpio/multivox/internal/vocab"
	"github.com/rjpio/multivox/pkg/audio"
	"github.com/rjpio/multivox/pkg/provider/tts"
)

// stepEnrichment drives step-by-step mode: there is no live upstream, so the
// tutor's replies come from one combined transcribe-and-respond call per
// learner turn.
//
// A turn closes on an explicit end-of-turn marker, or when the silence
// detector decides the learner has trailed off. The initialize frame closes a
// turn immediately so the tutor opens the conversation.
//
// Per closed turn the publish order is: learner transcription, tutor
// transcription, reply hints, and finally the synthesised tutor audio when
// the session modality is audio. The learner transcription is published only
// for turns that carried audio: a typed turn is already on screen verbatim,
// so echoing a transcription of it adds nothing.
type stepEnrichment struct {
	baseTask

	bus      *chat.Bus
	enricher enrich.Service
	speech   tts.Provider
	turns    *turnDetector
	words    vocab.Store
	practice chat.Language
	native   chat.Language
	modality string
	logger   *slog.Logger

	buf chat.MessageBuffer
}

func newStepEnrichment(bus *chat.Bus, enricher enrich.Service, speech tts.Provider,
	turns *turnDetector, words vocab.Store, practice, native chat.Language,
	modality string, logger *slog.Logger) *stepEnrichment {
	return &stepEnrichment{
		bus:      bus,
		enricher: enricher,
		speech:   speech,
		turns:    turns,
		words:    words,
		practice: practice,
		native:   native,
		modality: modality,
		logger:   logger,
	}
}

func (t *stepEnrichment) Name() string { return "step_enrichment" }

func (t *stepEnrichment) Start(context.Context, *errgroup.Group) {}

func (t *stepEnrichment) HandleMessage(ctx context.Context, msg *chat.Message) error {
	if !t.running() {
		return nil
	}
	if msg.Role != chat.RoleUser || msg.Kind.IsDerived() {
		return nil
	}

	endOfTurn := msg.EndOfTurn
	switch msg.Kind {
	case chat.KindInitialize:
		endOfTurn = true
	case chat.KindAudio:
		t.buf.AddAudio(msg.Audio)
	case chat.KindText:
		t.buf.AddText(msg.Text, msg.EndOfTurn)
	default:
		return nil
	}

	if !endOfTurn && msg.Kind == chat.KindAudio && t.turns != nil {
		ended, err := t.turns.turnEnded(t.buf.Audio())
		if err != nil {
			t.logger.Warn("session: silence detection failed", "err", err)
		} else {
			endOfTurn = ended
		}
	}
	if !endOfTurn {
		return nil
	}
	return t.processTurn(ctx)
}

func (t *stepEnrichment) processTurn(ctx context.Context) error {
	pcm, _ := t.buf.EndTurn()
	scenario, transcript := promptContext(t.bus.History())

	req := enrich.TranscribeAndHintRequest{
		Scenario: scenario,
		History:  transcript,
		Source:   t.practice,
		Target:   t.native,
	}
	if len(pcm) > 0 {
		req.PCM = pcm
		req.MimeType = audio.PCMMime(audio.ClientSampleRate)
	}

	resp, err := t.enricher.TranscribeAndHint(ctx, req)
	if err != nil {
		t.logger.Error("session: turn enrichment failed", "err", err)
		t.publish(chat.NewErrorMessage(chat.RoleAssistant, enrichmentFailureText))
		return nil
	}

	if len(pcm) > 0 {
		t.publish(&chat.Message{
			Kind:       chat.KindTranscription,
			Role:       chat.RoleUser,
			EndOfTurn:  true,
			SourceText: resp.Transcription,
		})
	}

	// Synthesis overlaps with publishing the text results; the clip itself is
	// published last so the client renders text before speech.
	audioDone := t.synthesize(ctx, resp.ResponseText)

	t.publish(&chat.Message{
		Kind:           chat.KindTranscription,
		Role:           chat.RoleAssistant,
		EndOfTurn:      true,
		SourceText:     resp.ResponseText,
		TranslatedText: resp.TranslatedText,
		Chunked:        resp.Chunked,
		Dictionary:     resp.Dictionary,
	})
	t.harvest(ctx, resp.Dictionary)
	t.publish(&chat.Message{
		Kind:  chat.KindHint,
		Role:  chat.RoleAssistant,
		Hints: resp.Hints,
	})

	if audioDone != nil {
		if clip := <-audioDone; clip != nil {
			t.publish(chat.NewAudioMessage(chat.RoleAssistant, clip.Data, clip.MimeType, true))
		}
	}
	return nil
}

// synthesize starts TTS for the tutor's reply in the background. It returns
// nil when the session has no audio reply to make: text modality, no
// configured provider, a voiceless practice language, or an empty reply.
func (t *stepEnrichment) synthesize(ctx context.Context, text string) <-chan *tts.Audio {
	if t.modality != ModalityAudio || t.speech == nil || !t.practice.HasVoice() || text == "" {
		return nil
	}
	done := make(chan *tts.Audio, 1)
	go func() {
		clip, err := t.speech.Synthesize(ctx, tts.Request{
			Text:         text,
			LanguageCode: t.practice.TTSLanguageCode,
			Voice:        t.practice.TTSVoiceName,
		})
		if err != nil {
			t.logger.Warn("session: speech synthesis failed", "err", err)
			done <- nil
			return
		}
		done <- clip
	}()
	return done
}

func (t *stepEnrichment) publish(msg *chat.Message) {
	if err := t.bus.Publish(msg); err != nil {
		t.logger.Debug("session: publish after close dropped", "kind", msg.Kind)
	}
}

func (t *stepEnrichment) harvest(ctx context.Context, dict map[string]chat.DictionaryEntry) {
	if t.words == nil || len(dict) == 0 {
		return
	}
	if err := vocab.Harvest(ctx, t.words, dict, t.practice.Abbreviation, ModeStepByStep); err != nil {
		t.logger.Warn("session: vocabulary harvest failed", "err", err)
	}
}
