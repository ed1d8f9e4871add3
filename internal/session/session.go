// Package session orchestrates one practice conversation: a client WebSocket
// on one side, model providers on the other, and the message bus in between.
//
// Every moving part is a [Task]: a bus subscriber with an optional
// long-running producer loop. The orchestrator wires the mode's task set to
// the bus in a fixed order, runs until any producer exits, then tears the
// session down and closes the socket with a code describing why.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/coder/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/rjpio/multivox/internal/chat"
	"github.com/rjpio/multivox/internal/enrich"
	"github.com/rjpio/multivox/internal/socket"
	"github.com/rjpio/multivox/internal/vocab"
	"github.com/rjpio/multivox/pkg/audio"
	"github.com/rjpio/multivox/pkg/provider/live"
	"github.com/rjpio/multivox/pkg/provider/tts"
	"github.com/rjpio/multivox/pkg/provider/vad"
)

// Session modes. Live mode streams through an upstream bidirectional model;
// step-by-step mode builds each tutor reply from one enrichment call.
const (
	ModeLive       = "live"
	ModeStepByStep = "step_by_step"
)

// Reply modalities.
const (
	ModalityAudio = "audio"
	ModalityText  = "text"
)

const (
	// connectTimeout bounds the upstream dial at session start.
	connectTimeout = 5 * time.Second

	// teardownBudget bounds each teardown stage: upstream close, bus drain,
	// and task shutdown.
	teardownBudget = time.Second

	// defaultVoice is the upstream voice used for live audio sessions.
	defaultVoice = "Aoede"
)

// Config carries everything a session needs beyond its socket.
type Config struct {
	// Mode is [ModeLive] or [ModeStepByStep].
	Mode string

	// Modality is [ModalityAudio] or [ModalityText].
	Modality string

	// Practice is the language being learned; Native is the learner's own.
	Practice chat.Language
	Native   chat.Language

	// Live opens upstream sessions. Required in live mode.
	Live live.Provider

	// Enricher produces transcriptions, translations, and hints. Required.
	Enricher enrich.Service

	// TTS voices the tutor's replies in step-by-step audio sessions.
	// Optional; without it replies stay text-only.
	TTS tts.Provider

	// VAD closes step-by-step turns on trailing silence. Optional; without
	// it only explicit end-of-turn markers close a turn.
	VAD vad.Detector

	// Vocabulary collects dictionary terms from enriched turns. Optional.
	Vocabulary vocab.Store

	// TranscribeUserAudio enables enrichment of the learner's own turns in
	// live mode.
	TranscribeUserAudio bool

	Logger *slog.Logger
	Now    func() time.Time
}

func (c *Config) validate() error {
	switch c.Mode {
	case ModeLive:
		if c.Live == nil {
			return errors.New("session: live mode requires a live provider")
		}
	case ModeStepByStep:
	default:
		return fmt.Errorf("session: unknown mode %q", c.Mode)
	}
	switch c.Modality {
	case ModalityAudio, ModalityText:
	default:
		return fmt.Errorf("session: unknown modality %q", c.Modality)
	}
	if c.Enricher == nil {
		return errors.New("session: enricher is required")
	}
	return nil
}

// Run mediates one conversation over sock until the client disconnects, the
// upstream ends, or something breaks. It always closes the socket before
// returning; the close code reflects the outcome (1000 normal, 1008 protocol
// violation, 1011 internal error). The returned error is nil for clean
// endings.
func Run(ctx context.Context, sock *socket.Socket, cfg Config) error {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	if err := cfg.validate(); err != nil {
		sock.Close(websocket.StatusInternalError, "session misconfigured")
		return err
	}

	sessionCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	bus := chat.NewBus(sessionCtx, logger)

	var (
		tasks    []Task
		upstream live.SessionHandle
	)
	switch cfg.Mode {
	case ModeLive:
		connectCtx, cancelConnect := context.WithTimeout(ctx, connectTimeout)
		handle, err := cfg.Live.Connect(connectCtx, live.SessionConfig{
			Modality:     cfg.Modality,
			Voice:        defaultVoice,
			Instructions: enrich.LiveInstructions(cfg.Practice, now()),
		})
		cancelConnect()
		if err != nil {
			sock.Close(websocket.StatusInternalError, "upstream connect failed")
			return fmt.Errorf("session: connect upstream: %w", err)
		}
		upstream = handle
		tasks = []Task{
			newUserReader(sock, bus, logger),
			newUserWriter(sock, logger),
			newUpstreamReader(upstream, bus, logger),
			newUpstreamWriter(upstream, logger),
			newBulkEnrichment(bus, cfg.Enricher, cfg.Vocabulary,
				cfg.Practice, cfg.Native, cfg.TranscribeUserAudio, logger),
		}
	case ModeStepByStep:
		var turns *turnDetector
		if cfg.VAD != nil {
			turns = &turnDetector{detector: cfg.VAD, sampleRate: audio.ClientSampleRate}
		}
		tasks = []Task{
			newUserReader(sock, bus, logger),
			newUserWriter(sock, logger),
			newStepEnrichment(bus, cfg.Enricher, cfg.TTS, turns, cfg.Vocabulary,
				cfg.Practice, cfg.Native, cfg.Modality, logger),
		}
	}

	g, gctx := errgroup.WithContext(sessionCtx)
	for _, t := range tasks {
		bus.Subscribe(t)
	}
	for _, t := range tasks {
		t.Start(gctx, g)
	}

	// Producer loops always exit with a cause, so the first completion of any
	// of them cancels gctx and wakes us here.
	<-gctx.Done()
	cause := context.Cause(gctx)

	for _, t := range tasks {
		t.Stop()
	}
	if upstream != nil {
		closeUpstream(upstream, logger)
	}
	cancel()
	bus.Close()
	drainCtx, cancelDrain := context.WithTimeout(context.Background(), teardownBudget)
	if err := bus.Drain(drainCtx); err != nil {
		logger.Warn("session: bus drain timed out")
	}
	cancelDrain()
	awaitTasks(g, logger)

	code, reason, err := closeDisposition(cause)
	sock.Close(code, reason)
	if err != nil {
		logger.Error("session: ended abnormally", "mode", cfg.Mode, "err", err)
	} else {
		logger.Info("session: ended", "mode", cfg.Mode, "messages", len(bus.History()))
	}
	return err
}

// closeDisposition maps the first task exit cause to a close code. Clean
// endings (client gone, upstream hung up, parent context cancelled) report no
// error.
func closeDisposition(cause error) (websocket.StatusCode, string, error) {
	switch {
	case cause == nil,
		errors.Is(cause, errClientGone),
		errors.Is(cause, errUpstreamClosed),
		errors.Is(cause, errStopped),
		errors.Is(cause, context.Canceled):
		return websocket.StatusNormalClosure, "", nil
	case errors.Is(cause, errProtocol):
		return websocket.StatusPolicyViolation, "protocol violation", cause
	default:
		return websocket.StatusInternalError, "internal error", cause
	}
}

// closeUpstream closes the live session, bounded by the teardown budget so a
// wedged provider cannot hold the socket open.
func closeUpstream(upstream live.SessionHandle, logger *slog.Logger) {
	done := make(chan struct{})
	go func() {
		if err := upstream.Close(); err != nil {
			logger.Warn("session: upstream close failed", "err", err)
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(teardownBudget):
		logger.Warn("session: upstream close timed out")
	}
}

// awaitTasks waits for the producer loops to finish, bounded by the teardown
// budget.
func awaitTasks(g *errgroup.Group, logger *slog.Logger) {
	done := make(chan struct{})
	go func() {
		_ = g.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(teardownBudget):
		logger.Warn("session: task shutdown timed out")
	}
}
