package server

import (
	"net/http"
	"time"

	"github.com/coder/websocket"

	"github.com/rjpio/multivox/internal/chat"
	"github.com/rjpio/multivox/internal/session"
	"github.com/rjpio/multivox/internal/socket"
)

// handlePractice upgrades to a WebSocket and runs one practice session.
// Query params: practice_language, native_language, mode, modality. Language
// validation happens after the upgrade so the client sees a close code
// instead of a failed handshake.
func (s *Server) handlePractice(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	defaultMode, defaultModality, transcribeUser := s.practiceDefaults()
	mode := q.Get("mode")
	if mode == "" {
		mode = defaultMode
	}
	modality := q.Get("modality")
	if modality == "" {
		modality = defaultModality
	}

	sock, err := socket.Accept(w, r)
	if err != nil {
		s.logger.Warn("websocket accept failed", "err", err)
		return
	}

	practice, native, err := languagePair(q.Get("practice_language"), q.Get("native_language"))
	if err != nil {
		s.logger.Info("practice session rejected", "err", err)
		sock.Close(websocket.StatusPolicyViolation, "unsupported language")
		return
	}

	s.runSession(r, sock, mode, modality, transcribeUser, practice, native)
}

func (s *Server) runSession(r *http.Request, sock *socket.Socket, mode, modality string, transcribeUser bool, practice, native chat.Language) {
	ctx := r.Context()
	s.metrics.SessionStarted(ctx, mode)
	start := time.Now()

	s.logger.Info("practice session starting",
		"mode", mode,
		"modality", modality,
		"practice", practice.Abbreviation,
		"native", native.Abbreviation,
	)

	err := session.Run(ctx, sock, session.Config{
		Mode:                mode,
		Modality:            modality,
		Practice:            practice,
		Native:              native,
		Live:                s.cfg.Live,
		Enricher:            s.cfg.Enricher,
		TTS:                 s.cfg.TTS,
		VAD:                 s.cfg.VAD,
		Vocabulary:          s.cfg.Vocabulary,
		TranscribeUserAudio: transcribeUser,
		Logger:              s.logger,
	})
	s.metrics.SessionEnded(ctx, mode, time.Since(start))
	if err != nil {
		s.logger.Error("practice session failed", "mode", mode, "err", err)
	}
}
