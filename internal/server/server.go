// Package server exposes the multivox HTTP surface: the study API (languages,
// scenarios, enrichment, journal, vocabulary), the practice WebSocket, health
// and metrics endpoints, and the static client bundle.
package server

import (
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rjpio/multivox/internal/enrich"
	"github.com/rjpio/multivox/internal/health"
	"github.com/rjpio/multivox/internal/journal"
	"github.com/rjpio/multivox/internal/observe"
	"github.com/rjpio/multivox/internal/scenario"
	"github.com/rjpio/multivox/internal/session"
	"github.com/rjpio/multivox/internal/vocab"
	"github.com/rjpio/multivox/pkg/provider/live"
	"github.com/rjpio/multivox/pkg/provider/tts"
	"github.com/rjpio/multivox/pkg/provider/vad"
)

// Config holds everything the HTTP surface depends on. Enricher and Catalogue
// are required; the rest degrade gracefully when absent.
type Config struct {
	// Catalogue serves /api/scenarios and /api/chapters.
	Catalogue *scenario.Catalogue

	// Enricher backs the enrichment endpoints and practice sessions.
	Enricher enrich.Service

	// Journal backs /api/journal/analyze. Optional; without it the endpoint
	// reports 503.
	Journal *journal.Analyzer

	// Vocabulary backs /api/vocabulary and collects terms from sessions.
	// Optional.
	Vocabulary vocab.Store

	// Live, TTS, and VAD are handed to practice sessions. All optional;
	// session validation decides what each mode actually needs.
	Live live.Provider
	TTS  tts.Provider
	VAD  vad.Detector

	// DefaultMode and DefaultModality apply when /api/practice omits the
	// query parameter.
	DefaultMode     string
	DefaultModality string

	// TranscribeUserAudio enables enrichment of learner turns in live mode.
	TranscribeUserAudio bool

	// StaticDir serves the built practice client. Empty disables it.
	StaticDir string

	Health  *health.Handler
	Metrics *observe.Metrics
	Logger  *slog.Logger
}

// Server is the multivox HTTP handler set. The scenario catalogue and
// practice defaults can be swapped at runtime by the config watcher.
type Server struct {
	cfg     Config
	logger  *slog.Logger
	metrics *observe.Metrics

	mu              sync.RWMutex
	catalogue       *scenario.Catalogue
	defaultMode     string
	defaultModality string
	transcribeUser  bool
}

// New validates cfg and returns a Server. Call [Server.Handler] to get the
// routed http.Handler.
func New(cfg Config) (*Server, error) {
	if cfg.Enricher == nil {
		return nil, errors.New("server: enricher is required")
	}
	if cfg.Catalogue == nil {
		return nil, errors.New("server: scenario catalogue is required")
	}
	if cfg.DefaultMode == "" {
		cfg.DefaultMode = session.ModeStepByStep
	}
	if cfg.DefaultModality == "" {
		cfg.DefaultModality = session.ModalityAudio
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}
	return &Server{
		cfg:             cfg,
		logger:          logger,
		metrics:         metrics,
		catalogue:       cfg.Catalogue,
		defaultMode:     cfg.DefaultMode,
		defaultModality: cfg.DefaultModality,
		transcribeUser:  cfg.TranscribeUserAudio,
	}, nil
}

// UpdateCatalogue swaps the scenario catalogue. In-flight requests keep the
// catalogue they started with.
func (s *Server) UpdateCatalogue(c *scenario.Catalogue) {
	if c == nil {
		return
	}
	s.mu.Lock()
	s.catalogue = c
	s.mu.Unlock()
}

// UpdatePracticeDefaults swaps the session defaults applied to new practice
// connections. Empty mode or modality keeps the current value.
func (s *Server) UpdatePracticeDefaults(mode, modality string, transcribeUser bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if mode != "" {
		s.defaultMode = mode
	}
	if modality != "" {
		s.defaultModality = modality
	}
	s.transcribeUser = transcribeUser
}

func (s *Server) scenarios() *scenario.Catalogue {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.catalogue
}

func (s *Server) practiceDefaults() (mode, modality string, transcribeUser bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.defaultMode, s.defaultModality, s.transcribeUser
}

// Handler builds the routed handler with request metrics applied to every
// endpoint.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/languages", s.handleLanguages)
	mux.HandleFunc("GET /api/scenarios", s.handleScenarios)
	mux.HandleFunc("GET /api/scenarios/{id}", s.handleScenario)
	mux.HandleFunc("GET /api/chapters", s.handleChapters)
	mux.HandleFunc("GET /api/chapters/{id}", s.handleChapter)
	mux.HandleFunc("POST /api/translate", s.handleTranslate)
	mux.HandleFunc("POST /api/transcribe", s.handleTranscribe)
	mux.HandleFunc("POST /api/hints", s.handleHints)
	mux.HandleFunc("POST /api/journal/analyze", s.handleJournalAnalyze)
	mux.HandleFunc("GET /api/vocabulary", s.handleVocabulary)
	mux.HandleFunc("GET /api/practice", s.handlePractice)

	if s.cfg.Health != nil {
		s.cfg.Health.Register(mux)
	}
	mux.Handle("GET /metrics", promhttp.Handler())

	if s.cfg.StaticDir != "" {
		mux.Handle("/", s.staticHandler())
	}

	return observe.Middleware(s.metrics)(mux)
}
