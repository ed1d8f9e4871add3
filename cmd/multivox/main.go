// Command multivox is the language practice server: it serves the study API,
// mediates practice conversations over WebSockets, and exposes health and
// metrics endpoints.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	anyllmlib "github.com/mozilla-ai/any-llm-go"
	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/rjpio/multivox/internal/cache"
	"github.com/rjpio/multivox/internal/config"
	"github.com/rjpio/multivox/internal/enrich"
	"github.com/rjpio/multivox/internal/health"
	"github.com/rjpio/multivox/internal/journal"
	"github.com/rjpio/multivox/internal/observe"
	"github.com/rjpio/multivox/internal/resilience"
	"github.com/rjpio/multivox/internal/scenario"
	"github.com/rjpio/multivox/internal/server"
	"github.com/rjpio/multivox/internal/vocab"
	"github.com/rjpio/multivox/pkg/provider/asr"
	"github.com/rjpio/multivox/pkg/provider/asr/whisperapi"
	"github.com/rjpio/multivox/pkg/provider/asr/whispernative"
	"github.com/rjpio/multivox/pkg/provider/live"
	geminilive "github.com/rjpio/multivox/pkg/provider/live/gemini"
	"github.com/rjpio/multivox/pkg/provider/llm"
	"github.com/rjpio/multivox/pkg/provider/llm/anyllm"
	"github.com/rjpio/multivox/pkg/provider/tts"
	"github.com/rjpio/multivox/pkg/provider/tts/googletts"
	"github.com/rjpio/multivox/pkg/provider/vad"
	"github.com/rjpio/multivox/pkg/provider/vad/silero"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "multivox: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "multivox: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger, logLevel := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("multivox starting",
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Observability ─────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceName: "multivox"})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	// ── Provider registry ─────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	providers, err := buildProviders(cfg, reg)
	if err != nil {
		slog.Error("failed to build providers", "err", err)
		return 1
	}

	// ── Vocabulary store ──────────────────────────────────────────────────────
	words, pool, err := buildVocabulary(ctx, cfg)
	if err != nil {
		slog.Error("failed to set up vocabulary store", "err", err)
		return 1
	}
	if pool != nil {
		defer pool.Close()
	}

	// ── Enrichment cache ──────────────────────────────────────────────────────
	var store cache.Store = cache.Null{}
	if cfg.Cache.Dir != "" {
		disk, err := cache.NewDisk(cfg.Cache.Dir)
		if err != nil {
			slog.Error("failed to open cache directory", "dir", cfg.Cache.Dir, "err", err)
			return 1
		}
		store = disk
		slog.Info("enrichment cache enabled", "dir", cfg.Cache.Dir)
	}

	// ── Enrichment client ─────────────────────────────────────────────────────
	enricher, err := buildEnricher(cfg, providers, store)
	if err != nil {
		slog.Error("failed to build enrichment client", "err", err)
		return 1
	}

	// ── Journal analyzer ──────────────────────────────────────────────────────
	analyzer, err := journal.NewAnalyzer(providers.LLM)
	if err != nil {
		slog.Error("failed to build journal analyzer", "err", err)
		return 1
	}

	// ── Scenario catalogue ────────────────────────────────────────────────────
	catalogue, err := loadCatalogue(cfg.Scenarios.Path)
	if err != nil {
		slog.Error("failed to load scenario catalogue", "path", cfg.Scenarios.Path, "err", err)
		return 1
	}

	// ── Health checkers ───────────────────────────────────────────────────────
	checkers := []health.Checker{}
	if pool != nil {
		checkers = append(checkers, health.Database("postgres", pool))
	}

	// ── HTTP server ───────────────────────────────────────────────────────────
	srv, err := server.New(server.Config{
		Catalogue:           catalogue,
		Enricher:            enricher,
		Journal:             analyzer,
		Vocabulary:          words,
		Live:                providers.Live,
		TTS:                 providers.TTS,
		VAD:                 providers.VAD,
		DefaultMode:         cfg.Practice.DefaultMode,
		DefaultModality:     cfg.Practice.DefaultModality,
		TranscribeUserAudio: cfg.Practice.TranscribeUserAudio,
		StaticDir:           cfg.Server.StaticDir,
		Health:              health.New(checkers...),
		Logger:              logger,
	})
	if err != nil {
		slog.Error("failed to build server", "err", err)
		return 1
	}

	// ── Config watcher ────────────────────────────────────────────────────────
	watcher, err := config.NewWatcher(*configPath, func(old, new *config.Config) {
		applyConfigChange(srv, logLevel, config.Diff(old, new))
	})
	if err != nil {
		slog.Warn("config watcher disabled", "err", err)
	} else {
		defer watcher.Stop()
	}

	printStartupSummary(cfg)

	addr := cfg.Server.ListenAddr
	if addr == "" {
		addr = ":8080"
	}
	httpSrv := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received, stopping…")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			slog.Warn("http shutdown error", "err", err)
		}
	}()

	slog.Info("server ready — press Ctrl+C to shut down", "addr", addr)

	if cfg.Server.TLS != nil {
		err = httpSrv.ListenAndServeTLS(cfg.Server.TLS.CertFile, cfg.Server.TLS.KeyFile)
	} else {
		err = httpSrv.ListenAndServe()
	}
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("serve error", "err", err)
		return 1
	}

	slog.Info("goodbye")
	return 0
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// Providers holds one interface value per provider slot. Nil means the
// provider is not configured.
type Providers struct {
	LLM  llm.Provider
	Live live.Provider
	ASR  asr.Provider
	TTS  tts.Provider
	VAD  vad.Detector
}

// registerBuiltinProviders wires all built-in provider factories into reg.
func registerBuiltinProviders(reg *config.Registry) {
	// ── LLM ───────────────────────────────────────────────────────────────────
	// openai, anthropic, gemini, deepseek, mistral, groq all share the same
	// pattern: optional APIKey + optional BaseURL.
	for _, providerName := range []string{
		"openai", "anthropic", "gemini", "deepseek", "mistral", "groq",
	} {
		reg.RegisterLLM(providerName, func(entry config.ProviderEntry) (llm.Provider, error) {
			var opts []anyllmlib.Option
			if entry.APIKey != "" {
				opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
			}
			if entry.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
			}
			return anyllm.New(providerName, entry.Model, opts...)
		})
	}

	// ollama is a local server; it uses BaseURL for the address, not an API key.
	reg.RegisterLLM("ollama", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []anyllmlib.Option
		if entry.BaseURL != "" {
			opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
		}
		return anyllm.New("ollama", entry.Model, opts...)
	})

	// ── Live ──────────────────────────────────────────────────────────────────

	reg.RegisterLive("gemini-live", func(entry config.ProviderEntry) (live.Provider, error) {
		var opts []geminilive.Option
		if entry.Model != "" {
			opts = append(opts, geminilive.WithModel(entry.Model))
		}
		if entry.BaseURL != "" {
			opts = append(opts, geminilive.WithBaseURL(entry.BaseURL))
		}
		return geminilive.New(entry.APIKey, opts...), nil
	})

	// ── ASR ───────────────────────────────────────────────────────────────────

	reg.RegisterASR("whisper", func(entry config.ProviderEntry) (asr.Provider, error) {
		var opts []whisperapi.Option
		if entry.Model != "" {
			opts = append(opts, whisperapi.WithModel(entry.Model))
		}
		if entry.BaseURL != "" {
			opts = append(opts, whisperapi.WithBaseURL(entry.BaseURL))
		}
		return whisperapi.New(entry.APIKey, opts...)
	})

	reg.RegisterASR("whisper-native", func(entry config.ProviderEntry) (asr.Provider, error) {
		modelPath := entry.Model
		if modelPath == "" {
			modelPath = optString(entry.Options, "model_path")
		}
		return whispernative.New(modelPath)
	})

	// ── TTS ───────────────────────────────────────────────────────────────────

	reg.RegisterTTS("google", func(entry config.ProviderEntry) (tts.Provider, error) {
		var opts []googletts.Option
		if entry.BaseURL != "" {
			opts = append(opts, googletts.WithBaseURL(entry.BaseURL))
		}
		return googletts.New(entry.APIKey, opts...)
	})

	// ── VAD ───────────────────────────────────────────────────────────────────

	reg.RegisterVAD("silero", func(entry config.ProviderEntry) (vad.Detector, error) {
		var opts []silero.Option
		if t, ok := optFloat(entry.Options, "threshold"); ok {
			opts = append(opts, silero.WithThreshold(float32(t)))
		}
		if ms, ok := optInt(entry.Options, "min_silence_ms"); ok {
			opts = append(opts, silero.WithMinSilenceDurationMs(ms))
		}
		return silero.New(entry.Model, opts...)
	})
}

// buildProviders instantiates all providers named in cfg using the registry.
func buildProviders(cfg *config.Config, reg *config.Registry) (*Providers, error) {
	ps := &Providers{}

	if name := cfg.Providers.LLM.Name; name != "" {
		p, err := reg.CreateLLM(cfg.Providers.LLM)
		if err != nil {
			return nil, fmt.Errorf("create llm provider %q: %w", name, err)
		}
		if entries := cfg.Providers.LLM.Fallbacks; len(entries) > 0 {
			group := resilience.NewLLMFallback(p, name, resilience.FallbackConfig{})
			for _, entry := range entries {
				fb, err := reg.CreateLLM(entry)
				if err != nil {
					return nil, fmt.Errorf("create llm fallback %q: %w", entry.Name, err)
				}
				group.AddFallback(entry.Name, fb)
			}
			ps.LLM = group
		} else {
			ps.LLM = p
		}
		slog.Info("provider created", "kind", "llm", "name", name, "fallbacks", len(cfg.Providers.LLM.Fallbacks))
	}

	if name := cfg.Providers.Live.Name; name != "" {
		p, err := reg.CreateLive(cfg.Providers.Live)
		if err != nil {
			return nil, fmt.Errorf("create live provider %q: %w", name, err)
		}
		ps.Live = p
		slog.Info("provider created", "kind", "live", "name", name)
	}

	if name := cfg.Providers.ASR.Name; name != "" {
		p, err := reg.CreateASR(cfg.Providers.ASR)
		if err != nil {
			return nil, fmt.Errorf("create asr provider %q: %w", name, err)
		}
		if entries := cfg.Providers.ASR.Fallbacks; len(entries) > 0 {
			group := resilience.NewASRFallback(p, name, resilience.FallbackConfig{})
			for _, entry := range entries {
				fb, err := reg.CreateASR(entry)
				if err != nil {
					return nil, fmt.Errorf("create asr fallback %q: %w", entry.Name, err)
				}
				group.AddFallback(entry.Name, fb)
			}
			ps.ASR = group
		} else {
			ps.ASR = p
		}
		slog.Info("provider created", "kind", "asr", "name", name, "fallbacks", len(cfg.Providers.ASR.Fallbacks))
	}

	if name := cfg.Providers.TTS.Name; name != "" {
		p, err := reg.CreateTTS(cfg.Providers.TTS)
		if err != nil {
			return nil, fmt.Errorf("create tts provider %q: %w", name, err)
		}
		if entries := cfg.Providers.TTS.Fallbacks; len(entries) > 0 {
			group := resilience.NewTTSFallback(p, name, resilience.FallbackConfig{})
			for _, entry := range entries {
				fb, err := reg.CreateTTS(entry)
				if err != nil {
					return nil, fmt.Errorf("create tts fallback %q: %w", entry.Name, err)
				}
				group.AddFallback(entry.Name, fb)
			}
			ps.TTS = group
		} else {
			ps.TTS = p
		}
		slog.Info("provider created", "kind", "tts", "name", name, "fallbacks", len(cfg.Providers.TTS.Fallbacks))
	}

	if name := cfg.Providers.VAD.Name; name != "" {
		p, err := reg.CreateVAD(cfg.Providers.VAD)
		if err != nil {
			return nil, fmt.Errorf("create vad provider %q: %w", name, err)
		}
		ps.VAD = p
		slog.Info("provider created", "kind", "vad", "name", name)
	}

	return ps, nil
}

// buildVocabulary connects the PostgreSQL store when a DSN is configured and
// falls back to the in-process store otherwise.
func buildVocabulary(ctx context.Context, cfg *config.Config) (vocab.Store, *pgxpool.Pool, error) {
	dsn := cfg.Storage.PostgresDSN
	if dsn == "" {
		slog.Info("vocabulary store: in-memory (no postgres_dsn configured)")
		return vocab.NewMemory(), nil, nil
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("connect postgres: %w", err)
	}

	store := vocab.NewPostgres(pool)
	migrateCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := store.Migrate(migrateCtx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	slog.Info("vocabulary store: postgres")
	return store, pool, nil
}

// buildEnricher assembles the enrichment client from the configured text
// model, speech recognizer, and cache. When the text provider is an
// OpenAI-compatible endpoint with audio support, the combined
// transcribe-and-hint call is enabled too.
func buildEnricher(cfg *config.Config, providers *Providers, store cache.Store) (*enrich.Client, error) {
	opts := []enrich.Option{enrich.WithCache(store)}
	if providers.ASR != nil {
		opts = append(opts, enrich.WithRecognizer(providers.ASR))
	}
	if entry := cfg.Providers.LLM; entry.Name == "openai" && entry.APIKey != "" {
		reqOpts := []option.RequestOption{option.WithAPIKey(entry.APIKey)}
		if entry.BaseURL != "" {
			reqOpts = append(reqOpts, option.WithBaseURL(entry.BaseURL))
		}
		audioModel := optString(entry.Options, "audio_model")
		opts = append(opts, enrich.WithAudioClient(oai.NewClient(reqOpts...), audioModel))
	}
	return enrich.NewClient(providers.LLM, opts...)
}

// loadCatalogue reads the scenario file or falls back to the built-in set.
func loadCatalogue(path string) (*scenario.Catalogue, error) {
	if path == "" {
		return scenario.Default(), nil
	}
	return scenario.Load(path)
}

// applyConfigChange reacts to a config file edit: the log level, practice
// defaults, and scenario catalogue are hot-swapped; everything else needs a
// restart.
func applyConfigChange(srv *server.Server, logLevel *slog.LevelVar, d config.ConfigDiff) {
	if d.LogLevelChanged {
		logLevel.Set(slogLevel(d.NewLogLevel))
		slog.Info("log level updated", "level", d.NewLogLevel)
	}
	if d.PracticeChanged {
		srv.UpdatePracticeDefaults(d.NewPractice.DefaultMode, d.NewPractice.DefaultModality, d.NewPractice.TranscribeUserAudio)
		slog.Info("practice defaults updated",
			"default_mode", d.NewPractice.DefaultMode,
			"default_modality", d.NewPractice.DefaultModality,
			"transcribe_user_audio", d.NewPractice.TranscribeUserAudio,
		)
	}
	if d.ScenarioPathChanged {
		catalogue, err := loadCatalogue(d.NewScenarioPath)
		if err != nil {
			slog.Warn("scenario catalogue reload failed, keeping previous", "path", d.NewScenarioPath, "err", err)
		} else {
			srv.UpdateCatalogue(catalogue)
			slog.Info("scenario catalogue reloaded", "path", d.NewScenarioPath)
		}
	}
	if d.RestartRequired {
		slog.Warn("config change affects providers, networking, storage, or cache — restart to apply")
	}
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║         multivox — startup summary    ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printProvider("LLM", cfg.Providers.LLM.Name, cfg.Providers.LLM.Model)
	printProvider("Live", cfg.Providers.Live.Name, cfg.Providers.Live.Model)
	printProvider("ASR", cfg.Providers.ASR.Name, cfg.Providers.ASR.Model)
	printProvider("TTS", cfg.Providers.TTS.Name, cfg.Providers.TTS.Model)
	printProvider("VAD", cfg.Providers.VAD.Name, "")
	if cfg.Storage.PostgresDSN != "" {
		fmt.Printf("║  Vocabulary      : %-19s ║\n", "postgres")
	} else {
		fmt.Printf("║  Vocabulary      : %-19s ║\n", "in-memory")
	}
	if cfg.Server.ListenAddr != "" {
		fmt.Printf("║  Listen addr     : %-19s ║\n", cfg.Server.ListenAddr)
	}
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printProvider(kind, name, model string) {
	value := name
	if value == "" {
		value = "(not configured)"
	} else if model != "" {
		value = name + " / " + model
	}
	if len(value) > 19 {
		value = value[:16] + "…"
	}
	fmt.Printf("║  %-12s    : %-19s ║\n", kind, value)
}

// ── Logger ─────────────────────────────────────────────────────────────────────

// newLogger builds the process logger. The returned LevelVar lets the config
// watcher change verbosity without a restart.
func newLogger(level config.LogLevel) (*slog.Logger, *slog.LevelVar) {
	lvl := new(slog.LevelVar)
	lvl.Set(slogLevel(level))
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})), lvl
}

func slogLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ── Helpers ───────────────────────────────────────────────────────────────────

// optString extracts a string value from a provider Options map.
func optString(opts map[string]any, key string) string {
	if opts == nil {
		return ""
	}
	s, _ := opts[key].(string)
	return s
}

// optFloat extracts a numeric value from a provider Options map. YAML decodes
// numbers as int or float64 depending on the literal.
func optFloat(opts map[string]any, key string) (float64, bool) {
	if opts == nil {
		return 0, false
	}
	switch v := opts[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	}
	return 0, false
}

// optInt extracts an integer value from a provider Options map.
func optInt(opts map[string]any, key string) (int, bool) {
	if opts == nil {
		return 0, false
	}
	switch v := opts[key].(type) {
	case int:
		return v, true
	case float64:
		return int(v), true
	}
	return 0, false
}
