package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"llm":  {"openai", "anthropic", "ollama", "gemini", "deepseek", "mistral", "groq"},
	"live": {"gemini-live"},
	"asr":  {"whisper", "whisper-native"},
	"tts":  {"google"},
	"vad":  {"silero"},
}

// validModes and validModalities mirror the session package's accepted
// values; the config layer validates them without importing it.
var (
	validModes      = []string{"live", "step_by_step"}
	validModalities = []string{"audio", "text"}
)

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader] and
// [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Server.TLS != nil {
		if cfg.Server.TLS.CertFile == "" || cfg.Server.TLS.KeyFile == "" {
			errs = append(errs, errors.New("server.tls requires both cert_file and key_file"))
		}
	}

	// Provider name validation: warn for unknown provider names.
	validateProviderName("llm", cfg.Providers.LLM.Name)
	validateProviderName("live", cfg.Providers.Live.Name)
	validateProviderName("asr", cfg.Providers.ASR.Name)
	validateProviderName("tts", cfg.Providers.TTS.Name)
	validateProviderName("vad", cfg.Providers.VAD.Name)

	// Practice
	if m := cfg.Practice.DefaultMode; m != "" && !slices.Contains(validModes, m) {
		errs = append(errs, fmt.Errorf("practice.default_mode %q is invalid; valid values: live, step_by_step", m))
	}
	if m := cfg.Practice.DefaultModality; m != "" && !slices.Contains(validModalities, m) {
		errs = append(errs, fmt.Errorf("practice.default_modality %q is invalid; valid values: audio, text", m))
	}

	// Mode ↔ provider cross-validation.
	if cfg.Providers.LLM.Name == "" {
		errs = append(errs, errors.New("providers.llm is required: enrichment cannot run without a text model"))
	}
	if cfg.Practice.DefaultMode == "live" && cfg.Providers.Live.Name == "" {
		errs = append(errs, errors.New("practice.default_mode is live but providers.live is not configured"))
	}
	if cfg.Providers.ASR.Name == "" {
		slog.Warn("providers.asr is empty; audio transcription will be unavailable")
	}
	if cfg.Providers.TTS.Name == "" {
		slog.Warn("providers.tts is empty; step-by-step sessions will reply in text only")
	}
	if cfg.Providers.VAD.Name == "" {
		slog.Warn("providers.vad is empty; step-by-step turns close only on explicit end-of-turn markers")
	}

	// Storage
	if cfg.Storage.PostgresDSN == "" {
		slog.Warn("storage.postgres_dsn is empty; vocabulary will not survive restarts")
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name — may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
