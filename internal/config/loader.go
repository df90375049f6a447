package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"github.com/KarimEG45/CoranBuilding/internal/tajweed"
	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"stt": {"whisper", "whisper-native", "openai", "deepgram", "vosk"},
	"llm": {"openai", "anthropic", "ollama", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile"},
}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
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

// LoadFromReader decodes a YAML config from r, applies defaults and validates
// the result. An empty document yields the default configuration.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	cfg.ApplyDefaults()
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Server.ListenAddr != "" && cfg.Server.ListenAddr == cfg.Server.OpsAddr {
		errs = append(errs, fmt.Errorf("server.ops_addr must differ from server.listen_addr (%q)", cfg.Server.ListenAddr))
	}

	validateProviderName("stt", cfg.Providers.STT.Name)
	validateProviderName("stt", cfg.Providers.STTFallback.Name)
	validateProviderName("llm", cfg.Providers.LLM.Name)

	if cfg.Providers.STT.Name == "" {
		errs = append(errs, errors.New("providers.stt.name is required"))
	}
	if cfg.Providers.STTFallback.Name != "" && cfg.Providers.STT.Name == "" {
		errs = append(errs, errors.New("providers.stt_fallback requires providers.stt"))
	}
	if cfg.Feedback.Enabled && cfg.Providers.LLM.Name == "" {
		slog.Warn("feedback.enabled is set but providers.llm is not configured; static feedback will be used")
	}

	if cfg.Reference.Source != "" && !cfg.Reference.Source.IsValid() {
		errs = append(errs, fmt.Errorf("reference.source %q is invalid; valid values: alquran, dir", cfg.Reference.Source))
	}
	if cfg.Reference.Source == SourceDir && cfg.Reference.Dir == "" {
		errs = append(errs, errors.New("reference.dir is required when reference.source is dir"))
	}
	if cfg.Reference.Timeout < 0 {
		errs = append(errs, fmt.Errorf("reference.timeout %v must not be negative", cfg.Reference.Timeout))
	}

	if cfg.Audio.SampleRate < 0 {
		errs = append(errs, fmt.Errorf("audio.sample_rate %d must be positive", cfg.Audio.SampleRate))
	}

	if !tajweed.Level(cfg.Analysis.DefaultLevel).Valid() {
		errs = append(errs, fmt.Errorf("analysis.default_level %d is out of range [1, 3]", cfg.Analysis.DefaultLevel))
	}
	if cfg.Analysis.Workers < 0 {
		errs = append(errs, fmt.Errorf("analysis.workers %d must not be negative", cfg.Analysis.Workers))
	}
	if cfg.Analysis.TranscribeTimeout < 0 {
		errs = append(errs, fmt.Errorf("analysis.transcribe_timeout %v must not be negative", cfg.Analysis.TranscribeTimeout))
	}

	if cfg.Feedback.Timeout < 0 {
		errs = append(errs, fmt.Errorf("feedback.timeout %v must not be negative", cfg.Feedback.Timeout))
	}
	if cfg.Feedback.Language != "" && cfg.Feedback.Language != "fr" {
		errs = append(errs, fmt.Errorf("feedback.language %q is not supported; valid values: fr", cfg.Feedback.Language))
	}

	if cfg.History.PostgresDSN == "" && cfg.History.File == "" {
		slog.Warn("history.postgres_dsn and history.file are empty; recordings will not be persisted")
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
	slog.Warn("unknown provider name, may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
