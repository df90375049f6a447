// Package config provides the configuration schema, loader, and provider registry
// for the CoranBuilding recitation analyzer.
package config

import "time"

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// ReferenceSource selects where the Mushaf page text comes from.
type ReferenceSource string

const (
	// SourceAlQuran fetches pages from the alquran.cloud REST API and falls
	// back to the local directory when one is configured.
	SourceAlQuran ReferenceSource = "alquran"

	// SourceDir reads pages from text files only.
	SourceDir ReferenceSource = "dir"
)

// IsValid reports whether s is a recognised reference source.
func (s ReferenceSource) IsValid() bool {
	return s == SourceAlQuran || s == SourceDir
}

// Config is the root configuration structure.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Providers ProvidersConfig `yaml:"providers"`
	Reference ReferenceConfig `yaml:"reference"`
	Audio     AudioConfig     `yaml:"audio"`
	Analysis  AnalysisConfig  `yaml:"analysis"`
	Feedback  FeedbackConfig  `yaml:"feedback"`
	History   HistoryConfig   `yaml:"history"`
}

// ServerConfig holds network and logging settings.
type ServerConfig struct {
	// ListenAddr is the TCP address of the public API (e.g., ":8000").
	ListenAddr string `yaml:"listen_addr"`

	// OpsAddr serves /healthz, /readyz and /metrics. Empty disables it.
	OpsAddr string `yaml:"ops_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`
}

// ProvidersConfig declares which provider implementation to use for each
// external capability.
type ProvidersConfig struct {
	STT ProviderEntry `yaml:"stt"`

	// STTFallback is tried when STT fails or its circuit is open. Optional.
	STTFallback ProviderEntry `yaml:"stt_fallback"`

	// LLM generates coaching feedback. Optional; without it the static
	// feedback messages are used.
	LLM ProviderEntry `yaml:"llm"`
}

// ProviderEntry is the common configuration block shared by all provider types.
// The Name field is used to look up the constructor in the [Registry].
type ProviderEntry struct {
	// Name selects the registered provider implementation (e.g., "whisper", "ollama").
	Name string `yaml:"name"`

	// APIKey is the authentication key for the provider's API if any.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default API endpoint.
	// Leave empty to use the provider's built-in default.
	BaseURL string `yaml:"base_url"`

	// Model selects a specific model within the provider (e.g., "llama3.1:8b",
	// "whisper-1") or, for local engines, the model path.
	Model string `yaml:"model"`

	// Options holds provider-specific configuration values not covered by the
	// standard fields above.
	Options map[string]any `yaml:"options"`
}

// ReferenceConfig configures the Mushaf page provider.
type ReferenceConfig struct {
	Source ReferenceSource `yaml:"source"`

	// BaseURL of the alquran.cloud API. Default: http://api.alquran.cloud/v1.
	BaseURL string `yaml:"base_url"`

	// Edition is the text edition identifier. Default: quran-uthmani.
	Edition string `yaml:"edition"`

	// Dir holds one "NNN.txt" file per page.
	Dir string `yaml:"dir"`

	// Timeout bounds one page fetch. Default: 10s.
	Timeout time.Duration `yaml:"timeout"`
}

// AudioConfig configures recording decoding.
type AudioConfig struct {
	// FFmpegPath is the ffmpeg executable. Default: "ffmpeg" on PATH.
	FFmpegPath string `yaml:"ffmpeg_path"`

	// SampleRate of decoded waveforms. Default: 16000.
	SampleRate int `yaml:"sample_rate"`
}

// AnalysisConfig tunes the recitation pipeline.
type AnalysisConfig struct {
	// DefaultLevel is used when a request does not name a level (1..3).
	DefaultLevel int `yaml:"default_level"`

	// Workers bounds concurrent per-word analyses. Default: 4.
	Workers int `yaml:"workers"`

	// TranscribeTimeout bounds the ASR call. Default: 2m.
	TranscribeTimeout time.Duration `yaml:"transcribe_timeout"`

	// Spectral enables the STFT nasalization check. When false the verifier
	// treats the capability as unavailable. Default: true.
	Spectral *bool `yaml:"spectral"`
}

// SpectralEnabled reports whether the spectral analyzer should be wired.
func (a AnalysisConfig) SpectralEnabled() bool {
	return a.Spectral == nil || *a.Spectral
}

// FeedbackConfig configures coaching feedback generation.
type FeedbackConfig struct {
	Enabled bool `yaml:"enabled"`

	// Timeout bounds one LLM call. Default: 45s.
	Timeout time.Duration `yaml:"timeout"`

	// Language of the coaching text. Only "fr" ships prompts today.
	Language string `yaml:"language"`
}

// HistoryConfig selects the recording history store.
type HistoryConfig struct {
	// PostgresDSN selects the PostgreSQL store when set.
	PostgresDSN string `yaml:"postgres_dsn"`

	// File selects the JSON-lines store when PostgresDSN is empty.
	File string `yaml:"file"`

	// RecordingsDir is where uploaded audio files are kept. Default: "recordings".
	RecordingsDir string `yaml:"recordings_dir"`
}

// ApplyDefaults fills unset fields with their documented defaults.
func (c *Config) ApplyDefaults() {
	if c.Server.ListenAddr == "" {
		c.Server.ListenAddr = ":8000"
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = LogInfo
	}
	if c.Reference.Source == "" {
		c.Reference.Source = SourceAlQuran
	}
	if c.Reference.BaseURL == "" {
		c.Reference.BaseURL = "http://api.alquran.cloud/v1"
	}
	if c.Reference.Edition == "" {
		c.Reference.Edition = "quran-uthmani"
	}
	if c.Reference.Timeout == 0 {
		c.Reference.Timeout = 10 * time.Second
	}
	if c.Audio.SampleRate == 0 {
		c.Audio.SampleRate = 16000
	}
	if c.Analysis.DefaultLevel == 0 {
		c.Analysis.DefaultLevel = 1
	}
	if c.Analysis.Workers == 0 {
		c.Analysis.Workers = 4
	}
	if c.Analysis.TranscribeTimeout == 0 {
		c.Analysis.TranscribeTimeout = 2 * time.Minute
	}
	if c.Feedback.Timeout == 0 {
		c.Feedback.Timeout = 45 * time.Second
	}
	if c.Feedback.Language == "" {
		c.Feedback.Language = "fr"
	}
	if c.History.RecordingsDir == "" {
		c.History.RecordingsDir = "recordings"
	}
}
