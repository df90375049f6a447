package config_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/KarimEG45/CoranBuilding/internal/config"
	"github.com/KarimEG45/CoranBuilding/pkg/provider/llm"
	llmmock "github.com/KarimEG45/CoranBuilding/pkg/provider/llm/mock"
	"github.com/KarimEG45/CoranBuilding/pkg/provider/stt"
	sttmock "github.com/KarimEG45/CoranBuilding/pkg/provider/stt/mock"
)

// ── helpers ──────────────────────────────────────────────────────────────────

const sampleYAML = `
server:
  listen_addr: ":8000"
  ops_addr: ":9090"
  log_level: debug

providers:
  stt:
    name: whisper
    base_url: http://localhost:8080
    model: large-v3
  stt_fallback:
    name: openai
    api_key: sk-test
    model: whisper-1
  llm:
    name: ollama
    model: llama3.1:8b
    options:
      temperature: 0.3

reference:
  source: alquran
  dir: ./pages
  timeout: 5s

audio:
  ffmpeg_path: /usr/bin/ffmpeg

analysis:
  default_level: 2
  workers: 8
  spectral: false

feedback:
  enabled: true
  timeout: 30s

history:
  postgres_dsn: postgres://localhost/coran
  recordings_dir: /var/lib/coranbuilding/recordings
`

func mustLoad(t *testing.T, yaml string) *config.Config {
	t.Helper()
	cfg, err := config.LoadFromReader(strings.NewReader(yaml))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	return cfg
}

// ── schema ───────────────────────────────────────────────────────────────────

func TestLoadFromReader_Sample(t *testing.T) {
	t.Parallel()

	cfg := mustLoad(t, sampleYAML)

	if cfg.Server.OpsAddr != ":9090" {
		t.Errorf("ops_addr: got %q, want %q", cfg.Server.OpsAddr, ":9090")
	}
	if cfg.Server.LogLevel != config.LogDebug {
		t.Errorf("log_level: got %q, want debug", cfg.Server.LogLevel)
	}
	if cfg.Providers.STT.Name != "whisper" || cfg.Providers.STT.Model != "large-v3" {
		t.Errorf("stt: got %+v", cfg.Providers.STT)
	}
	if cfg.Providers.STTFallback.Name != "openai" {
		t.Errorf("stt_fallback.name: got %q, want openai", cfg.Providers.STTFallback.Name)
	}
	if got := cfg.Providers.LLM.Options["temperature"]; got != 0.3 {
		t.Errorf("llm.options.temperature: got %v, want 0.3", got)
	}
	if cfg.Reference.Timeout != 5*time.Second {
		t.Errorf("reference.timeout: got %v, want 5s", cfg.Reference.Timeout)
	}
	if cfg.Analysis.DefaultLevel != 2 || cfg.Analysis.Workers != 8 {
		t.Errorf("analysis: got %+v", cfg.Analysis)
	}
	if cfg.Analysis.SpectralEnabled() {
		t.Error("spectral: got enabled, want disabled")
	}
	if !cfg.Feedback.Enabled || cfg.Feedback.Timeout != 30*time.Second {
		t.Errorf("feedback: got %+v", cfg.Feedback)
	}
	if cfg.History.RecordingsDir != "/var/lib/coranbuilding/recordings" {
		t.Errorf("recordings_dir: got %q", cfg.History.RecordingsDir)
	}
}

func TestLoadFromReader_Defaults(t *testing.T) {
	t.Parallel()

	cfg := mustLoad(t, "providers:\n  stt:\n    name: whisper\n")

	tests := []struct {
		name string
		got  any
		want any
	}{
		{"listen_addr", cfg.Server.ListenAddr, ":8000"},
		{"log_level", cfg.Server.LogLevel, config.LogInfo},
		{"reference.source", cfg.Reference.Source, config.SourceAlQuran},
		{"reference.base_url", cfg.Reference.BaseURL, "http://api.alquran.cloud/v1"},
		{"reference.edition", cfg.Reference.Edition, "quran-uthmani"},
		{"reference.timeout", cfg.Reference.Timeout, 10 * time.Second},
		{"audio.sample_rate", cfg.Audio.SampleRate, 16000},
		{"analysis.default_level", cfg.Analysis.DefaultLevel, 1},
		{"analysis.workers", cfg.Analysis.Workers, 4},
		{"analysis.transcribe_timeout", cfg.Analysis.TranscribeTimeout, 2 * time.Minute},
		{"analysis.spectral", cfg.Analysis.SpectralEnabled(), true},
		{"feedback.timeout", cfg.Feedback.Timeout, 45 * time.Second},
		{"feedback.language", cfg.Feedback.Language, "fr"},
		{"history.recordings_dir", cfg.History.RecordingsDir, "recordings"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s: got %v, want %v", tt.name, tt.got, tt.want)
		}
	}
}

func TestLoadFromReader_UnknownField(t *testing.T) {
	t.Parallel()

	_, err := config.LoadFromReader(strings.NewReader("providers:\n  stt:\n    name: whisper\nspeakers: []\n"))
	if err == nil {
		t.Fatal("expected error for unknown top-level key")
	}
}

func TestLoad_ExampleConfig(t *testing.T) {
	t.Parallel()

	cfg, err := config.Load("../../configs/example.yaml")
	if err != nil {
		t.Fatalf("Load(example.yaml): %v", err)
	}
	if cfg.Providers.STT.Name != "whisper" {
		t.Errorf("stt provider: got %q, want %q", cfg.Providers.STT.Name, "whisper")
	}
	if cfg.Analysis.TranscribeTimeout != 2*time.Minute {
		t.Errorf("transcribe_timeout: got %v, want 2m", cfg.Analysis.TranscribeTimeout)
	}
	if !cfg.Analysis.SpectralEnabled() {
		t.Error("spectral: got disabled, want enabled")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()

	if _, err := config.Load("/nonexistent/coranbuilding.yaml"); err == nil {
		t.Fatal("expected error for missing file")
	}
}

// ── validation ───────────────────────────────────────────────────────────────

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "missing stt",
			yaml:    "server:\n  log_level: info\n",
			wantErr: "providers.stt.name is required",
		},
		{
			name:    "bad log level",
			yaml:    "server:\n  log_level: verbose\nproviders:\n  stt:\n    name: whisper\n",
			wantErr: "server.log_level",
		},
		{
			name:    "level out of range",
			yaml:    "providers:\n  stt:\n    name: whisper\nanalysis:\n  default_level: 4\n",
			wantErr: "analysis.default_level 4",
		},
		{
			name:    "dir source without dir",
			yaml:    "providers:\n  stt:\n    name: whisper\nreference:\n  source: dir\n",
			wantErr: "reference.dir is required",
		},
		{
			name:    "unknown source",
			yaml:    "providers:\n  stt:\n    name: whisper\nreference:\n  source: tanzil\n",
			wantErr: "reference.source",
		},
		{
			name:    "same listen and ops address",
			yaml:    "server:\n  listen_addr: \":8000\"\n  ops_addr: \":8000\"\nproviders:\n  stt:\n    name: whisper\n",
			wantErr: "server.ops_addr",
		},
		{
			name:    "unsupported language",
			yaml:    "providers:\n  stt:\n    name: whisper\nfeedback:\n  language: de\n",
			wantErr: "feedback.language",
		},
		{
			name:    "negative workers",
			yaml:    "providers:\n  stt:\n    name: whisper\nanalysis:\n  workers: -1\n",
			wantErr: "analysis.workers",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := config.LoadFromReader(strings.NewReader(tt.yaml))
			if err == nil {
				t.Fatalf("expected error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{}
	cfg.Server.LogLevel = "loud"
	cfg.Analysis.DefaultLevel = 9
	err := config.Validate(cfg)
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"server.log_level", "providers.stt.name", "analysis.default_level"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %q", err, want)
		}
	}
}

func TestValidate_UnknownProviderNameIsOnlyAWarning(t *testing.T) {
	t.Parallel()

	cfg := mustLoad(t, "providers:\n  stt:\n    name: my-custom-asr\n")
	if cfg.Providers.STT.Name != "my-custom-asr" {
		t.Errorf("stt.name: got %q", cfg.Providers.STT.Name)
	}
}

// ── registry ─────────────────────────────────────────────────────────────────

func TestRegistry_CreateRegistered(t *testing.T) {
	t.Parallel()

	reg := config.NewRegistry()
	reg.RegisterSTT("fake", func(e config.ProviderEntry) (stt.Provider, error) {
		return &sttmock.Provider{}, nil
	})
	reg.RegisterLLM("fake", func(e config.ProviderEntry) (llm.Provider, error) {
		return &llmmock.Provider{}, nil
	})

	if _, err := reg.CreateSTT(config.ProviderEntry{Name: "fake"}); err != nil {
		t.Errorf("CreateSTT: %v", err)
	}
	if _, err := reg.CreateLLM(config.ProviderEntry{Name: "fake"}); err != nil {
		t.Errorf("CreateLLM: %v", err)
	}
}

func TestRegistry_NotRegistered(t *testing.T) {
	t.Parallel()

	reg := config.NewRegistry()
	if _, err := reg.CreateSTT(config.ProviderEntry{Name: "nope"}); !errors.Is(err, config.ErrProviderNotRegistered) {
		t.Errorf("CreateSTT: got %v, want ErrProviderNotRegistered", err)
	}
	if _, err := reg.CreateLLM(config.ProviderEntry{Name: "nope"}); !errors.Is(err, config.ErrProviderNotRegistered) {
		t.Errorf("CreateLLM: got %v, want ErrProviderNotRegistered", err)
	}
}

func TestRegistry_FactoryReceivesEntryAndOverwrites(t *testing.T) {
	t.Parallel()

	reg := config.NewRegistry()
	var gotModel string
	reg.RegisterSTT("asr", func(e config.ProviderEntry) (stt.Provider, error) {
		return nil, errors.New("first")
	})
	reg.RegisterSTT("asr", func(e config.ProviderEntry) (stt.Provider, error) {
		gotModel = e.Model
		return &sttmock.Provider{}, nil
	})

	if _, err := reg.CreateSTT(config.ProviderEntry{Name: "asr", Model: "large-v3"}); err != nil {
		t.Fatalf("CreateSTT: %v", err)
	}
	if gotModel != "large-v3" {
		t.Errorf("factory model: got %q, want large-v3", gotModel)
	}
	if names := reg.STTNames(); len(names) != 1 || names[0] != "asr" {
		t.Errorf("STTNames: got %v, want [asr]", names)
	}
}
