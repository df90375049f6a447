// Command coranbuilding serves the Quran recitation analyzer.
//
// By default it runs the HTTP API. With -audio it analyses one recording and
// prints the JSON report; with -mcp it serves the analyzer as MCP tools over
// stdio.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/KarimEG45/CoranBuilding/internal/analysis"
	"github.com/KarimEG45/CoranBuilding/internal/app"
	"github.com/KarimEG45/CoranBuilding/internal/config"
	"github.com/KarimEG45/CoranBuilding/internal/mcp"
	"github.com/KarimEG45/CoranBuilding/internal/observe"
	"github.com/KarimEG45/CoranBuilding/internal/tajweed"
	"github.com/KarimEG45/CoranBuilding/pkg/provider/llm"
	"github.com/KarimEG45/CoranBuilding/pkg/provider/llm/anyllm"
	oallm "github.com/KarimEG45/CoranBuilding/pkg/provider/llm/openai"
	"github.com/KarimEG45/CoranBuilding/pkg/provider/stt"
	"github.com/KarimEG45/CoranBuilding/pkg/provider/stt/deepgram"
	oastt "github.com/KarimEG45/CoranBuilding/pkg/provider/stt/openai"
	"github.com/KarimEG45/CoranBuilding/pkg/provider/stt/vosk"
	"github.com/KarimEG45/CoranBuilding/pkg/provider/stt/whisper"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	audioPath := flag.String("audio", "", "analyse this recording once and print the JSON report")
	page := flag.Int("page", 1, "Mushaf page of the -audio recording (1-604)")
	level := flag.String("level", "", "difficulty level of the -audio recording (1-3); default from config")
	user := flag.String("user", "", "user ID the -audio recording is saved under")
	mcpMode := flag.Bool("mcp", false, "serve the analyzer as MCP tools over stdio")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "coranbuilding: config file %q not found; copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "coranbuilding: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	// MCP owns stdout, so logs always go to stderr.
	var logLevel slog.LevelVar
	logLevel.Set(slogLevel(cfg.Server.LogLevel))
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: &logLevel})))

	slog.Info("coranbuilding starting",
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
		"version", version,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	telemetry, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    "coranbuilding",
		ServiceVersion: version,
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		if err := telemetry.Shutdown(context.Background()); err != nil {
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

	application, err := app.New(ctx, cfg, providers)
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := application.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "err", err)
		}
	}()

	switch {
	case *audioPath != "":
		if err := analyzeOnce(ctx, application.Analyzer(), *audioPath, *page, *level, *user); err != nil {
			slog.Error("analysis failed", "err", err)
			return 1
		}
		return 0

	case *mcpMode:
		srv, err := mcp.NewServer(application.Analyzer(), version)
		if err != nil {
			slog.Error("failed to create MCP server", "err", err)
			return 1
		}
		slog.Info("serving MCP over stdio")
		if err := srv.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("mcp server error", "err", err)
			return 1
		}
		return 0
	}

	// ── Config hot reload ─────────────────────────────────────────────────────
	watcher, err := config.NewWatcher(*configPath, func(old, new *config.Config) {
		d := config.Diff(old, new)
		if d.LogLevelChanged {
			logLevel.Set(slogLevel(d.NewLogLevel))
			slog.Info("log level changed", "level", d.NewLogLevel)
		}
		application.Reload(d)
	})
	if err != nil {
		slog.Warn("config hot reload disabled", "err", err)
	} else {
		go watcher.Run(ctx)
	}

	printStartupSummary(cfg)
	slog.Info("server ready, press Ctrl+C to shut down")

	if err := application.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// analyzeOnce runs one analysis of the file at path and prints the report
// to stdout.
func analyzeOnce(ctx context.Context, a *analysis.Analyzer, path string, page int, level, user string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	req := analysis.Request{
		Page:      page,
		UserID:    user,
		AudioPath: path,
		Audio:     stt.Audio{Data: data, Filename: filepath.Base(path)},
	}
	if level != "" {
		l, err := tajweed.ParseLevel(level)
		if err != nil {
			return err
		}
		req.Level = l
	}

	rep, err := a.Analyze(ctx, req)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(rep)
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// anyllmProviders are the LLM backends reached through any-llm-go. They share
// the same pattern: optional APIKey + optional BaseURL.
var anyllmProviders = []string{
	"anthropic", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile", "ollama",
}

// registerBuiltinProviders wires all built-in provider factories into reg.
func registerBuiltinProviders(reg *config.Registry) {
	// ── LLM ───────────────────────────────────────────────────────────────────
	for _, providerName := range anyllmProviders {
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

	reg.RegisterLLM("openai", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []oallm.Option
		if entry.BaseURL != "" {
			opts = append(opts, oallm.WithBaseURL(entry.BaseURL))
		}
		if org := optString(entry.Options, "organization"); org != "" {
			opts = append(opts, oallm.WithOrganization(org))
		}
		return oallm.New(entry.APIKey, entry.Model, opts...)
	})

	// ── STT ───────────────────────────────────────────────────────────────────

	reg.RegisterSTT("whisper", func(entry config.ProviderEntry) (stt.Provider, error) {
		var opts []whisper.Option
		if entry.Model != "" {
			opts = append(opts, whisper.WithModel(entry.Model))
		}
		opts = append(opts, whisper.WithLanguage(language(entry)))
		return whisper.New(entry.BaseURL, opts...)
	})

	reg.RegisterSTT("whisper-native", func(entry config.ProviderEntry) (stt.Provider, error) {
		modelPath := entry.Model
		if modelPath == "" {
			modelPath = optString(entry.Options, "model_path")
		}
		return whisper.NewNative(modelPath, whisper.WithNativeLanguage(language(entry)))
	})

	reg.RegisterSTT("openai", func(entry config.ProviderEntry) (stt.Provider, error) {
		opts := []oastt.Option{oastt.WithLanguage(language(entry))}
		if entry.BaseURL != "" {
			opts = append(opts, oastt.WithBaseURL(entry.BaseURL))
		}
		return oastt.New(entry.APIKey, entry.Model, opts...)
	})

	reg.RegisterSTT("deepgram", func(entry config.ProviderEntry) (stt.Provider, error) {
		opts := []deepgram.Option{deepgram.WithLanguage(language(entry))}
		if entry.Model != "" {
			opts = append(opts, deepgram.WithModel(entry.Model))
		}
		if entry.BaseURL != "" {
			opts = append(opts, deepgram.WithEndpoint(entry.BaseURL))
		}
		return deepgram.New(entry.APIKey, opts...)
	})

	reg.RegisterSTT("vosk", func(entry config.ProviderEntry) (stt.Provider, error) {
		modelPath := entry.Model
		if modelPath == "" {
			modelPath = optString(entry.Options, "model_path")
		}
		return vosk.New(modelPath)
	})

	slog.Debug("registered providers", "stt", reg.STTNames(), "llm", config.ValidProviderNames["llm"])
}

// buildProviders instantiates all providers named in cfg using the registry
// and returns them in an [app.Providers] struct for the application to consume.
func buildProviders(cfg *config.Config, reg *config.Registry) (*app.Providers, error) {
	ps := &app.Providers{}

	sttEntries := []struct {
		kind  string
		entry config.ProviderEntry
		dst   *stt.Provider
	}{
		{"stt", cfg.Providers.STT, &ps.STT},
		{"stt_fallback", cfg.Providers.STTFallback, &ps.STTFallback},
	}
	for _, e := range sttEntries {
		if e.entry.Name == "" {
			continue
		}
		p, err := reg.CreateSTT(e.entry)
		if err != nil {
			return nil, fmt.Errorf("create %s provider %q: %w", e.kind, e.entry.Name, err)
		}
		*e.dst = p
		slog.Info("provider created", "kind", e.kind, "name", e.entry.Name)
	}

	if name := cfg.Providers.LLM.Name; name != "" {
		p, err := reg.CreateLLM(cfg.Providers.LLM)
		if errors.Is(err, config.ErrProviderNotRegistered) {
			// Coaching is optional; the static messages take over.
			slog.Warn("llm provider not registered, coaching uses static feedback", "name", name)
		} else if err != nil {
			return nil, fmt.Errorf("create llm provider %q: %w", name, err)
		} else {
			ps.LLM = p
			slog.Info("provider created", "kind", "llm", "name", name)
		}
	}

	return ps, nil
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║     CoranBuilding, startup summary    ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printProvider("STT", cfg.Providers.STT.Name, cfg.Providers.STT.Model)
	printProvider("STT fallback", cfg.Providers.STTFallback.Name, cfg.Providers.STTFallback.Model)
	printProvider("LLM", cfg.Providers.LLM.Name, cfg.Providers.LLM.Model)
	printRow("Reference", string(cfg.Reference.Source))
	switch {
	case cfg.History.PostgresDSN != "":
		printRow("History", "postgres")
	case cfg.History.File != "":
		printRow("History", "file")
	default:
		printRow("History", "(disabled)")
	}
	printRow("Default level", fmt.Sprint(cfg.Analysis.DefaultLevel))
	printRow("Listen addr", cfg.Server.ListenAddr)
	if cfg.Server.OpsAddr != "" {
		printRow("Ops addr", cfg.Server.OpsAddr)
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
	printRow(kind, value)
}

func printRow(label, value string) {
	if len([]rune(value)) > 19 {
		value = string([]rune(value)[:16]) + "…"
	}
	fmt.Printf("║  %-14s  : %-19s ║\n", label, value)
}

// ── Logger ─────────────────────────────────────────────────────────────────────

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

// language returns the recognition language of entry. Recitations are Arabic
// unless the options say otherwise.
func language(entry config.ProviderEntry) string {
	if lang := optString(entry.Options, "language"); lang != "" {
		return lang
	}
	return "ar"
}

// optString extracts a string value from a provider Options map[string]any.
// Returns "" if the map is nil, the key is absent, or the value is not a string.
func optString(opts map[string]any, key string) string {
	if opts == nil {
		return ""
	}
	s, _ := opts[key].(string)
	return s
}
