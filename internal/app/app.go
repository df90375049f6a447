// Package app wires the recitation analyzer subsystems into a running
// application.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems, Run serves the HTTP API and the ops endpoints until the
// context ends, and Shutdown tears everything down in order.
//
// For testing, inject test doubles via functional options (WithHistory,
// WithReference, WithLoader). When an option is not provided, New creates
// real implementations from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/KarimEG45/CoranBuilding/internal/analysis"
	"github.com/KarimEG45/CoranBuilding/internal/api"
	"github.com/KarimEG45/CoranBuilding/internal/config"
	"github.com/KarimEG45/CoranBuilding/internal/feedback"
	"github.com/KarimEG45/CoranBuilding/internal/health"
	"github.com/KarimEG45/CoranBuilding/internal/history"
	"github.com/KarimEG45/CoranBuilding/internal/observe"
	"github.com/KarimEG45/CoranBuilding/internal/reference"
	"github.com/KarimEG45/CoranBuilding/internal/resilience"
	"github.com/KarimEG45/CoranBuilding/internal/tajweed"
	"github.com/KarimEG45/CoranBuilding/pkg/audio"
	"github.com/KarimEG45/CoranBuilding/pkg/provider/llm"
	"github.com/KarimEG45/CoranBuilding/pkg/provider/stt"
)

// shutdownTimeout bounds the graceful stop of the HTTP servers.
const shutdownTimeout = 15 * time.Second

// Providers holds one interface value per provider slot. Nil means the
// provider is not configured. Populated by main.go via the config registry.
type Providers struct {
	STT         stt.Provider
	STTFallback stt.Provider
	LLM         llm.Provider
}

// App owns all subsystem lifetimes.
type App struct {
	cfg       *config.Config
	providers *Providers
	metrics   *observe.Metrics

	// Subsystems, initialised in New.
	reference reference.Provider
	history   history.Store
	loader    analysis.WaveformLoader
	analyzer  *analysis.Analyzer
	api       *api.Server

	checkers []health.Checker

	// closers are called in order during Shutdown.
	closers []func() error

	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithHistory injects a history store instead of opening one from config.
func WithHistory(s history.Store) Option {
	return func(a *App) { a.history = s }
}

// WithReference injects a reference provider instead of building one from
// config.
func WithReference(p reference.Provider) Option {
	return func(a *App) { a.reference = p }
}

// WithLoader injects a waveform loader instead of the ffmpeg loader.
func WithLoader(l analysis.WaveformLoader) Option {
	return func(a *App) { a.loader = l }
}

// WithMetrics records metrics on m instead of [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// New creates an App by wiring all subsystems together. The providers come
// from main.go (populated via the config registry); providers.STT is
// required.
func New(ctx context.Context, cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	if providers == nil || providers.STT == nil {
		return nil, errors.New("app: stt provider is required")
	}
	a := &App{
		cfg:       cfg,
		providers: providers,
	}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}

	// Local engines (vosk, whisper-native) hold native models.
	for _, p := range []any{providers.STT, providers.STTFallback, providers.LLM} {
		if c, ok := p.(io.Closer); ok {
			a.closers = append(a.closers, c.Close)
		}
	}

	// ── 1. Reference text ────────────────────────────────────────────────
	a.initReference()

	// ── 2. History store ─────────────────────────────────────────────────
	if err := a.initHistory(ctx); err != nil {
		a.closeAll()
		return nil, fmt.Errorf("app: init history: %w", err)
	}

	// ── 3. Waveform loader ───────────────────────────────────────────────
	a.initLoader()

	// ── 4. Analyzer ──────────────────────────────────────────────────────
	if err := a.initAnalyzer(); err != nil {
		a.closeAll()
		return nil, fmt.Errorf("app: init analyzer: %w", err)
	}

	// ── 5. HTTP API ──────────────────────────────────────────────────────
	a.api = api.New(a.analyzer,
		api.WithHistory(a.history),
		api.WithRecordingsDir(cfg.History.RecordingsDir),
		api.WithMetrics(a.metrics),
	)
	return a, nil
}

// breakerConfig is shared by every remote dependency.
func breakerConfig() resilience.CircuitBreakerConfig {
	return resilience.CircuitBreakerConfig{MaxFailures: 3, ResetTimeout: 30 * time.Second}
}

func (a *App) initReference() {
	if a.reference != nil {
		return
	}
	rc := a.cfg.Reference

	if rc.Source == config.SourceDir {
		dir := reference.NewDir(rc.Dir)
		a.reference = dir
		a.checkers = append(a.checkers, health.Checker{Name: "reference", Check: dir.Check})
		return
	}

	remote := reference.NewAlQuran(
		reference.WithBaseURL(rc.BaseURL),
		reference.WithEdition(rc.Edition),
		reference.WithTimeout(rc.Timeout),
	)
	fb := reference.NewFallback(remote, "alquran", breakerConfig())
	if rc.Dir != "" {
		dir := reference.NewDir(rc.Dir)
		fb.AddFallback("dir", dir)
		a.checkers = append(a.checkers, health.Checker{Name: "reference_dir", Check: dir.Check})
	}
	// The remote API is optional when a local copy backs it.
	a.checkers = append(a.checkers, health.Checker{Name: "reference", Check: remote.Check, Optional: rc.Dir != ""})
	a.reference = fb
	slog.Info("reference provider ready", "providers", fb.Names())
}

func (a *App) initHistory(ctx context.Context) error {
	if a.history != nil {
		return nil
	}
	hc := a.cfg.History

	switch {
	case hc.PostgresDSN != "":
		s, err := history.OpenPostgres(ctx, hc.PostgresDSN)
		if err != nil {
			return err
		}
		a.history = s
		a.checkers = append(a.checkers, health.Checker{Name: "history", Check: s.Ping})
		a.closers = append(a.closers, func() error {
			s.Close()
			return nil
		})
		slog.Info("history store ready", "backend", "postgres")
	case hc.File != "":
		s, err := history.OpenFileStore(hc.File)
		if err != nil {
			return err
		}
		a.history = s
		a.checkers = append(a.checkers, health.Checker{Name: "history", Check: s.Ping})
		slog.Info("history store ready", "backend", "file", "path", hc.File)
	default:
		slog.Warn("no history store configured; recordings are not persisted")
	}
	return nil
}

func (a *App) initLoader() {
	if a.loader != nil {
		return
	}
	l := audio.NewLoader(
		audio.WithFFmpegPath(a.cfg.Audio.FFmpegPath),
		audio.WithSampleRate(a.cfg.Audio.SampleRate),
	)
	a.loader = l
	a.checkers = append(a.checkers, health.Checker{
		Name:     "ffmpeg",
		Optional: true,
		Check: func(context.Context) error {
			if !l.Available() {
				return audio.ErrFFmpegUnavailable
			}
			return nil
		},
	})
}

func (a *App) initAnalyzer() error {
	pc := a.cfg.Providers

	var transcriber stt.Provider = a.providers.STT
	sttName := pc.STT.Name
	if a.providers.STTFallback != nil {
		fb := resilience.NewSTTFallback(a.providers.STT, pc.STT.Name, resilience.FallbackConfig{CircuitBreaker: breakerConfig()})
		fb.AddFallback(pc.STTFallback.Name, a.providers.STTFallback)
		transcriber = fb
		sttName = "stt-fallback"
	}

	// Without an LLM the generator answers with its static messages.
	var coachLLM llm.Provider
	if a.providers.LLM != nil {
		coachLLM = resilience.NewLLMFallback(a.providers.LLM, pc.LLM.Name, resilience.FallbackConfig{CircuitBreaker: breakerConfig()})
	}
	coach := feedback.New(coachLLM, pc.LLM.Name,
		feedback.WithTimeout(a.cfg.Feedback.Timeout),
		feedback.WithMetrics(a.metrics),
	)

	var spectral audio.SpectralAnalyzer
	if a.cfg.Analysis.SpectralEnabled() {
		spectral = audio.NewSTFT()
	}

	an, err := analysis.New(transcriber, a.reference,
		analysis.WithSTTName(sttName),
		analysis.WithLoader(a.loader),
		analysis.WithVerifier(tajweed.NewVerifier(spectral, a.cfg.Audio.SampleRate)),
		analysis.WithCoach(coach),
		analysis.WithHistory(a.history),
		analysis.WithMetrics(a.metrics),
		analysis.WithWorkers(a.cfg.Analysis.Workers),
		analysis.WithTranscribeTimeout(a.cfg.Analysis.TranscribeTimeout),
		analysis.WithDefaultLevel(tajweed.Level(a.cfg.Analysis.DefaultLevel)),
	)
	if err != nil {
		return err
	}
	an.SetFeedbackEnabled(a.cfg.Feedback.Enabled)
	a.analyzer = an
	return nil
}

// Analyzer returns the wired analyzer.
func (a *App) Analyzer() *analysis.Analyzer { return a.analyzer }

// Handler returns the public API handler.
func (a *App) Handler() http.Handler { return a.api.Handler() }

// OpsHandler serves /healthz, /readyz and /metrics.
func (a *App) OpsHandler() http.Handler {
	mux := http.NewServeMux()
	health.New(a.checkers...).Register(mux)
	mux.Handle("GET /metrics", promhttp.Handler())
	return mux
}

// Reload applies the hot-reloadable part of a config change. Sections that
// need a restart are only logged.
func (a *App) Reload(d config.ConfigDiff) {
	if d.DefaultLevelChanged {
		a.analyzer.SetDefaultLevel(tajweed.Level(d.NewDefaultLevel))
		slog.Info("default level changed", "level", d.NewDefaultLevel)
	}
	if d.FeedbackChanged {
		a.analyzer.SetFeedbackEnabled(d.NewFeedbackEnabled)
		slog.Info("coaching feedback toggled", "enabled", d.NewFeedbackEnabled)
	}
	if len(d.RestartRequired) > 0 {
		slog.Warn("config sections changed that need a restart", "sections", d.RestartRequired)
	}
}

// ─── Run ─────────────────────────────────────────────────────────────────────

// Run serves the API on server.listen_addr and, when configured, the ops
// endpoints on server.ops_addr. It blocks until ctx is cancelled, then
// drains in-flight requests. A listener failure stops both servers.
func (a *App) Run(ctx context.Context) error {
	servers := []*http.Server{{
		Addr:              a.cfg.Server.ListenAddr,
		Handler:           a.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}}
	if a.cfg.Server.OpsAddr != "" {
		servers = append(servers, &http.Server{
			Addr:              a.cfg.Server.OpsAddr,
			Handler:           a.OpsHandler(),
			ReadHeaderTimeout: 10 * time.Second,
		})
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, srv := range servers {
		g.Go(func() error {
			slog.Info("http server listening", "addr", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("app: serve %s: %w", srv.Addr, err)
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		var errs []error
		for _, srv := range servers {
			if err := srv.Shutdown(shutdownCtx); err != nil {
				errs = append(errs, fmt.Errorf("app: shutdown %s: %w", srv.Addr, err))
			}
		}
		return errors.Join(errs...)
	})
	return g.Wait()
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown releases all subsystems in init order. It respects the context
// deadline: if ctx expires before all closers finish, remaining closers are
// skipped and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))
		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}
		slog.Info("shutdown complete")
	})
	return shutdownErr
}

// closeAll runs the closers of a partially built App.
func (a *App) closeAll() {
	for _, c := range a.closers {
		_ = c()
	}
}
