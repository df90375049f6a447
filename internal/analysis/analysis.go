// Package analysis runs the recitation pipeline: transcribe the recording,
// fetch the reference page, align both word sequences, verify every word
// against its Tajweed rules and score the page.
//
// Transcription and reference failures abort an analysis. Everything after
// them is advisory: a recording that cannot be decoded is analysed on text
// alone, a failing LLM yields a static coaching message and a failing
// history store only logs.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/KarimEG45/CoranBuilding/internal/align"
	"github.com/KarimEG45/CoranBuilding/internal/history"
	"github.com/KarimEG45/CoranBuilding/internal/observe"
	"github.com/KarimEG45/CoranBuilding/internal/reference"
	"github.com/KarimEG45/CoranBuilding/internal/tajweed"
	"github.com/KarimEG45/CoranBuilding/pkg/arabic"
	"github.com/KarimEG45/CoranBuilding/pkg/audio"
	"github.com/KarimEG45/CoranBuilding/pkg/provider/stt"
)

var (
	// ErrReferenceNotFound is returned when the page text is unavailable.
	ErrReferenceNotFound = errors.New("analysis: reference text not found")

	// ErrTranscription is returned when the ASR provider fails.
	ErrTranscription = errors.New("analysis: transcription failed")

	// ErrNoAudio is returned for a request without recording data.
	ErrNoAudio = errors.New("analysis: empty recording")
)

// Disclaimer accompanies every report.
const Disclaimer = "Outil d'apprentissage assisté par IA. Ne remplace pas un enseignant certifié."

// MsgImprove is the feedback attached to an invalid word.
const MsgImprove = "Améliorez la précision pour ce niveau."

// GuestUser owns recordings submitted without a user ID.
const GuestUser = "guest"

// WaveformLoader decodes a recording. *audio.Loader satisfies it.
type WaveformLoader interface {
	Load(ctx context.Context, data []byte) (audio.Waveform, error)
}

// Coach writes coaching feedback. *feedback.Generator satisfies it.
type Coach interface {
	Feedback(ctx context.Context, expected, heard string, ratio float64) string
}

// Request is one recording to analyse.
type Request struct {
	Page int

	// Level is the difficulty level; zero selects the analyzer default.
	Level tajweed.Level

	// UserID owns the history entry; empty means [GuestUser].
	UserID string

	Audio stt.Audio

	// AudioPath is where the caller stored the upload, kept in history.
	AudioPath string
}

// Option configures an [Analyzer].
type Option func(*Analyzer)

// WithSTTName labels transcription metrics. Defaults to "stt".
func WithSTTName(name string) Option {
	return func(a *Analyzer) {
		if name != "" {
			a.sttName = name
		}
	}
}

// WithLoader decodes recordings for the acoustic checks. Without a loader
// words are verified on text alone.
func WithLoader(l WaveformLoader) Option {
	return func(a *Analyzer) { a.loader = l }
}

// WithVerifier sets the acoustic verifier. Defaults to a verifier without
// spectral analysis.
func WithVerifier(v *tajweed.Verifier) Option {
	return func(a *Analyzer) {
		if v != nil {
			a.verifier = v
		}
	}
}

// WithCoach enables coaching feedback.
func WithCoach(c Coach) Option {
	return func(a *Analyzer) { a.coach = c }
}

// WithHistory saves every analysis to s.
func WithHistory(s history.Store) Option {
	return func(a *Analyzer) { a.history = s }
}

// WithMetrics records analysis metrics on m. Defaults to [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(a *Analyzer) {
		if m != nil {
			a.metrics = m
		}
	}
}

// WithWorkers bounds concurrent word analyses. Defaults to 4.
func WithWorkers(n int) Option {
	return func(a *Analyzer) {
		if n > 0 {
			a.workers = n
		}
	}
}

// WithTranscribeTimeout bounds the ASR call. Defaults to 2 minutes.
func WithTranscribeTimeout(d time.Duration) Option {
	return func(a *Analyzer) {
		if d > 0 {
			a.transcribeTimeout = d
		}
	}
}

// WithDefaultLevel sets the level used when a request names none.
func WithDefaultLevel(l tajweed.Level) Option {
	return func(a *Analyzer) { a.SetDefaultLevel(l) }
}

// Analyzer runs analyses. It is safe for concurrent use; the default level
// and the feedback switch may be changed while analyses run.
type Analyzer struct {
	stt               stt.Provider
	sttName           string
	reference         reference.Provider
	loader            WaveformLoader
	verifier          *tajweed.Verifier
	coach             Coach
	history           history.Store
	metrics           *observe.Metrics
	workers           int
	transcribeTimeout time.Duration

	defaultLevel    atomic.Int64
	feedbackEnabled atomic.Bool
}

// New returns an Analyzer. transcriber and ref are required.
func New(transcriber stt.Provider, ref reference.Provider, opts ...Option) (*Analyzer, error) {
	if transcriber == nil {
		return nil, errors.New("analysis: stt provider is required")
	}
	if ref == nil {
		return nil, errors.New("analysis: reference provider is required")
	}
	a := &Analyzer{
		stt:               transcriber,
		sttName:           "stt",
		reference:         ref,
		verifier:          tajweed.NewVerifier(nil, audio.DefaultSampleRate),
		workers:           4,
		transcribeTimeout: 2 * time.Minute,
	}
	a.defaultLevel.Store(int64(tajweed.LevelMemorization))
	a.feedbackEnabled.Store(true)
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}
	return a, nil
}

// SetDefaultLevel changes the level used when a request names none. Invalid
// levels are ignored.
func (a *Analyzer) SetDefaultLevel(l tajweed.Level) {
	if l.Valid() {
		a.defaultLevel.Store(int64(l))
	}
}

// DefaultLevel returns the level used when a request names none.
func (a *Analyzer) DefaultLevel() tajweed.Level {
	return tajweed.Level(a.defaultLevel.Load())
}

// SetFeedbackEnabled turns coaching feedback on or off.
func (a *Analyzer) SetFeedbackEnabled(on bool) {
	a.feedbackEnabled.Store(on)
}

// Analyze runs the full pipeline for req.
func (a *Analyzer) Analyze(ctx context.Context, req Request) (rep *Report, err error) {
	if len(req.Audio.Data) == 0 && !req.Audio.HasSamples() {
		return nil, ErrNoAudio
	}
	level := req.Level
	if level == 0 {
		level = a.DefaultLevel()
	}

	ctx, span := observe.StartSpan(ctx, "analysis.analyze")
	defer func() { observe.EndSpan(span, err) }()
	log := observe.Logger(ctx).With("page", req.Page, "level", int(level))

	start := time.Now()
	a.metrics.ActiveAnalyses.Add(ctx, 1)
	defer func() {
		a.metrics.ActiveAnalyses.Add(ctx, -1)
		a.metrics.RecordAnalysis(ctx, int(level), time.Since(start), err)
	}()

	wave := a.decode(ctx, &req.Audio)

	var (
		transcript *stt.Transcript
		text       string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		transcript, err = a.transcribe(gctx, req.Audio)
		return err
	})
	g.Go(func() error {
		var err error
		text, err = a.referenceText(gctx, req.Page)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	words := arabic.Words(text)
	entries := align.Align(words, transcript.Words)
	beat := align.EstimateBeat(entries)
	log.Debug("aligned recording",
		"reference_words", len(words),
		"heard_words", len(transcript.Words),
		"matched", align.Coverage(entries),
		"beat", beat,
	)

	results, err := a.scoreWords(ctx, entries, wave, level, beat)
	if err != nil {
		return nil, err
	}

	rep = &Report{
		Page:          req.Page,
		Level:         level,
		Transcription: transcriptText(transcript),
		Words:         results,
		Beat:          beat,
		Disclaimer:    Disclaimer,
	}
	matched := 0
	for _, w := range results {
		if w.Valid {
			matched++
		}
	}
	rep.Overall = tajweed.NewOverall(matched, len(words))

	if a.coach != nil && a.feedbackEnabled.Load() {
		rep.Feedback = a.coach.Feedback(ctx, arabic.Normalize(text), arabic.Normalize(rep.Transcription), rep.Overall.Score)
	}

	rep.RecordingID = a.save(ctx, req, history.ScoreFromRatio(rep.Overall.Score), rep.Feedback)

	log.Info("analysis complete",
		"score", rep.Overall.Percent(),
		"matched", rep.Overall.Matched,
		"total", rep.Overall.Total,
		"duration", time.Since(start),
	)
	return rep, nil
}

// decode loads the waveform and fills in the samples of au when the caller
// did not. Failures leave the waveform empty.
func (a *Analyzer) decode(ctx context.Context, au *stt.Audio) audio.Waveform {
	if au.HasSamples() {
		return audio.Waveform{Samples: au.Samples, SampleRate: au.SampleRate}
	}
	if a.loader == nil {
		return audio.Waveform{}
	}

	ctx, span := observe.StartSpan(ctx, "analysis.decode")
	defer span.End()

	w, err := a.loader.Load(ctx, au.Data)
	if err != nil {
		span.RecordError(err)
		observe.Logger(ctx).Warn("analysis: recording not decoded, acoustic checks disabled", "err", err)
		return audio.Waveform{}
	}
	au.Samples, au.SampleRate = w.Samples, w.SampleRate
	return w
}

func (a *Analyzer) transcribe(ctx context.Context, au stt.Audio) (_ *stt.Transcript, err error) {
	ctx, span := observe.StartSpan(ctx, "analysis.transcribe")
	defer func() { observe.EndSpan(span, err) }()

	ctx, cancel := context.WithTimeout(ctx, a.transcribeTimeout)
	defer cancel()

	start := time.Now()
	t, err := a.stt.Transcribe(ctx, au)
	a.metrics.RecordProviderCall(ctx, a.sttName, observe.KindSTT, time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTranscription, err)
	}
	if t == nil {
		t = &stt.Transcript{}
	}
	t.Words = stt.CleanWords(t.Words)
	return t, nil
}

func (a *Analyzer) referenceText(ctx context.Context, page int) (_ string, err error) {
	ctx, span := observe.StartSpan(ctx, "analysis.reference")
	defer func() { observe.EndSpan(span, err) }()

	start := time.Now()
	text, err := a.reference.Text(ctx, page)
	a.metrics.RecordProviderCall(ctx, "reference", observe.KindReference, time.Since(start), err)
	if err != nil {
		return "", fmt.Errorf("%w: page %d: %w", ErrReferenceNotFound, page, err)
	}
	if len(arabic.Words(text)) == 0 {
		return "", fmt.Errorf("%w: page %d is empty", ErrReferenceNotFound, page)
	}
	return text, nil
}

// scoreWords analyses every entry, at most a.workers at a time. The next
// word of an entry is the next reference word, whether heard or not.
func (a *Analyzer) scoreWords(ctx context.Context, entries []align.Entry, wave audio.Waveform, level tajweed.Level, beat time.Duration) ([]WordReport, error) {
	ctx, span := observe.StartSpan(ctx, "analysis.words")
	defer span.End()

	out := make([]WordReport, len(entries))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.workers)
	for i, e := range entries {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			next := ""
			if i+1 < len(entries) {
				next = entries[i+1].Expected
			}
			res := a.verifier.AnalyzeWord(tajweed.WordInput{
				Expected:    e.Expected,
				Transcribed: e.Transcribed,
				Next:        next,
				Level:       level,
				Segment:     audio.Extract(wave, e.Start, e.End),
				Beat:        beat,
			})
			out[i] = newWordReport(e, res)

			a.metrics.RecordWord(gctx, res.Valid)
			for _, r := range res.Rules {
				a.metrics.RecordRuleCheck(gctx, r.Rule.String(), string(r.Status))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (a *Analyzer) save(ctx context.Context, req Request, score int, fb string) int64 {
	if a.history == nil {
		return 0
	}
	user := req.UserID
	if user == "" {
		user = GuestUser
	}
	rec := &history.Recording{
		UserID:   user,
		Page:     req.Page,
		FilePath: req.AudioPath,
		Score:    score,
		Feedback: fb,
	}

	start := time.Now()
	err := a.history.Save(ctx, rec)
	a.metrics.RecordProviderCall(ctx, "history", observe.KindHistory, time.Since(start), err)
	if err != nil {
		observe.Logger(ctx).Error("analysis: failed to save recording", "err", err, "user", user)
		return 0
	}
	return rec.ID
}

func transcriptText(t *stt.Transcript) string {
	if t.Text != "" {
		return t.Text
	}
	return stt.JoinWords(t.Words)
}
