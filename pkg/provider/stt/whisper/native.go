// This file contains the NativeProvider implementation backed by the
// whisper.cpp CGO bindings. The whisper.cpp static library (libwhisper.a)
// and headers (whisper.h) must be available at link time via LIBRARY_PATH
// and C_INCLUDE_PATH environment variables.

package whisper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/KarimEG45/CoranBuilding/pkg/audio"
	"github.com/KarimEG45/CoranBuilding/pkg/provider/stt"
	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"
)

// Compile-time assertion that NativeProvider satisfies stt.Provider.
var _ stt.Provider = (*NativeProvider)(nil)

// NativeProvider implements stt.Provider using whisper.cpp Go bindings
// (CGO). The model is loaded on first use and shared by every request; each
// request gets its own whisper context.
type NativeProvider struct {
	modelPath string
	language  string
	threads   uint

	load func() (whisperlib.Model, error)

	// mu serialises Close against in-flight requests.
	mu     sync.RWMutex
	model  whisperlib.Model // set by load
	closed bool
}

// NativeOption is a functional option for configuring a NativeProvider.
type NativeOption func(*NativeProvider)

// WithNativeLanguage sets the language code for transcription. Defaults to
// "ar".
func WithNativeLanguage(lang string) NativeOption {
	return func(p *NativeProvider) { p.language = lang }
}

// WithNativeThreads sets the number of CPU threads used per request. Zero
// keeps the whisper.cpp default.
func WithNativeThreads(n uint) NativeOption {
	return func(p *NativeProvider) { p.threads = n }
}

// NewNative creates a NativeProvider for the model file at modelPath. The
// model is not read until the first Transcribe call. The caller must call
// Close when the provider is no longer needed.
func NewNative(modelPath string, opts ...NativeOption) (*NativeProvider, error) {
	if modelPath == "" {
		return nil, errors.New("whisper: modelPath must not be empty")
	}
	p := &NativeProvider{
		modelPath: modelPath,
		language:  defaultLanguage,
	}
	for _, o := range opts {
		o(p)
	}
	p.load = sync.OnceValues(func() (whisperlib.Model, error) {
		slog.Info("whisper: loading model", "path", p.modelPath)
		m, err := whisperlib.New(p.modelPath)
		if err != nil {
			return nil, fmt.Errorf("whisper: load model %q: %w", p.modelPath, err)
		}
		p.model = m
		return m, nil
	})
	return p, nil
}

// Close releases the whisper model if it was loaded.
func (p *NativeProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	if p.model == nil {
		return nil
	}
	return p.model.Close()
}

// Transcribe runs whisper.cpp on the decoded samples. Token timestamps are
// enabled and segments are split on word boundaries with a maximum length of
// one token, so every segment carries a single word.
func (p *NativeProvider) Transcribe(ctx context.Context, a stt.Audio) (*stt.Transcript, error) {
	if !a.HasSamples() {
		return nil, fmt.Errorf("whisper: %w", stt.ErrNoSamples)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("whisper: %w", err)
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return nil, errors.New("whisper: provider is closed")
	}

	model, err := p.load()
	if err != nil {
		return nil, err
	}

	// A context is NOT thread-safe, but the model can be shared across
	// goroutines.
	wctx, err := model.NewContext()
	if err != nil {
		return nil, fmt.Errorf("whisper: create context: %w", err)
	}

	lang := a.Language
	if lang == "" {
		lang = p.language
	}
	if err := wctx.SetLanguage(lang); err != nil {
		slog.Warn("whisper: failed to set language, using default", "language", lang, "error", err)
	}
	if p.threads > 0 {
		wctx.SetThreads(p.threads)
	}
	wctx.SetTokenTimestamps(true)
	wctx.SetSplitOnWord(true)
	wctx.SetMaxSegmentLength(1)

	samples := a.Samples
	if a.SampleRate != audio.DefaultSampleRate {
		samples = audio.Resample(samples, a.SampleRate, audio.DefaultSampleRate)
	}

	// whisper.cpp has no cancellation hook; abort between segments instead.
	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return nil, fmt.Errorf("whisper: process audio: %w", err)
	}

	var words []stt.WordDetail
	for {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("whisper: %w", err)
		}
		segment, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("whisper: read segment: %w", err)
		}
		var conf float64
		for _, tok := range segment.Tokens {
			conf += float64(tok.P)
		}
		if n := len(segment.Tokens); n > 0 {
			conf /= float64(n)
		}
		for _, w := range strings.Fields(segment.Text) {
			words = append(words, stt.WordDetail{
				Word:       w,
				Start:      segment.Start,
				End:        segment.End,
				Confidence: conf,
			})
		}
	}
	words = stt.CleanWords(words)

	return &stt.Transcript{
		Text:       stt.JoinWords(words),
		Confidence: meanConfidence(words),
		Words:      words,
	}, nil
}
