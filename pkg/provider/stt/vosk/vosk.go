// Package vosk provides an offline STT provider backed by the Vosk (Kaldi)
// recogniser through its CGO bindings. The model is loaded once on first use
// and shared; every request gets its own recogniser.
package vosk

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	vosk "github.com/alphacep/vosk-api/go"

	"github.com/KarimEG45/CoranBuilding/pkg/audio"
	"github.com/KarimEG45/CoranBuilding/pkg/provider/stt"
)

// chunkSamples is the number of samples fed to the recogniser per call
// (250 ms at 16 kHz).
const chunkSamples = 4000

// Compile-time assertion that Provider implements stt.Provider.
var _ stt.Provider = (*Provider)(nil)

// Provider implements stt.Provider with a local Vosk model.
type Provider struct {
	modelPath string
	load      func() (*vosk.VoskModel, error)

	mu     sync.RWMutex
	model  *vosk.VoskModel // set by load
	closed bool
}

// New creates a Provider for the model directory at modelPath. The model is
// not read until the first Transcribe call.
func New(modelPath string) (*Provider, error) {
	if modelPath == "" {
		return nil, errors.New("vosk: modelPath must not be empty")
	}
	p := &Provider{modelPath: modelPath}
	p.load = sync.OnceValues(func() (*vosk.VoskModel, error) {
		vosk.SetLogLevel(-1)
		slog.Info("vosk: loading model", "path", modelPath)
		m, err := vosk.NewModel(modelPath)
		if err != nil {
			return nil, fmt.Errorf("vosk: load model %q: %w", modelPath, err)
		}
		if m == nil {
			return nil, fmt.Errorf("vosk: load model %q: model returned nil", modelPath)
		}
		p.model = m
		return m, nil
	})
	return p, nil
}

// Close frees the model if it was loaded.
func (p *Provider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	if p.model != nil {
		p.model.Free()
		p.model = nil
	}
	return nil
}

// Transcribe feeds the decoded samples to a fresh recogniser with word
// results enabled and collects every utterance it commits.
func (p *Provider) Transcribe(ctx context.Context, a stt.Audio) (*stt.Transcript, error) {
	if !a.HasSamples() {
		return nil, fmt.Errorf("vosk: %w", stt.ErrNoSamples)
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return nil, errors.New("vosk: provider is closed")
	}
	model, err := p.load()
	if err != nil {
		return nil, err
	}

	rec, err := vosk.NewRecognizer(model, float64(a.SampleRate))
	if err != nil {
		return nil, fmt.Errorf("vosk: create recognizer: %w", err)
	}
	defer rec.Free()
	rec.SetWords(1)

	var results []result
	for off := 0; off < len(a.Samples); off += chunkSamples {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("vosk: %w", err)
		}
		end := min(off+chunkSamples, len(a.Samples))
		if rec.AcceptWaveform(audio.Float32ToPCM16(a.Samples[off:end])) > 0 {
			r, err := parseResult(rec.Result())
			if err != nil {
				return nil, err
			}
			results = append(results, r)
		}
	}
	r, err := parseResult(rec.FinalResult())
	if err != nil {
		return nil, err
	}
	results = append(results, r)

	return merge(results), nil
}

// result is the JSON document Vosk returns for a committed utterance.
type result struct {
	Text   string `json:"text"`
	Result []struct {
		Conf  float64 `json:"conf"`
		End   float64 `json:"end"`
		Start float64 `json:"start"`
		Word  string  `json:"word"`
	} `json:"result,omitempty"`
}

func parseResult(raw string) (result, error) {
	var r result
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		return result{}, fmt.Errorf("vosk: parse result: %w", err)
	}
	return r, nil
}

func merge(results []result) *stt.Transcript {
	var (
		texts []string
		words []stt.WordDetail
	)
	for _, r := range results {
		if t := strings.TrimSpace(r.Text); t != "" {
			texts = append(texts, t)
		}
		for _, w := range r.Result {
			words = append(words, stt.WordDetail{
				Word:       w.Word,
				Start:      stt.Seconds(w.Start),
				End:        stt.Seconds(w.End),
				Confidence: w.Conf,
			})
		}
	}
	words = stt.CleanWords(words)

	t := &stt.Transcript{Text: strings.Join(texts, " "), Words: words}
	if len(words) > 0 {
		var sum float64
		for _, w := range words {
			sum += w.Confidence
		}
		t.Confidence = sum / float64(len(words))
	}
	return t
}
