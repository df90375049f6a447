// Package openai provides an STT provider backed by the OpenAI audio
// transcription endpoint, requesting verbose JSON with word-level timestamps.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/KarimEG45/CoranBuilding/pkg/audio"
	"github.com/KarimEG45/CoranBuilding/pkg/provider/stt"
)

const defaultLanguage = "ar"

// Compile-time assertion that Provider implements stt.Provider.
var _ stt.Provider = (*Provider)(nil)

// Provider implements stt.Provider using the OpenAI API.
type Provider struct {
	client   oai.Client
	model    string
	language string
}

// config holds optional configuration for the provider.
type config struct {
	baseURL  string
	language string
	timeout  time.Duration
}

// Option is a functional option for Provider.
type Option func(*config)

// WithBaseURL overrides the default OpenAI API base URL. Any server speaking
// the OpenAI transcription API (e.g. faster-whisper-server) can be used.
func WithBaseURL(url string) Option {
	return func(c *config) {
		c.baseURL = url
	}
}

// WithLanguage sets the ISO-639-1 language hint. Defaults to "ar".
func WithLanguage(lang string) Option {
	return func(c *config) {
		c.language = lang
	}
}

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		c.timeout = d
	}
}

// New constructs a new OpenAI STT Provider. An empty model selects whisper-1.
func New(apiKey string, model string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("openai: apiKey must not be empty")
	}
	if model == "" {
		model = string(oai.AudioModelWhisper1)
	}

	cfg := &config{language: defaultLanguage}
	for _, o := range opts {
		o(cfg)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{
			Timeout: cfg.timeout,
		}))
	}

	return &Provider{
		client:   oai.NewClient(reqOpts...),
		model:    model,
		language: cfg.language,
	}, nil
}

// Transcribe implements stt.Provider.
func (p *Provider) Transcribe(ctx context.Context, a stt.Audio) (*stt.Transcript, error) {
	data, name := a.Data, a.Filename
	switch {
	case len(data) > 0:
		if name == "" {
			name = "audio.webm"
		}
	case a.HasSamples():
		data = audio.EncodeWAV(audio.Float32ToPCM16(a.Samples), a.SampleRate, 1)
		name = "audio.wav"
	default:
		return nil, fmt.Errorf("openai: %w", stt.ErrNoData)
	}

	ctype := mime.TypeByExtension(filepath.Ext(name))
	if ctype == "" {
		ctype = "application/octet-stream"
	}
	lang := a.Language
	if lang == "" {
		lang = p.language
	}

	params := oai.AudioTranscriptionNewParams{
		File:                   oai.File(bytes.NewReader(data), name, ctype),
		Model:                  oai.AudioModel(p.model),
		ResponseFormat:         oai.AudioResponseFormatVerboseJSON,
		TimestampGranularities: []string{"word"},
		Temperature:            oai.Float(0),
	}
	if lang != "" {
		params.Language = oai.String(lang)
	}

	resp, err := p.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai: transcription: %w", err)
	}
	return parseVerbose(resp.RawJSON(), resp.Text)
}

// verboseTranscription holds the fields of the verbose_json response that
// the SDK does not model.
type verboseTranscription struct {
	Text  string `json:"text"`
	Words []struct {
		Word  string  `json:"word"`
		Start float64 `json:"start"`
		End   float64 `json:"end"`
	} `json:"words"`
}

func parseVerbose(raw, text string) (*stt.Transcript, error) {
	var v verboseTranscription
	if raw != "" {
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			return nil, fmt.Errorf("openai: parse verbose response: %w", err)
		}
	}
	words := make([]stt.WordDetail, 0, len(v.Words))
	for _, w := range v.Words {
		words = append(words, stt.WordDetail{
			Word:  w.Word,
			Start: stt.Seconds(w.Start),
			End:   stt.Seconds(w.End),
		})
	}
	if text == "" {
		text = v.Text
	}
	return &stt.Transcript{
		Text:  strings.TrimSpace(text),
		Words: stt.CleanWords(words),
	}, nil
}
