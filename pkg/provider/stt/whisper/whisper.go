// Package whisper provides whisper.cpp-backed STT providers.
//
// [Provider] talks to a running whisper-server binary (REST API at
// POST /inference) and asks for verbose JSON so that every recognised word
// comes back with its timestamps. [NativeProvider] runs the model in-process
// through the CGO bindings.
//
// Usage:
//
//	p, err := whisper.New("http://localhost:8080",
//	    whisper.WithLanguage("ar"),
//	)
//	tr, err := p.Transcribe(ctx, stt.Audio{Data: webm, Filename: "rec.webm"})
//	for _, w := range tr.Words {
//	    fmt.Println(w.Word, w.Start, w.End)
//	}
package whisper

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/KarimEG45/CoranBuilding/pkg/audio"
	"github.com/KarimEG45/CoranBuilding/pkg/provider/stt"
)

const (
	defaultLanguage = "ar"
	defaultTimeout  = 120 * time.Second

	// maxResponseBytes bounds the verbose JSON read from the server.
	maxResponseBytes = 16 << 20
)

// Compile-time assertion that Provider implements stt.Provider.
var _ stt.Provider = (*Provider)(nil)

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithModel sets the model identifier forwarded to the whisper.cpp server
// (e.g., "medium", "large-v3"). When empty the server uses whichever model it
// was started with.
func WithModel(model string) Option {
	return func(p *Provider) {
		p.model = model
	}
}

// WithLanguage sets the language code sent to the whisper.cpp server.
// Defaults to "ar".
func WithLanguage(lang string) Option {
	return func(p *Provider) {
		p.language = lang
	}
}

// WithHTTPClient replaces the HTTP client. The default client has a 120 s
// timeout, long enough for a full page of recitation on a CPU server.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) {
		if c != nil {
			p.httpClient = c
		}
	}
}

// Provider implements stt.Provider backed by a whisper.cpp HTTP server.
// It holds no per-request state and is safe for concurrent use.
type Provider struct {
	serverURL  string
	model      string
	language   string
	httpClient *http.Client
}

// New creates a new Provider that connects to the whisper.cpp HTTP server at
// serverURL (e.g., "http://localhost:8080"). serverURL must be non-empty.
func New(serverURL string, opts ...Option) (*Provider, error) {
	if serverURL == "" {
		return nil, errors.New("whisper: serverURL must not be empty")
	}
	p := &Provider{
		serverURL:  strings.TrimRight(serverURL, "/"),
		language:   defaultLanguage,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Transcribe uploads the recording to the /inference endpoint. The encoded
// file is sent as-is when present; otherwise the decoded samples are wrapped
// in a 16-bit WAV container.
func (p *Provider) Transcribe(ctx context.Context, a stt.Audio) (*stt.Transcript, error) {
	data, name := a.Data, a.Filename
	switch {
	case len(data) > 0:
		if name == "" {
			name = "audio"
		}
	case a.HasSamples():
		data = audio.EncodeWAV(audio.Float32ToPCM16(a.Samples), a.SampleRate, 1)
		name = "audio.wav"
	default:
		return nil, fmt.Errorf("whisper: %w", stt.ErrNoData)
	}

	lang := a.Language
	if lang == "" {
		lang = p.language
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	fw, err := mw.CreateFormFile("file", name)
	if err != nil {
		return nil, fmt.Errorf("whisper: create form file: %w", err)
	}
	if _, err := fw.Write(data); err != nil {
		return nil, fmt.Errorf("whisper: write audio data: %w", err)
	}

	fields := map[string]string{
		"response_format": "verbose_json",
		"language":        lang,
		"model":           p.model,
		"temperature":     "0",
	}
	for k, v := range fields {
		if v == "" {
			continue
		}
		if err := mw.WriteField(k, v); err != nil {
			return nil, fmt.Errorf("whisper: write %s field: %w", k, err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("whisper: close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.serverURL+"/inference", &body)
	if err != nil {
		return nil, fmt.Errorf("whisper: create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("whisper: http request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("whisper: read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("whisper: server returned HTTP %d: %s", resp.StatusCode, bytes.TrimSpace(raw))
	}
	return parseVerbose(raw)
}

// verboseResponse is the verbose_json body of whisper-server. Recent servers
// attach a words array to every segment; older ones only report segments.
type verboseResponse struct {
	Text     string `json:"text"`
	Segments []struct {
		Text  string  `json:"text"`
		Start float64 `json:"start"`
		End   float64 `json:"end"`
		Words []struct {
			Word        string  `json:"word"`
			Start       float64 `json:"start"`
			End         float64 `json:"end"`
			Probability float64 `json:"probability"`
		} `json:"words"`
	} `json:"segments"`
}

func parseVerbose(raw []byte) (*stt.Transcript, error) {
	var r verboseResponse
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, fmt.Errorf("whisper: parse JSON response: %w", err)
	}

	var words []stt.WordDetail
	for _, seg := range r.Segments {
		if len(seg.Words) == 0 {
			// No word timing: spread the segment over its words evenly.
			words = append(words, splitSegment(seg.Text, stt.Seconds(seg.Start), stt.Seconds(seg.End))...)
			continue
		}
		for _, w := range seg.Words {
			words = append(words, stt.WordDetail{
				Word:       w.Word,
				Start:      stt.Seconds(w.Start),
				End:        stt.Seconds(w.End),
				Confidence: w.Probability,
			})
		}
	}
	words = stt.CleanWords(words)

	t := &stt.Transcript{Text: strings.TrimSpace(r.Text), Words: words}
	if t.Text == "" {
		t.Text = stt.JoinWords(words)
	}
	t.Confidence = meanConfidence(words)
	return t, nil
}

func meanConfidence(words []stt.WordDetail) float64 {
	if len(words) == 0 {
		return 0
	}
	var sum float64
	for _, w := range words {
		sum += w.Confidence
	}
	return sum / float64(len(words))
}

// splitSegment divides [start, end) evenly among the words of text.
func splitSegment(text string, start, end time.Duration) []stt.WordDetail {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return nil
	}
	step := (end - start) / time.Duration(len(fields))
	out := make([]stt.WordDetail, len(fields))
	for i, f := range fields {
		s := start + time.Duration(i)*step
		out[i] = stt.WordDetail{Word: f, Start: s, End: s + step}
	}
	return out
}
