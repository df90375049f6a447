package deepgram

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/KarimEG45/CoranBuilding/pkg/provider/stt"
)

// ---- URL / query-param tests ----

func TestBuildURL_Defaults(t *testing.T) {
	p, err := New("test-key")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	rawURL, err := p.buildURL("", 16000)
	if err != nil {
		t.Fatalf("buildURL: %v", err)
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		t.Fatalf("parse URL: %v", err)
	}
	q := u.Query()

	assertEqual(t, "model", "nova-3", q.Get("model"))
	assertEqual(t, "language", "ar", q.Get("language"))
	assertEqual(t, "encoding", "linear16", q.Get("encoding"))
	assertEqual(t, "sample_rate", "16000", q.Get("sample_rate"))
	assertEqual(t, "channels", "1", q.Get("channels"))
	assertEqual(t, "interim_results", "false", q.Get("interim_results"))
}

func TestBuildURL_LanguageOverride(t *testing.T) {
	p, err := New("key", WithModel("whisper-large"), WithLanguage("ar"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	rawURL, err := p.buildURL("ar-SA", 8000)
	if err != nil {
		t.Fatalf("buildURL: %v", err)
	}

	u, _ := url.Parse(rawURL)
	q := u.Query()
	assertEqual(t, "model", "whisper-large", q.Get("model"))
	assertEqual(t, "language", "ar-SA", q.Get("language"))
	assertEqual(t, "sample_rate", "8000", q.Get("sample_rate"))
}

// ---- JSON parsing tests ----

func TestParseDeepgramResponse_Final(t *testing.T) {
	raw := []byte(`{
		"type": "Results",
		"is_final": true,
		"channel": {
			"alternatives": [{
				"transcript": "بسم الله",
				"confidence": 0.95,
				"words": [
					{"word": "بسم", "start": 0.1, "end": 0.5, "confidence": 0.97},
					{"word": "الله", "start": 0.6, "end": 1.0, "confidence": 0.93}
				]
			}]
		}
	}`)

	r, ok := parseDeepgramResponse(raw)
	if !ok {
		t.Fatal("expected ok=true for valid Results message")
	}

	if !r.final {
		t.Error("expected final=true")
	}
	assertEqual(t, "text", "بسم الله", r.text)
	if r.confidence != 0.95 {
		t.Errorf("expected confidence 0.95, got %f", r.confidence)
	}
	if len(r.words) != 2 {
		t.Fatalf("expected 2 words, got %d", len(r.words))
	}
	assertEqual(t, "word[0]", "بسم", r.words[0].Word)
	if r.words[0].Start != 100*time.Millisecond {
		t.Errorf("unexpected start: %v", r.words[0].Start)
	}
}

func TestParseDeepgramResponse_NonResultsType(t *testing.T) {
	raw := []byte(`{"type":"Metadata","request_id":"abc"}`)
	_, ok := parseDeepgramResponse(raw)
	if ok {
		t.Error("expected ok=false for non-Results message")
	}
}

func TestParseDeepgramResponse_EmptyAlternatives(t *testing.T) {
	raw := []byte(`{"type":"Results","is_final":true,"channel":{"alternatives":[]}}`)
	_, ok := parseDeepgramResponse(raw)
	if ok {
		t.Error("expected ok=false when alternatives is empty")
	}
}

func TestParseDeepgramResponse_InvalidJSON(t *testing.T) {
	_, ok := parseDeepgramResponse([]byte(`{invalid`))
	if ok {
		t.Error("expected ok=false for invalid JSON")
	}
}

// ---- Transcribe over a fake listen endpoint ----

// newListenServer accepts one WebSocket, counts the PCM bytes it receives and
// answers CloseStream with the given messages before closing normally.
func newListenServer(t *testing.T, received *atomic.Int64, replies ...string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Token key" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.CloseNow()

		ctx := r.Context()
		for {
			typ, msg, err := conn.Read(ctx)
			if err != nil {
				return
			}
			if typ == websocket.MessageBinary {
				received.Add(int64(len(msg)))
				continue
			}
			if strings.Contains(string(msg), "CloseStream") {
				break
			}
		}
		for _, reply := range replies {
			if err := conn.Write(ctx, websocket.MessageText, []byte(reply)); err != nil {
				return
			}
		}
		conn.Close(websocket.StatusNormalClosure, "")
	}))
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestTranscribe_CollectsFinalResults(t *testing.T) {
	t.Parallel()

	var received atomic.Int64
	srv := newListenServer(t, &received,
		`{"type":"Metadata"}`,
		`{"type":"Results","is_final":false,"channel":{"alternatives":[{"transcript":"بس","words":[]}]}}`,
		`{"type":"Results","is_final":true,"channel":{"alternatives":[{"transcript":"بسم","confidence":0.8,"words":[{"word":"بسم","start":0.1,"end":0.4,"confidence":0.8}]}]}}`,
		`{"type":"Results","is_final":true,"channel":{"alternatives":[{"transcript":"الله","confidence":0.6,"words":[{"word":"الله","start":0.5,"end":0.9,"confidence":0.6}]}]}}`,
	)
	defer srv.Close()

	p, _ := New("key", WithEndpoint(wsURL(srv)))
	samples := make([]float32, 16000) // 32000 bytes of PCM16
	tr, err := p.Transcribe(context.Background(), stt.Audio{Samples: samples, SampleRate: 16000})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}

	if got := received.Load(); got != 32000 {
		t.Errorf("server received %d PCM bytes, want 32000", got)
	}
	assertEqual(t, "text", "بسم الله", tr.Text)
	if len(tr.Words) != 2 {
		t.Fatalf("expected 2 words, got %d", len(tr.Words))
	}
	if tr.Words[1].Start != 500*time.Millisecond {
		t.Errorf("word 1 start: got %v, want 500ms", tr.Words[1].Start)
	}
	if tr.Confidence < 0.69 || tr.Confidence > 0.71 {
		t.Errorf("confidence: got %v, want 0.7", tr.Confidence)
	}
}

func TestTranscribe_RequiresSamples(t *testing.T) {
	t.Parallel()

	p, _ := New("key")
	_, err := p.Transcribe(context.Background(), stt.Audio{Data: []byte("webm")})
	if !errors.Is(err, stt.ErrNoSamples) {
		t.Fatalf("got error %v, want ErrNoSamples", err)
	}
}

func TestTranscribe_DialFailure(t *testing.T) {
	t.Parallel()

	var received atomic.Int64
	srv := newListenServer(t, &received)
	defer srv.Close()

	p, _ := New("wrong-key", WithEndpoint(wsURL(srv)))
	_, err := p.Transcribe(context.Background(), stt.Audio{Samples: make([]float32, 160), SampleRate: 16000})
	if err == nil {
		t.Fatal("expected dial error, got nil")
	}
}

// ---- Constructor tests ----

func TestNew_EmptyAPIKey(t *testing.T) {
	_, err := New("")
	if err == nil {
		t.Error("expected error for empty API key")
	}
}

func TestNew_Defaults(t *testing.T) {
	p, err := New("key")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	assertEqual(t, "model", defaultModel, p.model)
	assertEqual(t, "language", defaultLanguage, p.language)
	assertEqual(t, "endpoint", deepgramEndpoint, p.endpoint)
}

// ---- helpers ----

func assertEqual(t *testing.T, label, want, got string) {
	t.Helper()
	if want != got {
		t.Errorf("%s: want %q, got %q", label, want, got)
	}
}
