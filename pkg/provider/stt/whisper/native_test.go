package whisper_test

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/KarimEG45/CoranBuilding/pkg/provider/stt"
	"github.com/KarimEG45/CoranBuilding/pkg/provider/stt/whisper"
)

// testModelPath returns the path to a whisper model for integration tests.
// It reads from the WHISPER_MODEL_PATH environment variable. If unset the
// test is skipped.
func testModelPath(t *testing.T) string {
	t.Helper()
	p := os.Getenv("WHISPER_MODEL_PATH")
	if p == "" {
		t.Skip("WHISPER_MODEL_PATH not set; skipping native whisper test")
	}
	return p
}

func TestNewNative_EmptyPath_ReturnsError(t *testing.T) {
	_, err := whisper.NewNative("")
	if err == nil {
		t.Fatal("expected error for empty model path, got nil")
	}
}

func TestNativeTranscribe_InvalidPath_ReturnsError(t *testing.T) {
	p, err := whisper.NewNative("/nonexistent/path/to/model.bin")
	if err != nil {
		t.Fatalf("NewNative: %v", err)
	}
	defer p.Close()

	_, err = p.Transcribe(context.Background(), stt.Audio{Samples: make([]float32, 16000), SampleRate: 16000})
	if err == nil {
		t.Fatal("expected error for invalid model path, got nil")
	}
}

func TestNativeTranscribe_RequiresSamples(t *testing.T) {
	p, err := whisper.NewNative("/nonexistent/model.bin")
	if err != nil {
		t.Fatalf("NewNative: %v", err)
	}
	defer p.Close()

	_, err = p.Transcribe(context.Background(), stt.Audio{Data: []byte("webm"), Filename: "a.webm"})
	if !errors.Is(err, stt.ErrNoSamples) {
		t.Fatalf("got error %v, want ErrNoSamples", err)
	}
}

func TestNativeClose_WithoutLoad(t *testing.T) {
	p, err := whisper.NewNative("/nonexistent/model.bin")
	if err != nil {
		t.Fatalf("NewNative: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	_, err = p.Transcribe(context.Background(), stt.Audio{Samples: make([]float32, 16000), SampleRate: 16000})
	if err == nil {
		t.Fatal("expected error after Close, got nil")
	}
}

func TestNativeTranscribe_Silence(t *testing.T) {
	modelPath := testModelPath(t)
	p, err := whisper.NewNative(modelPath, whisper.WithNativeLanguage("ar"))
	if err != nil {
		t.Fatalf("NewNative: %v", err)
	}
	defer p.Close()

	tr, err := p.Transcribe(context.Background(), stt.Audio{Samples: make([]float32, 16000), SampleRate: 16000})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	for i, w := range tr.Words {
		if w.End < w.Start {
			t.Errorf("word %d: end %v before start %v", i, w.End, w.Start)
		}
	}
}
