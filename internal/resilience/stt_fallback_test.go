package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/KarimEG45/CoranBuilding/pkg/provider/stt"
	sttmock "github.com/KarimEG45/CoranBuilding/pkg/provider/stt/mock"
)

func TestSTTFallback_Transcribe(t *testing.T) {
	t.Parallel()

	primary := &sttmock.Provider{Err: errors.New("whisper server unreachable")}
	secondary := &sttmock.Provider{Transcript: &stt.Transcript{
		Text:  "بسم الله",
		Words: []stt.WordDetail{{Word: "بسم", End: 400 * time.Millisecond}, {Word: "الله", Start: 400 * time.Millisecond, End: 900 * time.Millisecond}},
	}}

	fb := NewSTTFallback(primary, "whisper", FallbackConfig{})
	fb.AddFallback("vosk", secondary)

	tr, err := fb.Transcribe(context.Background(), stt.Audio{Data: []byte("webm")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tr.Text != "بسم الله" || len(tr.Words) != 2 {
		t.Errorf("transcript = %+v, want secondary's", tr)
	}
	if primary.CallCount() != 1 || secondary.CallCount() != 1 {
		t.Errorf("calls = (%d, %d), want (1, 1)", primary.CallCount(), secondary.CallCount())
	}
}

func TestSTTFallback_CancelledContext(t *testing.T) {
	t.Parallel()

	block := make(chan struct{})
	primary := &sttmock.Provider{Delay: block}
	secondary := &sttmock.Provider{}

	fb := NewSTTFallback(primary, "whisper", FallbackConfig{})
	fb.AddFallback("vosk", secondary)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := fb.Transcribe(ctx, stt.Audio{Data: []byte("x")}); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if secondary.CallCount() != 0 {
		t.Error("a cancelled request must not fail over")
	}
}
