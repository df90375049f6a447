// Package stt defines the Provider interface for Speech-to-Text backends.
//
// An STT provider wraps a transcription engine (a whisper.cpp server, the
// in-process whisper.cpp model, Vosk, OpenAI or Deepgram) and exposes one
// uniform batch operation: a complete, already-recorded utterance goes in and
// a transcript with per-word timestamps comes out. The recitation analyzer
// depends on those timestamps to slice the waveform word by word, so every
// implementation must populate [Transcript.Words] with Start/End offsets
// relative to the start of the recording.
//
// Implementations must be safe for concurrent use.
package stt

import (
	"context"
	"errors"
)

// ErrNoSamples is returned by providers that need decoded PCM samples when
// the [Audio] carries only an encoded file.
var ErrNoSamples = errors.New("stt: decoded samples are required by this provider")

// ErrNoData is returned by providers that upload the encoded recording when
// the [Audio] carries neither file bytes nor samples.
var ErrNoData = errors.New("stt: audio carries no data")

// Provider is the abstraction over any STT backend.
type Provider interface {
	// Transcribe recognises the whole recording and returns the transcript with
	// word timestamps. Words are ordered by time and satisfy Start ≤ End; the
	// slice may be empty when nothing was recognised.
	//
	// Returns an error when the backend fails or ctx is cancelled. Callers treat
	// any error as fatal for the analysis; providers do not retry internally.
	Transcribe(ctx context.Context, audio Audio) (*Transcript, error)
}
