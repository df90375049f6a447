package stt

import (
	"strings"
	"time"
)

// Audio is one recorded utterance handed to a provider. A provider picks the
// representation it can use: HTTP backends upload Data as-is, in-process
// engines consume the decoded Samples.
type Audio struct {
	// Data is the encoded recording exactly as uploaded (WebM, Ogg, MP3, WAV…).
	Data []byte

	// Filename is the original file name. Backends use its extension as a
	// format hint when uploading Data.
	Filename string

	// Samples is the mono waveform in [-1, 1] at SampleRate, or nil when the
	// recording could not be decoded.
	Samples []float32

	// SampleRate of Samples in Hz (16000 for every backend shipped here).
	SampleRate int

	// Language is the BCP-47 recognition language; empty lets the provider use
	// its configured default.
	Language string
}

// HasSamples reports whether decoded PCM is available.
func (a Audio) HasSamples() bool {
	return len(a.Samples) > 0 && a.SampleRate > 0
}

// Duration returns the length of the decoded waveform, or 0 without samples.
func (a Audio) Duration() time.Duration {
	if !a.HasSamples() {
		return 0
	}
	return time.Duration(float64(len(a.Samples)) / float64(a.SampleRate) * float64(time.Second))
}

// Transcript is the result of transcribing one recording.
type Transcript struct {
	// Text is the full transcribed speech content.
	Text string

	// Confidence is the overall confidence score (0.0–1.0). May be zero if the
	// provider does not report confidence.
	Confidence float64

	// Words holds the recognised words with their timestamps, in time order.
	Words []WordDetail
}

// WordDetail holds one recognised word and its position in the recording.
type WordDetail struct {
	Word       string
	Start      time.Duration
	End        time.Duration
	Confidence float64
}

// Seconds converts a floating-point offset in seconds, as most engines report
// it, into a Duration rounded to the millisecond.
func Seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second)).Round(time.Millisecond)
}

// JoinWords rebuilds a transcript text from its words when a backend returns
// only word-level output.
func JoinWords(words []WordDetail) string {
	parts := make([]string, 0, len(words))
	for _, w := range words {
		if w.Word != "" {
			parts = append(parts, w.Word)
		}
	}
	return strings.Join(parts, " ")
}

// CleanWords trims whitespace from every word, drops the ones left empty and
// repairs inverted timestamps so that Start ≤ End always holds.
func CleanWords(words []WordDetail) []WordDetail {
	out := words[:0:0]
	for _, w := range words {
		w.Word = strings.TrimSpace(w.Word)
		if w.Word == "" {
			continue
		}
		if w.Start < 0 {
			w.Start = 0
		}
		if w.End < w.Start {
			w.End = w.Start
		}
		out = append(out, w)
	}
	return out
}
