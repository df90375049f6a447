// Package audio holds the waveform primitives used by recitation analysis:
// decoding recordings into mono float samples, slicing per-word segments out
// of a waveform, PCM/WAV conversion for the STT backends and the short-time
// spectral analysis behind the nasalization check.
package audio

import (
	"math"
	"time"
)

// DefaultSampleRate is the rate every analysis waveform is decoded to. It is
// also the rate whisper.cpp and Vosk expect.
const DefaultSampleRate = 16000

// Waveform is a decoded mono recording. It is owned by a single analysis
// request and never shared across requests.
type Waveform struct {
	// Samples holds amplitudes in [-1, 1].
	Samples []float32

	// SampleRate in Hz.
	SampleRate int
}

// Empty reports whether the waveform holds no usable audio.
func (w Waveform) Empty() bool {
	return len(w.Samples) == 0 || w.SampleRate <= 0
}

// Duration returns the playback length of the waveform.
func (w Waveform) Duration() time.Duration {
	if w.Empty() {
		return 0
	}
	return samplesToDuration(len(w.Samples), w.SampleRate)
}

// Segment is a contiguous slice of a [Waveform]. It is a borrowed view into
// the waveform's backing array: callers must not modify it, and it must not
// outlive the request that owns the waveform.
type Segment []float32

// Duration returns the length of the segment at the given sample rate.
func (s Segment) Duration(sampleRate int) time.Duration {
	if sampleRate <= 0 {
		return 0
	}
	return samplesToDuration(len(s), sampleRate)
}

// Extract returns the samples in [start, end) of w. The result is empty when
// the waveform is empty, the interval is inverted or zero-length, end is not
// positive, or the interval lies outside the recording.
func Extract(w Waveform, start, end time.Duration) Segment {
	if w.Empty() || start >= end || end <= 0 {
		return nil
	}
	from := max(0, durationToSamples(start, w.SampleRate))
	to := min(len(w.Samples), durationToSamples(end, w.SampleRate))
	if to <= from {
		return nil
	}
	return Segment(w.Samples[from:to:to])
}

// RMS returns the root-mean-square amplitude of samples, 0 for an empty slice.
func RMS(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		v := float64(s)
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(samples)))
}

func samplesToDuration(n, sampleRate int) time.Duration {
	return time.Duration(int64(n) * int64(time.Second) / int64(sampleRate))
}

func durationToSamples(d time.Duration, sampleRate int) int {
	return int(int64(d) * int64(sampleRate) / int64(time.Second))
}
