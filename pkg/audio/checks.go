package audio

import (
	"fmt"
	"log/slog"
	"math"
	"time"
)

// Frequency bands used by the nasalization check.
const (
	nasalLoHz  = 500
	nasalHiHz  = 3000
	speechLoHz = 200
	speechHiHz = 8000
)

// neutral is the outcome of a check that could not be computed.
const neutral = 0.5

// CheckQalqalah looks for the release burst of a stop consonant: the last 30%
// of seg must carry more than 30% of the RMS energy of the first 70%.
// Non-finite samples make the check neutral.
func CheckQalqalah(seg Segment, sampleRate int) (bool, float64) {
	if sampleRate <= 0 || seg.Duration(sampleRate) < 50*time.Millisecond {
		return false, 0.35
	}

	split := int(float64(len(seg)) * 0.70)
	body := RMS(seg[:split])
	tail := RMS(seg[split:])
	if !finite(body) || !finite(tail) {
		slog.Warn("audio: qalqalah check on non-finite samples")
		return true, neutral
	}
	if body < 1e-6 {
		return false, 0.30
	}

	ratio := tail / body
	if ratio > 0.30 {
		return true, round3(math.Min(0.90, 0.50+ratio))
	}
	return false, round3(math.Max(0.10, ratio*0.60))
}

// CheckMaddDuration verifies that seg lasts at least beats × beat, with a 20%
// tolerance for tempo variation. The comparison is done in whole samples so a
// segment of exactly the required length passes.
func CheckMaddDuration(seg Segment, sampleRate, beats int, beat time.Duration) (bool, float64) {
	if len(seg) == 0 || sampleRate <= 0 || beat <= 0 {
		return false, 0.20
	}

	required := int64(beats) * int64(beat) * 8 / 10 * int64(sampleRate) / int64(time.Second)
	ratio := 1.0
	if required > 0 {
		ratio = float64(len(seg)) / float64(required)
	}

	if int64(len(seg)) >= required {
		return true, round3(math.Min(0.90, ratio*0.75))
	}
	return false, round3(math.Max(0.10, ratio*0.50))
}

// CheckGhunnah compares the mean spectral magnitude of the nasal band
// (500–3000 Hz) with that of the whole speech band (200–8000 Hz). Without an
// analyzer, on short segments and on analyzer failure (error, panic or
// non-finite spectrum) the check is neutral and returns (true, 0.5).
func CheckGhunnah(seg Segment, sampleRate int, analyzer SpectralAnalyzer) (bool, float64) {
	if analyzer == nil || sampleRate <= 0 || seg.Duration(sampleRate) < 80*time.Millisecond {
		return true, neutral
	}

	spec, err := safeSTFT(analyzer, seg, sampleRate)
	if err != nil {
		slog.Warn("audio: ghunnah spectrum failed", "error", err)
		return true, neutral
	}
	nasal, ok1 := spec.BandMean(nasalLoHz, nasalHiHz)
	speech, ok2 := spec.BandMean(speechLoHz, speechHiHz)
	if !ok1 || !ok2 || !finite(nasal) || !finite(speech) || speech < 1e-8 {
		return true, neutral
	}

	ratio := nasal / speech
	if ratio > 0.40 {
		return true, round3(math.Min(0.85, ratio*1.10))
	}
	return false, round3(math.Max(0.10, ratio*0.80))
}

// safeSTFT runs the analyzer, turning a panic into an error.
func safeSTFT(analyzer SpectralAnalyzer, seg Segment, sampleRate int) (spec Spectrogram, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("spectral analyzer panicked: %v", r)
		}
	}()
	return analyzer.STFT(seg, sampleRate)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
