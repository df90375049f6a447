package tajweed

import (
	"log/slog"
	"time"

	"github.com/KarimEG45/CoranBuilding/pkg/audio"
)

// Check is the outcome of verifying one occurrence.
type Check struct {
	Passed     bool
	Confidence float64
}

// Verifier checks rule occurrences against the audio of the word that
// carries them. The zero value verifies at [audio.DefaultSampleRate] without
// spectral analysis, so nasalization checks are neutral.
//
// A Verifier is safe for concurrent use if its analyzer is.
type Verifier struct {
	// Analyzer computes spectra for the nasalization checks. Nil disables
	// them.
	Analyzer audio.SpectralAnalyzer

	// SampleRate of the segments passed to Check. Zero means
	// [audio.DefaultSampleRate].
	SampleRate int
}

// NewVerifier returns a Verifier using analyzer (may be nil).
func NewVerifier(analyzer audio.SpectralAnalyzer, sampleRate int) *Verifier {
	return &Verifier{Analyzer: analyzer, SampleRate: sampleRate}
}

func (v *Verifier) sampleRate() int {
	if v == nil || v.SampleRate <= 0 {
		return audio.DefaultSampleRate
	}
	return v.SampleRate
}

func (v *Verifier) analyzer() audio.SpectralAnalyzer {
	if v == nil {
		return nil
	}
	return v.Analyzer
}

// Check verifies o for a word transcribed as transcribed whose audio is seg.
// A word that was not heard fails with zero confidence. A heard word without
// usable audio passes on textual evidence with confidence 0.60.
func (v *Verifier) Check(o Occurrence, transcribed string, seg audio.Segment, beat time.Duration) Check {
	if transcribed == "" {
		return Check{Passed: false, Confidence: 0}
	}
	if len(seg) == 0 {
		return Check{Passed: true, Confidence: 0.60}
	}

	sr := v.sampleRate()
	var passed bool
	var conf float64
	switch o.Kind {
	case Qalqalah:
		passed, conf = audio.CheckQalqalah(seg, sr)
	case Madd:
		passed, conf = audio.CheckMaddDuration(seg, sr, o.Madd.Beats(), beat)
	case NoonSakinah, Tanween, MeemSakinah, GhunnahMushaddada:
		passed, conf = audio.CheckGhunnah(seg, sr, v.analyzer())
	default:
		slog.Warn("tajweed: no acoustic check for rule kind", "kind", o.Kind)
		passed, conf = true, 0.60
	}
	return Check{Passed: passed, Confidence: conf}
}
