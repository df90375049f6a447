package audio_test

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/KarimEG45/CoranBuilding/pkg/audio"
)

const testRate = audio.DefaultSampleRate

func constant(d time.Duration, amp float32) audio.Segment {
	seg := make(audio.Segment, int(d.Seconds()*testRate))
	for i := range seg {
		seg[i] = amp
	}
	return seg
}

type failingAnalyzer struct{}

func (failingAnalyzer) STFT([]float32, int) (audio.Spectrogram, error) {
	return audio.Spectrogram{}, errors.New("boom")
}

type panickingAnalyzer struct{}

func (panickingAnalyzer) STFT([]float32, int) (audio.Spectrogram, error) {
	panic("index out of range")
}

// releasing returns 100ms at 0.5 whose last 30% drops to tail.
func releasing(tail float32) audio.Segment {
	seg := constant(100*time.Millisecond, 0.5)
	for i := len(seg) * 7 / 10; i < len(seg); i++ {
		seg[i] = tail
	}
	return seg
}

func TestCheckQalqalah(t *testing.T) {
	t.Parallel()

	nanBody := constant(100*time.Millisecond, 0.5)
	nanBody[10] = float32(math.NaN())
	infTail := releasing(float32(math.Inf(1)))

	tests := []struct {
		name     string
		seg      audio.Segment
		wantPass bool
		wantConf float64
	}{
		{"too short", constant(25*time.Millisecond, 0.5), false, 0.35},
		{"silent", constant(100*time.Millisecond, 0), false, 0.30},
		{"sustained release", constant(100*time.Millisecond, 0.5), true, 0.90},
		{"no release", releasing(0.05), false, 0.10},
		{"release ratio 0.45", releasing(0.225), true, 0.90},
		{"release ratio 0.35", releasing(0.175), true, 0.85},
		{"weak release ratio 0.25", releasing(0.125), false, 0.15},
		{"NaN sample", nanBody, true, 0.5},
		{"infinite sample", infTail, true, 0.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			pass, conf := audio.CheckQalqalah(tt.seg, testRate)
			if pass != tt.wantPass || conf != tt.wantConf {
				t.Errorf("CheckQalqalah() = (%v, %v), want (%v, %v)", pass, conf, tt.wantPass, tt.wantConf)
			}
		})
	}
}

func TestCheckMaddDuration(t *testing.T) {
	t.Parallel()

	const beat = 200 * time.Millisecond
	tests := []struct {
		name     string
		seg      audio.Segment
		beats    int
		beat     time.Duration
		wantPass bool
		wantConf float64
	}{
		// Two beats need 2 × 200ms × 0.8 = 320ms.
		{"long enough", constant(480*time.Millisecond, 0.3), 2, beat, true, 0.90},
		{"too short", constant(160*time.Millisecond, 0.3), 2, beat, false, 0.25},
		{"no beat", constant(480*time.Millisecond, 0.3), 2, 0, false, 0.20},
		{"no audio", nil, 2, beat, false, 0.20},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			pass, conf := audio.CheckMaddDuration(tt.seg, testRate, tt.beats, tt.beat)
			if pass != tt.wantPass || conf != tt.wantConf {
				t.Errorf("CheckMaddDuration() = (%v, %v), want (%v, %v)", pass, conf, tt.wantPass, tt.wantConf)
			}
		})
	}
}

func TestCheckMaddDuration_ExactBoundary(t *testing.T) {
	t.Parallel()

	tests := []struct {
		beats int
		beat  time.Duration
	}{
		{1, 200 * time.Millisecond},
		{2, 200 * time.Millisecond},
		{4, 250 * time.Millisecond},
		{6, 500 * time.Millisecond},
	}
	for _, tt := range tests {
		// beats × beat × 0.8 in samples, integral for every case above.
		n := int(math.Round(float64(tt.beats) * tt.beat.Seconds() * 0.8 * testRate))
		seg := make(audio.Segment, n)

		pass, conf := audio.CheckMaddDuration(seg, testRate, tt.beats, tt.beat)
		if !pass || conf != 0.75 {
			t.Errorf("%d×%v with %d samples: got (%v, %v), want (true, 0.75)", tt.beats, tt.beat, n, pass, conf)
		}

		pass, _ = audio.CheckMaddDuration(seg[:n-1], testRate, tt.beats, tt.beat)
		if pass {
			t.Errorf("%d×%v with %d samples: got pass, want fail", tt.beats, tt.beat, n-1)
		}
	}
}

func TestCheckGhunnah_Neutral(t *testing.T) {
	t.Parallel()

	long := audio.Segment(sine(4000, testRate, 1000, 0.5))
	withNaN := audio.Segment(sine(4000, testRate, 1000, 0.5))
	withNaN[2000] = float32(math.NaN())
	tests := []struct {
		name     string
		seg      audio.Segment
		analyzer audio.SpectralAnalyzer
	}{
		{"no analyzer", long, nil},
		{"too short", audio.Segment(sine(800, testRate, 1000, 0.5)), audio.NewSTFT()},
		{"analyzer failure", long, failingAnalyzer{}},
		{"analyzer panic", long, panickingAnalyzer{}},
		{"NaN sample", withNaN, audio.NewSTFT()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			pass, conf := audio.CheckGhunnah(tt.seg, testRate, tt.analyzer)
			if !pass || conf != 0.5 {
				t.Errorf("CheckGhunnah() = (%v, %v), want (true, 0.5)", pass, conf)
			}
		})
	}
}

func TestCheckGhunnah_Bands(t *testing.T) {
	t.Parallel()

	// A tone inside the nasal band dominates it.
	pass, conf := audio.CheckGhunnah(sine(4000, testRate, 1000, 0.5), testRate, audio.NewSTFT())
	if !pass || conf != 0.85 {
		t.Errorf("1 kHz tone: got (%v, %v), want (true, 0.85)", pass, conf)
	}

	// A tone above it leaves the nasal band with leakage only.
	pass, _ = audio.CheckGhunnah(sine(4000, testRate, 6000, 0.5), testRate, audio.NewSTFT())
	if pass {
		t.Error("6 kHz tone: got pass, want fail")
	}
}
