package audio

import (
	"errors"
	"math"
	"math/cmplx"
)

// SpectralAnalyzer computes short-time magnitude spectra. It is the optional
// capability behind the nasalization check: analysis code receives it as a
// dependency and treats a nil analyzer as "capability unavailable".
type SpectralAnalyzer interface {
	// STFT returns the magnitude spectrogram of samples recorded at sampleRate.
	STFT(samples []float32, sampleRate int) (Spectrogram, error)
}

// Spectrogram is a magnitude STFT: Frames[t][k] is the magnitude of
// frequency bin k in frame t.
type Spectrogram struct {
	Frames [][]float64

	// BinHz is the frequency spacing between adjacent bins.
	BinHz float64
}

// BandMean returns the mean magnitude over every frame and every bin whose
// centre frequency lies in [loHz, hiHz]. ok is false when no bin falls in
// the band.
func (s Spectrogram) BandMean(loHz, hiHz float64) (mean float64, ok bool) {
	var (
		sum float64
		n   int
	)
	for _, frame := range s.Frames {
		for k, mag := range frame {
			f := float64(k) * s.BinHz
			if f < loHz || f > hiHz {
				continue
			}
			sum += mag
			n++
		}
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

// STFT is the built-in [SpectralAnalyzer]: a Hann-windowed short-time
// Fourier transform with centred, zero-padded frames.
type STFT struct {
	// FFTSize is the frame length in samples; it must be a power of two.
	FFTSize int

	// Hop is the distance between successive frames. Zero means FFTSize/4.
	Hop int
}

// NewSTFT returns an analyzer with a 512-sample frame and a 128-sample hop.
func NewSTFT() *STFT {
	return &STFT{FFTSize: 512, Hop: 128}
}

var _ SpectralAnalyzer = (*STFT)(nil)

// STFT implements [SpectralAnalyzer].
func (a *STFT) STFT(samples []float32, sampleRate int) (Spectrogram, error) {
	n := a.FFTSize
	if n < 2 || n&(n-1) != 0 {
		return Spectrogram{}, errors.New("audio: FFT size must be a power of two")
	}
	if sampleRate <= 0 {
		return Spectrogram{}, errors.New("audio: invalid sample rate")
	}
	if len(samples) == 0 {
		return Spectrogram{}, errors.New("audio: no samples")
	}
	hop := a.Hop
	if hop <= 0 {
		hop = n / 4
	}

	// Centre frames on their sample index by padding n/2 zeros on each side.
	padded := make([]float64, len(samples)+n)
	for i, s := range samples {
		padded[n/2+i] = float64(s)
	}

	window := hann(n)
	frames := 1 + (len(padded)-n)/hop
	out := make([][]float64, 0, frames)
	buf := make([]complex128, n)
	for f := range frames {
		off := f * hop
		for i := range n {
			buf[i] = complex(padded[off+i]*window[i], 0)
		}
		spec := FFT(buf)
		mags := make([]float64, n/2+1)
		for k := range mags {
			mags[k] = cmplx.Abs(spec[k])
		}
		out = append(out, mags)
	}

	return Spectrogram{Frames: out, BinHz: float64(sampleRate) / float64(n)}, nil
}

// hann returns a periodic Hann window of length n.
func hann(n int) []float64 {
	w := make([]float64, n)
	for i := range n {
		w[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(n))
	}
	return w
}

// FFT computes the radix-2 Cooley-Tukey FFT. The input length must be a
// power of two; x is not modified.
func FFT(x []complex128) []complex128 {
	n := len(x)
	out := make([]complex128, n)
	if n <= 1 {
		copy(out, x)
		return out
	}

	bits := 0
	for v := n; v > 1; v >>= 1 {
		bits++
	}
	for i := range n {
		out[bitReverse(i, bits)] = x[i]
	}

	for size := 2; size <= n; size *= 2 {
		half := size / 2
		w := cmplx.Exp(complex(0, -2*math.Pi/float64(size)))
		for start := 0; start < n; start += size {
			wn := complex(1, 0)
			for k := range half {
				u := out[start+k]
				t := wn * out[start+k+half]
				out[start+k] = u + t
				out[start+k+half] = u - t
				wn *= w
			}
		}
	}
	return out
}

func bitReverse(x, bits int) int {
	var r int
	for range bits {
		r = (r << 1) | (x & 1)
		x >>= 1
	}
	return r
}
