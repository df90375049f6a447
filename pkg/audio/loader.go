package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"time"
)

// ErrFFmpegUnavailable is returned when a recording is not a WAV file and no
// ffmpeg binary can be found to decode it.
var ErrFFmpegUnavailable = errors.New("audio: ffmpeg not available")

// LoaderOption is a functional option for configuring a [Loader].
type LoaderOption func(*Loader)

// WithFFmpegPath sets the ffmpeg executable. Defaults to "ffmpeg" on PATH.
func WithFFmpegPath(path string) LoaderOption {
	return func(l *Loader) {
		if path != "" {
			l.ffmpeg = path
		}
	}
}

// WithSampleRate sets the output sample rate. Defaults to [DefaultSampleRate].
func WithSampleRate(rate int) LoaderOption {
	return func(l *Loader) {
		if rate > 0 {
			l.sampleRate = rate
		}
	}
}

// WithDecodeTimeout bounds a single ffmpeg invocation. Defaults to 60 s.
func WithDecodeTimeout(d time.Duration) LoaderOption {
	return func(l *Loader) {
		if d > 0 {
			l.timeout = d
		}
	}
}

// Loader decodes recordings (WebM/Opus, Ogg, MP3, M4A, WAV…) into mono
// waveforms at a fixed sample rate. WAV input is parsed in-process; every
// other container is piped through ffmpeg.
//
// A Loader is stateless and safe for concurrent use.
type Loader struct {
	ffmpeg     string
	sampleRate int
	timeout    time.Duration
}

// NewLoader creates a Loader with the given options applied.
func NewLoader(opts ...LoaderOption) *Loader {
	l := &Loader{
		ffmpeg:     "ffmpeg",
		sampleRate: DefaultSampleRate,
		timeout:    60 * time.Second,
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// SampleRate returns the rate of every waveform the loader produces.
func (l *Loader) SampleRate() int { return l.sampleRate }

// Available reports whether the configured ffmpeg binary can be resolved.
func (l *Loader) Available() bool {
	_, err := exec.LookPath(l.ffmpeg)
	return err == nil
}

// LoadFile decodes the recording stored at path.
func (l *Loader) LoadFile(ctx context.Context, path string) (Waveform, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Waveform{}, fmt.Errorf("audio: read %q: %w", path, err)
	}
	return l.Load(ctx, data)
}

// Load decodes an in-memory recording.
func (l *Loader) Load(ctx context.Context, data []byte) (Waveform, error) {
	if len(data) == 0 {
		return Waveform{}, errors.New("audio: empty recording")
	}
	if IsWAV(data) {
		w, err := DecodeWAVBytes(data, l.sampleRate)
		if err == nil {
			return w, nil
		}
		// Exotic WAV encodings (A-law, 24-bit…) still decode through ffmpeg.
		slog.Debug("audio: in-process WAV decode failed, trying ffmpeg", "error", err)
	}
	return l.decodeFFmpeg(ctx, data)
}

// decodeFFmpeg pipes data through ffmpeg, producing 16-bit mono PCM at the
// loader's sample rate on stdout.
func (l *Loader) decodeFFmpeg(ctx context.Context, data []byte) (Waveform, error) {
	bin, err := exec.LookPath(l.ffmpeg)
	if err != nil {
		return Waveform{}, fmt.Errorf("%w: %v", ErrFFmpegUnavailable, err)
	}

	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, bin,
		"-nostdin",
		"-threads", "0",
		"-i", "pipe:0",
		"-f", "s16le",
		"-ac", "1",
		"-acodec", "pcm_s16le",
		"-ar", strconv.Itoa(l.sampleRate),
		"-loglevel", "error",
		"pipe:1",
	)
	cmd.Stdin = bytes.NewReader(data)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Waveform{}, fmt.Errorf("audio: ffmpeg decode: %w", ctxErr)
		}
		return Waveform{}, fmt.Errorf("audio: ffmpeg decode: %w: %s", err, bytes.TrimSpace(stderr.Bytes()))
	}
	if stdout.Len() == 0 {
		return Waveform{}, errors.New("audio: ffmpeg produced no samples")
	}

	w := Waveform{
		Samples:    PCM16ToFloat32(stdout.Bytes(), 1),
		SampleRate: l.sampleRate,
	}
	slog.Debug("audio: decoded recording", "duration", w.Duration(), "samples", len(w.Samples))
	return w, nil
}
