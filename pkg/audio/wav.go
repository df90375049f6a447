package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

// ErrNotWAV is returned by [DecodeWAV] when the input is not a RIFF/WAVE
// container. Callers use it to fall back to ffmpeg decoding.
var ErrNotWAV = errors.New("audio: not a RIFF/WAVE stream")

const (
	wavFormatPCM   = 1
	wavFormatFloat = 3
)

type wavFormat struct {
	audioFormat   uint16
	channels      uint16
	sampleRate    uint32
	bitsPerSample uint16
}

// IsWAV reports whether data starts with a RIFF/WAVE header.
func IsWAV(data []byte) bool {
	return len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WAVE"
}

// DecodeWAV parses a WAV stream holding 16-bit integer or 32-bit float PCM
// and returns a mono waveform resampled to sampleRate. Multi-channel input is
// down-mixed by averaging.
func DecodeWAV(r io.ReadSeeker, sampleRate int) (Waveform, error) {
	var riff [12]byte
	if _, err := io.ReadFull(r, riff[:]); err != nil {
		return Waveform{}, fmt.Errorf("audio: read RIFF header: %w", err)
	}
	if !IsWAV(riff[:]) {
		return Waveform{}, ErrNotWAV
	}

	var (
		format  wavFormat
		fmtSeen bool
	)
	for {
		var chunkID [4]byte
		if err := binary.Read(r, binary.LittleEndian, &chunkID); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return Waveform{}, errors.New("audio: missing data chunk")
			}
			return Waveform{}, fmt.Errorf("audio: read chunk ID: %w", err)
		}
		var chunkSize uint32
		if err := binary.Read(r, binary.LittleEndian, &chunkSize); err != nil {
			return Waveform{}, fmt.Errorf("audio: read chunk size: %w", err)
		}

		switch string(chunkID[:]) {
		case "fmt ":
			f, err := readFmt(r, chunkSize)
			if err != nil {
				return Waveform{}, err
			}
			format, fmtSeen = f, true

		case "data":
			if !fmtSeen {
				return Waveform{}, errors.New("audio: data chunk before fmt chunk")
			}
			samples, err := readSamples(r, chunkSize, format)
			if err != nil {
				return Waveform{}, err
			}
			return Waveform{
				Samples:    Resample(samples, int(format.sampleRate), sampleRate),
				SampleRate: sampleRate,
			}, nil

		default:
			// Chunks are word-aligned.
			skip := int64(chunkSize) + int64(chunkSize%2)
			if _, err := r.Seek(skip, io.SeekCurrent); err != nil {
				return Waveform{}, fmt.Errorf("audio: skip chunk %q: %w", chunkID, err)
			}
		}
	}
}

// DecodeWAVBytes is [DecodeWAV] over an in-memory buffer.
func DecodeWAVBytes(data []byte, sampleRate int) (Waveform, error) {
	return DecodeWAV(bytes.NewReader(data), sampleRate)
}

func readFmt(r io.ReadSeeker, size uint32) (wavFormat, error) {
	var f wavFormat
	if size < 16 {
		return f, fmt.Errorf("audio: fmt chunk too short (%d bytes)", size)
	}
	if err := binary.Read(r, binary.LittleEndian, &f.audioFormat); err != nil {
		return f, fmt.Errorf("audio: read audio format: %w", err)
	}
	if err := binary.Read(r, binary.LittleEndian, &f.channels); err != nil {
		return f, fmt.Errorf("audio: read channel count: %w", err)
	}
	if err := binary.Read(r, binary.LittleEndian, &f.sampleRate); err != nil {
		return f, fmt.Errorf("audio: read sample rate: %w", err)
	}
	// byte rate and block align are derived values.
	if _, err := r.Seek(6, io.SeekCurrent); err != nil {
		return f, fmt.Errorf("audio: skip byte rate: %w", err)
	}
	if err := binary.Read(r, binary.LittleEndian, &f.bitsPerSample); err != nil {
		return f, fmt.Errorf("audio: read bits per sample: %w", err)
	}
	extra := int64(size) - 16 + int64(size%2)
	if extra > 0 {
		if _, err := r.Seek(extra, io.SeekCurrent); err != nil {
			return f, fmt.Errorf("audio: skip fmt extension: %w", err)
		}
	}

	switch {
	case f.channels == 0:
		return f, errors.New("audio: zero channels")
	case f.sampleRate == 0:
		return f, errors.New("audio: zero sample rate")
	case f.audioFormat == wavFormatPCM && f.bitsPerSample == 16:
	case f.audioFormat == wavFormatFloat && f.bitsPerSample == 32:
	default:
		return f, fmt.Errorf("audio: unsupported WAV encoding (format %d, %d bits)", f.audioFormat, f.bitsPerSample)
	}
	return f, nil
}

func readSamples(r io.Reader, size uint32, f wavFormat) ([]float32, error) {
	// Streamed WAVs declare a 0xFFFFFFFF data size; truncated files still
	// decode up to the last complete frame.
	raw, err := io.ReadAll(io.LimitReader(r, int64(size)))
	if err != nil {
		return nil, fmt.Errorf("audio: read PCM data: %w", err)
	}

	channels := int(f.channels)
	if f.audioFormat == wavFormatPCM {
		return PCM16ToFloat32(raw, channels), nil
	}

	frames := len(raw) / (4 * channels)
	out := make([]float32, frames)
	for i := range frames {
		var sum float32
		for ch := range channels {
			idx := (i*channels + ch) * 4
			v := math.Float32frombits(binary.LittleEndian.Uint32(raw[idx : idx+4]))
			if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
				v = 0
			}
			sum += v
		}
		out[i] = sum / float32(channels)
	}
	return out, nil
}

// EncodeWAV wraps 16-bit signed little-endian PCM data in a RIFF/WAV
// container suitable for a multipart upload.
func EncodeWAV(pcm []byte, sampleRate, channels int) []byte {
	const bps = 16
	byteRate := sampleRate * channels * bps / 8
	blockAlign := channels * bps / 8
	dataSize := len(pcm)

	buf := make([]byte, 44+dataSize)

	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+dataSize))
	copy(buf[8:12], "WAVE")

	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], wavFormatPCM)
	binary.LittleEndian.PutUint16(buf[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(buf[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(buf[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(buf[34:36], bps)

	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataSize))
	copy(buf[44:], pcm)

	return buf
}

// EncodeWaveform renders w as a 16-bit mono WAV file.
func EncodeWaveform(w Waveform) []byte {
	return EncodeWAV(Float32ToPCM16(w.Samples), w.SampleRate, 1)
}
