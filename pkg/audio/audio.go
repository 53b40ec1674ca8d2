// Package audio provides the waveform representation shared by all model
// adapters and the helpers to produce it from arbitrary input media.
//
// The pipeline works on a single mono 16 kHz float32 waveform per run: it is
// decoded once via ffmpeg, then passed by reference to the transcription,
// alignment, and diarization adapters, which never mutate it. HTTP adapters
// re-encode the waveform as 16-bit PCM WAV for upload using [EncodeWAV].
package audio

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
)

// DecodeSampleRate is the sample rate all input media is resampled to.
// 16 kHz mono is what the ASR, alignment, and diarization models expect.
const DecodeSampleRate = 16000

// Waveform is a mono PCM buffer at a fixed sample rate. It is immutable once
// produced; the pipeline owns it for the whole run and passes it by reference
// to each model adapter.
type Waveform struct {
	// Samples are normalized float32 samples in [-1, 1].
	Samples []float32

	// SampleRate is the sample rate in Hz.
	SampleRate int
}

// DurationSeconds returns the waveform length in seconds.
func (w *Waveform) DurationSeconds() float64 {
	if w.SampleRate <= 0 {
		return 0
	}
	return float64(len(w.Samples)) / float64(w.SampleRate)
}

// DurationMs returns the waveform length in whole milliseconds.
func (w *Waveform) DurationMs() int64 {
	if w.SampleRate <= 0 {
		return 0
	}
	return int64(len(w.Samples)) * 1000 / int64(w.SampleRate)
}

// DecodeFile decodes the media file at path into a mono 16 kHz [Waveform]
// using the ffmpeg binary on PATH. Any container or codec ffmpeg understands
// is accepted; resampling and downmixing happen inside ffmpeg.
//
// A missing input file is reported without invoking ffmpeg. Decode failures
// include ffmpeg's stderr output in the returned error.
func DecodeFile(ctx context.Context, path string) (*Waveform, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("audio: input %q: %w", path, err)
	}

	// ffmpeg -nostdin -v error -i input -ac 1 -ar 16000 -f s16le pipe:1
	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-nostdin", "-v", "error",
		"-i", path,
		"-ac", "1", "-ar", strconv.Itoa(DecodeSampleRate),
		"-f", "s16le", "-acodec", "pcm_s16le",
		"pipe:1",
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("audio: decode %q: %w: %s", path, err, msg)
		}
		return nil, fmt.Errorf("audio: decode %q: %w", path, err)
	}

	samples := PCM16ToFloat32(stdout.Bytes())
	if len(samples) == 0 {
		return nil, fmt.Errorf("audio: decode %q produced no samples", path)
	}

	return &Waveform{Samples: samples, SampleRate: DecodeSampleRate}, nil
}
