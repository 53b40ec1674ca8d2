// This file contains the NativeProvider implementation backed by the
// whisper.cpp CGO bindings. The whisper.cpp static library (libwhisper.a)
// and headers (whisper.h) must be available at link time via LIBRARY_PATH
// and C_INCLUDE_PATH environment variables.

package whisper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/psdwizzard/Meeting-Buddy-Pro/pkg/audio"
	"github.com/psdwizzard/Meeting-Buddy-Pro/pkg/provider/asr"
	"github.com/psdwizzard/Meeting-Buddy-Pro/pkg/types"
	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"
)

// Compile-time assertion that NativeProvider satisfies asr.Provider.
var _ asr.Provider = (*NativeProvider)(nil)

// NativeProvider implements asr.Provider using the whisper.cpp Go bindings
// (CGO), eliminating the model server entirely. Load reads the GGML weights
// from disk; the ModelSpec Device and Compute fields are ignored because
// whisper.cpp decides placement at build time.
type NativeProvider struct {
	modelPath string
}

// NewNative creates a NativeProvider that loads whisper.cpp model weights
// from the given file path on each Load call.
func NewNative(modelPath string) (*NativeProvider, error) {
	if modelPath == "" {
		return nil, errors.New("whisper: modelPath must not be empty")
	}
	return &NativeProvider{modelPath: modelPath}, nil
}

// Load reads the model weights from disk and returns a handle to them. The
// caller must call Close to free the weights.
func (p *NativeProvider) Load(ctx context.Context, spec asr.ModelSpec) (asr.Model, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("whisper: context already cancelled: %w", err)
	}
	m, err := whisperlib.New(p.modelPath)
	if err != nil {
		return nil, fmt.Errorf("whisper: load model %q: %w", p.modelPath, err)
	}
	return &nativeModel{model: m}, nil
}

// nativeModel is a loaded whisper.cpp model. It implements asr.Model.
type nativeModel struct {
	model whisperlib.Model

	closeOnce sync.Once
	closeErr  error
}

// Transcribe runs whisper.cpp inference over the full waveform using a fresh
// whisper context. Batched inference and numeral suppression are not
// supported by whisper.cpp; BatchSize is ignored and SuppressNumerals logs a
// warning.
func (m *nativeModel) Transcribe(ctx context.Context, wave *audio.Waveform, opts asr.Options) (*asr.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("whisper: context already cancelled: %w", err)
	}
	if opts.SuppressNumerals {
		slog.Warn("whisper: numeral suppression is not supported by whisper.cpp, ignoring")
	}

	// Each whisper context is single-use and NOT thread-safe; the model
	// itself can be shared.
	wctx, err := m.model.NewContext()
	if err != nil {
		return nil, fmt.Errorf("whisper: create context: %w", err)
	}

	language := opts.Language
	if language != "" {
		if err := wctx.SetLanguage(language); err != nil {
			slog.Warn("whisper: failed to set language, using default", "language", language, "error", err)
		}
	}

	if err := wctx.Process(wave.Samples, nil, nil, nil); err != nil {
		return nil, fmt.Errorf("whisper: process audio: %w", err)
	}

	var segments []types.TranscriptSegment
	for {
		segment, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("whisper: read segment: %w", err)
		}
		segments = append(segments, types.TranscriptSegment{
			Text:  segment.Text,
			Start: segment.Start.Seconds(),
			End:   segment.End.Seconds(),
		})
	}

	// The bindings do not expose the detected language, so auto-detection
	// results are reported as English.
	if language == "" {
		language = "en"
	}

	return &asr.Result{
		Segments: segments,
		Language: language,
		Duration: wave.DurationSeconds(),
	}, nil
}

// Close frees the model weights. Calling Close more than once is safe and
// returns the result of the first attempt.
func (m *nativeModel) Close() error {
	m.closeOnce.Do(func() {
		m.closeErr = m.model.Close()
	})
	return m.closeErr
}

// Compile-time assertion that nativeModel satisfies asr.Model.
var _ asr.Model = (*nativeModel)(nil)
