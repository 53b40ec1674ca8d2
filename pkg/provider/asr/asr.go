// Package asr defines the Provider interface for batch speech recognition
// backends.
//
// An ASR provider wraps a transcription engine (a faster-whisper model server
// or an in-process whisper.cpp model) behind a uniform load/use/release
// lifecycle. Load materialises model weights on a concrete device and returns
// a Model handle; the handle transcribes complete waveforms and must be
// closed to free the weights. The pipeline holds at most one loaded model per
// stage at a time, so implementations may assume exclusive use of device
// memory between Load and Close.
package asr

import (
	"context"
	"strings"

	"github.com/psdwizzard/Meeting-Buddy-Pro/pkg/audio"
	"github.com/psdwizzard/Meeting-Buddy-Pro/pkg/types"
)

// ModelSpec identifies the model weights and placement for a Load call.
type ModelSpec struct {
	// Name is the Whisper model identifier (e.g., "medium.en",
	// "large-v2"). Required.
	Name string

	// Device is the resolved compute device: "cpu", "cuda", or "cuda:N".
	Device string

	// Compute is the weight precision for inference, e.g. "float16" on CUDA
	// or "int8" on CPU.
	Compute string
}

// Options carries the per-run knobs for a Transcribe call.
type Options struct {
	// Language is the Whisper language code to transcribe in. Empty selects
	// the engine's language auto-detection.
	Language string

	// BatchSize is the number of audio windows decoded in parallel. Zero
	// requests the engine's sequential long-form path instead of batched
	// inference.
	BatchSize int

	// SuppressNumerals asks the engine to prefer spelled-out numbers over
	// digits, which keeps tokens alignable to audio frames.
	SuppressNumerals bool
}

// Result is the outcome of transcribing one waveform.
type Result struct {
	// Segments are the recognised utterances in audio order.
	Segments []types.TranscriptSegment

	// Language is the language the engine transcribed in: the requested code,
	// or the detected one when auto-detection was active.
	Language string

	// Duration is the audio duration in seconds as measured by the engine.
	// Zero when the engine does not report it.
	Duration float64
}

// Transcript returns the segment texts joined into one string. Leading and
// trailing whitespace on each segment is preserved as produced by the engine.
func (r *Result) Transcript() string {
	var b strings.Builder
	for _, seg := range r.Segments {
		b.WriteString(seg.Text)
	}
	return b.String()
}

// Model is a loaded speech recognition model.
//
// Callers must call Close when the model is no longer needed; the weights
// stay resident on the device until then.
type Model interface {
	// Transcribe recognises speech in the full waveform and returns the
	// segments in audio order. Implementations must respect ctx cancellation
	// on long-running inference.
	Transcribe(ctx context.Context, wave *audio.Waveform, opts Options) (*Result, error)

	// Close releases the model weights. Calling Close more than once is safe.
	Close() error
}

// Provider is the abstraction over any batch ASR backend.
type Provider interface {
	// Load materialises the model described by spec and returns a handle to
	// it. The caller owns the handle and must call Close when done.
	Load(ctx context.Context, spec ModelSpec) (Model, error)
}
