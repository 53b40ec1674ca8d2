// Package diarize defines the Provider interface for speaker diarization
// backends.
//
// A diarization backend answers "who spoke when": given a waveform it
// returns a sequence of speaker turns, each attributing a time interval to a
// numeric speaker identity. Identities are stable within one call but carry
// no meaning across calls.
package diarize

import (
	"context"

	"github.com/psdwizzard/Meeting-Buddy-Pro/pkg/audio"
	"github.com/psdwizzard/Meeting-Buddy-Pro/pkg/types"
)

// ModelSpec identifies the device placement for a Load call.
type ModelSpec struct {
	// Device is the resolved compute device: "cpu", "cuda", or "cuda:N".
	Device string
}

// Options carries the per-run hints for a Diarize call.
type Options struct {
	// MinSpeakers bounds the speaker count from below. Zero leaves the bound
	// to the backend.
	MinSpeakers int

	// MaxSpeakers bounds the speaker count from above. Zero leaves the bound
	// to the backend.
	MaxSpeakers int
}

// Model is a loaded diarization model.
//
// Callers must call Close when the model is no longer needed.
type Model interface {
	// Diarize segments the waveform into speaker turns, ordered by start
	// time. An empty result means the backend found no speech to attribute.
	Diarize(ctx context.Context, wave *audio.Waveform, opts Options) ([]types.SpeakerTurn, error)

	// Close releases the model weights. Calling Close more than once is safe.
	Close() error
}

// Provider is the abstraction over any diarization backend.
type Provider interface {
	// Load materialises the diarization model on the device described by
	// spec. The caller owns the returned handle and must call Close when done.
	Load(ctx context.Context, spec ModelSpec) (Model, error)
}
