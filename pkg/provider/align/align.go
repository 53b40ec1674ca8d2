// Package align defines the Provider interface for CTC forced-alignment
// backends.
//
// Forced alignment recovers per-word timestamps from a known transcript: the
// acoustic model emits a frame-level probability matrix over its token
// vocabulary (Emit), the transcript is tokenised into alignment units
// (Preprocess), and a Viterbi pass maps each unit onto a frame span (Align).
// The emission matrix never crosses the API boundary; Emit returns an opaque
// reference that Align resolves backend-side.
//
// WordsFromSpans converts the aligned spans back into word timestamps in
// milliseconds using the frame stride reported by Emit.
package align

import (
	"context"
	"math"

	"github.com/psdwizzard/Meeting-Buddy-Pro/pkg/audio"
	"github.com/psdwizzard/Meeting-Buddy-Pro/pkg/types"
)

// StarToken is the wildcard separator inserted between words during
// preprocessing. It absorbs inter-word audio (silence, noise, untranscribed
// speech) so that word spans stay tight.
const StarToken = "<star>"

// ModelSpec identifies the device placement for a Load call. The alignment
// model itself is fixed by the backend.
type ModelSpec struct {
	// Device is the resolved compute device: "cpu", "cuda", or "cuda:N".
	Device string

	// Compute is the weight precision for inference, e.g. "float16" on CUDA
	// or "float32" on CPU.
	Compute string
}

// Emissions references a frame-level emission matrix held by the backend.
type Emissions struct {
	// Ref is the backend-side handle for the matrix. Only valid for the
	// model that produced it.
	Ref string

	// Frames is the number of emission frames covering the waveform.
	Frames int

	// StrideMs is the audio duration of one frame in milliseconds.
	StrideMs float64
}

// TokenSet is a transcript prepared for alignment. Tokens holds the
// alignment units in emission order, including StarToken separators between
// words; Words holds the original transcript words matching the non-star
// entries of Tokens in order. The split exists because alignment operates on
// romanized forms while the output must carry the original spelling.
type TokenSet struct {
	Tokens []string
	Words  []string
}

// Span is a frame interval assigned to one alignment unit.
type Span struct {
	// Start is the first frame of the span (inclusive).
	Start int

	// End is the frame one past the span (exclusive).
	End int

	// Score is the mean log-probability of the span's frames.
	Score float64
}

// Alignment is the result of mapping a TokenSet onto an emission matrix.
// Spans is parallel to the TokenSet's Tokens.
type Alignment struct {
	Spans []Span

	// Blank is the CTC blank label used by the model. Token entries equal to
	// Blank carry no word.
	Blank string
}

// Model is a loaded alignment model.
//
// Callers must call Close when the model is no longer needed.
type Model interface {
	// Emit computes the emission matrix for the full waveform. batchSize
	// controls how many audio windows the backend processes in parallel.
	Emit(ctx context.Context, wave *audio.Waveform, batchSize int) (*Emissions, error)

	// Preprocess tokenises the transcript for alignment. language is the
	// ISO 639-3 code used to pick the romanizer.
	Preprocess(ctx context.Context, transcript, language string) (*TokenSet, error)

	// Align maps the token set onto the emission matrix and returns one span
	// per token.
	Align(ctx context.Context, em *Emissions, ts *TokenSet) (*Alignment, error)

	// Close releases the model weights. Calling Close more than once is safe.
	Close() error
}

// Provider is the abstraction over any forced-alignment backend.
type Provider interface {
	// Load materialises the alignment model on the device described by spec.
	// The caller owns the returned handle and must call Close when done.
	Load(ctx context.Context, spec ModelSpec) (Model, error)
}

// WordsFromSpans converts aligned spans into word timestamps. Star and blank
// entries are dropped; each remaining span is paired with the next original
// word and its frame interval scaled by strideMs. The result is in audio
// order and may be shorter than the token list but never longer than Words.
func WordsFromSpans(ts *TokenSet, al *Alignment, strideMs float64) []types.WordTimestamp {
	words := make([]types.WordTimestamp, 0, len(ts.Words))
	next := 0
	for i, tok := range ts.Tokens {
		if i >= len(al.Spans) {
			break
		}
		if tok == StarToken || (al.Blank != "" && tok == al.Blank) {
			continue
		}
		if next >= len(ts.Words) {
			break
		}
		span := al.Spans[i]
		words = append(words, types.WordTimestamp{
			Word:    ts.Words[next],
			StartMs: int64(math.Round(float64(span.Start) * strideMs)),
			EndMs:   int64(math.Round(float64(span.End) * strideMs)),
		})
		next++
	}
	return words
}
