// Package types defines the shared types used across the diarization pipeline.
//
// These types form the lingua franca between the model adapters, the merge and
// assembly stages, and the exporters. They are intentionally minimal — each
// package defines its own domain types, but cross-cutting data structures live
// here to avoid circular imports.
package types

// TranscriptSegment is a single ordered text segment emitted by the
// transcription engine. Times are in seconds on the audio timeline.
// Concatenating the Text of all segments in order yields the full transcript;
// segments do not overlap but are not guaranteed gap-free.
type TranscriptSegment struct {
	// Text is the transcribed content, including any leading whitespace the
	// engine emits between segments.
	Text string

	// Start is the segment onset in seconds.
	Start float64

	// End is the segment offset in seconds.
	End float64
}

// WordTimestamp is a single word mapped onto the audio timeline by forced
// alignment. Times are in milliseconds. The sequence produced by alignment is
// ordered by StartMs and corresponds one-to-one with the words of the full
// transcript after normalization.
type WordTimestamp struct {
	// Word is the original (non-romanized) word form.
	Word string

	// StartMs is the word onset in milliseconds.
	StartMs int64

	// EndMs is the word offset in milliseconds.
	EndMs int64
}

// SpeakerTurn is a contiguous interval attributed to one speaker by the
// diarization model. Turns are ordered and non-overlapping by construction of
// the diarizer; this is assumed, not re-validated.
type SpeakerTurn struct {
	// Speaker is the diarizer-internal speaker identifier.
	Speaker int

	// StartMs is the turn onset in milliseconds.
	StartMs int64

	// EndMs is the turn offset in milliseconds.
	EndMs int64
}

// WordSpeakerEntry is a WordTimestamp augmented with an assigned speaker.
// The punctuation restorer produces a revised copy of the sequence rather
// than mutating entries in place.
type WordSpeakerEntry struct {
	// Word is the word text, possibly rewritten to carry trailing punctuation.
	Word string

	// StartMs is the word onset in milliseconds.
	StartMs int64

	// EndMs is the word offset in milliseconds.
	EndMs int64

	// Speaker is the diarizer-internal identifier of the assigned turn.
	Speaker int
}

// Sentence is a maximal run of same-speaker words bounded by sentence-ending
// punctuation or a speaker change. StartMs and EndMs derive from the first and
// last member word; StartMs <= EndMs holds whenever the word timestamps do.
type Sentence struct {
	// Speaker is the diarizer-internal identifier shared by all member words.
	Speaker int

	// StartMs is the onset of the first member word in milliseconds.
	StartMs int64

	// EndMs is the offset of the last member word in milliseconds.
	EndMs int64

	// Text is the whitespace-joined, trimmed concatenation of member words.
	Text string
}

// Segment is the external-facing unit of the result payload: one per
// Sentence, carrying the normalized display label and an opaque unique ID.
type Segment struct {
	// ID is an opaque unique identifier for this segment.
	ID string `json:"id"`

	// SpeakerLabel is the normalized display label ("Speaker 1", "Speaker 2", …).
	SpeakerLabel string `json:"speakerLabel"`

	// StartMs is the segment onset in milliseconds.
	StartMs int64 `json:"startMs"`

	// EndMs is the segment offset in milliseconds.
	EndMs int64 `json:"endMs"`

	// DurationMs is EndMs − StartMs, clamped non-negative.
	DurationMs int64 `json:"durationMs"`

	// Transcript is the sentence text.
	Transcript string `json:"transcript"`
}

// SpeakerEntry is one row of the result payload's speaker roster.
type SpeakerEntry struct {
	// Label is the normalized display label.
	Label string `json:"label"`

	// DisplayName is the name shown to users. Initially equal to Label;
	// downstream consumers may rename speakers without losing the mapping.
	DisplayName string `json:"displayName"`

	// OriginalLabel is the diarizer-internal speaker identifier.
	OriginalLabel int `json:"originalLabel"`

	// Segments is the number of segments attributed to this speaker.
	Segments int `json:"segments"`

	// DurationMs is the total speaking time in milliseconds, summed over
	// segments with per-segment durations clamped non-negative.
	DurationMs int64 `json:"durationMs"`
}

// SpeakerStat aggregates speaking time and segment count for one display label.
type SpeakerStat struct {
	// DurationMs is the total speaking time in milliseconds.
	DurationMs int64 `json:"durationMs"`

	// Segments is the number of segments attributed to the label.
	Segments int `json:"segments"`
}

// ExportedFiles records the absolute paths of the transcript artifacts
// written by the exporter.
type ExportedFiles struct {
	// Transcript is the path of the plain-text speaker-aware transcript.
	Transcript string `json:"transcript"`

	// SRT is the path of the SubRip subtitle file.
	SRT string `json:"srt"`

	// CSV is the path of the tabular per-segment file.
	CSV string `json:"csv"`
}
