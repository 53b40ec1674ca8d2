package pipeline

import "errors"

// Sentinel errors for stages whose empty output leaves nothing for the rest
// of the pipeline to work on. They surface wrapped with stage context; match
// with [errors.Is].
var (
	// ErrNoAlignmentSpans reports that forced alignment produced no word
	// spans, so no word can be placed on the audio timeline.
	ErrNoAlignmentSpans = errors.New("pipeline: alignment produced no word spans")

	// ErrNoSpeakerTurns reports that diarization found no speaker activity.
	// Aborting here is deliberate: continuing would silently attribute the
	// whole recording to a single invented speaker.
	ErrNoSpeakerTurns = errors.New("pipeline: diarization produced no speaker turns")

	// ErrNoSentences reports that sentence assembly produced an empty
	// transcript.
	ErrNoSentences = errors.New("pipeline: no sentences assembled from transcript")
)
