package asr_test

import (
	"testing"

	"github.com/psdwizzard/Meeting-Buddy-Pro/pkg/provider/asr"
	"github.com/psdwizzard/Meeting-Buddy-Pro/pkg/types"
)

func TestResult_Transcript(t *testing.T) {
	t.Parallel()

	r := &asr.Result{
		Segments: []types.TranscriptSegment{
			{Text: " Back to the recording.", Start: 0, End: 2.1},
			{Text: " Let's get started.", Start: 2.3, End: 3.8},
		},
	}
	want := " Back to the recording. Let's get started."
	if got := r.Transcript(); got != want {
		t.Errorf("Transcript() = %q; want %q", got, want)
	}
}

func TestResult_Transcript_Empty(t *testing.T) {
	t.Parallel()

	r := &asr.Result{}
	if got := r.Transcript(); got != "" {
		t.Errorf("Transcript() = %q; want empty", got)
	}
}
