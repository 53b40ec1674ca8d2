package pipeline

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/psdwizzard/Meeting-Buddy-Pro/pkg/types"
)

// NormalizeSpeakers converts assembled sentences into the external segment
// list, the speaker roster, and per-label stats. Raw diarizer identities are
// relabeled "Speaker N" in order of first appearance, N starting at 1, so
// the first sentence always belongs to "Speaker 1". Durations are clamped
// non-negative: an upstream timestamp inversion must not propagate a
// negative duration into exports.
func NormalizeSpeakers(sentences []types.Sentence) ([]types.Segment, []types.SpeakerEntry, map[string]types.SpeakerStat) {
	var (
		labels   = make(map[int]string)
		position = make(map[int]int)
		roster   []types.SpeakerEntry
	)
	segments := make([]types.Segment, 0, len(sentences))
	stats := make(map[string]types.SpeakerStat, 4)

	for _, s := range sentences {
		label, ok := labels[s.Speaker]
		if !ok {
			label = fmt.Sprintf("Speaker %d", len(labels)+1)
			labels[s.Speaker] = label
			position[s.Speaker] = len(roster)
			roster = append(roster, types.SpeakerEntry{
				Label:         label,
				DisplayName:   label,
				OriginalLabel: s.Speaker,
			})
		}

		duration := max(s.EndMs-s.StartMs, 0)
		segments = append(segments, types.Segment{
			ID:           uuid.NewString(),
			SpeakerLabel: label,
			StartMs:      s.StartMs,
			EndMs:        s.EndMs,
			DurationMs:   duration,
			Transcript:   s.Text,
		})

		entry := &roster[position[s.Speaker]]
		entry.Segments++
		entry.DurationMs += duration

		st := stats[label]
		st.Segments++
		st.DurationMs += duration
		stats[label] = st
	}

	return segments, roster, stats
}
