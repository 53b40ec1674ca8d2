package pipeline

import "github.com/psdwizzard/Meeting-Buddy-Pro/pkg/types"

// AnchorPolicy selects the instant of a word that represents it when
// matching against speaker turns.
type AnchorPolicy string

const (
	// AnchorStart anchors a word at its onset. The pipeline uses this one:
	// onsets come straight from forced alignment and are the most reliable
	// word edge.
	AnchorStart AnchorPolicy = "start"

	// AnchorMid anchors a word at its midpoint.
	AnchorMid AnchorPolicy = "mid"

	// AnchorEnd anchors a word at its offset.
	AnchorEnd AnchorPolicy = "end"
)

// anchor returns the representative instant of w under the policy.
func (p AnchorPolicy) anchor(w types.WordTimestamp) int64 {
	switch p {
	case AnchorMid:
		return (w.StartMs + w.EndMs) / 2
	case AnchorEnd:
		return w.EndMs
	default:
		return w.StartMs
	}
}

// AssignWordSpeakers attributes every word to exactly one speaker turn.
// Both inputs must be sorted by start time; the merge is a single forward
// pass and the turn cursor never moves backwards.
//
// A word whose anchor lies inside a turn takes that turn's speaker. An
// anchor landing exactly on a shared boundary goes to the later turn — the
// turn that is beginning. Diarizer coverage is not assumed gap-free: an
// anchor in a gap between turns goes to the nearer boundary, the later turn
// winning exact ties. Anchors before the first turn or after the last take
// the endpoint turn, so no word is ever left unassigned.
//
// With no turns at all there is nothing to attribute; callers treat that
// case as fatal before merging.
func AssignWordSpeakers(words []types.WordTimestamp, turns []types.SpeakerTurn, policy AnchorPolicy) []types.WordSpeakerEntry {
	if len(turns) == 0 {
		return nil
	}

	entries := make([]types.WordSpeakerEntry, 0, len(words))
	cursor := 0
	for _, w := range words {
		a := policy.anchor(w)
		for cursor+1 < len(turns) && a >= turns[cursor+1].StartMs {
			cursor++
		}
		switch {
		case a <= turns[cursor].EndMs:
			// Covered by the cursor turn (or before the first turn).
		case cursor == len(turns)-1:
			// Past the end of the last turn.
		default:
			// In a coverage gap: nearer boundary wins, later turn on ties.
			left := a - turns[cursor].EndMs
			right := turns[cursor+1].StartMs - a
			if right <= left {
				cursor++
			}
		}
		entries = append(entries, types.WordSpeakerEntry{
			Word:    w.Word,
			StartMs: w.StartMs,
			EndMs:   w.EndMs,
			Speaker: turns[cursor].Speaker,
		})
	}
	return entries
}
