package pipeline

import "github.com/psdwizzard/Meeting-Buddy-Pro/pkg/types"

// realignMaxWords caps how far the smoothing pass may reach when bounding
// the sentence around a mid-sentence speaker flip.
const realignMaxWords = 50

// RealignSpeakers smooths diarization flips that land in the middle of a
// sentence. Whenever the speaker changes between two words and the first of
// them does not end a sentence, the enclosing sentence (terminal punctuation
// to terminal punctuation, bounded by realignMaxWords) is located and all of
// its words are reassigned to the majority speaker, provided that speaker
// holds at least half the words. Flips that line up with sentence boundaries
// are genuine turn changes and are left alone. Returns a revised copy; the
// input is not mutated.
func RealignSpeakers(entries []types.WordSpeakerEntry) []types.WordSpeakerEntry {
	out := make([]types.WordSpeakerEntry, len(entries))
	copy(out, entries)

	for k := 0; k < len(out); k++ {
		if k >= len(out)-1 || out[k].Speaker == out[k+1].Speaker || endsSentence(out[k].Word) {
			continue
		}
		left := sentenceStart(out, k, realignMaxWords)
		if left < 0 {
			continue
		}
		right := sentenceEnd(out, k, realignMaxWords-k+left-1)
		if right < 0 {
			continue
		}
		majority, count := majoritySpeaker(out[left : right+1])
		if count < (right-left+1)/2 {
			continue
		}
		for i := left; i <= right; i++ {
			out[i].Speaker = majority
		}
		k = right
	}
	return out
}

// sentenceStart walks back from k to the first word of the enclosing
// sentence: the walk stops at a sentence-terminal word, a speaker change, or
// the maxWords budget. Returns -1 unless the stop is a genuine sentence
// boundary (index 0 or a terminal word on the left).
func sentenceStart(entries []types.WordSpeakerEntry, k, maxWords int) int {
	left := k
	for left > 0 && k-left < maxWords &&
		entries[left-1].Speaker == entries[left].Speaker && !endsSentence(entries[left-1].Word) {
		left--
	}
	if left == 0 || endsSentence(entries[left-1].Word) {
		return left
	}
	return -1
}

// sentenceEnd walks forward from k to the last word of the enclosing
// sentence within a budget of maxWords additional words. Returns -1 unless
// the stop is the final word or a sentence-terminal word.
func sentenceEnd(entries []types.WordSpeakerEntry, k, maxWords int) int {
	right := k
	for right < len(entries)-1 && right-k < maxWords && !endsSentence(entries[right].Word) {
		right++
	}
	if right == len(entries)-1 || endsSentence(entries[right].Word) {
		return right
	}
	return -1
}

// majoritySpeaker returns the most frequent speaker in the window and its
// count. Ties go to the speaker appearing first in the window.
func majoritySpeaker(window []types.WordSpeakerEntry) (speaker, count int) {
	counts := make(map[int]int, 2)
	for _, e := range window {
		counts[e.Speaker]++
	}
	speaker = window[0].Speaker
	for _, e := range window {
		if counts[e.Speaker] > count {
			speaker, count = e.Speaker, counts[e.Speaker]
		}
	}
	return speaker, count
}
