package pipeline

import (
	"strings"
	"unicode/utf8"

	"github.com/psdwizzard/Meeting-Buddy-Pro/pkg/types"
)

// endsSentence reports whether word carries sentence-terminal punctuation.
func endsSentence(word string) bool {
	if word == "" {
		return false
	}
	last, _ := utf8.DecodeLastRuneInString(word)
	return strings.ContainsRune(sentenceEnders, last)
}

// AssembleSentences groups attributed words into sentences. A sentence
// closes when the speaker changes or when its latest word carries terminal
// punctuation, whichever comes first; the next word opens a new sentence.
// Sentence bounds come from the member words alone: the first word's onset
// and the last word's offset. Words with empty text are skipped and never
// influence boundaries.
func AssembleSentences(entries []types.WordSpeakerEntry) []types.Sentence {
	var sentences []types.Sentence

	var (
		open  bool
		cur   types.Sentence
		texts []string
		prev  string
	)
	flush := func() {
		if !open {
			return
		}
		cur.Text = strings.TrimSpace(strings.Join(texts, " "))
		sentences = append(sentences, cur)
		open = false
		texts = texts[:0]
	}

	for _, e := range entries {
		if e.Word == "" {
			continue
		}
		if open && (e.Speaker != cur.Speaker || endsSentence(prev)) {
			flush()
		}
		if !open {
			cur = types.Sentence{Speaker: e.Speaker, StartMs: e.StartMs}
			open = true
		}
		cur.EndMs = e.EndMs
		texts = append(texts, e.Word)
		prev = e.Word
	}
	flush()

	return sentences
}
