package pipeline

import (
	"context"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/psdwizzard/Meeting-Buddy-Pro/pkg/provider/punct"
	"github.com/psdwizzard/Meeting-Buddy-Pro/pkg/types"
)

const (
	// punctChunkSize caps the words per prediction request; the model's
	// effective context window is not much larger.
	punctChunkSize = 230

	// sentenceEnders are the marks that terminate a sentence.
	sentenceEnders = ".?!"

	// punctuationMarks are the trailing marks a word may already carry; a
	// word ending in one of these is left alone.
	punctuationMarks = ".,;:!?"
)

// RestorePunctuation predicts sentence punctuation for the word sequence and
// returns a revised copy with terminal marks applied. The input slice is
// never mutated. Words go to the model in fixed-size chunks dispatched
// concurrently; labels are reassembled by position, so output order matches
// input order regardless of which chunk finishes first.
func RestorePunctuation(ctx context.Context, model punct.Model, entries []types.WordSpeakerEntry) ([]types.WordSpeakerEntry, error) {
	if len(entries) == 0 {
		return nil, nil
	}

	texts := make([]string, len(entries))
	for i, e := range entries {
		texts[i] = e.Word
	}

	labels := make([]string, len(texts))
	g, gctx := errgroup.WithContext(ctx)
	for start := 0; start < len(texts); start += punctChunkSize {
		end := min(start+punctChunkSize, len(texts))
		g.Go(func() error {
			got, err := model.Predict(gctx, texts[start:end])
			if err != nil {
				return err
			}
			if len(got) != end-start {
				return fmt.Errorf("pipeline: punctuation model returned %d labels for %d words", len(got), end-start)
			}
			copy(labels[start:end], got)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]types.WordSpeakerEntry, len(entries))
	copy(out, entries)
	for i := range out {
		out[i].Word = applyLabel(out[i].Word, labels[i])
	}
	return out, nil
}

// applyLabel rewrites word to carry the sentence-terminal mark predicted for
// it. A word already ending in punctuation keeps what it has, except
// multi-period acronyms, which still take a terminal mark. Trailing periods
// are stripped before the mark is appended, so re-punctuating already
// punctuated text never stacks marks.
func applyLabel(word, label string) string {
	if word == "" || label == "" {
		return word
	}
	mark, _ := utf8.DecodeLastRuneInString(label)
	if !strings.ContainsRune(sentenceEnders, mark) {
		return word
	}
	last, _ := utf8.DecodeLastRuneInString(word)
	if strings.ContainsRune(punctuationMarks, last) && !isAcronym(word) {
		return word
	}
	return strings.TrimRight(word, ".") + string(mark)
}

// isAcronym reports whether word is a multi-period acronym like "U.S.".
func isAcronym(word string) bool {
	if strings.Count(word, ".") < 2 {
		return false
	}
	stripped := strings.ReplaceAll(word, ".", "")
	if stripped == "" {
		return false
	}
	for _, r := range stripped {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}
