// Package punct defines the Provider interface for punctuation restoration
// backends.
//
// ASR output arrives largely unpunctuated. A punctuation model predicts, for
// each word, the punctuation mark that should follow it; the pipeline uses
// those predictions to rebuild sentence boundaries before speaker
// attribution is smoothed. Restoration only applies to languages the model
// was trained on; use Supported to gate the stage.
package punct

import "context"

// DefaultModel is the multilingual punctuation model the pipeline loads when
// no other model is configured.
const DefaultModel = "kredor/punctuate-all"

// SupportedLanguages lists the Whisper language codes the punctuation model
// covers. Keep in sync with the model card.
var SupportedLanguages = []string{
	"en", "fr", "de", "es", "it", "nl", "pt", "bg", "pl", "cs", "sk", "sl",
}

// Supported reports whether the punctuation model covers the given language.
func Supported(language string) bool {
	for _, l := range SupportedLanguages {
		if l == language {
			return true
		}
	}
	return false
}

// ModelSpec identifies the punctuation model for a Load call.
type ModelSpec struct {
	// Model is the model identifier, e.g. "kredor/punctuate-all".
	Model string
}

// Model is a loaded punctuation model.
//
// Callers must call Close when the model is no longer needed.
type Model interface {
	// Predict returns one label per input word. A label is the punctuation
	// mark predicted to follow the word ("", ".", ",", "?", ...). The result
	// always has exactly len(words) entries.
	Predict(ctx context.Context, words []string) ([]string, error)

	// Close releases the model weights. Calling Close more than once is safe.
	Close() error
}

// Provider is the abstraction over any punctuation restoration backend.
type Provider interface {
	// Load materialises the model described by spec. The caller owns the
	// returned handle and must call Close when done.
	Load(ctx context.Context, spec ModelSpec) (Model, error)
}
