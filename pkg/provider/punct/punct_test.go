package punct_test

import (
	"testing"

	"github.com/psdwizzard/Meeting-Buddy-Pro/pkg/provider/punct"
)

func TestSupported(t *testing.T) {
	t.Parallel()

	for _, l := range []string{"en", "de", "fr", "sl"} {
		if !punct.Supported(l) {
			t.Errorf("Supported(%q) = false, want true", l)
		}
	}
	for _, l := range []string{"", "ja", "zh", "hi", "EN"} {
		if punct.Supported(l) {
			t.Errorf("Supported(%q) = true, want false", l)
		}
	}
}

func TestSupportedLanguages_CoversAllEntries(t *testing.T) {
	t.Parallel()

	for _, l := range punct.SupportedLanguages {
		if !punct.Supported(l) {
			t.Errorf("Supported(%q) = false for listed language", l)
		}
	}
}
