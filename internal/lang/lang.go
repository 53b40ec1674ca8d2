// Package lang holds the Whisper language registry and the ISO 639-3 mapping
// used to parameterize the forced-alignment model.
package lang

import (
	"fmt"
	"log/slog"
	"strings"
)

// names maps every Whisper language code to its English name. The set mirrors
// the languages the Whisper model family was trained on.
var names = map[string]string{
	"en": "english", "zh": "chinese", "de": "german", "es": "spanish",
	"ru": "russian", "ko": "korean", "fr": "french", "ja": "japanese",
	"pt": "portuguese", "tr": "turkish", "pl": "polish", "ca": "catalan",
	"nl": "dutch", "ar": "arabic", "sv": "swedish", "it": "italian",
	"id": "indonesian", "hi": "hindi", "fi": "finnish", "vi": "vietnamese",
	"he": "hebrew", "uk": "ukrainian", "el": "greek", "ms": "malay",
	"cs": "czech", "ro": "romanian", "da": "danish", "hu": "hungarian",
	"ta": "tamil", "no": "norwegian", "th": "thai", "ur": "urdu",
	"hr": "croatian", "bg": "bulgarian", "lt": "lithuanian", "la": "latin",
	"mi": "maori", "ml": "malayalam", "cy": "welsh", "sk": "slovak",
	"te": "telugu", "fa": "persian", "lv": "latvian", "bn": "bengali",
	"sr": "serbian", "az": "azerbaijani", "sl": "slovenian", "kn": "kannada",
	"et": "estonian", "mk": "macedonian", "br": "breton", "eu": "basque",
	"is": "icelandic", "hy": "armenian", "ne": "nepali", "mn": "mongolian",
	"bs": "bosnian", "kk": "kazakh", "sq": "albanian", "sw": "swahili",
	"gl": "galician", "mr": "marathi", "pa": "punjabi", "si": "sinhala",
	"km": "khmer", "sn": "shona", "yo": "yoruba", "so": "somali",
	"af": "afrikaans", "oc": "occitan", "ka": "georgian", "be": "belarusian",
	"tg": "tajik", "sd": "sindhi", "gu": "gujarati", "am": "amharic",
	"yi": "yiddish", "lo": "lao", "uz": "uzbek", "fo": "faroese",
	"ht": "haitian creole", "ps": "pashto", "tk": "turkmen", "nn": "nynorsk",
	"mt": "maltese", "sa": "sanskrit", "lb": "luxembourgish", "my": "myanmar",
	"bo": "tibetan", "tl": "tagalog", "mg": "malagasy", "as": "assamese",
	"tt": "tatar", "haw": "hawaiian", "ln": "lingala", "ha": "hausa",
	"ba": "bashkir", "jw": "javanese", "su": "sundanese", "yue": "cantonese",
}

// iso6393 maps Whisper language codes to the ISO 639-3 codes the alignment
// model's romanizer expects. Codes absent here fall back to "eng".
var iso6393 = map[string]string{
	"en": "eng", "zh": "zho", "de": "deu", "es": "spa", "ru": "rus",
	"ko": "kor", "fr": "fra", "ja": "jpn", "pt": "por", "tr": "tur",
	"pl": "pol", "ca": "cat", "nl": "nld", "ar": "ara", "sv": "swe",
	"it": "ita", "id": "ind", "hi": "hin", "fi": "fin", "vi": "vie",
	"he": "heb", "uk": "ukr", "el": "ell", "ms": "msa", "cs": "ces",
	"ro": "ron", "da": "dan", "hu": "hun", "ta": "tam", "no": "nor",
	"th": "tha", "ur": "urd", "hr": "hrv", "bg": "bul", "lt": "lit",
	"la": "lat", "mi": "mri", "ml": "mal", "cy": "cym", "sk": "slk",
	"te": "tel", "fa": "fas", "lv": "lav", "bn": "ben", "sr": "srp",
	"az": "aze", "sl": "slv", "kn": "kan", "et": "est", "mk": "mkd",
	"br": "bre", "eu": "eus", "is": "isl", "hy": "hye", "ne": "nep",
	"mn": "mon", "bs": "bos", "kk": "kaz", "sq": "sqi", "sw": "swa",
	"gl": "glg", "mr": "mar", "pa": "pan", "si": "sin", "km": "khm",
	"sn": "sna", "yo": "yor", "so": "som", "af": "afr", "oc": "oci",
	"ka": "kat", "be": "bel", "tg": "tgk", "sd": "snd", "gu": "guj",
	"am": "amh", "yi": "yid", "lo": "lao", "uz": "uzb", "fo": "fao",
	"ht": "hat", "ps": "pus", "tk": "tuk", "nn": "nno", "mt": "mlt",
	"sa": "san", "lb": "ltz", "my": "mya", "bo": "bod", "tl": "tgl",
	"mg": "mlg", "as": "asm", "tt": "tat", "haw": "haw", "ln": "lin",
	"ha": "hau", "ba": "bak", "jw": "jav", "su": "sun", "yue": "yue",
}

// Valid reports whether code is a recognised Whisper language code.
func Valid(code string) bool {
	_, ok := names[code]
	return ok
}

// Name returns the English name of a language code, or "" when unknown.
func Name(code string) string {
	return names[code]
}

// ToISO6393 converts a Whisper language code to its ISO 639-3 form.
// Unknown codes map to "eng".
func ToISO6393(code string) string {
	if iso, ok := iso6393[code]; ok {
		return iso
	}
	return "eng"
}

// Resolve normalizes a language hint against the model in use. An empty hint
// selects auto-detection unless the model is English-only, in which case "en"
// is returned. A non-empty hint must be a recognised code; an English-only
// model overrides any non-English hint with a warning rather than failing.
func Resolve(hint, model string) (string, error) {
	englishOnly := strings.HasSuffix(model, ".en")

	hint = strings.ToLower(strings.TrimSpace(hint))
	if hint == "" {
		if englishOnly {
			return "en", nil
		}
		return "", nil
	}
	if !Valid(hint) {
		return "", fmt.Errorf("lang: unsupported language %q", hint)
	}
	if englishOnly && hint != "en" {
		slog.Warn("model is English-only; overriding language hint",
			"model", model,
			"hint", hint,
		)
		return "en", nil
	}
	return hint, nil
}
