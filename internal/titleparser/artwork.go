package titleparser

import "strings"

// ArtworkCandidate is one logo/poster/backdrop choice carrying its
// declared language.
type ArtworkCandidate struct {
	Language string // BCP-47-ish, e.g. "en-US", "fr", "" for language-agnostic art
	Value    string
}

// SelectArtwork implements the language-selection rule spec.md §4.3
// describes for picking the best artwork/logo out of a candidate array:
// prefer the requested language (matched on the language subtag, i.e. the
// part left of any region/script suffix), then the title's original
// language, then English, then the first entry.
//
// The source this was distilled from carries several competing
// implementations of this exact rule with slightly different precedence;
// this package keeps the single precedence order above.
func SelectArtwork(candidates []ArtworkCandidate, requestedLanguage, originalLanguage string) (ArtworkCandidate, bool) {
	if len(candidates) == 0 {
		return ArtworkCandidate{}, false
	}

	tryLang := func(lang string) (ArtworkCandidate, bool) {
		lang = languageSubtag(lang)
		if lang == "" {
			return ArtworkCandidate{}, false
		}
		for _, c := range candidates {
			if languageSubtag(c.Language) == lang {
				return c, true
			}
		}
		return ArtworkCandidate{}, false
	}

	for _, lang := range []string{requestedLanguage, originalLanguage, "en"} {
		if c, ok := tryLang(lang); ok {
			return c, true
		}
	}
	return candidates[0], true
}

func languageSubtag(lang string) string {
	lang = strings.TrimSpace(strings.ToLower(lang))
	if idx := strings.IndexAny(lang, "-_"); idx >= 0 {
		lang = lang[:idx]
	}
	return lang
}
