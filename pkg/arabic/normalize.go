package arabic

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// folds maps letter variants onto the single form used for comparison.
var folds = map[rune]rune{
	'أ': Alif,
	'إ': Alif,
	'آ': Alif,
	'ٱ': Alif, // alif wasla
	'ى': Ya,
	'ؤ': Waw,
}

// stripped reports whether r carries no information for text comparison:
// harakat, tatweel, punctuation, symbols and digits.
func stripped(r rune) bool {
	if (r >= '\u064B' && r <= '\u065F') || r == SuperscriptAlif || r == Tatweel {
		return true
	}
	return !unicode.IsLetter(r) && !unicode.IsSpace(r)
}

func fold(r rune) rune {
	if f, ok := folds[r]; ok {
		return f
	}
	return r
}

// Normalize canonicalises Arabic text for comparison: compatibility forms are
// decomposed, diacritics, tatweel, punctuation and digits are removed, letter
// variants are folded and whitespace is collapsed.
//
// Normalize is idempotent and never fails; characters it has no rule for are
// returned unchanged.
func Normalize(s string) string {
	// transform.Chain keeps internal buffers, so it is built per call. The
	// trailing NFKC pass recomposes letters that removal brought together.
	t := transform.Chain(
		norm.NFKC,
		runes.Remove(runes.Predicate(stripped)),
		runes.Map(fold),
		norm.NFKC,
	)
	out, _, err := transform.String(t, s)
	if err != nil {
		// The chain has no failing transformer; keep the input usable anyway.
		out = s
	}
	return strings.Join(strings.Fields(out), " ")
}

// Words splits raw (diacritized) text into its whitespace-separated words.
func Words(s string) []string {
	return strings.Fields(s)
}

// NormalizeAll applies [Normalize] to every element of words.
func NormalizeAll(words []string) []string {
	out := make([]string, len(words))
	for i, w := range words {
		out[i] = Normalize(w)
	}
	return out
}
