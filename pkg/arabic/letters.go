// Package arabic holds the Arabic script primitives shared by the recitation
// pipeline: the harakat and letter groups used by Tajweed rule detection, and
// the text normalizer used to compare reference text with ASR output.
//
// Everything in this package is pure and safe for concurrent use.
package arabic

// Harakat and related combining marks.
const (
	Fathatan = '\u064B'
	Dammatan = '\u064C'
	Kasratan = '\u064D'
	Fatha    = '\u064E'
	Damma    = '\u064F'
	Kasra    = '\u0650'
	Shadda   = '\u0651'
	Sukun    = '\u0652'
	Maddah   = '\u0653'

	// SmallHighSukun is the rounded sukun used by Uthmani (Madani) script.
	SmallHighSukun = '\u06E1'

	// SuperscriptAlif marks a dagger alif over the preceding letter.
	SuperscriptAlif = '\u0670'

	// Tatweel is the elongation (kashida) character.
	Tatweel = '\u0640'
)

// Letters referenced by the rules.
const (
	Alif = 'ا'
	Waw  = 'و'
	Ya   = 'ي'
	Noon = 'ن'
	Meem = 'م'
	Ba   = 'ب'
)

// IsDiacritic reports whether r is a combining mark of the Arabic script:
// the harakat block U+064B–U+065F, the superscript alif and the Quranic
// annotation marks that Uthmani text places above or below letters.
func IsDiacritic(r rune) bool {
	switch {
	case r >= '\u064B' && r <= '\u065F':
		return true
	case r == SuperscriptAlif:
		return true
	case r >= '\u06D6' && r <= '\u06DC':
		return true
	case r >= '\u06DF' && r <= '\u06E4':
		return true
	case r == '\u06E7', r == '\u06E8':
		return true
	case r >= '\u06EA' && r <= '\u06ED':
		return true
	}
	return false
}

// IsSukun reports whether r marks a vowelless letter.
func IsSukun(r rune) bool {
	return r == Sukun || r == SmallHighSukun
}

// IsTanween reports whether r is one of the three nunation marks.
func IsTanween(r rune) bool {
	return r == Fathatan || r == Dammatan || r == Kasratan
}

// IsHamza reports whether r is a hamza letter, standalone or carried.
func IsHamza(r rune) bool {
	switch r {
	case 'ء', 'أ', 'إ', 'ئ', 'ؤ', 'آ':
		return true
	}
	return false
}

// IsThroatLetter reports whether r is one of the six guttural letters.
func IsThroatLetter(r rune) bool {
	switch r {
	case 'ء', 'ه', 'ع', 'ح', 'غ', 'خ':
		return true
	}
	return false
}

// IsQalqalahLetter reports whether r belongs to the rebounding stops قطبجد.
func IsQalqalahLetter(r rune) bool {
	switch r {
	case 'ق', 'ط', 'ب', 'ج', 'د':
		return true
	}
	return false
}

// FirstLetter returns the first non-diacritic rune of word, or 0 when word
// holds no letter at all.
func FirstLetter(word string) rune {
	for _, r := range word {
		if !IsDiacritic(r) {
			return r
		}
	}
	return 0
}

// Letter is one base letter of a diacritized word together with the
// cluster of marks written after it.
type Letter struct {
	Rune  rune
	Marks []rune
}

// HasMark reports whether the letter's cluster contains a mark matching fn.
func (l Letter) HasMark(fn func(rune) bool) bool {
	for _, m := range l.Marks {
		if fn(m) {
			return true
		}
	}
	return false
}

// Has reports whether the letter's cluster contains mark.
func (l Letter) Has(mark rune) bool {
	return l.HasMark(func(r rune) bool { return r == mark })
}

// Letters splits a diacritized word into base letters and their mark
// clusters. Marks that precede the first letter are dropped.
func Letters(word string) []Letter {
	var out []Letter
	for _, r := range word {
		if IsDiacritic(r) {
			if len(out) > 0 {
				out[len(out)-1].Marks = append(out[len(out)-1].Marks, r)
			}
			continue
		}
		out = append(out, Letter{Rune: r})
	}
	return out
}
