package tajweed

import (
	"fmt"
	"slices"

	"github.com/KarimEG45/CoranBuilding/pkg/arabic"
)

// Noon Sakinah and Tanween subtypes.
const (
	Izhar           = "Izhar"
	Iqlab           = "Iqlab"
	IdghamGhunnah   = "Idgham avec Ghunnah"
	IdghamNoGhunnah = "Idgham sans Ghunnah"
	Ikhfa           = "Ikhfa"
)

// Meem Sakinah subtypes.
const (
	IzharShafawi  = "Izhar Shafawi"
	IdghamShafawi = "Idgham Shafawi"
	IkhfaShafawi  = "Ikhfa Shafawi"
)

// Extract returns the rules that apply to word, a diacritized reference
// word. next is the following reference word ("" at the end of the text) and
// decides the rules that depend on the next letter. Madd is only looked for
// at [LevelExcellence].
//
// Occurrences are ordered by rule family: Qalqalah, Noon Sakinah, Tanween,
// Meem Sakinah, Ghunnah Mushaddada, Madd. Extract never fails; a word without
// any rule yields nil.
func Extract(word, next string, level Level) []Occurrence {
	letters := arabic.Letters(word)

	var out []Occurrence
	out = append(out, qalqalah(letters)...)
	out = append(out, noonSakinah(letters, next)...)
	out = append(out, tanween(letters, next)...)
	out = append(out, meemSakinah(letters, next)...)
	out = append(out, ghunnahMushaddada(letters)...)
	if level >= LevelExcellence {
		out = append(out, madd(letters, next)...)
	}
	return out
}

func qalqalah(letters []arabic.Letter) []Occurrence {
	var out []Occurrence
	for i, l := range letters {
		if !arabic.IsQalqalahLetter(l.Rune) {
			continue
		}
		var subtype string
		switch {
		case l.HasMark(arabic.IsSukun):
			subtype = "Sughra"
		case i == len(letters)-1:
			// Stopping on the last letter gives it an implicit sukun.
			subtype = "Kubra"
		default:
			continue
		}
		c := string(l.Rune)
		out = append(out, Occurrence{
			Kind:            Qalqalah,
			Subtype:         subtype,
			Letter:          c,
			FeedbackCorrect: fmt.Sprintf("Qalqalah %s bien appliquée sur '%s'.", subtype, c),
			FeedbackMissing: fmt.Sprintf("Appliquez le rebond (Qalqalah %s) sur '%s'.", subtype, c),
		})
	}
	return out
}

// noonRule classifies Noon Sakinah and Tanween by the first letter of the
// next word.
func noonRule(next string) string {
	first := arabic.FirstLetter(next)
	switch {
	case first == 0, arabic.IsThroatLetter(first):
		return Izhar
	case first == arabic.Ba:
		return Iqlab
	case slices.Contains([]rune{'ي', 'ن', 'م', 'و'}, first):
		return IdghamGhunnah
	case first == 'ل' || first == 'ر':
		return IdghamNoGhunnah
	default:
		return Ikhfa
	}
}

func meemRule(next string) string {
	switch arabic.FirstLetter(next) {
	case arabic.Meem:
		return IdghamShafawi
	case arabic.Ba:
		return IkhfaShafawi
	default:
		return IzharShafawi
	}
}

func noonSakinah(letters []arabic.Letter, next string) []Occurrence {
	var out []Occurrence
	for _, l := range letters {
		if l.Rune != arabic.Noon || !l.HasMark(arabic.IsSukun) {
			continue
		}
		t := noonRule(next)
		out = append(out, Occurrence{
			Kind:            NoonSakinah,
			Subtype:         t,
			Letter:          string(arabic.Noon),
			FeedbackCorrect: fmt.Sprintf("Noon Sakinah (%s) bien appliquée.", t),
			FeedbackMissing: fmt.Sprintf("Appliquez la règle %s sur le Noon Sakinah.", t),
		})
	}
	return out
}

// tanween yields at most one occurrence per word.
func tanween(letters []arabic.Letter, next string) []Occurrence {
	if !slices.ContainsFunc(letters, func(l arabic.Letter) bool { return l.HasMark(arabic.IsTanween) }) {
		return nil
	}
	t := noonRule(next)
	return []Occurrence{{
		Kind:            Tanween,
		Subtype:         t,
		FeedbackCorrect: fmt.Sprintf("Tanween (%s) bien appliqué.", t),
		FeedbackMissing: fmt.Sprintf("Appliquez la règle %s sur le Tanween.", t),
	}}
}

func meemSakinah(letters []arabic.Letter, next string) []Occurrence {
	var out []Occurrence
	for _, l := range letters {
		if l.Rune != arabic.Meem || !l.HasMark(arabic.IsSukun) {
			continue
		}
		t := meemRule(next)
		out = append(out, Occurrence{
			Kind:            MeemSakinah,
			Subtype:         t,
			Letter:          string(arabic.Meem),
			FeedbackCorrect: fmt.Sprintf("Meem Sakinah (%s) bien appliquée.", t),
			FeedbackMissing: fmt.Sprintf("Appliquez la règle %s sur le Meem Sakinah.", t),
		})
	}
	return out
}

func ghunnahMushaddada(letters []arabic.Letter) []Occurrence {
	var out []Occurrence
	for _, l := range letters {
		if (l.Rune != arabic.Noon && l.Rune != arabic.Meem) || !l.Has(arabic.Shadda) {
			continue
		}
		name := "Noon"
		if l.Rune == arabic.Meem {
			name = "Meem"
		}
		out = append(out, Occurrence{
			Kind:            GhunnahMushaddada,
			Subtype:         name,
			Letter:          string(l.Rune),
			FeedbackCorrect: fmt.Sprintf("Ghunnah bien nasalisée sur le %s Mushaddad (2 temps).", name),
			FeedbackMissing: fmt.Sprintf("Nasalisez le %s avec Shadda (Ghunnah 2 temps).", name),
		})
	}
	return out
}

// maddVowel maps each long vowel to the short vowel that must precede it.
var maddVowel = map[rune]rune{
	arabic.Alif: arabic.Fatha,
	arabic.Waw:  arabic.Damma,
	arabic.Ya:   arabic.Kasra,
}

func madd(letters []arabic.Letter, next string) []Occurrence {
	var out []Occurrence
	for i := 1; i < len(letters); i++ {
		l := letters[i]
		vowel, ok := maddVowel[l.Rune]
		if !ok || !letters[i-1].Has(vowel) {
			continue
		}

		class := MaddTabii
		switch {
		case slices.ContainsFunc(letters[i+1:], func(r arabic.Letter) bool { return arabic.IsHamza(r.Rune) }):
			class = MaddMuttasil
		case arabic.IsHamza(arabic.FirstLetter(next)):
			class = MaddMunfasil
		}
		label := class.String()
		out = append(out, Occurrence{
			Kind:            Madd,
			Subtype:         label,
			Letter:          string(l.Rune),
			Madd:            class,
			FeedbackCorrect: label + " bien respecté.",
			FeedbackMissing: "Allongez correctement : " + label + ".",
		})
	}
	return out
}
