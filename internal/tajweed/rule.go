// Package tajweed detects the Tajweed rules implied by the diacritics of a
// reference word, verifies them against the reciter's audio and scores each
// word for a given difficulty level.
package tajweed

import "fmt"

// Kind is a family of Tajweed rules.
type Kind int

const (
	Qalqalah Kind = iota + 1
	NoonSakinah
	Tanween
	MeemSakinah
	GhunnahMushaddada
	Madd
)

var kindNames = [...]string{
	Qalqalah:          "Qalqalah",
	NoonSakinah:       "Noon Sakinah",
	Tanween:           "Tanween",
	MeemSakinah:       "Meem Sakinah",
	GhunnahMushaddada: "Ghunnah Mushaddada",
	Madd:              "Madd",
}

// String returns the display name of the rule family.
func (k Kind) String() string {
	if k > 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// MarshalText encodes the kind as its display name.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// MaddClass is the prolongation class of a Madd occurrence.
type MaddClass int

const (
	MaddTabii MaddClass = iota
	MaddMunfasil
	MaddMuttasil
	MaddLazim
)

// Beats returns the minimum number of beats the class requires.
func (c MaddClass) Beats() int {
	switch c {
	case MaddMuttasil:
		return 4
	case MaddLazim:
		return 6
	default:
		return 2
	}
}

// String returns the class label shown to the reciter.
func (c MaddClass) String() string {
	switch c {
	case MaddMunfasil:
		return "Madd Jaiz Munfasil (2-4 temps)"
	case MaddMuttasil:
		return "Madd Wajib Muttasil (4-5 temps)"
	case MaddLazim:
		return "Madd Lazim (6 temps)"
	default:
		return "Madd Tabii (2 temps)"
	}
}

// Occurrence is one rule application found in a reference word.
type Occurrence struct {
	Kind    Kind   `json:"rule"`
	Subtype string `json:"subtype"`

	// Letter is the letter carrying the rule; empty for Tanween.
	Letter string `json:"letter"`

	// Madd is the prolongation class; only meaningful when Kind is Madd.
	Madd MaddClass `json:"-"`

	FeedbackCorrect string `json:"feedback_correct"`
	FeedbackMissing string `json:"feedback_missing"`
}

// Feedback returns the message matching the verification outcome.
func (o Occurrence) Feedback(passed bool) string {
	if passed {
		return o.FeedbackCorrect
	}
	return o.FeedbackMissing
}
