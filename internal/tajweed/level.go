package tajweed

import (
	"fmt"
	"strconv"
)

// Level is a difficulty level.
type Level int

const (
	// LevelMemorization checks that the words are present; rules are not
	// enforced.
	LevelMemorization Level = iota + 1

	// LevelFundamental verifies Qalqalah, Noon/Meem Sakinah, Tanween and
	// Ghunnah Mushaddada.
	LevelFundamental

	// LevelExcellence adds Madd, and any failed rule invalidates the word.
	LevelExcellence
)

// LevelConfig holds the scoring parameters of a level.
type LevelConfig struct {
	// Threshold is the minimum text similarity for a word to be valid.
	Threshold float64

	// EnforceTajweed enables rule extraction and verification.
	EnforceTajweed bool

	// Normalization names the comparison strictness. Informational.
	Normalization string
}

var levels = [...]LevelConfig{
	LevelMemorization: {Threshold: 0.15, EnforceTajweed: false, Normalization: "heavy"},
	LevelFundamental:  {Threshold: 0.50, EnforceTajweed: true, Normalization: "medium"},
	LevelExcellence:   {Threshold: 0.80, EnforceTajweed: true, Normalization: "strict"},
}

// Valid reports whether l is one of the defined levels.
func (l Level) Valid() bool {
	return l >= LevelMemorization && l <= LevelExcellence
}

// Config returns the parameters of l. Unknown levels get the configuration
// of [LevelMemorization].
func (l Level) Config() LevelConfig {
	if !l.Valid() {
		return levels[LevelMemorization]
	}
	return levels[l]
}

// ParseLevel parses "1", "2" or "3".
func ParseLevel(s string) (Level, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("tajweed: invalid level %q: %w", s, err)
	}
	l := Level(n)
	if !l.Valid() {
		return 0, fmt.Errorf("tajweed: level %d out of range 1..3", n)
	}
	return l, nil
}
