package tajweed

import (
	"math"
	"time"

	"github.com/antzucaro/matchr"
	"github.com/pmezard/go-difflib/difflib"

	"github.com/KarimEG45/CoranBuilding/pkg/arabic"
	"github.com/KarimEG45/CoranBuilding/pkg/audio"
)

// Status is the verdict on one rule occurrence.
type Status string

const (
	StatusCorrect Status = "correct"
	StatusAbsent  Status = "absent"
)

// RuleVerification is the verdict on one occurrence of a rule in a word.
type RuleVerification struct {
	Rule       Kind    `json:"rule"`
	Subtype    string  `json:"subtype"`
	Status     Status  `json:"status"`
	Confidence float64 `json:"confidence"`
	Feedback   string  `json:"feedback"`
}

// WordInput is everything needed to score one reference word.
type WordInput struct {
	// Expected is the diacritized reference word.
	Expected string

	// Transcribed is the aligned transcript word, "" when not heard.
	Transcribed string

	// Next is the following reference word, "" at the end of the text.
	Next string

	Level Level

	// Segment is the word's audio; empty when it could not be isolated.
	Segment audio.Segment

	// Beat is the estimated duration of one beat.
	Beat time.Duration
}

// WordResult is the verdict on one word.
type WordResult struct {
	Valid bool `json:"valid"`

	// Confidence is the text similarity rounded to three decimals.
	Confidence float64 `json:"confidence"`

	// EditDistance is the Levenshtein distance between the normalized words.
	// Advisory only; validity is decided by similarity.
	EditDistance int `json:"edit_distance"`

	Rules []RuleVerification `json:"rules"`
}

// Similarity returns the difflib ratio between the normalized forms of
// expected and transcribed, compared rune by rune. It is 0 when transcribed
// normalizes to nothing.
func Similarity(expected, transcribed string) float64 {
	b := splitRunes(arabic.Normalize(transcribed))
	if len(b) == 0 {
		return 0
	}
	a := splitRunes(arabic.Normalize(expected))
	return difflib.NewMatcherWithJunk(a, b, false, nil).Ratio()
}

func splitRunes(s string) []string {
	out := make([]string, 0, len(s)/2)
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}

// AnalyzeWord scores one word using the default [Verifier].
func AnalyzeWord(in WordInput) WordResult {
	var v Verifier
	return v.AnalyzeWord(in)
}

// AnalyzeWord scores one word. The word is valid when its similarity reaches
// the level threshold. When the level enforces Tajweed every rule found in
// the reference word is verified, and at [LevelExcellence] a failed rule
// invalidates the word.
func (v *Verifier) AnalyzeWord(in WordInput) WordResult {
	cfg := in.Level.Config()

	sim := Similarity(in.Expected, in.Transcribed)
	res := WordResult{
		Valid:        sim >= cfg.Threshold,
		Confidence:   math.Round(sim*1000) / 1000,
		EditDistance: matchr.Levenshtein(arabic.Normalize(in.Expected), arabic.Normalize(in.Transcribed)),
		Rules:        []RuleVerification{},
	}
	if !cfg.EnforceTajweed {
		return res
	}

	for _, o := range Extract(in.Expected, in.Next, in.Level) {
		c := v.Check(o, in.Transcribed, in.Segment, in.Beat)
		if !c.Passed && in.Level == LevelExcellence {
			res.Valid = false
		}
		status := StatusCorrect
		if !c.Passed {
			status = StatusAbsent
		}
		res.Rules = append(res.Rules, RuleVerification{
			Rule:       o.Kind,
			Subtype:    o.Subtype,
			Status:     status,
			Confidence: c.Confidence,
			Feedback:   o.Feedback(c.Passed),
		})
	}
	return res
}

// Overall is the page-level score.
type Overall struct {
	Matched int     `json:"matched"`
	Total   int     `json:"total"`
	Score   float64 `json:"score"`
}

// NewOverall computes Matched/Total, 0 for an empty page.
func NewOverall(matched, total int) Overall {
	o := Overall{Matched: matched, Total: total}
	if total > 0 {
		o.Score = float64(matched) / float64(total)
	}
	return o
}

// Percent returns the score as an integer percentage, truncated.
func (o Overall) Percent() int {
	return int(o.Score * 100)
}
