package analysis

import (
	"context"
	"errors"
	"unicode/utf8"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/KarimEG45/CoranBuilding/internal/history"
	"github.com/KarimEG45/CoranBuilding/internal/observe"
	"github.com/KarimEG45/CoranBuilding/pkg/arabic"
)

// Quick validation thresholds on whole-page similarity.
const (
	ThresholdPerfect = 0.85
	ThresholdReject  = 0.50
	ThresholdPass    = 0.70
)

// Quick validation messages.
const (
	MsgNotHeard        = "Je n'ai pas pu entendre votre récitation. Parlez plus fort."
	MsgNoReference     = "Texte Coranique introuvable, validation simulée."
	MsgExcellent       = "MachaAllah ! Récitation excellente."
	MsgTooManyMistakes = "Trop d'écarts. Révisez bien."
)

// Verdict is the outcome of [Analyzer.Validate].
type Verdict struct {
	Valid         bool    `json:"valid"`
	Similarity    float64 `json:"similarity"`
	Feedback      string  `json:"feedback"`
	Transcription string  `json:"transcription"`
	RecordingID   int64   `json:"recording_id,omitempty"`
	AudioURL      string  `json:"audio_url,omitempty"`
}

// Validate is the quick pass/fail check of a whole page: the normalized
// transcript is compared with the normalized page text character by
// character, without alignment or Tajweed rules. Only a transcription
// failure is an error; a missing page validates by default.
func (a *Analyzer) Validate(ctx context.Context, req Request) (v *Verdict, err error) {
	if len(req.Audio.Data) == 0 && !req.Audio.HasSamples() {
		return nil, ErrNoAudio
	}

	ctx, span := observe.StartSpan(ctx, "analysis.validate")
	defer func() { observe.EndSpan(span, err) }()

	a.decode(ctx, &req.Audio)
	transcript, err := a.transcribe(ctx, req.Audio)
	if err != nil {
		return nil, err
	}
	heard := transcriptText(transcript)
	v = &Verdict{Transcription: heard}

	if utf8.RuneCountInString(heard) < 3 {
		v.Feedback = MsgNotHeard
		return v, nil
	}

	text, err := a.referenceText(ctx, req.Page)
	if err != nil {
		if !errors.Is(err, ErrReferenceNotFound) {
			return nil, err
		}
		observe.Logger(ctx).Warn("analysis: validating without reference", "page", req.Page, "err", err)
		v.Valid, v.Feedback = true, MsgNoReference
		return v, nil
	}

	expected, student := arabic.Normalize(text), arabic.Normalize(heard)
	v.Similarity = PageSimilarity(expected, student)

	switch {
	case v.Similarity >= ThresholdPerfect:
		v.Valid, v.Feedback = true, MsgExcellent
	case v.Similarity < ThresholdReject:
		v.Valid, v.Feedback = false, MsgTooManyMistakes
	default:
		v.Valid = v.Similarity >= ThresholdPass
		if a.coach != nil && a.feedbackEnabled.Load() {
			v.Feedback = a.coach.Feedback(ctx, expected, student, v.Similarity)
		}
	}

	v.RecordingID = a.save(ctx, req, history.ScoreFromRatio(v.Similarity), v.Feedback)
	observe.Logger(ctx).Info("validation complete",
		"page", req.Page,
		"similarity", v.Similarity,
		"valid", v.Valid,
	)
	return v, nil
}

// PageSimilarity is the difflib ratio of two normalized texts compared rune
// by rune, with the matcher's popular-element heuristic enabled.
func PageSimilarity(expected, heard string) float64 {
	return difflib.NewMatcher(runes(expected), runes(heard)).Ratio()
}

func runes(s string) []string {
	out := make([]string, 0, utf8.RuneCountInString(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}
