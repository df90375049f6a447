package analysis

import (
	"encoding/json"
	"time"

	"github.com/KarimEG45/CoranBuilding/internal/align"
	"github.com/KarimEG45/CoranBuilding/internal/tajweed"
	"github.com/KarimEG45/CoranBuilding/pkg/arabic"
)

// Report is the outcome of one analysis.
type Report struct {
	Page          int
	Level         tajweed.Level
	Transcription string
	Words         []WordReport
	Overall       tajweed.Overall

	// Beat is the estimated duration of one beat of the reciter.
	Beat time.Duration

	Feedback   string
	Disclaimer string

	// RecordingID is the history entry, 0 when nothing was saved.
	RecordingID int64

	// AudioURL locates the stored recording; set by the HTTP layer.
	AudioURL string
}

// WordReport is the verdict on one reference word.
type WordReport struct {
	// Text is the reference word as written in the Mushaf.
	Text string

	// Heard is the aligned transcript word, "" when not heard.
	Heard string

	// Start and End locate the word in the recording; both are zero when
	// the word was not heard.
	Start, End time.Duration

	Valid        bool
	Confidence   float64
	EditDistance int
	Rules        []tajweed.RuleVerification

	// Feedback is [MsgImprove] for an invalid word and "" otherwise.
	Feedback string
}

func newWordReport(e align.Entry, res tajweed.WordResult) WordReport {
	w := WordReport{
		Text:         e.Expected,
		Heard:        e.Transcribed,
		Start:        e.Start,
		End:          e.End,
		Valid:        res.Valid,
		Confidence:   res.Confidence,
		EditDistance: res.EditDistance,
		Rules:        res.Rules,
	}
	if !w.Valid {
		w.Feedback = MsgImprove
	}
	return w
}

// MarshalJSON encodes the report with times in seconds.
func (r Report) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Page          int             `json:"page"`
		Level         int             `json:"level"`
		OverallScore  float64         `json:"overall_score"`
		Overall       tajweed.Overall `json:"overall"`
		Transcription string          `json:"transcription"`
		Words         []WordReport    `json:"words"`
		BeatSeconds   float64         `json:"beat_seconds"`
		Feedback      string          `json:"feedback"`
		Disclaimer    string          `json:"disclaimer"`
		RecordingID   int64           `json:"recording_id,omitempty"`
		AudioURL      string          `json:"audio_url,omitempty"`
	}{
		Page:          r.Page,
		Level:         int(r.Level),
		OverallScore:  r.Overall.Score,
		Overall:       r.Overall,
		Transcription: r.Transcription,
		Words:         r.Words,
		BeatSeconds:   r.Beat.Seconds(),
		Feedback:      r.Feedback,
		Disclaimer:    r.Disclaimer,
		RecordingID:   r.RecordingID,
		AudioURL:      r.AudioURL,
	})
}

// MarshalJSON encodes the word with its offsets in seconds.
func (w WordReport) MarshalJSON() ([]byte, error) {
	rules := w.Rules
	if rules == nil {
		rules = []tajweed.RuleVerification{}
	}
	return json.Marshal(struct {
		Text         string                     `json:"text"`
		Heard        string                     `json:"heard"`
		Start        float64                    `json:"start"`
		End          float64                    `json:"end"`
		Valid        bool                       `json:"valid"`
		Confidence   float64                    `json:"confidence"`
		EditDistance int                        `json:"edit_distance"`
		Rules        []tajweed.RuleVerification `json:"tajweed_rules"`
		Feedback     string                     `json:"feedback"`
	}{
		Text:         w.Text,
		Heard:        w.Heard,
		Start:        w.Start.Seconds(),
		End:          w.End.Seconds(),
		Valid:        w.Valid,
		Confidence:   w.Confidence,
		EditDistance: w.EditDistance,
		Rules:        rules,
		Feedback:     w.Feedback,
	})
}

// WordRules lists the rules found in one word of a text.
type WordRules struct {
	Word  string               `json:"word"`
	Rules []tajweed.Occurrence `json:"rules"`
}

// Rules extracts the Tajweed rules of every word of text at level, without
// any audio. It backs rule highlighting in clients.
func Rules(text string, level tajweed.Level) []WordRules {
	words := arabic.Words(text)
	out := make([]WordRules, len(words))
	for i, w := range words {
		next := ""
		if i+1 < len(words) {
			next = words[i+1]
		}
		rules := tajweed.Extract(w, next, level)
		if rules == nil {
			rules = []tajweed.Occurrence{}
		}
		out[i] = WordRules{Word: w, Rules: rules}
	}
	return out
}
