// Package align pairs the words of a reference text with the time-stamped
// words of an ASR transcript, and estimates the reciter's tempo from the
// result.
package align

import (
	"time"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/KarimEG45/CoranBuilding/pkg/arabic"
	"github.com/KarimEG45/CoranBuilding/pkg/provider/stt"
)

// Entry is one reference word together with the transcript word it was
// matched to. An unmatched entry has an empty Transcribed and zero
// timestamps.
type Entry struct {
	// Expected is the reference word in its original (diacritized) form.
	Expected string

	// Index is the position of Expected in the reference.
	Index int

	// Transcribed is the matched transcript word, or "" when the word was not
	// heard.
	Transcribed string

	Start time.Duration
	End   time.Duration
}

// Matched reports whether a transcript word was paired with this entry.
func (e Entry) Matched() bool {
	return e.Transcribed != ""
}

// Align returns exactly one entry per reference word, in reference order.
//
// Both sequences are normalized with [arabic.Normalize] and compared with a
// difflib sequence matcher (auto-junk disabled). Equal runs are paired word
// by word. Replaced runs are paired position by position up to the shorter
// side and the remaining reference words stay unmatched. Deleted reference
// words stay unmatched. Extra transcript words are discarded.
func Align(reference []string, words []stt.WordDetail) []Entry {
	out := make([]Entry, len(reference))
	for i, w := range reference {
		out[i] = Entry{Expected: w, Index: i}
	}
	if len(reference) == 0 || len(words) == 0 {
		return out
	}

	heard := make([]string, len(words))
	for i, w := range words {
		heard[i] = w.Word
	}

	m := difflib.NewMatcherWithJunk(arabic.NormalizeAll(reference), arabic.NormalizeAll(heard), false, nil)
	for _, op := range m.GetOpCodes() {
		switch op.Tag {
		case 'e', 'r':
			n := min(op.I2-op.I1, op.J2-op.J1)
			for k := range n {
				pair(&out[op.I1+k], words[op.J1+k])
			}
		case 'd', 'i':
			// Deleted reference words are already unmatched; inserted
			// transcript words have no reference slot.
		}
	}
	return out
}

func pair(e *Entry, w stt.WordDetail) {
	e.Transcribed = w.Word
	e.Start = w.Start
	e.End = w.End
	if e.Transcribed == "" {
		e.Start, e.End = 0, 0
	}
}

// Coverage returns the number of matched entries.
func Coverage(entries []Entry) int {
	n := 0
	for _, e := range entries {
		if e.Matched() {
			n++
		}
	}
	return n
}
