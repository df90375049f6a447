package align

import "time"

const (
	// DefaultBeat is used when too few words carry timestamps.
	DefaultBeat = 300 * time.Millisecond

	// MinBeat and MaxBeat bound the estimated beat.
	MinBeat = 150 * time.Millisecond
	MaxBeat = 600 * time.Millisecond

	// wordsPerBeat is the assumed mean word length in beats.
	wordsPerBeat = 2.5

	minTimedWords = 3
)

// EstimateBeat derives the duration of one beat (harakah) from the mean
// duration of the timed entries. Entries with End <= Start are ignored.
func EstimateBeat(entries []Entry) time.Duration {
	var (
		total time.Duration
		n     int
	)
	for _, e := range entries {
		if e.End > e.Start {
			total += e.End - e.Start
			n++
		}
	}
	if n < minTimedWords {
		return DefaultBeat
	}

	mean := float64(total) / float64(n)
	beat := time.Duration(mean / wordsPerBeat)
	return min(max(beat, MinBeat), MaxBeat)
}
