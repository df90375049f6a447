// Package history persists analysed recordings so a student can review their
// last attempts on a page.
package history

import (
	"context"
	"errors"
	"time"
)

// DefaultLimit is the number of recordings [Store.List] returns when limit
// is not positive.
const DefaultLimit = 5

var (
	// ErrNotFound is returned when no recording has the requested ID.
	ErrNotFound = errors.New("history: recording not found")

	// ErrForbidden is returned when a recording belongs to another user.
	ErrForbidden = errors.New("history: recording belongs to another user")
)

// Recording is one analysed recitation.
type Recording struct {
	ID     int64  `json:"id"`
	UserID string `json:"user_id"`
	Page   int    `json:"page"`

	// FilePath is where the uploaded audio was stored, or "".
	FilePath string `json:"file_path,omitempty"`

	// Score is the overall score as a whole percentage.
	Score    int    `json:"score"`
	Feedback string `json:"feedback,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// ScoreFromRatio converts an overall score in [0, 1] to [Recording.Score].
// The fraction is truncated.
func ScoreFromRatio(r float64) int {
	return int(r * 100)
}

// Store persists recordings. Implementations must be safe for concurrent use.
type Store interface {
	// Save inserts rec and fills in its ID and, when zero, CreatedAt.
	Save(ctx context.Context, rec *Recording) error

	// List returns the newest recordings of userID on page, newest first.
	// A non-positive limit means [DefaultLimit].
	List(ctx context.Context, userID string, page, limit int) ([]Recording, error)

	// Delete removes recording id if it belongs to userID and returns it so
	// the caller can clean up the audio file.
	Delete(ctx context.Context, id int64, userID string) (*Recording, error)
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	return limit
}
